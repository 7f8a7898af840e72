package guard

// Capability describes what a module can process and what resources it requires.
type Capability struct {
	Name             string
	Description      string
	Interest         InterestSet
	RequiredServices []string
	Metadata         map[string]string
}

// InterestSet describes event selection criteria for capability negotiation.
type InterestSet struct {
	Kinds           []EventKind
	MediaKinds      []MediaKind
	RequireMutation bool
	RequireMember   bool
}

// Matches reports whether an event satisfies the declared interest set.
func (i InterestSet) Matches(event *Event) bool {
	if event == nil {
		return false
	}
	if len(i.Kinds) > 0 && !containsKind(i.Kinds, event.Kind) {
		return false
	}
	if i.RequireMutation && event.Mutation == nil {
		return false
	}
	if i.RequireMember && event.Member == nil {
		return false
	}
	if len(i.MediaKinds) > 0 && !eventContainsMediaKind(event, i.MediaKinds) {
		return false
	}

	return true
}

// Allows reports whether this interest set can safely satisfy another filter.
func (i InterestSet) Allows(filter InterestSet) bool {
	if len(i.Kinds) > 0 && !allKindsIncluded(filter.Kinds, i.Kinds) {
		return false
	}
	if len(i.MediaKinds) > 0 && !allMediaKindsIncluded(filter.MediaKinds, i.MediaKinds) {
		return false
	}
	if i.RequireMutation && !filter.RequireMutation {
		return false
	}
	if i.RequireMember && !filter.RequireMember {
		return false
	}

	return true
}

// containsKind reports whether target is present in kinds.
func containsKind(kinds []EventKind, target EventKind) bool {
	for _, candidate := range kinds {
		if candidate == target {
			return true
		}
	}

	return false
}

// eventContainsMediaKind checks effective event media across message and mutation payloads.
func eventContainsMediaKind(event *Event, kinds []MediaKind) bool {
	for _, media := range event.MessageMedia() {
		if containsMediaKind(kinds, media.Kind) {
			return true
		}
	}

	return false
}

// allKindsIncluded reports whether subset is fully contained in allowed.
func allKindsIncluded(subset, allowed []EventKind) bool {
	for _, item := range subset {
		if !containsKind(allowed, item) {
			return false
		}
	}

	return true
}

// allMediaKindsIncluded reports whether subset is fully contained in allowed.
func allMediaKindsIncluded(subset, allowed []MediaKind) bool {
	for _, item := range subset {
		if !containsMediaKind(allowed, item) {
			return false
		}
	}

	return true
}

// containsMediaKind reports whether target is present in kinds.
func containsMediaKind(kinds []MediaKind, target MediaKind) bool {
	for _, candidate := range kinds {
		if candidate == target {
			return true
		}
	}

	return false
}
