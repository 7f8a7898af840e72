package guard

// Signature is the canonical content fingerprint used to decide whether an
// edit changed anything that matters. Two messages are considered equal iff
// their signatures are structurally equal; no hashing is involved.
type Signature struct {
	// Text is the effective text: the message body when present, the first
	// attachment caption otherwise, empty when neither exists.
	Text string
	// MediaKind classifies the primary attachment, MediaKindNone without one.
	MediaKind MediaKind
	// HasAttachment reports whether the message carries any attachment.
	HasAttachment bool
}

// Equal reports structural equality of two signatures.
func (s Signature) Equal(other Signature) bool {
	return s == other
}

// FingerprintMessage derives a content signature from a message payload.
// It is a pure function of its input and never touches platform state.
func FingerprintMessage(message *Message) Signature {
	if message == nil {
		return Signature{MediaKind: MediaKindNone}
	}

	return fingerprintContent(message.Text, message.Media)
}

// FingerprintSnapshot derives a content signature from a mutation snapshot.
func FingerprintSnapshot(snapshot *MessageSnapshot) Signature {
	if snapshot == nil {
		return Signature{MediaKind: MediaKindNone}
	}

	return fingerprintContent(snapshot.Text, snapshot.Media)
}

// fingerprintContent builds the signature from effective text and attachments.
func fingerprintContent(text string, media []MediaAttachment) Signature {
	signature := Signature{
		Text:      text,
		MediaKind: MediaKindNone,
	}
	if len(media) == 0 {
		return signature
	}

	primary := media[0]
	signature.HasAttachment = true
	signature.MediaKind = primary.Kind
	if signature.MediaKind == "" {
		signature.MediaKind = MediaKindOther
	}
	if signature.Text == "" {
		signature.Text = primary.Caption
	}

	return signature
}
