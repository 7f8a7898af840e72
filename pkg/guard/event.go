package guard

import (
	"fmt"
	"time"
)

// EventKind identifies a neutral domain event type.
type EventKind string

const (
	// EventKindMessageCreated is emitted when a new message is posted.
	EventKindMessageCreated EventKind = "message.created"
	// EventKindMessageEdited is emitted when an existing message is edited.
	EventKindMessageEdited EventKind = "message.edited"
	// EventKindMessageRetracted is emitted when a message is deleted upstream.
	EventKindMessageRetracted EventKind = "message.retracted"
	// EventKindMemberJoined is emitted when a member joins a conversation.
	EventKindMemberJoined EventKind = "member.joined"
	// EventKindMemberLeft is emitted when a member leaves a conversation.
	EventKindMemberLeft EventKind = "member.left"
)

// Platform identifies an external chat platform source.
type Platform string

const (
	// PlatformTelegram is Telegram.
	PlatformTelegram Platform = "telegram"
)

// ConversationType identifies conversation scope.
type ConversationType string

const (
	// ConversationTypePrivate is a direct/private conversation.
	ConversationTypePrivate ConversationType = "private"
	// ConversationTypeGroup is a group conversation.
	ConversationTypeGroup ConversationType = "group"
	// ConversationTypeChannel is a channel-style conversation (supergroups included).
	ConversationTypeChannel ConversationType = "channel"
)

// Event is the neutral protocol envelope that the driver publishes and modules consume.
//
// Message, Mutation, and Member are optional payload branches selected by Kind
// so that platform specifics never leak past the driver boundary.
type Event struct {
	// ID is a stable identifier for this event instance.
	ID string
	// Kind selects which payload branch is expected.
	Kind EventKind
	// OccurredAt is the source-platform timestamp for the event.
	OccurredAt time.Time
	// Platform identifies the upstream platform that produced the event.
	Platform Platform
	// Conversation identifies where the event happened.
	Conversation Conversation
	// Actor identifies who initiated the event when available.
	Actor Actor
	// Message carries message content for message-created events.
	Message *Message
	// Mutation carries before/after context for edit and retraction events.
	Mutation *Mutation
	// Member carries join/leave transitions for member events.
	Member *MemberChange
	// Metadata stores optional driver-provided key/value context.
	Metadata map[string]string
}

// Conversation identifies the neutral destination where an event occurred.
type Conversation struct {
	// ID is the stable conversation identifier on the source platform.
	ID string
	// Type describes the conversation scope.
	Type ConversationType
	// Title is a best-effort display label for the conversation.
	Title string
}

// Actor identifies the user/account that initiated an event.
type Actor struct {
	// ID is the stable actor identifier on the source platform.
	ID string
	// Username is the platform handle when available.
	Username string
	// DisplayName is the human-readable actor name.
	DisplayName string
	// IsBot reports whether the actor is an automated account.
	IsBot bool
}

// Label returns the best available human-readable name for the actor.
func (a Actor) Label() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	if a.Username != "" {
		return "@" + a.Username
	}

	return a.ID
}

// Message holds neutral message content including rich media.
type Message struct {
	// ID is the message identifier on the source platform.
	ID string
	// ThreadID is the optional thread/topic identifier containing the message.
	ThreadID string
	// ReplyToID is the parent message identifier when this is a reply.
	ReplyToID string
	// Text is the normalized message text body.
	Text string
	// Media contains normalized attachments associated with the message.
	Media []MediaAttachment
}

// MediaKind is the closed attachment classification used for content signatures.
type MediaKind string

const (
	// MediaKindNone indicates a message without attachments.
	MediaKindNone MediaKind = "none"
	// MediaKindPhoto identifies an image attachment.
	MediaKindPhoto MediaKind = "photo"
	// MediaKindVideo identifies a video attachment.
	MediaKindVideo MediaKind = "video"
	// MediaKindAudio identifies a music/audio file attachment.
	MediaKindAudio MediaKind = "audio"
	// MediaKindVoice identifies a voice note attachment.
	MediaKindVoice MediaKind = "voice"
	// MediaKindVideoNote identifies a round video note attachment.
	MediaKindVideoNote MediaKind = "video_note"
	// MediaKindDocument identifies a generic file attachment.
	MediaKindDocument MediaKind = "document"
	// MediaKindSticker identifies a sticker attachment.
	MediaKindSticker MediaKind = "sticker"
	// MediaKindAnimation identifies an animation/GIF attachment.
	MediaKindAnimation MediaKind = "animation"
	// MediaKindLocation identifies a geographic point attachment.
	MediaKindLocation MediaKind = "location"
	// MediaKindVenue identifies a named place attachment.
	MediaKindVenue MediaKind = "venue"
	// MediaKindContact identifies a shared contact card attachment.
	MediaKindContact MediaKind = "contact"
	// MediaKindPoll identifies a poll attachment.
	MediaKindPoll MediaKind = "poll"
	// MediaKindOther identifies attachments outside the known categories.
	MediaKindOther MediaKind = "other"
)

// MediaAttachment represents rich media payload metadata.
type MediaAttachment struct {
	// ID is the stable attachment identifier when provided by the platform.
	ID string
	// Kind is the normalized media category.
	Kind MediaKind
	// MIMEType is the attachment content type when known.
	MIMEType string
	// FileName is the original attachment filename when available.
	FileName string
	// SizeBytes is the attachment size in bytes when available.
	SizeBytes int64
	// Caption is the optional media caption text.
	Caption string
}

// MutationType identifies message mutation kind.
type MutationType string

const (
	// MutationTypeEdit indicates message edit.
	MutationTypeEdit MutationType = "edit"
	// MutationTypeRetraction indicates message deletion/retraction.
	MutationTypeRetraction MutationType = "retraction"
)

// Mutation holds before/after message mutation context.
type Mutation struct {
	// Type identifies the mutation operation.
	Type MutationType
	// TargetMessageID identifies the message affected by the mutation.
	TargetMessageID string
	// After captures message state after mutation when the platform delivers it.
	After *MessageSnapshot
	// Reason carries optional platform-provided context for the mutation.
	Reason string
}

// MessageSnapshot stores immutable message state for mutation events.
type MessageSnapshot struct {
	// Text is the immutable text snapshot.
	Text string
	// Media is the immutable media snapshot.
	Media []MediaAttachment
}

// MemberChange captures join/leave transitions.
type MemberChange struct {
	// Action is the member event kind (joined or left).
	Action EventKind
	// Member identifies the member affected by the transition.
	Member Actor
	// Inviter identifies who invited the member when available.
	Inviter *Actor
	// JoinedAt is the join timestamp when provided by the source platform.
	JoinedAt time.Time
}

// Validate checks event envelope and payload coherence.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}
	if e.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidEvent)
	}

	return validatePayloadByKind(e)
}

// validatePayloadByKind enforces payload branch requirements for each event kind.
func validatePayloadByKind(e *Event) error {
	switch e.Kind {
	case EventKindMessageCreated:
		if e.Message == nil {
			return fmt.Errorf("%w: message.created requires message payload", ErrInvalidEvent)
		}
	case EventKindMessageEdited, EventKindMessageRetracted:
		if e.Mutation == nil {
			return fmt.Errorf("%w: mutation event requires mutation payload", ErrInvalidEvent)
		}
	case EventKindMemberJoined, EventKindMemberLeft:
		if e.Member == nil {
			return fmt.Errorf("%w: member event requires member payload", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidEvent, e.Kind)
	}

	return nil
}

// MessageMedia returns the media payload that best represents this event.
// For mutation events it prefers the post-mutation snapshot.
func (e *Event) MessageMedia() []MediaAttachment {
	if e == nil {
		return nil
	}
	if e.Message != nil {
		return e.Message.Media
	}
	if e.Mutation != nil && e.Mutation.After != nil {
		return e.Mutation.After.Media
	}

	return nil
}
