package telegram

import (
	"time"

	"editguard/pkg/guard"
)

// UpdateType identifies the Telegram update semantic category.
type UpdateType string

const (
	// UpdateTypeMessage identifies new message updates.
	UpdateTypeMessage UpdateType = "message"
	// UpdateTypeEdit identifies edited message updates.
	UpdateTypeEdit UpdateType = "edit"
	// UpdateTypeDelete identifies deleted/retracted message updates.
	UpdateTypeDelete UpdateType = "delete"
	// UpdateTypeMemberJoin identifies member join updates.
	UpdateTypeMemberJoin UpdateType = "member_join"
	// UpdateTypeMemberLeave identifies member leave updates.
	UpdateTypeMemberLeave UpdateType = "member_leave"
)

// Update is the Telegram adapter's internal DTO before neutral decoding.
type Update struct {
	ID         string
	Type       UpdateType
	OccurredAt time.Time
	Chat       ChatRef
	Actor      ActorRef
	Message    *MessagePayload
	Edit       *EditPayload
	Delete     *DeletePayload
	Member     *MemberPayload
	Metadata   map[string]string
}

// ChatRef identifies Telegram chat context.
type ChatRef struct {
	ID    string
	Title string
	Type  guard.ConversationType
}

// ActorRef identifies Telegram actor context.
type ActorRef struct {
	ID          string
	Username    string
	DisplayName string
	IsBot       bool
}

// MessagePayload represents a Telegram message projection.
type MessagePayload struct {
	ID        string
	ThreadID  string
	ReplyToID string
	Text      string
	Media     []MediaPayload
}

// MediaPayload represents Telegram media metadata.
type MediaPayload struct {
	ID        string
	Kind      guard.MediaKind
	MIMEType  string
	FileName  string
	SizeBytes int64
	Caption   string
}

// EditPayload captures post-edit message content.
type EditPayload struct {
	MessageID string
	After     *SnapshotPayload
	Reason    string
}

// SnapshotPayload captures immutable message snapshots.
type SnapshotPayload struct {
	Text  string
	Media []MediaPayload
}

// DeletePayload captures message deletion metadata.
type DeletePayload struct {
	MessageID string
	Reason    string
}

// MemberPayload captures join/leave transitions.
type MemberPayload struct {
	Member   ActorRef
	Inviter  *ActorRef
	JoinedAt time.Time
}
