package telegram

import (
	"context"
	"fmt"
	"time"

	"editguard/pkg/guard"
)

// Decoder converts Telegram update DTOs into neutral guard events.
type Decoder interface {
	// Decode maps one adapter update into a validated neutral event envelope.
	Decode(ctx context.Context, update Update) (*guard.Event, error)
}

// DefaultDecoder provides default Telegram-to-neutral mappings.
type DefaultDecoder struct{}

// NewDefaultDecoder creates a default decoder.
func NewDefaultDecoder() DefaultDecoder {
	return DefaultDecoder{}
}

// Decode converts a Telegram update into a neutral event.
func (d DefaultDecoder) Decode(_ context.Context, update Update) (*guard.Event, error) {
	event := newBaseEvent(update)

	switch update.Type {
	case UpdateTypeMessage:
		event.Kind = guard.EventKindMessageCreated
		message, err := decodeMessage(update.Message)
		if err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		event.Message = message
	case UpdateTypeEdit:
		event.Kind = guard.EventKindMessageEdited
		mutation, err := decodeEdit(update.Edit)
		if err != nil {
			return nil, fmt.Errorf("decode edit: %w", err)
		}
		event.Mutation = mutation
	case UpdateTypeDelete:
		event.Kind = guard.EventKindMessageRetracted
		mutation, err := decodeDelete(update.Delete)
		if err != nil {
			return nil, fmt.Errorf("decode delete: %w", err)
		}
		event.Mutation = mutation
	case UpdateTypeMemberJoin, UpdateTypeMemberLeave:
		event.Kind = mapMembershipKind(update.Type)
		member, err := decodeMember(update.Type, update.Member)
		if err != nil {
			return nil, fmt.Errorf("decode member update: %w", err)
		}
		event.Member = member
	default:
		return nil, fmt.Errorf("decode update %s: unsupported type", update.Type)
	}

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("decode update %s: %w", update.Type, err)
	}

	return event, nil
}

// newBaseEvent builds the shared envelope fields used by all update mappings.
func newBaseEvent(update Update) *guard.Event {
	occurredAt := update.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return &guard.Event{
		ID:         update.ID,
		OccurredAt: occurredAt,
		Platform:   guard.PlatformTelegram,
		Conversation: guard.Conversation{
			ID:    update.Chat.ID,
			Type:  update.Chat.Type,
			Title: update.Chat.Title,
		},
		Actor: guard.Actor{
			ID:          update.Actor.ID,
			Username:    update.Actor.Username,
			DisplayName: update.Actor.DisplayName,
			IsBot:       update.Actor.IsBot,
		},
		Metadata: update.Metadata,
	}
}

// decodeMessage maps Telegram message payload into neutral message content.
func decodeMessage(payload *MessagePayload) (*guard.Message, error) {
	if payload == nil {
		return nil, fmt.Errorf("missing message payload")
	}

	return &guard.Message{
		ID:        payload.ID,
		ThreadID:  payload.ThreadID,
		ReplyToID: payload.ReplyToID,
		Text:      payload.Text,
		Media:     mapMedia(payload.Media),
	}, nil
}

// decodeEdit maps Telegram edit payload into mutation semantics.
func decodeEdit(payload *EditPayload) (*guard.Mutation, error) {
	if payload == nil {
		return nil, fmt.Errorf("missing edit payload")
	}

	return &guard.Mutation{
		Type:            guard.MutationTypeEdit,
		TargetMessageID: payload.MessageID,
		After:           mapSnapshot(payload.After),
		Reason:          payload.Reason,
	}, nil
}

// decodeDelete maps Telegram delete payload into retraction mutation semantics.
func decodeDelete(payload *DeletePayload) (*guard.Mutation, error) {
	if payload == nil {
		return nil, fmt.Errorf("missing delete payload")
	}

	return &guard.Mutation{
		Type:            guard.MutationTypeRetraction,
		TargetMessageID: payload.MessageID,
		Reason:          payload.Reason,
	}, nil
}

// decodeMember maps join/leave transitions into neutral member changes.
func decodeMember(updateType UpdateType, payload *MemberPayload) (*guard.MemberChange, error) {
	if payload == nil {
		return nil, fmt.Errorf("missing member payload")
	}

	var inviter *guard.Actor
	if payload.Inviter != nil {
		mapped := mapActor(*payload.Inviter)
		inviter = &mapped
	}

	return &guard.MemberChange{
		Action:   mapMembershipKind(updateType),
		Member:   mapActor(payload.Member),
		Inviter:  inviter,
		JoinedAt: payload.JoinedAt,
	}, nil
}

// mapMembershipKind derives neutral kind from Telegram membership update type.
func mapMembershipKind(updateType UpdateType) guard.EventKind {
	if updateType == UpdateTypeMemberLeave {
		return guard.EventKindMemberLeft
	}

	return guard.EventKindMemberJoined
}

// mapMedia converts media descriptors into neutral attachment metadata.
func mapMedia(media []MediaPayload) []guard.MediaAttachment {
	if len(media) == 0 {
		return nil
	}

	mapped := make([]guard.MediaAttachment, 0, len(media))
	for _, item := range media {
		mapped = append(mapped, guard.MediaAttachment{
			ID:        item.ID,
			Kind:      item.Kind,
			MIMEType:  item.MIMEType,
			FileName:  item.FileName,
			SizeBytes: item.SizeBytes,
			Caption:   item.Caption,
		})
	}

	return mapped
}

// mapSnapshot converts immutable message snapshots for mutation payloads.
func mapSnapshot(snapshot *SnapshotPayload) *guard.MessageSnapshot {
	if snapshot == nil {
		return nil
	}

	return &guard.MessageSnapshot{
		Text:  snapshot.Text,
		Media: mapMedia(snapshot.Media),
	}
}

// mapActor converts adapter actor references to neutral actor values.
func mapActor(actor ActorRef) guard.Actor {
	return guard.Actor{
		ID:          actor.ID,
		Username:    actor.Username,
		DisplayName: actor.DisplayName,
		IsBot:       actor.IsBot,
	}
}
