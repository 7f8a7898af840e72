package editguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"editguard/pkg/guard"
)

const notificationBodyFormat = "Removed an edited message from %s. Editing messages is not allowed here."

// Moderator applies the edit moderation state machine to inbound events.
//
// Decisions are driven entirely by the ledger signature and the privilege
// oracle. Ledger failures are fail-open: a record that cannot be read is
// treated as untracked and the edit passes. Privilege lookups are
// fail-closed: an editor whose role cannot be determined is moderated.
type Moderator struct {
	ledger     guard.Ledger
	oracle     *PrivilegeOracle
	dispatcher guard.OutboundDispatcher
	self       guard.SelfProvider
	logger     *slog.Logger
	clock      func() time.Time
}

// NewModerator creates a moderator over the given collaborators.
func NewModerator(
	ledger guard.Ledger,
	oracle *PrivilegeOracle,
	dispatcher guard.OutboundDispatcher,
	self guard.SelfProvider,
	logger *slog.Logger,
) (*Moderator, error) {
	if ledger == nil {
		return nil, fmt.Errorf("new moderator: nil ledger")
	}
	if oracle == nil {
		return nil, fmt.Errorf("new moderator: nil privilege oracle")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("new moderator: nil outbound dispatcher")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Moderator{
		ledger:     ledger,
		oracle:     oracle,
		dispatcher: dispatcher,
		self:       self,
		logger:     logger,
		clock:      time.Now,
	}, nil
}

// RecordCreated stores the content signature of a newly observed message.
func (m *Moderator) RecordCreated(ctx context.Context, event *guard.Event) error {
	if event == nil || event.Message == nil {
		return fmt.Errorf("record created: missing message payload")
	}

	key := guard.RecordKey{
		ConversationID: event.Conversation.ID,
		MessageID:      event.Message.ID,
	}
	record := guard.MessageRecord{
		Key:       key,
		AuthorID:  event.Actor.ID,
		Signature: guard.FingerprintMessage(event.Message),
		ObservedAt: func() time.Time {
			if !event.OccurredAt.IsZero() {
				return event.OccurredAt.UTC()
			}
			return m.clock().UTC()
		}(),
	}

	if err := m.ledger.Put(ctx, record); err != nil {
		m.logger.WarnContext(ctx,
			"ledger write failed, message not tracked",
			"conversation", key.ConversationID,
			"message", key.MessageID,
			"error", err,
		)
	}

	return nil
}

// HandleEdited runs the moderation decision for one edit event.
func (m *Moderator) HandleEdited(ctx context.Context, event *guard.Event) error {
	if event == nil || event.Mutation == nil {
		return fmt.Errorf("handle edited: missing mutation payload")
	}

	key := guard.RecordKey{
		ConversationID: event.Conversation.ID,
		MessageID:      event.Mutation.TargetMessageID,
	}

	record, tracked, err := m.ledger.Get(ctx, key)
	if err != nil {
		m.logger.WarnContext(ctx,
			"ledger read failed, edit passes unmoderated",
			"conversation", key.ConversationID,
			"message", key.MessageID,
			"error", err,
		)
		return nil
	}
	if !tracked {
		return nil
	}

	edited := guard.FingerprintSnapshot(event.Mutation.After)
	if record.Signature.Equal(edited) {
		return nil
	}

	exempt, err := m.oracle.IsExempt(ctx, event.Conversation, event.Actor.ID)
	if err != nil {
		m.logger.WarnContext(ctx,
			"privilege lookup failed, treating editor as non-exempt",
			"conversation", key.ConversationID,
			"editor", event.Actor.ID,
			"error", err,
		)
		exempt = false
	}
	if exempt {
		record.Signature = edited
		record.ObservedAt = m.clock().UTC()
		if err := m.ledger.Put(ctx, record); err != nil {
			m.logger.WarnContext(ctx,
				"ledger overwrite failed for exempt edit",
				"conversation", key.ConversationID,
				"message", key.MessageID,
				"error", err,
			)
		}
		return nil
	}

	return m.moderate(ctx, event, key)
}

// HandleRetracted drops ledger state for messages deleted at the platform.
func (m *Moderator) HandleRetracted(ctx context.Context, event *guard.Event) error {
	if event == nil || event.Mutation == nil {
		return fmt.Errorf("handle retracted: missing mutation payload")
	}
	key := guard.RecordKey{
		ConversationID: event.Conversation.ID,
		MessageID:      event.Mutation.TargetMessageID,
	}
	if err := key.Validate(); err != nil {
		// Plain-group delete updates do not carry a conversation ID.
		return nil
	}

	if err := m.ledger.Delete(ctx, key); err != nil {
		m.logger.WarnContext(ctx,
			"ledger delete failed for retracted message",
			"conversation", key.ConversationID,
			"message", key.MessageID,
			"error", err,
		)
	}

	return nil
}

// moderate removes the edited message and notifies the conversation.
//
// The removal happens before the ledger record is touched: a failed removal
// must leave the record intact so a later edit is still caught.
func (m *Moderator) moderate(ctx context.Context, event *guard.Event, key guard.RecordKey) error {
	target, err := guard.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("moderate edit: %w", err)
	}

	deleteErr := m.dispatcher.DeleteMessage(ctx, guard.DeleteMessageRequest{
		Target:    target,
		MessageID: key.MessageID,
		Revoke:    true,
	})
	switch {
	case deleteErr == nil:
		if err := m.notify(ctx, target, event.Actor); err != nil {
			m.logger.WarnContext(ctx,
				"moderation notification failed",
				"conversation", key.ConversationID,
				"message", key.MessageID,
				"error", err,
			)
		}
	case guard.IsPermissionDenied(deleteErr):
		// Without delete rights the bot stays silent and keeps the record,
		// so granting rights later still covers the next edit.
		m.logger.InfoContext(ctx,
			"edited message kept, delete permission missing",
			"conversation", key.ConversationID,
			"message", key.MessageID,
			"editor", event.Actor.ID,
		)
		return nil
	case guard.IsNotFound(deleteErr):
		m.logger.DebugContext(ctx,
			"edited message already gone",
			"conversation", key.ConversationID,
			"message", key.MessageID,
		)
	default:
		return fmt.Errorf("moderate edit delete message %s: %w", key.MessageID, deleteErr)
	}

	if err := m.ledger.Delete(ctx, key); err != nil {
		m.logger.WarnContext(ctx,
			"ledger delete failed after moderation",
			"conversation", key.ConversationID,
			"message", key.MessageID,
			"error", err,
		)
	}

	m.logger.InfoContext(ctx,
		"edited message removed",
		"conversation", key.ConversationID,
		"message", key.MessageID,
		"editor", event.Actor.ID,
	)

	return nil
}

func (m *Moderator) notify(ctx context.Context, target guard.OutboundTarget, editor guard.Actor) error {
	request := guard.SendMessageRequest{
		Target: target,
		Text:   fmt.Sprintf(notificationBodyFormat, editor.Label()),
	}
	if button, ok := m.inviteButton(ctx); ok {
		request.Buttons = []guard.MessageButton{button}
	}

	if _, err := m.dispatcher.SendMessage(ctx, request); err != nil {
		return fmt.Errorf("send moderation notification: %w", err)
	}

	return nil
}

func (m *Moderator) inviteButton(ctx context.Context) (guard.MessageButton, bool) {
	if m.self == nil {
		return guard.MessageButton{}, false
	}

	account, err := m.self.Self(ctx)
	if err != nil || account.Username == "" {
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.DebugContext(ctx, "self identity unavailable for invite button", "error", err)
		}
		return guard.MessageButton{}, false
	}

	return guard.MessageButton{
		Label: "Add me to your group",
		URL:   inviteURL(account.Username),
	}, true
}

func inviteURL(username string) string {
	return "https://t.me/" + username + "?startgroup=true"
}
