package editguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"editguard/pkg/guard"
)

type fakeLedger struct {
	mu      sync.Mutex
	records map[guard.RecordKey]guard.MessageRecord

	putErr    error
	getErr    error
	deleteErr error
	purgeErr  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[guard.RecordKey]guard.MessageRecord)}
}

func (l *fakeLedger) Put(_ context.Context, record guard.MessageRecord) error {
	if l.putErr != nil {
		return l.putErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[record.Key] = record

	return nil
}

func (l *fakeLedger) Get(_ context.Context, key guard.RecordKey) (guard.MessageRecord, bool, error) {
	if l.getErr != nil {
		return guard.MessageRecord{}, false, l.getErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, found := l.records[key]

	return record, found, nil
}

func (l *fakeLedger) Delete(_ context.Context, key guard.RecordKey) error {
	if l.deleteErr != nil {
		return l.deleteErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, key)

	return nil
}

func (l *fakeLedger) PurgeOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	if l.purgeErr != nil {
		return 0, l.purgeErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, record := range l.records {
		if record.ObservedAt.Before(cutoff) {
			delete(l.records, key)
			removed++
		}
	}

	return removed, nil
}

func (l *fakeLedger) contains(key guard.RecordKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, found := l.records[key]

	return found
}

func (l *fakeLedger) record(key guard.RecordKey) (guard.MessageRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, found := l.records[key]

	return record, found
}

type captureDispatcher struct {
	mu      sync.Mutex
	sent    []guard.SendMessageRequest
	deleted []guard.DeleteMessageRequest

	sendErr   error
	deleteErr error
}

func (d *captureDispatcher) SendMessage(_ context.Context, request guard.SendMessageRequest) (*guard.OutboundMessage, error) {
	if d.sendErr != nil {
		return nil, d.sendErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, request)

	return &guard.OutboundMessage{ID: fmt.Sprintf("out-%d", len(d.sent)), Target: request.Target}, nil
}

func (d *captureDispatcher) DeleteMessage(_ context.Context, request guard.DeleteMessageRequest) error {
	if d.deleteErr != nil {
		return d.deleteErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, request)

	return nil
}

func (d *captureDispatcher) sentRequests() []guard.SendMessageRequest {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]guard.SendMessageRequest(nil), d.sent...)
}

func (d *captureDispatcher) deletedRequests() []guard.DeleteMessageRequest {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]guard.DeleteMessageRequest(nil), d.deleted...)
}

type membershipStub struct {
	members map[string]guard.ChatMember
	err     error
}

func (s *membershipStub) ResolveMember(_ context.Context, _ guard.Conversation, userID string) (guard.ChatMember, error) {
	if s.err != nil {
		return guard.ChatMember{}, s.err
	}
	member, found := s.members[userID]
	if !found {
		return guard.ChatMember{Role: guard.MemberRoleMember}, nil
	}

	return member, nil
}

type selfStub struct {
	actor guard.Actor
	err   error
}

func (s *selfStub) Self(context.Context) (guard.Actor, error) {
	if s.err != nil {
		return guard.Actor{}, s.err
	}

	return s.actor, nil
}

type moderatorFixture struct {
	ledger     *fakeLedger
	dispatcher *captureDispatcher
	membership *membershipStub
	self       *selfStub
	moderator  *Moderator
}

func newModeratorFixture(t *testing.T) *moderatorFixture {
	t.Helper()

	ledger := newFakeLedger()
	dispatcher := &captureDispatcher{}
	membership := &membershipStub{members: map[string]guard.ChatMember{
		"admin": {Role: guard.MemberRoleAdmin, CanDeleteMessages: true},
		"owner": {Role: guard.MemberRoleOwner, CanDeleteMessages: true},
	}}
	self := &selfStub{actor: guard.Actor{ID: "1000", Username: "editguardbot", IsBot: true}}

	oracle, err := NewPrivilegeOracle(membership)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	moderator, err := NewModerator(ledger, oracle, dispatcher, self, slog.Default())
	if err != nil {
		t.Fatalf("new moderator: %v", err)
	}

	return &moderatorFixture{
		ledger:     ledger,
		dispatcher: dispatcher,
		membership: membership,
		self:       self,
		moderator:  moderator,
	}
}

func createdEvent(messageID, actorID, text string) *guard.Event {
	return &guard.Event{
		ID:           "created-" + messageID,
		Kind:         guard.EventKindMessageCreated,
		OccurredAt:   time.Unix(1000, 0).UTC(),
		Platform:     guard.PlatformTelegram,
		Conversation: guard.Conversation{ID: "42", Type: guard.ConversationTypeGroup},
		Actor:        guard.Actor{ID: actorID, DisplayName: "Actor " + actorID},
		Message:      &guard.Message{ID: messageID, Text: text},
	}
}

func editedEvent(messageID, actorID, text string) *guard.Event {
	return &guard.Event{
		ID:           "edited-" + messageID,
		Kind:         guard.EventKindMessageEdited,
		OccurredAt:   time.Unix(1010, 0).UTC(),
		Platform:     guard.PlatformTelegram,
		Conversation: guard.Conversation{ID: "42", Type: guard.ConversationTypeGroup},
		Actor:        guard.Actor{ID: actorID, DisplayName: "Actor " + actorID},
		Mutation: &guard.Mutation{
			Type:            guard.MutationTypeEdit,
			TargetMessageID: messageID,
			After:           &guard.MessageSnapshot{Text: text},
		},
	}
}

func retractedEvent(conversationID, messageID string) *guard.Event {
	return &guard.Event{
		ID:           "retracted-" + messageID,
		Kind:         guard.EventKindMessageRetracted,
		OccurredAt:   time.Unix(1020, 0).UTC(),
		Platform:     guard.PlatformTelegram,
		Conversation: guard.Conversation{ID: conversationID, Type: guard.ConversationTypeGroup},
		Mutation: &guard.Mutation{
			Type:            guard.MutationTypeRetraction,
			TargetMessageID: messageID,
		},
	}
}

func TestModeratorTracksCreatedMessages(t *testing.T) {
	t.Parallel()

	fixture := newModeratorFixture(t)
	ctx := context.Background()

	if err := fixture.moderator.RecordCreated(ctx, createdEvent("100", "7", "hello")); err != nil {
		t.Fatalf("record created: %v", err)
	}

	key := guard.RecordKey{ConversationID: "42", MessageID: "100"}
	record, found := fixture.ledger.record(key)
	if !found {
		t.Fatal("created message was not tracked")
	}
	if record.AuthorID != "7" {
		t.Fatalf("author = %s, want 7", record.AuthorID)
	}
	if record.Signature.Text != "hello" {
		t.Fatalf("signature text = %q, want hello", record.Signature.Text)
	}
}

func TestModeratorIgnoresUntrackedEdit(t *testing.T) {
	t.Parallel()

	fixture := newModeratorFixture(t)
	ctx := context.Background()

	if err := fixture.moderator.HandleEdited(ctx, editedEvent("100", "7", "changed")); err != nil {
		t.Fatalf("handle edited: %v", err)
	}
	if got := fixture.dispatcher.deletedRequests(); len(got) != 0 {
		t.Fatalf("deletes = %d, want 0", len(got))
	}
	if got := fixture.dispatcher.sentRequests(); len(got) != 0 {
		t.Fatalf("sends = %d, want 0", len(got))
	}
}

func TestModeratorIgnoresContentNeutralEdit(t *testing.T) {
	t.Parallel()

	fixture := newModeratorFixture(t)
	ctx := context.Background()

	if err := fixture.moderator.RecordCreated(ctx, createdEvent("100", "7", "hello")); err != nil {
		t.Fatalf("record created: %v", err)
	}
	if err := fixture.moderator.HandleEdited(ctx, editedEvent("100", "7", "hello")); err != nil {
		t.Fatalf("handle edited: %v", err)
	}

	if got := fixture.dispatcher.deletedRequests(); len(got) != 0 {
		t.Fatalf("deletes = %d, want 0", len(got))
	}
	key := guard.RecordKey{ConversationID: "42", MessageID: "100"}
	if !fixture.ledger.contains(key) {
		t.Fatal("record removed for a content-neutral edit")
	}
}

func TestModeratorRemovesNonExemptEdit(t *testing.T) {
	t.Parallel()

	fixture := newModeratorFixture(t)
	ctx := context.Background()

	if err := fixture.moderator.RecordCreated(ctx, createdEvent("100", "7", "hello")); err != nil {
		t.Fatalf("record created: %v", err)
	}
	if err := fixture.moderator.HandleEdited(ctx, editedEvent("100", "7", "changed")); err != nil {
		t.Fatalf("handle edited: %v", err)
	}

	deletes := fixture.dispatcher.deletedRequests()
	if len(deletes) != 1 {
		t.Fatalf("deletes = %d, want 1", len(deletes))
	}
	if deletes[0].MessageID != "100" || !deletes[0].Revoke {
		t.Fatalf("delete request = %+v, want revoke of message 100", deletes[0])
	}

	sends := fixture.dispatcher.sentRequests()
	if len(sends) != 1 {
		t.Fatalf("sends = %d, want exactly one notification", len(sends))
	}
	wantBody := fmt.Sprintf(notificationBodyFormat, "Actor 7")
	if sends[0].Text != wantBody {
		t.Fatalf("notification = %q, want %q", sends[0].Text, wantBody)
	}
	if len(sends[0].Buttons) != 1 || sends[0].Buttons[0].URL != "https://t.me/editguardbot?startgroup=true" {
		t.Fatalf("buttons = %+v, want invite button", sends[0].Buttons)
	}

	key := guard.RecordKey{ConversationID: "42", MessageID: "100"}
	if fixture.ledger.contains(key) {
		t.Fatal("record kept after successful moderation")
	}
}

func TestModeratorOverwritesExemptEdit(t *testing.T) {
	t.Parallel()

	fixture := newModeratorFixture(t)
	ctx := context.Background()

	if err := fixture.moderator.RecordCreated(ctx, createdEvent("100", "admin", "hello")); err != nil {
		t.Fatalf("record created: %v", err)
	}
	if err := fixture.moderator.HandleEdited(ctx, editedEvent("100", "admin", "changed")); err != nil {
		t.Fatalf("handle edited: %v", err)
	}

	if got := fixture.dispatcher.deletedRequests(); len(got) != 0 {
		t.Fatalf("deletes = %d, want 0 for exempt editor", len(got))
	}
	if got := fixture.dispatcher.sentRequests(); len(got) != 0 {
		t.Fatalf("sends = %d, want 0 for exempt editor", len(got))
	}

	key := guard.RecordKey{ConversationID: "42", MessageID: "100"}
	record, found := fixture.ledger.record(key)
	if !found {
		t.Fatal("record missing after exempt edit")
	}
	if record.Signature.Text != "changed" {
		t.Fatalf("signature text = %q, want updated signature", record.Signature.Text)
	}
}

func TestModeratorPermissionDeniedKeepsRecordSilently(t *testing.T) {
	t.Parallel()

	fixture := newModeratorFixture(t)
	fixture.dispatcher.deleteErr = &guard.OutboundError{
		Operation: guard.OutboundOperationDeleteMessage,
		Kind:      guard.OutboundErrorKindPermissionDenied,
		Platform:  guard.PlatformTelegram,
	}
	ctx := context.Background()

	if err := fixture.moderator.RecordCreated(ctx, createdEvent("100", "7", "hello")); err != nil {
		t.Fatalf("record created: %v", err)
	}
	if err := fixture.moderator.HandleEdited(ctx, editedEvent("100", "7", "changed")); err != nil {
		t.Fatalf("handle edited: %v", err)
	}

	if got := fixture.dispatcher.sentRequests(); len(got) != 0 {
		t.Fatalf("sends = %d, want 0 when delete permission is missing", len(got))
	}
	key := guard.RecordKey{ConversationID: "42", MessageID: "100"}
	if !fixture.ledger.contains(key) {
		t.Fatal("record dropped although the message was not removed")
	}
}

func TestModeratorNotFoundSkipsNotification(t *testing.T) {
	t.Parallel()

	fixture := newModeratorFixture(t)
	fixture.dispatcher.deleteErr = &guard.OutboundError{
		Operation: guard.OutboundOperationDeleteMessage,
		Kind:      guard.OutboundErrorKindNotFound,
		Platform:  guard.PlatformTelegram,
	}
	ctx := context.Background()

	if err := fixture.moderator.RecordCreated(ctx, createdEvent("100", "7", "hello")); err != nil {
		t.Fatalf("record created: %v", err)
	}
	if err := fixture.moderator.HandleEdited(ctx, editedEvent("100", "7", "changed")); err != nil {
		t.Fatalf("handle edited: %v", err)
	}

	if got := fixture.dispatcher.sentRequests(); len(got) != 0 {
		t.Fatalf("sends = %d, want 0 for an already-deleted message", len(got))
	}
	key := guard.RecordKey{ConversationID: "42", MessageID: "100"}
	if fixture.ledger.contains(key) {
		t.Fatal("record kept for a message that no longer exists")
	}
}

func TestModeratorTransientDeleteFailureKeepsRecord(t *testing.T) {
	t.Parallel()

	fixture := newModeratorFixture(t)
	fixture.dispatcher.deleteErr = &guard.OutboundError{
		Operation: guard.OutboundOperationDeleteMessage,
		Kind:      guard.OutboundErrorKindTemporary,
		Platform:  guard.PlatformTelegram,
		Cause:     errors.New("timeout"),
	}
	ctx := context.Background()

	if err := fixture.moderator.RecordCreated(ctx, createdEvent("100", "7", "hello")); err != nil {
		t.Fatalf("record created: %v", err)
	}
	if err := fixture.moderator.HandleEdited(ctx, editedEvent("100", "7", "changed")); err == nil {
		t.Fatal("expected transient delete failure to surface")
	}

	key := guard.RecordKey{ConversationID: "42", MessageID: "100"}
	if !fixture.ledger.contains(key) {
		t.Fatal("record dropped after a failed removal")
	}
}

func TestModeratorPrivilegeLookupFailureModerates(t *testing.T) {
	t.Parallel()

	fixture := newModeratorFixture(t)
	fixture.membership.err = errors.New("participant lookup failed")
	ctx := context.Background()

	if err := fixture.moderator.RecordCreated(ctx, createdEvent("100", "admin", "hello")); err != nil {
		t.Fatalf("record created: %v", err)
	}
	if err := fixture.moderator.HandleEdited(ctx, editedEvent("100", "admin", "changed")); err != nil {
		t.Fatalf("handle edited: %v", err)
	}

	if got := fixture.dispatcher.deletedRequests(); len(got) != 1 {
		t.Fatalf("deletes = %d, want 1 when privilege is unknown", len(got))
	}
}

func TestModeratorLedgerReadFailurePassesEdit(t *testing.T) {
	t.Parallel()

	fixture := newModeratorFixture(t)
	fixture.ledger.getErr = errors.New("storage unavailable")
	ctx := context.Background()

	if err := fixture.moderator.HandleEdited(ctx, editedEvent("100", "7", "changed")); err != nil {
		t.Fatalf("handle edited: %v", err)
	}
	if got := fixture.dispatcher.deletedRequests(); len(got) != 0 {
		t.Fatalf("deletes = %d, want 0 when the ledger cannot be read", len(got))
	}
}

func TestModeratorNotificationWithoutUsernameOmitsButton(t *testing.T) {
	t.Parallel()

	fixture := newModeratorFixture(t)
	fixture.self.actor = guard.Actor{ID: "1000", IsBot: true}
	ctx := context.Background()

	if err := fixture.moderator.RecordCreated(ctx, createdEvent("100", "7", "hello")); err != nil {
		t.Fatalf("record created: %v", err)
	}
	if err := fixture.moderator.HandleEdited(ctx, editedEvent("100", "7", "changed")); err != nil {
		t.Fatalf("handle edited: %v", err)
	}

	sends := fixture.dispatcher.sentRequests()
	if len(sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(sends))
	}
	if len(sends[0].Buttons) != 0 {
		t.Fatalf("buttons = %+v, want none without a username", sends[0].Buttons)
	}
}

func TestModeratorRetractionClearsRecord(t *testing.T) {
	t.Parallel()

	fixture := newModeratorFixture(t)
	ctx := context.Background()

	if err := fixture.moderator.RecordCreated(ctx, createdEvent("100", "7", "hello")); err != nil {
		t.Fatalf("record created: %v", err)
	}
	if err := fixture.moderator.HandleRetracted(ctx, retractedEvent("42", "100")); err != nil {
		t.Fatalf("handle retracted: %v", err)
	}

	key := guard.RecordKey{ConversationID: "42", MessageID: "100"}
	if fixture.ledger.contains(key) {
		t.Fatal("record kept after upstream deletion")
	}
}

func TestModeratorRetractionWithoutConversationIsIgnored(t *testing.T) {
	t.Parallel()

	fixture := newModeratorFixture(t)
	ctx := context.Background()

	if err := fixture.moderator.HandleRetracted(ctx, retractedEvent("", "100")); err != nil {
		t.Fatalf("handle retracted: %v", err)
	}
}
