package guard

import (
	"context"
	"fmt"
	"time"
)

// ServiceMessageLedger is the canonical service registry key for the ledger.
const ServiceMessageLedger = "editguard.message_ledger"

// RecordKey identifies one tracked message. Message identifiers on Telegram
// are scoped to their conversation, so the conversation ID is part of the key.
type RecordKey struct {
	// ConversationID is the conversation that contains the message.
	ConversationID string
	// MessageID is the platform message identifier inside the conversation.
	MessageID string
}

// Validate checks that the key carries both identity components.
func (k RecordKey) Validate() error {
	if k.ConversationID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidRecord)
	}
	if k.MessageID == "" {
		return fmt.Errorf("%w: missing message id", ErrInvalidRecord)
	}

	return nil
}

// MessageRecord is the ledger entry retained for one observed message.
type MessageRecord struct {
	// Key identifies the tracked message.
	Key RecordKey
	// AuthorID identifies the original message author.
	AuthorID string
	// Signature is the content fingerprint at observation time.
	Signature Signature
	// ObservedAt is when the record was written, used for retention sweeps.
	ObservedAt time.Time
}

// Validate checks record identity and bookkeeping fields.
func (r MessageRecord) Validate() error {
	if err := r.Key.Validate(); err != nil {
		return err
	}
	if r.AuthorID == "" {
		return fmt.Errorf("%w: missing author id", ErrInvalidRecord)
	}
	if r.ObservedAt.IsZero() {
		return fmt.Errorf("%w: missing observed_at", ErrInvalidRecord)
	}

	return nil
}

// Ledger stores content signatures for observed messages.
//
// Implementations must be concurrency-safe and linearizable per key: handlers
// for different events run on multiple workers. Put overwrites silently
// (last write wins), Get reports a miss without error, and Delete of an
// absent key is a no-op.
type Ledger interface {
	// Put inserts or overwrites the record stored under record.Key.
	Put(ctx context.Context, record MessageRecord) error
	// Get returns the record for key and whether it exists.
	Get(ctx context.Context, key RecordKey) (MessageRecord, bool, error)
	// Delete removes the record for key if present.
	Delete(ctx context.Context, key RecordKey) error
	// PurgeOlderThan removes every record observed strictly before cutoff
	// and returns how many records were removed.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
