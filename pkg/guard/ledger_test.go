package guard

import (
	"errors"
	"testing"
	"time"
)

func TestRecordKeyValidate(t *testing.T) {
	tests := []struct {
		name    string
		key     RecordKey
		wantErr bool
	}{
		{
			name: "valid key",
			key:  RecordKey{ConversationID: "42", MessageID: "100"},
		},
		{
			name:    "missing conversation id",
			key:     RecordKey{MessageID: "100"},
			wantErr: true,
		},
		{
			name:    "missing message id",
			key:     RecordKey{ConversationID: "42"},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.key.Validate()
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidRecord) {
					t.Fatalf("error = %v, want ErrInvalidRecord", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestMessageRecordValidate(t *testing.T) {
	t.Parallel()

	valid := MessageRecord{
		Key:        RecordKey{ConversationID: "42", MessageID: "100"},
		AuthorID:   "7",
		Signature:  FingerprintMessage(&Message{Text: "hello"}),
		ObservedAt: time.Unix(1, 0).UTC(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	missingAuthor := valid
	missingAuthor.AuthorID = ""
	if err := missingAuthor.Validate(); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("error = %v, want ErrInvalidRecord", err)
	}

	missingObserved := valid
	missingObserved.ObservedAt = time.Time{}
	if err := missingObserved.Validate(); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("error = %v, want ErrInvalidRecord", err)
	}
}
