package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"editguard/pkg/guard"
)

type fakeOutboundRPC struct {
	sentPeers    []tg.InputPeerClass
	sentRequests []guard.SendMessageRequest
	sendErr      error
	nextID       int

	deletedPeers []tg.InputPeerClass
	deletedIDs   []int
	revokes      []bool
	deleteErr    error
}

func (r *fakeOutboundRPC) SendText(
	_ context.Context,
	peer tg.InputPeerClass,
	request guard.SendMessageRequest,
) (int, error) {
	if r.sendErr != nil {
		return 0, r.sendErr
	}
	r.sentPeers = append(r.sentPeers, peer)
	r.sentRequests = append(r.sentRequests, request)
	r.nextID++

	return r.nextID, nil
}

func (r *fakeOutboundRPC) DeleteMessage(
	_ context.Context,
	peer tg.InputPeerClass,
	messageID int,
	revoke bool,
) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.deletedPeers = append(r.deletedPeers, peer)
	r.deletedIDs = append(r.deletedIDs, messageID)
	r.revokes = append(r.revokes, revoke)

	return nil
}

func newOutboundFixture(t *testing.T) (*OutboundDispatcher, *fakeOutboundRPC, *PeerCache) {
	t.Helper()

	rpc := &fakeOutboundRPC{}
	peers := NewPeerCache()
	peers.RememberConversation(
		ChatRef{ID: "42", Type: guard.ConversationTypeGroup},
		&tg.InputPeerChannel{ChannelID: 42, AccessHash: 777},
	)

	dispatcher, err := newOutboundDispatcherWithRPC(rpc, peers)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	return dispatcher, rpc, peers
}

func groupSendRequest(text string) guard.SendMessageRequest {
	return guard.SendMessageRequest{
		Target: guard.OutboundTarget{
			Conversation: guard.Conversation{ID: "42", Type: guard.ConversationTypeGroup},
		},
		Text: text,
	}
}

func TestOutboundDispatcherSendMessage(t *testing.T) {
	t.Parallel()

	dispatcher, rpc, _ := newOutboundFixture(t)
	ctx := context.Background()

	sent, err := dispatcher.SendMessage(ctx, groupSendRequest("hello"))
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if sent.ID != "1" {
		t.Fatalf("message id = %s, want 1", sent.ID)
	}
	if len(rpc.sentPeers) != 1 {
		t.Fatalf("rpc sends = %d, want 1", len(rpc.sentPeers))
	}
	if _, ok := rpc.sentPeers[0].(*tg.InputPeerChannel); !ok {
		t.Fatalf("peer = %+v, want resolved channel peer", rpc.sentPeers[0])
	}
}

func TestOutboundDispatcherSendValidation(t *testing.T) {
	t.Parallel()

	dispatcher, rpc, _ := newOutboundFixture(t)
	ctx := context.Background()

	if _, err := dispatcher.SendMessage(ctx, groupSendRequest("")); !errors.Is(err, guard.ErrInvalidOutboundRequest) {
		t.Fatalf("error = %v, want ErrInvalidOutboundRequest", err)
	}
	if len(rpc.sentPeers) != 0 {
		t.Fatal("invalid request must not reach the RPC layer")
	}
}

func TestOutboundDispatcherSendUnknownPeer(t *testing.T) {
	t.Parallel()

	dispatcher, _, _ := newOutboundFixture(t)
	ctx := context.Background()

	request := groupSendRequest("hello")
	request.Target.Conversation.ID = "999"
	if _, err := dispatcher.SendMessage(ctx, request); err == nil {
		t.Fatal("expected unresolved peer to fail")
	}
}

func TestOutboundDispatcherSendErrorClassification(t *testing.T) {
	t.Parallel()

	dispatcher, rpc, _ := newOutboundFixture(t)
	rpc.sendErr = tgerr.New(403, "CHAT_WRITE_FORBIDDEN")
	ctx := context.Background()

	_, err := dispatcher.SendMessage(ctx, groupSendRequest("hello"))
	if !guard.IsPermissionDenied(err) {
		t.Fatalf("error = %v, want permission denied classification", err)
	}
}

func TestOutboundDispatcherDeleteMessage(t *testing.T) {
	t.Parallel()

	dispatcher, rpc, _ := newOutboundFixture(t)
	ctx := context.Background()

	err := dispatcher.DeleteMessage(ctx, guard.DeleteMessageRequest{
		Target: guard.OutboundTarget{
			Conversation: guard.Conversation{ID: "42", Type: guard.ConversationTypeGroup},
		},
		MessageID: "100",
		Revoke:    true,
	})
	if err != nil {
		t.Fatalf("delete message: %v", err)
	}

	if len(rpc.deletedIDs) != 1 || rpc.deletedIDs[0] != 100 {
		t.Fatalf("deleted ids = %v, want [100]", rpc.deletedIDs)
	}
	if !rpc.revokes[0] {
		t.Fatal("revoke flag not forwarded")
	}
}

func TestOutboundDispatcherDeleteInvalidMessageID(t *testing.T) {
	t.Parallel()

	dispatcher, _, _ := newOutboundFixture(t)
	ctx := context.Background()

	err := dispatcher.DeleteMessage(ctx, guard.DeleteMessageRequest{
		Target: guard.OutboundTarget{
			Conversation: guard.Conversation{ID: "42", Type: guard.ConversationTypeGroup},
		},
		MessageID: "not-a-number",
	})
	if !errors.Is(err, guard.ErrInvalidOutboundRequest) {
		t.Fatalf("error = %v, want ErrInvalidOutboundRequest", err)
	}
}

func TestOutboundDispatcherDeleteErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		rpcErr    error
		checkKind func(error) bool
		kindLabel string
	}{
		{
			name:      "delete forbidden",
			rpcErr:    tgerr.New(403, "MESSAGE_DELETE_FORBIDDEN"),
			checkKind: guard.IsPermissionDenied,
			kindLabel: "permission denied",
		},
		{
			name:      "message gone",
			rpcErr:    tgerr.New(400, "MESSAGE_ID_INVALID"),
			checkKind: guard.IsNotFound,
			kindLabel: "not found",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			dispatcher, rpc, _ := newOutboundFixture(t)
			rpc.deleteErr = testCase.rpcErr
			ctx := context.Background()

			err := dispatcher.DeleteMessage(ctx, guard.DeleteMessageRequest{
				Target: guard.OutboundTarget{
					Conversation: guard.Conversation{ID: "42", Type: guard.ConversationTypeGroup},
				},
				MessageID: "100",
				Revoke:    true,
			})
			if !testCase.checkKind(err) {
				t.Fatalf("error = %v, want %s classification", err, testCase.kindLabel)
			}
		})
	}
}

func TestMapOutboundButtons(t *testing.T) {
	t.Parallel()

	if markup := mapOutboundButtons(nil); markup != nil {
		t.Fatalf("markup = %+v, want nil without buttons", markup)
	}

	markup := mapOutboundButtons([]guard.MessageButton{
		{Label: "Add me to your group", URL: "https://t.me/editguardbot?startgroup=true"},
	})
	inline, ok := markup.(*tg.ReplyInlineMarkup)
	if !ok {
		t.Fatalf("markup = %T, want reply inline markup", markup)
	}
	if len(inline.Rows) != 1 || len(inline.Rows[0].Buttons) != 1 {
		t.Fatalf("rows = %+v, want a single row with one button", inline.Rows)
	}
	urlButton, ok := inline.Rows[0].Buttons[0].(*tg.KeyboardButtonURL)
	if !ok {
		t.Fatalf("button = %T, want URL button", inline.Rows[0].Buttons[0])
	}
	if urlButton.Text != "Add me to your group" || urlButton.URL != "https://t.me/editguardbot?startgroup=true" {
		t.Fatalf("button = %+v, want invite button", urlButton)
	}
}
