package telegram

import (
	"testing"

	"github.com/gotd/td/tg"

	"editguard/pkg/guard"
)

func TestPeerCacheRememberConversation(t *testing.T) {
	t.Parallel()

	cache := NewPeerCache()
	cache.RememberConversation(
		ChatRef{ID: "55", Type: guard.ConversationTypeGroup},
		&tg.InputPeerChat{ChatID: 55},
	)

	peer, err := cache.Resolve(guard.Conversation{ID: "55", Type: guard.ConversationTypeGroup})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	chatPeer, ok := peer.(*tg.InputPeerChat)
	if !ok || chatPeer.ChatID != 55 {
		t.Fatalf("peer = %+v, want input peer chat 55", peer)
	}
}

func TestPeerCacheMegagroupFallback(t *testing.T) {
	t.Parallel()

	cache := NewPeerCache()
	// Megagroups are stored under "group" but their outbound peer is a channel peer.
	cache.RememberConversation(
		ChatRef{ID: "42", Type: guard.ConversationTypeGroup},
		&tg.InputPeerChannel{ChannelID: 42, AccessHash: 777},
	)

	for _, conversationType := range []guard.ConversationType{
		guard.ConversationTypeGroup,
		guard.ConversationTypeChannel,
	} {
		peer, err := cache.Resolve(guard.Conversation{ID: "42", Type: conversationType})
		if err != nil {
			t.Fatalf("resolve as %s: %v", conversationType, err)
		}
		channelPeer, ok := peer.(*tg.InputPeerChannel)
		if !ok || channelPeer.ChannelID != 42 || channelPeer.AccessHash != 777 {
			t.Fatalf("peer as %s = %+v, want channel peer", conversationType, peer)
		}
	}
}

func TestPeerCacheRememberEnvelope(t *testing.T) {
	t.Parallel()

	user := testUser(7, "Alice", "alice")
	user.AccessHash = 555
	envelope := testEnvelope(
		&tg.UpdateNewMessage{},
		[]tg.UserClass{user},
		[]tg.ChatClass{testMegagroup(42, "Test Group")},
	)

	cache := NewPeerCache()
	cache.RememberEnvelope(envelope)

	peer, err := cache.Resolve(guard.Conversation{ID: "7", Type: guard.ConversationTypePrivate})
	if err != nil {
		t.Fatalf("resolve private peer: %v", err)
	}
	if _, ok := peer.(*tg.InputPeerUser); !ok {
		t.Fatalf("peer = %+v, want input peer user", peer)
	}

	inputUser, err := cache.ResolveUser("7")
	if err != nil {
		t.Fatalf("resolve user: %v", err)
	}
	if inputUser.UserID != 7 || inputUser.AccessHash != 555 {
		t.Fatalf("input user = %+v, want user 7 with access hash", inputUser)
	}

	if _, err := cache.Resolve(guard.Conversation{ID: "42", Type: guard.ConversationTypeGroup}); err != nil {
		t.Fatalf("resolve megagroup: %v", err)
	}
}

func TestPeerCacheResolveMisses(t *testing.T) {
	t.Parallel()

	cache := NewPeerCache()
	if _, err := cache.Resolve(guard.Conversation{ID: "42", Type: guard.ConversationTypeGroup}); err == nil {
		t.Fatal("expected miss for unknown conversation")
	}
	if _, err := cache.Resolve(guard.Conversation{}); err == nil {
		t.Fatal("expected error for empty conversation")
	}
	if _, err := cache.ResolveUser("7"); err == nil {
		t.Fatal("expected miss for unknown user")
	}
	if _, err := cache.ResolveUser(""); err == nil {
		t.Fatal("expected error for empty user ID")
	}
}

func TestPeerCacheReturnsClones(t *testing.T) {
	t.Parallel()

	cache := NewPeerCache()
	cache.RememberConversation(
		ChatRef{ID: "42", Type: guard.ConversationTypeChannel},
		&tg.InputPeerChannel{ChannelID: 42, AccessHash: 777},
	)

	first, err := cache.Resolve(guard.Conversation{ID: "42", Type: guard.ConversationTypeChannel})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	first.(*tg.InputPeerChannel).AccessHash = 0

	second, err := cache.Resolve(guard.Conversation{ID: "42", Type: guard.ConversationTypeChannel})
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if second.(*tg.InputPeerChannel).AccessHash != 777 {
		t.Fatal("cached peer was mutated through a resolved copy")
	}
}
