package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/gotd/td/tg"

	"editguard/pkg/guard"
)

func testEnvelope(update tg.UpdateClass, users []tg.UserClass, chats []tg.ChatClass) gotdUpdateEnvelope {
	return gotdUpdateEnvelope{
		update:      update,
		occurredAt:  time.Unix(1700000000, 0).UTC(),
		usersByID:   indexGotdUsers(users),
		chatsByID:   indexGotdChats(chats),
		updateClass: update.TypeName(),
	}
}

func testUser(id int64, firstName, username string) *tg.User {
	user := &tg.User{ID: id}
	if firstName != "" {
		user.SetFirstName(firstName)
	}
	if username != "" {
		user.SetUsername(username)
	}

	return user
}

func testMegagroup(id int64, title string) *tg.Channel {
	channel := &tg.Channel{ID: id, Title: title, Megagroup: true}
	channel.SetAccessHash(777)

	return channel
}

func TestMapNewMessageInMegagroup(t *testing.T) {
	t.Parallel()

	mapper := NewDefaultGotdUpdateMapper()
	message := &tg.Message{
		ID:      100,
		Message: "hello",
		Date:    1700000100,
		PeerID:  &tg.PeerChannel{ChannelID: 42},
		FromID:  &tg.PeerUser{UserID: 7},
	}
	envelope := testEnvelope(
		&tg.UpdateNewChannelMessage{Message: message},
		[]tg.UserClass{testUser(7, "Alice", "alice")},
		[]tg.ChatClass{testMegagroup(42, "Test Group")},
	)

	update, handled, err := mapper.Map(context.Background(), envelope)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if !handled {
		t.Fatal("update was not handled")
	}

	if update.Type != UpdateTypeMessage {
		t.Fatalf("type = %s, want message", update.Type)
	}
	if update.Chat.ID != "42" || update.Chat.Type != guard.ConversationTypeGroup {
		t.Fatalf("chat = %+v, want megagroup mapped as group", update.Chat)
	}
	if update.Chat.Title != "Test Group" {
		t.Fatalf("chat title = %q, want Test Group", update.Chat.Title)
	}
	if update.Actor.ID != "7" || update.Actor.DisplayName != "Alice" || update.Actor.Username != "alice" {
		t.Fatalf("actor = %+v, want resolved user", update.Actor)
	}
	if update.Message == nil || update.Message.ID != "100" || update.Message.Text != "hello" {
		t.Fatalf("message = %+v, want text payload", update.Message)
	}
	if update.OccurredAt != time.Unix(1700000100, 0).UTC() {
		t.Fatalf("occurred at = %v, want message date", update.OccurredAt)
	}
	if update.Metadata["gotd_update"] != envelope.updateClass {
		t.Fatalf("metadata = %v, want update class", update.Metadata)
	}
}

func TestMapEditChannelMessage(t *testing.T) {
	t.Parallel()

	mapper := NewDefaultGotdUpdateMapper()
	message := &tg.Message{
		ID:      100,
		Message: "changed",
		Date:    1700000200,
		PeerID:  &tg.PeerChannel{ChannelID: 42},
		FromID:  &tg.PeerUser{UserID: 7},
	}
	envelope := testEnvelope(
		&tg.UpdateEditChannelMessage{Message: message},
		[]tg.UserClass{testUser(7, "Alice", "")},
		[]tg.ChatClass{testMegagroup(42, "Test Group")},
	)

	update, handled, err := mapper.Map(context.Background(), envelope)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if !handled {
		t.Fatal("update was not handled")
	}

	if update.Type != UpdateTypeEdit {
		t.Fatalf("type = %s, want edit", update.Type)
	}
	if update.Edit == nil || update.Edit.MessageID != "100" {
		t.Fatalf("edit = %+v, want target message 100", update.Edit)
	}
	if update.Edit.After == nil || update.Edit.After.Text != "changed" {
		t.Fatalf("after = %+v, want edited text snapshot", update.Edit.After)
	}
}

func TestMapDeleteChannelMessages(t *testing.T) {
	t.Parallel()

	mapper := NewDefaultGotdUpdateMapper()
	envelope := testEnvelope(
		&tg.UpdateDeleteChannelMessages{ChannelID: 42, Messages: []int{100}},
		nil,
		[]tg.ChatClass{testMegagroup(42, "Test Group")},
	)

	update, handled, err := mapper.Map(context.Background(), envelope)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if !handled {
		t.Fatal("update was not handled")
	}

	if update.Type != UpdateTypeDelete {
		t.Fatalf("type = %s, want delete", update.Type)
	}
	if update.Chat.ID != "42" {
		t.Fatalf("chat = %+v, want channel 42", update.Chat)
	}
	if update.Delete == nil || update.Delete.MessageID != "100" {
		t.Fatalf("delete = %+v, want message 100", update.Delete)
	}
}

func TestMapDeleteMessagesWithoutChatContext(t *testing.T) {
	t.Parallel()

	mapper := NewDefaultGotdUpdateMapper()
	envelope := testEnvelope(&tg.UpdateDeleteMessages{Messages: []int{100}}, nil, nil)

	update, handled, err := mapper.Map(context.Background(), envelope)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if !handled {
		t.Fatal("update was not handled")
	}

	// Plain delete updates carry no chat reference.
	if update.Chat.ID != gotdUnknownConversationID {
		t.Fatalf("chat = %+v, want unknown conversation", update.Chat)
	}
	if update.Delete == nil || update.Delete.MessageID != "100" {
		t.Fatalf("delete = %+v, want message 100", update.Delete)
	}
}

func TestMapServiceMessageAddUser(t *testing.T) {
	t.Parallel()

	mapper := NewDefaultGotdUpdateMapper()
	service := &tg.MessageService{
		ID:     100,
		Date:   1700000300,
		PeerID: &tg.PeerChat{ChatID: 55},
		FromID: &tg.PeerUser{UserID: 7},
		Action: &tg.MessageActionChatAddUser{Users: []int64{9}},
	}
	envelope := testEnvelope(
		&tg.UpdateNewMessage{Message: service},
		[]tg.UserClass{testUser(7, "Alice", ""), testUser(9, "Bob", "")},
		[]tg.ChatClass{&tg.Chat{ID: 55, Title: "Basic Group"}},
	)

	update, handled, err := mapper.Map(context.Background(), envelope)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if !handled {
		t.Fatal("update was not handled")
	}

	if update.Type != UpdateTypeMemberJoin {
		t.Fatalf("type = %s, want member_join", update.Type)
	}
	if update.Member == nil || update.Member.Member.ID != "9" {
		t.Fatalf("member = %+v, want Bob", update.Member)
	}
	if update.Member.Inviter == nil || update.Member.Inviter.ID != "7" {
		t.Fatalf("inviter = %+v, want Alice", update.Member.Inviter)
	}
	if update.Chat.ID != "55" || update.Chat.Type != guard.ConversationTypeGroup {
		t.Fatalf("chat = %+v, want basic group", update.Chat)
	}
}

func TestMapUnsupportedUpdateIsSkipped(t *testing.T) {
	t.Parallel()

	mapper := NewDefaultGotdUpdateMapper()
	envelope := testEnvelope(&tg.UpdateUserTyping{UserID: 7}, nil, nil)

	_, handled, err := mapper.Map(context.Background(), envelope)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if handled {
		t.Fatal("typing update must be skipped")
	}
}

func TestMediaKindClassification(t *testing.T) {
	audioVoice := &tg.DocumentAttributeAudio{Voice: true}
	videoNote := &tg.DocumentAttributeVideo{RoundMessage: true}

	tests := []struct {
		name       string
		media      tg.MessageMediaClass
		wantNil    bool
		wantKind   guard.MediaKind
		wantNoKind bool
	}{
		{
			name: "photo",
			media: func() tg.MessageMediaClass {
				media := &tg.MessageMediaPhoto{}
				media.SetPhoto(&tg.Photo{ID: 900})
				return media
			}(),
			wantKind: guard.MediaKindPhoto,
		},
		{
			name:     "voice note",
			media:    documentMedia("audio/ogg", audioVoice),
			wantKind: guard.MediaKindVoice,
		},
		{
			name:     "audio file",
			media:    documentMedia("audio/mpeg", &tg.DocumentAttributeAudio{}),
			wantKind: guard.MediaKindAudio,
		},
		{
			name:     "video note",
			media:    documentMedia("video/mp4", videoNote),
			wantKind: guard.MediaKindVideoNote,
		},
		{
			name:     "plain video",
			media:    documentMedia("video/mp4", &tg.DocumentAttributeVideo{}),
			wantKind: guard.MediaKindVideo,
		},
		{
			name:     "sticker",
			media:    documentMedia("image/webp", &tg.DocumentAttributeSticker{}),
			wantKind: guard.MediaKindSticker,
		},
		{
			name:     "animation",
			media:    documentMedia("video/mp4", &tg.DocumentAttributeAnimated{}),
			wantKind: guard.MediaKindAnimation,
		},
		{
			name:     "generic document",
			media:    documentMedia("application/pdf"),
			wantKind: guard.MediaKindDocument,
		},
		{
			name:     "image document without attributes",
			media:    documentMedia("image/png"),
			wantKind: guard.MediaKindPhoto,
		},
		{
			name:     "location",
			media:    &tg.MessageMediaGeo{},
			wantKind: guard.MediaKindLocation,
		},
		{
			name:     "venue",
			media:    &tg.MessageMediaVenue{Title: "Cafe"},
			wantKind: guard.MediaKindVenue,
		},
		{
			name:     "contact",
			media:    &tg.MessageMediaContact{},
			wantKind: guard.MediaKindContact,
		},
		{
			name:     "poll",
			media:    &tg.MessageMediaPoll{Poll: tg.Poll{ID: 12}},
			wantKind: guard.MediaKindPoll,
		},
		{
			name:     "dice falls back to other",
			media:    &tg.MessageMediaDice{Emoticon: "🎲"},
			wantKind: guard.MediaKindOther,
		},
		{
			name:    "web page preview is not an attachment",
			media:   &tg.MessageMediaWebPage{},
			wantNil: true,
		},
		{
			name:    "empty media",
			media:   &tg.MessageMediaEmpty{},
			wantNil: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			media := mapMessageMedia(testCase.media, "caption")
			if testCase.wantNil {
				if media != nil {
					t.Fatalf("media = %+v, want nil", media)
				}
				return
			}
			if len(media) != 1 {
				t.Fatalf("media = %+v, want one attachment", media)
			}
			if media[0].Kind != testCase.wantKind {
				t.Fatalf("kind = %s, want %s", media[0].Kind, testCase.wantKind)
			}
		})
	}
}

func documentMedia(mimeType string, attributes ...tg.DocumentAttributeClass) tg.MessageMediaClass {
	media := &tg.MessageMediaDocument{}
	media.SetDocument(&tg.Document{
		ID:         901,
		MimeType:   mimeType,
		Size:       2048,
		Attributes: attributes,
	})

	return media
}

func TestMapChannelParticipantTransitions(t *testing.T) {
	tests := []struct {
		name     string
		update   *tg.UpdateChannelParticipant
		wantType UpdateType
		wantSkip bool
	}{
		{
			name: "join",
			update: func() *tg.UpdateChannelParticipant {
				update := &tg.UpdateChannelParticipant{
					ChannelID: 42,
					Date:      1700000400,
					ActorID:   7,
					UserID:    9,
				}
				update.SetNewParticipant(&tg.ChannelParticipant{UserID: 9})
				return update
			}(),
			wantType: UpdateTypeMemberJoin,
		},
		{
			name: "leave",
			update: func() *tg.UpdateChannelParticipant {
				update := &tg.UpdateChannelParticipant{
					ChannelID: 42,
					Date:      1700000400,
					ActorID:   9,
					UserID:    9,
				}
				update.SetPrevParticipant(&tg.ChannelParticipant{UserID: 9})
				return update
			}(),
			wantType: UpdateTypeMemberLeave,
		},
		{
			name: "ban counts as leave",
			update: func() *tg.UpdateChannelParticipant {
				update := &tg.UpdateChannelParticipant{
					ChannelID: 42,
					Date:      1700000400,
					ActorID:   7,
					UserID:    9,
				}
				update.SetPrevParticipant(&tg.ChannelParticipant{UserID: 9})
				update.SetNewParticipant(&tg.ChannelParticipantBanned{})
				return update
			}(),
			wantType: UpdateTypeMemberLeave,
		},
		{
			name: "promotion is not a membership change",
			update: func() *tg.UpdateChannelParticipant {
				update := &tg.UpdateChannelParticipant{
					ChannelID: 42,
					Date:      1700000400,
					ActorID:   7,
					UserID:    9,
				}
				update.SetPrevParticipant(&tg.ChannelParticipant{UserID: 9})
				update.SetNewParticipant(&tg.ChannelParticipantAdmin{UserID: 9})
				return update
			}(),
			wantSkip: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			mapper := NewDefaultGotdUpdateMapper()
			envelope := testEnvelope(
				testCase.update,
				[]tg.UserClass{testUser(7, "Alice", ""), testUser(9, "Bob", "")},
				[]tg.ChatClass{testMegagroup(42, "Test Group")},
			)

			update, handled, err := mapper.Map(context.Background(), envelope)
			if err != nil {
				t.Fatalf("map: %v", err)
			}
			if testCase.wantSkip {
				if handled {
					t.Fatalf("update = %+v, want skip", update)
				}
				return
			}
			if !handled {
				t.Fatal("update was not handled")
			}
			if update.Type != testCase.wantType {
				t.Fatalf("type = %s, want %s", update.Type, testCase.wantType)
			}
			if update.Member == nil || update.Member.Member.ID != "9" {
				t.Fatalf("member = %+v, want user 9", update.Member)
			}
		})
	}
}

func TestMapRejectsUnsupportedRawValue(t *testing.T) {
	t.Parallel()

	mapper := NewDefaultGotdUpdateMapper()
	if _, _, err := mapper.Map(context.Background(), 42); err == nil {
		t.Fatal("expected unsupported raw type to fail")
	}
}
