package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"editguard/pkg/guard"

	"github.com/gotd/td/tg"
)

const (
	gotdUnknownConversationID = "unknown"
	gotdUnknownActorID        = "unknown"
)

// DefaultGotdUpdateMapper maps gotd updates into adapter DTO updates.
type DefaultGotdUpdateMapper struct {
	peerCache *PeerCache
}

// GotdUpdateMapperOption mutates DefaultGotdUpdateMapper behavior.
type GotdUpdateMapperOption func(*DefaultGotdUpdateMapper)

// WithPeerCache records entity-derived peer mappings for outbound dispatch.
func WithPeerCache(cache *PeerCache) GotdUpdateMapperOption {
	return func(mapper *DefaultGotdUpdateMapper) {
		if cache != nil {
			mapper.peerCache = cache
		}
	}
}

// NewDefaultGotdUpdateMapper creates the default gotd mapper.
func NewDefaultGotdUpdateMapper(options ...GotdUpdateMapperOption) DefaultGotdUpdateMapper {
	mapper := DefaultGotdUpdateMapper{}
	for _, option := range options {
		option(&mapper)
	}

	return mapper
}

// Map converts a gotd raw update value into an adapter update.
func (m DefaultGotdUpdateMapper) Map(ctx context.Context, raw any) (Update, bool, error) {
	select {
	case <-ctx.Done():
		return Update{}, false, fmt.Errorf("map gotd update context: %w", ctx.Err())
	default:
	}

	envelope, err := normalizeGotdRaw(raw)
	if err != nil {
		return Update{}, false, fmt.Errorf("map gotd raw update: %w", err)
	}
	m.rememberEnvelope(envelope)

	switch update := envelope.update.(type) {
	case *tg.UpdateNewMessage:
		return m.mapNewMessage(update, envelope)
	case *tg.UpdateNewChannelMessage:
		return m.mapNewMessage(&tg.UpdateNewMessage{
			Message:  update.Message,
			Pts:      update.Pts,
			PtsCount: update.PtsCount,
		}, envelope)
	case *tg.UpdateEditMessage:
		return m.mapEditMessage(update.Message, envelope)
	case *tg.UpdateEditChannelMessage:
		return m.mapEditMessage(update.Message, envelope)
	case *tg.UpdateDeleteMessages:
		return m.mapDeleteMessages(update, envelope)
	case *tg.UpdateDeleteChannelMessages:
		return m.mapDeleteChannelMessages(update, envelope)
	case *tg.UpdateChatParticipantAdd:
		return m.mapChatParticipantAdd(update, envelope)
	case *tg.UpdateChatParticipantDelete:
		return m.mapChatParticipantDelete(update, envelope)
	case *tg.UpdateChatParticipant:
		return m.mapChatParticipant(update, envelope)
	case *tg.UpdateChannelParticipant:
		return m.mapChannelParticipant(update, envelope)
	default:
		return Update{}, false, nil
	}
}

func (m DefaultGotdUpdateMapper) rememberEnvelope(envelope gotdUpdateEnvelope) {
	if m.peerCache != nil {
		m.peerCache.RememberEnvelope(envelope)
	}
}

func (m DefaultGotdUpdateMapper) rememberConversationPeer(chat ChatRef, peer tg.InputPeerClass) {
	if m.peerCache != nil {
		m.peerCache.RememberConversation(chat, peer)
	}
}

func normalizeGotdRaw(raw any) (gotdUpdateEnvelope, error) {
	switch typed := raw.(type) {
	case gotdUpdateEnvelope:
		return typed, nil
	case *gotdUpdateEnvelope:
		if typed == nil {
			return gotdUpdateEnvelope{}, fmt.Errorf("nil envelope")
		}
		return *typed, nil
	case tg.UpdateClass:
		if typed == nil {
			return gotdUpdateEnvelope{}, fmt.Errorf("nil update class")
		}
		return gotdUpdateEnvelope{
			update:      typed,
			occurredAt:  time.Now().UTC(),
			updateClass: typed.TypeName(),
		}, nil
	default:
		return gotdUpdateEnvelope{}, fmt.Errorf("unsupported raw type %T", raw)
	}
}

func (m DefaultGotdUpdateMapper) mapNewMessage(
	update *tg.UpdateNewMessage,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	if update == nil {
		return Update{}, false, fmt.Errorf("map new message: nil update")
	}

	switch message := update.Message.(type) {
	case *tg.Message:
		return m.mapMessage(message, envelope)
	case *tg.MessageService:
		return m.mapServiceMessage(message, envelope)
	default:
		return Update{}, false, nil
	}
}

func (m DefaultGotdUpdateMapper) mapMessage(
	message *tg.Message,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	if message == nil {
		return Update{}, false, fmt.Errorf("map message: nil message")
	}

	chat := resolveChatFromPeer(message.PeerID, envelope)
	actor := resolveActorFromPeer(message.FromID, envelope)
	if actor.ID == gotdUnknownActorID {
		actor = resolveActorFromPeer(message.PeerID, envelope)
	}

	payload := &MessagePayload{
		ID:    strconv.Itoa(message.ID),
		Text:  message.Message,
		Media: mapMessageMedia(message.Media, message.Message),
	}
	if replyTo, ok := message.GetReplyTo(); ok {
		if header, ok := replyTo.(*tg.MessageReplyHeader); ok {
			if replyToMessageID, ok := header.GetReplyToMsgID(); ok {
				payload.ReplyToID = strconv.Itoa(replyToMessageID)
			}
			if threadID, ok := header.GetReplyToTopID(); ok {
				payload.ThreadID = strconv.Itoa(threadID)
			}
		}
	}

	occurredAt := intToTimeUTC(message.Date)
	if occurredAt.IsZero() {
		occurredAt = envelope.occurredAt
	}
	m.rememberConversationPeer(chat, resolveInputPeerFromPeer(message.PeerID, envelope))

	return Update{
		ID:         composeUpdateID(UpdateTypeMessage, chat.ID, payload.ID, occurredAt),
		Type:       UpdateTypeMessage,
		OccurredAt: occurredAt,
		Chat:       chat,
		Actor:      actor,
		Message:    payload,
		Metadata:   newGotdMetadata(envelope),
	}, true, nil
}

func (m DefaultGotdUpdateMapper) mapServiceMessage(
	message *tg.MessageService,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	if message == nil {
		return Update{}, false, fmt.Errorf("map service message: nil message")
	}
	if message.Action == nil {
		return Update{}, false, nil
	}

	chat := resolveChatFromPeer(message.PeerID, envelope)
	actor := resolveActorFromPeer(message.FromID, envelope)
	occurredAt := intToTimeUTC(message.Date)
	if occurredAt.IsZero() {
		occurredAt = envelope.occurredAt
	}
	m.rememberConversationPeer(chat, resolveInputPeerFromPeer(message.PeerID, envelope))

	switch action := message.Action.(type) {
	case *tg.MessageActionChatAddUser:
		if len(action.Users) == 0 {
			return Update{}, false, nil
		}
		member := resolveActorByUserID(action.Users[0], envelope)

		return Update{
			ID:         composeUpdateID(UpdateTypeMemberJoin, chat.ID, member.ID, occurredAt),
			Type:       UpdateTypeMemberJoin,
			OccurredAt: occurredAt,
			Chat:       chat,
			Actor:      actor,
			Member: &MemberPayload{
				Member:   member,
				Inviter:  actorPointer(actor),
				JoinedAt: occurredAt,
			},
			Metadata: newGotdMetadata(envelope),
		}, true, nil
	case *tg.MessageActionChatDeleteUser:
		member := resolveActorByUserID(action.UserID, envelope)

		return Update{
			ID:         composeUpdateID(UpdateTypeMemberLeave, chat.ID, member.ID, occurredAt),
			Type:       UpdateTypeMemberLeave,
			OccurredAt: occurredAt,
			Chat:       chat,
			Actor:      actor,
			Member: &MemberPayload{
				Member: member,
			},
			Metadata: newGotdMetadata(envelope),
		}, true, nil
	case *tg.MessageActionChatJoinedByLink:
		member := actor
		inviter := resolveActorByUserID(action.InviterID, envelope)

		return Update{
			ID:         composeUpdateID(UpdateTypeMemberJoin, chat.ID, member.ID, occurredAt),
			Type:       UpdateTypeMemberJoin,
			OccurredAt: occurredAt,
			Chat:       chat,
			Actor:      actor,
			Member: &MemberPayload{
				Member:   member,
				Inviter:  actorPointer(inviter),
				JoinedAt: occurredAt,
			},
			Metadata: newGotdMetadata(envelope),
		}, true, nil
	case *tg.MessageActionChatJoinedByRequest:
		member := actor

		return Update{
			ID:         composeUpdateID(UpdateTypeMemberJoin, chat.ID, member.ID, occurredAt),
			Type:       UpdateTypeMemberJoin,
			OccurredAt: occurredAt,
			Chat:       chat,
			Actor:      actor,
			Member: &MemberPayload{
				Member:   member,
				JoinedAt: occurredAt,
			},
			Metadata: newGotdMetadata(envelope),
		}, true, nil
	default:
		return Update{}, false, nil
	}
}

func (m DefaultGotdUpdateMapper) mapEditMessage(
	message tg.MessageClass,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	typed, ok := message.(*tg.Message)
	if !ok {
		return Update{}, false, nil
	}

	chat := resolveChatFromPeer(typed.PeerID, envelope)
	actor := resolveActorFromPeer(typed.FromID, envelope)
	if actor.ID == gotdUnknownActorID {
		actor = resolveActorFromPeer(typed.PeerID, envelope)
	}
	occurredAt := intToTimeUTC(typed.Date)
	if occurredAt.IsZero() {
		occurredAt = envelope.occurredAt
	}
	m.rememberConversationPeer(chat, resolveInputPeerFromPeer(typed.PeerID, envelope))

	return Update{
		ID:         composeUpdateID(UpdateTypeEdit, chat.ID, strconv.Itoa(typed.ID), occurredAt),
		Type:       UpdateTypeEdit,
		OccurredAt: occurredAt,
		Chat:       chat,
		Actor:      actor,
		Edit: &EditPayload{
			MessageID: strconv.Itoa(typed.ID),
			After: &SnapshotPayload{
				Text:  typed.Message,
				Media: mapMessageMedia(typed.Media, typed.Message),
			},
			Reason: "telegram_edit_update",
		},
		Metadata: newGotdMetadata(envelope),
	}, true, nil
}

func (m DefaultGotdUpdateMapper) mapDeleteMessages(
	update *tg.UpdateDeleteMessages,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	if update == nil || len(update.Messages) == 0 {
		return Update{}, false, nil
	}

	messageID := update.Messages[0]
	occurredAt := envelope.occurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Update{
		ID:         composeUpdateID(UpdateTypeDelete, gotdUnknownConversationID, strconv.Itoa(messageID), occurredAt),
		Type:       UpdateTypeDelete,
		OccurredAt: occurredAt,
		Chat: ChatRef{
			ID:   gotdUnknownConversationID,
			Type: guard.ConversationTypePrivate,
		},
		Actor: ActorRef{ID: gotdUnknownActorID},
		Delete: &DeletePayload{
			MessageID: strconv.Itoa(messageID),
			Reason:    "telegram_delete_update",
		},
		Metadata: newGotdMetadata(envelope),
	}, true, nil
}

func (m DefaultGotdUpdateMapper) mapDeleteChannelMessages(
	update *tg.UpdateDeleteChannelMessages,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	if update == nil || len(update.Messages) == 0 {
		return Update{}, false, nil
	}

	chat := resolveChatByChannelID(update.ChannelID, envelope)
	occurredAt := envelope.occurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	m.rememberConversationPeer(chat, resolveInputPeerByChannelID(update.ChannelID, envelope))

	return Update{
		ID:         composeUpdateID(UpdateTypeDelete, chat.ID, strconv.Itoa(update.Messages[0]), occurredAt),
		Type:       UpdateTypeDelete,
		OccurredAt: occurredAt,
		Chat:       chat,
		Actor:      ActorRef{ID: gotdUnknownActorID},
		Delete: &DeletePayload{
			MessageID: strconv.Itoa(update.Messages[0]),
			Reason:    "telegram_delete_channel_update",
		},
		Metadata: newGotdMetadata(envelope),
	}, true, nil
}

func (m DefaultGotdUpdateMapper) mapChatParticipantAdd(
	update *tg.UpdateChatParticipantAdd,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	if update == nil {
		return Update{}, false, fmt.Errorf("map chat participant add: nil update")
	}

	chat := resolveChatByChatID(update.ChatID, envelope)
	actor := resolveActorByUserID(update.InviterID, envelope)
	member := resolveActorByUserID(update.UserID, envelope)
	occurredAt := intToTimeUTC(update.Date)
	if occurredAt.IsZero() {
		occurredAt = envelope.occurredAt
	}
	m.rememberConversationPeer(chat, resolveInputPeerByChatID(update.ChatID))

	return Update{
		ID:         composeUpdateID(UpdateTypeMemberJoin, chat.ID, member.ID, occurredAt),
		Type:       UpdateTypeMemberJoin,
		OccurredAt: occurredAt,
		Chat:       chat,
		Actor:      actor,
		Member: &MemberPayload{
			Member:   member,
			Inviter:  actorPointer(actor),
			JoinedAt: occurredAt,
		},
		Metadata: newGotdMetadata(envelope),
	}, true, nil
}

func (m DefaultGotdUpdateMapper) mapChatParticipantDelete(
	update *tg.UpdateChatParticipantDelete,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	if update == nil {
		return Update{}, false, fmt.Errorf("map chat participant delete: nil update")
	}

	chat := resolveChatByChatID(update.ChatID, envelope)
	member := resolveActorByUserID(update.UserID, envelope)
	occurredAt := envelope.occurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	m.rememberConversationPeer(chat, resolveInputPeerByChatID(update.ChatID))

	return Update{
		ID:         composeUpdateID(UpdateTypeMemberLeave, chat.ID, member.ID, occurredAt),
		Type:       UpdateTypeMemberLeave,
		OccurredAt: occurredAt,
		Chat:       chat,
		Actor:      member,
		Member: &MemberPayload{
			Member: member,
		},
		Metadata: newGotdMetadata(envelope),
	}, true, nil
}

func (m DefaultGotdUpdateMapper) mapChatParticipant(
	update *tg.UpdateChatParticipant,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	if update == nil {
		return Update{}, false, fmt.Errorf("map chat participant: nil update")
	}

	chat := resolveChatByChatID(update.ChatID, envelope)
	actor := resolveActorByUserID(update.ActorID, envelope)
	member := resolveActorByUserID(update.UserID, envelope)
	occurredAt := intToTimeUTC(update.Date)
	if occurredAt.IsZero() {
		occurredAt = envelope.occurredAt
	}
	m.rememberConversationPeer(chat, resolveInputPeerByChatID(update.ChatID))

	_, prevExists := update.GetPrevParticipant()
	_, newExists := update.GetNewParticipant()

	if !prevExists && newExists {
		return Update{
			ID:         composeUpdateID(UpdateTypeMemberJoin, chat.ID, member.ID, occurredAt),
			Type:       UpdateTypeMemberJoin,
			OccurredAt: occurredAt,
			Chat:       chat,
			Actor:      actor,
			Member: &MemberPayload{
				Member:   member,
				Inviter:  actorPointer(actor),
				JoinedAt: occurredAt,
			},
			Metadata: newGotdMetadata(envelope),
		}, true, nil
	}

	if prevExists && !newExists {
		return Update{
			ID:         composeUpdateID(UpdateTypeMemberLeave, chat.ID, member.ID, occurredAt),
			Type:       UpdateTypeMemberLeave,
			OccurredAt: occurredAt,
			Chat:       chat,
			Actor:      actor,
			Member: &MemberPayload{
				Member: member,
			},
			Metadata: newGotdMetadata(envelope),
		}, true, nil
	}

	return Update{}, false, nil
}

func (m DefaultGotdUpdateMapper) mapChannelParticipant(
	update *tg.UpdateChannelParticipant,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	if update == nil {
		return Update{}, false, fmt.Errorf("map channel participant: nil update")
	}

	chat := resolveChatByChannelID(update.ChannelID, envelope)
	actor := resolveActorByUserID(update.ActorID, envelope)
	member := resolveActorByUserID(update.UserID, envelope)
	occurredAt := intToTimeUTC(update.Date)
	if occurredAt.IsZero() {
		occurredAt = envelope.occurredAt
	}
	m.rememberConversationPeer(chat, resolveInputPeerByChannelID(update.ChannelID, envelope))

	prevParticipant, prevExists := update.GetPrevParticipant()
	newParticipant, newExists := update.GetNewParticipant()

	oldActive := isChannelRoleActive(channelParticipantRole(prevParticipant))
	newActive := isChannelRoleActive(channelParticipantRole(newParticipant))

	switch {
	case !prevExists && newActive:
		return Update{
			ID:         composeUpdateID(UpdateTypeMemberJoin, chat.ID, member.ID, occurredAt),
			Type:       UpdateTypeMemberJoin,
			OccurredAt: occurredAt,
			Chat:       chat,
			Actor:      actor,
			Member: &MemberPayload{
				Member:   member,
				Inviter:  actorPointer(actor),
				JoinedAt: occurredAt,
			},
			Metadata: newGotdMetadata(envelope),
		}, true, nil
	case prevExists && oldActive && (!newExists || !newActive):
		return Update{
			ID:         composeUpdateID(UpdateTypeMemberLeave, chat.ID, member.ID, occurredAt),
			Type:       UpdateTypeMemberLeave,
			OccurredAt: occurredAt,
			Chat:       chat,
			Actor:      actor,
			Member: &MemberPayload{
				Member: member,
			},
			Metadata: newGotdMetadata(envelope),
		}, true, nil
	default:
		return Update{}, false, nil
	}
}

type gotdUpdateEnvelope struct {
	update      tg.UpdateClass
	occurredAt  time.Time
	usersByID   map[int64]*tg.User
	chatsByID   map[int64]gotdChatInfo
	updateClass string
}

type gotdChatInfo struct {
	title     string
	kind      guard.ConversationType
	inputPeer tg.InputPeerClass
}

func indexGotdUsers(users []tg.UserClass) map[int64]*tg.User {
	if len(users) == 0 {
		return nil
	}

	out := make(map[int64]*tg.User, len(users))
	for _, user := range users {
		if user == nil {
			continue
		}
		notEmpty, ok := user.AsNotEmpty()
		if !ok || notEmpty == nil {
			continue
		}
		out[notEmpty.ID] = notEmpty
	}

	return out
}

func indexGotdChats(chats []tg.ChatClass) map[int64]gotdChatInfo {
	if len(chats) == 0 {
		return nil
	}

	out := make(map[int64]gotdChatInfo, len(chats))
	for _, chat := range chats {
		if chat == nil {
			continue
		}

		switch typed := chat.(type) {
		case *tg.Chat:
			out[typed.ID] = gotdChatInfo{
				title:     typed.Title,
				kind:      guard.ConversationTypeGroup,
				inputPeer: typed.AsInputPeer(),
			}
		case *tg.ChatForbidden:
			out[typed.ID] = gotdChatInfo{
				title: typed.Title,
				kind:  guard.ConversationTypeGroup,
				inputPeer: &tg.InputPeerChat{
					ChatID: typed.ID,
				},
			}
		case *tg.Channel:
			kind := guard.ConversationTypeChannel
			if typed.Megagroup {
				kind = guard.ConversationTypeGroup
			}
			out[typed.ID] = gotdChatInfo{
				title:     typed.Title,
				kind:      kind,
				inputPeer: typed.AsInputPeer(),
			}
		case *tg.ChannelForbidden:
			kind := guard.ConversationTypeChannel
			if typed.Megagroup {
				kind = guard.ConversationTypeGroup
			}
			out[typed.ID] = gotdChatInfo{
				title: typed.Title,
				kind:  kind,
				inputPeer: &tg.InputPeerChannel{
					ChannelID:  typed.ID,
					AccessHash: typed.AccessHash,
				},
			}
		}
	}

	return out
}

func resolveChatFromPeer(peer tg.PeerClass, envelope gotdUpdateEnvelope) ChatRef {
	switch typed := peer.(type) {
	case *tg.PeerUser:
		actor := resolveActorByUserID(typed.UserID, envelope)
		return ChatRef{
			ID:    actor.ID,
			Type:  guard.ConversationTypePrivate,
			Title: actor.DisplayName,
		}
	case *tg.PeerChat:
		return resolveChatByChatID(typed.ChatID, envelope)
	case *tg.PeerChannel:
		return resolveChatByChannelID(typed.ChannelID, envelope)
	default:
		return ChatRef{
			ID:   gotdUnknownConversationID,
			Type: guard.ConversationTypePrivate,
		}
	}
}

func resolveChatByChatID(chatID int64, envelope gotdUpdateEnvelope) ChatRef {
	id := strconv.FormatInt(chatID, 10)
	info, ok := envelope.chatsByID[chatID]
	if !ok {
		return ChatRef{
			ID:   id,
			Type: guard.ConversationTypeGroup,
		}
	}

	return ChatRef{
		ID:    id,
		Title: info.title,
		Type:  info.kind,
	}
}

func resolveChatByChannelID(channelID int64, envelope gotdUpdateEnvelope) ChatRef {
	id := strconv.FormatInt(channelID, 10)
	info, ok := envelope.chatsByID[channelID]
	if !ok {
		return ChatRef{
			ID:   id,
			Type: guard.ConversationTypeChannel,
		}
	}

	return ChatRef{
		ID:    id,
		Title: info.title,
		Type:  info.kind,
	}
}

func resolveActorFromPeer(peer tg.PeerClass, envelope gotdUpdateEnvelope) ActorRef {
	switch typed := peer.(type) {
	case *tg.PeerUser:
		return resolveActorByUserID(typed.UserID, envelope)
	case *tg.PeerChat:
		return ActorRef{
			ID:          strconv.FormatInt(typed.ChatID, 10),
			DisplayName: lookupChatTitle(typed.ChatID, envelope),
			IsBot:       false,
		}
	case *tg.PeerChannel:
		return ActorRef{
			ID:          strconv.FormatInt(typed.ChannelID, 10),
			DisplayName: lookupChatTitle(typed.ChannelID, envelope),
			IsBot:       false,
		}
	default:
		return ActorRef{ID: gotdUnknownActorID}
	}
}

func resolveActorByUserID(userID int64, envelope gotdUpdateEnvelope) ActorRef {
	id := strconv.FormatInt(userID, 10)
	if userID == 0 {
		return ActorRef{ID: gotdUnknownActorID}
	}

	user, ok := envelope.usersByID[userID]
	if !ok || user == nil {
		return ActorRef{ID: id}
	}

	username, _ := user.GetUsername()
	firstName, _ := user.GetFirstName()
	lastName, _ := user.GetLastName()

	displayName := strings.TrimSpace(strings.TrimSpace(firstName + " " + lastName))
	if displayName == "" {
		displayName = username
	}
	if displayName == "" {
		displayName = id
	}

	return ActorRef{
		ID:          id,
		Username:    username,
		DisplayName: displayName,
		IsBot:       user.Bot,
	}
}

func resolveInputPeerFromPeer(peer tg.PeerClass, envelope gotdUpdateEnvelope) tg.InputPeerClass {
	switch typed := peer.(type) {
	case *tg.PeerUser:
		return resolveInputPeerByUserID(typed.UserID, envelope)
	case *tg.PeerChat:
		return resolveInputPeerByChatID(typed.ChatID)
	case *tg.PeerChannel:
		return resolveInputPeerByChannelID(typed.ChannelID, envelope)
	default:
		return nil
	}
}

func resolveInputPeerByUserID(userID int64, envelope gotdUpdateEnvelope) tg.InputPeerClass {
	if userID == 0 {
		return nil
	}

	user, ok := envelope.usersByID[userID]
	if !ok || user == nil {
		return nil
	}

	return user.AsInputPeer()
}

func resolveInputPeerByChatID(chatID int64) tg.InputPeerClass {
	if chatID == 0 {
		return nil
	}

	return &tg.InputPeerChat{ChatID: chatID}
}

func resolveInputPeerByChannelID(channelID int64, envelope gotdUpdateEnvelope) tg.InputPeerClass {
	if channelID == 0 {
		return nil
	}

	info, ok := envelope.chatsByID[channelID]
	if !ok || info.inputPeer == nil {
		return nil
	}

	return cloneInputPeer(info.inputPeer)
}

func lookupChatTitle(chatID int64, envelope gotdUpdateEnvelope) string {
	info, ok := envelope.chatsByID[chatID]
	if !ok {
		return ""
	}
	return info.title
}

// mapMessageMedia classifies Telegram media into the neutral attachment taxonomy.
// The message body doubles as the attachment caption on Telegram.
func mapMessageMedia(media tg.MessageMediaClass, caption string) []MediaPayload {
	switch typed := media.(type) {
	case nil:
		return nil
	case *tg.MessageMediaPhoto:
		photo, ok := typed.GetPhoto()
		if !ok || photo == nil {
			return nil
		}
		photoID := mapPhotoID(photo)
		if photoID == "" {
			return nil
		}

		return []MediaPayload{
			{
				ID:      photoID,
				Kind:    guard.MediaKindPhoto,
				Caption: caption,
			},
		}
	case *tg.MessageMediaDocument:
		document, ok := typed.GetDocument()
		if !ok || document == nil {
			return nil
		}
		return mapDocumentMedia(document, caption)
	case *tg.MessageMediaGeo:
		return []MediaPayload{{Kind: guard.MediaKindLocation}}
	case *tg.MessageMediaGeoLive:
		return []MediaPayload{{Kind: guard.MediaKindLocation}}
	case *tg.MessageMediaVenue:
		return []MediaPayload{{Kind: guard.MediaKindVenue, Caption: typed.Title}}
	case *tg.MessageMediaContact:
		return []MediaPayload{{Kind: guard.MediaKindContact}}
	case *tg.MessageMediaPoll:
		return []MediaPayload{{
			ID:   strconv.FormatInt(typed.Poll.ID, 10),
			Kind: guard.MediaKindPoll,
		}}
	case *tg.MessageMediaEmpty, *tg.MessageMediaWebPage:
		// Link previews are derived from the text, not user attachments.
		return nil
	default:
		return []MediaPayload{{Kind: guard.MediaKindOther, Caption: caption}}
	}
}

func mapPhotoID(photo tg.PhotoClass) string {
	switch typed := photo.(type) {
	case *tg.Photo:
		return strconv.FormatInt(typed.ID, 10)
	case *tg.PhotoEmpty:
		return strconv.FormatInt(typed.ID, 10)
	default:
		return ""
	}
}

func mapDocumentMedia(document tg.DocumentClass, caption string) []MediaPayload {
	typed, ok := document.(*tg.Document)
	if !ok {
		return nil
	}

	mediaKind := mediaKindFromDocument(typed.MimeType, typed.Attributes)
	fileName := documentFileName(typed.Attributes)

	return []MediaPayload{
		{
			ID:        strconv.FormatInt(typed.ID, 10),
			Kind:      mediaKind,
			MIMEType:  typed.MimeType,
			FileName:  fileName,
			SizeBytes: typed.Size,
			Caption:   caption,
		},
	}
}

// mediaKindFromDocument inspects document attributes before falling back to
// MIME prefixes. Attribute flags distinguish voice notes from audio files and
// round video notes from plain videos.
func mediaKindFromDocument(mimeType string, attributes []tg.DocumentAttributeClass) guard.MediaKind {
	for _, attribute := range attributes {
		switch typed := attribute.(type) {
		case *tg.DocumentAttributeSticker:
			return guard.MediaKindSticker
		case *tg.DocumentAttributeAnimated:
			return guard.MediaKindAnimation
		case *tg.DocumentAttributeAudio:
			if typed.Voice {
				return guard.MediaKindVoice
			}
			return guard.MediaKindAudio
		case *tg.DocumentAttributeVideo:
			if typed.RoundMessage {
				return guard.MediaKindVideoNote
			}
			return guard.MediaKindVideo
		}
	}

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return guard.MediaKindPhoto
	case strings.HasPrefix(mimeType, "video/"):
		return guard.MediaKindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return guard.MediaKindAudio
	default:
		return guard.MediaKindDocument
	}
}

func documentFileName(attributes []tg.DocumentAttributeClass) string {
	for _, attribute := range attributes {
		typed, ok := attribute.(*tg.DocumentAttributeFilename)
		if !ok {
			continue
		}
		return typed.FileName
	}

	return ""
}

func actorPointer(actor ActorRef) *ActorRef {
	if actor.ID == "" || actor.ID == gotdUnknownActorID {
		return nil
	}
	copyActor := actor
	return &copyActor
}

func intToTimeUTC(value int) time.Time {
	if value <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(value), 0).UTC()
}

func composeUpdateID(updateType UpdateType, chatID string, parts ...any) string {
	values := []string{"tg", string(updateType)}
	if chatID != "" {
		values = append(values, chatID)
	}
	for _, part := range parts {
		switch typed := part.(type) {
		case string:
			if typed != "" {
				values = append(values, typed)
			}
		case time.Time:
			if !typed.IsZero() {
				values = append(values, strconv.FormatInt(typed.UnixNano(), 10))
			}
		default:
			values = append(values, fmt.Sprint(part))
		}
	}

	return strings.Join(values, ":")
}

func newGotdMetadata(envelope gotdUpdateEnvelope) map[string]string {
	if envelope.updateClass == "" {
		return nil
	}
	return map[string]string{
		"gotd_update": envelope.updateClass,
	}
}

func channelParticipantRole(participant tg.ChannelParticipantClass) string {
	switch participant.(type) {
	case *tg.ChannelParticipantCreator:
		return "owner"
	case *tg.ChannelParticipantAdmin:
		return "admin"
	case *tg.ChannelParticipant:
		return "member"
	case *tg.ChannelParticipantSelf:
		return "member"
	case *tg.ChannelParticipantBanned:
		return "banned"
	case *tg.ChannelParticipantLeft:
		return "left"
	default:
		return ""
	}
}

func isChannelRoleActive(role string) bool {
	switch role {
	case "", "left", "banned":
		return false
	default:
		return true
	}
}
