package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"editguard/pkg/guard"

	gotdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
)

const defaultMembershipTimeout = 3 * time.Second

// MembershipOption mutates membership client configuration.
type MembershipOption func(*membershipConfig)

// WithMembershipTimeout configures a timeout bound for each membership RPC call.
func WithMembershipTimeout(timeout time.Duration) MembershipOption {
	return func(cfg *membershipConfig) {
		if timeout > 0 {
			cfg.rpcTimeout = timeout
		}
	}
}

// WithMembershipLogger configures structured logging for membership lookups.
func WithMembershipLogger(logger *slog.Logger) MembershipOption {
	return func(cfg *membershipConfig) {
		cfg.logger = logger
	}
}

type membershipConfig struct {
	rpcTimeout time.Duration
	logger     *slog.Logger
}

// MembershipClient resolves conversation membership through Telegram RPC.
//
// Channels and megagroups answer through channels.getParticipant; basic
// groups carry their full participant list in messages.getFullChat.
type MembershipClient struct {
	cfg      membershipConfig
	peers    *PeerCache
	telegram membershipRPC
}

// NewMembershipClient creates a Telegram membership resolver using gotd client APIs.
func NewMembershipClient(
	client *gotdtelegram.Client,
	peers *PeerCache,
	options ...MembershipOption,
) (*MembershipClient, error) {
	if client == nil {
		return nil, fmt.Errorf("new telegram membership client: nil client")
	}

	return newMembershipClientWithRPC(gotdMembershipRPC{raw: client.API()}, peers, options...)
}

func newMembershipClientWithRPC(
	rpc membershipRPC,
	peers *PeerCache,
	options ...MembershipOption,
) (*MembershipClient, error) {
	if rpc == nil {
		return nil, fmt.Errorf("new telegram membership client: nil rpc adapter")
	}
	if peers == nil {
		return nil, fmt.Errorf("new telegram membership client: nil peer cache")
	}

	cfg := membershipConfig{
		rpcTimeout: defaultMembershipTimeout,
	}
	for _, option := range options {
		option(&cfg)
	}

	return &MembershipClient{
		cfg:      cfg,
		peers:    peers,
		telegram: rpc,
	}, nil
}

// ResolveMember returns the role a user holds in a conversation.
func (c *MembershipClient) ResolveMember(
	ctx context.Context,
	conversation guard.Conversation,
	userID string,
) (guard.ChatMember, error) {
	if conversation.ID == "" || userID == "" {
		return guard.ChatMember{}, fmt.Errorf("resolve member: missing conversation or user ID")
	}

	peer, err := c.peers.Resolve(conversation)
	if err != nil {
		return guard.ChatMember{}, fmt.Errorf("resolve member peer: %w", err)
	}

	rpcCtx, cancel := context.WithTimeout(ctx, c.cfg.rpcTimeout)
	defer cancel()

	var member guard.ChatMember
	switch typed := peer.(type) {
	case *tg.InputPeerChannel:
		member, err = c.resolveChannelMember(rpcCtx, typed, userID)
	case *tg.InputPeerChat:
		member, err = c.resolveChatMember(rpcCtx, typed.ChatID, userID)
	default:
		return guard.ChatMember{}, fmt.Errorf("resolve member: conversation %s is not a group", conversation.ID)
	}
	if err != nil {
		return guard.ChatMember{}, err
	}

	if c.cfg.logger != nil {
		c.cfg.logger.DebugContext(
			ctx,
			"telegram membership resolved",
			"conversation", conversation.ID,
			"user", userID,
			"role", member.Role,
		)
	}

	return member, nil
}

func (c *MembershipClient) resolveChannelMember(
	ctx context.Context,
	peer *tg.InputPeerChannel,
	userID string,
) (guard.ChatMember, error) {
	inputUser, err := c.peers.ResolveUser(userID)
	if err != nil {
		return guard.ChatMember{}, fmt.Errorf("resolve channel member: %w", err)
	}

	participant, err := c.telegram.ChannelParticipant(
		ctx,
		&tg.InputChannel{ChannelID: peer.ChannelID, AccessHash: peer.AccessHash},
		&tg.InputPeerUser{UserID: inputUser.UserID, AccessHash: inputUser.AccessHash},
	)
	if err != nil {
		return guard.ChatMember{}, fmt.Errorf("channel participant %s: %w", userID, err)
	}

	return memberFromChannelParticipant(participant), nil
}

func (c *MembershipClient) resolveChatMember(
	ctx context.Context,
	chatID int64,
	userID string,
) (guard.ChatMember, error) {
	numericUserID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return guard.ChatMember{}, fmt.Errorf("resolve chat member parse user %s: %w", userID, err)
	}

	participants, err := c.telegram.ChatParticipants(ctx, chatID)
	if err != nil {
		return guard.ChatMember{}, fmt.Errorf("chat participants %d: %w", chatID, err)
	}

	for _, participant := range participants {
		member, ok := memberFromChatParticipant(participant, numericUserID)
		if ok {
			return member, nil
		}
	}

	return guard.ChatMember{Role: guard.MemberRoleLeft}, nil
}

func memberFromChannelParticipant(participant tg.ChannelParticipantClass) guard.ChatMember {
	switch typed := participant.(type) {
	case *tg.ChannelParticipantCreator:
		return guard.ChatMember{
			Role:              guard.MemberRoleOwner,
			CanDeleteMessages: true,
		}
	case *tg.ChannelParticipantAdmin:
		return guard.ChatMember{
			Role:              guard.MemberRoleAdmin,
			CanDeleteMessages: typed.AdminRights.DeleteMessages,
		}
	case *tg.ChannelParticipant, *tg.ChannelParticipantSelf:
		return guard.ChatMember{Role: guard.MemberRoleMember}
	case *tg.ChannelParticipantBanned:
		if typed.Left {
			return guard.ChatMember{Role: guard.MemberRoleLeft}
		}
		return guard.ChatMember{Role: guard.MemberRoleRestricted}
	case *tg.ChannelParticipantLeft:
		return guard.ChatMember{Role: guard.MemberRoleLeft}
	default:
		return guard.ChatMember{Role: guard.MemberRoleMember}
	}
}

func memberFromChatParticipant(participant tg.ChatParticipantClass, userID int64) (guard.ChatMember, bool) {
	switch typed := participant.(type) {
	case *tg.ChatParticipantCreator:
		if typed.UserID != userID {
			return guard.ChatMember{}, false
		}
		return guard.ChatMember{
			Role:              guard.MemberRoleOwner,
			CanDeleteMessages: true,
		}, true
	case *tg.ChatParticipantAdmin:
		if typed.UserID != userID {
			return guard.ChatMember{}, false
		}
		// Basic-group admins always hold delete rights.
		return guard.ChatMember{
			Role:              guard.MemberRoleAdmin,
			CanDeleteMessages: true,
		}, true
	case *tg.ChatParticipant:
		if typed.UserID != userID {
			return guard.ChatMember{}, false
		}
		return guard.ChatMember{Role: guard.MemberRoleMember}, true
	default:
		return guard.ChatMember{}, false
	}
}

type membershipRPC interface {
	ChannelParticipant(ctx context.Context, channel *tg.InputChannel, participant tg.InputPeerClass) (tg.ChannelParticipantClass, error)
	ChatParticipants(ctx context.Context, chatID int64) ([]tg.ChatParticipantClass, error)
}

type gotdMembershipRPC struct {
	raw *tg.Client
}

func (r gotdMembershipRPC) ChannelParticipant(
	ctx context.Context,
	channel *tg.InputChannel,
	participant tg.InputPeerClass,
) (tg.ChannelParticipantClass, error) {
	result, err := r.raw.ChannelsGetParticipant(ctx, &tg.ChannelsGetParticipantRequest{
		Channel:     channel,
		Participant: participant,
	})
	if err != nil {
		return nil, fmt.Errorf("channels get participant: %w", err)
	}

	return result.Participant, nil
}

func (r gotdMembershipRPC) ChatParticipants(ctx context.Context, chatID int64) ([]tg.ChatParticipantClass, error) {
	full, err := r.raw.MessagesGetFullChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("messages get full chat: %w", err)
	}

	chatFull, ok := full.FullChat.(*tg.ChatFull)
	if !ok {
		return nil, fmt.Errorf("messages get full chat: unexpected type %T", full.FullChat)
	}

	participants, ok := chatFull.Participants.(*tg.ChatParticipants)
	if !ok {
		return nil, fmt.Errorf("messages get full chat: participants unavailable")
	}

	return participants.Participants, nil
}
