package editguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"editguard/pkg/guard"
)

const statusCommandName = "/status"

// Option mutates edit guard module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// WithStoreOptions configures the bounded in-memory ledger.
func WithStoreOptions(options ...StoreOption) Option {
	return func(module *Module) {
		module.storeOptions = append(module.storeOptions, options...)
	}
}

// WithSweepInterval sets how often retention sweeps run.
func WithSweepInterval(interval time.Duration) Option {
	return func(module *Module) {
		if interval > 0 {
			module.sweepInterval = interval
		}
	}
}

// WithRetention sets how long ledger records are kept.
func WithRetention(retention time.Duration) Option {
	return func(module *Module) {
		if retention > 0 {
			module.retention = retention
		}
	}
}

// Module enforces the no-edit policy in group conversations.
//
// It fingerprints every observed group message, compares edits against the
// stored signature, removes content edits from non-privileged members, and
// answers the /status command with the bot's current delete rights.
type Module struct {
	logger        *slog.Logger
	storeOptions  []StoreOption
	sweepInterval time.Duration
	retention     time.Duration

	store      *MemoryStore
	moderator  *Moderator
	sweeper    *Sweeper
	membership guard.MembershipResolver
	dispatcher guard.OutboundDispatcher
	self       guard.SelfProvider
}

// New creates the edit guard module.
func New(options ...Option) *Module {
	module := &Module{
		logger:        slog.Default(),
		sweepInterval: defaultSweepInterval,
		retention:     defaultRetention,
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "edit-guard"
}

// Capabilities declares which events drive moderation.
func (m *Module) Capabilities() []guard.Capability {
	return []guard.Capability{
		{
			Name:        "edit-moderator",
			Description: "tracks message signatures, removes content edits from non-privileged members, and reports delete rights via /status",
			Interest: guard.InterestSet{
				Kinds: []guard.EventKind{
					guard.EventKindMessageCreated,
					guard.EventKindMessageEdited,
					guard.EventKindMessageRetracted,
				},
			},
			RequiredServices: []string{
				guard.ServiceOutboundDispatcher,
				guard.ServiceMembershipResolver,
				guard.ServiceSelfIdentity,
			},
		},
	}
}

// OnRegister resolves dependencies, wires the moderation pipeline, and
// registers the ledger as a shared service.
func (m *Module) OnRegister(ctx context.Context, runtime guard.ModuleRuntime) error {
	logger, err := guard.ResolveAs[*slog.Logger](runtime.Services(), guard.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, guard.ErrServiceNotFound):
	default:
		return fmt.Errorf("edit guard resolve logger: %w", err)
	}

	dispatcher, err := guard.ResolveAs[guard.OutboundDispatcher](
		runtime.Services(),
		guard.ServiceOutboundDispatcher,
	)
	if err != nil {
		return fmt.Errorf("edit guard resolve outbound dispatcher: %w", err)
	}
	m.dispatcher = dispatcher

	membership, err := guard.ResolveAs[guard.MembershipResolver](
		runtime.Services(),
		guard.ServiceMembershipResolver,
	)
	if err != nil {
		return fmt.Errorf("edit guard resolve membership resolver: %w", err)
	}
	m.membership = membership

	self, err := guard.ResolveAs[guard.SelfProvider](runtime.Services(), guard.ServiceSelfIdentity)
	if err != nil {
		return fmt.Errorf("edit guard resolve self identity: %w", err)
	}
	m.self = self

	m.store = NewMemoryStore(m.storeOptions...)
	if err := runtime.Services().Register(guard.ServiceMessageLedger, guard.Ledger(m.store)); err != nil {
		return fmt.Errorf("edit guard register service %s: %w", guard.ServiceMessageLedger, err)
	}

	oracle, err := NewPrivilegeOracle(membership)
	if err != nil {
		return fmt.Errorf("edit guard build privilege oracle: %w", err)
	}

	moderator, err := NewModerator(m.store, oracle, dispatcher, self, m.logger)
	if err != nil {
		return fmt.Errorf("edit guard build moderator: %w", err)
	}
	m.moderator = moderator

	sweeper, err := NewSweeper(m.store, m.logger, m.sweepInterval, m.retention)
	if err != nil {
		return fmt.Errorf("edit guard build sweeper: %w", err)
	}
	m.sweeper = sweeper

	if _, err := runtime.Subscribe(ctx, guard.SubscriptionSpec{
		Name: "edit-moderator",
		Filter: guard.InterestSet{
			Kinds: []guard.EventKind{
				guard.EventKindMessageCreated,
				guard.EventKindMessageEdited,
				guard.EventKindMessageRetracted,
			},
		},
	}, m.handleEvent); err != nil {
		return fmt.Errorf("edit guard subscribe: %w", err)
	}

	return nil
}

// OnStart begins retention sweeping.
func (m *Module) OnStart(ctx context.Context) error {
	if err := m.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("edit guard start sweeper: %w", err)
	}

	m.logger.InfoContext(ctx,
		"edit guard module started",
		"module", m.Name(),
		"sweep_interval", m.sweepInterval,
		"retention", m.retention,
	)

	return nil
}

// OnShutdown stops retention sweeping.
func (m *Module) OnShutdown(ctx context.Context) error {
	if err := m.sweeper.Stop(ctx); err != nil {
		return fmt.Errorf("edit guard stop sweeper: %w", err)
	}

	m.logger.InfoContext(ctx,
		"edit guard module shutdown",
		"module", m.Name(),
		"tracked", m.store.Len(),
	)

	return nil
}

func (m *Module) handleEvent(ctx context.Context, event *guard.Event) error {
	if event == nil {
		return fmt.Errorf("edit guard handle event: nil event")
	}

	switch event.Kind {
	case guard.EventKindMessageCreated:
		if event.Conversation.Type == guard.ConversationTypePrivate {
			return nil
		}
		if m.isStatusCommand(event) {
			return m.replyStatus(ctx, event)
		}
		return m.moderator.RecordCreated(ctx, event)
	case guard.EventKindMessageEdited:
		if event.Conversation.Type == guard.ConversationTypePrivate {
			return nil
		}
		return m.moderator.HandleEdited(ctx, event)
	case guard.EventKindMessageRetracted:
		return m.moderator.HandleRetracted(ctx, event)
	default:
		return nil
	}
}

func (m *Module) isStatusCommand(event *guard.Event) bool {
	if event.Message == nil {
		return false
	}

	fields := strings.Fields(strings.TrimSpace(event.Message.Text))
	if len(fields) != 1 {
		return false
	}

	command := strings.ToLower(fields[0])
	if mentionSeparator := strings.Index(command, "@"); mentionSeparator >= 0 {
		command = command[:mentionSeparator]
	}

	return command == statusCommandName
}

// replyStatus reports whether the bot can currently delete messages here.
func (m *Module) replyStatus(ctx context.Context, event *guard.Event) error {
	target, err := guard.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("status command derive target: %w", err)
	}

	body := m.statusBody(ctx, event.Conversation)
	if _, err := m.dispatcher.SendMessage(ctx, guard.SendMessageRequest{
		Target:           target,
		Text:             body,
		ReplyToMessageID: event.Message.ID,
	}); err != nil {
		return fmt.Errorf("status command reply: %w", err)
	}

	return nil
}

func (m *Module) statusBody(ctx context.Context, conversation guard.Conversation) string {
	account, err := m.self.Self(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "status command self lookup failed", "error", err)
		return "Edit guard is running, but I could not verify my own permissions here."
	}

	member, err := m.membership.ResolveMember(ctx, conversation, account.ID)
	if err != nil {
		m.logger.WarnContext(ctx,
			"status command membership lookup failed",
			"conversation", conversation.ID,
			"error", err,
		)
		return "Edit guard is running, but I could not verify my own permissions here."
	}

	if member.CanDeleteMessages {
		return "Edit guard is active: I can delete edited messages in this group."
	}

	return "Edit guard is running, but I am missing the Delete Messages admin right. " +
		"Promote me with that right so edited messages can be removed."
}

var _ guard.Module = (*Module)(nil)
