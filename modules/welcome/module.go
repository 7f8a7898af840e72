package welcome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"editguard/pkg/guard"
)

const startCommandName = "/start"

const privateIntroBody = "Hi! I keep group chats honest: whenever someone edits a message, " +
	"I remove the edited version and let the group know. " +
	"Add me to a group and grant me the Delete Messages admin right to get started."

const groupSetupBody = "Thanks for adding me! I remove edited messages from this group. " +
	"Promote me to admin with the Delete Messages right so I can do my job. " +
	"Send /status any time to check my permissions."

// Option mutates welcome module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// Module greets users in private chats and introduces the bot when it is
// added to a group.
type Module struct {
	logger     *slog.Logger
	dispatcher guard.OutboundDispatcher
	self       guard.SelfProvider
}

// New creates the welcome module.
func New(options ...Option) *Module {
	module := &Module{
		logger: slog.Default(),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "welcome"
}

// Capabilities declares interest in /start messages and membership changes.
func (m *Module) Capabilities() []guard.Capability {
	return []guard.Capability{
		{
			Name:        "welcome-greeter",
			Description: "replies to /start in private chats and posts a setup message when the bot joins a group",
			Interest: guard.InterestSet{
				Kinds: []guard.EventKind{
					guard.EventKindMessageCreated,
					guard.EventKindMemberJoined,
				},
			},
			RequiredServices: []string{
				guard.ServiceOutboundDispatcher,
				guard.ServiceSelfIdentity,
			},
		},
	}
}

// OnRegister resolves dependencies and subscribes to greeting triggers.
func (m *Module) OnRegister(ctx context.Context, runtime guard.ModuleRuntime) error {
	logger, err := guard.ResolveAs[*slog.Logger](runtime.Services(), guard.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, guard.ErrServiceNotFound):
	default:
		return fmt.Errorf("welcome resolve logger: %w", err)
	}

	dispatcher, err := guard.ResolveAs[guard.OutboundDispatcher](
		runtime.Services(),
		guard.ServiceOutboundDispatcher,
	)
	if err != nil {
		return fmt.Errorf("welcome resolve outbound dispatcher: %w", err)
	}
	m.dispatcher = dispatcher

	self, err := guard.ResolveAs[guard.SelfProvider](runtime.Services(), guard.ServiceSelfIdentity)
	if err != nil {
		return fmt.Errorf("welcome resolve self identity: %w", err)
	}
	m.self = self

	if _, err := runtime.Subscribe(ctx, guard.SubscriptionSpec{
		Name: "welcome-greeter",
		Filter: guard.InterestSet{
			Kinds: []guard.EventKind{
				guard.EventKindMessageCreated,
				guard.EventKindMemberJoined,
			},
		},
	}, m.handleEvent); err != nil {
		return fmt.Errorf("welcome subscribe: %w", err)
	}

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(_ context.Context) error {
	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleEvent(ctx context.Context, event *guard.Event) error {
	if event == nil {
		return fmt.Errorf("welcome handle event: nil event")
	}

	switch event.Kind {
	case guard.EventKindMessageCreated:
		return m.handleStart(ctx, event)
	case guard.EventKindMemberJoined:
		return m.handleJoin(ctx, event)
	default:
		return nil
	}
}

func (m *Module) handleStart(ctx context.Context, event *guard.Event) error {
	if event.Conversation.Type != guard.ConversationTypePrivate {
		return nil
	}
	if event.Message == nil || !isStartCommand(event.Message.Text) {
		return nil
	}

	target, err := guard.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("welcome derive start target: %w", err)
	}

	request := guard.SendMessageRequest{
		Target: target,
		Text:   privateIntroBody,
	}
	if button, ok := m.inviteButton(ctx); ok {
		request.Buttons = []guard.MessageButton{button}
	}

	if _, err := m.dispatcher.SendMessage(ctx, request); err != nil {
		return fmt.Errorf("welcome send private intro: %w", err)
	}

	return nil
}

// handleJoin posts the setup message when the joined member is the bot itself.
func (m *Module) handleJoin(ctx context.Context, event *guard.Event) error {
	if event.Member == nil {
		return nil
	}
	if event.Conversation.Type == guard.ConversationTypePrivate {
		return nil
	}

	account, err := m.self.Self(ctx)
	if err != nil {
		m.logger.DebugContext(ctx, "welcome self lookup failed", "error", err)
		return nil
	}
	if event.Member.Member.ID != account.ID {
		return nil
	}

	target, err := guard.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("welcome derive join target: %w", err)
	}

	if _, err := m.dispatcher.SendMessage(ctx, guard.SendMessageRequest{
		Target: target,
		Text:   groupSetupBody,
	}); err != nil {
		return fmt.Errorf("welcome send group setup message: %w", err)
	}

	m.logger.InfoContext(ctx,
		"welcome setup message posted",
		"conversation", event.Conversation.ID,
	)

	return nil
}

func (m *Module) inviteButton(ctx context.Context) (guard.MessageButton, bool) {
	account, err := m.self.Self(ctx)
	if err != nil || account.Username == "" {
		return guard.MessageButton{}, false
	}

	return guard.MessageButton{
		Label: "Add me to your group",
		URL:   "https://t.me/" + account.Username + "?startgroup=true",
	}, true
}

func isStartCommand(text string) bool {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return false
	}

	command := strings.ToLower(fields[0])
	if mentionSeparator := strings.Index(command, "@"); mentionSeparator >= 0 {
		command = command[:mentionSeparator]
	}

	return command == startCommandName
}

var _ guard.Module = (*Module)(nil)
