package telegram

import (
	"context"
	"fmt"
	"sync"

	"editguard/pkg/guard"
)

// GotdBotClient abstracts gotd/td bot session execution.
type GotdBotClient interface {
	// Run starts the session and executes fn within the connected lifecycle.
	Run(ctx context.Context, fn func(runCtx context.Context) error) error
}

// GotdRawUpdateStream provides raw gotd updates from an active session.
type GotdRawUpdateStream interface {
	// Updates returns a channel of raw gotd updates bound to ctx lifetime.
	Updates(ctx context.Context) (<-chan any, error)
}

// GotdUpdateMapper maps raw gotd updates into adapter Update DTOs.
type GotdUpdateMapper interface {
	// Map converts a raw update into adapter DTO form.
	// The accepted flag allows skipping unsupported update classes.
	Map(ctx context.Context, raw any) (Update, bool, error)
}

// GotdBotSource wires gotd bot session updates into UpdateSource.
type GotdBotSource struct {
	client GotdBotClient
	stream GotdRawUpdateStream
	mapper GotdUpdateMapper
}

// NewGotdBotSource creates a source backed by gotd bot session APIs.
func NewGotdBotSource(
	client GotdBotClient,
	stream GotdRawUpdateStream,
	mapper GotdUpdateMapper,
) (*GotdBotSource, error) {
	if client == nil {
		return nil, fmt.Errorf("new gotd bot source: nil client")
	}
	if stream == nil {
		return nil, fmt.Errorf("new gotd bot source: nil stream")
	}
	if mapper == nil {
		return nil, fmt.Errorf("new gotd bot source: nil mapper")
	}

	return &GotdBotSource{
		client: client,
		stream: stream,
		mapper: mapper,
	}, nil
}

// Consume runs a gotd bot session and forwards mapped updates to the handler.
func (s *GotdBotSource) Consume(ctx context.Context, handler UpdateHandler) error {
	if handler == nil {
		return fmt.Errorf("consume gotd bot updates: nil handler")
	}

	err := s.client.Run(ctx, func(runCtx context.Context) error {
		updates, err := s.stream.Updates(runCtx)
		if err != nil {
			return fmt.Errorf("get gotd updates stream: %w", err)
		}

		for {
			select {
			case <-runCtx.Done():
				return nil
			case rawUpdate, ok := <-updates:
				if !ok {
					return nil
				}

				mapped, accepted, mapErr := s.mapUpdateSafely(runCtx, rawUpdate)
				if mapErr != nil {
					return fmt.Errorf("map gotd update: %w", mapErr)
				}
				if !accepted {
					continue
				}
				if err := handler(runCtx, mapped); err != nil {
					return fmt.Errorf("consume gotd update %s: %w", mapped.Type, err)
				}
			}
		}
	})
	if err != nil {
		return fmt.Errorf("consume gotd bot updates: %w", err)
	}

	return nil
}

// mapUpdateSafely isolates mapper panics so a bad mapping path cannot crash the process.
func (s *GotdBotSource) mapUpdateSafely(ctx context.Context, rawUpdate any) (mapped Update, accepted bool, err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("map gotd update panic: %v", recovered)
	}()

	mapped, accepted, err = s.mapper.Map(ctx, rawUpdate)
	if err != nil {
		return Update{}, false, fmt.Errorf("map gotd raw update: %w", err)
	}

	return mapped, accepted, nil
}

// SelfIdentity exposes the authenticated bot account once a session connects.
//
// It implements guard.SelfProvider. Lookups before authentication completes
// fail instead of returning a zero actor.
type SelfIdentity struct {
	mu       sync.RWMutex
	resolved bool
	actor    guard.Actor
}

// NewSelfIdentity creates an unresolved self identity holder.
func NewSelfIdentity() *SelfIdentity {
	return &SelfIdentity{}
}

func (s *SelfIdentity) set(actor guard.Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = actor
	s.resolved = true
}

// Self returns the authenticated bot account.
func (s *SelfIdentity) Self(ctx context.Context) (guard.Actor, error) {
	if err := ctx.Err(); err != nil {
		return guard.Actor{}, fmt.Errorf("self identity: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.resolved {
		return guard.Actor{}, fmt.Errorf("self identity: session not authenticated yet")
	}

	return s.actor, nil
}
