package events

import (
	"context"

	"github.com/rs/zerolog"

	"sheger-et-bot/internal/domain/ports/adapter"
)

var _ adapter.EventPublisher = (*NoopPublisher)(nil)

// NoopPublisher logs events instead of shipping them; used when no brokers are configured.
type NoopPublisher struct {
	log *zerolog.Logger
}

func NewNoopPublisher(logger *zerolog.Logger) *NoopPublisher {
	return &NoopPublisher{log: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, ev adapter.PaymentEvent) error {
	p.log.Debug().Str("type", string(ev.Type)).Str("reference", ev.ReferenceCode).Int64("user_id", ev.UserID).Msg("event (noop)")
	return nil
}

func (p *NoopPublisher) Close() {}
