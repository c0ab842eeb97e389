package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"HeadToHead/internal/core"
	"HeadToHead/internal/observability"
)

const (
	// OutboundStream carries committed settlement events for downstream
	// consumers (notifications, analytics).
	OutboundStream         = "H2H_SETTLEMENT_EVENTS"
	outboundSubjectPrefix  = "h2h.settlement.events"
	outboundSubjectPattern = "h2h.settlement.events.>"
)

// publishedEvent is the outbound wire format.
type publishedEvent struct {
	Sequence       int64     `json:"sequence"`
	EventType      string    `json:"event_type"`
	IdempotencyKey string    `json:"idempotency_key"`
	Payload        any       `json:"payload"`
	StateHash      []byte    `json:"state_hash"`
	Timestamp      time.Time `json:"timestamp"`
}

// OutboundPublisher drains the engine's publish channel and republishes each
// committed event to JetStream. Publishing is best-effort: the event log in
// Postgres is the source of truth, consumers that miss a message rebuild
// from there.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan core.Output
	logger    zerolog.Logger
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan core.Output) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		logger:    observability.NewLogger("publisher"),
	}
}

// Run consumes outputs until the context is cancelled or the channel closes.
func (p *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-p.inputChan:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, out); err != nil {
				p.logger.Warn().Int64("sequence", out.Envelope.Sequence).Err(err).Msg("outbound publish failed")
			}
		}
	}
}

func (p *OutboundPublisher) publish(ctx context.Context, out core.Output) error {
	env := out.Envelope

	data, err := json.Marshal(publishedEvent{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		Payload:        env.Payload,
		StateHash:      env.StateHash[:],
		Timestamp:      env.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", outboundSubjectPrefix, env.EventType)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      OutboundStream,
		Subjects:  []string{outboundSubjectPattern},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
