package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"HeadToHead/internal/observability"
)

const (
	// PriceStream carries raw price ticks from the upstream feed.
	PriceStream  = "H2H_PRICES"
	PriceSubject = "h2h.prices.>"

	priceConsumerName = "settlement-prices"
)

// PriceAppender is the engine surface the subscriber drives.
type PriceAppender interface {
	AppendPrice(caller uuid.UUID, value uint64) (int, error)
}

// PriceSubscriber consumes price ticks from JetStream and appends them to the
// price ledger under the admin identity. Ticks arriving out of order or
// redelivered are dropped by feed sequence: only a tick strictly newer than
// the last applied one is appended. Gaps are tolerated, the ledger keeps its
// own dense index space.
type PriceSubscriber struct {
	js       jetstream.JetStream
	engine   PriceAppender
	admin    uuid.UUID
	lastSeq  int64
	consumer jetstream.ConsumeContext

	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewPriceSubscriber(js jetstream.JetStream, engine PriceAppender, admin uuid.UUID, metrics *observability.Metrics) *PriceSubscriber {
	return &PriceSubscriber{
		js:      js,
		engine:  engine,
		admin:   admin,
		logger:  observability.NewLogger("price-feed"),
		metrics: metrics,
	}
}

// Subscribe creates the durable consumer and starts delivery. Messages are
// ACKed on append and on staleness drops; malformed payloads are ACKed too
// since redelivery cannot repair them.
func (s *PriceSubscriber) Subscribe(ctx context.Context) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, PriceStream, jetstream.ConsumerConfig{
		Durable:       priceConsumerName,
		FilterSubject: PriceSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", priceConsumerName, err)
	}

	cc, err := consumer.Consume(s.handle)
	if err != nil {
		return fmt.Errorf("consume %s: %w", priceConsumerName, err)
	}
	s.consumer = cc

	s.logger.Info().Str("subject", PriceSubject).Str("consumer", priceConsumerName).Msg("subscribed to price feed")
	return nil
}

func (s *PriceSubscriber) handle(msg jetstream.Msg) {
	if s.metrics != nil {
		s.metrics.FeedTicksReceived.Inc()
	}

	tick, err := ParseTick(msg.Data())
	if err != nil {
		s.rejectTick("malformed", err)
		msg.Ack()
		return
	}

	if tick.FeedSequence <= s.lastSeq {
		s.rejectTick("stale", fmt.Errorf("feed_sequence %d <= last %d", tick.FeedSequence, s.lastSeq))
		msg.Ack()
		return
	}

	index, err := s.engine.AppendPrice(s.admin, tick.Price)
	if err != nil {
		s.rejectTick("append_failed", err)
		msg.Nak()
		return
	}

	s.lastSeq = tick.FeedSequence
	msg.Ack()

	s.logger.Debug().
		Int("index", index).
		Uint64("price", tick.Price).
		Int64("feed_sequence", tick.FeedSequence).
		Msg("price appended")
}

func (s *PriceSubscriber) rejectTick(reason string, err error) {
	if s.metrics != nil {
		s.metrics.FeedTicksRejected.WithLabelValues(reason).Inc()
	}
	s.logger.Warn().Str("reason", reason).Err(err).Msg("tick dropped")
}

// Stop gracefully stops the consumer.
func (s *PriceSubscriber) Stop() {
	if s.consumer != nil {
		s.consumer.Stop()
	}
	s.logger.Info().Msg("price feed subscriber stopped")
}

// EnsureStreams creates the inbound price stream if it does not exist.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      PriceStream,
		Subjects:  []string{PriceSubject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", PriceStream, err)
	}
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	logger := observability.NewLogger("nats")

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
