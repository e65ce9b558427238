// Package ingestion feeds commands from NATS JetStream into the engine
// and publishes processing results back out.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"wagerledger/internal/observability"
)

// RawCommand is a parsed-but-untyped command from NATS, ready for the
// shell to validate and convert into a typed command.Command before
// sending to the engine.
type RawCommand struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // ACK after successful processing
	NakFunc   func() // NAK on failure (redelivered)
}

// StreamConfig holds the JetStream wiring for command ingestion. One
// stream carries every command type; the trailing subject token names
// the type (e.g. wager.commands.place_bet).
type StreamConfig struct {
	StreamName    string
	Subject       string // base subject, wildcard appended
	DurableName   string
	MaxAckPending int
}

// Subscriber subscribes to the command stream and feeds RawCommands
// into the engine loop via commandChan.
type Subscriber struct {
	js          jetstream.JetStream
	commandChan chan<- RawCommand
	consumer    jetstream.ConsumeContext
	log         zerolog.Logger
}

func NewSubscriber(js jetstream.JetStream, commandChan chan<- RawCommand) *Subscriber {
	return &Subscriber{
		js:          js,
		commandChan: commandChan,
		log:         observability.NewLogger("ingestion"),
	}
}

// Subscribe creates the durable JetStream consumer. Explicit ACK,
// max_deliver=5, ack_wait=30s.
func (s *Subscriber) Subscribe(ctx context.Context, cfg StreamConfig) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
		Durable:       cfg.DurableName,
		FilterSubject: cfg.Subject + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		MaxAckPending: cfg.MaxAckPending,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", cfg.DurableName, err)
	}

	consumeContext, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := RawCommand{
			Subject:   msg.Subject(),
			Data:      msg.Data(),
			Timestamp: time.Now(),
			AckFunc:   func() { msg.Ack() },
			NakFunc:   func() { msg.Nak() },
		}

		select {
		case s.commandChan <- raw:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.DurableName, err)
	}

	s.consumer = consumeContext
	s.log.Info().
		Str("subject", cfg.Subject+".>").
		Str("consumer", cfg.DurableName).
		Msg("subscribed to command stream")

	return nil
}

// EnsureStream creates the command stream if it doesn't exist.
// FileStorage, retention=Limits, max_age=72h.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg StreamConfig) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  []string{cfg.Subject + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", cfg.StreamName, err)
	}
	return nil
}

// Stop gracefully stops the consumer.
func (s *Subscriber) Stop() {
	if s.consumer != nil {
		s.consumer.Stop()
	}
	s.log.Info().Msg("command subscriber stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream
// context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	log := observability.NewLogger("nats")

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
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
