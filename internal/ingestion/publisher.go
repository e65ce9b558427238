package ingestion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"wagerledger/internal/command"
	"wagerledger/internal/observability"
)

// PublishableResult is the outbound record for a processed command.
// Downstream consumers (notification services, analytics) subscribe to
// the result stream instead of polling the event log.
type PublishableResult struct {
	Sequence       int64  `json:"sequence"`
	CommandType    string `json:"command_type"`
	IdempotencyKey string `json:"idempotency_key"`
	Partition      string `json:"partition"`
	StateHash      string `json:"state_hash"`
	Timestamp      int64  `json:"timestamp"`
}

// ResultFromEnvelope builds the outbound record for a processed envelope.
func ResultFromEnvelope(env *command.Envelope) PublishableResult {
	return PublishableResult{
		Sequence:       env.Sequence,
		CommandType:    env.CommandType.String(),
		IdempotencyKey: env.IdempotencyKey,
		Partition:      env.Partition,
		StateHash:      hex.EncodeToString(env.StateHash[:]),
		Timestamp:      env.Timestamp,
	}
}

// Publisher publishes processed-command results to the result stream.
// Publishing is best effort: the event log is the source of truth, so a
// failed publish is logged and dropped rather than blocking the engine.
type Publisher struct {
	js      jetstream.JetStream
	subject string // base subject, command type appended
	input   <-chan PublishableResult
	log     zerolog.Logger
}

func NewPublisher(js jetstream.JetStream, subject string, input <-chan PublishableResult) *Publisher {
	return &Publisher{
		js:      js,
		subject: subject,
		input:   input,
		log:     observability.NewLogger("publisher"),
	}
}

// Run publishes results until ctx is cancelled or the input channel
// closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case result, ok := <-p.input:
			if !ok {
				return nil
			}
			p.publish(ctx, result)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, result PublishableResult) {
	data, err := json.Marshal(result)
	if err != nil {
		p.log.Error().Err(err).Int64("sequence", result.Sequence).Msg("marshal result")
		return
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	subject := fmt.Sprintf("%s.%s", p.subject, result.CommandType)
	if _, err := p.js.Publish(pctx, subject, data); err != nil {
		p.log.Warn().
			Err(err).
			Int64("sequence", result.Sequence).
			Str("subject", subject).
			Msg("result publish failed")
	}
}

// EnsureResultStream creates the result stream if it doesn't exist.
func EnsureResultStream(ctx context.Context, js jetstream.JetStream, name, subject string) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  []string{subject + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", name, err)
	}
	return nil
}
