package main

import (
	"context"
	"testing"

	"wagerledger/internal/command"
	"wagerledger/internal/engine"
	"wagerledger/internal/ingestion"
	"wagerledger/internal/persistence"
)

// On shutdown the engine loop closes its output channel; the bridge must
// forward everything still buffered before returning, so nothing races
// the downstream close.
func TestBridge_DrainsBufferedOutputsAfterClose(t *testing.T) {
	in := make(chan engine.Output, 3)
	persistOut := make(chan persistence.Output, 3)
	publishOut := make(chan ingestion.PublishableResult, 3)

	for i := 0; i < 3; i++ {
		in <- engine.Output{Envelope: &command.Envelope{
			Sequence:    int64(i),
			CommandType: command.CommandTypeDeposit,
			Partition:   "user:test",
			Payload:     []byte(`{}`),
		}}
	}
	close(in)

	// Returns only once the input is fully drained.
	bridgeEngineOutputs(context.Background(), in, persistOut, publishOut)

	if got := len(persistOut); got != 3 {
		t.Fatalf("persist rows = %d, want 3", got)
	}
	for want := int64(0); want < 3; want++ {
		row := <-persistOut
		if row.EventRow.Sequence != want {
			t.Errorf("row sequence = %d, want %d", row.EventRow.Sequence, want)
		}
		if row.EventRow.CommandType != "Deposit" {
			t.Errorf("row command type = %q, want Deposit", row.EventRow.CommandType)
		}
	}
	if got := len(publishOut); got != 3 {
		t.Errorf("published results = %d, want 3", got)
	}
}

func TestBridge_StopsWhenPersistSinkIsGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := make(chan engine.Output, 1)
	in <- engine.Output{Envelope: &command.Envelope{
		Sequence:    0,
		CommandType: command.CommandTypeDeposit,
		Partition:   "user:test",
		Payload:     []byte(`{}`),
	}}
	close(in)

	// Unbuffered sink with no reader: the cancelled context is the only
	// way out of the persist send.
	persistOut := make(chan persistence.Output)
	publishOut := make(chan ingestion.PublishableResult, 1)

	bridgeEngineOutputs(ctx, in, persistOut, publishOut)
}
