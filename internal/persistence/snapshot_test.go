package persistence_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"wagerledger/internal/persistence"
	"wagerledger/internal/vault"
)

const usdc = vault.AssetID(2)

func TestSnapshotData_ToEngineState_RoundTrip(t *testing.T) {
	userID := uuid.New()
	marketID := uuid.New()
	auth := vault.DeriveAuthority(vault.EntityKindMarket, marketID, 1)
	vaultKey := vault.NewMarketVaultKey(marketID, usdc)

	snap := &persistence.SnapshotData{
		Sequence:  7,
		StateHash: make([]byte, 32),
		Balances: map[string]int64{
			vault.NewUserCashKey(userID, usdc).AccountPath(): 700,
			vaultKey.AccountPath():                           300,
		},
		Authorities: map[string]string{vaultKey.AccountPath(): auth.String()},
		CreatedAt:   time.Now(),
	}

	state, err := snap.ToEngineState()
	if err != nil {
		t.Fatalf("ToEngineState: %v", err)
	}
	if state.Sequence != 7 {
		t.Errorf("sequence = %d, want 7", state.Sequence)
	}
	if got := state.Balances[vaultKey]; got != 300 {
		t.Errorf("vault balance = %d, want 300", got)
	}
	restored, ok := state.Authorities[vaultKey]
	if !ok {
		t.Fatal("vault authority missing after restore")
	}
	if !restored.Equal(auth) {
		t.Error("restored authority differs from derived token")
	}
}

func TestSnapshotData_ToEngineState_MalformedAuthority(t *testing.T) {
	marketID := uuid.New()
	vaultPath := vault.NewMarketVaultKey(marketID, usdc).AccountPath()

	snap := &persistence.SnapshotData{
		StateHash:   make([]byte, 32),
		Authorities: map[string]string{vaultPath: "not-hex"},
	}
	_, err := snap.ToEngineState()
	if err == nil || !strings.Contains(err.Error(), "malformed token") {
		t.Fatalf("expected malformed token error, got %v", err)
	}

	// Valid hex of the wrong length is not a token either.
	snap.Authorities[vaultPath] = "deadbeef"
	if _, err := snap.ToEngineState(); err == nil {
		t.Fatal("expected error for short authority")
	}
}

func TestSnapshotData_ToEngineState_TruncatedStateHash(t *testing.T) {
	snap := &persistence.SnapshotData{StateHash: []byte{1, 2, 3}}
	if _, err := snap.ToEngineState(); err == nil {
		t.Fatal("expected error for truncated state hash")
	}
}
