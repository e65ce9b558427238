package engine_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/google/uuid"

	"wagerledger/internal/command"
	"wagerledger/internal/engine"
	"wagerledger/internal/market"
	"wagerledger/internal/oracle"
	"wagerledger/internal/vault"
)

// --- Test helpers ---

// newTestEngine creates an engine with buffered channels and no DB checker.
func newTestEngine() (*engine.Engine, chan engine.Output, chan engine.Output) {
	persistChan := make(chan engine.Output, 1024)
	projChan := make(chan engine.Output, 1024)
	eng := engine.NewEngine(0, persistChan, projChan, nil, nil, 0, 1024)
	return eng, persistChan, projChan
}

func drainOutputs(ch chan engine.Output) []engine.Output {
	var outputs []engine.Output
	for {
		select {
		case o := <-ch:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}

func mustDeposit(t *testing.T, eng *engine.Engine, userID uuid.UUID, amount uint64) {
	t.Helper()
	err := eng.ProcessCommand(&command.Deposit{
		CommandID: uuid.New(),
		UserID:    userID,
		Asset:     "USDC",
		Amount:    amount,
		Sequence:  0,
		Timestamp: 1_000,
	})
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
}

func mustProcess(t *testing.T, eng *engine.Engine, cmd command.Command) {
	t.Helper()
	if err := eng.ProcessCommand(cmd); err != nil {
		t.Fatalf("%s failed: %v", cmd.CommandType(), err)
	}
}

const usdc = vault.AssetID(2)

// ============================================================================
// Test: Funding Flow
// ============================================================================

func TestDeposit_CreditsUserCash(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	userID := uuid.New()

	mustDeposit(t, eng, userID, 1_000)

	if got := eng.Book().GetUserCash(userID, usdc); got != 1_000 {
		t.Errorf("user cash = %d, want 1000", got)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	batch := outputs[0].Batch
	if len(batch.Transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(batch.Transfers))
	}
	leg := batch.Transfers[0]
	if leg.TransferType != vault.TransferTypeDeposit {
		t.Errorf("transfer type = %d, want deposit", leg.TransferType)
	}
	if leg.Amount != 1_000 {
		t.Errorf("amount = %d, want 1000", leg.Amount)
	}
}

func TestWithdraw_InsufficientBalance_Fails(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	userID := uuid.New()

	mustDeposit(t, eng, userID, 100)
	drainOutputs(persistCh)

	err := eng.ProcessCommand(&command.Withdraw{
		CommandID: uuid.New(),
		UserID:    userID,
		Asset:     "USDC",
		Amount:    200,
		Sequence:  1,
		Timestamp: 1_100,
	})
	if err == nil {
		t.Fatal("expected error for insufficient balance, got nil")
	}

	if got := eng.Book().GetUserCash(userID, usdc); got != 100 {
		t.Errorf("user cash after rejected withdraw = %d, want 100", got)
	}
}

func TestWithdraw_MovesFundsOut(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	userID := uuid.New()

	mustDeposit(t, eng, userID, 1_000)
	drainOutputs(persistCh)

	mustProcess(t, eng, &command.Withdraw{
		CommandID: uuid.New(),
		UserID:    userID,
		Asset:     "USDC",
		Amount:    400,
		Sequence:  1,
		Timestamp: 1_100,
	})

	if got := eng.Book().GetUserCash(userID, usdc); got != 600 {
		t.Errorf("user cash = %d, want 600", got)
	}
}

// ============================================================================
// Test: Market Lifecycle
// ============================================================================

func TestMarketLifecycle_BetSettleClaim(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	marketID := uuid.New()
	authority := uuid.New()
	userA := uuid.New()
	userB := uuid.New()

	mustDeposit(t, eng, userA, 1_000)
	mustDeposit(t, eng, userB, 1_000)

	mustProcess(t, eng, &command.CreateMarket{
		CommandID: uuid.New(), MarketID: marketID, Authority: authority,
		Question: "Will it rain tomorrow?", Asset: "USDC",
		ClosesAt: 2_000, Nonce: 1, Sequence: 0, Timestamp: 1_000,
	})
	mustProcess(t, eng, &command.InitPosition{
		CommandID: uuid.New(), MarketID: marketID, UserID: userA, Sequence: 1, Timestamp: 1_100,
	})
	mustProcess(t, eng, &command.InitPosition{
		CommandID: uuid.New(), MarketID: marketID, UserID: userB, Sequence: 2, Timestamp: 1_100,
	})

	// A stakes 300 on YES into an empty pool: 300 shares 1:1.
	mustProcess(t, eng, &command.PlaceBet{
		CommandID: uuid.New(), MarketID: marketID, UserID: userA,
		Outcome: int32(market.OutcomeYes), Amount: 300, Sequence: 3, Timestamp: 1_200,
	})
	mustProcess(t, eng, &command.PlaceBet{
		CommandID: uuid.New(), MarketID: marketID, UserID: userB,
		Outcome: int32(market.OutcomeNo), Amount: 700, Sequence: 4, Timestamp: 1_300,
	})
	drainOutputs(persistCh)

	// The escrow vault holds the full pool.
	vaultKey := vault.NewMarketVaultKey(marketID, usdc)
	if got := eng.Book().GetBalance(vaultKey); got != 1_000 {
		t.Errorf("market vault = %d, want 1000", got)
	}
	if got := eng.Book().GetUserCash(userA, usdc); got != 700 {
		t.Errorf("userA cash after stake = %d, want 700", got)
	}

	mustProcess(t, eng, &command.CloseMarket{
		CommandID: uuid.New(), MarketID: marketID, Actor: authority, Sequence: 5, Timestamp: 1_900,
	})
	mustProcess(t, eng, &command.SettleMarket{
		CommandID: uuid.New(), MarketID: marketID, Actor: authority,
		Outcome: int32(market.OutcomeYes), Sequence: 6, Timestamp: 2_100,
	})
	drainOutputs(persistCh)

	// A holds all 300 winning shares: payout = 300 * 1000 / 300 = 1000.
	mustProcess(t, eng, &command.ClaimWinnings{
		CommandID: uuid.New(), MarketID: marketID, UserID: userA, Sequence: 7, Timestamp: 2_200,
	})

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 claim output, got %d", len(outputs))
	}
	leg := outputs[0].Batch.Transfers[0]
	if leg.Amount != 1_000 {
		t.Errorf("payout = %d, want 1000", leg.Amount)
	}
	if leg.TransferType != vault.TransferTypeWinningsPayout {
		t.Errorf("transfer type = %d, want winnings payout", leg.TransferType)
	}
	if got := eng.Book().GetUserCash(userA, usdc); got != 1_700 {
		t.Errorf("userA cash after claim = %d, want 1700", got)
	}
	if got := eng.Book().GetBalance(vaultKey); got != 0 {
		t.Errorf("market vault after claim = %d, want 0", got)
	}

	// Claims are one-shot.
	err := eng.ProcessCommand(&command.ClaimWinnings{
		CommandID: uuid.New(), MarketID: marketID, UserID: userA, Sequence: 8, Timestamp: 2_300,
	})
	if err == nil {
		t.Fatal("expected second claim to fail")
	}
}

func TestPlaceBet_Guards(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	marketID := uuid.New()
	authority := uuid.New()
	userID := uuid.New()

	mustDeposit(t, eng, userID, 1_000)
	mustProcess(t, eng, &command.CreateMarket{
		CommandID: uuid.New(), MarketID: marketID, Authority: authority,
		Question: "q", Asset: "USDC", ClosesAt: 2_000, Nonce: 1, Sequence: 0, Timestamp: 1_000,
	})
	drainOutputs(persistCh)

	// Bet without an initialized position.
	err := eng.ProcessCommand(&command.PlaceBet{
		CommandID: uuid.New(), MarketID: marketID, UserID: userID,
		Outcome: int32(market.OutcomeYes), Amount: 100, Sequence: 1, Timestamp: 1_100,
	})
	if err == nil {
		t.Fatal("expected bet without position to fail")
	}

	mustProcess(t, eng, &command.InitPosition{
		CommandID: uuid.New(), MarketID: marketID, UserID: userID, Sequence: 2, Timestamp: 1_100,
	})

	// Bet past the cutoff.
	err = eng.ProcessCommand(&command.PlaceBet{
		CommandID: uuid.New(), MarketID: marketID, UserID: userID,
		Outcome: int32(market.OutcomeYes), Amount: 100, Sequence: 3, Timestamp: 2_000,
	})
	if err == nil {
		t.Fatal("expected bet at cutoff to fail")
	}

	// Bet beyond the user's cash.
	err = eng.ProcessCommand(&command.PlaceBet{
		CommandID: uuid.New(), MarketID: marketID, UserID: userID,
		Outcome: int32(market.OutcomeYes), Amount: 5_000, Sequence: 4, Timestamp: 1_200,
	})
	if err == nil {
		t.Fatal("expected bet beyond balance to fail")
	}
}

func TestSettleMarket_WrongAuthority_Fails(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	marketID := uuid.New()
	authority := uuid.New()

	mustProcess(t, eng, &command.CreateMarket{
		CommandID: uuid.New(), MarketID: marketID, Authority: authority,
		Question: "q", Asset: "USDC", ClosesAt: 2_000, Nonce: 1, Sequence: 0, Timestamp: 1_000,
	})
	drainOutputs(persistCh)

	err := eng.ProcessCommand(&command.SettleMarket{
		CommandID: uuid.New(), MarketID: marketID, Actor: uuid.New(),
		Outcome: int32(market.OutcomeYes), Sequence: 1, Timestamp: 2_100,
	})
	if err == nil {
		t.Fatal("expected settlement by stranger to fail")
	}
}

func TestCancelMarket_RefundsStakes(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	marketID := uuid.New()
	authority := uuid.New()
	userID := uuid.New()

	mustDeposit(t, eng, userID, 1_000)
	mustProcess(t, eng, &command.CreateMarket{
		CommandID: uuid.New(), MarketID: marketID, Authority: authority,
		Question: "q", Asset: "USDC", ClosesAt: 2_000, Nonce: 1, Sequence: 0, Timestamp: 1_000,
	})
	mustProcess(t, eng, &command.InitPosition{
		CommandID: uuid.New(), MarketID: marketID, UserID: userID, Sequence: 1, Timestamp: 1_100,
	})
	mustProcess(t, eng, &command.PlaceBet{
		CommandID: uuid.New(), MarketID: marketID, UserID: userID,
		Outcome: int32(market.OutcomeYes), Amount: 250, Sequence: 2, Timestamp: 1_200,
	})
	mustProcess(t, eng, &command.PlaceBet{
		CommandID: uuid.New(), MarketID: marketID, UserID: userID,
		Outcome: int32(market.OutcomeYes), Amount: 150, Sequence: 3, Timestamp: 1_300,
	})

	// Refund before cancellation is rejected.
	err := eng.ProcessCommand(&command.RefundBet{
		CommandID: uuid.New(), MarketID: marketID, UserID: userID, Sequence: 4, Timestamp: 1_400,
	})
	if err == nil {
		t.Fatal("expected refund on open market to fail")
	}

	mustProcess(t, eng, &command.CancelMarket{
		CommandID: uuid.New(), MarketID: marketID, Actor: authority, Sequence: 5, Timestamp: 1_500,
	})
	mustProcess(t, eng, &command.RefundBet{
		CommandID: uuid.New(), MarketID: marketID, UserID: userID, Sequence: 6, Timestamp: 1_600,
	})
	drainOutputs(persistCh)

	// Cumulative stake returned in full.
	if got := eng.Book().GetUserCash(userID, usdc); got != 1_000 {
		t.Errorf("user cash after refund = %d, want 1000", got)
	}

	err = eng.ProcessCommand(&command.RefundBet{
		CommandID: uuid.New(), MarketID: marketID, UserID: userID, Sequence: 7, Timestamp: 1_700,
	})
	if err == nil {
		t.Fatal("expected second refund to fail")
	}
}

// ============================================================================
// Test: Oracle-Gated Settlement
// ============================================================================

func TestSettleMarketOracle(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	eng, persistCh, _ := newTestEngine()
	marketID := uuid.New()
	authority := uuid.New()

	mustProcess(t, eng, &command.CreateMarket{
		CommandID: uuid.New(), MarketID: marketID, Authority: authority,
		Question: "q", Asset: "USDC", ClosesAt: 2_000, Nonce: 1, Sequence: 0, Timestamp: 1_000,
	})
	mustProcess(t, eng, &command.InitializeOracle{
		CommandID: uuid.New(), EntityKind: int32(vault.EntityKindMarket), EntityID: marketID,
		Actor: authority, FeedPublicKey: pub, QueueID: uuid.New(), Sequence: 1, Timestamp: 1_100,
	})
	drainOutputs(persistCh)

	attestation := &oracle.Attestation{
		EntityKind: vault.EntityKindMarket,
		EntityID:   marketID,
		Timestamp:  2_050,
		Outcome:    int32(market.OutcomeYes),
	}
	msg := attestation.CanonicalBytes()
	sig := ed25519.Sign(priv, msg)

	// A tampered outcome re-encodes to a different message and is rejected.
	err = eng.ProcessCommand(&command.SettleMarketOracle{
		CommandID: uuid.New(), MarketID: marketID, Actor: authority,
		Outcome: int32(market.OutcomeNo), Message: msg, Signature: sig, Signer: pub,
		SignedAt: 2_050, Sequence: 2, Timestamp: 2_100,
	})
	if err == nil {
		t.Fatal("expected tampered outcome to fail")
	}

	mustProcess(t, eng, &command.SettleMarketOracle{
		CommandID: uuid.New(), MarketID: marketID, Actor: authority,
		Outcome: int32(market.OutcomeYes), Message: msg, Signature: sig, Signer: pub,
		SignedAt: 2_050, Sequence: 3, Timestamp: 2_100,
	})

	outputs := drainOutputs(persistCh)
	m := outputs[len(outputs)-1].Market
	if m == nil || m.Status != market.StatusSettled || m.Outcome != market.OutcomeYes {
		t.Errorf("market not settled to yes: %+v", m)
	}
}

// ============================================================================
// Test: Tournament Lifecycle
// ============================================================================

func TestTournamentLifecycle_RegisterDistribute(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	tournamentID := uuid.New()
	authority := uuid.New()
	playerA := uuid.New()
	playerB := uuid.New()

	mustDeposit(t, eng, playerA, 100)
	mustDeposit(t, eng, playerB, 100)

	mustProcess(t, eng, &command.CreateTournament{
		CommandID: uuid.New(), TournamentID: tournamentID, Authority: authority,
		Name: "Friday Freeroll", Asset: "USDC", EntryFee: 10, MaxPlayers: 2,
		StartTime: 2_000, EndTime: 3_000, Nonce: 1, Sequence: 0, Timestamp: 1_000,
	})
	mustProcess(t, eng, &command.RegisterPlayer{
		CommandID: uuid.New(), TournamentID: tournamentID, PlayerID: playerA, Sequence: 1, Timestamp: 1_500,
	})
	mustProcess(t, eng, &command.RegisterPlayer{
		CommandID: uuid.New(), TournamentID: tournamentID, PlayerID: playerB, Sequence: 2, Timestamp: 1_600,
	})
	drainOutputs(persistCh)

	// Third registration exceeds capacity.
	err := eng.ProcessCommand(&command.RegisterPlayer{
		CommandID: uuid.New(), TournamentID: tournamentID, PlayerID: uuid.New(), Sequence: 3, Timestamp: 1_700,
	})
	if err == nil {
		t.Fatal("expected registration beyond capacity to fail")
	}

	vaultKey := vault.NewTournamentVaultKey(tournamentID, usdc)
	if got := eng.Book().GetBalance(vaultKey); got != 20 {
		t.Errorf("tournament vault = %d, want 20", got)
	}

	mustProcess(t, eng, &command.StartTournament{
		CommandID: uuid.New(), TournamentID: tournamentID, Actor: authority, Sequence: 4, Timestamp: 2_000,
	})
	mustProcess(t, eng, &command.SubmitResults{
		CommandID: uuid.New(), TournamentID: tournamentID, Actor: authority, Sequence: 5, Timestamp: 3_000,
	})
	drainOutputs(persistCh)

	// Over-distribution is rejected before any transfer.
	err = eng.ProcessCommand(&command.DistributePrizes{
		CommandID: uuid.New(), TournamentID: tournamentID, Actor: authority,
		Winners: []uuid.UUID{playerA}, Amounts: []uint64{25}, Sequence: 6, Timestamp: 3_100,
	})
	if err == nil {
		t.Fatal("expected over-distribution to fail")
	}

	// Winners must be registered players.
	err = eng.ProcessCommand(&command.DistributePrizes{
		CommandID: uuid.New(), TournamentID: tournamentID, Actor: authority,
		Winners: []uuid.UUID{uuid.New()}, Amounts: []uint64{10}, Sequence: 7, Timestamp: 3_100,
	})
	if err == nil {
		t.Fatal("expected unregistered winner to fail")
	}

	mustProcess(t, eng, &command.DistributePrizes{
		CommandID: uuid.New(), TournamentID: tournamentID, Actor: authority,
		Winners: []uuid.UUID{playerA, playerB}, Amounts: []uint64{12, 8}, Sequence: 8, Timestamp: 3_200,
	})
	drainOutputs(persistCh)

	if got := eng.Book().GetUserCash(playerA, usdc); got != 102 {
		t.Errorf("playerA cash = %d, want 102", got)
	}
	if got := eng.Book().GetUserCash(playerB, usdc); got != 98 {
		t.Errorf("playerB cash = %d, want 98", got)
	}
	if got := eng.Book().GetBalance(vaultKey); got != 0 {
		t.Errorf("tournament vault after distribution = %d, want 0", got)
	}
}

func TestCancelTournament_ClaimRefund(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	tournamentID := uuid.New()
	authority := uuid.New()
	playerID := uuid.New()

	mustDeposit(t, eng, playerID, 100)
	mustProcess(t, eng, &command.CreateTournament{
		CommandID: uuid.New(), TournamentID: tournamentID, Authority: authority,
		Name: "t", Asset: "USDC", EntryFee: 10, MaxPlayers: 8,
		StartTime: 2_000, EndTime: 3_000, Nonce: 1, Sequence: 0, Timestamp: 1_000,
	})
	mustProcess(t, eng, &command.RegisterPlayer{
		CommandID: uuid.New(), TournamentID: tournamentID, PlayerID: playerID, Sequence: 1, Timestamp: 1_500,
	})
	mustProcess(t, eng, &command.CancelTournament{
		CommandID: uuid.New(), TournamentID: tournamentID, Actor: authority, Sequence: 2, Timestamp: 1_600,
	})
	mustProcess(t, eng, &command.ClaimRefund{
		CommandID: uuid.New(), TournamentID: tournamentID, PlayerID: playerID, Sequence: 3, Timestamp: 1_700,
	})
	drainOutputs(persistCh)

	if got := eng.Book().GetUserCash(playerID, usdc); got != 100 {
		t.Errorf("player cash after refund = %d, want 100", got)
	}

	err := eng.ProcessCommand(&command.ClaimRefund{
		CommandID: uuid.New(), TournamentID: tournamentID, PlayerID: playerID, Sequence: 4, Timestamp: 1_800,
	})
	if err == nil {
		t.Fatal("expected second refund to fail")
	}
}

// ============================================================================
// Test: Idempotency
// ============================================================================

func TestIdempotency_DuplicateCommand_Ignored(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	userID := uuid.New()

	deposit := &command.Deposit{
		CommandID: uuid.New(), UserID: userID, Asset: "USDC", Amount: 1_000, Sequence: 0, Timestamp: 1_000,
	}

	mustProcess(t, eng, deposit)
	if got := drainOutputs(persistCh); len(got) != 1 {
		t.Fatalf("expected 1 output on first process, got %d", len(got))
	}

	// Redelivery of the same command is silently absorbed.
	if err := eng.ProcessCommand(deposit); err != nil {
		t.Fatalf("duplicate should not error: %v", err)
	}
	if got := drainOutputs(persistCh); len(got) != 0 {
		t.Errorf("expected 0 outputs for duplicate, got %d", len(got))
	}
	if got := eng.Book().GetUserCash(userID, usdc); got != 1_000 {
		t.Errorf("user cash = %d, want 1000 (no double credit)", got)
	}
}

// ============================================================================
// Test: Sequence Validation
// ============================================================================

func TestSequenceValidation_GapDetected(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	userID := uuid.New()

	mustDeposit(t, eng, userID, 100)
	drainOutputs(persistCh)

	// Skip seq 1, send seq 2 on the same user partition.
	err := eng.ProcessCommand(&command.Deposit{
		CommandID: uuid.New(), UserID: userID, Asset: "USDC", Amount: 100, Sequence: 2, Timestamp: 1_100,
	})
	if err == nil {
		t.Fatal("expected sequence gap error, got nil")
	}
}

func TestSequenceValidation_OutOfOrderNewCommand(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	userID := uuid.New()

	mustDeposit(t, eng, userID, 100)
	mustProcess(t, eng, &command.Deposit{
		CommandID: uuid.New(), UserID: userID, Asset: "USDC", Amount: 100, Sequence: 1, Timestamp: 1_100,
	})
	drainOutputs(persistCh)

	// A NEW command replaying an already-consumed source sequence.
	err := eng.ProcessCommand(&command.Deposit{
		CommandID: uuid.New(), UserID: userID, Asset: "USDC", Amount: 100, Sequence: 0, Timestamp: 1_200,
	})
	if err == nil {
		t.Fatal("expected out-of-order error, got nil")
	}
}

func TestSequenceValidation_PartitionsAreIndependent(t *testing.T) {
	eng, persistCh, _ := newTestEngine()

	// Both users start their own partition at 0.
	mustDeposit(t, eng, uuid.New(), 100)
	mustDeposit(t, eng, uuid.New(), 100)

	outputs := drainOutputs(persistCh)
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}
}

// ============================================================================
// Test: State Hash Chain
// ============================================================================

func TestHashChain_PrevHashLinks(t *testing.T) {
	eng, persistCh, _ := newTestEngine()

	mustDeposit(t, eng, uuid.New(), 100)
	mustDeposit(t, eng, uuid.New(), 200)

	outputs := drainOutputs(persistCh)
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}

	if outputs[1].Envelope.PrevHash != outputs[0].Envelope.StateHash {
		t.Error("second envelope's prev hash does not link to the first state hash")
	}
	if outputs[0].Envelope.Sequence != 0 || outputs[1].Envelope.Sequence != 1 {
		t.Errorf("sequences = %d, %d, want 0, 1", outputs[0].Envelope.Sequence, outputs[1].Envelope.Sequence)
	}
	if eng.GetStateHash() != outputs[1].Envelope.StateHash {
		t.Error("engine chain tip does not match the last envelope")
	}
}

func TestStateHashChain_Deterministic(t *testing.T) {
	userID := uuid.New()
	commandID := uuid.New()

	run := func() [32]byte {
		eng, persistCh, _ := newTestEngine()
		mustProcess(t, eng, &command.Deposit{
			CommandID: commandID, UserID: userID, Asset: "USDC", Amount: 1_000, Sequence: 0, Timestamp: 1_000,
		})
		outputs := drainOutputs(persistCh)
		return outputs[0].Envelope.StateHash
	}

	if run() != run() {
		t.Error("same command produced different state hashes across runs")
	}
}

// ============================================================================
// Test: Snapshot Round-Trip
// ============================================================================

func TestSnapshotRoundTrip(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	marketID := uuid.New()
	authority := uuid.New()
	userID := uuid.New()

	mustDeposit(t, eng, userID, 1_000)
	mustProcess(t, eng, &command.CreateMarket{
		CommandID: uuid.New(), MarketID: marketID, Authority: authority,
		Question: "q", Asset: "USDC", ClosesAt: 2_000, Nonce: 1, Sequence: 0, Timestamp: 1_000,
	})
	mustProcess(t, eng, &command.InitPosition{
		CommandID: uuid.New(), MarketID: marketID, UserID: userID, Sequence: 1, Timestamp: 1_100,
	})
	bet := &command.PlaceBet{
		CommandID: uuid.New(), MarketID: marketID, UserID: userID,
		Outcome: int32(market.OutcomeYes), Amount: 300, Sequence: 2, Timestamp: 1_200,
	}
	mustProcess(t, eng, bet)
	drainOutputs(persistCh)

	snap := eng.CreateSnapshotState()

	restored, restoredPersistCh, _ := newTestEngine()
	restored.RestoreFromSnapshot(snap)
	restored.WarmLRU(snap.IdempotencyKeys)

	if restored.GetSequence() != eng.GetSequence() {
		t.Errorf("restored sequence = %d, want %d", restored.GetSequence(), eng.GetSequence())
	}
	if restored.GetStateHash() != eng.GetStateHash() {
		t.Error("restored chain tip differs")
	}
	if got := restored.Book().GetUserCash(userID, usdc); got != 700 {
		t.Errorf("restored user cash = %d, want 700", got)
	}

	// Duplicates stay duplicates across the restore.
	if err := restored.ProcessCommand(bet); err != nil {
		t.Fatalf("replayed duplicate should not error: %v", err)
	}
	if got := drainOutputs(restoredPersistCh); len(got) != 0 {
		t.Errorf("expected 0 outputs for replayed duplicate, got %d", len(got))
	}

	// The restored engine picks up the partition where the original left off.
	mustProcess(t, restored, &command.CloseMarket{
		CommandID: uuid.New(), MarketID: marketID, Actor: authority, Sequence: 3, Timestamp: 1_900,
	})
	outputs := drainOutputs(restoredPersistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output after restore, got %d", len(outputs))
	}
	if outputs[0].Envelope.PrevHash != snap.StateHash {
		t.Error("first post-restore envelope does not link to the snapshot hash")
	}
}

// ============================================================================
// Test: Projection Channel (non-blocking drop)
// ============================================================================

func TestProjectionChannel_DropsOnFull(t *testing.T) {
	persistCh := make(chan engine.Output, 1024)
	projCh := make(chan engine.Output, 1) // Tiny buffer, fills immediately
	eng := engine.NewEngine(0, persistCh, projCh, nil, nil, 0, 1024)

	for i := 0; i < 5; i++ {
		mustDeposit(t, eng, uuid.New(), 100)
	}

	// All 5 commands applied; projection drops are silent.
	if got := drainOutputs(persistCh); len(got) != 5 {
		t.Errorf("expected 5 persist outputs, got %d", len(got))
	}
}

// ============================================================================
// Test: Event Log Replay
// ============================================================================

// loggedEventsChecker mimics the Postgres dedup tier over an in-memory
// event log: any command whose row is in the log reports as a duplicate,
// which is exactly what the real tier sees when the engine re-reads rows
// the log itself produced.
type loggedEventsChecker struct {
	keys map[string]bool
}

func (c loggedEventsChecker) IsDuplicate(commandType, idempotencyKey string) (bool, error) {
	return c.keys[commandType+":"+idempotencyKey], nil
}

func logCheckerFor(outputs []engine.Output) loggedEventsChecker {
	keys := make(map[string]bool, len(outputs))
	for _, out := range outputs {
		env := out.Envelope
		keys[env.CommandType.String()+":"+env.IdempotencyKey] = true
	}
	return loggedEventsChecker{keys: keys}
}

// replayAll decodes each persisted envelope and feeds it back through
// ReplayCommand, checking the recomputed hash against the logged one.
func replayAll(t *testing.T, eng *engine.Engine, outputs []engine.Output) {
	t.Helper()
	for _, out := range outputs {
		env := out.Envelope
		cmd, err := command.DecodePayload(env.CommandType, env.Payload)
		if err != nil {
			t.Fatalf("decode payload seq %d: %v", env.Sequence, err)
		}
		if err := eng.ReplayCommand(cmd); err != nil {
			t.Fatalf("replay seq %d: %v", env.Sequence, err)
		}
		if got := eng.GetStateHash(); got != env.StateHash {
			t.Fatalf("state hash diverged at seq %d", env.Sequence)
		}
	}
}

func TestReplay_RebuildsStateWhenLogReportsDuplicates(t *testing.T) {
	// First life: deposits and a settled market, envelopes captured the
	// way the event log stores them.
	eng, persistCh, _ := newTestEngine()
	authority := uuid.New()
	userA := uuid.New()
	userB := uuid.New()
	marketID := uuid.New()

	mustDeposit(t, eng, userA, 1_000)
	mustDeposit(t, eng, userB, 1_000)
	mustProcess(t, eng, &command.CreateMarket{
		CommandID: uuid.New(), MarketID: marketID, Authority: authority,
		Question: "replayed?", Asset: "USDC", ClosesAt: 2_000, Nonce: 1, Sequence: 0, Timestamp: 1_000,
	})
	mustProcess(t, eng, &command.InitPosition{
		CommandID: uuid.New(), MarketID: marketID, UserID: userA, Sequence: 1, Timestamp: 1_100,
	})
	mustProcess(t, eng, &command.PlaceBet{
		CommandID: uuid.New(), MarketID: marketID, UserID: userA,
		Outcome: int32(market.OutcomeYes), Amount: 300, Sequence: 2, Timestamp: 1_200,
	})
	outputs := drainOutputs(persistCh)

	// Second life: cold engine whose DB tier claims every replayed row
	// is a duplicate. Replay must apply them regardless.
	persistCh2 := make(chan engine.Output, 1024)
	projCh2 := make(chan engine.Output, 1024)
	restarted := engine.NewEngine(0, persistCh2, projCh2, logCheckerFor(outputs), nil, 0, 1024)

	replayAll(t, restarted, outputs)

	if got := restarted.GetSequence(); got != int64(len(outputs)) {
		t.Errorf("sequence after replay = %d, want %d", got, len(outputs))
	}
	if got := restarted.Book().GetUserCash(userA, usdc); got != 700 {
		t.Errorf("userA cash after replay = %d, want 700", got)
	}
	if got := restarted.Book().GetBalance(vault.NewMarketVaultKey(marketID, usdc)); got != 300 {
		t.Errorf("market vault after replay = %d, want 300", got)
	}
	if got := len(persistCh2); got != 0 {
		t.Errorf("replay emitted %d outputs, want none", got)
	}
}

func TestReplay_LiveTrafficContinuesAfterwards(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	userID := uuid.New()
	deposit := &command.Deposit{
		CommandID: uuid.New(), UserID: userID, Asset: "USDC",
		Amount: 500, Sequence: 0, Timestamp: 1_000,
	}
	mustProcess(t, eng, deposit)
	outputs := drainOutputs(persistCh)

	persistCh2 := make(chan engine.Output, 1024)
	projCh2 := make(chan engine.Output, 1024)
	restarted := engine.NewEngine(0, persistCh2, projCh2, logCheckerFor(outputs), nil, 0, 1024)
	replayAll(t, restarted, outputs)

	// A live redelivery of the replayed command dedups via the LRU.
	if err := restarted.ProcessCommand(deposit); err != nil {
		t.Fatalf("redelivered duplicate should not error: %v", err)
	}
	if got := drainOutputs(persistCh2); len(got) != 0 {
		t.Errorf("duplicate emitted %d outputs, want none", len(got))
	}
	if got := restarted.Book().GetUserCash(userID, usdc); got != 500 {
		t.Errorf("cash after duplicate = %d, want 500", got)
	}

	// A genuinely new command takes the next sequence, not a logged one.
	mustProcess(t, restarted, &command.Withdraw{
		CommandID: uuid.New(), UserID: userID, Asset: "USDC",
		Amount: 200, Sequence: 1, Timestamp: 1_100,
	})
	fresh := drainOutputs(persistCh2)
	if len(fresh) != 1 {
		t.Fatalf("expected 1 output, got %d", len(fresh))
	}
	if got := fresh[0].Envelope.Sequence; got != int64(len(outputs)) {
		t.Errorf("new command sequence = %d, want %d", got, len(outputs))
	}
	if got := restarted.Book().GetUserCash(userID, usdc); got != 300 {
		t.Errorf("cash after withdraw = %d, want 300", got)
	}
}

func TestReplay_CorruptRowFailsLoudly(t *testing.T) {
	eng, persistCh, _ := newTestEngine()
	userID := uuid.New()
	mustDeposit(t, eng, userID, 100)
	drainOutputs(persistCh)

	// A withdraw the original engine rejected can never be in the log;
	// hitting one during replay means the log and engine diverged.
	err := eng.ReplayCommand(&command.Withdraw{
		CommandID: uuid.New(), UserID: userID, Asset: "USDC",
		Amount: 500, Sequence: 1, Timestamp: 1_100,
	})
	if err == nil {
		t.Fatal("expected replay of an unfundable withdraw to fail")
	}
}
