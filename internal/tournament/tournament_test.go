package tournament_test

import (
	"testing"

	"github.com/google/uuid"

	"wagerledger/internal/errs"
	"wagerledger/internal/tournament"
	"wagerledger/internal/vault"
)

const usdc = vault.AssetID(2)

func newRegistration(t *testing.T, entryFee uint64, maxPlayers uint32) (*tournament.Manager, *tournament.Tournament) {
	t.Helper()
	mgr := tournament.NewManager()
	tn, err := mgr.Create(uuid.New(), uuid.New(), "Friday Freeroll", usdc,
		entryFee, maxPlayers, 2_000, 3_000, 1_000, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return mgr, tn
}

// ==== Creation guards ====

func TestManagerCreate_Guards(t *testing.T) {
	mgr := tournament.NewManager()
	authority := uuid.New()

	tests := []struct {
		name       string
		tname      string
		entryFee   uint64
		maxPlayers uint32
		start, end int64
	}{
		{"empty name", "", 10, 8, 2_000, 3_000},
		{"start in the past", "t", 10, 8, 500, 3_000},
		{"start at now", "t", 10, 8, 1_000, 3_000},
		{"start after end", "t", 10, 8, 3_000, 2_000},
		{"zero capacity", "t", 10, 0, 2_000, 3_000},
		{"zero entry fee", "t", 0, 8, 2_000, 3_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mgr.Create(uuid.New(), authority, tt.tname, usdc,
				tt.entryFee, tt.maxPlayers, tt.start, tt.end, 1_000, 1)
			if err == nil {
				t.Error("expected creation to fail")
			}
		})
	}
}

func TestManagerCreate_DuplicateRejected(t *testing.T) {
	mgr := tournament.NewManager()
	id := uuid.New()

	if _, err := mgr.Create(id, uuid.New(), "t", usdc, 10, 8, 2_000, 3_000, 1_000, 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := mgr.Create(id, uuid.New(), "t", usdc, 10, 8, 2_000, 3_000, 1_000, 1); err == nil {
		t.Error("expected duplicate tournament to fail")
	}
}

// ==== Registration ====

func TestGuardRegistrable(t *testing.T) {
	_, tn := newRegistration(t, 10, 2)

	if err := tn.GuardRegistrable(1_500); err != nil {
		t.Errorf("GuardRegistrable in window: %v", err)
	}
	if err := tn.GuardRegistrable(2_000); err == nil {
		t.Error("expected registration at start time to fail")
	}

	// Fill the field.
	if err := tn.RecordRegistration(); err != nil {
		t.Fatalf("RecordRegistration: %v", err)
	}
	if err := tn.RecordRegistration(); err != nil {
		t.Fatalf("RecordRegistration: %v", err)
	}
	err := tn.GuardRegistrable(1_500)
	if err == nil {
		t.Fatal("expected full tournament to reject registration")
	}
	if !errs.IsKind(err, errs.KindStateGuard) {
		t.Errorf("error kind = %v, want KindStateGuard", errs.KindOf(err))
	}
}

func TestRecordRegistration_GrowsPrizePool(t *testing.T) {
	_, tn := newRegistration(t, 10, 8)

	for i := 0; i < 3; i++ {
		if err := tn.RecordRegistration(); err != nil {
			t.Fatalf("RecordRegistration %d: %v", i, err)
		}
	}

	if tn.PrizePool != 30 {
		t.Errorf("prize pool = %d, want 30", tn.PrizePool)
	}
	if tn.CurrentPlayers != 3 {
		t.Errorf("players = %d, want 3", tn.CurrentPlayers)
	}
}

func TestRegister_DuplicatePlayerRejected(t *testing.T) {
	mgr, tn := newRegistration(t, 10, 8)
	playerID := uuid.New()

	entry, err := mgr.Register(tn.TournamentID, playerID, 10, 1_500)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if entry.PaidAmount != 10 {
		t.Errorf("paid amount = %d, want 10", entry.PaidAmount)
	}
	if !mgr.HasEntry(tn.TournamentID, playerID) {
		t.Error("HasEntry = false after registration")
	}

	if _, err := mgr.Register(tn.TournamentID, playerID, 10, 1_600); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

// ==== Lifecycle ====

func TestTournamentTransitions(t *testing.T) {
	t.Run("full run", func(t *testing.T) {
		_, tn := newRegistration(t, 10, 8)

		if err := tn.Start(1_500); err == nil {
			t.Error("expected start before start time to fail")
		}
		if err := tn.Start(2_000); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := tn.End(2_500); err == nil {
			t.Error("expected end before end time to fail")
		}
		if err := tn.End(3_000); err != nil {
			t.Fatalf("End: %v", err)
		}
		if err := tn.Complete(); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if tn.Status != tournament.StatusCompleted {
			t.Errorf("status = %s, want completed", tn.Status)
		}
	})

	t.Run("ended cannot cancel", func(t *testing.T) {
		_, tn := newRegistration(t, 10, 8)
		if err := tn.Start(2_000); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := tn.End(3_000); err != nil {
			t.Fatalf("End: %v", err)
		}
		err := tn.Cancel()
		if err == nil {
			t.Fatal("expected cancel after end to fail")
		}
		if !errs.IsKind(err, errs.KindAlreadyFinalized) {
			t.Errorf("error kind = %v, want KindAlreadyFinalized", errs.KindOf(err))
		}
	})

	t.Run("cancel during registration and play", func(t *testing.T) {
		_, tn := newRegistration(t, 10, 8)
		if err := tn.Cancel(); err != nil {
			t.Fatalf("Cancel from registration: %v", err)
		}
		if err := tn.Cancel(); err == nil {
			t.Error("expected double cancel to fail")
		}

		_, tn2 := newRegistration(t, 10, 8)
		if err := tn2.Start(2_000); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := tn2.Cancel(); err != nil {
			t.Fatalf("Cancel from active: %v", err)
		}
	})

	t.Run("complete requires ended", func(t *testing.T) {
		_, tn := newRegistration(t, 10, 8)
		if err := tn.Complete(); err == nil {
			t.Error("expected complete from registration to fail")
		}
	})
}

// ==== Prize distribution ====

func TestValidateDistribution(t *testing.T) {
	// entry_fee 10, two registered players: pool = 20
	_, tn := newRegistration(t, 10, 2)
	if err := tn.RecordRegistration(); err != nil {
		t.Fatalf("RecordRegistration: %v", err)
	}
	if err := tn.RecordRegistration(); err != nil {
		t.Fatalf("RecordRegistration: %v", err)
	}

	winnerA := uuid.New()
	winnerB := uuid.New()

	t.Run("valid split", func(t *testing.T) {
		total, err := tn.ValidateDistribution([]uuid.UUID{winnerA, winnerB}, []uint64{12, 8})
		if err != nil {
			t.Fatalf("ValidateDistribution: %v", err)
		}
		if total != 20 {
			t.Errorf("total = %d, want 20", total)
		}
	})

	t.Run("partial distribution allowed", func(t *testing.T) {
		total, err := tn.ValidateDistribution([]uuid.UUID{winnerA}, []uint64{15})
		if err != nil {
			t.Fatalf("ValidateDistribution: %v", err)
		}
		if total != 15 {
			t.Errorf("total = %d, want 15", total)
		}
	})

	t.Run("exceeds pool", func(t *testing.T) {
		_, err := tn.ValidateDistribution([]uuid.UUID{winnerA}, []uint64{25})
		if err == nil {
			t.Fatal("expected over-distribution to fail")
		}
		if !errs.IsKind(err, errs.KindInsufficientFunds) {
			t.Errorf("error kind = %v, want KindInsufficientFunds", errs.KindOf(err))
		}
	})

	t.Run("duplicate winner", func(t *testing.T) {
		if _, err := tn.ValidateDistribution([]uuid.UUID{winnerA, winnerA}, []uint64{10, 10}); err == nil {
			t.Error("expected duplicate winner to fail")
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		if _, err := tn.ValidateDistribution([]uuid.UUID{winnerA, winnerB}, []uint64{20}); err == nil {
			t.Error("expected mismatched lists to fail")
		}
	})

	t.Run("empty distribution", func(t *testing.T) {
		if _, err := tn.ValidateDistribution(nil, nil); err == nil {
			t.Error("expected empty distribution to fail")
		}
	})

	t.Run("zero prize", func(t *testing.T) {
		if _, err := tn.ValidateDistribution([]uuid.UUID{winnerA}, []uint64{0}); err == nil {
			t.Error("expected zero prize to fail")
		}
	})
}

func TestDebitPrizePool(t *testing.T) {
	_, tn := newRegistration(t, 10, 8)
	if err := tn.RecordRegistration(); err != nil {
		t.Fatalf("RecordRegistration: %v", err)
	}

	if err := tn.DebitPrizePool(6); err != nil {
		t.Fatalf("DebitPrizePool: %v", err)
	}
	if tn.PrizePool != 4 {
		t.Errorf("prize pool = %d, want 4", tn.PrizePool)
	}

	err := tn.DebitPrizePool(5)
	if err == nil {
		t.Fatal("expected overdraw to fail")
	}
	if !errs.IsKind(err, errs.KindInsufficientFunds) {
		t.Errorf("error kind = %v, want KindInsufficientFunds", errs.KindOf(err))
	}
}

// ==== Entries ====

func TestEntry_RefundOneShot(t *testing.T) {
	e := &tournament.Entry{PaidAmount: 10}

	if err := e.MarkRefunded(); err != nil {
		t.Fatalf("MarkRefunded: %v", err)
	}
	err := e.MarkRefunded()
	if err == nil {
		t.Fatal("expected second refund to fail")
	}
	if !errs.IsKind(err, errs.KindAlreadyFinalized) {
		t.Errorf("error kind = %v, want KindAlreadyFinalized", errs.KindOf(err))
	}
}

func TestGuardAuthority(t *testing.T) {
	_, tn := newRegistration(t, 10, 8)

	if err := tn.GuardAuthority(tn.Authority); err != nil {
		t.Errorf("GuardAuthority with creator: %v", err)
	}
	if err := tn.GuardAuthority(uuid.New()); err == nil {
		t.Error("expected stranger to be rejected")
	}
}
