package market_test

import (
	"testing"

	"github.com/google/uuid"

	"wagerledger/internal/errs"
	"wagerledger/internal/market"
	"wagerledger/internal/vault"
)

const usdc = vault.AssetID(2)

func newOpenMarket(t *testing.T) (*market.Manager, *market.Market) {
	t.Helper()
	mgr := market.NewManager()
	m, err := mgr.Create(uuid.New(), uuid.New(), "Will it rain tomorrow?", usdc, 2_000, 1_000, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return mgr, m
}

// ==== Pricing ====

func TestSharesFor_EmptySideBootstraps(t *testing.T) {
	shares, err := market.SharesFor(0, 0, 100, market.OutcomeYes)
	if err != nil {
		t.Fatalf("SharesFor: %v", err)
	}
	if shares != 100 {
		t.Errorf("shares = %d, want 100 (1:1 bootstrap on empty side)", shares)
	}

	// The NO side is still empty even when YES holds funds.
	shares, err = market.SharesFor(500, 0, 100, market.OutcomeNo)
	if err != nil {
		t.Fatalf("SharesFor: %v", err)
	}
	if shares != 100 {
		t.Errorf("shares = %d, want 100", shares)
	}
}

func TestSharesFor_PricedAgainstExistingPools(t *testing.T) {
	// yes=300, no=700, stake 30 on YES: 30 * 1000 / 300 = 100
	shares, err := market.SharesFor(300, 700, 30, market.OutcomeYes)
	if err != nil {
		t.Fatalf("SharesFor: %v", err)
	}
	if shares != 100 {
		t.Errorf("shares = %d, want 100", shares)
	}
}

func TestSharesFor_TruncatesTowardZero(t *testing.T) {
	// 10 * 1000 / 300 = 33.33... -> 33
	shares, err := market.SharesFor(300, 700, 10, market.OutcomeYes)
	if err != nil {
		t.Fatalf("SharesFor: %v", err)
	}
	if shares != 33 {
		t.Errorf("shares = %d, want 33", shares)
	}
}

func TestSharesFor_Rejections(t *testing.T) {
	if _, err := market.SharesFor(300, 700, 0, market.OutcomeYes); err == nil {
		t.Error("expected zero amount to fail")
	}
	if _, err := market.SharesFor(300, 700, 10, market.OutcomeNone); err == nil {
		t.Error("expected OutcomeNone to fail")
	}
}

func TestPrice_EmptyMarketIsEven(t *testing.T) {
	if got := market.PriceYes(0, 0); got != 0.5 {
		t.Errorf("PriceYes(0,0) = %v, want 0.5", got)
	}
	if got := market.PriceNo(0, 0); got != 0.5 {
		t.Errorf("PriceNo(0,0) = %v, want 0.5", got)
	}
}

func TestPrice_ReflectsPools(t *testing.T) {
	yes := market.PriceYes(300, 700)
	no := market.PriceNo(300, 700)
	if yes != 0.3 {
		t.Errorf("PriceYes = %v, want 0.3", yes)
	}
	if no != 0.7 {
		t.Errorf("PriceNo = %v, want 0.7", no)
	}
	if yes+no != 1.0 {
		t.Errorf("prices sum to %v, want 1.0", yes+no)
	}
}

func TestPayoutFor_WinnersSplitThePool(t *testing.T) {
	m := &market.Market{
		MarketID:       uuid.New(),
		Status:         market.StatusSettled,
		Outcome:        market.OutcomeYes,
		YesPool:        300,
		NoPool:         700,
		TotalYesShares: 300,
	}
	p := &market.Position{Outcome: market.OutcomeYes, Shares: 100}

	payout, err := market.PayoutFor(m, p)
	if err != nil {
		t.Fatalf("PayoutFor: %v", err)
	}
	// 100 * 1000 / 300 = 333 (truncated)
	if payout != 333 {
		t.Errorf("payout = %d, want 333", payout)
	}
}

func TestPayoutFor_SumNeverExceedsPool(t *testing.T) {
	m := &market.Market{
		MarketID:       uuid.New(),
		Status:         market.StatusSettled,
		Outcome:        market.OutcomeYes,
		YesPool:        300,
		NoPool:         700,
		TotalYesShares: 301,
	}

	var sum uint64
	for _, shares := range []uint64{100, 100, 101} {
		payout, err := market.PayoutFor(m, &market.Position{Outcome: market.OutcomeYes, Shares: shares})
		if err != nil {
			t.Fatalf("PayoutFor: %v", err)
		}
		sum += payout
	}

	total, _ := m.TotalPool()
	if sum > total {
		t.Errorf("payout sum %d exceeds pool %d", sum, total)
	}
}

func TestPayoutFor_LosersAndUnsettled(t *testing.T) {
	m := &market.Market{
		MarketID:       uuid.New(),
		Status:         market.StatusSettled,
		Outcome:        market.OutcomeYes,
		YesPool:        300,
		NoPool:         700,
		TotalYesShares: 300,
	}

	payout, err := market.PayoutFor(m, &market.Position{Outcome: market.OutcomeNo, Shares: 700})
	if err != nil {
		t.Fatalf("PayoutFor on losing side: %v", err)
	}
	if payout != 0 {
		t.Errorf("losing payout = %d, want 0", payout)
	}

	open := &market.Market{MarketID: uuid.New(), Status: market.StatusOpen}
	if _, err := market.PayoutFor(open, &market.Position{}); err == nil {
		t.Error("expected payout on unsettled market to fail")
	}
}

func TestPayoutFor_NoWinningSharesPaysZero(t *testing.T) {
	// Everyone bet NO, YES won: winning side issued no shares.
	m := &market.Market{
		MarketID: uuid.New(),
		Status:   market.StatusSettled,
		Outcome:  market.OutcomeYes,
		NoPool:   700,
	}

	payout, err := market.PayoutFor(m, &market.Position{Outcome: market.OutcomeYes})
	if err != nil {
		t.Fatalf("PayoutFor: %v", err)
	}
	if payout != 0 {
		t.Errorf("payout = %d, want 0", payout)
	}
}

// ==== Lifecycle ====

func TestManagerCreate_Guards(t *testing.T) {
	mgr := market.NewManager()
	marketID := uuid.New()

	if _, err := mgr.Create(marketID, uuid.New(), "", usdc, 2_000, 1_000, 1); err == nil {
		t.Error("expected empty question to fail")
	}
	if _, err := mgr.Create(marketID, uuid.New(), "q", usdc, 1_000, 1_000, 1); err == nil {
		t.Error("expected cutoff at now to fail")
	}
}

func TestManagerCreate_DuplicateRejected(t *testing.T) {
	mgr := market.NewManager()
	marketID := uuid.New()

	if _, err := mgr.Create(marketID, uuid.New(), "q", usdc, 2_000, 1_000, 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := mgr.Create(marketID, uuid.New(), "q", usdc, 2_000, 1_000, 1)
	if err == nil {
		t.Fatal("expected duplicate market to fail")
	}
	if !errs.IsKind(err, errs.KindStateGuard) {
		t.Errorf("error kind = %v, want KindStateGuard", errs.KindOf(err))
	}
}

func TestGuardBettable_TimeIsAuthoritative(t *testing.T) {
	_, m := newOpenMarket(t)

	if err := m.GuardBettable(1_500); err != nil {
		t.Errorf("GuardBettable before cutoff: %v", err)
	}
	// Status still Open but the cutoff passed.
	if err := m.GuardBettable(2_000); err == nil {
		t.Error("expected bet at cutoff to fail")
	}
}

func TestMarketTransitions(t *testing.T) {
	t.Run("close then settle", func(t *testing.T) {
		_, m := newOpenMarket(t)
		if err := m.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := m.Close(); err == nil {
			t.Error("expected double close to fail")
		}
		if err := m.Settle(market.OutcomeYes, 2_500); err != nil {
			t.Fatalf("Settle: %v", err)
		}
		if m.Status != market.StatusSettled || m.Outcome != market.OutcomeYes {
			t.Errorf("state = %s/%s, want settled/yes", m.Status, m.Outcome)
		}
		if m.SettledAt != 2_500 {
			t.Errorf("SettledAt = %d, want 2500", m.SettledAt)
		}
	})

	t.Run("settle before cutoff fails", func(t *testing.T) {
		_, m := newOpenMarket(t)
		if err := m.Settle(market.OutcomeYes, 1_500); err == nil {
			t.Error("expected settlement before cutoff to fail")
		}
	})

	t.Run("settle requires a real outcome", func(t *testing.T) {
		_, m := newOpenMarket(t)
		if err := m.Settle(market.OutcomeNone, 2_500); err == nil {
			t.Error("expected OutcomeNone settlement to fail")
		}
	})

	t.Run("settled market cannot cancel or resettle", func(t *testing.T) {
		_, m := newOpenMarket(t)
		if err := m.Settle(market.OutcomeNo, 2_500); err != nil {
			t.Fatalf("Settle: %v", err)
		}
		if err := m.Cancel(); err == nil {
			t.Error("expected cancel of settled market to fail")
		}
		if err := m.Settle(market.OutcomeYes, 2_600); err == nil {
			t.Error("expected resettlement to fail")
		}
	})

	t.Run("cancel from open", func(t *testing.T) {
		_, m := newOpenMarket(t)
		if err := m.Cancel(); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if m.Status != market.StatusCancelled {
			t.Errorf("status = %s, want cancelled", m.Status)
		}
	})
}

func TestGuardAuthority(t *testing.T) {
	_, m := newOpenMarket(t)

	if err := m.GuardAuthority(m.Authority); err != nil {
		t.Errorf("GuardAuthority with creator: %v", err)
	}
	err := m.GuardAuthority(uuid.New())
	if err == nil {
		t.Fatal("expected stranger to be rejected")
	}
	if !errs.IsKind(err, errs.KindAuthorization) {
		t.Errorf("error kind = %v, want KindAuthorization", errs.KindOf(err))
	}
}

// ==== Positions ====

func TestInitPosition_OncePerUser(t *testing.T) {
	mgr, m := newOpenMarket(t)
	userID := uuid.New()

	p, err := mgr.InitPosition(m.MarketID, userID, 1_100)
	if err != nil {
		t.Fatalf("InitPosition: %v", err)
	}
	if p.Outcome != market.OutcomeNone {
		t.Errorf("fresh position outcome = %s, want none", p.Outcome)
	}

	if _, err := mgr.InitPosition(m.MarketID, userID, 1_200); err == nil {
		t.Error("expected duplicate init to fail")
	}
	if _, err := mgr.InitPosition(uuid.New(), userID, 1_100); err == nil {
		t.Error("expected init on unknown market to fail")
	}
}

func TestPosition_FirstBetFixesTheSide(t *testing.T) {
	p := &market.Position{Outcome: market.OutcomeNone}

	if err := p.RecordBet(market.OutcomeYes, 100, 100); err != nil {
		t.Fatalf("RecordBet: %v", err)
	}
	if err := p.RecordBet(market.OutcomeYes, 50, 40); err != nil {
		t.Fatalf("RecordBet same side: %v", err)
	}
	if p.Amount != 150 || p.Shares != 140 {
		t.Errorf("position = %d/%d, want 150/140", p.Amount, p.Shares)
	}

	if err := p.RecordBet(market.OutcomeNo, 10, 10); err == nil {
		t.Error("expected opposite-side bet to fail")
	}
}

func TestPosition_OneShotFlags(t *testing.T) {
	p := &market.Position{}

	if err := p.MarkClaimed(); err != nil {
		t.Fatalf("MarkClaimed: %v", err)
	}
	if err := p.MarkClaimed(); err == nil {
		t.Error("expected second claim to fail")
	}
	if err := p.MarkRefunded(); err == nil {
		t.Error("expected refund of claimed position to fail")
	}

	q := &market.Position{}
	if err := q.MarkRefunded(); err != nil {
		t.Fatalf("MarkRefunded: %v", err)
	}
	if err := q.MarkRefunded(); err == nil {
		t.Error("expected second refund to fail")
	}
}

func TestMarketRecordBet_UpdatesPools(t *testing.T) {
	_, m := newOpenMarket(t)

	if err := m.RecordBet(market.OutcomeYes, 300, 300); err != nil {
		t.Fatalf("RecordBet: %v", err)
	}
	if err := m.RecordBet(market.OutcomeNo, 700, 700); err != nil {
		t.Fatalf("RecordBet: %v", err)
	}

	if m.YesPool != 300 || m.NoPool != 700 {
		t.Errorf("pools = %d/%d, want 300/700", m.YesPool, m.NoPool)
	}
	total, err := m.TotalPool()
	if err != nil || total != 1_000 {
		t.Errorf("TotalPool = %d (%v), want 1000", total, err)
	}
}
