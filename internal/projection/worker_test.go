package projection

import (
	"sort"
	"testing"

	"github.com/google/uuid"

	"wagerledger/internal/engine"
	"wagerledger/internal/vault"
)

const usdc = vault.AssetID(2)

func TestBalanceRows_FlattensEngineState(t *testing.T) {
	userID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	marketID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	state := &engine.SnapshotState{
		Sequence: 41,
		Balances: map[vault.AccountKey]int64{
			vault.NewUserCashKey(userID, usdc):      700,
			vault.NewMarketVaultKey(marketID, usdc): 300,
			vault.NewExternalAccountKey(vault.SubTypeExternalDeposits, usdc): -1_000,
		},
	}

	rows := balanceRows(state)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	if !sort.SliceIsSorted(rows, func(i, j int) bool {
		return rows[i].accountPath < rows[j].accountPath
	}) {
		t.Error("rows are not in deterministic path order")
	}

	byPath := make(map[string]balanceRow, len(rows))
	for _, r := range rows {
		byPath[r.accountPath] = r
	}

	user := byPath["user:11111111-1111-1111-1111-111111111111:cash:USDC"]
	if user.balance != 700 || user.assetID != 2 {
		t.Errorf("user row = %+v, want balance 700 asset 2", user)
	}
	escrow := byPath["vault:market:22222222-2222-2222-2222-222222222222:USDC"]
	if escrow.balance != 300 {
		t.Errorf("escrow row = %+v, want balance 300", escrow)
	}
	external := byPath["external:deposits:USDC"]
	if external.balance != -1_000 {
		t.Errorf("external row = %+v, want balance -1000", external)
	}
}

func TestBalanceRows_EmptyState(t *testing.T) {
	rows := balanceRows(&engine.SnapshotState{Balances: map[vault.AccountKey]int64{}})
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}
