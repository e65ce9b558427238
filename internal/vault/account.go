package vault

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeUser AccountScope = iota
	AccountScopeVault
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// User sub-types
	SubTypeCash AccountSubType = iota

	// Vault sub-types
	SubTypeMarketEscrow
	SubTypeTournamentEscrow

	// External sub-types
	SubTypeExternalDeposits
	SubTypeExternalPayouts
)

// AssetID maps asset strings to numeric IDs for performance
type AssetID uint16

var (
	assetToID = map[string]AssetID{
		"SOL":  1,
		"USDC": 2,
		"USDT": 3,
	}
	idToAsset = map[AssetID]string{
		1: "SOL",
		2: "USDC",
		3: "USDT",
	}
)

func GetAssetID(asset string) (AssetID, bool) {
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	name, ok := idToAsset[id]
	return name, ok
}

// AccountKey is the in-memory key for balance tracking (20 bytes, cache-friendly)
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // UUID of the user, market, or tournament
	SubType  AccountSubType
	AssetID  AssetID
}

// NewUserCashKey creates the cash account key for a user
func NewUserCashKey(userID uuid.UUID, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeUser,
		EntityID: userID,
		SubType:  SubTypeCash,
		AssetID:  assetID,
	}
}

// NewMarketVaultKey creates the escrow account key for a market
func NewMarketVaultKey(marketID uuid.UUID, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeVault,
		EntityID: marketID,
		SubType:  SubTypeMarketEscrow,
		AssetID:  assetID,
	}
}

// NewTournamentVaultKey creates the escrow account key for a tournament
func NewTournamentVaultKey(tournamentID uuid.UUID, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeVault,
		EntityID: tournamentID,
		SubType:  SubTypeTournamentEscrow,
		AssetID:  assetID,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		AssetID: assetID,
	}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.AssetID)

	switch k.Scope {
	case AccountScopeUser:
		uid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("user:%s:cash:%s", uid.String(), assetName)
	case AccountScopeVault:
		eid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("vault:%s:%s:%s", k.subTypeName(), eid.String(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

// ParseAccountPath is the inverse of AccountPath. Used when restoring
// balance snapshots keyed by path strings.
func ParseAccountPath(path string) (AccountKey, error) {
	parts := strings.Split(path, ":")
	if len(parts) < 3 {
		return AccountKey{}, fmt.Errorf("malformed account path %q", path)
	}

	switch parts[0] {
	case "user":
		if len(parts) != 4 || parts[2] != "cash" {
			return AccountKey{}, fmt.Errorf("malformed user account path %q", path)
		}
		uid, err := uuid.Parse(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("bad user id in %q: %w", path, err)
		}
		assetID, ok := GetAssetID(parts[3])
		if !ok {
			return AccountKey{}, fmt.Errorf("unknown asset in %q", path)
		}
		return NewUserCashKey(uid, assetID), nil

	case "vault":
		if len(parts) != 4 {
			return AccountKey{}, fmt.Errorf("malformed vault account path %q", path)
		}
		eid, err := uuid.Parse(parts[2])
		if err != nil {
			return AccountKey{}, fmt.Errorf("bad entity id in %q: %w", path, err)
		}
		assetID, ok := GetAssetID(parts[3])
		if !ok {
			return AccountKey{}, fmt.Errorf("unknown asset in %q", path)
		}
		switch parts[1] {
		case "market":
			return NewMarketVaultKey(eid, assetID), nil
		case "tournament":
			return NewTournamentVaultKey(eid, assetID), nil
		}
		return AccountKey{}, fmt.Errorf("unknown vault kind in %q", path)

	case "external":
		if len(parts) != 3 {
			return AccountKey{}, fmt.Errorf("malformed external account path %q", path)
		}
		assetID, ok := GetAssetID(parts[2])
		if !ok {
			return AccountKey{}, fmt.Errorf("unknown asset in %q", path)
		}
		switch parts[1] {
		case "deposits":
			return NewExternalAccountKey(SubTypeExternalDeposits, assetID), nil
		case "payouts":
			return NewExternalAccountKey(SubTypeExternalPayouts, assetID), nil
		}
		return AccountKey{}, fmt.Errorf("unknown external account in %q", path)
	}

	return AccountKey{}, fmt.Errorf("unknown account scope in %q", path)
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeCash:
		return "cash"
	case SubTypeMarketEscrow:
		return "market"
	case SubTypeTournamentEscrow:
		return "tournament"
	case SubTypeExternalDeposits:
		return "deposits"
	case SubTypeExternalPayouts:
		return "payouts"
	default:
		return "unknown"
	}
}
