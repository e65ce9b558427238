package vault

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"

	"github.com/google/uuid"
)

// AuthorityDomain seeds the derivation so tokens from other deployments
// never collide.
const AuthorityDomain = "wagerledger:vault-authority:v1"

// EntityKind distinguishes the record class a vault belongs to.
type EntityKind uint8

const (
	EntityKindMarket EntityKind = iota + 1
	EntityKindTournament
)

func (k EntityKind) String() string {
	switch k {
	case EntityKindMarket:
		return "market"
	case EntityKindTournament:
		return "tournament"
	default:
		return "unknown"
	}
}

// Authority is a derived capability token. Holding the correct token for a
// vault is the only way to move funds out of it; no private key exists.
type Authority [32]byte

// DeriveAuthority computes the vault authority for an entity. The derivation
// is deterministic over (domain, kind, entity id, nonce) so replay and
// restart reproduce the same token.
func DeriveAuthority(kind EntityKind, entityID uuid.UUID, nonce uint64) Authority {
	h := sha256.New()
	h.Write([]byte(AuthorityDomain))
	h.Write([]byte{byte(kind)})
	h.Write(entityID[:])

	var nonceBuf [8]byte
	binary.LittleEndian.PutUint64(nonceBuf[:], nonce)
	h.Write(nonceBuf[:])

	var a Authority
	copy(a[:], h.Sum(nil))
	return a
}

// Equal compares tokens in constant time.
func (a Authority) Equal(other Authority) bool {
	return subtle.ConstantTimeCompare(a[:], other[:]) == 1
}

func (a Authority) String() string {
	return hex.EncodeToString(a[:])
}

// ParseAuthority decodes a hex-encoded token.
func ParseAuthority(s string) (Authority, bool) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return Authority{}, false
	}
	var a Authority
	copy(a[:], raw)
	return a, true
}
