package oracle

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/google/uuid"

	"wagerledger/internal/errs"
	"wagerledger/internal/vault"
)

// AttestationDomain prefixes every signed message so attestations cannot be
// replayed across deployments or message types.
const AttestationDomain = "wagerledger:attestation:v1"

// Attestation is the resolution payload a feed signs: which entity, when,
// and the exact winners and amounts. The engine re-encodes the payload from
// the caller's own arguments and requires byte equality with the signed
// message, so a valid signature over different values never authorizes a
// distribution.
type Attestation struct {
	EntityKind vault.EntityKind
	EntityID   uuid.UUID
	Timestamp  int64
	Outcome    int32 // market resolution side, zero for tournaments
	Winners    []uuid.UUID
	Amounts    []uint64
}

// CanonicalBytes produces the unique wire form of the attestation. Lengths
// are explicit and integers little-endian; any structural ambiguity here
// would reopen the substitution hole this encoding exists to close.
func (a *Attestation) CanonicalBytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(AttestationDomain)
	buf.WriteByte(byte(a.EntityKind))
	buf.Write(a.EntityID[:])

	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(a.Timestamp))
	buf.Write(scratch[:])

	binary.LittleEndian.PutUint32(scratch[:4], uint32(a.Outcome))
	buf.Write(scratch[:4])

	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(a.Winners)))
	buf.Write(scratch[:4])
	for _, w := range a.Winners {
		buf.Write(w[:])
	}

	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(a.Amounts)))
	buf.Write(scratch[:4])
	for _, amt := range a.Amounts {
		binary.LittleEndian.PutUint64(scratch[:], amt)
		buf.Write(scratch[:])
	}

	return buf.Bytes()
}

// SignedAttestation carries the raw signed message alongside the signature
// and the signer's public key, exactly as received from the feed.
type SignedAttestation struct {
	Message   []byte
	Signature []byte
	Signer    []byte
}

// Verify checks a signed attestation against the expected payload:
//
//  1. the signer is the registered feed key,
//  2. the signed message equals the canonical encoding of expected,
//  3. the Ed25519 signature verifies,
//  4. the attestation is no older than maxAge relative to now.
//
// Every failure is an oracle verification failure; callers never learn
// which check tripped beyond the message text.
func Verify(cfg *Config, signed SignedAttestation, expected *Attestation, now, maxAge int64) error {
	if !cfg.Initialized {
		return errs.New(errs.KindOracleVerification, "oracle not initialized for %s %s", cfg.EntityKind, cfg.EntityID)
	}
	if len(signed.Signer) != ed25519.PublicKeySize {
		return errs.New(errs.KindOracleVerification, "bad signer key length %d", len(signed.Signer))
	}
	if !bytes.Equal(signed.Signer, cfg.FeedPublicKey) {
		return errs.New(errs.KindOracleVerification, "signer is not the registered feed")
	}

	canonical := expected.CanonicalBytes()
	if !bytes.Equal(signed.Message, canonical) {
		return errs.New(errs.KindOracleVerification, "signed message does not match submitted resolution")
	}

	if len(signed.Signature) != ed25519.SignatureSize {
		return errs.New(errs.KindOracleVerification, "bad signature length %d", len(signed.Signature))
	}
	if !ed25519.Verify(ed25519.PublicKey(signed.Signer), signed.Message, signed.Signature) {
		return errs.New(errs.KindOracleVerification, "signature verification failed")
	}

	if maxAge > 0 && now-expected.Timestamp > maxAge {
		return errs.New(errs.KindOracleVerification, "attestation stale: signed at %d, now %d", expected.Timestamp, now)
	}

	return nil
}
