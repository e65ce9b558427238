package oracle

import (
	"crypto/ed25519"

	"github.com/google/uuid"

	"wagerledger/internal/errs"
	"wagerledger/internal/vault"
)

// Config binds one entity to one attestation feed.
type Config struct {
	EntityKind      vault.EntityKind
	EntityID        uuid.UUID
	FeedPublicKey   []byte // ed25519
	QueueID         uuid.UUID
	Initialized     bool
	LastVerifiedAt  int64
	LastWinnerCount int
	Version         int64
}

type configKey struct {
	kind vault.EntityKind
	id   uuid.UUID
}

// Registry holds oracle configs. Owned by the engine goroutine.
type Registry struct {
	configs map[configKey]*Config
}

func NewRegistry() *Registry {
	return &Registry{
		configs: make(map[configKey]*Config),
	}
}

// Initialize registers a feed for an entity. One-shot: re-initialization
// would let an authority swap the feed after results are known.
func (r *Registry) Initialize(kind vault.EntityKind, entityID uuid.UUID, feedPublicKey []byte, queueID uuid.UUID) (*Config, error) {
	key := configKey{kind: kind, id: entityID}
	if _, exists := r.configs[key]; exists {
		return nil, errs.New(errs.KindStateGuard, "oracle already initialized for %s %s", kind, entityID)
	}
	if len(feedPublicKey) != ed25519.PublicKeySize {
		return nil, errs.New(errs.KindValidation, "feed key must be %d bytes, got %d", ed25519.PublicKeySize, len(feedPublicKey))
	}

	cfg := &Config{
		EntityKind:    kind,
		EntityID:      entityID,
		FeedPublicKey: append([]byte(nil), feedPublicKey...),
		QueueID:       queueID,
		Initialized:   true,
		Version:       1,
	}
	r.configs[key] = cfg
	return cfg, nil
}

// Get returns the config for an entity.
func (r *Registry) Get(kind vault.EntityKind, entityID uuid.UUID) (*Config, error) {
	cfg, ok := r.configs[configKey{kind: kind, id: entityID}]
	if !ok {
		return nil, errs.New(errs.KindOracleVerification, "no oracle configured for %s %s", kind, entityID)
	}
	return cfg, nil
}

// RecordVerification stamps a successful verification onto the config.
func (r *Registry) RecordVerification(cfg *Config, verifiedAt int64, winnerCount int) {
	cfg.LastVerifiedAt = verifiedAt
	cfg.LastWinnerCount = winnerCount
	cfg.Version++
}

// Configs returns all configs (snapshot use).
func (r *Registry) Configs() []*Config {
	out := make([]*Config, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	return out
}

// Restore reinstates a config from a snapshot.
func (r *Registry) Restore(cfg *Config) {
	r.configs[configKey{kind: cfg.EntityKind, id: cfg.EntityID}] = cfg
}
