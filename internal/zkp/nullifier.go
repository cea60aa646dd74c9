package zkp

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"

	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

// Nullifier errors
var (
	ErrNullifierSpent   = errors.New("nullifier already spent")
	ErrNullifierInvalid = errors.New("invalid nullifier")
)

// Domain tags separate nullifiers derived for different actions so that
// reusing a secret across, say, a bid and a vote never collides and can
// never be correlated.
const (
	DomainBid       = "LENDCIRCLE_NF_BID"
	DomainVote      = "LENDCIRCLE_NF_VOTE"
	DomainMix       = "LENDCIRCLE_NF_MIX"
	DomainTransfer  = "LENDCIRCLE_NF_TRANSFER"
	DomainSpend     = "LENDCIRCLE_NF_SPEND"
	DomainDefault   = "LENDCIRCLE_NF_DEFAULT"
	DomainMembership = "LENDCIRCLE_NF_MEMBERSHIP"
)

// NullifierSet tracks spent nullifiers to prevent double-use (a double
// bid, a repeated vote on the same proposal, a replayed mix input). A
// spent nullifier is rejected whatever scope it was recorded under; one
// set may serve several domains, which domain-tagged derivation keeps
// apart.
type NullifierSet struct {
	mu sync.RWMutex

	cache map[types.Hash]struct{}

	store NullifierStore

	maxCacheSize int
}

// NullifierStore is the persistence boundary for spent nullifiers.
type NullifierStore interface {
	HasNullifier(ctx context.Context, nullifier types.Hash) (bool, error)
	AddNullifier(ctx context.Context, nullifier types.Hash, scope types.Hash, recordedAt uint64) error
	GetNullifierInfo(ctx context.Context, nullifier types.Hash) (*NullifierInfo, error)
}

// NullifierInfo describes a previously recorded nullifier. Scope holds the
// bounding context (proposal ID, circle+round hash, pool ID) under which
// the nullifier was marked spent.
type NullifierInfo struct {
	Nullifier  types.Hash
	Scope      types.Hash
	RecordedAt uint64
}

// NullifierConfig configures a NullifierSet's in-memory cache.
type NullifierConfig struct {
	MaxCacheSize int
}

// DefaultNullifierConfig returns sane defaults for a single protocol
// instance.
func DefaultNullifierConfig() *NullifierConfig {
	return &NullifierConfig{
		MaxCacheSize: 100000,
	}
}

// NewNullifierSet creates a nullifier set backed by store.
func NewNullifierSet(store NullifierStore, cfg *NullifierConfig) *NullifierSet {
	if cfg == nil {
		cfg = DefaultNullifierConfig()
	}

	return &NullifierSet{
		cache:        make(map[types.Hash]struct{}),
		store:        store,
		maxCacheSize: cfg.MaxCacheSize,
	}
}

// IsSpent reports whether nullifier has already been recorded.
func (ns *NullifierSet) IsSpent(ctx context.Context, nullifier types.Hash) (bool, error) {
	ns.mu.RLock()
	_, inCache := ns.cache[nullifier]
	ns.mu.RUnlock()

	if inCache {
		return true, nil
	}

	return ns.store.HasNullifier(ctx, nullifier)
}

// MarkSpent records nullifier as spent within scope, failing if it was
// already recorded anywhere (nullifiers are domain-tagged, so reuse
// across domains never reaches this check).
func (ns *NullifierSet) MarkSpent(ctx context.Context, nullifier types.Hash, scope types.Hash, recordedAt uint64) error {
	spent, err := ns.IsSpent(ctx, nullifier)
	if err != nil {
		return err
	}
	if spent {
		return ErrNullifierSpent
	}

	if err := ns.store.AddNullifier(ctx, nullifier, scope, recordedAt); err != nil {
		return err
	}

	ns.mu.Lock()
	ns.cache[nullifier] = struct{}{}

	if len(ns.cache) > ns.maxCacheSize {
		for k := range ns.cache {
			delete(ns.cache, k)
			break
		}
	}
	ns.mu.Unlock()

	return nil
}

// BatchCheck checks many nullifiers in one pass, reporting for each, in
// order, whether it has already been spent.
func (ns *NullifierSet) BatchCheck(ctx context.Context, nullifiers []types.Hash) ([]bool, error) {
	results := make([]bool, len(nullifiers))

	for i, nullifier := range nullifiers {
		spent, err := ns.IsSpent(ctx, nullifier)
		if err != nil {
			return nil, err
		}
		results[i] = spent
	}

	return results, nil
}

// DeriveNullifier computes nullifier = H(domain || secret || context...).
// The domain tag is the sole thing that prevents the same secret from
// producing colliding nullifiers across unrelated actions.
func DeriveNullifier(domain string, secret []byte, context ...[]byte) types.Hash {
	hasher := sha256.New()
	hasher.Write([]byte(domain))
	hasher.Write(secret)
	for _, c := range context {
		hasher.Write(c)
	}
	return types.HashFromBytes(hasher.Sum(nil))
}

// DeriveVoteNullifier binds a voter's secret to one proposal. Reuse across
// proposals is permitted by design; only repeated voting on the same
// proposal must be rejected.
func DeriveVoteNullifier(secret []byte, proposalID types.Hash) types.Hash {
	return DeriveNullifier(DomainVote, secret, proposalID[:])
}

// DeriveBidNullifier binds a bidder's secret to one circle round.
func DeriveBidNullifier(secret []byte, circleID types.Hash, round int) types.Hash {
	return DeriveNullifier(DomainBid, secret, circleID[:], common8(round))
}

// DeriveDefaultNullifier binds one member to one circle round for default
// detection, so a single missed payment can only be flagged once.
func DeriveDefaultNullifier(memberSecret []byte, circleID types.Hash, round int) types.Hash {
	return DeriveNullifier(DomainDefault, memberSecret, circleID[:], common8(round))
}

func common8(n int) []byte {
	b := make([]byte, 8)
	v := uint64(n)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// NullifierDerivationKey derives a per-purpose key from a spending secret
// so independent subsystems never share raw key material.
func NullifierDerivationKey(secret []byte, purpose string) []byte {
	hasher := sha256.New()
	hasher.Write([]byte(purpose))
	hasher.Write(secret)
	return hasher.Sum(nil)
}

// InMemoryNullifierStore is a simple in-process NullifierStore, used by
// tests and single-instance deployments without Postgres configured.
type InMemoryNullifierStore struct {
	mu         sync.RWMutex
	nullifiers map[types.Hash]*NullifierInfo
}

// NewInMemoryNullifierStore creates an empty in-memory store.
func NewInMemoryNullifierStore() *InMemoryNullifierStore {
	return &InMemoryNullifierStore{
		nullifiers: make(map[types.Hash]*NullifierInfo),
	}
}

// HasNullifier reports whether nullifier has been recorded.
func (s *InMemoryNullifierStore) HasNullifier(ctx context.Context, nullifier types.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.nullifiers[nullifier]
	return exists, nil
}

// AddNullifier records nullifier under scope.
func (s *InMemoryNullifierStore) AddNullifier(ctx context.Context, nullifier types.Hash, scope types.Hash, recordedAt uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nullifiers[nullifier]; exists {
		return ErrNullifierSpent
	}

	s.nullifiers[nullifier] = &NullifierInfo{
		Nullifier:  nullifier,
		Scope:      scope,
		RecordedAt: recordedAt,
	}
	return nil
}

// GetNullifierInfo returns the recorded info for nullifier.
func (s *InMemoryNullifierStore) GetNullifierInfo(ctx context.Context, nullifier types.Hash) (*NullifierInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, exists := s.nullifiers[nullifier]
	if !exists {
		return nil, ErrNullifierInvalid
	}
	return info, nil
}

// Size returns the number of recorded nullifiers.
func (s *InMemoryNullifierStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nullifiers)
}
