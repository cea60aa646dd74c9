// Package trust implements the trust-score engine: weighted factor
// scoring, tier classification, and the tier-gated capability policy that
// the protocol façade consults before letting a member create or join a
// larger circle.
package trust

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/common"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

var (
	ErrNotFound      = errors.New("trust record not found")
	ErrScoreOverflow = errors.New("score delta would leave valid range")
)

// MinScore and MaxScore bound the 0-1000 trust score space.
const (
	MinScore uint32 = 0
	MaxScore uint32 = 1000
)

// tierFloors is the contiguous tier table, lowest tier first.
var tierFloors = []struct {
	tier  types.Tier
	floor uint32
}{
	{types.TierNewcomer, 0},
	{types.TierApprentice, 200},
	{types.TierBuilder, 400},
	{types.TierGuardian, 600},
	{types.TierSage, 800},
	{types.TierLunar, 900},
}

// scoreDelta computes event's effect on score, the current score before
// the event is applied. Positive deltas shrink as score climbs (there's
// less room left to build); negative deltas grow with score (more trust
// accumulated means more to lose), so a member can't grind back to a high
// score after a serious default just by repeating cheap positive events.
func scoreDelta(score uint32, event types.ScoreEvent) (int32, bool) {
	s := int64(score)
	switch event {
	case types.EventPaymentSuccess:
		switch {
		case s < 300:
			return 20, true
		case s < 600:
			return 15, true
		case s < 800:
			return 10, true
		default:
			return 7, true
		}
	case types.EventPaymentLate:
		delta := s * 3 / 100
		if delta > 30 {
			delta = 30
		}
		return int32(-delta), true
	case types.EventPaymentDefault:
		delta := s * 15 / 100
		if delta > 150 {
			delta = 150
		}
		return int32(-delta), true
	case types.EventCircleCompletion:
		delta := (1000 - s) * 3 / 100
		if delta > 25 {
			delta = 25
		}
		return int32(delta), true
	case types.EventDeFiInteraction:
		delta := (1000 - s) * 2 / 100
		if delta > 15 {
			delta = 15
		}
		return int32(delta), true
	case types.EventSocialVerification:
		delta := (1000 - s) * 1 / 100
		if delta > 10 {
			delta = 10
		}
		return int32(delta), true
	default:
		return 0, false
	}
}

// ScoreRecord is one member's trust-score state.
type ScoreRecord struct {
	IC               types.IdentityCommitment
	Score            uint32
	PaymentSuccesses int
	PaymentFailures  int
	CirclesCompleted int
	LastUpdated      uint64
}

// Store is the persistence boundary for trust records.
type Store interface {
	GetScore(ctx context.Context, ic types.IdentityCommitment) (*ScoreRecord, error)
	SaveScore(ctx context.Context, rec *ScoreRecord) error
	GetAllScores(ctx context.Context) ([]*ScoreRecord, error)
}

// Manager tracks and updates trust scores and answers tier-gated
// capability checks.
type Manager struct {
	mu sync.RWMutex

	store  Store
	cache  map[types.IdentityCommitment]*ScoreRecord
	oracle *zkp.Oracle
}

// NewManager creates a trust manager backed by store, using oracle to
// produce threshold attestations that don't reveal the exact score.
func NewManager(store Store, oracle *zkp.Oracle) *Manager {
	return &Manager{
		store:  store,
		cache:  make(map[types.IdentityCommitment]*ScoreRecord),
		oracle: oracle,
	}
}

// GetScore returns a member's record, seeding a Newcomer record if none
// exists yet.
func (m *Manager) GetScore(ctx context.Context, ic types.IdentityCommitment) (*ScoreRecord, error) {
	m.mu.RLock()
	if rec, exists := m.cache[ic]; exists {
		m.mu.RUnlock()
		return rec, nil
	}
	m.mu.RUnlock()

	rec, err := m.store.GetScore(ctx, ic)
	if err != nil {
		rec = &ScoreRecord{IC: ic, Score: MinScore}
	}

	m.mu.Lock()
	m.cache[ic] = rec
	m.mu.Unlock()

	return rec, nil
}

// ApplyEvent records event for ic at timestamp now and persists the
// updated score.
func (m *Manager) ApplyEvent(ctx context.Context, ic types.IdentityCommitment, event types.ScoreEvent, now uint64) (*ScoreRecord, error) {
	rec, err := m.GetScore(ctx, ic)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delta, known := scoreDelta(rec.Score, event)
	if !known {
		return nil, errors.New("unknown score event")
	}

	newScore := int32(rec.Score) + delta
	if newScore < 0 {
		newScore = 0
	}
	rec.Score = uint32(common.Clamp(uint64(newScore), uint64(MinScore), uint64(MaxScore)))
	rec.LastUpdated = now

	switch event {
	case types.EventPaymentSuccess:
		rec.PaymentSuccesses++
	case types.EventPaymentLate, types.EventPaymentDefault:
		rec.PaymentFailures++
	case types.EventCircleCompletion:
		rec.CirclesCompleted++
	}

	if err := m.store.SaveScore(ctx, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// TierOf classifies a score into its contiguous tier.
func TierOf(score uint32) types.Tier {
	tier := types.TierNewcomer
	for _, t := range tierFloors {
		if score >= t.floor {
			tier = t.tier
		}
	}
	return tier
}

// unit is the base token denomination (u = 10^18 minor units) the tier
// stake table is expressed in.
const unit = 1_000_000_000_000_000_000

// tierStakeTable is each tier's minimum circle stake requirement.
var tierStakeTable = map[types.Tier]uint64{
	types.TierNewcomer:   unit / 20, // 0.05u
	types.TierApprentice: unit / 10, // 0.10u
	types.TierBuilder:    unit / 4,  // 0.25u
	types.TierGuardian:   unit / 2,  // 0.50u
	types.TierSage:       unit,      // 1.0u
	types.TierLunar:      2 * unit,  // 2.0u
}

// TierStake returns the minimum stake_requirement a circle created by a
// member holding score may set.
func TierStake(score uint32) uint64 {
	return tierStakeTable[TierOf(score)]
}

// actionRequirements gates each protocol action on a minimum tier.
var actionRequirements = map[types.Action]types.Tier{
	types.ActionJoinSmallCircle:    types.TierNewcomer,
	types.ActionJoinMediumCircle:   types.TierApprentice,
	types.ActionCreateSmallCircle:  types.TierBuilder,
	types.ActionCreateMediumCircle: types.TierGuardian,
	types.ActionCreateLargeCircle:  types.TierSage,
	types.ActionGuarantor:          types.TierGuardian,
	types.ActionVote:               types.TierGuardian,
	types.ActionPropose:            types.TierSage,
	types.ActionCrossChainBenefits: types.TierLunar,
}

// May reports whether a member holding score may perform action.
func May(score uint32, action types.Action) bool {
	required, known := actionRequirements[action]
	if !known {
		return false
	}
	return TierOf(score) >= required
}

// ProveThreshold produces a zero-knowledge attestation that ic's score is
// at least threshold, without revealing the exact value. blinder must be
// the same blinder used to originally commit the score.
func (m *Manager) ProveThreshold(ctx context.Context, ic types.IdentityCommitment, threshold uint32, blinder *big.Int) (*zkp.ProofData, error) {
	rec, err := m.GetScore(ctx, ic)
	if err != nil {
		return nil, err
	}
	if rec.Score < threshold {
		return nil, errors.New("score below requested threshold")
	}

	witness := &zkp.RangeCircuit{
		MinValue: threshold,
		MaxValue: MaxScore,
		Value:    rec.Score,
		Blinder:  blinder,
	}

	return m.oracle.Prove(ctx, zkp.CircuitTrustScore, witness)
}

// InMemoryStore is a simple in-process Store for tests and single-node
// deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[types.IdentityCommitment]*ScoreRecord
}

// NewInMemoryStore creates an empty in-memory trust store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[types.IdentityCommitment]*ScoreRecord)}
}

// GetScore returns the stored record for ic.
func (s *InMemoryStore) GetScore(ctx context.Context, ic types.IdentityCommitment) (*ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, exists := s.records[ic]
	if !exists {
		return nil, ErrNotFound
	}
	return rec, nil
}

// SaveScore stores rec.
func (s *InMemoryStore) SaveScore(ctx context.Context, rec *ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.IC] = rec
	return nil
}

// GetAllScores returns every stored record.
func (s *InMemoryStore) GetAllScores(ctx context.Context) ([]*ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ScoreRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}
