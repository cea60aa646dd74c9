// Package risk implements tier-adjusted stake requirements, anonymous
// default detection, justified liquidation, and penalty enforcement with
// appeal windows.
package risk

import (
	"context"
	"errors"
	"sync"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

var (
	ErrDefaultAlreadyFlagged = errors.New("member-round already flagged for default")
	ErrDefaultProofFailed    = errors.New("default-detection proof failed verification")
	ErrLiquidationProofFailed = errors.New("liquidation justification proof failed verification")
	ErrPenaltyNotFound       = errors.New("penalty record not found")
	ErrAppealWindowClosed    = errors.New("appeal window has closed")
)

// trustMultiplier scales stake by trust score bracket: lower scores carry
// more default risk and so post more stake. Within a bracket the
// multiplier eases down slightly as score climbs toward the next
// bracket, so two members in the same bracket aren't treated identically.
func trustMultiplier(score uint32) float64 {
	var base float64
	switch {
	case score < 200:
		base = 3.0
	case score < 400:
		base = 2.0
	case score < 600:
		base = 1.5
	case score < 800:
		base = 1.2
	default:
		base = 1.0
	}
	frac := float64(score%200) / 200.0
	return base - 0.1*frac
}

// riskMultiplier scales stake by the circle's own risk surface: larger
// circles concentrate more capital at stake per round, and a member's
// own history of missed payments raises their individual risk multiplier.
func riskMultiplier(circleSize int, missedPayments int) float64 {
	mult := 1.0
	switch {
	case circleSize > 12:
		mult *= 1.3
	case circleSize > 8:
		mult *= 1.1
	}
	mult *= 1 + 0.5*float64(missedPayments)
	return mult
}

// RiskAdjustedStake returns the stake a member with the given trust score
// and missed-payment history must post to join a circle of circleSize
// whose nominal requirement is baseStake.
func RiskAdjustedStake(score uint32, baseStake uint64, circleSize int, missedPayments int) uint64 {
	adjusted := float64(baseStake) * trustMultiplier(score) * riskMultiplier(circleSize, missedPayments)
	return uint64(adjusted)
}

// DefaultStore is the persistence boundary for default flags.
type DefaultStore interface {
	SaveFlag(ctx context.Context, flag *types.DefaultFlag) error
	ListFlags(ctx context.Context, circleID types.Hash, round int) ([]types.DefaultFlag, error)
}

// LiquidationStore is the persistence boundary for liquidation orders.
type LiquidationStore interface {
	SaveOrder(ctx context.Context, order *types.LiquidationOrder) error
	GetOrder(ctx context.Context, orderID types.Hash) (*types.LiquidationOrder, error)
}

// PenaltyStore is the persistence boundary for penalty records.
type PenaltyStore interface {
	SaveRecord(ctx context.Context, record *types.PenaltyRecord) error
	GetRecord(ctx context.Context, recordID types.Hash) (*types.PenaltyRecord, error)
}

// Engine drives default detection, liquidation, and penalty enforcement.
// InterventionThreshold is the aggregate confidential-severity score past
// which a round's defaults require active intervention.
type Engine struct {
	mu sync.Mutex

	defaults     DefaultStore
	liquidations LiquidationStore
	penalties    PenaltyStore
	oracle       *zkp.Oracle
	nullifiers   *zkp.NullifierSet

	InterventionThreshold int
}

// NewEngine creates a risk engine with the given interventionThreshold.
func NewEngine(defaults DefaultStore, liquidations LiquidationStore, penalties PenaltyStore, oracle *zkp.Oracle, nullifiers *zkp.NullifierSet, interventionThreshold int) *Engine {
	return &Engine{
		defaults:              defaults,
		liquidations:          liquidations,
		penalties:             penalties,
		oracle:                oracle,
		nullifiers:            nullifiers,
		InterventionThreshold: interventionThreshold,
	}
}

// FlagDefault records an anonymous missed-payment flag for one member-round,
// deriving the member's default nullifier so the same member cannot be
// flagged twice for the same round while remaining unlinkable across
// circles.
func (e *Engine) FlagDefault(ctx context.Context, memberSecret []byte, circleID types.Hash, round int, severityCommit types.Hash, proof []byte, now uint64) (*types.DefaultFlag, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nullifier := zkp.DeriveDefaultNullifier(memberSecret, circleID, round)

	spent, err := e.nullifiers.IsSpent(ctx, nullifier)
	if err != nil {
		return nil, err
	}
	if spent {
		return nil, ErrDefaultAlreadyFlagged
	}

	ok, err := e.oracle.Verify(ctx, &zkp.ProofData{CircuitID: zkp.CircuitDefaultDetection, Proof: proof})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDefaultProofFailed
	}

	if err := e.nullifiers.MarkSpent(ctx, nullifier, circleID, now); err != nil {
		return nil, err
	}

	flag := &types.DefaultFlag{
		Nullifier:      nullifier,
		CircleID:       circleID,
		Round:          round,
		SeverityCommit: severityCommit,
		Proof:          proof,
		FlaggedAt:      now,
	}
	if err := e.defaults.SaveFlag(ctx, flag); err != nil {
		return nil, err
	}
	return flag, nil
}

// DetectDefaults aggregates circleID/round's flags into a confidential
// severity score, without ever revealing which members were flagged.
func (e *Engine) DetectDefaults(ctx context.Context, circleID types.Hash, round int) (*types.DefaultDetectionResult, error) {
	flags, err := e.defaults.ListFlags(ctx, circleID, round)
	if err != nil {
		return nil, err
	}

	// Each flag contributes a fixed unit of confidential severity; the
	// actual per-flag severity stays hidden behind SeverityCommit.
	severity := len(flags) * 10

	return &types.DefaultDetectionResult{
		Flags:                flags,
		ConfidentialSeverity: severity,
		RequiresIntervention: severity >= e.InterventionThreshold,
	}, nil
}

// Liquidate authors a liquidation order against targetNullifier only once
// justificationProof verifies; there is no path to issue an order on an
// unverified justification.
func (e *Engine) Liquidate(ctx context.Context, orderID types.Hash, circleID types.Hash, targetNullifier types.Hash, encryptedReason []byte, amount uint64, justificationProof []byte, executionDeadline uint64, now uint64) (*types.LiquidationOrder, error) {
	ok, err := e.oracle.Verify(ctx, &zkp.ProofData{CircuitID: zkp.CircuitLiquidation, Proof: justificationProof})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLiquidationProofFailed
	}

	order := &types.LiquidationOrder{
		OrderID:           orderID,
		CircleID:          circleID,
		TargetNullifier:   targetNullifier,
		EncryptedReason:   encryptedReason,
		LiquidationAmount: amount,
		ExecutionDeadline: executionDeadline,
		CreatedAt:         now,
	}
	if err := e.liquidations.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// Penalize records an enforcement action against targetNullifier with an
// appeal window of appealSeconds from now.
func (e *Engine) Penalize(ctx context.Context, recordID types.Hash, targetNullifier types.Hash, penaltyType types.PenaltyType, severity int, encryptedReason []byte, appealSeconds uint64, now uint64) (*types.PenaltyRecord, error) {
	record := &types.PenaltyRecord{
		RecordID:        recordID,
		TargetNullifier: targetNullifier,
		Type:            penaltyType,
		Severity:        severity,
		EncryptedReason: encryptedReason,
		AppealDeadline:  now + appealSeconds,
		CreatedAt:       now,
	}
	if err := e.penalties.SaveRecord(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Appeal checks whether recordID's appeal window is still open at now.
// Actual adjudication of the appeal is left to governance; this only
// gates the deadline.
func (e *Engine) Appeal(ctx context.Context, recordID types.Hash, now uint64) (*types.PenaltyRecord, error) {
	record, err := e.penalties.GetRecord(ctx, recordID)
	if err != nil {
		return nil, ErrPenaltyNotFound
	}
	if now > record.AppealDeadline {
		return nil, ErrAppealWindowClosed
	}
	return record, nil
}

// InMemoryDefaultStore is a simple in-process DefaultStore for tests.
type InMemoryDefaultStore struct {
	mu    sync.RWMutex
	flags map[types.Hash][]types.DefaultFlag
}

// NewInMemoryDefaultStore creates an empty in-memory default store.
func NewInMemoryDefaultStore() *InMemoryDefaultStore {
	return &InMemoryDefaultStore{flags: make(map[types.Hash][]types.DefaultFlag)}
}

func defaultFlagKey(circleID types.Hash, round int) types.Hash {
	return types.HashFromBytes(append(append([]byte{}, circleID[:]...), byte(round)))
}

// SaveFlag appends flag to its circle-round bucket.
func (s *InMemoryDefaultStore) SaveFlag(ctx context.Context, flag *types.DefaultFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := defaultFlagKey(flag.CircleID, flag.Round)
	s.flags[key] = append(s.flags[key], *flag)
	return nil
}

// ListFlags returns every flag recorded for circleID/round.
func (s *InMemoryDefaultStore) ListFlags(ctx context.Context, circleID types.Hash, round int) ([]types.DefaultFlag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[defaultFlagKey(circleID, round)], nil
}

// InMemoryLiquidationStore is a simple in-process LiquidationStore for tests.
type InMemoryLiquidationStore struct {
	mu     sync.RWMutex
	orders map[types.Hash]*types.LiquidationOrder
}

// NewInMemoryLiquidationStore creates an empty in-memory liquidation store.
func NewInMemoryLiquidationStore() *InMemoryLiquidationStore {
	return &InMemoryLiquidationStore{orders: make(map[types.Hash]*types.LiquidationOrder)}
}

// SaveOrder stores order.
func (s *InMemoryLiquidationStore) SaveOrder(ctx context.Context, order *types.LiquidationOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.OrderID] = order
	return nil
}

// GetOrder returns the stored order for orderID.
func (s *InMemoryLiquidationStore) GetOrder(ctx context.Context, orderID types.Hash) (*types.LiquidationOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, exists := s.orders[orderID]
	if !exists {
		return nil, errors.New("liquidation order not found")
	}
	return o, nil
}

// InMemoryPenaltyStore is a simple in-process PenaltyStore for tests.
type InMemoryPenaltyStore struct {
	mu      sync.RWMutex
	records map[types.Hash]*types.PenaltyRecord
}

// NewInMemoryPenaltyStore creates an empty in-memory penalty store.
func NewInMemoryPenaltyStore() *InMemoryPenaltyStore {
	return &InMemoryPenaltyStore{records: make(map[types.Hash]*types.PenaltyRecord)}
}

// SaveRecord stores record.
func (s *InMemoryPenaltyStore) SaveRecord(ctx context.Context, record *types.PenaltyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.RecordID] = record
	return nil
}

// GetRecord returns the stored record for recordID.
func (s *InMemoryPenaltyStore) GetRecord(ctx context.Context, recordID types.Hash) (*types.PenaltyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.records[recordID]
	if !exists {
		return nil, ErrPenaltyNotFound
	}
	return r, nil
}
