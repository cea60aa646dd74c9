// Package circle implements lending-circle lifecycle: creation, joining,
// round advancement, and the per-circle insurance pool that backstops a
// member default.
package circle

import (
	"context"
	"errors"
	"sync"

	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

var (
	ErrCircleNotFound   = errors.New("circle not found")
	ErrCircleFull        = errors.New("circle has no open seats")
	ErrCircleInactive    = errors.New("circle is not active")
	ErrInvalidRound      = errors.New("round is out of range for this circle")
	ErrBelowStake        = errors.New("stake amount below circle requirement")
	ErrAlreadyFinal      = errors.New("circle has already completed its final round")
	ErrTierTooLow        = errors.New("trust tier does not permit this circle size")
	ErrStakeBelowTierFloor = errors.New("stake requirement below creator's tier floor")
	ErrMemberScoreTooLow = errors.New("member score below the large-circle join threshold")
)

// Store is the persistence boundary for circles.
type Store interface {
	GetCircle(ctx context.Context, circleID types.Hash) (*types.Circle, error)
	SaveCircle(ctx context.Context, c *types.Circle) error
	ListActiveCircles(ctx context.Context) ([]*types.Circle, error)
}

// Manager drives circle lifecycle transitions.
type Manager struct {
	mu    sync.RWMutex
	store Store
}

// NewManager creates a circle manager backed by store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Create instantiates a new circle with the given parameters.
func (m *Manager) Create(ctx context.Context, circleID types.Hash, params types.CircleParams, createdAt uint64) (*types.Circle, error) {
	if params.MaxMembers <= 0 || params.TotalRounds <= 0 {
		return nil, errors.New("invalid circle parameters")
	}

	c := &types.Circle{
		CircleID:       circleID,
		Params:         params,
		CurrentRound:   0,
		MemberCount:    0,
		Active:         true,
		MembershipRoot: types.EmptyHash,
		CreatedAt:      createdAt,
		InsurancePool:  0,
	}

	if err := m.store.SaveCircle(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Join admits one more member into circleID, provided there is an open
// seat and the member's stake meets required — the caller's (possibly
// tier-discounted) stake floor, not necessarily the raw circle params.
func (m *Manager) Join(ctx context.Context, circleID types.Hash, stake, required uint64, membershipRoot types.Hash) (*types.Circle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.store.GetCircle(ctx, circleID)
	if err != nil {
		return nil, ErrCircleNotFound
	}
	if !c.Active {
		return nil, ErrCircleInactive
	}
	if c.MemberCount >= c.Params.MaxMembers {
		return nil, ErrCircleFull
	}
	if stake < required {
		return nil, ErrBelowStake
	}

	c.MemberCount++
	c.MembershipRoot = membershipRoot

	if err := m.store.SaveCircle(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AdvanceRound moves circleID to its next round, or marks it inactive once
// every round has completed.
func (m *Manager) AdvanceRound(ctx context.Context, circleID types.Hash) (*types.Circle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.store.GetCircle(ctx, circleID)
	if err != nil {
		return nil, ErrCircleNotFound
	}
	if !c.Active {
		return nil, ErrCircleInactive
	}
	if c.CurrentRound >= c.Params.TotalRounds {
		return nil, ErrAlreadyFinal
	}

	c.CurrentRound++
	if c.CurrentRound >= c.Params.TotalRounds {
		c.Active = false
	}

	if err := m.store.SaveCircle(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ContributeToInsurance adds amount to circleID's insurance pool, funded
// by the per-round protocol fee.
func (m *Manager) ContributeToInsurance(ctx context.Context, circleID types.Hash, amount uint64) (*types.Circle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.store.GetCircle(ctx, circleID)
	if err != nil {
		return nil, ErrCircleNotFound
	}

	c.InsurancePool += amount

	if err := m.store.SaveCircle(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DrawInsurance pays amount out of circleID's insurance pool to cover a
// default, failing if the pool cannot cover it.
func (m *Manager) DrawInsurance(ctx context.Context, circleID types.Hash, amount uint64) (*types.Circle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.store.GetCircle(ctx, circleID)
	if err != nil {
		return nil, ErrCircleNotFound
	}
	if c.InsurancePool < amount {
		return nil, errors.New("insurance pool cannot cover this amount")
	}

	c.InsurancePool -= amount

	if err := m.store.SaveCircle(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns circleID's current state.
func (m *Manager) Get(ctx context.Context, circleID types.Hash) (*types.Circle, error) {
	c, err := m.store.GetCircle(ctx, circleID)
	if err != nil {
		return nil, ErrCircleNotFound
	}
	return c, nil
}

// InMemoryStore is a simple in-process Store for tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	circles map[types.Hash]*types.Circle
}

// NewInMemoryStore creates an empty in-memory circle store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{circles: make(map[types.Hash]*types.Circle)}
}

// GetCircle returns the stored circle for circleID.
func (s *InMemoryStore) GetCircle(ctx context.Context, circleID types.Hash) (*types.Circle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, exists := s.circles[circleID]
	if !exists {
		return nil, ErrCircleNotFound
	}
	return c, nil
}

// SaveCircle stores c.
func (s *InMemoryStore) SaveCircle(ctx context.Context, c *types.Circle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.circles[c.CircleID] = c
	return nil
}

// ListActiveCircles returns every circle with Active set.
func (s *InMemoryStore) ListActiveCircles(ctx context.Context) ([]*types.Circle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Circle, 0)
	for _, c := range s.circles {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}
