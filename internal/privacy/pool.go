// Package privacy implements the cross-chain privacy bridge: fixed-
// denomination anonymity pools, a batching transaction mixer, a
// weighted-graph payment router, and the orchestration that ties them
// into one cross-chain transfer.
package privacy

import (
	"context"
	"errors"
	"sync"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

var (
	ErrPoolNotFound       = errors.New("anonymity pool not found")
	ErrBadDenomination    = errors.New("amount does not match any pool denomination")
	ErrNullifierSpent     = errors.New("nullifier already used to withdraw from this pool")
	ErrInvalidMembership   = errors.New("pool membership proof failed verification")
)

// PoolStore is the persistence boundary for anonymity pools.
type PoolStore interface {
	GetPool(ctx context.Context, poolID types.Hash) (*types.AnonymityPool, error)
	SavePool(ctx context.Context, pool *types.AnonymityPool) error
}

// PoolManager runs fixed-denomination anonymity pools, each opened under
// its own pool ID by OpenPool; nothing stops two pools sharing a chain and
// denomination. Deposit accepts only an amount equal to the pool's
// denomination and does not snap amounts to the ladder.
type PoolManager struct {
	mu sync.Mutex

	store      PoolStore
	oracle     *zkp.Oracle
	nullifiers *zkp.NullifierSet
	trees      map[types.Hash]*zkp.CommitmentTree
}

// NewPoolManager creates a pool manager.
func NewPoolManager(store PoolStore, oracle *zkp.Oracle, nullifiers *zkp.NullifierSet) *PoolManager {
	return &PoolManager{
		store:      store,
		oracle:     oracle,
		nullifiers: nullifiers,
		trees:      make(map[types.Hash]*zkp.CommitmentTree),
	}
}

// SnapDenomination rounds amount down to the largest ladder rung it can
// afford, or 0 if it can't afford the smallest rung.
func SnapDenomination(amount uint64) uint64 {
	var best uint64
	for _, d := range types.DenominationLadder {
		if amount >= d {
			best = d
		}
	}
	return best
}

// OpenPool creates a new fixed-denomination pool on chainID.
func (pm *PoolManager) OpenPool(ctx context.Context, poolID types.Hash, chainID types.ChainID, denomination uint64) (*types.AnonymityPool, error) {
	pool := &types.AnonymityPool{
		PoolID:            poolID,
		ChainID:           chainID,
		FixedDenomination: denomination,
		NullifierSet:      make(map[types.Hash]struct{}),
	}
	if err := pm.store.SavePool(ctx, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

func (pm *PoolManager) treeFor(poolID types.Hash) *zkp.CommitmentTree {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	tree, exists := pm.trees[poolID]
	if !exists {
		tree = zkp.NewCommitmentTree(zkp.NewInMemoryTreeStore(), 20)
		pm.trees[poolID] = tree
	}
	return tree
}

// Deposit adds a deposit commitment to poolID, provided amount matches the
// pool's fixed denomination exactly (depositing a non-matching amount
// would itself leak information, defeating the pool's purpose).
func (pm *PoolManager) Deposit(ctx context.Context, poolID types.Hash, amount uint64, commitment types.Hash) (types.Hash, error) {
	pool, err := pm.store.GetPool(ctx, poolID)
	if err != nil {
		return types.EmptyHash, ErrPoolNotFound
	}
	if amount != pool.FixedDenomination {
		return types.EmptyHash, ErrBadDenomination
	}

	tree := pm.treeFor(poolID)
	if _, err := tree.AddCommitment(ctx, commitment); err != nil {
		return types.EmptyHash, err
	}

	pool.CommitmentSet = append(pool.CommitmentSet, commitment)
	pool.MerkleRoot = tree.GetRoot()
	pool.Size++

	if err := pm.store.SavePool(ctx, pool); err != nil {
		return types.EmptyHash, err
	}
	return pool.MerkleRoot, nil
}

// Withdraw releases one denomination from poolID against a membership
// proof and a single-use nullifier, without ever learning which deposit
// is being spent.
func (pm *PoolManager) Withdraw(ctx context.Context, poolID types.Hash, nullifier types.Hash, membershipProof []byte, now uint64) error {
	pool, err := pm.store.GetPool(ctx, poolID)
	if err != nil {
		return ErrPoolNotFound
	}

	spent, err := pm.nullifiers.IsSpent(ctx, nullifier)
	if err != nil {
		return err
	}
	if spent {
		return ErrNullifierSpent
	}

	ok, err := pm.oracle.Verify(ctx, &zkp.ProofData{CircuitID: zkp.CircuitAnonymityPoolMembership, Proof: membershipProof})
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidMembership
	}

	if err := pm.nullifiers.MarkSpent(ctx, nullifier, poolID, now); err != nil {
		return err
	}

	pool.Size--
	return pm.store.SavePool(ctx, pool)
}

// InMemoryPoolStore is a simple in-process PoolStore for tests.
type InMemoryPoolStore struct {
	mu    sync.RWMutex
	pools map[types.Hash]*types.AnonymityPool
}

// NewInMemoryPoolStore creates an empty in-memory pool store.
func NewInMemoryPoolStore() *InMemoryPoolStore {
	return &InMemoryPoolStore{pools: make(map[types.Hash]*types.AnonymityPool)}
}

// GetPool returns the stored pool for poolID.
func (s *InMemoryPoolStore) GetPool(ctx context.Context, poolID types.Hash) (*types.AnonymityPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, exists := s.pools[poolID]
	if !exists {
		return nil, ErrPoolNotFound
	}
	return p, nil
}

// SavePool stores pool.
func (s *InMemoryPoolStore) SavePool(ctx context.Context, pool *types.AnonymityPool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[pool.PoolID] = pool
	return nil
}
