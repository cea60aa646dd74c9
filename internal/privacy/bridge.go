package privacy

import (
	"context"
	"errors"
	"sync"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

var (
	ErrTransferNotFound    = errors.New("cross-chain transfer not found")
	ErrTransferNotPending  = errors.New("transfer is not in a pending state")
	ErrTransferProofFailed = errors.New("transfer proof failed verification")
)

// TransferStore is the persistence boundary for cross-chain transfers.
type TransferStore interface {
	GetTransfer(ctx context.Context, id types.Hash) (*types.CrossChainTransfer, error)
	SaveTransfer(ctx context.Context, t *types.CrossChainTransfer) error
}

// Bridge runs the cross-chain transfer state machine: Initiate snaps the
// amount to the denomination ladder and routes it to the target chain,
// Confirm verifies a transfer-validity proof, and Execute marks a
// confirmed transfer executed. It holds the pool manager and mixer but
// does not call them; pool deposits, mixing and withdrawals are separate
// operations.
type Bridge struct {
	mu sync.Mutex

	store  TransferStore
	pools  *PoolManager
	mixer  *Mixer
	router *Router
	oracle *zkp.Oracle
}

// NewBridge creates a bridge orchestrator over the given components.
func NewBridge(store TransferStore, pools *PoolManager, mixer *Mixer, router *Router, oracle *zkp.Oracle) *Bridge {
	return &Bridge{store: store, pools: pools, mixer: mixer, router: router, oracle: oracle}
}

// Initiate opens a pending transfer moving amount from source to target,
// snapping amount to the denomination ladder and computing a route and ETA
// up front so the caller can present them before confirming.
func (b *Bridge) Initiate(ctx context.Context, transferID types.Hash, source, target types.ChainID, amount uint64, recipientCommit types.Hash, mode types.RouteMode, createdAt uint64) (*types.CrossChainTransfer, error) {
	if !types.IsSupportedChain(source) || !types.IsSupportedChain(target) {
		return nil, ErrUnsupportedChain
	}

	route, err := b.router.FindRoute(ctx, source, target, mode)
	if err != nil {
		return nil, err
	}

	snapped := SnapDenomination(amount)
	if snapped == 0 {
		return nil, ErrBadDenomination
	}

	t := &types.CrossChainTransfer{
		TransferID:      transferID,
		Source:          source,
		Target:          target,
		Amount:          snapped,
		RecipientCommit: recipientCommit,
		Status:          types.TransferPending,
		MixingDelay:     uint64(MinMixSize) * 5,
		EstimatedETA:    route.EstimatedDelay + uint64(MinMixSize)*5,
		CreatedAt:       createdAt,
	}

	if err := b.store.SaveTransfer(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Confirm attaches the deposit nullifier and a transfer-validity proof,
// verifies the proof, and advances the transfer to Confirmed. A failed
// verification marks the transfer Failed rather than leaving it pending
// forever.
func (b *Bridge) Confirm(ctx context.Context, transferID types.Hash, nullifier types.Hash, proof []byte) (*types.CrossChainTransfer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.store.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, ErrTransferNotFound
	}
	if t.Status != types.TransferPending {
		return nil, ErrTransferNotPending
	}

	ok, err := b.oracle.Verify(ctx, &zkp.ProofData{CircuitID: zkp.CircuitTransfer, Proof: proof})
	if err != nil {
		return nil, err
	}
	if !ok {
		t.Status = types.TransferFailed
		_ = b.store.SaveTransfer(ctx, t)
		return nil, ErrTransferProofFailed
	}

	t.Nullifier = nullifier
	t.ZKProof = proof
	t.Status = types.TransferConfirmed

	if err := b.store.SaveTransfer(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Execute releases funds on the target chain once a transfer is confirmed.
func (b *Bridge) Execute(ctx context.Context, transferID types.Hash) (*types.CrossChainTransfer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.store.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, ErrTransferNotFound
	}
	if t.Status != types.TransferConfirmed {
		return nil, ErrTransferNotPending
	}

	t.Status = types.TransferExecuted
	if err := b.store.SaveTransfer(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// InMemoryTransferStore is a simple in-process TransferStore for tests.
type InMemoryTransferStore struct {
	mu        sync.RWMutex
	transfers map[types.Hash]*types.CrossChainTransfer
}

// NewInMemoryTransferStore creates an empty in-memory transfer store.
func NewInMemoryTransferStore() *InMemoryTransferStore {
	return &InMemoryTransferStore{transfers: make(map[types.Hash]*types.CrossChainTransfer)}
}

// GetTransfer returns the stored transfer for id.
func (s *InMemoryTransferStore) GetTransfer(ctx context.Context, id types.Hash) (*types.CrossChainTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, exists := s.transfers[id]
	if !exists {
		return nil, ErrTransferNotFound
	}
	return t, nil
}

// SaveTransfer stores t.
func (s *InMemoryTransferStore) SaveTransfer(ctx context.Context, t *types.CrossChainTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers[t.TransferID] = t
	return nil
}
