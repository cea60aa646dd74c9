// Package payments implements wallet connections, monthly contribution
// collection with a partial-payment policy, an exponential-backoff retry
// queue for recoverable failures, and encrypted-at-rest payment history.
package payments

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

// Retry backoff parameters.
const (
	RetryBaseDelay  = 30  // seconds
	RetryBackoff    = 2
	RetryMaxDelay   = 300 // seconds
	RetryMaxAttempts = 3

	// PartialThresholdPct is the minimum fraction of RequiredAmount a
	// partial collection must clear to count as CollectionPartial rather
	// than CollectionFailed.
	PartialThresholdPct = 10
)

var (
	ErrWalletNotFound     = errors.New("wallet connection not found")
	ErrWalletInactive     = errors.New("wallet connection is inactive")
	ErrOwnershipProof     = errors.New("wallet ownership proof failed verification")
	ErrBelowPartialThreshold = errors.New("collected amount is below the partial-payment threshold")
	ErrRetriesExhausted   = errors.New("retry attempts exhausted")
)

// WalletStore is the persistence boundary for registered wallet connections.
type WalletStore interface {
	GetWallet(ctx context.Context, ic types.IdentityCommitment, chain types.ChainID) (*types.WalletConnection, error)
	SaveWallet(ctx context.Context, ic types.IdentityCommitment, chain types.ChainID, w *types.WalletConnection) error
	ListWallets(ctx context.Context, ic types.IdentityCommitment) ([]*types.WalletConnection, error)
}

// HistoryStore is the persistence boundary for encrypted payment history.
type HistoryStore interface {
	SaveRecord(ctx context.Context, ic types.IdentityCommitment, r *types.EncryptedPaymentRecord) error
	ListRecords(ctx context.Context, ic types.IdentityCommitment) ([]*types.EncryptedPaymentRecord, error)
}

// NextRetryDelay returns the backoff delay (in seconds) before attempt n+1,
// doubling from RetryBaseDelay and capping at RetryMaxDelay.
func NextRetryDelay(n int) uint64 {
	delay := uint64(RetryBaseDelay)
	for i := 0; i < n; i++ {
		delay *= RetryBackoff
		if delay >= RetryMaxDelay {
			return RetryMaxDelay
		}
	}
	return delay
}

// PartialThreshold returns the minimum collected amount that still counts
// as a partial success for a required amount.
func PartialThreshold(required uint64) uint64 {
	return required * PartialThresholdPct / 100
}

// Collector drives wallet registration, contribution collection, and the
// recoverable-failure retry queue.
type Collector struct {
	mu sync.Mutex

	wallets WalletStore
	history HistoryStore
	oracle  *zkp.Oracle

	queue []*types.RetryAttempt
}

// NewCollector creates a payment collector.
func NewCollector(wallets WalletStore, history HistoryStore, oracle *zkp.Oracle) *Collector {
	return &Collector{wallets: wallets, history: history, oracle: oracle}
}

// RegisterWallet records a verified wallet connection for a contributor on
// one chain, verifying ownershipProof against the wallet_ownership circuit
// before activating the connection.
func (c *Collector) RegisterWallet(ctx context.Context, ic types.IdentityCommitment, chain types.ChainID, balanceCommit types.Hash, ownershipProof []byte, verifiedAt uint64) (*types.WalletConnection, error) {
	if len(ownershipProof) == 0 {
		return nil, ErrOwnershipProof
	}
	ok, err := c.oracle.Verify(ctx, &zkp.ProofData{CircuitID: zkp.CircuitWalletOwnership, Proof: ownershipProof})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOwnershipProof
	}

	w := &types.WalletConnection{
		ChainID:        chain,
		BalanceCommit:  balanceCommit,
		OwnershipProof: ownershipProof,
		LastVerified:   verifiedAt,
		Active:         true,
	}
	if err := c.wallets.SaveWallet(ctx, ic, chain, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ListWallets returns every chain connection ic has registered, so a
// collection can be sized against the set of chains actually available
// rather than one the caller must already know about.
func (c *Collector) ListWallets(ctx context.Context, ic types.IdentityCommitment) ([]*types.WalletConnection, error) {
	return c.wallets.ListWallets(ctx, ic)
}

// Collect aggregates params.Contributions toward params.RequiredAmount:
// each chain contribution must name an active, registered wallet
// connection and carry a balance proof that verifies against the
// balance circuit before its claimed amount counts toward the total.
// A full collection succeeds outright. A short collection succeeds
// partially only if AllowPartial is set and the total clears
// PartialThreshold; otherwise it's a failure queued for retry.
func (c *Collector) Collect(ctx context.Context, params types.CollectionParams, reason types.RetryReason, now uint64) (*types.CollectionResult, error) {
	var collected uint64
	for _, contribution := range params.Contributions {
		w, err := c.wallets.GetWallet(ctx, params.Contributor, contribution.ChainID)
		if err != nil {
			return nil, err
		}
		if !w.Active {
			return nil, ErrWalletInactive
		}
		ok, err := c.oracle.Verify(ctx, &zkp.ProofData{CircuitID: zkp.CircuitBalance, Proof: contribution.BalanceProof})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrOwnershipProof
		}
		collected += contribution.Amount
	}

	if collected >= params.RequiredAmount {
		return &types.CollectionResult{
			Status:         types.CollectionSuccess,
			TotalCollected: collected,
			NextPaymentDue: nextDueDate(now),
		}, nil
	}

	shortfall := params.RequiredAmount - collected

	if params.AllowPartial && collected >= PartialThreshold(params.RequiredAmount) {
		return &types.CollectionResult{
			Status:         types.CollectionPartial,
			TotalCollected: collected,
			Shortfall:      shortfall,
			NextPaymentDue: nextDueDate(now),
		}, nil
	}

	if _, err := c.Enqueue(ctx, params, reason, now); err != nil {
		return nil, err
	}

	return &types.CollectionResult{
		Status:         types.CollectionFailed,
		TotalCollected: collected,
		Shortfall:      shortfall,
	}, nil
}

func nextDueDate(now uint64) uint64 {
	const monthSeconds = 30 * 24 * 60 * 60
	return now + monthSeconds
}

// Enqueue schedules a first retry attempt for a failed collection.
func (c *Collector) Enqueue(ctx context.Context, params types.CollectionParams, reason types.RetryReason, now uint64) (*types.RetryAttempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = RetryMaxAttempts
	}

	attempt := &types.RetryAttempt{
		AttemptID:   types.HashFromBytes(append(append([]byte{}, params.Contributor[:]...), byte(params.Round))),
		Params:      params,
		N:           0,
		NextRetryAt: now + NextRetryDelay(0),
		MaxRetries:  maxRetries,
		Reason:      reason,
	}
	c.insertSorted(attempt)
	return attempt, nil
}

// DueAttempts pops and returns every attempt whose NextRetryAt has arrived
// by now, in ascending schedule order.
func (c *Collector) DueAttempts(now uint64) []*types.RetryAttempt {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []*types.RetryAttempt
	remaining := c.queue[:0]
	for _, a := range c.queue {
		if a.NextRetryAt <= now {
			due = append(due, a)
		} else {
			remaining = append(remaining, a)
		}
	}
	c.queue = remaining
	return due
}

// Reschedule advances attempt to its next backoff slot, or reports
// ErrRetriesExhausted once MaxRetries is reached.
func (c *Collector) Reschedule(attempt *types.RetryAttempt, now uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if attempt.N+1 >= attempt.MaxRetries {
		return ErrRetriesExhausted
	}
	attempt.N++
	attempt.NextRetryAt = now + NextRetryDelay(attempt.N)
	c.insertSorted(attempt)
	return nil
}

func (c *Collector) insertSorted(attempt *types.RetryAttempt) {
	idx := sort.Search(len(c.queue), func(i int) bool {
		return c.queue[i].NextRetryAt > attempt.NextRetryAt
	})
	c.queue = append(c.queue, nil)
	copy(c.queue[idx+1:], c.queue[idx:])
	c.queue[idx] = attempt
}

// QueueLen returns the number of attempts currently pending.
func (c *Collector) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// RecordPayment persists an encrypted payment history entry.
func (c *Collector) RecordPayment(ctx context.Context, ic types.IdentityCommitment, record *types.EncryptedPaymentRecord) error {
	return c.history.SaveRecord(ctx, ic, record)
}

// Summary aggregates ic's payment history using decrypt to recover each
// record's plaintext amount. Records that fail to decrypt are skipped
// rather than aborting the whole summary.
func (c *Collector) Summary(ctx context.Context, ic types.IdentityCommitment, decrypt func([]byte) (uint64, error)) (*types.HistorySummary, error) {
	records, err := c.history.ListRecords(ctx, ic)
	if err != nil {
		return nil, err
	}

	summary := &types.HistorySummary{}
	var scoreTotal int

	for _, r := range records {
		amount, err := decrypt(r.CiphertextAmount)
		if err != nil {
			continue
		}
		summary.TotalPayments++
		summary.TotalAmount += amount
		scoreTotal += r.AnonymityScore
	}

	if summary.TotalPayments > 0 {
		summary.AverageAnonymityScore = float64(scoreTotal) / float64(summary.TotalPayments)
	}
	return summary, nil
}

// InMemoryWalletStore is a simple in-process WalletStore for tests.
type InMemoryWalletStore struct {
	mu      sync.RWMutex
	wallets map[types.IdentityCommitment]map[types.ChainID]*types.WalletConnection
}

// NewInMemoryWalletStore creates an empty in-memory wallet store.
func NewInMemoryWalletStore() *InMemoryWalletStore {
	return &InMemoryWalletStore{wallets: make(map[types.IdentityCommitment]map[types.ChainID]*types.WalletConnection)}
}

// GetWallet returns the stored connection for (ic, chain).
func (s *InMemoryWalletStore) GetWallet(ctx context.Context, ic types.IdentityCommitment, chain types.ChainID) (*types.WalletConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byChain, exists := s.wallets[ic]
	if !exists {
		return nil, ErrWalletNotFound
	}
	w, exists := byChain[chain]
	if !exists {
		return nil, ErrWalletNotFound
	}
	return w, nil
}

// SaveWallet stores w under (ic, chain).
func (s *InMemoryWalletStore) SaveWallet(ctx context.Context, ic types.IdentityCommitment, chain types.ChainID, w *types.WalletConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wallets[ic] == nil {
		s.wallets[ic] = make(map[types.ChainID]*types.WalletConnection)
	}
	s.wallets[ic][chain] = w
	return nil
}

// ListWallets returns every chain connection registered for ic.
func (s *InMemoryWalletStore) ListWallets(ctx context.Context, ic types.IdentityCommitment) ([]*types.WalletConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.WalletConnection, 0, len(s.wallets[ic]))
	for _, w := range s.wallets[ic] {
		out = append(out, w)
	}
	return out, nil
}

// InMemoryHistoryStore is a simple in-process HistoryStore for tests.
type InMemoryHistoryStore struct {
	mu      sync.RWMutex
	records map[types.IdentityCommitment][]*types.EncryptedPaymentRecord
}

// NewInMemoryHistoryStore creates an empty in-memory history store.
func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{records: make(map[types.IdentityCommitment][]*types.EncryptedPaymentRecord)}
}

// SaveRecord appends r to ic's payment history.
func (s *InMemoryHistoryStore) SaveRecord(ctx context.Context, ic types.IdentityCommitment, r *types.EncryptedPaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[ic] = append(s.records[ic], r)
	return nil
}

// ListRecords returns ic's full payment history.
func (s *InMemoryHistoryStore) ListRecords(ctx context.Context, ic types.IdentityCommitment) ([]*types.EncryptedPaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[ic], nil
}
