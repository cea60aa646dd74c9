// Package governance implements anonymous, trust-weighted protocol
// governance: proposals, nullifier-gated ballots, and quorum/threshold
// execution. A vote reveals only its weight and choice, never the voter;
// the per-proposal nullifier scope permits the same voter to vote again
// on a later proposal while forbidding a second vote on this one.
package governance

import (
	"context"
	"errors"
	"sync"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

// Governance errors
var (
	ErrProposalNotFound       = errors.New("proposal not found")
	ErrProposalClosed         = errors.New("proposal voting period has closed")
	ErrAlreadyVoted           = errors.New("nullifier has already voted on this proposal")
	ErrBelowMinTrust          = errors.New("voter's trust score is below this proposal's minimum")
	ErrProposerBelowMinTrust  = errors.New("proposer's trust score is below this proposal scope's minimum")
	ErrInvalidVoteProof  = errors.New("vote validity proof failed verification")
	ErrQuorumNotMet      = errors.New("quorum not met")
	ErrNotPassed         = errors.New("proposal did not pass")
	ErrTimelockNotExpired = errors.New("execution timelock has not expired")
	ErrAlreadyExecuted   = errors.New("proposal already executed")
)

// Store is the persistence boundary for proposals and votes.
type Store interface {
	SaveProposal(ctx context.Context, p *types.Proposal) error
	GetProposal(ctx context.Context, id types.Hash) (*types.Proposal, error)
	SaveVote(ctx context.Context, v *types.Vote) error
	GetVotes(ctx context.Context, proposalID types.Hash) ([]*types.Vote, error)
}

// Manager drives proposal lifecycle and vote tallying. Vote nullifiers are
// checked against the shared NullifierSet, which rejects a nullifier
// already recorded under any scope; each accepted vote nullifier is
// recorded with its ProposalID as scope.
type Manager struct {
	mu sync.Mutex

	store      Store
	oracle     *zkp.Oracle
	nullifiers *zkp.NullifierSet

	executionDelay uint64
}

// NewManager creates a governance manager. executionDelay is the timelock
// (in seconds) a passed proposal must wait before execution.
func NewManager(store Store, oracle *zkp.Oracle, nullifiers *zkp.NullifierSet, executionDelay uint64) *Manager {
	return &Manager{
		store:          store,
		oracle:         oracle,
		nullifiers:     nullifiers,
		executionDelay: executionDelay,
	}
}

// MinProposerScore returns the trust-score floor a proposer must clear to
// open a proposal: circle-scoped proposals require less standing than
// protocol-wide ones (circleID is the zero hash for the latter).
func MinProposerScore(circleID types.Hash) uint32 {
	if circleID == types.EmptyHash {
		return 800
	}
	return 600
}

// CreateProposal opens a new proposal using its type's default thresholds.
func (m *Manager) CreateProposal(ctx context.Context, proposalType types.ProposalType, proposer types.IdentityCommitment, circleID types.Hash, payload []byte, createdAt uint64, eligibleCount int) (*types.Proposal, error) {
	p := types.NewProposal(proposalType, proposer, createdAt)
	p.CircleID = circleID
	p.EncryptedPayload = payload
	p.EligibleCount = eligibleCount
	p.ProposalID = types.HashFromBytes(append(append([]byte{}, proposer[:]...), byte(proposalType)))

	if err := m.store.SaveProposal(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CastVote records an anonymous ballot on proposalID. vote.TrustWeight is
// recorded for tallying but the caller must have already set it from the
// voter's authoritative trust-score record, not from untrusted input; the
// voteProof binds vote.Nullifier to a secret the voter holds, verified
// against the vote_validity circuit before anything is recorded.
func (m *Manager) CastVote(ctx context.Context, proposalID types.Hash, vote *types.Vote, voteProof []byte, now uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.GetProposal(ctx, proposalID)
	if err != nil {
		return ErrProposalNotFound
	}
	if p.Status != types.ProposalActive || now > p.Deadline {
		return ErrProposalClosed
	}
	if vote.TrustWeight < p.MinTrustScore {
		return ErrBelowMinTrust
	}

	ok, err := m.oracle.Verify(ctx, &zkp.ProofData{CircuitID: zkp.CircuitVoteValidity, Proof: voteProof})
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidVoteProof
	}

	spent, err := m.nullifiers.IsSpent(ctx, vote.Nullifier)
	if err != nil {
		return err
	}
	if spent {
		return ErrAlreadyVoted
	}

	// The nullifier is recorded with the proposal ID as its scope. The set
	// rejects a spent nullifier whatever its scope; a voter can still vote
	// on another proposal because vote nullifiers are derived from the
	// proposal ID as well as the voter's secret.
	if err := m.nullifiers.MarkSpent(ctx, vote.Nullifier, proposalID, now); err != nil {
		return err
	}

	if vote.Choice == types.VoteYes {
		p.YesWeight += uint64(vote.TrustWeight)
	} else {
		p.NoWeight += uint64(vote.TrustWeight)
	}

	if err := m.store.SaveVote(ctx, vote); err != nil {
		return err
	}
	return m.store.SaveProposal(ctx, p)
}

// Tally computes the current outcome for proposalID without mutating its
// status; Finalize is what commits a status transition.
func (m *Manager) Tally(ctx context.Context, proposalID types.Hash) (*types.TallyResult, error) {
	p, err := m.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, ErrProposalNotFound
	}

	votes, err := m.store.GetVotes(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	total := p.YesWeight + p.NoWeight
	participation := 0.0
	if p.EligibleCount > 0 {
		participation = float64(len(votes)) / float64(p.EligibleCount)
	}

	quorumMet := participation*100 >= float64(p.QuorumPct)

	passed := false
	if quorumMet && total > 0 {
		passed = p.YesWeight > p.NoWeight
	}

	return &types.TallyResult{
		YesWeight:     p.YesWeight,
		NoWeight:      p.NoWeight,
		Participation: participation,
		QuorumMet:     quorumMet,
		Passed:        passed,
	}, nil
}

// Finalize closes voting on proposalID once its deadline has passed and
// commits its Passed/Failed status.
func (m *Manager) Finalize(ctx context.Context, proposalID types.Hash, now uint64) (*types.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, ErrProposalNotFound
	}
	if p.Status != types.ProposalActive {
		return nil, errors.New("proposal already finalized")
	}
	if now <= p.Deadline {
		return nil, errors.New("voting period not ended")
	}

	result, err := m.Tally(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	if result.Passed {
		p.Status = types.ProposalPassed
		p.ExecutionDeadline = now + m.executionDelay
	} else {
		p.Status = types.ProposalFailed
	}

	if err := m.store.SaveProposal(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Execute marks a passed proposal executed once its timelock has expired.
// Actual side effects (parameter updates, penalty-rule changes) are
// applied by the caller; this only gates and records the transition.
func (m *Manager) Execute(ctx context.Context, proposalID types.Hash, now uint64) (*types.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, ErrProposalNotFound
	}
	if p.Status == types.ProposalExecuted {
		return nil, ErrAlreadyExecuted
	}
	if p.Status != types.ProposalPassed {
		return nil, ErrNotPassed
	}
	if now < p.ExecutionDeadline {
		return nil, ErrTimelockNotExpired
	}

	p.Status = types.ProposalExecuted
	p.ExecutedAt = now

	if err := m.store.SaveProposal(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProposal returns proposalID's current state.
func (m *Manager) GetProposal(ctx context.Context, proposalID types.Hash) (*types.Proposal, error) {
	p, err := m.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, ErrProposalNotFound
	}
	return p, nil
}

// InMemoryStore is a simple in-process Store for tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	proposals map[types.Hash]*types.Proposal
	votes     map[types.Hash][]*types.Vote
}

// NewInMemoryStore creates an empty in-memory governance store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		proposals: make(map[types.Hash]*types.Proposal),
		votes:     make(map[types.Hash][]*types.Vote),
	}
}

// SaveProposal stores p.
func (s *InMemoryStore) SaveProposal(ctx context.Context, p *types.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[p.ProposalID] = p
	return nil
}

// GetProposal returns the stored proposal for id.
func (s *InMemoryStore) GetProposal(ctx context.Context, id types.Hash) (*types.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, exists := s.proposals[id]
	if !exists {
		return nil, ErrProposalNotFound
	}
	return p, nil
}

// SaveVote appends v to its proposal's vote list.
func (s *InMemoryStore) SaveVote(ctx context.Context, v *types.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[v.ProposalID] = append(s.votes[v.ProposalID], v)
	return nil
}

// GetVotes returns every vote cast on proposalID.
func (s *InMemoryStore) GetVotes(ctx context.Context, proposalID types.Hash) ([]*types.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.votes[proposalID], nil
}
