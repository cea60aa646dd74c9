// Package membership maintains the identity-commitment registry and the
// per-circle Merkle accumulator that backs anonymous membership proofs:
// a prospective bidder or voter proves inclusion in a circle's member set
// without revealing which identity commitment is theirs.
package membership

import (
	"context"
	"errors"
	"sync"

	"github.com/consensys/gnark/frontend"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

var (
	ErrAlreadyRegistered = errors.New("identity commitment already registered")
	ErrNotRegistered     = errors.New("identity commitment not registered")
	ErrNotInCircle       = errors.New("identity commitment is not a member of this circle")
)

// Store is the persistence boundary for the member registry.
type Store interface {
	GetMember(ctx context.Context, ic types.IdentityCommitment) (*types.Member, error)
	SaveMember(ctx context.Context, member *types.Member) error
	ListMembers(ctx context.Context) ([]*types.Member, error)
}

// Registry tracks identity commitments and, per circle, the Merkle
// accumulator a member proves inclusion against.
type Registry struct {
	mu sync.RWMutex

	store  Store
	oracle *zkp.Oracle

	circleTrees map[types.Hash]*zkp.CommitmentTree
	positions   map[types.Hash]map[types.IdentityCommitment]uint64
}

// NewRegistry creates a membership registry backed by store.
func NewRegistry(store Store, oracle *zkp.Oracle) *Registry {
	return &Registry{
		store:       store,
		oracle:      oracle,
		circleTrees: make(map[types.Hash]*zkp.CommitmentTree),
		positions:   make(map[types.Hash]map[types.IdentityCommitment]uint64),
	}
}

// Register enrolls a new identity commitment with an initial stake.
func (r *Registry) Register(ctx context.Context, ic types.IdentityCommitment, stake uint64, joinedHeight uint64) (*types.Member, error) {
	existing, err := r.store.GetMember(ctx, ic)
	if err == nil && existing != nil {
		return nil, ErrAlreadyRegistered
	}

	member := &types.Member{
		IC:           ic,
		TrustScore:   0,
		StakeAmount:  stake,
		JoinedHeight: joinedHeight,
	}

	if err := r.store.SaveMember(ctx, member); err != nil {
		return nil, err
	}

	return member, nil
}

// Get returns a registered member.
func (r *Registry) Get(ctx context.Context, ic types.IdentityCommitment) (*types.Member, error) {
	member, err := r.store.GetMember(ctx, ic)
	if err != nil {
		return nil, ErrNotRegistered
	}
	return member, nil
}

// treeFor returns (creating if needed) the commitment tree for circleID.
func (r *Registry) treeFor(circleID types.Hash) *zkp.CommitmentTree {
	r.mu.Lock()
	defer r.mu.Unlock()

	tree, exists := r.circleTrees[circleID]
	if !exists {
		tree = zkp.NewCommitmentTree(zkp.NewInMemoryTreeStore(), 20)
		r.circleTrees[circleID] = tree
		r.positions[circleID] = make(map[types.IdentityCommitment]uint64)
	}
	return tree
}

// AddToCircle adds ic's commitment to circleID's membership accumulator
// and returns the new membership root.
func (r *Registry) AddToCircle(ctx context.Context, circleID types.Hash, ic types.IdentityCommitment) (types.Hash, error) {
	tree := r.treeFor(circleID)

	pos, err := tree.AddCommitment(ctx, ic)
	if err != nil {
		return types.EmptyHash, err
	}

	r.mu.Lock()
	r.positions[circleID][ic] = pos
	r.mu.Unlock()

	return tree.GetRoot(), nil
}

// MembershipRoot returns circleID's current accumulator root.
func (r *Registry) MembershipRoot(circleID types.Hash) types.Hash {
	tree := r.treeFor(circleID)
	return tree.GetRoot()
}

// ProveMembership builds a membership proof for ic in circleID via the
// named membership circuit. Callers needing a real witness must supply
// the sibling path; here we derive it from the tracked position.
func (r *Registry) ProveMembership(ctx context.Context, circleID types.Hash, ic types.IdentityCommitment) (*zkp.ProofData, error) {
	tree := r.treeFor(circleID)

	r.mu.RLock()
	pos, ok := r.positions[circleID][ic]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotInCircle
	}

	path, err := tree.GetPath(ctx, pos)
	if err != nil {
		return nil, err
	}

	pathElements := make([]frontend.Variable, len(path.Siblings))
	pathBits := make([]frontend.Variable, len(path.PathBits))
	for i, s := range path.Siblings {
		pathElements[i] = s.Bytes()
	}
	for i, b := range path.PathBits {
		if b {
			pathBits[i] = 1
		} else {
			pathBits[i] = 0
		}
	}

	witness := &zkp.MembershipCircuit{
		Root:         tree.GetRoot().Bytes(),
		Leaf:         ic.Bytes(),
		PathElements: pathElements,
		PathBits:     pathBits,
	}

	return r.oracle.Prove(ctx, zkp.CircuitMembership, witness)
}

// VerifyMembership checks a previously generated membership proof.
func (r *Registry) VerifyMembership(ctx context.Context, proof *zkp.ProofData) (bool, error) {
	return r.oracle.Verify(ctx, proof)
}

// InMemoryStore is a simple in-process Store for tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	members map[types.IdentityCommitment]*types.Member
}

// NewInMemoryStore creates an empty in-memory member store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{members: make(map[types.IdentityCommitment]*types.Member)}
}

// GetMember returns the stored member for ic.
func (s *InMemoryStore) GetMember(ctx context.Context, ic types.IdentityCommitment) (*types.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, exists := s.members[ic]
	if !exists {
		return nil, ErrNotRegistered
	}
	return m, nil
}

// SaveMember stores member.
func (s *InMemoryStore) SaveMember(ctx context.Context, member *types.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[member.IC] = member
	return nil
}

// ListMembers returns every stored member.
func (s *InMemoryStore) ListMembers(ctx context.Context) ([]*types.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	return out, nil
}
