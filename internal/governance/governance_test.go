package governance

import (
	"context"
	"math/big"
	"testing"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

func newTestManager(t *testing.T) (*Manager, *zkp.Oracle) {
	t.Helper()
	store := NewInMemoryStore()
	oracle := zkp.NewOracle()
	if err := oracle.Compile(zkp.CircuitVoteValidity, 0); err != nil {
		t.Fatalf("Compile vote_validity: %v", err)
	}
	nullifiers := zkp.NewNullifierSet(zkp.NewInMemoryNullifierStore(), nil)
	return NewManager(store, oracle, nullifiers, 3600), oracle
}

// voteWitness derives a nullifier bound to secret and proposalID through
// the same MiMC permutation the vote_validity circuit checks, and proves
// it, returning the ballot's public nullifier and the serialized proof.
func voteWitness(t *testing.T, oracle *zkp.Oracle, secret int64, proposalID types.Hash) (types.Hash, []byte) {
	t.Helper()
	secretVal := big.NewInt(secret)
	contextVal := new(big.Int).SetBytes(proposalID[:])
	nullifierVal := zkp.MiMCHash(secretVal, contextVal)

	witness := &zkp.NullifierCircuit{
		Nullifier: nullifierVal,
		Context:   contextVal,
		Secret:    secretVal,
	}
	proof, err := oracle.Prove(context.Background(), zkp.CircuitVoteValidity, witness)
	if err != nil {
		t.Fatalf("Prove vote_validity: %v", err)
	}
	return types.HashFromBytes(nullifierVal.Bytes()), proof.Proof
}

func TestCastVoteRejectsReuseOnSameProposal(t *testing.T) {
	ctx := context.Background()
	m, oracle := newTestManager(t)

	proposer := types.HashFromBytes([]byte("proposer"))
	p, err := m.CreateProposal(ctx, types.ProposalInterestRate, proposer, types.EmptyHash, nil, 1000, 10)
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}

	nf, proof := voteWitness(t, oracle, 1, p.ProposalID)
	v := &types.Vote{ProposalID: p.ProposalID, Nullifier: nf, TrustWeight: p.MinTrustScore, Choice: types.VoteYes}

	if err := m.CastVote(ctx, p.ProposalID, v, proof, 1001); err != nil {
		t.Fatalf("first CastVote: %v", err)
	}
	if err := m.CastVote(ctx, p.ProposalID, v, proof, 1002); err != ErrAlreadyVoted {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
}

func TestVoteSecretReusableAcrossProposals(t *testing.T) {
	ctx := context.Background()
	m, oracle := newTestManager(t)

	proposer := types.HashFromBytes([]byte("proposer"))
	p1, _ := m.CreateProposal(ctx, types.ProposalInterestRate, proposer, types.EmptyHash, nil, 1000, 10)
	p2, _ := m.CreateProposal(ctx, types.ProposalCircleParams, proposer, types.EmptyHash, nil, 1000, 10)

	nf1, proof1 := voteWitness(t, oracle, 2, p1.ProposalID)
	nf2, proof2 := voteWitness(t, oracle, 2, p2.ProposalID)

	v1 := &types.Vote{ProposalID: p1.ProposalID, Nullifier: nf1, TrustWeight: p1.MinTrustScore, Choice: types.VoteYes}
	v2 := &types.Vote{ProposalID: p2.ProposalID, Nullifier: nf2, TrustWeight: p2.MinTrustScore, Choice: types.VoteYes}

	if err := m.CastVote(ctx, p1.ProposalID, v1, proof1, 1001); err != nil {
		t.Fatalf("vote on p1: %v", err)
	}
	if err := m.CastVote(ctx, p2.ProposalID, v2, proof2, 1001); err != nil {
		t.Fatalf("vote on p2 with same-secret nullifier should succeed, got %v", err)
	}
}

func TestFinalizeRequiresQuorum(t *testing.T) {
	ctx := context.Background()
	m, oracle := newTestManager(t)

	proposer := types.HashFromBytes([]byte("proposer"))
	p, _ := m.CreateProposal(ctx, types.ProposalInterestRate, proposer, types.EmptyHash, nil, 1000, 100)

	nf, proof := voteWitness(t, oracle, 3, p.ProposalID)
	v := &types.Vote{ProposalID: p.ProposalID, Nullifier: nf, TrustWeight: p.MinTrustScore, Choice: types.VoteYes}
	if err := m.CastVote(ctx, p.ProposalID, v, proof, 1001); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	finalized, err := m.Finalize(ctx, p.ProposalID, p.Deadline+1)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if finalized.Status != types.ProposalFailed {
		t.Fatalf("expected ProposalFailed for a single small vote against 100 eligible, got %v", finalized.Status)
	}
}
