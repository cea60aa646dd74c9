package membership

import (
	"context"
	"testing"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := NewRegistry(NewInMemoryStore(), zkp.NewOracle())
	ctx := context.Background()
	ic := types.IdentityCommitment(types.HashFromBytes([]byte("alice")))

	if _, err := r.Register(ctx, ic, 100, 1); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Register(ctx, ic, 100, 1); err != ErrAlreadyRegistered {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestGetUnregisteredReturnsNotRegistered(t *testing.T) {
	r := NewRegistry(NewInMemoryStore(), zkp.NewOracle())
	ic := types.IdentityCommitment(types.HashFromBytes([]byte("nobody")))

	if _, err := r.Get(context.Background(), ic); err != ErrNotRegistered {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestAddToCircleUpdatesMembershipRoot(t *testing.T) {
	r := NewRegistry(NewInMemoryStore(), zkp.NewOracle())
	ctx := context.Background()
	circleID := types.HashFromBytes([]byte("circle-a"))

	before := r.MembershipRoot(circleID)

	ic := types.IdentityCommitment(types.HashFromBytes([]byte("alice")))
	after, err := r.AddToCircle(ctx, circleID, ic)
	if err != nil {
		t.Fatalf("AddToCircle: %v", err)
	}
	if after == before {
		t.Fatal("expected membership root to change after adding a commitment")
	}
	if r.MembershipRoot(circleID) != after {
		t.Fatal("MembershipRoot should reflect the latest accumulator state")
	}
}

func TestProveMembershipRejectsNonMember(t *testing.T) {
	r := NewRegistry(NewInMemoryStore(), zkp.NewOracle())
	ctx := context.Background()
	circleID := types.HashFromBytes([]byte("circle-a"))
	ic := types.IdentityCommitment(types.HashFromBytes([]byte("outsider")))

	if _, err := r.ProveMembership(ctx, circleID, ic); err != ErrNotInCircle {
		t.Fatalf("expected ErrNotInCircle, got %v", err)
	}
}

func TestInMemoryStoreListMembers(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	m := &types.Member{IC: types.IdentityCommitment(types.HashFromBytes([]byte("alice"))), StakeAmount: 50}
	if err := s.SaveMember(ctx, m); err != nil {
		t.Fatalf("SaveMember: %v", err)
	}

	members, err := s.ListMembers(ctx)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
}
