package zkp

import (
	"context"
	"math/big"
	"testing"

	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

func TestPedersenCommitment(t *testing.T) {
	value := big.NewInt(42)
	blinder := big.NewInt(7)

	c, err := NewPedersenCommitment(value, blinder)
	if err != nil {
		t.Fatalf("NewPedersenCommitment: %v", err)
	}

	if !c.Verify(value, blinder) {
		t.Fatal("commitment did not verify against its own opening")
	}

	if c.Verify(big.NewInt(43), blinder) {
		t.Fatal("commitment verified against wrong value")
	}
}

func TestPedersenHomomorphic(t *testing.T) {
	v1, r1 := big.NewInt(10), big.NewInt(3)
	v2, r2 := big.NewInt(15), big.NewInt(9)

	c1, _ := NewPedersenCommitment(v1, r1)
	c2, _ := NewPedersenCommitment(v2, r2)

	sum := c1.Add(c2)

	expectedV := new(big.Int).Add(v1, v2)
	expectedR := new(big.Int).Add(r1, r2)

	if !sum.Verify(expectedV, expectedR) {
		t.Fatal("homomorphic sum did not open to v1+v2, r1+r2")
	}
}

func TestNullifierDomainSeparation(t *testing.T) {
	secret := []byte("same-secret")
	circleID := types.HashFromBytes([]byte("circle-1"))

	bidNF := DeriveBidNullifier(secret, circleID, 1)
	voteNF := DeriveVoteNullifier(secret, circleID)

	if bidNF == voteNF {
		t.Fatal("bid and vote nullifiers collided for the same secret")
	}
}

func TestNullifierSetRejectsReuse(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryNullifierStore()
	ns := NewNullifierSet(store, nil)

	nf := types.HashFromBytes([]byte("nf-1"))
	scope := types.HashFromBytes([]byte("scope-1"))

	if err := ns.MarkSpent(ctx, nf, scope, 1000); err != nil {
		t.Fatalf("first MarkSpent: %v", err)
	}

	if err := ns.MarkSpent(ctx, nf, scope, 1001); err != ErrNullifierSpent {
		t.Fatalf("expected ErrNullifierSpent, got %v", err)
	}
}

func TestCommitmentTreeInclusion(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryTreeStore()
	tree := NewCommitmentTree(store, 8)

	if err := tree.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	leaf := types.HashFromBytes([]byte("leaf-1"))
	pos, err := tree.AddCommitment(ctx, leaf)
	if err != nil {
		t.Fatalf("AddCommitment: %v", err)
	}

	path, err := tree.GetPath(ctx, pos)
	if err != nil {
		t.Fatalf("GetPath: %v", err)
	}

	if !tree.VerifyPath(leaf, path, tree.GetRoot()) {
		t.Fatal("valid inclusion path failed to verify")
	}

	wrongLeaf := types.HashFromBytes([]byte("leaf-2"))
	if tree.VerifyPath(wrongLeaf, path, tree.GetRoot()) {
		t.Fatal("inclusion path verified for the wrong leaf")
	}
}

func TestOracleUnknownCircuit(t *testing.T) {
	o := NewOracle()
	if err := o.Compile(CircuitID("not_a_circuit"), 4); err != ErrUnknownCircuit {
		t.Fatalf("expected ErrUnknownCircuit, got %v", err)
	}
}
