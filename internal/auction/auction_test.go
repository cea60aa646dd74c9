package auction

import (
	"context"
	"testing"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

func TestSubmitBidRejectsDuplicateNullifier(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	oracle := zkp.NewOracle()
	nullifiers := zkp.NewNullifierSet(zkp.NewInMemoryNullifierStore(), nil)
	e := NewEngine(store, oracle, nullifiers)

	auctionID := types.HashFromBytes([]byte("auction-1"))
	circleID := types.HashFromBytes([]byte("circle-1"))

	if _, err := e.Open(ctx, auctionID, circleID, 1, 0, 1000, 9999, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}

	nf := types.HashFromBytes([]byte("bidder-nf"))
	scope := types.HashFromBytes(append(append([]byte{}, circleID[:]...), byte(1)))
	if err := nullifiers.MarkSpent(ctx, nf, scope, 1); err != nil {
		t.Fatalf("MarkSpent: %v", err)
	}

	bid := &types.Bid{
		Commitment: types.HashFromBytes([]byte("bid-commit")),
		Nullifier:  nf,
		CircleID:   circleID,
		Round:      1,
	}

	if _, err := e.SubmitBid(ctx, auctionID, bid, 2); err != ErrDuplicateBid {
		t.Fatalf("expected ErrDuplicateBid, got %v", err)
	}
}

func TestCloseRejectsWhenNotOpen(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	oracle := zkp.NewOracle()
	nullifiers := zkp.NewNullifierSet(zkp.NewInMemoryNullifierStore(), nil)
	e := NewEngine(store, oracle, nullifiers)

	auctionID := types.HashFromBytes([]byte("auction-2"))
	circleID := types.HashFromBytes([]byte("circle-2"))

	if _, err := e.Open(ctx, auctionID, circleID, 1, 0, 1000, 9999, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := e.Close(ctx, auctionID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := e.Close(ctx, auctionID); err != ErrAuctionClosed {
		t.Fatalf("expected ErrAuctionClosed on second close, got %v", err)
	}
}

func TestFinalizeRequiresClosedAuctionWithBids(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	oracle := zkp.NewOracle()
	nullifiers := zkp.NewNullifierSet(zkp.NewInMemoryNullifierStore(), nil)
	e := NewEngine(store, oracle, nullifiers)

	auctionID := types.HashFromBytes([]byte("auction-3"))
	circleID := types.HashFromBytes([]byte("circle-3"))

	if _, err := e.Open(ctx, auctionID, circleID, 1, 0, 1000, 9999, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := e.Finalize(ctx, auctionID); err != ErrAuctionNotClosed {
		t.Fatalf("expected ErrAuctionNotClosed, got %v", err)
	}

	if _, err := e.Close(ctx, auctionID); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := e.Finalize(ctx, auctionID); err != ErrNoBids {
		t.Fatalf("expected ErrNoBids, got %v", err)
	}
}
