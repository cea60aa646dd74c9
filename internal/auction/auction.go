// Package auction implements the sealed-bid reverse auction each circle
// round runs to select its payout recipient: members bid the interest
// rate they're willing to accept, and the lowest eligible bid wins. Bid
// amounts stay inside the engine: gossip and API responses carry only
// their commitments.
package auction

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"math/big"
	"sync"

	"github.com/consensys/gnark/frontend"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/common"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAuctionClosed    = errors.New("auction is not open for bids")
	ErrAuctionNotClosed = errors.New("auction must be closed before it can be finalized")
	ErrAlreadyFinalized = errors.New("auction has already been finalized")
	ErrBidOutOfRange    = errors.New("bid amount is outside the auction's allowed range")
	ErrDuplicateBid     = errors.New("bidder has already submitted a bid for this round")
	ErrNoBids           = errors.New("auction has no bids to finalize")
	ErrInvalidProof     = errors.New("bid proof failed verification")
)

// Store is the persistence boundary for auctions.
type Store interface {
	GetAuction(ctx context.Context, auctionID types.Hash) (*types.Auction, error)
	SaveAuction(ctx context.Context, a *types.Auction) error
}

// Engine runs the sealed-bid auction state machine for one circle at a
// time, delegating every proof check to the shared zk Oracle and every
// nullifier uniqueness check to a bid-domain NullifierSet.
type Engine struct {
	mu sync.Mutex

	store      Store
	oracle     *zkp.Oracle
	nullifiers *zkp.NullifierSet
}

// NewEngine creates an auction engine.
func NewEngine(store Store, oracle *zkp.Oracle, nullifiers *zkp.NullifierSet) *Engine {
	return &Engine{store: store, oracle: oracle, nullifiers: nullifiers}
}

// Open starts a new sealed-bid auction for circleID's round.
func (e *Engine) Open(ctx context.Context, auctionID, circleID types.Hash, round int, minBid, maxBid uint64, deadline uint64, eligible []types.Hash) (*types.Auction, error) {
	a := &types.Auction{
		AuctionID:  auctionID,
		CircleID:   circleID,
		Round:      round,
		MinBid:     minBid,
		MaxBid:     maxBid,
		Deadline:   deadline,
		EligibleSet: eligible,
		Status:     types.PhaseOpen,
		Bids:       nil,
	}

	if err := e.store.SaveAuction(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SubmitBid accepts a sealed bid if the auction is open, the bid's
// nullifier hasn't been used before, and its accompanying range, fairness,
// and membership proofs all verify. The bid's Amount and Blinder are
// stored with it so Finalize can build its winner-selection witness; they
// are never gossiped or returned by the API.
func (e *Engine) SubmitBid(ctx context.Context, auctionID types.Hash, bid *types.Bid, now uint64) (*types.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, ErrAuctionNotFound
	}
	if a.Status != types.PhaseOpen || now > a.Deadline {
		return nil, ErrAuctionClosed
	}

	spent, err := e.nullifiers.IsSpent(ctx, bid.Nullifier)
	if err != nil {
		return nil, err
	}
	if spent {
		return nil, ErrDuplicateBid
	}

	rangeOK, err := e.oracle.Verify(ctx, &zkp.ProofData{CircuitID: zkp.CircuitBidRange, Proof: bid.RangeProof})
	if err != nil {
		return nil, err
	}
	membershipOK, err := e.oracle.Verify(ctx, &zkp.ProofData{CircuitID: zkp.CircuitMembership, Proof: bid.MembershipProof})
	if err != nil {
		return nil, err
	}
	fairnessOK, err := e.oracle.Verify(ctx, &zkp.ProofData{CircuitID: zkp.CircuitBidFairness, Proof: bid.FairnessProof})
	if err != nil {
		return nil, err
	}
	if !rangeOK || !membershipOK || !fairnessOK {
		return nil, ErrInvalidProof
	}

	scope := types.HashFromBytes(append(append([]byte{}, a.CircleID[:]...), byte(a.Round)))
	if err := e.nullifiers.MarkSpent(ctx, bid.Nullifier, scope, now); err != nil {
		return nil, err
	}

	a.Bids = append(a.Bids, bid)

	if err := e.store.SaveAuction(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Close transitions auctionID from OPEN to CLOSED, refusing new bids from
// this point forward. It does not check the auction's deadline.
func (e *Engine) Close(ctx context.Context, auctionID types.Hash) (*types.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, ErrAuctionNotFound
	}
	if a.Status != types.PhaseOpen {
		return nil, ErrAuctionClosed
	}

	a.Status = types.PhaseClosed
	if err := e.store.SaveAuction(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Finalize derives the winner from a CLOSED auction's bids directly — the
// lowest Amount, ties broken by earliest Timestamp then lexicographically
// smallest Commitment — and proves the choice via a real winner_selection
// witness built from every bid's actual (never-broadcast) amount and
// blinder. Finalization fails closed if that proof doesn't verify; no
// caller ever gets to assert a winner on the engine's behalf.
func (e *Engine) Finalize(ctx context.Context, auctionID types.Hash) (*types.AuctionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, ErrAuctionNotFound
	}
	if a.Status != types.PhaseClosed {
		return nil, ErrAuctionNotClosed
	}
	if len(a.Bids) == 0 {
		return nil, ErrNoBids
	}

	winner := a.Bids[0]
	for _, b := range a.Bids[1:] {
		if isBetterBid(b, winner) {
			winner = b
		}
	}

	others := make([]frontend.Variable, 0, len(a.Bids)-1)
	for _, b := range a.Bids {
		if b.Commitment == winner.Commitment {
			continue
		}
		others = append(others, new(big.Int).SetUint64(b.Amount))
	}

	if err := e.oracle.Compile(zkp.CircuitWinnerSelection, len(others)); err != nil {
		return nil, err
	}

	witness := &zkp.WinnerCircuit{
		WinnerCommitment: winner.Commitment.Bytes(),
		NumOthers:        len(others),
		WinnerValue:      new(big.Int).SetUint64(winner.Amount),
		WinnerBlinder:    winner.Blinder,
		OtherValues:      others,
	}

	selectionProof, err := e.oracle.Prove(ctx, zkp.CircuitWinnerSelection, witness)
	if err != nil {
		return nil, ErrInvalidProof
	}

	ok, err := e.oracle.Verify(ctx, selectionProof)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidProof
	}

	winningAmountCT, err := sealToBlinder(winner.Blinder, winner.Amount)
	if err != nil {
		return nil, err
	}

	result := &types.AuctionResult{
		AuctionID:        auctionID,
		WinnerCommitment: winner.Commitment,
		WinningAmountCT:  winningAmountCT,
		SelectionProof:   selectionProof.Proof,
		TotalBids:        len(a.Bids),
		FairnessVerified: true,
	}

	a.Status = types.PhaseFinalized
	a.Result = result

	if err := e.store.SaveAuction(ctx, a); err != nil {
		return nil, err
	}
	return result, nil
}

// isBetterBid reports whether candidate should replace best as the
// reverse-auction winner: lower amount wins, ties go to the earlier
// timestamp, remaining ties go to the lexicographically smaller
// commitment so the outcome is deterministic across replaying nodes.
func isBetterBid(candidate, best *types.Bid) bool {
	if candidate.Amount != best.Amount {
		return candidate.Amount < best.Amount
	}
	if candidate.Timestamp != best.Timestamp {
		return candidate.Timestamp < best.Timestamp
	}
	return bytes.Compare(candidate.Commitment.Bytes(), best.Commitment.Bytes()) < 0
}

// sealToBlinder encrypts amount so that only the party holding blinder —
// the winning bidder, who chose it when sealing their bid — can recover
// it. The key is derived from the blinder itself rather than issued
// out-of-band, so no separate key-exchange step is needed to deliver the
// disclosed amount back to the winner.
func sealToBlinder(blinder *big.Int, amount uint64) ([]byte, error) {
	key := sha256.Sum256(append([]byte("LENDCIRCLE_WINNING_AMOUNT"), blinder.Bytes()...))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce, err := common.RandomBytes(gcm.NonceSize())
	if err != nil {
		return nil, err
	}

	plaintext := new(big.Int).SetUint64(amount).Bytes()
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// InMemoryStore is a simple in-process Store for tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	auctions map[types.Hash]*types.Auction
}

// NewInMemoryStore creates an empty in-memory auction store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{auctions: make(map[types.Hash]*types.Auction)}
}

// GetAuction returns the stored auction for auctionID.
func (s *InMemoryStore) GetAuction(ctx context.Context, auctionID types.Hash) (*types.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, exists := s.auctions[auctionID]
	if !exists {
		return nil, ErrAuctionNotFound
	}
	return a, nil
}

// SaveAuction stores a.
func (s *InMemoryStore) SaveAuction(ctx context.Context, a *types.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[a.AuctionID] = a
	return nil
}
