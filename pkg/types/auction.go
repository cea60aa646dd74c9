package types

import "math/big"

// BiddingPhase is the auction state machine position.
type BiddingPhase uint8

const (
	PhaseOpen BiddingPhase = iota
	PhaseClosed
	PhaseFinalized
)

func (p BiddingPhase) String() string {
	switch p {
	case PhaseOpen:
		return "OPEN"
	case PhaseClosed:
		return "CLOSED"
	case PhaseFinalized:
		return "FINALIZED"
	default:
		return "UNKNOWN"
	}
}

// Bid is a sealed-bid commitment submitted against an auction.
type Bid struct {
	Commitment        Hash
	Nullifier         Hash
	MemberCommitment  Hash // domain-separated hash of IC, for post-finalize identification
	CircleID          Hash
	Round             int
	Timestamp         uint64
	RangeProof        []byte
	MembershipProof   []byte
	FairnessProof     []byte

	// Amount and Blinder open Commitment. The auction engine holds them
	// only to build its own winner-selection witness; they never travel
	// over gossip and are excluded from API responses.
	Amount  uint64   `json:"-"`
	Blinder *big.Int `json:"-"`
}

// Auction is one round's sealed-bid reverse auction.
type Auction struct {
	AuctionID  Hash
	CircleID   Hash
	Round      int
	MinBid     uint64
	MaxBid     uint64
	Deadline   uint64
	EligibleSet []Hash // member ICs eligible to bid this round
	Status     BiddingPhase
	Bids       []*Bid
	Result     *AuctionResult
}

// AuctionResult is the outcome of finalizing an auction.
type AuctionResult struct {
	AuctionID         Hash
	WinnerCommitment  Hash
	WinningAmountCT   []byte // encrypted to the winner's commitment
	SelectionProof    []byte
	TotalBids         int
	FairnessVerified  bool
}
