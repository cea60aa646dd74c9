// Package protocol implements the single request-driven entry point wiring
// storage, the zero-knowledge oracle, and every domain manager into one
// external interface, and translates each subsystem's sentinel errors into
// a typed wire taxonomy.
package protocol

import (
	"errors"
	"fmt"

	"github.com/kunal-drall/lendcircle-core/internal/auction"
	"github.com/kunal-drall/lendcircle-core/internal/circle"
	"github.com/kunal-drall/lendcircle-core/internal/governance"
	"github.com/kunal-drall/lendcircle-core/internal/membership"
	"github.com/kunal-drall/lendcircle-core/internal/payments"
	"github.com/kunal-drall/lendcircle-core/internal/privacy"
	"github.com/kunal-drall/lendcircle-core/internal/risk"
	"github.com/kunal-drall/lendcircle-core/internal/zkp"
)

// Kind classifies a ProtocolError for wire-level dispatch (HTTP status,
// CLI exit code) without callers needing to match on the wrapped error.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidProof
	KindNullifierReused
	KindNotFound
	KindIllegalState
	KindDeadlineExpired
	KindUnauthorized
	KindInsufficientBalance
	KindBelowPartialThreshold
	KindUnsupportedChain
	KindRouteUnavailable
	KindCapacity
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidProof:
		return "InvalidProof"
	case KindNullifierReused:
		return "NullifierReused"
	case KindNotFound:
		return "NotFound"
	case KindIllegalState:
		return "IllegalState"
	case KindDeadlineExpired:
		return "DeadlineExpired"
	case KindUnauthorized:
		return "Unauthorized"
	case KindInsufficientBalance:
		return "InsufficientBalance"
	case KindBelowPartialThreshold:
		return "BelowPartialThreshold"
	case KindUnsupportedChain:
		return "UnsupportedChain"
	case KindRouteUnavailable:
		return "RouteUnavailable"
	case KindCapacity:
		return "Capacity"
	case KindTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// ProtocolError is the typed wire error every façade method returns in
// place of a raw subsystem sentinel.
type ProtocolError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return e.Kind.String()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func wrap(kind Kind, err error) *ProtocolError {
	return &ProtocolError{Kind: kind, Detail: err.Error(), Err: err}
}

// sentinelKinds maps every subsystem sentinel error to exactly one Kind.
var sentinelKinds = map[error]Kind{
	// zkp
	zkp.ErrProofVerificationFailed: KindInvalidProof,
	zkp.ErrInvalidPosition:         KindIllegalState,
	zkp.ErrNullifierInvalid:        KindInvalidProof,
	zkp.ErrCommitmentFailed:        KindInvalidProof,

	// circle
	circle.ErrCircleNotFound: KindNotFound,
	circle.ErrCircleFull:     KindCapacity,
	circle.ErrCircleInactive: KindIllegalState,
	circle.ErrInvalidRound:   KindIllegalState,
	circle.ErrBelowStake:     KindInsufficientBalance,
	circle.ErrAlreadyFinal:   KindIllegalState,
	circle.ErrTierTooLow:          KindUnauthorized,
	circle.ErrStakeBelowTierFloor: KindUnauthorized,
	circle.ErrMemberScoreTooLow:   KindUnauthorized,

	// auction
	auction.ErrAuctionNotFound:  KindNotFound,
	auction.ErrAuctionClosed:    KindIllegalState,
	auction.ErrAuctionNotClosed: KindIllegalState,
	auction.ErrAlreadyFinalized: KindIllegalState,
	auction.ErrBidOutOfRange:    KindIllegalState,
	auction.ErrDuplicateBid:     KindNullifierReused,
	auction.ErrNoBids:           KindIllegalState,
	auction.ErrInvalidProof:     KindInvalidProof,

	// governance
	governance.ErrProposalNotFound:   KindNotFound,
	governance.ErrProposalClosed:     KindDeadlineExpired,
	governance.ErrAlreadyVoted:       KindNullifierReused,
	governance.ErrBelowMinTrust:      KindUnauthorized,
	governance.ErrProposerBelowMinTrust: KindUnauthorized,
	governance.ErrInvalidVoteProof:   KindInvalidProof,
	governance.ErrQuorumNotMet:       KindIllegalState,
	governance.ErrNotPassed:          KindIllegalState,
	governance.ErrTimelockNotExpired: KindDeadlineExpired,
	governance.ErrAlreadyExecuted:    KindIllegalState,

	// membership
	membership.ErrAlreadyRegistered: KindIllegalState,
	membership.ErrNotRegistered:     KindNotFound,
	membership.ErrNotInCircle:       KindUnauthorized,

	// privacy (pool/mixer/router/bridge)
	privacy.ErrPoolNotFound:        KindNotFound,
	privacy.ErrBadDenomination:     KindIllegalState,
	privacy.ErrNullifierSpent:      KindNullifierReused,
	privacy.ErrInvalidMembership:   KindInvalidProof,
	privacy.ErrBatchTooSmall:       KindCapacity,
	privacy.ErrBatchTooLarge:       KindCapacity,
	privacy.ErrMixProofFailed:      KindInvalidProof,
	privacy.ErrUnsupportedChain:    KindUnsupportedChain,
	privacy.ErrRouteUnavailable:    KindRouteUnavailable,
	privacy.ErrTransferNotFound:    KindNotFound,
	privacy.ErrTransferNotPending:  KindIllegalState,
	privacy.ErrTransferProofFailed: KindInvalidProof,

	// payments
	payments.ErrWalletNotFound:        KindNotFound,
	payments.ErrWalletInactive:        KindIllegalState,
	payments.ErrOwnershipProof:        KindInvalidProof,
	payments.ErrBelowPartialThreshold: KindBelowPartialThreshold,
	payments.ErrRetriesExhausted:      KindCapacity,

	// risk
	risk.ErrDefaultAlreadyFlagged:  KindNullifierReused,
	risk.ErrDefaultProofFailed:     KindInvalidProof,
	risk.ErrLiquidationProofFailed: KindInvalidProof,
	risk.ErrPenaltyNotFound:        KindNotFound,
	risk.ErrAppealWindowClosed:     KindDeadlineExpired,
}

// translate maps err to a *ProtocolError using sentinelKinds, falling back
// to KindUnknown for anything not recognized (storage/context errors).
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe
	}
	for sentinel, kind := range sentinelKinds {
		if errors.Is(err, sentinel) {
			return wrap(kind, err)
		}
	}
	return wrap(KindUnknown, err)
}
