package types

// Tier is a capability class derived from trust score.
type Tier uint8

const (
	TierNewcomer Tier = iota
	TierApprentice
	TierBuilder
	TierGuardian
	TierSage
	TierLunar
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierNewcomer:
		return "newcomer"
	case TierApprentice:
		return "apprentice"
	case TierBuilder:
		return "builder"
	case TierGuardian:
		return "guardian"
	case TierSage:
		return "sage"
	case TierLunar:
		return "lunar"
	default:
		return "unknown"
	}
}

// Member is a participant in the protocol, identified only by their
// identity commitment. Exclusively owned by the membership store;
// mutated only through trust-score and stake updates.
type Member struct {
	IC          IdentityCommitment
	TrustScore  uint32 // 0..1000
	StakeAmount uint64
	JoinedHeight uint64
}

// Action is a gated capability checked via the trust-tier policy.
type Action uint8

const (
	ActionJoinSmallCircle Action = iota
	ActionJoinMediumCircle
	ActionCreateSmallCircle
	ActionCreateMediumCircle
	ActionCreateLargeCircle
	ActionGuarantor
	ActionVote
	ActionPropose
	ActionCrossChainBenefits
)

// ScoreEvent is an action that triggers a trust-score delta, per the
// member action-based update table.
type ScoreEvent uint8

const (
	EventPaymentSuccess ScoreEvent = iota
	EventPaymentLate
	EventPaymentDefault
	EventCircleCompletion
	EventDeFiInteraction
	EventSocialVerification
)
