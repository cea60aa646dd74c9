// Package types defines governance structures for lending-circle
// anonymous governance: proposals, trust-weighted votes, and tallies.
package types

// ProposalType enumerates governance proposal categories.
type ProposalType uint8

const (
	ProposalInterestRate ProposalType = iota
	ProposalCircleParams
	ProposalPenaltyRules
	ProposalQuorumThreshold
	ProposalVotingPeriod
)

// ProposalStatus is the proposal lifecycle state.
type ProposalStatus uint8

const (
	ProposalActive ProposalStatus = iota
	ProposalPassed
	ProposalFailed
	ProposalExecuted
)

// ProposalThresholds defines per-type quorum/approval defaults, keyed to
// the five proposal types.
var ProposalThresholds = map[ProposalType]struct {
	QuorumPct     uint32
	MinTrustScore uint32
	VotingPeriod  uint64 // seconds
}{
	ProposalInterestRate:    {QuorumPct: 50, MinTrustScore: 600, VotingPeriod: 7 * 24 * 3600},
	ProposalCircleParams:    {QuorumPct: 50, MinTrustScore: 600, VotingPeriod: 7 * 24 * 3600},
	ProposalPenaltyRules:    {QuorumPct: 60, MinTrustScore: 800, VotingPeriod: 14 * 24 * 3600},
	ProposalQuorumThreshold: {QuorumPct: 66, MinTrustScore: 800, VotingPeriod: 14 * 24 * 3600},
	ProposalVotingPeriod:    {QuorumPct: 60, MinTrustScore: 800, VotingPeriod: 14 * 24 * 3600},
}

// Proposal is a governance proposal, scoped either to a circle or to the
// protocol as a whole.
type Proposal struct {
	ProposalID       Hash
	Type             ProposalType
	CircleID         Hash // zero value for protocol-wide proposals
	ProposerIC       IdentityCommitment
	EncryptedPayload []byte
	CreatedAt        uint64
	Deadline         uint64
	ExecutionDeadline uint64
	QuorumPct        uint32
	MinTrustScore    uint32
	EligibleCount    int
	Status           ProposalStatus
	YesWeight        uint64
	NoWeight         uint64
	Nullifiers       map[Hash]struct{}
	ExecutedAt       uint64
}

// VoteChoice is a YES/NO ballot choice.
type VoteChoice uint8

const (
	VoteNo VoteChoice = iota
	VoteYes
)

// Vote is an anonymous ballot on a proposal. Choice is recorded only for
// tally aggregation; the commitment binds it independently so a reader
// of the raw record cannot link it back to a voter.
type Vote struct {
	VoteCommit  Hash
	Nullifier   Hash
	TrustWeight uint32
	Choice      VoteChoice
	ProposalID  Hash
	Timestamp   uint64
}

// TallyResult is the outcome of tallying a proposal's votes.
type TallyResult struct {
	YesWeight     uint64
	NoWeight      uint64
	Participation float64
	QuorumMet     bool
	Passed        bool
}

// NewProposal creates a new proposal with default thresholds for its type.
func NewProposal(proposalType ProposalType, proposer IdentityCommitment, createdAt uint64) *Proposal {
	t := ProposalThresholds[proposalType]
	return &Proposal{
		Type:          proposalType,
		ProposerIC:    proposer,
		CreatedAt:     createdAt,
		Deadline:      createdAt + t.VotingPeriod,
		QuorumPct:     t.QuorumPct,
		MinTrustScore: t.MinTrustScore,
		Status:        ProposalActive,
		Nullifiers:    make(map[Hash]struct{}),
	}
}
