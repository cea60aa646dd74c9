package protocol

import (
	"context"

	"github.com/kunal-drall/lendcircle-core/internal/auction"
	"github.com/kunal-drall/lendcircle-core/internal/circle"
	"github.com/kunal-drall/lendcircle-core/internal/governance"
	"github.com/kunal-drall/lendcircle-core/internal/membership"
	"github.com/kunal-drall/lendcircle-core/internal/p2p"
	"github.com/kunal-drall/lendcircle-core/internal/payments"
	"github.com/kunal-drall/lendcircle-core/internal/privacy"
	"github.com/kunal-drall/lendcircle-core/internal/risk"
	"github.com/kunal-drall/lendcircle-core/internal/trust"
	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

// Broadcaster fans a locally-accepted gossip payload out to peers. A
// *p2p.Node satisfies this directly; the façade works without one (tests,
// single-node dry runs) by simply skipping the broadcast.
type Broadcaster interface {
	BroadcastBid(data []byte) error
	BroadcastVote(data []byte) error
	BroadcastMixBatch(data []byte) error
	BroadcastBridgeTransfer(data []byte) error
}

// Facade is the one request-driven entry point for the protocol: every
// external surface (httpapi, the CLI) calls through here instead of
// reaching into subsystem packages directly, and every error it returns
// is a *ProtocolError.
type Facade struct {
	Oracle     *zkp.Oracle
	Nullifiers *zkp.NullifierSet

	Circles     *circle.Manager
	Members     *membership.Registry
	Trust       *trust.Manager
	Auctions    *auction.Engine
	Governance  *governance.Manager
	Pools       *privacy.PoolManager
	Mixer       *privacy.Mixer
	Router      *privacy.Router
	Bridge      *privacy.Bridge
	Payments    *payments.Collector
	Risk        *risk.Engine

	broadcaster Broadcaster
}

// SetBroadcaster attaches the gossip layer a running node wires up after
// NewFacade; nil disables broadcast (the default).
func (f *Facade) SetBroadcaster(b Broadcaster) {
	f.broadcaster = b
}

// Config bundles every store implementation the façade wires together.
// Each field is satisfied by either the in-memory stores each package
// exports, or by internal/storage.PostgresStore's matching methods.
type Config struct {
	CircleStore     circle.Store
	MemberStore     membership.Store
	TrustStore      trust.Store
	AuctionStore    auction.Store
	GovernanceStore governance.Store
	PoolStore       privacy.PoolStore
	TransferStore   privacy.TransferStore
	WalletStore     payments.WalletStore
	HistoryStore    payments.HistoryStore
	DefaultStore    risk.DefaultStore
	LiquidationStore risk.LiquidationStore
	PenaltyStore    risk.PenaltyStore
	NullifierStore  zkp.NullifierStore

	// GovernanceExecutionDelay is the timelock (seconds) a passed proposal
	// waits before it can execute.
	GovernanceExecutionDelay uint64
	// RiskInterventionThreshold is the aggregate confidential-severity
	// score past which a round's defaults require active intervention.
	RiskInterventionThreshold int
	// CircuitWitnessSize bounds the default gnark circuit compile size.
	CircuitWitnessSize int
}

// NewFacade constructs one owned root record per instance: a single
// Oracle, a single NullifierSet, and one manager per subsystem, all
// sharing the stores in cfg.
func NewFacade(ctx context.Context, cfg Config) (*Facade, error) {
	oracle := zkp.NewOracle()
	if err := oracle.CompileAll(cfg.CircuitWitnessSize); err != nil {
		return nil, err
	}

	nullifiers := zkp.NewNullifierSet(cfg.NullifierStore, nil)

	pools := privacy.NewPoolManager(cfg.PoolStore, oracle, nullifiers)
	mixer := privacy.NewMixer(oracle)
	router := privacy.NewRouter()
	for _, chainID := range types.SupportedChains {
		seedRouterTopology(router, chainID)
	}

	return &Facade{
		Oracle:     oracle,
		Nullifiers: nullifiers,

		Circles:    circle.NewManager(cfg.CircleStore),
		Members:    membership.NewRegistry(cfg.MemberStore, oracle),
		Trust:      trust.NewManager(cfg.TrustStore, oracle),
		Auctions:   auction.NewEngine(cfg.AuctionStore, oracle, nullifiers),
		Governance: governance.NewManager(cfg.GovernanceStore, oracle, nullifiers, cfg.GovernanceExecutionDelay),
		Pools:      pools,
		Mixer:      mixer,
		Router:     router,
		Bridge:     privacy.NewBridge(cfg.TransferStore, pools, mixer, router, oracle),
		Payments:   payments.NewCollector(cfg.WalletStore, cfg.HistoryStore, oracle),
		Risk:       risk.NewEngine(cfg.DefaultStore, cfg.LiquidationStore, cfg.PenaltyStore, oracle, nullifiers, cfg.RiskInterventionThreshold),
	}, nil
}

// seedRouterTopology wires every supported chain to every other one with a
// uniform default edge, so FindRoute has a working topology out of the box;
// an operator refines it per-deployment with direct Router.AddEdge calls.
func seedRouterTopology(router *privacy.Router, from types.ChainID) {
	for _, to := range types.SupportedChains {
		if to == from {
			continue
		}
		router.AddEdge(from, types.RouteEdge{
			To:           to,
			DelaySeconds: 60,
			FeeBP:        5,
			PrivacyBonus: 10,
		})
	}
}

// --- Circle lifecycle -------------------------------------------------

// circleCreateAction returns the tier-gated action creating a circle of
// maxMembers requires.
func circleCreateAction(maxMembers int) types.Action {
	switch {
	case maxMembers > 8:
		return types.ActionCreateLargeCircle
	case maxMembers > 4:
		return types.ActionCreateMediumCircle
	default:
		return types.ActionCreateSmallCircle
	}
}

// CreateCircle instantiates a new lending circle once creator's
// registration, trust tier, and proposed stake floor all clear the gate:
// the creator must be a registered identity commitment, their tier must
// permit a circle of this size, and stake_requirement must be at least
// their tier's stake floor.
func (f *Facade) CreateCircle(ctx context.Context, circleID types.Hash, creator types.IdentityCommitment, params types.CircleParams, createdAt uint64) (*types.Circle, error) {
	if _, err := f.Members.Get(ctx, creator); err != nil {
		return nil, translate(err)
	}

	rec, err := f.Trust.GetScore(ctx, creator)
	if err != nil {
		return nil, translate(err)
	}
	if !trust.May(rec.Score, circleCreateAction(params.MaxMembers)) {
		return nil, translate(circle.ErrTierTooLow)
	}
	if params.StakeRequirement < trust.TierStake(rec.Score) {
		return nil, translate(circle.ErrStakeBelowTierFloor)
	}

	c, err := f.Circles.Create(ctx, circleID, params, createdAt)
	return c, translate(err)
}

// JoinCircle admits a member once their registration and trust tier
// clear the gate: joining a circle above the small-circle size requires
// at least Apprentice tier, a circle larger than 8 members additionally
// requires a member score of 400, and the posted stake is checked
// against the risk-adjusted floor for the member's own score and default
// history rather than a caller-asserted tier.
func (f *Facade) JoinCircle(ctx context.Context, circleID types.Hash, ic types.IdentityCommitment, stake uint64) (*types.Circle, error) {
	c, err := f.Circles.Get(ctx, circleID)
	if err != nil {
		return nil, translate(err)
	}

	if _, err := f.Members.Get(ctx, ic); err != nil {
		return nil, translate(err)
	}

	rec, err := f.Trust.GetScore(ctx, ic)
	if err != nil {
		return nil, translate(err)
	}

	if c.IsMedium() || c.IsLarge() {
		if !trust.May(rec.Score, types.ActionJoinMediumCircle) {
			return nil, translate(circle.ErrTierTooLow)
		}
	}
	if c.IsLarge() && rec.Score < 400 {
		return nil, translate(circle.ErrMemberScoreTooLow)
	}

	required := risk.RiskAdjustedStake(rec.Score, c.Params.StakeRequirement, c.Params.MaxMembers, rec.PaymentFailures)

	root, err := f.Members.AddToCircle(ctx, circleID, ic)
	if err != nil {
		return nil, translate(err)
	}

	updated, err := f.Circles.Join(ctx, circleID, stake, required, root)
	return updated, translate(err)
}

// AdvanceCircleRound moves circleID to its next round.
func (f *Facade) AdvanceCircleRound(ctx context.Context, circleID types.Hash) (*types.Circle, error) {
	c, err := f.Circles.AdvanceRound(ctx, circleID)
	return c, translate(err)
}

// GetCircle returns circleID's current state.
func (f *Facade) GetCircle(ctx context.Context, circleID types.Hash) (*types.Circle, error) {
	c, err := f.Circles.Get(ctx, circleID)
	return c, translate(err)
}

// --- Auction ------------------------------------------------------------

// OpenAuction starts a sealed-bid auction for circleID's current round.
func (f *Facade) OpenAuction(ctx context.Context, auctionID types.Hash, circleID types.Hash, round int, minBid, maxBid, deadline uint64, eligible []types.Hash) (*types.Auction, error) {
	a, err := f.Auctions.Open(ctx, auctionID, circleID, round, minBid, maxBid, deadline, eligible)
	return a, translate(err)
}

// SubmitBid submits a sealed bid to an open auction.
func (f *Facade) SubmitBid(ctx context.Context, auctionID types.Hash, bid *types.Bid, now uint64) (*types.Auction, error) {
	a, err := f.Auctions.SubmitBid(ctx, auctionID, bid, now)
	if err == nil && f.broadcaster != nil {
		f.broadcaster.BroadcastBid(p2p.EncodeBid(bid))
	}
	return a, translate(err)
}

// CloseAuction closes bidding on auctionID.
func (f *Facade) CloseAuction(ctx context.Context, auctionID types.Hash) (*types.Auction, error) {
	a, err := f.Auctions.Close(ctx, auctionID)
	return a, translate(err)
}

// FinalizeAuction derives and proves the winner of a closed auction.
func (f *Facade) FinalizeAuction(ctx context.Context, auctionID types.Hash) (*types.AuctionResult, error) {
	r, err := f.Auctions.Finalize(ctx, auctionID)
	return r, translate(err)
}

// --- Governance -----------------------------------------------------------

// CreateProposal opens a new governance proposal, gated on the proposer
// being a registered member whose trust score clears the scope's floor
// (800 protocol-wide, 600 circle-scoped).
func (f *Facade) CreateProposal(ctx context.Context, proposalType types.ProposalType, proposer types.IdentityCommitment, circleID types.Hash, payload []byte, createdAt uint64, eligibleCount int) (*types.Proposal, error) {
	if _, err := f.Members.Get(ctx, proposer); err != nil {
		return nil, translate(err)
	}
	rec, err := f.Trust.GetScore(ctx, proposer)
	if err != nil {
		return nil, translate(err)
	}
	if rec.Score < governance.MinProposerScore(circleID) {
		return nil, translate(governance.ErrProposerBelowMinTrust)
	}
	p, err := f.Governance.CreateProposal(ctx, proposalType, proposer, circleID, payload, createdAt, eligibleCount)
	return p, translate(err)
}

// CastVote records an anonymous ballot, deriving its trust weight from
// voter's authoritative score record rather than trusting the caller's
// vote.TrustWeight field, and verifying voteProof against the
// vote_validity circuit.
func (f *Facade) CastVote(ctx context.Context, proposalID types.Hash, vote *types.Vote, voteProof []byte, voter types.IdentityCommitment, now uint64) error {
	rec, err := f.Trust.GetScore(ctx, voter)
	if err != nil {
		return translate(err)
	}
	vote.TrustWeight = rec.Score

	err = f.Governance.CastVote(ctx, proposalID, vote, voteProof, now)
	if err == nil && f.broadcaster != nil {
		f.broadcaster.BroadcastVote(p2p.EncodeVote(vote))
	}
	return translate(err)
}

// FinalizeProposal closes voting and commits a Passed/Failed status.
func (f *Facade) FinalizeProposal(ctx context.Context, proposalID types.Hash, now uint64) (*types.Proposal, error) {
	p, err := f.Governance.Finalize(ctx, proposalID, now)
	return p, translate(err)
}

// ExecuteProposal executes a passed proposal once its timelock expires.
func (f *Facade) ExecuteProposal(ctx context.Context, proposalID types.Hash, now uint64) (*types.Proposal, error) {
	p, err := f.Governance.Execute(ctx, proposalID, now)
	return p, translate(err)
}

// --- Anonymity pool / mixer -----------------------------------------------

// DepositToPool commits amount into poolID's anonymity set.
func (f *Facade) DepositToPool(ctx context.Context, poolID types.Hash, amount uint64, commitment types.Hash) (types.Hash, error) {
	root, err := f.Pools.Deposit(ctx, poolID, amount, commitment)
	return root, translate(err)
}

// WithdrawFromPool releases a deposit against a verified membership proof.
func (f *Facade) WithdrawFromPool(ctx context.Context, poolID, nullifier types.Hash, membershipProof []byte, now uint64) error {
	return translate(f.Pools.Withdraw(ctx, poolID, nullifier, membershipProof, now))
}

// EnqueueMix adds commitment to the mixer's pending batch and reports the
// batch's current size.
func (f *Facade) EnqueueMix(commitment types.Hash) int {
	return f.Mixer.Enqueue(commitment)
}

// ExecuteMix runs a mixer batch, verifying its permutation proof, and
// broadcasts the resulting batch announcement to peers.
func (f *Facade) ExecuteMix(ctx context.Context, mixID types.Hash, outputCommits, nullifiers []types.Hash, proof []byte, totalAmount uint64) (*types.Mix, error) {
	mix, err := f.Mixer.ExecuteMix(ctx, mixID, outputCommits, nullifiers, proof, totalAmount)
	if err == nil && f.broadcaster != nil {
		f.broadcaster.BroadcastMixBatch(p2p.EncodeMix(mix))
	}
	return mix, translate(err)
}

// --- Cross-chain privacy bridge -------------------------------------------

// InitiateBridgeTransfer opens a pending cross-chain transfer.
func (f *Facade) InitiateBridgeTransfer(ctx context.Context, transferID types.Hash, source, target types.ChainID, amount uint64, recipientCommit types.Hash, mode types.RouteMode, createdAt uint64) (*types.CrossChainTransfer, error) {
	t, err := f.Bridge.Initiate(ctx, transferID, source, target, amount, recipientCommit, mode, createdAt)
	f.broadcastTransfer(t)
	return t, translate(err)
}

// ConfirmBridgeTransfer attaches a deposit nullifier and transfer-validity
// proof to a pending transfer.
func (f *Facade) ConfirmBridgeTransfer(ctx context.Context, transferID types.Hash, nullifier types.Hash, proof []byte) (*types.CrossChainTransfer, error) {
	t, err := f.Bridge.Confirm(ctx, transferID, nullifier, proof)
	f.broadcastTransfer(t)
	return t, translate(err)
}

// ExecuteBridgeTransfer releases funds on the target chain.
func (f *Facade) ExecuteBridgeTransfer(ctx context.Context, transferID types.Hash) (*types.CrossChainTransfer, error) {
	t, err := f.Bridge.Execute(ctx, transferID)
	f.broadcastTransfer(t)
	return t, translate(err)
}

// broadcastTransfer fans out a transfer's latest state if a gossip layer
// is attached; t is nil when the preceding bridge call failed.
func (f *Facade) broadcastTransfer(t *types.CrossChainTransfer) {
	if t != nil && f.broadcaster != nil {
		f.broadcaster.BroadcastBridgeTransfer(p2p.EncodeBridgeTransfer(t))
	}
}

// --- Payment collection ---------------------------------------------------

// RegisterWallet records a verified wallet connection.
func (f *Facade) RegisterWallet(ctx context.Context, ic types.IdentityCommitment, chain types.ChainID, balanceCommit types.Hash, ownershipProof []byte, verifiedAt uint64) (*types.WalletConnection, error) {
	w, err := f.Payments.RegisterWallet(ctx, ic, chain, balanceCommit, ownershipProof, verifiedAt)
	return w, translate(err)
}

// CollectPayment attempts to gather a round's contribution by verifying
// each claimed chain contribution's balance proof and summing the result.
func (f *Facade) CollectPayment(ctx context.Context, params types.CollectionParams, reason types.RetryReason, now uint64) (*types.CollectionResult, error) {
	r, err := f.Payments.Collect(ctx, params, reason, now)
	return r, translate(err)
}

// ListWallets returns every chain wallet ic has registered.
func (f *Facade) ListWallets(ctx context.Context, ic types.IdentityCommitment) ([]*types.WalletConnection, error) {
	w, err := f.Payments.ListWallets(ctx, ic)
	return w, translate(err)
}

// --- Risk engine ------------------------------------------------------------

// FlagDefault records an anonymous missed-payment flag.
func (f *Facade) FlagDefault(ctx context.Context, memberSecret []byte, circleID types.Hash, round int, severityCommit types.Hash, proof []byte, now uint64) (*types.DefaultFlag, error) {
	d, err := f.Risk.FlagDefault(ctx, memberSecret, circleID, round, severityCommit, proof, now)
	return d, translate(err)
}

// DetectDefaults aggregates a round's default flags into a confidential
// severity score.
func (f *Facade) DetectDefaults(ctx context.Context, circleID types.Hash, round int) (*types.DefaultDetectionResult, error) {
	r, err := f.Risk.DetectDefaults(ctx, circleID, round)
	return r, translate(err)
}

// Liquidate authors a justified liquidation order.
func (f *Facade) Liquidate(ctx context.Context, orderID, circleID, targetNullifier types.Hash, encryptedReason []byte, amount uint64, justificationProof []byte, executionDeadline, now uint64) (*types.LiquidationOrder, error) {
	o, err := f.Risk.Liquidate(ctx, orderID, circleID, targetNullifier, encryptedReason, amount, justificationProof, executionDeadline, now)
	return o, translate(err)
}
