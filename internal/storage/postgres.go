// Package storage implements the PostgreSQL persistence layer for the
// lending-circle protocol: circles, members, auctions and bids,
// governance proposals and votes, anonymity pools and cross-chain
// transfers, wallet connections and encrypted payment history, and the
// shared nullifier set every module checks against.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kunal-drall/lendcircle-core/internal/trust"
	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrInvalidData  = errors.New("invalid data")
	ErrDBConnection = errors.New("database connection error")
)

// PostgresStore implements persistent storage using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Config holds database configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DefaultConfig returns default database configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "lendcircle",
		Password: "",
		Database: "lendcircle",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(ctx context.Context, cfg *Config) (*PostgresStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// ============================================
// Circle Operations
// ============================================

// SaveCircle upserts a lending circle.
func (s *PostgresStore) SaveCircle(ctx context.Context, c *types.Circle) error {
	query := `
		INSERT INTO circles (
			circle_id, max_members, member_count, total_rounds, current_round,
			stake_requirement, insurance_pool, created_at, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (circle_id) DO UPDATE SET
			member_count = $3, current_round = $5, insurance_pool = $7, active = $9
	`
	_, err := s.pool.Exec(ctx, query,
		c.CircleID[:], c.Params.MaxMembers, c.MemberCount, c.Params.TotalRounds,
		c.CurrentRound, c.Params.StakeRequirement, c.InsurancePool, c.CreatedAt, c.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save circle: %w", err)
	}
	return nil
}

// GetCircle retrieves a circle by id.
func (s *PostgresStore) GetCircle(ctx context.Context, circleID types.Hash) (*types.Circle, error) {
	query := `
		SELECT circle_id, max_members, member_count, total_rounds, current_round,
			   stake_requirement, insurance_pool, created_at, active
		FROM circles WHERE circle_id = $1
	`
	var c types.Circle
	var id []byte
	err := s.pool.QueryRow(ctx, query, circleID[:]).Scan(
		&id, &c.Params.MaxMembers, &c.MemberCount, &c.Params.TotalRounds,
		&c.CurrentRound, &c.Params.StakeRequirement, &c.InsurancePool, &c.CreatedAt, &c.Active,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get circle: %w", err)
	}
	copy(c.CircleID[:], id)
	return &c, nil
}

// ListActiveCircles returns every circle still accepting rounds.
func (s *PostgresStore) ListActiveCircles(ctx context.Context) ([]*types.Circle, error) {
	rows, err := s.pool.Query(ctx, `SELECT circle_id FROM circles WHERE active = TRUE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var circles []*types.Circle
	for rows.Next() {
		var idBytes []byte
		if err := rows.Scan(&idBytes); err != nil {
			return nil, err
		}
		var id types.Hash
		copy(id[:], idBytes)
		c, err := s.GetCircle(ctx, id)
		if err != nil {
			return nil, err
		}
		circles = append(circles, c)
	}
	return circles, nil
}

// ============================================
// Membership Operations
// ============================================

// SaveMember upserts a registered identity commitment.
func (s *PostgresStore) SaveMember(ctx context.Context, m *types.Member) error {
	query := `
		INSERT INTO members (ic, trust_score, stake_amount, joined_height)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ic) DO UPDATE SET trust_score = $2, stake_amount = $3
	`
	_, err := s.pool.Exec(ctx, query, m.IC[:], m.TrustScore, m.StakeAmount, m.JoinedHeight)
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}

// GetMember retrieves a registered member by identity commitment.
func (s *PostgresStore) GetMember(ctx context.Context, ic types.IdentityCommitment) (*types.Member, error) {
	query := `SELECT ic, trust_score, stake_amount, joined_height FROM members WHERE ic = $1`
	var m types.Member
	var id []byte
	err := s.pool.QueryRow(ctx, query, ic[:]).Scan(&id, &m.TrustScore, &m.StakeAmount, &m.JoinedHeight)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	copy(m.IC[:], id)
	return &m, nil
}

// ListMembers returns every registered member.
func (s *PostgresStore) ListMembers(ctx context.Context) ([]*types.Member, error) {
	rows, err := s.pool.Query(ctx, `SELECT ic FROM members`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*types.Member
	for rows.Next() {
		var idBytes []byte
		if err := rows.Scan(&idBytes); err != nil {
			return nil, err
		}
		var ic types.IdentityCommitment
		copy(ic[:], idBytes)
		m, err := s.GetMember(ctx, ic)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

// ============================================
// Auction and Bid Operations
// ============================================

// SaveAuction upserts an auction along with its bids.
func (s *PostgresStore) SaveAuction(ctx context.Context, a *types.Auction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var winnerCommit types.Hash
	if a.Result != nil {
		winnerCommit = a.Result.WinnerCommitment
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO auctions (
			auction_id, circle_id, round, min_bid, max_bid, deadline, status,
			winner_commit
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (auction_id) DO UPDATE SET status = $7, winner_commit = $8
	`, a.AuctionID[:], a.CircleID[:], a.Round, a.MinBid, a.MaxBid, a.Deadline, a.Status, winnerCommit[:])
	if err != nil {
		return fmt.Errorf("failed to save auction: %w", err)
	}

	for _, bid := range a.Bids {
		_, err = tx.Exec(ctx, `
			INSERT INTO bids (commitment, auction_id, nullifier, circle_id, round)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (commitment) DO NOTHING
		`, bid.Commitment[:], a.AuctionID[:], bid.Nullifier[:], bid.CircleID[:], bid.Round)
		if err != nil {
			return fmt.Errorf("failed to save bid: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetAuction retrieves an auction and its bids by id.
func (s *PostgresStore) GetAuction(ctx context.Context, auctionID types.Hash) (*types.Auction, error) {
	var a types.Auction
	var id, circleID, winnerCommit []byte

	err := s.pool.QueryRow(ctx, `
		SELECT auction_id, circle_id, round, min_bid, max_bid, deadline, status, winner_commit
		FROM auctions WHERE auction_id = $1
	`, auctionID[:]).Scan(&id, &circleID, &a.Round, &a.MinBid, &a.MaxBid, &a.Deadline, &a.Status, &winnerCommit)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	copy(a.AuctionID[:], id)
	copy(a.CircleID[:], circleID)
	if !nullIfEmptyHash(winnerCommit) {
		a.Result = &types.AuctionResult{AuctionID: a.AuctionID}
		copy(a.Result.WinnerCommitment[:], winnerCommit)
	}

	rows, err := s.pool.Query(ctx, `SELECT commitment, nullifier, circle_id, round FROM bids WHERE auction_id = $1`, auctionID[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		bid := &types.Bid{}
		var commit, nullifier, cID []byte
		if err := rows.Scan(&commit, &nullifier, &cID, &bid.Round); err != nil {
			return nil, err
		}
		copy(bid.Commitment[:], commit)
		copy(bid.Nullifier[:], nullifier)
		copy(bid.CircleID[:], cID)
		a.Bids = append(a.Bids, bid)
	}

	return &a, nil
}

// ============================================
// Governance Operations
// ============================================

// SaveProposal upserts a governance proposal.
func (s *PostgresStore) SaveProposal(ctx context.Context, p *types.Proposal) error {
	query := `
		INSERT INTO proposals (
			proposal_id, proposal_type, proposer, circle_id, encrypted_payload,
			eligible_count, quorum_pct, min_trust_score, deadline, yes_weight,
			no_weight, status, execution_deadline, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (proposal_id) DO UPDATE SET
			yes_weight = $10, no_weight = $11, status = $12,
			execution_deadline = $13, executed_at = $14
	`
	_, err := s.pool.Exec(ctx, query,
		p.ProposalID[:], p.Type, p.ProposerIC[:], p.CircleID[:], p.EncryptedPayload,
		p.EligibleCount, p.QuorumPct, p.MinTrustScore, p.Deadline, p.YesWeight,
		p.NoWeight, p.Status, p.ExecutionDeadline, p.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save proposal: %w", err)
	}
	return nil
}

// GetProposal retrieves a proposal by id.
func (s *PostgresStore) GetProposal(ctx context.Context, id types.Hash) (*types.Proposal, error) {
	var p types.Proposal
	var pid, proposer, circleID []byte

	err := s.pool.QueryRow(ctx, `
		SELECT proposal_id, proposal_type, proposer, circle_id, encrypted_payload,
			   eligible_count, quorum_pct, min_trust_score, deadline, yes_weight,
			   no_weight, status, execution_deadline, executed_at
		FROM proposals WHERE proposal_id = $1
	`, id[:]).Scan(
		&pid, &p.Type, &proposer, &circleID, &p.EncryptedPayload,
		&p.EligibleCount, &p.QuorumPct, &p.MinTrustScore, &p.Deadline, &p.YesWeight,
		&p.NoWeight, &p.Status, &p.ExecutionDeadline, &p.ExecutedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	copy(p.ProposalID[:], pid)
	copy(p.ProposerIC[:], proposer)
	copy(p.CircleID[:], circleID)
	return &p, nil
}

// SaveVote appends a ballot to proposalID's vote history.
func (s *PostgresStore) SaveVote(ctx context.Context, v *types.Vote) error {
	query := `
		INSERT INTO votes (proposal_id, nullifier, trust_weight, choice)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (proposal_id, nullifier) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query, v.ProposalID[:], v.Nullifier[:], v.TrustWeight, v.Choice)
	if err != nil {
		return fmt.Errorf("failed to save vote: %w", err)
	}
	return nil
}

// GetVotes returns every ballot cast on proposalID.
func (s *PostgresStore) GetVotes(ctx context.Context, proposalID types.Hash) ([]*types.Vote, error) {
	rows, err := s.pool.Query(ctx, `SELECT nullifier, trust_weight, choice FROM votes WHERE proposal_id = $1`, proposalID[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []*types.Vote
	for rows.Next() {
		v := &types.Vote{ProposalID: proposalID}
		var nullifier []byte
		if err := rows.Scan(&nullifier, &v.TrustWeight, &v.Choice); err != nil {
			return nil, err
		}
		copy(v.Nullifier[:], nullifier)
		votes = append(votes, v)
	}
	return votes, nil
}

// ============================================
// Anonymity Pool and Cross-Chain Transfer Operations
// ============================================

// SavePool upserts an anonymity pool.
func (s *PostgresStore) SavePool(ctx context.Context, pool *types.AnonymityPool) error {
	query := `
		INSERT INTO anonymity_pools (pool_id, chain_id, denomination, merkle_root, size)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (pool_id) DO UPDATE SET merkle_root = $4, size = $5
	`
	_, err := s.pool.Exec(ctx, query, pool.PoolID[:], pool.ChainID, pool.FixedDenomination, pool.MerkleRoot[:], pool.Size)
	if err != nil {
		return fmt.Errorf("failed to save pool: %w", err)
	}
	return nil
}

// GetPool retrieves an anonymity pool by id.
func (s *PostgresStore) GetPool(ctx context.Context, poolID types.Hash) (*types.AnonymityPool, error) {
	var p types.AnonymityPool
	var id, root []byte
	err := s.pool.QueryRow(ctx, `
		SELECT pool_id, chain_id, denomination, merkle_root, size
		FROM anonymity_pools WHERE pool_id = $1
	`, poolID[:]).Scan(&id, &p.ChainID, &p.FixedDenomination, &root, &p.Size)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}
	copy(p.PoolID[:], id)
	copy(p.MerkleRoot[:], root)
	p.NullifierSet = make(map[types.Hash]struct{})
	return &p, nil
}

// SaveTransfer upserts a cross-chain transfer.
func (s *PostgresStore) SaveTransfer(ctx context.Context, t *types.CrossChainTransfer) error {
	query := `
		INSERT INTO transfers (
			transfer_id, source, target, amount, recipient_commit, nullifier,
			zk_proof, status, mixing_delay, estimated_eta, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (transfer_id) DO UPDATE SET
			nullifier = $6, zk_proof = $7, status = $8
	`
	_, err := s.pool.Exec(ctx, query,
		t.TransferID[:], t.Source, t.Target, t.Amount, t.RecipientCommit[:], t.Nullifier[:],
		t.ZKProof, t.Status, t.MixingDelay, t.EstimatedETA, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transfer: %w", err)
	}
	return nil
}

// GetTransfer retrieves a cross-chain transfer by id.
func (s *PostgresStore) GetTransfer(ctx context.Context, id types.Hash) (*types.CrossChainTransfer, error) {
	var t types.CrossChainTransfer
	var tid, recipient, nullifier []byte
	err := s.pool.QueryRow(ctx, `
		SELECT transfer_id, source, target, amount, recipient_commit, nullifier,
			   zk_proof, status, mixing_delay, estimated_eta, created_at
		FROM transfers WHERE transfer_id = $1
	`, id[:]).Scan(
		&tid, &t.Source, &t.Target, &t.Amount, &recipient, &nullifier,
		&t.ZKProof, &t.Status, &t.MixingDelay, &t.EstimatedETA, &t.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}
	copy(t.TransferID[:], tid)
	copy(t.RecipientCommit[:], recipient)
	copy(t.Nullifier[:], nullifier)
	return &t, nil
}

// ============================================
// Wallet and Encrypted Payment History Operations
// ============================================

// SaveWallet upserts a contributor's wallet connection on one chain.
func (s *PostgresStore) SaveWallet(ctx context.Context, ic types.IdentityCommitment, chain types.ChainID, w *types.WalletConnection) error {
	query := `
		INSERT INTO wallet_connections (ic, chain_id, balance_commit, ownership_proof, last_verified, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ic, chain_id) DO UPDATE SET
			balance_commit = $3, ownership_proof = $4, last_verified = $5, active = $6
	`
	_, err := s.pool.Exec(ctx, query, ic[:], chain, w.BalanceCommit[:], w.OwnershipProof, w.LastVerified, w.Active)
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	return nil
}

// GetWallet retrieves a contributor's wallet connection on one chain.
func (s *PostgresStore) GetWallet(ctx context.Context, ic types.IdentityCommitment, chain types.ChainID) (*types.WalletConnection, error) {
	var w types.WalletConnection
	var commit []byte
	w.ChainID = chain
	err := s.pool.QueryRow(ctx, `
		SELECT balance_commit, ownership_proof, last_verified, active
		FROM wallet_connections WHERE ic = $1 AND chain_id = $2
	`, ic[:], chain).Scan(&commit, &w.OwnershipProof, &w.LastVerified, &w.Active)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	copy(w.BalanceCommit[:], commit)
	return &w, nil
}

// SaveRecord persists an encrypted payment history entry for ic.
func (s *PostgresStore) SaveRecord(ctx context.Context, ic types.IdentityCommitment, r *types.EncryptedPaymentRecord) error {
	query := `
		INSERT INTO payment_records (
			record_id, ic, ciphertext_amount, ciphertext_breakdown, anonymity_score,
			settlement_proof, payment_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (record_id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query,
		r.RecordID[:], ic[:], r.CiphertextAmount, r.CiphertextBreakdown, r.AnonymityScore,
		r.SettlementProof, r.PaymentHash[:], r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save payment record: %w", err)
	}
	return nil
}

// ListRecords returns ic's full encrypted payment history.
func (s *PostgresStore) ListRecords(ctx context.Context, ic types.IdentityCommitment) ([]*types.EncryptedPaymentRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT record_id, ciphertext_amount, ciphertext_breakdown, anonymity_score,
			   settlement_proof, payment_hash, created_at
		FROM payment_records WHERE ic = $1 ORDER BY created_at ASC
	`, ic[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*types.EncryptedPaymentRecord
	for rows.Next() {
		r := &types.EncryptedPaymentRecord{}
		var recordID, paymentHash []byte
		if err := rows.Scan(&recordID, &r.CiphertextAmount, &r.CiphertextBreakdown, &r.AnonymityScore,
			&r.SettlementProof, &paymentHash, &r.CreatedAt); err != nil {
			return nil, err
		}
		copy(r.RecordID[:], recordID)
		copy(r.PaymentHash[:], paymentHash)
		records = append(records, r)
	}
	return records, nil
}

// ============================================
// Nullifier Set Operations (shared across zkp.NullifierStore)
// ============================================

// HasNullifier reports whether nullifier has already been recorded.
func (s *PostgresStore) HasNullifier(ctx context.Context, nullifier types.Hash) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM nullifier_set WHERE nullifier = $1)`, nullifier[:]).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check nullifier: %w", err)
	}
	return exists, nil
}

// AddNullifier records nullifier as spent under scope at recordedAt.
func (s *PostgresStore) AddNullifier(ctx context.Context, nullifier types.Hash, scope types.Hash, recordedAt uint64) error {
	query := `
		INSERT INTO nullifier_set (nullifier, scope, recorded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (nullifier) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query, nullifier[:], scope[:], recordedAt)
	if err != nil {
		return fmt.Errorf("failed to add nullifier: %w", err)
	}
	return nil
}

// GetNullifierInfo returns the recorded scope/timestamp for nullifier.
func (s *PostgresStore) GetNullifierInfo(ctx context.Context, nullifier types.Hash) (*zkp.NullifierInfo, error) {
	info := &zkp.NullifierInfo{Nullifier: nullifier}
	var scopeBytes []byte
	err := s.pool.QueryRow(ctx, `SELECT scope, recorded_at FROM nullifier_set WHERE nullifier = $1`, nullifier[:]).
		Scan(&scopeBytes, &info.RecordedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get nullifier info: %w", err)
	}
	copy(info.Scope[:], scopeBytes)
	return info, nil
}

// ============================================
// Trust Score Operations (internal/trust.Store, via TrustStore adapter)
// ============================================

// TrustStore adapts the shared pool to internal/trust.Store. A distinct
// type from PostgresStore since trust.Store's GetScore/SaveScore names
// would otherwise collide with other subsystems' Store methods.
type TrustStore struct {
	pool *pgxpool.Pool
}

// TrustStore returns a trust.Store backed by this connection pool.
func (s *PostgresStore) TrustStore() *TrustStore {
	return &TrustStore{pool: s.pool}
}

// SaveScore upserts a member's trust score record.
func (s *TrustStore) SaveScore(ctx context.Context, rec *trust.ScoreRecord) error {
	query := `
		INSERT INTO trust_scores (
			ic, score, payment_successes, payment_failures, circles_completed, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ic) DO UPDATE SET
			score = $2, payment_successes = $3, payment_failures = $4,
			circles_completed = $5, last_updated = $6
	`
	_, err := s.pool.Exec(ctx, query, rec.IC[:], rec.Score, rec.PaymentSuccesses,
		rec.PaymentFailures, rec.CirclesCompleted, rec.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to save trust score: %w", err)
	}
	return nil
}

// GetScore retrieves a member's trust score record.
func (s *TrustStore) GetScore(ctx context.Context, ic types.IdentityCommitment) (*trust.ScoreRecord, error) {
	var rec trust.ScoreRecord
	var id []byte
	err := s.pool.QueryRow(ctx, `
		SELECT ic, score, payment_successes, payment_failures, circles_completed, last_updated
		FROM trust_scores WHERE ic = $1
	`, ic[:]).Scan(&id, &rec.Score, &rec.PaymentSuccesses, &rec.PaymentFailures,
		&rec.CirclesCompleted, &rec.LastUpdated)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trust score: %w", err)
	}
	copy(rec.IC[:], id)
	return &rec, nil
}

// GetAllScores returns every recorded trust score.
func (s *TrustStore) GetAllScores(ctx context.Context) ([]*trust.ScoreRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT ic FROM trust_scores`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*trust.ScoreRecord
	for rows.Next() {
		var idBytes []byte
		if err := rows.Scan(&idBytes); err != nil {
			return nil, err
		}
		var ic types.IdentityCommitment
		copy(ic[:], idBytes)
		rec, err := s.GetScore(ctx, ic)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ============================================
// Risk Engine Operations: Default Flags, Liquidation Orders, Penalties
// ============================================

// SaveFlag persists an anonymous default flag.
func (s *PostgresStore) SaveFlag(ctx context.Context, flag *types.DefaultFlag) error {
	query := `
		INSERT INTO default_flags (nullifier, circle_id, round, severity_commit, proof, flagged_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (nullifier) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query, flag.Nullifier[:], flag.CircleID[:], flag.Round,
		flag.SeverityCommit[:], flag.Proof, flag.FlaggedAt)
	if err != nil {
		return fmt.Errorf("failed to save default flag: %w", err)
	}
	return nil
}

// ListFlags returns every default flag recorded against circleID/round.
func (s *PostgresStore) ListFlags(ctx context.Context, circleID types.Hash, round int) ([]types.DefaultFlag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT nullifier, severity_commit, proof, flagged_at
		FROM default_flags WHERE circle_id = $1 AND round = $2
	`, circleID[:], round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flags []types.DefaultFlag
	for rows.Next() {
		f := types.DefaultFlag{CircleID: circleID, Round: round}
		var nullifier, severityCommit []byte
		if err := rows.Scan(&nullifier, &severityCommit, &f.Proof, &f.FlaggedAt); err != nil {
			return nil, err
		}
		copy(f.Nullifier[:], nullifier)
		copy(f.SeverityCommit[:], severityCommit)
		flags = append(flags, f)
	}
	return flags, nil
}

// SaveOrder persists a liquidation order.
func (s *PostgresStore) SaveOrder(ctx context.Context, order *types.LiquidationOrder) error {
	query := `
		INSERT INTO liquidation_orders (
			order_id, circle_id, target_nullifier, encrypted_reason,
			liquidation_amount, execution_deadline, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query, order.OrderID[:], order.CircleID[:], order.TargetNullifier[:],
		order.EncryptedReason, order.LiquidationAmount, order.ExecutionDeadline, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save liquidation order: %w", err)
	}
	return nil
}

// GetOrder retrieves a liquidation order by id.
func (s *PostgresStore) GetOrder(ctx context.Context, orderID types.Hash) (*types.LiquidationOrder, error) {
	var o types.LiquidationOrder
	var id, circleID, targetNullifier []byte
	err := s.pool.QueryRow(ctx, `
		SELECT order_id, circle_id, target_nullifier, encrypted_reason,
			   liquidation_amount, execution_deadline, created_at
		FROM liquidation_orders WHERE order_id = $1
	`, orderID[:]).Scan(&id, &circleID, &targetNullifier, &o.EncryptedReason,
		&o.LiquidationAmount, &o.ExecutionDeadline, &o.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get liquidation order: %w", err)
	}
	copy(o.OrderID[:], id)
	copy(o.CircleID[:], circleID)
	copy(o.TargetNullifier[:], targetNullifier)
	return &o, nil
}

// PenaltyStore adapts the shared pool to internal/risk.PenaltyStore, kept
// distinct from PostgresStore since its SaveRecord/GetRecord names would
// otherwise collide with the payment-history Store's methods.
type PenaltyStore struct {
	pool *pgxpool.Pool
}

// PenaltyStore returns a risk.PenaltyStore backed by this connection pool.
func (s *PostgresStore) PenaltyStore() *PenaltyStore {
	return &PenaltyStore{pool: s.pool}
}

// SaveRecord persists a penalty enforcement record.
func (s *PenaltyStore) SaveRecord(ctx context.Context, record *types.PenaltyRecord) error {
	query := `
		INSERT INTO penalty_records (
			record_id, target_nullifier, penalty_type, severity,
			encrypted_reason, appeal_deadline, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (record_id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query, record.RecordID[:], record.TargetNullifier[:], record.Type,
		record.Severity, record.EncryptedReason, record.AppealDeadline, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save penalty record: %w", err)
	}
	return nil
}

// GetRecord retrieves a penalty enforcement record by id.
func (s *PenaltyStore) GetRecord(ctx context.Context, recordID types.Hash) (*types.PenaltyRecord, error) {
	var r types.PenaltyRecord
	var id, targetNullifier []byte
	err := s.pool.QueryRow(ctx, `
		SELECT record_id, target_nullifier, penalty_type, severity,
			   encrypted_reason, appeal_deadline, created_at
		FROM penalty_records WHERE record_id = $1
	`, recordID[:]).Scan(&id, &targetNullifier, &r.Type, &r.Severity,
		&r.EncryptedReason, &r.AppealDeadline, &r.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get penalty record: %w", err)
	}
	copy(r.RecordID[:], id)
	copy(r.TargetNullifier[:], targetNullifier)
	return &r, nil
}

// ============================================
// Helper Functions
// ============================================

func nullIfEmptyHash(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

