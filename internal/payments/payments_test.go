package payments

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/consensys/gnark/frontend"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

func newTestCollector(t *testing.T) (*Collector, *zkp.Oracle) {
	t.Helper()
	oracle := zkp.NewOracle()
	if err := oracle.Compile(zkp.CircuitWalletOwnership, 0); err != nil {
		t.Fatalf("Compile wallet_ownership: %v", err)
	}
	if err := oracle.Compile(zkp.CircuitBalance, 0); err != nil {
		t.Fatalf("Compile balance: %v", err)
	}
	return NewCollector(NewInMemoryWalletStore(), NewInMemoryHistoryStore(), oracle), oracle
}

// ownershipProof proves knowledge of secret behind an arbitrary nullifier,
// standing in for the wallet_ownership relation a real wallet would prove
// against its on-chain key.
func ownershipProof(t *testing.T, oracle *zkp.Oracle, secret int64) []byte {
	t.Helper()
	witness := &zkp.NullifierCircuit{
		Nullifier: zkp.MiMCHash(bigInt(secret), bigInt(0)),
		Context:   bigInt(0),
		Secret:    bigInt(secret),
	}
	proof, err := oracle.Prove(context.Background(), zkp.CircuitWalletOwnership, witness)
	if err != nil {
		t.Fatalf("Prove wallet_ownership: %v", err)
	}
	return proof.Proof
}

// balanceProof proves the trivial zero-leg conservation relation, standing
// in for a wallet's confidential balance proof.
func balanceProof(t *testing.T, oracle *zkp.Oracle) []byte {
	t.Helper()
	witness := &zkp.ConservationCircuit{
		Fee:       frontend.Variable(0),
		InValues:  []frontend.Variable{},
		OutValues: []frontend.Variable{},
	}
	proof, err := oracle.Prove(context.Background(), zkp.CircuitBalance, witness)
	if err != nil {
		t.Fatalf("Prove balance: %v", err)
	}
	return proof.Proof
}

func registerTestWallet(t *testing.T, c *Collector, oracle *zkp.Oracle, ic types.IdentityCommitment, chain types.ChainID, secret int64) {
	t.Helper()
	if _, err := c.RegisterWallet(context.Background(), ic, chain, types.EmptyHash, ownershipProof(t, oracle, secret), 1); err != nil {
		t.Fatalf("RegisterWallet: %v", err)
	}
}

func TestCollectFullAmountSucceeds(t *testing.T) {
	ctx := context.Background()
	c, oracle := newTestCollector(t)

	contributor := types.HashFromBytes([]byte("member-1"))
	registerTestWallet(t, c, oracle, contributor, types.ChainEthereum, 1)

	params := types.CollectionParams{
		Contributor:    contributor,
		RequiredAmount: 1000,
		AllowPartial:   true,
		Contributions: []types.ChainContribution{
			{ChainID: types.ChainEthereum, Amount: 1000, BalanceProof: balanceProof(t, oracle)},
		},
	}

	result, err := c.Collect(ctx, params, types.ReasonNetworkError, 100)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if result.Status != types.CollectionSuccess {
		t.Fatalf("expected CollectionSuccess, got %v", result.Status)
	}
	if c.QueueLen() != 0 {
		t.Fatalf("full collection should not enqueue a retry")
	}
}

func TestCollectPartialAboveThresholdSucceedsPartially(t *testing.T) {
	ctx := context.Background()
	c, oracle := newTestCollector(t)

	contributor := types.HashFromBytes([]byte("member-2"))
	registerTestWallet(t, c, oracle, contributor, types.ChainEthereum, 2)

	params := types.CollectionParams{
		Contributor:    contributor,
		RequiredAmount: 1000,
		AllowPartial:   true,
		Contributions: []types.ChainContribution{
			{ChainID: types.ChainEthereum, Amount: 150, BalanceProof: balanceProof(t, oracle)},
		},
	}

	result, err := c.Collect(ctx, params, types.ReasonTemporaryFailure, 100)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if result.Status != types.CollectionPartial {
		t.Fatalf("expected CollectionPartial, got %v", result.Status)
	}
	if result.Shortfall != 850 {
		t.Fatalf("expected shortfall 850, got %d", result.Shortfall)
	}
}

func TestCollectBelowThresholdFailsAndQueuesRetry(t *testing.T) {
	ctx := context.Background()
	c, oracle := newTestCollector(t)

	contributor := types.HashFromBytes([]byte("member-3"))
	registerTestWallet(t, c, oracle, contributor, types.ChainEthereum, 3)

	params := types.CollectionParams{
		Contributor:    contributor,
		RequiredAmount: 1000,
		AllowPartial:   true,
		MaxRetries:     RetryMaxAttempts,
		Contributions: []types.ChainContribution{
			{ChainID: types.ChainEthereum, Amount: 50, BalanceProof: balanceProof(t, oracle)},
		},
	}

	result, err := c.Collect(ctx, params, types.ReasonInsufficientGas, 100)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if result.Status != types.CollectionFailed {
		t.Fatalf("expected CollectionFailed, got %v", result.Status)
	}
	if c.QueueLen() != 1 {
		t.Fatalf("expected one queued retry attempt, got %d", c.QueueLen())
	}

	due := c.DueAttempts(100 + RetryBaseDelay)
	if len(due) != 1 {
		t.Fatalf("expected the attempt due after base delay, got %d", len(due))
	}
}

func TestCollectRejectsUnregisteredChain(t *testing.T) {
	ctx := context.Background()
	c, oracle := newTestCollector(t)

	contributor := types.HashFromBytes([]byte("member-3b"))
	params := types.CollectionParams{
		Contributor:    contributor,
		RequiredAmount: 1000,
		Contributions: []types.ChainContribution{
			{ChainID: types.ChainEthereum, Amount: 1000, BalanceProof: balanceProof(t, oracle)},
		},
	}

	if _, err := c.Collect(ctx, params, types.ReasonNetworkError, 100); err != ErrWalletNotFound {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestRetryBackoffDoublesAndCaps(t *testing.T) {
	if d := NextRetryDelay(0); d != RetryBaseDelay {
		t.Fatalf("NextRetryDelay(0) = %d, want %d", d, RetryBaseDelay)
	}
	if d := NextRetryDelay(1); d != RetryBaseDelay*RetryBackoff {
		t.Fatalf("NextRetryDelay(1) = %d, want %d", d, RetryBaseDelay*RetryBackoff)
	}
	if d := NextRetryDelay(10); d != RetryMaxDelay {
		t.Fatalf("NextRetryDelay(10) should cap at %d, got %d", RetryMaxDelay, d)
	}
}

func TestRescheduleExhaustsAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCollector(t)

	params := types.CollectionParams{
		Contributor:    types.HashFromBytes([]byte("member-4")),
		RequiredAmount: 1000,
		MaxRetries:     2,
	}

	attempt, err := c.Enqueue(ctx, params, types.ReasonNetworkError, 0)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := c.Reschedule(attempt, 30); err != nil {
		t.Fatalf("first Reschedule: %v", err)
	}
	if err := c.Reschedule(attempt, 90); !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
}

func TestRegisterWalletRequiresOwnershipProof(t *testing.T) {
	ctx := context.Background()
	c, oracle := newTestCollector(t)

	ic := types.HashFromBytes([]byte("member-5"))
	if _, err := c.RegisterWallet(ctx, ic, types.ChainEthereum, types.EmptyHash, nil, 1); err != ErrOwnershipProof {
		t.Fatalf("expected ErrOwnershipProof, got %v", err)
	}

	w, err := c.RegisterWallet(ctx, ic, types.ChainEthereum, types.EmptyHash, ownershipProof(t, oracle, 5), 1)
	if err != nil {
		t.Fatalf("RegisterWallet: %v", err)
	}
	if !w.Active {
		t.Fatalf("expected registered wallet to be active")
	}
}

func TestRegisterWalletRejectsGarbageProof(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCollector(t)

	ic := types.HashFromBytes([]byte("member-5b"))
	if _, err := c.RegisterWallet(ctx, ic, types.ChainEthereum, types.EmptyHash, []byte("not-a-real-proof"), 1); err == nil {
		t.Fatal("expected an error for a proof that isn't a valid Groth16 proof")
	}
}

func TestSummaryAggregatesDecryptedAmounts(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCollector(t)
	ic := types.HashFromBytes([]byte("member-6"))

	for i := 0; i < 3; i++ {
		record := &types.EncryptedPaymentRecord{
			RecordID:         types.HashFromBytes([]byte{byte(i)}),
			CiphertextAmount: []byte{byte(i + 1)},
			AnonymityScore:   50,
		}
		if err := c.RecordPayment(ctx, ic, record); err != nil {
			t.Fatalf("RecordPayment: %v", err)
		}
	}

	decrypt := func(ct []byte) (uint64, error) {
		return uint64(ct[0]) * 100, nil
	}

	summary, err := c.Summary(ctx, ic, decrypt)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.TotalPayments != 3 {
		t.Fatalf("expected 3 payments, got %d", summary.TotalPayments)
	}
	if summary.TotalAmount != 600 {
		t.Fatalf("expected total amount 600, got %d", summary.TotalAmount)
	}
	if summary.AverageAnonymityScore != 50 {
		t.Fatalf("expected average score 50, got %f", summary.AverageAnonymityScore)
	}
}

func bigInt(v int64) *big.Int { return big.NewInt(v) }
