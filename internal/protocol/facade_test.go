package protocol

import (
	"context"
	"testing"

	"github.com/kunal-drall/lendcircle-core/internal/auction"
	"github.com/kunal-drall/lendcircle-core/internal/circle"
	"github.com/kunal-drall/lendcircle-core/internal/governance"
	"github.com/kunal-drall/lendcircle-core/internal/membership"
	"github.com/kunal-drall/lendcircle-core/internal/payments"
	"github.com/kunal-drall/lendcircle-core/internal/privacy"
	"github.com/kunal-drall/lendcircle-core/internal/risk"
	"github.com/kunal-drall/lendcircle-core/internal/trust"
	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	return newTestFacadeWithTrustStore(t, trust.NewInMemoryStore())
}

func newTestFacadeWithTrustStore(t *testing.T, trustStore trust.Store) *Facade {
	t.Helper()
	f, err := NewFacade(context.Background(), Config{
		CircleStore:               circle.NewInMemoryStore(),
		MemberStore:               membership.NewInMemoryStore(),
		TrustStore:                trustStore,
		AuctionStore:              auction.NewInMemoryStore(),
		GovernanceStore:           governance.NewInMemoryStore(),
		PoolStore:                 privacy.NewInMemoryPoolStore(),
		TransferStore:             privacy.NewInMemoryTransferStore(),
		WalletStore:               payments.NewInMemoryWalletStore(),
		HistoryStore:              payments.NewInMemoryHistoryStore(),
		DefaultStore:              risk.NewInMemoryDefaultStore(),
		LiquidationStore:          risk.NewInMemoryLiquidationStore(),
		PenaltyStore:              risk.NewInMemoryPenaltyStore(),
		NullifierStore:            zkp.NewInMemoryNullifierStore(),
		GovernanceExecutionDelay:  3600,
		RiskInterventionThreshold: 20,
	})
	if err != nil {
		t.Fatalf("NewFacade: %v", err)
	}
	return f
}

func TestCreateCircleTranslatesNoError(t *testing.T) {
	trustStore := trust.NewInMemoryStore()
	f := newTestFacadeWithTrustStore(t, trustStore)
	ctx := context.Background()

	creator := types.HashFromBytes([]byte("creator-a"))
	if _, err := f.Members.Register(ctx, creator, 0, 0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := trustStore.SaveScore(ctx, &trust.ScoreRecord{IC: creator, Score: 900}); err != nil {
		t.Fatalf("SaveScore: %v", err)
	}

	circleID := types.HashFromBytes([]byte("circle-a"))
	params := types.CircleParams{MaxMembers: 5, MonthlyAmount: 100, TotalRounds: 5, StakeRequirement: 2_000_000_000_000_000_000}

	c, err := f.CreateCircle(ctx, circleID, creator, params, 0)
	if err != nil {
		t.Fatalf("CreateCircle: %v", err)
	}
	if !c.Active {
		t.Fatalf("expected new circle to be active")
	}
}

func TestGetCircleNotFoundTranslatesToNotFound(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	_, err := f.GetCircle(ctx, types.HashFromBytes([]byte("missing")))
	if err == nil {
		t.Fatal("expected error")
	}
	pe, ok := err.(*ProtocolError)
	if !ok {
		t.Fatalf("expected *ProtocolError, got %T", err)
	}
	if pe.Kind != KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", pe.Kind)
	}
}

func TestJoinCircleBelowStakeTranslatesToInsufficientBalance(t *testing.T) {
	trustStore := trust.NewInMemoryStore()
	f := newTestFacadeWithTrustStore(t, trustStore)
	ctx := context.Background()

	creator := types.HashFromBytes([]byte("creator-b"))
	if _, err := f.Members.Register(ctx, creator, 0, 0); err != nil {
		t.Fatalf("Register creator: %v", err)
	}
	if err := trustStore.SaveScore(ctx, &trust.ScoreRecord{IC: creator, Score: 800}); err != nil {
		t.Fatalf("SaveScore creator: %v", err)
	}

	circleID := types.HashFromBytes([]byte("circle-b"))
	params := types.CircleParams{MaxMembers: 5, MonthlyAmount: 100, TotalRounds: 5, StakeRequirement: 1_000_000_000_000_000_000}
	if _, err := f.CreateCircle(ctx, circleID, creator, params, 0); err != nil {
		t.Fatalf("CreateCircle: %v", err)
	}

	ic := types.HashFromBytes([]byte("member-1"))
	if _, err := f.Members.Register(ctx, ic, 0, 0); err != nil {
		t.Fatalf("Register member: %v", err)
	}
	if err := trustStore.SaveScore(ctx, &trust.ScoreRecord{IC: ic, Score: 200}); err != nil {
		t.Fatalf("SaveScore member: %v", err)
	}

	_, err := f.JoinCircle(ctx, circleID, ic, 100)
	if err == nil {
		t.Fatal("expected error")
	}
	pe := err.(*ProtocolError)
	if pe.Kind != KindInsufficientBalance {
		t.Fatalf("expected KindInsufficientBalance, got %v", pe.Kind)
	}
}

func TestBridgeUnsupportedChainTranslatesToUnsupportedChain(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	_, err := f.InitiateBridgeTransfer(ctx, types.HashFromBytes([]byte("t1")), types.ChainID("nowhere"), types.ChainMidnight, 100, types.EmptyHash, types.RouteFastest, 0)
	if err == nil {
		t.Fatal("expected error")
	}
	pe := err.(*ProtocolError)
	if pe.Kind != KindUnsupportedChain {
		t.Fatalf("expected KindUnsupportedChain, got %v", pe.Kind)
	}
}

func TestBridgeInitiateFindsSeededRoute(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	transfer, err := f.InitiateBridgeTransfer(ctx, types.HashFromBytes([]byte("t2")), types.ChainMidnight, types.ChainEthereum, 50, types.EmptyHash, types.RouteFastest, 0)
	if err != nil {
		t.Fatalf("InitiateBridgeTransfer: %v", err)
	}
	if transfer.Amount != 10 {
		t.Fatalf("expected amount snapped to 10, got %d", transfer.Amount)
	}
	if transfer.Status != types.TransferPending {
		t.Fatalf("expected TransferPending, got %v", transfer.Status)
	}
}

func TestRegisterWalletRequiresProofTranslatesToInvalidProof(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()

	ic := types.HashFromBytes([]byte("member-2"))
	_, err := f.RegisterWallet(ctx, ic, types.ChainEthereum, types.EmptyHash, nil, 0)
	if err == nil {
		t.Fatal("expected error")
	}
	pe := err.(*ProtocolError)
	if pe.Kind != KindInvalidProof {
		t.Fatalf("expected KindInvalidProof, got %v", pe.Kind)
	}
}
