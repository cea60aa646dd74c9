package privacy

import (
	"context"
	"testing"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

func TestSnapDenominationRoundsDown(t *testing.T) {
	cases := map[uint64]uint64{
		0:    0,
		1:    1,
		9:    1,
		10:   10,
		999:  100,
		1000: 1000,
		5000: 1000,
	}
	for in, want := range cases {
		if got := SnapDenomination(in); got != want {
			t.Fatalf("SnapDenomination(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestDepositRejectsWrongDenomination(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryPoolStore()
	oracle := zkp.NewOracle()
	nullifiers := zkp.NewNullifierSet(zkp.NewInMemoryNullifierStore(), nil)
	pm := NewPoolManager(store, oracle, nullifiers)

	poolID := types.HashFromBytes([]byte("pool-1"))
	if _, err := pm.OpenPool(ctx, poolID, types.ChainMidnight, 100); err != nil {
		t.Fatalf("OpenPool: %v", err)
	}

	commitment := types.HashFromBytes([]byte("deposit-1"))
	if _, err := pm.Deposit(ctx, poolID, 99, commitment); err != ErrBadDenomination {
		t.Fatalf("expected ErrBadDenomination, got %v", err)
	}
	if _, err := pm.Deposit(ctx, poolID, 100, commitment); err != nil {
		t.Fatalf("Deposit with matching denomination: %v", err)
	}
}

func TestWithdrawRejectsSpentNullifier(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryPoolStore()
	oracle := zkp.NewOracle()
	nullifiers := zkp.NewNullifierSet(zkp.NewInMemoryNullifierStore(), nil)
	pm := NewPoolManager(store, oracle, nullifiers)

	poolID := types.HashFromBytes([]byte("pool-2"))
	if _, err := pm.OpenPool(ctx, poolID, types.ChainMidnight, 10); err != nil {
		t.Fatalf("OpenPool: %v", err)
	}

	nf := types.HashFromBytes([]byte("withdraw-nf"))
	if err := nullifiers.MarkSpent(ctx, nf, poolID, 1); err != nil {
		t.Fatalf("MarkSpent: %v", err)
	}

	if err := pm.Withdraw(ctx, poolID, nf, nil, 2); err != ErrNullifierSpent {
		t.Fatalf("expected ErrNullifierSpent, got %v", err)
	}
}

func TestMixerRejectsUndersizedBatch(t *testing.T) {
	ctx := context.Background()
	oracle := zkp.NewOracle()
	mx := NewMixer(oracle)

	mx.Enqueue(types.HashFromBytes([]byte("c1")))
	mx.Enqueue(types.HashFromBytes([]byte("c2")))

	if mx.ReadyToMix() {
		t.Fatalf("mixer should not be ready with only 2 pending commitments")
	}

	_, err := mx.ExecuteMix(ctx, types.HashFromBytes([]byte("mix-1")), nil, nil, nil, 100)
	if err != ErrBatchTooSmall {
		t.Fatalf("expected ErrBatchTooSmall, got %v", err)
	}
}

func TestPrivacyScoreScalesWithSetSize(t *testing.T) {
	if PrivacyScore(0) != 0 {
		t.Fatalf("PrivacyScore(0) should be 0")
	}
	if PrivacyScore(MaxMixSize) != 100 {
		t.Fatalf("PrivacyScore(MaxMixSize) should be 100")
	}
	if s := PrivacyScore(MinMixSize); s <= 0 || s >= 100 {
		t.Fatalf("PrivacyScore(MinMixSize) should be strictly between 0 and 100, got %d", s)
	}
}

func TestRouterFindsCheapestWithinHopLimit(t *testing.T) {
	ctx := context.Background()
	r := NewRouter()

	r.AddEdge(types.ChainMidnight, types.RouteEdge{To: types.ChainEthereum, DelaySeconds: 60, FeeBP: 50, PrivacyBonus: 5})
	r.AddEdge(types.ChainMidnight, types.RouteEdge{To: types.ChainPolygon, DelaySeconds: 10, FeeBP: 5, PrivacyBonus: 1})
	r.AddEdge(types.ChainPolygon, types.RouteEdge{To: types.ChainEthereum, DelaySeconds: 20, FeeBP: 5, PrivacyBonus: 1})

	route, err := r.FindRoute(ctx, types.ChainMidnight, types.ChainEthereum, types.RouteCheapest)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if len(route.Hops) != 2 || route.Hops[0] != types.ChainPolygon || route.Hops[1] != types.ChainEthereum {
		t.Fatalf("expected route via polygon, got %+v", route.Hops)
	}
	if route.EstimatedFee != 10 {
		t.Fatalf("expected cumulative fee 10, got %d", route.EstimatedFee)
	}
}

func TestRouterRejectsUnsupportedChain(t *testing.T) {
	ctx := context.Background()
	r := NewRouter()
	_, err := r.FindRoute(ctx, types.ChainID("not-a-chain"), types.ChainEthereum, types.RouteFastest)
	if err != ErrUnsupportedChain {
		t.Fatalf("expected ErrUnsupportedChain, got %v", err)
	}
}

func TestBridgeInitiateSnapsAmountAndComputesRoute(t *testing.T) {
	ctx := context.Background()
	poolStore := NewInMemoryPoolStore()
	transferStore := NewInMemoryTransferStore()
	oracle := zkp.NewOracle()
	nullifiers := zkp.NewNullifierSet(zkp.NewInMemoryNullifierStore(), nil)
	pools := NewPoolManager(poolStore, oracle, nullifiers)
	mixer := NewMixer(oracle)
	router := NewRouter()
	router.AddEdge(types.ChainMidnight, types.RouteEdge{To: types.ChainEthereum, DelaySeconds: 30, FeeBP: 20, PrivacyBonus: 3})

	bridge := NewBridge(transferStore, pools, mixer, router, oracle)

	transferID := types.HashFromBytes([]byte("transfer-1"))
	recipient := types.HashFromBytes([]byte("recipient"))

	transfer, err := bridge.Initiate(ctx, transferID, types.ChainMidnight, types.ChainEthereum, 555, recipient, types.RouteFastest, 100)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if transfer.Amount != 100 {
		t.Fatalf("expected amount snapped to 100, got %d", transfer.Amount)
	}
	if transfer.Status != types.TransferPending {
		t.Fatalf("expected TransferPending, got %v", transfer.Status)
	}
}
