package risk

import (
	"context"
	"testing"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

func newTestEngine(threshold int) *Engine {
	oracle := zkp.NewOracle()
	nullifiers := zkp.NewNullifierSet(zkp.NewInMemoryNullifierStore(), nil)
	return NewEngine(NewInMemoryDefaultStore(), NewInMemoryLiquidationStore(), NewInMemoryPenaltyStore(), oracle, nullifiers, threshold)
}

func TestRiskAdjustedStakeScalesByTier(t *testing.T) {
	base := uint64(1000)
	if s := RiskAdjustedStake(0, base, 4, 0); s <= base {
		t.Fatalf("newcomer stake should exceed base, got %d", s)
	}
	if s := RiskAdjustedStake(900, base, 4, 0); s >= base {
		t.Fatalf("lunar stake should be below base, got %d", s)
	}
}

func TestFlagDefaultRejectsDoubleFlagSameRound(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(100)

	secret := []byte("member-secret")
	circleID := types.HashFromBytes([]byte("circle-1"))
	severity := types.HashFromBytes([]byte("severity"))

	if _, err := e.FlagDefault(ctx, secret, circleID, 1, severity, nil, 10); err != nil {
		t.Fatalf("first FlagDefault: %v", err)
	}
	if _, err := e.FlagDefault(ctx, secret, circleID, 1, severity, nil, 11); err != ErrDefaultAlreadyFlagged {
		t.Fatalf("expected ErrDefaultAlreadyFlagged, got %v", err)
	}
}

func TestFlagDefaultAllowsDifferentRoundsForSameMember(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(100)

	secret := []byte("member-secret")
	circleID := types.HashFromBytes([]byte("circle-2"))
	severity := types.HashFromBytes([]byte("severity"))

	if _, err := e.FlagDefault(ctx, secret, circleID, 1, severity, nil, 10); err != nil {
		t.Fatalf("round 1 FlagDefault: %v", err)
	}
	if _, err := e.FlagDefault(ctx, secret, circleID, 2, severity, nil, 11); err != nil {
		t.Fatalf("round 2 FlagDefault should succeed with a fresh nullifier, got %v", err)
	}
}

func TestDetectDefaultsRequiresInterventionAboveThreshold(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(20)

	circleID := types.HashFromBytes([]byte("circle-3"))
	severity := types.HashFromBytes([]byte("severity"))

	for i, secret := range [][]byte{[]byte("a"), []byte("b"), []byte("c")} {
		if _, err := e.FlagDefault(ctx, secret, circleID, 1, severity, nil, uint64(i)); err != nil {
			t.Fatalf("FlagDefault[%d]: %v", i, err)
		}
	}

	result, err := e.DetectDefaults(ctx, circleID, 1)
	if err != nil {
		t.Fatalf("DetectDefaults: %v", err)
	}
	if !result.RequiresIntervention {
		t.Fatalf("3 flags at severity 10 each should cross a threshold of 20")
	}
}

func TestPenalizeSetsAppealDeadlineAndAppealClosesAfterward(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(100)

	recordID := types.HashFromBytes([]byte("penalty-1"))
	target := types.HashFromBytes([]byte("target-nf"))

	record, err := e.Penalize(ctx, recordID, target, types.PenaltyStakeSlash, 5, nil, 100, 1000)
	if err != nil {
		t.Fatalf("Penalize: %v", err)
	}
	if record.AppealDeadline != 1100 {
		t.Fatalf("expected appeal deadline 1100, got %d", record.AppealDeadline)
	}

	if _, err := e.Appeal(ctx, recordID, 1050); err != nil {
		t.Fatalf("appeal within window: %v", err)
	}
	if _, err := e.Appeal(ctx, recordID, 1200); err != ErrAppealWindowClosed {
		t.Fatalf("expected ErrAppealWindowClosed, got %v", err)
	}
}
