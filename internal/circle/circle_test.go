package circle

import (
	"context"
	"testing"

	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

func TestJoinRespectsCapAndStake(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewInMemoryStore())

	circleID := types.HashFromBytes([]byte("circle-1"))
	params := types.CircleParams{MaxMembers: 1, MonthlyAmount: 100, TotalRounds: 3, StakeRequirement: 50}

	if _, err := m.Create(ctx, circleID, params, 1000); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := m.Join(ctx, circleID, 10, 50, types.EmptyHash); err != ErrBelowStake {
		t.Fatalf("expected ErrBelowStake, got %v", err)
	}

	if _, err := m.Join(ctx, circleID, 50, 50, types.EmptyHash); err != nil {
		t.Fatalf("Join: %v", err)
	}

	if _, err := m.Join(ctx, circleID, 50, 50, types.EmptyHash); err != ErrCircleFull {
		t.Fatalf("expected ErrCircleFull, got %v", err)
	}
}

func TestAdvanceRoundDeactivatesAtEnd(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewInMemoryStore())

	circleID := types.HashFromBytes([]byte("circle-2"))
	params := types.CircleParams{MaxMembers: 4, MonthlyAmount: 100, TotalRounds: 2, StakeRequirement: 0}
	if _, err := m.Create(ctx, circleID, params, 1000); err != nil {
		t.Fatalf("Create: %v", err)
	}

	c, err := m.AdvanceRound(ctx, circleID)
	if err != nil {
		t.Fatalf("AdvanceRound: %v", err)
	}
	if !c.Active {
		t.Fatal("circle should still be active after round 1 of 2")
	}

	c, err = m.AdvanceRound(ctx, circleID)
	if err != nil {
		t.Fatalf("AdvanceRound: %v", err)
	}
	if c.Active {
		t.Fatal("circle should be inactive after its final round")
	}

	if _, err := m.AdvanceRound(ctx, circleID); err != ErrCircleInactive {
		t.Fatalf("expected ErrCircleInactive, got %v", err)
	}
}

func TestInsuranceDrawCannotExceedPool(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewInMemoryStore())

	circleID := types.HashFromBytes([]byte("circle-3"))
	params := types.CircleParams{MaxMembers: 4, MonthlyAmount: 100, TotalRounds: 2}
	if _, err := m.Create(ctx, circleID, params, 1000); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := m.ContributeToInsurance(ctx, circleID, 30); err != nil {
		t.Fatalf("ContributeToInsurance: %v", err)
	}

	if _, err := m.DrawInsurance(ctx, circleID, 40); err == nil {
		t.Fatal("expected draw exceeding pool to fail")
	}

	if _, err := m.DrawInsurance(ctx, circleID, 30); err != nil {
		t.Fatalf("DrawInsurance: %v", err)
	}
}
