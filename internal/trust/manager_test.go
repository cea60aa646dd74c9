package trust

import (
	"context"
	"testing"

	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

func TestTierOfContiguous(t *testing.T) {
	cases := []struct {
		score uint32
		want  types.Tier
	}{
		{0, types.TierNewcomer},
		{199, types.TierNewcomer},
		{200, types.TierApprentice},
		{549, types.TierBuilder},
		{899, types.TierSage},
		{1000, types.TierLunar},
	}

	for _, c := range cases {
		if got := TierOf(c.score); got != c.want {
			t.Errorf("TierOf(%d) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestApplyEventClampsAndPersists(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	m := NewManager(store, nil)

	ic := types.HashFromBytes([]byte("member-1"))

	rec, err := m.ApplyEvent(ctx, ic, types.EventPaymentDefault, 100)
	if err != nil {
		t.Fatalf("ApplyEvent: %v", err)
	}
	if rec.Score != MinScore {
		t.Fatalf("score should clamp at MinScore, got %d", rec.Score)
	}

	for i := 0; i < 200; i++ {
		rec, err = m.ApplyEvent(ctx, ic, types.EventPaymentSuccess, uint64(100+i))
		if err != nil {
			t.Fatalf("ApplyEvent: %v", err)
		}
	}
	if rec.Score != MaxScore {
		t.Fatalf("score should clamp at MaxScore, got %d", rec.Score)
	}
}

func TestMayGatesByTier(t *testing.T) {
	if !May(0, types.ActionJoinSmallCircle) {
		t.Fatal("newcomer should be able to join a small circle")
	}
	if May(0, types.ActionCreateLargeCircle) {
		t.Fatal("newcomer should not be able to create a large circle")
	}
	if !May(800, types.ActionCreateLargeCircle) {
		t.Fatal("sage-tier score should be able to create a large circle")
	}
}
