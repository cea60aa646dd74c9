package p2p

import (
	"context"
	"testing"
	"time"

	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

func TestNewNodeStartsAndStops(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	node, err := NewNode(ctx, &Config{
		ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"},
		MaxPeers:    10,
		EnableMDNS:  false,
	})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	defer node.Close()

	if node.ID().String() == "" {
		t.Fatal("expected a non-empty peer ID")
	}
	if node.PeerCount() != 0 {
		t.Fatalf("expected zero peers on a freshly started node, got %d", node.PeerCount())
	}

	node.Start()

	bid := EncodeBid(&types.Bid{
		Commitment: types.HashFromBytes([]byte("c")),
		Nullifier:  types.HashFromBytes([]byte("n")),
		CircleID:   types.HashFromBytes([]byte("circle")),
		Round:      1,
		Timestamp:  1,
	})
	if err := node.BroadcastBid(bid); err != nil {
		t.Fatalf("BroadcastBid: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if len(cfg.ListenAddrs) == 0 {
		t.Fatal("expected a default listen address")
	}
	if cfg.MaxPeers <= 0 {
		t.Fatal("expected a positive default max peer count")
	}
}
