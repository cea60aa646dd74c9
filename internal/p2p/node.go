// Package p2p implements the libp2p-based gossip layer connecting circle
// participants: sealed bid commitments, anonymous vote commitments,
// mixer batch announcements, and cross-chain bridge transfer events.
package p2p

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	"github.com/multiformats/go-multiaddr"
)

// Protocol IDs and gossip topics.
const (
	ProtocolID          = "/lendcircle/1.0.0"
	BidTopic            = "lendcircle/bids"
	VoteTopic           = "lendcircle/votes"
	MixBatchTopic       = "lendcircle/mix-batches"
	BridgeTransferTopic = "lendcircle/bridge-transfers"

	rendezvous = "lendcircle-network"
)

// Node represents a lending-circle P2P network node.
type Node struct {
	mu sync.RWMutex

	host      host.Host
	dht       *dht.IpfsDHT
	pubsub    *pubsub.PubSub
	discovery *drouting.RoutingDiscovery

	// Topics
	bidTopic      *pubsub.Topic
	voteTopic     *pubsub.Topic
	mixTopic      *pubsub.Topic
	transferTopic *pubsub.Topic

	// Subscriptions
	bidSub      *pubsub.Subscription
	voteSub     *pubsub.Subscription
	mixSub      *pubsub.Subscription
	transferSub *pubsub.Subscription

	// Handlers
	bidHandler      MessageHandler
	voteHandler     MessageHandler
	mixHandler      MessageHandler
	transferHandler MessageHandler

	// Peer management
	peers    map[peer.ID]*PeerInfo
	maxPeers int

	ctx    context.Context
	cancel context.CancelFunc
}

// PeerInfo holds information about a connected peer.
type PeerInfo struct {
	ID          peer.ID
	Addrs       []multiaddr.Multiaddr
	ConnectedAt time.Time
	LastSeen    time.Time
	Version     string
}

// MessageHandler defines the interface for handling incoming gossip messages.
type MessageHandler func(ctx context.Context, msg *pubsub.Message) error

// Config holds P2P node configuration.
type Config struct {
	ListenAddrs    []string
	BootstrapPeers []string
	PrivateKey     crypto.PrivKey
	MaxPeers       int
	EnableMDNS     bool
}

// DefaultConfig returns default P2P configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddrs: []string{"/ip4/0.0.0.0/tcp/9100"},
		MaxPeers:    50,
		EnableMDNS:  true,
	}
}

// NewNode creates a new P2P node.
func NewNode(ctx context.Context, cfg *Config) (*Node, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	nodeCtx, cancel := context.WithCancel(ctx)

	privKey := cfg.PrivateKey
	if privKey == nil {
		var err error
		privKey, _, err = crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}
	}

	listenAddrs := make([]multiaddr.Multiaddr, len(cfg.ListenAddrs))
	for i, addr := range cfg.ListenAddrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("invalid listen address: %w", err)
		}
		listenAddrs[i] = ma
	}

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrs(listenAddrs...),
		libp2p.EnableNATService(),
		libp2p.EnableRelay(),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create host: %w", err)
	}

	kadDHT, err := dht.New(nodeCtx, h, dht.Mode(dht.ModeAuto))
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("failed to create DHT: %w", err)
	}

	ps, err := pubsub.NewGossipSub(nodeCtx, h)
	if err != nil {
		kadDHT.Close()
		h.Close()
		cancel()
		return nil, fmt.Errorf("failed to create pubsub: %w", err)
	}

	node := &Node{
		host:     h,
		dht:      kadDHT,
		pubsub:   ps,
		peers:    make(map[peer.ID]*PeerInfo),
		maxPeers: cfg.MaxPeers,
		ctx:      nodeCtx,
		cancel:   cancel,
	}

	h.Network().Notify(&network.NotifyBundle{
		ConnectedF:    node.onPeerConnected,
		DisconnectedF: node.onPeerDisconnected,
	})

	if err := kadDHT.Bootstrap(nodeCtx); err != nil {
		node.Close()
		return nil, fmt.Errorf("failed to bootstrap DHT: %w", err)
	}

	for _, peerAddr := range cfg.BootstrapPeers {
		if err := node.connectToPeer(peerAddr); err != nil {
			fmt.Printf("Warning: failed to connect to bootstrap peer %s: %v\n", peerAddr, err)
		}
	}

	if cfg.EnableMDNS {
		if err := node.setupMDNS(); err != nil {
			fmt.Printf("Warning: mDNS setup failed: %v\n", err)
		}
	}

	node.discovery = drouting.NewRoutingDiscovery(kadDHT)

	if err := node.joinTopics(); err != nil {
		node.Close()
		return nil, fmt.Errorf("failed to join topics: %w", err)
	}

	return node, nil
}

// joinTopics subscribes to every gossip topic.
func (n *Node) joinTopics() error {
	var err error

	n.bidTopic, err = n.pubsub.Join(BidTopic)
	if err != nil {
		return fmt.Errorf("failed to join bid topic: %w", err)
	}
	n.bidSub, err = n.bidTopic.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to bids: %w", err)
	}

	n.voteTopic, err = n.pubsub.Join(VoteTopic)
	if err != nil {
		return fmt.Errorf("failed to join vote topic: %w", err)
	}
	n.voteSub, err = n.voteTopic.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to votes: %w", err)
	}

	n.mixTopic, err = n.pubsub.Join(MixBatchTopic)
	if err != nil {
		return fmt.Errorf("failed to join mix-batch topic: %w", err)
	}
	n.mixSub, err = n.mixTopic.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to mix batches: %w", err)
	}

	n.transferTopic, err = n.pubsub.Join(BridgeTransferTopic)
	if err != nil {
		return fmt.Errorf("failed to join bridge-transfer topic: %w", err)
	}
	n.transferSub, err = n.transferTopic.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to bridge transfers: %w", err)
	}

	return nil
}

// Start begins processing gossip messages.
func (n *Node) Start() {
	go n.processMessages(n.bidSub, n.bidHandler)
	go n.processMessages(n.voteSub, n.voteHandler)
	go n.processMessages(n.mixSub, n.mixHandler)
	go n.processMessages(n.transferSub, n.transferHandler)
	go n.maintainPeers()
}

// processMessages handles incoming messages on a subscription.
func (n *Node) processMessages(sub *pubsub.Subscription, handler MessageHandler) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			continue
		}

		if msg.ReceivedFrom == n.host.ID() {
			continue
		}

		n.mu.Lock()
		if p, exists := n.peers[msg.ReceivedFrom]; exists {
			p.LastSeen = time.Now()
		}
		n.mu.Unlock()

		if handler != nil {
			if err := handler(n.ctx, msg); err != nil {
				fmt.Printf("Message handler error: %v\n", err)
			}
		}
	}
}

// maintainPeers periodically maintains peer connections.
func (n *Node) maintainPeers() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.discoverPeers()
			n.pruneStale()
		}
	}
}

// discoverPeers finds new peers via DHT.
func (n *Node) discoverPeers() {
	n.mu.RLock()
	currentPeers := len(n.peers)
	n.mu.RUnlock()

	if currentPeers >= n.maxPeers {
		return
	}

	ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
	defer cancel()

	peerChan, err := n.discovery.FindPeers(ctx, rendezvous)
	if err != nil {
		return
	}

	for p := range peerChan {
		if p.ID == n.host.ID() {
			continue
		}
		if len(p.Addrs) == 0 {
			continue
		}

		n.mu.RLock()
		_, exists := n.peers[p.ID]
		n.mu.RUnlock()

		if !exists && len(n.peers) < n.maxPeers {
			if err := n.host.Connect(ctx, p); err == nil {
				n.addPeer(p.ID, p.Addrs)
			}
		}
	}
}

// pruneStale removes stale peer connections.
func (n *Node) pruneStale() {
	n.mu.Lock()
	defer n.mu.Unlock()

	staleThreshold := time.Now().Add(-5 * time.Minute)
	for id, p := range n.peers {
		if p.LastSeen.Before(staleThreshold) {
			n.host.Network().ClosePeer(id)
			delete(n.peers, id)
		}
	}
}

// SetBidHandler sets the handler for incoming sealed-bid commitments.
func (n *Node) SetBidHandler(handler MessageHandler) {
	n.bidHandler = handler
}

// SetVoteHandler sets the handler for incoming anonymous vote commitments.
func (n *Node) SetVoteHandler(handler MessageHandler) {
	n.voteHandler = handler
}

// SetMixBatchHandler sets the handler for incoming mix-batch announcements.
func (n *Node) SetMixBatchHandler(handler MessageHandler) {
	n.mixHandler = handler
}

// SetBridgeTransferHandler sets the handler for incoming bridge-transfer events.
func (n *Node) SetBridgeTransferHandler(handler MessageHandler) {
	n.transferHandler = handler
}

// BroadcastBid gossips a sealed-bid commitment to the network.
func (n *Node) BroadcastBid(data []byte) error {
	return n.bidTopic.Publish(n.ctx, data)
}

// BroadcastVote gossips an anonymous vote commitment to the network.
func (n *Node) BroadcastVote(data []byte) error {
	return n.voteTopic.Publish(n.ctx, data)
}

// BroadcastMixBatch gossips a mixer batch announcement to the network.
func (n *Node) BroadcastMixBatch(data []byte) error {
	return n.mixTopic.Publish(n.ctx, data)
}

// BroadcastBridgeTransfer gossips a cross-chain bridge transfer event.
func (n *Node) BroadcastBridgeTransfer(data []byte) error {
	return n.transferTopic.Publish(n.ctx, data)
}

// connectToPeer connects to a peer given its multiaddress.
func (n *Node) connectToPeer(addr string) error {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return err
	}

	peerInfo, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
	defer cancel()

	if err := n.host.Connect(ctx, *peerInfo); err != nil {
		return err
	}

	n.addPeer(peerInfo.ID, peerInfo.Addrs)
	return nil
}

// addPeer adds a peer to the peer list.
func (n *Node) addPeer(id peer.ID, addrs []multiaddr.Multiaddr) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.peers[id] = &PeerInfo{
		ID:          id,
		Addrs:       addrs,
		ConnectedAt: time.Now(),
		LastSeen:    time.Now(),
	}
}

// onPeerConnected handles new peer connections.
func (n *Node) onPeerConnected(_ network.Network, conn network.Conn) {
	id := conn.RemotePeer()
	n.addPeer(id, []multiaddr.Multiaddr{conn.RemoteMultiaddr()})
}

// onPeerDisconnected handles peer disconnections.
func (n *Node) onPeerDisconnected(_ network.Network, conn network.Conn) {
	id := conn.RemotePeer()
	n.mu.Lock()
	delete(n.peers, id)
	n.mu.Unlock()
}

// setupMDNS sets up mDNS for local network peer discovery.
func (n *Node) setupMDNS() error {
	service := mdns.NewMdnsService(n.host, "lendcircle-local", &mdnsNotifee{node: n})
	return service.Start()
}

type mdnsNotifee struct {
	node *Node
}

func (m *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == m.node.host.ID() {
		return
	}
	ctx, cancel := context.WithTimeout(m.node.ctx, 5*time.Second)
	defer cancel()
	m.node.host.Connect(ctx, pi)
}

// ID returns the node's peer ID.
func (n *Node) ID() peer.ID {
	return n.host.ID()
}

// Addrs returns the node's listen addresses.
func (n *Node) Addrs() []multiaddr.Multiaddr {
	return n.host.Addrs()
}

// PeerCount returns the number of connected peers.
func (n *Node) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

// Peers returns information about connected peers.
func (n *Node) Peers() []*PeerInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()

	peers := make([]*PeerInfo, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	return peers
}

// Close shuts down the node.
func (n *Node) Close() error {
	n.cancel()

	if n.bidSub != nil {
		n.bidSub.Cancel()
	}
	if n.voteSub != nil {
		n.voteSub.Cancel()
	}
	if n.mixSub != nil {
		n.mixSub.Cancel()
	}
	if n.transferSub != nil {
		n.transferSub.Cancel()
	}

	if n.dht != nil {
		n.dht.Close()
	}

	return n.host.Close()
}

// RegisterProtocol registers a custom protocol handler.
func (n *Node) RegisterProtocol(protoID protocol.ID, handler network.StreamHandler) {
	n.host.SetStreamHandler(protoID, handler)
}
