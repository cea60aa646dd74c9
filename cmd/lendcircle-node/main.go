// Command lendcircle-node is the daemon entry point for a lendcircle-core
// node: it loads configuration, wires storage, the protocol façade, the
// gossip layer, and the REST/websocket API together, and serves until
// asked to shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kunal-drall/lendcircle-core/internal/config"
	"github.com/kunal-drall/lendcircle-core/internal/httpapi"
	"github.com/kunal-drall/lendcircle-core/internal/p2p"
	"github.com/kunal-drall/lendcircle-core/internal/protocol"
	"github.com/kunal-drall/lendcircle-core/internal/storage"
)

const (
	version = "0.1.0"
	banner  = `
  _                     _  __ _          _
 | |___ _ _  __| |__(_)_ _ __| |___
 | / -_) ' \/ _| / _| | '_/ _| / -_|
 |_\___|_||_\__,_\__|_|_| \__|_\___|

  lendcircle-node v%s
  Privacy-preserving rotating savings and credit
`
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (falls back to built-in defaults)")
	listenAddr := flag.String("http-addr", "", "override the HTTP API listen address")
	dataDir := flag.String("data-dir", "", "override the data directory")
	flag.Parse()

	fmt.Printf(banner, version)

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *listenAddr != "" {
		cfg.HTTP.ListenAddr = *listenAddr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	fmt.Println("Initializing lendcircle node...")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	fmt.Println("Connecting to database...")
	store, err := storage.NewPostgresStore(ctx, &storage.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()
	fmt.Println("Database connected.")

	governanceDelay, err := cfg.GovernanceExecutionDelay()
	if err != nil {
		return fmt.Errorf("invalid governance execution delay: %w", err)
	}

	fmt.Println("Compiling zero-knowledge circuits...")
	facade, err := protocol.NewFacade(ctx, protocol.Config{
		CircleStore:               store,
		MemberStore:               store,
		TrustStore:                store.TrustStore(),
		AuctionStore:              store,
		GovernanceStore:           store,
		PoolStore:                 store,
		TransferStore:             store,
		WalletStore:               store,
		HistoryStore:              store,
		DefaultStore:              store,
		LiquidationStore:          store,
		PenaltyStore:              store.PenaltyStore(),
		NullifierStore:            store,
		GovernanceExecutionDelay:  uint64(governanceDelay.Seconds()),
		RiskInterventionThreshold: cfg.Protocol.RiskInterventionThreshold,
		CircuitWitnessSize:        cfg.Circuits.WitnessSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize protocol façade: %w", err)
	}
	fmt.Println("Protocol façade ready.")

	fmt.Println("Starting P2P gossip layer...")
	node, err := p2p.NewNode(ctx, &p2p.Config{
		ListenAddrs:    cfg.Network.ListenAddrs,
		BootstrapPeers: cfg.Network.BootstrapPeers,
		MaxPeers:       cfg.Network.MaxPeers,
		EnableMDNS:     cfg.Network.EnableMDNS,
	})
	if err != nil {
		return fmt.Errorf("failed to start p2p node: %w", err)
	}
	defer node.Close()
	node.Start()
	fmt.Printf("P2P node listening. Peer ID: %s\n", node.ID())
	facade.SetBroadcaster(node)

	if cfg.HTTP.AuthToken != "" {
		os.Setenv("API_AUTH_TOKEN", cfg.HTTP.AuthToken)
	}

	hub := httpapi.NewHub()
	go hub.Run()

	router := httpapi.SetupRouter(facade, hub)
	server := &http.Server{Addr: cfg.HTTP.ListenAddr, Handler: router}
	go func() {
		fmt.Printf("HTTP API listening on %s\n", cfg.HTTP.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "HTTP server error: %v\n", err)
		}
	}()

	fmt.Println("lendcircle node started successfully!")
	fmt.Println("Press Ctrl+C to stop.")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "HTTP shutdown error: %v\n", err)
	}

	fmt.Println("Node stopped.")
	return nil
}
