package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
data_dir: /var/lib/lendcircle
network:
  listen_addrs:
    - /ip4/0.0.0.0/tcp/9200
  max_peers: 10
protocol:
  governance_execution_delay: 48h
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/lendcircle" {
		t.Fatalf("expected overridden data_dir, got %q", cfg.DataDir)
	}
	if cfg.Network.MaxPeers != 10 {
		t.Fatalf("expected overridden max_peers, got %d", cfg.Network.MaxPeers)
	}
	if cfg.HTTP.ListenAddr != DefaultConfig().HTTP.ListenAddr {
		t.Fatalf("expected default http listen_addr to be retained")
	}

	delay, err := cfg.GovernanceExecutionDelay()
	if err != nil {
		t.Fatalf("GovernanceExecutionDelay: %v", err)
	}
	if delay.Hours() != 48 {
		t.Fatalf("expected 48h delay, got %v", delay)
	}
}

func TestValidateRejectsEmptyDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty data_dir")
	}
}
