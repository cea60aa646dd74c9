// Package config loads node and protocol configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level node configuration.
type Config struct {
	NodeID   string `yaml:"node_id"`
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	Network    NetworkConfig    `yaml:"network"`
	Database   DatabaseConfig   `yaml:"database"`
	HTTP       HTTPConfig       `yaml:"http"`
	Protocol   ProtocolConfig   `yaml:"protocol"`
	Circuits   CircuitsConfig   `yaml:"circuits"`
}

// NetworkConfig holds libp2p gossip-layer settings.
type NetworkConfig struct {
	ListenAddrs    []string `yaml:"listen_addrs"`
	BootstrapPeers []string `yaml:"bootstrap_peers"`
	MaxPeers       int      `yaml:"max_peers"`
	EnableMDNS     bool     `yaml:"enable_mdns"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

// HTTPConfig holds the REST/websocket surface's listen settings.
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	AuthToken  string `yaml:"auth_token,omitempty"`
}

// ProtocolConfig holds protocol-level timing and risk parameters.
type ProtocolConfig struct {
	GovernanceExecutionDelay  string `yaml:"governance_execution_delay"`
	RiskInterventionThreshold int    `yaml:"risk_intervention_threshold"`
}

// CircuitsConfig bounds the gnark circuit compile size.
type CircuitsConfig struct {
	WitnessSize int `yaml:"witness_size"`
}

// DefaultConfig returns sane defaults for a single-operator local node.
func DefaultConfig() *Config {
	return &Config{
		NodeID:   "",
		DataDir:  "./data",
		LogLevel: "info",
		Network: NetworkConfig{
			ListenAddrs: []string{"/ip4/0.0.0.0/tcp/9100"},
			MaxPeers:    50,
			EnableMDNS:  true,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "lendcircle",
			Name:     "lendcircle",
			SSLMode:  "disable",
			MaxConns: 20,
		},
		HTTP: HTTPConfig{
			ListenAddr: "127.0.0.1:8080",
		},
		Protocol: ProtocolConfig{
			GovernanceExecutionDelay:  "24h",
			RiskInterventionThreshold: 20,
		},
		Circuits: CircuitsConfig{
			WitnessSize: 64,
		},
	}
}

// Load reads and parses a YAML configuration file, falling back to
// DefaultConfig for anything left unset in the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if len(c.Network.ListenAddrs) == 0 {
		return fmt.Errorf("network.listen_addrs must name at least one multiaddr")
	}
	if _, err := c.GovernanceExecutionDelay(); err != nil {
		return fmt.Errorf("protocol.governance_execution_delay: %w", err)
	}
	return nil
}

// GovernanceExecutionDelay parses the configured timelock duration.
func (c *Config) GovernanceExecutionDelay() (time.Duration, error) {
	if c.Protocol.GovernanceExecutionDelay == "" {
		return 24 * time.Hour, nil
	}
	return time.ParseDuration(c.Protocol.GovernanceExecutionDelay)
}
