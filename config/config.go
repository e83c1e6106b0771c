package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress     string  `toml:"RPCAddress"`
	DataDir        string  `toml:"DataDir"`
	JournalPath    string  `toml:"JournalPath"`
	NetworkName    string  `toml:"NetworkName"`
	RegistryURL    string  `toml:"RegistryURL"`
	PaymentsURL    string  `toml:"PaymentsURL"`
	RateLimitPerIP float64 `toml:"RateLimitPerIP"`
	RateLimitBurst int     `toml:"RateLimitBurst"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s contains unknown key %q", path, undecoded[0].String())
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for obvious mistakes before the daemon
// starts wiring collaborators to it.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must not be empty")
	}
	if c.RateLimitPerIP < 0 {
		return fmt.Errorf("RateLimitPerIP must be non-negative")
	}
	if c.RateLimitBurst < 0 {
		return fmt.Errorf("RateLimitBurst must be non-negative")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "nftmarket-local"
	}
	if strings.TrimSpace(cfg.JournalPath) == "" && strings.TrimSpace(cfg.DataDir) != "" {
		cfg.JournalPath = filepath.Join(cfg.DataDir, "events.journal")
	}
	if cfg.RateLimitPerIP == 0 {
		cfg.RateLimitPerIP = 60
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 10
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  "127.0.0.1:8645",
		DataDir:     "./marketdata",
		NetworkName: "nftmarket-local",
	}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
