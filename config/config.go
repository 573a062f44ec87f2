package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const defaultSlotDurationMillis = 400

// Config is the daemon configuration loaded from TOML.
type Config struct {
	RPCAddress         string            `toml:"RPCAddress"`
	DataDir            string            `toml:"DataDir"`
	NetworkName        string            `toml:"NetworkName"`
	Env                string            `toml:"Env"`
	AuthorityAddress   string            `toml:"AuthorityAddress"`
	SlotDurationMillis uint64            `toml:"SlotDurationMillis"`
	PausedModules      []string          `toml:"PausedModules"`
	GenesisAlloc       map[string]string `toml:"genesis"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "flashvault-local"
	}
	if c.SlotDurationMillis == 0 {
		c.SlotDurationMillis = defaultSlotDurationMillis
	}
	if c.PausedModules == nil {
		c.PausedModules = []string{}
	}
	if c.GenesisAlloc == nil {
		c.GenesisAlloc = map[string]string{}
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if c.SlotDurationMillis == 0 {
		return fmt.Errorf("config: SlotDurationMillis must be positive")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
