package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Tier assigns a reward multiplier, in basis points, to one plot address.
type Tier struct {
	Plot string `toml:"Plot"`
	Bps  uint64 `toml:"Bps"`
}

type Config struct {
	ListenAddress        string   `toml:"ListenAddress"`
	DataDir              string   `toml:"DataDir"`
	Env                  string   `toml:"Env"`
	PoolAddress          string   `toml:"PoolAddress"`
	FeeReceiver          string   `toml:"FeeReceiver"`
	CollateralTargetFiat string   `toml:"CollateralTargetFiat"`
	DailyRate            string   `toml:"DailyRate"`
	ClaimPeriodSeconds   int64    `toml:"ClaimPeriodSeconds"`
	MaxIDs               int      `toml:"MaxIDs"`
	Admins               []string `toml:"Admins"`
	Tiers                []Tier   `toml:"Tiers"`

	LogFile       string `toml:"LogFile"`
	LogMaxSizeMB  int    `toml:"LogMaxSizeMB"`
	LogMaxBackups int    `toml:"LogMaxBackups"`
	LogMaxAgeDays int    `toml:"LogMaxAgeDays"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	for _, undecoded := range meta.Undecoded() {
		return nil, fmt.Errorf("config file %s contains unknown key %s", path, undecoded.String())
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8080"
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "local"
	}
	if c.ClaimPeriodSeconds == 0 {
		c.ClaimPeriodSeconds = 86400
	}
	if c.MaxIDs == 0 {
		c.MaxIDs = 100
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 5
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 28
	}
}

// Validate checks the loaded file for values the service cannot start with.
func (c *Config) Validate() error {
	if _, err := parseAddress(c.PoolAddress); err != nil {
		return fmt.Errorf("PoolAddress: %w", err)
	}
	if strings.TrimSpace(c.FeeReceiver) != "" {
		if _, err := parseAddress(c.FeeReceiver); err != nil {
			return fmt.Errorf("FeeReceiver: %w", err)
		}
	}
	if c.ClaimPeriodSeconds <= 0 {
		return fmt.Errorf("ClaimPeriodSeconds must be positive, got %d", c.ClaimPeriodSeconds)
	}
	if c.MaxIDs <= 0 {
		return fmt.Errorf("MaxIDs must be positive, got %d", c.MaxIDs)
	}
	for i, admin := range c.Admins {
		if _, err := parseAddress(admin); err != nil {
			return fmt.Errorf("Admins[%d]: %w", i, err)
		}
	}
	for i, tier := range c.Tiers {
		if _, err := parseAddress(tier.Plot); err != nil {
			return fmt.Errorf("Tiers[%d].Plot: %w", i, err)
		}
		if tier.Bps == 0 || tier.Bps > 10000 {
			return fmt.Errorf("Tiers[%d].Bps must be within (0, 10000], got %d", i, tier.Bps)
		}
	}
	return nil
}

// Pool returns the decoded custody pool address.
func (c *Config) Pool() ([20]byte, error) {
	return parseAddress(c.PoolAddress)
}

// Fees returns the decoded exit-fee receiver. When unset, fees fall back to
// the pool address.
func (c *Config) Fees() ([20]byte, error) {
	if strings.TrimSpace(c.FeeReceiver) == "" {
		return c.Pool()
	}
	return parseAddress(c.FeeReceiver)
}

// AdminAddresses returns the decoded bootstrap admin set.
func (c *Config) AdminAddresses() ([][20]byte, error) {
	out := make([][20]byte, 0, len(c.Admins))
	for i, admin := range c.Admins {
		addr, err := parseAddress(admin)
		if err != nil {
			return nil, fmt.Errorf("Admins[%d]: %w", i, err)
		}
		out = append(out, addr)
	}
	return out, nil
}

// TierTable returns the configured plot multipliers keyed by decoded address.
func (c *Config) TierTable() (map[[20]byte]uint64, error) {
	table := make(map[[20]byte]uint64, len(c.Tiers))
	for i, tier := range c.Tiers {
		addr, err := parseAddress(tier.Plot)
		if err != nil {
			return nil, fmt.Errorf("Tiers[%d].Plot: %w", i, err)
		}
		table[addr] = tier.Bps
	}
	return table, nil
}

func parseAddress(value string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return out, fmt.Errorf("address is required")
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid hex address %q", value)
	}
	if len(raw) != 20 {
		return out, fmt.Errorf("address %q must be 20 bytes, got %d", value, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress:        ":8080",
		DataDir:              "./aurora-data",
		Env:                  "local",
		PoolAddress:          "0x" + strings.Repeat("00", 19) + "01",
		CollateralTargetFiat: "300000000000000000000",
	}
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
