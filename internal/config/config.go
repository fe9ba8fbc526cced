// Package config manages user preferences stored in
// ~/.config/lakegate/config.toml. Config stores only local preferences and
// the last-created server ID; AWS is the source of truth for all resource
// state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds user preferences from ~/.config/lakegate/config.toml.
// All fields use flat snake_case TOML keys.
type Config struct {
	Region              string `mapstructure:"region"                toml:"region"`
	ServerID            string `mapstructure:"server_id"             toml:"server_id"`
	SecurityPolicy      string `mapstructure:"security_policy"       toml:"security_policy"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds" toml:"poll_interval_seconds"`
	PollTimeoutMinutes  int    `mapstructure:"poll_timeout_minutes"  toml:"poll_timeout_minutes"`
}

// validator is a function that validates a string value for a config key.
type validator func(value string) error

// validators maps config keys to their validation functions.
var validators = map[string]validator{
	"region":                validateRegion,
	"server_id":             validateServerID,
	"security_policy":       validateSecurityPolicy,
	"poll_interval_seconds": validatePollIntervalSeconds,
	"poll_timeout_minutes":  validatePollTimeoutMinutes,
}

// ValidKeys returns the sorted list of valid config key names.
func ValidKeys() []string {
	keys := make([]string, 0, len(validators))
	for k := range validators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultConfigDir returns the default config directory path
// (~/.config/lakegate). If LAKEGATE_CONFIG_DIR is set, that value is used
// instead.
func DefaultConfigDir() string {
	if dir := os.Getenv("LAKEGATE_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "lakegate")
	}
	return filepath.Join(home, ".config", "lakegate")
}

// Load reads the config file from configDir/config.toml and returns a Config
// with defaults applied for any missing keys. If the file does not exist,
// all defaults are returned without error.
func Load(configDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("region", "")
	v.SetDefault("server_id", "")
	v.SetDefault("security_policy", "TransferSecurityPolicy-2020-06")
	v.SetDefault("poll_interval_seconds", 5)
	v.SetDefault("poll_timeout_minutes", 10)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Ignore missing file, return defaults
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to configDir/config.toml, creating the directory
// if it does not exist.
func Save(cfg *Config, configDir string) error {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.Set("region", cfg.Region)
	v.Set("server_id", cfg.ServerID)
	v.Set("security_policy", cfg.SecurityPolicy)
	v.Set("poll_interval_seconds", cfg.PollIntervalSeconds)
	v.Set("poll_timeout_minutes", cfg.PollTimeoutMinutes)

	path := filepath.Join(configDir, "config.toml")
	if err := v.WriteConfigAs(path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// Set validates and applies a single key-value pair to the config.
// Returns an error if the key is unknown or the value fails validation.
func (c *Config) Set(key, value string) error {
	validate, ok := validators[key]
	if !ok {
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(ValidKeys(), ", "))
	}

	if err := validate(value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	switch key {
	case "region":
		c.Region = value
	case "server_id":
		c.ServerID = value
	case "security_policy":
		c.SecurityPolicy = value
	case "poll_interval_seconds":
		n, _ := strconv.Atoi(value) // already validated
		c.PollIntervalSeconds = n
	case "poll_timeout_minutes":
		n, _ := strconv.Atoi(value) // already validated
		c.PollTimeoutMinutes = n
	}

	return nil
}

// regionPattern matches valid AWS region formats like us-west-2, eu-central-1.
var regionPattern = regexp.MustCompile(`^[a-z]{2}-[a-z]+-\d+$`)

// serverIDPattern matches Transfer Family server IDs like s-1234567890abcdef0.
var serverIDPattern = regexp.MustCompile(`^s-[0-9a-f]{17}$`)

func validateRegion(value string) error {
	if value == "" {
		return nil // empty clears the region
	}
	if !regionPattern.MatchString(value) {
		return fmt.Errorf("%q does not match AWS region format (e.g., us-west-2)", value)
	}
	return nil
}

func validateServerID(value string) error {
	if value == "" {
		return nil // empty clears the cached server
	}
	if !serverIDPattern.MatchString(value) {
		return fmt.Errorf("%q does not match transfer server ID format (e.g., s-1234567890abcdef0)", value)
	}
	return nil
}

func validateSecurityPolicy(value string) error {
	if !strings.HasPrefix(value, "TransferSecurityPolicy-") {
		return fmt.Errorf("%q is not a Transfer Family security policy name", value)
	}
	return nil
}

func validatePollIntervalSeconds(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%q is not a valid integer", value)
	}
	if n < 1 {
		return fmt.Errorf("must be >= 1 (got %d)", n)
	}
	return nil
}

func validatePollTimeoutMinutes(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%q is not a valid integer", value)
	}
	if n < 1 {
		return fmt.Errorf("must be >= 1 (got %d)", n)
	}
	return nil
}
