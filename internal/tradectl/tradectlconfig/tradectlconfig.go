// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tradectlconfig provides configuration parsing and validation for tradectl.
//
// Configuration is stored at ~/.config/tradectl/config.yaml (or
// $TRADECTL_CONFIG_DIR/config.yaml). The sqlite database defaults to
// ~/.local/share/tradectl/tradectl.db (or $TRADECTL_DATA_DIR/tradectl.db)
// and can be overridden with the database key.
package tradectlconfig

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlbalance"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlmatch"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the configuration file within the config directory.
const ConfigFileName = "config.yaml"

// DatabaseFileName is the default database file name within the data directory.
const DatabaseFileName = "tradectl.db"

// configTemplate is the default configuration file template with comments.
// yaml.v3 does not preserve comments, so we hardcode the template string.
const configTemplate = `# The configuration file version.
#
# Required. The only current valid version is v1.
version: v1
# Path to the sqlite database file.
#
# Optional. Defaults to the tradectl data directory. A leading ~ is expanded.
# database: ~/.local/share/tradectl/tradectl.db
# The accounts to sync.
#
# Required. Create a Flex Query at https://www.interactivebrokers.com
# under Performance & Reports > Flex Queries. Include the Trades,
# Open Positions, and Change in NAV sections with all fields enabled.
#
# The Flex Web Service token must be set via the IBKR_TOKEN environment variable.
accounts:
  - # A short name for the account, used as the account id everywhere.
    alias: main
    # The Flex Query ID for the current-period report.
    #
    # Required.
    query_id: ""
    # The Flex Query ID for the historical report.
    #
    # Optional. Fetched alongside query_id; results are merged and
    # deduplicated by execution id.
    # historical_query_id: ""
    # Starting cash anchor for balance reconstruction, as a decimal string.
    #
    # Optional. Used when the statement does not report starting cash.
    # starting_cash: "25000"
    # Executions strictly before this RFC 3339 timestamp are dropped entirely.
    #
    # Optional. Used to ignore a known-bad historical data range.
    # exclude_before: "2025-01-15T00:00:00Z"
    # How executions are classified as opening or closing.
    #
    # Optional. One of:
    #   position  Track the signed net position (default). Handles breakeven
    #             closes and executions that close and reopen in one fill.
    #   pnl       Treat zero realized P&L as an opener. Only valid for feeds
    #             whose realized P&L signal is reliable on every row.
    # classifier: position
    # How the running balance series is reconstructed.
    #
    # Optional. One of:
    #   forward    Accumulate forward from a starting-cash anchor (default).
    #   reconcile  Derive the implied starting balance from the statement's
    #              ending cash, then replay forward.
    # balance_policy: forward
`

// ExternalConfig is the YAML-serializable configuration file structure.
type ExternalConfig struct {
	// Version is the configuration file version (must be "v1").
	Version string `yaml:"version"`
	// Database is the optional sqlite database path override.
	Database string `yaml:"database"`
	// Accounts is the list of accounts to sync.
	Accounts []ExternalAccountConfig `yaml:"accounts"`
}

// ExternalAccountConfig holds per-account configuration.
type ExternalAccountConfig struct {
	// Alias is the short account name, used as the account id.
	Alias string `yaml:"alias"`
	// QueryID is the Flex Query ID for the current-period report.
	QueryID string `yaml:"query_id"`
	// HistoricalQueryID is the optional Flex Query ID for the historical report.
	HistoricalQueryID string `yaml:"historical_query_id"`
	// StartingCash is the optional starting cash anchor as a decimal string.
	StartingCash string `yaml:"starting_cash"`
	// ExcludeBefore is the optional RFC 3339 exclusion cutoff.
	ExcludeBefore string `yaml:"exclude_before"`
	// Classifier is the optional classifier mode ("position" or "pnl").
	Classifier string `yaml:"classifier"`
	// BalancePolicy is the optional balance policy ("forward" or "reconcile").
	BalancePolicy string `yaml:"balance_policy"`
}

// Config is the validated runtime configuration derived from the config file.
type Config struct {
	// DatabasePath is the sqlite database path, with ~ expanded. Empty means
	// use the default location under the data directory.
	DatabasePath string
	// Accounts maps account aliases to their validated configuration.
	Accounts map[string]AccountConfig
	// AccountOrder lists aliases in config-file order for deterministic iteration.
	AccountOrder []string
}

// AccountConfig is the validated per-account configuration.
type AccountConfig struct {
	// Alias is the short account name.
	Alias string
	// QueryID is the Flex Query ID for the current-period report.
	QueryID string
	// HistoricalQueryID is the Flex Query ID for the historical report, or empty.
	HistoricalQueryID string
	// StartingCash is the configured starting cash anchor.
	StartingCash decimal.Decimal
	// HasStartingCash reports whether starting_cash was set.
	HasStartingCash bool
	// ExcludeBefore is the exclusion cutoff; zero means no cutoff.
	ExcludeBefore time.Time
	// ClassifierMode selects how the matcher classifies executions.
	ClassifierMode tradectlmatch.ClassifierMode
	// BalancePolicy selects how the running balance is reconstructed.
	BalancePolicy tradectlbalance.Policy
}

// NewConfig validates an ExternalConfig and returns a runtime Config.
func NewConfig(externalConfig ExternalConfig) (*Config, error) {
	if externalConfig.Version != "v1" {
		return nil, fmt.Errorf("unsupported config version %q, must be v1", externalConfig.Version)
	}
	if len(externalConfig.Accounts) == 0 {
		return nil, errors.New("at least one account is required")
	}
	databasePath := externalConfig.Database
	if databasePath != "" {
		var err error
		databasePath, err = expandHome(databasePath)
		if err != nil {
			return nil, err
		}
	}
	accounts := make(map[string]AccountConfig, len(externalConfig.Accounts))
	accountOrder := make([]string, 0, len(externalConfig.Accounts))
	for _, external := range externalConfig.Accounts {
		if external.Alias == "" {
			return nil, errors.New("account alias is required")
		}
		if _, ok := accounts[external.Alias]; ok {
			return nil, fmt.Errorf("duplicate account alias %q", external.Alias)
		}
		if external.QueryID == "" {
			return nil, fmt.Errorf("account %q: query_id is required", external.Alias)
		}
		account := AccountConfig{
			Alias:             external.Alias,
			QueryID:           external.QueryID,
			HistoricalQueryID: external.HistoricalQueryID,
		}
		if external.StartingCash != "" {
			startingCash, err := decimal.NewFromString(external.StartingCash)
			if err != nil {
				return nil, fmt.Errorf("account %q: invalid starting_cash %q: %w", external.Alias, external.StartingCash, err)
			}
			account.StartingCash = startingCash
			account.HasStartingCash = true
		}
		if external.ExcludeBefore != "" {
			excludeBefore, err := time.Parse(time.RFC3339, external.ExcludeBefore)
			if err != nil {
				return nil, fmt.Errorf("account %q: invalid exclude_before %q: %w", external.Alias, external.ExcludeBefore, err)
			}
			account.ExcludeBefore = excludeBefore.UTC()
		}
		classifierMode, err := parseClassifierMode(external.Classifier)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", external.Alias, err)
		}
		account.ClassifierMode = classifierMode
		balancePolicy, err := parseBalancePolicy(external.BalancePolicy)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", external.Alias, err)
		}
		account.BalancePolicy = balancePolicy
		accounts[external.Alias] = account
		accountOrder = append(accountOrder, external.Alias)
	}
	return &Config{
		DatabasePath: databasePath,
		Accounts:     accounts,
		AccountOrder: accountOrder,
	}, nil
}

// ConfigFilePath returns the path to the configuration file within the given config directory.
func ConfigFilePath(configDirPath string) string {
	return filepath.Join(configDirPath, ConfigFileName)
}

// DatabaseFilePath returns the database path from the config, falling back
// to the default location within the given data directory.
func DatabaseFilePath(config *Config, dataDirPath string) string {
	if config.DatabasePath != "" {
		return config.DatabasePath
	}
	return filepath.Join(dataDirPath, DatabaseFileName)
}

// ReadConfig reads and validates the configuration file from the given config directory.
// Returns a clear error message directing users to run "tradectl config init" if the file is missing.
func ReadConfig(configDirPath string) (*Config, error) {
	filePath := ConfigFilePath(configDirPath)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found at %s, run \"tradectl config init\" to create one", filePath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var externalConfig ExternalConfig
	if err := unmarshalYAMLStrict(data, &externalConfig); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
	}
	return NewConfig(externalConfig)
}

// InitConfig creates a new configuration file with a documented template.
// Creates the config directory if it does not exist.
// Returns the path to the created file, or an error if the file already exists.
func InitConfig(configDirPath string) (string, error) {
	filePath := ConfigFilePath(configDirPath)
	if _, err := os.Stat(filePath); err == nil {
		return "", fmt.Errorf("configuration file already exists: %s", filePath)
	}
	// Create the config directory if it does not exist.
	if err := os.MkdirAll(configDirPath, 0o755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(filePath, []byte(configTemplate), 0o644); err != nil {
		return "", err
	}
	return filePath, nil
}

// ValidateConfig reads and validates the configuration file from the given config directory.
func ValidateConfig(configDirPath string) error {
	_, err := ReadConfig(configDirPath)
	return err
}

// parseClassifierMode parses the classifier key, defaulting to position tracking.
func parseClassifierMode(s string) (tradectlmatch.ClassifierMode, error) {
	switch s {
	case "", "position":
		return tradectlmatch.ClassifierModePosition, nil
	case "pnl":
		return tradectlmatch.ClassifierModePnl, nil
	default:
		return 0, fmt.Errorf("unknown classifier %q, must be one of: position, pnl", s)
	}
}

// parseBalancePolicy parses the balance_policy key, defaulting to forward accumulation.
func parseBalancePolicy(s string) (tradectlbalance.Policy, error) {
	switch s {
	case "", "forward":
		return tradectlbalance.PolicyForward, nil
	case "reconcile":
		return tradectlbalance.PolicyReconcile, nil
	default:
		return 0, fmt.Errorf("unknown balance_policy %q, must be one of: forward, reconcile", s)
	}
}

// expandHome expands a leading ~ in a path to the user's home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// unmarshalYAMLStrict unmarshals the data as YAML with strict field checking.
// If the data length is 0, this is a no-op.
func unmarshalYAMLStrict(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	yamlDecoder := yaml.NewDecoder(bytes.NewReader(data))
	// Reject unknown fields.
	yamlDecoder.KnownFields(true)
	if err := yamlDecoder.Decode(v); err != nil {
		return fmt.Errorf("could not unmarshal as YAML: %w", err)
	}
	return nil
}
