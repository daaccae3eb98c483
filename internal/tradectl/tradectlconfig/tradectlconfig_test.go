// Copyright 2026 Peter Edge
//
// All rights reserved.

package tradectlconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlbalance"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlmatch"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configDirPath := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDirPath, ConfigFileName), []byte(content), 0o644))
	return configDirPath
}

func TestReadConfig(t *testing.T) {
	t.Parallel()
	configDirPath := writeConfig(t, `version: v1
database: /tmp/test/tradectl.db
accounts:
  - alias: main
    query_id: "12345"
    historical_query_id: "67890"
    starting_cash: "25000"
    exclude_before: "2025-01-15T00:00:00Z"
    classifier: pnl
    balance_policy: reconcile
  - alias: ira
    query_id: "11111"
`)
	config, err := ReadConfig(configDirPath)
	require.NoError(t, err)
	require.Equal(t, "/tmp/test/tradectl.db", config.DatabasePath)
	require.Equal(t, []string{"main", "ira"}, config.AccountOrder)

	main := config.Accounts["main"]
	require.Equal(t, "12345", main.QueryID)
	require.Equal(t, "67890", main.HistoricalQueryID)
	require.True(t, main.HasStartingCash)
	require.True(t, main.StartingCash.Equal(decimal.RequireFromString("25000")))
	require.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), main.ExcludeBefore)
	require.Equal(t, tradectlmatch.ClassifierModePnl, main.ClassifierMode)
	require.Equal(t, tradectlbalance.PolicyReconcile, main.BalancePolicy)

	// Optional keys default: position classifier, forward policy, no cutoff.
	ira := config.Accounts["ira"]
	require.False(t, ira.HasStartingCash)
	require.True(t, ira.ExcludeBefore.IsZero())
	require.Equal(t, tradectlmatch.ClassifierModePosition, ira.ClassifierMode)
	require.Equal(t, tradectlbalance.PolicyForward, ira.BalancePolicy)
}

func TestReadConfigMissingFile(t *testing.T) {
	t.Parallel()
	_, err := ReadConfig(t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "tradectl config init")
}

func TestReadConfigRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	configDirPath := writeConfig(t, `version: v1
accounts:
  - alias: main
    query_id: "12345"
    typo_field: oops
`)
	_, err := ReadConfig(configDirPath)
	require.Error(t, err)
}

func TestNewConfigValidation(t *testing.T) {
	t.Parallel()
	account := ExternalAccountConfig{Alias: "main", QueryID: "12345"}
	for _, test := range []struct {
		name    string
		config  ExternalConfig
		wantErr string
	}{
		{
			name:    "unsupported version",
			config:  ExternalConfig{Version: "v2", Accounts: []ExternalAccountConfig{account}},
			wantErr: "unsupported config version",
		},
		{
			name:    "no accounts",
			config:  ExternalConfig{Version: "v1"},
			wantErr: "at least one account",
		},
		{
			name: "missing alias",
			config: ExternalConfig{Version: "v1", Accounts: []ExternalAccountConfig{
				{QueryID: "12345"},
			}},
			wantErr: "alias is required",
		},
		{
			name: "duplicate alias",
			config: ExternalConfig{Version: "v1", Accounts: []ExternalAccountConfig{
				account, account,
			}},
			wantErr: "duplicate account alias",
		},
		{
			name: "missing query id",
			config: ExternalConfig{Version: "v1", Accounts: []ExternalAccountConfig{
				{Alias: "main"},
			}},
			wantErr: "query_id is required",
		},
		{
			name: "invalid starting cash",
			config: ExternalConfig{Version: "v1", Accounts: []ExternalAccountConfig{
				{Alias: "main", QueryID: "12345", StartingCash: "lots"},
			}},
			wantErr: "invalid starting_cash",
		},
		{
			name: "invalid exclude before",
			config: ExternalConfig{Version: "v1", Accounts: []ExternalAccountConfig{
				{Alias: "main", QueryID: "12345", ExcludeBefore: "January 15"},
			}},
			wantErr: "invalid exclude_before",
		},
		{
			name: "unknown classifier",
			config: ExternalConfig{Version: "v1", Accounts: []ExternalAccountConfig{
				{Alias: "main", QueryID: "12345", Classifier: "vibes"},
			}},
			wantErr: "unknown classifier",
		},
		{
			name: "unknown balance policy",
			config: ExternalConfig{Version: "v1", Accounts: []ExternalAccountConfig{
				{Alias: "main", QueryID: "12345", BalancePolicy: "backward"},
			}},
			wantErr: "unknown balance_policy",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewConfig(test.config)
			require.Error(t, err)
			require.Contains(t, err.Error(), test.wantErr)
		})
	}
}

func TestInitConfig(t *testing.T) {
	t.Parallel()
	configDirPath := t.TempDir()
	filePath, err := InitConfig(configDirPath)
	require.NoError(t, err)
	require.Equal(t, ConfigFilePath(configDirPath), filePath)

	// The template must survive a strict parse, even though it fails
	// validation until a query id is filled in.
	data, err := os.ReadFile(filePath)
	require.NoError(t, err)
	var externalConfig ExternalConfig
	require.NoError(t, unmarshalYAMLStrict(data, &externalConfig))
	require.Equal(t, "v1", externalConfig.Version)
	_, err = NewConfig(externalConfig)
	require.Error(t, err)
	require.Contains(t, err.Error(), "query_id is required")

	// Never overwrite an existing file.
	_, err = InitConfig(configDirPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestDatabaseFilePath(t *testing.T) {
	t.Parallel()
	require.Equal(t,
		"/explicit/path.db",
		DatabaseFilePath(&Config{DatabasePath: "/explicit/path.db"}, "/data"),
	)
	require.Equal(t,
		filepath.Join("/data", DatabaseFileName),
		DatabaseFilePath(&Config{}, "/data"),
	)
}
