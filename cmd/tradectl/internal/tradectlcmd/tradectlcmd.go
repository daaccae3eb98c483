// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tradectlcmd provides shared wiring for tradectl commands that need
// the ingestion pipeline or the store (reading config, getting the IBKR
// token, constructing clients).
package tradectlcmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"buf.build/go/app/appext"
	"github.com/tradectl/tradectl/internal/pkg/flexquery"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlconfig"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlstore"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlsync"
)

// ibkrTokenEnvVar is the environment variable name for the IBKR Flex Web Service token.
const ibkrTokenEnvVar = "IBKR_TOKEN"

// AccountFlagName is the shared flag name for selecting an account.
const AccountFlagName = "account"

// FormatFlagName is the shared flag name for the output format.
const FormatFlagName = "format"

// ReadConfig reads and validates the configuration from the appext container's
// config directory.
func ReadConfig(container appext.Container) (*tradectlconfig.Config, error) {
	return tradectlconfig.ReadConfig(container.ConfigDirPath())
}

// OpenStore opens the sqlite store at the configured path, creating the data
// directory if needed. The caller owns the returned store and must close it.
func OpenStore(container appext.Container, config *tradectlconfig.Config) (*tradectlstore.Store, error) {
	databasePath := tradectlconfig.DatabaseFilePath(config, container.DataDirPath())
	if err := os.MkdirAll(filepath.Dir(databasePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return tradectlstore.Open(databasePath)
}

// NewSyncer constructs a Syncer from the appext container by reading the
// config file, extracting the IBKR token from the environment, and creating
// the required clients. The caller owns the returned store and must close it.
func NewSyncer(container appext.Container) (tradectlsync.Syncer, *tradectlstore.Store, error) {
	config, err := ReadConfig(container)
	if err != nil {
		return nil, nil, err
	}
	// Read the IBKR token from the environment via the app container.
	token := container.Env(ibkrTokenEnvVar)
	if token == "" {
		return nil, nil, errors.New("IBKR_TOKEN environment variable is required, set it to your IBKR Flex Web Service token (see \"tradectl --help\" for details)")
	}
	store, err := OpenStore(container, config)
	if err != nil {
		return nil, nil, err
	}
	logger := container.Logger()
	client := flexquery.NewClient(flexquery.ClientWithLogger(logger))
	return tradectlsync.NewSyncer(logger, token, config, client, store), store, nil
}

// NewSyncerOffline constructs a Syncer for operations that never touch the
// Flex Web Service, such as CSV import, so no IBKR token is required. The
// caller owns the returned store and must close it.
func NewSyncerOffline(container appext.Container) (tradectlsync.Syncer, *tradectlstore.Store, error) {
	config, err := ReadConfig(container)
	if err != nil {
		return nil, nil, err
	}
	store, err := OpenStore(container, config)
	if err != nil {
		return nil, nil, err
	}
	logger := container.Logger()
	client := flexquery.NewClient(flexquery.ClientWithLogger(logger))
	return tradectlsync.NewSyncer(logger, "", config, client, store), store, nil
}

// ResolveAccount resolves the --account flag value against the config: an
// explicit alias must exist, and an empty value is allowed only when exactly
// one account is configured.
func ResolveAccount(config *tradectlconfig.Config, alias string) (string, error) {
	if alias != "" {
		if _, ok := config.Accounts[alias]; !ok {
			return "", fmt.Errorf("account %q is not configured (configured accounts: %s)", alias, strings.Join(config.AccountOrder, ", "))
		}
		return alias, nil
	}
	if len(config.AccountOrder) == 1 {
		return config.AccountOrder[0], nil
	}
	return "", fmt.Errorf("--%s is required with multiple configured accounts (%s)", AccountFlagName, strings.Join(config.AccountOrder, ", "))
}
