// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package sync implements the "sync" command.
package sync

import (
	"context"
	"fmt"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/spf13/pflag"
	"github.com/tradectl/tradectl/cmd/tradectl/internal/tradectlcmd"
)

// NewCommand returns a new sync command that ingests broker statements.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Fetch broker statements and update the execution log",
		Long: `Fetch broker statements and update the execution log.

Downloads each configured report for the account via the Flex Web Service,
normalizes and deduplicates the executions, reconstructs running balances,
and persists the result. Without --account, all configured accounts are
synced in configuration order.`,
		Args: appcmd.NoArgs,
		Run: builder.NewRunFunc(
			func(ctx context.Context, container appext.Container) error {
				return run(ctx, container, flags)
			},
		),
		BindFlags: flags.Bind,
	}
}

type flags struct {
	// Account is the account alias to sync. Empty means all accounts.
	Account string
}

func newFlags() *flags {
	return &flags{}
}

// Bind registers the flag definitions with the given flag set.
func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(
		&f.Account,
		tradectlcmd.AccountFlagName,
		"",
		"Account alias to sync (default: all configured accounts)",
	)
}

func run(ctx context.Context, container appext.Container, flags *flags) error {
	config, err := tradectlcmd.ReadConfig(container)
	if err != nil {
		return err
	}
	aliases := config.AccountOrder
	if flags.Account != "" {
		alias, err := tradectlcmd.ResolveAccount(config, flags.Account)
		if err != nil {
			return err
		}
		aliases = []string{alias}
	}
	syncer, store, err := tradectlcmd.NewSyncer(container)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()
	logger := container.Logger()
	for _, alias := range aliases {
		result, err := syncer.Sync(ctx, alias)
		if err != nil {
			return fmt.Errorf("syncing %s: %w", alias, err)
		}
		for _, warning := range result.Warnings {
			logger.Warn(warning, "account", alias)
		}
		if _, err := fmt.Fprintln(container.Stdout(), result.Summary()); err != nil {
			return err
		}
	}
	return nil
}
