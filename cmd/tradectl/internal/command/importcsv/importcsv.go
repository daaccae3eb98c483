// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package importcsv implements the "import" command for Activity Statement
// CSV exports.
package importcsv

import (
	"context"
	"fmt"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/spf13/pflag"
	"github.com/tradectl/tradectl/cmd/tradectl/internal/tradectlcmd"
	"github.com/tradectl/tradectl/internal/pkg/activitycsv"
)

// NewCommand returns a new import command that ingests an Activity Statement
// CSV file through the normal normalization pipeline.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name + " path/to/activity.csv",
		Short: "Import trades from an Activity Statement CSV export",
		Long: `Import trades from an Activity Statement CSV export.

Activity Statement exports predate the Flex Query history window, so this is
the way to backfill old trades. Imported rows are merged with the stored
execution log, deduplicated, and the running balance series is recomputed
over the combined history.`,
		Args: appcmd.ExactArgs(1),
		Run: builder.NewRunFunc(
			func(ctx context.Context, container appext.Container) error {
				return run(ctx, container, flags)
			},
		),
		BindFlags: flags.Bind,
	}
}

type flags struct {
	// Account is the account alias to import into.
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
		"Account alias to import into (required with multiple accounts)",
	)
}

func run(ctx context.Context, container appext.Container, flags *flags) error {
	filePath := container.Arg(0)
	config, err := tradectlcmd.ReadConfig(container)
	if err != nil {
		return err
	}
	alias, err := tradectlcmd.ResolveAccount(config, flags.Account)
	if err != nil {
		return err
	}
	trades, err := activitycsv.ParseFile(filePath)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", filePath, err)
	}
	syncer, store, err := tradectlcmd.NewSyncerOffline(container)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()
	result, err := syncer.Import(ctx, alias, trades)
	if err != nil {
		return fmt.Errorf("importing %s: %w", filePath, err)
	}
	logger := container.Logger()
	for _, warning := range result.Warnings {
		logger.Warn(warning, "account", alias)
	}
	_, err = fmt.Fprintf(
		container.Stdout(),
		"imported %d trades from %s, execution log now has %d executions\n",
		len(trades),
		filePath,
		result.ExecutionCount,
	)
	return err
}
