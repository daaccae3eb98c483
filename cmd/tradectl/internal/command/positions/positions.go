// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package positions implements the "positions" command.
package positions

import (
	"context"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/spf13/pflag"
	"github.com/tradectl/tradectl/cmd/tradectl/internal/tradectlcmd"
	"github.com/tradectl/tradectl/internal/pkg/cliio"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlconfig"
	"github.com/tradectl/tradectl/internal/tradectl/tradectldata"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlmatch"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlstore"
)

// NewCommand returns a new positions command.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Show open positions",
		Long: `Show open positions.

By default prints the broker-reported open position snapshot from the last
sync. With --computed, prints the open lots reconstructed by FIFO matching
the stored execution log instead, which also shows when each remaining lot
was opened.`,
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
	// Account is the account alias.
	Account string
	// Computed selects matcher-derived open lots over the broker snapshot.
	Computed bool
	// Format is the output format.
	Format string
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
		"Account alias (required with multiple accounts)",
	)
	flagSet.BoolVar(
		&f.Computed,
		"computed",
		false,
		"Show open lots reconstructed from the execution log instead of the broker snapshot",
	)
	flagSet.StringVar(
		&f.Format,
		tradectlcmd.FormatFlagName,
		"table",
		"Output format (table, csv, json)",
	)
}

func run(ctx context.Context, container appext.Container, flags *flags) error {
	format, err := cliio.ParseFormat(flags.Format)
	if err != nil {
		return appcmd.NewInvalidArgumentError(err.Error())
	}
	config, err := tradectlcmd.ReadConfig(container)
	if err != nil {
		return err
	}
	alias, err := tradectlcmd.ResolveAccount(config, flags.Account)
	if err != nil {
		return err
	}
	store, err := tradectlcmd.OpenStore(container, config)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()
	if flags.Computed {
		return runComputed(ctx, container, config, store, alias, format)
	}
	positions, err := store.ListOpenPositions(ctx, alias)
	if err != nil {
		return err
	}
	switch format {
	case cliio.FormatJSON:
		return cliio.WriteJSON(container.Stdout(), positions...)
	case cliio.FormatCSV:
		records := [][]string{snapshotHeaders}
		records = append(records, snapshotRecords(positions)...)
		return cliio.WriteCSVRecords(container.Stdout(), records)
	default:
		return cliio.WriteTable(container.Stdout(), snapshotHeaders, snapshotRecords(positions))
	}
}

func runComputed(
	ctx context.Context,
	container appext.Container,
	config *tradectlconfig.Config,
	store *tradectlstore.Store,
	alias string,
	format cliio.Format,
) error {
	executions, err := store.ListExecutions(ctx, alias, "")
	if err != nil {
		return err
	}
	account := config.Accounts[alias]
	result := tradectlmatch.Match(executions, tradectlmatch.NewClassifier(account.ClassifierMode))
	switch format {
	case cliio.FormatJSON:
		return cliio.WriteJSON(container.Stdout(), result.OpenLots...)
	case cliio.FormatCSV:
		records := [][]string{lotHeaders}
		records = append(records, lotRecords(result.OpenLots)...)
		return cliio.WriteCSVRecords(container.Stdout(), records)
	default:
		return cliio.WriteTable(container.Stdout(), lotHeaders, lotRecords(result.OpenLots))
	}
}

var snapshotHeaders = []string{
	"SYMBOL", "QTY", "COST", "MARK", "VALUE", "UNREALIZED", "CCY",
}

func snapshotRecords(positions []tradectldata.OpenPosition) [][]string {
	records := make([][]string, 0, len(positions))
	for _, p := range positions {
		records = append(records, []string{
			p.Symbol,
			p.Quantity.String(),
			p.CostBasisPrice.StringFixed(2),
			p.MarkPrice.StringFixed(2),
			p.PositionValue.StringFixed(2),
			p.UnrealizedPnl.StringFixed(2),
			p.CurrencyCode,
		})
	}
	return records
}

var lotHeaders = []string{
	"SYMBOL", "DIR", "QTY", "OPENED", "EXECUTION",
}

func lotRecords(lots []tradectlmatch.OpenLot) [][]string {
	records := make([][]string, 0, len(lots))
	for _, lot := range lots {
		records = append(records, []string{
			lot.Symbol,
			string(lot.Direction),
			lot.RemainingQuantity.String(),
			lot.OpenedAt.UTC().Format("2006-01-02 15:04:05"),
			lot.OpeningExecutionID,
		})
	}
	return records
}
