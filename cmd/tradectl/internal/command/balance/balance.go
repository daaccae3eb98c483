// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package balance implements the "balance" command.
package balance

import (
	"context"
	"fmt"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/spf13/pflag"
	"github.com/tradectl/tradectl/cmd/tradectl/internal/tradectlcmd"
	"github.com/tradectl/tradectl/internal/pkg/cliio"
	"github.com/tradectl/tradectl/internal/tradectl/tradectldata"
)

// NewCommand returns a new balance command that prints the running cash
// balance series.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Show the running cash balance series",
		Long: `Show the running cash balance series.

Prints the balance after each execution as reconstructed during the last sync
or import, and compares the final computed balance against the broker-reported
ending cash when one was captured. Uncalibrated balances (no starting-cash
anchor was available) are marked with "?".`,
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
	executions, err := store.ListExecutions(ctx, alias, "")
	if err != nil {
		return err
	}
	snapshot, err := store.GetAccountSnapshot(ctx, alias)
	if err != nil {
		return err
	}
	switch format {
	case cliio.FormatJSON:
		return cliio.WriteJSON(container.Stdout(), executions...)
	case cliio.FormatCSV:
		records := [][]string{balanceHeaders}
		records = append(records, balanceRecords(executions)...)
		return cliio.WriteCSVRecords(container.Stdout(), records)
	default:
		if err := cliio.WriteTable(container.Stdout(), balanceHeaders, balanceRecords(executions)); err != nil {
			return err
		}
		return writeReconciliation(container, executions, snapshot)
	}
}

var balanceHeaders = []string{
	"TIMESTAMP", "SYMBOL", "SIDE", "QTY", "CASH EFFECT", "BALANCE", "ID",
}

func balanceRecords(executions []tradectldata.Execution) [][]string {
	records := make([][]string, 0, len(executions))
	for i := range executions {
		e := &executions[i]
		balance := e.RunningBalance.StringFixed(2)
		if !e.Calibrated {
			balance += "?"
		}
		records = append(records, []string{
			e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			e.Symbol,
			e.Side.String(),
			e.Quantity.String(),
			e.CashEffect().StringFixed(2),
			balance,
			e.ExecutionID,
		})
	}
	return records
}

// writeReconciliation prints the computed-vs-reported ending cash comparison
// below the table when a broker snapshot exists.
func writeReconciliation(
	container appext.Container,
	executions []tradectldata.Execution,
	snapshot *tradectldata.AccountSnapshot,
) error {
	if len(executions) == 0 || snapshot == nil {
		return nil
	}
	last := executions[len(executions)-1]
	delta := last.RunningBalance.Sub(snapshot.EndingCash)
	_, err := fmt.Fprintf(
		container.Stdout(),
		"\ncomputed ending balance: %s\nbroker-reported ending cash: %s (as of %s)\ndelta: %s\n",
		last.RunningBalance.StringFixed(2),
		snapshot.EndingCash.StringFixed(2),
		snapshot.SyncedAt.UTC().Format("2006-01-02 15:04:05"),
		delta.StringFixed(2),
	)
	return err
}
