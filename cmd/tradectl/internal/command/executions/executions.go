// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package executions implements the "executions" command.
package executions

import (
	"context"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/spf13/pflag"
	"github.com/tradectl/tradectl/cmd/tradectl/internal/tradectlcmd"
	"github.com/tradectl/tradectl/internal/pkg/cliio"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlmatch"
)

// NewCommand returns a new executions command that lists the execution log
// with FIFO close annotations.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "List stored executions with FIFO close annotations",
		Long: `List stored executions with FIFO close annotations.

Executions are printed in canonical (timestamp, execution id) order. Closing
executions carry the closed quantity, the holding duration measured from the
earliest matched open, and the L/S direction of the closed position. The
annotations are recomputed from the stored log on every run.`,
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
	// Account is the account alias to list.
	Account string
	// Symbol optionally restricts output to one symbol.
	Symbol string
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
		&f.Symbol,
		"symbol",
		"",
		"Restrict output to one symbol",
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
	executions, err := store.ListExecutions(ctx, alias, flags.Symbol)
	if err != nil {
		return err
	}
	account := config.Accounts[alias]
	result := tradectlmatch.Match(executions, tradectlmatch.NewClassifier(account.ClassifierMode))
	logger := container.Logger()
	for _, anomaly := range result.Anomalies {
		logger.Warn(
			"unmatched closing execution",
			"account", anomaly.AccountID,
			"symbol", anomaly.Symbol,
			"execution_id", anomaly.ExecutionID,
			"unmatched_quantity", anomaly.UnmatchedQuantity.String(),
			"reason", anomaly.Reason,
		)
	}
	switch format {
	case cliio.FormatJSON:
		return cliio.WriteJSON(container.Stdout(), result.Processed...)
	case cliio.FormatCSV:
		return cliio.WriteCSVRecords(container.Stdout(), executionRecords(result.Processed, true))
	default:
		records := executionRecords(result.Processed, false)
		return cliio.WriteTable(container.Stdout(), executionHeaders, records)
	}
}

var executionHeaders = []string{
	"TIMESTAMP", "SYMBOL", "SIDE", "QTY", "PRICE", "CLOSED", "HELD", "DIR", "PNL", "BALANCE", "ID",
}

// executionRecords renders processed executions as string rows. When
// withHeader is set, the header row is included (CSV output carries its own
// header, table output passes headers separately).
func executionRecords(processed []tradectlmatch.ProcessedExecution, withHeader bool) [][]string {
	var records [][]string
	if withHeader {
		records = append(records, executionHeaders)
	}
	for _, e := range processed {
		var closed, held, direction string
		if e.Direction != tradectlmatch.DirectionNone {
			closed = e.ClosedQuantity.String()
			held = e.HoldingDuration.String()
			direction = string(e.Direction)
		}
		balance := e.RunningBalance.StringFixed(2)
		if !e.Calibrated {
			balance += "?"
		}
		records = append(records, []string{
			e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			e.Symbol,
			e.Side.String(),
			e.Quantity.String(),
			e.Price.String(),
			closed,
			held,
			direction,
			e.RealizedPnl.StringFixed(2),
			balance,
			e.ExecutionID,
		})
	}
	return records
}
