// Copyright 2026 Peter Edge
//
// All rights reserved.

package main

import (
	"context"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/tradectl/tradectl/cmd/tradectl/internal/command/balance"
	"github.com/tradectl/tradectl/cmd/tradectl/internal/command/config"
	"github.com/tradectl/tradectl/cmd/tradectl/internal/command/executions"
	"github.com/tradectl/tradectl/cmd/tradectl/internal/command/importcsv"
	"github.com/tradectl/tradectl/cmd/tradectl/internal/command/positions"
	"github.com/tradectl/tradectl/cmd/tradectl/internal/command/sync"
)

func main() {
	appcmd.Main(context.Background(), newRootCommand("tradectl"))
}

// newRootCommand creates the root tradectl command with all sub-commands.
func newRootCommand(name string) *appcmd.Command {
	builder := appext.NewBuilder(name)
	return &appcmd.Command{
		Use:                 name,
		Short:               "Reconstruct trade lifecycles from Interactive Brokers statements",
		BindPersistentFlags: builder.BindRoot,
		SubCommands: []*appcmd.Command{
			config.NewCommand("config", builder),
			sync.NewCommand("sync", builder),
			importcsv.NewCommand("import", builder),
			executions.NewCommand("executions", builder),
			positions.NewCommand("positions", builder),
			balance.NewCommand("balance", builder),
		},
	}
}
