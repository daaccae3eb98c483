// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package configvalidate implements the "config validate" command.
package configvalidate

import (
	"context"
	"fmt"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlconfig"
)

// NewCommand returns a new config validate command.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	return &appcmd.Command{
		Use:   name,
		Short: "Validate the configuration file",
		Args:  appcmd.NoArgs,
		Run: builder.NewRunFunc(
			func(ctx context.Context, container appext.Container) error {
				return run(ctx, container)
			},
		),
	}
}

func run(_ context.Context, container appext.Container) error {
	if err := tradectlconfig.ValidateConfig(container.ConfigDirPath()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(container.Stdout(), "Configuration is valid\n"); err != nil {
		return err
	}
	return nil
}
