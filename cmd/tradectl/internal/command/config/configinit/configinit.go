// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package configinit implements the "config init" command.
package configinit

import (
	"context"
	"fmt"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/tradectl/tradectl/internal/tradectl/tradectlconfig"
)

// NewCommand returns a new config init command that writes a documented
// configuration template.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	return &appcmd.Command{
		Use:   name,
		Short: "Create a new configuration file with a documented template",
		Args:  appcmd.NoArgs,
		Run: builder.NewRunFunc(
			func(ctx context.Context, container appext.Container) error {
				return run(ctx, container)
			},
		),
	}
}

func run(_ context.Context, container appext.Container) error {
	filePath, err := tradectlconfig.InitConfig(container.ConfigDirPath())
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(container.Stdout(), "Created %s\n", filePath); err != nil {
		return err
	}
	return nil
}
