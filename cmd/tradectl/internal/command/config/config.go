// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package config implements the "config" parent command.
package config

import (
	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/tradectl/tradectl/cmd/tradectl/internal/command/config/configinit"
	"github.com/tradectl/tradectl/cmd/tradectl/internal/command/config/configvalidate"
)

// NewCommand returns the config parent command with its sub-commands.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	return &appcmd.Command{
		Use:   name,
		Short: "Manage tradectl configuration",
		SubCommands: []*appcmd.Command{
			configinit.NewCommand("init", builder),
			configvalidate.NewCommand("validate", builder),
		},
	}
}
