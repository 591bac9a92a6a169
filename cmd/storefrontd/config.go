// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/storefront/cmd"
	"github.com/juju/storefront/controller"
)

const configDoc = `
config prints the effective server configuration: the defaults, overlaid
by the config file, overlaid by STOREFRONT_ environment variables.
Secrets are redacted unless --show-secrets is given.
`

type configCommand struct {
	configCommandBase

	out         cmd.Output
	showSecrets bool
}

func newConfigCommand() cmd.Command {
	return &configCommand{}
}

// Info implements Command.
func (c *configCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "config",
		Purpose: "print the effective configuration",
		Doc:     configDoc,
	}
}

// SetFlags implements Command.
func (c *configCommand) SetFlags(f *gnuflag.FlagSet) {
	c.configCommandBase.SetFlags(f)
	f.BoolVar(&c.showSecrets, "show-secrets", false, "Show secret values")
	c.out.AddFlags(f, "yaml", cmd.DefaultFormatters)
}

// Init implements Command.
func (c *configCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

// Run implements Command.
func (c *configCommand) Run(ctx *cmd.Context) error {
	cfg, err := c.readConfig(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	attrs, err := controller.EncodeToString(cfg, c.showSecrets)
	if err != nil {
		return errors.Trace(err)
	}
	return c.out.Write(ctx, attrs)
}
