// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Command storefrontd runs the storefront server.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/juju/loggo/v2"

	"github.com/juju/storefront/cmd"
)

var logger = loggo.GetLogger("storefront.cmd.storefrontd")

const storefrontDoc = `
storefrontd serves the storefront JSON API, its HTML views and the realtime
product feed from a single sqlite database.

Settings are read from the YAML file named by --config and may be
overridden by STOREFRONT_ environment variables, for example
STOREFRONT_SMTP_HOST overrides smtp-host.
`

func main() {
	os.Exit(Main(os.Args[1:]))
}

// Main runs the storefrontd command with the given arguments and returns
// its exit code.
func Main(args []string) int {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		return 2
	}
	return cmd.Main(NewStorefrontCommand(), ctx, args)
}

// NewStorefrontCommand returns the storefrontd super command with every
// sub command registered.
func NewStorefrontCommand() *cmd.SuperCommand {
	storefrontd := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "storefrontd",
		Purpose: "run the storefront server",
		Doc:     storefrontDoc,
		NotifyRun: func(name string) {
			logger.Infof("running %s [%s %s]", name, runtime.Compiler, runtime.Version())
		},
	})
	storefrontd.Register(newServeCommand())
	storefrontd.Register(newSeedCommand())
	storefrontd.Register(newConfigCommand())
	return storefrontd
}
