// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

// SuperCommandParams provides a way to have default parameter to the
// NewSuperCommand call.
type SuperCommandParams struct {
	Name    string
	Purpose string
	Doc     string

	// NotifyRun is called with the name of the sub command before it runs.
	NotifyRun func(name string)
}

// SuperCommand is a Command that selects a sub command and assumes its
// properties. Its flags are the flags of the chosen sub command.
type SuperCommand struct {
	CommandBase

	name      string
	purpose   string
	doc       string
	notifyRun func(string)

	subcmds map[string]Command
	action  Command
	flags   *gnuflag.FlagSet
}

// NewSuperCommand creates and initializes a new SuperCommand.
func NewSuperCommand(params SuperCommandParams) *SuperCommand {
	return &SuperCommand{
		name:      params.Name,
		purpose:   params.Purpose,
		doc:       params.Doc,
		notifyRun: params.NotifyRun,
		subcmds:   make(map[string]Command),
	}
}

// Register makes a sub command available for use on the command line.
func (c *SuperCommand) Register(subcmd Command) {
	name := subcmd.Info().Name
	if _, found := c.subcmds[name]; found {
		panic(fmt.Sprintf("command already registered: %q", name))
	}
	c.subcmds[name] = subcmd
}

// Info returns a description of the currently selected sub command, or of
// c itself if no sub command has been selected.
func (c *SuperCommand) Info() *Info {
	if c.action != nil {
		info := *c.action.Info()
		info.Name = fmt.Sprintf("%s %s", c.name, info.Name)
		return &info
	}
	return &Info{
		Name:    c.name,
		Args:    "<command> ...",
		Purpose: c.purpose,
		Doc:     strings.TrimSpace(c.doc + "\n\n" + c.describeCommands()),
	}
}

func (c *SuperCommand) describeCommands() string {
	names := make([]string, 0, len(c.subcmds))
	longest := 0
	for name := range c.subcmds {
		names = append(names, name)
		if len(name) > longest {
			longest = len(name)
		}
	}
	sort.Strings(names)
	lines := []string{"commands:"}
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("    %-*s - %s", longest, name, c.subcmds[name].Info().Purpose))
	}
	return strings.Join(lines, "\n")
}

// SetFlags remembers the flag set so that the flags of the chosen sub
// command can be added to it.
func (c *SuperCommand) SetFlags(f *gnuflag.FlagSet) {
	c.flags = f
}

// AllowInterspersedFlags returns false, the flags after the sub command
// name belong to the sub command.
func (c *SuperCommand) AllowInterspersedFlags() bool {
	return false
}

// Init initializes the command for running. The first argument names the
// sub command, whose flags are parsed from the remaining arguments.
func (c *SuperCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no command specified")
	}
	found := c.subcmds[args[0]]
	if found == nil {
		return errors.Errorf("unrecognized command: %s %s", c.name, args[0])
	}
	c.action = found
	if c.flags == nil {
		c.flags = gnuflag.NewFlagSet(c.name, gnuflag.ContinueOnError)
	}
	c.action.SetFlags(c.flags)
	return ParseArgs(c.action, c.flags, args[1:])
}

// Run executes the sub command that was selected in Init.
func (c *SuperCommand) Run(ctx *Context) error {
	if c.action == nil {
		return errors.New("no command selected")
	}
	if c.notifyRun != nil {
		c.notifyRun(c.action.Info().Name)
	}
	return c.action.Run(ctx)
}
