// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"github.com/juju/errors"
)

// FileVar represents a path to a file given on the command line.
type FileVar struct {
	// Path is the path to the file.
	Path string
}

// Set stores the path name.
func (f *FileVar) Set(v string) error {
	if v == "" {
		return errors.NotValidf("empty path")
	}
	f.Path = v
	return nil
}

// AbsPath returns the path interpreted relative to ctx, or the empty string
// if no path was set.
func (f *FileVar) AbsPath(ctx *Context) string {
	if f.Path == "" {
		return ""
	}
	return ctx.AbsPath(f.Path)
}

// String returns the path to the file.
func (f *FileVar) String() string {
	return f.Path
}
