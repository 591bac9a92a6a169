// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"database/sql"
	"io"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/lumberjack/v2"

	"github.com/juju/storefront/cmd"
	"github.com/juju/storefront/controller"
	"github.com/juju/storefront/domain/schema"
	"github.com/juju/storefront/internal/database"
)

// configCommandBase is embedded by commands that read the server config.
type configCommandBase struct {
	cmd.CommandBase

	configFile cmd.FileVar
}

// SetFlags adds the --config flag.
func (c *configCommandBase) SetFlags(f *gnuflag.FlagSet) {
	f.Var(&c.configFile, "config", "Path to the YAML config file")
}

// readConfig reads the config file, if any, and applies the environment of
// ctx.
func (c *configCommandBase) readConfig(ctx *cmd.Context) (controller.Config, error) {
	cfg, err := controller.ReadConfig(c.configFile.AbsPath(ctx), ctx.Env)
	if err != nil {
		return controller.Config{}, errors.Annotate(err, "reading config")
	}
	return cfg, nil
}

// setupLogging configures loggo from cfg. Logs are written to a rotating
// file when log-file is set, otherwise to stderr. The returned func
// restores the previous writer and closes the file.
func setupLogging(ctx *cmd.Context, cfg controller.Config) (func(), error) {
	if err := loggo.ConfigureLoggers(cfg.LoggingConfig); err != nil {
		return nil, errors.Annotate(err, "configuring loggers")
	}

	var (
		target io.Writer = ctx.Stderr
		closer io.Closer
	)
	if cfg.LogFile != "" {
		ljLogger := &lumberjack.Logger{
			Filename:   ctx.AbsPath(cfg.LogFile),
			MaxSize:    cfg.LogFileMaxSize, // megabytes
			MaxBackups: cfg.LogFileMaxBackups,
			Compress:   true,
		}
		target, closer = ljLogger, ljLogger
	}

	previous, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(target, loggo.DefaultFormatter))
	if err != nil {
		return nil, errors.Annotate(err, "replacing default log writer")
	}
	if cfg.LogFile != "" {
		logger.Debugf("created rotating log file %q with max size %d MB and max backups %d",
			cfg.LogFile, cfg.LogFileMaxSize, cfg.LogFileMaxBackups)
	}
	return func() {
		_, _ = loggo.ReplaceDefaultWriter(previous)
		if closer != nil {
			_ = closer.Close()
		}
	}, nil
}

// openDatabase opens the database named by cfg and brings its schema up to
// date.
func openDatabase(ctx context.Context, cmdCtx *cmd.Context, cfg controller.Config) (*sql.DB, *database.TrackedDB, error) {
	path := cmdCtx.AbsPath(cfg.DatabasePath)
	db, err := database.Open(path)
	if err != nil {
		return nil, nil, errors.Annotatef(err, "opening database %q", path)
	}
	tracked := database.NewTrackedDB(db)

	changes, err := schema.StorefrontDDL().Ensure(ctx, tracked)
	if err != nil {
		_ = db.Close()
		return nil, nil, errors.Annotate(err, "applying schema")
	}
	logger.Infof("database %q at schema version %d (was %d)", path, changes.Post, changes.Current)
	return db, tracked, nil
}
