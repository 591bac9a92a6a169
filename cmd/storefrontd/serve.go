// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/juju/storefront/apiserver"
	"github.com/juju/storefront/apiserver/observer/metrics"
	"github.com/juju/storefront/cmd"
	"github.com/juju/storefront/controller"
	"github.com/juju/storefront/domain/servicefactory"
	"github.com/juju/storefront/internal/auth"
	"github.com/juju/storefront/internal/database"
	"github.com/juju/storefront/internal/mail"
	catalogpubsub "github.com/juju/storefront/internal/pubsub/catalog"
	"github.com/juju/storefront/internal/worker/httpserver"
)

const serveDoc = `
serve opens the database, applies any outstanding schema changes and
serves the storefront until it receives SIGINT or SIGTERM. In-flight
requests are given shutdown-timeout to finish.
`

// mailWait is how long a verification or reset mail waits for the send
// rate limit.
const mailWait = 10 * time.Second

type serveCommand struct {
	configCommandBase

	listenAddress string
}

func newServeCommand() cmd.Command {
	return &serveCommand{}
}

// Info implements Command.
func (c *serveCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "serve",
		Purpose: "serve the storefront",
		Doc:     serveDoc,
	}
}

// SetFlags implements Command.
func (c *serveCommand) SetFlags(f *gnuflag.FlagSet) {
	c.configCommandBase.SetFlags(f)
	f.StringVar(&c.listenAddress, "listen", "", "Override listen-address")
}

// Init implements Command.
func (c *serveCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

// Run implements Command.
func (c *serveCommand) Run(ctx *cmd.Context) error {
	cfg, err := c.readConfig(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if c.listenAddress != "" {
		cfg.ListenAddress = c.listenAddress
		if err := cfg.Validate(); err != nil {
			return errors.Trace(err)
		}
	}

	restoreLogging, err := setupLogging(ctx, cfg)
	if err != nil {
		return errors.Trace(err)
	}
	defer restoreLogging()

	sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, tracked, err := openDatabase(sigCtx, ctx, cfg)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() { _ = db.Close() }()

	mailer, err := newMailer(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	tokens, err := auth.NewTokenIssuer([]byte(cfg.JWTSecret), clock.WallClock)
	if err != nil {
		return errors.Annotate(err, "creating token issuer")
	}

	collector := metrics.NewMetricsCollector()
	registry := prometheus.NewRegistry()
	for _, coll := range []prometheus.Collector{
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(coll); err != nil {
			return errors.Annotate(err, "registering metrics")
		}
	}

	hub := catalogpubsub.NewHub()
	factory := servicefactory.NewServiceFactory(database.TxnRunnerFactory(tracked), hub, clock.WallClock)
	server, err := apiserver.NewServer(apiserver.Config{
		Clock:                clock.WallClock,
		Catalog:              factory.Catalog(),
		Carts:                factory.Carts(),
		Tickets:              factory.Tickets(),
		Users:                factory.Users(),
		Tokens:               tokens,
		Mailer:               mailer,
		Hub:                  hub,
		Metrics:              collector,
		MetricsHandler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AccessTokenTTL:       cfg.AccessTokenTTL,
		VerificationTokenTTL: cfg.VerificationTokenTTL,
		ResetTokenTTL:        cfg.ResetTokenTTL,
		FrontendURL:          cfg.FrontendURL,
	})
	if err != nil {
		return errors.Annotate(err, "creating api server")
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return errors.Annotatef(err, "listening on %q", cfg.ListenAddress)
	}
	w, err := httpserver.NewWorker(httpserver.Config{
		Listener:        listener,
		Handler:         server,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	if err != nil {
		_ = listener.Close()
		return errors.Annotate(err, "starting http server")
	}
	ctx.Infof("serving on %s", w.URL())

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(w.Wait)
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("shutting down")
		// Closing the server ends the realtime feeds, which would
		// otherwise hold the graceful shutdown open.
		server.Stop()
		w.Kill()
		return nil
	})
	return errors.Trace(g.Wait())
}

// newMailer returns an SMTP mailer when a relay is configured, otherwise a
// mailer that only logs.
func newMailer(cfg controller.Config) (mail.Mailer, error) {
	if cfg.SMTPHost == "" {
		logger.Warningf("no smtp-host configured, mail will be logged and not sent")
		return mail.LogMailer{}, nil
	}
	mailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
		Host:          cfg.SMTPHost,
		Port:          cfg.SMTPPort,
		Username:      cfg.SMTPUsername,
		Password:      cfg.SMTPPassword,
		From:          cfg.MailFrom,
		RatePerMinute: cfg.MailRateLimit,
		MaxWait:       mailWait,
	})
	if err != nil {
		return nil, errors.Annotate(err, "creating smtp mailer")
	}
	return mailer, nil
}
