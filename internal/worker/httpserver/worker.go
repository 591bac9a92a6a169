// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"
)

var logger = loggo.GetLogger("storefront.worker.httpserver")

// Config holds the configuration required to run an HTTP server worker.
type Config struct {
	// Listener is the socket the server accepts connections on. The worker
	// takes ownership of it.
	Listener net.Listener

	// Handler serves every request.
	Handler http.Handler

	// ShutdownTimeout bounds how long in-flight requests are given to
	// finish once the worker is killed.
	ShutdownTimeout time.Duration
}

// Validate checks that the config is usable.
func (config Config) Validate() error {
	if config.Listener == nil {
		return errors.NotValidf("nil Listener")
	}
	if config.Handler == nil {
		return errors.NotValidf("nil Handler")
	}
	if config.ShutdownTimeout <= 0 {
		return errors.NotValidf("non-positive ShutdownTimeout")
	}
	return nil
}

// Worker serves HTTP until it is killed, then shuts the server down
// gracefully.
type Worker struct {
	tomb   tomb.Tomb
	config Config
	server *http.Server
}

var _ worker.Worker = (*Worker)(nil)

// NewWorker starts serving on the configured listener.
func NewWorker(config Config) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &Worker{
		config: config,
		server: &http.Server{
			Handler:           config.Handler,
			ReadHeaderTimeout: 30 * time.Second,
		},
	}
	w.tomb.Go(w.loop)
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *Worker) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Worker) Wait() error {
	return w.tomb.Wait()
}

// Addr returns the address the server is listening on.
func (w *Worker) Addr() net.Addr {
	return w.config.Listener.Addr()
}

// URL returns the base http URL of the server.
func (w *Worker) URL() string {
	return "http://" + w.Addr().String()
}

func (w *Worker) loop() error {
	logger.Infof("listening on %s", w.Addr())

	served := make(chan error, 1)
	go func() {
		served <- w.server.Serve(w.config.Listener)
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Annotate(err, "serving http")
	case <-w.tomb.Dying():
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.config.ShutdownTimeout)
	defer cancel()

	logger.Infof("shutting down http server")
	if err := w.server.Shutdown(ctx); err != nil {
		logger.Warningf("graceful shutdown failed: %v", err)
		if err := w.server.Close(); err != nil {
			return errors.Annotate(err, "closing http server")
		}
	}
	<-served
	return tomb.ErrDying
}
