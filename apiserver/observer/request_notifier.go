// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package observer

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

// MetricsCollector receives a sample for every served request.
type MetricsCollector interface {
	RequestServed(method, route, code string, seconds float64)
}

// RequestObserverContext provides information needed for a RequestObserver
// to operate correctly.
type RequestObserverContext struct {
	// Clock is the clock to use for all time operations on this type.
	Clock clock.Clock

	// Logger is the log to use to write log statements.
	Logger loggo.Logger

	// Metrics receives a sample for every request.
	Metrics MetricsCollector
}

// RequestObserver serves as a sink for API server requests and responses.
type RequestObserver struct {
	clock   clock.Clock
	logger  loggo.Logger
	metrics MetricsCollector

	lastID uint64
}

// NewRequestObserver returns a new RequestObserver.
func NewRequestObserver(ctx RequestObserverContext) *RequestObserver {
	return &RequestObserver{
		clock:   ctx.Clock,
		logger:  ctx.Logger,
		metrics: ctx.Metrics,
	}
}

// Middleware wraps next so that every request is logged and measured. It is
// intended to be installed with mux.Router.Use, so that the matched route
// template is known.
func (n *RequestObserver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := atomic.AddUint64(&n.lastID, 1)
		start := n.clock.Now()
		n.logger.Tracef("<- [%X] %s %s from %s", id, req.Method, req.URL.Path, req.RemoteAddr)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		elapsed := n.clock.Now().Sub(start)
		n.logger.Debugf("-> [%X] %s %s %d %v", id, req.Method, req.URL.Path, rec.status, elapsed)
		if n.metrics != nil {
			n.metrics.RequestServed(req.Method, routeTemplate(req), strconv.Itoa(rec.status), elapsed.Seconds())
		}
	})
}

func routeTemplate(req *http.Request) string {
	route := mux.CurrentRoute(req)
	if route == nil {
		return "unmatched"
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return "unmatched"
	}
	return tmpl
}

// statusRecorder remembers the status code written through it. It supports
// hijacking so that websocket upgrades pass through.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.NotSupportedf("hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	r.wroteHeader = true
	return hijacker.Hijack()
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
