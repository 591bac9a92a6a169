// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package observer

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/clock/testclock"
	"github.com/juju/loggo/v2"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type requestObserverSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&requestObserverSuite{})

type sample struct {
	method, route, code string
}

type recordingMetrics struct {
	samples []sample
}

func (m *recordingMetrics) RequestServed(method, route, code string, _ float64) {
	m.samples = append(m.samples, sample{method, route, code})
}

func (s *requestObserverSuite) TestMiddlewareRecordsRoute(c *gc.C) {
	metrics := &recordingMetrics{}
	obs := NewRequestObserver(RequestObserverContext{
		Clock:   testclock.NewClock(time.Now()),
		Logger:  loggo.GetLogger("test"),
		Metrics: metrics,
	})

	router := mux.NewRouter()
	router.Use(obs.Middleware)
	router.HandleFunc("/products/{pid}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods("GET")
	router.HandleFunc("/carts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}).Methods("POST")

	for _, req := range []*http.Request{
		httptest.NewRequest("GET", "/products/abc", nil),
		httptest.NewRequest("POST", "/carts", nil),
	} {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	c.Check(metrics.samples, jc.DeepEquals, []sample{
		{"GET", "/products/{pid}", "404"},
		{"POST", "/carts", "200"},
	})
}

func (s *requestObserverSuite) TestStatusRecorderKeepsFirstStatus(c *gc.C) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	rec.WriteHeader(http.StatusCreated)
	rec.WriteHeader(http.StatusInternalServerError)
	c.Check(rec.status, gc.Equals, http.StatusCreated)
}
