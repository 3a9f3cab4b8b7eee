// Package telemetry starts the pprof and metrics endpoints cmd/flowengine
// exposes, adapted in place from common/telemetry. That
// package left its Prometheus metrics endpoint as a TODO;
// this engine fills it in with the handful of counters the scheduler and
// transports actually produce (runs started/finished/failed, events
// received per transport), since no suitable metrics client library was
// available to wire instead.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"sync/atomic"
	"time"

	"github.com/lyzr/flowengine/internal/logger"
)

// Telemetry holds the observability endpoints for one process.
type Telemetry struct {
	log         *logger.Logger
	pprofAddr   string
	metricsAddr string

	runsStarted  atomic.Int64
	runsOK       atomic.Int64
	runsFailed   atomic.Int64
	eventsByKind map[string]*atomic.Int64
}

// New builds a Telemetry instance bound to the given pprof/metrics
// ports, matching common/telemetry's constructor shape.
func New(pprofPort, metricsPort int, log *logger.Logger) *Telemetry {
	return &Telemetry{
		log:         log,
		pprofAddr:   fmt.Sprintf("localhost:%d", pprofPort),
		metricsAddr: fmt.Sprintf("localhost:%d", metricsPort),
		eventsByKind: map[string]*atomic.Int64{
			"http": {}, "chat": {}, "mail": {},
		},
	}
}

// Start launches the pprof server (always) and the metrics server (a
// small text exposition format, not Prometheus' wire format, since this
// engine carries no Prometheus client dependency).
func (t *Telemetry) Start(ctx context.Context) error {
	go func() {
		t.log.Info("pprof server starting", "addr", t.pprofAddr)
		if err := http.ListenAndServe(t.pprofAddr, nil); err != nil {
			t.log.Error("pprof server error", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", t.serveMetrics)
	go func() {
		t.log.Info("metrics server starting", "addr", t.metricsAddr)
		if err := http.ListenAndServe(t.metricsAddr, mux); err != nil {
			t.log.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

func (t *Telemetry) serveMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "flowengine_runs_started %d\n", t.runsStarted.Load())
	fmt.Fprintf(w, "flowengine_runs_ok %d\n", t.runsOK.Load())
	fmt.Fprintf(w, "flowengine_runs_failed %d\n", t.runsFailed.Load())
	for kind, counter := range t.eventsByKind {
		fmt.Fprintf(w, "flowengine_events_total{transport=%q} %d\n", kind, counter.Load())
	}
}

// RecordRunStarted/RecordRunOK/RecordRunFailed track scheduler outcomes.
func (t *Telemetry) RecordRunStarted() { t.runsStarted.Add(1) }
func (t *Telemetry) RecordRunOK()      { t.runsOK.Add(1) }
func (t *Telemetry) RecordRunFailed()  { t.runsFailed.Add(1) }

// RecordEventReceived counts one inbound event per transport kind
// ("http", "chat", "mail").
func (t *Telemetry) RecordEventReceived(kind string) {
	if counter, ok := t.eventsByKind[kind]; ok {
		counter.Add(1)
	}
}

// RecordDuration logs an operation's duration, matching common/telemetry's
// debug-level timing log.
func (t *Telemetry) RecordDuration(operation string, start time.Time) {
	t.log.Debug("operation completed", "operation", operation, "duration_ms", time.Since(start).Milliseconds())
}
