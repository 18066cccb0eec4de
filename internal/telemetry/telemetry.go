// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry is opt-in, hot-path-safe instrumentation for the
// communication core: queue depth, stage latency, ready-table pending
// count, and alltoall/allgather completion counters. Grounded on
// internal/ratelimiter/telemetry/churn's Enable(Config)/no-op-when-disabled
// shape, generalized from VSA-specific KPIs (write reduction, churn
// ratio) to stage-pipeline KPIs.
package telemetry

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the telemetry module. All fields are optional; the
// zero value disables telemetry entirely.
type Config struct {
	Enabled     bool
	MetricsAddr string // e.g. ":9090"; empty disables the standalone endpoint
}

var modEnabled atomic.Bool

var (
	queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "distcomm_queue_depth",
		Help: "Current number of tasks queued per stage",
	}, []string{"stage"})

	stageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "distcomm_stage_latency_seconds",
		Help:    "Latency of one stage invocation",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	readyTablePending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "distcomm_ready_table_pending",
		Help: "Number of keys currently signaled ready but not yet consumed",
	})

	alltoallCompletions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "distcomm_alltoall_completions_total",
		Help: "Total alltoall operations whose callback has fired",
	})

	allgatherCompletions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "distcomm_allgather_completions_total",
		Help: "Total allgather operations whose callback has fired",
	})

	stageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "distcomm_stage_errors_total",
		Help: "Total stage invocations that returned a non-nil Status",
	}, []string{"stage", "kind"})

	serverBytesRouted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "distcomm_server_bytes_routed_total",
		Help: "Accumulated bytes routed to each server index by keycodec.Router",
	}, []string{"server"})
)

func init() {
	prometheus.MustRegister(queueDepth, stageLatency, readyTablePending, alltoallCompletions, allgatherCompletions, stageErrors, serverBytesRouted)
}

// Enable turns telemetry on (or off) and optionally starts a standalone
// /metrics endpoint. Safe to call multiple times.
func Enable(cfg Config) {
	modEnabled.Store(cfg.Enabled)
	if cfg.Enabled && cfg.MetricsAddr != "" {
		startMetricsEndpoint(cfg.MetricsAddr)
	}
}

// Enabled reports whether telemetry is active.
func Enabled() bool { return modEnabled.Load() }

// ObserveQueueDepth records the current depth of a stage's queue.
func ObserveQueueDepth(stage string, depth int) {
	if !modEnabled.Load() {
		return
	}
	queueDepth.WithLabelValues(stage).Set(float64(depth))
}

// ObserveStageLatency records how long one stage invocation took.
func ObserveStageLatency(stage string, d time.Duration) {
	if !modEnabled.Load() {
		return
	}
	stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveReadyTablePending records the current pending count.
func ObserveReadyTablePending(n int) {
	if !modEnabled.Load() {
		return
	}
	readyTablePending.Set(float64(n))
}

// ObserveAlltoallCompletion increments the alltoall completion counter.
func ObserveAlltoallCompletion() {
	if !modEnabled.Load() {
		return
	}
	alltoallCompletions.Inc()
}

// ObserveAllgatherCompletion increments the allgather completion counter.
func ObserveAllgatherCompletion() {
	if !modEnabled.Load() {
		return
	}
	allgatherCompletions.Inc()
}

// ObserveStageError records a stage failure by stage name and status kind.
func ObserveStageError(stage, kind string) {
	if !modEnabled.Load() {
		return
	}
	stageErrors.WithLabelValues(stage, kind).Inc()
}

// ObserveServerBytesRouted records bytes routed to a server index, the
// supplemented per-server accumulated-length tracking from
// original_source/byteps/common/global.cc's _server_accumulated_len.
func ObserveServerBytesRouted(serverIndex int, n int64) {
	if !modEnabled.Load() || n <= 0 {
		return
	}
	serverBytesRouted.WithLabelValues(itoa(serverIndex)).Add(float64(n))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func startMetricsEndpoint(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
