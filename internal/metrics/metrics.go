// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics defines the Prometheus collectors the command loop and
// HTTP front-end update, exposed at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CommandsTotal counts processed commands by kind and outcome.
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "colbase",
		Name:      "commands_total",
		Help:      "Number of command-loop messages processed, by kind and outcome.",
	}, []string{"kind", "outcome"})

	// FilterExecutionSeconds times a single per-row filter invocation.
	FilterExecutionSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "colbase",
		Name:      "filter_execution_seconds",
		Help:      "Duration of a single sandboxed filter invocation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"name"})

	// RowsKeptTotal counts rows a filter kept across all InvokeMap calls.
	RowsKeptTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "colbase",
		Name:      "rows_kept_total",
		Help:      "Number of rows a filter returned true for.",
	}, []string{"name"})
)

// Registry returns a registry with all of this package's collectors
// registered, ready to be served on /metrics.
func Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(CommandsTotal, FilterExecutionSeconds, RowsKeptTotal)
	return reg
}
