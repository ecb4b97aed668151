// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package commandloop is the single long-lived task that owns the
// container and is the only entity that mutates it. Messages are
// processed strictly in arrival order off a bounded queue.
package commandloop

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/solidcoredata/colbase/internal/command"
	"github.com/solidcoredata/colbase/internal/container"
	"github.com/solidcoredata/colbase/internal/layout"
	"github.com/solidcoredata/colbase/internal/metrics"
)

// QueueCapacity is the bounded capacity of the main command queue; once
// full, senders experience backpressure as this system's admission control.
const QueueCapacity = 8192

// intermediateCapacity is the bounded capacity of the per-InvokeMap row
// queue between Container.Query and the filter.
const intermediateCapacity = 10000

// FilterRuntime is the subset of *filterrt.Runtime the loop depends on.
// Expressed as an interface so tests can inject a fake without invoking a
// real sandbox.
type FilterRuntime interface {
	CompileAndStore(source, name string) error
	Execute(name string, row layout.Row) (bool, error)
}

// Loop owns a Container and a FilterRuntime and serializes every operation
// against them.
type Loop struct {
	container *container.Container
	filter    FilterRuntime
	log       *zap.Logger
	queue     chan interface{}
}

// New returns a Loop with a freshly allocated, bounded queue.
func New(c *container.Container, f FilterRuntime, log *zap.Logger) *Loop {
	return &Loop{
		container: c,
		filter:    f,
		log:       log,
		queue:     make(chan interface{}, QueueCapacity),
	}
}

// Queue returns the channel callers send command.Index, command.AddMapFn
// and command.InvokeMap messages on.
func (l *Loop) Queue() chan<- interface{} {
	return l.queue
}

// Run processes messages until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-l.queue:
			l.dispatch(ctx, msg)
		}
	}
}

func (l *Loop) dispatch(ctx context.Context, msg interface{}) {
	switch m := msg.(type) {
	case command.Index:
		l.handleIndex(m)
	case command.AddMapFn:
		l.handleAddMapFn(m)
	case command.InvokeMap:
		l.handleInvokeMap(ctx, m)
	default:
		l.log.Warn("commandloop: unknown message type", zap.Any("message", msg))
	}
}

func (l *Loop) handleIndex(m command.Index) {
	err := l.container.Index(m.Params)
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		l.log.Debug("index rejected", zap.Error(err))
	}
	metrics.CommandsTotal.WithLabelValues("index", outcome).Inc()
	sendReply(l.log, m.Reply, err)
}

func (l *Loop) handleAddMapFn(m command.AddMapFn) {
	err := l.filter.CompileAndStore(m.Source, m.Name)
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		l.log.Warn("add_map_fn failed", zap.String("name", m.Name), zap.Error(err))
	}
	metrics.CommandsTotal.WithLabelValues("add_map_fn", outcome).Inc()
	sendReply(l.log, m.Reply, err)
}

// handleInvokeMap creates the intermediate queue, runs the full-scan query
// concurrently in its own goroutine, and consumes rows from the loop's own
// goroutine as they arrive. Running Query concurrently, rather than fully
// awaiting it before consuming, avoids a deadlock once the row count
// exceeds the intermediate queue's capacity.
func (l *Loop) handleInvokeMap(ctx context.Context, m command.InvokeMap) {
	intermediate := make(chan layout.Row, intermediateCapacity)
	queryErr := make(chan error, 1)

	go func() {
		queryErr <- l.container.Query(intermediate)
	}()

	var kept []layout.Row
	for row := range intermediate {
		start := time.Now()
		ok, err := l.filter.Execute(m.Name, row)
		metrics.FilterExecutionSeconds.WithLabelValues(m.Name).Observe(time.Since(start).Seconds())
		if err != nil {
			l.log.Warn("filter execution failed, skipping row", zap.String("name", m.Name), zap.Error(err))
			continue
		}
		if ok {
			kept = append(kept, row)
		}
	}
	metrics.RowsKeptTotal.WithLabelValues(m.Name).Add(float64(len(kept)))

	err := <-queryErr
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.CommandsTotal.WithLabelValues("invoke_map", outcome).Inc()

	m.Reply <- command.InvokeMapResult{Rows: kept, Err: err}
}

// sendReply sends the result on reply. Every reply channel in this package
// is created by its caller with buffer capacity 1, so this send never
// blocks regardless of whether the caller is still waiting on it — the Go
// analogue of a dropped oneshot receiver not panicking the sender.
func sendReply(log *zap.Logger, reply chan<- error, err error) {
	reply <- err
}
