// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package start provides the process lifecycle colbased runs under: wait
// for an interrupt signal, cancel a shared context, and give the run
// function a bounded grace period to unwind before forcing a return. The
// store itself needs no flush hook on exit (every commit is already
// durable on disk), so RunAll's concurrent group is what actually matters
// here: it runs the command loop and the HTTP front-end side by side and
// tears both down together if either returns an error.
package start

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// StartFunc is a long-running task that should stop promptly once ctx is
// cancelled.
type StartFunc func(ctx context.Context) error

// Start runs run until an interrupt signal arrives, then cancels its
// context and waits up to stopTimeout for it to return before giving up.
func Start(ctx context.Context, stopTimeout time.Duration, run StartFunc) error {
	notify := make(chan os.Signal, 3)
	signal.Notify(notify, os.Interrupt)
	ctx, cancel := context.WithCancel(ctx)
	once := &sync.Once{}
	fin := make(chan bool)
	unlock := func() {
		close(fin)
	}
	unlockOnce := func() {
		once.Do(unlock)
	}
	runErr := atomic.Value{}
	go func() {
		err := run(ctx)
		if err != nil {
			runErr.Store(err)
		}
		unlockOnce()
	}()
	select {
	case <-notify:
	case <-fin:
	}
	cancel()
	go func() {
		<-time.After(stopTimeout)
		unlockOnce()
	}()
	<-fin
	if err, ok := runErr.Load().(error); ok {
		return err
	}
	return nil
}

// RunAll runs every task concurrently under a shared context; the first
// one to return an error cancels the rest.
func RunAll(ctx context.Context, runs ...func(ctx context.Context) error) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, run := range runs {
		run := run
		group.Go(func() error { return run(ctx) })
	}

	return group.Wait()
}
