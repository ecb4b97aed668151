// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package autoindex implements the crash-safe monotonic row identifier
// allocator: a single 64-bit counter persisted as JSON in its own sidecar.
package autoindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const sidecarName = "auto_index"

type sidecar struct {
	Counter int64 `json:"counter"`
}

// Counter is the persistent monotonic identifier allocator. It is never
// negative; Rollback may only be called when Current() > 0.
type Counter struct {
	path    string
	counter int64
}

// LoadOrNew loads the counter sidecar from dir. Any read, parse, or
// file-absent condition degrades tolerantly to a fresh zero counter rather
// than failing — first-run and corrupted-sidecar are treated the same way.
func LoadOrNew(dir string) *Counter {
	path := filepath.Join(dir, sidecarName)
	c := &Counter{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var s sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return c
	}
	if s.Counter < 0 {
		return c
	}
	c.counter = s.Counter
	return c
}

// Current returns the in-memory counter value.
func (c *Counter) Current() int64 {
	return c.counter
}

// Next increments and returns the new counter value.
func (c *Counter) Next() int64 {
	c.counter++
	return c.counter
}

// Rollback decrements the counter. It returns an error, leaving the counter
// unchanged, if called when Current() == 0; callers (the container) must
// never reach that state.
func (c *Counter) Rollback() error {
	if c.counter <= 0 {
		return errors.New("autoindex: rollback called at zero")
	}
	c.counter--
	return nil
}

// Commit persists the current counter value, overwriting the sidecar.
func (c *Counter) Commit() error {
	data, err := json.Marshal(sidecar{Counter: c.counter})
	if err != nil {
		return fmt.Errorf("autoindex: marshal: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("autoindex: write %q: %w", c.path, err)
	}
	return nil
}
