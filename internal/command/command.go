// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package command defines the closed set of messages the command loop
// accepts and the reply channels that carry results back to callers.
//
// Reply channels must always be created with buffer capacity 1. That
// convention is what lets the loop's send never block regardless of
// whether the original caller is still waiting on it — the Go analogue of
// a dropped oneshot receiver.
package command

import (
	"github.com/solidcoredata/colbase/internal/container"
	"github.com/solidcoredata/colbase/internal/layout"
)

// Index asks the loop to validate and commit one row insertion.
type Index struct {
	Params container.IndexParams
	Reply  chan<- error
}

// AddMapFn asks the loop to compile source and register it under name.
type AddMapFn struct {
	Name   string
	Source string
	Reply  chan<- error
}

// InvokeMap asks the loop to run the named filter over every row and
// return the rows it kept, in original order.
type InvokeMap struct {
	Name  string
	Reply chan<- InvokeMapResult
}

// InvokeMapResult is what comes back on an InvokeMap's reply channel.
type InvokeMapResult struct {
	Rows []layout.Row
	Err  error
}
