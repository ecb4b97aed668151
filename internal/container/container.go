// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package container implements schema-aware row insertion with validation,
// timestamp injection, identifier allocation, atomic-per-row commit, and
// full-scan row streaming. It is the only component permitted to expose
// the compound index operation; the counter and column vectors are never
// exposed directly to callers.
package container

import (
	"fmt"
	"time"

	"github.com/solidcoredata/colbase/internal/autoindex"
	"github.com/solidcoredata/colbase/internal/cell"
	"github.com/solidcoredata/colbase/internal/column"
	"github.com/solidcoredata/colbase/internal/layout"
)

// ColumnSchema names and types one user-supplied column.
type ColumnSchema struct {
	Name     string
	DataType cell.DataType
}

// Schema is the parsed `schema.json` configuration.
type Schema struct {
	Columns           []ColumnSchema
	AddTimestampColumn bool
}

// Error taxonomy. Validation and type errors are caller-visible (422-style);
// IoError and IndexError map to 500-style responses; CorruptionPanic is
// fatal. See layout.AllRows and column.Load for the corruption paths.
type InvalidFieldsError struct{ Names []string }

func (e *InvalidFieldsError) Error() string {
	return fmt.Sprintf("invalid fields: %v", e.Names)
}

type InvalidDataTypeError struct {
	Value    interface{}
	Declared cell.DataType
}

func (e *InvalidDataTypeError) Error() string {
	return fmt.Sprintf("value %v is not compatible with declared type %s", e.Value, e.Declared)
}

type FieldCountMismatchError struct {
	Expected, Got int
}

func (e *FieldCountMismatchError) Error() string {
	return fmt.Sprintf("field count mismatch: expected %d, got %d", e.Expected, e.Got)
}

var ErrMissingTimestampColumn = fmt.Errorf("container: timestamp configured but absent from layout (corruption)")

// IndexParams is the input to Index: a caller-ordered set of field names
// and their external JSON values.
type IndexParams struct {
	Fields []string
	Values []interface{}
}

// Container owns one directory's counter and column layout. It is the only
// writer of either.
type Container struct {
	dir       string
	schema    Schema
	counter   *autoindex.Counter
	layout    *layout.Layout
	userNames []string

	hasTimestamp bool
}

// Open loads the auto-index counter from dir and attempts to load the
// column layout. If the sidecar is absent, a fresh layout is constructed
// from schema: first "id" (Int), then each user column in schema order,
// then (if configured) "timestamp" (Int). If the sidecar is present, it is
// trusted verbatim — schema changes against an existing store are
// undefined behavior and out of scope.
func Open(dir string, schema Schema) (*Container, error) {
	counter := autoindex.LoadOrNew(dir)

	l, err := layout.Load(dir)
	switch {
	case err == nil:
		return fromExistingLayout(dir, schema, counter, l)
	case err == layout.ErrNotFound:
		return fromFreshSchema(dir, schema, counter)
	default:
		return nil, fmt.Errorf("container: open: %w", err)
	}
}

func fromFreshSchema(dir string, schema Schema, counter *autoindex.Counter) (*Container, error) {
	l := layout.New(dir)

	idCol, err := column.Open(dir, "id", cell.TypeInt)
	if err != nil {
		return nil, fmt.Errorf("container: open id column: %w", err)
	}
	l.InsertColumn(idCol)

	userNames := make([]string, 0, len(schema.Columns))
	for _, cs := range schema.Columns {
		col, err := column.Open(dir, cs.Name, cs.DataType)
		if err != nil {
			return nil, fmt.Errorf("container: open column %q: %w", cs.Name, err)
		}
		l.InsertColumn(col)
		userNames = append(userNames, cs.Name)
	}

	if schema.AddTimestampColumn {
		tsCol, err := column.Open(dir, "timestamp", cell.TypeInt)
		if err != nil {
			return nil, fmt.Errorf("container: open timestamp column: %w", err)
		}
		l.InsertColumn(tsCol)
	}

	if err := l.PersistLayout(); err != nil {
		return nil, fmt.Errorf("container: persist layout: %w", err)
	}

	return &Container{
		dir: dir, schema: schema, counter: counter, layout: l,
		userNames: userNames, hasTimestamp: schema.AddTimestampColumn,
	}, nil
}

func fromExistingLayout(dir string, schema Schema, counter *autoindex.Counter, l *layout.Layout) (*Container, error) {
	hasTimestamp := l.TimestampColumn() != nil

	var userNames []string
	for _, name := range l.ColumnNames() {
		if name == "id" || name == "timestamp" {
			continue
		}
		userNames = append(userNames, name)
	}

	return &Container{
		dir: dir, schema: schema, counter: counter, layout: l,
		userNames: userNames, hasTimestamp: hasTimestamp,
	}, nil
}

// Index validates, stages and commits one row insertion.
func (c *Container) Index(params IndexParams) error {
	if err := c.validate(params); err != nil {
		return err
	}

	pairs := []layout.Pair{
		{Name: "id", Cell: cell.Int(c.counter.Next())},
	}

	if c.hasTimestamp {
		if c.layout.TimestampColumn() == nil {
			_ = c.counter.Rollback()
			return ErrMissingTimestampColumn
		}
		pairs = append(pairs, layout.Pair{Name: "timestamp", Cell: cell.Int(time.Now().Unix())})
	}

	for i, name := range params.Fields {
		col := c.layout.Find(name)
		value := params.Values[i]
		if !cell.IsCompatible(value, col.Type) {
			_ = c.counter.Rollback()
			return &InvalidDataTypeError{Value: value, Declared: col.Type}
		}
		cv, ok := cell.FromExternal(value)
		if !ok {
			_ = c.counter.Rollback()
			return &InvalidDataTypeError{Value: value, Declared: col.Type}
		}
		pairs = append(pairs, layout.Pair{Name: name, Cell: cv})
	}

	if err := c.layout.Commit(pairs); err != nil {
		return fmt.Errorf("container: commit: %w", err)
	}
	if err := c.counter.Commit(); err != nil {
		return fmt.Errorf("container: commit counter: %w", err)
	}
	return nil
}

func (c *Container) validate(params IndexParams) error {
	expected := len(c.userNames)
	if len(params.Fields) != expected {
		return &FieldCountMismatchError{Expected: expected, Got: len(params.Fields)}
	}
	if len(params.Fields) != len(params.Values) {
		return &FieldCountMismatchError{Expected: len(params.Fields), Got: len(params.Values)}
	}

	if c.hasTimestamp {
		for _, f := range params.Fields {
			if f == "timestamp" {
				return &InvalidFieldsError{Names: []string{"timestamp"}}
			}
		}
	}

	known := make(map[string]bool, len(c.userNames))
	for _, n := range c.userNames {
		known[n] = true
	}
	var unknown []string
	for _, f := range params.Fields {
		if !known[f] {
			unknown = append(unknown, f)
		}
	}
	if len(unknown) > 0 {
		return &InvalidFieldsError{Names: unknown}
	}
	return nil
}

// Query sends a row frame on sink for every row in the layout, in order,
// then closes sink.
func (c *Container) Query(sink chan<- layout.Row) error {
	defer close(sink)
	rows, err := c.layout.AllRows()
	if err != nil {
		return fmt.Errorf("container: query: %w", err)
	}
	for _, row := range rows {
		sink <- row
	}
	return nil
}
