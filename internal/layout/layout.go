// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package layout implements the ordered set of (name, type) pairs that
// defines the columns of a container, its JSON sidecar persistence, and
// multi-column commit.
package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/solidcoredata/colbase/internal/cell"
	"github.com/solidcoredata/colbase/internal/column"
)

const sidecarName = "column_layout.json"

// ErrNotFound is returned by Load when the sidecar does not exist, so the
// container can distinguish first-run from corruption.
var ErrNotFound = errors.New("layout: sidecar not found")

type sidecarPair struct {
	Name string         `json:"name"`
	Type cell.DataType  `json:"type"`
}

// Row is the logical name→cell mapping for one row, produced by zipping the
// columns vector at a given row index.
type Row map[string]cell.Cell

// Layout is the ordered set of columns rooted at a single directory.
type Layout struct {
	dir     string
	names   []string
	types   []cell.DataType
	columns []*column.Column
}

// New returns an empty layout rooted at dir.
func New(dir string) *Layout {
	return &Layout{dir: dir}
}

func sidecarPath(dir string) string {
	return filepath.Join(dir, sidecarName)
}

// Load reads the sidecar, opening and loading each column file in order.
// It returns ErrNotFound itself, unwrapped, if the sidecar is absent.
func Load(dir string) (*Layout, error) {
	data, err := os.ReadFile(sidecarPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("layout: read sidecar: %w", err)
	}
	var pairs []sidecarPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("layout: parse sidecar: %w", err)
	}

	l := New(dir)
	for _, p := range pairs {
		col, err := column.Open(dir, p.Name, p.Type)
		if err != nil {
			return nil, fmt.Errorf("layout: open column %q: %w", p.Name, err)
		}
		if err := col.Load(); err != nil {
			return nil, fmt.Errorf("layout: load column %q: %w", p.Name, err)
		}
		l.names = append(l.names, p.Name)
		l.types = append(l.types, p.Type)
		l.columns = append(l.columns, col)
	}
	return l, nil
}

// InsertColumn appends col to both the ordered (name, type) list and the
// columns vector. It does not persist.
func (l *Layout) InsertColumn(col *column.Column) {
	l.names = append(l.names, col.Name)
	l.types = append(l.types, col.Type)
	l.columns = append(l.columns, col)
}

// PersistLayout writes the ordered (name, type) list to the sidecar.
func (l *Layout) PersistLayout() error {
	pairs := make([]sidecarPair, len(l.names))
	for i := range l.names {
		pairs[i] = sidecarPair{Name: l.names[i], Type: l.types[i]}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("layout: marshal sidecar: %w", err)
	}
	if err := os.WriteFile(sidecarPath(l.dir), data, 0o644); err != nil {
		return fmt.Errorf("layout: write sidecar: %w", err)
	}
	return nil
}

// Find returns the column named name, or nil if it does not exist.
func (l *Layout) Find(name string) *column.Column {
	for _, c := range l.columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// TimestampColumn returns the "timestamp" column, or nil if none exists.
func (l *Layout) TimestampColumn() *column.Column {
	return l.Find("timestamp")
}

// Len returns the number of columns in the layout.
func (l *Layout) Len() int {
	return len(l.columns)
}

// ColumnNames returns the ordered column names.
func (l *Layout) ColumnNames() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Pair is one (column name, cell) entry to commit.
type Pair struct {
	Name string
	Cell cell.Cell
}

// Commit appends each pair's cell to its named column, in order, returning
// on first error. Validation is assumed to have already run by the caller;
// any failure here is strictly I/O.
func (l *Layout) Commit(pairs []Pair) error {
	for _, p := range pairs {
		col := l.Find(p.Name)
		if col == nil {
			return fmt.Errorf("layout: commit: no such column %q", p.Name)
		}
		if _, err := col.Append(p.Cell); err != nil {
			return fmt.Errorf("layout: commit column %q: %w", p.Name, err)
		}
	}
	return nil
}

// AllRows asserts every column has the same length and yields a finite
// ordered sequence of row frames, frame n being the tuple of column n-th
// cells. A length mismatch is fatal corruption.
func (l *Layout) AllRows() ([]Row, error) {
	if len(l.columns) == 0 {
		return nil, nil
	}
	rowCount := l.columns[0].Len()
	for _, c := range l.columns {
		if c.Len() != rowCount {
			return nil, fmt.Errorf("layout: corrupt: column %q has length %d, expected %d", c.Name, c.Len(), rowCount)
		}
	}
	rows := make([]Row, rowCount)
	for i := 0; i < rowCount; i++ {
		frame := make(Row, len(l.columns))
		for _, c := range l.columns {
			frame[c.Name] = c.Entries()[i]
		}
		rows[i] = frame
	}
	return rows, nil
}
