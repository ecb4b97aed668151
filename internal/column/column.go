// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package column implements the append-only, checksum-framed log file that
// backs a single column, and the in-memory vector it replays into.
package column

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/solidcoredata/colbase/internal/cell"
)

// frameHeaderSize is checksum(4) + tag(1) + length(4).
const frameHeaderSize = 4 + 1 + 4

// Column is a named, typed, append-only sequence of cells held in its own
// file. Entries is the ordered concatenation of every decoded record from
// file start to end.
type Column struct {
	Name string
	Type cell.DataType

	dir  string
	file *os.File

	entries []cell.Cell
}

func fileName(name string) string {
	return "column_" + name
}

// Open opens (creating if absent) the log file for name under dir with
// read+append semantics. The in-memory vector starts empty; call Load to
// replay any existing records.
func Open(dir string, name string, typ cell.DataType) (*Column, error) {
	path := filepath.Join(dir, fileName(name))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("column: open %q: %w", path, err)
	}
	return &Column{Name: name, Type: typ, dir: dir, file: f}, nil
}

// Load replays every framed record from the start of the file to
// end-of-file, verifying and decoding each one and appending it to Entries.
// It stops cleanly at end-of-file, including at a partial record left at
// the tail by an interrupted append; any other I/O error, or a checksum
// mismatch, is propagated (the latter being fatal corruption).
func (c *Column) Load() error {
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("column %q: seek: %w", c.Name, err)
	}
	header := make([]byte, frameHeaderSize)
	for {
		_, err := io.ReadFull(c.file, header)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// Partial tail from an interrupted append: accept truncation.
			break
		}
		if err != nil {
			return fmt.Errorf("column %q: read header: %w", c.Name, err)
		}
		wantChecksum := binary.LittleEndian.Uint32(header[0:4])
		tag := cell.Tag(header[4])
		length := binary.LittleEndian.Uint32(header[5:9])

		payload := make([]byte, length)
		if _, err := io.ReadFull(c.file, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("column %q: read payload: %w", c.Name, err)
		}
		gotChecksum := cell.Checksum(payload)
		if gotChecksum != wantChecksum {
			return fmt.Errorf("column %q: checksum mismatch: corrupt record (want %08x got %08x)", c.Name, wantChecksum, gotChecksum)
		}
		v, err := cell.Decode(tag, payload)
		if err != nil {
			return fmt.Errorf("column %q: decode: %w", c.Name, err)
		}
		c.entries = append(c.entries, v)
	}
	if _, err := c.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("column %q: seek end: %w", c.Name, err)
	}
	return nil
}

// Append writes one framed record to the end of the file and pushes v onto
// the in-memory vector in the same logical step. It returns the file offset
// at which the record begins.
func (c *Column) Append(v cell.Cell) (offset int64, err error) {
	offset, err = c.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("column %q: seek end: %w", c.Name, err)
	}
	checksum, tag, payload := cell.Encode(v)

	buf := make([]byte, 0, frameHeaderSize+len(payload))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], checksum)
	buf = append(buf, tmp[:]...)
	buf = append(buf, byte(tag))
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(payload)))
	buf = append(buf, tmp[:]...)
	buf = append(buf, payload...)

	if _, err := c.file.Write(buf); err != nil {
		return 0, fmt.Errorf("column %q: write: %w", c.Name, err)
	}
	c.entries = append(c.entries, v)
	return offset, nil
}

// Entries returns the in-memory vector of decoded cells, in file order.
func (c *Column) Entries() []cell.Cell {
	return c.entries
}

// Len reports the number of entries currently held in memory.
func (c *Column) Len() int {
	return len(c.entries)
}

// Close releases the underlying file handle.
func (c *Column) Close() error {
	return c.file.Close()
}
