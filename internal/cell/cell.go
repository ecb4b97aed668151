// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cell implements the tagged scalar value and its on-disk framing:
// a checksum, a one-byte type tag, a length, and a payload.
package cell

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/sigurn/crc32"
)

// Tag identifies the scalar variant a Cell holds.
type Tag byte

const (
	TagInt    Tag = 1
	TagFloat  Tag = 2
	TagString Tag = 3
	TagBool   Tag = 4
)

func (t Tag) String() string {
	switch t {
	case TagInt:
		return "Int"
	case TagFloat:
		return "Float"
	case TagString:
		return "String"
	case TagBool:
		return "Boolean"
	default:
		return fmt.Sprintf("Tag(%d)", byte(t))
	}
}

// Cell is a single typed scalar value: integer, float, string or boolean.
// Exactly one of the fields is meaningful, selected by Tag.
type Cell struct {
	Tag Tag
	I   int64
	F   float64
	S   string
	B   bool
}

func Int(v int64) Cell     { return Cell{Tag: TagInt, I: v} }
func Float(v float64) Cell { return Cell{Tag: TagFloat, F: v} }
func String(v string) Cell { return Cell{Tag: TagString, S: v} }
func Bool(v bool) Cell     { return Cell{Tag: TagBool, B: v} }

// Value returns c's payload as a plain Go value suitable for JSON
// marshaling: int64, float64, string or bool.
func (c Cell) Value() interface{} {
	switch c.Tag {
	case TagInt:
		return c.I
	case TagFloat:
		return c.F
	case TagString:
		return c.S
	case TagBool:
		return c.B
	default:
		return nil
	}
}

// cksumParams matches the POSIX cksum variant: non-reflected CRC-32 with
// polynomial 0x04c11db7, zero initial value and an inverted final XOR.
var cksumParams = crc32.Params{
	Poly:   0x04c11db7,
	Init:   0x00000000,
	RefIn:  false,
	RefOut: false,
	XorOut: 0xffffffff,
	Check:  0x765e7680,
	Name:   "CRC-32/CKSUM",
}

var cksumTable = crc32.MakeTable(cksumParams)

// Checksum computes the CRC-32/CKSUM of payload.
func Checksum(payload []byte) uint32 {
	return crc32.Checksum(payload, cksumTable)
}

// Encode returns the checksum, tag and little-endian payload bytes for c.
func Encode(c Cell) (checksum uint32, tag Tag, payload []byte) {
	switch c.Tag {
	case TagInt:
		payload = make([]byte, 8)
		binary.LittleEndian.PutUint64(payload, uint64(c.I))
	case TagFloat:
		payload = make([]byte, 8)
		binary.LittleEndian.PutUint64(payload, math.Float64bits(c.F))
	case TagString:
		payload = []byte(c.S)
	case TagBool:
		payload = make([]byte, 8)
		if c.B {
			binary.LittleEndian.PutUint64(payload, 1)
		}
	default:
		panic(fmt.Sprintf("cell: encode of unknown tag %v", c.Tag))
	}
	checksum = Checksum(payload)
	tag = c.Tag
	return checksum, tag, payload
}

// Decode tag-dispatches payload back into a Cell.
func Decode(tag Tag, payload []byte) (Cell, error) {
	switch tag {
	case TagInt:
		if len(payload) != 8 {
			return Cell{}, fmt.Errorf("cell: int payload must be 8 bytes, got %d", len(payload))
		}
		return Int(int64(binary.LittleEndian.Uint64(payload))), nil
	case TagFloat:
		if len(payload) != 8 {
			return Cell{}, fmt.Errorf("cell: float payload must be 8 bytes, got %d", len(payload))
		}
		return Float(math.Float64frombits(binary.LittleEndian.Uint64(payload))), nil
	case TagString:
		if !utf8.Valid(payload) {
			return Cell{}, fmt.Errorf("cell: string payload is not valid UTF-8")
		}
		return String(string(payload)), nil
	case TagBool:
		if len(payload) != 8 {
			return Cell{}, fmt.Errorf("cell: bool payload must be 8 bytes, got %d", len(payload))
		}
		return Bool(binary.LittleEndian.Uint64(payload) == 1), nil
	default:
		return Cell{}, fmt.Errorf("cell: unknown tag %d", tag)
	}
}

// FromExternal converts a decoded JSON value into a Cell. null, arrays and
// objects have no Cell representation and yield ok=false.
func FromExternal(value interface{}) (c Cell, ok bool) {
	switch v := value.(type) {
	case nil:
		return Cell{}, false
	case bool:
		return Bool(v), true
	case string:
		return String(v), true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int(i), true
		}
		f, err := v.Float64()
		if err != nil {
			return Cell{}, false
		}
		return Float(f), true
	case float64:
		if i := int64(v); float64(i) == v {
			return Int(i), true
		}
		return Float(v), true
	default:
		return Cell{}, false
	}
}

// DataType is the declared type of a column, as persisted in the layout
// sidecar and the schema file.
type DataType string

const (
	TypeInt    DataType = "Int"
	TypeFloat  DataType = "Float"
	TypeString DataType = "String"
	TypeBool   DataType = "Boolean"
)

// TagFor maps a declared DataType to its on-disk Tag.
func TagFor(t DataType) (Tag, error) {
	switch t {
	case TypeInt:
		return TagInt, nil
	case TypeFloat:
		return TagFloat, nil
	case TypeString:
		return TagString, nil
	case TypeBool:
		return TagBool, nil
	default:
		return 0, fmt.Errorf("cell: unknown data type %q", t)
	}
}

// IsCompatible reports whether an externally supplied JSON value may be
// stored in a column declared as t. Null and composite values are never
// compatible with any declared type.
func IsCompatible(value interface{}, t DataType) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return t == TypeBool
	case string:
		return t == TypeString
	case json.Number:
		_, isInt := asInt64(v)
		switch t {
		case TypeInt:
			return isInt
		case TypeFloat:
			_, err := v.Float64()
			return err == nil && !isInt
		default:
			return false
		}
	case float64:
		isInt := float64(int64(v)) == v
		switch t {
		case TypeInt:
			return isInt
		case TypeFloat:
			return !isInt
		default:
			return false
		}
	default:
		return false
	}
}

func asInt64(n json.Number) (int64, bool) {
	i, err := n.Int64()
	return i, err == nil
}
