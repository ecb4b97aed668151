// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package filterrt is the filter runtime adapter: it compiles user source
// to a textual WebAssembly module artifact via an external compiler, loads
// the artifact, and invokes a single exported entry point once per row,
// translating the boolean result.
package filterrt

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/bytecodealliance/wasmtime-go/v25"

	"github.com/solidcoredata/colbase/internal/cell"
	"github.com/solidcoredata/colbase/internal/layout"
)

const artifactExtension = ".wat"

// InvalidCodeError means the compiler rejected the source outright.
type InvalidCodeError struct{}

func (InvalidCodeError) Error() string { return "filterrt: invalid code" }

// CompilerError carries the external compiler's stderr on a non-zero exit.
type CompilerError struct{ Stderr string }

func (e *CompilerError) Error() string { return fmt.Sprintf("filterrt: compiler error: %s", e.Stderr) }

// Runtime is the filter runtime adapter. One Runtime serves the whole
// process; CompileAndStore and Execute are safe to call from a single
// owning task (the command loop), which is the only caller in this system.
type Runtime struct {
	compilerPath string
	queryDir     string
	engine       *wasmtime.Engine
}

// New returns a Runtime that invokes the compiler at compilerPath and
// stores/loads compiled artifacts under queryDir.
func New(compilerPath, queryDir string) (*Runtime, error) {
	if err := os.MkdirAll(queryDir, 0o755); err != nil {
		return nil, fmt.Errorf("filterrt: create query dir: %w", err)
	}
	return &Runtime{
		compilerPath: compilerPath,
		queryDir:     queryDir,
		engine:       wasmtime.NewEngine(),
	}, nil
}

func (r *Runtime) artifactPath(name string) string {
	return filepath.Join(r.queryDir, name+artifactExtension)
}

// CompileAndStore writes source to a temporary file, invokes the external
// compiler on it, and writes the compiler's stdout to the named artifact.
// The temporary source file is removed on every exit path.
func (r *Runtime) CompileAndStore(source, name string) error {
	tmp, err := os.CreateTemp("", "colbase-filter-*.ts")
	if err != nil {
		return fmt.Errorf("filterrt: create temp source: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(source); err != nil {
		tmp.Close()
		return fmt.Errorf("filterrt: write temp source: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filterrt: close temp source: %w", err)
	}

	cmd := exec.Command(r.compilerPath, tmpPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return &CompilerError{Stderr: stderr.String()}
		}
		return fmt.Errorf("filterrt: invoke compiler: %w", err)
	}

	if err := os.WriteFile(r.artifactPath(name), stdout.Bytes(), 0o644); err != nil {
		return fmt.Errorf("filterrt: write artifact: %w", err)
	}
	return nil
}

// Execute locates the compiled artifact for name, instantiates a fresh
// sandbox (a deliberate per-invocation cost: it guarantees no cross-row
// state leaks), calls its exported run(int32) -> int32 with the row's
// timestamp cell narrowed to 32 bits, and interprets a nonzero return as
// true.
func (r *Runtime) Execute(name string, row layout.Row) (bool, error) {
	ts, ok := row["timestamp"]
	if !ok {
		return false, fmt.Errorf("filterrt: row has no timestamp cell")
	}
	if ts.Tag != cell.TagInt {
		return false, fmt.Errorf("filterrt: timestamp cell is not an integer")
	}

	module, err := wasmtime.NewModuleFromFile(r.engine, r.artifactPath(name))
	if err != nil {
		return false, fmt.Errorf("filterrt: load module %q: %w", name, err)
	}

	store := wasmtime.NewStore(r.engine)
	instance, err := wasmtime.NewInstance(store, module, []wasmtime.AsExtern{})
	if err != nil {
		return false, fmt.Errorf("filterrt: instantiate %q: %w", name, err)
	}

	run := instance.GetFunc(store, "run")
	if run == nil {
		return false, fmt.Errorf("filterrt: module %q has no exported run function", name)
	}

	// The original timestamp is a 64-bit unix second count; narrowed here to
	// int32 to match the filter's declared signature. Preserved as observed:
	// values beyond 2^31 seconds (year 2038) wrap.
	result, err := run.Call(store, int32(ts.I))
	if err != nil {
		return false, fmt.Errorf("filterrt: call run on %q: %w", name, err)
	}

	retVal, ok := result.(int32)
	if !ok {
		return false, fmt.Errorf("filterrt: run returned unexpected type %T", result)
	}
	return retVal != 0, nil
}
