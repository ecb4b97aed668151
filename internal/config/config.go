// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the schema file and resolves the environment
// variables and directory bootstrap colbased needs at startup.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/solidcoredata/colbase/internal/cell"
	"github.com/solidcoredata/colbase/internal/container"
)

const schemaFileName = "schema.json"

type columnJSON struct {
	Name     string        `json:"name"`
	DataType cell.DataType `json:"data_type"`
}

type schemaJSON struct {
	Columns            []columnJSON `json:"columns"`
	AddTimestampColumn bool         `json:"add_timestamp_column"`
}

// Load reads schema.json from configDir and parses it into a
// container.Schema, rejecting any column whose data_type is not one of
// Int, Float, String or Boolean. The schema carries no numeric fields;
// keys other than columns and add_timestamp_column are ignored.
func Load(configDir string) (container.Schema, error) {
	path := filepath.Join(configDir, schemaFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return container.Schema{}, fmt.Errorf("config: read %q: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw schemaJSON
	if err := dec.Decode(&raw); err != nil {
		return container.Schema{}, fmt.Errorf("config: parse %q: %w", path, err)
	}

	schema := container.Schema{AddTimestampColumn: raw.AddTimestampColumn}
	for _, c := range raw.Columns {
		if _, err := cell.TagFor(c.DataType); err != nil {
			return container.Schema{}, fmt.Errorf("config: column %q: %w", c.Name, err)
		}
		schema.Columns = append(schema.Columns, container.ColumnSchema{Name: c.Name, DataType: c.DataType})
	}
	return schema, nil
}

// Env holds the three environment-resolved paths the runtime needs.
type Env struct {
	CompilerPath    string
	StoragePath     string
	ConfigRootPath  string
}

// LoadEnv resolves ASM_SCRIPT_COMPILER_PATH, DB_STORAGE_PATH and
// CONFIG_FILE_ROOT_PATH, failing fast if any is unset.
func LoadEnv() (Env, error) {
	var env Env
	var missing []string

	get := func(name string) string {
		v, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
		}
		return v
	}

	env.CompilerPath = get("ASM_SCRIPT_COMPILER_PATH")
	env.StoragePath = get("DB_STORAGE_PATH")
	env.ConfigRootPath = get("CONFIG_FILE_ROOT_PATH")

	if len(missing) > 0 {
		return Env{}, fmt.Errorf("config: missing environment variables: %v", missing)
	}
	return env, nil
}

// EnsureDataDir creates <storagePath>/db if it does not already exist and
// returns its path.
func EnsureDataDir(storagePath string) (string, error) {
	dbPath := filepath.Join(storagePath, "db")
	if info, err := os.Stat(dbPath); err == nil && info.IsDir() {
		return dbPath, nil
	} else if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("config: stat %q: %w", dbPath, err)
	}
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return "", fmt.Errorf("config: create %q: %w", dbPath, err)
	}
	return dbPath, nil
}
