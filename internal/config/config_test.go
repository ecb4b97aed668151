package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/solidcoredata/colbase/internal/cell"
	"github.com/stretchr/testify/require"
)

func TestLoadSchema(t *testing.T) {
	dir := t.TempDir()
	schemaJSON := `{"columns":[{"name":"url","data_type":"String"},{"name":"points","data_type":"Int"}],"add_timestamp_column":true}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.json"), []byte(schemaJSON), 0o644))

	schema, err := Load(dir)
	require.NoError(t, err)
	require.True(t, schema.AddTimestampColumn)
	require.Len(t, schema.Columns, 2)
	require.Equal(t, "url", schema.Columns[0].Name)
	require.Equal(t, cell.TypeString, schema.Columns[0].DataType)
	require.Equal(t, "points", schema.Columns[1].Name)
	require.Equal(t, cell.TypeInt, schema.Columns[1].DataType)
}

func TestLoadSchemaRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	schemaJSON := `{"columns":[{"name":"url","data_type":"Blob"}],"add_timestamp_column":false}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.json"), []byte(schemaJSON), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoadEnvMissingVariables(t *testing.T) {
	os.Unsetenv("ASM_SCRIPT_COMPILER_PATH")
	os.Unsetenv("DB_STORAGE_PATH")
	os.Unsetenv("CONFIG_FILE_ROOT_PATH")

	_, err := LoadEnv()
	require.Error(t, err)
}

func TestLoadEnvAllSet(t *testing.T) {
	t.Setenv("ASM_SCRIPT_COMPILER_PATH", "/usr/local/bin/asc")
	t.Setenv("DB_STORAGE_PATH", "/tmp/colbase")
	t.Setenv("CONFIG_FILE_ROOT_PATH", "/etc/colbase")

	env, err := LoadEnv()
	require.NoError(t, err)
	require.Equal(t, "/usr/local/bin/asc", env.CompilerPath)
	require.Equal(t, "/tmp/colbase", env.StoragePath)
	require.Equal(t, "/etc/colbase", env.ConfigRootPath)
}

func TestEnsureDataDirCreatesAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	dbPath, err := EnsureDataDir(dir)
	require.NoError(t, err)
	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	again, err := EnsureDataDir(dir)
	require.NoError(t, err)
	require.Equal(t, dbPath, again)
}
