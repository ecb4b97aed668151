package filterrt

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/solidcoredata/colbase/internal/cell"
	"github.com/solidcoredata/colbase/internal/layout"
	"github.com/stretchr/testify/require"
)

// fakeCompiler writes a shell script that copies its input file to stdout,
// standing in for the real AssemblyScript-to-WAT compiler: tests supply
// pre-written WAT as the "source" and get it back verbatim.
func fakeCompiler(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "compiler.sh")
	script := "#!/bin/sh\ncat \"$1\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func constReturnModule(retVal int) string {
	return fmt.Sprintf(`(module
  (func $run (export "run") (param i32) (result i32)
    i32.const %d)
)`, retVal)
}

func lowBitModule() string {
	return `(module
  (func $run (export "run") (param i32) (result i32)
    local.get 0
    i32.const 1
    i32.and)
)`
}

func TestCompileAndStoreAndExecute(t *testing.T) {
	dir := t.TempDir()
	rt, err := New(fakeCompiler(t), dir)
	require.NoError(t, err)

	require.NoError(t, rt.CompileAndStore(constReturnModule(1), "always_true"))

	row := layout.Row{"timestamp": cell.Int(1700000000)}
	ok, err := rt.Execute("always_true", row)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExecuteFalse(t *testing.T) {
	dir := t.TempDir()
	rt, err := New(fakeCompiler(t), dir)
	require.NoError(t, err)

	require.NoError(t, rt.CompileAndStore(constReturnModule(0), "always_false"))

	row := layout.Row{"timestamp": cell.Int(1700000000)}
	ok, err := rt.Execute("always_false", row)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExecuteLowBit(t *testing.T) {
	dir := t.TempDir()
	rt, err := New(fakeCompiler(t), dir)
	require.NoError(t, err)

	require.NoError(t, rt.CompileAndStore(lowBitModule(), "low_bit"))

	ok, err := rt.Execute("low_bit", layout.Row{"timestamp": cell.Int(1700000001)})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = rt.Execute("low_bit", layout.Row{"timestamp": cell.Int(1700000000)})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExecuteMissingTimestamp(t *testing.T) {
	dir := t.TempDir()
	rt, err := New(fakeCompiler(t), dir)
	require.NoError(t, err)
	require.NoError(t, rt.CompileAndStore(constReturnModule(1), "f"))

	_, err = rt.Execute("f", layout.Row{})
	require.Error(t, err)
}

func TestCompileAndStoreCompilerFailure(t *testing.T) {
	dir := t.TempDir()
	failDir := t.TempDir()
	failScript := filepath.Join(failDir, "fail.sh")
	require.NoError(t, os.WriteFile(failScript, []byte("#!/bin/sh\necho 'bad source' >&2\nexit 1\n"), 0o755))

	rt, err := New(failScript, dir)
	require.NoError(t, err)

	err = rt.CompileAndStore("not valid source", "broken")
	require.Error(t, err)
	var compErr *CompilerError
	require.ErrorAs(t, err, &compErr)
}
