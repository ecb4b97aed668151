package layout

import (
	"testing"

	"github.com/solidcoredata/colbase/internal/cell"
	"github.com/solidcoredata/colbase/internal/column"
	"github.com/stretchr/testify/require"
)

func buildLayout(t *testing.T, dir string) *Layout {
	t.Helper()
	l := New(dir)
	idCol, err := column.Open(dir, "id", cell.TypeInt)
	require.NoError(t, err)
	l.InsertColumn(idCol)
	urlCol, err := column.Open(dir, "url", cell.TypeString)
	require.NoError(t, err)
	l.InsertColumn(urlCol)
	require.NoError(t, l.PersistLayout())
	return l
}

func TestLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCommitAndAllRows(t *testing.T) {
	dir := t.TempDir()
	l := buildLayout(t, dir)

	require.NoError(t, l.Commit([]Pair{
		{Name: "id", Cell: cell.Int(1)},
		{Name: "url", Cell: cell.String("https://example.com")},
	}))

	rows, err := l.AllRows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, cell.Int(1), rows[0]["id"])
	require.Equal(t, cell.String("https://example.com"), rows[0]["url"])
}

func TestRestartEquivalence(t *testing.T) {
	dir := t.TempDir()
	l := buildLayout(t, dir)
	require.NoError(t, l.Commit([]Pair{
		{Name: "id", Cell: cell.Int(1)},
		{Name: "url", Cell: cell.String("https://example.com")},
	}))

	reloaded, err := Load(dir)
	require.NoError(t, err)
	rows, err := reloaded.AllRows()
	require.NoError(t, err)

	original, err := l.AllRows()
	require.NoError(t, err)
	require.Equal(t, original, rows)
}

func TestAllRowsLengthMismatchIsFatal(t *testing.T) {
	dir := t.TempDir()
	l := buildLayout(t, dir)
	idCol := l.Find("id")
	_, err := idCol.Append(cell.Int(1))
	require.NoError(t, err)

	_, err = l.AllRows()
	require.Error(t, err)
}
