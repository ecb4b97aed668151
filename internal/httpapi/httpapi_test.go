package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/solidcoredata/colbase/internal/cell"
	"github.com/solidcoredata/colbase/internal/commandloop"
	"github.com/solidcoredata/colbase/internal/container"
	"github.com/solidcoredata/colbase/internal/layout"
	"github.com/solidcoredata/colbase/internal/metrics"
	"github.com/stretchr/testify/require"
)

type fakeFilter struct{}

func (fakeFilter) CompileAndStore(source, name string) error { return nil }
func (fakeFilter) Execute(name string, row layout.Row) (bool, error) {
	return true, nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	c, err := container.Open(t.TempDir(), container.Schema{
		Columns:            []container.ColumnSchema{{Name: "url", DataType: cell.TypeString}},
		AddTimestampColumn: true,
	})
	require.NoError(t, err)

	loop := commandloop.New(c, fakeFilter{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go loop.Run(ctx)

	return NewRouter(loop.Queue(), zap.NewNop(), metrics.Registry())
}

func TestIndexHandlerSuccess(t *testing.T) {
	srv := newTestServer(t)

	body := bytes.NewBufferString(`{"fields":["url"],"values":["https://example.com"]}`)
	req := httptest.NewRequest(http.MethodPost, "/index", body)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestIndexHandlerRejectsWrongType(t *testing.T) {
	srv := newTestServer(t)

	body := bytes.NewBufferString(`{"fields":["url"],"values":[null]}`)
	req := httptest.NewRequest(http.MethodPost, "/index", body)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAddMapFnAcceptsOctetStreamPart(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("data", "filter.ts")
	require.NoError(t, err)
	_, err = part.Write([]byte("export function run(ts: i32): i32 { return 1; }"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/add_map/always_true", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	// multipart part content-type for CreateFormFile defaults to
	// application/octet-stream already, so this should succeed.
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestQueryHandlerReturnsRows(t *testing.T) {
	srv := newTestServer(t)

	body := bytes.NewBufferString(`{"fields":["url"],"values":["https://example.com"]}`)
	req := httptest.NewRequest(http.MethodPost, "/index", body)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/query/always_true", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "https://example.com", rows[0]["url"])
}
