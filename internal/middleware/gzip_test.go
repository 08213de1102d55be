package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func compress(t *testing.T, data []byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return &buf
}

func readAll(t *testing.T, res *http.Response) []byte {
	t.Helper()
	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(res.Body)
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	}
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	return body
}

// echoOrder возвращает принятый заказ с присвоенным идентификатором.
func echoOrder(w http.ResponseWriter, r *http.Request) {
	var order map[string]any
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	order["id"] = 42
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(order)
}

func workbook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", `attachment; filename="Comanda_42_Maria_Pop.xlsx"`)
	_, _ = w.Write([]byte("PK\x03\x04workbook"))
}

func noContent(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func notModified(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotModified)
}

func TestGzipMiddleware(t *testing.T) {
	order := []byte(`{"doctor":{"name":"Dr. Pop"},"patient":{"name":"Maria Pop"}}`)

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		method     string
		body       io.Reader
		gzipBody   bool
		accept     string
		status     int
		encoding   string
		wantBody   string
		wantPrefix string
	}{
		{
			name:     "json response is compressed",
			handler:  echoOrder,
			method:   http.MethodPost,
			body:     bytes.NewReader(order),
			accept:   "gzip, deflate",
			status:   http.StatusCreated,
			encoding: "gzip",
			wantBody: `"id":42`,
		},
		{
			name:     "compressed order body is decoded",
			handler:  echoOrder,
			method:   http.MethodPost,
			body:     compress(t, order),
			gzipBody: true,
			accept:   "gzip",
			status:   http.StatusCreated,
			encoding: "gzip",
			wantBody: `"Maria Pop"`,
		},
		{
			name:     "client without gzip gets plain json",
			handler:  echoOrder,
			method:   http.MethodPost,
			body:     bytes.NewReader(order),
			status:   http.StatusCreated,
			wantBody: `"id":42`,
		},
		{
			name:     "broken compressed body",
			handler:  echoOrder,
			method:   http.MethodPost,
			body:     strings.NewReader("not gzip"),
			gzipBody: true,
			accept:   "gzip",
			status:   http.StatusBadRequest,
			wantBody: "Bad Request",
		},
		{
			name:       "workbook export is compressed without losing bytes",
			handler:    workbook,
			method:     http.MethodPost,
			accept:     "gzip",
			status:     http.StatusOK,
			encoding:   "gzip",
			wantPrefix: "PK\x03\x04workbook",
		},
		{
			name:    "delete without content is not compressed",
			handler: noContent,
			method:  http.MethodDelete,
			accept:  "gzip",
			status:  http.StatusNoContent,
		},
		{
			name:    "not modified is not compressed",
			handler: notModified,
			method:  http.MethodGet,
			accept:  "gzip",
			status:  http.StatusNotModified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			if body == nil {
				body = http.NoBody
			}
			req := httptest.NewRequest(tt.method, "/api/orders", body)
			if tt.gzipBody {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Encoding", tt.accept)
			}

			rec := httptest.NewRecorder()
			GzipMiddleware(tt.handler).ServeHTTP(rec, req)

			res := rec.Result()
			defer res.Body.Close()

			assert.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, tt.encoding, res.Header.Get("Content-Encoding"))

			got := readAll(t, res)
			switch {
			case tt.wantPrefix != "":
				assert.Equal(t, tt.wantPrefix, string(got))
			case tt.wantBody != "":
				assert.Contains(t, string(got), tt.wantBody)
			default:
				assert.Empty(t, got)
			}
		})
	}
}

func TestGzipMiddleware_KeepsExportHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/export/order", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(workbook)).ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	assert.Equal(t, xlsxType, res.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Comanda_42_Maria_Pop.xlsx"`, res.Header.Get("Content-Disposition"))
	assert.Empty(t, res.Header.Get("Content-Length"))
	assert.Equal(t, "Accept-Encoding", res.Header.Get("Vary"))
}
