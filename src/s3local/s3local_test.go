package s3local

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(b)
}

func TestServer(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	srv := httptest.NewServer(s)
	defer srv.Close()

	res, body := do(t, srv, http.MethodPut, "/bucket/key", "hello")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Contains(t, body, "<Code>NoSuchBucket</Code>")

	res, _ = do(t, srv, http.MethodPut, "/bucket", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = do(t, srv, http.MethodPut, "/bucket/some/key", "hello")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, body = do(t, srv, http.MethodGet, "/bucket/some/key", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "hello", body)

	res, _ = do(t, srv, http.MethodHead, "/bucket/some/key", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, int64(5), res.ContentLength)

	res, _ = do(t, srv, http.MethodHead, "/bucket/missing", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, body = do(t, srv, http.MethodGet, "/bucket/missing", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Contains(t, body, "<Code>NoSuchKey</Code>")

	res, _ = do(t, srv, http.MethodGet, "/../escape", "")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
