package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Token: "secret", Timeout: 2 * time.Second}, nil)
}

func TestClientImportSendsMultipart(t *testing.T) {
	var gotName, gotBody, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/dictionary/import", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotName, gotBody = hdr.Filename, string(b)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Import(context.Background(), "dict.json", []byte(`{"version":"1.0.0"}`)))
	assert.Equal(t, "dict.json", gotName)
	assert.Equal(t, `{"version":"1.0.0"}`, gotBody)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestClientExport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dictionary/export", r.URL.Path)
		var req struct {
			IncludeFlashcards bool `json:"includeFlashcards"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.IncludeFlashcards)
		_, _ = w.Write([]byte(`{"entries":[]}`))
	})

	data, err := c.Export(context.Background(), true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"entries":[]}`, string(data))
}

func TestClientStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		http.Error(w, "nope", http.StatusForbidden)
	})

	err := c.DeleteAll(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.Equal(t, "nope", se.Body)
}

func TestMirrorIgnoresCallerCancel(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	m := NewMirror(c, nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.DeleteAll(ctx)
	cancel()
	m.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestMirrorSwallowsFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	m := NewMirror(c, nil)

	m.Import(context.Background(), "x.json", []byte("[]"))
	m.Wait()
}
