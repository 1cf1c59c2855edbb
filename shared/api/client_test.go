package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		WriteJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path, "method": r.Method})
	}))
	defer server.Close()
	c := NewClient(server.URL, server.Client(), nil)

	var got map[string]string
	require.NoError(t, c.Post(context.Background(), "/things", map[string]int{"n": 1}, &got))
	assert.Equal(t, map[string]string{"path": "/things", "method": http.MethodPost}, got)

	require.NoError(t, c.Delete(context.Background(), "/things/1", nil))
}

func TestClientMapsErrorStatus(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusInternalServerError, ErrInternalError},
		{http.StatusServiceUnavailable, ErrInternalError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				WriteError(w, tt.status, "nope", "first", "second")
			}))
			defer server.Close()

			err := NewClient(server.URL, server.Client(), nil).Get(context.Background(), "/", nil)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.status, StatusCode(err))

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, "nope", httpErr.Message)
			assert.Equal(t, "first; second", httpErr.Details)
		})
	}
}

func TestClientPlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer server.Close()

	err := NewClient(server.URL, server.Client(), nil).Get(context.Background(), "/", nil)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "teapot", httpErr.Message)
	assert.Nil(t, httpErr.Unwrap())
}

func TestClientHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewClient(server.URL, server.Client(), nil).Get(ctx, "/", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
