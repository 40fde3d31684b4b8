package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/duomatch/internal/logging"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func do(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, statusResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var body statusResponse
	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	}
	return rr, body
}

func TestHealthz(t *testing.T) {
	s := New(":0", fakePinger{err: errors.New("down")}, logging.NopLogger{})

	rr, body := do(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		server     *Server
		wantCode   int
		wantStatus string
	}{
		{"store up", New(":0", fakePinger{}, logging.NopLogger{}), http.StatusOK, "ok"},
		{"store down", New(":0", fakePinger{err: errors.New("dial tcp: refused")}, logging.NopLogger{}), http.StatusServiceUnavailable, "unavailable"},
		{"no pinger", New(":0", nil, logging.NopLogger{}), http.StatusOK, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, body := do(t, tt.server.Handler(), "/readyz")
			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, tt.wantStatus, body.Status)
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	s := New(":0", nil, logging.NopLogger{})
	rr, _ := do(t, s.Handler(), "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New("127.0.0.1:0", nil, logging.NopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("health server did not stop")
	}
}

func TestRun_BadAddress(t *testing.T) {
	s := New("127.0.0.1:99999", nil, logging.NopLogger{})
	err := s.Run(context.Background())
	assert.Error(t, err)
}
