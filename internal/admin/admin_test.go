package admin

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eternalApril/actorhost/internal/config"
	"github.com/eternalApril/actorhost/internal/gc"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSource struct {
	settings config.GCSettings
	stats    gc.Stats
	actors   int
}

func (f *fakeSource) GCSettings() config.GCSettings { return f.settings }
func (f *fakeSource) GCStats() gc.Stats             { return f.stats }
func (f *fakeSource) ActorCount() int               { return f.actors }

func newFakeSource(t *testing.T) *fakeSource {
	t.Helper()
	settings, err := config.NewGCSettings(120, 30)
	require.NoError(t, err)
	return &fakeSource{
		settings: settings,
		stats:    gc.Stats{Scans: 7, Collected: 3, LastScanned: 10, LastCollected: 1},
		actors:   42,
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(w, req)
	return w
}

func TestRouter(t *testing.T) {
	router := NewRouter(newFakeSource(t), zaptest.NewLogger(t))

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody map[string]any
	}{
		{
			name:     "health",
			path:     "/healthz",
			wantCode: http.StatusOK,
			wantBody: map[string]any{"status": "ok"},
		},
		{
			name:     "actors",
			path:     "/v1/actors",
			wantCode: http.StatusOK,
			wantBody: map[string]any{"count": float64(42)},
		},
		{
			name:     "unknown route",
			path:     "/v1/nope",
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, router, tt.path)
			assert.Equal(t, tt.wantCode, w.Code)

			if tt.wantBody != nil {
				var got map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, tt.wantBody, got)
			}
		})
	}
}

func TestRouter_GC(t *testing.T) {
	router := NewRouter(newFakeSource(t), zaptest.NewLogger(t))

	w := get(t, router, "/v1/gc")
	require.Equal(t, http.StatusOK, w.Code)

	var got gcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, int64(30), got.ScanIntervalSeconds)
	assert.Equal(t, int64(120), got.IdleTimeoutSeconds)
	assert.Equal(t, int64(4), got.IdleScans)
	assert.Equal(t, uint64(7), got.Stats.Scans)
	assert.Equal(t, uint64(3), got.Stats.Collected)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	srv := New("127.0.0.1:0", newFakeSource(t), zaptest.NewLogger(t))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(l) }()

	res, err := http.Get("http://" + l.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	res.Body.Close() //nolint:errcheck
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-served)
}
