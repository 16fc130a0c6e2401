package monitoring

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgenrique/ess-controller/config"
	coremon "github.com/mgenrique/ess-controller/core/monitoring"
)

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	_, ok := m.(coremon.NopMonitor)
	assert.True(t, ok)
}

func TestSentryMonitorSendsEvents(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dsn := strings.Replace(srv.URL, "http://", "http://public@", 1) + "/1"
	m, err := NewSentryMonitor(config.SentryConfig{DSN: dsn, Environment: "test", Tags: map[string]string{"site": "home"}})
	require.NoError(t, err)

	m.CaptureException(context.Canceled, nil)
	m.CaptureException(errors.New("solver fault"), map[string]string{"phase": "solve"})
	m.Flush(2 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "solver fault")
	assert.Contains(t, bodies[0], `"phase":"solve"`)
	assert.Contains(t, bodies[0], `"site":"home"`)
}
