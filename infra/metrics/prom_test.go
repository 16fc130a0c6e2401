package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgenrique/ess-controller/core/events"
	"github.com/mgenrique/ess-controller/core/model"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, s.RecordCycle(events.CycleEvent{Outcome: events.OutcomeSuccess, Reason: "forced", Duration: time.Second}))
	require.NoError(t, s.RecordCycle(events.CycleEvent{Outcome: events.OutcomeSkipped, Reason: "cached"}))
	require.NoError(t, s.RecordSchedule(model.Schedule{Rows: make([]model.Row, 22), Economics: model.Economics{TotalCost: 1.5, FinalSoCWh: 5000}}))
	require.NoError(t, s.RecordSetpoint(model.Setpoint{Watts: 6900, TargetSoCPercent: 80, SoCPercent: 40}))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.cycles.WithLabelValues("success", "forced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.cycles.WithLabelValues("skipped", "cached")))
	assert.Equal(t, 22.0, testutil.ToFloat64(s.periods))
	assert.Equal(t, 1.5, testutil.ToFloat64(s.totalCost))
	assert.Equal(t, 6900.0, testutil.ToFloat64(s.setpoint))
	assert.Equal(t, 80.0, testutil.ToFloat64(s.targetSoC))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	s1, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	s2, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, s1.RecordSetpoint(model.Setpoint{Watts: 100}))
	assert.Equal(t, 100.0, testutil.ToFloat64(s2.setpoint))
}

func TestStartPromServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, s.RecordSetpoint(model.Setpoint{Watts: 42}))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- StartPromServerWithGatherer(ctx, addr, reg) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.True(t, strings.Contains(body, "ess_grid_setpoint_watts 42"))

	cancel()
	require.NoError(t, <-errCh)
}
