package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgenrique/ess-controller/core/model"
)

type sentMsg struct {
	payload  string
	retained bool
}

type fakeSender struct {
	mu   sync.Mutex
	sent map[string]sentMsg
	fail map[string]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: map[string]sentMsg{}, fail: map[string]error{}}
}

func (f *fakeSender) Publish(topic string, payload []byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[topic]; err != nil {
		return err
	}
	f.sent[topic] = sentMsg{string(payload), retained}
	return nil
}

func sampleSchedule() model.Schedule {
	at := time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)
	return model.Schedule{
		ID:         "s1",
		ComputedAt: at.Add(5 * time.Minute),
		Rows:       []model.Row{{Hour: 10, Time: at, BuyPrice: 0.1, SoCWh: 1280, SoCPercent: 50}},
		Economics:  model.Economics{TotalCost: 1.25, FinalSoCWh: 1280, Periods: 1},
	}
}

func TestPublishSchedule(t *testing.T) {
	fs := newFakeSender()
	p := NewPublisher(fs, "bess", "")
	require.NoError(t, p.PublishSchedule(context.Background(), sampleSchedule()))

	sch, ok := fs.sent["bess/schedule"]
	require.True(t, ok)
	assert.True(t, sch.retained)
	var decoded model.Schedule
	require.NoError(t, json.Unmarshal([]byte(sch.payload), &decoded))
	assert.Equal(t, "s1", decoded.ID)
	require.Len(t, decoded.Rows, 1)

	eco := fs.sent["bess/economics"]
	var e map[string]any
	require.NoError(t, json.Unmarshal([]byte(eco.payload), &e))
	assert.Equal(t, 1.25, e["total_cost"])
}

func TestPublishSetpoint(t *testing.T) {
	fs := newFakeSender()
	p := NewPublisher(fs, "", "")
	sp := model.Setpoint{Watts: 1700, TargetSoCPercent: 73, SoCPercent: 50.2}
	require.NoError(t, p.PublishSetpoint(context.Background(), sp))
	assert.Equal(t, "1700", fs.sent[DefaultTopicPrefix+"/setpoint"].payload)
	assert.Equal(t, "73", fs.sent[DefaultTopicPrefix+"/target_soc"].payload)
}

func TestPublishSetpointJoinsErrors(t *testing.T) {
	fs := newFakeSender()
	boom := errors.New("boom")
	fs.fail["ess/setpoint"] = boom
	p := NewPublisher(fs, "ess", "")
	err := p.PublishSetpoint(context.Background(), model.Setpoint{Watts: 0, TargetSoCPercent: 40})
	assert.ErrorIs(t, err, boom)
	// the target is still published
	assert.Equal(t, "40", fs.sent["ess/target_soc"].payload)
}

func TestPublishCanceledContext(t *testing.T) {
	fs := newFakeSender()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPublisher(fs, "ess", "").PublishSchedule(ctx, sampleSchedule())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fs.sent)
}

func TestPublishDiscovery(t *testing.T) {
	fs := newFakeSender()
	require.NoError(t, NewPublisher(fs, "ess", "").PublishDiscovery())
	assert.Empty(t, fs.sent)

	p := NewPublisher(fs, "ess", "homeassistant")
	require.NoError(t, p.PublishDiscovery())
	assert.Len(t, fs.sent, 5)

	msg, ok := fs.sent["homeassistant/sensor/ess/grid_setpoint/config"]
	require.True(t, ok)
	assert.True(t, msg.retained)
	var cfg DiscoveryConfig
	require.NoError(t, json.Unmarshal([]byte(msg.payload), &cfg))
	assert.Equal(t, "ess/setpoint", cfg.StateTopic)
	assert.Equal(t, "W", cfg.UnitOfMeasurement)
	assert.Equal(t, "ess/status", cfg.AvTopic)
	assert.Equal(t, "ess_grid_setpoint", cfg.UniqueID)
	assert.Equal(t, []string{"ess"}, cfg.Device.ID)
}
