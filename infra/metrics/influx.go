package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/mgenrique/ess-controller/core/events"
	coremetrics "github.com/mgenrique/ess-controller/core/metrics"
	"github.com/mgenrique/ess-controller/core/model"
	"github.com/mgenrique/ess-controller/infra/logger"
)

// InfluxSink writes scheduling activity to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordCycle writes one point per recompute cycle.
func (s *InfluxSink) RecordCycle(ev events.CycleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("ess_cycle").
		AddTag("outcome", string(ev.Outcome)).
		AddTag("reason", ev.Reason)
	if ev.Phase != "" {
		p = p.AddTag("phase", ev.Phase)
	}
	if ev.Status != "" {
		p = p.AddTag("status", ev.Status)
	}
	p = p.AddField("duration_ms", round3(ev.Duration.Seconds()*1000))
	if ev.Err != nil {
		p = p.AddField("error", ev.Err.Error())
	}
	return s.writeAPI.WritePoint(ctx, p.SetTime(ev.At))
}

// RecordSchedule writes every row of the schedule as a point stamped with
// the period start, followed by an economics summary point.
func (s *InfluxSink) RecordSchedule(sch model.Schedule) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range sch.Rows {
		p := write.NewPointWithMeasurement("ess_schedule").
			AddTag("schedule_id", sch.ID).
			AddField("buy_price", round3(r.BuyPrice)).
			AddField("sell_price", round3(r.SellPrice)).
			AddField("demand_wh", r.DemandWh).
			AddField("solar_wh", r.SolarWh).
			AddField("grid_import_wh", r.GridImportWh).
			AddField("grid_export_wh", r.GridExportWh).
			AddField("charge_wh", r.ChargeWh).
			AddField("discharge_wh", r.DischargeWh).
			AddField("soc_wh", r.SoCWh).
			AddField("soc_percent", r.SoCPercent).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	e := sch.Economics
	p := write.NewPointWithMeasurement("ess_economics").
		AddTag("schedule_id", sch.ID).
		AddField("total_cost", round3(e.TotalCost)).
		AddField("net_grid_cost", round3(e.NetGridCost)).
		AddField("net_battery_cost", round3(e.NetBatteryCost)).
		AddField("gross_demand_cost", round3(e.GrossDemandCost)).
		AddField("final_soc_wh", round3(e.FinalSoCWh)).
		SetTime(sch.ComputedAt)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSetpoint writes the proposed grid import limit.
func (s *InfluxSink) RecordSetpoint(sp model.Setpoint) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("ess_setpoint").
		AddField("watts", round3(sp.Watts)).
		AddField("target_soc_percent", sp.TargetSoCPercent).
		AddField("soc_percent", round3(sp.SoCPercent)).
		SetTime(sp.At)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
