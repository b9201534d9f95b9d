package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/voltmesh/cso/core/metrics"
	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/infra/logger"
)

// InfluxSink writes command, flush and roaming events to an InfluxDB
// instance using the official client.
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

// RecordCommand writes the completed command as a point.
func (s *InfluxSink) RecordCommand(rec coremetrics.CommandRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("command_event").
		AddTag("verb", rec.Verb).
		AddTag("granularity", rec.Granularity).
		AddTag("code", rec.Code.String()).
		AddTag("remote", strconv.FormatBool(rec.Remote)).
		AddTag("component", "dispatcher").
		AddField("target_id", rec.TargetID).
		AddField("tracking_id", rec.TrackingID).
		AddField("runtime_ms", round3(rec.Runtime.Seconds()*1000)).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordFlush writes the flush cycle as a point.
func (s *InfluxSink) RecordFlush(rec coremetrics.FlushRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("flush_event").
		AddTag("queue", rec.Queue).
		AddTag("component", "flush_engine").
		AddField("run_id", int64(rec.RunID)).
		AddField("runtime_ms", round3(rec.Runtime.Seconds()*1000)).
		AddField("errors", rec.Error).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCDR persists a charge detail record.
func (s *InfluxSink) RecordCDR(cdr model.ChargeDetailRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charge_detail_record").
		AddTag("evse_id", string(cdr.EVSEID)).
		AddTag("provider_id", string(cdr.ProviderID)).
		AddField("session_id", string(cdr.SessionID)).
		AddField("energy_kwh", round3(cdr.EnergyKWh)).
		AddField("duration_s", round3(cdr.Duration().Seconds())).
		SetTime(cdr.SessionEnd)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRoaming writes a reservation or session lifecycle event.
func (s *InfluxSink) RecordRoaming(ev coremetrics.RoamingEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("roaming_event").
		AddTag("kind", ev.Kind).
		AddTag("remote", strconv.FormatBool(ev.Remote)).
		AddField("entity_id", ev.EntityID).
		AddField("evse_id", ev.EVSEID).
		AddField("tracking_id", ev.TrackingID).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
