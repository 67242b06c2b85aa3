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

	coremetrics "github.com/gridpulse/evsim/core/metrics"
	"github.com/gridpulse/evsim/core/model"
	"github.com/gridpulse/evsim/infra/logger"
)

// InfluxSink writes tick results and sessions to an InfluxDB instance using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
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

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink when the health check fails, so a missing database never stalls
// the simulation.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
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

// RecordTick writes the grid and reward state as a grid_state point.
func (s *InfluxSink) RecordTick(t coremetrics.TickResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("grid_state").
		AddTag("algorithm", t.Algorithm).
		AddField("total_reward", round3(t.Rewards.Total)).
		AddField("user_satisfaction", round3(t.Rewards.UserSatisfaction)).
		AddField("operator_profit", round3(t.Rewards.OperatorProfit)).
		AddField("grid_friendliness", round3(t.Rewards.GridFriendliness)).
		AddField("load_percent", round3(t.Grid.LoadPercent)).
		AddField("renewable_ratio", round3(t.Grid.RenewableRatio)).
		AddField("carbon_intensity", round3(t.Grid.CarbonIntensity)).
		AddField("ev_load_kw", round3(t.Grid.EVLoadKW)).
		AddField("v2g_dispatched_kw", round3(t.Grid.V2GDispatchedKW)).
		AddField("sessions_completed", t.SessionsCompleted).
		AddField("assignments", t.Assignments).
		SetTime(t.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSession writes the completed session as a charging_session point.
func (s *InfluxSink) RecordSession(sess model.ChargingSession) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charging_session").
		AddTag("charger_id", sess.ChargerID).
		AddTag("station_id", sess.StationID).
		AddTag("reason", sess.Reason.String()).
		AddField("user_id", sess.UserID).
		AddField("duration_minutes", round3(sess.DurationMinutes)).
		AddField("energy_kwh", round3(sess.EnergyKWh)).
		AddField("revenue", round3(sess.Revenue)).
		AddField("initial_soc", round3(sess.InitialSoC)).
		AddField("final_soc", round3(sess.FinalSoC)).
		AddField("manual", sess.Manual).
		SetTime(sess.EndTime)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
