package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/gridpulse/evsim/core/metrics"
	"github.com/gridpulse/evsim/core/model"
	"github.com/gridpulse/evsim/core/rewards"
)

func TestPromSinkRecordsTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	err = sink.RecordTick(coremetrics.TickResult{
		Algorithm:   "rule_based",
		Assignments: 3,
		Rewards:     rewards.Rewards{Total: 0.42, UserSatisfaction: 0.5},
		Grid: model.GridSnapshot{
			LoadPercent:     55,
			V2GDispatchedKW: 1500,
		},
	})
	require.NoError(t, err)

	require.Equal(t, 0.42, testutil.ToFloat64(sink.totalReward))
	require.Equal(t, 0.5, testutil.ToFloat64(sink.userSatisfaction))
	require.Equal(t, 55.0, testutil.ToFloat64(sink.gridLoad))
	require.Equal(t, 1500.0, testutil.ToFloat64(sink.v2gDispatched))
	require.Equal(t, 3.0, testutil.ToFloat64(sink.assignments))
}

func TestPromSinkCountsSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordSession(model.ChargingSession{Reason: model.TargetReached, Manual: true}))
	require.NoError(t, sink.RecordSession(model.ChargingSession{Reason: model.TargetReached, Manual: true}))
	require.NoError(t, sink.RecordSession(model.ChargingSession{Reason: model.TimeLimitExceeded}))

	require.Equal(t, 2.0, testutil.ToFloat64(sink.sessions.WithLabelValues("target_reached", "true")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.sessions.WithLabelValues("time_limit_exceeded", "false")))
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	// Re-registering on the same registry reuses the existing collectors.
	again, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, again.RecordTick(coremetrics.TickResult{}))
}
