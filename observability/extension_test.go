package observability_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/orbit/observability"
	"github.com/xraph/orbit/plugin"
	"github.com/xraph/orbit/stream"
)

type fakeMetric struct {
	mu       sync.Mutex
	total    float64
	observed []float64
}

func (m *fakeMetric) Inc()          { m.Add(1) }
func (m *fakeMetric) Add(v float64) { m.mu.Lock(); m.total += v; m.mu.Unlock() }
func (m *fakeMetric) Observe(v float64) {
	m.mu.Lock()
	m.observed = append(m.observed, v)
	m.mu.Unlock()
}

type fakeFactory map[string]*fakeMetric

func (f fakeFactory) get(name string) *fakeMetric {
	if m, ok := f[name]; ok {
		return m
	}
	m := &fakeMetric{}
	f[name] = m
	return m
}

func (f fakeFactory) Counter(name string) observability.Counter     { return f.get(name) }
func (f fakeFactory) Histogram(name string) observability.Histogram { return f.get(name) }

func TestMetricsExtension(t *testing.T) {
	f := fakeFactory{}
	m := observability.NewMetricsExtension(f)
	ctx := context.Background()
	s := &stream.Stream{ID: 1, TotalAmount: 1000, Duration: 100}

	require.NoError(t, m.OnStreamCreated(ctx, s))
	require.NoError(t, m.OnWithdrawal(ctx, s, 490, 10))
	require.NoError(t, m.OnWithdrawal(ctx, s, 98, 2))
	require.NoError(t, m.OnStreamCancelled(ctx, s, 500, 500))
	require.NoError(t, m.OnStreamTerminated(ctx, s, 300))
	require.NoError(t, m.OnFeeUpdated(ctx, 200, 300))
	require.NoError(t, m.OnAdminUpdated(ctx, "a", "b"))
	require.NoError(t, m.OnRenewalSweep(ctx, plugin.SweepSummary{Renewed: 2, Expired: 1, Elapsed: 40 * time.Millisecond}))

	assert.Equal(t, 1.0, f["orbit.stream.created"].total)
	assert.Equal(t, []float64{1000}, f["orbit.stream.amount"].observed)
	assert.Equal(t, 2.0, f["orbit.withdrawal.count"].total)
	assert.Equal(t, 588.0, f["orbit.withdrawal.net"].total)
	assert.Equal(t, 12.0, f["orbit.fee.collected"].total)
	assert.Equal(t, 800.0, f["orbit.refund.total"].total)
	assert.Equal(t, 2.0, f["orbit.config.changes"].total)
	assert.Equal(t, 2.0, f["orbit.keeper.renewed"].total)
	assert.Equal(t, []float64{40}, f["orbit.keeper.sweep.latency_ms"].observed)
}

func TestPrometheusFactory(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory(reg)

	m := observability.NewMetricsExtension(f)
	require.NoError(t, m.OnWithdrawal(context.Background(), &stream.Stream{}, 490, 10))

	c, ok := m.FeesCollected.(prometheus.Counter)
	require.True(t, ok)
	assert.Equal(t, 10.0, testutil.ToFloat64(c))

	// A second extension over the same registry shares the collectors.
	again := observability.NewMetricsExtension(f)
	assert.Same(t, m.FeesCollected, again.FeesCollected)

	n, err := testutil.GatherAndCount(reg, "orbit_fee_collected", "orbit_withdrawal_net")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
