package policy_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"

	"andy.dev/redo/v2/policy"
)

func TestMetrics(t *testing.T) {
	m := policy.NewMetrics("test", prometheus.Labels{"site": "db"})
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(m))

	p := policy.Join(m.Policy(), policy.Breaker(3), constant(250*time.Millisecond))
	for attempt := 1; attempt <= 3; attempt++ {
		_, _ = p(failed(attempt), nil)
	}

	expected := `
# HELP test_retry_failed_attempts_total Total number of failed attempts seen by the retry policy
# TYPE test_retry_failed_attempts_total counter
test_retry_failed_attempts_total{site="db"} 3
# HELP test_retry_give_ups_total Total number of operations the retry policy gave up on
# TYPE test_retry_give_ups_total counter
test_retry_give_ups_total{site="db"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"test_retry_failed_attempts_total", "test_retry_give_ups_total"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var observed uint64
	for _, mf := range families {
		if mf.GetName() == "test_retry_delay_seconds" {
			observed = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(2), observed)
}

func TestTrace(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	ctx, span := tp.Tracer("redo").Start(context.Background(), "operation")

	s := policy.NewState(ctx, t0)
	s.Record(errBoom, t0.Add(time.Second))
	d, err := policy.Join(policy.Trace(), constant(time.Second))(s, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	s.Record(errBoom, t0.Add(2*time.Second))
	_, err = policy.Trace()(s, nil)
	assert.Equal(t, errBoom, err)
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	var names []string
	for _, ev := range spans[0].Events() {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"retry.failed", "retry.scheduled", "retry.failed", "exception"}, names)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTraceWithoutSpan(t *testing.T) {
	d, err := policy.Trace()(failed(1), constant(time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}

func TestThrottle(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	p := policy.Throttle(limiter)

	d, err := p(failed(1), constant(10*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, d, "a free token keeps the upstream delay")

	d, err = p(failed(2), constant(10*time.Millisecond))
	require.NoError(t, err)
	assert.Greater(t, d, 59*time.Minute, "an exhausted limiter pushes the retry out")

	s := failed(1)
	_, err = p(s, nil)
	assert.Equal(t, s.Err(), err)
}

func TestThrottleNeverGrants(t *testing.T) {
	p := policy.Throttle(rate.NewLimiter(1, 0))
	s := failed(1)
	_, err := p(s, constant(0))
	assert.Equal(t, s.Err(), err)
}
