package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTimer(t *testing.T) {
	timer := NewTimer("test_op")
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)

	d := timer.ObserveDuration()
	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(OperationLatency), 1)
}

func TestCountersIncrement(t *testing.T) {
	c := CoercionsTotal.WithLabelValues("number", OutcomeFailed)
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))

	QualityScore.WithLabelValues("overall").Set(0.75)
	assert.Equal(t, 0.75, testutil.ToFloat64(QualityScore.WithLabelValues("overall")))
}
