package metrics

import (
	"testing"

	"rcmos/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(runsSubmittedCounter.WithLabelValues("created"))
	IncRunSubmitted("created")
	assert.Equal(t, before+1, testutil.ToFloat64(runsSubmittedCounter.WithLabelValues("created")))

	before = testutil.ToFloat64(instancePhaseCounter.WithLabelValues(string(domain.PhaseCompleted)))
	IncInstancePhase(domain.PhaseCompleted)
	assert.Equal(t, before+1, testutil.ToFloat64(instancePhaseCounter.WithLabelValues(string(domain.PhaseCompleted))))

	before = testutil.ToFloat64(timersSweptCounter)
	AddTimersSwept(3)
	assert.Equal(t, before+3, testutil.ToFloat64(timersSweptCounter))
}

func TestObserveHTTPRequest(t *testing.T) {
	Init()
	before := testutil.ToFloat64(httpRequestsCounter.WithLabelValues("GET", "/api/v1/runs/:id", "404"))
	ObserveHTTPRequest("GET", "/api/v1/runs/:id", 404, 0)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsCounter.WithLabelValues("GET", "/api/v1/runs/:id", "404")))

	ObserveHTTPRequest("GET", "", 404, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsCounter.WithLabelValues("GET", "unmatched", "404")))
}
