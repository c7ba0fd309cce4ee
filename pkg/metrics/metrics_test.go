package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.Exits.WithLabelValues("trail", "long").Inc()
	a.Exits.WithLabelValues("trail", "long").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(a.Exits.WithLabelValues("trail", "long")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Exits.WithLabelValues("trail", "long")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Decisions.WithLabelValues("candidate").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `poseidon_decisions_total{outcome="candidate"} 1`))
}
