package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Outcomes(t *testing.T) {
	r := NewRecorder()

	r.AttemptStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.inFlight))

	r.AttemptFinished("confirmed", 14*time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.inFlight))

	r.AttemptStarted()
	r.AttemptFinished("wrong_network", 20*time.Millisecond)
	r.AttemptStarted()
	r.AttemptFinished("wrong_network", 30*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.attempts.WithLabelValues("confirmed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.attempts.WithLabelValues("wrong_network")))
	assert.Equal(t, 3, testutil.CollectAndCount(r.duration))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.AttemptStarted()
	r.AttemptFinished("rejected", time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `geomint_mint_attempts_total{outcome="rejected"} 1`), text)
	assert.Contains(t, text, "geomint_mint_duration_seconds_bucket")
	assert.Contains(t, text, "geomint_mint_in_flight 0")
	assert.Contains(t, text, "go_goroutines")
}

func TestRecorder_RegistriesAreIndependent(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	a.AttemptFinished("confirmed", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.attempts.WithLabelValues("confirmed")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.attempts))
}
