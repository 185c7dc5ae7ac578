package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.RecordStorage("put", 10*time.Millisecond, 100, nil)
	r.RecordStorage("put", 10*time.Millisecond, 50, errors.New("down"))
	r.RecordIngest("ok")
	r.RecordIngest("storage")
	r.RecordIngest("storage")
	r.RecordCompensation("delete_preview", nil)
	r.RecordCompensation("delete_preview", errors.New("down"))

	assert.Equal(t, float64(100), testutil.ToFloat64(r.storedBytes))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.storageErrors.WithLabelValues("put")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.ingests.WithLabelValues("storage")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.compensations.WithLabelValues("delete_preview", "failed")))
}

func TestNewTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	require.NoError(t, err)
	b, err := New(reg)
	require.NoError(t, err)

	a.RecordIngest("ok")
	assert.Equal(t, float64(1), testutil.ToFloat64(b.ingests.WithLabelValues("ok")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordStorage("put", time.Second, 1, nil)
		r.RecordIngest("ok")
		r.RecordCompensation("x", nil)
	})
}
