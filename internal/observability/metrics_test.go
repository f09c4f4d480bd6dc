package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAreIsolated(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.RowsLoaded.WithLabelValues("mit").Add(100)
	assert.Equal(t, 100.0, testutil.ToFloat64(a.RowsLoaded.WithLabelValues("mit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RowsLoaded.WithLabelValues("mit")))
}

func TestFinish(t *testing.T) {
	m := NewMetricsForTesting()
	start := time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Finish(start, start.Add(90*time.Second), false)
	assert.Equal(t, 90.0, testutil.ToFloat64(m.RunDuration))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastSuccess))

	m.Finish(start, start.Add(time.Minute), true)
	assert.Equal(t, float64(start.Add(time.Minute).Unix()), testutil.ToFloat64(m.LastSuccess))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetricsForTesting()
	m.ModelR2.WithLabelValues("pm25", "polynomial_regression").Set(0.93)
	m.ScrubbedValues.WithLabelValues("pm25").Add(3)

	path := filepath.Join(t.TempDir(), "sensorcal.prom")
	require.NoError(t, m.WriteTextfile(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), `sensorcal_model_r2{model="polynomial_regression",quantity="pm25"} 0.93`)
	assert.Contains(t, string(body), `sensorcal_scrubbed_values_total{quantity="pm25"} 3`)
}
