package encoding

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/sensorcal/internal/timeseries"
)

func TestLogEncoderRoundTrip(t *testing.T) {
	start := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	idx := []time.Time{start, start.Add(10 * time.Second), start.Add(20 * time.Second)}
	pm := []float64{0.5, 12.25, 300}
	hum := []float64{40, 55.5, 89.9}

	f, err := timeseries.New(idx, []string{"pm", "humidity"}, [][]float64{pm, hum})
	require.NoError(t, err)

	enc := NewLogEncoder("pm")
	encoded, err := enc.EncodeX(f)
	require.NoError(t, err)

	got, err := encoded.Column("pm")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{math.Log(0.5), math.Log(12.25), math.Log(300)}, got, 1e-12)

	untouched, err := encoded.Column("humidity")
	require.NoError(t, err)
	assert.Equal(t, hum, untouched)

	decoded, err := enc.DecodeX(encoded)
	require.NoError(t, err)
	back, err := decoded.Column("pm")
	require.NoError(t, err)
	assert.InDeltaSlice(t, pm, back, 1e-9)

	orig, err := f.Column("pm")
	require.NoError(t, err)
	assert.Equal(t, pm, orig, "input frame must not change")

	y := []float64{1, 2.5, 1e4}
	assert.InDeltaSlice(t, y, enc.DecodeY(enc.EncodeY(y)), 1e-9)
}

func TestLogEncoderPropagatesDomainErrors(t *testing.T) {
	enc := NewLogEncoder()
	y := enc.EncodeY([]float64{0, -1})
	assert.True(t, math.IsInf(y[0], -1))
	assert.True(t, math.IsNaN(y[1]))

	assert.Equal(t, []float64{0}, enc.DecodeY([]float64{math.Inf(-1)}))
}

func TestLogEncoderUnknownColumn(t *testing.T) {
	start := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	f, err := timeseries.New([]time.Time{start}, []string{"pm"}, [][]float64{{4}})
	require.NoError(t, err)

	enc := NewLogEncoder("pm", "pm_typo")
	_, err = enc.EncodeX(f)
	assert.ErrorIs(t, err, timeseries.ErrUnknownColumn)

	_, err = enc.DecodeX(f)
	assert.ErrorIs(t, err, timeseries.ErrUnknownColumn)
}
