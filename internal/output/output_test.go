package output

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/sensorcal/internal/calibration"
	"github.com/chrissnell/sensorcal/internal/database"
	"github.com/chrissnell/sensorcal/internal/models"
	"github.com/chrissnell/sensorcal/internal/regression"
	"github.com/chrissnell/sensorcal/internal/timeseries"
)

var t0 = time.Date(2023, 1, 10, 12, 0, 0, 0, time.UTC)

func frame(t *testing.T, columns []string, rows ...[]float64) *timeseries.Frame {
	t.Helper()
	index := make([]time.Time, len(rows))
	values := make([][]float64, len(columns))
	for i, row := range rows {
		index[i] = t0.Add(time.Duration(i) * 10 * time.Second)
		for j := range columns {
			values[j] = append(values[j], row[j])
		}
	}
	f, err := timeseries.New(index, columns, values)
	require.NoError(t, err)
	return f
}

func TestWriteDataset(t *testing.T) {
	nan := math.NaN()
	d := Dataset{Name: TenSecondName, Frames: []SensorFrame{
		{"ams1", frame(t, []string{"pm25_calibrated", "pm25_uncalibrated"}, []float64{4.5, 3}, []float64{nan, 2.25})},
		{"ams2", frame(t, []string{"pm25_calibrated"}, []float64{6})},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteDataset(&buf, d))

	want := strings.Join([]string{
		"sensor_name,timestamp,pm25_calibrated,pm25_uncalibrated",
		"ams1,2023-01-10 12:00:00,4.5,3",
		"ams1,2023-01-10 12:00:10,,2.25",
		"ams2,2023-01-10 12:00:00,6,",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVStoreRoundTrip(t *testing.T) {
	store := CSVStore{Dir: t.TempDir(), Name: "final-data"}
	nan := math.NaN()
	cols := []string{"pm25_calibrated", "date"}
	ams1 := frame(t, cols, []float64{4.5, 20230110}, []float64{nan, 20230110})
	ams2 := frame(t, cols, []float64{1.25, 20230110})

	paths, err := store.Write(
		Dataset{Name: TenSecondName, Frames: []SensorFrame{{"ams1", ams1}, {"ams2", ams2}}},
		Dataset{Name: HourlyName, Frames: []SensorFrame{{"ams1", ams1}}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{store.Path(TenSecondName), store.Path(HourlyName)}, paths)

	leftovers, err := filepath.Glob(filepath.Join(store.Dir, store.Name, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	got, err := store.Load(TenSecondName)
	require.NoError(t, err)
	require.Len(t, got, 2)

	pm, err := got["ams1"].Column("pm25_calibrated")
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{4.5, nan}, pm, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("ams1 values (-want +got):\n%s", diff)
	}
	assert.True(t, got["ams2"].Index()[0].Equal(t0))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := CSVStore{Dir: t.TempDir(), Name: "nothing"}.Load(HourlyName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run sensorcal first")
}

func TestReadDatasetBadHeader(t *testing.T) {
	_, err := ReadDataset(strings.NewReader("timestamp,sensor_name,x\n"))
	assert.Error(t, err)
}

type recordingWriter struct {
	readings []database.CalibratedReading
}

func (w *recordingWriter) InsertReadings(_ context.Context, r []database.CalibratedReading) error {
	w.readings = append(w.readings, r...)
	return nil
}

func TestTimescaleSink(t *testing.T) {
	nan := math.NaN()
	f := frame(t,
		[]string{"pm25_calibrated", "pm25_uncalibrated", "pm25_calibrated_aqi"},
		[]float64{12, 10, 50},
		[]float64{nan, nan, nan},
		[]float64{nan, 8, nan},
	)
	w := &recordingWriter{}
	sink := TimescaleSink{Writer: w, RunID: "run-1", Quantities: []string{"pm25", "no2"}}

	n, err := sink.Write(context.Background(), Dataset{Name: TenSecondName, Frames: []SensorFrame{{"ams1", f}}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, w.readings, 2)

	first := w.readings[0]
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, "ams1", first.SensorName)
	assert.Equal(t, TenSecondName, first.Resolution)
	assert.Equal(t, "pm25", first.Quantity)
	require.NotNil(t, first.AQI)
	assert.Equal(t, 50.0, *first.AQI)

	second := w.readings[1]
	assert.Nil(t, second.Calibrated)
	require.NotNil(t, second.Uncalibrated)
	assert.Equal(t, 8.0, *second.Uncalibrated)
}

func TestPlotTraining(t *testing.T) {
	results := frame(t, []string{regression.ColActual, regression.ColPredicted},
		[]float64{10, 11}, []float64{12, 12.5}, []float64{9, math.NaN()})
	res := calibration.TaskResult{
		Task: calibration.Task{Quantity: "pm25"},
		Models: []calibration.ModelResult{
			{Spec: models.Spec{Kind: models.LinearRegression}, Results: results},
			{Spec: models.Spec{Kind: models.PolynomialRegression, Degree: 2}, Results: results, Selected: true},
		},
		Best: 1,
	}
	store := CSVStore{Dir: t.TempDir(), Name: "plots"}
	require.NoError(t, os.MkdirAll(filepath.Join(store.Dir, store.Name), 0o755))

	path := store.PlotPath("pm25")
	require.NoError(t, PlotTraining(path, res))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
