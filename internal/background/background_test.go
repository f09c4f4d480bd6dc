package background

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/chrissnell/sensorcal/internal/timeseries"
)

func ggdExport(t *testing.T, rows ...string) []byte {
	t.Helper()
	preamble := []string{
		"Stationsnaam;;;;Amsterdam-Vondelpark;Amsterdam-Einsteinweg",
		"StationsCode;;;;NL49014;NL49007",
		"Stationstype;;;;achtergrond;verkeer",
		"Gemeente;;;;Amsterdam;Amsterdam",
		"Component;;;;PM25;PM25",
		"Eenheid;;;;µg/m³;µg/m³",
		"Meetopstelling;;;;x;x",
		"Begindatumtijd;Einddatumtijd;Componentcode;Eenheid;NL49014;NL49007",
	}
	text := strings.Join(append(preamble, rows...), "\n")
	var buf bytes.Buffer
	w := charmap.ISO8859_1.NewEncoder().Writer(&buf)
	_, err := w.Write([]byte(text))
	require.NoError(t, err)
	return buf.Bytes()
}

func TestGGDLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2022"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2022", "2022_PM25.csv"), ggdExport(t,
		"20221205 00:00;20221205 01:00;PM25;ug;10,5;20",
		"20221205 02:00;20221205 03:00;PM25;ug;12;",
		"20221205 00:00;20221205 01:00;PM25;ug;99;99",
	), 0o644))

	f, err := GGD{Dir: dir}.Load("PM25")
	require.NoError(t, err)

	base := time.Date(2022, 12, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour)}, f.Index())
	assert.Equal(t, []string{"NL49007", "NL49014"}, f.Columns())

	vondelpark, err := f.Column("NL49014")
	require.NoError(t, err)
	assert.Equal(t, []float64{10.5, 10.5, 12}, vondelpark)

	einsteinweg, err := f.Column("NL49007")
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 20, 20}, einsteinweg)

	_, err = GGD{Dir: dir}.Load("NO2")
	assert.Error(t, err)
}

type countingSource struct {
	calls int
	frame *timeseries.Frame
}

func (s *countingSource) Load(string) (*timeseries.Frame, error) {
	s.calls++
	return s.frame, nil
}

func stationFrame(t *testing.T) *timeseries.Frame {
	t.Helper()
	base := time.Date(2022, 12, 5, 0, 0, 0, 0, time.UTC)
	f, err := timeseries.New(
		[]time.Time{base, base.Add(time.Hour)},
		[]string{"NL49007", "NL49014", "NL49546"},
		[][]float64{{20, 30}, {10, math.NaN()}, {100, 100}},
	)
	require.NoError(t, err)
	return f
}

func TestCacheLoadsOnce(t *testing.T) {
	src := &countingSource{frame: stationFrame(t)}
	c := NewCache(src)
	for i := 0; i < 3; i++ {
		_, err := c.Get("PM25")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.calls)
}

func TestWeightedMeanAndSubtract(t *testing.T) {
	levels := Levels{
		Cache: NewCache(&countingSource{frame: stationFrame(t)}),
		StationTypes: map[string]string{
			"NL49007": "verkeer",
			"NL49014": "achtergrond",
			"NL49546": "industrie",
		},
		TypeWeights: DefaultTypeWeights(),
	}

	weights, err := levels.Weights([]string{"NL49007", "NL49014", "NL49546", "NL00000"})
	require.NoError(t, err)
	assert.InDelta(t, 0.3/2.3, weights["NL49007"], 1e-12)
	assert.InDelta(t, 1/2.3, weights["NL49014"], 1e-12)
	assert.Equal(t, 0.0, weights["NL49546"])
	assert.InDelta(t, 1/2.3, weights["NL00000"], 1e-12)

	mean, err := levels.Mean("PM25")
	require.NoError(t, err)
	m, err := mean.Column(LevelColumn)
	require.NoError(t, err)
	assert.InDelta(t, (0.3*20+1*10)/1.3, m[0], 1e-9)
	assert.InDelta(t, 30, m[1], 1e-9, "missing station is left out")

	base := time.Date(2022, 12, 5, 0, 0, 0, 0, time.UTC)
	target, err := timeseries.New(
		[]time.Time{base.Add(-time.Minute), base.Add(30 * time.Minute), base.Add(70 * time.Minute)},
		[]string{"pm25_calibrated"},
		[][]float64{{50, 50, 50}},
	)
	require.NoError(t, err)

	out, err := levels.Subtract(target, "pm25_calibrated", "PM25")
	require.NoError(t, err)
	bg, err := out.Column("pm25_calibrated_bg")
	require.NoError(t, err)
	nobg, err := out.Column("pm25_calibrated_nobg")
	require.NoError(t, err)

	assert.True(t, math.IsNaN(bg[0]))
	assert.InDelta(t, m[0], bg[1], 1e-9)
	assert.InDelta(t, 30, bg[2], 1e-9)
	assert.InDelta(t, 20, nobg[2], 1e-9)
}

func TestWeightsMustNotSumToZero(t *testing.T) {
	levels := Levels{
		StationTypes: map[string]string{"NL49546": "industrie"},
		TypeWeights:  DefaultTypeWeights(),
	}
	_, err := levels.Weights([]string{"NL49546"})
	assert.Error(t, err)
}
