// Package background estimates regional background pollution from the GGD
// monitoring network and subtracts it from local readings.
package background

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/chrissnell/sensorcal/internal/timeseries"
)

const (
	// DefaultTimestampLayout is the layout of the Begindatumtijd column.
	DefaultTimestampLayout = "20060102 15:04"

	ggdPreambleLines = 7
	ggdTimeColumn    = "Begindatumtijd"
)

// GGD loads hourly station exports laid out as
// <dir>/<year>/<year>_<component>.csv.
type GGD struct {
	Dir             string
	TimestampLayout string
}

// Load reads every year of a component and returns one column per station on
// a forward-filled hourly grid.
func (g GGD) Load(component string) (*timeseries.Frame, error) {
	entries, err := os.ReadDir(g.Dir)
	if err != nil {
		return nil, fmt.Errorf("ggd: %w", err)
	}

	acc := newStationSeries()
	files := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(g.Dir, e.Name(), fmt.Sprintf("%s_%s.csv", e.Name(), component))
		fh, err := os.Open(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ggd: %w", err)
		}
		err = parseGGD(fh, g.layout(), acc)
		fh.Close()
		if err != nil {
			return nil, fmt.Errorf("ggd %s: %w", path, err)
		}
		files++
	}
	if files == 0 {
		return nil, fmt.Errorf("ggd: no files for component %s in %s", component, g.Dir)
	}

	f, err := acc.frame()
	if err != nil {
		return nil, err
	}
	grid, err := f.Normalize().AsFreq(timeseries.Hourly)
	if err != nil {
		return nil, err
	}
	return grid.FFill(), nil
}

func (g GGD) layout() string {
	if g.TimestampLayout == "" {
		return DefaultTimestampLayout
	}
	return g.TimestampLayout
}

// stationSeries gathers readings of stations that may differ between files.
type stationSeries struct {
	values map[string]map[int64]float64
	times  map[int64]time.Time
}

func newStationSeries() *stationSeries {
	return &stationSeries{
		values: make(map[string]map[int64]float64),
		times:  make(map[int64]time.Time),
	}
}

func (s *stationSeries) add(station string, t time.Time, v float64) {
	m, ok := s.values[station]
	if !ok {
		m = make(map[int64]float64)
		s.values[station] = m
	}
	key := t.UnixNano()
	if _, seen := m[key]; !seen {
		m[key] = v
	}
	s.times[key] = t
}

func (s *stationSeries) frame() (*timeseries.Frame, error) {
	keys := make([]int64, 0, len(s.times))
	for k := range s.times {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	stations := make([]string, 0, len(s.values))
	for st := range s.values {
		stations = append(stations, st)
	}
	sort.Strings(stations)

	index := make([]time.Time, len(keys))
	for i, k := range keys {
		index[i] = s.times[k]
	}
	values := make([][]float64, len(stations))
	for j, st := range stations {
		col := make([]float64, len(keys))
		for i, k := range keys {
			v, ok := s.values[st][k]
			if !ok {
				v = math.NaN()
			}
			col[i] = v
		}
		values[j] = col
	}
	return timeseries.New(index, stations, values)
}

// parseGGD reads one latin-1, semicolon separated export into acc.
func parseGGD(r io.Reader, layout string, acc *stationSeries) error {
	cr := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	for i := 0; i < ggdPreambleLines; i++ {
		if _, err := cr.Read(); err != nil {
			return fmt.Errorf("preamble: %w", err)
		}
	}
	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}

	timeField := -1
	stations := make(map[int]string)
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch {
		case h == ggdTimeColumn:
			timeField = i
		case isStationCode(h):
			stations[i] = h
		}
	}
	if timeField < 0 {
		return fmt.Errorf("no %s column", ggdTimeColumn)
	}

	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if timeField >= len(rec) || strings.TrimSpace(rec[timeField]) == "" {
			continue
		}
		t, err := time.ParseInLocation(layout, strings.TrimSpace(rec[timeField]), time.UTC)
		if err != nil {
			return fmt.Errorf("row %d: %w", line, err)
		}
		for i, st := range stations {
			v := math.NaN()
			if i < len(rec) {
				v = parseDecimal(rec[i])
			}
			acc.add(st, t, v)
		}
	}
}

func isStationCode(s string) bool {
	return len(s) == 7 && strings.HasPrefix(s, "NL")
}

func parseDecimal(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
