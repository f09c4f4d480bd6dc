// Package output persists calibrated frames: CSV files keyed by sensor and
// timestamp, an optional TimescaleDB table and training result plots.
package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chrissnell/sensorcal/internal/constants"
	"github.com/chrissnell/sensorcal/internal/timeseries"
)

// Dataset names, one file per resolution.
const (
	TenSecondName = "10sec"
	HourlyName    = "hourly"
)

// TimestampLayout formats the timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

const timestampColumn = "timestamp"

// SensorFrame is the calibrated frame of one sensor.
type SensorFrame struct {
	Sensor string
	Frame  *timeseries.Frame
}

// Dataset is one output file: every sensor's frame at one resolution.
type Dataset struct {
	Name   string
	Frames []SensorFrame
}

// Columns returns the union of the frame columns in order of first
// appearance.
func (d Dataset) Columns() []string {
	var out []string
	seen := make(map[string]bool)
	for _, sf := range d.Frames {
		for _, c := range sf.Frame.Columns() {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// CSVStore reads and writes datasets under <Dir>/<Name>/.
type CSVStore struct {
	Dir  string
	Name string
}

// Path returns the file of a dataset.
func (s CSVStore) Path(dataset string) string {
	return filepath.Join(s.Dir, s.Name, dataset+".csv")
}

// Write stages every dataset to a temporary file and renames them into place
// only once all of them were written, so a failed run leaves no partial
// output.
func (s CSVStore) Write(datasets ...Dataset) ([]string, error) {
	if err := os.MkdirAll(filepath.Join(s.Dir, s.Name), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	staged := make([]string, 0, len(datasets))
	cleanup := func() {
		for _, p := range staged {
			os.Remove(p)
		}
	}
	for _, d := range datasets {
		tmp := s.Path(d.Name) + ".tmp"
		if err := writeDatasetFile(tmp, d); err != nil {
			os.Remove(tmp)
			cleanup()
			return nil, fmt.Errorf("writing %s: %w", d.Name, err)
		}
		staged = append(staged, tmp)
	}

	paths := make([]string, 0, len(datasets))
	for i, d := range datasets {
		final := s.Path(d.Name)
		if err := os.Rename(staged[i], final); err != nil {
			cleanup()
			return nil, fmt.Errorf("moving %s into place: %w", d.Name, err)
		}
		paths = append(paths, final)
	}
	return paths, nil
}

func writeDatasetFile(path string, d Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteDataset(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteDataset writes the dataset as CSV with a sensor_name and timestamp
// column followed by the frame columns. Missing values are empty cells.
func WriteDataset(w io.Writer, d Dataset) error {
	columns := d.Columns()
	cw := csv.NewWriter(w)

	header := append([]string{constants.SensorNameColumn, timestampColumn}, columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for _, sf := range d.Frames {
		values := make([][]float64, len(columns))
		for j, c := range columns {
			if sf.Frame.Has(c) {
				values[j], _ = sf.Frame.Column(c)
			}
		}
		for i, t := range sf.Frame.Index() {
			record[0] = sf.Sensor
			record[1] = t.Format(TimestampLayout)
			for j, col := range values {
				record[j+2] = formatValue(col, i)
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(col []float64, i int) string {
	if col == nil || math.IsNaN(col[i]) {
		return ""
	}
	return strconv.FormatFloat(col[i], 'f', -1, 64)
}

// Load reads a dataset back into one frame per sensor.
func (s CSVStore) Load(dataset string) (map[string]*timeseries.Frame, error) {
	path := s.Path(dataset)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s does not exist; run sensorcal first to write calibrated data", path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDataset(f)
}

type sensorRows struct {
	index  []time.Time
	values [][]float64
}

// ReadDataset parses CSV written by WriteDataset.
func ReadDataset(r io.Reader) (map[string]*timeseries.Frame, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) < 2 || header[0] != constants.SensorNameColumn || header[1] != timestampColumn {
		return nil, fmt.Errorf("unexpected header %v", header)
	}
	columns := header[2:]

	rows := make(map[string]*sensorRows)
	var order []string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		t, err := time.ParseInLocation(TimestampLayout, rec[1], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		sr, ok := rows[rec[0]]
		if !ok {
			sr = &sensorRows{values: make([][]float64, len(columns))}
			rows[rec[0]] = sr
			order = append(order, rec[0])
		}
		sr.index = append(sr.index, t)
		for j, cell := range rec[2:] {
			v := math.NaN()
			if cell != "" {
				if v, err = strconv.ParseFloat(cell, 64); err != nil {
					return nil, fmt.Errorf("line %d column %s: %w", line, columns[j], err)
				}
			}
			sr.values[j] = append(sr.values[j], v)
		}
	}

	out := make(map[string]*timeseries.Frame, len(rows))
	for _, sensor := range order {
		sr := rows[sensor]
		f, err := timeseries.New(sr.index, columns, sr.values)
		if err != nil {
			return nil, fmt.Errorf("sensor %s: %w", sensor, err)
		}
		out[sensor] = f
	}
	return out, nil
}
