package loaders

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/sensorcal/internal/timeseries"
)

// MITColumns are the fields of a City Scanner CSV record, in file order.
var MITColumns = []string{
	"is_summary", "deviceID", "timestamp", "latitude", "longitude",
	"PM1", "PM25", "PM10",
	"bin0", "bin1", "bin2", "bin3", "bin4", "bin5", "bin6", "bin7",
	"bin8", "bin9", "bin10", "bin11", "bin12", "bin13", "bin14", "bin15",
	"bin16", "bin17", "bin18", "bin19", "bin20", "bin21", "bin22", "bin23",
	"flowrate", "countglitch", "laser_status", "temperature_opc", "humidity_opc",
	"data_is_valid", "temperature", "humidity", "ambient_IR", "object_IR",
	"gas_op1_w", "gas_op1_r", "gas_op2_w", "gas_op2_r", "noise",
}

const (
	mitSummaryField   = 0
	mitTimestampField = 2
	// Device clocks report UTC; the study area is one hour ahead.
	mitClockOffset = time.Hour
	// Records stamped before this year come from unset device clocks.
	mitFirstValidYear = 2022
)

// MIT loads the mobile sensor network exports laid out as
// <dir>/<experiment>/<sensor>/**/*.CSV.
type MIT struct {
	Dir    string
	Logger *zap.SugaredLogger
}

// Load reads every sensor concurrently and returns them as a panel in the
// given order.
func (m MIT) Load(ctx context.Context, experiment string, sensors []string) (*timeseries.Panel, error) {
	frames := make([]*timeseries.Frame, len(sensors))
	g, ctx := errgroup.WithContext(ctx)
	for i, sensor := range sensors {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := m.LoadSensor(experiment, sensor)
			if err != nil {
				return err
			}
			frames[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	panel := timeseries.NewPanel()
	for i, sensor := range sensors {
		if err := panel.Add(sensor, frames[i]); err != nil {
			return nil, err
		}
	}
	return panel, nil
}

// LoadSensor reads all CSV files of one sensor into a sorted frame without
// duplicate timestamps.
func (m MIT) LoadSensor(experiment, sensor string) (*timeseries.Frame, error) {
	dir := filepath.Join(m.Dir, experiment, sensor)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("sensor %s: %w", sensor, err)
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".CSV") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sensor %s: %w", sensor, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("sensor %s: no CSV files in %s", sensor, dir)
	}
	sort.Strings(files)

	b := newColumnBuilder(mitValueColumns())
	for _, path := range files {
		if err := readMITFile(path, b); err != nil {
			return nil, fmt.Errorf("sensor %s: %w", sensor, err)
		}
	}

	f, err := timeseries.New(b.index, b.names, b.columns())
	if err != nil {
		return nil, err
	}
	f = f.Normalize()
	if m.Logger != nil {
		m.Logger.Debugw("loaded sensor", "sensor", sensor, "files", len(files), "rows", f.Len())
	}
	return f, nil
}

// mitValueColumns are the frame columns: every field except the summary flag
// and the timestamp.
func mitValueColumns() []string {
	out := make([]string, 0, len(MITColumns)-2)
	for i, name := range MITColumns {
		if i != mitSummaryField && i != mitTimestampField {
			out = append(out, name)
		}
	}
	return out
}

func readMITFile(path string, b *columnBuilder) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	return parseMIT(fh, b)
}

var errMalformedFirstLine = errors.New("malformed first line")

// parseMIT appends the detail records of one headerless City Scanner CSV to b.
// A first line that is not a record is skipped.
func parseMIT(r io.Reader, b *columnBuilder) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	row := make([]float64, len(MITColumns)-2)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if line == 1 {
				continue
			}
			return err
		}

		t, ok, err := parseMITRecord(rec, row)
		if err != nil {
			if line == 1 && errors.Is(err, errMalformedFirstLine) {
				continue
			}
			return fmt.Errorf("line %d: %w", line, err)
		}
		if ok {
			b.add(t, row)
		}
	}
}

// parseMITRecord fills row with the record's values. It reports false for
// summary records and records stamped before mitFirstValidYear.
func parseMITRecord(rec []string, row []float64) (time.Time, bool, error) {
	if len(rec) != len(MITColumns) {
		return time.Time{}, false, fmt.Errorf("%w: %d fields, want %d", errMalformedFirstLine, len(rec), len(MITColumns))
	}
	summary, err := parseValue(rec[mitSummaryField])
	if err != nil || math.IsNaN(summary) {
		return time.Time{}, false, fmt.Errorf("%w: is_summary %q", errMalformedFirstLine, rec[mitSummaryField])
	}
	if summary != 0 {
		return time.Time{}, false, nil
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(rec[mitTimestampField]), 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("timestamp %q: %w", rec[mitTimestampField], err)
	}
	whole, frac := math.Modf(secs)
	t := time.Unix(int64(whole), int64(frac*1e9)).UTC()
	if t.Year() < mitFirstValidYear {
		return time.Time{}, false, nil
	}

	k := 0
	for i, cell := range rec {
		if i == mitSummaryField || i == mitTimestampField {
			continue
		}
		row[k] = parseLenient(cell)
		k++
	}
	return t.Add(mitClockOffset), true, nil
}
