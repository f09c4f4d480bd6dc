package output

import (
	"context"
	"math"

	"github.com/chrissnell/sensorcal/internal/constants"
	"github.com/chrissnell/sensorcal/internal/database"
	"github.com/chrissnell/sensorcal/internal/timeseries"
)

// AQISuffix names the index column derived from a calibrated quantity.
const AQISuffix = constants.CalibratedSuffix + "_aqi"

// ReadingWriter stores calibrated readings. *database.Client implements it.
type ReadingWriter interface {
	InsertReadings(ctx context.Context, readings []database.CalibratedReading) error
}

// TimescaleSink writes datasets to the calibrated_readings table.
type TimescaleSink struct {
	Writer     ReadingWriter
	RunID      string
	Quantities []string
}

// Write stores every dataset. Rows whose values are all missing are skipped.
func (s TimescaleSink) Write(ctx context.Context, datasets ...Dataset) (int, error) {
	total := 0
	for _, d := range datasets {
		var readings []database.CalibratedReading
		for _, sf := range d.Frames {
			readings = append(readings, Readings(s.RunID, d.Name, sf.Sensor, sf.Frame, s.Quantities)...)
		}
		if err := s.Writer.InsertReadings(ctx, readings); err != nil {
			return total, err
		}
		total += len(readings)
	}
	return total, nil
}

// Readings flattens a calibrated frame into one reading per timestamp and
// quantity present in the frame.
func Readings(runID, resolution, sensor string, f *timeseries.Frame, quantities []string) []database.CalibratedReading {
	var out []database.CalibratedReading
	for _, q := range quantities {
		cal := optionalColumn(f, q+constants.CalibratedSuffix)
		if cal == nil {
			continue
		}
		raw := optionalColumn(f, q+constants.UncalibratedSuffix)
		idx := optionalColumn(f, q+AQISuffix)

		for i, t := range f.Index() {
			r := database.CalibratedReading{
				Time:         t,
				RunID:        runID,
				SensorName:   sensor,
				Resolution:   resolution,
				Quantity:     q,
				Calibrated:   valueAt(cal, i),
				Uncalibrated: valueAt(raw, i),
				AQI:          valueAt(idx, i),
			}
			if r.Calibrated == nil && r.Uncalibrated == nil {
				continue
			}
			out = append(out, r)
		}
	}
	return out
}

func optionalColumn(f *timeseries.Frame, name string) []float64 {
	if !f.Has(name) {
		return nil
	}
	col, _ := f.Column(name)
	return col
}

func valueAt(col []float64, i int) *float64 {
	if col == nil || math.IsNaN(col[i]) || math.IsInf(col[i], 0) {
		return nil
	}
	v := col[i]
	return &v
}
