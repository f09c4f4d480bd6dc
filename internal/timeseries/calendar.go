package timeseries

import (
	"time"

	"github.com/chrissnell/sensorcal/pkg/solar"
)

// Calendar column names.
const (
	ColDate           = "date"
	ColDayOfWeek      = "day_of_week"
	ColTimeOfDay      = "time_of_day"
	ColIsWeekday      = "is_weekday"
	ColSolarElevation = "solar_elevation"
)

// WithCalendar adds calendar-derived columns computed from the index: date as
// YYYYMMDD, day_of_week with Monday as 0, time_of_day in fractional hours and
// is_weekday as 0 or 1.
func (f *Frame) WithCalendar() (*Frame, error) {
	n := f.Len()
	date := make([]float64, n)
	dow := make([]float64, n)
	tod := make([]float64, n)
	weekday := make([]float64, n)

	for i, t := range f.index {
		date[i] = float64(t.Year()*10000 + int(t.Month())*100 + t.Day())
		d := (int(t.Weekday()) + 6) % 7
		dow[i] = float64(d)
		tod[i] = float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
		if d < 5 {
			weekday[i] = 1
		}
	}

	out := f
	for _, c := range []struct {
		name   string
		values []float64
	}{
		{ColDate, date},
		{ColDayOfWeek, dow},
		{ColTimeOfDay, tod},
		{ColIsWeekday, weekday},
	} {
		var err error
		if out, err = out.WithColumn(c.name, c.values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WithSolarElevation adds the sun's elevation in degrees at every timestamp for
// an observer at lat/lon. Index timestamps are wall-clock times utcOffset ahead
// of UTC.
func (f *Frame) WithSolarElevation(lat, lon float64, utcOffset time.Duration) (*Frame, error) {
	elev := make([]float64, f.Len())
	for i, t := range f.index {
		elev[i] = solar.SunPosition(t.Add(-utcOffset), lat, lon).ElevationDeg
	}
	return f.WithColumn(ColSolarElevation, elev)
}
