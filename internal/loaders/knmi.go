package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/sensorcal/internal/timeseries"
)

// DefaultKNMIFilePattern names the hourly station export; %s is the station
// code.
const DefaultKNMIFilePattern = "uurgeg_%s_2021-2030.txt"

// KNMICodes maps the hourly export's column codes to column names. Values are
// kept in the export's units.
var KNMICodes = map[string]string{
	"DD":   "wind_direction",
	"FH":   "wind_speed_hourly",
	"FF":   "wind_speed_last10min",
	"FX":   "wind_max_gust",
	"T":    "temperature",
	"T10N": "temperature_min",
	"TD":   "temperature_dew_point",
	"SQ":   "sunshine_duration",
	"Q":    "global_radiation",
	"DR":   "precipitation_duration",
	"RH":   "precipitation_hourly",
	"P":    "air_pressure",
	"VV":   "horizontal_visibility",
	"N":    "cloud_cover",
	"U":    "relative_humidity",
	"WW":   "weather_code",
	"IX":   "indicator_present_weather_code",
	"M":    "is_foggy",
	"R":    "is_raining",
	"S":    "is_snowing",
	"O":    "is_thundering",
	"Y":    "ice_formation",
}

// KNMI loads hourly weather station exports.
type KNMI struct {
	Dir string
	// FilePattern defaults to DefaultKNMIFilePattern.
	FilePattern string
}

// Load reads the export of station and keeps the rows within [start, end].
// A zero start or end leaves that side open.
func (k KNMI) Load(station string, start, end time.Time) (*timeseries.Frame, error) {
	pattern := k.FilePattern
	if pattern == "" {
		pattern = DefaultKNMIFilePattern
	}
	path := filepath.Join(k.Dir, fmt.Sprintf(pattern, station))
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("knmi station %s: %w", station, err)
	}
	defer fh.Close()

	f, err := ParseKNMI(fh)
	if err != nil {
		return nil, fmt.Errorf("knmi station %s: %w", station, err)
	}
	return f.Between(start, end), nil
}

// ParseKNMI reads an hourly export. Lines before the "# STN" header are
// skipped, blank cells are missing and unknown codes are dropped. Hour 24 is
// midnight of the following day.
func ParseKNMI(r io.Reader) (*timeseries.Frame, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var header []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "# STN") {
			header = splitTrim(strings.TrimPrefix(line, "#"))
			break
		}
	}
	if header == nil {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no # STN header line")
	}

	dateField, hourField := -1, -1
	var fields []int
	var names []string
	for i, code := range header {
		switch code {
		case "YYYYMMDD":
			dateField = i
		case "HH":
			hourField = i
		default:
			if name, ok := KNMICodes[code]; ok {
				fields = append(fields, i)
				names = append(names, name)
			}
		}
	}
	if dateField < 0 || hourField < 0 {
		return nil, fmt.Errorf("header lacks YYYYMMDD or HH")
	}

	b := newColumnBuilder(names)
	row := make([]float64, len(fields))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rec := splitTrim(text)
		if len(rec) < len(header) {
			return nil, fmt.Errorf("data line %d: %d fields, want %d", line, len(rec), len(header))
		}

		t, err := knmiTimestamp(rec[dateField], rec[hourField])
		if err != nil {
			return nil, fmt.Errorf("data line %d: %w", line, err)
		}
		for k, i := range fields {
			if row[k], err = parseValue(rec[i]); err != nil {
				return nil, fmt.Errorf("data line %d, %s: %w", line, names[k], err)
			}
		}
		b.add(t, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	f, err := timeseries.New(b.index, b.names, b.columns())
	if err != nil {
		return nil, err
	}
	return f.Normalize(), nil
}

func knmiTimestamp(date, hour string) (time.Time, error) {
	day, err := time.ParseInLocation("20060102", date, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", date, err)
	}
	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 24 {
		return time.Time{}, fmt.Errorf("hour %q out of range", hour)
	}
	return day.Add(time.Duration(h) * time.Hour), nil
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
