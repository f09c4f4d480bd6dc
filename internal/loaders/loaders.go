// Package loaders reads the raw exports of every sensor family into time
// series frames. Timestamps are local wall-clock times carried in time.UTC.
package loaders

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// parseValue parses a numeric cell. Blank cells are missing and a decimal
// comma is accepted.
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

// parseLenient is parseValue with unparseable cells treated as missing.
func parseLenient(s string) float64 {
	v, err := parseValue(s)
	if err != nil {
		return math.NaN()
	}
	return v
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"2-1-2006 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02",
}

// parseTimestamp accepts the date layouts seen in the exports.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// columnBuilder accumulates rows of a frame.
type columnBuilder struct {
	names  []string
	index  []time.Time
	values [][]float64
}

func newColumnBuilder(names []string) *columnBuilder {
	return &columnBuilder{
		names:  names,
		values: make([][]float64, len(names)),
	}
}

func (b *columnBuilder) add(t time.Time, row []float64) {
	b.index = append(b.index, t)
	for i, v := range row {
		b.values[i] = append(b.values[i], v)
	}
}

func (b *columnBuilder) columns() [][]float64 {
	for i := range b.values {
		if b.values[i] == nil {
			b.values[i] = []float64{}
		}
	}
	return b.values
}
