// Package aqi converts particulate matter concentrations to the EPA Air
// Quality Index.
package aqi

import (
	"fmt"
	"math"
	"strings"
)

// Pollutant selects the breakpoint table.
type Pollutant string

const (
	PM25 Pollutant = "pm25"
	PM10 Pollutant = "pm10"
)

// ParsePollutant validates a configured pollutant name.
func ParsePollutant(s string) (Pollutant, error) {
	switch p := Pollutant(strings.ToLower(strings.TrimSpace(s))); p {
	case PM25, PM10:
		return p, nil
	}
	return "", fmt.Errorf("no AQI breakpoints for %q", s)
}

type breakpoint struct {
	cLow, cHigh float64
	iLow, iHigh float64
}

// 24-hour average breakpoints in µg/m³.
var tables = map[Pollutant][]breakpoint{
	PM25: {
		{0.0, 12.0, 0, 50},
		{12.1, 35.4, 51, 100},
		{35.5, 55.4, 101, 150},
		{55.5, 150.4, 151, 200},
		{150.5, 250.4, 201, 300},
		{250.5, 350.4, 301, 400},
		{350.5, 500.4, 401, 500},
	},
	PM10: {
		{0, 54, 0, 50},
		{55, 154, 51, 100},
		{155, 254, 101, 150},
		{255, 354, 151, 200},
		{355, 424, 201, 300},
		{425, 504, 301, 400},
		{505, 604, 401, 500},
	},
}

// Index returns the rounded AQI of concentration c. Negative concentrations
// give 0, concentrations past the last breakpoint give 500 and NaN stays NaN.
func Index(p Pollutant, c float64) float64 {
	if math.IsNaN(c) {
		return math.NaN()
	}
	if c < 0 {
		return 0
	}
	for _, b := range tables[p] {
		if c <= b.cHigh {
			return math.Round((b.iHigh-b.iLow)/(b.cHigh-b.cLow)*(c-b.cLow) + b.iLow)
		}
	}
	return 500
}

// Series applies Index to every value.
func Series(p Pollutant, values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = Index(p, v)
	}
	return out
}

// Category returns the EPA category name of an index value.
func Category(index float64) string {
	switch {
	case math.IsNaN(index):
		return ""
	case index <= 50:
		return "Good"
	case index <= 100:
		return "Moderate"
	case index <= 150:
		return "Unhealthy for Sensitive Groups"
	case index <= 200:
		return "Unhealthy"
	case index <= 300:
		return "Very Unhealthy"
	}
	return "Hazardous"
}
