package aqi

import (
	"math"
	"testing"
)

func TestIndex(t *testing.T) {
	tests := []struct {
		name string
		p    Pollutant
		c    float64
		want float64
	}{
		{"pm25 zero", PM25, 0, 0},
		{"pm25 good edge", PM25, 12.0, 50},
		{"pm25 moderate", PM25, 20, 68},
		{"pm25 unhealthy", PM25, 100, 174},
		{"pm25 beyond scale", PM25, 600, 500},
		{"pm25 negative", PM25, -3, 0},
		{"pm10 moderate", PM10, 100, 73},
		{"pm10 beyond scale", PM10, 700, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Index(tt.p, tt.c); got != tt.want {
				t.Errorf("Index(%s, %v) = %v, want %v", tt.p, tt.c, got, tt.want)
			}
		})
	}

	if got := Index(PM25, math.NaN()); !math.IsNaN(got) {
		t.Errorf("Index(NaN) = %v, want NaN", got)
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		index float64
		want  string
	}{
		{25, "Good"},
		{75, "Moderate"},
		{125, "Unhealthy for Sensitive Groups"},
		{175, "Unhealthy"},
		{250, "Very Unhealthy"},
		{400, "Hazardous"},
		{math.NaN(), ""},
	}
	for _, tt := range tests {
		if got := Category(tt.index); got != tt.want {
			t.Errorf("Category(%v) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestParsePollutant(t *testing.T) {
	if p, err := ParsePollutant(" PM25 "); err != nil || p != PM25 {
		t.Errorf("ParsePollutant(PM25) = %v, %v", p, err)
	}
	if _, err := ParsePollutant("no2"); err == nil {
		t.Error("expected an error for no2")
	}
}
