package calibration

import (
	"fmt"

	"github.com/chrissnell/sensorcal/internal/constants"
	"github.com/chrissnell/sensorcal/internal/models"
	"github.com/chrissnell/sensorcal/internal/timeseries"
)

// Resolution selects which preprocessed frame a task trains on.
type Resolution string

const (
	TenSecond Resolution = "10s"
	Hourly    Resolution = "1h"
)

// ParseResolution validates a configured resolution.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case TenSecond, Hourly:
		return r, nil
	}
	return "", fmt.Errorf("unknown resolution %q", s)
}

// Task describes how to calibrate one physical quantity.
type Task struct {
	Quantity   string
	Resolution Resolution
	// SourceColumn is the uncalibrated network reading copied to
	// <quantity>_uncalibrated.
	SourceColumn string
	// ReferenceColumn is the target after the reference prefix was applied.
	ReferenceColumn string
	InputColumns    []string
	LogColumns      []string
	// Models are trained in order; earlier entries win ties.
	Models []models.Spec
}

// CalibratedColumn is the name of the column holding calibrated values.
func (t Task) CalibratedColumn() string { return t.Quantity + constants.CalibratedSuffix }

// UncalibratedColumn is the name of the column holding the raw reading.
func (t Task) UncalibratedColumn() string { return t.Quantity + constants.UncalibratedSuffix }

func (t Task) validate() error {
	switch {
	case t.Quantity == "":
		return fmt.Errorf("task without a quantity")
	case t.ReferenceColumn == "":
		return fmt.Errorf("%s: no reference column", t.Quantity)
	case len(t.InputColumns) == 0:
		return fmt.Errorf("%s: no input columns", t.Quantity)
	case len(t.Models) == 0:
		return fmt.Errorf("%s: no models selected", t.Quantity)
	}
	if _, err := ParseResolution(string(t.Resolution)); err != nil {
		return fmt.Errorf("%s: %w", t.Quantity, err)
	}
	inputs := make(map[string]bool, len(t.InputColumns))
	for _, c := range t.InputColumns {
		inputs[c] = true
	}
	for _, c := range t.LogColumns {
		if !inputs[c] {
			return fmt.Errorf("%s: log column %q is not an input column: %w", t.Quantity, c, timeseries.ErrUnknownColumn)
		}
	}
	return nil
}

// Inputs holds one frame per resolution.
type Inputs struct {
	TenSecond *timeseries.Frame
	Hourly    *timeseries.Frame
}

// At returns the frame for r.
func (in Inputs) At(r Resolution) *timeseries.Frame {
	if r == Hourly {
		return in.Hourly
	}
	return in.TenSecond
}

func (in Inputs) with(r Resolution, f *timeseries.Frame) Inputs {
	if r == Hourly {
		in.Hourly = f
	} else {
		in.TenSecond = f
	}
	return in
}
