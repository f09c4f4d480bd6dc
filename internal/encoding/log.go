// Package encoding holds reversible value transforms applied to model inputs
// and targets before fitting.
package encoding

import (
	"math"

	"github.com/chrissnell/sensorcal/internal/timeseries"
)

// LogEncoder replaces a fixed set of columns with their natural logarithm. The
// target is always encoded. Non-positive values become -Inf or NaN and are
// passed through untouched.
type LogEncoder struct {
	columns []string
}

// NewLogEncoder returns an encoder for the named input columns.
func NewLogEncoder(columns ...string) *LogEncoder {
	return &LogEncoder{columns: append([]string(nil), columns...)}
}

// Columns returns the encoded input column names.
func (e *LogEncoder) Columns() []string {
	return append([]string(nil), e.columns...)
}

// EncodeX returns a copy of f with the encoder's columns log-transformed. A
// column absent from f is an error wrapping timeseries.ErrUnknownColumn.
func (e *LogEncoder) EncodeX(f *timeseries.Frame) (*timeseries.Frame, error) {
	return e.apply(f, math.Log)
}

// DecodeX inverts EncodeX.
func (e *LogEncoder) DecodeX(f *timeseries.Frame) (*timeseries.Frame, error) {
	return e.apply(f, math.Exp)
}

// EncodeY returns the natural logarithm of every target value.
func (e *LogEncoder) EncodeY(y []float64) []float64 {
	return mapValues(y, math.Log)
}

// DecodeY inverts EncodeY.
func (e *LogEncoder) DecodeY(y []float64) []float64 {
	return mapValues(y, math.Exp)
}

func (e *LogEncoder) apply(f *timeseries.Frame, fn func(float64) float64) (*timeseries.Frame, error) {
	out := f
	for _, name := range e.columns {
		src, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		if out, err = out.WithColumn(name, mapValues(src, fn)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func mapValues(in []float64, fn func(float64) float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
