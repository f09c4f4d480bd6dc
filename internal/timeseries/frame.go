// Package timeseries holds the tabular time series type shared by the loaders,
// the preprocessor and the calibrator.
//
// A Frame is an ordered sequence of timestamps with any number of named float64
// columns. Missing values are NaN. Frames are never modified in place: every
// operation returns a new Frame, and column slices are shared between frames
// only because nothing ever writes to them after construction.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ErrUnknownColumn is returned when a requested column does not exist in a frame.
var ErrUnknownColumn = errors.New("unknown column")

// Frame is an immutable time-indexed table of float64 columns.
type Frame struct {
	index   []time.Time
	columns []string
	data    map[string][]float64
}

// New builds a frame from an index and column slices. values[i] belongs to columns[i]
// and must have the same length as index.
func New(index []time.Time, columns []string, values [][]float64) (*Frame, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("got %d column names for %d columns", len(columns), len(values))
	}

	f := &Frame{
		index:   index,
		columns: make([]string, 0, len(columns)),
		data:    make(map[string][]float64, len(columns)),
	}
	for i, name := range columns {
		if len(values[i]) != len(index) {
			return nil, fmt.Errorf("column %q has %d values, index has %d", name, len(values[i]), len(index))
		}
		if _, dup := f.data[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		f.columns = append(f.columns, name)
		f.data[name] = values[i]
	}
	return f, nil
}

// Empty returns a frame with the given columns and no rows.
func Empty(columns ...string) *Frame {
	values := make([][]float64, len(columns))
	for i := range values {
		values[i] = []float64{}
	}
	f, _ := New([]time.Time{}, columns, values)
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.index) }

// Index returns the timestamps. The slice must not be modified.
func (f *Frame) Index() []time.Time { return f.index }

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Has reports whether the frame has a column called name.
func (f *Frame) Has(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Column returns the values of a column. The slice must not be modified.
func (f *Frame) Column(name string) ([]float64, error) {
	v, ok := f.data[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return v, nil
}

// WithColumn returns a copy of f with the column set to values. An existing
// column of the same name is replaced in place in the column order.
func (f *Frame) WithColumn(name string, values []float64) (*Frame, error) {
	if len(values) != len(f.index) {
		return nil, fmt.Errorf("column %q has %d values, index has %d", name, len(values), len(f.index))
	}
	out := f.shallowCopy()
	if _, ok := out.data[name]; !ok {
		out.columns = append(out.columns, name)
	}
	out.data[name] = values
	return out, nil
}

// Select returns a frame with only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	values := make([][]float64, len(names))
	for i, name := range names {
		v, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return New(f.index, names, values)
}

// Rename returns a frame with columns renamed according to mapping. Columns not in
// mapping keep their name.
func (f *Frame) Rename(mapping map[string]string) (*Frame, error) {
	names := make([]string, len(f.columns))
	values := make([][]float64, len(f.columns))
	for i, name := range f.columns {
		values[i] = f.data[name]
		if to, ok := mapping[name]; ok {
			name = to
		}
		names[i] = name
	}
	return New(f.index, names, values)
}

// AddPrefix returns a frame with prefix prepended to every column name.
func (f *Frame) AddPrefix(prefix string) *Frame {
	mapping := make(map[string]string, len(f.columns))
	for _, name := range f.columns {
		mapping[name] = prefix + name
	}
	out, _ := f.Rename(mapping)
	return out
}

// Take returns the rows at the given positions, in that order.
func (f *Frame) Take(rows []int) *Frame {
	index := make([]time.Time, len(rows))
	for i, r := range rows {
		index[i] = f.index[r]
	}
	out := &Frame{index: index, columns: f.Columns(), data: make(map[string][]float64, len(f.columns))}
	for _, name := range f.columns {
		src := f.data[name]
		dst := make([]float64, len(rows))
		for i, r := range rows {
			dst[i] = src[r]
		}
		out.data[name] = dst
	}
	return out
}

// Filter keeps the rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	rows := make([]int, 0, len(f.index))
	for i := range f.index {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return f.Take(rows)
}

// Between returns the rows with start <= timestamp <= end. A zero start or end
// leaves that side open.
func (f *Frame) Between(start, end time.Time) *Frame {
	return f.Filter(func(i int) bool {
		t := f.index[i]
		if !start.IsZero() && t.Before(start) {
			return false
		}
		if !end.IsZero() && t.After(end) {
			return false
		}
		return true
	})
}

// Normalize sorts the frame chronologically and drops repeated timestamps,
// keeping the first occurrence.
func (f *Frame) Normalize() *Frame {
	rows := make([]int, len(f.index))
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return f.index[rows[a]].Before(f.index[rows[b]])
	})

	kept := rows[:0]
	for i, r := range rows {
		if i > 0 && f.index[r].Equal(f.index[kept[len(kept)-1]]) {
			continue
		}
		kept = append(kept, r)
	}
	return f.Take(kept)
}

// DropNA removes rows with a missing value in any of the named columns, or in any
// column when no names are given.
func (f *Frame) DropNA(names ...string) (*Frame, error) {
	cols, err := f.columnSlices(names)
	if err != nil {
		return nil, err
	}
	return f.Filter(func(i int) bool {
		for _, c := range cols {
			if math.IsNaN(c[i]) {
				return false
			}
		}
		return true
	}), nil
}

// HasNA reports whether any of the named columns (all columns when none are
// given) holds a missing value.
func (f *Frame) HasNA(names ...string) (bool, error) {
	cols, err := f.columnSlices(names)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		for _, v := range c {
			if math.IsNaN(v) {
				return true, nil
			}
		}
	}
	return false, nil
}

// Matrix returns the named columns as a rows×len(names) dense matrix.
func (f *Frame) Matrix(names []string) (*mat.Dense, error) {
	cols, err := f.columnSlices(names)
	if err != nil {
		return nil, err
	}
	if len(f.index) == 0 || len(cols) == 0 {
		return nil, fmt.Errorf("cannot build a %dx%d matrix", len(f.index), len(cols))
	}
	m := mat.NewDense(len(f.index), len(cols), nil)
	for j, c := range cols {
		for i, v := range c {
			m.Set(i, j, v)
		}
	}
	return m, nil
}

func (f *Frame) columnSlices(names []string) ([][]float64, error) {
	if len(names) == 0 {
		names = f.columns
	}
	cols := make([][]float64, len(names))
	for i, name := range names {
		c, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return cols, nil
}

func (f *Frame) shallowCopy() *Frame {
	out := &Frame{
		index:   f.index,
		columns: f.Columns(),
		data:    make(map[string][]float64, len(f.data)+1),
	}
	for k, v := range f.data {
		out.data[k] = v
	}
	return out
}
