package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Common grid frequencies.
const (
	TenSeconds = 10 * time.Second
	Hourly     = time.Hour
)

// Resample buckets rows onto a fixed grid and averages every column per bucket,
// ignoring missing values. The result has one row per bucket from the first to
// the last occupied bucket; buckets without data are all-NaN. The frame must be
// sorted.
func (f *Frame) Resample(freq time.Duration) (*Frame, error) {
	if freq <= 0 {
		return nil, fmt.Errorf("invalid resample frequency %s", freq)
	}
	if f.Len() == 0 {
		return Empty(f.columns...), nil
	}

	first := f.index[0].Truncate(freq)
	last := f.index[len(f.index)-1].Truncate(freq)
	n := int(last.Sub(first)/freq) + 1
	if n <= 0 {
		return nil, fmt.Errorf("frame is not sorted")
	}

	index := make([]time.Time, n)
	for i := range index {
		index[i] = first.Add(time.Duration(i) * freq)
	}

	bucket := make([]int, len(f.index))
	for i, t := range f.index {
		bucket[i] = int(t.Truncate(freq).Sub(first) / freq)
	}

	values := make([][]float64, len(f.columns))
	for j, name := range f.columns {
		src := f.data[name]
		sums := make([]float64, n)
		counts := make([]int, n)
		for i, v := range src {
			if math.IsNaN(v) {
				continue
			}
			sums[bucket[i]] += v
			counts[bucket[i]]++
		}
		out := make([]float64, n)
		for b := range out {
			if counts[b] == 0 {
				out[b] = math.NaN()
				continue
			}
			out[b] = sums[b] / float64(counts[b])
		}
		values[j] = out
	}
	return New(index, f.Columns(), values)
}

// AsFreq conforms a sorted frame to a regular grid starting at its first
// timestamp. Grid points that coincide with an existing row take its values,
// every other point is missing.
func (f *Frame) AsFreq(freq time.Duration) (*Frame, error) {
	if freq <= 0 {
		return nil, fmt.Errorf("invalid frequency %s", freq)
	}
	if f.Len() == 0 {
		return Empty(f.columns...), nil
	}

	first := f.index[0]
	n := int(f.index[len(f.index)-1].Sub(first)/freq) + 1
	if n <= 0 {
		return nil, fmt.Errorf("frame is not sorted")
	}
	index := make([]time.Time, n)
	for i := range index {
		index[i] = first.Add(time.Duration(i) * freq)
	}

	src := make([]int, n)
	for i := range src {
		src[i] = -1
	}
	for i, t := range f.index {
		off := t.Sub(first)
		if off%freq != 0 {
			continue
		}
		if k := int(off / freq); k < n && src[k] < 0 {
			src[k] = i
		}
	}

	values := make([][]float64, len(f.columns))
	for j, name := range f.columns {
		col := f.data[name]
		out := make([]float64, n)
		for k, i := range src {
			if i < 0 {
				out[k] = math.NaN()
				continue
			}
			out[k] = col[i]
		}
		values[j] = out
	}
	return New(index, f.Columns(), values)
}

// FFill propagates the last valid value of every column forward over missing values.
func (f *Frame) FFill() *Frame {
	out := f.shallowCopy()
	for _, name := range f.columns {
		src := f.data[name]
		dst := make([]float64, len(src))
		last := math.NaN()
		for i, v := range src {
			if !math.IsNaN(v) {
				last = v
			}
			dst[i] = last
		}
		out.data[name] = dst
	}
	return out
}

// AsOf returns, for every target timestamp, the value of column name at the
// latest row at or before it. Targets before the first row get NaN. The frame
// must be sorted.
func (f *Frame) AsOf(name string, targets []time.Time) ([]float64, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(targets))
	for i, t := range targets {
		// first row strictly after t
		k := sort.Search(len(f.index), func(j int) bool {
			return f.index[j].After(t)
		})
		if k == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = col[k-1]
	}
	return out, nil
}
