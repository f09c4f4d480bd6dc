package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Panel is a set of frames from co-located units of one sensor family, keyed by
// sensor name. Names keep their insertion order.
type Panel struct {
	names  []string
	frames map[string]*Frame
}

// NewPanel returns an empty panel.
func NewPanel() *Panel {
	return &Panel{frames: make(map[string]*Frame)}
}

// Add registers a sensor's frame.
func (p *Panel) Add(name string, f *Frame) error {
	if _, dup := p.frames[name]; dup {
		return fmt.Errorf("sensor %q already in panel", name)
	}
	p.names = append(p.names, name)
	p.frames[name] = f
	return nil
}

// Names returns the sensor names in insertion order.
func (p *Panel) Names() []string {
	return append([]string(nil), p.names...)
}

// Get returns the frame of one sensor.
func (p *Panel) Get(name string) (*Frame, bool) {
	f, ok := p.frames[name]
	return f, ok
}

// Len returns the number of sensors.
func (p *Panel) Len() int { return len(p.names) }

// Map applies fn to every sensor frame and returns the resulting panel.
func (p *Panel) Map(fn func(name string, f *Frame) (*Frame, error)) (*Panel, error) {
	out := NewPanel()
	for _, name := range p.names {
		f, err := fn(name, p.frames[name])
		if err != nil {
			return nil, fmt.Errorf("sensor %s: %w", name, err)
		}
		if err := out.Add(name, f); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MeanAcross averages the named columns across sensors at every timestamp that
// occurs in at least one sensor frame. Missing values are skipped; a timestamp
// where no sensor has a value yields NaN.
func (p *Panel) MeanAcross(columns ...string) (*Frame, error) {
	seen := make(map[int64]time.Time)
	for _, name := range p.names {
		for _, t := range p.frames[name].index {
			seen[t.UnixNano()] = t
		}
	}
	index := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		index = append(index, t)
	}
	sort.Slice(index, func(a, b int) bool { return index[a].Before(index[b]) })

	pos := make(map[int64]int, len(index))
	for i, t := range index {
		pos[t.UnixNano()] = i
	}

	values := make([][]float64, len(columns))
	for j, col := range columns {
		sums := make([]float64, len(index))
		counts := make([]int, len(index))
		for _, name := range p.names {
			f := p.frames[name]
			src, err := f.Column(col)
			if err != nil {
				return nil, fmt.Errorf("sensor %s: %w", name, err)
			}
			for i, v := range src {
				if math.IsNaN(v) {
					continue
				}
				k := pos[f.index[i].UnixNano()]
				sums[k] += v
				counts[k]++
			}
		}
		out := make([]float64, len(index))
		for k := range out {
			if counts[k] == 0 {
				out[k] = math.NaN()
				continue
			}
			out[k] = sums[k] / float64(counts[k])
		}
		values[j] = out
	}
	return New(index, columns, values)
}
