package background

import (
	"fmt"
	"math"
	"sync"

	"github.com/chrissnell/sensorcal/internal/timeseries"
)

// Suffixes of the columns added by Subtract.
const (
	LevelSuffix       = "_bg"
	WithoutBackground = "_nobg"
)

// DefaultTypeWeights weighs stations by type: background stations fully,
// traffic stations partly and industrial stations not at all. Unknown types
// weigh 1.
func DefaultTypeWeights() map[string]float64 {
	return map[string]float64{
		"achtergrond": 1.0,
		"industrie":   0.0,
		"verkeer":     0.3,
	}
}

// Source loads the station readings of one component.
type Source interface {
	Load(component string) (*timeseries.Frame, error)
}

// Cache keeps loaded station frames for the life of the process, keyed by
// component. Entries are never invalidated.
type Cache struct {
	source Source

	mu     sync.Mutex
	frames map[string]*timeseries.Frame
}

// NewCache returns an empty cache backed by source.
func NewCache(source Source) *Cache {
	return &Cache{source: source, frames: make(map[string]*timeseries.Frame)}
}

// Get returns the station frame of component, loading it on first use.
func (c *Cache) Get(component string) (*timeseries.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.frames[component]; ok {
		return f, nil
	}
	f, err := c.source.Load(component)
	if err != nil {
		return nil, err
	}
	c.frames[component] = f
	return f, nil
}

// Levels computes weighted background levels from cached station data.
type Levels struct {
	Cache *Cache
	// StationTypes maps a station code to its type.
	StationTypes map[string]string
	TypeWeights  map[string]float64
}

// Weights returns the weight of each station, normalised to sum to one.
func (l Levels) Weights(stations []string) (map[string]float64, error) {
	w := make(map[string]float64, len(stations))
	var sum float64
	for _, st := range stations {
		weight := 1.0
		if typ, ok := l.StationTypes[st]; ok {
			if tw, ok := l.TypeWeights[typ]; ok {
				weight = tw
			}
		}
		w[st] = weight
		sum += weight
	}
	if sum <= 0 {
		return nil, fmt.Errorf("station weights sum to %v", sum)
	}
	for st := range w {
		w[st] /= sum
	}
	return w, nil
}

// LevelColumn holds the weighted mean in the frame returned by Mean.
const LevelColumn = "level"

// Mean returns the weighted mean background level of component per hour. At
// hours where some stations are missing, the weights of the others are
// rescaled to sum to one, so a single missing station does not blank the
// hour and the level is a mean over fewer stations. Only an hour without any
// positively weighted station is NaN.
func (l Levels) Mean(component string) (*timeseries.Frame, error) {
	stations, err := l.Cache.Get(component)
	if err != nil {
		return nil, err
	}
	names := stations.Columns()
	weights, err := l.Weights(names)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", component, err)
	}

	mean := make([]float64, stations.Len())
	for i := range mean {
		var sum, wsum float64
		for _, st := range names {
			col, _ := stations.Column(st)
			if v := col[i]; !math.IsNaN(v) && weights[st] > 0 {
				sum += weights[st] * v
				wsum += weights[st]
			}
		}
		if wsum == 0 {
			mean[i] = math.NaN()
			continue
		}
		mean[i] = sum / wsum
	}
	return timeseries.New(stations.Index(), []string{LevelColumn}, [][]float64{mean})
}

// Subtract adds <column>_bg with the background level in effect at every
// timestamp of f (the latest hourly level at or before it) and
// <column>_nobg with the column minus that level.
func (l Levels) Subtract(f *timeseries.Frame, column, component string) (*timeseries.Frame, error) {
	values, err := f.Column(column)
	if err != nil {
		return nil, err
	}
	levels, err := l.Mean(component)
	if err != nil {
		return nil, err
	}
	bg, err := levels.AsOf(LevelColumn, f.Index())
	if err != nil {
		return nil, err
	}

	nobg := make([]float64, len(values))
	for i, v := range values {
		nobg[i] = v - bg[i]
	}
	out, err := f.WithColumn(column+LevelSuffix, bg)
	if err != nil {
		return nil, err
	}
	return out.WithColumn(column+WithoutBackground, nobg)
}
