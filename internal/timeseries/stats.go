package timeseries

import (
	"math"
	"sort"
)

// Quantile returns the q-th quantile of the non-missing values using linear
// interpolation between closest ranks (h = (n-1)q), Hyndman & Fan type 7.
// gonum's stat.Quantile implements other definitions and gives different
// thresholds. Returns NaN when there are no values.
func Quantile(values []float64, q float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 || q < 0 || q > 1 {
		return math.NaN()
	}
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * q
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}
