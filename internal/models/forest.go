package models

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext/prng"
)

// ForestParams are the random forest hyperparameters.
type ForestParams struct {
	Trees           int
	MinSamplesSplit int
	// MinSamplesLeaf is a fraction of the training rows; each leaf holds at
	// least ceil(MinSamplesLeaf*rows) samples.
	MinSamplesLeaf float64
	Seed           uint64
	// Workers bounds the number of trees grown concurrently. Zero means
	// GOMAXPROCS.
	Workers int
}

// DefaultForestParams returns 200 trees, a minimum of 4 samples to split and
// leaves of at least 1% of the training rows.
func DefaultForestParams() ForestParams {
	return ForestParams{
		Trees:           200,
		MinSamplesSplit: 4,
		MinSamplesLeaf:  0.01,
		Seed:            5,
	}
}

// Forest is a bagged ensemble of regression trees. Every tree is grown on a
// bootstrap sample and considers floor(sqrt(features)) random candidate
// features at each split. The prediction is the mean of the trees.
type Forest struct {
	params   ForestParams
	features int
	trees    []*tree
}

// NewForest returns an unfitted forest.
func NewForest(params ForestParams) *Forest {
	return &Forest{params: params}
}

func (f *Forest) Clone() Regressor { return NewForest(f.params) }

// Fit grows the trees. Tree i draws from its own generator seeded with
// Seed+i, so the result does not depend on scheduling.
func (f *Forest) Fit(X mat.Matrix, y []float64) error {
	r, c, err := checkShape(X, y)
	if err != nil {
		return err
	}
	if f.params.Trees < 1 {
		return fmt.Errorf("forest needs at least one tree, got %d", f.params.Trees)
	}

	data := mat.DenseCopyOf(X)
	minLeaf := int(math.Ceil(f.params.MinSamplesLeaf * float64(r)))
	if minLeaf < 1 {
		minLeaf = 1
	}
	minSplit := f.params.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}
	maxFeatures := int(math.Sqrt(float64(c)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	workers := f.params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*tree, f.params.Trees)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			src := prng.NewMT19937()
			src.Seed(f.params.Seed + uint64(i))
			b := &treeBuilder{
				x:           data,
				y:           y,
				rng:         src,
				minLeaf:     minLeaf,
				minSplit:    minSplit,
				maxFeatures: maxFeatures,
			}
			trees[i] = b.grow(bootstrap(src, r))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.features = c
	f.trees = trees
	return nil
}

// Predict averages the trees. Rows with a missing input predict NaN.
func (f *Forest) Predict(X mat.Matrix) ([]float64, error) {
	if len(f.trees) == 0 {
		return nil, ErrNotFitted
	}
	r, c, err := checkShape(X, nil)
	if err != nil {
		return nil, err
	}
	if c != f.features {
		return nil, fmt.Errorf("model has %d features, got %d", f.features, c)
	}

	out := make([]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		if hasNaN(row) {
			out[i] = math.NaN()
			continue
		}
		var sum float64
		for _, t := range f.trees {
			sum += t.predict(row)
		}
		out[i] = sum / float64(len(f.trees))
	}
	return out, nil
}

func bootstrap(src *prng.MT19937, n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = intn(src, n)
	}
	return rows
}

// intn returns a uniform integer in [0, n) by rejection sampling.
func intn(src *prng.MT19937, n int) int {
	bound := uint64(n)
	limit := math.MaxUint64 - math.MaxUint64%bound
	for {
		v := src.Uint64()
		if v < limit {
			return int(v % bound)
		}
	}
}

func hasNaN(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
