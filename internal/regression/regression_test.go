package regression

import (
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/chrissnell/sensorcal/internal/encoding"
	"github.com/chrissnell/sensorcal/internal/models"
	"github.com/chrissnell/sensorcal/internal/timeseries"
)

func TestSplitReproducible(t *testing.T) {
	train1, test1, err := Split(101, 0.8, 5)
	require.NoError(t, err)
	train2, test2, err := Split(101, 0.8, 5)
	require.NoError(t, err)

	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)
	assert.Len(t, test1, 21)
	assert.Len(t, train1, 80)

	all := append(append([]int(nil), train1...), test1...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v, "partitions must cover every row exactly once")
	}

	_, test3, err := Split(101, 0.8, 6)
	require.NoError(t, err)
	assert.NotEqual(t, test1, test3)
}

func TestSplitRejectsBadArguments(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		fraction float64
	}{
		{"zero fraction", 10, 0},
		{"whole fraction", 10, 1},
		{"single row", 1, 0.8},
		{"no rows", 0, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Split(tt.n, tt.fraction, 5)
			assert.Error(t, err)
		})
	}
}

func TestKFold(t *testing.T) {
	folds, err := KFold(11, 5)
	require.NoError(t, err)
	sizes := make([]int, len(folds))
	for i, f := range folds {
		sizes[i] = len(f)
	}
	assert.Equal(t, []int{3, 2, 2, 2, 2}, sizes)
	assert.Equal(t, []int{0, 1, 2}, folds[0])
	assert.Equal(t, []int{9, 10}, folds[4])

	_, err = KFold(3, 5)
	assert.Error(t, err)
	_, err = KFold(10, 1)
	assert.Error(t, err)
}

// linearFrame returns n rows at 10 second spacing with y = slope*x + intercept
// plus a deterministic wobble of the given amplitude.
func linearFrame(t *testing.T, n int, slope, intercept, wobble float64) *timeseries.Frame {
	t.Helper()
	start := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	idx := make([]time.Time, n)
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		idx[i] = start.Add(time.Duration(i) * 10 * time.Second)
		x[i] = 1 + float64(i%50)
		y[i] = slope*x[i] + intercept + wobble*math.Sin(float64(i))
	}
	f, err := timeseries.New(idx, []string{"x", "y"}, [][]float64{x, y})
	require.NoError(t, err)
	return f
}

func TestEstimatorLifecycle(t *testing.T) {
	frame := linearFrame(t, 200, 2, 1, 0)
	opts := DefaultOptions()

	est, err := New(models.NewLinear(), frame, []string{"x"}, "y", opts)
	require.NoError(t, err)
	assert.Equal(t, 160, est.TrainSize())
	assert.Equal(t, 40, est.TestSize())

	_, err = est.Test()
	assert.ErrorIs(t, err, ErrNotTrained)
	_, err = est.Predict(frame)
	assert.ErrorIs(t, err, ErrNotTrained)

	require.NoError(t, est.Train())

	report, err := est.Test()
	require.NoError(t, err)
	assert.InDelta(t, 1, report.R2, 1e-9)
	assert.InDelta(t, 0, report.RMSE, 1e-9)
	assert.Equal(t, 40, report.Results.Len())
	idx := report.Results.Index()
	assert.True(t, sort.SliceIsSorted(idx, func(i, j int) bool { return idx[i].Before(idx[j]) }))

	pred, err := est.Predict(frame)
	require.NoError(t, err)
	y, err := frame.Column("y")
	require.NoError(t, err)
	assert.InDeltaSlice(t, y, pred, 1e-9)
}

func TestEstimatorUnknownColumn(t *testing.T) {
	frame := linearFrame(t, 20, 1, 0, 0)
	_, err := New(models.NewLinear(), frame, []string{"z"}, "y", DefaultOptions())
	assert.ErrorIs(t, err, timeseries.ErrUnknownColumn)
}

func TestEstimatorWithLogEncoder(t *testing.T) {
	// y = e * x^1.5 is linear in log space.
	frame := linearFrame(t, 150, 1, 0, 0)
	x, err := frame.Column("x")
	require.NoError(t, err)
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = math.E * math.Pow(v, 1.5)
	}
	frame, err = frame.WithColumn("y", y)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Encoder = encoding.NewLogEncoder("x")
	est, err := New(models.NewLinear(), frame, []string{"x"}, "y", opts)
	require.NoError(t, err)
	require.NoError(t, est.Train())

	coef, intercept, err := est.Model().(models.LinearLayer).Coefficients()
	require.NoError(t, err)
	assert.InDelta(t, 1.5, coef[0], 1e-9)
	assert.InDelta(t, 1, intercept, 1e-9)

	report, err := est.Test()
	require.NoError(t, err)
	assert.InDelta(t, 1, report.R2, 1e-9)

	pred, err := est.Predict(frame)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y, pred, 1e-6)
}

func TestCrossValidationAveragesFoldCoefficients(t *testing.T) {
	frame := linearFrame(t, 120, 0.7, 3, 2)
	opts := DefaultOptions()

	est, err := New(models.NewLinear(), frame, []string{"x"}, "y", opts)
	require.NoError(t, err)
	require.NoError(t, est.Train())
	gotCoef, gotIntercept, err := est.Model().(models.LinearLayer).Coefficients()
	require.NoError(t, err)

	folds, err := KFold(est.TrainSize(), opts.Folds)
	require.NoError(t, err)
	var wantCoef, wantIntercept float64
	for _, fold := range folds {
		var rows []int
		for r := 0; r < est.TrainSize(); r++ {
			if r < fold[0] || r > fold[len(fold)-1] {
				rows = append(rows, r)
			}
		}
		X, y := subset(est.trainX, est.trainY, rows)
		m := models.NewLinear()
		require.NoError(t, m.Fit(X, y))
		c, i, err := m.Coefficients()
		require.NoError(t, err)
		wantCoef += c[0] / float64(len(folds))
		wantIntercept += i / float64(len(folds))
	}
	assert.InDelta(t, wantCoef, gotCoef[0], 1e-9)
	assert.InDelta(t, wantIntercept, gotIntercept, 1e-9)

	single := models.NewLinear()
	require.NoError(t, single.Fit(est.trainX, est.trainY))
	singleCoef, _, err := single.Coefficients()
	require.NoError(t, err)
	assert.NotEqual(t, singleCoef[0], gotCoef[0])
}

func TestCrossValidationNeedsLinearLayer(t *testing.T) {
	frame := linearFrame(t, 50, 1, 0, 0)
	params := models.DefaultForestParams()
	params.Trees = 2

	est, err := New(models.NewForest(params), frame, []string{"x"}, "y", DefaultOptions())
	require.NoError(t, err)
	assert.ErrorIs(t, est.Train(), models.ErrNoLinearLayer)

	opts := DefaultOptions()
	opts.CrossValidate = false
	est, err = New(models.NewForest(params), frame, []string{"x"}, "y", opts)
	require.NoError(t, err)
	assert.NoError(t, est.Train())
}

func TestMetrics(t *testing.T) {
	tests := []struct {
		name   string
		actual []float64
		pred   []float64
		r2     float64
		rmse   float64
	}{
		{"perfect", []float64{1, 2, 3}, []float64{1, 2, 3}, 1, 0},
		{"mean predictor", []float64{1, 2, 3}, []float64{2, 2, 2}, 0, math.Sqrt(2.0 / 3)},
		{"constant actual exact", []float64{4, 4}, []float64{4, 4}, 1, 0},
		{"constant actual off", []float64{4, 4}, []float64{5, 3}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.r2, RSquared(tt.actual, tt.pred), 1e-12)
			assert.InDelta(t, tt.rmse, RMSE(tt.actual, tt.pred), 1e-12)
		})
	}
}

func TestSubset(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	sx, sy := subset(X, []float64{7, 8, 9}, []int{2, 0})
	assert.Equal(t, []float64{5, 6, 1, 2}, sx.RawMatrix().Data)
	assert.Equal(t, []float64{9, 7}, sy)
}
