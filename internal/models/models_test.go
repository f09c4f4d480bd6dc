package models

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// grid returns n rows of two inputs on a deterministic lattice.
func grid(n int) *mat.Dense {
	X := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i%17)+0.5)
		X.Set(i, 1, float64((i*7)%13)-6)
	}
	return X
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"linear_regression", LinearRegression, false},
		{"Polynomial_Regression", PolynomialRegression, false},
		{" random_forest ", RandomForest, false},
		{"svm", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, kindNames[tt.want], got.String())
		})
	}
}

func TestSelectKeepsCatalogOrder(t *testing.T) {
	set, err := ParseKindSet([]string{"random_forest", "linear_regression"})
	require.NoError(t, err)

	got := Select(Catalog(DefaultForestParams()), set)
	require.Len(t, got, 2)
	assert.Equal(t, LinearRegression, got[0].Kind)
	assert.True(t, got[0].CrossValidate)
	assert.Equal(t, RandomForest, got[1].Kind)
	assert.False(t, got[1].CrossValidate)
	assert.Equal(t, []Kind{LinearRegression, RandomForest}, set.Sorted())
}

func TestLinearRecoversCoefficients(t *testing.T) {
	X := grid(60)
	y := make([]float64, 60)
	for i := range y {
		y[i] = 3 + 2*X.At(i, 0) - 0.5*X.At(i, 1)
	}

	m := NewLinear()
	_, err := m.Predict(X)
	assert.ErrorIs(t, err, ErrNotFitted)

	require.NoError(t, m.Fit(X, y))
	coef, intercept, err := m.Coefficients()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, -0.5}, coef, 1e-9)
	assert.InDelta(t, 3, intercept, 1e-9)

	pred, err := m.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y, pred, 1e-9)
}

func TestLinearRankDeficient(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 2,
		2, 4,
		3, 6,
		4, 8,
	})
	y := []float64{2, 4, 6, 8}

	m := NewLinear()
	require.NoError(t, m.Fit(X, y))
	pred, err := m.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y, pred, 1e-9)
}

func TestLinearSetCoefficients(t *testing.T) {
	m := NewLinear()
	assert.ErrorIs(t, m.SetCoefficients([]float64{1}, 0), ErrNotFitted)

	require.NoError(t, m.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), []float64{1, 2, 3}))
	assert.Error(t, m.SetCoefficients([]float64{1, 2}, 0))
	require.NoError(t, m.SetCoefficients([]float64{10}, 1))

	pred, err := m.Predict(mat.NewDense(1, 1, []float64{2}))
	require.NoError(t, err)
	assert.Equal(t, []float64{21}, pred)
}

func TestMonomials(t *testing.T) {
	got := monomials(2, 2)
	want := [][]int{{0}, {1}, {0, 0}, {0, 1}, {1, 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("monomials mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, monomials(3, 2), 9)
}

func TestPolynomialFitsQuadratic(t *testing.T) {
	X := grid(80)
	y := make([]float64, 80)
	for i := range y {
		a, b := X.At(i, 0), X.At(i, 1)
		y[i] = 1 + a - 2*b + 0.25*a*a + 0.1*a*b
	}

	m := NewPolynomial(2)
	require.NoError(t, m.Fit(X, y))
	coef, intercept, err := m.Coefficients()
	require.NoError(t, err)
	assert.InDelta(t, 1, intercept, 1e-6)
	assert.InDeltaSlice(t, []float64{1, -2, 0.25, 0.1, 0}, coef, 1e-6)

	_, err = m.Predict(mat.NewDense(1, 3, nil))
	assert.Error(t, err)

	clone := m.Clone()
	_, err = clone.Predict(X)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestForest(t *testing.T) {
	n := 400
	X := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		X.Set(i, 0, x)
		if x < 0.5 {
			y[i] = 10
		} else {
			y[i] = 20
		}
	}

	params := DefaultForestParams()
	params.Trees = 20
	m := NewForest(params)
	require.NoError(t, m.Fit(X, y))

	pred, err := m.Predict(mat.NewDense(3, 1, []float64{0.1, 0.9, math.NaN()}))
	require.NoError(t, err)
	assert.InDelta(t, 10, pred[0], 0.5)
	assert.InDelta(t, 20, pred[1], 0.5)
	assert.True(t, math.IsNaN(pred[2]))

	again := NewForest(params)
	require.NoError(t, again.Fit(X, y))
	pred2, err := again.Predict(mat.NewDense(3, 1, []float64{0.1, 0.9, 0.5}))
	require.NoError(t, err)
	pred1, err := m.Predict(mat.NewDense(3, 1, []float64{0.1, 0.9, 0.5}))
	require.NoError(t, err)
	assert.Equal(t, pred1, pred2, "same seed must grow the same forest")

	_, ok := Regressor(m).(LinearLayer)
	assert.False(t, ok, "a forest has no coefficients to average")
}

func TestForestLeafSize(t *testing.T) {
	n := 100
	X := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y[i] = float64(i)
	}
	params := ForestParams{Trees: 1, MinSamplesSplit: 2, MinSamplesLeaf: 0.5, Seed: 1}
	m := NewForest(params)
	require.NoError(t, m.Fit(X, y))
	// A leaf must hold at least half of the rows, so the tree has at most
	// one split.
	assert.LessOrEqual(t, len(m.trees[0].nodes), 3)
}
