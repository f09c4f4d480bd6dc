package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// rcond is the relative singular value cutoff used to determine the rank of
// the centered design matrix.
const rcond = 1e-12

// Linear is ordinary least squares with an intercept. The system is solved
// through the SVD of the centered design matrix, so rank deficient inputs get
// the minimum norm solution.
type Linear struct {
	coef      []float64
	intercept float64
	fitted    bool
}

// NewLinear returns an unfitted least squares model.
func NewLinear() *Linear { return &Linear{} }

func (l *Linear) Clone() Regressor { return NewLinear() }

// Fit solves min ||y - Xb - c||².
func (l *Linear) Fit(X mat.Matrix, y []float64) error {
	r, c, err := checkShape(X, y)
	if err != nil {
		return err
	}

	xmean := make([]float64, c)
	centered := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, X)
		xmean[j] = stat.Mean(col, nil)
		floats.AddConst(-xmean[j], col)
		centered.SetCol(j, col)
	}
	ymean := stat.Mean(y, nil)
	yc := make([]float64, r)
	copy(yc, y)
	floats.AddConst(-ymean, yc)

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return fmt.Errorf("least squares: SVD did not converge")
	}
	rank := svd.Rank(rcond)

	coef := make([]float64, c)
	if rank > 0 {
		var b mat.VecDense
		svd.SolveVecTo(&b, mat.NewVecDense(r, yc), rank)
		for j := range coef {
			coef[j] = b.AtVec(j)
		}
	}

	l.coef = coef
	l.intercept = ymean - floats.Dot(xmean, coef)
	l.fitted = true
	return nil
}

// Predict returns Xb + c. Rows with a missing input predict NaN.
func (l *Linear) Predict(X mat.Matrix) ([]float64, error) {
	if !l.fitted {
		return nil, ErrNotFitted
	}
	r, c, err := checkShape(X, nil)
	if err != nil {
		return nil, err
	}
	if c != len(l.coef) {
		return nil, fmt.Errorf("model has %d features, got %d", len(l.coef), c)
	}

	out := make([]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out[i] = l.intercept + floats.Dot(row, l.coef)
	}
	return out, nil
}

func (l *Linear) Coefficients() ([]float64, float64, error) {
	if !l.fitted {
		return nil, 0, ErrNotFitted
	}
	return append([]float64(nil), l.coef...), l.intercept, nil
}

func (l *Linear) SetCoefficients(coef []float64, intercept float64) error {
	if !l.fitted {
		return ErrNotFitted
	}
	if len(coef) != len(l.coef) {
		return fmt.Errorf("model has %d coefficients, got %d", len(l.coef), len(coef))
	}
	if math.IsNaN(intercept) || floats.HasNaN(coef) {
		return fmt.Errorf("refusing NaN coefficients")
	}
	l.coef = append([]float64(nil), coef...)
	l.intercept = intercept
	return nil
}
