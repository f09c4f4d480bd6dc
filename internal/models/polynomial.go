package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Polynomial expands the inputs into every monomial of degree 1..Degree,
// interactions included and without a constant column, then fits a Linear
// model on the expansion.
type Polynomial struct {
	degree   int
	inputs   int
	terms    [][]int
	linear   *Linear
	expanded bool
}

// NewPolynomial returns an unfitted polynomial model. Degrees below 1 are
// treated as 1.
func NewPolynomial(degree int) *Polynomial {
	if degree < 1 {
		degree = 1
	}
	return &Polynomial{degree: degree, linear: NewLinear()}
}

func (p *Polynomial) Clone() Regressor { return NewPolynomial(p.degree) }

func (p *Polynomial) Fit(X mat.Matrix, y []float64) error {
	_, c, err := checkShape(X, y)
	if err != nil {
		return err
	}
	p.inputs = c
	p.terms = monomials(c, p.degree)
	p.expanded = true
	return p.linear.Fit(p.expand(X), y)
}

func (p *Polynomial) Predict(X mat.Matrix) ([]float64, error) {
	if !p.expanded {
		return nil, ErrNotFitted
	}
	_, c, err := checkShape(X, nil)
	if err != nil {
		return nil, err
	}
	if c != p.inputs {
		return nil, fmt.Errorf("model has %d inputs, got %d", p.inputs, c)
	}
	return p.linear.Predict(p.expand(X))
}

func (p *Polynomial) Coefficients() ([]float64, float64, error) {
	return p.linear.Coefficients()
}

func (p *Polynomial) SetCoefficients(coef []float64, intercept float64) error {
	return p.linear.SetCoefficients(coef, intercept)
}

func (p *Polynomial) expand(X mat.Matrix) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, len(p.terms), nil)
	for i := 0; i < r; i++ {
		for j, term := range p.terms {
			v := 1.0
			for _, k := range term {
				v *= X.At(i, k)
			}
			out.Set(i, j, v)
		}
	}
	return out
}

// monomials enumerates index combinations with replacement, grouped by degree
// and in lexicographic order within a degree: for two inputs and degree 2 that
// is x0, x1, x0², x0·x1, x1².
func monomials(inputs, degree int) [][]int {
	var out [][]int
	var walk func(prefix []int, from, left int)
	walk = func(prefix []int, from, left int) {
		if left == 0 {
			out = append(out, append([]int(nil), prefix...))
			return
		}
		for k := from; k < inputs; k++ {
			walk(append(prefix, k), k, left-1)
		}
	}
	for d := 1; d <= degree; d++ {
		walk(make([]int, 0, d), 0, d)
	}
	return out
}
