// Package models provides the regressors that can be trained to calibrate a
// sensor: ordinary least squares, degree-2 polynomial least squares and a
// random forest.
package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotFitted is returned by Predict before Fit has succeeded.
	ErrNotFitted = errors.New("model is not fitted")
	// ErrNoLinearLayer is returned when coefficient averaging is requested for
	// a model that has no linear layer.
	ErrNoLinearLayer = errors.New("model has no linear layer")
)

// Regressor is a model that can be fitted to a design matrix and used to
// predict new rows.
type Regressor interface {
	Fit(X mat.Matrix, y []float64) error
	Predict(X mat.Matrix) ([]float64, error)
	// Clone returns an unfitted regressor with the same parameters.
	Clone() Regressor
}

// LinearLayer is implemented by regressors whose final stage is an affine map.
// The coefficients may be overwritten after fitting; any fitted feature
// expansion in front of the layer is kept.
type LinearLayer interface {
	Coefficients() (coef []float64, intercept float64, err error)
	SetCoefficients(coef []float64, intercept float64) error
}

// Kind enumerates the model catalog.
type Kind int

const (
	LinearRegression Kind = iota
	PolynomialRegression
	RandomForest
)

var kindNames = map[Kind]string{
	LinearRegression:     "linear_regression",
	PolynomialRegression: "polynomial_regression",
	RandomForest:         "random_forest",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a configured model name onto its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown model %q", s)
}

// KindSet is a whitelist of catalog entries.
type KindSet map[Kind]struct{}

// NewKindSet builds a set from kinds.
func NewKindSet(kinds ...Kind) KindSet {
	s := make(KindSet, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

// ParseKindSet builds a set from configured model names.
func ParseKindSet(names []string) (KindSet, error) {
	s := make(KindSet, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		s[k] = struct{}{}
	}
	return s, nil
}

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool {
	_, ok := s[k]
	return ok
}

// Sorted returns the kinds in catalog order.
func (s KindSet) Sorted() []Kind {
	out := make([]Kind, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Spec describes one catalog entry: which model to build, its parameters and
// whether cross-validated coefficient averaging applies to it.
type Spec struct {
	Kind          Kind
	Degree        int
	Forest        ForestParams
	CrossValidate bool
}

// New builds an unfitted regressor for the entry.
func (s Spec) New() Regressor {
	switch s.Kind {
	case PolynomialRegression:
		return NewPolynomial(s.Degree)
	case RandomForest:
		return NewForest(s.Forest)
	default:
		return NewLinear()
	}
}

// Catalog returns every model in catalog order with its default parameters.
// Cross-validation is enabled for the linear models and disabled for the
// forest.
func Catalog(forest ForestParams) []Spec {
	return []Spec{
		{Kind: LinearRegression, CrossValidate: true},
		{Kind: PolynomialRegression, Degree: 2, CrossValidate: true},
		{Kind: RandomForest, Forest: forest},
	}
}

// Select keeps the catalog entries whose kind is whitelisted, preserving order.
func Select(catalog []Spec, allowed KindSet) []Spec {
	out := make([]Spec, 0, len(catalog))
	for _, s := range catalog {
		if allowed.Has(s.Kind) {
			out = append(out, s)
		}
	}
	return out
}

func checkShape(X mat.Matrix, y []float64) (int, int, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return 0, 0, fmt.Errorf("empty design matrix")
	}
	if y != nil && len(y) != r {
		return 0, 0, fmt.Errorf("design matrix has %d rows, target has %d", r, len(y))
	}
	return r, c, nil
}
