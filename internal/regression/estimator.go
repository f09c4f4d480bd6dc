// Package regression owns the fit, evaluate and apply lifecycle of a single
// regression model against one merged training frame.
package regression

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/sensorcal/internal/encoding"
	"github.com/chrissnell/sensorcal/internal/models"
	"github.com/chrissnell/sensorcal/internal/timeseries"
)

// ErrNotTrained is returned by Test and Predict before Train.
var ErrNotTrained = errors.New("estimator is not trained")

// Result table column names.
const (
	ColActual    = "y_test"
	ColPredicted = "y_pred"
)

// Options control the split, cross-validation and encoding.
type Options struct {
	TrainFraction float64
	CrossValidate bool
	Folds         int
	Seed          uint64
	// Encoder is optional. When set, inputs and target are encoded before the
	// model sees them and predictions are decoded.
	Encoder *encoding.LogEncoder
}

// DefaultOptions returns an 80/20 split with seed 5 and 5-fold
// cross-validation.
func DefaultOptions() Options {
	return Options{
		TrainFraction: 0.8,
		CrossValidate: true,
		Folds:         5,
		Seed:          5,
	}
}

// Report holds the held-out evaluation of a trained estimator.
type Report struct {
	R2   float64
	RMSE float64
	// Results has the decoded actual and predicted targets of the test rows,
	// in timestamp order.
	Results *timeseries.Frame
}

// Estimator wraps one regressor and its train/test partitions.
type Estimator struct {
	model  models.Regressor
	inputs []string
	target string
	opts   Options

	trainX    *mat.Dense
	trainY    []float64
	testX     *mat.Dense
	testY     []float64
	testIndex []time.Time

	trained bool
}

// New splits frame into encoded train and test partitions for model. The
// frame must contain every input column and the target.
func New(model models.Regressor, frame *timeseries.Frame, inputs []string, target string, opts Options) (*Estimator, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input columns")
	}
	if _, err := frame.Select(append(append([]string(nil), inputs...), target)...); err != nil {
		return nil, err
	}

	trainRows, testRows, err := Split(frame.Len(), opts.TrainFraction, opts.Seed)
	if err != nil {
		return nil, err
	}

	e := &Estimator{
		model:  model,
		inputs: append([]string(nil), inputs...),
		target: target,
		opts:   opts,
	}
	if e.trainX, e.trainY, err = e.partition(frame.Take(trainRows)); err != nil {
		return nil, fmt.Errorf("training partition: %w", err)
	}
	test := frame.Take(testRows)
	if e.testX, e.testY, err = e.partition(test); err != nil {
		return nil, fmt.Errorf("test partition: %w", err)
	}
	e.testIndex = test.Index()
	return e, nil
}

// Inputs returns the model input columns.
func (e *Estimator) Inputs() []string { return append([]string(nil), e.inputs...) }

// Target returns the target column.
func (e *Estimator) Target() string { return e.target }

// Model returns the wrapped regressor.
func (e *Estimator) Model() models.Regressor { return e.model }

// TrainSize returns the number of training rows.
func (e *Estimator) TrainSize() int { return len(e.trainY) }

// TestSize returns the number of held-out rows.
func (e *Estimator) TestSize() int { return len(e.testY) }

// Train fits the model on the whole training partition. With cross-validation
// enabled it then fits a clone on every k-fold split of the training partition
// and replaces the model's linear coefficients and intercept with their mean
// across folds; the full fit is kept for any feature expansion in front of the
// linear layer.
func (e *Estimator) Train() error {
	if _, ok := e.model.(models.LinearLayer); e.opts.CrossValidate && !ok {
		return fmt.Errorf("cross-validation: %w", models.ErrNoLinearLayer)
	}
	if err := e.model.Fit(e.trainX, e.trainY); err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	if e.opts.CrossValidate {
		if err := e.averageFolds(); err != nil {
			return fmt.Errorf("cross-validation: %w", err)
		}
	}

	e.trained = true
	return nil
}

func (e *Estimator) averageFolds() error {
	layer := e.model.(models.LinearLayer)
	if _, _, err := layer.Coefficients(); err != nil {
		return err
	}

	n := len(e.trainY)
	folds, err := KFold(n, e.opts.Folds)
	if err != nil {
		return err
	}

	var meanCoef []float64
	var meanIntercept float64
	for _, fold := range folds {
		inFold := make(map[int]bool, len(fold))
		for _, r := range fold {
			inFold[r] = true
		}
		rows := make([]int, 0, n-len(fold))
		for r := 0; r < n; r++ {
			if !inFold[r] {
				rows = append(rows, r)
			}
		}

		X, y := subset(e.trainX, e.trainY, rows)
		m := e.model.Clone()
		if err := m.Fit(X, y); err != nil {
			return err
		}
		coef, intercept, err := m.(models.LinearLayer).Coefficients()
		if err != nil {
			return err
		}
		if meanCoef == nil {
			meanCoef = make([]float64, len(coef))
		}
		floats.Add(meanCoef, coef)
		meanIntercept += intercept
	}

	k := float64(len(folds))
	floats.Scale(1/k, meanCoef)
	return layer.SetCoefficients(meanCoef, meanIntercept/k)
}

// Test evaluates the trained model on the held-out partition. Predictions and
// actual values are decoded before scoring.
func (e *Estimator) Test() (Report, error) {
	if !e.trained {
		return Report{}, ErrNotTrained
	}
	pred, err := e.model.Predict(e.testX)
	if err != nil {
		return Report{}, err
	}
	pred = e.decodeY(pred)
	actual := e.decodeY(e.testY)

	order := make([]int, len(e.testIndex))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return e.testIndex[order[a]].Before(e.testIndex[order[b]])
	})
	index := make([]time.Time, len(order))
	sortedActual := make([]float64, len(order))
	sortedPred := make([]float64, len(order))
	for k, i := range order {
		index[k] = e.testIndex[i]
		sortedActual[k] = actual[i]
		sortedPred[k] = pred[i]
	}
	results, err := timeseries.New(index, []string{ColActual, ColPredicted}, [][]float64{sortedActual, sortedPred})
	if err != nil {
		return Report{}, err
	}

	return Report{
		R2:      RSquared(actual, pred),
		RMSE:    RMSE(actual, pred),
		Results: results,
	}, nil
}

// Predict applies the trained model to the input columns of frame and returns
// one decoded prediction per row.
func (e *Estimator) Predict(frame *timeseries.Frame) ([]float64, error) {
	if !e.trained {
		return nil, ErrNotTrained
	}
	if frame.Len() == 0 {
		return []float64{}, nil
	}
	X, err := e.encodeX(frame)
	if err != nil {
		return nil, err
	}
	pred, err := e.model.Predict(X)
	if err != nil {
		return nil, err
	}
	return e.decodeY(pred), nil
}

func (e *Estimator) partition(f *timeseries.Frame) (*mat.Dense, []float64, error) {
	X, err := e.encodeX(f)
	if err != nil {
		return nil, nil, err
	}
	y, err := f.Column(e.target)
	if err != nil {
		return nil, nil, err
	}
	if e.opts.Encoder != nil {
		y = e.opts.Encoder.EncodeY(y)
	} else {
		y = append([]float64(nil), y...)
	}
	return X, y, nil
}

func (e *Estimator) encodeX(f *timeseries.Frame) (*mat.Dense, error) {
	var err error
	if e.opts.Encoder != nil {
		if f, err = e.opts.Encoder.EncodeX(f); err != nil {
			return nil, err
		}
	}
	return f.Matrix(e.inputs)
}

func (e *Estimator) decodeY(y []float64) []float64 {
	if e.opts.Encoder == nil {
		return y
	}
	return e.opts.Encoder.DecodeY(y)
}

func subset(X *mat.Dense, y []float64, rows []int) (*mat.Dense, []float64) {
	_, c := X.Dims()
	outX := mat.NewDense(len(rows), c, nil)
	outY := make([]float64, len(rows))
	for i, r := range rows {
		outX.SetRow(i, X.RawRowView(r))
		outY[i] = y[r]
	}
	return outX, outY
}

// RSquared is the coefficient of determination of pred against actual. When
// actual is constant it is 1 for a perfect prediction and 0 otherwise.
func RSquared(actual, pred []float64) float64 {
	if len(actual) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(actual, nil)
	var ssTot, ssRes float64
	for i, a := range actual {
		ssTot += (a - mean) * (a - mean)
		ssRes += (a - pred[i]) * (a - pred[i])
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return stat.RSquaredFrom(pred, actual, nil)
}

// RMSE is the root mean squared error of pred against actual.
func RMSE(actual, pred []float64) float64 {
	if len(actual) == 0 {
		return math.NaN()
	}
	return floats.Distance(actual, pred, 2) / math.Sqrt(float64(len(actual)))
}
