// Package calibration trains a set of candidate models per physical quantity
// against a reference instrument, keeps the best one by held-out R² and
// applies it to new sensor data.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/sensorcal/internal/constants"
	"github.com/chrissnell/sensorcal/internal/encoding"
	"github.com/chrissnell/sensorcal/internal/models"
	"github.com/chrissnell/sensorcal/internal/regression"
	"github.com/chrissnell/sensorcal/internal/timeseries"
)

var (
	// ErrNotTrained is returned by Calibrate before Train.
	ErrNotTrained = errors.New("calibrator is not trained; call Train first")
	// ErrMissingValues is returned when the training frame joined with the
	// reference has missing model inputs or targets.
	ErrMissingValues = errors.New("missing values in model columns")
)

// ModelResult is the evaluation of one trained candidate.
type ModelResult struct {
	Spec      models.Spec
	R2        float64
	RMSE      float64
	TrainSize int
	TestSize  int
	Selected  bool
	// Results holds the held-out actual and predicted values.
	Results *timeseries.Frame
}

// TaskResult collects the candidates of one quantity in catalog order.
type TaskResult struct {
	Task   Task
	Models []ModelResult
	Best   int
}

// BestModel returns the selected candidate.
func (r TaskResult) BestModel() ModelResult { return r.Models[r.Best] }

// Calibrator holds the tasks and, once trained, the best estimator of each.
type Calibrator struct {
	tasks  []Task
	opts   regression.Options
	logger *zap.SugaredLogger

	// build turns a catalog entry into a regressor.
	build func(models.Spec) models.Regressor

	best    map[string]*regression.Estimator
	trained bool
}

// New returns an untrained calibrator. opts supplies the split and
// cross-validation settings shared by every task; cross-validation only
// applies to catalog entries that allow it.
func New(tasks []Task, opts regression.Options, logger *zap.SugaredLogger) (*Calibrator, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if err := t.validate(); err != nil {
			return nil, err
		}
		if seen[t.Quantity] {
			return nil, fmt.Errorf("quantity %q configured twice", t.Quantity)
		}
		seen[t.Quantity] = true
	}
	return &Calibrator{
		tasks:  tasks,
		opts:   opts,
		logger: logger,
		build:  models.Spec.New,
	}, nil
}

// Tasks returns the configured tasks.
func (c *Calibrator) Tasks() []Task { return append([]Task(nil), c.tasks...) }

// Trained reports whether Train has completed.
func (c *Calibrator) Trained() bool { return c.trained }

// Train fits every task's candidates on its training frame inner-joined with
// the reference readings, which get the reference prefix. For each task the
// candidate with the highest test R² is kept; the first candidate wins ties.
// Candidates are trained concurrently but evaluated in catalog order.
func (c *Calibrator) Train(ctx context.Context, train, reference Inputs) ([]TaskResult, error) {
	best := make(map[string]*regression.Estimator, len(c.tasks))
	results := make([]TaskResult, 0, len(c.tasks))

	for _, task := range c.tasks {
		res, est, err := c.trainTask(ctx, task, train, reference)
		if err != nil {
			return nil, fmt.Errorf("training %s: %w", task.Quantity, err)
		}
		best[task.Quantity] = est
		results = append(results, res)
	}

	c.best = best
	c.trained = true
	return results, nil
}

func (c *Calibrator) trainTask(ctx context.Context, task Task, train, reference Inputs) (TaskResult, *regression.Estimator, error) {
	frame, ref := train.At(task.Resolution), reference.At(task.Resolution)
	if frame == nil || ref == nil {
		return TaskResult{}, nil, fmt.Errorf("no %s training or reference frame", task.Resolution)
	}

	merged, err := timeseries.Join(frame, ref.AddPrefix(constants.ReferencePrefix), timeseries.InnerJoin)
	if err != nil {
		return TaskResult{}, nil, err
	}
	used := append(append([]string(nil), task.InputColumns...), task.ReferenceColumn)
	hasNA, err := merged.HasNA(used...)
	if err != nil {
		return TaskResult{}, nil, err
	}
	if hasNA {
		return TaskResult{}, nil, ErrMissingValues
	}
	c.logger.Infow("merged training data with reference",
		"quantity", task.Quantity,
		"resolution", string(task.Resolution),
		"rows", merged.Len(),
	)

	estimators := make([]*regression.Estimator, len(task.Models))
	reports := make([]regression.Report, len(task.Models))

	g, ctx := errgroup.WithContext(ctx)
	for i, spec := range task.Models {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			opts := c.opts
			opts.CrossValidate = c.opts.CrossValidate && spec.CrossValidate
			opts.Encoder = encoding.NewLogEncoder(task.LogColumns...)

			est, err := regression.New(c.build(spec), merged, task.InputColumns, task.ReferenceColumn, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", spec.Kind, err)
			}
			if err := est.Train(); err != nil {
				return fmt.Errorf("%s: %w", spec.Kind, err)
			}
			report, err := est.Test()
			if err != nil {
				return fmt.Errorf("%s: %w", spec.Kind, err)
			}
			estimators[i] = est
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TaskResult{}, nil, err
	}

	res := TaskResult{Task: task, Models: make([]ModelResult, len(task.Models)), Best: -1}
	bestR2 := math.NaN()
	for i, spec := range task.Models {
		r := reports[i]
		res.Models[i] = ModelResult{
			Spec:      spec,
			R2:        r.R2,
			RMSE:      r.RMSE,
			TrainSize: estimators[i].TrainSize(),
			TestSize:  estimators[i].TestSize(),
			Results:   r.Results,
		}
		c.logger.Infow("validation performance",
			"quantity", task.Quantity,
			"model", spec.Kind.String(),
			"r2", r.R2,
			"rmse", r.RMSE,
		)
		// Greedy strict >: a NaN score never beats anything, so a first
		// candidate scoring NaN stays selected.
		if res.Best < 0 || r.R2 > bestR2 {
			res.Best = i
			bestR2 = r.R2
		}
	}
	res.Models[res.Best].Selected = true
	if math.IsNaN(bestR2) {
		c.logger.Warnw("selected model has no valid test score",
			"quantity", task.Quantity,
			"model", task.Models[res.Best].Kind.String(),
		)
	}
	c.logger.Infow("selected model",
		"quantity", task.Quantity,
		"model", task.Models[res.Best].Kind.String(),
		"r2", bestR2,
	)
	return res, estimators[res.Best], nil
}

// ScrubCounts maps a quantity to the number of calibrated values replaced
// with NaN.
type ScrubCounts map[string]int

// Calibrate applies every task's best estimator to the experiment frames and
// returns new frames with <quantity>_calibrated and <quantity>_uncalibrated
// columns. Calibrated values that are exactly zero or infinite come from the
// edge of the log domain and are replaced with NaN.
func (c *Calibrator) Calibrate(experiment Inputs) (Inputs, ScrubCounts, error) {
	if !c.trained {
		return Inputs{}, nil, ErrNotTrained
	}

	out := experiment
	scrubbed := make(ScrubCounts, len(c.tasks))
	for _, task := range c.tasks {
		frame := out.At(task.Resolution)
		if frame == nil {
			return Inputs{}, nil, fmt.Errorf("calibrating %s: no %s frame", task.Quantity, task.Resolution)
		}

		pred, err := c.best[task.Quantity].Predict(frame)
		if err != nil {
			return Inputs{}, nil, fmt.Errorf("calibrating %s: %w", task.Quantity, err)
		}
		n := Scrub(pred)
		scrubbed[task.Quantity] = n

		if frame, err = frame.WithColumn(task.CalibratedColumn(), pred); err != nil {
			return Inputs{}, nil, err
		}
		if task.SourceColumn != "" {
			raw, err := frame.Column(task.SourceColumn)
			if err != nil {
				return Inputs{}, nil, fmt.Errorf("calibrating %s: %w", task.Quantity, err)
			}
			if frame, err = frame.WithColumn(task.UncalibratedColumn(), raw); err != nil {
				return Inputs{}, nil, err
			}
		}
		out = out.with(task.Resolution, frame)

		c.logger.Infow("calibrated",
			"quantity", task.Quantity,
			"rows", frame.Len(),
			"scrubbed", n,
		)
	}
	return out, scrubbed, nil
}

// Scrub replaces zero and infinite values with NaN in place and returns how
// many were replaced.
func Scrub(values []float64) int {
	n := 0
	for i, v := range values {
		if v == 0 || math.IsInf(v, 0) {
			values[i] = math.NaN()
			n++
		}
	}
	return n
}
