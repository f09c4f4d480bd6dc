package config

import (
	"fmt"
	"time"

	"github.com/chrissnell/sensorcal/internal/calibration"
	"github.com/chrissnell/sensorcal/internal/models"
	"github.com/chrissnell/sensorcal/internal/preprocess"
	"github.com/chrissnell/sensorcal/internal/regression"
	"github.com/chrissnell/sensorcal/pkg/aqi"
)

// Period is a validated [Start, End] range.
type Period struct {
	Start, End time.Time
}

// CalibrationPeriod returns the training period.
func (c *Config) CalibrationPeriod() (Period, error) {
	return period(c.Calibration.Start, c.Calibration.End)
}

// ExperimentPeriod returns the period to calibrate.
func (c *Config) ExperimentPeriod() (Period, error) {
	return period(c.Experiment.Start, c.Experiment.End)
}

func period(start, end string) (Period, error) {
	s, err := ParseTime(start)
	if err != nil {
		return Period{}, err
	}
	e, err := ParseTime(end)
	if err != nil {
		return Period{}, err
	}
	return Period{Start: s, End: e}, nil
}

// PreprocessOptions returns the outlier filter settings.
func (c *Config) PreprocessOptions() preprocess.Options {
	return preprocess.Options{
		LowerQuantile:   c.Preprocess.LowerQuantile,
		UpperQuantile:   c.Preprocess.UpperQuantile,
		HumidityCeiling: c.Preprocess.HumidityCeiling,
	}
}

// RegressionOptions returns the split and cross-validation settings. The
// encoder is set per quantity by the calibrator.
func (c *Config) RegressionOptions() regression.Options {
	return regression.Options{
		TrainFraction: c.Estimator.TrainFraction,
		CrossValidate: c.Estimator.CrossValidation,
		Folds:         c.Estimator.Folds,
		Seed:          c.Estimator.Seed,
	}
}

func (c *Config) ForestParams() models.ForestParams {
	return models.ForestParams{
		Trees:           c.RandomForest.Trees,
		MinSamplesSplit: c.RandomForest.MinSamplesSplit,
		MinSamplesLeaf:  c.RandomForest.MinSamplesLeaf,
		Seed:            c.RandomForest.Seed,
		Workers:         c.RandomForest.Workers,
	}
}

// Tasks converts the quantities into calibration tasks. The model whitelist
// filters the catalog, which keeps its own order.
func (c *Config) Tasks() ([]calibration.Task, error) {
	catalog := models.Catalog(c.ForestParams())
	tasks := make([]calibration.Task, 0, len(c.Quantities))
	for _, q := range c.Quantities {
		res, err := calibration.ParseResolution(q.Resolution)
		if err != nil {
			return nil, fmt.Errorf("quantity %s: %w", q.Name, err)
		}
		allowed, err := models.ParseKindSet(q.Models)
		if err != nil {
			return nil, fmt.Errorf("quantity %s: %w", q.Name, err)
		}
		tasks = append(tasks, calibration.Task{
			Quantity:        q.Name,
			Resolution:      res,
			SourceColumn:    q.SourceColumn,
			ReferenceColumn: q.ReferenceColumn,
			InputColumns:    append([]string(nil), q.InputColumns...),
			LogColumns:      append([]string(nil), q.LogColumns...),
			Models:          models.Select(catalog, allowed),
		})
	}
	return tasks, nil
}

// AQIPollutants maps each quantity that gets an AQI column to its breakpoint
// table.
func (c *Config) AQIPollutants() (map[string]aqi.Pollutant, error) {
	out := make(map[string]aqi.Pollutant)
	for _, q := range c.Quantities {
		if q.AQI == "" {
			continue
		}
		p, err := aqi.ParsePollutant(q.AQI)
		if err != nil {
			return nil, fmt.Errorf("quantity %s: %w", q.Name, err)
		}
		out[q.Name] = p
	}
	return out, nil
}

// StationTypes maps GGD station codes to their type.
func (c *Config) StationTypes() map[string]string {
	out := make(map[string]string, len(c.Background.Stations))
	for _, s := range c.Background.Stations {
		out[s.Code] = s.Type
	}
	return out
}

// UTCOffset returns the configured offset of local time from UTC.
func (l LocationConfig) UTCOffset() time.Duration {
	return time.Duration(l.UTCOffsetHours * float64(time.Hour))
}
