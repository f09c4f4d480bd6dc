package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/sensorcal/internal/calibration"
	"github.com/chrissnell/sensorcal/internal/constants"
	"github.com/chrissnell/sensorcal/internal/output"
	"github.com/chrissnell/sensorcal/internal/preprocess"
	"github.com/chrissnell/sensorcal/internal/timeseries"
	"github.com/chrissnell/sensorcal/pkg/aqi"
)

// train loads the co-location period, builds both training frames and trains
// every configured quantity against the reference instrument.
func (a *App) train(ctx context.Context) (*calibration.Calibrator, []calibration.TaskResult, error) {
	cfg := a.cfg
	period, err := cfg.CalibrationPeriod()
	if err != nil {
		return nil, nil, err
	}
	tasks, err := cfg.Tasks()
	if err != nil {
		return nil, nil, err
	}
	cal, err := calibration.New(tasks, cfg.RegressionOptions(), a.logger.Named("calibration"))
	if err != nil {
		return nil, nil, err
	}

	network, err := a.network.Load(ctx, cfg.Calibration.MITExperiment, cfg.Calibration.Sensors)
	if err != nil {
		return nil, nil, fmt.Errorf("loading calibration sensors: %w", err)
	}
	a.countPanel("mit", network)

	weather, err := a.weather.Load(ctx, cfg.Calibration.WeatherStation, period.Start, period.End)
	if err != nil {
		return nil, nil, fmt.Errorf("loading calibration weather: %w", err)
	}
	a.countFrame("weather", weather)

	ref10, err := a.reference.TenSecond(cfg.Calibration.DCMRExperiment)
	if err != nil {
		return nil, nil, fmt.Errorf("loading 10-second reference: %w", err)
	}
	refHourly, err := a.reference.Hourly(cfg.Calibration.DCMRExperiment)
	if err != nil {
		return nil, nil, fmt.Errorf("loading hourly reference: %w", err)
	}
	a.countFrame("reference_10s", ref10)
	a.countFrame("reference_1h", refHourly)

	inputs, err := a.preprocess(network, weather, period.Start, period.End)
	if err != nil {
		return nil, nil, fmt.Errorf("preprocessing calibration data: %w", err)
	}
	a.logger.Infow("prepared training data",
		"rows_10s", inputs.TenSecond.Len(),
		"rows_1h", inputs.Hourly.Len(),
	)
	for _, t := range tasks {
		a.metrics.TrainingRows.WithLabelValues(t.Quantity, string(t.Resolution)).Set(float64(inputs.At(t.Resolution).Len()))
	}

	results, err := cal.Train(ctx, inputs, calibration.Inputs{TenSecond: ref10, Hourly: refHourly})
	if err != nil {
		return nil, nil, err
	}
	return cal, results, nil
}

// calibrateExperiment preprocesses and calibrates every experiment sensor on
// its own and returns one dataset per resolution.
func (a *App) calibrateExperiment(ctx context.Context, cal *calibration.Calibrator) ([]output.Dataset, error) {
	cfg := a.cfg
	period, err := cfg.ExperimentPeriod()
	if err != nil {
		return nil, err
	}

	weather, err := a.weather.Load(ctx, cfg.Experiment.WeatherStation, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("loading experiment weather: %w", err)
	}
	a.countFrame("weather", weather)

	network, err := a.network.Load(ctx, cfg.Calibration.MITExperiment, cfg.Experiment.Sensors)
	if err != nil {
		return nil, fmt.Errorf("loading experiment sensors: %w", err)
	}
	a.countPanel("mit", network)

	tenSecond := output.Dataset{Name: output.TenSecondName}
	hourly := output.Dataset{Name: output.HourlyName}
	for _, sensor := range network.Names() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, _ := network.Get(sensor)
		single := timeseries.NewPanel()
		if err := single.Add(sensor, f); err != nil {
			return nil, err
		}

		inputs, err := a.preprocess(single, weather, period.Start, period.End)
		if err != nil {
			return nil, fmt.Errorf("preprocessing sensor %s: %w", sensor, err)
		}
		calibrated, scrubbed, err := cal.Calibrate(inputs)
		if err != nil {
			return nil, fmt.Errorf("sensor %s: %w", sensor, err)
		}
		for q, n := range scrubbed {
			a.metrics.ScrubbedValues.WithLabelValues(q).Add(float64(n))
		}

		ten, err := a.enrich(calibrated.TenSecond)
		if err != nil {
			return nil, fmt.Errorf("sensor %s: %w", sensor, err)
		}
		hour, err := a.enrich(calibrated.Hourly)
		if err != nil {
			return nil, fmt.Errorf("sensor %s: %w", sensor, err)
		}
		tenSecond.Frames = append(tenSecond.Frames, output.SensorFrame{Sensor: sensor, Frame: ten})
		hourly.Frames = append(hourly.Frames, output.SensorFrame{Sensor: sensor, Frame: hour})
		a.logger.Infow("calibrated sensor", "sensor", sensor, "rows_10s", ten.Len(), "rows_1h", hour.Len())
	}
	return []output.Dataset{tenSecond, hourly}, nil
}

// preprocess builds both resolutions and adds the time covariates, so they
// can be used as model inputs.
func (a *App) preprocess(network *timeseries.Panel, weather *timeseries.Frame, start, end time.Time) (calibration.Inputs, error) {
	pre, err := preprocess.New(network, weather, start, end, a.cfg.PreprocessOptions(), a.logger.Named("preprocess"))
	if err != nil {
		return calibration.Inputs{}, err
	}
	ten, err := pre.TenSecondData()
	if err != nil {
		return calibration.Inputs{}, err
	}
	hourly, err := pre.HourlyData()
	if err != nil {
		return calibration.Inputs{}, err
	}
	if ten, err = a.covariates(ten); err != nil {
		return calibration.Inputs{}, err
	}
	if hourly, err = a.covariates(hourly); err != nil {
		return calibration.Inputs{}, err
	}
	return calibration.Inputs{TenSecond: ten, Hourly: hourly}, nil
}

func (a *App) covariates(f *timeseries.Frame) (*timeseries.Frame, error) {
	out, err := f.WithCalendar()
	if err != nil {
		return nil, err
	}
	if loc := a.cfg.Location; loc != nil {
		return out.WithSolarElevation(loc.Latitude, loc.Longitude, loc.UTCOffset())
	}
	return out, nil
}

// enrich adds the AQI and background columns of the calibrated quantities
// present in f.
func (a *App) enrich(f *timeseries.Frame) (*timeseries.Frame, error) {
	pollutants, err := a.cfg.AQIPollutants()
	if err != nil {
		return nil, err
	}
	out := f
	for _, q := range a.cfg.Quantities {
		column := q.Name + constants.CalibratedSuffix
		if !out.Has(column) {
			continue
		}
		if p, ok := pollutants[q.Name]; ok {
			values, _ := out.Column(column)
			index := aqi.Series(p, values)
			if out, err = out.WithColumn(q.Name+output.AQISuffix, index); err != nil {
				return nil, err
			}
			if peak := maxValue(index); !math.IsNaN(peak) {
				a.logger.Debugw("air quality index",
					"quantity", q.Name,
					"peak", peak,
					"category", aqi.Category(peak),
				)
			}
		}
		if a.levels != nil {
			component, ok := a.cfg.Background.Components[q.Name]
			if !ok {
				continue
			}
			if out, err = a.levels.Subtract(out, column, component); err != nil {
				return nil, fmt.Errorf("background %s: %w", component, err)
			}
		}
	}
	return out, nil
}

// maxValue returns the largest non-missing value, or NaN.
func maxValue(values []float64) float64 {
	peak := math.NaN()
	for _, v := range values {
		if !math.IsNaN(v) && (math.IsNaN(peak) || v > peak) {
			peak = v
		}
	}
	return peak
}

func (a *App) countPanel(source string, p *timeseries.Panel) {
	rows := 0
	for _, name := range p.Names() {
		f, _ := p.Get(name)
		rows += f.Len()
	}
	a.metrics.RowsLoaded.WithLabelValues(source).Add(float64(rows))
	a.logger.Infow("loaded data", "source", source, "sensors", p.Len(), "rows", rows)
}

func (a *App) countFrame(source string, f *timeseries.Frame) {
	a.metrics.RowsLoaded.WithLabelValues(source).Add(float64(f.Len()))
	a.logger.Infow("loaded data", "source", source, "rows", f.Len())
}
