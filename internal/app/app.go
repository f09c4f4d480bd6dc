// Package app wires the loaders, preprocessor, calibrator and outputs into
// one batch run.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chrissnell/sensorcal/internal/background"
	"github.com/chrissnell/sensorcal/internal/calibration"
	"github.com/chrissnell/sensorcal/internal/database"
	"github.com/chrissnell/sensorcal/internal/loaders"
	"github.com/chrissnell/sensorcal/internal/observability"
	"github.com/chrissnell/sensorcal/internal/output"
	"github.com/chrissnell/sensorcal/internal/runstore"
	"github.com/chrissnell/sensorcal/pkg/config"
)

// defaultUTCOffset is the study area's offset when no location is configured.
const defaultUTCOffset = time.Hour

// App represents one calibration run.
type App struct {
	cfg     *config.Config
	logger  *zap.SugaredLogger
	clock   clockwork.Clock
	metrics *observability.Metrics

	network   NetworkSource
	weather   WeatherSource
	reference ReferenceSource
	levels    *background.Levels

	readings output.ReadingWriter
	runs     *runstore.Store

	closers []func() error
}

// New creates an application for cfg. Open connects the configured sources
// and sinks.
func New(cfg *config.Config, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		cfg:     cfg,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
	}
}

// Open builds the sources and sinks named in the configuration.
func (a *App) Open(ctx context.Context) error {
	cfg := a.cfg

	a.network = loaders.MIT{Dir: cfg.Data.MITDir, Logger: a.logger.Named("mit")}
	a.reference = loaders.DCMR{Dir: cfg.Data.DCMRDir}

	switch cfg.Weather.Source {
	case config.WeatherTimescaleDB:
		db, err := loaders.NewWeatherDB(ctx, cfg.Weather.TimescaleDB.ConnectionString, a.utcOffset(), a.logger.Named("weatherdb"))
		if err != nil {
			return err
		}
		a.weather = db
		a.closers = append(a.closers, func() error { db.Close(); return nil })
	default:
		a.weather = knmiWeather{loaders.KNMI{Dir: cfg.Data.KNMIDir, FilePattern: cfg.Data.KNMIFilePattern}}
	}

	if cfg.Background.Enabled {
		a.levels = &background.Levels{
			Cache:        background.NewCache(background.GGD{Dir: cfg.Data.GGDDir, TimestampLayout: cfg.Background.TimestampLayout}),
			StationTypes: cfg.StationTypes(),
			TypeWeights:  cfg.Background.TypeWeights,
		}
	}

	if conn := cfg.Output.TimescaleDB.ConnectionString; conn != "" {
		client, err := database.Connect(conn, a.logger.Named("database"))
		if err != nil {
			a.Close()
			return err
		}
		a.closers = append(a.closers, client.Close)
		if err := client.Migrate(ctx); err != nil {
			a.Close()
			return err
		}
		a.readings = client
	}

	if cfg.Output.RunStore != "" {
		store, err := runstore.Open(ctx, cfg.Output.RunStore, a.clock)
		if err != nil {
			a.Close()
			return err
		}
		a.runs = store
		a.closers = append(a.closers, store.Close)
	}
	return nil
}

// Close releases database connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Metrics returns the metrics of the run.
func (a *App) Metrics() *observability.Metrics { return a.metrics }

func (a *App) utcOffset() time.Duration {
	if a.cfg.Location != nil {
		return a.cfg.Location.UTCOffset()
	}
	return defaultUTCOffset
}

// Run trains the calibration, applies it to every experiment sensor and
// writes the results. Nothing is written unless both resolutions were
// produced.
func (a *App) Run(ctx context.Context) (err error) {
	started := a.clock.Now()
	runID := ""
	if a.runs != nil {
		run, err := a.runs.StartRun(ctx, a.cfg.Output.Name)
		if err != nil {
			return err
		}
		runID = run.ID
		a.logger.Infow("started run", "run_id", runID)
	}

	defer func() {
		finished := a.clock.Now()
		a.metrics.Finish(started, finished, err == nil)
		if a.runs != nil {
			if ferr := a.runs.FinishRun(context.WithoutCancel(ctx), runID, err); ferr != nil {
				a.logger.Errorw("could not record run outcome", "error", ferr)
			}
		}
		if path := a.cfg.Output.MetricsFile; path != "" {
			if merr := a.metrics.WriteTextfile(path); merr != nil {
				a.logger.Errorw("could not write metrics", "error", merr)
			}
		}
		a.logger.Infow("run finished", "duration", finished.Sub(started), "success", err == nil)
	}()

	cal, results, err := a.train(ctx)
	if err != nil {
		return err
	}
	if err := a.report(ctx, runID, results); err != nil {
		return err
	}

	datasets, err := a.calibrateExperiment(ctx, cal)
	if err != nil {
		return err
	}
	return a.write(ctx, runID, datasets)
}

// report records model scores in the metrics and run store and draws the
// training plots.
func (a *App) report(ctx context.Context, runID string, results []calibration.TaskResult) error {
	var scores []runstore.Score
	for _, res := range results {
		q := res.Task.Quantity
		for _, m := range res.Models {
			model := m.Spec.Kind.String()
			a.metrics.ModelR2.WithLabelValues(q, model).Set(m.R2)
			a.metrics.ModelRMSE.WithLabelValues(q, model).Set(m.RMSE)
			selected := 0.0
			if m.Selected {
				selected = 1
			}
			a.metrics.SelectedModel.WithLabelValues(q, model).Set(selected)
			scores = append(scores, runstore.Score{
				Quantity:  q,
				Model:     model,
				R2:        m.R2,
				RMSE:      m.RMSE,
				TrainSize: m.TrainSize,
				TestSize:  m.TestSize,
				Selected:  m.Selected,
			})
		}
	}
	if a.runs != nil {
		if err := a.runs.RecordScores(ctx, runID, scores); err != nil {
			return err
		}
	}

	if a.cfg.Output.Plot {
		store := a.csvStore()
		for _, res := range results {
			path := store.PlotPath(res.Task.Quantity)
			if err := mkdirFor(path); err != nil {
				return err
			}
			if err := output.PlotTraining(path, res); err != nil {
				return fmt.Errorf("plotting %s: %w", res.Task.Quantity, err)
			}
			a.logger.Infow("wrote training plot", "quantity", res.Task.Quantity, "path", path)
		}
	}
	return nil
}

func (a *App) csvStore() output.CSVStore {
	return output.CSVStore{Dir: a.cfg.Output.Dir, Name: a.cfg.Output.Name}
}

// write stores the datasets in the database, if configured, and then as CSV.
func (a *App) write(ctx context.Context, runID string, datasets []output.Dataset) error {
	if a.readings != nil {
		quantities := make([]string, 0, len(a.cfg.Quantities))
		for _, q := range a.cfg.Quantities {
			quantities = append(quantities, q.Name)
		}
		sink := output.TimescaleSink{Writer: a.readings, RunID: runID, Quantities: quantities}
		if _, err := sink.Write(ctx, datasets...); err != nil {
			return err
		}
	}

	paths, err := a.csvStore().Write(datasets...)
	if err != nil {
		return err
	}
	for i, d := range datasets {
		rows := 0
		for _, sf := range d.Frames {
			rows += sf.Frame.Len()
		}
		a.metrics.OutputRows.WithLabelValues(d.Name).Add(float64(rows))
		a.logger.Infow("wrote calibrated data", "dataset", d.Name, "rows", rows, "path", paths[i])
	}
	return nil
}

func mkdirFor(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
