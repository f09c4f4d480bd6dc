// Package preprocess aligns the mobile sensor network and the weather station
// onto common 10-second and hourly grids and filters the network readings
// before they are used for calibration.
package preprocess

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/sensorcal/internal/constants"
	"github.com/chrissnell/sensorcal/internal/timeseries"
)

// ErrCoverageMismatch is returned when the joined frame has missing values,
// which means the weather table does not cover the network's time span.
var ErrCoverageMismatch = errors.New("missing values after joining weather data")

// Options are the outlier filter parameters. The quantile bounds are computed
// from the data being filtered.
type Options struct {
	LowerQuantile   float64
	UpperQuantile   float64
	HumidityCeiling float64
}

// DefaultOptions keeps PM2.5 strictly between its 5th and 95th percentile and
// humidity below 90%.
func DefaultOptions() Options {
	return Options{
		LowerQuantile:   0.05,
		UpperQuantile:   0.95,
		HumidityCeiling: 90,
	}
}

// Preprocessor produces the training frames for one time range.
type Preprocessor struct {
	network *timeseries.Panel
	weather *timeseries.Frame
	opts    Options
	logger  *zap.SugaredLogger
}

// New prefixes the network and weather columns and restricts the network to
// [start, end]. A zero start or end leaves that side open.
func New(network *timeseries.Panel, weather *timeseries.Frame, start, end time.Time, opts Options, logger *zap.SugaredLogger) (*Preprocessor, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.LowerQuantile < 0 || opts.UpperQuantile > 1 || opts.LowerQuantile >= opts.UpperQuantile {
		return nil, fmt.Errorf("invalid quantile bounds [%v, %v]", opts.LowerQuantile, opts.UpperQuantile)
	}

	net, err := network.Map(func(_ string, f *timeseries.Frame) (*timeseries.Frame, error) {
		return f.AddPrefix(constants.NetworkPrefix).Between(start, end), nil
	})
	if err != nil {
		return nil, err
	}
	return &Preprocessor{
		network: net,
		weather: weather.AddPrefix(constants.WeatherPrefix),
		opts:    opts,
		logger:  logger,
	}, nil
}

var (
	rawPM25     = constants.NetworkPrefix + constants.NetworkPM25
	rawHumidity = constants.NetworkPrefix + constants.NetworkHumidity
	rawNO2      = constants.NetworkPrefix + constants.NetworkNO2
)

// TenSecondData returns the filtered network PM2.5 and humidity means on a
// 10-second grid, joined with the forward-filled weather columns.
func (p *Preprocessor) TenSecondData() (*timeseries.Frame, error) {
	means, err := p.sensorMeans(timeseries.TenSeconds, rawPM25, rawHumidity)
	if err != nil {
		return nil, err
	}
	means, err = means.DropNA()
	if err != nil {
		return nil, err
	}
	keep, err := p.filterMask(means)
	if err != nil {
		return nil, err
	}
	filtered := means.Filter(func(i int) bool { return keep[i] })
	p.logger.Debugw("filtered 10-second network data", "rows_before", means.Len(), "rows_after", filtered.Len())

	filtered, err = filtered.Rename(map[string]string{
		rawPM25:     constants.TrainPM25,
		rawHumidity: constants.TrainHumidity,
	})
	if err != nil {
		return nil, err
	}
	return p.joinWeather(filtered, timeseries.TenSeconds)
}

// HourlyData returns hourly network means of PM2.5, the NO2 sensor voltage and
// humidity joined with the forward-filled weather columns. PM2.5 outliers are
// filtered as for the 10-second data; rows missing any of the three are
// dropped.
func (p *Preprocessor) HourlyData() (*timeseries.Frame, error) {
	means, err := p.sensorMeans(timeseries.Hourly, rawPM25, rawNO2, rawHumidity)
	if err != nil {
		return nil, err
	}

	// The PM2.5 bounds come from the rows that have both PM2.5 and humidity,
	// before rows missing NO2 are dropped.
	pmRows, err := means.DropNA(rawPM25, rawHumidity)
	if err != nil {
		return nil, err
	}
	keep, err := p.filterMask(pmRows)
	if err != nil {
		return nil, err
	}
	kept := make(map[int64]bool, pmRows.Len())
	for i, t := range pmRows.Index() {
		if keep[i] {
			kept[t.UnixNano()] = true
		}
	}

	filtered, err := means.DropNA()
	if err != nil {
		return nil, err
	}
	filtered = filtered.Filter(func(i int) bool { return kept[filtered.Index()[i].UnixNano()] })
	p.logger.Debugw("filtered hourly network data", "rows_before", means.Len(), "rows_after", filtered.Len())

	filtered, err = filtered.Rename(map[string]string{
		rawPM25:     constants.TrainPM25,
		rawNO2:      constants.TrainNO2,
		rawHumidity: constants.TrainHumidity,
	})
	if err != nil {
		return nil, err
	}
	return p.joinWeather(filtered, timeseries.Hourly)
}

// sensorMeans resamples every sensor to freq and averages the columns across
// sensors.
func (p *Preprocessor) sensorMeans(freq time.Duration, columns ...string) (*timeseries.Frame, error) {
	if p.network.Len() == 0 {
		return timeseries.Empty(columns...), nil
	}
	resampled, err := p.network.Map(func(_ string, f *timeseries.Frame) (*timeseries.Frame, error) {
		sel, err := f.Select(columns...)
		if err != nil {
			return nil, err
		}
		return sel.Resample(freq)
	})
	if err != nil {
		return nil, err
	}
	return resampled.MeanAcross(columns...)
}

// filterMask keeps rows with PM2.5 strictly between its quantile bounds and
// humidity strictly below the ceiling.
func (p *Preprocessor) filterMask(f *timeseries.Frame) ([]bool, error) {
	pm, err := f.Column(rawPM25)
	if err != nil {
		return nil, err
	}
	hum, err := f.Column(rawHumidity)
	if err != nil {
		return nil, err
	}

	lo := timeseries.Quantile(pm, p.opts.LowerQuantile)
	hi := timeseries.Quantile(pm, p.opts.UpperQuantile)
	keep := make([]bool, len(pm))
	for i := range pm {
		keep[i] = pm[i] > lo && pm[i] < hi && hum[i] < p.opts.HumidityCeiling
	}
	return keep, nil
}

// joinWeather puts the weather frame on the freq grid, forward fills it and
// left joins it onto the network frame. Any missing value afterwards is a
// coverage mismatch.
func (p *Preprocessor) joinWeather(network *timeseries.Frame, freq time.Duration) (*timeseries.Frame, error) {
	weather, err := p.weather.Normalize().AsFreq(freq)
	if err != nil {
		return nil, err
	}
	joined, err := timeseries.Join(network, weather.FFill(), timeseries.LeftJoin)
	if err != nil {
		return nil, err
	}

	hasNA, err := joined.HasNA()
	if err != nil {
		return nil, err
	}
	if hasNA {
		return nil, fmt.Errorf("%w at %s resolution: the weather table probably does not cover the same period as the network table",
			ErrCoverageMismatch, freq)
	}
	p.logger.Debugw("joined weather data", "resolution", freq.String(), "rows", joined.Len())
	return joined, nil
}
