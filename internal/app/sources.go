package app

import (
	"context"
	"time"

	"github.com/chrissnell/sensorcal/internal/loaders"
	"github.com/chrissnell/sensorcal/internal/timeseries"
)

// NetworkSource loads the low-cost sensor network, one frame per sensor.
type NetworkSource interface {
	Load(ctx context.Context, experiment string, sensors []string) (*timeseries.Panel, error)
}

// WeatherSource loads hourly weather for a station in local time.
type WeatherSource interface {
	Load(ctx context.Context, station string, start, end time.Time) (*timeseries.Frame, error)
}

// ReferenceSource loads the reference instrument at both resolutions.
type ReferenceSource interface {
	TenSecond(experiment string) (*timeseries.Frame, error)
	Hourly(experiment string) (*timeseries.Frame, error)
}

// knmiWeather adapts the file based KNMI loader to WeatherSource.
type knmiWeather struct {
	loaders.KNMI
}

func (k knmiWeather) Load(ctx context.Context, station string, start, end time.Time) (*timeseries.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return k.KNMI.Load(station, start, end)
}
