package loaders

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/chrissnell/sensorcal/internal/timeseries"
)

// hourlyWeatherQuery averages a remoteweather station's readings per hour.
const hourlyWeatherQuery = `
SELECT time_bucket('1 hour', time) AS bucket,
       avg(outtemp), avg(outhumidity), avg(barometer),
       avg(windspeed), max(windspeed)::float8, avg(rainrate), avg(solarwatts)
FROM weather
WHERE stationname = $1 AND time >= $2 AND time <= $3
GROUP BY bucket
ORDER BY bucket`

// WeatherDB reads hourly weather from a remoteweather TimescaleDB instead of
// a KNMI export. Readings are converted to the units of the KNMI columns they
// stand in for.
type WeatherDB struct {
	Pool *pgxpool.Pool
	// UTCOffset converts database times to local wall-clock time.
	UTCOffset time.Duration
	Logger    *zap.SugaredLogger
}

// NewWeatherDB connects to the database.
func NewWeatherDB(ctx context.Context, connString string, utcOffset time.Duration, logger *zap.SugaredLogger) (*WeatherDB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to weather database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping weather database: %w", err)
	}
	return &WeatherDB{Pool: pool, UTCOffset: utcOffset, Logger: logger}, nil
}

// Close releases the pool.
func (w *WeatherDB) Close() {
	w.Pool.Close()
}

// weatherHour is one aggregated row in the station's native units: °F, %,
// inHg, mph, in/h and W/m².
type weatherHour struct {
	Bucket      time.Time
	OutTemp     pgtype.Float8
	OutHumidity pgtype.Float8
	Barometer   pgtype.Float8
	WindSpeed   pgtype.Float8
	WindGust    pgtype.Float8
	RainRate    pgtype.Float8
	SolarWatts  pgtype.Float8
}

// Load returns hourly weather for station within [start, end], given in local
// wall-clock time.
func (w *WeatherDB) Load(ctx context.Context, station string, start, end time.Time) (*timeseries.Frame, error) {
	rows, err := w.Pool.Query(ctx, hourlyWeatherQuery, station, start.Add(-w.UTCOffset), end.Add(-w.UTCOffset))
	if err != nil {
		return nil, fmt.Errorf("failed to query weather: %w", err)
	}
	defer rows.Close()

	var hours []weatherHour
	for rows.Next() {
		var h weatherHour
		if err := rows.Scan(&h.Bucket, &h.OutTemp, &h.OutHumidity, &h.Barometer,
			&h.WindSpeed, &h.WindGust, &h.RainRate, &h.SolarWatts); err != nil {
			return nil, fmt.Errorf("failed to scan weather row: %w", err)
		}
		hours = append(hours, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if w.Logger != nil {
		w.Logger.Debugw("loaded weather from database", "station", station, "hours", len(hours))
	}
	return weatherFrame(hours, w.UTCOffset)
}

var weatherDBColumns = []string{
	"temperature",
	"relative_humidity",
	"air_pressure",
	"wind_speed_hourly",
	"wind_max_gust",
	"precipitation_hourly",
	"global_radiation",
}

// weatherFrame converts station units to KNMI units: 0.1 °C, %, 0.1 hPa,
// 0.1 m/s, 0.1 mm and J/cm² per hour.
func weatherFrame(hours []weatherHour, utcOffset time.Duration) (*timeseries.Frame, error) {
	b := newColumnBuilder(weatherDBColumns)
	row := make([]float64, len(weatherDBColumns))
	for _, h := range hours {
		row[0] = convert(h.OutTemp, func(f float64) float64 { return (f - 32) * 5 / 9 * 10 })
		row[1] = convert(h.OutHumidity, nil)
		row[2] = convert(h.Barometer, func(in float64) float64 { return in * 33.8639 * 10 })
		row[3] = convert(h.WindSpeed, mphToDeciMetres)
		row[4] = convert(h.WindGust, mphToDeciMetres)
		row[5] = convert(h.RainRate, func(in float64) float64 { return in * 25.4 * 10 })
		row[6] = convert(h.SolarWatts, func(w float64) float64 { return w * 0.36 })
		b.add(h.Bucket.UTC().Add(utcOffset), row)
	}
	f, err := timeseries.New(b.index, b.names, b.columns())
	if err != nil {
		return nil, err
	}
	return f.Normalize(), nil
}

func mphToDeciMetres(mph float64) float64 { return mph * 0.44704 * 10 }

func convert(v pgtype.Float8, fn func(float64) float64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	if fn == nil {
		return v.Float64
	}
	return fn(v.Float64)
}
