package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/sensorcal/internal/calibration"
	"github.com/chrissnell/sensorcal/internal/models"
	"github.com/chrissnell/sensorcal/pkg/aqi"
)

const minimalYAML = `
data:
  mit_dir: /data/mit
  knmi_dir: /data/knmi
  dcmr_dir: /data/dcmr
calibration:
  mit_experiment: final-city-scanner-data
  dcmr_experiment: schiedam-december-2022
  sensors: [ams3, ams4]
  start: "2022-12-01 00:00:00"
  end: "2022-12-14 23:59:59"
  weather_station: "344"
experiment:
  sensors: [ams1, ams2, ams3, ams4]
  start: "2023-01-10"
  end: "2023-03-01"
  weather_station: "240"
output:
  dir: /data/calibrated
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensorcal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewYAMLProvider(writeConfig(t, minimalYAML)))
	require.NoError(t, err)

	assert.Equal(t, WeatherKNMI, cfg.Weather.Source)
	assert.Equal(t, 0.05, cfg.Preprocess.LowerQuantile)
	assert.Equal(t, 0.8, cfg.Estimator.TrainFraction)
	assert.Equal(t, 200, cfg.RandomForest.Trees)
	assert.Equal(t, "final-data", cfg.Output.Name)
	assert.Equal(t, []string{"ams3", "ams4"}, cfg.Calibration.Sensors)
	require.Len(t, cfg.Quantities, 2)

	p, err := cfg.ExperimentPeriod()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC), p.Start)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SENSORCAL_OUTPUT_DIR", "/tmp/out")
	t.Setenv("SENSORCAL_ESTIMATOR_FOLDS", "10")
	t.Setenv("SENSORCAL_EXPERIMENT_SENSORS", "ams1,ams2")

	cfg, err := Load(NewYAMLProvider(writeConfig(t, minimalYAML)))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.Equal(t, 10, cfg.Estimator.Folds)
	assert.Equal(t, []string{"ams1", "ams2"}, cfg.Experiment.Sensors)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing mit dir", func(c *Config) { c.Data.MITDir = "" }},
		{"bad start", func(c *Config) { c.Calibration.Start = "first of december" }},
		{"end before start", func(c *Config) { c.Experiment.End = "2023-01-01" }},
		{"quantiles crossed", func(c *Config) { c.Preprocess.LowerQuantile = 0.99 }},
		{"train fraction", func(c *Config) { c.Estimator.TrainFraction = 1 }},
		{"unknown model", func(c *Config) { c.Quantities[0].Models = []string{"svm"} }},
		{"unknown resolution", func(c *Config) { c.Quantities[0].Resolution = "5m" }},
		{"duplicate quantity", func(c *Config) { c.Quantities[1].Name = c.Quantities[0].Name }},
		{"log column not an input", func(c *Config) { c.Quantities[0].LogColumns = []string{"mit_pm2"} }},
		{"timescaledb without connection", func(c *Config) { c.Weather.Source = WeatherTimescaleDB }},
		{"background without stations", func(c *Config) {
			c.Background.Enabled = true
			c.Data.GGDDir = "/data/ggd"
		}},
		{"bad station code", func(c *Config) {
			c.Background.Stations = []StationConfig{{Code: "49003", Type: "verkeer"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewYAMLProvider(writeConfig(t, minimalYAML)).LoadConfig()
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	_, err := NewYAMLProvider(writeConfig(t, minimalYAML+"\nestimator:\n  fold: 3\n")).LoadConfig()
	assert.Error(t, err)
}

func TestTasks(t *testing.T) {
	cfg, err := Load(NewYAMLProvider(writeConfig(t, minimalYAML)))
	require.NoError(t, err)

	// whitelist order does not matter, catalog order does
	cfg.Quantities[1].Models = []string{"random_forest", "linear_regression"}

	tasks, err := cfg.Tasks()
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	pm := tasks[0]
	assert.Equal(t, calibration.TenSecond, pm.Resolution)
	assert.Equal(t, "dcmr_PM25", pm.ReferenceColumn)
	assert.Equal(t, []string{"mit_pm25"}, pm.LogColumns)
	require.Len(t, pm.Models, 1)
	assert.Equal(t, models.PolynomialRegression, pm.Models[0].Kind)
	assert.Equal(t, 2, pm.Models[0].Degree)

	no2 := tasks[1]
	assert.Equal(t, calibration.Hourly, no2.Resolution)
	require.Len(t, no2.Models, 2)
	assert.Equal(t, models.LinearRegression, no2.Models[0].Kind)
	assert.Equal(t, models.RandomForest, no2.Models[1].Kind)
	assert.Equal(t, 200, no2.Models[1].Forest.Trees)
	assert.False(t, no2.Models[1].CrossValidate)

	pollutants, err := cfg.AQIPollutants()
	require.NoError(t, err)
	assert.Equal(t, map[string]aqi.Pollutant{"pm25": aqi.PM25}, pollutants)
}

func TestLocationOffset(t *testing.T) {
	assert.Equal(t, time.Hour, LocationConfig{UTCOffsetHours: 1}.UTCOffset())
	assert.Equal(t, -5*time.Hour-30*time.Minute, LocationConfig{UTCOffsetHours: -5.5}.UTCOffset())
}

func TestExampleConfig(t *testing.T) {
	cfg, err := Load(NewYAMLProvider(filepath.Join("..", "..", "sensorcal.example.yaml")))
	require.NoError(t, err)

	assert.Equal(t, "final-data", cfg.Output.Name)
	assert.True(t, cfg.Background.Enabled)
	assert.Len(t, cfg.Background.Stations, 3)
	require.NotNil(t, cfg.Location)
	assert.Equal(t, time.Hour, cfg.Location.UTCOffset())

	tasks, err := cfg.Tasks()
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}
