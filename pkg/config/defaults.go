package config

import (
	"github.com/chrissnell/sensorcal/internal/background"
	"github.com/chrissnell/sensorcal/internal/loaders"
	"github.com/chrissnell/sensorcal/internal/models"
	"github.com/chrissnell/sensorcal/internal/preprocess"
	"github.com/chrissnell/sensorcal/internal/regression"
)

// Weather sources.
const (
	WeatherKNMI        = "knmi"
	WeatherTimescaleDB = "timescaledb"
)

// pm25Inputs are the network and weather covariates of the PM2.5 model.
var pm25Inputs = []string{
	"mit_pm25",
	"mit_humidity",
	"knmi_wind_speed_hourly",
	"knmi_wind_max_gust",
	"knmi_temperature",
	"knmi_sunshine_duration",
	"knmi_global_radiation",
	"knmi_precipitation_duration",
	"knmi_precipitation_hourly",
	"knmi_air_pressure",
	"knmi_relative_humidity",
	"knmi_is_foggy",
	"knmi_is_raining",
	"knmi_is_snowing",
	"knmi_is_thundering",
	"knmi_ice_formation",
}

var no2Inputs = []string{
	"mit_no2_mv",
	"mit_humidity",
	"knmi_temperature",
	"knmi_relative_humidity",
	"knmi_wind_speed_hourly",
	"knmi_air_pressure",
}

// Default returns the configuration of the Schiedam/Amsterdam study minus the
// paths and periods, which have to be supplied.
func Default() *Config {
	pre := preprocess.DefaultOptions()
	est := regression.DefaultOptions()
	forest := models.DefaultForestParams()

	return &Config{
		Data: DataConfig{
			KNMIFilePattern: loaders.DefaultKNMIFilePattern,
		},
		Weather: WeatherConfig{Source: WeatherKNMI},
		Preprocess: PreprocessConfig{
			LowerQuantile:   pre.LowerQuantile,
			UpperQuantile:   pre.UpperQuantile,
			HumidityCeiling: pre.HumidityCeiling,
		},
		Estimator: EstimatorConfig{
			TrainFraction:   est.TrainFraction,
			CrossValidation: est.CrossValidate,
			Folds:           est.Folds,
			Seed:            est.Seed,
		},
		RandomForest: RandomForestConfig{
			Trees:           forest.Trees,
			MinSamplesSplit: forest.MinSamplesSplit,
			MinSamplesLeaf:  forest.MinSamplesLeaf,
			Seed:            forest.Seed,
		},
		Quantities: []QuantityConfig{
			{
				Name:            "pm25",
				Resolution:      "10s",
				SourceColumn:    "mit_pm25",
				ReferenceColumn: "dcmr_PM25",
				InputColumns:    append([]string(nil), pm25Inputs...),
				LogColumns:      []string{"mit_pm25"},
				Models:          []string{models.PolynomialRegression.String()},
				AQI:             "pm25",
			},
			{
				Name:            "no2",
				Resolution:      "1h",
				SourceColumn:    "mit_no2_mv",
				ReferenceColumn: "dcmr_no2",
				InputColumns:    append([]string(nil), no2Inputs...),
				Models: []string{
					models.LinearRegression.String(),
					models.PolynomialRegression.String(),
					models.RandomForest.String(),
				},
			},
		},
		Background: BackgroundConfig{
			TypeWeights:     background.DefaultTypeWeights(),
			Components:      map[string]string{"pm25": "PM25", "no2": "NO2"},
			TimestampLayout: background.DefaultTimestampLayout,
		},
		Output: OutputConfig{
			Name: "final-data",
		},
	}
}
