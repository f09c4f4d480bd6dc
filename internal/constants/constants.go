// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// Version holds the application version information
const Version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH

// Column prefixes that keep source columns apart after a merge.
const (
	NetworkPrefix   = "mit_"
	WeatherPrefix   = "knmi_"
	ReferencePrefix = "dcmr_"
)

// Raw sensor network columns used by the preprocessor.
const (
	NetworkPM25     = "PM25"
	NetworkHumidity = "humidity"
	NetworkNO2      = "gas_op2_w"
)

// Preprocessed training columns.
const (
	TrainPM25     = NetworkPrefix + "pm25"
	TrainHumidity = NetworkPrefix + "humidity"
	TrainNO2      = NetworkPrefix + "no2_mv"
)

// Suffixes of the calibrated output columns.
const (
	CalibratedSuffix   = "_calibrated"
	UncalibratedSuffix = "_uncalibrated"
)

// SensorNameColumn keys the persisted output by sensor.
const SensorNameColumn = "sensor_name"
