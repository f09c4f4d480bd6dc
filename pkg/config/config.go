// Package config defines the sensorcal configuration surface. A YAML file is
// read over the defaults, SENSORCAL_* environment variables override it and
// the result is validated before use.
package config

// Config is the complete configuration of a calibration run.
type Config struct {
	Data         DataConfig         `yaml:"data" envconfig:"DATA"`
	Calibration  CalibrationConfig  `yaml:"calibration" envconfig:"CALIBRATION"`
	Experiment   ExperimentConfig   `yaml:"experiment" envconfig:"EXPERIMENT"`
	Weather      WeatherConfig      `yaml:"weather" envconfig:"WEATHER"`
	Preprocess   PreprocessConfig   `yaml:"preprocess" envconfig:"PREPROCESS"`
	Estimator    EstimatorConfig    `yaml:"estimator" envconfig:"ESTIMATOR"`
	RandomForest RandomForestConfig `yaml:"random_forest" envconfig:"RANDOM_FOREST"`
	Quantities   []QuantityConfig   `yaml:"quantities" ignored:"true" validate:"min=1,dive"`
	Location     *LocationConfig    `yaml:"location,omitempty" ignored:"true"`
	Background   BackgroundConfig   `yaml:"background" envconfig:"BACKGROUND"`
	Output       OutputConfig       `yaml:"output" envconfig:"OUTPUT"`
	Log          LogConfig          `yaml:"log" envconfig:"LOG"`
}

// DataConfig points at the raw exports of every source.
type DataConfig struct {
	MITDir          string `yaml:"mit_dir" envconfig:"MIT_DIR" validate:"required"`
	KNMIDir         string `yaml:"knmi_dir" envconfig:"KNMI_DIR"`
	KNMIFilePattern string `yaml:"knmi_file_pattern" envconfig:"KNMI_FILE_PATTERN"`
	DCMRDir         string `yaml:"dcmr_dir" envconfig:"DCMR_DIR" validate:"required"`
	GGDDir          string `yaml:"ggd_dir" envconfig:"GGD_DIR"`
}

// CalibrationConfig selects the co-location period used for training.
type CalibrationConfig struct {
	MITExperiment  string   `yaml:"mit_experiment" envconfig:"MIT_EXPERIMENT" validate:"required"`
	DCMRExperiment string   `yaml:"dcmr_experiment" envconfig:"DCMR_EXPERIMENT" validate:"required"`
	Sensors        []string `yaml:"sensors" envconfig:"SENSORS" validate:"min=1,dive,required"`
	Start          string   `yaml:"start" envconfig:"START" validate:"required,timestamp"`
	End            string   `yaml:"end" envconfig:"END" validate:"required,timestamp"`
	WeatherStation string   `yaml:"weather_station" envconfig:"WEATHER_STATION" validate:"required"`
}

// ExperimentConfig selects the deployment period that gets calibrated. The
// sensors are read from the calibration's MIT experiment.
type ExperimentConfig struct {
	Sensors        []string `yaml:"sensors" envconfig:"SENSORS" validate:"min=1,dive,required"`
	Start          string   `yaml:"start" envconfig:"START" validate:"required,timestamp"`
	End            string   `yaml:"end" envconfig:"END" validate:"required,timestamp"`
	WeatherStation string   `yaml:"weather_station" envconfig:"WEATHER_STATION" validate:"required"`
}

// WeatherConfig picks the weather source.
type WeatherConfig struct {
	Source      string            `yaml:"source" envconfig:"SOURCE" validate:"oneof=knmi timescaledb"`
	TimescaleDB TimescaleDBConfig `yaml:"timescaledb" envconfig:"TIMESCALEDB"`
}

// TimescaleDBConfig holds a PostgreSQL connection string.
type TimescaleDBConfig struct {
	ConnectionString string `yaml:"connection_string" envconfig:"CONNECTION_STRING"`
}

type PreprocessConfig struct {
	LowerQuantile   float64 `yaml:"lower_quantile" envconfig:"LOWER_QUANTILE" validate:"gte=0,ltfield=UpperQuantile"`
	UpperQuantile   float64 `yaml:"upper_quantile" envconfig:"UPPER_QUANTILE" validate:"lte=1"`
	HumidityCeiling float64 `yaml:"humidity_ceiling" envconfig:"HUMIDITY_CEILING" validate:"gt=0"`
}

type EstimatorConfig struct {
	TrainFraction   float64 `yaml:"train_fraction" envconfig:"TRAIN_FRACTION" validate:"gt=0,lt=1"`
	CrossValidation bool    `yaml:"cross_validation" envconfig:"CROSS_VALIDATION"`
	Folds           int     `yaml:"folds" envconfig:"FOLDS" validate:"gte=2"`
	Seed            uint64  `yaml:"seed" envconfig:"SEED"`
}

type RandomForestConfig struct {
	Trees           int     `yaml:"trees" envconfig:"TREES" validate:"gte=1"`
	MinSamplesSplit int     `yaml:"min_samples_split" envconfig:"MIN_SAMPLES_SPLIT" validate:"gte=2"`
	MinSamplesLeaf  float64 `yaml:"min_samples_leaf" envconfig:"MIN_SAMPLES_LEAF" validate:"gt=0,lt=1"`
	Seed            uint64  `yaml:"seed" envconfig:"SEED"`
	Workers         int     `yaml:"workers" envconfig:"WORKERS" validate:"gte=0"`
}

// QuantityConfig describes one calibrated quantity.
type QuantityConfig struct {
	Name            string   `yaml:"name" validate:"required"`
	Resolution      string   `yaml:"resolution" validate:"oneof=10s 1h"`
	SourceColumn    string   `yaml:"source_column"`
	ReferenceColumn string   `yaml:"reference_column" validate:"required"`
	InputColumns    []string `yaml:"input_columns" validate:"min=1,dive,required"`
	LogColumns      []string `yaml:"log_columns"`
	Models          []string `yaml:"models" validate:"min=1,dive,oneof=linear_regression polynomial_regression random_forest"`
	AQI             string   `yaml:"aqi" validate:"omitempty,oneof=pm25 pm10"`
}

// LocationConfig enables the solar elevation covariate.
type LocationConfig struct {
	Latitude       float64 `yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude      float64 `yaml:"longitude" validate:"gte=-180,lte=180"`
	UTCOffsetHours float64 `yaml:"utc_offset_hours" validate:"gte=-14,lte=14"`
}

// BackgroundConfig controls the background level subtraction.
type BackgroundConfig struct {
	Enabled         bool               `yaml:"enabled" envconfig:"ENABLED"`
	Stations        []StationConfig    `yaml:"stations" ignored:"true" validate:"dive"`
	TypeWeights     map[string]float64 `yaml:"type_weights" envconfig:"TYPE_WEIGHTS"`
	Components      map[string]string  `yaml:"components" envconfig:"COMPONENTS"`
	TimestampLayout string             `yaml:"timestamp_layout" envconfig:"TIMESTAMP_LAYOUT"`
}

// StationConfig assigns a type to a GGD station code.
type StationConfig struct {
	Code string `yaml:"code" validate:"required,startswith=NL"`
	Type string `yaml:"type" validate:"required"`
}

// OutputConfig says where results go. Optional sinks are off when empty.
type OutputConfig struct {
	Dir         string            `yaml:"dir" envconfig:"DIR" validate:"required"`
	Name        string            `yaml:"name" envconfig:"NAME" validate:"required"`
	Plot        bool              `yaml:"plot" envconfig:"PLOT"`
	RunStore    string            `yaml:"run_store" envconfig:"RUN_STORE"`
	MetricsFile string            `yaml:"metrics_file" envconfig:"METRICS_FILE"`
	TimescaleDB TimescaleDBConfig `yaml:"timescaledb" envconfig:"TIMESCALEDB"`
}

type LogConfig struct {
	Debug bool `yaml:"debug" envconfig:"DEBUG"`
}
