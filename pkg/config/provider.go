package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override, e.g. SENSORCAL_OUTPUT_DIR.
const EnvPrefix = "SENSORCAL"

// Accepted layouts of configured start and end times, which are local wall
// clock times.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ConfigProvider is a source of configuration data.
type ConfigProvider interface {
	LoadConfig() (*Config, error)
}

// YAMLProvider reads the configuration from a YAML file over the defaults.
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a provider for filename.
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{filename: filename}
}

// LoadConfig reads the file. Keys absent from the file keep their default.
func (y *YAMLProvider) LoadConfig() (*Config, error) {
	raw, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.UnmarshalStrict(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", y.filename, err)
	}
	return cfg, nil
}

// Load reads the configuration from provider, applies the SENSORCAL_*
// environment overrides and validates the result.
func Load(provider ConfigProvider) (*Config, error) {
	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("could not apply environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the rules that span sections.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("timestamp", isTimestamp); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, formatFieldError(fe))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	for _, p := range []struct {
		name       string
		start, end string
	}{
		{"calibration", c.Calibration.Start, c.Calibration.End},
		{"experiment", c.Experiment.Start, c.Experiment.End},
	} {
		start, _ := ParseTime(p.start)
		end, _ := ParseTime(p.end)
		if !start.Before(end) {
			return fmt.Errorf("invalid config: %s start %s is not before end %s", p.name, p.start, p.end)
		}
	}

	switch c.Weather.Source {
	case WeatherKNMI:
		if c.Data.KNMIDir == "" {
			return fmt.Errorf("invalid config: data.knmi_dir is required for the knmi weather source")
		}
	case WeatherTimescaleDB:
		if c.Weather.TimescaleDB.ConnectionString == "" {
			return fmt.Errorf("invalid config: weather.timescaledb.connection_string is required for the timescaledb weather source")
		}
	}

	if c.Background.Enabled {
		if c.Data.GGDDir == "" {
			return fmt.Errorf("invalid config: data.ggd_dir is required when background levels are enabled")
		}
		if len(c.Background.Stations) == 0 {
			return fmt.Errorf("invalid config: background.stations is empty")
		}
	}

	seen := make(map[string]bool, len(c.Quantities))
	for _, q := range c.Quantities {
		if seen[q.Name] {
			return fmt.Errorf("invalid config: quantity %q configured twice", q.Name)
		}
		seen[q.Name] = true

		inputs := make(map[string]bool, len(q.InputColumns))
		for _, c := range q.InputColumns {
			inputs[c] = true
		}
		for _, c := range q.LogColumns {
			if !inputs[c] {
				return fmt.Errorf("invalid config: quantity %q log column %q is not in input_columns", q.Name, c)
			}
		}
	}
	return nil
}

// ParseTime parses a configured local time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

func isTimestamp(fl validator.FieldLevel) bool {
	_, err := ParseTime(fl.Field().String())
	return err == nil
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "timestamp":
		return fmt.Sprintf("%s: %q is not a time (use YYYY-MM-DD HH:MM:SS)", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
}
