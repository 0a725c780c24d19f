package config

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

// Duration is a time.Duration that unmarshals from either a JSON number
// (nanoseconds) or a string accepted by time.ParseDuration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return errors.New("invalid duration")
	}
}

type Config struct {
	Address         string   `json:"address"          validate:"required"`
	LogLevel        string   `json:"log_level"`
	StoreURL        string   `json:"store_url"        validate:"required"`
	Workers         int      `json:"workers"          validate:"gte=1"`
	QueueSize       int      `json:"queue_size"       validate:"gte=1"`
	SchedulerTick   Duration `json:"scheduler_tick"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
	Version         string   `json:"version"`
}

func defaults() Config {
	return Config{
		Address:         "localhost:5500",
		LogLevel:        "INFO",
		StoreURL:        "sqlite:///dataplatform.db",
		Workers:         4,
		QueueSize:       256,
		SchedulerTick:   Duration{time.Minute},
		ShutdownTimeout: Duration{30 * time.Second},
		Version:         "dev",
	}
}

// Load reads an optional JSON config file, applies environment overrides
// (DATAPLATFORM_*) and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("DATAPLATFORM_ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := os.Getenv("DATAPLATFORM_STORE_URL"); v != "" {
		cfg.StoreURL = v
	}
	if v := os.Getenv("DATAPLATFORM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
