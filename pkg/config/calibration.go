package config

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// AxisProfile is the calibrated travel of one tracker, as measured on the bench
type AxisProfile struct {
	DeviceID      string `mapstructure:"device_id"`
	HorizontalMin int    `mapstructure:"horizontal_min"`
	HorizontalMax int    `mapstructure:"horizontal_max"`
	VerticalMin   int    `mapstructure:"vertical_min"`
	VerticalMax   int    `mapstructure:"vertical_max"`
}

// Calibration is the content of calibration.yaml
type Calibration struct {
	Devices []AxisProfile `mapstructure:"devices"`
}

// LoadCalibration reads calibration.yaml from dir. A missing file is not an error:
// every device then runs with the default limits.
func LoadCalibration(dir string) (*Calibration, error) {
	v := viper.New()
	v.SetConfigName("calibration")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetDefault("devices", []AxisProfile{})

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Printf("Calibration: no calibration.yaml in %s, using default limits", dir)
			return &Calibration{}, nil
		}
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}

	var cal Calibration
	if err := v.Unmarshal(&cal); err != nil {
		return nil, fmt.Errorf("failed to decode calibration file: %w", err)
	}

	seen := make(map[string]bool, len(cal.Devices))
	for _, p := range cal.Devices {
		if p.DeviceID == "" {
			return nil, fmt.Errorf("calibration profile without device_id")
		}
		if seen[p.DeviceID] {
			return nil, fmt.Errorf("duplicate calibration profile for %s", p.DeviceID)
		}
		seen[p.DeviceID] = true
	}

	log.Printf("Calibration: loaded %d device profile(s) from %s", len(cal.Devices), v.ConfigFileUsed())
	return &cal, nil
}
