package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrMissingField is returned when a required reading field is absent
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidValue is returned when a reading field is out of its documented range
	ErrInvalidValue = errors.New("invalid field value")
)

// Reading is one telemetry sample from a tracker. Optional fields are nil when absent.
type Reading struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`

	// Light sensors: top-left, top-right, bottom-left, bottom-right
	LDRTopLeft     int `json:"ldr_tl"`
	LDRTopRight    int `json:"ldr_tr"`
	LDRBottomLeft  int `json:"ldr_bl"`
	LDRBottomRight int `json:"ldr_br"`

	ServoH int `json:"servo_h"` // degrees
	ServoV int `json:"servo_v"` // degrees

	Voltage     *float64 `json:"voltage,omitempty"`     // panel voltage (V)
	Temperature *float64 `json:"temperature,omitempty"` // Celsius
	Pressure    *float64 `json:"pressure,omitempty"`    // hPa
	Humidity    *float64 `json:"humidity,omitempty"`    // Percentage 0-100
	Altitude    *float64 `json:"altitude,omitempty"`    // meters

	AtLimitH bool `json:"limit_h"`
	AtLimitV bool `json:"limit_v"`
}

// LDRs returns the four light intensities in TL, TR, BL, BR order
func (r *Reading) LDRs() [4]int {
	return [4]int{r.LDRTopLeft, r.LDRTopRight, r.LDRBottomLeft, r.LDRBottomRight}
}

// ReadingPayload is the inbound JSON shape sent by the tracker firmware
type ReadingPayload struct {
	DeviceID    string   `json:"device_id"`
	Timestamp   string   `json:"timestamp"`
	LDRTL       *int     `json:"ldr_tl"`
	LDRTR       *int     `json:"ldr_tr"`
	LDRBL       *int     `json:"ldr_bl"`
	LDRBR       *int     `json:"ldr_br"`
	ServoH      *int     `json:"servo_h"`
	ServoV      *int     `json:"servo_v"`
	Voltage     *float64 `json:"voltage"`
	Temperature *float64 `json:"temperature"`
	Pressure    *float64 `json:"pressure"`
	Humidity    *float64 `json:"humidity"`
	Altitude    *float64 `json:"altitude"`
	LimitH      bool     `json:"limit_h"`
	LimitV      bool     `json:"limit_v"`
}

// ParseReading decodes and validates a JSON payload into a Reading.
// deviceID overrides the payload's device_id when non-empty (e.g. taken from an MQTT topic).
// now is used when the payload carries no parseable timestamp.
func ParseReading(data []byte, deviceID string, now time.Time) (*Reading, error) {
	var payload ReadingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reading: %w", err)
	}
	if deviceID != "" {
		payload.DeviceID = deviceID
	}
	return payload.ToReading(now)
}

// ToReading validates the payload and converts it into a Reading
func (p *ReadingPayload) ToReading(now time.Time) (*Reading, error) {
	if p.DeviceID == "" {
		return nil, fmt.Errorf("%w: device_id", ErrMissingField)
	}

	required := []struct {
		name  string
		value *int
	}{
		{"ldr_tl", p.LDRTL},
		{"ldr_tr", p.LDRTR},
		{"ldr_bl", p.LDRBL},
		{"ldr_br", p.LDRBR},
		{"servo_h", p.ServoH},
		{"servo_v", p.ServoV},
	}
	for _, field := range required {
		if field.value == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, field.name)
		}
	}
	for _, field := range required[:4] {
		if *field.value < 0 {
			return nil, fmt.Errorf("%w: %s must be non-negative, got %d", ErrInvalidValue, field.name, *field.value)
		}
	}

	timestamp := now
	if p.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
			timestamp = t
		}
	}

	return &Reading{
		DeviceID:       p.DeviceID,
		Timestamp:      timestamp,
		LDRTopLeft:     *p.LDRTL,
		LDRTopRight:    *p.LDRTR,
		LDRBottomLeft:  *p.LDRBL,
		LDRBottomRight: *p.LDRBR,
		ServoH:         *p.ServoH,
		ServoV:         *p.ServoV,
		Voltage:        finite(p.Voltage),
		Temperature:    finite(p.Temperature),
		Pressure:       finite(p.Pressure),
		Humidity:       humidity(p.Humidity),
		Altitude:       finite(p.Altitude),
		AtLimitH:       p.LimitH,
		AtLimitV:       p.LimitV,
	}, nil
}

// finite drops NaN/Inf values so they are treated as absent
func finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	value := *v
	return &value
}

// humidity keeps only values inside 0-100%
func humidity(v *float64) *float64 {
	h := finite(v)
	if h == nil || *h < 0 || *h > 100 {
		return nil
	}
	return h
}

// FeatureVector holds the scalar features derived from one Reading
type FeatureVector struct {
	AvgLight      float64 `json:"avg_light"`
	MaxLight      float64 `json:"max_light"`
	MinLight      float64 `json:"min_light"`
	LightVariance float64 `json:"light_variance"`
	ServoH        float64 `json:"servo_h"`
	ServoV        float64 `json:"servo_v"`
	Hour          float64 `json:"hour"`
	Minute        float64 `json:"minute"`
}

// NumFeatures is the length of FeatureVector.Values
const NumFeatures = 8

// Values returns the features in a fixed order, used as the regression input
func (f FeatureVector) Values() [NumFeatures]float64 {
	return [NumFeatures]float64{
		f.AvgLight,
		f.MaxLight,
		f.MinLight,
		f.LightVariance,
		f.ServoH,
		f.ServoV,
		f.Hour,
		f.Minute,
	}
}
