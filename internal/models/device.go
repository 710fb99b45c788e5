package models

import "time"

// Device represents a tracker known to the backend
type Device struct {
	DeviceID     string                 `json:"device_id"`
	Name         string                 `json:"name"`
	Location     string                 `json:"location"`
	RegisteredAt time.Time              `json:"registered_at"`
	LastSeen     time.Time              `json:"last_seen"`
	IsActive     bool                   `json:"is_active"`
	Config       map[string]interface{} `json:"config"`
}

// Sample is the persisted record of one processed reading: raw, derived and commanded values
type Sample struct {
	ID        string
	Reading   Reading
	Features  FeatureVector
	Response  TrackerResponse
	Processed time.Time
}
