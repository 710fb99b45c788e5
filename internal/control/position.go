package control

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"solar-tracker/internal/models"
)

// Limits holds the travel range of both axes
type Limits struct {
	Horizontal AxisLimits `json:"horizontal" mapstructure:"horizontal"`
	Vertical   AxisLimits `json:"vertical" mapstructure:"vertical"`
}

// Validate checks both axes have Min < Max
func (l Limits) Validate() error {
	if !l.Horizontal.Valid() {
		return fmt.Errorf("invalid horizontal limits [%d, %d]", l.Horizontal.Min, l.Horizontal.Max)
	}
	if !l.Vertical.Valid() {
		return fmt.Errorf("invalid vertical limits [%d, %d]", l.Vertical.Min, l.Vertical.Max)
	}
	return nil
}

// DefaultLimits is the full 0-180 degree range of a hobby servo
func DefaultLimits() Limits {
	return Limits{
		Horizontal: AxisLimits{Min: 0, Max: 180},
		Vertical:   AxisLimits{Min: 0, Max: 180},
	}
}

// DeviceState is a snapshot of the controller state for one device
type DeviceState struct {
	DeviceID    string    `json:"device_id"`
	Horizontal  AxisState `json:"horizontal"`
	Vertical    AxisState `json:"vertical"`
	LastServoH  int       `json:"last_servo_h"`
	LastServoV  int       `json:"last_servo_v"`
	Limits      Limits    `json:"limits"`
	UpdateCount int       `json:"update_count"`
}

// deviceEntry owns the mutable state of one device; mu serializes requests for it
type deviceEntry struct {
	mu    sync.Mutex
	state DeviceState
}

// PositionController computes servo commands and keeps one state per device
type PositionController struct {
	mu        sync.RWMutex
	devices   map[string]*deviceEntry
	defaults  Limits
	overrides map[string]Limits
}

// NewPositionController creates a controller. overrides holds per-device calibrated limits.
func NewPositionController(defaults Limits, overrides map[string]Limits) *PositionController {
	pc := &PositionController{
		devices:   make(map[string]*deviceEntry),
		defaults:  defaults,
		overrides: make(map[string]Limits, len(overrides)),
	}
	for deviceID, limits := range overrides {
		pc.overrides[deviceID] = limits
	}
	return pc
}

// getOrCreateDevice returns the entry for a device, creating it on first sight
func (pc *PositionController) getOrCreateDevice(deviceID string) *deviceEntry {
	pc.mu.RLock()
	entry, exists := pc.devices[deviceID]
	pc.mu.RUnlock()
	if exists {
		return entry
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	if entry, exists := pc.devices[deviceID]; exists {
		return entry
	}

	limits, ok := pc.overrides[deviceID]
	if !ok {
		limits = pc.defaults
	}
	entry = &deviceEntry{
		state: DeviceState{
			DeviceID:   deviceID,
			LastServoH: limits.Horizontal.Mid(),
			LastServoV: limits.Vertical.Mid(),
			Limits:     limits,
		},
	}
	pc.devices[deviceID] = entry
	log.Printf("PositionController: New device %s (H=[%d,%d], V=[%d,%d])", deviceID,
		limits.Horizontal.Min, limits.Horizontal.Max, limits.Vertical.Min, limits.Vertical.Max)
	return entry
}

// Update computes the next servo command for a reading and stores the new state
func (pc *PositionController) Update(reading *models.Reading) models.Command {
	entry := pc.getOrCreateDevice(reading.DeviceID)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	state := &entry.state
	top := (reading.LDRTopLeft + reading.LDRTopRight) / 2
	bottom := (reading.LDRBottomLeft + reading.LDRBottomRight) / 2
	left := (reading.LDRTopLeft + reading.LDRBottomLeft) / 2
	right := (reading.LDRTopRight + reading.LDRBottomRight) / 2

	diffV := top - bottom // positive => more light at the top
	diffH := left - right // positive => more light on the left

	h := StepAxis(AxisInput{
		Error:       diffH,
		Current:     reading.ServoH,
		State:       state.Horizontal,
		Limits:      state.Limits.Horizontal,
		AtLimit:     reading.AtLimitH,
		LimitSide:   limitSide(reading.ServoH, state.Limits.Horizontal),
		Orientation: Horizontal,
	})
	v := StepAxis(AxisInput{
		Error:       diffV,
		Current:     reading.ServoV,
		State:       state.Vertical,
		Limits:      state.Limits.Vertical,
		AtLimit:     reading.AtLimitV,
		LimitSide:   limitSide(reading.ServoV, state.Limits.Vertical),
		Orientation: Vertical,
	})

	state.Horizontal = h.State
	state.Vertical = v.State
	state.LastServoH = h.Angle
	state.LastServoV = v.Angle
	state.UpdateCount++

	return models.Command{
		ServoH: h.Angle,
		ServoV: v.Angle,
		Debug: models.ControlDebug{
			DiffH:       diffH,
			DiffV:       diffV,
			CorrectionH: h.Correction,
			CorrectionV: v.Correction,
			MovedH:      h.Moved,
			MovedV:      v.Moved,
		},
	}
}

// limitSide guesses which hard stop an axis rests on from its current angle
func limitSide(current int, limits AxisLimits) int {
	if current >= limits.Mid() {
		return 1
	}
	return -1
}

// SetLimits recalibrates the travel range of a device
func (pc *PositionController) SetLimits(deviceID string, limits Limits) error {
	if err := limits.Validate(); err != nil {
		return fmt.Errorf("failed to set limits for %s: %w", deviceID, err)
	}

	pc.mu.Lock()
	pc.overrides[deviceID] = limits
	pc.mu.Unlock()

	entry := pc.getOrCreateDevice(deviceID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.state.Limits = limits
	entry.state.LastServoH = limits.Horizontal.Clamp(entry.state.LastServoH)
	entry.state.LastServoV = limits.Vertical.Clamp(entry.state.LastServoV)

	log.Printf("PositionController: Limits for %s set to H=[%d,%d], V=[%d,%d]", deviceID,
		limits.Horizontal.Min, limits.Horizontal.Max, limits.Vertical.Min, limits.Vertical.Max)
	return nil
}

// GetDeviceState returns a copy of a device's state
func (pc *PositionController) GetDeviceState(deviceID string) (DeviceState, bool) {
	pc.mu.RLock()
	entry, exists := pc.devices[deviceID]
	pc.mu.RUnlock()
	if !exists {
		return DeviceState{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.state, true
}

// GetAllDevices returns all device IDs, sorted
func (pc *PositionController) GetAllDevices() []string {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	devices := make([]string, 0, len(pc.devices))
	for deviceID := range pc.devices {
		devices = append(devices, deviceID)
	}
	sort.Strings(devices)
	return devices
}
