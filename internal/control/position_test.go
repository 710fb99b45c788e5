package control

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-tracker/internal/models"
)

func newReading(deviceID string, tl, tr, bl, br, servoH, servoV int) *models.Reading {
	return &models.Reading{
		DeviceID:       deviceID,
		Timestamp:      time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC),
		LDRTopLeft:     tl,
		LDRTopRight:    tr,
		LDRBottomLeft:  bl,
		LDRBottomRight: br,
		ServoH:         servoH,
		ServoV:         servoV,
	}
}

func TestUpdateBalancedLightDoesNotMove(t *testing.T) {
	pc := NewPositionController(DefaultLimits(), nil)

	cmd := pc.Update(newReading("tracker-01", 500, 500, 500, 500, 90, 90))

	assert.Equal(t, 90, cmd.ServoH)
	assert.Equal(t, 90, cmd.ServoV)
	assert.Zero(t, cmd.Debug.DiffH)
	assert.Zero(t, cmd.Debug.DiffV)
	assert.False(t, cmd.Debug.MovedH)
	assert.False(t, cmd.Debug.MovedV)
}

func TestUpdateBrighterTopTiltsDown(t *testing.T) {
	pc := NewPositionController(DefaultLimits(), nil)

	cmd := pc.Update(newReading("tracker-01", 800, 800, 200, 200, 90, 150))

	assert.Equal(t, 600, cmd.Debug.DiffV)
	assert.Zero(t, cmd.Debug.DiffH)
	assert.Equal(t, 144, cmd.ServoV)
	assert.Equal(t, 90, cmd.ServoH)
	assert.True(t, cmd.Debug.MovedV)
	assert.False(t, cmd.Debug.MovedH)
	assert.LessOrEqual(t, 150-cmd.ServoV, int(stepCap(600)))
}

func TestUpdateBrighterLeftTurnsRight(t *testing.T) {
	pc := NewPositionController(DefaultLimits(), nil)

	cmd := pc.Update(newReading("tracker-01", 1000, 100, 1000, 100, 90, 90))

	assert.Equal(t, 900, cmd.Debug.DiffH)
	assert.Equal(t, 98, cmd.ServoH)
	assert.InDelta(t, 8.0, cmd.Debug.CorrectionH, 1e-9)
}

func TestUpdatePairAveragesUseIntegerDivision(t *testing.T) {
	pc := NewPositionController(DefaultLimits(), nil)

	// top=(3+0)/2=1, bottom=0 -> diffV=1 is inside the dead-band
	cmd := pc.Update(newReading("tracker-01", 3, 0, 0, 0, 90, 90))
	assert.Equal(t, 1, cmd.Debug.DiffV)
	assert.Equal(t, 1, cmd.Debug.DiffH)
	assert.False(t, cmd.Debug.MovedV)
}

func TestUpdateVetoAtLimit(t *testing.T) {
	pc := NewPositionController(DefaultLimits(), nil)

	r := newReading("tracker-01", 2000, 100, 2000, 100, 180, 90)
	r.AtLimitH = true
	cmd := pc.Update(r)

	assert.Equal(t, 180, cmd.ServoH)
	assert.False(t, cmd.Debug.MovedH)

	state, ok := pc.GetDeviceState("tracker-01")
	require.True(t, ok)
	assert.Equal(t, AxisState{}, state.Horizontal)
}

func TestUpdateKeepsPerDeviceState(t *testing.T) {
	pc := NewPositionController(DefaultLimits(), nil)

	pc.Update(newReading("a", 1000, 100, 1000, 100, 90, 90))
	pc.Update(newReading("b", 500, 500, 500, 500, 90, 90))

	a, ok := pc.GetDeviceState("a")
	require.True(t, ok)
	b, ok := pc.GetDeviceState("b")
	require.True(t, ok)

	assert.Equal(t, 900.0, a.Horizontal.PrevError)
	assert.Equal(t, 900.0, a.Horizontal.Integral)
	assert.Equal(t, AxisState{}, b.Horizontal)
	assert.Equal(t, 1, a.UpdateCount)
	assert.Equal(t, []string{"a", "b"}, pc.GetAllDevices())

	_, ok = pc.GetDeviceState("missing")
	assert.False(t, ok)
}

func TestNewDeviceStartsAtMidpoint(t *testing.T) {
	overrides := map[string]Limits{
		"narrow": {
			Horizontal: AxisLimits{Min: 40, Max: 140},
			Vertical:   AxisLimits{Min: 20, Max: 100},
		},
	}
	pc := NewPositionController(DefaultLimits(), overrides)

	require.NoError(t, pc.SetLimits("other", DefaultLimits()))
	state, ok := pc.GetDeviceState("other")
	require.True(t, ok)
	assert.Equal(t, 90, state.LastServoH)
	assert.Equal(t, 90, state.LastServoV)

	cmd := pc.Update(newReading("narrow", 500, 500, 500, 500, 150, 10))
	assert.Equal(t, 140, cmd.ServoH)
	assert.Equal(t, 20, cmd.ServoV)

	state, ok = pc.GetDeviceState("narrow")
	require.True(t, ok)
	assert.Equal(t, overrides["narrow"], state.Limits)
}

func TestSetLimits(t *testing.T) {
	pc := NewPositionController(DefaultLimits(), nil)
	pc.Update(newReading("tracker-01", 500, 500, 500, 500, 170, 170))

	err := pc.SetLimits("tracker-01", Limits{
		Horizontal: AxisLimits{Min: 10, Max: 160},
		Vertical:   AxisLimits{Min: 10, Max: 150},
	})
	require.NoError(t, err)

	state, _ := pc.GetDeviceState("tracker-01")
	assert.Equal(t, 160, state.LastServoH)
	assert.Equal(t, 150, state.LastServoV)

	cmd := pc.Update(newReading("tracker-01", 500, 500, 500, 500, 170, 170))
	assert.Equal(t, 160, cmd.ServoH)
	assert.Equal(t, 150, cmd.ServoV)

	err = pc.SetLimits("tracker-01", Limits{
		Horizontal: AxisLimits{Min: 100, Max: 50},
		Vertical:   AxisLimits{Min: 0, Max: 180},
	})
	assert.Error(t, err)
}

func TestUpdateConcurrentDevices(t *testing.T) {
	pc := NewPositionController(DefaultLimits(), nil)

	const devices = 8
	const updates = 200

	var wg sync.WaitGroup
	for d := 0; d < devices; d++ {
		deviceID := fmt.Sprintf("tracker-%02d", d)
		for w := 0; w < 2; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < updates/2; i++ {
					cmd := pc.Update(newReading(deviceID, 900, 100, 900, 100, 90, 90))
					assert.GreaterOrEqual(t, cmd.ServoH, 0)
					assert.LessOrEqual(t, cmd.ServoH, 180)
				}
			}()
		}
	}
	wg.Wait()

	assert.Len(t, pc.GetAllDevices(), devices)
	for _, deviceID := range pc.GetAllDevices() {
		state, ok := pc.GetDeviceState(deviceID)
		require.True(t, ok)
		assert.Equal(t, updates, state.UpdateCount)
		assert.LessOrEqual(t, state.Horizontal.Integral, IntegralLimit)
	}
}

func TestLimitsValidate(t *testing.T) {
	assert.NoError(t, DefaultLimits().Validate())
	assert.Error(t, Limits{Horizontal: AxisLimits{Min: 0, Max: 180}, Vertical: AxisLimits{Min: 5, Max: 5}}.Validate())
}
