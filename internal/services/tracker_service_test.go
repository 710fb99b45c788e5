package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-tracker/internal/control"
	"solar-tracker/internal/ml"
	"solar-tracker/internal/models"
)

type memoryStore struct {
	mu      sync.Mutex
	samples []*models.Sample
	devices []*models.Device
	err     error
}

func (m *memoryStore) SaveSample(_ context.Context, sample *models.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.samples = append(m.samples, sample)
	return nil
}

func (m *memoryStore) UpsertDevice(_ context.Context, device *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.devices = append(m.devices, device)
	return nil
}

func newTestService(t *testing.T, store Store) *TrackerService {
	t.Helper()
	controller := control.NewPositionController(control.DefaultLimits(), nil)
	analyzer := ml.NewAnalyzer(ml.DefaultAnalyzerConfig())
	return NewTrackerService(controller, analyzer, store, DefaultTrackerServiceConfig())
}

func testReading(deviceID string, tl, tr, bl, br, servoH, servoV int) *models.Reading {
	v := 2.4
	return &models.Reading{
		DeviceID:       deviceID,
		Timestamp:      time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC),
		LDRTopLeft:     tl,
		LDRTopRight:    tr,
		LDRBottomLeft:  bl,
		LDRBottomRight: br,
		ServoH:         servoH,
		ServoV:         servoV,
		Voltage:        &v,
	}
}

func TestProcessBalancedReading(t *testing.T) {
	store := &memoryStore{}
	s := newTestService(t, store)

	resp, err := s.Process(context.Background(), testReading("tracker-01", 500, 500, 500, 500, 90, 90))
	require.NoError(t, err)

	assert.Equal(t, "tracker-01", resp.DeviceID)
	assert.Equal(t, 90, resp.ServoH)
	assert.Equal(t, 90, resp.ServoV)
	assert.False(t, resp.Debug.MovedH)
	assert.False(t, resp.Debug.MovedV)
	assert.Equal(t, 2000, resp.PollIntervalMs)
	assert.Equal(t, models.EfficiencyTraining, resp.Analysis.Efficiency.Status)

	require.Len(t, store.samples, 1)
	sample := store.samples[0]
	assert.NotEmpty(t, sample.ID)
	assert.Equal(t, 500.0, sample.Features.AvgLight)
	assert.Equal(t, *resp, sample.Response)

	require.Len(t, store.devices, 1)
	assert.Equal(t, "tracker-01", store.devices[0].DeviceID)
	assert.Contains(t, store.devices[0].Config, "limits")
}

func TestProcessFastPollWhileMoving(t *testing.T) {
	s := newTestService(t, nil)

	resp, err := s.Process(context.Background(), testReading("tracker-01", 800, 800, 200, 200, 90, 150))
	require.NoError(t, err)

	assert.Equal(t, 144, resp.ServoV)
	assert.Equal(t, 500, resp.PollIntervalMs)
}

func TestPollInterval(t *testing.T) {
	s := newTestService(t, nil)
	r := testReading("x", 0, 0, 0, 0, 90, 90)

	assert.Equal(t, 2*time.Second, s.PollInterval(r, models.Command{ServoH: 91, ServoV: 90}))
	assert.Equal(t, 500*time.Millisecond, s.PollInterval(r, models.Command{ServoH: 92, ServoV: 90}))
	assert.Equal(t, 500*time.Millisecond, s.PollInterval(r, models.Command{ServoH: 90, ServoV: 88}))
}

func TestProcessRejectsInvalidReading(t *testing.T) {
	s := newTestService(t, nil)

	_, err := s.Process(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidReading)

	_, err = s.Process(context.Background(), testReading("", 1, 1, 1, 1, 90, 90))
	assert.ErrorIs(t, err, ErrInvalidReading)
}

func TestProcessStoreFailureStillAnswers(t *testing.T) {
	store := &memoryStore{err: errors.New("clickhouse down")}
	s := newTestService(t, store)

	resp, err := s.Process(context.Background(), testReading("tracker-01", 500, 500, 500, 500, 90, 90))
	require.NoError(t, err)
	assert.Equal(t, 90, resp.ServoH)
	assert.Empty(t, store.samples)
}

func TestRegisterDeviceThrottled(t *testing.T) {
	store := &memoryStore{}
	s := newTestService(t, store)

	now := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		_, err := s.Process(context.Background(), testReading("tracker-01", 500, 500, 500, 500, 90, 90))
		require.NoError(t, err)
	}
	assert.Len(t, store.devices, 1)
	assert.Len(t, store.samples, 5)

	now = now.Add(2 * time.Minute)
	_, err := s.Process(context.Background(), testReading("tracker-01", 500, 500, 500, 500, 90, 90))
	require.NoError(t, err)
	require.Len(t, store.devices, 2)
	assert.Equal(t, store.devices[0].RegisteredAt, store.devices[1].RegisteredAt)
	assert.True(t, store.devices[1].LastSeen.After(store.devices[0].LastSeen))
}

func TestStartPublishesCommands(t *testing.T) {
	s := newTestService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	s.ReadingsChan <- testReading("tracker-01", 1000, 100, 1000, 100, 90, 90)

	select {
	case cmd := <-s.CommandChan:
		assert.Equal(t, "tracker-01", cmd.DeviceID)
		assert.Equal(t, 98, cmd.ServoH)
	case <-time.After(2 * time.Second):
		t.Fatal("no command published")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestServiceAccessors(t *testing.T) {
	s := newTestService(t, nil)
	_, err := s.Process(context.Background(), testReading("b", 500, 500, 500, 500, 90, 90))
	require.NoError(t, err)
	_, err = s.Process(context.Background(), testReading("a", 500, 500, 500, 500, 90, 90))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, s.Devices())
	state, ok := s.DeviceState("a")
	require.True(t, ok)
	assert.Equal(t, 1, state.UpdateCount)
	assert.Equal(t, 2, s.Stats().PredictionsCount)

	require.NoError(t, s.SetLimits("a", control.Limits{
		Horizontal: control.AxisLimits{Min: 10, Max: 20},
		Vertical:   control.AxisLimits{Min: 10, Max: 20},
	}))
	state, _ = s.DeviceState("a")
	assert.Equal(t, 20, state.LastServoH)
}
