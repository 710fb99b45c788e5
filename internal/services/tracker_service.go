package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"solar-tracker/internal/aggregator"
	"solar-tracker/internal/control"
	"solar-tracker/internal/ml"
	"solar-tracker/internal/models"
)

// ErrInvalidReading is returned by Process for a nil reading or one without a device
var ErrInvalidReading = errors.New("invalid reading")

// Store persists processed samples and the device registry
type Store interface {
	SaveSample(ctx context.Context, sample *models.Sample) error
	UpsertDevice(ctx context.Context, device *models.Device) error
}

// TrackerServiceConfig holds configuration for the tracker service
type TrackerServiceConfig struct {
	PollFast           time.Duration // suggested while the tracker is still slewing
	PollNormal         time.Duration
	FastMoveThreshold  int           // degrees of commanded change that select PollFast
	RegistryRefresh    time.Duration // minimum time between registry upserts of one device
	StoreTimeout       time.Duration
	ReadingChannelSize int
	CommandChannelSize int
}

// DefaultTrackerServiceConfig returns default configuration
func DefaultTrackerServiceConfig() TrackerServiceConfig {
	return TrackerServiceConfig{
		PollFast:           500 * time.Millisecond,
		PollNormal:         2 * time.Second,
		FastMoveThreshold:  2,
		RegistryRefresh:    time.Minute,
		StoreTimeout:       5 * time.Second,
		ReadingChannelSize: 100,
		CommandChannelSize: 50,
	}
}

// TrackerService turns readings into servo commands and analytics, then persists them.
// It serves both the HTTP handlers (Process) and the MQTT path (Start).
type TrackerService struct {
	controller *control.PositionController
	analyzer   *ml.Analyzer
	store      Store
	config     TrackerServiceConfig

	// Input channel from the MQTT subscriber
	ReadingsChan chan *models.Reading
	// Output channel to the MQTT publisher; commands for HTTP requests are returned instead
	CommandChan chan *models.TrackerResponse

	mu           sync.Mutex
	registeredAt map[string]time.Time
	lastUpsert   map[string]time.Time

	now   func() time.Time
	newID func() string
}

// NewTrackerService creates a tracker service. store may be nil to run without persistence.
func NewTrackerService(
	controller *control.PositionController,
	analyzer *ml.Analyzer,
	store Store,
	config TrackerServiceConfig,
) *TrackerService {
	return &TrackerService{
		controller:   controller,
		analyzer:     analyzer,
		store:        store,
		config:       config,
		ReadingsChan: make(chan *models.Reading, config.ReadingChannelSize),
		CommandChan:  make(chan *models.TrackerResponse, config.CommandChannelSize),
		registeredAt: make(map[string]time.Time),
		lastUpsert:   make(map[string]time.Time),
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
}

// Start processes readings from ReadingsChan and queues each command on CommandChan.
// Runs until context is cancelled
func (s *TrackerService) Start(ctx context.Context) {
	log.Println("TrackerService: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("TrackerService: Shutting down...")
			return

		case reading, ok := <-s.ReadingsChan:
			if !ok {
				log.Println("TrackerService: Readings channel closed, shutting down...")
				return
			}

			resp, err := s.Process(ctx, reading)
			if err != nil {
				log.Printf("TrackerService: Error processing reading: %v", err)
				continue
			}
			s.queueCommand(ctx, resp)
		}
	}
}

func (s *TrackerService) queueCommand(ctx context.Context, resp *models.TrackerResponse) {
	select {
	case s.CommandChan <- resp:
	case <-ctx.Done():
	case <-time.After(time.Second):
		log.Printf("TrackerService: Warning: command channel full, dropping command for %s", resp.DeviceID)
	}
}

// Process runs one reading through the controller and the analytics pipeline.
// Persistence is best effort: a store failure is logged and does not fail the call.
func (s *TrackerService) Process(ctx context.Context, reading *models.Reading) (*models.TrackerResponse, error) {
	if reading == nil || reading.DeviceID == "" {
		return nil, fmt.Errorf("%w: missing device id", ErrInvalidReading)
	}

	cmd := s.controller.Update(reading)
	features := aggregator.ExtractFeatures(reading)
	analysis := s.analyzer.Analyze(reading, features)

	resp := &models.TrackerResponse{
		DeviceID:       reading.DeviceID,
		Timestamp:      reading.Timestamp,
		ServoH:         cmd.ServoH,
		ServoV:         cmd.ServoV,
		Debug:          cmd.Debug,
		Analysis:       analysis,
		PollIntervalMs: int(s.PollInterval(reading, cmd) / time.Millisecond),
	}

	if s.store != nil {
		if err := s.persist(ctx, reading, features, resp); err != nil {
			log.Printf("TrackerService: Error persisting sample for %s: %v", reading.DeviceID, err)
		}
	}

	return resp, nil
}

// PollInterval suggests PollFast while either axis is commanded to move by at least
// FastMoveThreshold degrees
func (s *TrackerService) PollInterval(reading *models.Reading, cmd models.Command) time.Duration {
	if absInt(cmd.ServoH-reading.ServoH) >= s.config.FastMoveThreshold ||
		absInt(cmd.ServoV-reading.ServoV) >= s.config.FastMoveThreshold {
		return s.config.PollFast
	}
	return s.config.PollNormal
}

func (s *TrackerService) persist(ctx context.Context, reading *models.Reading, features models.FeatureVector, resp *models.TrackerResponse) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	sample := &models.Sample{
		ID:        s.newID(),
		Reading:   *reading,
		Features:  features,
		Response:  *resp,
		Processed: s.now(),
	}
	if err := s.store.SaveSample(ctx, sample); err != nil {
		return fmt.Errorf("failed to save sample: %w", err)
	}

	s.registerDevice(ctx, reading.DeviceID)
	return nil
}

// registerDevice upserts the registry row on first sight and then at most once per RegistryRefresh
func (s *TrackerService) registerDevice(ctx context.Context, deviceID string) {
	now := s.now()

	s.mu.Lock()
	registeredAt, known := s.registeredAt[deviceID]
	if !known {
		registeredAt = now
		s.registeredAt[deviceID] = now
	}
	if known && now.Sub(s.lastUpsert[deviceID]) < s.config.RegistryRefresh {
		s.mu.Unlock()
		return
	}
	s.lastUpsert[deviceID] = now
	s.mu.Unlock()

	config := map[string]interface{}{}
	if state, ok := s.controller.GetDeviceState(deviceID); ok {
		config["limits"] = state.Limits
	}

	device := &models.Device{
		DeviceID:     deviceID,
		Name:         deviceID,
		Location:     "Unknown",
		RegisteredAt: registeredAt,
		LastSeen:     now,
		IsActive:     true,
		Config:       config,
	}

	// Best effort - don't fail if registration fails
	if err := s.store.UpsertDevice(ctx, device); err != nil {
		log.Printf("TrackerService: Error registering device %s: %v", deviceID, err)
		return
	}
	if !known {
		log.Printf("TrackerService: Registered device %s", deviceID)
	}
}

// Stats returns the analytics counters
func (s *TrackerService) Stats() models.AnalyzerStats {
	return s.analyzer.Stats()
}

// DeviceState returns the controller state of a device
func (s *TrackerService) DeviceState(deviceID string) (control.DeviceState, bool) {
	return s.controller.GetDeviceState(deviceID)
}

// Devices returns the IDs of all devices seen by the controller
func (s *TrackerService) Devices() []string {
	return s.controller.GetAllDevices()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// SetLimits recalibrates the axis limits of a device
func (s *TrackerService) SetLimits(deviceID string, limits control.Limits) error {
	return s.controller.SetLimits(deviceID, limits)
}
