package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"solar-tracker/internal/api"
	"solar-tracker/internal/control"
	"solar-tracker/internal/database"
	"solar-tracker/internal/ml"
	"solar-tracker/internal/mqtt"
	"solar-tracker/internal/services"
	"solar-tracker/pkg/config"
)

func main() {
	log.Println("Starting Solar Tracker Backend...")

	cfg := config.Load()

	// === Position controller ===
	defaults := control.Limits{
		Horizontal: control.AxisLimits{Min: cfg.AxisHMin, Max: cfg.AxisHMax},
		Vertical:   control.AxisLimits{Min: cfg.AxisVMin, Max: cfg.AxisVMax},
	}
	if err := defaults.Validate(); err != nil {
		log.Fatalf("Invalid default axis limits: %v", err)
	}

	calibration, err := config.LoadCalibration(cfg.CalibrationDir)
	if err != nil {
		log.Fatalf("Failed to load calibration: %v", err)
	}
	overrides, err := calibrationLimits(calibration)
	if err != nil {
		log.Fatalf("Invalid calibration: %v", err)
	}

	controller := control.NewPositionController(defaults, overrides)

	// === Analytics ===
	analyzerConfig := ml.DefaultAnalyzerConfig()
	analyzerConfig.Anomaly.Threshold = cfg.AnomalyThreshold
	analyzerConfig.Efficiency.ErrorThreshold = cfg.EfficiencyThreshold
	analyzer := ml.NewAnalyzer(analyzerConfig)

	// === Storage (optional) ===
	var store services.Store
	var history api.History
	if cfg.StorageEnabled {
		db, err := database.NewClickHouseDB(
			cfg.ClickHouseAddr,
			cfg.ClickHouseDB,
			cfg.ClickHouseUser,
			cfg.ClickHousePass,
		)
		if err != nil {
			log.Fatalf("Failed to initialize ClickHouse: %v", err)
		}
		defer db.Close()
		store = db
		history = db
	} else {
		log.Println("Storage disabled, samples will not be persisted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Tracker service ===
	serviceConfig := services.DefaultTrackerServiceConfig()
	serviceConfig.PollFast = time.Duration(cfg.PollFastMs) * time.Millisecond
	serviceConfig.PollNormal = time.Duration(cfg.PollNormalMs) * time.Millisecond
	trackerService := services.NewTrackerService(controller, analyzer, store, serviceConfig)

	// === MQTT (optional) ===
	if cfg.MQTTEnabled {
		// set once subscribed; the broker may call OnReconnect before that
		var subscriber atomic.Pointer[mqtt.Subscriber]

		log.Println("Connecting to MQTT broker...")
		mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			OnReconnect: func() {
				sub := subscriber.Load()
				if sub == nil {
					return
				}
				if err := sub.Subscribe(); err != nil {
					log.Printf("Failed to restore MQTT subscription: %v", err)
				}
			},
		})
		if err != nil {
			log.Fatalf("Failed to initialize MQTT client: %v", err)
		}
		defer mqttClient.Close()

		sub := mqtt.NewSubscriber(
			mqttClient.GetNativeClient(),
			mqtt.SubscriberConfig{ReadingsTopic: cfg.MQTTTopicReadings},
			trackerService.ReadingsChan,
		)
		if err := sub.Subscribe(); err != nil {
			log.Fatalf("Failed to subscribe to MQTT topics: %v", err)
		}
		subscriber.Store(sub)

		publisher := mqtt.NewPublisher(
			mqttClient.GetNativeClient(),
			mqtt.PublisherConfig{CommandTopic: cfg.MQTTTopicCommands},
			trackerService.CommandChan,
		)
		go publisher.Start(ctx)
		go trackerService.Start(ctx)

		log.Printf("MQTT Topics:")
		log.Printf("  - Readings: %s", cfg.MQTTTopicReadings)
		log.Printf("  - Commands: %s", cfg.MQTTTopicCommands)
	}

	// === HTTP ===
	handler := api.NewAPIHandler(trackerService, history)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.SetupRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("=== Solar Tracker Backend is running ===")
	log.Printf("Default limits: H=[%d,%d], V=[%d,%d], calibrated devices: %d",
		cfg.AxisHMin, cfg.AxisHMax, cfg.AxisVMin, cfg.AxisVMax, len(overrides))
	log.Printf("Poll intervals: fast=%dms, normal=%dms", cfg.PollFastMs, cfg.PollNormalMs)
	log.Println("Press Ctrl+C to exit...")

	// === Wait for interrupt signal ===
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	cancel()

	log.Println("Shutdown complete. Goodbye!")
}

// calibrationLimits converts calibration profiles into per-device controller limits
func calibrationLimits(cal *config.Calibration) (map[string]control.Limits, error) {
	overrides := make(map[string]control.Limits, len(cal.Devices))
	for _, p := range cal.Devices {
		limits := control.Limits{
			Horizontal: control.AxisLimits{Min: p.HorizontalMin, Max: p.HorizontalMax},
			Vertical:   control.AxisLimits{Min: p.VerticalMin, Max: p.VerticalMax},
		}
		if err := limits.Validate(); err != nil {
			return nil, fmt.Errorf("device %s: %w", p.DeviceID, err)
		}
		overrides[p.DeviceID] = limits
	}
	return overrides, nil
}
