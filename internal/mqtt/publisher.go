package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"solar-tracker/internal/models"
)

// Publisher sends servo commands back to the trackers
type Publisher struct {
	client mqtt.Client

	// Input channel (written by the tracker service)
	CommandChan chan *models.TrackerResponse

	commandTopic string
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	CommandTopic string // e.g., "tracker/{device_id}/command"
}

// NewPublisher creates a new MQTT publisher reading from commandChan
func NewPublisher(client mqtt.Client, config PublisherConfig, commandChan chan *models.TrackerResponse) *Publisher {
	return &Publisher{
		client:       client,
		CommandChan:  commandChan,
		commandTopic: config.CommandTopic,
	}
}

// Start publishes commands until ctx is cancelled or the channel is closed
func (p *Publisher) Start(ctx context.Context) {
	log.Println("MQTT Publisher: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("MQTT Publisher: Context cancelled, shutting down...")
			return

		case cmd, ok := <-p.CommandChan:
			if !ok {
				log.Println("MQTT Publisher: Command channel closed, shutting down...")
				return
			}
			if err := p.publishCommand(cmd); err != nil {
				log.Printf("MQTT Publisher: %v", err)
			}
		}
	}
}

func (p *Publisher) publishCommand(cmd *models.TrackerResponse) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	topic := formatTopic(p.commandTopic, cmd.DeviceID)

	// Not retained: a stale position must never be replayed to a reconnecting tracker
	token := p.client.Publish(topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish command for %s: %w", cmd.DeviceID, token.Error())
	}

	log.Printf("MQTT Publisher: Sent command to %s (H=%d, V=%d)", topic, cmd.ServoH, cmd.ServoV)
	return nil
}

// formatTopic replaces {device_id} placeholder with actual device ID
func formatTopic(topicPattern, deviceID string) string {
	return strings.ReplaceAll(topicPattern, "{device_id}", deviceID)
}
