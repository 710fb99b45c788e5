package mqtt

import (
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"solar-tracker/internal/models"
)

// Subscriber receives tracker readings and writes them to a channel
type Subscriber struct {
	client mqtt.Client

	// Output channel (written by subscriber, read by the tracker service)
	ReadingsChan chan *models.Reading

	readingsTopic string
	sendTimeout   time.Duration
	now           func() time.Time
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	ReadingsTopic string        // e.g., "tracker/+/readings"
	SendTimeout   time.Duration // how long to wait on a full channel before dropping
}

// NewSubscriber creates a new MQTT subscriber writing to readingsChan
func NewSubscriber(client mqtt.Client, config SubscriberConfig, readingsChan chan *models.Reading) *Subscriber {
	if config.SendTimeout == 0 {
		config.SendTimeout = time.Second
	}
	return &Subscriber{
		client:        client,
		ReadingsChan:  readingsChan,
		readingsTopic: config.ReadingsTopic,
		sendTimeout:   config.SendTimeout,
		now:           time.Now,
	}
}

// Subscribe subscribes to the readings topic
func (s *Subscriber) Subscribe() error {
	if s.readingsTopic == "" {
		return fmt.Errorf("readings topic is empty")
	}

	token := s.client.Subscribe(s.readingsTopic, 1, s.handleReading)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to readings topic: %w", token.Error())
	}

	log.Printf("MQTT Subscriber: Subscribed to readings topic: %s", s.readingsTopic)
	return nil
}

// handleReading decodes one tracker reading; the device ID comes from the topic
func (s *Subscriber) handleReading(client mqtt.Client, msg mqtt.Message) {
	deviceID := extractDeviceID(msg.Topic())
	if deviceID == "" {
		log.Printf("MQTT Subscriber: Could not extract device ID from topic: %s", msg.Topic())
		return
	}

	reading, err := models.ParseReading(msg.Payload(), deviceID, s.now())
	if err != nil {
		log.Printf("MQTT Subscriber: Dropping reading from %s: %v", deviceID, err)
		return
	}

	select {
	case s.ReadingsChan <- reading:
	case <-time.After(s.sendTimeout):
		log.Printf("MQTT Subscriber: Warning: readings channel full, dropping message from %s", deviceID)
	}
}

// extractDeviceID returns the second topic level
// Example: "tracker/tracker-01/readings" -> "tracker-01"
func extractDeviceID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 3 {
		return parts[1]
	}
	return ""
}
