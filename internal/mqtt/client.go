package mqtt

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client owns the broker connection shared by the readings Subscriber and the
// command Publisher
type Client struct {
	client mqtt.Client
	config ClientConfig
}

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	OnReconnect    func() // called after every (re)connect, used to restore subscriptions
}

// NewClient connects to the broker
func NewClient(config ClientConfig) (*Client, error) {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetDefaultPublishHandler(unexpectedMessageHandler)
	opts.SetConnectionLostHandler(connectLostHandler)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Println("MQTT Client: Connection established")
		if config.OnReconnect != nil {
			config.OnReconnect()
		}
	})
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(false)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(config.ConnectTimeout)

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(config.ConnectTimeout) {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: timed out after %s", config.Broker, config.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	log.Println("MQTT Client: Connected to broker:", config.Broker)

	return &Client{
		client: client,
		config: config,
	}, nil
}

// GetNativeClient returns the underlying paho client for Subscriber and Publisher
func (c *Client) GetNativeClient() mqtt.Client {
	return c.client
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects, giving in-flight messages 250ms to complete
func (c *Client) Close() {
	c.client.Disconnect(250)
	log.Println("MQTT Client: Disconnected")
}

var unexpectedMessageHandler mqtt.MessageHandler = func(client mqtt.Client, msg mqtt.Message) {
	log.Printf("MQTT Client: Unrouted message on topic %s (%d bytes)", msg.Topic(), len(msg.Payload()))
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Printf("MQTT Client: Connection lost: %v", err)
}
