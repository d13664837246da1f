// Package mqtt publishes pad hit events to an external broker, so other
// systems (scorekeepers, light rigs, practice loggers) can react to hits
// without polling the daemon. Publishing is fire-and-forget; broker trouble
// never touches the ingestion path.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const connectTimeout = 5 * time.Second

// Hit is the published payload for one trigger rising edge.
type Hit struct {
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel"`
	Raw       int       `json:"raw"`
}

// Publisher delivers hit events to a broker.
type Publisher interface {
	PublishHit(Hit) error
	Close()
}

// Client is the paho-backed Publisher.
type Client struct {
	c     paho.Client
	topic string
	log   *log.Logger
}

// Connect dials the broker and returns a connected publisher. Reconnects
// after broker restarts are handled by the paho client.
func Connect(broker, clientID, topic string, logger *log.Logger) (*Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Printf("mqtt: connection lost: %v", err)
		})

	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", broker, err)
	}

	logger.Printf("mqtt: connected to %s, publishing to %s", broker, topic)
	return &Client{c: c, topic: topic, log: logger}, nil
}

// PublishHit sends one hit at QoS 0 without waiting for delivery.
func (c *Client) PublishHit(h Hit) error {
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	c.c.Publish(c.topic, 0, false, b)
	return nil
}

// Close disconnects from the broker, allowing a short drain.
func (c *Client) Close() {
	c.c.Disconnect(250)
}
