// Package mqtt publishes simulation events to an MQTT broker so external
// dashboards can follow sessions in real time.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/gridpulse/evsim/core/model"
	"github.com/gridpulse/evsim/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Topic    string `json:"topic"`
	QoS      byte   `json:"qos"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Topic == "" {
		c.Topic = "evsim/sessions"
	}
	if c.ClientID == "" {
		c.ClientID = "evsim-" + uuid.NewString()[:8]
	}
}

// SessionPublisher pushes completed charging sessions to a broker topic.
type SessionPublisher struct {
	cli   paho.Client
	topic string
	qos   byte
	log   logger.Logger
}

// NewSessionPublisher connects to the broker and returns a publisher.
func NewSessionPublisher(cfg Config) (*SessionPublisher, error) {
	cfg.SetDefaults()
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &SessionPublisher{
		cli:   cli,
		topic: cfg.Topic,
		qos:   cfg.QoS,
		log:   logger.New("mqtt_publisher"),
	}, nil
}

// Publish sends the session as JSON. Delivery is fire and forget beyond the
// configured QoS.
func (p *SessionPublisher) Publish(s model.ChargingSession) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	token := p.cli.Publish(p.topic, p.qos, false, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publish session %s: %w", s.ID, token.Error())
	}
	return nil
}

// RecordSession lets the publisher double as a session sink.
func (p *SessionPublisher) RecordSession(s model.ChargingSession) error {
	if err := p.Publish(s); err != nil {
		p.log.Warnf("session publish failed: %v", err)
		return err
	}
	return nil
}

// Close disconnects from the broker.
func (p *SessionPublisher) Close() {
	p.cli.Disconnect(250)
}
