package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mholen/hvacctl/internal/config"
	"github.com/mholen/hvacctl/internal/logger"
)

// MQTT publisher defaults.
const (
	defaultClientID     = "hvacctl"
	defaultTopic        = "hvac/snapshots"
	connectPoll         = 200 * time.Millisecond
	publishWaitTimeout  = 5 * time.Second
	disconnectQuiesceMs = 250
)

// errNotConnected is returned when publishing before a successful connect.
var errNotConnected = errors.New("mqtt client not connected")

// MQTTPublisher forwards snapshots to an MQTT broker as JSON messages.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTPublisher builds a publisher from the broker configuration.
func NewMQTTPublisher(cfg config.MQTT) *MQTTPublisher {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = defaultClientID
	}

	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Logger().Warnw("MQTT connection lost", "error", err)
	})

	return &MQTTPublisher{
		client: mqtt.NewClient(opts),
		topic:  topic,
	}
}

// Connect establishes the broker connection, waiting in a
// cancellation-aware loop.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	token := p.client.Connect()

	for {
		if token.WaitTimeout(connectPoll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}

			return nil
		}

		select {
		case <-ctx.Done():
			p.client.Disconnect(0)

			return ctx.Err()
		default:
		}
	}
}

// Publish sends one snapshot as a JSON message at QoS 1.
func (p *MQTTPublisher) Publish(_ context.Context, snap *Snapshot) error {
	if !p.client.IsConnected() {
		return errNotConnected
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(publishWaitTimeout) {
		return fmt.Errorf("publish timeout for topic %s", p.topic)
	}

	if err = token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}

	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(disconnectQuiesceMs)
}
