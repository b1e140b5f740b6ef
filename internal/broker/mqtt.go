package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"clima-relay/internal/config"
	"clima-relay/internal/modules/clima/types"
)

const mqttQoS = byte(1)

// MQTTClient publishes and subscribes to observations on a single topic.
type MQTTClient struct {
	client    mqtt.Client
	cfg       config.BrokerConfig
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMQTTClient(cfg config.BrokerConfig, logger *slog.Logger) *MQTTClient {
	c := &MQTTClient{
		cfg:    cfg,
		logger: logger.With("broker", "mqtt"),
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		c.logger.Info("mqtt connected", "host", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		c.logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect waits for the initial connection. It gives up when ctx is done or
// the client is closed.
func (c *MQTTClient) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

func (c *MQTTClient) Publish(_ context.Context, obs types.Observation) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}

	topic := c.cfg.MQTTTopic
	token := c.client.Publish(topic, mqttQoS, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish observation: %w", err)
	}

	c.logger.Debug("published observation", "topic", topic, "name", obs.Name)
	return nil
}

// Consume subscribes to the topic and blocks until ctx is done.
func (c *MQTTClient) Consume(ctx context.Context, h Handler) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := c.cfg.MQTTTopic
	token := c.client.Subscribe(topic, mqttQoS, func(_ mqtt.Client, msg mqtt.Message) {
		dispatch(ctx, c.logger, msg.Topic(), msg.Payload(), h)
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	c.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", mqttQoS)

	select {
	case <-ctx.Done():
	case <-c.stopCh:
	}

	if c.IsConnected() {
		c.client.Unsubscribe(topic).WaitTimeout(2 * time.Second)
	}
	return ctx.Err()
}

func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Close is idempotent. A closed client refuses to Connect again.
func (c *MQTTClient) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.client.Disconnect(250)
	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
	return nil
}

func (c *MQTTClient) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
