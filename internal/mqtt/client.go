// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mqtt publishes radar snapshots to an MQTT broker and receives
// configuration deltas and publish requests.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

// DefaultPublishTimeout bounds the wait for a broker acknowledgement
const DefaultPublishTimeout = 5 * time.Second

// ErrTimeout is returned when the broker does not acknowledge in time
var ErrTimeout = errors.New("mqtt operation timed out")

// Topics are the publication and subscription topics of one device
type Topics struct {
	Live            string
	Settings        string
	Info            string
	SettingsUpdate  string
	InfoRequest     string
	SettingsRequest string
}

// TopicsFor returns the topics for deviceID. Publications go to fixed
// device-type topics; intake topics are per device.
func TopicsFor(deviceID string) Topics {
	return Topics{
		Live:            r60afd1.DeviceType + "/live",
		Settings:        r60afd1.DeviceType + "/settings_state",
		Info:            r60afd1.DeviceType + "/info",
		SettingsUpdate:  deviceID + "/settings_update",
		InfoRequest:     deviceID + "/info",
		SettingsRequest: deviceID + "/settings_state",
	}
}

// Handler receives intake messages. Calls arrive on the client's network
// goroutine and must not block.
type Handler interface {
	HandleSettingsUpdate(payload []byte)
	HandleInfoRequest()
	HandleSettingsRequest()
}

// Options configures a Client
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	DeviceID string
	Logger   *zap.Logger
}

// pahoClient is the part of paho.Client the bridge uses
type pahoClient interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Client is the bridge's MQTT session
type Client struct {
	client  pahoClient
	topics  Topics
	qos     byte
	handler Handler
	logger  *zap.Logger
	timeout time.Duration
}

// New creates a client for opts. The session reconnects automatically and
// resubscribes after every connection.
func New(opts Options, handler Handler) *Client {
	c := newClient(nil, opts, handler)

	clientID := opts.ClientID
	if clientID == "" {
		clientID = "radarstat-" + opts.DeviceID
	}
	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetOnConnectHandler(func(paho.Client) { c.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.logger.Warn("mqtt connection lost", zap.Error(err))
		})
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}
	c.client = paho.NewClient(po)
	return c
}

func newClient(pc pahoClient, opts Options, handler Handler) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:  pc,
		topics:  TopicsFor(opts.DeviceID),
		qos:     opts.QoS,
		handler: handler,
		logger:  logger,
		timeout: DefaultPublishTimeout,
	}
}

// Topics returns the client's topics
func (c *Client) Topics() Topics {
	return c.topics
}

// Connect starts the session. With connect retry enabled the first attempt
// keeps retrying in the background, so Connect returns once ctx is done or the
// broker accepted the connection.
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to connect to mqtt broker: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsConnected reports whether the broker session is up
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

func (c *Client) onConnect() {
	c.logger.Info("mqtt connected", zap.String("intake", c.topics.SettingsUpdate))
	subs := []struct {
		topic   string
		handler func(paho.Message)
	}{
		{c.topics.SettingsUpdate, func(m paho.Message) {
			if c.handler != nil {
				c.handler.HandleSettingsUpdate(m.Payload())
			}
		}},
		{c.topics.InfoRequest, func(paho.Message) {
			if c.handler != nil {
				c.handler.HandleInfoRequest()
			}
		}},
		{c.topics.SettingsRequest, func(paho.Message) {
			if c.handler != nil {
				c.handler.HandleSettingsRequest()
			}
		}},
	}
	for _, s := range subs {
		handle := s.handler
		token := c.client.Subscribe(s.topic, c.qos, func(_ paho.Client, m paho.Message) { handle(m) })
		if err := c.wait(token); err != nil {
			c.logger.Error("mqtt subscribe failed", zap.String("topic", s.topic), zap.Error(err))
		}
	}
}

func (c *Client) wait(token paho.Token) error {
	if !token.WaitTimeout(c.timeout) {
		return ErrTimeout
	}
	return token.Error()
}

func (c *Client) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", topic, err)
	}
	if err := c.wait(c.client.Publish(topic, c.qos, false, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	c.logger.Debug("published", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}

// PublishLive publishes a live telemetry snapshot
func (c *Client) PublishLive(s r60afd1.LiveSnapshot) error {
	return c.publish(c.topics.Live, s)
}

// PublishSettings publishes a settings snapshot
func (c *Client) PublishSettings(s r60afd1.SettingsSnapshot) error {
	return c.publish(c.topics.Settings, s)
}

// PublishInfo publishes a product identity snapshot
func (c *Client) PublishInfo(s r60afd1.ProductSnapshot) error {
	return c.publish(c.topics.Info, s)
}

// Close ends the session
func (c *Client) Close() {
	c.client.Disconnect(250)
}
