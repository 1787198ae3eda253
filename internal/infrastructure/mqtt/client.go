package mqtt

import (
	"context"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/scanctl/internal/infrastructure/config"
)

// Logger receives handler failures and connection loss.
// *logging.Logger and *slog.Logger both satisfy it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler processes one inbound message. It runs on paho's
// goroutine, so it should return quickly; a returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Client publishes console events and receives remote requests over one
// broker connection. Subscriptions survive reconnects. Safe for concurrent
// use.
type Client struct {
	paho   pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics
	online atomic.Bool

	mu           sync.RWMutex
	subs         map[string]subscription
	onConnect    func()
	onDisconnect func(error)
	logger       Logger
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

func newClient(cfg config.MQTTConfig) *Client {
	c := &Client{
		cfg:    cfg,
		topics: NewTopics(cfg.TopicPrefix),
		subs:   make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	opts.SetBinaryWill(c.topics.SystemStatus(),
		buildStatusPayload(statusOffline, cfg.Broker.ClientID, "unexpected_disconnect"), 1, true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })

	c.paho = pahomqtt.NewClient(opts)
	return c
}

// Connect dials the broker and waits for the session. The broker holds a
// retained offline status as Last Will; a retained online status is
// published on every (re)connect.
//
// Returns ErrConnectionFailed when the broker is unreachable or ctx ends
// first.
func Connect(ctx context.Context, cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)
	if err := await(ctx, c.paho.Connect(), connectTimeout, ErrConnectionFailed); err != nil {
		c.paho.Disconnect(0)
		return nil, err
	}
	// The OnConnect hook runs on its own goroutine and may lag.
	c.online.Store(true)
	return c, nil
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

func (c *Client) connected() {
	c.online.Store(true)

	c.mu.RLock()
	for topic, sub := range c.subs {
		c.paho.Subscribe(topic, sub.qos, c.deliver(sub.handler))
	}
	hook := c.onConnect
	c.mu.RUnlock()

	c.announce(statusOnline, "")
	if hook != nil {
		hook()
	}
}

func (c *Client) lost(err error) {
	c.online.Store(false)

	c.mu.RLock()
	hook, logger := c.onDisconnect, c.logger
	c.mu.RUnlock()

	if logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}
	if hook != nil {
		hook(err)
	}
}

// announce publishes the retained console status without waiting.
func (c *Client) announce(status, reason string) pahomqtt.Token {
	return c.paho.Publish(c.topics.SystemStatus(), c.qos(), true,
		buildStatusPayload(status, c.cfg.Broker.ClientID, reason))
}

func (c *Client) qos() byte {
	return byte(c.cfg.QoS) //nolint:gosec // validated by config
}

// Close marks the console offline and disconnects.
func (c *Client) Close() error {
	if c == nil || c.paho == nil {
		return nil
	}
	if c.online.Swap(false) && c.paho.IsConnected() {
		// Best effort; the Last Will covers a failed publish.
		_ = await(context.Background(), c.announce(statusOffline, "graceful_shutdown"), ackTimeout, ErrPublishFailed)
	}
	c.paho.Disconnect(quiesceMillis)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the broker session is up.
func (c *Client) IsConnected() bool {
	return c.online.Load() && c.paho.IsConnected()
}

// SetOnConnect sets a hook run after every connect and reconnect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect sets a hook run when the connection drops.
func (c *Client) SetOnDisconnect(fn func(error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets where handler failures are reported.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatchMessage(handler, msg.Topic(), msg.Payload())
	}
}

// dispatchMessage runs handler, logging a returned error or a panic.
func (c *Client) dispatchMessage(handler MessageHandler, topic string, payload []byte) {
	c.mu.RLock()
	logger := c.logger
	c.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Error("MQTT handler panic", "topic", topic, "panic", r)
		}
	}()
	if err := handler(topic, payload); err != nil && logger != nil {
		logger.Warn("MQTT handler failed", "topic", topic, "bytes", len(payload), "error", err)
	}
}
