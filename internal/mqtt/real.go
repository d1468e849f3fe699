package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second

	// bufferCapacity bounds the offline publish queue. Predictions are
	// retained anyway, so losing old ones under a long outage is acceptable.
	bufferCapacity = 256
)

// Client is the paho-backed Bus used by the daemon. Publishes made while the
// broker is unreachable are buffered and replayed on reconnect; subscriptions
// are re-established automatically.
type Client struct {
	client paho.Client
	log    *zap.Logger

	mu     sync.Mutex
	buffer *ringBuffer
	subs   map[string]Handler
}

// NewClient connects to the broker and blocks until the first connection
// attempt resolves.
func NewClient(broker, clientID string, log *zap.Logger) (*Client, error) {
	c := &Client{
		log:    log,
		buffer: newRingBuffer(bufferCapacity),
		subs:   make(map[string]Handler),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn("broker connection lost", zap.Error(err))
		})

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	return c, nil
}

// onConnect runs on every (re)connection: restore subscriptions, then flush
// anything buffered during the outage.
func (c *Client) onConnect(client paho.Client) {
	c.mu.Lock()
	subs := make(map[string]Handler, len(c.subs))
	for topic, h := range c.subs {
		subs[topic] = h
	}
	pending := c.buffer.drainAll()
	c.mu.Unlock()

	for topic, h := range subs {
		handler := h
		token := client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
			handler(msg.Topic(), msg.Payload())
		})
		if token.WaitTimeout(publishTimeout) && token.Error() == nil {
			continue
		}
		c.log.Error("resubscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
	}

	if len(pending) > 0 {
		c.log.Info("flushing buffered publishes", zap.Int("count", len(pending)))
	}
	for _, msg := range pending {
		token := client.Publish(msg.topic, 1, msg.retained, msg.payload)
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			c.log.Warn("buffered publish failed", zap.String("topic", msg.topic), zap.Error(token.Error()))
		}
	}
}

// Publish sends a payload at QoS 1, buffering it when disconnected.
func (c *Client) Publish(topic string, payload []byte, retain bool) error {
	if !c.client.IsConnected() {
		c.mu.Lock()
		dropped := c.buffer.push(bufferedMsg{topic: topic, payload: payload, retained: retain})
		n := c.buffer.len()
		c.mu.Unlock()
		if dropped {
			c.log.Warn("publish buffer full, dropped oldest", zap.Int("capacity", bufferCapacity))
		}
		c.log.Debug("buffered publish while disconnected", zap.String("topic", topic), zap.Int("buffered", n))
		return nil
	}

	token := c.client.Publish(topic, 1, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers the handler for the given topics, now and after every
// reconnect.
func (c *Client) Subscribe(topics []string, h Handler) error {
	c.mu.Lock()
	for _, topic := range topics {
		c.subs[topic] = h
	}
	c.mu.Unlock()

	for _, topic := range topics {
		token := c.client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
			h(msg.Topic(), msg.Payload())
		})
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("subscribe %s: timeout", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

// IsConnected reports whether the broker connection is active.
func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.client.Disconnect(1000) // milliseconds to flush in-flight work
	return nil
}
