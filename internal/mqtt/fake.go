package mqtt

import "sync"

// PublishedMessage is one recorded publish.
type PublishedMessage struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// FakeBus records publishes and lets tests inject inbound messages.
type FakeBus struct {
	mu       sync.Mutex
	messages []PublishedMessage
	handlers map[string]Handler

	// PublishError, if set, is returned by Publish.
	PublishError error

	// Connected controls the return value of IsConnected.
	Connected bool

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeBus creates a FakeBus for testing.
func NewFakeBus() *FakeBus {
	return &FakeBus{handlers: make(map[string]Handler), Connected: true}
}

// Publish records the message.
func (f *FakeBus) Publish(topic string, payload []byte, retain bool) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, PublishedMessage{Topic: topic, Payload: payload, Retained: retain})
	return nil
}

// Subscribe registers the handler for later Inject calls.
func (f *FakeBus) Subscribe(topics []string, h Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range topics {
		f.handlers[topic] = h
	}
	return nil
}

// Inject delivers an inbound message to the subscribed handler, as the
// broker would.
func (f *FakeBus) Inject(topic string, payload []byte) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	if h != nil {
		h(topic, payload)
	}
}

// Messages returns a copy of every recorded publish.
func (f *FakeBus) Messages() []PublishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PublishedMessage(nil), f.messages...)
}

// MessagesOn returns the recorded publishes for one topic.
func (f *FakeBus) MessagesOn(topic string) []PublishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PublishedMessage
	for _, m := range f.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Reset clears recorded messages.
func (f *FakeBus) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
}

// IsConnected reports whether the fake bus is "connected".
func (f *FakeBus) IsConnected() bool {
	return f.Connected
}

// Close marks the bus as closed.
func (f *FakeBus) Close() error {
	f.Closed = true
	return nil
}
