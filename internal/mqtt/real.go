package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/servo-lift/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var errPublishTimeout = errors.New("publish timeout")

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int // messages held while disconnected (0 for DefaultBufferSize)
}

// RealPublisher publishes to an MQTT broker. Events and lifecycle messages
// published while the connection is down are held in an outbox and replayed
// in order on reconnect. Telemetry is dropped instead.
type RealPublisher struct {
	client paho.Client

	mu     sync.Mutex
	outbox *outbox
	// connected follows paho's connect and connection-lost handlers. Messages
	// are held in the outbox while it is false.
	connected bool
	// connectedOnce distinguishes the first connect from a reconnect.
	connectedOnce bool
}

// NewRealPublisher connects to the broker. The broker is told to publish a
// retained OFFLINE message on TopicSystem if the connection dies.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventOffline})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	p := &RealPublisher{outbox: newOutbox(opts.BufferSize)}

	copts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect(time.Now()) }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.connectionLost(err) })

	p.client = paho.NewClient(copts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// paho keeps retrying in the background; messages wait in the outbox.
		log.Printf("mqtt: broker %s not reachable yet, buffering until connected", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// newPublisher wraps an existing client.
func newPublisher(client paho.Client, bufferSize int) *RealPublisher {
	return &RealPublisher{
		client:    client,
		outbox:    newOutbox(bufferSize),
		connected: client.IsConnectionOpen(),
	}
}

// onConnect replays the outbox. On reconnects it first announces RECONNECTED.
func (p *RealPublisher) onConnect(now time.Time) {
	p.mu.Lock()
	reconnect := p.connectedOnce
	p.connected = true
	p.connectedOnce = true
	dropped := p.outbox.dropped
	msgs := p.outbox.drain()
	p.mu.Unlock()

	if reconnect {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: now, Event: EventReconnected})
		if err == nil {
			p.client.Publish(TopicSystem, 1, false, payload)
		}
	}
	if len(msgs) == 0 {
		return
	}

	if dropped > 0 {
		log.Printf("mqtt: connected, replaying %d buffered messages (%d dropped while offline)", len(msgs), dropped)
	} else {
		log.Printf("mqtt: connected, replaying %d buffered messages", len(msgs))
	}
	for _, m := range msgs {
		token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(publishTimeout) {
			log.Printf("mqtt: replay to %s: %v", m.topic, errPublishTimeout)
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: replay to %s: %v", m.topic, err)
		}
	}
}

func (p *RealPublisher) connectionLost(err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

// send publishes and waits for completion, or holds the message in the
// outbox when the connection is down. The check and the push hold the lock
// onConnect drains under.
func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.connected {
		p.outbox.push(pending{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}
	return token.Error()
}

// Publish sends a transition at QoS 0.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	if err := p.send(Topic, 0, false, payload); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a lifecycle event at QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	if err := p.send(TopicSystem, 1, event.Retained, payload); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// PublishTelemetry sends an angle sample at QoS 0 without waiting for the
// broker. Samples are dropped while disconnected.
func (p *RealPublisher) PublishTelemetry(t Telemetry) error {
	if !p.client.IsConnectionOpen() {
		return nil
	}
	payload, err := FormatTelemetryPayload(t)
	if err != nil {
		return fmt.Errorf("format telemetry: %w", err)
	}
	p.client.Publish(TopicTelemetry, 0, false, payload)
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a reconnect.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
