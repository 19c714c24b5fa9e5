package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"vr-screenshotter/internal/domain"
	"vr-screenshotter/pkg/shared/redact"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// publisher is the part of paho.Client the sink needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Sink publishes a JSON capture record per completed capture to
// {topic}/{state}.
type Sink struct {
	client publisher
	topic  string
	qos    byte
	logger *zerolog.Logger

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
	disc      func()
}

// Connect dials broker (host:port or a full URL) with auto-reconnect enabled.
func Connect(broker, clientID, topic string, logger *zerolog.Logger) (*Sink, error) {
	s := &Sink{topic: topic, qos: 1, logger: logger}
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	safe := redact.URL(broker)
	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(paho.Client) {
		s.setConnected(true)
		logger.Info().Str("broker", safe).Str("clientId", clientID).Msg("mqtt connection established")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		s.setConnected(false)
		logger.Warn().Err(err).Str("broker", safe).Msg("mqtt connection lost, will auto-reconnect")
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	s.client = client
	s.disc = func() { client.Disconnect(250) }
	s.setConnected(true)
	return s, nil
}

func newWithPublisher(p publisher, topic string, logger *zerolog.Logger) *Sink {
	return &Sink{client: p, topic: topic, qos: 1, logger: logger, connected: true}
}

func (s *Sink) Name() string { return "mqtt" }

func (s *Sink) Publish(ctx context.Context, rec domain.CaptureRecord) error {
	if !s.isConnected() {
		s.countError()
		return fmt.Errorf("mqtt not connected")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		s.countError()
		return fmt.Errorf("failed to marshal capture record: %w", err)
	}
	topic := fmt.Sprintf("%s/%s", s.topic, rec.State)
	token := s.client.Publish(topic, s.qos, false, payload)

	wait := publishTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < wait {
		wait = time.Until(dl)
	}
	if !token.WaitTimeout(wait) {
		s.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		s.countError()
		return fmt.Errorf("publish failed: %w", err)
	}
	s.mu.Lock()
	s.published++
	s.mu.Unlock()
	s.logger.Debug().Str("topic", topic).Int("size", len(payload)).Msg("capture record published")
	return nil
}

// Stats returns (published, errors).
func (s *Sink) Stats() (uint64, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.published, s.errors
}

func (s *Sink) Close() error {
	if s.disc != nil {
		s.disc()
	}
	s.setConnected(false)
	return nil
}

func (s *Sink) isConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Sink) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *Sink) countError() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}
