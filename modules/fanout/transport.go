package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrTransportClosed is returned after Close.
var ErrTransportClosed = errors.New("fanout transport closed")

// Handler receives raw messages for one subject.
type Handler func(data []byte)

// Subscription is an active transport subscription.
type Subscription interface {
	Unsubscribe() error
}

// Transport moves bytes between processes.
type Transport interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(subject string, h Handler) (Subscription, error)
	Ping(ctx context.Context) error
	Close() error
}

// NATSConfig holds NATS transport configuration.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		MaxReconnects: 10,
		ReconnectWait: time.Second,
	}
}

// NATSTransport carries fan-out traffic over core NATS subjects.
type NATSTransport struct {
	nc *nats.Conn
}

// ConnectNATS connects to NATS.
func ConnectNATS(cfg NATSConfig) (*NATSTransport, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("room-fanout"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSTransport{nc: nc}, nil
}

// Publish sends data on subject.
func (t *NATSTransport) Publish(_ context.Context, subject string, data []byte) error {
	if err := t.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers h for subject. Messages of one subscription are
// handled in order on a single goroutine.
func (t *NATSTransport) Subscribe(subject string, h Handler) (Subscription, error) {
	sub, err := t.nc.Subscribe(subject, func(msg *nats.Msg) {
		h(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

// Ping round-trips to the server.
func (t *NATSTransport) Ping(ctx context.Context) error {
	if !t.nc.IsConnected() {
		return fmt.Errorf("nats not connected (status %s)", t.nc.Status())
	}
	return t.nc.FlushWithContext(ctx)
}

// Close drains and closes the connection.
func (t *NATSTransport) Close() error {
	if err := t.nc.Drain(); err != nil {
		t.nc.Close()
		return err
	}
	return nil
}

// LocalTransport delivers messages inside one process. It is used when the
// service runs as a single instance and in tests.
type LocalTransport struct {
	mu     sync.RWMutex
	subs   map[string]map[*localSub]struct{}
	closed bool
}

type localSub struct {
	t       *LocalTransport
	subject string
	h       Handler
}

// NewLocalTransport creates an in-process transport.
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{subs: make(map[string]map[*localSub]struct{})}
}

// Publish calls every handler of subject synchronously.
func (t *LocalTransport) Publish(_ context.Context, subject string, data []byte) error {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return ErrTransportClosed
	}
	handlers := make([]Handler, 0, len(t.subs[subject]))
	for s := range t.subs[subject] {
		handlers = append(handlers, s.h)
	}
	t.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

// Subscribe registers h for subject.
func (t *LocalTransport) Subscribe(subject string, h Handler) (Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}
	s := &localSub{t: t, subject: subject, h: h}
	if t.subs[subject] == nil {
		t.subs[subject] = make(map[*localSub]struct{})
	}
	t.subs[subject][s] = struct{}{}
	return s, nil
}

// Ping reports whether the transport is open.
func (t *LocalTransport) Ping(_ context.Context) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrTransportClosed
	}
	return nil
}

// Close drops every subscription.
func (t *LocalTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.subs = make(map[string]map[*localSub]struct{})
	return nil
}

// Unsubscribe removes the subscription.
func (s *localSub) Unsubscribe() error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if subs, ok := s.t.subs[s.subject]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.t.subs, s.subject)
		}
	}
	return nil
}
