package fanout

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Transport kinds.
const (
	TransportNATS  = "nats"
	TransportLocal = "local"
)

// Config holds fan-out configuration.
type Config struct {
	Transport     string
	NATS          NATSConfig
	SubjectPrefix string
}

// DefaultConfig returns the default fan-out configuration.
func DefaultConfig() Config {
	return Config{
		Transport:     TransportNATS,
		NATS:          DefaultNATSConfig(),
		SubjectPrefix: DefaultSubjectPrefix,
	}
}

// Module owns the transport connection of the fan-out bus.
type Module struct {
	cfg       Config
	bus       *Bus
	transport Transport
	logger    types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new fan-out module.
func NewModule(cfg Config, presence Presence, logger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		bus:    NewBus(presence, cfg.SubjectPrefix, logger),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "fanout"
}

// Bus returns the fan-out bus. It is usable once the module has started.
func (m *Module) Bus() *Bus {
	return m.bus
}

// Start connects the transport.
func (m *Module) Start(ctx context.Context) error {
	switch m.cfg.Transport {
	case TransportLocal:
		m.transport = NewLocalTransport()
	case TransportNATS, "":
		t, err := ConnectNATS(m.cfg.NATS)
		if err != nil {
			return err
		}
		m.transport = t
	default:
		return fmt.Errorf("unknown fanout transport %q", m.cfg.Transport)
	}
	m.bus.SetTransport(m.transport)

	m.logger.Info("Fan-out bus started", "transport", m.cfg.Transport, "url", m.cfg.NATS.URL)
	return nil
}

// Stop closes the transport.
func (m *Module) Stop(_ context.Context) error {
	if m.transport == nil {
		return nil
	}
	if err := m.transport.Close(); err != nil {
		return fmt.Errorf("failed to close fanout transport: %w", err)
	}
	m.logger.Info("Fan-out bus stopped", "attached", m.bus.LocalCount())
	return nil
}

// Health reports transport and presence reachability.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.bus.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: err.Error(),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"transport":            m.cfg.Transport,
			"attached_connections": m.bus.LocalCount(),
		},
	}
}
