// Package gateway is the network edge: websocket namespaces for rooms, the
// lobby and direct chat, plus the REST and health surface.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"

	"github.com/SWM-FIRE/modoco-backend-sub000/events"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/coordinator"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/fanout"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/lifecycle"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/messages"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/metrics"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/registry"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/rooms"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/session"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/signaling"
)

// RoomCoordinator runs room membership operations.
type RoomCoordinator interface {
	Connect(ctx context.Context, conn *registry.Connection, sink fanout.Sink) error
	Disconnect(ctx context.Context, sid string) (*registry.Connection, bool)
	Join(ctx context.Context, sid, roomID, userID string) error
	Leave(ctx context.Context, sid, roomID string) error
	Kick(ctx context.Context, sid, roomID string, target coordinator.KickTarget) error
	Chat(ctx context.Context, sid, roomID string, payload any) error
	MediaState(ctx context.Context, sid, roomID, kind string, enabled bool) error
}

// SignalRelay forwards directed signaling payloads.
type SignalRelay interface {
	Relay(ctx context.Context, from, event string, msg signaling.Message) error
}

// LobbyBus is the part of the fan-out bus used outside of rooms.
type LobbyBus interface {
	JoinLobby(sid string) error
	PublishLobby(ctx context.Context, env fanout.Envelope) error
	SendToUser(ctx context.Context, uid string, env fanout.Envelope) error
}

// Config holds gateway settings.
type Config struct {
	Port           string
	AllowedOrigins string
	SendQueueSize  int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig returns the default gateway settings.
func DefaultConfig() Config {
	return Config{
		Port:           "3000",
		AllowedOrigins: "http://localhost:3000,http://localhost:8080",
		SendQueueSize:  64,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// Deps groups the in-process collaborators of the gateway.
type Deps struct {
	Coordinator RoomCoordinator
	Relay       SignalRelay
	Bus         LobbyBus
	Registry    *registry.Registry
	Lifecycle   lifecycle.Observer
	Verifier    Verifier
	Metrics     *metrics.Metrics
	Logger      types.Logger
}

// Module serves websocket and HTTP traffic.
type Module struct {
	cfg      Config
	coord    RoomCoordinator
	relay    SignalRelay
	bus      LobbyBus
	registry *registry.Registry
	life     lifecycle.Observer
	verifier Verifier
	metrics  *metrics.Metrics
	logger   types.Logger

	rooms    rooms.RoomsPort
	sessions session.SessionPort
	messages messages.MessagesPort
	eventBus mono.EventBus

	app *fiber.App
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new gateway module.
func NewModule(cfg Config, d Deps) *Module {
	return &Module{
		cfg:      cfg,
		coord:    d.Coordinator,
		relay:    d.Relay,
		bus:      d.Bus,
		registry: d.Registry,
		life:     d.Lifecycle,
		verifier: d.Verifier,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "gateway"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"rooms", "session", "messages"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "rooms":
		m.rooms = rooms.NewRoomsAdapter(container)
	case "session":
		m.sessions = session.NewSessionAdapter(container)
	case "messages":
		m.messages = messages.NewMessagesAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.ConnectionOpenedV1.ToBase(),
		events.ConnectionClosedV1.ToBase(),
	}
}

// Start builds the Fiber app and starts listening.
func (m *Module) Start(_ context.Context) error {
	if m.rooms == nil || m.sessions == nil || m.messages == nil {
		return fmt.Errorf("gateway dependencies not set")
	}
	if m.coord == nil || m.relay == nil || m.bus == nil {
		return fmt.Errorf("gateway collaborators not set")
	}

	m.app = m.buildApp()

	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(":" + m.cfg.Port); err != nil {
			errCh <- err
		}
	}()

	// Wait briefly to catch immediate startup errors
	select {
	case err := <-errCh:
		return fmt.Errorf("gateway failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("Gateway started", "port", m.cfg.Port)
	return nil
}

// Stop shuts down the server. Open websocket handlers observe the closed
// sockets and run their disconnect cleanup.
func (m *Module) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	m.logger.Info("Gateway stopped", "connections", m.registry.Count())
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":        m.cfg.Port,
			"connections": m.registry.CountByNamespace(),
		},
	}
}

func (m *Module) emitOpened(conn *registry.Connection) {
	if m.eventBus == nil {
		return
	}
	event := events.ConnectionOpenedEvent{
		SID:       conn.ID,
		UserID:    conn.UserID,
		Nickname:  conn.Nickname,
		Namespace: conn.Namespace,
		Timestamp: time.Now(),
	}
	if err := events.ConnectionOpenedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to emit ConnectionOpened", "sid", conn.ID, "error", err)
	}
}

func (m *Module) emitClosed(conn *registry.Connection) {
	if m.eventBus == nil {
		return
	}
	event := events.ConnectionClosedEvent{
		SID:       conn.ID,
		UserID:    conn.UserID,
		Namespace: conn.Namespace,
		Remaining: m.registry.UserConnections(conn.UserID),
		Timestamp: time.Now(),
	}
	if err := events.ConnectionClosedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to emit ConnectionClosed", "sid", conn.ID, "error", err)
	}
}
