// Package session keeps short-lived presence records per user.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	domain "github.com/SWM-FIRE/modoco-backend-sub000/domain/session"
	"github.com/SWM-FIRE/modoco-backend-sub000/events"
)

// Module provides session services and tracks connection status.
type Module struct {
	store  *Store
	logger types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new session module.
func NewModule(store *Store, logger types.Logger) *Module {
	return &Module{store: store, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "session"
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Session module started", "ttl", m.store.ttl.String())
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Session module stopped")
	return nil
}

// Health reports whether the session store is reachable.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("redis ping failed: %v", err)}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceFind, json.Unmarshal, json.Marshal, m.handleFind,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceFind, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSave, json.Unmarshal, json.Marshal, m.handleSave,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSave, err)
	}
	return nil
}

// RegisterEventConsumers marks users online and offline as their
// connections come and go.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ConnectionOpenedV1, m.handleConnectionOpened, m,
	); err != nil {
		return fmt.Errorf("failed to register ConnectionOpened consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ConnectionClosedV1, m.handleConnectionClosed, m,
	); err != nil {
		return fmt.Errorf("failed to register ConnectionClosed consumer: %w", err)
	}
	return nil
}

func (m *Module) handleFind(ctx context.Context, req FindRequest, _ *mono.Msg) (FindResponse, error) {
	s, ok, err := m.store.Find(ctx, req.ID)
	if err != nil {
		return FindResponse{}, err
	}
	return FindResponse{Found: ok, Session: s}, nil
}

func (m *Module) handleSave(ctx context.Context, req SaveRequest, _ *mono.Msg) (SaveResponse, error) {
	if err := m.store.Save(ctx, req.ID, req.Update); err != nil {
		return SaveResponse{Error: err.Error()}, nil
	}
	return SaveResponse{Saved: true}, nil
}

func (m *Module) handleConnectionOpened(ctx context.Context, event events.ConnectionOpenedEvent, _ *mono.Msg) error {
	update := domain.Update{
		UserID: domain.String(event.UserID),
		Status: domain.StatusPtr(domain.StatusOnline),
	}
	if event.Nickname != "" {
		update.Nickname = domain.String(event.Nickname)
	}
	if err := m.store.Save(ctx, event.UserID, update); err != nil {
		m.logger.Error("Failed to mark session online", "uid", event.UserID, "error", err)
	}
	return nil
}

func (m *Module) handleConnectionClosed(ctx context.Context, event events.ConnectionClosedEvent, _ *mono.Msg) error {
	if event.Remaining > 0 {
		return nil
	}
	update := domain.Update{Status: domain.StatusPtr(domain.StatusOffline)}
	if err := m.store.Save(ctx, event.UserID, update); err != nil {
		m.logger.Error("Failed to mark session offline", "uid", event.UserID, "error", err)
	}
	return nil
}
