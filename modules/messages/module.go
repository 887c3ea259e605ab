// Package messages keeps a short-lived log of direct messages per user.
package messages

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/message"
)

// MaxMessageLength bounds the body of one direct message.
const MaxMessageLength = 2000

// Module provides the message log services.
type Module struct {
	log    *Log
	logger types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new messages module.
func NewModule(log *Log, logger types.Logger) *Module {
	return &Module{log: log, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "messages"
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Messages module started", "ttl", m.log.ttl.String())
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Messages module stopped")
	return nil
}

// Health reports whether the log store is reachable.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.log.Ping(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("redis ping failed: %v", err)}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceAppend, json.Unmarshal, json.Marshal, m.handleAppend,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceAppend, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceList, json.Unmarshal, json.Marshal, m.handleList,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceList, err)
	}
	return nil
}

// NewMessage validates a request and builds the message to store.
func NewMessage(req AppendRequest) (message.Message, error) {
	switch {
	case req.From == "":
		return message.Message{}, fmt.Errorf("sender is required")
	case req.To == "":
		return message.Message{}, fmt.Errorf("recipient is required")
	case req.Message == "":
		return message.Message{}, fmt.Errorf("message is required")
	case len(req.Message) > MaxMessageLength:
		return message.Message{}, fmt.Errorf("message exceeds %d bytes", MaxMessageLength)
	}
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return message.Message{
		ID:        uuid.New().String(),
		From:      req.From,
		To:        req.To,
		Body:      req.Message,
		CreatedAt: createdAt.UTC(),
	}, nil
}

func (m *Module) handleAppend(ctx context.Context, req AppendRequest, _ *mono.Msg) (AppendResponse, error) {
	msg, err := NewMessage(req)
	if err != nil {
		return AppendResponse{Error: err.Error()}, nil
	}
	if err := m.log.Append(ctx, msg); err != nil {
		m.logger.Error("Failed to append message", "from", msg.From, "to", msg.To, "error", err)
		return AppendResponse{}, err
	}
	m.logger.Debug("Message stored", "id", msg.ID, "from", msg.From, "to", msg.To)
	return AppendResponse{Message: &msg}, nil
}

func (m *Module) handleList(ctx context.Context, req ListRequest, _ *mono.Msg) (ListResponse, error) {
	msgs, err := m.log.List(ctx, req.UserID, req.Limit)
	if err != nil {
		return ListResponse{}, err
	}
	return ListResponse{Messages: msgs}, nil
}
