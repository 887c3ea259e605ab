// Package rooms is the room metadata collaborator: title, tags, theme,
// capacity and moderator, stored with gorm on sqlite.
package rooms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
	"github.com/SWM-FIRE/modoco-backend-sub000/events"
)

// Module provides room metadata services.
type Module struct {
	dbPath     string
	db         *gorm.DB
	membership Membership
	service    *Service
	eventBus   mono.EventBus
	logger     types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new rooms module.
func NewModule(dbPath string, membership Membership, logger types.Logger) *Module {
	return &Module{
		dbPath:     dbPath,
		membership: membership,
		logger:     logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "rooms"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.RoomDeletedV1.ToBase(),
	}
}

// Start opens the metadata database.
func (m *Module) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	// The metadata table belongs to this collaborator, not to the core.
	if err := db.AutoMigrate(&room.Room{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.service = NewService(NewRepository(db), m.membership)
	m.logger.Info("Rooms module started", "database", m.dbPath)
	return nil
}

// Stop closes the database.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	m.logger.Info("Rooms module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get database connection: %v", err)}
	}
	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"database": m.dbPath},
	}
}

// Service returns the room service. It is nil until Start has run.
func (m *Module) Service() *Service {
	return m.service
}

// LoadRecord lets the membership store reseed missing records.
func (m *Module) LoadRecord(ctx context.Context, roomID string) (*room.Record, error) {
	if m.service == nil {
		return nil, room.ErrUnavailable
	}
	return m.service.LoadRecord(ctx, roomID)
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreate, json.Unmarshal, json.Marshal, m.handleCreate,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreate, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGet, json.Unmarshal, json.Marshal, m.handleGet,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGet, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceList, json.Unmarshal, json.Marshal, m.handleList,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceList, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDelete, json.Unmarshal, json.Marshal, m.handleDelete,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDelete, err)
	}

	m.logger.Info("Registered services", "services", []string{ServiceCreate, ServiceGet, ServiceList, ServiceDelete})
	return nil
}

func (m *Module) handleCreate(ctx context.Context, req CreateRoomRequest, _ *mono.Msg) (RoomResponse, error) {
	view, err := m.service.Create(ctx, req)
	if err != nil {
		return roomError(err)
	}

	event := events.RoomCreatedEvent{
		RoomID:       view.ID,
		Title:        view.Title,
		Total:        view.Total,
		ModeratorUID: view.Moderator,
		Timestamp:    time.Now(),
	}
	if err := events.RoomCreatedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish RoomCreated event", "error", err)
	}

	m.logger.Info("Room created", "room", view.ID, "total", view.Total, "moderator", view.Moderator)
	return RoomResponse{Room: view}, nil
}

func (m *Module) handleGet(ctx context.Context, req GetRoomRequest, _ *mono.Msg) (RoomResponse, error) {
	view, err := m.service.Get(ctx, req.ID)
	if err != nil {
		return roomError(err)
	}
	return RoomResponse{Room: view}, nil
}

func (m *Module) handleList(ctx context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	views, err := m.service.List(ctx)
	if err != nil {
		return ListRoomsResponse{}, err
	}
	return ListRoomsResponse{Rooms: views}, nil
}

func (m *Module) handleDelete(ctx context.Context, req DeleteRoomRequest, _ *mono.Msg) (DeleteRoomResponse, error) {
	if err := m.service.Delete(ctx, req.ID, req.Requester); err != nil {
		if kind := room.KindOf(err); kind != room.KindInternal {
			return DeleteRoomResponse{ErrorKind: kind, Error: err.Error()}, nil
		}
		return DeleteRoomResponse{}, err
	}

	event := events.RoomDeletedEvent{RoomID: req.ID, Timestamp: time.Now()}
	if err := events.RoomDeletedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish RoomDeleted event", "error", err)
	}

	m.logger.Info("Room deleted", "room", req.ID)
	return DeleteRoomResponse{Deleted: true}, nil
}

// roomError turns classified errors into a response and passes internal
// errors through to the caller.
func roomError(err error) (RoomResponse, error) {
	if kind := room.KindOf(err); kind != room.KindInternal {
		return RoomResponse{ErrorKind: kind, Error: err.Error()}, nil
	}
	return RoomResponse{}, err
}
