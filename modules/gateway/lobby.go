package gateway

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/SWM-FIRE/modoco-backend-sub000/events"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/coordinator"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/fanout"
)

// RegisterEventConsumers turns room events of this process into lobby
// updates. Every process announces only its own changes, so each update
// reaches the lobby once.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomCreatedV1, m.handleRoomCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomDeletedV1, m.handleRoomDeleted, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomDeleted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MemberJoinedV1, m.handleMemberJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register MemberJoined consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MemberLeftV1, m.handleMemberLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register MemberLeft consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MemberKickedV1, m.handleMemberKicked, m,
	); err != nil {
		return fmt.Errorf("failed to register MemberKicked consumer: %w", err)
	}
	return nil
}

func (m *Module) handleRoomCreated(ctx context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	return m.announce(ctx, EventRoomCreated, RoomCreatedPayload{
		Room:      event.RoomID,
		Title:     event.Title,
		Total:     event.Total,
		Moderator: event.ModeratorUID,
	})
}

func (m *Module) handleRoomDeleted(ctx context.Context, event events.RoomDeletedEvent, _ *mono.Msg) error {
	return m.announce(ctx, EventRoomDeleted, coordinator.RoomPayload{Room: event.RoomID})
}

func (m *Module) handleMemberJoined(ctx context.Context, event events.MemberJoinedEvent, _ *mono.Msg) error {
	return m.announce(ctx, EventRoomUpdated, RoomUpdatedPayload{Room: event.RoomID, Current: event.Current, Total: event.Total})
}

func (m *Module) handleMemberLeft(ctx context.Context, event events.MemberLeftEvent, _ *mono.Msg) error {
	return m.announce(ctx, EventRoomUpdated, RoomUpdatedPayload{Room: event.RoomID, Current: event.Current, Total: event.Total})
}

func (m *Module) handleMemberKicked(ctx context.Context, event events.MemberKickedEvent, _ *mono.Msg) error {
	return m.announce(ctx, EventRoomUpdated, RoomUpdatedPayload{Room: event.RoomID, Current: event.Current, Total: event.Total})
}

// announce never fails the consumer; a missed lobby update is corrected by
// the next getRooms.
func (m *Module) announce(ctx context.Context, event string, payload any) error {
	env, err := fanout.NewEnvelope(event, payload)
	if err != nil {
		m.logger.Error("Failed to encode lobby update", "event", event, "error", err)
		return nil
	}
	if err := m.bus.PublishLobby(ctx, env); err != nil {
		m.logger.Warn("Failed to publish lobby update", "event", event, "error", err)
	}
	return nil
}
