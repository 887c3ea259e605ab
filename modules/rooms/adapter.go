package rooms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
)

// Service names exposed by the rooms module.
const (
	ServiceCreate = "room-create"
	ServiceGet    = "room-get"
	ServiceList   = "room-list"
	ServiceDelete = "room-delete"
)

// RoomsPort defines the room metadata operations other modules use.
type RoomsPort interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*RoomView, error)
	GetRoom(ctx context.Context, id string) (*RoomView, error)
	ListRooms(ctx context.Context) ([]RoomView, error)
	DeleteRoom(ctx context.Context, id, requester string) error
}

// RoomsAdapter implements RoomsPort using the service container.
type RoomsAdapter struct {
	container mono.ServiceContainer
}

// NewRoomsAdapter creates a new RoomsAdapter.
func NewRoomsAdapter(container mono.ServiceContainer) *RoomsAdapter {
	return &RoomsAdapter{container: container}
}

// CreateRoom creates a room.
func (a *RoomsAdapter) CreateRoom(ctx context.Context, req CreateRoomRequest) (*RoomView, error) {
	var resp RoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreate,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceCreate, err)
	}
	if resp.Error != "" {
		return nil, room.NewError(resp.ErrorKind, resp.Error)
	}
	return resp.Room, nil
}

// GetRoom returns one room.
func (a *RoomsAdapter) GetRoom(ctx context.Context, id string) (*RoomView, error) {
	req := GetRoomRequest{ID: id}
	var resp RoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGet,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceGet, err)
	}
	if resp.Error != "" {
		return nil, room.NewError(resp.ErrorKind, resp.Error)
	}
	return resp.Room, nil
}

// ListRooms returns all rooms.
func (a *RoomsAdapter) ListRooms(ctx context.Context) ([]RoomView, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceList,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceList, err)
	}
	return resp.Rooms, nil
}

// DeleteRoom deletes a room on behalf of requester.
func (a *RoomsAdapter) DeleteRoom(ctx context.Context, id, requester string) error {
	req := DeleteRoomRequest{ID: id, Requester: requester}
	var resp DeleteRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceDelete,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", ServiceDelete, err)
	}
	if resp.Error != "" {
		return room.NewError(resp.ErrorKind, resp.Error)
	}
	return nil
}

