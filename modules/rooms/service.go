package rooms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
)

// Membership is the part of the membership store the metadata service writes.
type Membership interface {
	Register(ctx context.Context, rec room.Record) error
	Remove(ctx context.Context, roomID string) error
	Get(ctx context.Context, roomID string) (room.Record, error)
}

// Service implements room metadata business logic.
type Service struct {
	repo       *Repository
	membership Membership
}

// NewService creates a new room service.
func NewService(repo *Repository, membership Membership) *Service {
	return &Service{repo: repo, membership: membership}
}

// ValidateCreate checks a creation request.
func ValidateCreate(req CreateRoomRequest) error {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return room.Validation("title is required")
	}
	if len(title) > 100 {
		return room.Validation("title must be at most 100 characters")
	}
	if req.Capacity < 1 || req.Capacity > room.MaxCapacity {
		return room.Validation(fmt.Sprintf("total must be between 1 and %d", room.MaxCapacity))
	}
	if req.ModeratorUID == "" {
		return room.Validation("moderator is required")
	}
	return nil
}

// Create stores a room and registers its membership record.
func (s *Service) Create(ctx context.Context, req CreateRoomRequest) (*RoomView, error) {
	if err := ValidateCreate(req); err != nil {
		return nil, err
	}

	rm := &room.Room{
		ID:           uuid.New().String(),
		Title:        strings.TrimSpace(req.Title),
		Details:      req.Details,
		Theme:        req.Theme,
		Capacity:     req.Capacity,
		ModeratorUID: req.ModeratorUID,
	}
	rm.SetTags(req.Tags)

	if err := s.repo.Create(ctx, rm); err != nil {
		return nil, err
	}

	rec := room.Record{RoomID: rm.ID, Total: rm.Capacity, Moderator: rm.ModeratorUID}
	if err := s.membership.Register(ctx, rec); err != nil {
		// Keep metadata and membership in step.
		_ = s.repo.Delete(ctx, rm.ID)
		return nil, err
	}

	view := newRoomView(rm, 0)
	return &view, nil
}

// Get returns a room with its live occupancy.
func (s *Service) Get(ctx context.Context, id string) (*RoomView, error) {
	rm, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := newRoomView(rm, s.occupancy(ctx, id))
	return &view, nil
}

// List returns all rooms with their live occupancy.
func (s *Service) List(ctx context.Context) ([]RoomView, error) {
	rms, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]RoomView, 0, len(rms))
	for _, rm := range rms {
		views = append(views, newRoomView(rm, s.occupancy(ctx, rm.ID)))
	}
	return views, nil
}

// Delete removes a room. Only the moderator may delete it and only while
// nobody is in it.
func (s *Service) Delete(ctx context.Context, id, requester string) error {
	rm, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if rm.ModeratorUID != requester {
		return room.ErrNotModerator
	}

	rec, err := s.membership.Get(ctx, id)
	switch {
	case err == nil && rec.Current != 0:
		return room.ErrRoomNotEmpty
	case err != nil && !errors.Is(err, room.ErrRoomNotFound):
		return fmt.Errorf("failed to read occupancy: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	return s.membership.Remove(ctx, id)
}

// LoadRecord returns the membership record derived from stored metadata.
func (s *Service) LoadRecord(ctx context.Context, id string) (*room.Record, error) {
	rm, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &room.Record{RoomID: rm.ID, Total: rm.Capacity, Moderator: rm.ModeratorUID}, nil
}

func (s *Service) occupancy(ctx context.Context, id string) int {
	rec, err := s.membership.Get(ctx, id)
	if err != nil {
		return 0
	}
	return rec.Current
}
