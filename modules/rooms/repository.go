package rooms

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
)

// Repository provides access to room metadata storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new room repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create saves a new room.
func (r *Repository) Create(ctx context.Context, rm *room.Room) error {
	if err := r.db.WithContext(ctx).Create(rm).Error; err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// FindByID retrieves a room by its ID.
func (r *Repository) FindByID(ctx context.Context, id string) (*room.Room, error) {
	var rm room.Room
	if err := r.db.WithContext(ctx).First(&rm, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, room.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &rm, nil
}

// FindAll retrieves all rooms, newest first.
func (r *Repository) FindAll(ctx context.Context) ([]*room.Room, error) {
	var rooms []*room.Room
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to find rooms: %w", err)
	}
	return rooms, nil
}

// Delete removes a room by ID (soft delete).
func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&room.Room{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if result.RowsAffected == 0 {
		return room.ErrRoomNotFound
	}
	return nil
}
