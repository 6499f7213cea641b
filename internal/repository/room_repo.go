package repository

import (
	"context"
	"errors"
	"fmt"

	"live-canvas/internal/models"

	"gorm.io/gorm"
)

// RoomRepositoryImpl handles all database operations for rooms using GORM
type RoomRepositoryImpl struct {
	db *gorm.DB
}

// NewRoomRepository creates a new room repository
func NewRoomRepository(db *gorm.DB) *RoomRepositoryImpl {
	return &RoomRepositoryImpl{db: db}
}

// Create inserts a new room. The KSUID is auto-generated in the BeforeCreate
// hook.
func (r *RoomRepositoryImpl) Create(ctx context.Context, create *models.RoomCreate) (*models.Room, error) {
	room := &models.Room{
		Name: create.Name,
	}

	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return room, nil
}

// GetByID retrieves a room by its KSUID. Soft-deleted rooms are excluded.
func (r *RoomRepositoryImpl) GetByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room

	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("room not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return &room, nil
}

// List returns rooms with pagination.
// Learning: KSUID allows natural time-based ordering without created_at index
func (r *RoomRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*models.Room, error) {
	var rooms []*models.Room

	err := r.db.WithContext(ctx).
		Order("id DESC"). // KSUID is time-ordered, so sorting by ID = sorting by creation time
		Limit(limit).
		Offset(offset).
		Find(&rooms).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	return rooms, nil
}

// Delete soft-deletes a room.
func (r *RoomRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Room{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete room: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("room not found: %s", id)
	}
	return nil
}
