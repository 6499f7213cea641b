package api

import (
	"context"

	"live-canvas/internal/models"
)

// RoomRepository defines what handlers need from room persistence. The
// handler package is the consumer, so the interface lives here; the
// repository package implements it without knowing about it.
type RoomRepository interface {
	Create(ctx context.Context, create *models.RoomCreate) (*models.Room, error)
	GetByID(ctx context.Context, id string) (*models.Room, error)
	List(ctx context.Context, limit, offset int) ([]*models.Room, error)
	Delete(ctx context.Context, id string) error
}
