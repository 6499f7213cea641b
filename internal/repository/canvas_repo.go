package repository

import (
	"context"
	"fmt"

	"live-canvas/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/*
CANVAS SNAPSHOT PERSISTENCE

One row per (room, objectId), holding the latest committed record. This is
deliberately not an op log: the durability contract is "last state wins on
reconnect", nothing more. CreatedAt survives upserts, so loading ordered by
(created_at, id) reproduces painter's order for late joiners.
*/

// CanvasRepositoryImpl handles canvas object persistence using GORM
type CanvasRepositoryImpl struct {
	db *gorm.DB
}

// NewCanvasRepository creates a new canvas repository
// Returns concrete type - "Accept interfaces, return structs"
func NewCanvasRepository(db *gorm.DB) *CanvasRepositoryImpl {
	return &CanvasRepositoryImpl{db: db}
}

// UpsertObject stores the latest record for an object, replacing any prior
// row wholesale (last-write-wins, matching the store's conflict policy).
func (r *CanvasRepositoryImpl) UpsertObject(ctx context.Context, roomID string, record models.ShapeRecord, seq uint64) error {
	payload, err := record.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize record %s: %w", record.ObjectID, err)
	}

	obj := &models.CanvasObject{
		RoomID:   roomID,
		ObjectID: record.ObjectID,
		Kind:     string(record.Kind),
		Record:   payload,
		Seq:      seq,
	}

	// On conflict the row keeps its id and created_at; only the payload,
	// kind, and seq move forward.
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "object_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "record", "seq", "updated_at"}),
	}).Create(obj).Error
	if err != nil {
		return fmt.Errorf("failed to upsert canvas object: %w", err)
	}

	return nil
}

// DeleteObject removes an object's row. Deleting a missing object is not an
// error - the store treats it as a no-op and so does persistence.
func (r *CanvasRepositoryImpl) DeleteObject(ctx context.Context, roomID, objectID string) error {
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND object_id = ?", roomID, objectID).
		Delete(&models.CanvasObject{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete canvas object: %w", err)
	}
	return nil
}

// ClearRoom removes every object row for a room.
func (r *CanvasRepositoryImpl) ClearRoom(ctx context.Context, roomID string) error {
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Delete(&models.CanvasObject{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear room: %w", err)
	}
	return nil
}

// LoadRoom returns the room's objects in painter's order plus the highest
// persisted sequence number. Used to hydrate a fresh in-memory replica.
func (r *CanvasRepositoryImpl) LoadRoom(ctx context.Context, roomID string) ([]models.ObjectEntry, uint64, error) {
	var rows []*models.CanvasObject

	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load room objects: %w", err)
	}

	entries := make([]models.ObjectEntry, 0, len(rows))
	var maxSeq uint64
	for _, row := range rows {
		record, err := models.DeserializeShape(row.Record)
		if err != nil {
			// A malformed persisted row is skipped rather than poisoning the
			// whole room load.
			continue
		}
		entries = append(entries, models.ObjectEntry{ObjectID: row.ObjectID, Record: record})
		if row.Seq > maxSeq {
			maxSeq = row.Seq
		}
	}

	return entries, maxSeq, nil
}
