package models

import (
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Room represents one shared canvas
// Learning: Using KSUID instead of UUID provides:
// - Time-based sorting (first 32 bits are timestamp)
// - Better database index performance (sequential, less B-tree fragmentation)
// - Smaller string representation (27 chars vs 36 for UUID)
type Room struct {
	ID        string         `json:"id" gorm:"type:char(27);primaryKey"`
	Name      string         `json:"name" gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"column:deleted_at;index"` // Soft delete support
}

// BeforeCreate hook generates KSUID before inserting
func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = ksuid.New().String()
	}
	return nil
}

// CanvasObject is the persisted form of one shape in a room. Only the latest
// record per (room, objectId) is kept - reconnecting clients get "last state
// wins", not an op log. CreatedAt is set on first insert and preserved across
// upserts so loading ordered by it reproduces painter's order.
type CanvasObject struct {
	ID        string         `json:"id" gorm:"type:char(27);primaryKey"`
	RoomID    string         `json:"room_id" gorm:"type:char(27);not null;uniqueIndex:idx_room_object;index:idx_room_created"`
	ObjectID  string         `json:"object_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_room_object"`
	Kind      string         `json:"kind" gorm:"type:varchar(32);not null"`
	Record    datatypes.JSON `json:"record" gorm:"type:jsonb;not null"`
	Seq       uint64         `json:"seq" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime;index:idx_room_created"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationship
	Room *Room `gorm:"foreignKey:RoomID;references:ID" json:"room,omitempty"`
}

// BeforeCreate generates KSUID
func (c *CanvasObject) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = ksuid.New().String()
	}
	return nil
}

// TableName override
func (CanvasObject) TableName() string {
	return "canvas_objects"
}

type RoomCreate struct {
	Name string `json:"name"`
}
