// internal/infrastructure/database/postgres/snapshot_store.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/configurator-backend/internal/domain/cart"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartSnapshot is the durable copy of a session cart
type CartSnapshot struct {
	SessionID string    `gorm:"primaryKey;size:64" json:"session_id"`
	CartID    string    `gorm:"size:64;not null" json:"cart_id"`
	Status    string    `gorm:"size:20;not null" json:"status"`
	Total     float64   `gorm:"not null;default:0" json:"total"`
	ItemCount int       `gorm:"not null;default:0" json:"item_count"`
	Data      string    `gorm:"type:jsonb;not null" json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for CartSnapshot
func (CartSnapshot) TableName() string {
	return "cart_snapshots"
}

// SnapshotStore keeps cart snapshots in PostgreSQL
type SnapshotStore struct {
	db *gorm.DB
}

// NewSnapshotStore creates a new snapshot store
func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Save implements cart.Store
func (s *SnapshotStore) Save(ctx context.Context, key string, c *cart.Cart) error {
	row, err := newCartSnapshot(key, c)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"cart_id", "status", "total", "item_count", "data", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save cart snapshot: %w", err)
	}
	return nil
}

// Load implements cart.Store
func (s *SnapshotStore) Load(ctx context.Context, key string) (*cart.Cart, error) {
	var row CartSnapshot
	err := s.db.WithContext(ctx).Where("session_id = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cart.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart snapshot: %w", err)
	}
	return row.Cart()
}

// Delete removes a snapshot
func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&CartSnapshot{}, "session_id = ?", key).Error; err != nil {
		return fmt.Errorf("failed to delete cart snapshot: %w", err)
	}
	return nil
}

func newCartSnapshot(sessionID string, c *cart.Cart) (*CartSnapshot, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return &CartSnapshot{
		SessionID: sessionID,
		CartID:    c.ID,
		Status:    string(c.Status),
		Total:     c.Total,
		ItemCount: len(c.Items),
		Data:      string(data),
		UpdatedAt: c.UpdatedAt,
	}, nil
}

// Cart decodes the stored snapshot
func (r *CartSnapshot) Cart() (*cart.Cart, error) {
	var c cart.Cart
	if err := json.Unmarshal([]byte(r.Data), &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &c, nil
}
