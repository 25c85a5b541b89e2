// Package repo implements the persistence layer for the event history,
// backed by GORM. This file provides repository functions for the
// EventRecord model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flowzap/pixrelay/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateEventRecord inserts a new history row in the "pending" state and
// returns it. The record ID is a randomly generated UUID (string), and
// CreatedAt is set to UTC.
func CreateEventRecord(ctx context.Context, db *gorm.DB, eventType, phone, instance string) (*domain.EventRecord, error) {
	r := &domain.EventRecord{
		ID:        uuid.NewString(),
		EventType: eventType,
		Phone:     phone,
		Instance:  instance,
		Status:    domain.DeliveryPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// MarkSent transitions a history row to "sent" and stamps SentAt.
// Returns ErrNotFound when no row matches id.
func MarkSent(ctx context.Context, db *gorm.DB, id string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": domain.DeliverySent, "sent_at": &now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkError transitions a history row to "error" and records the failure
// reason. Returns ErrNotFound when no row matches id.
func MarkError(ctx context.Context, db *gorm.DB, id, reason string) error {
	res := db.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": domain.DeliveryError, "error": reason})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecentEvents returns the newest history rows ordered by creation time
// descending (CreatedAt DESC, ID DESC for determinism). It returns an empty
// slice when the table is empty.
func RecentEvents(ctx context.Context, db *gorm.DB, limit int) ([]domain.EventRecord, error) {
	var out []domain.EventRecord
	q := db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountEventsSince returns the number of history rows created at or after
// the cutoff, grouped by delivery status.
func CountEventsSince(ctx context.Context, db *gorm.DB, cutoff time.Time) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := db.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Select("status, COUNT(*) AS total").
		Where("created_at >= ?", cutoff).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}

// CountEvents returns the total number of history rows.
func CountEvents(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.EventRecord{}).Count(&total).Error
	return total, err
}

// PurgeEvents deletes history rows created before the cutoff and returns the
// number of rows removed.
func PurgeEvents(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.EventRecord{})
	return res.RowsAffected, res.Error
}
