package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"exmora-backend/internal/model"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Increment upserts the user's per-day row, adding the event's counters.
func (r *UsageRepository) Increment(ctx context.Context, event model.UsageEvent) error {
	record := model.UsageRecord{
		UserID:  event.UserID,
		Date:    event.Date,
		Asks:    event.Asks,
		Uploads: event.Uploads,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"asks":    gorm.Expr("asks + ?", event.Asks),
			"uploads": gorm.Expr("uploads + ?", event.Uploads),
		}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("increment usage failed: %w", err)
	}
	return nil
}

// GetByUserAndDate returns the user's row for the given day, or nil.
func (r *UsageRepository) GetByUserAndDate(ctx context.Context, userID, date string) (*model.UsageRecord, error) {
	var record model.UsageRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query usage failed: %w", err)
	}
	return &record, nil
}
