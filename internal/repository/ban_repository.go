package repository

import (
	"context"
	"fmt"

	"github.com/Monthlyaway/ishort/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BanRepository handles database operations for ban records
type BanRepository struct {
	db *gorm.DB
}

// NewBanRepository creates a new ban repository instance
func NewBanRepository(db *gorm.DB) *BanRepository {
	return &BanRepository{db: db}
}

// Upsert writes the ban for a uid, replacing any previous one
func (r *BanRepository) Upsert(ctx context.Context, ban *model.BanRecord) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "display_name", "banned_at", "banned_by", "reason", "permanent", "banned_until",
		}),
	}).Create(ban).Error
	if err != nil {
		return fmt.Errorf("failed to save ban record: %w", err)
	}
	return nil
}

// GetByUID retrieves the ban for a uid
func (r *BanRepository) GetByUID(ctx context.Context, uid string) (*model.BanRecord, error) {
	var ban model.BanRecord
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&ban).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ban record: %w", err)
	}
	return &ban, nil
}

// DeleteByUID removes the ban for a uid. Missing records are not an error.
func (r *BanRepository) DeleteByUID(ctx context.Context, uid string) error {
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).Delete(&model.BanRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete ban record: %w", err)
	}
	return nil
}
