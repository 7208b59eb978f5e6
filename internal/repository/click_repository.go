package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Monthlyaway/ishort/internal/model"
	"gorm.io/gorm"
)

// ClickRepository appends and reads click events
type ClickRepository struct {
	db *gorm.DB
}

// NewClickRepository creates a new click repository instance
func NewClickRepository(db *gorm.DB) *ClickRepository {
	return &ClickRepository{db: db}
}

// Create appends a click event
func (r *ClickRepository) Create(ctx context.Context, event *model.ClickEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create click event: %w", err)
	}
	return nil
}

// ListForLinks returns the url id and time of clicks on the given links since a point in time
func (r *ClickRepository) ListForLinks(ctx context.Context, linkIDs []int64, since time.Time) ([]model.ClickEvent, error) {
	if len(linkIDs) == 0 {
		return nil, nil
	}
	var events []model.ClickEvent
	if err := r.db.WithContext(ctx).
		Select("id", "url_id", "clicked_at").
		Where("url_id IN ? AND clicked_at >= ?", linkIDs, since).
		Order("clicked_at ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list click events: %w", err)
	}
	return events, nil
}

// CountByLink counts every click event recorded for a link
func (r *ClickRepository) CountByLink(ctx context.Context, linkID int64) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.ClickEvent{}).
		Where("url_id = ?", linkID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count click events: %w", err)
	}
	return n, nil
}
