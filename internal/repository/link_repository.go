package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Monthlyaway/ishort/internal/model"
	"gorm.io/gorm"
)

// LinkRepository handles database operations for short links
type LinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository creates a new link repository instance
func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create creates a new short link. A taken slug yields ErrDuplicate.
func (r *LinkRepository) Create(ctx context.Context, link *model.ShortLink) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("failed to create short link: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create short link: %w", err)
	}
	return nil
}

// GetBySlug retrieves a short link by slug
func (r *LinkRepository) GetBySlug(ctx context.Context, slug string) (*model.ShortLink, error) {
	var link model.ShortLink
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&link).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get short link: %w", err)
	}
	return &link, nil
}

// GetByID retrieves a short link by id
func (r *LinkRepository) GetByID(ctx context.Context, id int64) (*model.ShortLink, error) {
	var link model.ShortLink
	if err := r.db.WithContext(ctx).First(&link, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get short link: %w", err)
	}
	return &link, nil
}

// ListByUID returns a user's links, newest first
func (r *LinkRepository) ListByUID(ctx context.Context, uid string) ([]model.ShortLink, error) {
	var links []model.ShortLink
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).
		Order("created_at DESC").Order("id DESC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to list short links: %w", err)
	}
	return links, nil
}

// ListAll returns every link, newest first
func (r *LinkRepository) ListAll(ctx context.Context, limit, offset int) ([]model.ShortLink, int64, error) {
	var (
		links []model.ShortLink
		total int64
	)
	if err := r.db.WithContext(ctx).Model(&model.ShortLink{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count short links: %w", err)
	}
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).Find(&links).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list short links: %w", err)
	}
	return links, total, nil
}

// Update writes the editable columns of a short link. Click counters are
// owned by IncrementClicks and never written from here. A taken slug yields ErrDuplicate.
func (r *LinkRepository) Update(ctx context.Context, link *model.ShortLink) error {
	err := r.db.WithContext(ctx).Model(link).
		Select("title", "long_url", "slug", "is_password_protected", "hashed_password", "updated_at").
		Updates(link).Error
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("failed to update short link: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to update short link: %w", err)
	}
	return nil
}

// Delete deletes a short link by id
func (r *LinkRepository) Delete(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).Delete(&model.ShortLink{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete short link: %w", err)
	}
	return nil
}

// DeleteByUID deletes all of a user's links and returns their slugs
func (r *LinkRepository) DeleteByUID(ctx context.Context, uid string) ([]string, error) {
	var slugs []string
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.ShortLink{}).Where("uid = ?", uid).Pluck("slug", &slugs).Error; err != nil {
		return nil, fmt.Errorf("failed to list user slugs: %w", err)
	}
	if err := db.Where("uid = ?", uid).Delete(&model.ShortLink{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete user links: %w", err)
	}
	return slugs, nil
}

// DeleteAll removes every short link and returns the deleted slugs
func (r *LinkRepository) DeleteAll(ctx context.Context) ([]string, error) {
	slugs, err := r.AllSlugs(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.ShortLink{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete all short links: %w", err)
	}
	return slugs, nil
}

// IncrementClicks atomically bumps the click counter and stamps lastClicked
func (r *LinkRepository) IncrementClicks(ctx context.Context, id int64, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.ShortLink{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"clicks":       gorm.Expr("clicks + ?", 1),
			"last_clicked": at,
		}).Error; err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}
	return nil
}

// AllSlugs retrieves all slugs from the database
func (r *LinkRepository) AllSlugs(ctx context.Context) ([]string, error) {
	var slugs []string
	if err := r.db.WithContext(ctx).Model(&model.ShortLink{}).
		Pluck("slug", &slugs).Error; err != nil {
		return nil, fmt.Errorf("failed to get all slugs: %w", err)
	}
	return slugs, nil
}
