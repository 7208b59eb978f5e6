package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/Monthlyaway/ishort/internal/model"
	"gorm.io/gorm"
)

// UserRepository handles database operations for user accounts
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a user account. A taken email yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *model.UserAccount) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("failed to create user: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByUID retrieves a user by uid
func (r *UserRepository) GetByUID(ctx context.Context, uid string) (*model.UserAccount, error) {
	return r.first(ctx, "uid = ?", uid)
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.UserAccount, error) {
	return r.first(ctx, "LOWER(email) = ?", strings.ToLower(email))
}

// GetByGoogleID retrieves a user by Google subject id
func (r *UserRepository) GetByGoogleID(ctx context.Context, googleID string) (*model.UserAccount, error) {
	return r.first(ctx, "google_id = ?", googleID)
}

func (r *UserRepository) first(ctx context.Context, query string, args ...interface{}) (*model.UserAccount, error) {
	var user model.UserAccount
	if err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Update writes the profile columns of a user. Every other column changes
// only through UpdateFields.
func (r *UserRepository) Update(ctx context.Context, user *model.UserAccount) error {
	err := r.db.WithContext(ctx).Model(user).
		Select("display_name", "email", "phone", "photo_url", "google_id", "updated_at").
		Updates(user).Error
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("failed to update user: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// UpdateFields updates selected columns, including zero values
func (r *UserRepository) UpdateFields(ctx context.Context, uid string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.UserAccount{}).Where("uid = ?", uid).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	return nil
}

// Delete deletes a user by uid
func (r *UserRepository) Delete(ctx context.Context, uid string) error {
	if err := r.db.WithContext(ctx).Delete(&model.UserAccount{}, "uid = ?", uid).Error; err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// Search lists users whose display name or email contains q, newest first
func (r *UserRepository) Search(ctx context.Context, q string, limit, offset int) ([]model.UserAccount, int64, error) {
	var (
		users []model.UserAccount
		total int64
	)
	query := r.db.WithContext(ctx).Model(&model.UserAccount{})
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(display_name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	if err := query.Session(&gorm.Session{}).Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search users: %w", err)
	}
	return users, total, nil
}
