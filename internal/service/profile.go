package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/Monthlyaway/ishort/internal/repository"
	"github.com/Monthlyaway/ishort/internal/utils"
)

const maxDisplayName = 100

// ProfileInput is the editable part of an account
type ProfileInput struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	PhotoURL    string `json:"photoUrl"`
}

// ProfileService lets users manage their own account
type ProfileService struct {
	store *repository.Store
	admin *AdminService
}

// NewProfileService creates a profile service. Account deletion reuses admin's cascade.
func NewProfileService(store *repository.Store, admin *AdminService) *ProfileService {
	return &ProfileService{store: store, admin: admin}
}

// Get returns the account of uid
func (s *ProfileService) Get(ctx context.Context, uid string) (*model.UserAccount, error) {
	user, err := s.store.Users.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Update changes display name, email, phone and photo
func (s *ProfileService) Update(ctx context.Context, uid string, in ProfileInput) (*model.UserAccount, error) {
	user, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.DisplayName)
	if name == "" || len(name) > maxDisplayName {
		return nil, invalid("displayName", errors.New("display name must be 1 to 100 characters"))
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.PhotoURL != "" {
		if err := utils.ValidateURL(in.PhotoURL); err != nil {
			return nil, invalid("photoUrl", err)
		}
	}

	user.DisplayName = name
	user.Email = email
	user.Phone = strings.TrimSpace(in.Phone)
	user.PhotoURL = in.PhotoURL
	if err := s.store.Users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}
	if fresh, err := s.store.Users.GetByUID(ctx, user.UID); err == nil && fresh != nil {
		return fresh, nil
	}
	return user, nil
}

// ChangePassword replaces the password of a credential account
func (s *ProfileService) ChangePassword(ctx context.Context, uid, current, next string) error {
	user, err := s.Get(ctx, uid)
	if err != nil {
		return err
	}
	if user.SignType != model.SignTypeCredential {
		return ErrNotCredentialAccount
	}
	if !utils.CheckPassword(user.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if err := utils.ValidatePassword(next); err != nil {
		return invalid("newPassword", err)
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return err
	}
	return s.store.Users.UpdateFields(ctx, uid, map[string]interface{}{
		"password_hash":   hash,
		"session_version": user.SessionVersion + 1,
	})
}

// Delete removes the caller's own account after re-authentication. Credential
// accounts confirm with their password, Google accounts with their email.
func (s *ProfileService) Delete(ctx context.Context, uid, confirmation string) error {
	user, err := s.Get(ctx, uid)
	if err != nil {
		return err
	}
	switch user.SignType {
	case model.SignTypeCredential:
		if !utils.CheckPassword(user.PasswordHash, confirmation) {
			return ErrInvalidCredentials
		}
	default:
		if !strings.EqualFold(strings.TrimSpace(confirmation), user.Email) {
			return ErrInvalidCredentials
		}
	}
	return s.admin.deleteAccount(ctx, uid)
}
