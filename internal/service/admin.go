package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/Monthlyaway/ishort/internal/repository"
	"github.com/rs/zerolog/log"
)

const maxBanReason = 500

// BanInput is an admin ban request. Temporary bans need Duration > 0 and a Unit.
type BanInput struct {
	Reason    string `json:"reason"`
	Permanent bool   `json:"permanent"`
	Duration  int    `json:"duration"`
	Unit      string `json:"unit"`
}

// AdminService implements account moderation
type AdminService struct {
	store *repository.Store
	cache LinkCache
	now   func() time.Time
}

// NewAdminService creates a new admin service instance. cache may be nil.
func NewAdminService(store *repository.Store, cache LinkCache) *AdminService {
	return &AdminService{store: store, cache: cacheOrNop(cache), now: time.Now}
}

// ListUsers searches accounts by display name or email
func (s *AdminService) ListUsers(ctx context.Context, q string, limit, offset int) ([]model.UserAccount, int64, error) {
	return s.store.Users.Search(ctx, q, limit, offset)
}

// SetRole changes an account's role
func (s *AdminService) SetRole(ctx context.Context, uid, role string) (*model.UserAccount, error) {
	if role != model.RoleAdmin && role != model.RoleUser {
		return nil, invalid("role", fmt.Errorf("role must be %q or %q", model.RoleAdmin, model.RoleUser))
	}
	return s.setField(ctx, uid, "role", role)
}

// SetPlan changes an account's plan
func (s *AdminService) SetPlan(ctx context.Context, uid, plan string) (*model.UserAccount, error) {
	if plan != model.PlanFree && plan != model.PlanPro {
		return nil, invalid("plan", fmt.Errorf("plan must be %q or %q", model.PlanFree, model.PlanPro))
	}
	return s.setField(ctx, uid, "plan", plan)
}

func (s *AdminService) setField(ctx context.Context, uid, column, value string) (*model.UserAccount, error) {
	user, err := s.requireUser(ctx, s.store, uid)
	if err != nil {
		return nil, err
	}
	if err := s.store.Users.UpdateFields(ctx, uid, map[string]interface{}{column: value}); err != nil {
		return nil, err
	}
	return s.store.Users.GetByUID(ctx, user.UID)
}

// Ban writes the ban record and marks the account banned in one transaction
func (s *AdminService) Ban(ctx context.Context, admin *model.UserAccount, uid string, in BanInput) (*model.BanRecord, error) {
	if admin.UID == uid {
		return nil, ErrSelfAction
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		return nil, invalid("reason", errors.New("reason is required"))
	}
	if len(in.Reason) > maxBanReason {
		return nil, invalid("reason", errors.New("reason must be at most 500 characters"))
	}

	now := s.now()
	ban := &model.BanRecord{
		UID:       uid,
		BannedAt:  now,
		BannedBy:  admin.UID,
		Reason:    in.Reason,
		Permanent: in.Permanent,
	}
	if !in.Permanent {
		until, err := BanEnd(now, in.Duration, in.Unit)
		if err != nil {
			return nil, err
		}
		ban.BannedUntil = &until
	}

	err := s.store.Atomic(ctx, func(tx *repository.Store) error {
		user, err := s.requireUser(ctx, tx, uid)
		if err != nil {
			return err
		}
		ban.Email = user.Email
		ban.DisplayName = user.DisplayName
		if err := tx.Bans.Upsert(ctx, ban); err != nil {
			return err
		}
		return tx.Users.UpdateFields(ctx, uid, map[string]interface{}{
			"status":        model.StatusBanned,
			"banned_reason": ban.Reason,
			"banned_until":  ban.BannedUntil,
		})
	})
	if err != nil {
		return nil, err
	}
	log.Warn().Str("uid", uid).Str("by", admin.UID).Bool("permanent", ban.Permanent).Msg("account banned")
	return ban, nil
}

// Unban deletes the ban record and reactivates the account in one transaction
func (s *AdminService) Unban(ctx context.Context, uid string) error {
	err := s.store.Atomic(ctx, func(tx *repository.Store) error {
		if _, err := s.requireUser(ctx, tx, uid); err != nil {
			return err
		}
		if err := tx.Bans.DeleteByUID(ctx, uid); err != nil {
			return err
		}
		return tx.Users.UpdateFields(ctx, uid, map[string]interface{}{
			"status":        model.StatusActive,
			"banned_reason": "",
			"banned_until":  nil,
		})
	})
	if err != nil {
		return err
	}
	log.Info().Str("uid", uid).Msg("account unbanned")
	return nil
}

// DeleteUser removes an account, its ban record and its links. Click events are kept.
func (s *AdminService) DeleteUser(ctx context.Context, admin *model.UserAccount, uid string) error {
	if admin.UID == uid {
		return ErrSelfAction
	}
	return s.deleteAccount(ctx, uid)
}

func (s *AdminService) deleteAccount(ctx context.Context, uid string) error {
	var slugs []string
	err := s.store.Atomic(ctx, func(tx *repository.Store) error {
		if _, err := s.requireUser(ctx, tx, uid); err != nil {
			return err
		}
		var err error
		if slugs, err = tx.Links.DeleteByUID(ctx, uid); err != nil {
			return err
		}
		if err := tx.Bans.DeleteByUID(ctx, uid); err != nil {
			return err
		}
		return tx.Users.Delete(ctx, uid)
	})
	if err != nil {
		return err
	}

	if err := s.cache.Delete(ctx, slugs...); err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("link cache invalidation failed")
	}
	log.Warn().Str("uid", uid).Int("links", len(slugs)).Msg("account deleted")
	return nil
}

func (s *AdminService) requireUser(ctx context.Context, store *repository.Store, uid string) (*model.UserAccount, error) {
	user, err := store.Users.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// BanEnd adds a ban duration to from. Months and years follow the calendar.
func BanEnd(from time.Time, n int, unit string) (time.Time, error) {
	if n <= 0 {
		return time.Time{}, invalid("duration", errors.New("duration must be positive"))
	}
	switch unit {
	case "hours":
		return from.Add(time.Duration(n) * time.Hour), nil
	case "days":
		return from.AddDate(0, 0, n), nil
	case "months":
		return from.AddDate(0, n, 0), nil
	case "years":
		return from.AddDate(n, 0, 0), nil
	}
	return time.Time{}, invalid("unit", errors.New("unit must be hours, days, months or years"))
}
