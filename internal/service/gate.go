package service

import (
	"context"
	"time"

	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/rs/zerolog/log"
)

// BanLookup finds the ban record of a uid
type BanLookup interface {
	GetByUID(ctx context.Context, uid string) (*model.BanRecord, error)
}

// AccountLookup finds an account by uid
type AccountLookup interface {
	GetByUID(ctx context.Context, uid string) (*model.UserAccount, error)
}

// BanStatus is the outcome of a ban check
type BanStatus struct {
	Banned      bool       `json:"banned"`
	Permanent   bool       `json:"permanent"`
	Expired     bool       `json:"expired"`
	Reason      string     `json:"reason,omitempty"`
	BannedAt    *time.Time `json:"bannedAt,omitempty"`
	BannedUntil *time.Time `json:"bannedUntil,omitempty"`
}

// Gate decides whether a signed-in identity is banned
type Gate struct {
	bans  BanLookup
	users AccountLookup
	now   func() time.Time
}

// NewGate creates an access gate
func NewGate(bans BanLookup, users AccountLookup) *Gate {
	return &Gate{bans: bans, users: users, now: time.Now}
}

// Check returns the ban status of uid. Anonymous identities are never banned
// and lookup errors count as not banned. An elapsed ban end time is reported
// as Expired but the identity stays banned until an admin unbans it.
func (g *Gate) Check(ctx context.Context, uid string) BanStatus {
	if uid == "" {
		return BanStatus{}
	}
	now := g.now()

	ban, err := g.bans.GetByUID(ctx, uid)
	if err != nil {
		log.Error().Err(err).Str("uid", uid).Msg("ban lookup failed, allowing access")
		return BanStatus{}
	}
	if ban != nil {
		bannedAt := ban.BannedAt
		return BanStatus{
			Banned:      true,
			Permanent:   ban.Permanent,
			Expired:     ban.IsExpired(now),
			Reason:      ban.Reason,
			BannedAt:    &bannedAt,
			BannedUntil: ban.BannedUntil,
		}
	}

	user, err := g.users.GetByUID(ctx, uid)
	if err != nil {
		log.Error().Err(err).Str("uid", uid).Msg("account lookup failed, allowing access")
		return BanStatus{}
	}
	if user == nil || !user.IsBanned() {
		return BanStatus{}
	}
	status := BanStatus{
		Banned:      true,
		Reason:      user.BannedReason,
		BannedUntil: user.BannedUntil,
	}
	if user.BannedUntil != nil {
		status.Expired = now.After(*user.BannedUntil)
	}
	return status
}
