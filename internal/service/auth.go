package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/Monthlyaway/ishort/internal/repository"
	"github.com/Monthlyaway/ishort/internal/utils"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// GoogleUserInfoURL is the OAuth2 userinfo endpoint
const GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// SignUpInput is the credential sign-up form
type SignUpInput struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// GoogleUser is the subset of the userinfo response we store
type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// AuthService registers and signs in accounts
type AuthService struct {
	users       *repository.UserRepository
	oauth       *oauth2.Config
	userInfoURL string
}

// NewAuthService creates an auth service. oauth may be nil to disable Google sign-in.
func NewAuthService(users *repository.UserRepository, oauth *oauth2.Config) *AuthService {
	return &AuthService{users: users, oauth: oauth, userInfoURL: GoogleUserInfoURL}
}

// SignUp creates a credential account with default role, plan and status
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*model.UserAccount, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return nil, invalid("displayName", errors.New("display name is required"))
	}
	if err := utils.ValidatePassword(in.Password); err != nil {
		return nil, invalid("password", err)
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailInUse
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := newAccount(name, email, model.SignTypeCredential)
	user.PasswordHash = hash
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}
	log.Info().Str("uid", user.UID).Msg("account registered")
	return user, nil
}

// SignIn checks the email is registered before comparing the password
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*model.UserAccount, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrAccountNotRegistered
	}
	if user.SignType != model.SignTypeCredential {
		return nil, ErrNotCredentialAccount
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GoogleEnabled reports whether Google sign-in is configured
func (s *AuthService) GoogleEnabled() bool {
	return s.oauth != nil
}

// GoogleAuthURL returns the consent page URL for state
func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if s.oauth == nil {
		return "", ErrOAuthDisabled
	}
	return s.oauth.AuthCodeURL(state), nil
}

// GoogleSignIn exchanges an authorization code and returns the matching
// account, creating it on first sign-in.
func (s *AuthService) GoogleSignIn(ctx context.Context, code string) (*model.UserAccount, error) {
	if s.oauth == nil {
		return nil, ErrOAuthDisabled
	}
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Join(ErrOAuthFailed, err)
	}

	var info GoogleUser
	resp, err := resty.NewWithClient(s.oauth.Client(ctx, token)).R().
		SetContext(ctx).
		SetResult(&info).
		Get(s.userInfoURL)
	if err != nil {
		return nil, errors.Join(ErrOAuthFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: userinfo returned %s", ErrOAuthFailed, resp.Status())
	}
	return s.upsertGoogleUser(ctx, info)
}

func (s *AuthService) upsertGoogleUser(ctx context.Context, info GoogleUser) (*model.UserAccount, error) {
	if info.ID == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: incomplete profile", ErrOAuthFailed)
	}

	user, err := s.users.GetByGoogleID(ctx, info.ID)
	if err != nil || user != nil {
		return user, err
	}

	// an unverified address must not claim an existing account or a new one
	if !info.VerifiedEmail {
		return nil, fmt.Errorf("%w: email not verified", ErrOAuthFailed)
	}

	user, err = s.users.GetByEmail(ctx, info.Email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		user.GoogleID = info.ID
		if user.PhotoURL == "" {
			user.PhotoURL = info.Picture
		}
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}

	name := info.Name
	if name == "" {
		name = strings.Split(info.Email, "@")[0]
	}
	user = newAccount(name, strings.ToLower(info.Email), model.SignTypeGoogle)
	user.GoogleID = info.ID
	if info.Picture != "" {
		user.PhotoURL = info.Picture
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	log.Info().Str("uid", user.UID).Msg("account registered with google")
	return user, nil
}

// EnsureAdmin creates the bootstrap admin account, or promotes an existing one
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user != nil {
		if user.IsAdmin() {
			return nil
		}
		return s.users.UpdateFields(ctx, user.UID, map[string]interface{}{"role": model.RoleAdmin})
	}

	user, err = s.SignUp(ctx, SignUpInput{DisplayName: "Administrator", Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	if err := s.users.UpdateFields(ctx, user.UID, map[string]interface{}{"role": model.RoleAdmin}); err != nil {
		return err
	}
	log.Info().Str("email", email).Msg("admin account created")
	return nil
}

func newAccount(name, email, signType string) *model.UserAccount {
	return &model.UserAccount{
		UID:         uuid.NewString(),
		DisplayName: name,
		Email:       email,
		PhotoURL:    avatarURL(name),
		Role:        model.RoleUser,
		Plan:        model.PlanFree,
		Status:      model.StatusActive,
		SignType:    signType,
	}
}

func avatarURL(name string) string {
	return "https://ui-avatars.com/api/?background=random&name=" + url.QueryEscape(name)
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", invalid("email", errors.New("invalid email address"))
	}
	return strings.ToLower(raw), nil
}
