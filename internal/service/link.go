package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Monthlyaway/ishort/internal/filter"
	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/Monthlyaway/ishort/internal/repository"
	"github.com/Monthlyaway/ishort/internal/utils"
	"github.com/rs/zerolog/log"
)

const randomSlugAttempts = 5

// LinkInput is the create/edit form of a short link
type LinkInput struct {
	Title       string `json:"title"`
	LongURL     string `json:"longUrl"`
	CustomSlug  string `json:"customSlug"`
	UsePassword bool   `json:"usePassword"`
	Password    string `json:"password"`
}

// LinkService handles short link CRUD
type LinkService struct {
	store   *repository.Store
	cache   LinkCache
	filter  *filter.SlugFilter
	baseURL string
}

// NewLinkService creates a new link service instance. cache may be nil.
func NewLinkService(store *repository.Store, cache LinkCache, slugs *filter.SlugFilter, baseURL string) *LinkService {
	return &LinkService{
		store:   store,
		cache:   cacheOrNop(cache),
		filter:  slugs,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ShortURL builds the user-facing URL of a slug
func (s *LinkService) ShortURL(slug string) string {
	return s.baseURL + "/" + slug
}

// Create validates the form and stores a new link owned by owner
func (s *LinkService) Create(ctx context.Context, owner *model.UserAccount, in LinkInput) (*model.ShortLink, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.LongURL = strings.TrimSpace(in.LongURL)
	in.CustomSlug = strings.TrimSpace(in.CustomSlug)

	if err := validateLinkInput(in, true); err != nil {
		return nil, err
	}

	id, err := utils.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate link id: %w", err)
	}
	link := &model.ShortLink{
		ID:      id,
		Title:   in.Title,
		LongURL: in.LongURL,
		UID:     owner.UID,
	}
	if in.UsePassword {
		if link.HashedPassword, err = utils.HashPassword(in.Password); err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		link.IsPasswordProtected = true
	}

	if in.CustomSlug != "" {
		if err := s.createWithSlug(ctx, link, in.CustomSlug); err != nil {
			return nil, err
		}
	} else if err := s.createWithRandomSlug(ctx, link); err != nil {
		return nil, err
	}

	s.filter.Add(link.Slug)
	if err := s.cache.Set(ctx, link); err != nil {
		log.Warn().Err(err).Str("slug", link.Slug).Msg("link cache write failed")
	}
	log.Info().Str("slug", link.Slug).Str("uid", owner.UID).Msg("short link created")
	return link, nil
}

func (s *LinkService) createWithSlug(ctx context.Context, link *model.ShortLink, slug string) error {
	existing, err := s.store.Links.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrSlugTaken
	}
	link.Slug = slug
	if err := s.store.Links.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

func (s *LinkService) createWithRandomSlug(ctx context.Context, link *model.ShortLink) error {
	for i := 0; i < randomSlugAttempts; i++ {
		slug, err := utils.RandomSlug()
		if err != nil {
			return err
		}
		// a definite filter miss means the slug was never issued
		if s.filter.MightContain(slug) {
			continue
		}
		link.Slug = slug
		err = s.store.Links.Create(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
	}
	return fmt.Errorf("failed to allocate a unique slug after %d attempts", randomSlugAttempts)
}

// List returns the links owned by uid, newest first
func (s *LinkService) List(ctx context.Context, uid string) ([]model.ShortLink, error) {
	return s.store.Links.ListByUID(ctx, uid)
}

// ListAll returns every link for admins
func (s *LinkService) ListAll(ctx context.Context, limit, offset int) ([]model.ShortLink, int64, error) {
	return s.store.Links.ListAll(ctx, limit, offset)
}

// Get returns a link the actor owns. Admins may read any link.
func (s *LinkService) Get(ctx context.Context, actor *model.UserAccount, id int64) (*model.ShortLink, error) {
	link, err := s.store.Links.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrLinkNotFound
	}
	if !link.OwnedBy(actor.UID) && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return link, nil
}

// Update edits a link. An empty CustomSlug keeps the current slug. UsePassword
// without a Password keeps the existing hash.
func (s *LinkService) Update(ctx context.Context, actor *model.UserAccount, id int64, in LinkInput) (*model.ShortLink, error) {
	link, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.LongURL = strings.TrimSpace(in.LongURL)
	in.CustomSlug = strings.TrimSpace(in.CustomSlug)
	keepHash := in.UsePassword && in.Password == "" && link.IsPasswordProtected
	if err := validateLinkInput(in, !keepHash); err != nil {
		return nil, err
	}

	oldSlug := link.Slug
	if in.CustomSlug != "" && in.CustomSlug != oldSlug {
		existing, err := s.store.Links.GetBySlug(ctx, in.CustomSlug)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrSlugTaken
		}
		link.Slug = in.CustomSlug
	}
	link.Title = in.Title
	link.LongURL = in.LongURL

	switch {
	case !in.UsePassword:
		link.IsPasswordProtected = false
		link.HashedPassword = ""
	case !keepHash:
		hash, err := utils.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		link.IsPasswordProtected = true
		link.HashedPassword = hash
	}

	if err := s.store.Links.Update(ctx, link); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}

	s.filter.Add(link.Slug)
	s.invalidate(ctx, oldSlug, link.Slug)
	if fresh, err := s.store.Links.GetByID(ctx, link.ID); err == nil && fresh != nil {
		return fresh, nil
	}
	return link, nil
}

// Delete removes a link the actor owns. Admins may delete any link.
func (s *LinkService) Delete(ctx context.Context, actor *model.UserAccount, id int64) error {
	link, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.store.Links.Delete(ctx, link.ID); err != nil {
		return err
	}
	s.invalidate(ctx, link.Slug)
	return nil
}

// DeleteAll removes every link in the system and returns how many were deleted
func (s *LinkService) DeleteAll(ctx context.Context) (int, error) {
	slugs, err := s.store.Links.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, slugs...)
	if err := s.LoadFilter(ctx); err != nil {
		log.Error().Err(err).Msg("slug filter reload after bulk delete failed")
	}
	log.Warn().Int("count", len(slugs)).Msg("all short links deleted")
	return len(slugs), nil
}

// LoadFilter seeds the slug filter with every stored slug
func (s *LinkService) LoadFilter(ctx context.Context) error {
	n, err := s.filter.Load(func() ([]string, error) {
		return s.store.Links.AllSlugs(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to load slugs: %w", err)
	}
	log.Info().Int("count", n).Uint32("estimated", s.filter.ApproximateSize()).Msg("slug filter initialized")
	return nil
}

func (s *LinkService) invalidate(ctx context.Context, slugs ...string) {
	if err := s.cache.Delete(ctx, slugs...); err != nil {
		log.Warn().Err(err).Strs("slugs", slugs).Msg("link cache invalidation failed")
	}
}

func validateLinkInput(in LinkInput, needPassword bool) error {
	if err := utils.ValidateTitle(in.Title); err != nil {
		return invalid("title", err)
	}
	if err := utils.ValidateURL(in.LongURL); err != nil {
		return invalid("longUrl", err)
	}
	if in.CustomSlug != "" {
		if err := utils.ValidateSlug(in.CustomSlug); err != nil {
			return invalid("customSlug", err)
		}
	}
	if in.UsePassword && needPassword {
		if err := utils.ValidatePassword(in.Password); err != nil {
			return invalid("password", err)
		}
	}
	return nil
}
