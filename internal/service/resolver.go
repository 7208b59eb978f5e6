package service

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Monthlyaway/ishort/internal/filter"
	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/Monthlyaway/ishort/internal/repository"
	"github.com/Monthlyaway/ishort/internal/utils"
	"github.com/rs/zerolog/log"
)

const (
	telemetryTimeout = 5 * time.Second
	maxUserAgent     = 512
)

// Visitor describes who followed a link. UserID and Email are empty for anonymous visitors.
type Visitor struct {
	UserID    string
	Email     string
	UserAgent string
	IP        string
}

// Resolver maps slugs to links and records clicks
type Resolver struct {
	store  *repository.Store
	cache  LinkCache
	filter *filter.SlugFilter
	now    func() time.Time

	inflight sync.WaitGroup
}

// NewResolver creates a new resolver. cache and slugs may be nil. A filter
// miss is only trusted after the filter has been loaded.
func NewResolver(store *repository.Store, cache LinkCache, slugs *filter.SlugFilter) *Resolver {
	return &Resolver{
		store:  store,
		cache:  cacheOrNop(cache),
		filter: slugs,
		now:    time.Now,
	}
}

// Resolve returns the link for slug.
// Lookup order: slug filter, cache, database.
func (r *Resolver) Resolve(ctx context.Context, slug string) (*model.ShortLink, error) {
	if slug == "" {
		return nil, ErrLinkNotFound
	}
	if r.filter != nil && r.filter.Loaded() && !r.filter.MightContain(slug) {
		return nil, ErrLinkNotFound
	}

	cached, err := r.cache.Get(ctx, slug)
	if err != nil {
		log.Warn().Err(err).Str("slug", slug).Msg("link cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	link, err := r.store.Links.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrLinkNotFound
	}

	if err := r.cache.Set(ctx, link); err != nil {
		log.Warn().Err(err).Str("slug", slug).Msg("link cache write failed")
	}
	return link, nil
}

// Unlock checks the password of a protected link
func (r *Resolver) Unlock(link *model.ShortLink, password string) error {
	if !link.IsPasswordProtected {
		return nil
	}
	if !utils.CheckPassword(link.HashedPassword, password) {
		return ErrVerificationFailed
	}
	return nil
}

// RecordClick bumps the click counter and appends a click event in the
// background. Failures are logged and never reach the visitor.
func (r *Resolver) RecordClick(link *model.ShortLink, v Visitor) {
	at := r.now()
	event := &model.ClickEvent{
		URLID:     link.ID,
		ClickedAt: at,
		UserAgent: truncate(v.UserAgent, maxUserAgent),
		IP:        v.IP,
		ShortURL:  link.Slug,
		LongURL:   link.LongURL,
		URLTitle:  link.Title,
	}
	if v.UserID != "" {
		uid, email := v.UserID, v.Email
		event.UserID = &uid
		event.UserEmail = &email
	}

	r.inflight.Add(2)
	go func() {
		defer r.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), telemetryTimeout)
		defer cancel()
		if err := r.store.Links.IncrementClicks(ctx, link.ID, at); err != nil {
			log.Error().Err(err).Str("slug", link.Slug).Msg("failed to increment clicks")
		}
	}()
	go func() {
		defer r.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), telemetryTimeout)
		defer cancel()
		if err := r.store.Clicks.Create(ctx, event); err != nil {
			log.Error().Err(err).Str("slug", link.Slug).Msg("failed to record click event")
		}
	}()
}

// Wait blocks until all in-flight click recording has finished
func (r *Resolver) Wait() {
	r.inflight.Wait()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
