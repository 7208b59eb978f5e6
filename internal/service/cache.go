package service

import (
	"context"

	"github.com/Monthlyaway/ishort/internal/model"
)

// LinkCache is a slug-keyed cache of links. Implementations may be remote,
// so every error is treated as a miss by callers.
type LinkCache interface {
	Get(ctx context.Context, slug string) (*model.ShortLink, error)
	Set(ctx context.Context, link *model.ShortLink) error
	Delete(ctx context.Context, slugs ...string) error
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*model.ShortLink, error) { return nil, nil }
func (nopCache) Set(context.Context, *model.ShortLink) error           { return nil }
func (nopCache) Delete(context.Context, ...string) error               { return nil }

func cacheOrNop(c LinkCache) LinkCache {
	if c == nil {
		return nopCache{}
	}
	return c
}
