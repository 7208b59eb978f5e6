package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Monthlyaway/ishort/internal/cache"
	"github.com/Monthlyaway/ishort/internal/filter"
	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/Monthlyaway/ishort/internal/repository"
	"github.com/Monthlyaway/ishort/internal/utils"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store    *repository.Store
	cache    *cache.RedisCache
	redis    *miniredis.Miniredis
	filter   *filter.SlugFilter
	links    *LinkService
	resolver *Resolver
	admin    *AdminService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	require.NoError(t, utils.InitSnowflake(1, 1))

	db, err := repository.OpenInMemory(fmt.Sprintf("svc_%s_%d", t.Name(), time.Now().UnixNano()))
	require.NoError(t, err)
	store := repository.NewStore(db)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rc := cache.NewRedisCacheFromClient(client, time.Hour)

	slugs := filter.NewSlugFilter(10000, 0.001)
	env := &testEnv{
		store:    store,
		cache:    rc,
		redis:    mr,
		filter:   slugs,
		links:    NewLinkService(store, rc, slugs, "http://localhost:3000"),
		resolver: NewResolver(store, rc, slugs),
		admin:    NewAdminService(store, rc),
	}
	t.Cleanup(func() {
		env.resolver.Wait()
		_ = client.Close()
		_ = store.Close()
	})
	return env
}

func (e *testEnv) createUser(t *testing.T, uid, email, role string) *model.UserAccount {
	t.Helper()
	hash, err := utils.HashPassword("password1")
	require.NoError(t, err)
	u := &model.UserAccount{
		UID:          uid,
		DisplayName:  "User " + uid,
		Email:        email,
		Role:         role,
		Plan:         model.PlanFree,
		Status:       model.StatusActive,
		SignType:     model.SignTypeCredential,
		PasswordHash: hash,
	}
	require.NoError(t, e.store.Users.Create(context.Background(), u))
	return u
}

func (e *testEnv) reloadLink(t *testing.T, id int64) *model.ShortLink {
	t.Helper()
	l, err := e.store.Links.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, l)
	return l
}
