package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that share one database handle
type Store struct {
	db     *gorm.DB
	Links  *LinkRepository
	Clicks *ClickRepository
	Users  *UserRepository
	Bans   *BanRepository
}

// NewStore creates a store over db
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:     db,
		Links:  NewLinkRepository(db),
		Clicks: NewClickRepository(db),
		Users:  NewUserRepository(db),
		Bans:   NewBanRepository(db),
	}
}

// Atomic runs fn in a transaction. fn receives a store bound to the transaction.
func (s *Store) Atomic(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the underlying database instance
func (s *Store) GetDB() *gorm.DB {
	return s.db
}
