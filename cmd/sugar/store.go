package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"sugar/internal/adapter/memory"
	"sugar/internal/adapter/postgres"
	"sugar/internal/config"
	"sugar/internal/domain"
)

// store bundles the repositories of one backend.
type store struct {
	readings domain.ReadingRepository
	details  domain.UserDetailsRepository
	users    domain.UserRepository
	sessions domain.SessionRepository
	ping     func(ctx context.Context) error
	close    func() error
}

func (s *store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func (s *store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// openStore connects to PostgreSQL when a database URL is configured and
// falls back to a process-local store otherwise.
func openStore(cfg *config.Config, log *zap.Logger) (*store, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		db := memory.New()
		return &store{readings: db, details: db, users: db, sessions: db.NewSessionRepo()}, nil
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	return &store{
		readings: db,
		details:  db,
		users:    db,
		sessions: postgres.NewSessionRepo(db),
		ping:     db.Ping,
		close:    db.Close,
	}, nil
}
