// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"sugar/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu       sync.Mutex
	readings []domain.Reading
	details  map[int64]domain.UserDetails
	users    []*domain.User
	sessions map[string]*domain.Session

	readingIDCounter int64
	userIDCounter    int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		details:  make(map[int64]domain.UserDetails),
		sessions: make(map[string]*domain.Session),
	}
}

// Ensure interfaces are met.
var _ domain.ReadingRepository = (*DB)(nil)
var _ domain.UserDetailsRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- ReadingRepository ---

// ListReadings returns the readings matching f, newest observation first.
func (db *DB) ListReadings(ctx context.Context, f domain.ReadingFilter) ([]domain.Reading, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.Reading, 0)
	for _, r := range db.readings {
		if f.Matches(r) {
			out = append(out, cloneReading(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservedAt.After(out[j].ObservedAt)
	})
	return out, nil
}

// CreateReading stores r under a fresh ID.
func (db *DB) CreateReading(ctx context.Context, r domain.Reading) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.readingIDCounter++
	r.ID = db.readingIDCounter
	db.readings = append(db.readings, cloneReading(r))
	return r.ID, nil
}

// UpdateReading replaces the stored reading with the same ID.
func (db *DB) UpdateReading(ctx context.Context, r domain.Reading) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.readings {
		if db.readings[i].ID == r.ID {
			db.readings[i] = cloneReading(r)
			return nil
		}
	}
	return domain.ErrNotFound
}

// SoftDeleteReading flags a reading as deleted.
func (db *DB) SoftDeleteReading(ctx context.Context, id int64, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.readings {
		if db.readings[i].ID == id {
			db.readings[i].IsDeleted = true
			db.readings[i].UpdatedAt = at
			return nil
		}
	}
	return domain.ErrNotFound
}

// EarliestObservedAt returns the minimum observation time over all readings.
func (db *DB) EarliestObservedAt(ctx context.Context) (*time.Time, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var earliest *time.Time
	for _, r := range db.readings {
		if earliest == nil || r.ObservedAt.Before(*earliest) {
			t := r.ObservedAt
			earliest = &t
		}
	}
	return earliest, nil
}

func cloneReading(r domain.Reading) domain.Reading {
	if r.WeightAtReading != nil {
		w := *r.WeightAtReading
		r.WeightAtReading = &w
	}
	if r.AgeAtReading != nil {
		a := *r.AgeAtReading
		r.AgeAtReading = &a
	}
	return r
}

// --- UserDetailsRepository ---

// GetUserDetails returns the details for userID, or nil if none are stored.
func (db *DB) GetUserDetails(ctx context.Context, userID int64) (*domain.UserDetails, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	d, ok := db.details[userID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// SaveUserDetails inserts or replaces the details for d.UserID.
func (db *DB) SaveUserDetails(ctx context.Context, d domain.UserDetails) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.details[d.UserID] = d
	return nil
}

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, username, passwordHash string, isAdmin bool) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return nil, errors.New("user already exists")
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	db.users = append(db.users, u)
	cp := *u
	return &cp, nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[token]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all sessions expired at now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int64
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
			n++
		}
	}
	return n, nil
}
