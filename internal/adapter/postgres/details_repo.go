package postgres

import (
	"context"
	"database/sql"
	"errors"

	"sugar/internal/domain"
)

var _ domain.UserDetailsRepository = (*DB)(nil)

// GetUserDetails returns the details for userID, or nil if none are stored.
func (d *DB) GetUserDetails(ctx context.Context, userID int64) (*domain.UserDetails, error) {
	var (
		u   domain.UserDetails
		dob sql.NullTime
	)
	err := d.sql.QueryRowContext(ctx,
		"SELECT user_id, timezone, date_of_birth, weight FROM user_details WHERE user_id = $1;",
		userID,
	).Scan(&u.UserID, &u.Timezone, &dob, &u.Weight)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if dob.Valid {
		t := dob.Time
		u.DateOfBirth = &t
	}
	return &u, nil
}

// SaveUserDetails inserts or replaces the details row for u.UserID.
func (d *DB) SaveUserDetails(ctx context.Context, u domain.UserDetails) error {
	var dob sql.NullTime
	if u.DateOfBirth != nil {
		dob = sql.NullTime{Time: *u.DateOfBirth, Valid: true}
	}
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO user_details(user_id, timezone, date_of_birth, weight) VALUES($1, $2, $3, $4) ON CONFLICT (user_id) DO UPDATE SET timezone=EXCLUDED.timezone, date_of_birth=EXCLUDED.date_of_birth, weight=EXCLUDED.weight;",
		u.UserID, u.Timezone, dob, u.Weight,
	)
	return err
}
