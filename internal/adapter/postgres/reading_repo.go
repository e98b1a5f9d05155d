package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sugar/internal/domain"
)

var _ domain.ReadingRepository = (*DB)(nil)

const readingColumns = "id, user_id, observed_at, glucose, unit, notes, weight_at_reading, age_at_reading, is_deleted, created_at, updated_at"

// whereClause compiles f into a WHERE clause with positional arguments.
func whereClause(f domain.ReadingFilter) (string, []any) {
	if f.None {
		return " WHERE FALSE", nil
	}

	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.ID != nil {
		add("id = $%d", *f.ID)
	}
	if f.Since != nil {
		add("observed_at >= $%d", f.Since.UTC())
	}
	if f.OnlyNotDeleted {
		conds = append(conds, "NOT is_deleted")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListReadings returns the readings matching f, newest observation first.
func (d *DB) ListReadings(ctx context.Context, f domain.ReadingFilter) ([]domain.Reading, error) {
	where, args := whereClause(f)
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+readingColumns+" FROM readings"+where+" ORDER BY observed_at DESC, id DESC;",
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Reading, 0)
	for rows.Next() {
		var (
			r      domain.Reading
			weight sql.NullFloat64
			age    sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.ObservedAt, &r.Glucose, &r.Unit, &r.Notes,
			&weight, &age, &r.IsDeleted, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if weight.Valid {
			w := weight.Float64
			r.WeightAtReading = &w
		}
		if age.Valid {
			a := int(age.Int64)
			r.AgeAtReading = &a
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateReading inserts r and returns its new ID.
func (d *DB) CreateReading(ctx context.Context, r domain.Reading) (int64, error) {
	var id int64
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO readings(user_id, observed_at, glucose, unit, notes, weight_at_reading, age_at_reading, is_deleted, created_at, updated_at) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id;",
		r.UserID, r.ObservedAt.UTC(), r.Glucose, r.Unit, r.Notes,
		nullFloat(r.WeightAtReading), nullInt(r.AgeAtReading), r.IsDeleted,
		r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	).Scan(&id)
	return id, err
}

// UpdateReading overwrites the mutable columns of the reading with r.ID.
func (d *DB) UpdateReading(ctx context.Context, r domain.Reading) error {
	res, err := d.sql.ExecContext(ctx,
		"UPDATE readings SET user_id=$2, observed_at=$3, glucose=$4, unit=$5, notes=$6, weight_at_reading=$7, age_at_reading=$8, updated_at=$9 WHERE id=$1;",
		r.ID, r.UserID, r.ObservedAt.UTC(), r.Glucose, r.Unit, r.Notes,
		nullFloat(r.WeightAtReading), nullInt(r.AgeAtReading), r.UpdatedAt.UTC(),
	)
	return expectOne(res, err)
}

// SoftDeleteReading flags a reading as deleted.
func (d *DB) SoftDeleteReading(ctx context.Context, id int64, at time.Time) error {
	res, err := d.sql.ExecContext(ctx,
		"UPDATE readings SET is_deleted=TRUE, updated_at=$2 WHERE id=$1;",
		id, at.UTC(),
	)
	return expectOne(res, err)
}

// EarliestObservedAt returns the minimum observed_at over all readings.
func (d *DB) EarliestObservedAt(ctx context.Context) (*time.Time, error) {
	var t sql.NullTime
	if err := d.sql.QueryRowContext(ctx, "SELECT MIN(observed_at) FROM readings;").Scan(&t); err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
