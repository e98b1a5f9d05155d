package domain

import (
	"context"
	"time"
)

// Glucose units accepted for a reading.
const (
	UnitMgDL   = "mg/dL"
	UnitMmolL  = "mmol/L"
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Reading is a timestamped blood glucose measurement owned by one user.
type Reading struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"userId"`
	ObservedAt      time.Time `json:"observedAt"`
	Glucose         float64   `json:"glucose"`
	Unit            string    `json:"unit"`
	Notes           string    `json:"notes"`
	WeightAtReading *float64  `json:"weightAtReading"`
	AgeAtReading    *int      `json:"ageAtReading"`
	IsDeleted       bool      `json:"isDeleted"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// UserDetails holds the per-user profile used to normalize readings.
type UserDetails struct {
	UserID      int64      `json:"userId"`
	Timezone    string     `json:"timezone"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Weight      float64    `json:"weight"`
}

// ReadingRepository is the port for reading persistence.
type ReadingRepository interface {
	// ListReadings returns the readings matching f, newest observation first.
	ListReadings(ctx context.Context, f ReadingFilter) ([]Reading, error)
	CreateReading(ctx context.Context, r Reading) (int64, error)
	UpdateReading(ctx context.Context, r Reading) error
	SoftDeleteReading(ctx context.Context, id int64, at time.Time) error
	// EarliestObservedAt returns the minimum observed_at over all readings,
	// or nil when there are none.
	EarliestObservedAt(ctx context.Context) (*time.Time, error)
}

// UserDetailsRepository is the port for user details persistence.
// GetUserDetails returns (nil, nil) when the user has no details yet.
type UserDetailsRepository interface {
	GetUserDetails(ctx context.Context, userID int64) (*UserDetails, error)
	SaveUserDetails(ctx context.Context, d UserDetails) error
}
