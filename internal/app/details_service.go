package app

import (
	"context"
	"fmt"
	"time"

	"sugar/internal/domain"
	"sugar/internal/validation"
)

// DetailsInput is the editable form of a user's details.
type DetailsInput struct {
	Timezone    string  `json:"timezone" validate:"notblank"`
	DateOfBirth string  `json:"dateOfBirth"`
	Weight      float64 `json:"weight" validate:"gte=0,lte=1000"`
}

// DetailsService manages the caller's own profile.
type DetailsService struct {
	repo domain.UserDetailsRepository
	now  func() time.Time
}

// NewDetailsService creates a DetailsService backed by the given repository.
func NewDetailsService(repo domain.UserDetailsRepository) *DetailsService {
	return &DetailsService{repo: repo, now: time.Now}
}

// WithClock replaces the time source used to reject future birth dates.
func (s *DetailsService) WithClock(now func() time.Time) *DetailsService {
	s.now = now
	return s
}

// Get returns the caller's details, or nil if none are stored.
func (s *DetailsService) Get(ctx context.Context, caller domain.Caller) (*domain.UserDetails, error) {
	if caller.Role == domain.RoleAnonymous {
		return nil, domain.ErrUnauthorized
	}
	return s.repo.GetUserDetails(ctx, caller.UserID)
}

// Save validates and stores the caller's details.
func (s *DetailsService) Save(ctx context.Context, caller domain.Caller, in DetailsInput) (*domain.UserDetails, error) {
	if caller.Role == domain.RoleAnonymous {
		return nil, domain.ErrUnauthorized
	}
	d, err := s.parse(caller.UserID, in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveUserDetails(ctx, *d); err != nil {
		return nil, fmt.Errorf("save user details: %w", err)
	}
	return d, nil
}

func (s *DetailsService) parse(userID int64, in DetailsInput) (*domain.UserDetails, error) {
	if err := validation.Validate(in); err != nil {
		return nil, err
	}
	loc, err := domain.LoadTimezone(in.Timezone)
	if err != nil {
		return nil, err
	}
	d := &domain.UserDetails{
		UserID:   userID,
		Timezone: loc.String(),
		Weight:   in.Weight,
	}
	if in.DateOfBirth != "" {
		dob, err := time.Parse(domain.DateLayout, in.DateOfBirth)
		if err != nil {
			return nil, domain.ErrInvalidDate
		}
		if dob.After(s.now()) {
			return nil, fmt.Errorf("%w: dateOfBirth is in the future", domain.ErrValidation)
		}
		d.DateOfBirth = &dob
	}
	return d, nil
}
