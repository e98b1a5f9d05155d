package domain

import "errors"

var (
	// ErrInvalidDate indicates an observed date that is not a valid YYYY-MM-DD calendar date.
	ErrInvalidDate = errors.New("invalid date: expected YYYY-MM-DD")
	// ErrInvalidTime indicates an observed time that is not a valid HH:MM wall-clock time.
	ErrInvalidTime = errors.New("invalid time: expected HH:MM")
	// ErrInvalidTimezone indicates a timezone name unknown to the IANA database.
	ErrInvalidTimezone = errors.New("invalid timezone")
	// ErrUnauthorized indicates the caller is not authenticated.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates the record does not exist or is outside the caller's scope.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a request that failed field validation.
	ErrValidation = errors.New("validation failed")
)
