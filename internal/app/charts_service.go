package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"sugar/internal/domain"
)

// ChartsService encapsulates chart data retrieval use cases.
type ChartsService struct {
	readings domain.ReadingRepository
	details  domain.UserDetailsRepository
	now      func() time.Time
}

// NewChartsService creates a ChartsService backed by the given repositories.
func NewChartsService(readings domain.ReadingRepository, details domain.UserDetailsRepository) *ChartsService {
	return &ChartsService{readings: readings, details: details, now: time.Now}
}

// WithClock replaces the time source.
func (s *ChartsService) WithClock(now func() time.Time) *ChartsService {
	s.now = now
	return s
}

// DayPoint is a single data point returned by GetDaily.
type DayPoint struct {
	Day     string   `json:"day"`
	Count   int      `json:"count"`
	Average *float64 `json:"average"`
	Min     *float64 `json:"min"`
	Max     *float64 `json:"max"`
}

// GetDaily returns per-day glucose statistics of the caller's own readings
// for the last days days, bucketed by the caller's local calendar day and
// converted to unit.
func (s *ChartsService) GetDaily(ctx context.Context, caller domain.Caller, days int, unit string) ([]DayPoint, error) {
	if !domain.ValidUnit(unit) {
		return nil, fmt.Errorf("%w: unit must be %q or %q", domain.ErrValidation, domain.UnitMgDL, domain.UnitMmolL)
	}
	if caller.Role == domain.RoleAnonymous {
		return nil, domain.ErrUnauthorized
	}
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be > 0", domain.ErrValidation)
	}
	if days > 366 {
		days = 366
	}

	loc := time.UTC
	details, err := s.details.GetUserDetails(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if details != nil {
		if l, err := domain.LoadTimezone(details.Timezone); err == nil {
			loc = l
		}
	}

	today := s.now().In(loc)
	first := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -(days - 1))

	uid := caller.UserID
	items, err := s.readings.ListReadings(ctx, domain.ReadingFilter{UserID: &uid, Since: &first, OnlyNotDeleted: true})
	if err != nil {
		return nil, err
	}

	type acc struct {
		sum, min, max float64
		n             int
	}
	buckets := make(map[string]*acc, days)
	for _, r := range items {
		v := domain.ConvertGlucose(r.Glucose, r.Unit, unit)
		day := r.ObservedAt.In(loc).Format(domain.DateLayout)
		a, ok := buckets[day]
		if !ok {
			a = &acc{min: math.Inf(1), max: math.Inf(-1)}
			buckets[day] = a
		}
		a.sum += v
		a.n++
		a.min = math.Min(a.min, v)
		a.max = math.Max(a.max, v)
	}

	points := make([]DayPoint, 0, days)
	for i := 0; i < days; i++ {
		dayStr := first.AddDate(0, 0, i).Format(domain.DateLayout)
		p := DayPoint{Day: dayStr}
		if a, ok := buckets[dayStr]; ok {
			avg, lo, hi := a.sum/float64(a.n), a.min, a.max
			p.Count, p.Average, p.Min, p.Max = a.n, &avg, &lo, &hi
		}
		points = append(points, p)
	}
	return points, nil
}
