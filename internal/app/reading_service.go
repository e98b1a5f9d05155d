package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"sugar/internal/domain"
	"sugar/internal/metrics"
	"sugar/internal/validation"
)

// ErrNoDetails indicates the owner has not set a timezone yet, so a wall-clock
// reading cannot be localized.
var ErrNoDetails = errors.New("user details not set: save a timezone first")

// ReadingInput is the user-entered form of a reading.
type ReadingInput struct {
	ObservedDate string  `json:"observedDate" validate:"required"`
	ObservedTime string  `json:"observedTime" validate:"required"`
	Glucose      float64 `json:"glucose" validate:"gt=0,lte=2000"`
	Unit         string  `json:"unit" validate:"omitempty,oneof=mg/dL mmol/L"`
	Notes        string  `json:"notes" validate:"max=500"`
}

// ReadingService encapsulates the reading use cases.
type ReadingService struct {
	readings domain.ReadingRepository
	details  domain.UserDetailsRepository
	now      func() time.Time
	log      *zap.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewReadingService creates a ReadingService backed by the given repositories.
func NewReadingService(readings domain.ReadingRepository, details domain.UserDetailsRepository) *ReadingService {
	return &ReadingService{
		readings: readings,
		details:  details,
		now:      time.Now,
		log:      zap.NewNop(),
		tracer:   otel.Tracer("sugar/readings"),
	}
}

// WithClock replaces the time source used for the default query window.
func (s *ReadingService) WithClock(now func() time.Time) *ReadingService {
	s.now = now
	return s
}

// WithLogger sets the logger.
func (s *ReadingService) WithLogger(l *zap.Logger) *ReadingService {
	s.log = l
	return s
}

// WithMetrics sets the metrics sink.
func (s *ReadingService) WithMetrics(m *metrics.Metrics) *ReadingService {
	s.metrics = m
	return s
}

// List returns every reading in the caller's scope, soft-deleted ones
// included. A non-empty unit converts glucose values.
func (s *ReadingService) List(ctx context.Context, caller domain.Caller, unit string) (items []domain.Reading, err error) {
	ctx, span := s.start(ctx, "ReadingService.List", caller)
	defer func() { endSpan(span, err) }()

	f, err := s.scope(caller, domain.ScopeOptions{})
	if err != nil {
		return nil, err
	}
	items, err = s.readings.ListReadings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return convertReadings(items, unit)
}

// Span returns the non-deleted readings in scope observed in the last daysAgo
// days. When daysAgo <= 0 the window starts at the earliest reading on record.
func (s *ReadingService) Span(ctx context.Context, caller domain.Caller, daysAgo int, unit string) (items []domain.Reading, err error) {
	ctx, span := s.start(ctx, "ReadingService.Span", caller)
	span.SetAttributes(attribute.Int("days_ago", daysAgo))
	defer func() { endSpan(span, err) }()

	if _, err := s.scope(caller, domain.ScopeOptions{}); err != nil {
		return nil, err
	}

	var start *time.Time
	if daysAgo > 0 {
		t := s.now().UTC().AddDate(0, 0, -daysAgo)
		start = &t
	} else {
		start, err = s.readings.EarliestObservedAt(ctx)
		if err != nil {
			return nil, fmt.Errorf("earliest reading: %w", err)
		}
	}

	f, err := s.scope(caller, domain.ScopeOptions{WindowStart: start, OnlyNotDeleted: true})
	if err != nil {
		return nil, err
	}
	items, err = s.readings.ListReadings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return convertReadings(items, unit)
}

// Get returns one non-deleted reading in the caller's scope.
func (s *ReadingService) Get(ctx context.Context, caller domain.Caller, id int64) (r *domain.Reading, err error) {
	ctx, span := s.start(ctx, "ReadingService.Get", caller)
	span.SetAttributes(attribute.Int64("reading_id", id))
	defer func() { endSpan(span, err) }()

	return s.get(ctx, caller, id)
}

// Create normalizes in against the caller's details and stores it, capturing
// the caller's current weight.
func (s *ReadingService) Create(ctx context.Context, caller domain.Caller, in ReadingInput) (r *domain.Reading, err error) {
	ctx, span := s.start(ctx, "ReadingService.Create", caller)
	defer func() { endSpan(span, err) }()

	if caller.Role == domain.RoleAnonymous {
		s.denied()
		return nil, domain.ErrUnauthorized
	}
	if err := validation.Validate(in); err != nil {
		return nil, err
	}

	details, err := s.ownerDetails(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	n, err := s.normalize(in, details)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	reading := domain.Reading{
		UserID:       caller.UserID,
		ObservedAt:   n.ObservedAt,
		Glucose:      in.Glucose,
		Unit:         unitOrDefault(in.Unit),
		Notes:        strings.TrimSpace(in.Notes),
		AgeAtReading: n.AgeYears,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if details.Weight > 0 {
		w := details.Weight
		reading.WeightAtReading = &w
	}

	id, err := s.readings.CreateReading(ctx, reading)
	if err != nil {
		return nil, fmt.Errorf("create reading: %w", err)
	}
	reading.ID = id

	if s.metrics != nil {
		s.metrics.ReadingsCreated.Inc()
	}
	s.log.Info("reading created",
		zap.Int64("reading_id", id),
		zap.Int64("user_id", caller.UserID),
		zap.Time("observed_at", reading.ObservedAt),
	)
	return &reading, nil
}

// Update re-normalizes in against the owner's details. The weight snapshot
// taken at creation and the owner are left unchanged.
func (s *ReadingService) Update(ctx context.Context, caller domain.Caller, id int64, in ReadingInput) (r *domain.Reading, err error) {
	ctx, span := s.start(ctx, "ReadingService.Update", caller)
	span.SetAttributes(attribute.Int64("reading_id", id))
	defer func() { endSpan(span, err) }()

	existing, err := s.get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := validation.Validate(in); err != nil {
		return nil, err
	}

	details, err := s.ownerDetails(ctx, existing.UserID)
	if err != nil {
		return nil, err
	}
	n, err := s.normalize(in, details)
	if err != nil {
		return nil, err
	}

	existing.ObservedAt = n.ObservedAt
	existing.AgeAtReading = n.AgeYears
	existing.Glucose = in.Glucose
	existing.Unit = unitOrDefault(in.Unit)
	existing.Notes = strings.TrimSpace(in.Notes)
	existing.UpdatedAt = s.now().UTC()

	if err := s.readings.UpdateReading(ctx, *existing); err != nil {
		return nil, fmt.Errorf("update reading: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ReadingsUpdated.Inc()
	}
	s.log.Info("reading updated",
		zap.Int64("reading_id", id),
		zap.Int64("user_id", existing.UserID),
		zap.Int64("by", caller.UserID),
	)
	return existing, nil
}

// Delete soft-deletes a reading in the caller's scope.
func (s *ReadingService) Delete(ctx context.Context, caller domain.Caller, id int64) (err error) {
	ctx, span := s.start(ctx, "ReadingService.Delete", caller)
	span.SetAttributes(attribute.Int64("reading_id", id))
	defer func() { endSpan(span, err) }()

	existing, err := s.get(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.readings.SoftDeleteReading(ctx, existing.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("delete reading: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ReadingsDeleted.Inc()
	}
	s.log.Info("reading deleted", zap.Int64("reading_id", id), zap.Int64("by", caller.UserID))
	return nil
}

func (s *ReadingService) get(ctx context.Context, caller domain.Caller, id int64) (*domain.Reading, error) {
	f, err := s.scope(caller, domain.ScopeOptions{TargetID: &id, OnlyNotDeleted: true})
	if err != nil {
		return nil, err
	}
	items, err := s.readings.ListReadings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("get reading: %w", err)
	}
	if len(items) == 0 {
		return nil, domain.ErrNotFound
	}
	return &items[0], nil
}

func (s *ReadingService) scope(caller domain.Caller, opts domain.ScopeOptions) (domain.ReadingFilter, error) {
	f, err := domain.ResolveScope(caller, opts)
	if err != nil {
		s.denied()
	}
	return f, err
}

func (s *ReadingService) denied() {
	if s.metrics != nil {
		s.metrics.ScopeDenied.Inc()
	}
}

func (s *ReadingService) ownerDetails(ctx context.Context, userID int64) (*domain.UserDetails, error) {
	details, err := s.details.GetUserDetails(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user details: %w", err)
	}
	if details == nil {
		return nil, ErrNoDetails
	}
	return details, nil
}

func (s *ReadingService) normalize(in ReadingInput, details *domain.UserDetails) (domain.Normalized, error) {
	n, err := domain.Normalize(in.ObservedDate, in.ObservedTime, details.Timezone, details.DateOfBirth)
	if err != nil && s.metrics != nil {
		s.metrics.NormalizeErrors.WithLabelValues(normalizeReason(err)).Inc()
	}
	return n, err
}

func (s *ReadingService) start(ctx context.Context, name string, caller domain.Caller) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("caller.role", caller.Role.String()),
		attribute.Int64("caller.user_id", caller.UserID),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func normalizeReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidDate):
		return "date"
	case errors.Is(err, domain.ErrInvalidTime):
		return "time"
	case errors.Is(err, domain.ErrInvalidTimezone):
		return "timezone"
	default:
		return "other"
	}
}

func unitOrDefault(u string) string {
	if u == "" {
		return domain.UnitMgDL
	}
	return u
}

func convertReadings(items []domain.Reading, unit string) ([]domain.Reading, error) {
	if unit == "" {
		return items, nil
	}
	if !domain.ValidUnit(unit) {
		return nil, fmt.Errorf("%w: unit must be %q or %q", domain.ErrValidation, domain.UnitMgDL, domain.UnitMmolL)
	}
	for i := range items {
		if items[i].Unit != unit {
			items[i].Glucose = domain.ConvertGlucose(items[i].Glucose, items[i].Unit, unit)
			items[i].Unit = unit
		}
	}
	return items, nil
}
