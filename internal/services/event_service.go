package services

import (
	"context"
	"strings"
	"time"

	"github.com/djeeyo/nmreggae/internal/cache"
	"github.com/djeeyo/nmreggae/internal/calendar"
	"github.com/djeeyo/nmreggae/internal/messaging"
	"github.com/djeeyo/nmreggae/internal/metrics"
	"github.com/djeeyo/nmreggae/internal/models"
	"github.com/djeeyo/nmreggae/internal/repositories"
	"github.com/djeeyo/nmreggae/internal/tracing"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultWindowMonths is the length of the listing window when no end is given
const DefaultWindowMonths = 6

// Service errors
var (
	ErrNotFound          = errors.New("event not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrSearchUnavailable = errors.New("search is not configured")
)

// EventStore is the persistence the service needs
type EventStore interface {
	ListBetween(ctx context.Context, start, end time.Time) ([]models.Event, error)
	ListAll(ctx context.Context) ([]models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, events []models.Event, snapshot func([]models.Event) error) ([]models.Event, error)
}

// WindowCache caches listing windows, invalidated by a generation counter
type WindowCache interface {
	Enabled() bool
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Generation(ctx context.Context) (int64, error)
	BumpGeneration(ctx context.Context) error
}

// SearchIndex mirrors the event table for full-text search
type SearchIndex interface {
	IndexEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, id string) error
	Reindex(ctx context.Context, events []models.Event) error
	SearchEvents(ctx context.Context, text string) ([]models.Event, error)
}

// Publisher sends change notifications
type Publisher interface {
	Publish(ctx context.Context, n messaging.Notification) error
}

// Options carries the optional collaborators of EventService. Nil values
// disable the matching feature.
type Options struct {
	Cache        WindowCache
	Search       SearchIndex
	Publisher    Publisher
	Tracer       tracing.Tracer
	Metrics      *metrics.Metrics
	Location     *time.Location
	WindowMonths int
	BackupDir    string
}

// EventService handles event business logic
type EventService struct {
	store        EventStore
	cache        WindowCache
	search       SearchIndex
	publisher    Publisher
	tracer       tracing.Tracer
	metrics      *metrics.Metrics
	location     *time.Location
	windowMonths int
	backupDir    string
	now          func() time.Time
}

// NewEventService creates a new event service
func NewEventService(store EventStore, opts Options) *EventService {
	s := &EventService{
		store:        store,
		cache:        opts.Cache,
		search:       opts.Search,
		publisher:    opts.Publisher,
		tracer:       opts.Tracer,
		metrics:      opts.Metrics,
		location:     opts.Location,
		windowMonths: opts.WindowMonths,
		backupDir:    opts.BackupDir,
		now:          time.Now,
	}
	if s.tracer == nil {
		s.tracer = tracing.Noop()
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.windowMonths <= 0 {
		s.windowMonths = DefaultWindowMonths
	}
	if s.cache != nil && !s.cache.Enabled() {
		s.cache = nil
	}
	return s
}

// Today is the current calendar date in the configured timezone
func (s *EventService) Today() time.Time {
	return calendar.Today(s.now(), s.location)
}

// Window fills in the default bounds: start defaults to today, end to
// today plus the configured number of months
func (s *EventService) Window(start, end *time.Time) (time.Time, time.Time) {
	defStart, defEnd := calendar.Window(s.Today(), s.windowMonths)
	if start != nil {
		defStart = models.DateOnly(*start)
	}
	if end != nil {
		defEnd = models.DateOnly(*end)
	}
	return defStart, defEnd
}

// ListEvents returns events in the inclusive window ordered by date, then city
func (s *EventService) ListEvents(ctx context.Context, start, end *time.Time) ([]models.Event, error) {
	span := s.tracer.StartSegment(ctx, "EventService.ListEvents")
	defer span.End()

	from, to := s.Window(start, end)
	if from.After(to) {
		return []models.Event{}, nil
	}

	key, cached := s.cachedWindow(ctx, from, to)
	if cached != nil {
		return cached, nil
	}

	events, err := s.store.ListBetween(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	if events == nil {
		events = []models.Event{}
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, events); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to cache event window")
		}
	}

	return events, nil
}

// cachedWindow returns the cache key for the window and, on a hit, the
// cached events. An empty key means caching is off for this call.
func (s *EventService) cachedWindow(ctx context.Context, from, to time.Time) (string, []models.Event) {
	if s.cache == nil {
		return "", nil
	}

	gen, err := s.cache.Generation(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read cache generation")
		return "", nil
	}

	key := cache.GetWindowCacheKey(gen, calendar.FormatDate(from), calendar.FormatDate(to))
	var events []models.Event
	if err := s.cache.Get(ctx, key, &events); err != nil {
		s.metrics.RecordCacheLookup(false)
		return key, nil
	}
	s.metrics.RecordCacheLookup(true)
	if events == nil {
		events = []models.Event{}
	}
	return key, events
}

// Calendar groups the window by month and city and lists the month periods
// the public page navigates through
func (s *EventService) Calendar(ctx context.Context, start, end *time.Time) (*calendar.Calendar, []calendar.MonthPeriod, error) {
	events, err := s.ListEvents(ctx, start, end)
	if err != nil {
		return nil, nil, err
	}
	return calendar.Group(events), calendar.RollingMonths(s.Today(), s.windowMonths), nil
}

// GetEvent returns one event
func (s *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	span := s.tracer.StartSegment(ctx, "EventService.GetEvent")
	defer span.End()

	event, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "failed to get event")
	}
	return event, nil
}

// CreateEvent validates input and stores a new event
func (s *EventService) CreateEvent(ctx context.Context, input models.EventInput) (*models.Event, error) {
	span := s.tracer.StartSegment(ctx, "EventService.CreateEvent")
	defer span.End()

	input.TicketsURL = blankToNil(input.TicketsURL)
	if err := models.ValidateStruct(input); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}

	date, err := calendar.ParseDate(input.Date)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}

	event := &models.Event{
		Date:         date,
		OriginalDate: blankToNil(input.OriginalDate),
		DayOfWeek:    strings.TrimSpace(input.DayOfWeek),
		Venue:        strings.TrimSpace(input.Venue),
		EventName:    strings.TrimSpace(input.EventName),
		Type:         strings.TrimSpace(input.Type),
		TicketsURL:   input.TicketsURL,
		City:         strings.TrimSpace(input.City),
		State:        strings.TrimSpace(input.State),
		Country:      strings.TrimSpace(input.Country),
	}
	event.ApplyDefaults()

	if err := s.store.Create(ctx, event); err != nil {
		return nil, errors.Wrap(err, "failed to create event")
	}

	log.Info().Str("event_id", event.ID).Str("date", calendar.FormatDate(event.Date)).Msg("event created")
	s.afterWrite(ctx, messaging.TypeEventCreated, event)
	return event, nil
}

// UpdateEvent applies a partial update. Changing the date without a
// weekday recomputes the weekday.
func (s *EventService) UpdateEvent(ctx context.Context, id string, patch models.EventPatch) (*models.Event, error) {
	span := s.tracer.StartSegment(ctx, "EventService.UpdateEvent")
	defer span.End()

	if patch.TicketsURL != nil && strings.TrimSpace(*patch.TicketsURL) == "" {
		// An explicit empty string clears the link.
		empty := ""
		patch.TicketsURL = &empty
	}
	if err := models.ValidateStruct(patchForValidation(patch)); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}

	event, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "failed to get event")
	}

	if patch.Date != nil {
		date, err := calendar.ParseDate(*patch.Date)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidInput, err.Error())
		}
		if !date.Equal(event.Date) && patch.DayOfWeek == nil {
			event.DayOfWeek = date.Weekday().String()
		}
		event.Date = date
	}
	if patch.OriginalDate != nil {
		event.OriginalDate = blankToNil(patch.OriginalDate)
	}
	if patch.DayOfWeek != nil {
		event.DayOfWeek = strings.TrimSpace(*patch.DayOfWeek)
	}
	setString(&event.Venue, patch.Venue)
	setString(&event.EventName, patch.EventName)
	setString(&event.Type, patch.Type)
	setString(&event.City, patch.City)
	setString(&event.State, patch.State)
	setString(&event.Country, patch.Country)
	if patch.TicketsURL != nil {
		event.TicketsURL = blankToNil(patch.TicketsURL)
	}
	event.ApplyDefaults()

	if err := s.store.Update(ctx, event); err != nil {
		return nil, s.storeError(err, "failed to update event")
	}

	log.Info().Str("event_id", event.ID).Msg("event updated")
	s.afterWrite(ctx, messaging.TypeEventUpdated, event)
	return event, nil
}

// DeleteEvent removes one event
func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	span := s.tracer.StartSegment(ctx, "EventService.DeleteEvent")
	defer span.End()

	if err := s.store.Delete(ctx, id); err != nil {
		return s.storeError(err, "failed to delete event")
	}

	log.Info().Str("event_id", id).Msg("event deleted")
	s.afterWrite(ctx, messaging.TypeEventDeleted, &models.Event{ID: id})
	return nil
}

// SearchEvents runs a free-text search against the index
func (s *EventService) SearchEvents(ctx context.Context, text string) ([]models.Event, error) {
	span := s.tracer.StartSegment(ctx, "EventService.SearchEvents")
	defer span.End()

	if s.search == nil {
		return nil, ErrSearchUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.Wrap(ErrInvalidInput, "query is required")
	}

	events, err := s.search.SearchEvents(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search events")
	}
	return events, nil
}

// Reindex rebuilds the search index from the store
func (s *EventService) Reindex(ctx context.Context) (int, error) {
	if s.search == nil {
		return 0, ErrSearchUnavailable
	}

	events, err := s.store.ListAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list events for reindex")
	}
	if err := s.search.Reindex(ctx, events); err != nil {
		return 0, errors.Wrap(err, "failed to reindex events")
	}
	return len(events), nil
}

// afterWrite invalidates the cache, updates the index and publishes a
// notification. Each step only logs on failure.
func (s *EventService) afterWrite(ctx context.Context, kind string, event *models.Event) {
	s.invalidateCache(ctx)

	if s.search != nil {
		var err error
		if kind == messaging.TypeEventDeleted {
			err = s.search.DeleteEvent(ctx, event.ID)
		} else {
			err = s.search.IndexEvent(ctx, event)
		}
		if err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("failed to update search index")
		}
	}

	s.publish(ctx, messaging.Notification{Type: kind, EventID: event.ID})
}

func (s *EventService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.BumpGeneration(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate event cache")
	}
}

func (s *EventService) publish(ctx context.Context, n messaging.Notification) {
	if s.publisher == nil {
		return
	}
	n.Time = s.now().UTC()
	err := s.publisher.Publish(ctx, n)
	s.metrics.RecordPublish(n.Type, err == nil)
	if err != nil {
		log.Warn().Err(err).Str("type", n.Type).Msg("failed to publish change notification")
	}
}

// storeError maps repository sentinels onto service errors
func (s *EventService) storeError(err error, msg string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

// patchForValidation drops an empty tickets_url, which clears the field
// and must not fail the url rule
func patchForValidation(p models.EventPatch) models.EventPatch {
	if p.TicketsURL != nil && *p.TicketsURL == "" {
		p.TicketsURL = nil
	}
	return p
}
