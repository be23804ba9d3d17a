package repositories

import (
	"context"
	"time"

	"github.com/djeeyo/nmreggae/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// insertBatchSize bounds the rows per INSERT statement during a replace
const insertBatchSize = 500

// EventRepository provides access to event data
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// ListBetween returns events with start <= date <= end ordered by date, then city
func (r *EventRepository) ListBetween(ctx context.Context, start, end time.Time) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", models.DateOnly(start), models.DateOnly(end)).
		Order("date ASC").
		Order("city ASC").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	return events, nil
}

// ListAll returns every event ordered by date, then city
func (r *EventRepository) ListAll(ctx context.Context) ([]models.Event, error) {
	return listAll(r.db.WithContext(ctx))
}

func listAll(db *gorm.DB) ([]models.Event, error) {
	var events []models.Event
	if err := db.Order("date ASC").Order("city ASC").Find(&events).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list all events")
	}
	return events, nil
}

// Count returns the number of stored events
func (r *EventRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Event{}).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count events")
	}
	return count, nil
}

// GetByID gets a single event
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	var event models.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get event")
	}
	return &event, nil
}

// Create inserts a new event, assigning its id
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return errors.Wrapf(ErrCreateFailed, "event: %v", err)
	}
	return nil
}

// Update writes every column of an existing event
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	if !validID(event.ID) {
		return ErrNotFound
	}
	result := r.db.WithContext(ctx).Model(event).Select("*").Omit("id", "created_at").Updates(event)
	if result.Error != nil {
		return errors.Wrapf(ErrUpdateFailed, "event %s: %v", event.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an event by id
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Event{})
	if result.Error != nil {
		return errors.Wrapf(ErrDeleteFailed, "event %s: %v", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceAll swaps the whole table for events in a single transaction and
// returns the rows that were there before. snapshot, when set, receives the
// previous rows before anything is deleted; an error from it rolls back.
func (r *EventRepository) ReplaceAll(ctx context.Context, events []models.Event, snapshot func([]models.Event) error) ([]models.Event, error) {
	var previous []models.Event

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		previous, err = listAll(tx)
		if err != nil {
			return err
		}

		if snapshot != nil {
			if err := snapshot(previous); err != nil {
				return errors.Wrap(err, "snapshot failed")
			}
		}

		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Event{}).Error; err != nil {
			return errors.Wrapf(ErrDeleteFailed, "events: %v", err)
		}

		if len(events) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&events, insertBatchSize).Error; err != nil {
			return errors.Wrapf(ErrCreateFailed, "events: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to replace events")
	}

	return previous, nil
}

// validID reports whether id can match the uuid primary key. Postgres
// rejects a malformed uuid literal instead of matching nothing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
