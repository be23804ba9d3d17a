package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Defaults applied when a writer leaves the field empty
const (
	DefaultType    = "Live Show"
	DefaultState   = "NM"
	DefaultCountry = "USA"
)

// Event is one scheduled occurrence on the calendar
type Event struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Date         time.Time `gorm:"type:date;not null;index" json:"date"`
	OriginalDate *string   `json:"original_date"`
	DayOfWeek    string    `gorm:"not null" json:"day_of_week"`
	Venue        string    `gorm:"not null;default:''" json:"venue"`
	EventName    string    `gorm:"not null;default:''" json:"event_name"`
	Type         string    `gorm:"not null;default:'Live Show'" json:"type"`
	TicketsURL   *string   `json:"tickets_url"`
	City         string    `gorm:"not null;default:'';index" json:"city"`
	State        string    `gorm:"not null;default:'NM'" json:"state"`
	Country      string    `gorm:"not null;default:'USA'" json:"country"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for the Event model
func (Event) TableName() string {
	return "events"
}

// BeforeCreate assigns an id when the caller did not
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave keeps the stored weekday in line with the date
func (e *Event) BeforeSave(tx *gorm.DB) error {
	e.Date = DateOnly(e.Date)
	if e.DayOfWeek == "" {
		e.DayOfWeek = e.Date.Weekday().String()
	}
	return nil
}

// ApplyDefaults fills the optional descriptive fields
func (e *Event) ApplyDefaults() {
	if e.Type == "" {
		e.Type = DefaultType
	}
	if e.State == "" {
		e.State = DefaultState
	}
	if e.Country == "" {
		e.Country = DefaultCountry
	}
	if e.DayOfWeek == "" && !e.Date.IsZero() {
		e.DayOfWeek = e.Date.Weekday().String()
	}
}

// DateOnly truncates t to its calendar date at midnight UTC
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SetupModels runs the schema migration for all models
func SetupModels(db *gorm.DB) error {
	return db.AutoMigrate(&Event{})
}
