package models

import (
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// EventInput is the body accepted when creating an event
type EventInput struct {
	Date         string  `json:"date" validate:"required"`
	OriginalDate *string `json:"original_date"`
	DayOfWeek    string  `json:"day_of_week" validate:"omitempty,max=16"`
	Venue        string  `json:"venue" validate:"max=255"`
	EventName    string  `json:"event_name" validate:"max=255"`
	Type         string  `json:"type" validate:"max=100"`
	TicketsURL   *string `json:"tickets_url" validate:"omitempty,url"`
	City         string  `json:"city" validate:"max=100"`
	State        string  `json:"state" validate:"max=50"`
	Country      string  `json:"country" validate:"max=50"`
}

// EventPatch is the body accepted when updating an event; nil fields are left alone
type EventPatch struct {
	Date         *string `json:"date" validate:"omitempty,min=1"`
	OriginalDate *string `json:"original_date"`
	DayOfWeek    *string `json:"day_of_week" validate:"omitempty,max=16"`
	Venue        *string `json:"venue" validate:"omitempty,max=255"`
	EventName    *string `json:"event_name" validate:"omitempty,max=255"`
	Type         *string `json:"type" validate:"omitempty,max=100"`
	TicketsURL   *string `json:"tickets_url" validate:"omitempty,url"`
	City         *string `json:"city" validate:"omitempty,max=100"`
	State        *string `json:"state" validate:"omitempty,max=50"`
	Country      *string `json:"country" validate:"omitempty,max=50"`
}

// ValidateStruct validates a struct using validation tags
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
