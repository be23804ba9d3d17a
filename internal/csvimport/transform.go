package csvimport

import (
	"strings"

	"github.com/djeeyo/nmreggae/internal/calendar"
	"github.com/djeeyo/nmreggae/internal/models"
)

// Canonical column names
const (
	FieldDate         = "date"
	FieldOriginalDate = "original_date"
	FieldDayOfWeek    = "day_of_week"
	FieldVenue        = "venue"
	FieldEventName    = "event_name"
	FieldType         = "type"
	FieldTicketsURL   = "tickets_url"
	FieldCity         = "city"
	FieldState        = "state"
	FieldCountry      = "country"
)

// fieldAliases lists, per canonical field, the accepted header names in
// priority order. Matching ignores case.
var fieldAliases = []struct {
	field   string
	aliases []string
}{
	{FieldDate, []string{"date"}},
	{FieldOriginalDate, []string{"original_date"}},
	{FieldDayOfWeek, []string{"day_of_week"}},
	{FieldVenue, []string{"venue"}},
	{FieldEventName, []string{"event_name", "name"}},
	{FieldType, []string{"type"}},
	{FieldTicketsURL, []string{"tickets_url", "url"}},
	{FieldCity, []string{"city"}},
	{FieldState, []string{"state"}},
	{FieldCountry, []string{"country"}},
}

// Record is one CSV row keyed by header name as written in the file
type Record map[string]string

// Result is the output of Transform
type Result struct {
	Events  []models.Event
	Skipped int
}

// Transform maps raw records onto normalized events. Rows whose date is
// missing or unparsable are dropped and counted in Skipped.
func Transform(records []Record) Result {
	result := Result{Events: make([]models.Event, 0, len(records))}

	for _, record := range records {
		event, ok := transformRecord(record)
		if !ok {
			result.Skipped++
			continue
		}
		result.Events = append(result.Events, event)
	}

	return result
}

func transformRecord(record Record) (models.Event, bool) {
	fields := resolve(record)

	rawDate := fields[FieldDate]
	date, err := calendar.ParseDate(rawDate)
	if err != nil {
		return models.Event{}, false
	}

	// Without an original_date column the raw date is kept; an empty cell
	// in an existing column stays null.
	var originalDate *string
	if value := fields[FieldOriginalDate]; value != "" {
		originalDate = &value
	} else if !hasColumn(record, FieldOriginalDate) {
		originalDate = &rawDate
	}

	event := models.Event{
		Date:         date,
		OriginalDate: originalDate,
		DayOfWeek:    fields[FieldDayOfWeek],
		Venue:        fields[FieldVenue],
		EventName:    fields[FieldEventName],
		Type:         fields[FieldType],
		City:         fields[FieldCity],
		State:        fields[FieldState],
		Country:      fields[FieldCountry],
	}
	if url := fields[FieldTicketsURL]; url != "" {
		event.TicketsURL = &url
	}
	event.ApplyDefaults()

	return event, true
}

// resolve looks up every canonical field in record. Empty values count as
// absent so the next alias, then the default, applies.
func resolve(record Record) map[string]string {
	lowered := make(map[string]string, len(record))
	for key, value := range record {
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		// Two headers differing only in case: keep the first non-empty one.
		if existing, ok := lowered[key]; ok && existing != "" {
			continue
		}
		lowered[key] = value
	}

	fields := make(map[string]string, len(fieldAliases))
	for _, entry := range fieldAliases {
		for _, alias := range entry.aliases {
			if value := lowered[alias]; value != "" {
				fields[entry.field] = value
				break
			}
		}
	}
	return fields
}

// hasColumn reports whether record carries any header alias of field
func hasColumn(record Record, field string) bool {
	for _, entry := range fieldAliases {
		if entry.field != field {
			continue
		}
		for key := range record {
			key = strings.ToLower(strings.TrimSpace(key))
			for _, alias := range entry.aliases {
				if key == alias {
					return true
				}
			}
		}
	}
	return false
}
