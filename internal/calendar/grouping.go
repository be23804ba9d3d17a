package calendar

import (
	"fmt"
	"time"

	"github.com/djeeyo/nmreggae/internal/models"
)

// CityGroup holds one city's events within a month
type CityGroup struct {
	CityName string         `json:"city_name"`
	Events   []models.Event `json:"events"`
}

// MonthGroup holds a month's events bucketed by city
type MonthGroup struct {
	MonthName   string       `json:"month_name"`
	Cities      []*CityGroup `json:"cities"`
	TotalEvents int          `json:"total_events"`

	cityIndex map[string]*CityGroup
}

// City returns the named city group, or nil
func (m *MonthGroup) City(name string) *CityGroup {
	return m.cityIndex[name]
}

// Calendar is the month -> city -> events view of a listing
type Calendar struct {
	Months []*MonthGroup `json:"months"`

	monthIndex map[string]*MonthGroup
}

// Month returns the named month group, or nil
func (c *Calendar) Month(name string) *MonthGroup {
	return c.monthIndex[name]
}

// Group folds an ordered event list into months and cities. Keys keep
// first-occurrence order; months are keyed by English name only, so the same
// month in different years shares one bucket.
func Group(events []models.Event) *Calendar {
	cal := &Calendar{
		Months:     []*MonthGroup{},
		monthIndex: make(map[string]*MonthGroup),
	}

	for _, event := range events {
		monthName := event.Date.Month().String()
		month, ok := cal.monthIndex[monthName]
		if !ok {
			month = &MonthGroup{
				MonthName: monthName,
				Cities:    []*CityGroup{},
				cityIndex: make(map[string]*CityGroup),
			}
			cal.monthIndex[monthName] = month
			cal.Months = append(cal.Months, month)
		}

		city, ok := month.cityIndex[event.City]
		if !ok {
			city = &CityGroup{CityName: event.City}
			month.cityIndex[event.City] = city
			month.Cities = append(month.Cities, city)
		}

		city.Events = append(city.Events, event)
		month.TotalEvents++
	}

	return cal
}

// MonthPeriod is one entry of the month navigation
type MonthPeriod struct {
	Name  string `json:"name"`
	Year  int    `json:"year"`
	Value string `json:"value"`
}

// RollingMonths returns n consecutive months starting with today's month
func RollingMonths(today time.Time, n int) []MonthPeriod {
	periods := make([]MonthPeriod, 0, n)
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		month := first.AddDate(0, i, 0)
		periods = append(periods, MonthPeriod{
			Name:  month.Month().String(),
			Year:  month.Year(),
			Value: fmt.Sprintf("%04d-%02d", month.Year(), int(month.Month())),
		})
	}
	return periods
}
