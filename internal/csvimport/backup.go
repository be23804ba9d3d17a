package csvimport

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/djeeyo/nmreggae/internal/calendar"
	"github.com/djeeyo/nmreggae/internal/models"
	"github.com/pkg/errors"
)

// BackupHeader is the column order of backup files
var BackupHeader = []string{
	FieldDate,
	FieldOriginalDate,
	FieldDayOfWeek,
	FieldVenue,
	FieldEventName,
	FieldType,
	FieldTicketsURL,
	FieldCity,
	FieldState,
	FieldCountry,
}

// BackupFilename names a backup taken on the given day
func BackupFilename(day time.Time) string {
	return fmt.Sprintf("reggae-events-backup-%s.csv", calendar.FormatDate(day))
}

// WriteBackup writes events as CSV in the given order. event_name is always
// quoted; other fields only when they hold a comma, quote or line break.
func WriteBackup(w io.Writer, events []models.Event) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(strings.Join(BackupHeader, ",")); err != nil {
		return errors.Wrap(err, "failed to write backup header")
	}

	for _, event := range events {
		fields := []string{
			calendar.FormatDate(event.Date),
			quoteIfNeeded(deref(event.OriginalDate)),
			quoteIfNeeded(event.DayOfWeek),
			quoteIfNeeded(event.Venue),
			quote(event.EventName),
			quoteIfNeeded(event.Type),
			quoteIfNeeded(deref(event.TicketsURL)),
			quoteIfNeeded(event.City),
			quoteIfNeeded(event.State),
			quoteIfNeeded(event.Country),
		}
		if _, err := bw.WriteString("\n" + strings.Join(fields, ",")); err != nil {
			return errors.Wrap(err, "failed to write backup row")
		}
	}

	return errors.Wrap(bw.Flush(), "failed to flush backup")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteIfNeeded(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return quote(s)
}
