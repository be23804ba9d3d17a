package csvimport

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/djeeyo/nmreggae/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestTransformSkipsInvalidDates(t *testing.T) {
	input := "date,event_name,city\n" +
		"2025-07-15,Roots Night,Santa Fe\n" +
		"not-a-date,Bad Row,Taos\n"

	result, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	assert.Equal(t, 1, result.Skipped)

	event := result.Events[0]
	assert.Equal(t, "Roots Night", event.EventName)
	assert.Equal(t, "Santa Fe", event.City)
	assert.Equal(t, time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC), event.Date)
	assert.Empty(t, event.ID)
}

func TestTransformInvalidRowDoesNotAffectOthers(t *testing.T) {
	valid := []Record{
		{"date": "2025-07-15", "event_name": "A"},
		{"date": "2025-07-16", "event_name": "B"},
	}
	mixed := []Record{
		{"date": "2025-07-15", "event_name": "A"},
		{"date": "", "event_name": "empty"},
		{"date": "someday", "event_name": "junk"},
		{"event_name": "no date column"},
		{"date": "2025-07-16", "event_name": "B"},
	}

	a := Transform(valid)
	b := Transform(mixed)
	assert.Equal(t, a.Events, b.Events)
	assert.Equal(t, 3, b.Skipped)
}

func TestTransformDefaults(t *testing.T) {
	result := Transform([]Record{{"date": "2025-07-15"}})
	require.Len(t, result.Events, 1)

	event := result.Events[0]
	assert.Equal(t, "Live Show", event.Type)
	assert.Equal(t, "NM", event.State)
	assert.Equal(t, "USA", event.Country)
	assert.Equal(t, "", event.Venue)
	assert.Equal(t, "", event.EventName)
	assert.Equal(t, "", event.City)
	assert.Nil(t, event.TicketsURL)
	require.NotNil(t, event.OriginalDate)
	assert.Equal(t, "2025-07-15", *event.OriginalDate)
	assert.Equal(t, "Tuesday", event.DayOfWeek)
}

func TestTransformEmptyValuesFallBackToDefaults(t *testing.T) {
	result := Transform([]Record{{
		"date": "2025-07-15", "type": "  ", "state": "", "country": "", "tickets_url": "",
	}})
	require.Len(t, result.Events, 1)

	event := result.Events[0]
	assert.Equal(t, "Live Show", event.Type)
	assert.Equal(t, "NM", event.State)
	assert.Equal(t, "USA", event.Country)
	assert.Nil(t, event.TicketsURL)
}

func TestTransformAliasesAndCase(t *testing.T) {
	records := []Record{
		{"Date": "07/04/2025", "Event_Name": "Capitalised", "City": "Albuquerque", "URL": "https://tix.example/1"},
		{"DATE": "2025-07-05", "name": "Plain name", "CITY": "Taos", "Tickets_URL": "https://tix.example/2"},
		{"date": "2025-07-06", "Name": "Title name", "event_name": "Canonical wins", "url": "https://tix.example/x", "tickets_url": "https://tix.example/3"},
	}

	result := Transform(records)
	require.Len(t, result.Events, 3)

	assert.Equal(t, "Capitalised", result.Events[0].EventName)
	assert.Equal(t, "Albuquerque", result.Events[0].City)
	assert.Equal(t, "https://tix.example/1", *result.Events[0].TicketsURL)
	assert.Equal(t, "07/04/2025", *result.Events[0].OriginalDate)

	assert.Equal(t, "Plain name", result.Events[1].EventName)
	assert.Equal(t, "Taos", result.Events[1].City)
	assert.Equal(t, "https://tix.example/2", *result.Events[1].TicketsURL)

	assert.Equal(t, "Canonical wins", result.Events[2].EventName)
	assert.Equal(t, "https://tix.example/3", *result.Events[2].TicketsURL)
}

func TestTransformExplicitColumnsWin(t *testing.T) {
	result := Transform([]Record{{
		"date":          "2025-07-15",
		"original_date": "7/15/25",
		"day_of_week":   "Tues",
		"type":          "DJ Set",
		"state":         "CO",
		"country":       "US",
	}})
	require.Len(t, result.Events, 1)

	event := result.Events[0]
	assert.Equal(t, "7/15/25", *event.OriginalDate)
	assert.Equal(t, "Tues", event.DayOfWeek)
	assert.Equal(t, "DJ Set", event.Type)
	assert.Equal(t, "CO", event.State)
	assert.Equal(t, "US", event.Country)
}

func TestTransformPreservesOrder(t *testing.T) {
	result := Transform([]Record{
		{"date": "2025-09-01", "event_name": "third"},
		{"date": "2025-07-01", "event_name": "first"},
		{"date": "2025-08-01", "event_name": "second"},
	})
	require.Len(t, result.Events, 3)
	assert.Equal(t, "third", result.Events[0].EventName)
	assert.Equal(t, "first", result.Events[1].EventName)
	assert.Equal(t, "second", result.Events[2].EventName)
}

func TestParseRecords(t *testing.T) {
	input := "\ufeffDate , Event_Name,City\n\n2025-07-15,\"Roots, Rock, Reggae\",Santa Fe\n\n"

	records, err := ParseRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2025-07-15", records[0]["Date"])
	assert.Equal(t, "Roots, Rock, Reggae", records[0]["Event_Name"])
	assert.Equal(t, "Santa Fe", records[0]["City"])
}

func TestParseRecordsErrors(t *testing.T) {
	for name, input := range map[string]string{
		"empty":        "",
		"ragged row":   "date,event_name\n2025-07-15,Roots Night,extra\n",
		"unterminated": "date,event_name\n2025-07-15,\"Roots Night\n",
		"bare quote":   "date,event_name\n2025-07-15,Roots \"Night\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRecords(strings.NewReader(input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestParseHeaderOnly(t *testing.T) {
	result, err := Parse(strings.NewReader("date,event_name,city\n"))
	require.NoError(t, err)
	assert.Empty(t, result.Events)
	assert.Zero(t, result.Skipped)
}

func TestWriteBackup(t *testing.T) {
	events := []models.Event{
		{
			ID:           "a",
			Date:         time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC),
			OriginalDate: strPtr("7/15/25"),
			DayOfWeek:    "Tuesday",
			Venue:        "Sister Bar",
			EventName:    "Roots Night",
			Type:         "Live Show",
			TicketsURL:   strPtr("https://tix.example/roots"),
			City:         "Albuquerque",
			State:        "NM",
			Country:      "USA",
		},
		{
			ID:        "b",
			Date:      time.Date(2025, time.July, 16, 0, 0, 0, 0, time.UTC),
			DayOfWeek: "Wednesday",
			Venue:     "Meow Wolf, Santa Fe",
			EventName: `The "Dub" Club`,
			Type:      "DJ Set",
			City:      "Santa Fe",
			State:     "NM",
			Country:   "USA",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBackup(&buf, events))

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,original_date,day_of_week,venue,event_name,type,tickets_url,city,state,country", lines[0])
	assert.Equal(t, `2025-07-15,7/15/25,Tuesday,Sister Bar,"Roots Night",Live Show,https://tix.example/roots,Albuquerque,NM,USA`, lines[1])
	assert.Equal(t, `2025-07-16,,Wednesday,"Meow Wolf, Santa Fe","The ""Dub"" Club",DJ Set,,Santa Fe,NM,USA`, lines[2])
}

func TestBackupRoundTrip(t *testing.T) {
	input := "Date,Event_Name,Venue,City,Type,URL\n" +
		"7/4/2025,Independence Skank,Launchpad,Albuquerque,,https://tix.example/4\n" +
		"2025-07-05,\"Roots, Rock\",El Rey,Albuquerque,DJ Set,\n" +
		"2025-08-01,Harvest Vibes,Taos Mesa Brewing,Taos,,\n"

	original, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, original.Events, 3)

	var buf bytes.Buffer
	require.NoError(t, WriteBackup(&buf, original.Events))

	reimported, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, original.Events, reimported.Events)
}

func TestBackupRoundTripKeepsNullOriginalDate(t *testing.T) {
	created := models.Event{
		Date:      time.Date(2026, time.October, 22, 0, 0, 0, 0, time.UTC),
		EventName: "No original date",
		Venue:     "  Launchpad  ",
		City:      "Albuquerque",
	}
	created.ApplyDefaults()
	withOriginal := models.Event{
		Date:         time.Date(2026, time.October, 23, 0, 0, 0, 0, time.UTC),
		OriginalDate: strPtr("Oct 23"),
		EventName:    "Has original date",
		City:         "Taos",
	}
	withOriginal.ApplyDefaults()

	var buf bytes.Buffer
	require.NoError(t, WriteBackup(&buf, []models.Event{created, withOriginal}))
	assert.NotContains(t, buf.String(), `"  Launchpad  "`)

	reimported, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, reimported.Events, 2)

	assert.Nil(t, reimported.Events[0].OriginalDate)
	assert.Equal(t, "Launchpad", reimported.Events[0].Venue)
	require.NotNil(t, reimported.Events[1].OriginalDate)
	assert.Equal(t, "Oct 23", *reimported.Events[1].OriginalDate)
}

func TestTransformEmptyOriginalDateColumnStaysNull(t *testing.T) {
	result := Transform([]Record{
		{"date": "2025-07-15", "Original_Date": ""},
		{"date": "7/16/2025"},
	})
	require.Len(t, result.Events, 2)

	assert.Nil(t, result.Events[0].OriginalDate)
	require.NotNil(t, result.Events[1].OriginalDate)
	assert.Equal(t, "7/16/2025", *result.Events[1].OriginalDate)
}

func TestBackupFilename(t *testing.T) {
	assert.Equal(t, "reggae-events-backup-2025-07-15.csv",
		BackupFilename(time.Date(2025, time.July, 15, 22, 0, 0, 0, time.UTC)))
}
