package csvimport

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ErrParse is returned when the CSV text itself is malformed
var ErrParse = errors.New("failed to parse CSV")

const utf8BOM = "\ufeff"

// ParseRecords reads a header row followed by data rows. Blank lines are
// skipped; every data row must have as many fields as the header.
func ParseRecords(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(ErrParse, "missing header row")
	}
	if err != nil {
		return nil, errors.Wrapf(ErrParse, "header: %v", err)
	}

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(ErrParse, "%v", err)
		}

		record := make(Record, len(header))
		for i, name := range header {
			record[name] = row[i]
		}
		records = append(records, record)
	}

	return records, nil
}

// Parse reads CSV text and transforms it in one step
func Parse(r io.Reader) (Result, error) {
	records, err := ParseRecords(r)
	if err != nil {
		return Result{}, err
	}
	return Transform(records), nil
}
