package spreadsheet

import (
	"errors"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dmitrymomot/mailroom/pkg/placeholder"
)

var (
	ErrEmptyFile    = errors.New("spreadsheet: file contains no rows")
	ErrNoSheets     = errors.New("spreadsheet: workbook contains no sheets")
	ErrInvalidXLSX  = errors.New("spreadsheet: failed to open workbook")
	ErrUnknownInput = errors.New("spreadsheet: unsupported file extension")
)

// fieldAliases declares, per recipient field, the header spellings that map
// to it. Matching is exact and ordered: the first alias present in the
// header row with a non-empty cell wins.
var fieldAliases = map[string][]string{
	"firstName": {"firstName", "FirstName", "first_name", "First Name", "name"},
	"lastName":  {"lastName", "LastName", "last_name", "Last Name"},
	"company":   {"company", "Company", "companyName", "Company Name"},
	"jobTitle":  {"jobTitle", "JobTitle", "job_title", "Job Title", "position"},
	"email":     {"email", "Email", "E-mail"},
}

// Parse dispatches on the file extension. Only .csv and .xlsx are accepted.
func Parse(filename string, r io.Reader) ([]placeholder.Recipient, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".csv"):
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return ParseCSV(string(data))
	case strings.HasSuffix(strings.ToLower(filename), ".xlsx"):
		return ParseXLSX(r)
	default:
		return nil, ErrUnknownInput
	}
}

// ParseCSV parses comma-delimited text: first line headers, remaining lines
// mapped positionally. Blank lines are skipped. There is no quote handling;
// a comma inside a value splits it.
func ParseCSV(text string) ([]placeholder.Recipient, error) {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, ",")
		for i := range cols {
			cols[i] = strings.TrimSpace(cols[i])
		}
		rows = append(rows, cols)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return mapRows(rows[0], rows[1:]), nil
}

// ParseXLSX reads the first sheet of a workbook; the first row is the
// header row, alias rules are the same as for CSV.
func ParseXLSX(r io.Reader) ([]placeholder.Recipient, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Join(ErrInvalidXLSX, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Join(ErrInvalidXLSX, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	return mapRows(headers, rows[1:]), nil
}

func mapRows(headers []string, dataRows [][]string) []placeholder.Recipient {
	recipients := make([]placeholder.Recipient, 0, len(dataRows))
	for _, row := range dataRows {
		cells := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				cells[h] = row[i]
			} else {
				cells[h] = ""
			}
		}
		recipients = append(recipients, placeholder.Recipient{
			FirstName: lookup(cells, fieldAliases["firstName"]),
			LastName:  lookup(cells, fieldAliases["lastName"]),
			Company:   lookup(cells, fieldAliases["company"]),
			JobTitle:  lookup(cells, fieldAliases["jobTitle"]),
			Email:     lookup(cells, fieldAliases["email"]),
		})
	}
	return recipients
}

func lookup(cells map[string]string, aliases []string) string {
	for _, a := range aliases {
		if v := cells[a]; v != "" {
			return v
		}
	}
	return ""
}
