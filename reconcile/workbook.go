package reconcile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// resultSheet is the sheet the result table is read from.
const resultSheet = "Sheet1"

// timeLayouts are the accepted progress-date formats, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01-02-06 15:04",
}

// ReadWorkbook loads the result table from a spreadsheet. The first row
// must be a header naming the columns; unknown columns are ignored.
func ReadWorkbook(path string) ([]ResultRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("reconcile: open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(resultSheet)
	if err != nil {
		return nil, fmt.Errorf("reconcile: read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("reconcile: workbook has no header row")
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"request_id", "process_number"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("reconcile: missing required column %q", required)
		}
	}

	cell := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	results := make([]ResultRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		r := ResultRow{
			RequestID:           cell(row, "request_id"),
			ProcessNumber:       cell(row, "process_number"),
			ClassCode:           cell(row, "class_code"),
			LegalArea:           cell(row, "legal_area"),
			DocumentKey:         cell(row, "document_key"),
			Parties:             cell(row, "parties"),
			Attorneys:           cell(row, "attorneys"),
			ProgressDescription: cell(row, "progress_description"),
		}
		if r.RequestID == "" && r.ProcessNumber == "" {
			continue
		}

		if raw := cell(row, "case_value"); raw != "" {
			v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
			if err != nil {
				return nil, fmt.Errorf("reconcile: row %d: bad case_value %q: %w", i+2, raw, err)
			}
			r.CaseValue = &v
		}

		if raw := cell(row, "progress_date"); raw != "" {
			ts, err := parseTime(raw)
			if err != nil {
				return nil, fmt.Errorf("reconcile: row %d: bad progress_date %q: %w", i+2, raw, err)
			}
			r.ProgressAt = &ts
		}

		results = append(results, r)
	}

	return results, nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp")
}
