package reconcile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func writeSheet(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue("Sheet1", cell, v); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
}

func TestReadWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xlsx")
	writeSheet(t, path, [][]any{
		{"Request_ID", "process_number", "case_value", "class_code", "legal_area", "document_key", "parties", "attorneys", "progress_date", "progress_description", "ignored_extra"},
		{"req-1", "0001", "1500,75", "7", "Civil", "docs/req-1/a.pdf", "AUTOR:Ana|REU:Beto", "AUTOR:Carla (SP1)", "2024-05-10 14:30:00", "Distribuido", "junk"},
		{"req-1", "0001", "", "", "", "", "", "", "2024-05-12", "Conclusos"},
		{"", "", "", "", "", "", "", "", "", ""},
	})

	rows, err := ReadWorkbook(path)
	if err != nil {
		t.Fatalf("read workbook: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (blank row dropped)", len(rows))
	}

	first := rows[0]
	if first.RequestID != "req-1" || first.ProcessNumber != "0001" {
		t.Fatalf("keys = %s/%s", first.RequestID, first.ProcessNumber)
	}
	if first.CaseValue == nil || *first.CaseValue != 1500.75 {
		t.Fatalf("case value = %v, want 1500.75 (comma decimal)", first.CaseValue)
	}
	if first.ProgressAt == nil || !first.ProgressAt.Equal(time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)) {
		t.Fatalf("progress at = %v", first.ProgressAt)
	}
	if first.Parties != "AUTOR:Ana|REU:Beto" {
		t.Fatalf("parties = %q", first.Parties)
	}

	second := rows[1]
	if second.CaseValue != nil {
		t.Fatalf("second row case value = %v, want nil", second.CaseValue)
	}
	if second.ProgressAt == nil || !second.ProgressAt.Equal(time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("second progress at = %v", second.ProgressAt)
	}
}

func TestReadWorkbookMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	writeSheet(t, path, [][]any{
		{"request_id", "progress_description"},
		{"req-1", "Distribuido"},
	})

	if _, err := ReadWorkbook(path); err == nil {
		t.Fatal("expected error for missing process_number column")
	}
}

func TestReadWorkbookBadValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad-value.xlsx")
	writeSheet(t, path, [][]any{
		{"request_id", "process_number", "case_value"},
		{"req-1", "0001", "not-a-number"},
	})

	if _, err := ReadWorkbook(path); err == nil {
		t.Fatal("expected error for unparseable case_value")
	}
}
