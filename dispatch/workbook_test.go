package dispatch

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.xlsx")

	items := []WorkItem{
		{RequestID: "req-1", ProcessNumber: "001", Instance: 1},
		{RequestID: "req-1", ProcessNumber: "002", Instance: 1},
		{RequestID: "req-2", ProcessNumber: "900", Instance: 2},
	}
	if err := WriteWorkbook(items, path); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(workSheet)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != len(items)+1 {
		t.Fatalf("expected %d rows got %d", len(items)+1, len(rows))
	}
	for col, name := range workColumns {
		if rows[0][col] != name {
			t.Fatalf("expected header %q at column %d, got %q", name, col, rows[0][col])
		}
	}
	if rows[1][0] != "req-1" || rows[1][1] != "001" || rows[1][2] != "1" {
		t.Fatalf("unexpected first data row: %v", rows[1])
	}
	if rows[3][0] != "req-2" || rows[3][2] != "2" {
		t.Fatalf("unexpected last data row: %v", rows[3])
	}
}

func TestWriteWorkbookEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	if err := WriteWorkbook(nil, path); err != nil {
		t.Fatalf("write empty workbook: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(workSheet)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected header-only workbook, got %d rows", len(rows))
	}
}
