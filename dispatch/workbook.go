package dispatch

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// workSheet is the sheet the external actor reads the work list from.
const workSheet = "Sheet1"

// workColumns is the agreed column layout of the work list.
var workColumns = []string{"request_id", "process_number", "instance"}

// WriteWorkbook saves the work list as a spreadsheet at path. The first
// row is the header; one row follows per work item.
func WriteWorkbook(items []WorkItem, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	for col, name := range workColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("dispatch: header cell: %w", err)
		}
		if err := f.SetCellValue(workSheet, cell, name); err != nil {
			return fmt.Errorf("dispatch: write header: %w", err)
		}
	}

	for i, item := range items {
		values := []string{item.RequestID, item.ProcessNumber, strconv.Itoa(item.Instance)}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("dispatch: cell name: %w", err)
			}
			if err := f.SetCellValue(workSheet, cell, v); err != nil {
				return fmt.Errorf("dispatch: write row %d: %w", i+2, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("dispatch: save workbook: %w", err)
	}
	return nil
}
