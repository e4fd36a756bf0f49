package drive

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// convertXLSXToCSV writes the first sheet of an XLSX workbook as CSV. Blank
// rows are skipped and every row is padded to the header width so the CSV
// reader sees a rectangular table.
func convertXLSXToCSV(xlsxPath, csvPath string) (int, error) {
	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open xlsx file %s: %w", xlsxPath, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, fmt.Errorf("xlsx file %s has no sheets", xlsxPath)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return 0, fmt.Errorf("failed to read rows from sheet %s: %w", sheets[0], err)
	}
	defer rows.Close()

	out, err := os.Create(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create csv file %s: %w", csvPath, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	width, written := 0, 0
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return written, fmt.Errorf("failed to read row from %s: %w", xlsxPath, err)
		}
		if blank(record) {
			continue
		}
		if width == 0 {
			width = len(record)
		}
		for len(record) < width {
			record = append(record, "")
		}
		if err := w.Write(record[:width]); err != nil {
			return written, fmt.Errorf("failed to write csv row to %s: %w", csvPath, err)
		}
		written++
	}
	if err := rows.Error(); err != nil {
		return written, fmt.Errorf("error iterating rows in %s: %w", xlsxPath, err)
	}

	w.Flush()
	return written, w.Error()
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
