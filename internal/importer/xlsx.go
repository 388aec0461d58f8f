package importer

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"telegram_parser/internal/telegram"
)

// centerColumn is the explicit ATM-center column of the aggregated
// single-sheet format. The older multi-sheet format has no such column;
// there the sheet name is the center.
const centerColumn = "Центр ЕС ОрВД"

// ReadXLSX reads telegram triplets from a spreadsheet. Each sheet is
// scanned for a header row naming the SHR/DEP/ARR columns; sheets without
// one (cover sheets, the empty default "Лист1") are skipped. Row indexes
// are 1-based within their sheet, matching what a user sees in Excel.
func ReadXLSX(path string) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var out []Row
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		out = append(out, sheetRows(sheet, rows)...)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no telegram rows found in %s", path)
	}
	return out, nil
}

func sheetRows(sheet string, rows [][]string) []Row {
	if len(rows) < 2 {
		return nil
	}

	cols := headerColumns(rows[0])
	shrCol, ok := cols["SHR"]
	if !ok {
		return nil
	}
	depCol, hasDEP := cols["DEP"]
	arrCol, hasARR := cols["ARR"]
	centerCol, hasCenter := cols[strings.ToUpper(centerColumn)]

	var out []Row
	for i, row := range rows[1:] {
		t := telegram.Triplet{Center: sheet}
		if hasCenter {
			t.Center = strings.TrimSpace(cell(row, centerCol))
		}
		t.SHR = cell(row, shrCol)
		if hasDEP {
			t.DEP = cell(row, depCol)
		}
		if hasARR {
			t.ARR = cell(row, arrCol)
		}

		if strings.TrimSpace(t.SHR) == "" && t.DEP == "" && t.ARR == "" {
			continue // trailing blank row
		}
		out = append(out, Row{Index: i + 2, Triplet: t})
	}
	return out
}

// headerColumns maps normalized header names to column positions.
func headerColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToUpper(strings.TrimSpace(h))
		if h != "" {
			cols[h] = i
		}
	}
	return cols
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
