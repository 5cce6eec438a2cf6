// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

func cellName(col, row int) string {
	name, err := excelize.JoinCellName(mustColumnName(col), row)
	if err != nil {
		return ""
	}
	return name
}

func mustColumnName(col int) string {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return "A"
	}
	return name
}

// RenderXLSX builds a workbook summarizing r: one sheet per cache level,
// plus a "Hot Lines" sheet and a "Suggestions" sheet.
func RenderXLSX(r Report) (*excelize.File, error) {
	f := excelize.NewFile()
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	levels := []struct {
		name  string
		stats LevelStats
	}{
		{"L1D", r.Levels.L1D},
		{"L1I", r.Levels.L1I},
		{"L2", r.Levels.L2},
	}
	if r.Levels.L3 != nil {
		levels = append(levels, struct {
			name  string
			stats LevelStats
		}{"L3", *r.Levels.L3})
	}

	for i, lvl := range levels {
		sheet := lvl.name
		if i == 0 {
			_ = f.SetSheetName("Sheet1", sheet)
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, err
			}
		}
		writeLevelSheet(f, sheet, headerStyle, lvl.stats)
	}

	writeHotLinesSheet(f, headerStyle, r.HotLines)
	writeSuggestionsSheet(f, headerStyle, r.Suggestions)

	f.SetActiveSheet(0)
	return f, nil
}

func writeLevelSheet(f *excelize.File, sheet string, headerStyle int, s LevelStats) {
	rows := [][2]string{
		{"Hits", fmt.Sprintf("%d", s.Hits)},
		{"Misses", fmt.Sprintf("%d", s.Misses)},
		{"Hit Rate", fmt.Sprintf("%.4f", s.HitRate)},
		{"Writebacks", fmt.Sprintf("%d", s.Writebacks)},
	}
	if s.Classification != nil {
		rows = append(rows,
			[2]string{"Compulsory Misses", fmt.Sprintf("%d", s.Classification.Compulsory)},
			[2]string{"Capacity Misses", fmt.Sprintf("%d", s.Classification.Capacity)},
			[2]string{"Conflict Misses", fmt.Sprintf("%d", s.Classification.Conflict)},
		)
	}
	_ = f.SetCellValue(sheet, cellName(1, 1), "Metric")
	_ = f.SetCellValue(sheet, cellName(2, 1), "Value")
	_ = f.SetCellStyle(sheet, cellName(1, 1), cellName(2, 1), headerStyle)
	for i, row := range rows {
		r := i + 2
		_ = f.SetCellValue(sheet, cellName(1, r), row[0])
		_ = f.SetCellValue(sheet, cellName(2, r), row[1])
	}
}

func writeHotLinesSheet(f *excelize.File, headerStyle int, lines []HotLine) {
	const sheet = "Hot Lines"
	if _, err := f.NewSheet(sheet); err != nil {
		return
	}
	headers := []string{"File", "Line", "Hits", "Misses", "Miss Rate"}
	for col, h := range headers {
		_ = f.SetCellValue(sheet, cellName(col+1, 1), h)
	}
	_ = f.SetCellStyle(sheet, cellName(1, 1), cellName(len(headers), 1), headerStyle)
	for i, hl := range lines {
		r := i + 2
		_ = f.SetCellValue(sheet, cellName(1, r), hl.File)
		_ = f.SetCellValue(sheet, cellName(2, r), hl.Line)
		_ = f.SetCellValue(sheet, cellName(3, r), hl.Hits)
		_ = f.SetCellValue(sheet, cellName(4, r), hl.Misses)
		_ = f.SetCellValue(sheet, cellName(5, r), hl.MissRate)
	}
}

func writeSuggestionsSheet(f *excelize.File, headerStyle int, suggestions []string) {
	const sheet = "Suggestions"
	if _, err := f.NewSheet(sheet); err != nil {
		return
	}
	_ = f.SetCellValue(sheet, cellName(1, 1), "Suggestion")
	_ = f.SetCellStyle(sheet, cellName(1, 1), cellName(1, 1), headerStyle)
	for i, s := range suggestions {
		_ = f.SetCellValue(sheet, cellName(1, i+2), s)
	}
}
