// Package workbook reads spreadsheet previews and applies model-produced cell
// updates to .xlsx files.
package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"formula-gateway/internal/models"
)

// decimalPattern matches plain decimal numbers. ParseFloat alone would also
// accept NaN, Inf and hex floats, which are not valid numeric cell values.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ErrInvalidWorkbook is returned when the payload is not a readable workbook.
var ErrInvalidWorkbook = errors.New("invalid workbook")

// Rejection records a cell update that was not applied.
type Rejection struct {
	Cell   string `json:"cell"`
	Reason string `json:"reason"`
}

// Preview returns the first rows and columns of the active sheet as text.
func Preview(data []byte, maxRows, maxCols int) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	preview := make([][]string, 0, len(rows))
	for _, row := range rows {
		if maxCols > 0 && len(row) > maxCols {
			row = row[:maxCols]
		}
		preview = append(preview, row)
	}
	return preview, nil
}

// Apply writes updates into the active sheet and returns the new file.
// Every address is validated first; invalid ones are skipped and reported.
func Apply(data []byte, updates []models.CellUpdate) ([]byte, []Rejection, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	var rejected []Rejection

	for _, update := range updates {
		cell, err := NormalizeCell(update.Cell)
		if err != nil {
			rejected = append(rejected, Rejection{Cell: update.Cell, Reason: err.Error()})
			continue
		}
		if err := setCell(f, sheet, cell, update.Value); err != nil {
			rejected = append(rejected, Rejection{Cell: update.Cell, Reason: err.Error()})
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, rejected, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), rejected, nil
}

// NormalizeCell validates a single-cell address (column letters + row
// number, within sheet limits) and returns its canonical form.
func NormalizeCell(ref string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(ref))
	if trimmed == "" {
		return "", errors.New("empty cell reference")
	}
	if strings.ContainsAny(trimmed, "!:$") {
		return "", fmt.Errorf("cell reference %q must be a single unqualified cell", ref)
	}

	col, row, err := excelize.CellNameToCoordinates(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid cell reference %q", ref)
	}
	if col < 1 || col > excelize.MaxColumns || row < 1 || row > excelize.TotalRows {
		return "", fmt.Errorf("cell reference %q is out of range", ref)
	}
	return excelize.CoordinatesToCellName(col, row)
}

func setCell(f *excelize.File, sheet, cell, value string) error {
	switch {
	case strings.HasPrefix(value, "="):
		return f.SetCellFormula(sheet, cell, value)
	case value == "":
		return f.SetCellValue(sheet, cell, "")
	}

	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return f.SetCellValue(sheet, cell, i)
	}
	if decimalPattern.MatchString(value) {
		if fl, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(fl) && !math.IsInf(fl, 0) {
			return f.SetCellValue(sheet, cell, fl)
		}
	}
	return f.SetCellValue(sheet, cell, value)
}
