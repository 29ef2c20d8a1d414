package workbook

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"formula-gateway/internal/models"
)

func newWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		values := row
		if err := f.SetSheetRow("Sheet1", cell, &values); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestPreview(t *testing.T) {
	data := newWorkbook(t, [][]any{
		{"Header", "Other", "Third"},
		{1, "x"},
		{2},
		{3},
	})

	got, err := Preview(data, 3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]string{{"Header", "Other"}, {"1", "x"}, {"2"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPreviewRejectsGarbage(t *testing.T) {
	if _, err := Preview([]byte("not a zip"), 5, 5); !errors.Is(err, ErrInvalidWorkbook) {
		t.Fatalf("expected ErrInvalidWorkbook, got %v", err)
	}
}

func TestNormalizeCell(t *testing.T) {
	valid := map[string]string{
		"a1":    "A1",
		" B12 ": "B12",
		"XFD1":  "XFD1",
		"AA100": "AA100",
	}
	for in, want := range valid {
		got, err := NormalizeCell(in)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: got %q, want %q", in, got, want)
		}
	}

	invalid := []string{"", "A", "12", "A0", "Sheet1!A1", "A1:B2", "$A$1", "XFE1", "A1048577", "1A"}
	for _, in := range invalid {
		if _, err := NormalizeCell(in); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}

func TestApply(t *testing.T) {
	data := newWorkbook(t, [][]any{{"Header"}, {1}, {2}, {3}, {4}})

	out, rejected, err := Apply(data, []models.CellUpdate{
		{Cell: "B3", Value: "2"},
		{Cell: "b5", Value: "4"},
		{Cell: "C1", Value: "=SUM(A:A)"},
		{Cell: "D1", Value: "Even"},
		{Cell: "Z0", Value: "bad"},
		{Cell: "E1", Value: "NaN"},
		{Cell: "E2", Value: "Inf"},
		{Cell: "E3", Value: "-infinity"},
		{Cell: "E4", Value: "0x1p-2"},
		{Cell: "E5", Value: "2.5e3"},
		{Cell: "E6", Value: "-.5"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rejected) != 1 || rejected[0].Cell != "Z0" {
		t.Fatalf("rejected: got %+v", rejected)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()

	checks := map[string]string{
		"B3": "2", "B5": "4", "D1": "Even", "B2": "", "B4": "",
		"E1": "NaN", "E2": "Inf", "E3": "-infinity", "E4": "0x1p-2",
		"E5": "2500", "E6": "-0.5",
	}
	for cell, want := range checks {
		got, err := f.GetCellValue("Sheet1", cell)
		if err != nil {
			t.Fatalf("get %s: %v", cell, err)
		}
		if got != want {
			t.Fatalf("%s: got %q, want %q", cell, got, want)
		}
	}

	for _, cell := range []string{"E1", "E2", "E3", "E4"} {
		typ, err := f.GetCellType("Sheet1", cell)
		if err != nil {
			t.Fatalf("get type %s: %v", cell, err)
		}
		if typ == excelize.CellTypeNumber || typ == excelize.CellTypeUnset {
			t.Fatalf("%s: non-decimal text must be stored as a string, got type %v", cell, typ)
		}
	}

	formula, err := f.GetCellFormula("Sheet1", "C1")
	if err != nil {
		t.Fatalf("get formula: %v", err)
	}
	if formula != "SUM(A:A)" && formula != "=SUM(A:A)" {
		t.Fatalf("formula: got %q", formula)
	}
}
