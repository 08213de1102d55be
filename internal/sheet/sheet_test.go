package sheet

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/dental-lab/internal/model"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func open(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func raw(t *testing.T, f *excelize.File, sheet, axis string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, axis, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return v
}

func labGroups() []model.PatientLines {
	return []model.PatientLines{
		{
			Patient: "Maria Pop",
			Lines: []model.SheetLine{
				{Product: "Coroană", Quantity: dec("2"), UnitPrice: dec("100")},
				{Product: "Punte", Quantity: dec("1"), UnitPrice: dec("50")},
			},
		},
		{
			Patient: "Ion Ionescu",
			Lines: []model.SheetLine{
				{Product: "Coroană", Quantity: dec("1"), UnitPrice: dec("100")},
			},
		},
	}
}

func TestLabWorkbook_Layout(t *testing.T) {
	data, err := LabWorkbook("Ionescu", labGroups(), nil)
	require.NoError(t, err)

	f := open(t, data)
	assert.Equal(t, []string{LabSheetName}, f.GetSheetList())

	assert.Equal(t, "Fișa Laborator", raw(t, f, LabSheetName, "A1"))
	assert.Equal(t, "Dr. Ionescu", raw(t, f, LabSheetName, "A3"))
	assert.Equal(t, "PACIENT", raw(t, f, LabSheetName, "A5"))
	assert.Equal(t, "BUCĂȚI", raw(t, f, LabSheetName, "C5"))
	assert.Equal(t, "PREȚ", raw(t, f, LabSheetName, "D5"))

	assert.Equal(t, "Maria Pop", raw(t, f, LabSheetName, "A6"))
	assert.Equal(t, "Coroană", raw(t, f, LabSheetName, "B6"))
	assert.Equal(t, "200", raw(t, f, LabSheetName, "D6"))
	assert.Equal(t, "50", raw(t, f, LabSheetName, "D7"))
	assert.Equal(t, "Total Client", raw(t, f, LabSheetName, "A8"))
	assert.Equal(t, "250", raw(t, f, LabSheetName, "D8"))

	assert.Equal(t, "Ion Ionescu", raw(t, f, LabSheetName, "A9"))
	assert.Equal(t, "100", raw(t, f, LabSheetName, "D10"))

	assert.Equal(t, "", raw(t, f, LabSheetName, "A11"))
	assert.Equal(t, "TOTAL", raw(t, f, LabSheetName, "A12"))

	formula, err := f.GetCellFormula(LabSheetName, "D12")
	require.NoError(t, err)
	assert.Equal(t, `SUMIF(A6:A10,"<>Total Client",D6:D10)`, formula)

	merges, err := f.GetMergeCells(LabSheetName)
	require.NoError(t, err)
	var ranges []string
	for _, m := range merges {
		ranges = append(ranges, m.GetStartAxis()+":"+m.GetEndAxis())
	}
	assert.ElementsMatch(t, []string{"A1:D2", "A3:D3", "A6:A7", "A8:C8", "A10:C10"}, ranges)
}

func TestLabWorkbook_CurrencyFormat(t *testing.T) {
	data, err := LabWorkbook("Ionescu", labGroups(), nil)
	require.NoError(t, err)

	f := open(t, data)
	v, err := f.GetCellValue(LabSheetName, "D6")
	require.NoError(t, err)
	assert.Equal(t, "200.00", v)
}

func TestLabWorkbook_NoGroups(t *testing.T) {
	data, err := LabWorkbook("Ionescu", nil, nil)
	require.NoError(t, err)

	f := open(t, data)
	assert.Equal(t, "TOTAL", raw(t, f, LabSheetName, "A7"))
	assert.Equal(t, "0", raw(t, f, LabSheetName, "D7"))
}

func TestLabWorkbook_Logo(t *testing.T) {
	logo, err := os.ReadFile("testdata/logo.png")
	require.NoError(t, err)

	data, err := LabWorkbook("Ionescu", labGroups(), logo)
	require.NoError(t, err)

	f := open(t, data)
	pics, err := f.GetPictures(LabSheetName, "D1")
	require.NoError(t, err)
	require.Len(t, pics, 1)
	assert.Equal(t, ".png", pics[0].Extension)
}

func TestGrandTotalFormula(t *testing.T) {
	assert.Equal(t, `SUMIF(A6:A10,"<>Total Client",D6:D10)`, GrandTotalFormula(6, 10))
}

func TestLabWorkbook_ManyPatientsKeepOneFormula(t *testing.T) {
	groups := make([]model.PatientLines, 300)
	for i := range groups {
		groups[i] = model.PatientLines{
			Patient: fmt.Sprintf("Pacient %d", i+1),
			Lines:   []model.SheetLine{{Product: "Coroană", Quantity: dec("1"), UnitPrice: dec("100")}},
		}
	}

	data, err := LabWorkbook("Ionescu", groups, nil)
	require.NoError(t, err)

	f := open(t, data)
	last := labFirstRow + 2*len(groups) - 1
	total := last + 2
	assert.Equal(t, "TOTAL", raw(t, f, LabSheetName, fmt.Sprintf("A%d", total)))

	formula, err := f.GetCellFormula(LabSheetName, fmt.Sprintf("D%d", total))
	require.NoError(t, err)
	assert.Equal(t, GrandTotalFormula(labFirstRow, last), formula)
	assert.LessOrEqual(t, strings.Count(formula, ",")+1, 255)
}

func TestOrderWorkbook(t *testing.T) {
	data, err := OrderWorkbook(model.OrderSheet{
		OrderID:  42,
		Doctor:   "Dr. Pop",
		Patient:  "Maria Pop",
		Products: []string{"Coroană", "Punte"},
		Total:    dec("230"),
	})
	require.NoError(t, err)

	f := open(t, data)
	assert.Equal(t, []string{OrderSheetName}, f.GetSheetList())
	assert.Equal(t, "Fisa Laborator", raw(t, f, OrderSheetName, "A1"))
	assert.Equal(t, "Doctor: Dr. Pop", raw(t, f, OrderSheetName, "A2"))
	assert.Equal(t, "Pacient: Maria Pop", raw(t, f, OrderSheetName, "A3"))
	assert.Equal(t, "Produse", raw(t, f, OrderSheetName, "A4"))
	assert.Equal(t, "- Coroană", raw(t, f, OrderSheetName, "A5"))
	assert.Equal(t, "- Punte", raw(t, f, OrderSheetName, "A6"))
	assert.Equal(t, "Total: 230", raw(t, f, OrderSheetName, "A7"))
}

func TestOrderWorkbook_MissingNames(t *testing.T) {
	data, err := OrderWorkbook(model.OrderSheet{OrderID: 1, Total: dec("0")})
	require.NoError(t, err)

	f := open(t, data)
	assert.Equal(t, "Doctor: N/A", raw(t, f, OrderSheetName, "A2"))
	assert.Equal(t, "Total: 0", raw(t, f, OrderSheetName, "A5"))
}

func TestZip(t *testing.T) {
	data, err := Zip([]File{
		{Name: "Doctor_Pop.xlsx", Data: []byte("first")},
		{Name: "Doctor_Ionescu.xlsx", Data: []byte("second")},
	})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "Doctor_Pop.xlsx", zr.File[0].Name)
	assert.Equal(t, zip.Deflate, zr.File[0].Method)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestZip_Empty(t *testing.T) {
	data, err := Zip(nil)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Empty(t, zr.File)
}
