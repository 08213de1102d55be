// Package sheet формирует книги Excel для выгрузок лаборатории.
package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	borderThin  = 1
	borderThick = 5

	colorGrid = "B3B3B3"
	moneyFmt  = "#,##0.00"
)

func fill(color string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
}

func grid(top int) []excelize.Border {
	return []excelize.Border{
		{Type: "top", Color: colorGrid, Style: top},
		{Type: "left", Color: colorGrid, Style: borderThin},
		{Type: "bottom", Color: colorGrid, Style: borderThin},
		{Type: "right", Color: colorGrid, Style: borderThin},
	}
}

func box(top, bottom int) []excelize.Border {
	return []excelize.Border{
		{Type: "top", Style: top},
		{Type: "left", Style: borderThick},
		{Type: "bottom", Style: bottom},
		{Type: "right", Style: borderThick},
	}
}

func money() *string {
	f := moneyFmt
	return &f
}

// styleSet создаёт стили книги по именам и запоминает их идентификаторы.
type styleSet struct {
	f   *excelize.File
	ids map[string]int
	err error
}

func newStyleSet(f *excelize.File) *styleSet {
	return &styleSet{f: f, ids: make(map[string]int)}
}

func (s *styleSet) add(name string, st *excelize.Style) {
	if s.err != nil {
		return
	}
	id, err := s.f.NewStyle(st)
	if err != nil {
		s.err = fmt.Errorf("style %s: %w", name, err)
		return
	}
	s.ids[name] = id
}

func (s *styleSet) id(name string) int {
	return s.ids[name]
}

// cells накапливает первую ошибку записи в лист, чтобы не проверять каждую
// операцию отдельно.
type cells struct {
	f     *excelize.File
	sheet string
	err   error
}

func (c *cells) value(cell string, v any) {
	if c.err == nil {
		c.err = c.f.SetCellValue(c.sheet, cell, v)
	}
}

func (c *cells) formula(cell, formula string) {
	if c.err == nil {
		c.err = c.f.SetCellFormula(c.sheet, cell, formula)
	}
}

func (c *cells) style(from, to string, id int) {
	if c.err == nil {
		c.err = c.f.SetCellStyle(c.sheet, from, to, id)
	}
}

func (c *cells) merge(from, to string) {
	if c.err == nil {
		c.err = c.f.MergeCell(c.sheet, from, to)
	}
}

func (c *cells) width(col string, w float64) {
	if c.err == nil {
		c.err = c.f.SetColWidth(c.sheet, col, col, w)
	}
}

func (c *cells) height(row int, h float64) {
	if c.err == nil {
		c.err = c.f.SetRowHeight(c.sheet, row, h)
	}
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// newBook создаёт книгу с единственным листом name.
func newBook(name string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	return f, nil
}

func finish(f *excelize.File) ([]byte, error) {
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
