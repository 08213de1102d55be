package sheet

import (
	"fmt"
	_ "image/png"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/dental-lab/internal/model"
	"github.com/mmeshcher/dental-lab/internal/pricing"
)

// LabSheetName задаёт имя листа сводной выгрузки врача.
const LabSheetName = "Fișa Laborator"

const (
	labHeaderRow = 5
	labFirstRow  = 6

	clientTotalLabel = "Total Client"
)

func labStyles(f *excelize.File) *styleSet {
	s := newStyleSet(f)
	s.add("title", &excelize.Style{
		Font:      &excelize.Font{Size: 16, Bold: true, Color: "333333"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Fill:      fill("FFFFFF"),
	})
	s.add("doctor", &excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "333333"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Fill:      fill("F2F2F2"),
	})
	s.add("header", &excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "274E13"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Fill:      fill("D9EAD3"),
		Border:    grid(borderThin),
	})
	for _, band := range []string{"FFFFFF", "FAFAFA"} {
		s.add("cell-"+band, &excelize.Style{
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Fill:      fill(band),
			Border:    grid(borderThin),
		})
		s.add("product-"+band, &excelize.Style{
			Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
			Fill:      fill(band),
			Border:    grid(borderThin),
		})
	}
	s.add("line-total", &excelize.Style{
		Alignment:    &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Fill:         fill("E8F5E9"),
		Border:       grid(borderThin),
		CustomNumFmt: money(),
	})
	s.add("client-label", &excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "333333"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Fill:      fill("FEF5E7"),
		Border:    grid(borderThin),
	})
	s.add("client-total", &excelize.Style{
		Font:         &excelize.Font{Bold: true, Color: "0056B3"},
		Alignment:    &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Fill:         fill("FEF5E7"),
		Border:       grid(borderThin),
		CustomNumFmt: money(),
	})
	s.add("total-label", &excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Fill:      fill("FFF3CD"),
		Border:    grid(borderThick),
	})
	s.add("total-value", &excelize.Style{
		Font:         &excelize.Font{Bold: true, Color: "0056B3"},
		Alignment:    &excelize.Alignment{Horizontal: "center"},
		Fill:         fill("FFF3CD"),
		Border:       grid(borderThick),
		CustomNumFmt: money(),
	})
	return s
}

// LabWorkbook формирует сводную книгу врача: по строке на каждое изделие,
// подытог по каждому пациенту и общую формулу по строкам изделий.
// Необязательный logo в формате PNG выводится в правом верхнем углу.
func LabWorkbook(doctor string, groups []model.PatientLines, logo []byte) ([]byte, error) {
	f, err := newBook(LabSheetName)
	if err != nil {
		return nil, err
	}

	st := labStyles(f)
	if st.err != nil {
		_ = f.Close()
		return nil, st.err
	}

	c := &cells{f: f, sheet: LabSheetName}
	c.width("A", 30)
	c.width("B", 40)
	c.width("C", 10)
	c.width("D", 15)

	c.merge("A1", "D2")
	c.value("A1", "Fișa Laborator")
	c.style("A1", "D2", st.id("title"))

	c.merge("A3", "D3")
	c.value("A3", "Dr. "+doctor)
	c.style("A3", "D3", st.id("doctor"))

	for i, h := range []string{"PACIENT", "PRODUS", "BUCĂȚI", "PREȚ"} {
		c.value(cell(string(rune('A'+i)), labHeaderRow), h)
	}
	c.style(cell("A", labHeaderRow), cell("D", labHeaderRow), st.id("header"))
	c.height(labHeaderRow, 20)

	row := labFirstRow
	written := 0
	for _, g := range groups {
		if len(g.Lines) == 0 {
			continue
		}
		band := "FFFFFF"
		if written%2 == 1 {
			band = "FAFAFA"
		}
		written++

		start := row
		subtotal := decimal.Zero
		for _, l := range g.Lines {
			total := pricing.LineTotal(l.Quantity, l.UnitPrice)
			subtotal = subtotal.Add(total)

			if row == start {
				c.value(cell("A", row), g.Patient)
			}
			c.value(cell("B", row), l.Product)
			c.value(cell("C", row), l.Quantity.InexactFloat64())
			c.value(cell("D", row), total.InexactFloat64())

			c.style(cell("A", row), cell("A", row), st.id("cell-"+band))
			c.style(cell("B", row), cell("B", row), st.id("product-"+band))
			c.style(cell("C", row), cell("C", row), st.id("cell-"+band))
			c.style(cell("D", row), cell("D", row), st.id("line-total"))
			row++
		}
		end := row - 1

		if end > start {
			c.merge(cell("A", start), cell("A", end))
		}

		c.merge(cell("A", row), cell("C", row))
		c.value(cell("A", row), clientTotalLabel)
		c.value(cell("D", row), subtotal.InexactFloat64())
		c.style(cell("A", row), cell("C", row), st.id("client-label"))
		c.style(cell("D", row), cell("D", row), st.id("client-total"))
		row++
	}

	totalRow := row + 1
	c.value(cell("A", totalRow), "TOTAL")
	c.style(cell("A", totalRow), cell("C", totalRow), st.id("total-label"))
	if written > 0 {
		c.formula(cell("D", totalRow), GrandTotalFormula(labFirstRow, row-1))
	} else {
		c.value(cell("D", totalRow), 0)
	}
	c.style(cell("D", totalRow), cell("D", totalRow), st.id("total-value"))

	if c.err == nil && len(logo) > 0 {
		c.err = f.AddPictureFromBytes(LabSheetName, "D1", &excelize.Picture{
			Extension: ".png",
			File:      logo,
			Format: &excelize.GraphicOptions{
				OffsetX:         2,
				OffsetY:         2,
				LockAspectRatio: true,
			},
		})
	}

	if c.err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("build lab workbook: %w", c.err)
	}
	return finish(f)
}

// GrandTotalFormula суммирует колонку сумм в строках first..last, пропуская
// строки подытогов пациентов. Размер формулы не зависит от числа пациентов.
func GrandTotalFormula(first, last int) string {
	return fmt.Sprintf(`SUMIF(A%d:A%d,"<>%s",D%d:D%d)`, first, last, clientTotalLabel, first, last)
}
