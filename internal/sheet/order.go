package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/dental-lab/internal/model"
)

// OrderSheetName задаёт имя листа выгрузки одного заказа.
const OrderSheetName = "Fisa Laborator"

func orderStyles(f *excelize.File) *styleSet {
	s := newStyleSet(f)
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	left := &excelize.Alignment{Horizontal: "left", Vertical: "center"}

	s.add("title", &excelize.Style{
		Font:      &excelize.Font{Size: 14, Bold: true},
		Alignment: center,
		Fill:      fill("E8F4F8"),
		Border:    box(borderThick, borderThin),
	})
	s.add("party", &excelize.Style{
		Font:      &excelize.Font{Size: 12},
		Alignment: center,
		Border:    box(borderThin, borderThin),
	})
	s.add("products", &excelize.Style{
		Font:      &excelize.Font{Size: 12, Bold: true},
		Alignment: left,
		Fill:      fill("FFF4E6"),
		Border:    box(borderThin, borderThin),
	})
	s.add("product", &excelize.Style{
		Font:      &excelize.Font{Size: 11},
		Alignment: left,
		Border:    box(borderThin, borderThin),
	})
	s.add("total", &excelize.Style{
		Font:      &excelize.Font{Size: 12, Bold: true},
		Alignment: center,
		Fill:      fill("E8F5E9"),
		Border:    box(borderThin, borderThick),
	})
	return s
}

// OrderWorkbook формирует книгу одного заказа: врач, пациент, список изделий
// и итоговая сумма заказа.
func OrderWorkbook(o model.OrderSheet) ([]byte, error) {
	f, err := newBook(OrderSheetName)
	if err != nil {
		return nil, err
	}

	st := orderStyles(f)
	if st.err != nil {
		_ = f.Close()
		return nil, st.err
	}

	doctor := o.Doctor
	if doctor == "" {
		doctor = "N/A"
	}
	patient := o.Patient
	if patient == "" {
		patient = "N/A"
	}

	c := &cells{f: f, sheet: OrderSheetName}
	c.width("A", 50)

	c.value("A1", "Fisa Laborator")
	c.style("A1", "A1", st.id("title"))
	c.value("A2", "Doctor: "+doctor)
	c.style("A2", "A2", st.id("party"))
	c.value("A3", "Pacient: "+patient)
	c.style("A3", "A3", st.id("party"))
	c.value("A4", "Produse")
	c.style("A4", "A4", st.id("products"))

	row := 5
	for _, p := range o.Products {
		if p == "" {
			p = "Produs"
		}
		c.value(cell("A", row), "- "+p)
		c.style(cell("A", row), cell("A", row), st.id("product"))
		row++
	}

	c.value(cell("A", row), "Total: "+o.Total.String())
	c.style(cell("A", row), cell("A", row), st.id("total"))

	if c.err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("build order workbook: %w", c.err)
	}
	return finish(f)
}
