package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/dental-lab/internal/model"
	"github.com/mmeshcher/dental-lab/internal/sheet"
)

type stubRepo struct {
	doctors    []model.Doctor
	doctorsErr error

	lines    map[int64][]model.SheetRow
	linesErr error

	order    *model.OrderSheet
	orderErr error

	closed bool
}

func (s *stubRepo) Close() error {
	s.closed = true
	return nil
}

func (s *stubRepo) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	return s.doctors, s.doctorsErr
}

func (s *stubRepo) FinalizedLines(ctx context.Context, doctorID int64, from, to time.Time) ([]model.SheetRow, error) {
	return s.lines[doctorID], s.linesErr
}

func (s *stubRepo) OrderSheet(ctx context.Context, orderID int64) (*model.OrderSheet, error) {
	return s.order, s.orderErr
}

func at(day int) *time.Time {
	t := time.Date(2025, 3, day, 10, 0, 0, 0, time.UTC)
	return &t
}

func row(orderID int64, patient, product string, qty, price int64, day int) model.SheetRow {
	return model.SheetRow{
		OrderID:     orderID,
		Patient:     patient,
		Product:     product,
		Quantity:    decimal.NewFromInt(qty),
		UnitPrice:   decimal.NewFromInt(price),
		Status:      model.OrderStatusFinalized,
		FinalizedAt: at(day),
	}
}

func TestGroupRows_FiltersAndGroups(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)

	inProgress := row(4, "Maria Pop", "Punte", 1, 50, 5)
	inProgress.Status = model.OrderStatusInProgress

	noDate := row(5, "Maria Pop", "Punte", 1, 50, 5)
	noDate.FinalizedAt = nil

	outOfRange := row(3, "Ion", "Coroană", 1, 100, 5)
	outOfRange.FinalizedAt = &time.Time{}

	rows := []model.SheetRow{
		row(1, "Maria Pop", "Coroană", 2, 100, 3),
		row(2, "Ion", "Punte", 1, 50, 10),
		outOfRange,
		row(1, "Maria Pop", "Punte", 1, 50, 3),
		inProgress,
		noDate,
	}

	groups := GroupRows(rows, from, to)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].Patient != "Maria Pop" || len(groups[0].Lines) != 2 {
		t.Fatalf("unexpected first group: %+v", groups[0])
	}
	if groups[1].Patient != "Ion" || len(groups[1].Lines) != 1 {
		t.Fatalf("unexpected second group: %+v", groups[1])
	}
}

func TestGroupRows_BoundsAreInclusive(t *testing.T) {
	from := *at(1)
	to := *at(31)

	groups := GroupRows([]model.SheetRow{
		row(1, "A", "X", 1, 1, 1),
		row(2, "B", "X", 1, 1, 31),
	}, from, to)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
}

func TestGroupRows_Defaults(t *testing.T) {
	r := row(1, "", "", 0, 10, 3)
	groups := GroupRows([]model.SheetRow{r}, *at(1), *at(31))
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	if g.Patient != "Necunoscut" || g.Lines[0].Product != "Produs" || !g.Lines[0].Quantity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected defaults: %+v", g)
	}
}

func TestLabArchive_SkipsDoctorsWithoutRows(t *testing.T) {
	repo := &stubRepo{
		doctors: []model.Doctor{
			{ID: 1, Name: "Ana Pop"},
			{ID: 2, Name: "Ion Ionescu"},
		},
		lines: map[int64][]model.SheetRow{
			1: {
				row(10, "Maria", "Coroană", 2, 100, 3),
				row(11, "Maria", "Punte", 1, 50, 4),
				row(12, "Dan", "Coroană", 1, 100, 5),
			},
		},
	}
	svc := NewService(repo, nil, nil)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)
	data, err := svc.LabArchive(context.Background(), from, to)
	if err != nil {
		t.Fatalf("LabArchive error: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	if len(zr.File) != 1 {
		t.Fatalf("files = %d, want 1", len(zr.File))
	}
	if zr.File[0].Name != "Doctor_Ana_Pop.xlsx" {
		t.Fatalf("file name = %s", zr.File[0].Name)
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()

	f, err := excelize.OpenReader(rc)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	formula, err := f.GetCellFormula(sheet.LabSheetName, "D12")
	if err != nil {
		t.Fatalf("get formula: %v", err)
	}
	if formula != `SUMIF(A6:A10,"<>Total Client",D6:D10)` {
		t.Fatalf("formula = %q", formula)
	}
}

func TestLabArchive_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")

	svc := NewService(&stubRepo{doctorsErr: boom}, nil, nil)
	if _, err := svc.LabArchive(context.Background(), *at(1), *at(31)); !errors.Is(err, boom) {
		t.Fatalf("expected doctors error, got %v", err)
	}

	svc = NewService(&stubRepo{doctors: []model.Doctor{{ID: 1, Name: "A"}}, linesErr: boom}, nil, nil)
	if _, err := svc.LabArchive(context.Background(), *at(1), *at(31)); !errors.Is(err, boom) {
		t.Fatalf("expected lines error, got %v", err)
	}
}

func TestOrderWorkbook(t *testing.T) {
	repo := &stubRepo{
		order: &model.OrderSheet{
			OrderID:  42,
			Doctor:   "Dr. Pop",
			Patient:  "Maria Pop",
			Products: []string{"Coroană"},
			Total:    decimal.NewFromInt(230),
		},
	}
	svc := NewService(repo, nil, nil)

	name, data, err := svc.OrderWorkbook(context.Background(), 42)
	if err != nil {
		t.Fatalf("OrderWorkbook error: %v", err)
	}
	if name != "Comanda_42_Maria_Pop.xlsx" {
		t.Fatalf("name = %s", name)
	}
	if len(data) == 0 {
		t.Fatalf("empty workbook")
	}
}

func TestOrderWorkbook_NotFound(t *testing.T) {
	svc := NewService(&stubRepo{orderErr: model.ErrOrderNotFound}, nil, nil)

	_, _, err := svc.OrderWorkbook(context.Background(), 42)
	if !errors.Is(err, model.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestFileNames(t *testing.T) {
	if got := DoctorFileName("Ana  Maria Pop"); got != "Doctor_Ana_Maria_Pop.xlsx" {
		t.Fatalf("DoctorFileName = %s", got)
	}
	if got := OrderFileName(7, ""); got != "Comanda_7_N_A.xlsx" {
		t.Fatalf("OrderFileName = %s", got)
	}
}

func TestClose(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if !repo.closed {
		t.Fatalf("repository must be closed")
	}
}
