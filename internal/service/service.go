// Package service реализует выгрузки лаборатории в Excel.
package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/dental-lab/internal/model"
	"github.com/mmeshcher/dental-lab/internal/sheet"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	ListDoctors(ctx context.Context) ([]model.Doctor, error)
	FinalizedLines(ctx context.Context, doctorID int64, from, to time.Time) ([]model.SheetRow, error)
	OrderSheet(ctx context.Context, orderID int64) (*model.OrderSheet, error)
}

// Service формирует выгрузки по данным удалённого хранилища.
type Service struct {
	repo   Repository
	logo   []byte
	logger *zap.Logger
}

// NewService создаёт сервис выгрузок. logo может быть nil.
func NewService(repo Repository, logo []byte, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		logo:   logo,
		logger: logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// LabArchive формирует ZIP-архив со сводной книгой на каждого врача, у
// которого есть завершённые в интервале [from, to] заказы.
func (s *Service) LabArchive(ctx context.Context, from, to time.Time) ([]byte, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	var files []sheet.File
	for _, d := range doctors {
		rows, err := s.repo.FinalizedLines(ctx, d.ID, from, to)
		if err != nil {
			return nil, fmt.Errorf("read lines of doctor %d: %w", d.ID, err)
		}

		groups := GroupRows(rows, from, to)
		if len(groups) == 0 {
			continue
		}

		data, err := sheet.LabWorkbook(d.Name, groups, s.logo)
		if err != nil {
			return nil, err
		}
		files = append(files, sheet.File{Name: DoctorFileName(d.Name), Data: data})
	}

	s.logger.Info("lab export built",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("doctors", len(doctors)),
		zap.Int("files", len(files)),
	)
	return sheet.Zip(files)
}

// OrderWorkbook формирует книгу одного заказа и имя файла для неё.
func (s *Service) OrderWorkbook(ctx context.Context, orderID int64) (string, []byte, error) {
	o, err := s.repo.OrderSheet(ctx, orderID)
	if err != nil {
		return "", nil, err
	}

	data, err := sheet.OrderWorkbook(*o)
	if err != nil {
		return "", nil, err
	}
	return OrderFileName(orderID, o.Patient), data, nil
}

// GroupRows оставляет строки завершённых заказов с датой завершения в
// интервале [from, to] и группирует их по имени пациента в порядке первого
// появления.
func GroupRows(rows []model.SheetRow, from, to time.Time) []model.PatientLines {
	var groups []model.PatientLines
	index := make(map[string]int)

	for _, r := range rows {
		if r.Status != model.OrderStatusFinalized || r.FinalizedAt == nil {
			continue
		}
		if r.FinalizedAt.Before(from) || r.FinalizedAt.After(to) {
			continue
		}

		patient := r.Patient
		if patient == "" {
			patient = "Necunoscut"
		}
		product := r.Product
		if product == "" {
			product = "Produs"
		}
		quantity := r.Quantity
		if quantity.IsZero() {
			quantity = decimal.NewFromInt(1)
		}

		i, ok := index[patient]
		if !ok {
			i = len(groups)
			index[patient] = i
			groups = append(groups, model.PatientLines{Patient: patient})
		}
		groups[i].Lines = append(groups[i].Lines, model.SheetLine{
			Product:   product,
			Quantity:  quantity,
			UnitPrice: r.UnitPrice,
		})
	}
	return groups
}

// separators заменяются подчёркиванием в именах файлов.
var separators = regexp.MustCompile(`[\s/\\]+`)

// DoctorFileName возвращает имя файла сводной книги врача.
func DoctorFileName(name string) string {
	return "Doctor_" + separators.ReplaceAllString(name, "_") + ".xlsx"
}

// OrderFileName возвращает имя файла книги заказа.
func OrderFileName(orderID int64, patient string) string {
	if patient == "" {
		patient = "N/A"
	}
	return fmt.Sprintf("Comanda_%d_%s.xlsx", orderID, separators.ReplaceAllString(patient, "_"))
}
