package postgrest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/dental-lab/internal/model"
)

// Close ничего не освобождает: клиент не держит соединений.
func (c *Client) Close() error { return nil }

// ListDoctors возвращает всех врачей.
func (c *Client) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	return list[model.Doctor](ctx, c, model.TableDoctors, filter("select", "id,name,email,phone,updated_at", "order", "id.asc"))
}

// FinalizedLines возвращает позиции завершённых заказов врача с датой
// завершения в интервале [from, to]. Таблица заказов не связана внешними
// ключами с пациентами, поэтому строки собираются из нескольких запросов.
func (c *Client) FinalizedLines(ctx context.Context, doctorID int64, from, to time.Time) ([]model.SheetRow, error) {
	q := filter(
		"select", "*",
		"doctor_id", eq(doctorID),
		"status", "eq."+string(model.OrderStatusFinalized),
		"finalized_at", "not.is.null",
		"order", "id.asc",
	)
	q.Add("finalized_at", "gte."+ts(from))
	q.Add("finalized_at", "lte."+ts(to))

	orders, err := list[model.Order](ctx, c, model.TableOrders, q)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	orderIDs := make([]int64, 0, len(orders))
	patientIDs := make([]int64, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
		patientIDs = append(patientIDs, o.PatientID)
	}

	patients, err := list[model.Patient](ctx, c, model.TablePatients, filter("select", "*", "id", in(patientIDs)))
	if err != nil {
		return nil, err
	}
	patientNames := make(map[int64]string, len(patients))
	for _, p := range patients {
		patientNames[p.ID] = p.Name
	}

	lines, err := list[model.LineItem](ctx, c, model.TableOrderLines, filter("select", "*", "order_id", in(orderIDs), "order", "id.asc"))
	if err != nil {
		return nil, err
	}

	products, err := c.productsByID(ctx, lines)
	if err != nil {
		return nil, err
	}

	linesByOrder := make(map[int64][]model.LineItem)
	for _, l := range lines {
		linesByOrder[l.OrderID] = append(linesByOrder[l.OrderID], l)
	}

	var rows []model.SheetRow
	for _, o := range orders {
		patient, ok := patientNames[o.PatientID]
		if !ok {
			continue
		}
		for _, l := range linesByOrder[o.ID] {
			p, ok := products[l.ProductID]
			if !ok {
				continue
			}
			rows = append(rows, model.SheetRow{
				OrderID:     o.ID,
				Patient:     patient,
				Product:     p.Name,
				Quantity:    l.Quantity,
				UnitPrice:   p.Price,
				Status:      o.Status,
				FinalizedAt: o.FinalizedAt,
			})
		}
	}
	return rows, nil
}

func (c *Client) productsByID(ctx context.Context, lines []model.LineItem) (map[int64]model.Product, error) {
	res := make(map[int64]model.Product)
	if len(lines) == 0 {
		return res, nil
	}

	seen := make(map[int64]bool)
	var ids []int64
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}

	products, err := list[model.Product](ctx, c, model.TableProducts, filter("select", "*", "id", in(ids)))
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		res[p.ID] = p
	}
	return res, nil
}

// OrderSheet возвращает данные для выгрузки одного заказа. Заказ без
// найденного врача или пациента считается отсутствующим.
func (c *Client) OrderSheet(ctx context.Context, orderID int64) (*model.OrderSheet, error) {
	orders, err := list[model.Order](ctx, c, model.TableOrders, filter("select", "*", "id", eq(orderID)))
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("order %d: %w", orderID, model.ErrOrderNotFound)
	}
	o := orders[0]

	doctors, err := list[model.Doctor](ctx, c, model.TableDoctors, filter("select", "*", "id", eq(o.DoctorID)))
	if err != nil {
		return nil, err
	}
	patients, err := list[model.Patient](ctx, c, model.TablePatients, filter("select", "*", "id", eq(o.PatientID)))
	if err != nil {
		return nil, err
	}
	if len(doctors) == 0 || len(patients) == 0 {
		return nil, fmt.Errorf("order %d: %w", orderID, model.ErrOrderNotFound)
	}

	lines, err := list[model.LineItem](ctx, c, model.TableOrderLines, filter("select", "*", "order_id", eq(orderID), "order", "id.asc"))
	if err != nil {
		return nil, errors.Join(model.ErrLinesUnavailable, err)
	}
	products, err := c.productsByID(ctx, lines)
	if err != nil {
		return nil, errors.Join(model.ErrLinesUnavailable, err)
	}

	sheet := &model.OrderSheet{
		OrderID: o.ID,
		Doctor:  doctors[0].Name,
		Patient: patients[0].Name,
		Total:   o.Total,
	}
	for _, l := range lines {
		if p, ok := products[l.ProductID]; ok {
			sheet.Products = append(sheet.Products, p.Name)
		}
	}
	return sheet, nil
}
