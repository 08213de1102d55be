package postgrest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/dental-lab/internal/model"
)

type doctorRow struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type patientRow struct {
	Name     string `json:"name"`
	DoctorID int64  `json:"doctor_id"`
}

type productRow struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type technicianRow struct {
	Name string `json:"name"`
}

type orderRow struct {
	DoctorID    int64           `json:"doctor_id"`
	PatientID   int64           `json:"patient_id"`
	StartDate   time.Time       `json:"start_date"`
	Deadline    time.Time       `json:"deadline"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
	FinalizedAt *time.Time      `json:"finalized_at"`
	Status      string          `json:"status"`
	Technician  *string         `json:"technician"`
}

type orderStateRow struct {
	Status      string     `json:"status"`
	FinalizedAt *time.Time `json:"finalized_at"`
	Technician  *string    `json:"technician"`
}

type lineRow struct {
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

func first[T any](rows []T, what string, id int64) (T, error) {
	if len(rows) == 0 {
		var zero T
		return zero, fmt.Errorf("%s %d: %w", what, id, model.ErrNotFound)
	}
	return rows[0], nil
}

func list[T any](ctx context.Context, c *Client, table string, query url.Values) ([]T, error) {
	var rows []T
	if err := c.do(ctx, http.MethodGet, table, query, nil, &rows); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return rows, nil
}

func insert[T any](ctx context.Context, c *Client, table string, row any) (T, error) {
	var rows []T
	if err := c.do(ctx, http.MethodPost, table, nil, row, &rows); err != nil {
		var zero T
		return zero, fmt.Errorf("insert into %s: %w", table, err)
	}
	return first(rows, "insert into "+table, 0)
}

func update[T any](ctx context.Context, c *Client, table string, id int64, row any) (T, error) {
	var rows []T
	if err := c.do(ctx, http.MethodPatch, table, filter("id", eq(id)), row, &rows); err != nil {
		var zero T
		return zero, fmt.Errorf("update %s %d: %w", table, id, err)
	}
	return first(rows, "update "+table, id)
}

func (c *Client) remove(ctx context.Context, table string, id int64) error {
	var rows []struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodDelete, table, filter("id", eq(id)), nil, &rows); err != nil {
		return fmt.Errorf("delete from %s %d: %w", table, id, err)
	}
	_, err := first(rows, "delete from "+table, id)
	return err
}

// Snapshot читает содержимое всех таблиц.
func (c *Client) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	all := filter("select", "*", "order", "id.asc")

	var (
		snap model.Snapshot
		err  error
	)
	if snap.Doctors, err = list[model.Doctor](ctx, c, model.TableDoctors, all); err != nil {
		return nil, err
	}
	if snap.Patients, err = list[model.Patient](ctx, c, model.TablePatients, all); err != nil {
		return nil, err
	}
	if snap.Products, err = list[model.Product](ctx, c, model.TableProducts, all); err != nil {
		return nil, err
	}
	if snap.Technicians, err = list[model.Technician](ctx, c, model.TableTechnicians, all); err != nil {
		return nil, err
	}
	if snap.Orders, err = list[model.Order](ctx, c, model.TableOrders, all); err != nil {
		return nil, err
	}
	if snap.Lines, err = list[model.LineItem](ctx, c, model.TableOrderLines, all); err != nil {
		return nil, err
	}
	return &snap, nil
}

// InsertDoctor создаёт врача.
func (c *Client) InsertDoctor(ctx context.Context, d model.Doctor) (model.Doctor, error) {
	return insert[model.Doctor](ctx, c, model.TableDoctors, doctorRow{Name: d.Name, Email: d.Email, Phone: d.Phone})
}

// UpdateDoctor обновляет врача.
func (c *Client) UpdateDoctor(ctx context.Context, d model.Doctor) (model.Doctor, error) {
	return update[model.Doctor](ctx, c, model.TableDoctors, d.ID, doctorRow{Name: d.Name, Email: d.Email, Phone: d.Phone})
}

// DeleteDoctor удаляет врача; пациенты удаляются каскадно на стороне БД.
func (c *Client) DeleteDoctor(ctx context.Context, id int64) error {
	return c.remove(ctx, model.TableDoctors, id)
}

// InsertPatient создаёт пациента.
func (c *Client) InsertPatient(ctx context.Context, p model.Patient) (model.Patient, error) {
	return insert[model.Patient](ctx, c, model.TablePatients, patientRow{Name: p.Name, DoctorID: p.DoctorID})
}

// InsertProduct создаёт изделие.
func (c *Client) InsertProduct(ctx context.Context, p model.Product) (model.Product, error) {
	return insert[model.Product](ctx, c, model.TableProducts, productRow{Name: p.Name, Price: p.Price})
}

// UpdateProduct обновляет изделие.
func (c *Client) UpdateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	return update[model.Product](ctx, c, model.TableProducts, p.ID, productRow{Name: p.Name, Price: p.Price})
}

// DeleteProduct удаляет изделие.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.remove(ctx, model.TableProducts, id)
}

// InsertTechnician создаёт техника.
func (c *Client) InsertTechnician(ctx context.Context, t model.Technician) (model.Technician, error) {
	return insert[model.Technician](ctx, c, model.TableTechnicians, technicianRow{Name: t.Name})
}

// DeleteTechnician удаляет техника.
func (c *Client) DeleteTechnician(ctx context.Context, id int64) error {
	return c.remove(ctx, model.TableTechnicians, id)
}

func newOrderRow(o model.Order) orderRow {
	return orderRow{
		DoctorID:    o.DoctorID,
		PatientID:   o.PatientID,
		StartDate:   o.StartDate,
		Deadline:    o.Deadline,
		Discount:    o.Discount,
		Total:       o.Total,
		FinalizedAt: o.FinalizedAt,
		Status:      string(o.Status),
		Technician:  o.Technician,
	}
}

// insertLines записывает позиции по одной. Ошибки отдельных позиций
// собираются в model.LineInsertError.
func (c *Client) insertLines(ctx context.Context, orderID int64, lines []model.LineItem) ([]model.LineItem, error) {
	res := make([]model.LineItem, 0, len(lines))
	var errs []error
	for _, l := range lines {
		row, err := insert[model.LineItem](ctx, c, model.TableOrderLines, lineRow{
			OrderID:   orderID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res = append(res, row)
	}

	if len(errs) > 0 {
		return res, &model.LineInsertError{
			OrderID: orderID,
			Failed:  len(errs),
			Total:   len(lines),
			Err:     errors.Join(errs...),
		}
	}
	return res, nil
}

// CreateOrder создаёт заказ и его позиции. REST API не позволяет объединить
// запросы в транзакцию, поэтому при ошибке любой позиции заказ удаляется.
func (c *Client) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	created, err := insert[model.Order](ctx, c, model.TableOrders, newOrderRow(o))
	if err != nil {
		return model.Order{}, err
	}

	created.Lines, err = c.insertLines(ctx, created.ID, o.Lines)
	if err != nil {
		if delErr := c.remove(ctx, model.TableOrders, created.ID); delErr != nil {
			c.logger.Error("failed to remove partially saved order", zap.Int64("orderID", created.ID), zap.Error(delErr))
			return model.Order{}, errors.Join(err, delErr)
		}
		return model.Order{}, err
	}
	return created, nil
}

// UpdateOrder обновляет заказ и заменяет его позиции.
func (c *Client) UpdateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	row := newOrderRow(o)
	updated, err := update[model.Order](ctx, c, model.TableOrders, o.ID, row)
	if err != nil {
		return model.Order{}, err
	}

	if err := c.do(ctx, http.MethodDelete, model.TableOrderLines, filter("order_id", eq(o.ID)), nil, nil); err != nil {
		return model.Order{}, fmt.Errorf("delete lines of order %d: %w", o.ID, err)
	}

	updated.Lines, err = c.insertLines(ctx, o.ID, o.Lines)
	if err != nil {
		return model.Order{}, err
	}
	return updated, nil
}

// UpdateOrderState записывает статус, дату завершения и техника заказа.
func (c *Client) UpdateOrderState(ctx context.Context, id int64, st model.OrderState) (time.Time, error) {
	updated, err := update[model.Order](ctx, c, model.TableOrders, id, orderStateRow{
		Status:      string(st.Status),
		FinalizedAt: st.FinalizedAt,
		Technician:  st.Technician,
	})
	if err != nil {
		return time.Time{}, err
	}
	return updated.UpdatedAt, nil
}

// DeleteOrder удаляет заказ; позиции удаляются каскадно на стороне БД.
func (c *Client) DeleteOrder(ctx context.Context, id int64) error {
	return c.remove(ctx, model.TableOrders, id)
}
