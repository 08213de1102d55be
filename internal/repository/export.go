package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mmeshcher/dental-lab/internal/model"
)

// FinalizedLines возвращает позиции завершённых заказов врача с датой
// завершения в интервале [from, to].
func (r *PostgresRepository) FinalizedLines(ctx context.Context, doctorID int64, from, to time.Time) ([]model.SheetRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, p.name, pr.name, l.quantity, pr.price, o.status, o.finalized_at
		 FROM orders o
		 JOIN patients p ON p.id = o.patient_id
		 JOIN order_lines l ON l.order_id = o.id
		 JOIN products pr ON pr.id = l.product_id
		 WHERE o.doctor_id = $1
		   AND o.status = $2
		   AND o.finalized_at IS NOT NULL
		   AND o.finalized_at BETWEEN $3 AND $4
		 ORDER BY o.id, l.id`,
		doctorID, string(model.OrderStatusFinalized), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("select finalized lines: %w", err)
	}

	return collect(rows, "finalized line", func(rows pgx.Rows) (model.SheetRow, error) {
		var (
			row             model.SheetRow
			quantity, price pgtype.Numeric
			status          string
		)
		if err := rows.Scan(&row.OrderID, &row.Patient, &row.Product, &quantity, &price, &status, &row.FinalizedAt); err != nil {
			return row, err
		}
		row.Quantity = fromNumeric(quantity)
		row.UnitPrice = fromNumeric(price)
		row.Status = model.OrderStatus(status)
		return row, nil
	})
}

// OrderSheet возвращает данные для выгрузки одного заказа.
func (r *PostgresRepository) OrderSheet(ctx context.Context, orderID int64) (*model.OrderSheet, error) {
	var (
		sheet model.OrderSheet
		total pgtype.Numeric
	)
	err := r.pool.QueryRow(ctx,
		`SELECT o.id, d.name, p.name, o.total
		 FROM orders o
		 JOIN doctors d ON d.id = o.doctor_id
		 JOIN patients p ON p.id = o.patient_id
		 WHERE o.id = $1`,
		orderID,
	).Scan(&sheet.OrderID, &sheet.Doctor, &sheet.Patient, &total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", orderID, model.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("select order %d: %w", orderID, err)
	}
	sheet.Total = fromNumeric(total)

	rows, err := r.pool.Query(ctx,
		`SELECT pr.name
		 FROM order_lines l
		 JOIN products pr ON pr.id = l.product_id
		 WHERE l.order_id = $1
		 ORDER BY l.id`,
		orderID,
	)
	if err != nil {
		return nil, errors.Join(model.ErrLinesUnavailable, err)
	}
	sheet.Products, err = collect(rows, "product name", func(rows pgx.Rows) (string, error) {
		var name string
		err := rows.Scan(&name)
		return name, err
	})
	if err != nil {
		return nil, errors.Join(model.ErrLinesUnavailable, err)
	}

	return &sheet, nil
}
