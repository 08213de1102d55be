package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mmeshcher/dental-lab/internal/model"
)

const orderColumns = `id, doctor_id, patient_id, start_date, deadline, discount, total,
	finalized_at, status, technician, updated_at`

func scanOrder(row pgx.Row) (model.Order, error) {
	var (
		o               model.Order
		discount, total pgtype.Numeric
		status          string
	)
	err := row.Scan(&o.ID, &o.DoctorID, &o.PatientID, &o.StartDate, &o.Deadline,
		&discount, &total, &o.FinalizedAt, &status, &o.Technician, &o.UpdatedAt)
	if err != nil {
		return o, err
	}
	o.Discount = fromNumeric(discount)
	o.Total = fromNumeric(total)
	o.Status = model.OrderStatus(status)
	return o, nil
}

func scanLine(row pgx.Row) (model.LineItem, error) {
	var (
		l        model.LineItem
		quantity pgtype.Numeric
	)
	if err := row.Scan(&l.ID, &l.OrderID, &l.ProductID, &quantity, &l.UpdatedAt); err != nil {
		return l, err
	}
	l.Quantity = fromNumeric(quantity)
	return l, nil
}

func (r *PostgresRepository) listOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return collect(rows, "order", func(rows pgx.Rows) (model.Order, error) { return scanOrder(rows) })
}

func (r *PostgresRepository) listLines(ctx context.Context) ([]model.LineItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, quantity, updated_at FROM order_lines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select order lines: %w", err)
	}
	return collect(rows, "order line", func(rows pgx.Rows) (model.LineItem, error) { return scanLine(rows) })
}

// insertLines записывает позиции заказа в рамках транзакции.
func insertLines(ctx context.Context, tx pgx.Tx, orderID int64, lines []model.LineItem) ([]model.LineItem, error) {
	res := make([]model.LineItem, 0, len(lines))
	for i, l := range lines {
		row, err := scanLine(tx.QueryRow(ctx,
			`INSERT INTO order_lines (order_id, product_id, quantity) VALUES ($1, $2, $3)
			 RETURNING id, order_id, product_id, quantity, updated_at`,
			orderID, l.ProductID, toNumeric(l.Quantity),
		))
		if err != nil {
			return nil, fmt.Errorf("insert line %d: %w", i, err)
		}
		res = append(res, row)
	}
	return res, nil
}

// CreateOrder создаёт заказ вместе с позициями в одной транзакции.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	var res model.Order
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		res, err = scanOrder(tx.QueryRow(ctx,
			`INSERT INTO orders (doctor_id, patient_id, start_date, deadline, discount, total, finalized_at, status, technician)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING `+orderColumns,
			o.DoctorID, o.PatientID, o.StartDate, o.Deadline,
			toNumeric(o.Discount), toNumeric(o.Total),
			o.FinalizedAt, string(o.Status), o.Technician,
		))
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		if res.Lines, err = insertLines(ctx, tx, res.ID, o.Lines); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}
	return res, nil
}

// UpdateOrder заменяет данные заказа и его позиции в одной транзакции.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	var res model.Order
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		res, err = scanOrder(tx.QueryRow(ctx,
			`UPDATE orders
			 SET doctor_id = $2, patient_id = $3, start_date = $4, deadline = $5,
			     discount = $6, total = $7, status = $8
			 WHERE id = $1
			 RETURNING `+orderColumns,
			o.ID, o.DoctorID, o.PatientID, o.StartDate, o.Deadline,
			toNumeric(o.Discount), toNumeric(o.Total), string(o.Status),
		))
		if err != nil {
			return notFound(err, "update order", o.ID)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, o.ID); err != nil {
			return fmt.Errorf("delete lines: %w", err)
		}
		if res.Lines, err = insertLines(ctx, tx, o.ID, o.Lines); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return res, nil
}

// UpdateOrderState записывает статус, дату завершения и техника заказа и
// возвращает новое время изменения строки.
func (r *PostgresRepository) UpdateOrderState(ctx context.Context, id int64, st model.OrderState) (time.Time, error) {
	var updatedAt time.Time
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE orders SET status = $2, finalized_at = $3, technician = $4 WHERE id = $1 RETURNING updated_at`,
			id, string(st.Status), st.FinalizedAt, st.Technician,
		).Scan(&updatedAt)
	})
	if err != nil {
		return time.Time{}, notFound(err, "update order state", id)
	}
	return updatedAt, nil
}

// DeleteOrder удаляет заказ; позиции удаляются каскадно.
func (r *PostgresRepository) DeleteOrder(ctx context.Context, id int64) error {
	return r.exec(ctx, "delete order", id, `DELETE FROM orders WHERE id = $1`)
}
