package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mmeshcher/dental-lab/internal/model"
)

func scanDoctor(row pgx.Row) (model.Doctor, error) {
	var d model.Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Email, &d.Phone, &d.UpdatedAt)
	return d, err
}

func scanPatient(row pgx.Row) (model.Patient, error) {
	var p model.Patient
	err := row.Scan(&p.ID, &p.Name, &p.DoctorID, &p.UpdatedAt)
	return p, err
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var (
		p     model.Product
		price pgtype.Numeric
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.UpdatedAt); err != nil {
		return p, err
	}
	p.Price = fromNumeric(price)
	return p, nil
}

func scanTechnician(row pgx.Row) (model.Technician, error) {
	var t model.Technician
	err := row.Scan(&t.ID, &t.Name, &t.UpdatedAt)
	return t, err
}

// notFound переводит pgx.ErrNoRows в model.ErrNotFound.
func notFound(err error, what string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, model.ErrNotFound)
	}
	return fmt.Errorf("%s %d: %w", what, id, err)
}

func (r *PostgresRepository) exec(ctx context.Context, what string, id int64, sql string) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx, sql, id)
		if err != nil {
			return fmt.Errorf("%s %d: %w", what, id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%s %d: %w", what, id, model.ErrNotFound)
		}
		return nil
	})
}

// ListDoctors возвращает всех врачей.
func (r *PostgresRepository) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email, phone, updated_at FROM doctors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select doctors: %w", err)
	}
	return collect(rows, "doctor", func(rows pgx.Rows) (model.Doctor, error) { return scanDoctor(rows) })
}

func (r *PostgresRepository) listPatients(ctx context.Context) ([]model.Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, doctor_id, updated_at FROM patients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select patients: %w", err)
	}
	return collect(rows, "patient", func(rows pgx.Rows) (model.Patient, error) { return scanPatient(rows) })
}

func (r *PostgresRepository) listProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, price, updated_at FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	return collect(rows, "product", func(rows pgx.Rows) (model.Product, error) { return scanProduct(rows) })
}

func (r *PostgresRepository) listTechnicians(ctx context.Context) ([]model.Technician, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, updated_at FROM technicians ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select technicians: %w", err)
	}
	return collect(rows, "technician", func(rows pgx.Rows) (model.Technician, error) { return scanTechnician(rows) })
}

// InsertDoctor создаёт врача.
func (r *PostgresRepository) InsertDoctor(ctx context.Context, d model.Doctor) (model.Doctor, error) {
	var res model.Doctor
	err := r.withRetry(ctx, func() error {
		var err error
		res, err = scanDoctor(r.pool.QueryRow(ctx,
			`INSERT INTO doctors (name, email, phone) VALUES ($1, $2, $3)
			 RETURNING id, name, email, phone, updated_at`,
			d.Name, d.Email, d.Phone,
		))
		return err
	})
	if err != nil {
		return model.Doctor{}, fmt.Errorf("insert doctor: %w", err)
	}
	return res, nil
}

// UpdateDoctor обновляет врача.
func (r *PostgresRepository) UpdateDoctor(ctx context.Context, d model.Doctor) (model.Doctor, error) {
	var res model.Doctor
	err := r.withRetry(ctx, func() error {
		var err error
		res, err = scanDoctor(r.pool.QueryRow(ctx,
			`UPDATE doctors SET name = $2, email = $3, phone = $4 WHERE id = $1
			 RETURNING id, name, email, phone, updated_at`,
			d.ID, d.Name, d.Email, d.Phone,
		))
		return err
	})
	if err != nil {
		return model.Doctor{}, notFound(err, "update doctor", d.ID)
	}
	return res, nil
}

// DeleteDoctor удаляет врача; пациенты удаляются каскадно.
func (r *PostgresRepository) DeleteDoctor(ctx context.Context, id int64) error {
	return r.exec(ctx, "delete doctor", id, `DELETE FROM doctors WHERE id = $1`)
}

// InsertPatient создаёт пациента.
func (r *PostgresRepository) InsertPatient(ctx context.Context, p model.Patient) (model.Patient, error) {
	var res model.Patient
	err := r.withRetry(ctx, func() error {
		var err error
		res, err = scanPatient(r.pool.QueryRow(ctx,
			`INSERT INTO patients (name, doctor_id) VALUES ($1, $2)
			 RETURNING id, name, doctor_id, updated_at`,
			p.Name, p.DoctorID,
		))
		return err
	})
	if err != nil {
		return model.Patient{}, fmt.Errorf("insert patient: %w", err)
	}
	return res, nil
}

// InsertProduct создаёт изделие.
func (r *PostgresRepository) InsertProduct(ctx context.Context, p model.Product) (model.Product, error) {
	var res model.Product
	err := r.withRetry(ctx, func() error {
		var err error
		res, err = scanProduct(r.pool.QueryRow(ctx,
			`INSERT INTO products (name, price) VALUES ($1, $2)
			 RETURNING id, name, price, updated_at`,
			p.Name, toNumeric(p.Price),
		))
		return err
	})
	if err != nil {
		return model.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return res, nil
}

// UpdateProduct обновляет изделие.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	var res model.Product
	err := r.withRetry(ctx, func() error {
		var err error
		res, err = scanProduct(r.pool.QueryRow(ctx,
			`UPDATE products SET name = $2, price = $3 WHERE id = $1
			 RETURNING id, name, price, updated_at`,
			p.ID, p.Name, toNumeric(p.Price),
		))
		return err
	})
	if err != nil {
		return model.Product{}, notFound(err, "update product", p.ID)
	}
	return res, nil
}

// DeleteProduct удаляет изделие.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, id int64) error {
	return r.exec(ctx, "delete product", id, `DELETE FROM products WHERE id = $1`)
}

// InsertTechnician создаёт техника.
func (r *PostgresRepository) InsertTechnician(ctx context.Context, t model.Technician) (model.Technician, error) {
	var res model.Technician
	err := r.withRetry(ctx, func() error {
		var err error
		res, err = scanTechnician(r.pool.QueryRow(ctx,
			`INSERT INTO technicians (name) VALUES ($1) RETURNING id, name, updated_at`,
			t.Name,
		))
		return err
	})
	if err != nil {
		return model.Technician{}, fmt.Errorf("insert technician: %w", err)
	}
	return res, nil
}

// DeleteTechnician удаляет техника.
func (r *PostgresRepository) DeleteTechnician(ctx context.Context, id int64) error {
	return r.exec(ctx, "delete technician", id, `DELETE FROM technicians WHERE id = $1`)
}
