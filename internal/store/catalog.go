package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/dental-lab/internal/model"
)

func validateProduct(p model.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product name: %w", model.ErrInvalidInput)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("product price: %w", model.ErrInvalidInput)
	}
	return nil
}

// AddProduct добавляет изделие в каталог.
func (s *Store) AddProduct(ctx context.Context, p model.Product) (model.Product, error) {
	p.ID = 0
	p.Name = strings.TrimSpace(p.Name)
	if err := validateProduct(p); err != nil {
		return model.Product{}, err
	}

	if s.gw != nil {
		row, err := s.gw.InsertProduct(ctx, p)
		if err == nil {
			s.mu.Lock()
			s.products[row.ID] = row
			s.touch(model.TableProducts, row.ID, row.UpdatedAt)
			s.mu.Unlock()
			s.success(fmt.Sprintf("Product %s was added.", row.Name), zap.Int64("productID", row.ID))
			return row, nil
		}
		s.warn("Failed to save the product to the database, using local storage.", zap.Error(err))
	}

	s.mu.Lock()
	p.ID = s.localID()
	p.UpdatedAt = s.now()
	s.products[p.ID] = p
	s.touch(model.TableProducts, p.ID, p.UpdatedAt)
	s.mu.Unlock()

	if s.gw == nil {
		s.success(fmt.Sprintf("Product %s was added.", p.Name), zap.Int64("productID", p.ID))
	}
	return p, nil
}

// UpdateProduct меняет название или цену изделия. Суммы сохранённых заказов
// не пересчитываются.
func (s *Store) UpdateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := validateProduct(p); err != nil {
		return model.Product{}, err
	}

	s.mu.Lock()
	_, ok := s.products[p.ID]
	s.mu.Unlock()
	if !ok {
		return model.Product{}, fmt.Errorf("product %d: %w", p.ID, model.ErrNotFound)
	}

	p.UpdatedAt = s.now()
	if s.gw != nil {
		row, err := s.gw.UpdateProduct(ctx, p)
		if err != nil {
			s.warn("Failed to update the product in the database, updating locally.", zap.Int64("productID", p.ID), zap.Error(err))
		} else {
			p = row
		}
	}

	s.mu.Lock()
	s.products[p.ID] = p
	s.touch(model.TableProducts, p.ID, p.UpdatedAt)
	s.mu.Unlock()

	s.success(fmt.Sprintf("Product %s was updated.", p.Name), zap.Int64("productID", p.ID))
	return p, nil
}

// DeleteProduct удаляет изделие из каталога.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	s.mu.Lock()
	_, ok := s.products[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}

	if s.gw != nil {
		if err := s.gw.DeleteProduct(ctx, id); err != nil {
			s.warn("Failed to delete the product from the database, deleting locally.", zap.Int64("productID", id), zap.Error(err))
		}
	}

	s.mu.Lock()
	delete(s.products, id)
	s.bury(model.TableProducts, id)
	s.mu.Unlock()

	s.success("Product was deleted.", zap.Int64("productID", id))
	return nil
}

// AddTechnician добавляет техника.
func (s *Store) AddTechnician(ctx context.Context, t model.Technician) (model.Technician, error) {
	t.ID = 0
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return model.Technician{}, fmt.Errorf("technician name: %w", model.ErrInvalidInput)
	}

	if s.gw != nil {
		row, err := s.gw.InsertTechnician(ctx, t)
		if err == nil {
			s.mu.Lock()
			s.technicians[row.ID] = row
			s.touch(model.TableTechnicians, row.ID, row.UpdatedAt)
			s.mu.Unlock()
			s.success(fmt.Sprintf("Technician %s was added.", row.Name), zap.Int64("technicianID", row.ID))
			return row, nil
		}
		s.warn("Failed to save the technician to the database, using local storage.", zap.Error(err))
	}

	s.mu.Lock()
	t.ID = s.localID()
	t.UpdatedAt = s.now()
	s.technicians[t.ID] = t
	s.touch(model.TableTechnicians, t.ID, t.UpdatedAt)
	s.mu.Unlock()

	if s.gw == nil {
		s.success(fmt.Sprintf("Technician %s was added.", t.Name), zap.Int64("technicianID", t.ID))
	}
	return t, nil
}

// DeleteTechnician удаляет техника. Имена техников в заказах не меняются.
func (s *Store) DeleteTechnician(ctx context.Context, id int64) error {
	s.mu.Lock()
	_, ok := s.technicians[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("technician %d: %w", id, model.ErrNotFound)
	}

	if s.gw != nil {
		if err := s.gw.DeleteTechnician(ctx, id); err != nil {
			s.warn("Failed to delete the technician from the database, deleting locally.", zap.Int64("technicianID", id), zap.Error(err))
		}
	}

	s.mu.Lock()
	delete(s.technicians, id)
	s.bury(model.TableTechnicians, id)
	s.mu.Unlock()

	s.success("Technician was deleted.", zap.Int64("technicianID", id))
	return nil
}

// priceLocked возвращает текущую цену изделия. Вызывается под s.mu.
func (s *Store) priceLocked(id int64) (decimal.Decimal, bool) {
	p, ok := s.products[id]
	if !ok {
		return decimal.Zero, false
	}
	return p.Price, true
}
