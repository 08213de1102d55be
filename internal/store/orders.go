package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/dental-lab/internal/model"
	"github.com/mmeshcher/dental-lab/internal/pricing"
)

// AddOrderResult содержит созданный заказ и созданных по пути врача и пациента.
type AddOrderResult struct {
	Order      model.Order
	NewDoctor  *model.Doctor
	NewPatient *model.Patient
}

func validateLines(lines []model.LineItem) error {
	if len(lines) == 0 {
		return fmt.Errorf("order has no line items: %w", model.ErrInvalidInput)
	}
	for i, l := range lines {
		if l.ProductID == 0 {
			return fmt.Errorf("line %d: product is required: %w", i, model.ErrInvalidInput)
		}
		if !l.Quantity.IsPositive() {
			return fmt.Errorf("line %d: quantity must be positive: %w", i, model.ErrInvalidInput)
		}
	}
	return nil
}

// AddOrder создаёт заказ. Врач и пациент задаются ссылками: по идентификатору
// или по имени. Имя, совпадающее без учёта регистра с существующей записью,
// переиспользует её; иначе запись создаётся до заказа (сначала врач, затем
// пациент).
func (s *Store) AddOrder(ctx context.Context, draft model.OrderDraft) (AddOrderResult, error) {
	if !draft.Doctor.Valid() || !draft.Patient.Valid() {
		return AddOrderResult{}, fmt.Errorf("doctor and patient references: %w", model.ErrInvalidInput)
	}
	if err := validateLines(draft.Lines); err != nil {
		return AddOrderResult{}, err
	}
	if draft.Discount.IsNegative() {
		return AddOrderResult{}, fmt.Errorf("discount must not be negative: %w", model.ErrInvalidInput)
	}

	doctor := model.RefName(draft.Doctor.Name)
	patient := model.RefName(draft.Patient.Name)
	if !draft.Doctor.IsNew() {
		doctor = draft.Doctor
	}
	if !draft.Patient.IsNew() {
		patient = draft.Patient
	}

	s.mu.Lock()
	if doctor.IsNew() {
		if d, ok := s.findDoctorLocked(doctor.Name); ok {
			doctor = model.RefID(d.ID)
		}
	} else if _, ok := s.doctors[doctor.ID]; !ok {
		s.mu.Unlock()
		return AddOrderResult{}, fmt.Errorf("doctor %d: %w", doctor.ID, model.ErrNotFound)
	}
	if patient.IsNew() {
		if !doctor.IsNew() {
			if p, ok := s.findPatientLocked(doctor.ID, patient.Name); ok {
				patient = model.RefID(p.ID)
			}
		}
	} else if _, ok := s.patients[patient.ID]; !ok {
		s.mu.Unlock()
		return AddOrderResult{}, fmt.Errorf("patient %d: %w", patient.ID, model.ErrNotFound)
	}

	now := s.now()
	order := model.Order{
		DoctorID:  doctor.ID,
		PatientID: patient.ID,
		StartDate: draft.StartDate.UTC(),
		Deadline:  draft.Deadline.UTC(),
		Discount:  draft.Discount,
		Total:     pricing.Total(draft.Lines, draft.Discount, s.priceLocked),
		Status:    model.StatusForDeadline(draft.Deadline, now),
		Lines:     make([]model.LineItem, 0, len(draft.Lines)),
	}
	for _, l := range draft.Lines {
		order.Lines = append(order.Lines, model.LineItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	s.mu.Unlock()

	var res AddOrderResult
	if s.gw != nil {
		created, err := s.persistOrder(ctx, doctor, patient, order, &res)
		if err == nil {
			res.Order = created
			s.success("Order was created.", zap.Int64("orderID", created.ID))
			return res, nil
		}

		var lineErr *model.LineInsertError
		if errors.As(err, &lineErr) {
			s.warn(fmt.Sprintf("%d of %d line items could not be saved to the database, the order is kept locally.", lineErr.Failed, lineErr.Total), zap.Error(err))
		} else {
			s.warn("Failed to save the order to the database, using local storage.", zap.Error(err))
		}
		if res.NewDoctor != nil {
			order.DoctorID = res.NewDoctor.ID
		}
		if res.NewPatient != nil {
			order.PatientID = res.NewPatient.ID
		}
	}

	s.mu.Lock()
	if doctor.IsNew() && res.NewDoctor == nil {
		d := model.Doctor{ID: s.localID(), Name: doctor.Name, UpdatedAt: now}
		s.putDoctorLocked(d)
		s.touch(model.TableDoctors, d.ID, d.UpdatedAt)
		res.NewDoctor = &d
		order.DoctorID = d.ID
	}
	if patient.IsNew() && res.NewPatient == nil {
		p := model.Patient{ID: s.localID(), Name: patient.Name, DoctorID: order.DoctorID, UpdatedAt: now}
		s.patients[p.ID] = p
		s.touch(model.TablePatients, p.ID, p.UpdatedAt)
		res.NewPatient = &p
		order.PatientID = p.ID
	}
	order.ID = s.localID()
	order.UpdatedAt = now
	for i := range order.Lines {
		order.Lines[i].ID = s.localID()
		order.Lines[i].OrderID = order.ID
		order.Lines[i].UpdatedAt = now
	}
	s.putOrderLocked(order)
	s.touch(model.TableOrders, order.ID, order.UpdatedAt)
	res.Order = s.orders[order.ID].Clone()
	s.mu.Unlock()

	if s.gw == nil {
		s.success("Order was created.", zap.Int64("orderID", order.ID))
	}
	return res, nil
}

// persistOrder записывает нового врача, нового пациента и заказ с позициями
// именно в таком порядке. Созданные записи сразу попадают в локальные коллекции.
func (s *Store) persistOrder(ctx context.Context, doctor, patient model.Ref, order model.Order, res *AddOrderResult) (model.Order, error) {
	if doctor.IsNew() {
		row, err := s.gw.InsertDoctor(ctx, model.Doctor{Name: doctor.Name})
		if err != nil {
			return model.Order{}, fmt.Errorf("insert doctor: %w", err)
		}
		s.mu.Lock()
		s.putDoctorLocked(row)
		s.touch(model.TableDoctors, row.ID, row.UpdatedAt)
		s.mu.Unlock()
		res.NewDoctor = &row
		order.DoctorID = row.ID
	}

	if patient.IsNew() {
		row, err := s.gw.InsertPatient(ctx, model.Patient{Name: patient.Name, DoctorID: order.DoctorID})
		if err != nil {
			return model.Order{}, fmt.Errorf("insert patient: %w", err)
		}
		s.mu.Lock()
		s.patients[row.ID] = row
		s.touch(model.TablePatients, row.ID, row.UpdatedAt)
		s.revalidateLocked()
		s.mu.Unlock()
		res.NewPatient = &row
		order.PatientID = row.ID
	}

	created, err := s.gw.CreateOrder(ctx, order)
	if err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.putOrderLocked(created)
	s.touch(model.TableOrders, created.ID, created.UpdatedAt)
	for _, l := range created.Lines {
		s.touch(model.TableOrderLines, l.ID, l.UpdatedAt)
	}
	return s.orders[created.ID].Clone(), nil
}

// UpdateOrder заменяет данные незавершённого заказа и пересчитывает сумму по
// текущим ценам.
func (s *Store) UpdateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	if err := validateLines(o.Lines); err != nil {
		return model.Order{}, err
	}
	if o.Discount.IsNegative() {
		return model.Order{}, fmt.Errorf("discount must not be negative: %w", model.ErrInvalidInput)
	}

	s.mu.Lock()
	existing, ok := s.orders[o.ID]
	if !ok {
		s.mu.Unlock()
		return model.Order{}, fmt.Errorf("order %d: %w", o.ID, model.ErrNotFound)
	}
	if existing.Status == model.OrderStatusFinalized {
		s.mu.Unlock()
		return model.Order{}, fmt.Errorf("order %d: %w", o.ID, model.ErrOrderFinalized)
	}

	now := s.now()
	next := existing.Clone()
	next.DoctorID = o.DoctorID
	next.PatientID = o.PatientID
	next.StartDate = o.StartDate.UTC()
	next.Deadline = o.Deadline.UTC()
	next.Discount = o.Discount
	next.Total = pricing.Total(o.Lines, o.Discount, s.priceLocked)
	next.Status = model.StatusForDeadline(next.Deadline, now)
	next.UpdatedAt = now
	next.Lines = make([]model.LineItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		next.Lines = append(next.Lines, model.LineItem{ID: l.ID, OrderID: o.ID, ProductID: l.ProductID, Quantity: l.Quantity})
	}
	s.mu.Unlock()

	if s.gw != nil {
		row, err := s.gw.UpdateOrder(ctx, next)
		var lineErr *model.LineInsertError
		switch {
		case errors.As(err, &lineErr):
			s.warn(fmt.Sprintf("%d of %d line items could not be saved to the database, the order is updated locally.", lineErr.Failed, lineErr.Total), zap.Int64("orderID", o.ID), zap.Error(err))
		case err != nil:
			s.warn("Failed to update the order in the database, updating locally.", zap.Int64("orderID", o.ID), zap.Error(err))
		default:
			next = row
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range next.Lines {
		if next.Lines[i].ID == 0 {
			next.Lines[i].ID = s.localID()
		}
		s.touch(model.TableOrderLines, next.Lines[i].ID, next.UpdatedAt)
	}
	s.putOrderLocked(next)
	s.touch(model.TableOrders, next.ID, next.UpdatedAt)

	s.success(fmt.Sprintf("Order %d was updated.", next.ID), zap.Int64("orderID", next.ID))
	return s.orders[next.ID].Clone(), nil
}

// FinalizeOrder завершает заказ и назначает техника.
func (s *Store) FinalizeOrder(ctx context.Context, id int64, technician string) (model.Order, error) {
	technician = strings.TrimSpace(technician)
	if technician == "" {
		return model.Order{}, fmt.Errorf("technician is required: %w", model.ErrInvalidInput)
	}

	return s.changeState(ctx, id, "Order was marked as finalized.", func(o model.Order, now time.Time) (model.OrderState, error) {
		if o.Status == model.OrderStatusFinalized {
			return model.OrderState{}, fmt.Errorf("order %d: %w", id, model.ErrOrderFinalized)
		}
		at := now
		return model.OrderState{Status: model.OrderStatusFinalized, FinalizedAt: &at, Technician: &technician}, nil
	})
}

// ReopenOrder снимает отметку о завершении: дата завершения и техник очищаются,
// статус вычисляется по сроку.
func (s *Store) ReopenOrder(ctx context.Context, id int64) (model.Order, error) {
	return s.changeState(ctx, id, "Order was reopened.", func(o model.Order, now time.Time) (model.OrderState, error) {
		if o.Status != model.OrderStatusFinalized {
			return model.OrderState{}, fmt.Errorf("order %d: %w", id, model.ErrOrderNotFinalized)
		}
		return model.OrderState{Status: model.StatusForDeadline(o.Deadline, now)}, nil
	})
}

// UpdateOrderTechnician меняет техника заказа в любом статусе.
func (s *Store) UpdateOrderTechnician(ctx context.Context, id int64, technician string) (model.Order, error) {
	technician = strings.TrimSpace(technician)
	return s.changeState(ctx, id, "Order technician was updated.", func(o model.Order, now time.Time) (model.OrderState, error) {
		st := model.OrderState{Status: o.Status, FinalizedAt: o.FinalizedAt}
		if st.Status != model.OrderStatusFinalized {
			st.Status = model.StatusForDeadline(o.Deadline, now)
		}
		if technician != "" {
			st.Technician = &technician
		}
		return st, nil
	})
}

func (s *Store) changeState(ctx context.Context, id int64, done string, next func(model.Order, time.Time) (model.OrderState, error)) (model.Order, error) {
	s.mu.Lock()
	o, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return model.Order{}, fmt.Errorf("order %d: %w", id, model.ErrNotFound)
	}
	now := s.now()
	st, err := next(o, now)
	s.mu.Unlock()
	if err != nil {
		return model.Order{}, err
	}

	updatedAt := now
	if s.gw != nil {
		at, err := s.gw.UpdateOrderState(ctx, id, st)
		if err != nil {
			s.warn("Failed to update the order state in the database, updating locally.", zap.Int64("orderID", id), zap.Error(err))
		} else if !at.IsZero() {
			updatedAt = at
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok = s.orders[id]
	if !ok {
		return model.Order{}, fmt.Errorf("order %d: %w", id, model.ErrNotFound)
	}
	o.Status = st.Status
	o.FinalizedAt = st.FinalizedAt
	o.Technician = st.Technician
	o.UpdatedAt = updatedAt
	s.putOrderLocked(o)
	s.touch(model.TableOrders, id, updatedAt)

	s.success(done, zap.Int64("orderID", id))
	return s.orders[id].Clone(), nil
}

// DeleteOrder удаляет заказ окончательно.
func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	s.mu.Lock()
	_, ok := s.orders[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("order %d: %w", id, model.ErrNotFound)
	}

	if s.gw != nil {
		if err := s.gw.DeleteOrder(ctx, id); err != nil {
			s.warn("Failed to delete the order from the database, deleting locally.", zap.Int64("orderID", id), zap.Error(err))
		}
	}

	s.mu.Lock()
	s.removeOrderLocked(id)
	s.mu.Unlock()

	s.success("Order was deleted.", zap.Int64("orderID", id))
	return nil
}

func (s *Store) removeOrderLocked(id int64) {
	if o, ok := s.orders[id]; ok {
		for _, l := range o.Lines {
			s.bury(model.TableOrderLines, l.ID)
		}
	}
	delete(s.orders, id)
	s.bury(model.TableOrders, id)
}

// putOrderLocked сохраняет заказ, отмечая его недействительным, если врач или
// пациент не найдены. Вызывается под s.mu.
func (s *Store) putOrderLocked(o model.Order) {
	o.Invalid = !s.resolvesLocked(o)
	s.orders[o.ID] = o
}

func (s *Store) resolvesLocked(o model.Order) bool {
	_, doctorOK := s.doctors[o.DoctorID]
	_, patientOK := s.patients[o.PatientID]
	return doctorOK && patientOK
}

// revalidateLocked снимает отметку с недействительных заказов, ссылки которых
// разрешились после позднего прихода врача или пациента.
func (s *Store) revalidateLocked() {
	for id, o := range s.orders {
		if o.Invalid && s.resolvesLocked(o) {
			o.Invalid = false
			s.orders[id] = o
			s.logger.Info("order references resolved", zap.Int64("orderID", id))
		}
	}
}
