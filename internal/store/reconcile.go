package store

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/dental-lab/internal/model"
)

// Apply применяет уведомление об изменении удалённой таблицы к локальным
// коллекциям. Повторная вставка известной записи игнорируется, обновление
// неизвестной записи тоже. Уведомления старше последней локальной записи
// отбрасываются.
func (s *Store) Apply(ch model.Change) error {
	switch ch.Type {
	case model.EventInsert, model.EventUpdate, model.EventDelete:
	default:
		return fmt.Errorf("unknown event type %q", ch.Type)
	}

	switch ch.Table {
	case model.TableDoctors:
		return s.applyDoctor(ch)
	case model.TablePatients:
		return s.applyPatient(ch)
	case model.TableProducts:
		return s.applyProduct(ch)
	case model.TableTechnicians:
		return s.applyTechnician(ch)
	case model.TableOrders:
		return s.applyOrder(ch)
	case model.TableOrderLines:
		return s.applyLine(ch)
	default:
		s.logger.Debug("change for unknown table ignored", zap.String("table", ch.Table))
		return nil
	}
}

// row возвращает строку уведомления: новую для вставки и обновления,
// старую для удаления.
func row[T any](ch model.Change) (T, error) {
	var v T
	raw := ch.New
	if ch.Type == model.EventDelete {
		raw = ch.Old
	}
	if len(raw) == 0 {
		return v, fmt.Errorf("%s %s: empty row", ch.Table, ch.Type)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%s %s: decode row: %w", ch.Table, ch.Type, err)
	}
	return v, nil
}

func (s *Store) discard(ch model.Change, id int64) {
	s.logger.Debug("stale change discarded",
		zap.String("table", ch.Table),
		zap.String("type", string(ch.Type)),
		zap.Int64("id", id),
	)
}

func (s *Store) applyDoctor(ch model.Change) error {
	d, err := row[model.Doctor](ch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch ch.Type {
	case model.EventInsert:
		if _, ok := s.doctors[d.ID]; ok {
			return nil
		}
		if s.stale(ch.Table, d.ID, d.UpdatedAt) {
			s.discard(ch, d.ID)
			return nil
		}
		s.putDoctorLocked(d)
		s.revalidateLocked()
	case model.EventUpdate:
		if _, ok := s.doctors[d.ID]; !ok {
			return nil
		}
		if s.stale(ch.Table, d.ID, d.UpdatedAt) {
			s.discard(ch, d.ID)
			return nil
		}
		s.putDoctorLocked(d)
	case model.EventDelete:
		s.removeDoctorLocked(d.ID)
	}
	return nil
}

func (s *Store) applyPatient(ch model.Change) error {
	p, err := row[model.Patient](ch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch ch.Type {
	case model.EventInsert:
		if _, ok := s.patients[p.ID]; ok {
			return nil
		}
		if s.stale(ch.Table, p.ID, p.UpdatedAt) {
			s.discard(ch, p.ID)
			return nil
		}
		s.patients[p.ID] = p
		s.revalidateLocked()
	case model.EventUpdate:
		if _, ok := s.patients[p.ID]; !ok {
			return nil
		}
		if s.stale(ch.Table, p.ID, p.UpdatedAt) {
			s.discard(ch, p.ID)
			return nil
		}
		s.patients[p.ID] = p
	case model.EventDelete:
		delete(s.patients, p.ID)
		s.bury(ch.Table, p.ID)
	}
	return nil
}

func (s *Store) applyProduct(ch model.Change) error {
	p, err := row[model.Product](ch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch ch.Type {
	case model.EventInsert:
		if _, ok := s.products[p.ID]; ok {
			return nil
		}
		if s.stale(ch.Table, p.ID, p.UpdatedAt) {
			s.discard(ch, p.ID)
			return nil
		}
		s.products[p.ID] = p
	case model.EventUpdate:
		if _, ok := s.products[p.ID]; !ok {
			return nil
		}
		if s.stale(ch.Table, p.ID, p.UpdatedAt) {
			s.discard(ch, p.ID)
			return nil
		}
		s.products[p.ID] = p
	case model.EventDelete:
		delete(s.products, p.ID)
		s.bury(ch.Table, p.ID)
	}
	return nil
}

func (s *Store) applyTechnician(ch model.Change) error {
	t, err := row[model.Technician](ch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch ch.Type {
	case model.EventInsert:
		if _, ok := s.technicians[t.ID]; ok {
			return nil
		}
		if s.stale(ch.Table, t.ID, t.UpdatedAt) {
			s.discard(ch, t.ID)
			return nil
		}
		s.technicians[t.ID] = t
	case model.EventUpdate:
		if _, ok := s.technicians[t.ID]; !ok {
			return nil
		}
		if s.stale(ch.Table, t.ID, t.UpdatedAt) {
			s.discard(ch, t.ID)
			return nil
		}
		s.technicians[t.ID] = t
	case model.EventDelete:
		delete(s.technicians, t.ID)
		s.bury(ch.Table, t.ID)
	}
	return nil
}

func (s *Store) applyOrder(ch model.Change) error {
	o, err := row[model.Order](ch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch ch.Type {
	case model.EventInsert:
		if _, ok := s.orders[o.ID]; ok {
			return nil
		}
		if s.stale(ch.Table, o.ID, o.UpdatedAt) {
			s.discard(ch, o.ID)
			return nil
		}
		if o.Status == "" {
			o.Status = model.StatusForDeadline(o.Deadline, s.now())
		}
		s.putOrderLocked(o)
		s.warnInvalidLocked(ch, o.ID)
	case model.EventUpdate:
		existing, ok := s.orders[o.ID]
		if !ok {
			return nil
		}
		if s.stale(ch.Table, o.ID, o.UpdatedAt) {
			s.discard(ch, o.ID)
			return nil
		}
		if o.Status == "" {
			o.Status = existing.Status
		}
		o.Lines = existing.Lines
		s.putOrderLocked(o)
		s.warnInvalidLocked(ch, o.ID)
	case model.EventDelete:
		s.removeOrderLocked(o.ID)
	}
	return nil
}

func (s *Store) warnInvalidLocked(ch model.Change, id int64) {
	if s.orders[id].Invalid {
		s.logger.Warn("order references missing doctor or patient, marked invalid",
			zap.String("type", string(ch.Type)),
			zap.Int64("orderID", id),
		)
	}
}

func (s *Store) applyLine(ch model.Change) error {
	l, err := row[model.LineItem](ch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ch.Type == model.EventDelete {
		s.removeLineLocked(l)
		return nil
	}

	o, ok := s.orders[l.OrderID]
	if !ok {
		return nil
	}
	if s.stale(ch.Table, l.ID, l.UpdatedAt) {
		s.discard(ch, l.ID)
		return nil
	}

	idx := -1
	for i := range o.Lines {
		if o.Lines[i].ID == l.ID {
			idx = i
			break
		}
	}

	switch ch.Type {
	case model.EventInsert:
		if idx >= 0 {
			return nil
		}
		o.Lines = append(append([]model.LineItem(nil), o.Lines...), l)
	case model.EventUpdate:
		if idx < 0 {
			return nil
		}
		o.Lines = append([]model.LineItem(nil), o.Lines...)
		o.Lines[idx] = l
	}
	s.orders[o.ID] = o
	return nil
}

// removeLineLocked удаляет позицию. Если заказ в уведомлении не указан,
// позиция ищется во всех заказах.
func (s *Store) removeLineLocked(l model.LineItem) {
	s.bury(model.TableOrderLines, l.ID)
	for id, o := range s.orders {
		if l.OrderID != 0 && id != l.OrderID {
			continue
		}
		for i := range o.Lines {
			if o.Lines[i].ID != l.ID {
				continue
			}
			lines := make([]model.LineItem, 0, len(o.Lines)-1)
			lines = append(lines, o.Lines[:i]...)
			lines = append(lines, o.Lines[i+1:]...)
			o.Lines = lines
			s.orders[id] = o
			return
		}
	}
}
