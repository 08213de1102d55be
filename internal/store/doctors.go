package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/dental-lab/internal/model"
)

// AddDoctor добавляет врача. При ошибке удалённой записи врач сохраняется
// локально с локальным идентификатором.
func (s *Store) AddDoctor(ctx context.Context, d model.Doctor) (model.Doctor, error) {
	d.ID = 0
	d.Name = strings.TrimSpace(d.Name)
	d.Patients = nil
	if d.Name == "" {
		return model.Doctor{}, fmt.Errorf("doctor name: %w", model.ErrInvalidInput)
	}

	if s.gw != nil {
		row, err := s.gw.InsertDoctor(ctx, d)
		if err == nil {
			s.mu.Lock()
			s.putDoctorLocked(row)
			s.touch(model.TableDoctors, row.ID, row.UpdatedAt)
			s.mu.Unlock()
			s.success(fmt.Sprintf("Doctor %s was added.", row.Name), zap.Int64("doctorID", row.ID))
			return row, nil
		}
		s.warn("Failed to save the doctor to the database, using local storage.", zap.Error(err))
	}

	s.mu.Lock()
	d.ID = s.localID()
	d.UpdatedAt = s.now()
	s.putDoctorLocked(d)
	s.touch(model.TableDoctors, d.ID, d.UpdatedAt)
	s.mu.Unlock()

	if s.gw == nil {
		s.success(fmt.Sprintf("Doctor %s was added.", d.Name), zap.Int64("doctorID", d.ID))
	}
	return d, nil
}

// UpdateDoctor обновляет контактные данные врача.
func (s *Store) UpdateDoctor(ctx context.Context, d model.Doctor) (model.Doctor, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Patients = nil
	if d.Name == "" {
		return model.Doctor{}, fmt.Errorf("doctor name: %w", model.ErrInvalidInput)
	}

	s.mu.Lock()
	_, ok := s.doctors[d.ID]
	s.mu.Unlock()
	if !ok {
		return model.Doctor{}, fmt.Errorf("doctor %d: %w", d.ID, model.ErrNotFound)
	}

	d.UpdatedAt = s.now()
	if s.gw != nil {
		row, err := s.gw.UpdateDoctor(ctx, d)
		if err != nil {
			s.warn("Failed to update the doctor in the database, updating locally.", zap.Int64("doctorID", d.ID), zap.Error(err))
		} else {
			d = row
		}
	}

	s.mu.Lock()
	s.putDoctorLocked(d)
	s.touch(model.TableDoctors, d.ID, d.UpdatedAt)
	s.mu.Unlock()

	s.success(fmt.Sprintf("Doctor %s was updated.", d.Name), zap.Int64("doctorID", d.ID))
	return d, nil
}

// DeleteDoctor удаляет врача вместе с его пациентами. Заказы, ссылающиеся на
// них, остаются и помечаются недействительными при следующем обращении.
func (s *Store) DeleteDoctor(ctx context.Context, id int64) error {
	s.mu.Lock()
	_, ok := s.doctors[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("doctor %d: %w", id, model.ErrNotFound)
	}

	if s.gw != nil {
		if err := s.gw.DeleteDoctor(ctx, id); err != nil {
			s.warn("Failed to delete the doctor from the database, deleting locally.", zap.Int64("doctorID", id), zap.Error(err))
		}
	}

	s.mu.Lock()
	s.removeDoctorLocked(id)
	s.mu.Unlock()

	s.success("Doctor was deleted.", zap.Int64("doctorID", id))
	return nil
}

func (s *Store) putDoctorLocked(d model.Doctor) {
	d.Patients = nil
	s.doctors[d.ID] = d
}

func (s *Store) removeDoctorLocked(id int64) {
	delete(s.doctors, id)
	s.bury(model.TableDoctors, id)
	for pid, p := range s.patients {
		if p.DoctorID == id {
			delete(s.patients, pid)
			s.bury(model.TablePatients, pid)
		}
	}
}

// findDoctorLocked ищет врача по имени без учёта регистра.
func (s *Store) findDoctorLocked(name string) (model.Doctor, bool) {
	for _, d := range s.doctors {
		if strings.EqualFold(strings.TrimSpace(d.Name), name) {
			return d, true
		}
	}
	return model.Doctor{}, false
}

// findPatientLocked ищет пациента врача по имени без учёта регистра.
func (s *Store) findPatientLocked(doctorID int64, name string) (model.Patient, bool) {
	for _, p := range s.patients {
		if p.DoctorID == doctorID && strings.EqualFold(strings.TrimSpace(p.Name), name) {
			return p, true
		}
	}
	return model.Patient{}, false
}
