package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/dental-lab/internal/model"
	"github.com/mmeshcher/dental-lab/internal/validation"
)

type doctorRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type doctorResponse struct {
	model.Doctor
	Patients []model.Patient `json:"patients"`
}

// GetDoctors возвращает врачей вместе с их пациентами.
func (h *Handler) GetDoctors(w http.ResponseWriter, r *http.Request) {
	doctors := h.store.Doctors()
	resp := make([]doctorResponse, 0, len(doctors))
	for _, d := range doctors {
		patients := d.Patients
		if patients == nil {
			patients = []model.Patient{}
		}
		resp = append(resp, doctorResponse{Doctor: d, Patients: patients})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// AddDoctor добавляет врача.
func (h *Handler) AddDoctor(w http.ResponseWriter, r *http.Request) {
	var req doctorRequest
	if !decode(w, r, &req) {
		return
	}

	d, err := h.store.AddDoctor(r.Context(), model.Doctor{Name: req.Name, Email: req.Email, Phone: req.Phone})
	if err != nil {
		h.fail(w, "add doctor", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, d)
}

// UpdateDoctor обновляет данные врача.
func (h *Handler) UpdateDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req doctorRequest
	if !decode(w, r, &req) {
		return
	}

	d, err := h.store.UpdateDoctor(r.Context(), model.Doctor{ID: id, Name: req.Name, Email: req.Email, Phone: req.Phone})
	if err != nil {
		h.fail(w, "update doctor", err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// DeleteDoctor удаляет врача и его пациентов. Заказы врача сохраняются.
func (h *Handler) DeleteDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteDoctor(r.Context(), id); err != nil {
		h.fail(w, "delete doctor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPatients возвращает всех пациентов.
func (h *Handler) GetPatients(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Patients())
}

type productRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

func (req productRequest) product(id int64) (model.Product, error) {
	name, err := validation.Name("product", req.Name)
	if err != nil {
		return model.Product{}, err
	}
	if err := validation.Price(req.Price); err != nil {
		return model.Product{}, err
	}
	return model.Product{ID: id, Name: name, Price: req.Price}, nil
}

// GetProducts возвращает каталог изделий.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Products())
}

// AddProduct добавляет изделие в каталог.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := req.product(0)
	if err != nil {
		h.fail(w, "add product", err)
		return
	}

	p, err = h.store.AddProduct(r.Context(), p)
	if err != nil {
		h.fail(w, "add product", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

// UpdateProduct меняет название или цену изделия.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := req.product(id)
	if err != nil {
		h.fail(w, "update product", err)
		return
	}

	p, err = h.store.UpdateProduct(r.Context(), p)
	if err != nil {
		h.fail(w, "update product", err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// DeleteProduct удаляет изделие из каталога.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteProduct(r.Context(), id); err != nil {
		h.fail(w, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type technicianRequest struct {
	Name string `json:"name"`
}

// GetTechnicians возвращает техников.
func (h *Handler) GetTechnicians(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Technicians())
}

// AddTechnician добавляет техника.
func (h *Handler) AddTechnician(w http.ResponseWriter, r *http.Request) {
	var req technicianRequest
	if !decode(w, r, &req) {
		return
	}

	t, err := h.store.AddTechnician(r.Context(), model.Technician{Name: req.Name})
	if err != nil {
		h.fail(w, "add technician", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, t)
}

// DeleteTechnician удаляет техника.
func (h *Handler) DeleteTechnician(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteTechnician(r.Context(), id); err != nil {
		h.fail(w, "delete technician", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
