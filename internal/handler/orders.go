package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/dental-lab/internal/model"
	"github.com/mmeshcher/dental-lab/internal/validation"
)

type lineRequest struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type orderRequest struct {
	Doctor    model.Ref       `json:"doctor"`
	Patient   model.Ref       `json:"patient"`
	Lines     []lineRequest   `json:"lines"`
	StartDate time.Time       `json:"start_date"`
	Deadline  time.Time       `json:"deadline"`
	Discount  decimal.Decimal `json:"discount"`
}

func (req orderRequest) lines() ([]model.LineItem, error) {
	out := make([]model.LineItem, 0, len(req.Lines))
	for _, l := range req.Lines {
		if err := validation.Quantity(l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, model.LineItem{ID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out, nil
}

type orderResponse struct {
	model.Order
	Lines   []model.LineItem `json:"lines"`
	Invalid bool             `json:"invalid"`
}

func newOrderResponse(o model.Order) orderResponse {
	lines := o.Lines
	if lines == nil {
		lines = []model.LineItem{}
	}
	return orderResponse{Order: o, Lines: lines, Invalid: o.Invalid}
}

type addOrderResponse struct {
	Order      orderResponse  `json:"order"`
	NewDoctor  *model.Doctor  `json:"new_doctor,omitempty"`
	NewPatient *model.Patient `json:"new_patient,omitempty"`
}

type technicianUpdate struct {
	Technician string `json:"technician"`
}

// GetOrders возвращает все заказы.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.store.Orders()
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderResponse(o))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает заказ по идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	o, err := h.store.Order(id)
	if err != nil {
		h.fail(w, "get order", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// AddOrder создаёт заказ. Врач и пациент, заданные именем, создаются при
// необходимости.
func (h *Handler) AddOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decode(w, r, &req) {
		return
	}
	lines, err := req.lines()
	if err != nil {
		h.fail(w, "add order", err)
		return
	}
	if err := validation.Discount(req.Discount); err != nil {
		h.fail(w, "add order", err)
		return
	}

	res, err := h.store.AddOrder(r.Context(), model.OrderDraft{
		Doctor:    req.Doctor,
		Patient:   req.Patient,
		Lines:     lines,
		StartDate: req.StartDate,
		Deadline:  req.Deadline,
		Discount:  req.Discount,
	})
	if err != nil {
		h.fail(w, "add order", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, addOrderResponse{
		Order:      newOrderResponse(res.Order),
		NewDoctor:  res.NewDoctor,
		NewPatient: res.NewPatient,
	})
}

// UpdateOrder заменяет данные незавершённого заказа.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Doctor.ID == 0 || req.Patient.ID == 0 {
		http.Error(w, "doctor and patient ids required", http.StatusBadRequest)
		return
	}
	lines, err := req.lines()
	if err != nil {
		h.fail(w, "update order", err)
		return
	}

	o, err := h.store.UpdateOrder(r.Context(), model.Order{
		ID:        id,
		DoctorID:  req.Doctor.ID,
		PatientID: req.Patient.ID,
		StartDate: req.StartDate,
		Deadline:  req.Deadline,
		Discount:  req.Discount,
		Lines:     lines,
	})
	if err != nil {
		h.fail(w, "update order", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// DeleteOrder удаляет заказ вместе с позициями.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteOrder(r.Context(), id); err != nil {
		h.fail(w, "delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FinalizeOrder завершает заказ с указанием техника.
func (h *Handler) FinalizeOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req technicianUpdate
	if !decode(w, r, &req) {
		return
	}

	o, err := h.store.FinalizeOrder(r.Context(), id, req.Technician)
	if err != nil {
		h.fail(w, "finalize order", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// ReopenOrder снимает отметку о завершении заказа.
func (h *Handler) ReopenOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	o, err := h.store.ReopenOrder(r.Context(), id)
	if err != nil {
		h.fail(w, "reopen order", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// UpdateOrderTechnician меняет техника заказа.
func (h *Handler) UpdateOrderTechnician(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req technicianUpdate
	if !decode(w, r, &req) {
		return
	}

	o, err := h.store.UpdateOrderTechnician(r.Context(), id, req.Technician)
	if err != nil {
		h.fail(w, "update order technician", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(o))
}
