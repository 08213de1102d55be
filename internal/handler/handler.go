// Package handler содержит HTTP-обработчики API лаборатории.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/dental-lab/internal/middleware"
	"github.com/mmeshcher/dental-lab/internal/model"
	"github.com/mmeshcher/dental-lab/internal/store"
)

// Store определяет контракт локального хранилища, используемый обработчиками.
type Store interface {
	Doctors() []model.Doctor
	Patients() []model.Patient
	Products() []model.Product
	Technicians() []model.Technician
	Orders() []model.Order
	Order(id int64) (model.Order, error)
	Notices() []store.Notice

	AddDoctor(ctx context.Context, d model.Doctor) (model.Doctor, error)
	UpdateDoctor(ctx context.Context, d model.Doctor) (model.Doctor, error)
	DeleteDoctor(ctx context.Context, id int64) error
	AddProduct(ctx context.Context, p model.Product) (model.Product, error)
	UpdateProduct(ctx context.Context, p model.Product) (model.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	AddTechnician(ctx context.Context, t model.Technician) (model.Technician, error)
	DeleteTechnician(ctx context.Context, id int64) error

	AddOrder(ctx context.Context, draft model.OrderDraft) (store.AddOrderResult, error)
	UpdateOrder(ctx context.Context, o model.Order) (model.Order, error)
	UpdateOrderTechnician(ctx context.Context, id int64, technician string) (model.Order, error)
	FinalizeOrder(ctx context.Context, id int64, technician string) (model.Order, error)
	ReopenOrder(ctx context.Context, id int64) (model.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// Exporter формирует выгрузки в Excel.
type Exporter interface {
	LabArchive(ctx context.Context, from, to time.Time) ([]byte, error)
	OrderWorkbook(ctx context.Context, orderID int64) (string, []byte, error)
}

// Handler реализует HTTP-обработчики API лаборатории.
type Handler struct {
	store    Store
	exporter Exporter
	logger   *zap.Logger
	gate     *middleware.SessionGate
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов. exporter
// может быть nil, если удалённое хранилище не настроено.
func NewHandler(s Store, exporter Exporter, logger *zap.Logger, gate *middleware.SessionGate) *Handler {
	return &Handler{
		store:    s,
		exporter: exporter,
		logger:   logger,
		gate:     gate,
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login проверяет парольную фразу и выдаёт cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !h.gate.CheckPassphrase(req.Password) {
		h.logger.Warn("login rejected", zap.String("remote", r.RemoteAddr))
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.gate.SetSessionCookie(w)
	w.WriteHeader(http.StatusOK)
}

// Logout завершает сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.gate.ClearSessionCookie(w)
	w.WriteHeader(http.StatusOK)
}

// Notices возвращает последние уведомления хранилища.
func (h *Handler) Notices(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Notices())
}

// fail переводит ошибку хранилища в HTTP-статус.
func (h *Handler) fail(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, model.ErrOrderFinalized), errors.Is(err, model.ErrOrderNotFinalized):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, model.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(what+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
