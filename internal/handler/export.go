package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/dental-lab/internal/model"
	"github.com/mmeshcher/dental-lab/internal/validation"
)

const (
	zipContentType  = "application/zip"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	labArchiveName = "export_laborator.zip"
)

type labExportRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// orderID принимает идентификатор заказа и числом, и строкой.
type orderID int64

func (id *orderID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("order id %q: %w", s, err)
	}
	*id = orderID(v)
	return nil
}

type orderExportRequest struct {
	OrderID orderID `json:"orderId"`
}

// ExportLab отдаёт ZIP-архив со сводными книгами врачей за период.
func (h *Handler) ExportLab(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		http.Error(w, "Internal Server Error: export storage is not configured", http.StatusInternalServerError)
		return
	}

	var req labExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, validation.ErrMissingDates.Error(), http.StatusBadRequest)
		return
	}

	from, to, err := validation.ParseRange(req.StartDate, req.EndDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := h.exporter.LabArchive(r.Context(), from, to)
	if err != nil {
		h.logger.Error("lab export error", zap.Error(err))
		http.Error(w, "Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", zipContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", labArchiveName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ExportOrder отдаёт книгу Excel одного заказа.
func (h *Handler) ExportOrder(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		http.Error(w, "Internal Server Error: export storage is not configured", http.StatusInternalServerError)
		return
	}

	var req orderExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID <= 0 {
		http.Error(w, "orderId required", http.StatusBadRequest)
		return
	}

	name, data, err := h.exporter.OrderWorkbook(r.Context(), int64(req.OrderID))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrOrderNotFound):
			http.Error(w, "Order not found", http.StatusNotFound)
		case errors.Is(err, model.ErrLinesUnavailable):
			h.logger.Error("order export error", zap.Int64("orderID", int64(req.OrderID)), zap.Error(err))
			http.Error(w, "Error fetching products", http.StatusInternalServerError)
		default:
			h.logger.Error("order export error", zap.Int64("orderID", int64(req.OrderID)), zap.Error(err))
			http.Error(w, "Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
