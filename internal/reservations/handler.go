package reservations

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/asperus/agenda/internal/stores"
	"github.com/asperus/agenda/pkg/logging"
)

// Handler exposes reservations over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// BookResponse wraps a committed reservation.
type BookResponse struct {
	Booking *Reservation `json:"booking"`
}

// BookSlot handles POST /functions/book_slot.
func (h *Handler) BookSlot(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.service.Book(r.Context(), req)
	if err != nil {
		h.writeBookError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BookResponse{Booking: res})
}

// ListByDay handles GET /admin/stores/{storeID}/reservations?date=.
func (h *Handler) ListByDay(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	day := r.URL.Query().Get("date")
	list, err := h.service.ListByDay(r.Context(), storeID, day)
	if err != nil {
		if isInvalid(err) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to list reservations", "error", err, "store_id", storeID, "day", day)
		h.writeError(w, http.StatusInternalServerError, "failed to list reservations")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"store_id":     storeID,
		"date":         day,
		"reservations": list,
	})
}

func (h *Handler) writeBookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSlotTaken):
		h.writeError(w, http.StatusConflict, ErrSlotTaken.Error())
	case errors.Is(err, stores.ErrStoreNotFound):
		h.writeError(w, http.StatusNotFound, "store not found")
	case isInvalid(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "reservation could not be saved, please try again")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
