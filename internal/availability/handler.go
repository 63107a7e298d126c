package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/asperus/agenda/internal/stores"
	"github.com/asperus/agenda/pkg/logging"
)

// Handler exposes slot queries over HTTP.
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

// SlotQueryRequest is the body of POST /functions/get_available_slots.
// loja_id is accepted as an alias of store_id.
type SlotQueryRequest struct {
	StoreID      string `json:"store_id"`
	LojaID       string `json:"loja_id,omitempty"`
	Date         string `json:"date"`
	Professional string `json:"professional,omitempty"`
}

func (r SlotQueryRequest) storeID() string {
	if id := strings.TrimSpace(r.StoreID); id != "" {
		return id
	}
	return strings.TrimSpace(r.LojaID)
}

// SlotQueryResponse carries the open slots of one day.
type SlotQueryResponse struct {
	StoreID      string   `json:"store_id,omitempty"`
	Date         string   `json:"date,omitempty"`
	Professional string   `json:"professional,omitempty"`
	Slots        []string `json:"slots"`
}

// WindowResponse carries the open slots of a whole window.
type WindowResponse struct {
	StoreID      string              `json:"store_id"`
	Professional string              `json:"professional,omitempty"`
	Window       []string            `json:"window"`
	Slots        map[string][]string `json:"slots"`
}

// GetAvailableSlots handles POST /functions/get_available_slots.
func (h *Handler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	var req SlotQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.serveDay(w, r, req.storeID(), req.Date, req.Professional)
}

// GetDay handles GET /stores/{storeID}/slots?date=&professional=.
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.serveDay(w, r, chi.URLParam(r, "storeID"), q.Get("date"), q.Get("professional"))
}

func (h *Handler) serveDay(w http.ResponseWriter, r *http.Request, storeID, day, professional string) {
	slots, err := h.service.QuerySlots(r.Context(), storeID, day, professional)
	if err != nil {
		h.writeQueryError(w, err, storeID, day)
		return
	}
	h.writeJSON(w, http.StatusOK, SlotQueryResponse{
		StoreID:      storeID,
		Date:         day,
		Professional: professional,
		Slots:        slots,
	})
}

// GetWindow handles GET /stores/{storeID}/availability?from=&professional=.
func (h *Handler) GetWindow(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	q := r.URL.Query()
	now := h.service.Now()

	var anchor *time.Time
	if from := q.Get("from"); from != "" {
		parsed, err := ParseDay(from, now.Location())
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		anchor = &parsed
	}
	window := ComputeWindow(anchor, now)
	professional := q.Get("professional")

	slots, err := h.service.QueryWindow(r.Context(), storeID, window, professional)
	if err != nil {
		h.writeQueryError(w, err, storeID, window.Start())
		return
	}
	h.writeJSON(w, http.StatusOK, WindowResponse{
		StoreID:      storeID,
		Professional: professional,
		Window:       window.Days(),
		Slots:        slots,
	})
}

func (h *Handler) writeQueryError(w http.ResponseWriter, err error, storeID, day string) {
	switch {
	case errors.Is(err, ErrInvalidDay), errors.Is(err, ErrStoreRequired):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, stores.ErrStoreNotFound):
		h.writeError(w, http.StatusNotFound, "store not found")
	default:
		h.logger.Error("slot query failed", "error", err, "store_id", storeID, "day", day)
		h.writeError(w, http.StatusInternalServerError, "slot query failed")
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
