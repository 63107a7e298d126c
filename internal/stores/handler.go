package stores

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/asperus/agenda/pkg/logging"
)

// Handler serves the store directory.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new stores handler.
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListResponse is the payload of GET /stores.
type ListResponse struct {
	Stores []Store `json:"stores"`
	Count  int     `json:"count"`
}

// List handles GET /stores.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list stores", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "store directory unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, ListResponse{Stores: list, Count: len(list)})
}

// Get handles GET /stores/{storeID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "storeID")
	store, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			h.writeError(w, http.StatusNotFound, "store not found")
			return
		}
		h.logger.Error("failed to get store", "error", err, "store_id", id)
		h.writeError(w, http.StatusInternalServerError, "failed to load store")
		return
	}
	h.writeJSON(w, http.StatusOK, struct {
		*Store
		Roster Roster `json:"roster"`
	}{Store: store, Roster: store.Roster()})
}

// Put handles PUT /admin/stores/{storeID}.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	var store Store
	if err := json.NewDecoder(r.Body).Decode(&store); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "storeID"))
	if store.ID != "" && store.ID != id {
		h.writeError(w, http.StatusBadRequest, "store id mismatch")
		return
	}
	store.ID = id

	if err := h.repo.Upsert(r.Context(), &store); err != nil {
		if errors.Is(err, ErrInvalidStore) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to save store", "error", err, "store_id", id)
		h.writeError(w, http.StatusInternalServerError, "failed to save store")
		return
	}
	h.logger.Info("store saved", "store_id", store.ID, "name", store.Name)
	h.writeJSON(w, http.StatusOK, store)
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
