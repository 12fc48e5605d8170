// Package handler provides the HTTP admin API for the restore engine.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	apierrors "github.com/driftsearch/snaprestore/internal/errors"
	"github.com/driftsearch/snaprestore/internal/service"
	"github.com/driftsearch/snaprestore/internal/store"
)

// RestoreHandler exposes restore operations over HTTP
type RestoreHandler struct {
	restores *service.RestoreService
	history  store.HistoryStore
	timeout  time.Duration
	logger   *zap.Logger
}

// NewRestoreHandler creates a new restore handler. history may be nil when
// no history store is configured.
func NewRestoreHandler(restores *service.RestoreService, history store.HistoryStore, timeout time.Duration, logger *zap.Logger) *RestoreHandler {
	return &RestoreHandler{
		restores: restores,
		history:  history,
		timeout:  timeout,
		logger:   logger,
	}
}

// errorResponse is the JSON error body
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StartRestore handles POST /v1/restores requests
func (h *RestoreHandler) StartRestore(w http.ResponseWriter, r *http.Request) {
	var req service.RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apierrors.Wrap(apierrors.ErrCodeInvalidRequest, "", "", err,
			"malformed restore request body"))
		return
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	handle, err := h.restores.StartRestore(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, handle)
}

// GetRestore handles GET /v1/restores/{id} requests
func (h *RestoreHandler) GetRestore(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	op, err := h.restores.GetRestoreOperation(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, op)
}

// RestoringIndices handles GET /v1/restores/indices requests. The candidate
// index names arrive in the "index" query parameter, repeated.
func (h *RestoreHandler) RestoringIndices(w http.ResponseWriter, r *http.Request) {
	candidates := r.URL.Query()["index"]
	restoring := h.restores.RestoringIndices(candidates)

	indices := make([]string, 0, len(restoring))
	for index := range restoring {
		indices = append(indices, index)
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"indices": indices})
}

// ListHistory handles GET /v1/restores/history requests
func (h *RestoreHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, apierrors.New(apierrors.ErrCodeInvalidRequest, "", "",
			"restore history is not configured"))
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	archived, err := h.history.List(ctx, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"restores": archived})
}

// GetHistory handles GET /v1/restores/history/{id} requests
func (h *RestoreHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, apierrors.New(apierrors.ErrCodeInvalidRequest, "", "",
			"restore history is not configured"))
		return
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	id := mux.Vars(r)["id"]
	archived, err := h.history.Get(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			h.writeError(w, apierrors.New(apierrors.ErrCodeRestoreNotFound, "", "",
				"no archived restore with id [%s]", id))
			return
		}
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, archived)
}

func (h *RestoreHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *RestoreHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := apierrors.ErrCodeInternal

	var re *apierrors.RestoreError
	if apierrors.As(err, &re) {
		status = re.HTTPStatus()
		code = re.Code
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
	}

	var resp errorResponse
	resp.Error.Code = int(code)
	resp.Error.Message = err.Error()
	h.writeJSON(w, status, resp)
}
