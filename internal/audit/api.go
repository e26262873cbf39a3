package audit

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cmc-dx/rmrp/internal/shared/auth"
	"github.com/cmc-dx/rmrp/internal/shared/errors"
)

// Handler provides HTTP handlers for the audit module
type Handler struct {
	repo    Repository
	devMode bool
}

// NewHandler creates a new audit handler
func NewHandler(repo Repository) *Handler {
	env := os.Getenv("ENV")
	devMode := env == "" || env == "development" || env == "dev"

	return &Handler{repo: repo, devMode: devMode}
}

// Routes registers the audit routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Admin-only endpoints
	r.Get("/", h.ListEntries)
	r.Get("/verify", h.VerifyChain)

	return r
}

// ListEntries lists audit entries with filters
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	// Only admins can view audit logs (skip in dev mode)
	if !h.devMode {
		user := auth.GetUser(r.Context())
		if user == nil || !user.IsAdmin() {
			writeError(w, errors.Forbidden("admin access required"))
			return
		}
	}

	filter := ListFilter{}

	if action := r.URL.Query().Get("action"); action != "" {
		filter.Action = action
	}

	if actorType := r.URL.Query().Get("actor_type"); actorType != "" {
		at := ActorType(actorType)
		filter.ActorType = &at
	}

	if startTime := r.URL.Query().Get("start_time"); startTime != "" {
		t, err := time.Parse(time.RFC3339, startTime)
		if err == nil {
			filter.StartTime = &t
		}
	}

	if endTime := r.URL.Query().Get("end_time"); endTime != "" {
		t, err := time.Parse(time.RFC3339, endTime)
		if err == nil {
			filter.EndTime = &t
		}
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			filter.Limit = l
		}
	}

	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			filter.Offset = o
		}
	}

	entries, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  entries,
		"total": total,
	})
}

// VerifyChain verifies the integrity of the audit chain
func (h *Handler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	// Only admins can verify the audit chain (skip in dev mode)
	if !h.devMode {
		user := auth.GetUser(r.Context())
		if user == nil || !user.IsAdmin() {
			writeError(w, errors.Forbidden("admin access required"))
			return
		}
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	result, err := h.repo.VerifyChain(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
