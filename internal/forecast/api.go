package forecast

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cmc-dx/rmrp/internal/features"
	"github.com/cmc-dx/rmrp/internal/shared/errors"
	"github.com/cmc-dx/rmrp/internal/shared/metrics"
	"github.com/cmc-dx/rmrp/internal/snapshot"
)

// Handler provides HTTP handlers for the forecast module
type Handler struct {
	reconciler *snapshot.Reconciler
	predictor  Predictor
}

// NewHandler creates a new forecast handler
func NewHandler(reconciler *snapshot.Reconciler, predictor Predictor) *Handler {
	return &Handler{reconciler: reconciler, predictor: predictor}
}

// Routes registers the forecast routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/congestion/recommend", h.Congestion)
	r.Post("/discharge/recommend", h.Discharges)

	return r
}

type forecastRequest struct {
	// Date optionally overrides the reference day (YYYY-MM-DD)
	Date string `json:"date,omitempty"`
}

// Congestion predicts per-ward congestion for the reference day
func (h *Handler) Congestion(w http.ResponseWriter, r *http.Request) {
	vectors, ok := h.buildVectors(w, r)
	if !ok {
		return
	}

	forecasts, err := h.predictor.PredictCongestion(r.Context(), vectors)
	if err != nil {
		writeError(w, errors.Wrap(err, "congestion prediction failed"))
		return
	}

	metrics.RecordForecast("congestion", h.predictor.Name())
	writeSuccess(w, map[string]any{
		"forecasts": forecasts,
		"predictor": h.predictor.Name(),
	})
}

// Discharges predicts per-ward discharge counts for the reference day
func (h *Handler) Discharges(w http.ResponseWriter, r *http.Request) {
	vectors, ok := h.buildVectors(w, r)
	if !ok {
		return
	}

	forecasts, err := h.predictor.PredictDischarges(r.Context(), vectors)
	if err != nil {
		writeError(w, errors.Wrap(err, "discharge prediction failed"))
		return
	}

	metrics.RecordForecast("discharge", h.predictor.Name())
	writeSuccess(w, map[string]any{
		"forecasts": forecasts,
		"predictor": h.predictor.Name(),
	})
}

// buildVectors reconciles the observation window and derives feature
// vectors. On an expected failure it writes the response itself and
// returns ok=false.
func (h *Handler) buildVectors(w http.ResponseWriter, r *http.Request) ([]features.Vector, bool) {
	var req forecastRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errors.BadRequest("invalid request body"))
			return nil, false
		}
	}

	ref := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, errors.BadRequest("invalid date, want YYYY-MM-DD"))
			return nil, false
		}
		ref = parsed
	}

	triple, err := h.reconciler.Reconcile(r.Context(), ref)
	if err != nil {
		if stderrors.Is(err, snapshot.ErrNoData) {
			writeFailure(w, "no bed status data available")
			return nil, false
		}
		writeError(w, err)
		return nil, false
	}

	return features.Build(triple, nil), true
}

// --- Response helpers ---

func writeSuccess(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  result,
	})
}

func writeFailure(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": false,
		"message": message,
	})
}

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
