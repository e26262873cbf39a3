package ranking

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cmc-dx/rmrp/internal/shared/errors"
	"github.com/cmc-dx/rmrp/internal/shared/events"
	"github.com/cmc-dx/rmrp/internal/shared/metrics"
	"github.com/cmc-dx/rmrp/internal/snapshot"
	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

const defaultTopK = 3

// Auditor records placement decisions for the audit trail
type Auditor interface {
	Record(ctx context.Context, action string, details map[string]any)
}

// Handler provides HTTP handlers for the transfer recommendation module
type Handler struct {
	engine     *Engine
	learner    *Learner
	reconciler *snapshot.Reconciler
	bus        *events.Bus
	auditor    Auditor
}

// NewHandler creates a new transfer handler. The bus and auditor may be
// nil; the reconciler is only consulted when a request omits bed info.
func NewHandler(engine *Engine, learner *Learner, reconciler *snapshot.Reconciler, bus *events.Bus, auditor Auditor) *Handler {
	return &Handler{engine: engine, learner: learner, reconciler: reconciler, bus: bus, auditor: auditor}
}

// Routes registers the transfer routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/recommend", h.Recommend)
	r.Post("/feedback", h.SubmitFeedback)
	r.Get("/trails", h.Trails)

	return r
}

// --- Request/response types ---

// WardBedCount is one live bed-state entry supplied by the caller
type WardBedCount struct {
	Ward     wardgraph.Ward `json:"ward"`
	Total    int            `json:"total"`
	Occupied int            `json:"occupied"`
}

// RecommendRequest asks for ward candidates for one transfer. When
// BedInfo is omitted the server reconciles live bed state itself.
type RecommendRequest struct {
	ICD     string         `json:"icd"`
	BedInfo []WardBedCount `json:"bed_info,omitempty"`
	TopK    int            `json:"top_k,omitempty"`
}

// FeedbackRequest reports placement outcomes for prior recommendations
type FeedbackRequest struct {
	Feedback []feedbackItem `json:"feedback"`
}

type feedbackItem struct {
	DissCd       string         `json:"diss_cd"`
	AssignedWard wardgraph.Ward `json:"assigned_ward"`
	Accepted     bool           `json:"accepted"`
}

// --- Handlers ---

// Recommend ranks candidate wards for a diagnosis
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	diag, err := wardgraph.ParseDiagnosis(req.ICD)
	if err != nil {
		writeFailure(w, "unsupported diagnosis code: "+req.ICD)
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = defaultTopK
	}
	if topK < 1 {
		writeError(w, errors.BadRequest("top_k must be at least 1"))
		return
	}

	live, err := h.liveState(r.Context(), req.BedInfo)
	if err != nil {
		if stderrors.Is(err, snapshot.ErrNoData) {
			writeFailure(w, "no bed status data available")
			return
		}
		writeError(w, err)
		return
	}

	result, err := h.engine.Recommend(diag, live, topK)
	if err != nil {
		if stderrors.Is(err, ErrUnsupportedDiagnosis) {
			writeFailure(w, "unsupported diagnosis code: "+req.ICD)
			return
		}
		writeError(w, err)
		return
	}

	metrics.RecordRecommendation(string(diag), result.Fallback)

	wards := make([]wardgraph.Ward, len(result.Wards))
	scores := make([]float64, len(result.Wards))
	for i, sw := range result.Wards {
		wards[i] = sw.Ward
		scores[i] = sw.Score
	}

	if h.auditor != nil {
		h.auditor.Record(r.Context(), "transfer.recommend", map[string]any{
			"diagnosis": diag,
			"wards":     wards,
			"fallback":  result.Fallback,
		})
	}
	h.publishEvent(r.Context(), "transfer.recommended", map[string]any{
		"diagnosis": diag,
		"wards":     wards,
		"fallback":  result.Fallback,
	})

	writeSuccess(w, map[string]any{
		"ward":     wards,
		"scores":   scores,
		"fallback": result.Fallback,
		"message":  result.Message,
	})
}

// SubmitFeedback applies placement outcomes to the trail table
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	records := make([]FeedbackRecord, 0, len(req.Feedback))
	malformed := 0
	for _, item := range req.Feedback {
		diag, err := wardgraph.ParseDiagnosis(item.DissCd)
		if err != nil {
			log.Printf("ranking: dropping feedback with bad diagnosis %q: %v", item.DissCd, err)
			metrics.RecordFeedback("dropped")
			malformed++
			continue
		}
		records = append(records, FeedbackRecord{
			Diagnosis: diag,
			Ward:      item.AssignedWard,
			Accepted:  item.Accepted,
		})
	}

	applied, dropped := h.learner.Apply(records)
	dropped += malformed

	if h.auditor != nil {
		h.auditor.Record(r.Context(), "transfer.feedback", map[string]any{
			"processed": applied,
			"dropped":   dropped,
		})
	}
	h.publishEvent(r.Context(), "transfer.feedback", map[string]any{
		"processed": applied,
		"dropped":   dropped,
	})

	writeSuccess(w, map[string]any{
		"processed": applied,
		"dropped":   dropped,
	})
}

// Trails dumps the learned trail table for diagnostics
func (h *Handler) Trails(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]any{
		"trails": h.engine.Trails(),
	})
}

// liveState resolves the live bed state for a request, preferring
// caller-supplied bed info over a reconciled snapshot.
func (h *Handler) liveState(ctx context.Context, bedInfo []WardBedCount) (map[wardgraph.Ward]snapshot.BedState, error) {
	if len(bedInfo) > 0 {
		live := make(map[wardgraph.Ward]snapshot.BedState, len(bedInfo))
		for _, b := range bedInfo {
			live[b.Ward] = snapshot.BedState{Total: b.Total, Occupied: b.Occupied}
		}
		return live, nil
	}

	if h.reconciler == nil {
		return map[wardgraph.Ward]snapshot.BedState{}, nil
	}

	triple, err := h.reconciler.Reconcile(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	return snapshot.LiveState(triple.Today.Records), nil
}

func (h *Handler) publishEvent(ctx context.Context, eventType string, data any) {
	if h.bus == nil {
		return
	}
	event := events.NewEvent(eventType, "ranking", data)
	if err := h.bus.Publish(ctx, event); err != nil {
		log.Printf("ranking: failed to publish %s: %v", eventType, err)
	}
}

// --- Response helpers ---

func writeSuccess(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  result,
	})
}

// writeFailure reports an expected domain failure inside a 200 envelope
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
