// Package httpapi exposes the four operations the spec names as plain
// net/http handlers. HTTP framework choice is explicitly left to the
// caller per the spec's non-goals, so this stays a thin net/http
// ServeMux layer rather than adopting gomind's heavier BaseTool/chi
// stack, instrumented with otelhttp the same way the teacher wraps its
// own transports.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/codetop/reviewsched/domain"
	"github.com/codetop/reviewsched/orchestrator"
)

// Pinger is satisfied by *redis.Client; kept as a narrow interface so
// this package doesn't need to import go-redis just to health-check it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the orchestrator dependency the four endpoints call into.
type Handler struct {
	orch  *orchestrator.Orchestrator
	redis Pinger
}

// NewHandler builds a Handler. redis may be nil, in which case /healthz
// reports orchestrator readiness only.
func NewHandler(orch *orchestrator.Orchestrator, redis Pinger) *Handler {
	return &Handler{orch: orch, redis: redis}
}

// Mux builds the routed http.Handler for all four endpoints plus health.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/review/submit", h.submitReview)
	mux.HandleFunc("/review/queue", h.reviewQueue)
	mux.HandleFunc("/problems/ai-recommendations", h.recommendations)
	mux.HandleFunc("/users/optimize-parameters", h.optimizeParameters)
	mux.HandleFunc("/healthz", h.health)
	return mux
}

type submitReviewRequest struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	ProblemID string `json:"problem_id"`
	Rating    int    `json:"rating"`
}

func (h *Handler) submitReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, domain.ErrInvalidInput)
		return
	}
	var req submitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidInput)
		return
	}

	result, err := h.orch.SubmitReview(r.Context(), orchestrator.SubmitReviewInput{
		RequestID: req.RequestID,
		UserID:    req.UserID,
		ProblemID: req.ProblemID,
		Rating:    domain.Rating(req.Rating),
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) reviewQueue(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	cards, err := h.orch.ReviewQueue(r.Context(), userID, limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *Handler) recommendations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	tier := r.URL.Query().Get("tier")
	abGroup := r.URL.Query().Get("ab_group")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	set, err := h.orch.Recommend(r.Context(), orchestrator.RecommendInput{
		UserID:  userID,
		Tier:    tier,
		ABGroup: abGroup,
		Limit:   limit,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *Handler) optimizeParameters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, domain.ErrInvalidInput)
		return
	}
	userID := r.URL.Query().Get("user_id")

	params, err := h.orch.OptimizeParameters(r.Context(), userID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, params)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.redis == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if err := h.redis.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "redis": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redis": "ok"})
}

func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
