package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-credit/kestrel/internal/domain"
	"github.com/opensource-credit/kestrel/internal/engine"
	"github.com/opensource-credit/kestrel/internal/matcher"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	matcher *matcher.Service
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, svc *matcher.Service, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		matcher: svc,
		version: version,
	}
}

// ApplyResponse is the response for POST /borrowers/apply.
type ApplyResponse struct {
	BorrowerID int64  `json:"borrowerId"`
	Status     string `json:"status"`
}

// ApplyBorrower handles POST /borrowers/apply. The application is persisted
// immediately; matching runs asynchronously off the bus. Re-applying with
// the same email replaces the previous profile and keeps the borrower id.
func (h *Handler) ApplyBorrower(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var b domain.Borrower
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if b.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "email is required",
		})
		return
	}
	if b.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "fullName is required",
		})
		return
	}
	if b.LoanAmount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "loanAmount must be positive",
		})
		return
	}
	if b.GuarantorFICO < 0 || b.GuarantorFICO > 850 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "guarantorFico must be between 0 and 850",
		})
		return
	}

	id, err := h.repo.UpsertBorrower(ctx, &b)
	if err != nil {
		slog.Error("failed to save borrower", "email", b.Email, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save application",
		})
		return
	}

	h.publishEvent(r, domain.TopicMatchBorrower, domain.MatchBorrowerEvent{BorrowerID: id})

	writeJSON(w, http.StatusAccepted, ApplyResponse{
		BorrowerID: id,
		Status:     "accepted",
	})
}

// GetBorrower retrieves a borrower profile by ID.
func (h *Handler) GetBorrower(w http.ResponseWriter, r *http.Request) {
	id, ok := borrowerID(w, r)
	if !ok {
		return
	}

	b, err := h.repo.GetBorrower(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "borrower not found",
		})
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GetBorrowerMatches returns the borrower's current match set, best first.
func (h *Handler) GetBorrowerMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := borrowerID(w, r)
	if !ok {
		return
	}

	matches, err := h.repo.ListMatchesForBorrower(r.Context(), id)
	if err != nil {
		slog.Error("failed to list borrower matches", "borrower_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load matches",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
	})
}

// CreateLenderRequest is the request body for POST /lenders.
type CreateLenderRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateLender registers a lending institution.
func (h *Handler) CreateLender(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateLenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Name == "" || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and email are required",
		})
		return
	}

	if existing, err := h.repo.GetLenderByEmail(ctx, req.Email); err == nil && existing != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "a lender with this email already exists",
		})
		return
	}

	lender := &domain.Lender{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.CreateLender(ctx, lender); err != nil {
		slog.Error("failed to create lender", "email", req.Email, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to create lender",
		})
		return
	}

	slog.Info("lender created", "lender_id", lender.ID, "name", lender.Name)
	writeJSON(w, http.StatusCreated, lender)
}

// GetLender retrieves a lender by ID.
func (h *Handler) GetLender(w http.ResponseWriter, r *http.Request) {
	lenderID := chi.URLParam(r, "id")

	lender, err := h.repo.GetLender(r.Context(), lenderID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "lender not found",
		})
		return
	}
	writeJSON(w, http.StatusOK, lender)
}

// PolicyRequest is the request body for PUT /lenders/{id}/policy.
type PolicyRequest struct {
	VersionName        string           `json:"versionName,omitempty"`
	ExcludedIndustries []string         `json:"excludedIndustries,omitempty"`
	RestrictedStates   []string         `json:"restrictedStates,omitempty"`
	Programs           []domain.Program `json:"programs"`
}

// UpdatePolicy handles PUT /lenders/{id}/policy. Each call appends a new
// policy version and deactivates the previous one; the payload is normalized
// before storage so the engine only ever sees canonical rules. A version
// with no programs is stored inactive, which withdraws the lender from
// matching. Recompute runs asynchronously off the bus.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lenderID := chi.URLParam(r, "id")

	if _, err := h.repo.GetLender(ctx, lenderID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "lender not found",
		})
		return
	}

	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	policy := &domain.LenderPolicy{
		ID:                 uuid.New().String(),
		LenderID:           lenderID,
		VersionName:        req.VersionName,
		Active:             len(req.Programs) > 0,
		ExcludedIndustries: req.ExcludedIndustries,
		RestrictedStates:   req.RestrictedStates,
		Programs:           req.Programs,
		UpdatedAt:          time.Now().UTC(),
	}
	engine.NormalizePolicy(policy)

	if err := h.repo.CreatePolicyVersion(ctx, policy); err != nil {
		slog.Error("failed to save policy version", "lender_id", lenderID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save policy",
		})
		return
	}

	if h.matcher != nil {
		h.matcher.InvalidateActivePolicies(ctx)
	}
	h.publishEvent(r, domain.TopicMatchPolicy, domain.MatchPolicyEvent{
		LenderID: lenderID,
		PolicyID: policy.ID,
	})

	slog.Info("policy version created",
		"lender_id", lenderID,
		"policy_id", policy.ID,
		"programs", len(policy.Programs),
		"active", policy.Active,
	)
	writeJSON(w, http.StatusCreated, policy)
}

// GetActivePolicy returns the lender's currently active policy version.
func (h *Handler) GetActivePolicy(w http.ResponseWriter, r *http.Request) {
	lenderID := chi.URLParam(r, "id")

	policy, err := h.repo.GetActivePolicy(r.Context(), lenderID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no active policy for lender",
		})
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// GetPolicyHistory returns every policy version for a lender, newest first.
func (h *Handler) GetPolicyHistory(w http.ResponseWriter, r *http.Request) {
	lenderID := chi.URLParam(r, "id")

	versions, err := h.repo.ListPolicyVersions(r.Context(), lenderID)
	if err != nil {
		slog.Error("failed to list policy versions", "lender_id", lenderID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load policy history",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"versions": versions,
		"count":    len(versions),
	})
}

// GetLenderMatches returns the lender's current match set, best first.
func (h *Handler) GetLenderMatches(w http.ResponseWriter, r *http.Request) {
	lenderID := chi.URLParam(r, "id")

	matches, err := h.repo.ListMatchesForLender(r.Context(), lenderID)
	if err != nil {
		slog.Error("failed to list lender matches", "lender_id", lenderID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load matches",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// publishEvent fires a recompute event. Publish failures are logged but
// never fail the request; the write already committed.
func (h *Handler) publishEvent(r *http.Request, topic string, event any) {
	if h.bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := h.bus.Publish(r.Context(), topic, payload); err != nil {
		slog.Error("failed to publish event",
			"topic", topic,
			"trace_id", GetTraceID(r.Context()),
			"error", err,
		)
	}
}

func borrowerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid borrower id",
		})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
