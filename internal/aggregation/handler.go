package aggregation

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bqworks/paygrid/internal/domain"
	"github.com/bqworks/paygrid/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrSubscriptionNotFound, Status: http.StatusNotFound, Message: "subscription not found"},
	{Error: ErrRunNotFound, Status: http.StatusNotFound, Message: "run not found"},
	{Error: ErrInvalidSubscription, Status: http.StatusBadRequest, Message: "invalid subscription configuration"},
	{Error: ErrUnknownSegments, Status: http.StatusBadRequest, Message: "one or more segments not found"},
	{Error: ErrSubscriptionDeleted, Status: http.StatusConflict, Message: "subscription is deleted"},
	{Error: ErrSubscriptionInactive, Status: http.StatusConflict, Message: "subscription is paused"},
}

// Handler handles HTTP requests for the aggregation module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new aggregation handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers subscription and run routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/subscriptions", func(r chi.Router) {
		r.Get("/", h.ListSubscriptions)
		r.Post("/", h.CreateSubscription)
		r.Get("/{id}", h.GetSubscription)
		r.Put("/{id}", h.UpdateSubscription)
		r.Patch("/{id}/active", h.SetSubscriptionActive)
		r.Delete("/{id}", h.DeleteSubscription)
		r.Post("/{id}/trigger", h.TriggerManualRun)
		r.Get("/{id}/runs", h.ListRecentRuns)
	})

	r.Post("/batches/trigger", h.TriggerBatch)
}

// SubscriptionRequest is the request body for creating and updating a
// subscription.
type SubscriptionRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Kind        string `json:"kind" validate:"required,oneof=salary company_review"`
	ChannelKind string `json:"channel_kind" validate:"required,oneof=telegram mattermost"`
	ChatID      string `json:"chat_id" validate:"required"`
	Regularity  string `json:"regularity" validate:"required,oneof=daily weekly monthly manual"`

	SegmentIDs []string `json:"segment_ids" validate:"dive,uuid"`

	UseAiAnalysis                     bool `json:"use_ai_analysis"`
	PreventNotificationIfNoDifference bool `json:"prevent_notification_if_no_difference"`
}

func (req *SubscriptionRequest) toDomain() *domain.Subscription {
	return &domain.Subscription{
		Name:                              req.Name,
		Kind:                              domain.SubscriptionKind(req.Kind),
		ChannelKind:                       domain.ChannelKind(req.ChannelKind),
		ChatID:                            req.ChatID,
		Regularity:                        domain.Regularity(req.Regularity),
		SegmentIDs:                        req.SegmentIDs,
		UseAiAnalysis:                     req.UseAiAnalysis,
		PreventNotificationIfNoDifference: req.PreventNotificationIfNoDifference,
	}
}

// SetActiveRequest is the request body for pausing or resuming.
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// CreateSubscription handles POST /subscriptions.
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	sub, err := h.service.CreateSubscription(r.Context(), req.toDomain())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, sub)
}

// ListSubscriptions handles GET /subscriptions.
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"

	subs, err := h.service.ListSubscriptions(r.Context(), includeDeleted)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, subs)
}

// GetSubscription handles GET /subscriptions/{id}.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.GetSubscription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, sub)
}

// UpdateSubscription handles PUT /subscriptions/{id}.
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	sub := req.toDomain()
	sub.ID = chi.URLParam(r, "id")

	updated, err := h.service.UpdateSubscription(r.Context(), sub)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, updated)
}

// SetSubscriptionActive handles PATCH /subscriptions/{id}/active.
func (h *Handler) SetSubscriptionActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.SetSubscriptionActive(r.Context(), id, *req.IsActive); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]any{
		"id":        id,
		"is_active": *req.IsActive,
	})
}

// DeleteSubscription handles DELETE /subscriptions/{id}.
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSubscription(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TriggerManualRun handles POST /subscriptions/{id}/trigger.
func (h *Handler) TriggerManualRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.TriggerManualRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, run)
}

// ListRecentRuns handles GET /subscriptions/{id}/runs.
func (h *Handler) ListRecentRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			httputil.Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	runs, err := h.service.ListRecentRuns(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, runs)
}

// TriggerBatch handles POST /batches/trigger.
func (h *Handler) TriggerBatch(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.TriggerScheduledBatch(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, summary)
}
