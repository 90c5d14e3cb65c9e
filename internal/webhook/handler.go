package webhook

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"grainlab-backend/internal/classifications"
	"grainlab-backend/internal/shared/metrics"
	"grainlab-backend/internal/shared/server/respond"
	"grainlab-backend/internal/shared/telemetry"
)

// HeaderAPIKey is the header the analysis service authenticates with.
const HeaderAPIKey = "WEBHOOK-API-KEY"

// Handler receives analysis results from the external service.
type Handler struct {
	Repo classifications.Repo
	Keys *KeySet
}

// NewHandler constructs a Handler.
func NewHandler(repo classifications.Repo, keys *KeySet) *Handler {
	return &Handler{Repo: repo, Keys: keys}
}

// RegisterRoutes attaches the webhook route. The route sits outside the
// authenticated API group; the key set is its only auth.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/webhook/analyze", h.receive)
}

// callbackBody is the envelope the analysis service posts back. Pointer
// fields distinguish absent from zero-valued.
type callbackBody struct {
	Status  *bool         `json:"status"`
	Message *string       `json:"message"`
	Data    *callbackData `json:"data"`
}

type callbackData struct {
	JobID   *string          `json:"job_id"`
	Status  *string          `json:"status"`
	Payload *callbackPayload `json:"payload"`
	Result  map[string]any   `json:"result"`
}

type callbackPayload struct {
	ExternalID *string `json:"external_id"`
}

func (h *Handler) receive(c *gin.Context) {
	session, ok := h.Keys.Match(c.GetHeader(HeaderAPIKey))
	if !ok {
		metrics.IncWebhookRejected()
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid webhook key", nil)
		return
	}
	c.Set("webhookSession", session)
	if !h.Keys.Allowed(session) {
		metrics.IncWebhookRejected()
		respond.Error(c, http.StatusForbidden, "forbidden", "session not allowed to deliver results", nil)
		return
	}

	metrics.IncWebhookReceived()

	var body callbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		metrics.IncWebhookRejected()
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", "invalid request body", nil)
		return
	}
	if fieldErrors := validateCallback(body); len(fieldErrors) > 0 {
		metrics.IncWebhookRejected()
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", firstError(fieldErrors), fieldErrors)
		return
	}

	externalID := *body.Data.Payload.ExternalID

	if !*body.Status {
		h.recordFailure(c, session, externalID, body)
		return
	}

	result := classifications.Result{
		ExternalID: uuid.NewString(),
		Payload:    body.Data.Result,
		Counts:     classifications.CountsFromPayload(body.Data.Result),
		CreatedAt:  time.Now().UTC(),
	}

	stored, created, err := h.Repo.CreateResult(c.Request.Context(), externalID, result)
	if err != nil {
		switch {
		case errors.Is(err, classifications.ErrNotFound):
			metrics.IncWebhookRejected()
			respond.Error(c, http.StatusNotFound, "not_found", "unknown classification", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store result", nil)
		}
		return
	}

	if !created {
		metrics.IncWebhookDuplicate()
		telemetry.Info("webhook.duplicate", map[string]any{
			"request_id":        c.GetString("requestId"),
			"webhook_session":   session,
			"classification_id": externalID,
			"result_id":         stored.ExternalID,
		})
		respond.JSON(c, http.StatusOK, gin.H{
			"resultId": stored.ExternalID,
			"status":   classifications.StatusAnalyzed,
		})
		return
	}

	metrics.IncResultsPersisted()
	telemetry.Info("webhook.result_stored", map[string]any{
		"request_id":        c.GetString("requestId"),
		"webhook_session":   session,
		"classification_id": externalID,
		"result_id":         stored.ExternalID,
		"job_id":            *body.Data.JobID,
	})
	respond.JSON(c, http.StatusCreated, gin.H{
		"resultId": stored.ExternalID,
		"status":   classifications.StatusAnalyzed,
	})
}

// recordFailure handles a callback reporting that the analysis itself
// failed. The classification moves to failed; no result row is written.
func (h *Handler) recordFailure(c *gin.Context, session, externalID string, body callbackBody) {
	_, err := h.Repo.Transition(c.Request.Context(), externalID, classifications.StatusFailed)
	if err != nil {
		switch {
		case errors.Is(err, classifications.ErrNotFound):
			metrics.IncWebhookRejected()
			respond.Error(c, http.StatusNotFound, "not_found", "unknown classification", nil)
			return
		case errors.Is(err, classifications.ErrInvalidTransition):
			// already terminal; acknowledge so the sender stops retrying
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to record failure", nil)
			return
		}
	}

	telemetry.Info("webhook.analysis_failed", map[string]any{
		"request_id":        c.GetString("requestId"),
		"webhook_session":   session,
		"classification_id": externalID,
		"message":           *body.Message,
	})
	respond.JSON(c, http.StatusOK, gin.H{"status": classifications.StatusFailed})
}

// fieldOrder fixes which failing field is reported in the top-level message.
var fieldOrder = []string{
	"status",
	"message",
	"data",
	"data.job_id",
	"data.status",
	"data.payload",
	"data.payload.external_id",
	"data.result",
}

func validateCallback(body callbackBody) map[string]string {
	fieldErrors := map[string]string{}
	if body.Status == nil {
		fieldErrors["status"] = "status is required"
	}
	if body.Message == nil {
		fieldErrors["message"] = "message is required"
	}
	if body.Data == nil {
		fieldErrors["data"] = "data is required"
		return fieldErrors
	}
	if body.Data.JobID == nil || strings.TrimSpace(*body.Data.JobID) == "" {
		fieldErrors["data.job_id"] = "data.job_id is required"
	}
	if body.Data.Status == nil || strings.TrimSpace(*body.Data.Status) == "" {
		fieldErrors["data.status"] = "data.status is required"
	}
	if body.Data.Payload == nil {
		fieldErrors["data.payload"] = "data.payload is required"
	} else if body.Data.Payload.ExternalID == nil || strings.TrimSpace(*body.Data.Payload.ExternalID) == "" {
		fieldErrors["data.payload.external_id"] = "data.payload.external_id is required"
	}
	if body.Status != nil && *body.Status && body.Data.Result == nil {
		fieldErrors["data.result"] = "data.result is required"
	}
	return fieldErrors
}

func firstError(fieldErrors map[string]string) string {
	for _, field := range fieldOrder {
		if msg, ok := fieldErrors[field]; ok {
			return msg
		}
	}
	for _, msg := range fieldErrors {
		return msg
	}
	return "invalid request body"
}
