package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"grainlab-backend/internal/classifications"
	"grainlab-backend/internal/shared/config"
)

func newWebhookRouter(repo classifications.Repo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	keys := NewKeySet(
		[]config.WebhookKey{
			{Session: "analysis", Secret: "analysis-secret"},
			{Session: "shadow", Secret: "shadow-secret"},
		},
		[]string{"analysis"},
	)
	r := gin.New()
	NewHandler(repo, keys).RegisterRoutes(r)
	return r
}

func seedRegistered(t *testing.T, repo *classifications.MemoryRepo, externalID string) {
	t.Helper()
	_, err := repo.Create(context.Background(), classifications.Classification{
		ExternalID:  externalID,
		UserID:      "user-1",
		CategoryTag: "wheat",
		StorageKey:  "images/user-1/photo.jpg",
		Status:      classifications.StatusRegistered,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func postCallback(r *gin.Engine, apiKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(HeaderAPIKey, apiKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func successBody(externalID string) string {
	return `{
		"status": true,
		"message": "analysis complete",
		"data": {
			"job_id": "job-42",
			"status": "done",
			"payload": {"external_id": "` + externalID + `"},
			"result": {"good": 120, "bad_detection": 3, "unknown": 1, "burned": 0, "greenish": 7, "small": 2}
		}
	}`
}

func TestWebhookRejectsInvalidKey(t *testing.T) {
	repo := classifications.NewMemoryRepo()
	r := newWebhookRouter(repo)

	for _, key := range []string{"", "wrong-secret"} {
		w := postCallback(r, key, successBody("cl-1"))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("key %q: status = %d, want 401", key, w.Code)
		}
	}
}

func TestWebhookRejectsDisallowedSession(t *testing.T) {
	repo := classifications.NewMemoryRepo()
	seedRegistered(t, repo, "cl-1")
	r := newWebhookRouter(repo)

	w := postCallback(r, "shadow-secret", successBody("cl-1"))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if _, err := repo.GetResult(context.Background(), "cl-1"); err == nil {
		t.Fatal("result was persisted by a disallowed session")
	}
}

func TestWebhookValidationErrors(t *testing.T) {
	repo := classifications.NewMemoryRepo()
	r := newWebhookRouter(repo)

	w := postCallback(r, "analysis-secret", `{"message": "hi", "data": {"job_id": "j", "status": "done", "payload": {"external_id": "cl-1"}, "result": {}}}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var resp struct {
		Error struct {
			Message string            `json:"message"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Message != "status is required" {
		t.Fatalf("message = %q", resp.Error.Message)
	}
	if resp.Error.Details["status"] == "" {
		t.Fatalf("details = %v, want status entry", resp.Error.Details)
	}

	w = postCallback(r, "analysis-secret", `{"status": true, "message": "hi"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing data: status = %d, want 422", w.Code)
	}

	w = postCallback(r, "analysis-secret", `{"status": true, "message": "hi", "data": {"job_id": "j", "status": "done", "payload": {"external_id": "cl-1"}}}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing result: status = %d, want 422", w.Code)
	}

	w = postCallback(r, "analysis-secret", "not json")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("malformed body: status = %d, want 422", w.Code)
	}
}

func TestWebhookUnknownClassification(t *testing.T) {
	repo := classifications.NewMemoryRepo()
	r := newWebhookRouter(repo)

	w := postCallback(r, "analysis-secret", successBody("cl-missing"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestWebhookStoresResult(t *testing.T) {
	repo := classifications.NewMemoryRepo()
	seedRegistered(t, repo, "cl-1")
	r := newWebhookRouter(repo)

	w := postCallback(r, "analysis-secret", successBody("cl-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		ResultID string `json:"resultId"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ResultID == "" || resp.Status != "analyzed" {
		t.Fatalf("response = %+v", resp)
	}

	c, err := repo.GetByExternalID(context.Background(), "cl-1")
	if err != nil {
		t.Fatalf("GetByExternalID: %v", err)
	}
	if c.Status != classifications.StatusAnalyzed {
		t.Fatalf("classification status = %s, want analyzed", c.Status)
	}
	if c.Result == nil {
		t.Fatal("classification has no result")
	}
	if c.Result.Counts.Good != 120 || c.Result.Counts.BadDetection != 3 || c.Result.Counts.Greenish != 7 {
		t.Fatalf("counts = %+v", c.Result.Counts)
	}
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	repo := classifications.NewMemoryRepo()
	seedRegistered(t, repo, "cl-1")
	r := newWebhookRouter(repo)

	first := postCallback(r, "analysis-secret", successBody("cl-1"))
	if first.Code != http.StatusCreated {
		t.Fatalf("first delivery: status = %d, want 201", first.Code)
	}
	second := postCallback(r, "analysis-secret", successBody("cl-1"))
	if second.Code != http.StatusOK {
		t.Fatalf("second delivery: status = %d, want 200", second.Code)
	}

	var a, b struct {
		ResultID string `json:"resultId"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if a.ResultID != b.ResultID {
		t.Fatalf("result ids differ: %q vs %q", a.ResultID, b.ResultID)
	}
}

func TestWebhookAnalysisFailure(t *testing.T) {
	repo := classifications.NewMemoryRepo()
	seedRegistered(t, repo, "cl-1")
	r := newWebhookRouter(repo)

	body := `{
		"status": false,
		"message": "image too dark",
		"data": {
			"job_id": "job-42",
			"status": "failed",
			"payload": {"external_id": "cl-1"}
		}
	}`
	w := postCallback(r, "analysis-secret", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	c, err := repo.GetByExternalID(context.Background(), "cl-1")
	if err != nil {
		t.Fatalf("GetByExternalID: %v", err)
	}
	if c.Status != classifications.StatusFailed {
		t.Fatalf("classification status = %s, want failed", c.Status)
	}
	if c.Result != nil {
		t.Fatal("failure callback must not create a result")
	}

	// repeated failure delivery still acknowledges
	w = postCallback(r, "analysis-secret", body)
	if w.Code != http.StatusOK {
		t.Fatalf("repeat failure: status = %d, want 200", w.Code)
	}
}
