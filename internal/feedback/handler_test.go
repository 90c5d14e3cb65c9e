package feedback_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"grainlab-backend/internal/bootstrap"
	"grainlab-backend/internal/feedback"
	sharedauth "grainlab-backend/internal/shared/auth"
	"grainlab-backend/internal/shared/config"
)

func buildApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app, err := bootstrap.Build(config.Config{
		Port:            "0",
		Env:             "dev",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app
}

func signedToken(t *testing.T, sub string, roles ...string) string {
	t.Helper()
	token, err := sharedauth.SignJWT(sharedauth.Claims{Sub: sub, Roles: roles})
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return token
}

func TestFeedbackSubmitRequiresLogin(t *testing.T) {
	app := buildApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback", bytes.NewReader([]byte(`{"subject": "s", "body": "b"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", "guest1")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("guest submit: expected 401, got %d", resp.Code)
	}
}

func TestFeedbackSubmitAndResolveFlow(t *testing.T) {
	app := buildApp(t)
	router := app.Router
	userToken := signedToken(t, "google:user-1")
	staffToken := signedToken(t, "google:staff-1", "staff")

	// a logged-in user submits feedback
	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback", bytes.NewReader([]byte(`{"subject": "wrong counts", "body": "greenish shown as burned"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+userToken)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created feedback.Feedback
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.UserID != "google:user-1" || created.Resolved {
		t.Fatalf("created = %+v", created)
	}

	// the reporter cannot browse feedback
	req = httptest.NewRequest(http.MethodGet, "/api/v1/feedback", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("user list: expected 403, got %d", resp.Code)
	}

	// staff sees it in the unresolved queue
	req = httptest.NewRequest(http.MethodGet, "/api/v1/feedback?unresolved=true", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("staff list: expected 200, got %d", resp.Code)
	}
	var queue []feedback.Feedback
	if err := json.NewDecoder(resp.Body).Decode(&queue); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != created.ID {
		t.Fatalf("queue = %+v", queue)
	}

	// resolve, then the unresolved queue is empty
	req = httptest.NewRequest(http.MethodPost, "/api/v1/feedback/"+created.ID+"/resolve", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d", resp.Code)
	}
	var resolved feedback.Feedback
	if err := json.NewDecoder(resp.Body).Decode(&resolved); err != nil {
		t.Fatalf("decode resolved: %v", err)
	}
	if !resolved.Resolved {
		t.Fatalf("resolved = %+v", resolved)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/feedback?unresolved=true", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	queue = nil
	if err := json.NewDecoder(resp.Body).Decode(&queue); err != nil {
		t.Fatalf("decode queue after resolve: %v", err)
	}
	if len(queue) != 0 {
		t.Fatalf("queue after resolve = %+v", queue)
	}

	// reopen puts it back
	req = httptest.NewRequest(http.MethodPost, "/api/v1/feedback/"+created.ID+"/reopen", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("reopen: expected 200, got %d", resp.Code)
	}

	// delete, then fetch 404s
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/feedback/"+created.ID, nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/feedback/"+created.ID, nil)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", resp.Code)
	}
}

func TestFeedbackSubmitRequiresSubject(t *testing.T) {
	app := buildApp(t)
	token := signedToken(t, "google:user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback", bytes.NewReader([]byte(`{"subject": "  ", "body": "b"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
