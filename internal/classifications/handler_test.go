package classifications_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"grainlab-backend/internal/bootstrap"
	"grainlab-backend/internal/classifications"
	sharedauth "grainlab-backend/internal/shared/auth"
	"grainlab-backend/internal/shared/config"
	"grainlab-backend/internal/webhook"
)

func buildTestApp(t *testing.T, analysisURL string) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		Env:             "dev",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		AnalysisBaseURL: analysisURL,
		AnalysisTimeout: 5 * time.Second,
		PublicBaseURL:   "http://api.test",
		CallbackPath:    "/webhook/analyze",
		WebhookKeys: []config.WebhookKey{
			{Session: "analysis", Secret: "cb-secret"},
		},
		WebhookAllowedSessions: []string{"analysis"},
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app
}

func seedCategory(t *testing.T, app *bootstrap.App) string {
	t.Helper()
	cat, err := app.CategoriesService.Create(context.Background(), "Wheat", "wheat", "bread wheat samples")
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return cat.ID
}

func uploadClassification(t *testing.T, router *gin.Engine, categoryID string) string {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("categoryId", categoryID); err != nil {
		t.Fatalf("write field: %v", err)
	}
	fileWriter, err := writer.CreateFormFile("image", "sample.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write([]byte("jpeg-bytes")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classifications", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", resp.Code, resp.Body.String())
	}

	var created struct {
		ClassificationID string `json:"classificationId"`
		Status           string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ClassificationID == "" {
		t.Fatal("expected classificationId, got empty")
	}
	if created.Status != "registered" {
		t.Fatalf("expected status registered, got %s", created.Status)
	}
	return created.ClassificationID
}

func getClassification(t *testing.T, router *gin.Engine, id string) (int, classifications.Classification) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/classifications/"+id, nil)
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var c classifications.Classification
	if resp.Code == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
			t.Fatalf("decode classification: %v", err)
		}
	}
	return resp.Code, c
}

func waitForStatus(t *testing.T, router *gin.Engine, id string, want classifications.Status) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		code, c := getClassification(t, router, id)
		if code == http.StatusOK && c.Status == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	code, c := getClassification(t, router, id)
	t.Fatalf("classification never reached %s: code=%d status=%s", want, code, c.Status)
}

func addGuestHeader(req *http.Request) {
	req.Header.Set("X-Guest-Id", "test-guest")
}

func staffToken(t *testing.T) string {
	t.Helper()
	token, err := sharedauth.SignJWT(sharedauth.Claims{
		Sub:   "google:staff-1",
		Roles: []string{"staff"},
	})
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return token
}

func TestClassificationLifecycle(t *testing.T) {
	analysis := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": true, "message": "queued"}`))
	}))
	t.Cleanup(analysis.Close)

	app := buildTestApp(t, analysis.URL)
	router := app.Router
	categoryID := seedCategory(t, app)

	id := uploadClassification(t, router, categoryID)

	// The dispatcher runs in the background when no queue is configured.
	waitForStatus(t, router, id, classifications.StatusAccepted)

	// Deliver the analysis result through the webhook.
	callback := `{
		"status": true,
		"message": "analysis complete",
		"data": {
			"job_id": "job-1",
			"status": "done",
			"payload": {"external_id": "` + id + `"},
			"result": {"good": 95, "bad_detection": 2, "unknown": 0, "burned": 1, "greenish": 4, "small": 3}
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/analyze", bytes.NewReader([]byte(callback)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.HeaderAPIKey, "cb-secret")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("webhook: expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	code, c := getClassification(t, router, id)
	if code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", code)
	}
	if c.Status != classifications.StatusAnalyzed {
		t.Fatalf("status = %s, want analyzed", c.Status)
	}
	if c.Result == nil {
		t.Fatal("expected a result")
	}
	if c.Result.Counts.Good != 95 || c.Result.Counts.Greenish != 4 {
		t.Fatalf("counts = %+v", c.Result.Counts)
	}

	// Cancel after the result arrived conflicts.
	reqCancel := httptest.NewRequest(http.MethodPost, "/api/v1/classifications/"+id+"/cancel", nil)
	addGuestHeader(reqCancel)
	respCancel := httptest.NewRecorder()
	router.ServeHTTP(respCancel, reqCancel)
	if respCancel.Code != http.StatusConflict {
		t.Fatalf("cancel after analyzed: expected 409, got %d", respCancel.Code)
	}
}

func TestClassificationListGuestRequiresLogin(t *testing.T) {
	app := buildTestApp(t, "")
	router := app.Router

	req := httptest.NewRequest(http.MethodGet, "/api/v1/classifications", nil)
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestClassificationStaffListsForUser(t *testing.T) {
	analysis := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": true, "message": "queued"}`))
	}))
	t.Cleanup(analysis.Close)

	app := buildTestApp(t, analysis.URL)
	router := app.Router
	categoryID := seedCategory(t, app)

	id := uploadClassification(t, router, categoryID)
	waitForStatus(t, router, id, classifications.StatusAccepted)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/classifications?userId=guest:test-guest", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var items []struct {
		ClassificationID string `json:"classificationId"`
		CategoryTag      string `json:"categoryTag"`
		Status           string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].ClassificationID != id || items[0].CategoryTag != "wheat" {
		t.Fatalf("item = %+v", items[0])
	}
}

func TestClassificationCancelWhileDispatchInFlight(t *testing.T) {
	release := make(chan struct{})
	analysis := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": true, "message": "queued"}`))
	}))
	t.Cleanup(analysis.Close)
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})

	app := buildTestApp(t, analysis.URL)
	router := app.Router
	categoryID := seedCategory(t, app)

	id := uploadClassification(t, router, categoryID)
	waitForStatus(t, router, id, classifications.StatusInProgress)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classifications/"+id+"/cancel", nil)
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	close(release)

	code, c := getClassification(t, router, id)
	if code != http.StatusOK || c.Status != classifications.StatusCanceled {
		t.Fatalf("status = %s (code %d), want canceled", c.Status, code)
	}
}

func TestClassificationRejectsUnknownCategory(t *testing.T) {
	app := buildTestApp(t, "")
	router := app.Router

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("categoryId", "no-such-category")
	fw, _ := writer.CreateFormFile("image", "sample.jpg")
	_, _ = fw.Write([]byte("jpeg-bytes"))
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classifications", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestClassificationRejectsNonImageUpload(t *testing.T) {
	app := buildTestApp(t, "")
	router := app.Router
	categoryID := seedCategory(t, app)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("categoryId", categoryID)
	fw, _ := writer.CreateFormFile("image", "resume.pdf")
	_, _ = fw.Write([]byte("%PDF-1.4"))
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classifications", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestClassificationGetHiddenFromOtherUsers(t *testing.T) {
	analysis := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": true, "message": "queued"}`))
	}))
	t.Cleanup(analysis.Close)

	app := buildTestApp(t, analysis.URL)
	router := app.Router
	categoryID := seedCategory(t, app)

	id := uploadClassification(t, router, categoryID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/classifications/"+id, nil)
	req.Header.Set("X-Guest-Id", "someone-else")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner, got %d", resp.Code)
	}
}
