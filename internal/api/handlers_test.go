package api

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"docuchat/internal/auth"
	"docuchat/internal/config"
	"docuchat/internal/service/conversation"
	"docuchat/internal/storage"
	"docuchat/internal/worker"
)

func TestHandlersEndToEndFlow(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	username := fmt.Sprintf("tester_%d", time.Now().UnixNano())
	password := "pass123"

	// Register a user.
	regResp := doJSONRequest(t, router, http.MethodPost, "/api/users/register", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	assertStatus(t, regResp, http.StatusCreated)
	var regBody struct {
		ID int64 `json:"id"`
	}
	decodeJSON(t, regResp.Body.Bytes(), &regBody)
	if regBody.ID == 0 {
		t.Fatalf("expected user id in register response")
	}

	// Login to fetch auth token.
	loginResp := doJSONRequest(t, router, http.MethodPost, "/api/users/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	assertStatus(t, loginResp, http.StatusOK)
	var loginBody struct {
		AuthToken string `json:"auth_token"`
	}
	decodeJSON(t, loginResp.Body.Bytes(), &loginBody)
	if loginBody.AuthToken == "" {
		t.Fatalf("expected auth token from login")
	}
	authHeader := map[string]string{"Authorization": fmt.Sprintf("Bearer %s", loginBody.AuthToken)}

	// Create a conversation session pinned to the document model.
	startResp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/conversation/sessions", regBody.ID),
		map[string]any{"title": "Quarterly report", "model": "provider-1/deepseek-v3.1"},
		authHeader)
	assertStatus(t, startResp, http.StatusCreated)
	var startBody struct {
		Session struct {
			ID    int64  `json:"id"`
			Model string `json:"model"`
		} `json:"session"`
	}
	decodeJSON(t, startResp.Body.Bytes(), &startBody)
	if startBody.Session.ID <= 0 {
		t.Fatalf("expected positive session id")
	}

	// Send a message; its routing should stick to the selected model.
	msgResp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/conversation/msg", regBody.ID),
		map[string]any{
			"session_id": startBody.Session.ID,
			"content":    "Summarize the attached report.",
			"model":      "provider-1/deepseek-v3.1",
		},
		authHeader)
	assertStatus(t, msgResp, http.StatusCreated)
	var msgBody struct {
		Message struct {
			ID      int64  `json:"id"`
			Content string `json:"content"`
			Model   string `json:"model"`
		} `json:"message"`
		Routing struct {
			Method       string `json:"routing_method"`
			CurrentModel string `json:"current_model"`
		} `json:"routing"`
	}
	decodeJSON(t, msgResp.Body.Bytes(), &msgBody)
	if msgBody.Message.ID <= 0 {
		t.Fatalf("expected persisted message")
	}
	if msgBody.Routing.Method != "manual" || msgBody.Routing.CurrentModel != "provider-1/deepseek-v3.1" {
		t.Fatalf("unexpected routing: %+v", msgBody.Routing)
	}

	if n := countMessages(t, db, startBody.Session.ID); n != 1 {
		t.Fatalf("expected 1 message, got %d", n)
	}

	// Session history survives logout.
	logoutResp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/logout", regBody.ID), nil, authHeader)
	assertStatus(t, logoutResp, http.StatusNoContent)

	loginResp2 := doJSONRequest(t, router, http.MethodPost, "/api/users/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	assertStatus(t, loginResp2, http.StatusOK)
	var loginBody2 struct {
		AuthToken string `json:"auth_token"`
	}
	decodeJSON(t, loginResp2.Body.Bytes(), &loginBody2)
	authHeader = map[string]string{"Authorization": fmt.Sprintf("Bearer %s", loginBody2.AuthToken)}

	histResp := doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/users/%d/conversation/sessions/%d/messages", regBody.ID, startBody.Session.ID),
		nil, authHeader)
	assertStatus(t, histResp, http.StatusOK)
	if !strings.Contains(histResp.Body.String(), "Summarize the attached report.") {
		t.Fatalf("expected message history after relogin, got %s", histResp.Body.String())
	}

	// Finally, delete the account.
	delResp := doJSONRequest(t, router, http.MethodDelete,
		fmt.Sprintf("/api/users/%d", regBody.ID), nil, authHeader)
	assertStatus(t, delResp, http.StatusNoContent)

	failLogin := doJSONRequest(t, router, http.MethodPost, "/api/users/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	if failLogin.Code == http.StatusOK {
		t.Fatalf("expected login to fail after user deletion")
	}
}

func TestAnalyzeFileEndpoint(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	resp := doJSONRequest(t, router, http.MethodPost, "/api/file-router/analyze", map[string]any{
		"filename":      "report.pdf",
		"mime_type":     "application/pdf",
		"file_size":     1 << 20,
		"current_model": "provider-1/deepseek-v3.1",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Compatibility struct {
			IsCompatible bool `json:"is_compatible"`
			MaxFiles     int  `json:"max_files"`
		} `json:"compatibility"`
		Validation struct {
			IsValid bool `json:"is_valid"`
		} `json:"validation"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if !body.Compatibility.IsCompatible || body.Compatibility.MaxFiles != 3 {
		t.Fatalf("expected deepseek to take 3 PDFs, got %+v", body.Compatibility)
	}
	if !body.Validation.IsValid {
		t.Fatalf("expected valid upload")
	}

	// An image on a document model comes back with a vision recommendation.
	resp = doJSONRequest(t, router, http.MethodPost, "/api/file-router/analyze", map[string]any{
		"filename":      "chart.png",
		"mime_type":     "image/png",
		"file_size":     1 << 20,
		"current_model": "provider-1/deepseek-v3.1",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	var imgBody struct {
		Compatibility struct {
			IsCompatible     bool   `json:"is_compatible"`
			RecommendedModel string `json:"recommended_model"`
		} `json:"compatibility"`
	}
	decodeJSON(t, resp.Body.Bytes(), &imgBody)
	if imgBody.Compatibility.IsCompatible {
		t.Fatalf("expected image to be incompatible with document model")
	}
	if !strings.Contains(imgBody.Compatibility.RecommendedModel, "pixtral") {
		t.Fatalf("expected pixtral recommendation, got %q", imgBody.Compatibility.RecommendedModel)
	}

	// Malformed input is rejected, not guessed at.
	resp = doJSONRequest(t, router, http.MethodPost, "/api/file-router/analyze", map[string]any{
		"mime_type": "application/pdf",
	}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAnalyzeBatchEndpoint(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	resp := doJSONRequest(t, router, http.MethodPost, "/api/file-router/analyze-batch", map[string]any{
		"current_model": "provider-1/deepseek-v3.1",
		"files": []map[string]any{
			{"filename": "a.pdf", "mime_type": "application/pdf", "file_size": 1 << 20},
			{"filename": "b.docx", "file_size": 1 << 20},
			{"filename": "c.pdf", "file_size": 1 << 20},
			{"filename": "d.pdf", "file_size": 1 << 20},
		},
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Validation struct {
			AllValid bool `json:"all_valid"`
			Results  []struct {
				Filename string `json:"filename"`
				IsValid  bool   `json:"is_valid"`
				Reason   string `json:"reason"`
			} `json:"results"`
			Summary struct {
				TotalFiles   int `json:"total_files"`
				ValidFiles   int `json:"valid_files"`
				InvalidFiles int `json:"invalid_files"`
			} `json:"summary"`
		} `json:"validation"`
		Compatibility []struct {
			IsCompatible bool `json:"is_compatible"`
		} `json:"compatibility"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Validation.AllValid {
		t.Fatalf("expected fourth document to exceed the 3-file cap")
	}
	if body.Validation.Summary.ValidFiles != 3 || body.Validation.Summary.InvalidFiles != 1 {
		t.Fatalf("unexpected batch summary: %+v", body.Validation.Summary)
	}
	if len(body.Validation.Results) != 4 || body.Validation.Results[3].IsValid {
		t.Fatalf("expected fourth file rejected by validation: %+v", body.Validation.Results)
	}
	if len(body.Compatibility) != 4 {
		t.Fatalf("expected 4 compatibility decisions, got %d", len(body.Compatibility))
	}
	// The per-type pdf cap is 3, so every file is individually compatible;
	// the combined cap is enforced by validation.
	if !body.Compatibility[3].IsCompatible {
		t.Fatalf("per-type decision should not enforce the combined cap")
	}
}

func TestModelCapabilitiesRoute(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	// Model IDs contain slashes, so the path has embedded separators.
	resp := doJSONRequest(t, router, http.MethodGet,
		"/api/file-router/model-capabilities/provider-6/pixtral-12b", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Model        string `json:"model"`
		Category     string `json:"category"`
		Capabilities struct {
			SupportsImages bool `json:"supports_images"`
			ContextWindow  int  `json:"context_window"`
		} `json:"capabilities"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Model != "provider-6/pixtral-12b" {
		t.Fatalf("wildcard param mangled the model id: %q", body.Model)
	}
	if body.Category != "vision" || !body.Capabilities.SupportsImages {
		t.Fatalf("expected vision capabilities, got %+v", body)
	}

	limitsResp := doJSONRequest(t, router, http.MethodGet,
		"/api/file-router/upload-limits/provider-1/deepseek-v3.1", nil, nil)
	assertStatus(t, limitsResp, http.StatusOK)
	var limitsBody struct {
		TotalLimit int            `json:"total_limit"`
		Limits     map[string]int `json:"limits"`
	}
	decodeJSON(t, limitsResp.Body.Bytes(), &limitsBody)
	if limitsBody.TotalLimit != 3 || limitsBody.Limits["image"] != 0 {
		t.Fatalf("unexpected limits: %+v", limitsBody)
	}
}

func TestUploadExtractAndDelete(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	userID, authHeader := registerAndLogin(t, router)
	sessionID := createSession(t, router, userID, authHeader, "provider-1/deepseek-v3.1")

	docx := buildTestDOCX(t, "Hello upload", "Second paragraph")
	upResp := doUploadRequest(t, router, userID, sessionID, "notes.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document", docx, authHeader)
	assertStatus(t, upResp, http.StatusCreated)
	var upBody struct {
		Upload struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"upload"`
	}
	decodeJSON(t, upResp.Body.Bytes(), &upBody)
	if upBody.Upload.ID <= 0 {
		t.Fatalf("expected upload id")
	}

	// Fetching the text runs extraction if the async worker has not got
	// there yet.
	textResp := doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/users/%d/uploads/%d/text", userID, upBody.Upload.ID), nil, authHeader)
	assertStatus(t, textResp, http.StatusOK)
	var textBody struct {
		Status string `json:"status"`
		Text   string `json:"text"`
	}
	decodeJSON(t, textResp.Body.Bytes(), &textBody)
	if textBody.Status != "extracted" {
		t.Fatalf("expected extracted status, got %q", textBody.Status)
	}
	if !strings.Contains(textBody.Text, "Hello upload") || !strings.Contains(textBody.Text, "Second paragraph") {
		t.Fatalf("extracted text missing content: %q", textBody.Text)
	}

	listResp := doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/users/%d/uploads?session_id=%d", userID, sessionID), nil, authHeader)
	assertStatus(t, listResp, http.StatusOK)
	if !strings.Contains(listResp.Body.String(), "notes.docx") {
		t.Fatalf("expected upload in session listing")
	}

	delResp := doJSONRequest(t, router, http.MethodDelete,
		fmt.Sprintf("/api/users/%d/uploads/%d", userID, upBody.Upload.ID), nil, authHeader)
	assertStatus(t, delResp, http.StatusNoContent)

	missingResp := doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/users/%d/uploads/%d/text", userID, upBody.Upload.ID), nil, authHeader)
	assertStatus(t, missingResp, http.StatusNotFound)
}

func TestUploadRejectsIncompatibleAndOverLimit(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	userID, authHeader := registerAndLogin(t, router)
	sessionID := createSession(t, router, userID, authHeader, "provider-1/deepseek-v3.1")

	// Images are not accepted by document models.
	imgResp := doUploadRequest(t, router, userID, sessionID, "chart.png", "image/png",
		[]byte("\x89PNG fake"), authHeader)
	assertStatus(t, imgResp, http.StatusUnprocessableEntity)
	if !strings.Contains(imgResp.Body.String(), "pixtral") {
		t.Fatalf("expected vision recommendation in rejection, got %s", imgResp.Body.String())
	}

	// The fourth document exceeds the 3-file cap.
	for i := 0; i < 3; i++ {
		docx := buildTestDOCX(t, fmt.Sprintf("doc %d", i))
		resp := doUploadRequest(t, router, userID, sessionID, fmt.Sprintf("doc%d.docx", i),
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document", docx, authHeader)
		assertStatus(t, resp, http.StatusCreated)
	}
	fourth := buildTestDOCX(t, "one too many")
	resp := doUploadRequest(t, router, userID, sessionID, "doc4.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document", fourth, authHeader)
	assertStatus(t, resp, http.StatusUnprocessableEntity)

	// Unsupported types fail before any counting.
	badResp := doUploadRequest(t, router, userID, sessionID, "notes.txt", "text/plain",
		[]byte("plain text"), authHeader)
	assertStatus(t, badResp, http.StatusBadRequest)
}

func TestUploadRequiresOwnSession(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	userID, authHeader := registerAndLogin(t, router)
	otherID, otherHeader := registerAndLogin(t, router)
	sessionID := createSession(t, router, otherID, otherHeader, "provider-1/deepseek-v3.1")

	docx := buildTestDOCX(t, "not yours")
	resp := doUploadRequest(t, router, userID, sessionID, "a.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document", docx, authHeader)
	assertStatus(t, resp, http.StatusNotFound)
}

func TestCaptureInputValidation(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	userID, authHeader := registerAndLogin(t, router)
	sessionID := createSession(t, router, userID, authHeader, "")

	// Missing session id.
	resp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/conversation/msg", userID),
		map[string]any{"session_id": 0, "content": "hi"},
		authHeader)
	assertStatus(t, resp, http.StatusBadRequest)

	// Empty content.
	resp = doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/conversation/msg", userID),
		map[string]any{"session_id": sessionID, "content": "   "},
		authHeader)
	assertStatus(t, resp, http.StatusBadRequest)

	// Unknown session.
	resp = doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/conversation/msg", userID),
		map[string]any{"session_id": sessionID + 999, "content": "hi"},
		authHeader)
	assertStatus(t, resp, http.StatusNotFound)
}

func TestMessageRateLimit(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	userID, authHeader := registerAndLogin(t, router)
	sessionID := createSession(t, router, userID, authHeader, "")

	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = doJSONRequest(t, router, http.MethodPost,
			fmt.Sprintf("/api/users/%d/conversation/msg", userID),
			map[string]any{"session_id": sessionID, "content": fmt.Sprintf("message %d", i)},
			authHeader)
	}
	assertStatus(t, last, http.StatusTooManyRequests)
	if !strings.Contains(last.Body.String(), "rate_limit") {
		t.Fatalf("expected rate limit details, got %s", last.Body.String())
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	userID, authHeader := registerAndLogin(t, router)

	putResp := doJSONRequest(t, router, http.MethodPut,
		fmt.Sprintf("/api/users/%d/preferences", userID),
		map[string]any{
			"default_model":     "provider-6/pixtral-12b",
			"prefer_speed":      true,
			"response_style":    "concise",
			"smart_suggestions": true,
		},
		authHeader)
	assertStatus(t, putResp, http.StatusOK)

	getResp := doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/users/%d/preferences", userID), nil, authHeader)
	assertStatus(t, getResp, http.StatusOK)
	var prefs struct {
		DefaultModel     string `json:"default_model"`
		PreferSpeed      bool   `json:"prefer_speed"`
		ResponseStyle    string `json:"response_style"`
		SmartSuggestions bool   `json:"smart_suggestions"`
	}
	decodeJSON(t, getResp.Body.Bytes(), &prefs)
	if prefs.DefaultModel != "provider-6/pixtral-12b" || !prefs.PreferSpeed {
		t.Fatalf("preferences did not round trip: %+v", prefs)
	}
	if prefs.ResponseStyle != "concise" || !prefs.SmartSuggestions {
		t.Fatalf("behavior toggles did not round trip: %+v", prefs)
	}

	// Second PUT overwrites, not duplicates.
	putResp = doJSONRequest(t, router, http.MethodPut,
		fmt.Sprintf("/api/users/%d/preferences", userID),
		map[string]any{"default_model": "auto"},
		authHeader)
	assertStatus(t, putResp, http.StatusOK)
	getResp = doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/users/%d/preferences", userID), nil, authHeader)
	assertStatus(t, getResp, http.StatusOK)
	decodeJSON(t, getResp.Body.Bytes(), &prefs)
	if prefs.DefaultModel != "auto" || prefs.SmartSuggestions {
		t.Fatalf("preferences not overwritten: %+v", prefs)
	}
}

func TestMonitoringEndpoints(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	healthResp := doJSONRequest(t, router, http.MethodGet, "/api/monitoring/health", nil, nil)
	assertStatus(t, healthResp, http.StatusOK)
	var health struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	decodeJSON(t, healthResp.Body.Bytes(), &health)
	if health.Status != "ok" || health.Components["database"] != "ok" {
		t.Fatalf("unexpected health payload: %+v", health)
	}
	if health.Components["redis"] != "disabled" {
		t.Fatalf("expected redis disabled without a client, got %+v", health.Components)
	}

	statsResp := doJSONRequest(t, router, http.MethodGet, "/api/monitoring/stats", nil, nil)
	assertStatus(t, statsResp, http.StatusOK)
	var stats struct {
		RateLimit struct {
			Limit int `json:"limit"`
		} `json:"rate_limit"`
		RoutingCategories map[string]json.RawMessage `json:"routing_categories"`
	}
	decodeJSON(t, statsResp.Body.Bytes(), &stats)
	if stats.RateLimit.Limit != 5 {
		t.Fatalf("expected rate limit of 5, got %d", stats.RateLimit.Limit)
	}
	if _, ok := stats.RoutingCategories["pdf_analysis"]; !ok {
		t.Fatalf("expected pdf_analysis category in stats, got %v", stats.RoutingCategories)
	}
}

func TestCrossUserAccessDenied(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	_, headerA := registerAndLogin(t, router)
	userB, _ := registerAndLogin(t, router)

	resp := doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/users/%d/conversation/sessions", userB), nil, headerA)
	assertStatus(t, resp, http.StatusForbidden)
}

func newTestServer(t *testing.T) (*gin.Engine, *sql.DB, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := storage.Open(config.Database{Driver: "sqlite3", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	svc := conversation.NewService(db)
	authSvc := auth.NewService(db, nil, time.Hour)
	manager := worker.NewManager(svc, nil)
	dispatcher := worker.NewDispatcher(1, 2, 16, manager, time.Minute)
	handler := NewHandler(svc, authSvc, dispatcher, nil, t.TempDir(), time.Hour, 50)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, db, handler
}

func createSession(t *testing.T, router *gin.Engine, userID int64, authHeader map[string]string, model string) int64 {
	t.Helper()
	resp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/users/%d/conversation/sessions", userID),
		map[string]any{"title": "test session", "model": model},
		authHeader)
	assertStatus(t, resp, http.StatusCreated)
	var body struct {
		Session struct {
			ID int64 `json:"id"`
		} `json:"session"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Session.ID <= 0 {
		t.Fatalf("expected positive session id")
	}
	return body.Session.ID
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doUploadRequest(t *testing.T, router *gin.Engine, userID, sessionID int64, filename, contentType string, content []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("session_id", fmt.Sprintf("%d", sessionID)); err != nil {
		t.Fatalf("write field: %v", err)
	}
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)}
	hdr["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write content: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/users/%d/uploads", userID), &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// buildTestDOCX assembles a minimal but well-formed DOCX archive with one
// paragraph per argument.
func buildTestDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		sb.WriteString(`<w:p><w:r><w:t>`)
		sb.WriteString(p)
		sb.WriteString(`</w:t></w:r></w:p>`)
	}
	sb.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := f.Write([]byte(sb.String())); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}

func countMessages(t *testing.T, db *sql.DB, sessionID int64) int {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&count); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	return count
}

func registerAndLogin(t *testing.T, router *gin.Engine) (int64, map[string]string) {
	t.Helper()
	username := fmt.Sprintf("tester_%d", time.Now().UnixNano())
	password := "pass123"
	regResp := doJSONRequest(t, router, http.MethodPost, "/api/users/register", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	assertStatus(t, regResp, http.StatusCreated)
	var regBody struct {
		ID int64 `json:"id"`
	}
	decodeJSON(t, regResp.Body.Bytes(), &regBody)

	loginResp := doJSONRequest(t, router, http.MethodPost, "/api/users/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	assertStatus(t, loginResp, http.StatusOK)
	var loginBody struct {
		AuthToken string `json:"auth_token"`
	}
	decodeJSON(t, loginResp.Body.Bytes(), &loginBody)
	if loginBody.AuthToken == "" {
		t.Fatalf("expected auth token after login")
	}
	authHeader := map[string]string{"Authorization": fmt.Sprintf("Bearer %s", loginBody.AuthToken)}
	return regBody.ID, authHeader
}
