package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akozyrev/factstack/internal/core/domain"
)

type questionsFake struct {
	result *domain.AskResult
	err    error
}

func (f questionsFake) Ask(context.Context, string, int) (*domain.AskResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.AskResult{
		RunID:    "run-1",
		Question: "q",
		Answer:   domain.AnswerResponse{Text: "ok", Confidence: 0.8},
	}, nil
}

type ingestFake struct {
	err error
}

func (f ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "doc-1.txt",
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type readerFake struct {
	err error
}

func (f readerFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: "doc-1", Filename: "a.txt", Status: domain.StatusReady}, nil
}

type runAuditFake struct {
	limit int
	err   error
}

func (f *runAuditFake) RecentRuns(_ context.Context, limit int) ([]domain.AskRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.limit = limit
	return []domain.AskRun{
		{RunID: "run-2", Question: "q2", Refused: true, RefusalStage: "pre_answer"},
		{RunID: "run-1", Question: "q1"},
	}, nil
}

func newTestHandler(q questionsFake, ing ingestFake, rd readerFake, options RouterOptions) http.Handler {
	return NewRouter(q, ing, rd, options).Handler()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(questionsFake{}, ingestFake{}, readerFake{}, RouterOptions{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestAskSuccess(t *testing.T) {
	handler := newTestHandler(questionsFake{}, ingestFake{}, readerFake{}, RouterOptions{})

	payload, _ := json.Marshal(map[string]any{"question": "how do retries work?", "top_k": 5})
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var result domain.AskResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.RunID != "run-1" || result.Answer.Text != "ok" {
		t.Fatalf("unexpected result %+v", result)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	handler := newTestHandler(questionsFake{}, ingestFake{}, readerFake{}, RouterOptions{})

	payload, _ := json.Marshal(map[string]any{"question": "   "})
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAskMapsTemporaryErrorTo503(t *testing.T) {
	q := questionsFake{err: domain.WrapError(domain.ErrTemporary, "retrieve", errors.New("qdrant down"))}
	handler := newTestHandler(q, ingestFake{}, readerFake{}, RouterOptions{})

	payload, _ := json.Marshal(map[string]any{"question": "q"})
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestUploadDocumentSuccess(t *testing.T) {
	handler := newTestHandler(questionsFake{}, ingestFake{}, readerFake{}, RouterOptions{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "file.txt")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}

	var docResp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&docResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if docResp["id"] != "doc-1" {
		t.Fatalf("unexpected response: %+v", docResp)
	}
}

func TestUploadDocumentUnsupportedFormatMapsTo415(t *testing.T) {
	ing := ingestFake{err: domain.WrapError(domain.ErrNotSupported, "upload", errors.New("ext=.exe"))}
	handler := newTestHandler(questionsFake{}, ing, readerFake{}, RouterOptions{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("file", "tool.exe")
	_, _ = part.Write([]byte("MZ"))
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", res.Code)
	}
}

func TestUploadDocumentMissingMultipartField(t *testing.T) {
	handler := newTestHandler(questionsFake{}, ingestFake{}, readerFake{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	rd := readerFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing"))}
	handler := newTestHandler(questionsFake{}, ingestFake{}, rd, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestShowConfig(t *testing.T) {
	options := RouterOptions{Config: ConfigView{TopK: 8, MinScoreThreshold: 0.15, Backend: "offline"}}
	handler := newTestHandler(questionsFake{}, ingestFake{}, readerFake{}, options)

	req := httptest.NewRequest(http.MethodGet, "/v1/config", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var cfg ConfigView
	if err := json.NewDecoder(res.Body).Decode(&cfg); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if cfg.TopK != 8 || cfg.Backend != "offline" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestListRunsReturnsNewestFirst(t *testing.T) {
	audit := &runAuditFake{}
	handler := newTestHandler(questionsFake{}, ingestFake{}, readerFake{}, RouterOptions{Runs: audit})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?limit=10", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if audit.limit != 10 {
		t.Fatalf("expected limit 10 passed through, got %d", audit.limit)
	}

	var payload struct {
		Runs []domain.AskRun `json:"runs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Runs) != 2 || payload.Runs[0].RunID != "run-2" {
		t.Fatalf("unexpected runs %+v", payload.Runs)
	}
	if !payload.Runs[0].Refused || payload.Runs[0].RefusalStage != "pre_answer" {
		t.Fatalf("refusal fields must survive the round trip: %+v", payload.Runs[0])
	}
}

func TestListRunsRejectsMalformedLimit(t *testing.T) {
	handler := newTestHandler(questionsFake{}, ingestFake{}, readerFake{}, RouterOptions{Runs: &runAuditFake{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?limit=ten", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAskMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(questionsFake{}, ingestFake{}, readerFake{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ask", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
