package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/akozyrev/factstack/internal/core/ports"
	"github.com/akozyrev/factstack/internal/observability/metrics"
)

// ConfigView is the read-only runtime configuration exposed on /v1/config so
// operators can confirm which thresholds a deployment answers with.
type ConfigView struct {
	TopK                int     `json:"top_k"`
	RerankTopK          int     `json:"rerank_top_k"`
	RewriteEnabled      bool    `json:"rewrite_enabled"`
	TranslationEnabled  bool    `json:"translation_enabled"`
	MinScoreThreshold   float64 `json:"min_score_threshold"`
	TranslationLeniency float64 `json:"translation_leniency"`
	MaxContextTokens    int     `json:"max_context_tokens"`
	Backend             string  `json:"backend"`
}

type Router struct {
	questions ports.QuestionService
	ingestor  ports.DocumentIngestor
	reader    ports.DocumentReader
	runs      ports.RunAuditLog
	metrics   *metrics.HTTPServerMetrics
	config    ConfigView
	service   string

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	inFlightWait   time.Duration
}

type RouterOptions struct {
	Runs           ports.RunAuditLog
	Metrics        *metrics.HTTPServerMetrics
	Config         ConfigView
	Service        string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	InFlightWait   time.Duration
}

func NewRouter(
	questions ports.QuestionService,
	ingestor ports.DocumentIngestor,
	reader ports.DocumentReader,
	options RouterOptions,
) *Router {
	service := options.Service
	if service == "" {
		service = "factstack-api"
	}
	wait := options.InFlightWait
	if wait <= 0 {
		wait = 100 * time.Millisecond
	}
	return &Router{
		questions:      questions,
		ingestor:       ingestor,
		reader:         reader,
		runs:           options.Runs,
		metrics:        options.Metrics,
		config:         options.Config,
		service:        service,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxInFlight:    options.MaxInFlight,
		inFlightWait:   wait,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/config", rt.showConfig)
	if rt.runs != nil {
		mux.HandleFunc("/v1/runs", rt.listRuns)
	}
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.inFlightWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, rt.config)
}

// listRuns exposes the persisted refusal-audit log, newest first.
func (rt *Router) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	if limit > 200 {
		limit = 200
	}

	runs, err := rt.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string `json:"question"`
		TopK     int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	result, err := rt.questions.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		outcome := "answered"
		switch {
		case result.PreCheck.Refuse:
			outcome = "refused_pre"
			rt.metrics.RecordRefusal(rt.service, "pre_answer")
		case result.Answer.IsRefusal:
			outcome = "refused_model"
			rt.metrics.RecordRefusal(rt.service, "model")
		}
		rt.metrics.RecordAsk(rt.service, outcome, time.Since(start))
		if result.Retrieval.TranslationUsed {
			translation := "model"
			if result.Retrieval.DictionaryFallback {
				translation = "dictionary_fallback"
			}
			rt.metrics.RecordTranslation(rt.service, translation)
		}
		rt.metrics.RecordRetrieval(rt.service,
			result.Retrieval.TotalCandidates,
			result.Retrieval.ChannelsUsed,
			result.Retrieval.MultiChannelHits,
		)
	}

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
