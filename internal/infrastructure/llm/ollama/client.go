package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/akozyrev/factstack/internal/core/domain"
	"github.com/akozyrev/factstack/internal/infrastructure/resilience"
)

// Client is the shared Ollama HTTP client. The model-facing adapters
// (Embedder, Model, Translator) all route through it so retry and breaker
// state is shared per operation.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "embed", "/api/embed", request, &response); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Model is the Ollama-backed answer backend: structured answer generation,
// query rewriting and model-scored reranking.
type Model struct {
	client *Client
}

func NewModel(client *Client) *Model {
	return &Model{client: client}
}

func (m *Model) GenerateAnswer(ctx context.Context, question string, evidence domain.AssembledContext) (domain.AnswerResponse, error) {
	raw, err := m.client.generateJSON(ctx, buildAnswerPrompt(question, evidence))
	if err != nil {
		return domain.AnswerResponse{}, err
	}

	var parsed struct {
		Text        string   `json:"text"`
		Confidence  float64  `json:"confidence"`
		MissingInfo []string `json:"missing_info"`
		Reasoning   string   `json:"reasoning"`
		IsRefusal   bool     `json:"is_refusal"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return domain.AnswerResponse{}, fmt.Errorf("parse answer json: %w", err)
	}

	answer := domain.AnswerResponse{
		Text:        strings.TrimSpace(parsed.Text),
		Confidence:  clamp01(parsed.Confidence),
		MissingInfo: parsed.MissingInfo,
		Reasoning:   strings.TrimSpace(parsed.Reasoning),
		IsRefusal:   parsed.IsRefusal,
	}
	if answer.IsRefusal {
		answer.RefusalReason = answer.Reasoning
	}
	answer.Citations = citationsFromMarkers(answer.Text, evidence.Used)
	return answer, nil
}

func (m *Model) RewriteQuery(ctx context.Context, question string) (string, error) {
	out, err := m.client.generateText(ctx, buildRewritePrompt(question))
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(out), `"`), nil
}

func (m *Model) RerankEvidence(ctx context.Context, question string, items []domain.EvidenceItem, topK int) ([]domain.EvidenceItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if topK <= 0 || topK > len(items) {
		topK = len(items)
	}

	raw, err := m.client.generateJSON(ctx, buildRerankPrompt(question, items))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Scores []struct {
			Index int     `json:"index"`
			Score float64 `json:"score"`
		} `json:"scores"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse rerank json: %w", err)
	}
	if len(parsed.Scores) == 0 {
		return nil, fmt.Errorf("rerank response carries no scores")
	}

	out := make([]domain.EvidenceItem, len(items))
	copy(out, items)
	for _, s := range parsed.Scores {
		if s.Index < 0 || s.Index >= len(out) {
			continue
		}
		out[s.Index].RerankScore = clamp01(s.Score)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})
	return out[:topK], nil
}

// Translator rewrites non-English queries into English through the
// generation model.
type Translator struct {
	client *Client
}

func NewTranslator(client *Client) *Translator {
	return &Translator{client: client}
}

func (t *Translator) TranslateQuery(ctx context.Context, query string, lang domain.QueryLanguage) (string, error) {
	out, err := t.client.generateText(ctx, buildTranslatePrompt(query, lang))
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(out), `"`), nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	})
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	})
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.call(ctx, "generate", "/api/generate", reqBody, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	do := func(callCtx context.Context) error {
		return c.postJSON(callCtx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, do, classifyOllamaError)
	} else {
		err = do(ctx)
	}
	return wrapTemporaryIfNeeded("ollama "+operation, err)
}

// citationsFromMarkers maps the positional [Cn] markers present in the answer
// text back to the evidence items supplied to the model.
func citationsFromMarkers(text string, used []domain.EvidenceItem) []domain.Citation {
	var out []domain.Citation
	for i, it := range used {
		marker := fmt.Sprintf("[C%d]", i+1)
		if !strings.Contains(text, marker) {
			continue
		}
		snippet := it.Text
		if len(snippet) > 150 {
			snippet = snippet[:150] + "..."
		}
		out = append(out, domain.Citation{
			ChunkID: it.ChunkID,
			Source:  it.SourcePath,
			Text:    snippet,
			Score:   it.FinalScore,
		})
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
