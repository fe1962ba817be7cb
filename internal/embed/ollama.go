package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/resilience"
)

type ollamaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Ollama calls a local Ollama server's /api/embed endpoint.
type Ollama struct {
	baseURL   string
	model     string
	batchSize int
	retry     resilience.Policy
	http      *http.Client
}

// OllamaOption configures an Ollama embedder.
type OllamaOption func(*Ollama)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(o *Ollama) { o.http = c }
}

// WithBatchSize caps how many texts go into one request.
func WithBatchSize(n int) OllamaOption {
	return func(o *Ollama) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) OllamaOption {
	return func(o *Ollama) { o.retry = resilience.Retries(n) }
}

// NewOllama creates an Ollama embedder for the given server and model.
func NewOllama(baseURL, model string, opts ...OllamaOption) *Ollama {
	o := &Ollama{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		batchSize: 32,
		retry:     resilience.DefaultPolicy(),
		http:      &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.retry.OnRetry = resilience.LogRetries("ollama", "embed")
	return o
}

// Embed implements Embedder.
func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += o.batchSize {
		end := min(start+o.batchSize, len(texts))
		batch := texts[start:end]

		vecs, err := resilience.Retry(ctx, o.retry, func(ctx context.Context) ([][]float32, error) {
			return o.embedBatch(ctx, batch)
		})
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(batch) {
			return nil, eris.Errorf("embed: ollama returned %d vectors for %d inputs", len(vecs), len(batch))
		}
		out = append(out, vecs...)

		zap.L().Debug("embedded batch",
			zap.String("model", o.model),
			zap.Int("from", start),
			zap.Int("to", end),
		)
	}
	return out, nil
}

func (o *Ollama) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	raw, err := json.Marshal(ollamaRequest{Model: o.model, Input: batch})
	if err != nil {
		return nil, eris.Wrap(err, "embed: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "embed: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "embed: call ollama")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resilience.HTTPStatusError("embed: ollama", resp.StatusCode, string(body))
	}

	var parsed ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, eris.Wrap(err, "embed: decode response")
	}
	return parsed.Embeddings, nil
}
