package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const maxErrorBody = 512

// httpProvider carries what the remote providers share.
type httpProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	retry      RetryConfig
}

func newHTTPProvider(baseURL, apiKey, model string, timeout time.Duration) httpProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return httpProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		retry:      DefaultRetryConfig(),
	}
}

// postJSON sends body to url and decodes the response into out. Non-2xx
// answers are retried only for 429 and 5xx.
func (p httpProvider) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	_, err = retryWithBackoff(ctx, p.retry, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			err := fmt.Errorf("%w: status %d: %s", ErrProviderFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return struct{}{}, err
			}
			return struct{}{}, permanent(err)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, permanent(fmt.Errorf("%w: decode response: %v", ErrProviderFailed, err))
		}
		return struct{}{}, nil
	})
	return err
}

// OllamaProvider calls Ollama's batch embedding endpoint.
type OllamaProvider struct {
	httpProvider
}

// NewOllamaProvider targets {baseURL}/api/embed.
func NewOllamaProvider(baseURL, model string, timeout time.Duration) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{httpProvider: newHTTPProvider(baseURL, "", model, timeout)}
}

func (o *OllamaProvider) Name() string  { return "ollama" }
func (o *OllamaProvider) Model() string { return o.model }

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (o *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp ollamaEmbedResponse
	if err := o.postJSON(ctx, o.baseURL+"/api/embed", ollamaEmbedRequest{Model: o.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrProviderFailed, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// OpenAIProvider calls an OpenAI-compatible /embeddings endpoint.
type OpenAIProvider struct {
	httpProvider
}

// NewOpenAIProvider targets {baseURL}/embeddings.
func NewOpenAIProvider(baseURL, apiKey, model string, timeout time.Duration) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{httpProvider: newHTTPProvider(baseURL, apiKey, model, timeout)}
}

func (o *OpenAIProvider) Name() string  { return "openai" }
func (o *OpenAIProvider) Model() string { return o.model }

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (o *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openAIEmbedResponse
	if err := o.postJSON(ctx, o.baseURL+"/embeddings", openAIEmbedRequest{Model: o.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrProviderFailed, len(resp.Data), len(texts))
	}
	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
