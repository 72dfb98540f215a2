package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Ollama defaults.
const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3.2"
	DefaultTimeout       = 300 * time.Second
	healthTimeout        = 5 * time.Second
)

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Ollama talks to /api/chat. Streaming responses are newline-delimited JSON.
type Ollama struct {
	client  *http.Client
	baseURL string
	model   string
}

var _ Generator = (*Ollama)(nil)

// NewOllama applies defaults to cfg.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Ollama{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
	}
}

func (o *Ollama) Name() string { return ProviderOllama }

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (o *Ollama) post(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	body, err := json.Marshal(ollamaChatRequest{Model: o.model, Messages: messages, Stream: stream})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, upstreamError("ollama", resp)
	}
	return resp, nil
}

// Generate returns the full reply.
func (o *Ollama) Generate(ctx context.Context, messages []Message) (string, error) {
	resp, err := o.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: ollama: %s", ErrUpstream, out.Error)
	}
	return out.Message.Content, nil
}

// GenerateStream relays each non-empty message fragment until a line with
// done set. A body that ends before that line fails the stream.
func (o *Ollama) GenerateStream(ctx context.Context, messages []Message) (<-chan Token, error) {
	resp, err := o.post(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan Token)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				send(ctx, ch, Token{Err: fmt.Errorf("%w: bad stream line: %v", ErrUpstream, err)})
				return
			}
			if chunk.Error != "" {
				send(ctx, ch, Token{Err: fmt.Errorf("%w: ollama: %s", ErrUpstream, chunk.Error)})
				return
			}
			if chunk.Message.Content != "" && !send(ctx, ch, Token{Text: chunk.Message.Content}) {
				return
			}
			if chunk.Done {
				return
			}
		}
		truncated(ctx, ch, ProviderOllama, sc.Err())
	}()
	return ch, nil
}

// HealthCheck lists local models.
func (o *Ollama) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
