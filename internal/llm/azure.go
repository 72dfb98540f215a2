package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAzureAPIVersion is used when none is configured.
const DefaultAzureAPIVersion = "2024-02-15-preview"

// AzureConfig configures an Azure OpenAI deployment.
type AzureConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	Timeout    time.Duration
}

// AzureOpenAI calls the chat completions API of one deployment. Streaming
// responses are server-sent events terminated by "data: [DONE]".
type AzureOpenAI struct {
	client *http.Client
	url    string
	apiKey string
}

var _ Generator = (*AzureOpenAI)(nil)

// NewAzureOpenAI builds the deployment URL from cfg.
func NewAzureOpenAI(cfg AzureConfig) *AzureOpenAI {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAzureAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	u := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(cfg.Endpoint, "/"),
		url.PathEscape(cfg.Deployment),
		url.QueryEscape(cfg.APIVersion))
	return &AzureOpenAI{
		client: &http.Client{Timeout: cfg.Timeout},
		url:    u,
		apiKey: cfg.APIKey,
	}
}

func (a *AzureOpenAI) Name() string { return ProviderAzureOpenAI }

type azureRequest struct {
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type azureResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *AzureOpenAI) post(ctx context.Context, body azureRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, upstreamError("azure_openai", resp)
	}
	return resp, nil
}

// Generate returns the first choice's content.
func (a *AzureOpenAI) Generate(ctx context.Context, messages []Message) (string, error) {
	resp, err := a.post(ctx, azureRequest{Messages: messages})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out azureResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

// GenerateStream relays choices[0].delta.content of every event.
func (a *AzureOpenAI) GenerateStream(ctx context.Context, messages []Message) (<-chan Token, error) {
	resp, err := a.post(ctx, azureRequest{Messages: messages, Stream: true})
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
			line := strings.TrimSpace(sc.Text())
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue // blank separators, comments, event names
			}
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				return
			}
			var chunk azureResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				send(ctx, ch, Token{Err: fmt.Errorf("%w: bad event: %v", ErrUpstream, err)})
				return
			}
			if chunk.Error != nil {
				send(ctx, ch, Token{Err: fmt.Errorf("%w: azure_openai: %s", ErrUpstream, chunk.Error.Message)})
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(ctx, ch, Token{Text: chunk.Choices[0].Delta.Content}) {
				return
			}
		}
		truncated(ctx, ch, ProviderAzureOpenAI, sc.Err())
	}()
	return ch, nil
}

// HealthCheck asks for a one-token completion.
func (a *AzureOpenAI) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	resp, err := a.post(ctx, azureRequest{
		Messages:  []Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
