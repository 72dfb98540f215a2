// Package llm defines the chat-completion boundary and its backends.
//
// A Generator produces either a whole reply or a stream of fragments. Streams
// are unbuffered channels of Token: one Token per fragment, an optional final
// Token carrying Err, then close. The producing goroutine stops as soon as the
// request context is cancelled, so a consumer that goes away only has to
// cancel.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Provider identifiers.
const (
	ProviderOllama      = "ollama"
	ProviderAzureOpenAI = "azure_openai"
)

var (
	ErrUnknownProvider = errors.New("unknown llm provider")
	ErrUpstream        = errors.New("llm upstream failure")
)

// Message is one entry of a chat prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Token is a streamed fragment, or the terminal error of a stream.
type Token struct {
	Text string
	Err  error
}

// Generator is one language-model backend.
type Generator interface {
	Name() string
	Generate(ctx context.Context, messages []Message) (string, error)
	// GenerateStream returns once the backend has accepted the request.
	// Connection and status failures are returned directly; failures after
	// that arrive as a Token with Err set.
	GenerateStream(ctx context.Context, messages []Message) (<-chan Token, error)
	HealthCheck(ctx context.Context) bool
}

// upstreamError reads a bounded error body from a non-2xx response.
func upstreamError(name string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%w: %s status %d: %s", ErrUpstream, name, resp.StatusCode, strings.TrimSpace(string(body)))
}

// send delivers tok unless ctx is done first.
func send(ctx context.Context, ch chan<- Token, tok Token) bool {
	select {
	case ch <- tok:
		return true
	case <-ctx.Done():
		return false
	}
}

// errNoEndMarker is the cause reported when a body ends before the backend's
// completion marker.
var errNoEndMarker = errors.New("stream ended before completion marker")

// truncated reports a stream that stopped without its completion marker,
// either on a read error or a clean EOF. Nothing is sent once ctx is done.
func truncated(ctx context.Context, ch chan<- Token, name string, readErr error) {
	if ctx.Err() != nil {
		return
	}
	cause := readErr
	if cause == nil {
		cause = errNoEndMarker
	}
	send(ctx, ch, Token{Err: fmt.Errorf("%w: %s: %w", ErrUpstream, name, cause)})
}
