package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-rag-backend/internal/config"
)

func drain(t *testing.T, ch <-chan Token) ([]string, error) {
	t.Helper()
	var texts []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case tok, ok := <-ch:
			if !ok {
				return texts, nil
			}
			if tok.Err != nil {
				for range ch {
				}
				return texts, tok.Err
			}
			texts = append(texts, tok.Text)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

func TestOllama_GenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path=%s", r.URL.Path)
		}
		var req ollamaChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream || req.Model != "llama3.2" || len(req.Messages) != 2 {
			t.Errorf("bad request: %+v", req)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Hel"},"done":false}`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"lo"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"ignored"},"done":false}`)
	}))
	defer srv.Close()

	o := NewOllama(OllamaConfig{BaseURL: srv.URL + "/"})
	ch, err := o.GenerateStream(context.Background(), []Message{{Role: "system", Content: "s"}, {Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	got, err := drain(t, ch)
	if err != nil {
		t.Fatalf("stream err: %v", err)
	}
	if strings.Join(got, "") != "Hello" || len(got) != 2 {
		t.Fatalf("got %q", got)
	}
}

func TestOllama_StreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"a"}}`)
		fmt.Fprintln(w, `{"error":"out of memory"}`)
	}))
	defer srv.Close()

	o := NewOllama(OllamaConfig{BaseURL: srv.URL})
	ch, err := o.GenerateStream(context.Background(), []Message{{Role: "user", Content: "x"}})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	got, err := drain(t, ch)
	if !errors.Is(err, ErrUpstream) || len(got) != 1 {
		t.Fatalf("got %q err=%v", got, err)
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model missing", http.StatusNotFound)
	}))
	defer bad.Close()
	if _, err := NewOllama(OllamaConfig{BaseURL: bad.URL}).GenerateStream(context.Background(), nil); !errors.Is(err, ErrUpstream) {
		t.Fatalf("want ErrUpstream before stream, got %v", err)
	}
}

func TestOllama_StreamStopsOnCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl := w.(http.Flusher)
		for i := 0; i < 1000; i++ {
			if _, err := fmt.Fprintf(w, `{"message":{"content":"t%d "},"done":false}`+"\n", i); err != nil {
				return
			}
			fl.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-release:
				return
			default:
			}
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewOllama(OllamaConfig{BaseURL: srv.URL}).GenerateStream(ctx, nil)
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	<-ch
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("producer kept running after cancel")
		}
	}
}

func TestOllama_GenerateAndHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		case "/api/chat":
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"full reply"},"done":true}`))
		}
	}))
	defer srv.Close()

	o := NewOllama(OllamaConfig{BaseURL: srv.URL})
	got, err := o.Generate(context.Background(), []Message{{Role: "user", Content: "x"}})
	if err != nil || got != "full reply" {
		t.Fatalf("Generate: %q %v", got, err)
	}
	if !o.HealthCheck(context.Background()) {
		t.Fatal("expected healthy")
	}
	srv.Close()
	if o.HealthCheck(context.Background()) {
		t.Fatal("expected unhealthy after close")
	}
}

func TestAzure_GenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/gpt4o/chat/completions" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != DefaultAzureAPIVersion {
			t.Errorf("api-version=%s", r.URL.Query().Get("api-version"))
		}
		if r.Header.Get("api-key") != "k" {
			t.Errorf("api-key=%q", r.Header.Get("api-key"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" there\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	a := NewAzureOpenAI(AzureConfig{Endpoint: srv.URL + "/", APIKey: "k", Deployment: "gpt4o"})
	ch, err := a.GenerateStream(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	got, err := drain(t, ch)
	if err != nil || strings.Join(got, "") != "Hi there" {
		t.Fatalf("got %q err=%v", got, err)
	}
}

func TestGenerateStream_MissingEndMarkerFails(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"The answer is "},"done":false}`)
	}))
	defer ollama.Close()
	azure := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Half an\"}}]}\n\n")
	}))
	defer azure.Close()

	gens := []Generator{
		NewOllama(OllamaConfig{BaseURL: ollama.URL}),
		NewAzureOpenAI(AzureConfig{Endpoint: azure.URL, APIKey: "k", Deployment: "d"}),
	}
	for _, g := range gens {
		ch, err := g.GenerateStream(context.Background(), []Message{{Role: "user", Content: "q"}})
		if err != nil {
			t.Fatalf("%s: GenerateStream: %v", g.Name(), err)
		}
		got, err := drain(t, ch)
		if len(got) != 1 {
			t.Fatalf("%s: fragments = %q", g.Name(), got)
		}
		if !errors.Is(err, ErrUpstream) || !errors.Is(err, errNoEndMarker) {
			t.Fatalf("%s: truncated stream err = %v", g.Name(), err)
		}
	}
}

func TestAzure_GenerateAndHealth(t *testing.T) {
	var maxTokens []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req azureRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		maxTokens = append(maxTokens, req.MaxTokens)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"pong"}}]}`))
	}))
	defer srv.Close()

	a := NewAzureOpenAI(AzureConfig{Endpoint: srv.URL, APIKey: "k", Deployment: "d"})
	got, err := a.Generate(context.Background(), []Message{{Role: "user", Content: "x"}})
	if err != nil || got != "pong" {
		t.Fatalf("Generate: %q %v", got, err)
	}
	if !a.HealthCheck(context.Background()) {
		t.Fatal("expected healthy")
	}
	if len(maxTokens) != 2 || maxTokens[0] != 0 || maxTokens[1] != 1 {
		t.Fatalf("max_tokens=%v", maxTokens)
	}
}

func TestAzure_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := NewAzureOpenAI(AzureConfig{Endpoint: srv.URL, APIKey: "bad", Deployment: "d"})
	if _, err := a.GenerateStream(context.Background(), nil); !errors.Is(err, ErrUpstream) {
		t.Fatalf("want ErrUpstream, got %v", err)
	}
	if a.HealthCheck(context.Background()) {
		t.Fatal("expected unhealthy")
	}
}

func TestRegistry(t *testing.T) {
	r := FromConfig(config.LLMConfig{Ollama: config.OllamaConfig{BaseURL: "http://x", Model: "m"}})
	if !r.Has(ProviderOllama) || r.Has(ProviderAzureOpenAI) {
		t.Fatalf("names=%v", r.Names())
	}
	if _, err := r.Get(ProviderAzureOpenAI); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("want ErrUnknownProvider, got %v", err)
	}

	r = FromConfig(config.LLMConfig{Azure: config.AzureOpenAIConfig{Endpoint: "https://e", APIKey: "k", Deployment: "d"}})
	if got := r.Names(); len(got) != 2 || got[0] != ProviderAzureOpenAI || got[1] != ProviderOllama {
		t.Fatalf("names=%v", got)
	}
	g, err := r.Get(ProviderOllama)
	if err != nil || g.Name() != ProviderOllama {
		t.Fatalf("Get: %v %v", g, err)
	}
}
