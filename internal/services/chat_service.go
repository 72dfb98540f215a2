// Package services – ChatService
//
// ChatService runs one chat turn:
//
//  1. resolve the session (ErrSessionNotFound)
//  2. persist the user message before any other work
//  3. pick the session's generator from the closed registry
//  4. retrieve grounding chunks
//  5. assemble persona prompt, grounding context and the recent history
//  6. stream the reply, relaying each fragment as it arrives
//  7. on natural completion only, persist the assistant message with the ids
//     of the chunks that grounded it, and auto-title a first exchange
//
// A failure or cancellation after step 2 leaves the user message and writes
// no assistant message. Partial replies are discarded.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/llm"
	"github.com/tbourn/go-rag-backend/internal/repo"
	"github.com/tbourn/go-rag-backend/internal/search"
)

// DefaultSystemPrompt is used when a session has no usable persona.
const DefaultSystemPrompt = `You are a helpful knowledge assistant. Answer questions based on the provided context.
If the context doesn't contain relevant information, say so honestly.
Always cite which sources you're drawing from when possible.`

const contextHeader = "Here is relevant context from the knowledge base:\n\n"

// Retriever ranks stored chunks against a query.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, floor float64) ([]search.Result, error)
}

// GeneratorRegistry resolves a provider id to a backend.
type GeneratorRegistry interface {
	Get(name string) (llm.Generator, error)
}

// EmitFunc receives each streamed fragment. Returning an error aborts the
// turn as a cancellation.
type EmitFunc func(token string) error

// ChatService coordinates chat turns.
type ChatService struct {
	DB         *gorm.DB
	Retriever  Retriever
	Generators GeneratorRegistry
	Metrics    PipelineMetrics

	ContextChunks int     // grounding chunks per turn (default 1)
	Threshold     float64 // similarity floor for grounding
	HistoryLimit  int     // prior messages replayed (default 4)
	TitleMaxLen   int     // auto-title length in runes (default 100)
}

// Send runs one turn for sessionID. It returns the persisted assistant
// message on success. Errors returned before emit was first called mean no
// fragment reached the caller.
func (s *ChatService) Send(ctx context.Context, sessionID, content string, emit EmitFunc) (*domain.ChatMessage, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	metrics := metricsOrNoop(s.Metrics)
	msg, err := s.send(ctx, span, sessionID, content, emit, metrics)
	switch {
	case err == nil:
		metrics.ChatTurn(OutcomeCompleted)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		metrics.ChatTurn(OutcomeCancelled)
		span.SetStatus(codes.Error, "cancelled")
	default:
		metrics.ChatTurn(OutcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return msg, err
}

func (s *ChatService) send(ctx context.Context, span trace.Span, sessionID, content string, emit EmitFunc, metrics PipelineMetrics) (*domain.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	sess, err := repo.GetSession(ctx, s.DB, sessionID)
	if err != nil {
		return nil, notFound(err, ErrSessionNotFound)
	}

	if _, err := repo.CreateMessage(ctx, s.DB, sess.ID, domain.RoleUser, content, nil); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	gen, err := s.Generators.Get(sess.LLMProvider)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, sess.LLMProvider)
	}
	span.SetAttributes(attribute.String("llm.provider", gen.Name()))

	grounding, err := s.Retriever.Search(ctx, content, s.contextChunks(), s.Threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieval: %w", ErrUpstream, err)
	}

	history, err := repo.RecentMessages(ctx, s.DB, sess.ID, s.historyLimit()+1)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(s.systemPrompt(ctx, sess), grounding, history)

	// Stop the producer as soon as this turn ends, whatever the reason.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	tokens, err := gen.GenerateStream(streamCtx, prompt)
	if err != nil {
		return nil, err
	}

	var reply strings.Builder
	for tok := range tokens {
		if tok.Err != nil {
			return nil, tok.Err
		}
		reply.WriteString(tok.Text)
		metrics.StreamedToken(gen.Name())
		if err := emit(tok.Text); err != nil {
			cancel()
			return nil, fmt.Errorf("%w: %v", context.Canceled, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunkIDs := make([]string, len(grounding))
	for i, g := range grounding {
		chunkIDs[i] = g.ChunkID
	}
	assistant, err := repo.CreateMessage(ctx, s.DB, sess.ID, domain.RoleAssistant, reply.String(), chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	s.finishSession(ctx, sess, content)

	log.Info().
		Str("session_id", sess.ID).
		Str("provider", gen.Name()).
		Int("chunks", len(grounding)).
		Dur("latency", time.Since(start)).
		Msg("chat turn completed")
	return assistant, nil
}

// finishSession auto-titles the session after its first completed exchange
// and bumps updated_at otherwise. User messages left by failed turns do not
// count. Failures are logged; the turn itself already succeeded.
func (s *ChatService) finishSession(ctx context.Context, sess *domain.ChatSession, content string) {
	if !sess.TitleCustomized && s.firstReply(ctx, sess.ID) {
		title := clipRunes(normalizeTitle(content), s.titleMaxLen())
		if title != "" {
			if err := repo.UpdateSessionTitle(ctx, s.DB, sess.ID, title, false); err != nil {
				log.Warn().Err(err).Str("session_id", sess.ID).Msg("auto-title session")
			}
			return
		}
	}
	if err := repo.TouchSession(ctx, s.DB, sess.ID); err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("touch session")
	}
}

// firstReply reports whether the session holds exactly one assistant
// message, the one just stored.
func (s *ChatService) firstReply(ctx context.Context, sessionID string) bool {
	n, err := repo.CountMessagesByRole(ctx, s.DB, sessionID, domain.RoleAssistant)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("count replies")
		return false
	}
	return n == 1
}

// systemPrompt resolves the session persona, then the default persona, then
// DefaultSystemPrompt.
func (s *ChatService) systemPrompt(ctx context.Context, sess *domain.ChatSession) string {
	if sess.PersonaID != nil {
		if p, err := repo.GetPersona(ctx, s.DB, *sess.PersonaID); err == nil && strings.TrimSpace(p.SystemPrompt) != "" {
			return p.SystemPrompt
		}
	}
	if p, err := repo.GetDefaultPersona(ctx, s.DB); err == nil && strings.TrimSpace(p.SystemPrompt) != "" {
		return p.SystemPrompt
	}
	return DefaultSystemPrompt
}

// BuildPrompt assembles the generator input: the system prompt, a context
// block when grounding is non-empty, then history oldest first. Roles other
// than user and assistant are dropped from history.
func BuildPrompt(system string, grounding []search.Result, history []domain.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(history)+2)
	out = append(out, llm.Message{Role: domain.RoleSystem, Content: system})

	if len(grounding) > 0 {
		parts := make([]string, len(grounding))
		for i, g := range grounding {
			parts[i] = fmt.Sprintf("--- Source: %s, Chunk %d (score: %s) ---\n%s",
				g.DocumentName, g.ChunkIndex, formatScore(g.Score), g.Content)
		}
		out = append(out, llm.Message{Role: domain.RoleSystem, Content: contextHeader + strings.Join(parts, "\n\n")})
	}

	for _, m := range history {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			continue
		}
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// formatScore prints a rounded score without trailing zeros.
func formatScore(f float64) string {
	s := fmt.Sprintf("%.4f", f)
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

func (s *ChatService) contextChunks() int {
	if s.ContextChunks <= 0 {
		return 1
	}
	return s.ContextChunks
}

func (s *ChatService) historyLimit() int {
	if s.HistoryLimit <= 0 {
		return 4
	}
	return s.HistoryLimit
}

func (s *ChatService) titleMaxLen() int {
	if s.TitleMaxLen <= 0 {
		return 100
	}
	return s.TitleMaxLen
}
