// Package services – SessionService
//
// SessionService manages the lifecycle of chat sessions. It validates the
// generator backend and persona a session is bound to, normalizes titles and
// records whether a title was chosen by the caller (customized sessions are
// never auto-titled by ChatService).
package services

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/repo"
)

// ScopeSessionCreate namespaces idempotency keys of session creation.
const ScopeSessionCreate = "sessions.create"

// ProviderSet reports which generator backends exist.
type ProviderSet interface {
	Has(name string) bool
}

// CreateSessionInput carries the optional fields of a new session.
type CreateSessionInput struct {
	Title       string
	PersonaID   *string
	LLMProvider string
}

// SessionService provides session-level operations.
type SessionService struct {
	DB              *gorm.DB
	Providers       ProviderSet
	DefaultProvider string
	TitleMaxLen     int
	IdempotencyTTL  time.Duration
}

// Create inserts a session. An empty title becomes "New Chat" and stays
// eligible for auto-titling; an empty provider becomes DefaultProvider.
func (s *SessionService) Create(ctx context.Context, in CreateSessionInput, idemKey string) (*domain.ChatSession, bool, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("llm.provider", in.LLMProvider)),
	)
	defer span.End()

	if idemKey != "" {
		if rec, err := repo.GetIdempotency(ctx, s.DB, ScopeSessionCreate, idemKey, time.Now().UTC()); err == nil {
			if ids, err := rec.IDs(); err == nil && len(ids) == 1 {
				if prev, err := repo.GetSession(ctx, s.DB, ids[0]); err == nil {
					return prev, true, nil
				}
			}
		}
	}

	provider := strings.TrimSpace(in.LLMProvider)
	if provider == "" {
		provider = s.DefaultProvider
	}
	if s.Providers != nil && !s.Providers.Has(provider) {
		return nil, false, ErrUnknownProvider
	}

	var personaID *string
	if in.PersonaID != nil && strings.TrimSpace(*in.PersonaID) != "" {
		id := strings.TrimSpace(*in.PersonaID)
		if _, err := repo.GetPersona(ctx, s.DB, id); err != nil {
			return nil, false, notFound(err, ErrPersonaNotFound)
		}
		personaID = &id
	}

	title := s.clip(normalizeTitle(in.Title))
	customized := title != "" && title != domain.DefaultSessionTitle
	if title == "" {
		title = domain.DefaultSessionTitle
	}

	sess, err := repo.CreateSession(ctx, s.DB, title, customized, personaID, provider)
	if err != nil {
		return nil, false, err
	}

	if idemKey != "" {
		if _, err := repo.CreateIdempotency(ctx, s.DB, ScopeSessionCreate, idemKey, []string{sess.ID}, http.StatusCreated, s.ttl()); err != nil {
			log.Warn().Err(err).Str("idempotency_key", idemKey).Msg("store idempotency record")
		}
	}
	return sess, false, nil
}

// ListPage returns sessions newest first with the total count.
func (s *SessionService) ListPage(ctx context.Context, offset, limit int) ([]domain.ChatSession, int64, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(attribute.Int("offset", offset), attribute.Int("limit", limit)),
	)
	defer span.End()

	offset, limit = window(offset, limit)
	total, err := repo.CountSessions(ctx, s.DB)
	if err != nil || total == 0 {
		return []domain.ChatSession{}, total, err
	}
	items, err := repo.ListSessionsPage(ctx, s.DB, offset, limit)
	return items, total, err
}

// Stats returns the session count and the latest update time, for ETags.
func (s *SessionService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return repo.SessionsStats(ctx, s.DB)
}

// Get returns a session with its messages in conversation order.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.ChatSession, []domain.ChatMessage, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	sess, err := repo.GetSession(ctx, s.DB, id)
	if err != nil {
		return nil, nil, notFound(err, ErrSessionNotFound)
	}
	msgs, err := repo.ListMessages(ctx, s.DB, id, 0)
	if err != nil {
		return nil, nil, err
	}
	return sess, msgs, nil
}

// Rename sets a caller-chosen title. Blank titles fall back to "New Chat",
// which makes the session eligible for auto-titling again.
func (s *SessionService) Rename(ctx context.Context, id, title string) (*domain.ChatSession, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Rename", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	title = s.clip(normalizeTitle(title))
	customized := title != ""
	if title == "" {
		title = domain.DefaultSessionTitle
	}
	if err := repo.UpdateSessionTitle(ctx, s.DB, id, title, customized); err != nil {
		return nil, notFound(err, ErrSessionNotFound)
	}
	sess, err := repo.GetSession(ctx, s.DB, id)
	if err != nil {
		return nil, notFound(err, ErrSessionNotFound)
	}
	return sess, nil
}

// Delete removes a session and, by cascade, its messages.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	if err := repo.DeleteSession(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

func (s *SessionService) ttl() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return s.IdempotencyTTL
}

// clip truncates a title to the configured maximum rune length.
func (s *SessionService) clip(title string) string {
	return clipRunes(title, s.TitleMaxLen)
}

func clipRunes(s string, limit int) string {
	if limit > 0 && utf8.RuneCountInString(s) > limit {
		return strings.TrimSpace(string([]rune(s)[:limit]))
	}
	return s
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
