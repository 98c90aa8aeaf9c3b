package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/cloo-solutions/meetmind/internal/domain"
	"github.com/cloo-solutions/meetmind/internal/telemetry"
)

const (
	DefaultTopK = 5
	MaxTopK     = 20

	// SnippetCount is how many matches are shown to the user.
	SnippetCount = 3
	// SnippetLength is the display length of a snippet in runes.
	SnippetLength = 200

	// NoDataAnswer is returned without calling the model when nothing matched.
	NoDataAnswer = "I don't have any meeting data to answer this question. Please upload some meetings first."
)

const groundingPrompt = `You are a meeting assistant that answers questions ONLY using the provided meeting context.

Rules:
- Answer ONLY based on the context provided
- If the context doesn't contain the answer, say "I don't have information about that in your meetings"
- Be concise and specific
- Cite the type of information you're using (transcript, decision, action item, summary, key point)
- Do not make assumptions or add information not in the context`

// AnswerGenerator produces free text from a system and a user prompt.
type AnswerGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Snippet is a display excerpt of one match.
type Snippet struct {
	Kind      string  `json:"type"`
	MeetingID string  `json:"meeting_id"`
	Text      string  `json:"snippet"`
	Relevance float64 `json:"relevance_score"`
}

// Answer is a grounded reply with its attribution.
type Answer struct {
	Text     string    `json:"answer"`
	Sources  []string  `json:"sources"`
	Snippets []Snippet `json:"context_used"`
}

// RetrievalService answers questions from a single user's collection.
type RetrievalService struct {
	resolver  *CollectionResolver
	store     VectorStore
	embedder  Embedder
	generator AnswerGenerator
}

// NewRetrievalService creates a new RetrievalService instance. generator may
// be nil when only Search is used.
func NewRetrievalService(store VectorStore, embedder Embedder, resolver *CollectionResolver, generator AnswerGenerator) *RetrievalService {
	if resolver == nil {
		resolver = NewCollectionResolver(store)
	}
	return &RetrievalService{
		resolver:  resolver,
		store:     store,
		embedder:  embedder,
		generator: generator,
	}
}

// ClampTopK maps topK into [1, MaxTopK], using DefaultTopK for non-positive values.
func ClampTopK(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// Search returns the topK fragments of userID's collection nearest to query,
// in store order. A user without a collection gets no matches.
//
// A failed collection lookup is surfaced as COLLECTION_ERROR without retry,
// and a failed embedding as EMBEDDING_FAILURE. A failed store query degrades
// to no matches after being logged and captured.
func (s *RetrievalService) Search(ctx context.Context, userID, query string, topK int) ([]domain.RetrievedMatch, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Search", telemetry.SpanAttributes{
		UserID:    userID,
		Operation: "search",
	})
	defer span.End()

	if _, err := CollectionName(userID); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	topK = ClampTopK(topK)

	col, err := s.resolver.Lookup(ctx, userID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if col == nil {
		return []domain.RetrievedMatch{}, nil
	}

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingFailure, "failed to embed query", err)
	}

	matches, err := s.store.Query(ctx, col, embedding, topK)
	if err != nil {
		log.Printf("retrieval: query on collection %s failed, returning no results: %v", col.Name, err)
		telemetry.CaptureError(ctx, err)
		return []domain.RetrievedMatch{}, nil
	}

	span.SetData("matches", len(matches))
	return matches, nil
}

// Ask searches userID's collection and composes a grounded answer.
func (s *RetrievalService) Ask(ctx context.Context, userID, query string, topK int) (*Answer, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Ask", telemetry.SpanAttributes{
		UserID:    userID,
		Operation: "ask",
	})
	defer span.End()

	matches, err := s.Search(ctx, userID, query, topK)
	if err != nil {
		return nil, err
	}
	answer, err := s.ComposeAnswer(ctx, matches, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return answer, nil
}

// ComposeAnswer asks the generator to answer query from matches only.
func (s *RetrievalService) ComposeAnswer(ctx context.Context, matches []domain.RetrievedMatch, query string) (*Answer, error) {
	if len(matches) == 0 {
		return &Answer{
			Text:     NoDataAnswer,
			Sources:  []string{},
			Snippets: []Snippet{},
		}, nil
	}
	if s.generator == nil {
		return nil, domain.NewDomainError(domain.ErrCodeInternalError, "answer generation is not configured")
	}

	user := fmt.Sprintf("Context from meetings:\n%s\n\nQuestion: %s", BuildContext(matches), strings.TrimSpace(query))
	text, err := s.generator.Generate(ctx, groundingPrompt, user)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate answer", err)
	}

	return &Answer{
		Text:     strings.TrimSpace(text),
		Sources:  Sources(matches),
		Snippets: Snippets(matches),
	}, nil
}

// BuildContext renders matches as "[kind] content" blocks separated by blank lines.
func BuildContext(matches []domain.RetrievedMatch) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = fmt.Sprintf("[%s] %s", m.Kind(), m.Content)
	}
	return strings.Join(parts, "\n\n")
}

// Sources returns the distinct meeting ids of matches, sorted.
func Sources(matches []domain.RetrievedMatch) []string {
	seen := make(map[string]struct{}, len(matches))
	sources := make([]string, 0, len(matches))
	for _, m := range matches {
		id := m.MeetingID()
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sources = append(sources, id)
	}
	sort.Strings(sources)
	return sources
}

// Snippets returns display excerpts of the first SnippetCount matches.
func Snippets(matches []domain.RetrievedMatch) []Snippet {
	n := min(len(matches), SnippetCount)
	snippets := make([]Snippet, n)
	for i, m := range matches[:n] {
		snippets[i] = Snippet{
			Kind:      m.Kind(),
			MeetingID: m.MeetingID(),
			Text:      truncate(m.Content, SnippetLength),
			Relevance: m.Relevance(),
		}
	}
	return snippets
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
