package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/meetmind/internal/domain"
)

func newTestRetrievalService(store VectorStore, embedder Embedder, gen AnswerGenerator) *RetrievalService {
	return NewRetrievalService(store, embedder, NewCollectionResolverWithPolicy(store, fastPolicy()), gen)
}

func match(id, kind, meetingID, content string, distance float64) domain.RetrievedMatch {
	return domain.RetrievedMatch{
		ID:      id,
		Content: content,
		Metadata: map[string]string{
			domain.MetadataType:      kind,
			domain.MetadataMeetingID: meetingID,
		},
		Distance: distance,
	}
}

func TestRetrievalService_SearchScenario(t *testing.T) {
	store := newMemoryStore()
	embedder := &tableEmbedder{vectors: map[string][]float32{
		"The team reviewed Q3 results.": {0.6, 0.8, 0},
		"We decided to launch in May.":  {1, 0, 0},
		"what did we decide?":           {1, 0, 0},
	}}
	ctx := context.Background()

	_, err := newTestIndexService(store, embedder).Index(ctx, IndexInput{
		UserID:    "alice",
		MeetingID: "m1",
		Summary:   "The team reviewed Q3 results.",
		Decisions: []string{"We decided to launch in May."},
	})
	require.NoError(t, err)

	svc := newTestRetrievalService(store, embedder, nil)
	matches, err := svc.Search(ctx, "alice", "what did we decide?", 5)

	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "m1_decision_0", matches[0].ID)
	assert.Equal(t, "m1_summary", matches[1].ID)
	assert.InDelta(t, 1.0, matches[0].Relevance(), 1e-6)
	assert.InDelta(t, 0.4, matches[1].Distance, 1e-6)
	assert.InDelta(t, 0.6, matches[1].Relevance(), 1e-6)
	assert.Equal(t, []string{"m1"}, Sources(matches))
}

func TestRetrievalService_Isolation(t *testing.T) {
	store := newMemoryStore()
	embedder := &tableEmbedder{}
	indexer := newTestIndexService(store, embedder)
	ctx := context.Background()

	_, err := indexer.Index(ctx, IndexInput{UserID: "alice", MeetingID: "a1", Summary: "Budget review."})
	require.NoError(t, err)
	_, err = indexer.Index(ctx, IndexInput{UserID: "bob", MeetingID: "b1", Summary: "Budget review."})
	require.NoError(t, err)

	matches, err := newTestRetrievalService(store, embedder, nil).Search(ctx, "alice", "Budget review.", 10)

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a1", matches[0].MeetingID())
	assert.Equal(t, "alice", matches[0].Metadata[domain.MetadataUserID])
}

func TestRetrievalService_SearchNoCollection(t *testing.T) {
	store := new(MockVectorStore)
	embedder := new(MockEmbedder)
	store.On("GetCollection", mock.Anything, "newbie").Return(nil, nil)

	matches, err := newTestRetrievalService(store, embedder, nil).Search(context.Background(), "newbie", "anything?", 5)

	require.NoError(t, err)
	assert.Empty(t, matches)
	embedder.AssertNotCalled(t, "EmbedQuery", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "CreateCollection", mock.Anything, mock.Anything)
}

func TestRetrievalService_SearchEmbeddingFailure(t *testing.T) {
	store := new(MockVectorStore)
	embedder := new(MockEmbedder)
	store.On("GetCollection", mock.Anything, "alice").Return(&domain.Collection{ID: "c1", Name: "alice"}, nil)
	embedder.On("EmbedQuery", mock.Anything, "status?").Return(nil, errors.New("401"))

	_, err := newTestRetrievalService(store, embedder, nil).Search(context.Background(), "alice", "status?", 5)

	assert.Equal(t, domain.ErrCodeEmbeddingFailure, domain.CodeOf(err))
	store.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetrievalService_SearchLookupFailureSurfaces(t *testing.T) {
	store := new(MockVectorStore)
	embedder := new(MockEmbedder)
	store.On("GetCollection", mock.Anything, "alice").Return(nil, errors.New("connection refused"))

	matches, err := newTestRetrievalService(store, embedder, nil).Search(context.Background(), "alice", "status?", 5)

	assert.Nil(t, matches)
	assert.Equal(t, domain.ErrCodeCollection, domain.CodeOf(err))
	store.AssertNumberOfCalls(t, "GetCollection", 1)
	embedder.AssertNotCalled(t, "EmbedQuery", mock.Anything, mock.Anything)
}

func TestRetrievalService_SearchQueryFailureDegrades(t *testing.T) {
	store := new(MockVectorStore)
	embedder := new(MockEmbedder)
	col := &domain.Collection{ID: "c1", Name: "alice"}
	store.On("GetCollection", mock.Anything, "alice").Return(col, nil)
	embedder.On("EmbedQuery", mock.Anything, "status?").Return([]float32{1, 0}, nil)
	store.On("Query", mock.Anything, col, []float32{1, 0}, 5).Return(nil, errors.New("503"))

	matches, err := newTestRetrievalService(store, embedder, nil).Search(context.Background(), "alice", "status?", 5)

	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRetrievalService_SearchTopKBounds(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, DefaultTopK},
		{-3, DefaultTopK},
		{7, 7},
		{50, MaxTopK},
	}

	for _, tt := range tests {
		store := new(MockVectorStore)
		embedder := new(MockEmbedder)
		col := &domain.Collection{ID: "c1", Name: "alice"}
		store.On("GetCollection", mock.Anything, "alice").Return(col, nil)
		embedder.On("EmbedQuery", mock.Anything, "q").Return([]float32{1}, nil)
		store.On("Query", mock.Anything, col, []float32{1}, tt.want).Return([]domain.RetrievedMatch{}, nil)

		_, err := newTestRetrievalService(store, embedder, nil).Search(context.Background(), "alice", "q", tt.in)

		require.NoError(t, err)
		store.AssertExpectations(t)
	}
}

func TestRetrievalService_SearchValidation(t *testing.T) {
	store := new(MockVectorStore)
	svc := newTestRetrievalService(store, new(MockEmbedder), nil)

	_, err := svc.Search(context.Background(), "", "q", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)

	_, err = svc.Search(context.Background(), "alice", "   ", 5)
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)

	store.AssertNotCalled(t, "GetCollection", mock.Anything, mock.Anything)
}

func TestRetrievalService_ComposeAnswerNoMatches(t *testing.T) {
	gen := new(MockAnswerGenerator)

	answer, err := newTestRetrievalService(new(MockVectorStore), new(MockEmbedder), gen).
		ComposeAnswer(context.Background(), nil, "anything?")

	require.NoError(t, err)
	assert.Equal(t, NoDataAnswer, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Empty(t, answer.Snippets)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetrievalService_ComposeAnswer(t *testing.T) {
	long := strings.Repeat("x", 250)
	matches := []domain.RetrievedMatch{
		match("m2_decision_0", "decision", "m2", "Launch in May.", 0.1),
		match("m1_summary", "summary", "m1", long, 0.2),
		match("m2_key_point_1", "key_point", "m2", "Budget is fixed.", 0.3),
		match("m1_transcript_4", "transcript", "m1", "fourth", 0.4),
	}
	gen := new(MockAnswerGenerator)
	gen.On("Generate", mock.Anything, groundingPrompt, mock.MatchedBy(func(user string) bool {
		return strings.HasPrefix(user, "Context from meetings:\n[decision] Launch in May.\n\n[summary] ") &&
			strings.HasSuffix(user, "\n\nQuestion: when do we launch?")
	})).Return(" In May (decision). ", nil)

	answer, err := newTestRetrievalService(new(MockVectorStore), new(MockEmbedder), gen).
		ComposeAnswer(context.Background(), matches, " when do we launch? ")

	require.NoError(t, err)
	assert.Equal(t, "In May (decision).", answer.Text)
	assert.Equal(t, []string{"m1", "m2"}, answer.Sources)
	require.Len(t, answer.Snippets, SnippetCount)
	assert.Equal(t, "decision", answer.Snippets[0].Kind)
	assert.Equal(t, "m2", answer.Snippets[0].MeetingID)
	assert.Equal(t, "Launch in May.", answer.Snippets[0].Text)
	assert.InDelta(t, 0.9, answer.Snippets[0].Relevance, 1e-9)
	assert.Equal(t, strings.Repeat("x", 200)+"...", answer.Snippets[1].Text)
	assert.Equal(t, "key_point", answer.Snippets[2].Kind)
}

func TestRetrievalService_ComposeAnswerGeneratorFailure(t *testing.T) {
	gen := new(MockAnswerGenerator)
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("timeout"))

	_, err := newTestRetrievalService(new(MockVectorStore), new(MockEmbedder), gen).
		ComposeAnswer(context.Background(), []domain.RetrievedMatch{match("m1_summary", "summary", "m1", "s", 0.1)}, "q")

	assert.Equal(t, domain.ErrCodeInternalError, domain.CodeOf(err))
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestRetrievalService_Ask(t *testing.T) {
	store := newMemoryStore()
	embedder := &tableEmbedder{}
	ctx := context.Background()
	_, err := newTestIndexService(store, embedder).Index(ctx, IndexInput{UserID: "alice", MeetingID: "m9", Summary: "Hiring plan."})
	require.NoError(t, err)

	gen := new(MockAnswerGenerator)
	gen.On("Generate", mock.Anything, groundingPrompt, mock.Anything).Return("Two hires.", nil)

	answer, err := newTestRetrievalService(store, embedder, gen).Ask(ctx, "alice", "hiring?", 0)

	require.NoError(t, err)
	assert.Equal(t, "Two hires.", answer.Text)
	assert.Equal(t, []string{"m9"}, answer.Sources)
}

func TestBuildContext(t *testing.T) {
	matches := []domain.RetrievedMatch{
		match("a", "summary", "m1", "Alpha", 0),
		{ID: "b", Content: "Beta", Metadata: map[string]string{}},
	}

	assert.Equal(t, "[summary] Alpha\n\n[unknown] Beta", BuildContext(matches))
}

func TestSnippets_TruncatesByRune(t *testing.T) {
	text := strings.Repeat("é", 201)

	snippets := Snippets([]domain.RetrievedMatch{match("a", "transcript", "m1", text, 0.5)})

	require.Len(t, snippets, 1)
	assert.Equal(t, strings.Repeat("é", 200)+"...", snippets[0].Text)
	assert.Equal(t, 0.5, snippets[0].Relevance)
}
