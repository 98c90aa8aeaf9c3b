package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloo-solutions/meetmind/internal/domain"
	"github.com/cloo-solutions/meetmind/internal/telemetry"
)

// IndexInput is one analyzed meeting to store in its owner's collection.
type IndexInput struct {
	UserID      string
	MeetingID   string
	Transcript  string
	Summary     string
	Decisions   []string
	ActionItems []string
	KeyPoints   []string
}

// IndexResult reports what Index stored.
type IndexResult struct {
	Collection string
	Fragments  int
}

// IndexService stores meeting fragments in per-user collections.
type IndexService struct {
	resolver *CollectionResolver
	store    VectorStore
	embedder Embedder
	splitter *TextSplitter
}

// NewIndexService creates a new IndexService instance
func NewIndexService(store VectorStore, embedder Embedder, resolver *CollectionResolver, splitter *TextSplitter) *IndexService {
	if resolver == nil {
		resolver = NewCollectionResolver(store)
	}
	if splitter == nil {
		splitter = NewTextSplitter(DefaultChunkConfig())
	}
	return &IndexService{
		resolver: resolver,
		store:    store,
		embedder: embedder,
		splitter: splitter,
	}
}

// Index embeds every fragment of the meeting in one batch and upserts them in
// one write. Indexing the same meeting again replaces all of its previous
// fragments once the new embeddings are ready.
func (s *IndexService) Index(ctx context.Context, in IndexInput) (*IndexResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexService.Index", telemetry.SpanAttributes{
		UserID:    in.UserID,
		MeetingID: in.MeetingID,
		Operation: "index",
	})
	defer span.End()

	name, err := CollectionName(in.UserID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.MeetingID) == "" {
		return nil, domain.ErrMissingMeetingID
	}

	fragments := s.buildFragments(in)
	if len(fragments) == 0 {
		log.Printf("indexer: meeting %s has no content to index", in.MeetingID)
		return &IndexResult{Collection: name}, nil
	}
	span.SetData("fragments", len(fragments))

	col, err := s.resolver.Resolve(ctx, in.UserID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingFailure, "failed to embed fragments", err)
	}
	if len(vectors) != len(fragments) {
		err := domain.NewDomainError(domain.ErrCodeEmbeddingFailure,
			fmt.Sprintf("embedding count mismatch: got %d, want %d", len(vectors), len(fragments)))
		span.SetError(err)
		return nil, err
	}
	for i := range fragments {
		fragments[i].Embedding = vectors[i]
	}

	// Clear the previous version so a shorter re-index leaves no stale fragments.
	if err := s.store.DeleteWhere(ctx, col, map[string]string{domain.MetadataMeetingID: in.MeetingID}); err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeVectorStore, "failed to clear previous meeting fragments", err)
	}

	if err := s.store.Upsert(ctx, col, fragments); err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeVectorStore, "failed to store fragments", err)
	}

	log.Printf("indexer: stored %d fragments for meeting %s in collection %s", len(fragments), in.MeetingID, col.Name)
	return &IndexResult{Collection: col.Name, Fragments: len(fragments)}, nil
}

// buildFragments derives fragments in a stable order: transcript chunks,
// summary, decisions, action items, key points. Blank list items are skipped
// but keep their position in the id.
func (s *IndexService) buildFragments(in IndexInput) []domain.KnowledgeFragment {
	var fragments []domain.KnowledgeFragment

	for i, text := range s.splitter.Split(in.Transcript) {
		fragments = append(fragments, domain.NewKnowledgeFragment(in.UserID, in.MeetingID, domain.FragmentKindTranscript, i, text))
	}

	if summary := strings.TrimSpace(in.Summary); summary != "" {
		fragments = append(fragments, domain.NewKnowledgeFragment(in.UserID, in.MeetingID, domain.FragmentKindSummary, -1, summary))
	}

	lists := []struct {
		kind  domain.FragmentKind
		items []string
	}{
		{domain.FragmentKindDecision, in.Decisions},
		{domain.FragmentKindActionItem, in.ActionItems},
		{domain.FragmentKindKeyPoint, in.KeyPoints},
	}
	for _, list := range lists {
		for i, item := range list.items {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			fragments = append(fragments, domain.NewKnowledgeFragment(in.UserID, in.MeetingID, list.kind, i, item))
		}
	}

	return fragments
}

// DeleteMeeting removes every fragment of meetingID from the user's
// collection. A missing collection is a no-op.
func (s *IndexService) DeleteMeeting(ctx context.Context, userID, meetingID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IndexService.DeleteMeeting", telemetry.SpanAttributes{
		UserID:    userID,
		MeetingID: meetingID,
		Operation: "delete",
	})
	defer span.End()

	if strings.TrimSpace(meetingID) == "" {
		return domain.ErrMissingMeetingID
	}

	col, err := s.resolver.Lookup(ctx, userID)
	if err != nil {
		span.SetError(err)
		return err
	}
	if col == nil {
		return nil
	}

	if err := s.store.DeleteWhere(ctx, col, map[string]string{domain.MetadataMeetingID: meetingID}); err != nil {
		span.SetError(err)
		return domain.NewDomainErrorWithCause(domain.ErrCodeVectorStore, "failed to delete meeting fragments", err)
	}

	log.Printf("indexer: deleted meeting %s from collection %s", meetingID, col.Name)
	return nil
}
