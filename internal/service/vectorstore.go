package service

import (
	"context"
	"errors"
	"net"

	"github.com/cloo-solutions/meetmind/internal/domain"
)

// VectorStore is the remote store holding per-user fragment collections.
// GetCollection returns nil, nil when the collection does not exist.
type VectorStore interface {
	GetCollection(ctx context.Context, name string) (*domain.Collection, error)
	CreateCollection(ctx context.Context, name string) (*domain.Collection, error)
	Upsert(ctx context.Context, collection *domain.Collection, fragments []domain.KnowledgeFragment) error
	Query(ctx context.Context, collection *domain.Collection, embedding []float32, topK int) ([]domain.RetrievedMatch, error)
	DeleteWhere(ctx context.Context, collection *domain.Collection, where map[string]string) error
}

// Embedder computes embeddings for documents and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// IsTransient reports whether err is a transport-level failure worth retrying.
// Errors can opt in by implementing Transient() bool.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
