package service

import (
	"context"
	"errors"
	"strings"

	"github.com/cloo-solutions/meetmind/internal/domain"
	"github.com/cloo-solutions/meetmind/internal/retry"
)

// MaxCollectionNameLength caps sanitized collection names.
const MaxCollectionNameLength = 100

var errNoCollection = errors.New("vector store returned no collection")

// CollectionName derives the collection name of userID by keeping only
// [A-Za-z0-9_-] and truncating to MaxCollectionNameLength.
func CollectionName(userID string) (string, error) {
	var b strings.Builder
	for _, r := range userID {
		if b.Len() == MaxCollectionNameLength {
			break
		}
		if r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", domain.ErrInvalidUserID
	}
	return b.String(), nil
}

// CollectionResolver maps users to their vector store collection.
type CollectionResolver struct {
	store  VectorStore
	policy retry.Policy
}

// NewCollectionResolver creates a resolver retrying transient failures
// 3 times with 2s base delay capped at 10s.
func NewCollectionResolver(store VectorStore) *CollectionResolver {
	policy := retry.DefaultPolicy(IsTransient)
	policy.Name = "collection"
	return NewCollectionResolverWithPolicy(store, policy)
}

// NewCollectionResolverWithPolicy creates a resolver with a custom retry policy (for testing)
func NewCollectionResolverWithPolicy(store VectorStore, policy retry.Policy) *CollectionResolver {
	return &CollectionResolver{
		store:  store,
		policy: policy,
	}
}

// Resolve returns the collection of userID, creating it when missing.
func (r *CollectionResolver) Resolve(ctx context.Context, userID string) (*domain.Collection, error) {
	name, err := CollectionName(userID)
	if err != nil {
		return nil, err
	}

	var col *domain.Collection
	err = r.policy.Do(ctx, func(ctx context.Context) error {
		found, err := r.store.GetCollection(ctx, name)
		if err != nil {
			return err
		}
		if found == nil {
			found, err = r.store.CreateCollection(ctx, name)
			if err != nil {
				return err
			}
			if found == nil {
				return errNoCollection
			}
		}
		col = found
		return nil
	})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeCollection, "failed to resolve collection "+name, err)
	}
	return col, nil
}

// Lookup returns the collection of userID without creating it. A missing
// collection yields nil, nil. Unlike Resolve it makes a single attempt, and a
// store failure is returned as COLLECTION_ERROR.
func (r *CollectionResolver) Lookup(ctx context.Context, userID string) (*domain.Collection, error) {
	name, err := CollectionName(userID)
	if err != nil {
		return nil, err
	}

	col, err := r.store.GetCollection(ctx, name)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeCollection, "failed to look up collection "+name, err)
	}
	return col, nil
}
