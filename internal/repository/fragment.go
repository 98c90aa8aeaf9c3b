package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/meetmind/internal/domain"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// FragmentStore keeps per-user fragment collections in Postgres with pgvector,
// ranked by cosine distance.
type FragmentStore struct {
	db dbtx
}

func NewFragmentStore(pool *pgxpool.Pool) *FragmentStore {
	return &FragmentStore{db: pool}
}

func NewFragmentStoreWithTx(tx dbtx) *FragmentStore {
	return &FragmentStore{db: tx}
}

// GetCollection returns the named collection, or nil when it does not exist.
func (s *FragmentStore) GetCollection(ctx context.Context, name string) (*domain.Collection, error) {
	var col domain.Collection
	err := s.db.QueryRow(ctx,
		`SELECT id::text, name FROM fragment_collections WHERE name = $1`, name,
	).Scan(&col.ID, &col.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &col, nil
}

// CreateCollection creates the named collection, returning the existing one
// when the name is taken.
func (s *FragmentStore) CreateCollection(ctx context.Context, name string) (*domain.Collection, error) {
	var col domain.Collection
	err := s.db.QueryRow(ctx,
		`INSERT INTO fragment_collections (id, name, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id::text, name`,
		uuid.NewString(), name, time.Now().UTC(),
	).Scan(&col.ID, &col.Name)
	if err != nil {
		return nil, err
	}
	return &col, nil
}

// Upsert writes all fragments in one batch.
func (s *FragmentStore) Upsert(ctx context.Context, col *domain.Collection, fragments []domain.KnowledgeFragment) error {
	if len(fragments) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, f := range fragments {
		batch.Queue(
			`INSERT INTO fragments (collection_id, id, content, metadata, embedding, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (collection_id, id) DO UPDATE SET
				content = EXCLUDED.content,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding,
				updated_at = EXCLUDED.updated_at`,
			col.ID, f.ID, f.Text, f.Metadata(), pgvector.NewVector(f.Embedding), now,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	for range fragments {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

// Query returns the topK fragments nearest to embedding, closest first.
func (s *FragmentStore) Query(ctx context.Context, col *domain.Collection, embedding []float32, topK int) ([]domain.RetrievedMatch, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, content, metadata, embedding <=> $2 AS distance
		 FROM fragments
		 WHERE collection_id = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		col.ID, pgvector.NewVector(embedding), topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := []domain.RetrievedMatch{}
	for rows.Next() {
		var m domain.RetrievedMatch
		if err := rows.Scan(&m.ID, &m.Content, &m.Metadata, &m.Distance); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteWhere removes the fragments whose metadata contains every pair in where.
func (s *FragmentStore) DeleteWhere(ctx context.Context, col *domain.Collection, where map[string]string) error {
	if len(where) == 0 {
		return errors.New("delete fragments: empty filter")
	}
	_, err := s.db.Exec(ctx,
		`DELETE FROM fragments WHERE collection_id = $1 AND metadata @> $2`,
		col.ID, where,
	)
	return err
}
