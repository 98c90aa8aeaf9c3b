package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/meetmind/internal/domain"
	"github.com/cloo-solutions/meetmind/internal/retry"
)

// MockVectorStore is a mock implementation of VectorStore
type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) GetCollection(ctx context.Context, name string) (*domain.Collection, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Collection), args.Error(1)
}

func (m *MockVectorStore) CreateCollection(ctx context.Context, name string) (*domain.Collection, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Collection), args.Error(1)
}

func (m *MockVectorStore) Upsert(ctx context.Context, collection *domain.Collection, fragments []domain.KnowledgeFragment) error {
	args := m.Called(ctx, collection, fragments)
	return args.Error(0)
}

func (m *MockVectorStore) Query(ctx context.Context, collection *domain.Collection, embedding []float32, topK int) ([]domain.RetrievedMatch, error) {
	args := m.Called(ctx, collection, embedding, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievedMatch), args.Error(1)
}

func (m *MockVectorStore) DeleteWhere(ctx context.Context, collection *domain.Collection, where map[string]string) error {
	args := m.Called(ctx, collection, where)
	return args.Error(0)
}

// MockEmbedder is a mock implementation of Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockAnswerGenerator is a mock implementation of AnswerGenerator
type MockAnswerGenerator struct {
	mock.Mock
}

func (m *MockAnswerGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}

type transientErr struct{ msg string }

func (e transientErr) Error() string   { return e.msg }
func (e transientErr) Transient() bool { return true }

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Retryable:   IsTransient,
		Name:        "test",
	}
}

// memoryStore is an in-memory VectorStore ranking by 1 - dot product.
type memoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]domain.KnowledgeFragment
}

func newMemoryStore() *memoryStore {
	return &memoryStore{collections: make(map[string]map[string]domain.KnowledgeFragment)}
}

func (s *memoryStore) GetCollection(_ context.Context, name string) (*domain.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return nil, nil
	}
	return &domain.Collection{ID: "col-" + name, Name: name}, nil
}

func (s *memoryStore) CreateCollection(_ context.Context, name string) (*domain.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = make(map[string]domain.KnowledgeFragment)
	}
	return &domain.Collection{ID: "col-" + name, Name: name}, nil
}

func (s *memoryStore) Upsert(_ context.Context, col *domain.Collection, fragments []domain.KnowledgeFragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	frags, ok := s.collections[col.Name]
	if !ok {
		return fmt.Errorf("collection %s does not exist", col.Name)
	}
	for _, f := range fragments {
		frags[f.ID] = f
	}
	return nil
}

func (s *memoryStore) Query(_ context.Context, col *domain.Collection, embedding []float32, topK int) ([]domain.RetrievedMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []domain.RetrievedMatch
	for _, f := range s.collections[col.Name] {
		var dot float64
		for i := range embedding {
			if i < len(f.Embedding) {
				dot += float64(embedding[i]) * float64(f.Embedding[i])
			}
		}
		matches = append(matches, domain.RetrievedMatch{
			ID:       f.ID,
			Content:  f.Text,
			Metadata: f.Metadata(),
			Distance: 1 - dot,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance == matches[j].Distance {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *memoryStore) DeleteWhere(_ context.Context, col *domain.Collection, where map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.collections[col.Name] {
		meta := f.Metadata()
		match := true
		for k, v := range where {
			if meta[k] != v {
				match = false
			}
		}
		if match {
			delete(s.collections[col.Name], id)
		}
	}
	return nil
}

func (s *memoryStore) fragments(name string) map[string]domain.KnowledgeFragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.KnowledgeFragment, len(s.collections[name]))
	for id, f := range s.collections[name] {
		out[id] = f
	}
	return out
}

// tableEmbedder returns fixed vectors per text, [1 0 0] otherwise.
type tableEmbedder struct {
	vectors map[string][]float32
}

func (e *tableEmbedder) vector(text string) []float32 {
	if v, ok := e.vectors[text]; ok {
		return v
	}
	return []float32{1, 0, 0}
}

func (e *tableEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *tableEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

// fakeDecoder writes chunk files of a configurable size instead of running ffmpeg.
type fakeDecoder struct {
	mu          sync.Mutex
	duration    float64
	durationErr error
	chunkSize   int
	oversizedAt int
	failAt      int
	unavailable bool
	extracted   []Window
}

func newFakeDecoder(duration float64) *fakeDecoder {
	return &fakeDecoder{duration: duration, chunkSize: 16, oversizedAt: -1, failAt: -1}
}

func (d *fakeDecoder) Duration(context.Context, string) (float64, error) {
	if d.durationErr != nil {
		return 0, d.durationErr
	}
	return d.duration, nil
}

func (d *fakeDecoder) ExtractRange(_ context.Context, _ string, startSec, durationSec float64, dst string) error {
	d.mu.Lock()
	call := len(d.extracted)
	d.extracted = append(d.extracted, Window{Index: call, StartSec: startSec, DurationSec: durationSec})
	d.mu.Unlock()

	if call == d.failAt {
		_ = os.WriteFile(dst, []byte("partial"), 0o600)
		return errors.New("ffmpeg exited with status 1")
	}
	size := d.chunkSize
	if call == d.oversizedAt {
		size = 1024
	}
	return os.WriteFile(dst, make([]byte, size), 0o600)
}

func (d *fakeDecoder) Available(context.Context) bool {
	return !d.unavailable
}

func (d *fakeDecoder) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.extracted)
}

// fakeSTT returns canned text per path and tracks concurrency.
type fakeSTT struct {
	mu       sync.Mutex
	texts    map[string]string
	errs     map[string]error
	delays   map[string]time.Duration
	paths    []string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeSTT) Transcribe(ctx context.Context, path, language string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.paths = append(f.paths, path)
	delay := f.delays[path]
	err := f.errs[path]
	text, ok := f.texts[path]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "text of " + path, nil
	}
	return text, nil
}

func (f *fakeSTT) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}
