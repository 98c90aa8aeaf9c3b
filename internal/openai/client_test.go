package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOpenAIAPI is a mock for the OpenAI embeddings API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func vector(dims int, seed float32) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = seed + float32(i)*0.001
	}
	return v
}

func TestClient_EmbedDocuments_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	texts := []string{"We decided to ship on Friday.", "Alice owns the rollout."}
	expected := [][]float32{vector(1536, 0.1), vector(1536, 0.2)}
	mockAPI.On("CreateEmbeddings", mock.Anything, texts).Return(expected, nil).Once()

	vectors, err := client.EmbedDocuments(context.Background(), texts)

	require.NoError(t, err)
	assert.Equal(t, expected, vectors)
	mockAPI.AssertExpectations(t)
}

func TestClient_EmbedDocuments_Empty(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	vectors, err := client.EmbedDocuments(context.Background(), nil)

	assert.NoError(t, err)
	assert.Nil(t, vectors)
	mockAPI.AssertNotCalled(t, "CreateEmbeddings", mock.Anything, mock.Anything)
}

func TestClient_EmbedDocuments_EmptyText(t *testing.T) {
	client := NewClient("")

	_, err := client.EmbedDocuments(context.Background(), []string{"ok", ""})

	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_EmbedDocuments_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}
	apiErr := errors.New("API rate limit exceeded")

	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"text"}).Return(nil, apiErr)

	vectors, err := client.EmbedDocuments(context.Background(), []string{"text"})

	assert.Nil(t, vectors)
	assert.ErrorIs(t, err, apiErr)
	assert.Contains(t, err.Error(), "failed to create embeddings")
}

func TestClient_EmbedDocuments_CountMismatch(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"a", "b"}).Return([][]float32{vector(1536, 0)}, nil)

	_, err := client.EmbedDocuments(context.Background(), []string{"a", "b"})

	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestClient_EmbedQuery_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}
	expected := vector(1536, 0.5)

	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"what did we decide?"}).Return([][]float32{expected}, nil)

	v, err := client.EmbedQuery(context.Background(), "what did we decide?")

	require.NoError(t, err)
	assert.Equal(t, expected, v)
}

func TestClient_EmbedQuery_EmptyText(t *testing.T) {
	client := NewClient("")

	v, err := client.EmbedQuery(context.Background(), "")

	assert.Nil(t, v)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_EmbedQuery_WrongDimensions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"Test text"}).Return([][]float32{make([]float32, 512)}, nil)

	v, err := client.EmbedQuery(context.Background(), "Test text")

	assert.Nil(t, v)
	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key")

	assert.NotNil(t, client)
	assert.NotNil(t, client.api)
	assert.Equal(t, DefaultEmbeddingDimensions, client.dimensions)
}

func TestNewClientFromEnv_NoAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	client, err := NewClientFromEnv()

	assert.Nil(t, client)
	assert.Equal(t, ErrNoAPIKey, err)
}

func TestNewClientFromEnv_WithAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-api-key")

	client, err := NewClientFromEnv()

	assert.NotNil(t, client)
	assert.NoError(t, err)
}
