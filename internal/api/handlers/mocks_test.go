package handlers

import (
	"context"

	"github.com/cloo-solutions/meetmind/internal/domain"
	"github.com/cloo-solutions/meetmind/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockTranscriptionService struct {
	mock.Mock
}

func (m *MockTranscriptionService) TranscribeAudio(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

type MockAudioSource struct {
	mock.Mock
}

func (m *MockAudioSource) Download(ctx context.Context, location, dir string) (string, error) {
	args := m.Called(ctx, location, dir)
	return args.String(0), args.Error(1)
}

type MockIndexService struct {
	mock.Mock
}

func (m *MockIndexService) Index(ctx context.Context, in service.IndexInput) (*service.IndexResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IndexResult), args.Error(1)
}

func (m *MockIndexService) DeleteMeeting(ctx context.Context, userID, meetingID string) error {
	args := m.Called(ctx, userID, meetingID)
	return args.Error(0)
}

type MockRetrievalService struct {
	mock.Mock
}

func (m *MockRetrievalService) Search(ctx context.Context, userID, query string, topK int) ([]domain.RetrievedMatch, error) {
	args := m.Called(ctx, userID, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievedMatch), args.Error(1)
}

func (m *MockRetrievalService) Ask(ctx context.Context, userID, query string, topK int) (*service.Answer, error) {
	args := m.Called(ctx, userID, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Answer), args.Error(1)
}
