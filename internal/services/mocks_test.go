package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vamo-app/backend/internal/ai"
)

// MockAI stands in for the Gemini client in service tests.
type MockAI struct {
	mock.Mock
}

func (m *MockAI) BuilderReply(ctx context.Context, projectContext, userMessage string, history []ai.ChatTurn) (*ai.BuilderResult, error) {
	args := m.Called(ctx, projectContext, userMessage, history)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ai.BuilderResult), args.Error(1)
}

func (m *MockAI) ValuationOffer(ctx context.Context, projectName, description, activitySummary string) (*ai.Valuation, error) {
	args := m.Called(ctx, projectName, description, activitySummary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ai.Valuation), args.Error(1)
}

func (m *MockAI) ListingDescription(ctx context.Context, req ai.DescriptionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
