// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/formpilot/api/schemas"
)

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

// Generate provides a mock function for LLM calls.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// -- Quota Store Mock --

// MockQuotaStore mocks the schemas.QuotaStore interface.
type MockQuotaStore struct {
	mock.Mock
}

func (m *MockQuotaStore) Remaining(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

func (m *MockQuotaStore) Reserve(ctx context.Context, key string, n int) (schemas.Reservation, error) {
	args := m.Called(ctx, key, n)
	return args.Get(0).(schemas.Reservation), args.Error(1)
}

func (m *MockQuotaStore) Record(ctx context.Context, rec schemas.UsageRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockQuotaStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Browser Session Mock --

// MockBrowserSession mocks the schemas.BrowserSession interface. Use it where
// only call sequencing matters; tests that exercise selectors against real
// markup should use browsertest.Page instead.
type MockBrowserSession struct {
	mock.Mock
}

func (m *MockBrowserSession) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockBrowserSession) WaitFor(ctx context.Context, sel schemas.Selector, timeout time.Duration) error {
	args := m.Called(ctx, sel, timeout)
	return args.Error(0)
}

func (m *MockBrowserSession) Elements(ctx context.Context, sel schemas.Selector) ([]schemas.ElementInfo, error) {
	args := m.Called(ctx, sel)
	if els, ok := args.Get(0).([]schemas.ElementInfo); ok {
		return els, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBrowserSession) Click(ctx context.Context, sel schemas.Selector) error {
	args := m.Called(ctx, sel)
	return args.Error(0)
}

func (m *MockBrowserSession) ClickJS(ctx context.Context, sel schemas.Selector) error {
	args := m.Called(ctx, sel)
	return args.Error(0)
}

func (m *MockBrowserSession) ScrollIntoView(ctx context.Context, sel schemas.Selector) error {
	args := m.Called(ctx, sel)
	return args.Error(0)
}

func (m *MockBrowserSession) Clear(ctx context.Context, sel schemas.Selector) error {
	args := m.Called(ctx, sel)
	return args.Error(0)
}

func (m *MockBrowserSession) SendKeys(ctx context.Context, sel schemas.Selector, text string) error {
	args := m.Called(ctx, sel, text)
	return args.Error(0)
}

func (m *MockBrowserSession) SetValue(ctx context.Context, sel schemas.Selector, value string) error {
	args := m.Called(ctx, sel, value)
	return args.Error(0)
}

func (m *MockBrowserSession) OuterHTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserSession) Evaluate(ctx context.Context, script string, res any) error {
	args := m.Called(ctx, script, res)
	return args.Error(0)
}

// Close provides a mock function for releasing the session.
func (m *MockBrowserSession) Close() error {
	args := m.Called()
	return args.Error(0)
}
