package mocks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/formpilot/api/schemas"
)

var (
	_ schemas.LLMClient      = (*MockLLMClient)(nil)
	_ schemas.QuotaStore     = (*MockQuotaStore)(nil)
	_ schemas.BrowserSession = (*MockBrowserSession)(nil)
)

func TestMockLLMClient_RespectsCancelledContext(t *testing.T) {
	m := new(MockLLMClient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Generate(ctx, schemas.GenerationRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	m.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestMockBrowserSession_ElementsNilSlice(t *testing.T) {
	m := new(MockBrowserSession)
	boom := errors.New("boom")
	m.On("Elements", mock.Anything, schemas.ByXPath("//div")).Return(nil, boom)

	els, err := m.Elements(context.Background(), schemas.ByXPath("//div"))
	assert.Nil(t, els)
	assert.ErrorIs(t, err, boom)
	m.AssertExpectations(t)
}
