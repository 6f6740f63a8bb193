package llmparser

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diarynlp/internal/domain"
)

func TestBuildUserPromptIncludesExamplesAndInput(t *testing.T) {
	prompt := buildUserPrompt("Сходил в зал")
	assert.Contains(t, prompt, "Example 1:")
	assert.Contains(t, prompt, "Сходил в зал")
	assert.Contains(t, prompt, "Now analyze this diary entry:")
}

func TestBackoffForGrowsExponentiallyAndCaps(t *testing.T) {
	p := New("key", "", "gpt-4-turbo-preview", zerolog.Nop(),
		WithRetries(3, 500*time.Millisecond, 2*time.Second))

	assert.Equal(t, 500*time.Millisecond, p.backoffFor(1))
	assert.Equal(t, time.Second, p.backoffFor(2))
	assert.Equal(t, 2*time.Second, p.backoffFor(3))
	assert.Equal(t, 2*time.Second, p.backoffFor(4))
}

func TestMockParserReturnsCannedResult(t *testing.T) {
	canned := domain.ParseResult{
		Actions: []domain.RawAction{{Category: "спорт", Action: "зал", Type: domain.ActionTypeActivity}},
		Confidence: 0.9,
	}
	mock := NewMock(canned)
	result := mock.Parse(context.Background(), 1, "irrelevant")
	require.Equal(t, canned, result)
}
