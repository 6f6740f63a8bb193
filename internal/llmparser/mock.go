package llmparser

import (
	"context"

	"diarynlp/internal/domain"
)

// MockParser is a deterministic test double standing in for Parser,
// equivalent to original_source's MockLLMParser: it returns a canned
// ParseResult regardless of input, so fusion/analyzer tests don't need a
// live endpoint.
type MockParser struct {
	Result domain.ParseResult
	Err    error
}

// NewMock builds a MockParser returning result for every call.
func NewMock(result domain.ParseResult) *MockParser {
	return &MockParser{Result: result}
}

// Parse returns the canned result, ignoring its arguments.
func (m *MockParser) Parse(_ context.Context, _ int64, _ string) domain.ParseResult {
	if m.Err != nil {
		return domain.ParseResult{Errors: []string{m.Err.Error()}}
	}
	return m.Result
}
