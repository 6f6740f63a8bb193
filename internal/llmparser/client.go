// Package llmparser implements the LLM-backed parser from spec §4.E: given
// diary text, ask an OpenAI-compatible chat completions endpoint to emit a
// structured actions JSON document, retrying transient failures with
// exponential backoff. Grounded on the host's OpenAI client wrapper
// (_teacher_ref/client_openai.go), trimmed to the JSON-object completion
// shape this system needs.
package llmparser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog"

	"diarynlp/internal/domain"
)

// ErrTransient tags failures worth retrying (timeouts, 5xx, rate limits).
var ErrTransient = errors.New("llmparser: transient failure")

// Parser is the LLM-backed parser. Its Parse method satisfies
// analyzer.LLMParser.
type Parser struct {
	client      sdk.Client
	model       string
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	log         zerolog.Logger
}

// Option configures a Parser at construction time.
type Option func(*Parser)

// WithRetries overrides the retry budget and backoff envelope. Defaults are
// applied by New when this option is omitted.
func WithRetries(maxRetries int, base, max time.Duration) Option {
	return func(p *Parser) {
		p.maxRetries = maxRetries
		p.baseBackoff = base
		p.maxBackoff = max
	}
}

// New builds an LLM Parser against an OpenAI-compatible endpoint.
func New(apiKey, baseURL, model string, log zerolog.Logger, opts ...Option) *Parser {
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	p := &Parser{
		client:      sdk.NewClient(clientOpts...),
		model:       model,
		maxRetries:  3,
		baseBackoff: 500 * time.Millisecond,
		maxBackoff:  2 * time.Second,
		log:         log,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type llmActionDoc struct {
	Category             string  `json:"category"`
	Subcategory          *string `json:"subcategory"`
	Action               string  `json:"action"`
	Type                 string  `json:"type"`
	EstimatedTimeMinutes *int    `json:"estimated_time_minutes"`
	Confidence           float64 `json:"confidence"`
	AchievementWeight    *int    `json:"achievement_weight"`
}

type llmResponseDoc struct {
	Actions []llmActionDoc `json:"actions"`
}

// Parse sends text to the LLM and maps the response into domain.RawActions.
// userID is accepted for interface symmetry with heuristic.Parser; the
// prompt itself is user-agnostic.
func (p *Parser) Parse(ctx context.Context, userID int64, text string) domain.ParseResult {
	start := time.Now()
	result := domain.ParseResult{ModelName: p.model}

	raw, tokens, err := p.complete(ctx, text)
	result.LatencyMS = int(time.Since(start).Milliseconds())
	result.TokensUsed = tokens

	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	var doc llmResponseDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("llmparser: parse response: %v", err))
		return result
	}

	actions := make([]domain.RawAction, 0, len(doc.Actions))
	var confSum float64
	for _, a := range doc.Actions {
		actionType := domain.ActionTypeActivity
		if strings.EqualFold(a.Type, string(domain.ActionTypeAchievement)) {
			actionType = domain.ActionTypeAchievement
		}
		sub := ""
		if a.Subcategory != nil {
			sub = *a.Subcategory
		}
		actions = append(actions, domain.RawAction{
			Category:             a.Category,
			Subcategory:          sub,
			Action:               a.Action,
			Type:                 actionType,
			EstimatedTimeMinutes: a.EstimatedTimeMinutes,
			Confidence:           a.Confidence,
			AchievementWeight:    a.AchievementWeight,
			Source:               domain.ActionSourceLLM,
		})
		confSum += a.Confidence
	}
	result.Actions = actions
	if len(actions) > 0 {
		result.Confidence = confSum / float64(len(actions))
	}
	return result
}

// complete issues the chat completion with retry-on-transient-error,
// following spec §4.E's exponential backoff (base 500ms, ×2, capped,
// maxRetries attempts in total, at least one).
func (p *Parser) complete(ctx context.Context, text string) (string, int, error) {
	params := sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(p.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(systemPrompt),
			sdk.UserMessage(buildUserPrompt(text)),
		},
		ResponseFormat: sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	attempts := p.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := p.backoffFor(attempt)
			p.log.Debug().Int("attempt", attempt).Dur("backoff", backoff).Msg("llmparser: retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", 0, ctx.Err()
			}
		}

		comp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if !isTransient(err) {
				return "", 0, fmt.Errorf("llmparser: completion failed: %w", err)
			}
			continue
		}
		if len(comp.Choices) == 0 {
			lastErr = fmt.Errorf("llmparser: empty response")
			continue
		}
		return comp.Choices[0].Message.Content, int(comp.Usage.TotalTokens), nil
	}
	return "", 0, fmt.Errorf("%w: %v", ErrTransient, lastErr)
}

func (p *Parser) backoffFor(attempt int) time.Duration {
	d := time.Duration(float64(p.baseBackoff) * math.Pow(2, float64(attempt-1)))
	if d > p.maxBackoff {
		d = p.maxBackoff
	}
	return d
}

// isTransient classifies retryable failures. Timeouts and cancellations from
// our own context are always retryable. The host's own client wrapper never
// inspects the SDK's error type for this (its non-SDK code paths only check
// raw net/http status codes on requests it builds by hand), so rather than
// assume a specific SDK error shape this falls back to the same signal every
// net/http-based client exposes: a server-side status line in the error
// text, which openai-go's error formatting always includes.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	msg := err.Error()
	for _, code := range []string{"429", "500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
