// Package analyzer orchestrates the full per-request pipeline of spec §4.H:
// cache check, preprocessing, heuristic parsing, conditional LLM parsing,
// fusion, postprocessing, history recording, and result assembly. Grounded
// on the host's request-orchestration style in internal/skills/cache_service.go
// (cache-wrapped, best-effort side effects around a core computation).
package analyzer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"diarynlp/internal/config"
	"diarynlp/internal/domain"
	"diarynlp/internal/fusion"
	"diarynlp/internal/heuristic"
	"diarynlp/internal/history"
	"diarynlp/internal/postprocess"
	"diarynlp/internal/rescache"
	"diarynlp/internal/textproc"
)

// LLMParser is the slice of llmparser.Parser the analyzer depends on. Kept
// as an interface so tests can substitute llmparser.MockParser.
type LLMParser interface {
	Parse(ctx context.Context, userID int64, text string) domain.ParseResult
}

var heuristicStageNames = []string{"keyword_match", "time_extraction", "category_detection"}

// Analyzer wires every pipeline component together behind the single
// Analyze entry point.
type Analyzer struct {
	settings      config.Settings
	preprocessor  *textproc.Preprocessor
	heuristic     *heuristic.Parser
	llm           LLMParser
	fusion        *fusion.Fusion
	postprocessor *postprocess.Postprocessor
	history       history.Store
	cache         rescache.Store
	log           zerolog.Logger
}

// Builder assembles an Analyzer from its constituent components, mirroring
// the explicit-builder pattern the host uses in place of the source's
// DI-container wiring.
type Builder struct {
	Settings      config.Settings
	Preprocessor  *textproc.Preprocessor
	Heuristic     *heuristic.Parser
	LLM           LLMParser
	Fusion        *fusion.Fusion
	Postprocessor *postprocess.Postprocessor
	History       history.Store
	Cache         rescache.Store
	Log           zerolog.Logger
}

// Build constructs an Analyzer, filling in any unset component with its
// settings-derived default. LLM has no default and must be set by the
// caller.
func (b Builder) Build() *Analyzer {
	a := &Analyzer{
		settings:      b.Settings,
		preprocessor:  b.Preprocessor,
		heuristic:     b.Heuristic,
		llm:           b.LLM,
		fusion:        b.Fusion,
		postprocessor: b.Postprocessor,
		history:       b.History,
		cache:         b.Cache,
		log:           b.Log,
	}
	if a.preprocessor == nil {
		a.preprocessor = textproc.New(b.Settings.PIIRedactionEnabled)
	}
	if a.heuristic == nil {
		a.heuristic = heuristic.New()
	}
	if a.fusion == nil {
		a.fusion = fusion.New(b.Settings)
	}
	if a.postprocessor == nil {
		a.postprocessor = postprocess.New(0)
	}
	if a.history == nil {
		a.history = history.NewMemoryStore()
	}
	if a.cache == nil {
		a.cache = rescache.NewMemoryStore()
	}
	return a
}

// Analyze runs the full pipeline for one diary entry, per spec §4.H. date,
// when empty, defaults to today (UTC).
func (a *Analyzer) Analyze(ctx context.Context, userID int64, text string, date string) (domain.AnalysisResult, error) {
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	normalizedForKey := textproc.NormalizeText(text)
	cacheKey := rescache.Fingerprint(userID, normalizedForKey)

	if a.settings.CacheEnabled {
		if cached, ok := a.cache.Get(ctx, cacheKey); ok {
			var result domain.AnalysisResult
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				return result, nil
			}
			a.log.Debug().Str("key", cacheKey).Msg("analyzer: cache hit failed to deserialize, recomputing")
		}
	}

	meta := domain.AnalysisMeta{
		UsedHeuristics: heuristicStageNames,
		Errors:         []string{},
	}

	processed := a.preprocessor.Preprocess(text)

	heuristicResult := a.heuristic.Parse(userID, processed)
	latencyMS := heuristicResult.LatencyMS
	meta.HeuristicLatencyMS = &latencyMS

	var llmActions []domain.RawAction
	if ctx.Err() == nil && a.settings.UseLLMFallback && a.fusion.ShouldUseLLM(heuristicResult.Confidence, len(heuristicResult.Actions)) {
		llmResult := a.runLLM(ctx, userID, processed)
		meta.UsedLLM = true
		meta.LLMLatencyMS = &llmResult.LatencyMS
		meta.Errors = append(meta.Errors, llmResult.Errors...)
		llmActions = llmResult.Actions
	}

	fused := a.fusion.Fuse(ctx, userID, heuristicResult.Actions, llmActions, a.history)
	final := a.postprocessor.Process(fused)

	if ctx.Err() == nil {
		a.recordHistory(ctx, userID, final)
	}

	result := domain.AnalysisResult{
		UserID:  userID,
		Date:    date,
		RawText: nil,
		Actions: final,
		Meta:    meta,
	}

	if a.settings.CacheEnabled && ctx.Err() == nil {
		if serialized, err := json.Marshal(result); err == nil {
			a.cache.Set(ctx, cacheKey, string(serialized), a.settings.CacheTTL())
		}
	}

	return result, nil
}

// runLLM invokes the LLM parser under a single timeout of
// settings.LLMTimeout() that covers the whole call, retries and backoff
// included; no separate per-attempt timeout is applied. The timeout is
// derived from ctx, so an earlier request deadline still takes precedence.
func (a *Analyzer) runLLM(ctx context.Context, userID int64, processed string) domain.ParseResult {
	timeoutCtx, cancel := context.WithTimeout(ctx, a.settings.LLMTimeout())
	defer cancel()
	return a.llm.Parse(timeoutCtx, userID, processed)
}

// recordHistory projects every activity with a positive duration into
// HistoryStore, best-effort: a failure is logged, never surfaced.
func (a *Analyzer) recordHistory(ctx context.Context, userID int64, actions []domain.Action) {
	for _, action := range actions {
		if action.EstimatedTimeMinutes <= 0 {
			continue
		}
		if err := a.history.RecordAction(ctx, userID, action.Action, action.EstimatedTimeMinutes); err != nil {
			a.log.Warn().Err(err).Int64("user_id", userID).Str("action", action.Action).Msg("analyzer: history record failed")
		}
	}
}

// UserStats passes through to the configured HistoryStore.
func (a *Analyzer) UserStats(ctx context.Context, userID int64) (domain.UserStats, error) {
	return a.history.UserStats(ctx, userID)
}

// AnalyzeBatch runs Analyze for each (userID, text, date) request
// concurrently, bounded by the context, and returns results in the input
// order. Supplements the single-request contract in spec §4.H for bulk
// imports/backfills; not itself part of the per-request pipeline.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, requests []BatchRequest) ([]domain.AnalysisResult, error) {
	results := make([]domain.AnalysisResult, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			result, err := a.Analyze(gctx, req.UserID, req.Text, req.Date)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// BatchRequest is one item of an AnalyzeBatch call.
type BatchRequest struct {
	UserID int64
	Text   string
	Date   string
}
