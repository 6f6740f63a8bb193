// Command diaryanalyzerd wires the analysis pipeline components together
// and serves the thin HTTP surface over them. DI wiring and the launcher
// itself are explicitly out of the pipeline's scope; this is the minimal
// glue that assembles one.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"diarynlp/internal/analyzer"
	"diarynlp/internal/config"
	"diarynlp/internal/diarylog"
	"diarynlp/internal/domain"
	"diarynlp/internal/fusion"
	"diarynlp/internal/heuristic"
	"diarynlp/internal/history"
	"diarynlp/internal/httpapi"
	"diarynlp/internal/llmparser"
	"diarynlp/internal/postprocess"
	"diarynlp/internal/rescache"
	"diarynlp/internal/textproc"
)

func emptyParseResult() domain.ParseResult {
	return domain.ParseResult{}
}

func main() {
	settings := config.Load()
	logger := diarylog.New(settings.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cache rescache.Store
	if settings.CacheEnabled {
		cache = rescache.NewRedisStore(settings.RedisURL, logger)
	} else {
		cache = rescache.NewMemoryStore()
	}

	historyStore := history.NewFromDatabaseURL(ctx, settings.DatabaseURL, logger)

	var llm analyzer.LLMParser
	if settings.OpenAIAPIKey != "" {
		llm = llmparser.New(settings.OpenAIAPIKey, settings.OpenAIBaseURL, settings.OpenAIModel, logger,
			llmparser.WithRetries(settings.LLMMaxRetries, 500*time.Millisecond, 2*time.Second))
	} else {
		logger.Warn().Msg("main: no OPENAI_API_KEY set, LLM fallback disabled")
		llm = llmparser.NewMock(emptyParseResult())
	}

	a := analyzer.Builder{
		Settings:      settings,
		Preprocessor:  textproc.New(settings.PIIRedactionEnabled),
		Heuristic:     heuristic.New(),
		LLM:           llm,
		Fusion:        fusion.New(settings),
		Postprocessor: postprocess.New(0),
		History:       historyStore,
		Cache:         cache,
		Log:           logger,
	}.Build()

	mux := http.NewServeMux()
	httpapi.New(a, logger).Routes(mux)

	srv := &http.Server{Addr: ":8080", Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.LLMTimeout())
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", srv.Addr).Msg("diaryanalyzerd: listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
