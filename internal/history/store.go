// Package history implements the HistoryStore contract from spec §4.B: a
// per-user, per-normalized-action running average of observed durations,
// incrementally updated and serialized per (user_id, normalized_text) key.
// Grounded on the host's dual pg/in-memory backend shape in
// internal/persistence/databases/specialists_store.go.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"diarynlp/internal/domain"
	"diarynlp/internal/textproc"
)

// Store is the HistoryStore contract.
type Store interface {
	// GetAverageTime returns the floor of the stored running average for
	// (userID, actionText), resolving to the global row (user_id=0) when
	// no per-user row exists. Returns ok=false when neither exists.
	GetAverageTime(ctx context.Context, userID int64, actionText string) (minutes int, ok bool)

	// RecordAction inserts or incrementally updates the running average
	// for (userID, actionText) with a newly observed duration.
	RecordAction(ctx context.Context, userID int64, actionText string, timeMinutes int) error

	// UserStats reports the per-user template and occurrence totals.
	UserStats(ctx context.Context, userID int64) (domain.UserStats, error)
}

// keyedLock serializes RecordAction calls per (user_id, normalized_text)
// key within this process; reads do not take it. The Postgres backend
// additionally runs each update in a transaction with a row lock.
// Grounded on the host's use of sync.Map as a
// lightweight per-key cache (internal/workspaces/encrypted_cache.go).
type keyedLock struct {
	locks sync.Map // string -> *sync.Mutex
}

func (k *keyedLock) lockFor(key string) *sync.Mutex {
	m, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	return m.(*sync.Mutex)
}

func lockKey(userID int64, normalized string) string {
	return fmt.Sprintf("%d\x00%s", userID, normalized)
}

// ---- Postgres-backed store ----

type pgStore struct {
	pool *pgxpool.Pool
	kl   keyedLock
}

// NewPostgresStore returns a Postgres-backed Store against the given pool.
// Init must be called once before use to ensure the schema exists.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

// NewFromDatabaseURL connects to databaseURL and returns a Postgres-backed
// Store with its schema initialized. On any failure it falls back
// transparently to an in-process Store, mirroring rescache's construction
// fallback.
func NewFromDatabaseURL(ctx context.Context, databaseURL string, log zerolog.Logger) Store {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("history: connect failed, falling back to in-memory store")
		return NewMemoryStore()
	}
	if err := Init(ctx, pool); err != nil {
		log.Warn().Err(err).Msg("history: schema init failed, falling back to in-memory store")
		pool.Close()
		return NewMemoryStore()
	}
	return NewPostgresStore(pool)
}

// Init creates the action_templates table and its lookup index if absent,
// matching the schema in spec §6.
func Init(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS action_templates (
	id SERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL,
	normalized_text TEXT NOT NULL,
	avg_time_minutes REAL NOT NULL,
	occurrences INT NOT NULL DEFAULT 1,
	last_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(user_id, normalized_text)
);
CREATE INDEX IF NOT EXISTS idx_action_templates_user_action
	ON action_templates(user_id, normalized_text);
`)
	if err != nil {
		return fmt.Errorf("history: init schema: %w", err)
	}
	return nil
}

func (s *pgStore) GetAverageTime(ctx context.Context, userID int64, actionText string) (int, bool) {
	normalized := textproc.NormalizeText(actionText)

	row := s.pool.QueryRow(ctx, `
SELECT avg_time_minutes FROM (
	SELECT avg_time_minutes, 0 AS prio FROM action_templates
	WHERE user_id = $1 AND normalized_text = $2
	UNION ALL
	SELECT avg_time_minutes, 1 AS prio FROM action_templates
	WHERE user_id = $3 AND normalized_text = $2
) ranked
ORDER BY prio
LIMIT 1
`, userID, normalized, domain.GlobalUserID)

	var avg float64
	if err := row.Scan(&avg); err != nil {
		return 0, false
	}
	return int(avg), true
}

func (s *pgStore) RecordAction(ctx context.Context, userID int64, actionText string, timeMinutes int) error {
	normalized := textproc.NormalizeText(actionText)
	lock := s.kl.lockFor(lockKey(userID, normalized))
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("history: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var avg float64
	var occurrences int
	err = tx.QueryRow(ctx, `
SELECT avg_time_minutes, occurrences FROM action_templates
WHERE user_id = $1 AND normalized_text = $2
FOR UPDATE
`, userID, normalized).Scan(&avg, &occurrences)

	switch {
	case err == nil:
		newAvg := (avg*float64(occurrences) + float64(timeMinutes)) / float64(occurrences+1)
		if _, err := tx.Exec(ctx, `
UPDATE action_templates
SET avg_time_minutes = $1, occurrences = occurrences + 1, last_seen = now()
WHERE user_id = $2 AND normalized_text = $3
`, newAvg, userID, normalized); err != nil {
			return fmt.Errorf("history: update: %w", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, `
INSERT INTO action_templates (user_id, normalized_text, avg_time_minutes, occurrences, last_seen)
VALUES ($1, $2, $3, 1, now())
`, userID, normalized, float64(timeMinutes)); err != nil {
			return fmt.Errorf("history: insert: %w", err)
		}
	default:
		return fmt.Errorf("history: lookup existing row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

func (s *pgStore) UserStats(ctx context.Context, userID int64) (domain.UserStats, error) {
	stats := domain.UserStats{UserID: userID}
	row := s.pool.QueryRow(ctx, `
SELECT COUNT(*), COALESCE(SUM(occurrences), 0)
FROM action_templates WHERE user_id = $1
`, userID)
	if err := row.Scan(&stats.TotalTemplates, &stats.TotalActions); err != nil {
		return stats, fmt.Errorf("history: user stats: %w", err)
	}
	return stats, nil
}

// ---- In-memory fallback ----

type memoryRow struct {
	avg         float64
	occurrences int
	lastSeen    time.Time
}

type memoryStore struct {
	mu   sync.RWMutex
	rows map[string]*memoryRow // key: lockKey(userID, normalized)
	kl   keyedLock
}

// NewMemoryStore returns an in-memory Store, used when no database is
// configured (tests, local/offline runs).
func NewMemoryStore() Store {
	return &memoryStore{rows: make(map[string]*memoryRow)}
}

func (s *memoryStore) GetAverageTime(_ context.Context, userID int64, actionText string) (int, bool) {
	normalized := textproc.NormalizeText(actionText)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if row, ok := s.rows[lockKey(userID, normalized)]; ok {
		return int(row.avg), true
	}
	if userID != domain.GlobalUserID {
		if row, ok := s.rows[lockKey(domain.GlobalUserID, normalized)]; ok {
			return int(row.avg), true
		}
	}
	return 0, false
}

func (s *memoryStore) RecordAction(_ context.Context, userID int64, actionText string, timeMinutes int) error {
	normalized := textproc.NormalizeText(actionText)
	key := lockKey(userID, normalized)

	lock := s.kl.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[key]
	if !ok {
		s.rows[key] = &memoryRow{avg: float64(timeMinutes), occurrences: 1, lastSeen: time.Now()}
		return nil
	}
	row.avg = (row.avg*float64(row.occurrences) + float64(timeMinutes)) / float64(row.occurrences+1)
	row.occurrences++
	row.lastSeen = time.Now()
	return nil
}

func (s *memoryStore) UserStats(_ context.Context, userID int64) (domain.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.UserStats{UserID: userID}
	prefix := fmt.Sprintf("%d\x00", userID)
	for key, row := range s.rows {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			stats.TotalTemplates++
			stats.TotalActions += row.occurrences
		}
	}
	return stats, nil
}
