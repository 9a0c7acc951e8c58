// Package store is the embedded relational storage core: schema/migrations,
// and the observation/session/summary/pending/vector/graph repositories
// layered on top of a single SQLite connection.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pressly/goose/v3"

	_ "github.com/mattn/go-sqlite3"
	"github.com/niklasschaeffer/open-mem/internal/embedding"
	"github.com/niklasschaeffer/open-mem/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the embedded storage core described in §2: row tables, an FTS5
// index over observations, and a vector index (KNN), all layered on one
// *sql.DB connection.
type Store struct {
	db              *sql.DB
	mu              sync.RWMutex
	path            string
	embeddingEngine embedding.Embedder
	vectorExt       bool
}

// Open creates the database directory if needed, opens the SQLite
// connection with the teacher's WAL/NORMAL pragma profile, runs goose
// migrations, and probes for the sqlite-vec extension.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.Get(logging.CategoryStore).Warn("pragma failed %q: %v", pragma, err)
		}
	}

	s := &Store{db: db, path: path}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s.detectVecExtension()
	if s.vectorExt {
		logging.Get(logging.CategoryStore).Info("sqlite-vec extension detected, ANN search enabled")
	} else {
		logging.Get(logging.CategoryStore).Warn("sqlite-vec extension unavailable; falling back to brute-force cosine similarity")
	}

	return s, nil
}

// detectVecExtension probes for vec0 virtual table support, matching the
// teacher's init_vec.go probe-table approach.
func (s *Store) detectVecExtension() {
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		s.vectorExt = true
		_, _ = s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	s.vectorExt = false
}

// SetEmbeddingEngine wires the embedding backend. It does not create the
// vec0 index: SetEmbedding creates it lazily (ensureVecIndex) once the
// first vector's dimensionality is known (see DESIGN.md's open question
// decision on probed embedding dimensions).
func (s *Store) SetEmbeddingEngine(engine embedding.Embedder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddingEngine = engine
}

// HasVectorIndex reports whether the sqlite-vec extension is active.
func (s *Store) HasVectorIndex() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectorExt
}

// DB exposes the underlying connection for components (goose-managed
// migrations aside) that need direct SQL access, e.g. metrics probes.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	logging.Get(logging.CategoryStore).Info("closing store")
	return s.db.Close()
}

// Stats returns row counts for the core tables, used by the host's `stats`
// query-surface operation.
func (s *Store) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"observations", "sessions", "session_summaries", "pending_messages", "knowledge_graph", "vectors"} {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			continue
		}
		stats[table] = count
	}
	return stats, nil
}
