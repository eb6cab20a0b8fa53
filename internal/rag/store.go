package rag

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// Store owns the vector database and the embedding model. The model is
// not required to be thread-safe, so every embed call is serialized
// behind a mutex; callers never touch the embedder directly.
type Store struct {
	db   *sql.DB
	path string

	mu       sync.Mutex
	embedder Embedder
}

// Open opens (or creates) the RAG database in the given directory.
// Missing tables are created with their declared schemas; this is how a
// fresh database bootstraps.
func Open(path string, embedder Embedder) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	sqlite_vec.Auto()

	dbPath := filepath.Join(path, "papers.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var version string
	if err := db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	if err := createTables(db, embedder.Dimension()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Store{db: db, path: dbPath, embedder: embedder}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EmbedQuery embeds a query string. The embedder mutex is held for the
// duration of the model call only.
func (s *Store) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embedder.EmbedQuery(ctx, query)
}

// EmbedDocuments embeds a batch of document texts.
func (s *Store) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embedder.EmbedDocuments(ctx, texts)
}

// serializeVector renders a vector in the JSON text form sqlite-vec
// accepts for FLOAT[] columns.
func serializeVector(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
