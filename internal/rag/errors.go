package rag

import "errors"

// Sentinel errors for the RAG core. Callers match with errors.Is; the
// wrapped message carries the offending identifier or clause.
var (
	// ErrNotFound indicates an addressed chunk, figure, or paper is absent.
	ErrNotFound = errors.New("not found")
	// ErrScope indicates an invalid hierarchy predicate at query time.
	ErrScope = errors.New("invalid scope")
	// ErrEmbed indicates the embedding model failed.
	ErrEmbed = errors.New("embedding failed")
)
