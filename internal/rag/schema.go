package rag

import (
	"database/sql"
	"fmt"
)

// EmbedDim is the fixed embedding dimension shared by the document and
// query sides. It must match the dimension the model actually produces.
const EmbedDim = 768

const (
	chunksTable     = "papers_chunks"
	chunksVecTable  = "papers_chunks_vec"
	figuresTable    = "papers_figures"
	figuresVecTable = "papers_figures_vec"
)

// List columns (authors, tags, figure_ids) are stored as JSON text
// arrays and queried with json_each; embeddings live in companion vec0
// virtual tables keyed by the row id.
var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS ` + chunksTable + ` (
		chunk_id TEXT PRIMARY KEY,
		paper_id TEXT NOT NULL,
		chapter_title TEXT NOT NULL,
		chapter_idx INTEGER NOT NULL,
		section_title TEXT NOT NULL,
		section_idx INTEGER NOT NULL,
		chunk_idx INTEGER NOT NULL,
		depth TEXT NOT NULL,
		text TEXT NOT NULL,
		page_start INTEGER,
		page_end INTEGER,
		title TEXT NOT NULL,
		authors TEXT NOT NULL,
		year INTEGER,
		venue TEXT,
		tags TEXT NOT NULL,
		figure_ids TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS ` + figuresTable + ` (
		figure_id TEXT PRIMARY KEY,
		paper_id TEXT NOT NULL,
		figure_type TEXT NOT NULL,
		caption TEXT NOT NULL,
		description TEXT NOT NULL,
		image_path TEXT,
		page INTEGER,
		chapter_idx INTEGER NOT NULL,
		section_idx INTEGER NOT NULL,
		title TEXT NOT NULL,
		authors TEXT NOT NULL,
		year INTEGER,
		venue TEXT,
		tags TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_paper ON ` + chunksTable + `(paper_id, chapter_idx, section_idx, chunk_idx);`,
	`CREATE INDEX IF NOT EXISTS idx_figures_paper ON ` + figuresTable + `(paper_id);`,
}

func createTables(db *sql.DB, dim int) error {
	for _, ddl := range tableDDL {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	vecDDL := []string{
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
			chunk_id TEXT PRIMARY KEY,
			embedding FLOAT[%d]
		)`, chunksVecTable, dim),
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
			figure_id TEXT PRIMARY KEY,
			embedding FLOAT[%d]
		)`, figuresVecTable, dim),
	}
	for _, ddl := range vecDDL {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create vector table: %w", err)
		}
	}
	return nil
}
