package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"papers/internal/logger"
)

// IngestParams identifies a paper and carries its denormalized metadata
// into every chunk and figure row.
type IngestParams struct {
	ItemKey  string
	PaperID  string
	Title    string
	Authors  []string
	Year     *int
	Venue    *string
	Tags     []string
	CacheDir string
}

type chunkRecord struct {
	chunkID      string
	chapterTitle string
	chapterIdx   int
	sectionTitle string
	sectionIdx   int
	chunkIdx     int
	text         string
	page         *int
	figureIDs    []string
}

type figureRecord struct {
	figureID   string
	figureType string
	caption    string
	imagePath  *string
	page       *int
	chapterIdx int
	sectionIdx int
}

// Layout-analysis document: children[*].children[*] is a flat per-page
// block stream.
type layoutDocument struct {
	Children []layoutPage `json:"children"`
}

type layoutPage struct {
	Children []layoutBlock `json:"children"`
}

type layoutBlock struct {
	BlockType string `json:"block_type"`
	ID        string `json:"id"`
	Page      *int   `json:"page"`
	HTML      string `json:"html"`
}

// ExtractionMeta mirrors the optional meta.json next to the extraction.
type ExtractionMeta struct {
	Title            string   `json:"title"`
	Authors          []string `json:"authors"`
	Date             string   `json:"date"`
	PublicationTitle string   `json:"publication_title"`
	DOI              string   `json:"doi"`
}

// stripHTML removes tags without inserting whitespace between them and
// collapses runs of whitespace to single spaces.
func stripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// headingLevel reads the heading tag h1..h6 out of a SectionHeader
// block's HTML. The tag is authoritative; unknown markup maps to 6.
func headingLevel(html string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 6
	}
	for lvl, sel := range []string{"h1", "h2", "h3", "h4", "h5"} {
		if doc.Find(sel).Length() > 0 {
			return lvl + 1
		}
	}
	return 6
}

func extractImgAttr(html, attr string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	return doc.Find("img").First().Attr(attr)
}

func parseYear(date string) *int {
	first, _, _ := strings.Cut(date, "-")
	y, err := strconv.Atoi(first)
	if err != nil {
		return nil
	}
	return &y
}

// Ingestor walks layout-analysis extractions and writes chunk and
// figure rows. It is the only writer of the two tables.
type Ingestor struct {
	store     *Store
	cacheRoot string
}

// NewIngestor creates an ingestor reading extractions under cacheRoot.
func NewIngestor(store *Store, cacheRoot string) *Ingestor {
	return &Ingestor{store: store, cacheRoot: cacheRoot}
}

// ParamsFromCache builds IngestParams for a cached item key, seeding
// metadata from meta.json when present. The paper id is the DOI when
// present and non-empty, else the cache key itself.
func (ing *Ingestor) ParamsFromCache(itemKey string) (IngestParams, error) {
	cacheDir := filepath.Join(ing.cacheRoot, itemKey)
	info, err := os.Stat(cacheDir)
	if err != nil || !info.IsDir() {
		return IngestParams{}, fmt.Errorf("cache directory %s: %w", cacheDir, ErrNotFound)
	}

	params := IngestParams{
		ItemKey:  itemKey,
		PaperID:  itemKey,
		Title:    itemKey,
		CacheDir: cacheDir,
	}

	metaBytes, err := os.ReadFile(filepath.Join(cacheDir, "meta.json"))
	if err == nil {
		var meta ExtractionMeta
		if err := json.Unmarshal(metaBytes, &meta); err == nil {
			if meta.Title != "" {
				params.Title = meta.Title
			}
			params.Authors = meta.Authors
			params.Year = parseYear(meta.Date)
			if meta.PublicationTitle != "" {
				venue := meta.PublicationTitle
				params.Venue = &venue
			}
			if meta.DOI != "" {
				params.PaperID = meta.DOI
			}
		}
	}

	return params, nil
}

// ListCachedKeys enumerates cache subdirectories whose name K contains
// a K.json extraction file.
func (ing *Ingestor) ListCachedKeys() []string {
	entries, err := os.ReadDir(ing.cacheRoot)
	if err != nil {
		return nil
	}
	var keys []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		key := entry.Name()
		if _, err := os.Stat(filepath.Join(ing.cacheRoot, key, key+".json")); err == nil {
			keys = append(keys, key)
		}
	}
	return keys
}

// IsIngested reports whether any chunks exist for the paper.
func (ing *Ingestor) IsIngested(ctx context.Context, paperID string) bool {
	var n int
	err := ing.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+chunksTable+" WHERE paper_id = ?", paperID).Scan(&n)
	return err == nil && n > 0
}

// IngestFromCache resolves params for an item key and ingests it.
func (ing *Ingestor) IngestFromCache(ctx context.Context, itemKey string) (IngestStats, error) {
	params, err := ing.ParamsFromCache(itemKey)
	if err != nil {
		return IngestStats{}, err
	}
	return ing.IngestPaper(ctx, params)
}

// IngestAll ingests every cached extraction. Failures abort that paper
// only; the loop reports and continues. When force is false, papers
// already indexed are skipped.
func (ing *Ingestor) IngestAll(ctx context.Context, force bool) (IngestStats, error) {
	var total IngestStats
	for _, key := range ing.ListCachedKeys() {
		params, err := ing.ParamsFromCache(key)
		if err != nil {
			logger.Warn().Str("item_key", key).Err(err).Msg("skipping cached paper")
			continue
		}
		if !force && ing.IsIngested(ctx, params.PaperID) {
			logger.Debug().Str("paper_id", params.PaperID).Msg("already indexed, skipping")
			continue
		}
		stats, err := ing.IngestPaper(ctx, params)
		if err != nil {
			logger.Error().Str("item_key", key).Err(err).Msg("ingest failed")
			continue
		}
		total.ChunksAdded += stats.ChunksAdded
		total.FiguresAdded += stats.FiguresAdded
	}
	return total, nil
}

// IngestPaper reads the layout-analysis JSON for the paper, recovers
// its chapter/section tree, embeds chunk texts and figure captions, and
// replaces all prior rows for the same paper id.
func (ing *Ingestor) IngestPaper(ctx context.Context, params IngestParams) (IngestStats, error) {
	runID := uuid.NewString()
	log := logger.Get().With().Str("run_id", runID).Str("item_key", params.ItemKey).Logger()

	jsonPath := filepath.Join(params.CacheDir, params.ItemKey+".json")
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return IngestStats{}, fmt.Errorf("reading extraction %s: %w", jsonPath, err)
	}
	var doc layoutDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return IngestStats{}, fmt.Errorf("parsing extraction %s: %w", jsonPath, err)
	}

	var blocks []layoutBlock
	for _, page := range doc.Children {
		blocks = append(blocks, page.Children...)
	}
	log.Debug().Int("blocks", len(blocks)).Int("pages", len(doc.Children)).Msg("parsed extraction")

	chunks, figures := recoverStructure(params, blocks)
	log.Info().Int("chunks", len(chunks)).Int("figures", len(figures)).Msg("recovered structure")

	if err := ing.deletePaper(ctx, params.PaperID); err != nil {
		return IngestStats{}, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.text
	}
	embeddings, err := ing.store.EmbedDocuments(ctx, texts)
	if err != nil {
		return IngestStats{}, err
	}

	figTexts := make([]string, len(figures))
	for i, f := range figures {
		figTexts[i] = f.caption
	}
	figEmbeddings, err := ing.store.EmbedDocuments(ctx, figTexts)
	if err != nil {
		return IngestStats{}, err
	}

	if len(chunks) > 0 {
		if err := ing.insertChunks(ctx, params, chunks, embeddings); err != nil {
			return IngestStats{}, err
		}
	}
	if len(figures) > 0 {
		if err := ing.insertFigures(ctx, params, figures, figEmbeddings); err != nil {
			return IngestStats{}, err
		}
	}

	log.Info().Msg("ingest done")
	return IngestStats{ChunksAdded: len(chunks), FiguresAdded: len(figures)}, nil
}

// recoverStructure walks the flat block stream and assigns chapter,
// section, and chunk indices.
//
// Heading map: h1 is the paper title (no state change); h2 begins a new
// chapter; h3/h4 begin a new section; h5/h6 and unknown tags change
// nothing. Material before the first h2 lives in chapter 0 with an
// empty chapter title.
func recoverStructure(params IngestParams, blocks []layoutBlock) ([]chunkRecord, []figureRecord) {
	chapterIdx, sectionIdx, chunkIdx := 0, 0, 0
	var chapterTitle, sectionTitle string
	figureSeq := 0

	var chunks []chunkRecord
	var figures []figureRecord

	// chunkIdx also resets when the section key changes between two
	// adjacent emissions, covering streams where a header was skipped.
	lastSectionKey := [2]int{0, 0}

	for _, block := range blocks {
		switch block.BlockType {
		case "Page", "PageHeader", "PageFooter", "TableOfContents", "Caption", "Picture":
			continue

		case "SectionHeader":
			switch headingLevel(block.HTML) {
			case 2:
				chapterIdx++
				sectionIdx = 0
				chunkIdx = 0
				chapterTitle = stripHTML(block.HTML)
				sectionTitle = ""
				lastSectionKey = [2]int{chapterIdx, sectionIdx}
			case 3, 4:
				sectionIdx++
				chunkIdx = 0
				sectionTitle = stripHTML(block.HTML)
				lastSectionKey = [2]int{chapterIdx, sectionIdx}
			}
			// h1 (paper title), h5/h6 and unknown: no state change

		case "Text", "ListGroup", "Equation":
			text := stripHTML(block.HTML)
			if strings.TrimSpace(text) == "" {
				continue
			}
			sectionKey := [2]int{chapterIdx, sectionIdx}
			if sectionKey != lastSectionKey {
				chunkIdx = 0
				lastSectionKey = sectionKey
			}
			chunks = append(chunks, chunkRecord{
				chunkID:      fmt.Sprintf("%s/ch%d/s%d/p%d", params.PaperID, chapterIdx, sectionIdx, chunkIdx),
				chapterTitle: chapterTitle,
				chapterIdx:   chapterIdx,
				sectionTitle: sectionTitle,
				sectionIdx:   sectionIdx,
				chunkIdx:     chunkIdx,
				text:         text,
				page:         block.Page,
				figureIDs:    []string{},
			})
			chunkIdx++

		case "Figure", "Table":
			caption, _ := extractImgAttr(block.HTML, "alt")
			var imagePath *string
			if src, ok := extractImgAttr(block.HTML, "src"); ok {
				p := filepath.Join(params.CacheDir, "images", src)
				imagePath = &p
			}
			figureType := "figure"
			if block.BlockType == "Table" {
				figureType = "table"
			}
			figureSeq++
			figures = append(figures, figureRecord{
				figureID:   fmt.Sprintf("%s/fig%d", params.PaperID, figureSeq),
				figureType: figureType,
				caption:    caption,
				imagePath:  imagePath,
				page:       block.Page,
				chapterIdx: chapterIdx,
				sectionIdx: sectionIdx,
			})
		}
	}

	return chunks, figures
}

// deletePaper removes all existing rows for the paper from both table
// pairs. Running it before insert makes re-ingest idempotent.
func (ing *Ingestor) deletePaper(ctx context.Context, paperID string) error {
	tx, err := ing.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		"DELETE FROM " + chunksVecTable + " WHERE chunk_id IN (SELECT chunk_id FROM " + chunksTable + " WHERE paper_id = ?)",
		"DELETE FROM " + chunksTable + " WHERE paper_id = ?",
		"DELETE FROM " + figuresVecTable + " WHERE figure_id IN (SELECT figure_id FROM " + figuresTable + " WHERE paper_id = ?)",
		"DELETE FROM " + figuresTable + " WHERE paper_id = ?",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, paperID); err != nil {
			return fmt.Errorf("failed to delete prior rows: %w", err)
		}
	}
	return tx.Commit()
}

func marshalList(list []string) string {
	if list == nil {
		list = []string{}
	}
	b, _ := json.Marshal(list)
	return string(b)
}

func (ing *Ingestor) insertChunks(ctx context.Context, params IngestParams, chunks []chunkRecord, embeddings [][]float32) error {
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", ErrEmbed, len(embeddings), len(chunks))
	}
	tx, err := ing.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	rowStmt, err := tx.PrepareContext(ctx, `INSERT INTO `+chunksTable+`
		(chunk_id, paper_id, chapter_title, chapter_idx, section_title, section_idx, chunk_idx,
		 depth, text, page_start, page_end, title, authors, year, venue, tags, figure_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer rowStmt.Close()

	vecStmt, err := tx.PrepareContext(ctx, `INSERT INTO `+chunksVecTable+` (chunk_id, embedding) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk vector insert: %w", err)
	}
	defer vecStmt.Close()

	for i, c := range chunks {
		_, err := rowStmt.ExecContext(ctx,
			c.chunkID, params.PaperID, c.chapterTitle, c.chapterIdx, c.sectionTitle, c.sectionIdx, c.chunkIdx,
			"paragraph", c.text, nullableInt(c.page), nullableInt(c.page),
			params.Title, marshalList(params.Authors), nullableInt(params.Year), nullableStr(params.Venue),
			marshalList(params.Tags), marshalList(c.figureIDs))
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.chunkID, err)
		}
		if _, err := vecStmt.ExecContext(ctx, c.chunkID, serializeVector(embeddings[i])); err != nil {
			return fmt.Errorf("failed to insert embedding for %s: %w", c.chunkID, err)
		}
	}
	return tx.Commit()
}

func (ing *Ingestor) insertFigures(ctx context.Context, params IngestParams, figures []figureRecord, embeddings [][]float32) error {
	if len(embeddings) != len(figures) {
		return fmt.Errorf("%w: got %d embeddings for %d figures", ErrEmbed, len(embeddings), len(figures))
	}
	tx, err := ing.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	rowStmt, err := tx.PrepareContext(ctx, `INSERT INTO `+figuresTable+`
		(figure_id, paper_id, figure_type, caption, description, image_path, page,
		 chapter_idx, section_idx, title, authors, year, venue, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare figure insert: %w", err)
	}
	defer rowStmt.Close()

	vecStmt, err := tx.PrepareContext(ctx, `INSERT INTO `+figuresVecTable+` (figure_id, embedding) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare figure vector insert: %w", err)
	}
	defer vecStmt.Close()

	for i, f := range figures {
		// description mirrors the caption until a richer source exists
		_, err := rowStmt.ExecContext(ctx,
			f.figureID, params.PaperID, f.figureType, f.caption, f.caption,
			nullableStr(f.imagePath), nullableInt(f.page), f.chapterIdx, f.sectionIdx,
			params.Title, marshalList(params.Authors), nullableInt(params.Year), nullableStr(params.Venue),
			marshalList(params.Tags))
		if err != nil {
			return fmt.Errorf("failed to insert figure %s: %w", f.figureID, err)
		}
		if _, err := vecStmt.ExecContext(ctx, f.figureID, serializeVector(embeddings[i])); err != nil {
			return fmt.Errorf("failed to insert embedding for %s: %w", f.figureID, err)
		}
	}
	return tx.Commit()
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
