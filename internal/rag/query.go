package rag

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Engine answers read queries against the chunk and figure tables. It
// never writes; the ingestor owns all writes.
type Engine struct {
	store *Store
}

// NewEngine creates a query engine over the store.
func NewEngine(store *Store) *Engine {
	return &Engine{store: store}
}

const chunkColumns = `chunk_id, paper_id, chapter_title, chapter_idx, section_title, section_idx,
	chunk_idx, depth, text, title, authors, year, venue, tags, figure_ids`

type chunkData struct {
	chunkID      string
	paperID      string
	chapterTitle string
	chapterIdx   int
	sectionTitle string
	sectionIdx   int
	chunkIdx     int
	depth        string
	text         string
	title        string
	authors      []string
	year         *int
	venue        *string
	tags         []string
	figureIDs    []string
}

func scanChunkRow(scan func(dest ...any) error) (chunkData, error) {
	var d chunkData
	var authorsJSON, tagsJSON, figureIDsJSON string
	var year sql.NullInt64
	var venue sql.NullString
	err := scan(&d.chunkID, &d.paperID, &d.chapterTitle, &d.chapterIdx, &d.sectionTitle, &d.sectionIdx,
		&d.chunkIdx, &d.depth, &d.text, &d.title, &authorsJSON, &year, &venue, &tagsJSON, &figureIDsJSON)
	if err != nil {
		return d, err
	}
	if year.Valid {
		y := int(year.Int64)
		d.year = &y
	}
	if venue.Valid {
		v := venue.String
		d.venue = &v
	}
	d.authors = unmarshalList(authorsJSON)
	d.tags = unmarshalList(tagsJSON)
	d.figureIDs = unmarshalList(figureIDsJSON)
	return d, nil
}

func unmarshalList(s string) []string {
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err != nil || list == nil {
		return []string{}
	}
	return list
}

func (e *Engine) queryChunks(ctx context.Context, where string, orderBy string, args ...any) ([]chunkData, error) {
	q := "SELECT " + chunkColumns + " FROM " + chunksTable
	if where != "" {
		q += " WHERE " + where
	}
	if orderBy != "" {
		q += " ORDER BY " + orderBy
	}
	rows, err := e.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("chunk query failed: %w", err)
	}
	defer rows.Close()

	var out []chunkData
	for rows.Next() {
		d, err := scanChunkRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func textPreview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// fetchNeighbors returns short previews of the chunks immediately
// before and after the given position within the same section.
func (e *Engine) fetchNeighbors(ctx context.Context, paperID string, chapterIdx, sectionIdx, chunkIdx int) (*ChunkSummary, *ChunkSummary, error) {
	fetch := func(idx int) (*ChunkSummary, error) {
		var id, text, depth string
		err := e.store.db.QueryRowContext(ctx,
			"SELECT chunk_id, text, depth FROM "+chunksTable+
				" WHERE paper_id = ? AND chapter_idx = ? AND section_idx = ? AND chunk_idx = ?",
			paperID, chapterIdx, sectionIdx, idx).Scan(&id, &text, &depth)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("neighbor query failed: %w", err)
		}
		return &ChunkSummary{ChunkID: id, TextPreview: textPreview(text, 120), Depth: depth}, nil
	}

	var prev *ChunkSummary
	if chunkIdx > 0 {
		p, err := fetch(chunkIdx - 1)
		if err != nil {
			return nil, nil, err
		}
		prev = p
	}
	next, err := fetch(chunkIdx + 1)
	if err != nil {
		return nil, nil, err
	}
	return prev, next, nil
}

// resolveFigures projects the figure rows named by a chunk's
// figure_ids list.
func (e *Engine) resolveFigures(ctx context.Context, figureIDs []string) ([]ReferencedFigure, error) {
	if len(figureIDs) == 0 {
		return []ReferencedFigure{}, nil
	}
	quoted := make([]string, len(figureIDs))
	for i, id := range figureIDs {
		quoted[i] = "'" + escapeSQL(id) + "'"
	}
	q := "SELECT figure_id, figure_type, caption, description FROM " + figuresTable +
		" WHERE figure_id IN (" + strings.Join(quoted, ", ") + ")"
	rows, err := e.store.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("figure lookup failed: %w", err)
	}
	defer rows.Close()

	results := []ReferencedFigure{}
	for rows.Next() {
		var f ReferencedFigure
		if err := rows.Scan(&f.FigureID, &f.FigureType, &f.Caption, &f.Description); err != nil {
			return nil, fmt.Errorf("failed to scan figure row: %w", err)
		}
		results = append(results, f)
	}
	return results, rows.Err()
}

// positionContext computes hierarchy totals for a chunk from the chunks
// table; nothing is cached.
func (e *Engine) positionContext(ctx context.Context, paperID string, chapterIdx, sectionIdx, chunkIdx int) (PositionContext, error) {
	var pos PositionContext
	err := e.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+chunksTable+" WHERE paper_id = ? AND chapter_idx = ? AND section_idx = ?",
		paperID, chapterIdx, sectionIdx).Scan(&pos.TotalChunksInSection)
	if err != nil {
		return pos, fmt.Errorf("section count failed: %w", err)
	}
	err = e.store.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT section_idx) FROM "+chunksTable+" WHERE paper_id = ? AND chapter_idx = ?",
		paperID, chapterIdx).Scan(&pos.TotalSectionsInChapter)
	if err != nil {
		return pos, fmt.Errorf("chapter count failed: %w", err)
	}
	err = e.store.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT chapter_idx) FROM "+chunksTable+" WHERE paper_id = ?",
		paperID).Scan(&pos.TotalChaptersInPaper)
	if err != nil {
		return pos, fmt.Errorf("paper count failed: %w", err)
	}
	pos.IsFirstInSection = chunkIdx == 0
	pos.IsLastInSection = chunkIdx+1 >= pos.TotalChunksInSection
	return pos, nil
}

func (e *Engine) buildChunkWithPosition(ctx context.Context, d chunkData) (ChunkWithPosition, error) {
	pos, err := e.positionContext(ctx, d.paperID, d.chapterIdx, d.sectionIdx, d.chunkIdx)
	if err != nil {
		return ChunkWithPosition{}, err
	}
	figures, err := e.resolveFigures(ctx, d.figureIDs)
	if err != nil {
		return ChunkWithPosition{}, err
	}
	return ChunkWithPosition{
		ChunkID:           d.chunkID,
		PaperID:           d.paperID,
		Title:             d.title,
		Authors:           d.authors,
		Year:              d.year,
		Venue:             d.venue,
		Text:              d.text,
		ChapterTitle:      d.chapterTitle,
		ChapterIdx:        d.chapterIdx,
		SectionTitle:      d.sectionTitle,
		SectionIdx:        d.sectionIdx,
		ChunkIdx:          d.chunkIdx,
		Depth:             d.depth,
		FigureIDs:         d.figureIDs,
		ReferencedFigures: figures,
		Position:          pos,
	}, nil
}

// Search performs semantic search across indexed paper chunks.
func (e *Engine) Search(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	firstPaper := ""
	if len(params.PaperIDs) > 0 {
		firstPaper = params.PaperIDs[0]
	}
	if err := ValidateScope(params.ChapterIdx, params.SectionIdx, firstPaper); err != nil {
		return nil, err
	}

	embedding, err := e.store.EmbedQuery(ctx, params.Query)
	if err != nil {
		return nil, err
	}

	fb := NewFilterBuilder().PaperIDs(params.PaperIDs)
	if params.ChapterIdx != nil {
		fb.ChapterIdx(*params.ChapterIdx)
	}
	if params.SectionIdx != nil {
		fb.SectionIdx(*params.SectionIdx)
	}
	fb.YearRange(params.FilterYearMin, params.FilterYearMax)
	if params.FilterVenue != "" {
		fb.EqStr("venue", params.FilterVenue)
	}
	if params.FilterDepth != "" {
		fb.EqStr("depth", params.FilterDepth)
	}
	fb.TagsAny(params.FilterTags)

	q := `SELECT ` + prefixColumns("c", chunkColumns) + `, v.distance
		FROM ` + chunksVecTable + ` v JOIN ` + chunksTable + ` c ON c.chunk_id = v.chunk_id
		WHERE v.embedding MATCH ? AND k = ?`
	if filter := fb.Build(); filter != "" {
		q += " AND " + filter
	}
	q += " ORDER BY v.distance"

	rows, err := e.store.db.QueryContext(ctx, q, serializeVector(embedding), params.Limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}
	defer rows.Close()

	type hit struct {
		data  chunkData
		score float64
	}
	var hits []hit
	for rows.Next() {
		var d chunkData
		var score float64
		var authorsJSON, tagsJSON, figureIDsJSON string
		var year sql.NullInt64
		var venue sql.NullString
		err := rows.Scan(&d.chunkID, &d.paperID, &d.chapterTitle, &d.chapterIdx, &d.sectionTitle, &d.sectionIdx,
			&d.chunkIdx, &d.depth, &d.text, &d.title, &authorsJSON, &year, &venue, &tagsJSON, &figureIDsJSON, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		if year.Valid {
			y := int(year.Int64)
			d.year = &y
		}
		if venue.Valid {
			v := venue.String
			d.venue = &v
		}
		d.authors = unmarshalList(authorsJSON)
		d.tags = unmarshalList(tagsJSON)
		d.figureIDs = unmarshalList(figureIDsJSON)
		hits = append(hits, hit{data: d, score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}

	results := []SearchResult{}
	for _, h := range hits {
		chunk, err := e.buildChunkWithPosition(ctx, h.data)
		if err != nil {
			return nil, err
		}
		prev, next, err := e.fetchNeighbors(ctx, h.data.paperID, h.data.chapterIdx, h.data.sectionIdx, h.data.chunkIdx)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Chunk: chunk, Prev: prev, Next: next, Score: h.score})
	}
	return results, nil
}

// SearchFigures performs semantic search over figure captions.
func (e *Engine) SearchFigures(ctx context.Context, params SearchFiguresParams) ([]FigureResult, error) {
	embedding, err := e.store.EmbedQuery(ctx, params.Query)
	if err != nil {
		return nil, err
	}

	fb := NewFilterBuilder().PaperIDs(params.PaperIDs)
	if params.FilterFigureType != "" {
		fb.EqStr("figure_type", params.FilterFigureType)
	}

	q := `SELECT f.figure_id, f.paper_id, f.figure_type, f.caption, f.description, f.image_path, f.page, v.distance
		FROM ` + figuresVecTable + ` v JOIN ` + figuresTable + ` f ON f.figure_id = v.figure_id
		WHERE v.embedding MATCH ? AND k = ?`
	if filter := fb.Build(); filter != "" {
		q += " AND " + filter
	}
	q += " ORDER BY v.distance"

	rows, err := e.store.db.QueryContext(ctx, q, serializeVector(embedding), params.Limit)
	if err != nil {
		return nil, fmt.Errorf("figure search failed: %w", err)
	}
	defer rows.Close()

	results := []FigureResult{}
	for rows.Next() {
		f, err := scanFigureRow(rows.Scan, true)
		if err != nil {
			return nil, err
		}
		results = append(results, f)
	}
	return results, rows.Err()
}

func scanFigureRow(scan func(dest ...any) error, withDistance bool) (FigureResult, error) {
	var f FigureResult
	var imagePath sql.NullString
	var page sql.NullInt64
	dest := []any{&f.FigureID, &f.PaperID, &f.FigureType, &f.Caption, &f.Description, &imagePath, &page}
	if withDistance {
		var distance float64
		dest = append(dest, &distance)
	}
	if err := scan(dest...); err != nil {
		return f, fmt.Errorf("failed to scan figure row: %w", err)
	}
	if imagePath.Valid {
		p := imagePath.String
		f.ImagePath = &p
	}
	if page.Valid {
		p := int(page.Int64)
		f.Page = &p
	}
	// the reverse edge is a future extension
	f.ReferencedBy = []string{}
	return f, nil
}

// GetChunk returns a single chunk by id with prev/next neighbors.
func (e *Engine) GetChunk(ctx context.Context, chunkID string) (*ChunkResult, error) {
	rows, err := e.queryChunks(ctx, "chunk_id = ?", "", chunkID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("chunk %s: %w", chunkID, ErrNotFound)
	}
	d := rows[0]
	chunk, err := e.buildChunkWithPosition(ctx, d)
	if err != nil {
		return nil, err
	}
	prev, next, err := e.fetchNeighbors(ctx, d.paperID, d.chapterIdx, d.sectionIdx, d.chunkIdx)
	if err != nil {
		return nil, err
	}
	return &ChunkResult{Chunk: chunk, Prev: prev, Next: next}, nil
}

// GetSection returns all chunks of a section in reading order. An empty
// section yields an empty list; the coordinate itself is not an entity.
func (e *Engine) GetSection(ctx context.Context, paperID string, chapterIdx, sectionIdx int) (*SectionResult, error) {
	rows, err := e.queryChunks(ctx,
		"paper_id = ? AND chapter_idx = ? AND section_idx = ?", "chunk_idx",
		paperID, chapterIdx, sectionIdx)
	if err != nil {
		return nil, err
	}

	result := &SectionResult{PaperID: paperID, Chunks: []ChunkWithPosition{}}
	for _, d := range rows {
		if result.ChapterTitle == "" {
			result.ChapterTitle = d.chapterTitle
			result.SectionTitle = d.sectionTitle
		}
		chunk, err := e.buildChunkWithPosition(ctx, d)
		if err != nil {
			return nil, err
		}
		result.Chunks = append(result.Chunks, chunk)
	}
	result.TotalChunks = len(result.Chunks)
	return result, nil
}

// GetChapter returns a chapter's chunks grouped by section, plus the
// deduplicated union of figure ids referenced by its chunks.
func (e *Engine) GetChapter(ctx context.Context, paperID string, chapterIdx int) (*ChapterResult, error) {
	rows, err := e.queryChunks(ctx,
		"paper_id = ? AND chapter_idx = ?", "section_idx, chunk_idx",
		paperID, chapterIdx)
	if err != nil {
		return nil, err
	}

	result := &ChapterResult{
		PaperID:    paperID,
		ChapterIdx: chapterIdx,
		Sections:   []ChapterSection{},
		FigureIDs:  []string{},
	}
	seenFigures := map[string]bool{}
	for _, d := range rows {
		if result.ChapterTitle == "" {
			result.ChapterTitle = d.chapterTitle
		}
		for _, fid := range d.figureIDs {
			if !seenFigures[fid] {
				seenFigures[fid] = true
				result.FigureIDs = append(result.FigureIDs, fid)
			}
		}
		if n := len(result.Sections); n == 0 || result.Sections[n-1].SectionIdx != d.sectionIdx {
			result.Sections = append(result.Sections, ChapterSection{
				SectionIdx:   d.sectionIdx,
				SectionTitle: d.sectionTitle,
				Chunks:       []ChunkWithPosition{},
			})
		}
		chunk, err := e.buildChunkWithPosition(ctx, d)
		if err != nil {
			return nil, err
		}
		last := &result.Sections[len(result.Sections)-1]
		last.Chunks = append(last.Chunks, chunk)
		result.TotalChunks++
	}
	return result, nil
}

// GetFigure returns a figure record by id.
func (e *Engine) GetFigure(ctx context.Context, figureID string) (*FigureResult, error) {
	row := e.store.db.QueryRowContext(ctx,
		"SELECT figure_id, paper_id, figure_type, caption, description, image_path, page FROM "+
			figuresTable+" WHERE figure_id = ?", figureID)
	f, err := scanFigureRow(row.Scan, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("figure %s: %w", figureID, ErrNotFound)
		}
		return nil, err
	}
	return &f, nil
}

// GetPaperOutline builds the nested chapter/section structure of a
// paper with per-section chunk counts and per-chapter figure counts.
func (e *Engine) GetPaperOutline(ctx context.Context, paperID string) (*PaperOutline, error) {
	rows, err := e.store.db.QueryContext(ctx,
		`SELECT chapter_idx, chapter_title, section_idx, section_title, title, authors, year, venue, tags
		 FROM `+chunksTable+` WHERE paper_id = ? ORDER BY chapter_idx, section_idx`, paperID)
	if err != nil {
		return nil, fmt.Errorf("outline query failed: %w", err)
	}
	defer rows.Close()

	outline := &PaperOutline{PaperID: paperID, Chapters: []OutlineChapter{}}
	sectionCounts := map[[2]int]int{}
	chapterTitles := map[int]string{}
	sectionTitles := map[[2]int]string{}

	for rows.Next() {
		var chIdx, secIdx int
		var chTitle, secTitle, title, authorsJSON, tagsJSON string
		var year sql.NullInt64
		var venue sql.NullString
		if err := rows.Scan(&chIdx, &chTitle, &secIdx, &secTitle, &title, &authorsJSON, &year, &venue, &tagsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan outline row: %w", err)
		}
		if outline.TotalChunks == 0 {
			outline.Title = title
			outline.Authors = unmarshalList(authorsJSON)
			outline.Tags = unmarshalList(tagsJSON)
			if year.Valid {
				y := int(year.Int64)
				outline.Year = &y
			}
			if venue.Valid {
				v := venue.String
				outline.Venue = &v
			}
		}
		chapterTitles[chIdx] = chTitle
		sectionTitles[[2]int{chIdx, secIdx}] = secTitle
		sectionCounts[[2]int{chIdx, secIdx}]++
		outline.TotalChunks++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outline query failed: %w", err)
	}
	if outline.TotalChunks == 0 {
		return nil, fmt.Errorf("paper %s: %w", paperID, ErrNotFound)
	}

	figPerChapter := map[int]int{}
	figRows, err := e.store.db.QueryContext(ctx,
		"SELECT chapter_idx FROM "+figuresTable+" WHERE paper_id = ?", paperID)
	if err != nil {
		return nil, fmt.Errorf("figure count query failed: %w", err)
	}
	defer figRows.Close()
	for figRows.Next() {
		var chIdx int
		if err := figRows.Scan(&chIdx); err != nil {
			return nil, fmt.Errorf("failed to scan figure count row: %w", err)
		}
		figPerChapter[chIdx]++
		outline.TotalFigures++
	}
	if err := figRows.Err(); err != nil {
		return nil, fmt.Errorf("figure count query failed: %w", err)
	}

	chapterIdxs := make([]int, 0, len(chapterTitles))
	for idx := range chapterTitles {
		chapterIdxs = append(chapterIdxs, idx)
	}
	sort.Ints(chapterIdxs)
	for _, chIdx := range chapterIdxs {
		chapter := OutlineChapter{
			ChapterIdx:   chIdx,
			ChapterTitle: chapterTitles[chIdx],
			Sections:     []OutlineSection{},
			FigureCount:  figPerChapter[chIdx],
		}
		var secIdxs []int
		for key := range sectionCounts {
			if key[0] == chIdx {
				secIdxs = append(secIdxs, key[1])
			}
		}
		sort.Ints(secIdxs)
		for _, secIdx := range secIdxs {
			key := [2]int{chIdx, secIdx}
			chapter.Sections = append(chapter.Sections, OutlineSection{
				SectionIdx:   secIdx,
				SectionTitle: sectionTitles[key],
				ChunkCount:   sectionCounts[key],
			})
		}
		outline.Chapters = append(outline.Chapters, chapter)
	}
	return outline, nil
}

// ListPapers aggregates the corpus by paper with chunk and figure
// counts, optional filters, sort, and limit.
func (e *Engine) ListPapers(ctx context.Context, params ListPapersParams) ([]PaperSummary, error) {
	fb := NewFilterBuilder().PaperIDs(params.PaperIDs).YearRange(params.FilterYearMin, params.FilterYearMax)
	if params.FilterVenue != "" {
		fb.EqStr("venue", params.FilterVenue)
	}
	fb.TagsAny(params.FilterTags)

	q := "SELECT paper_id, title, authors, year, venue, tags, COUNT(*) FROM " + chunksTable
	if filter := fb.Build(); filter != "" {
		q += " WHERE " + filter
	}
	q += " GROUP BY paper_id"

	rows, err := e.store.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("paper listing failed: %w", err)
	}
	defer rows.Close()

	byID := map[string]*PaperSummary{}
	var papers []*PaperSummary
	for rows.Next() {
		var p PaperSummary
		var authorsJSON, tagsJSON string
		var year sql.NullInt64
		var venue sql.NullString
		if err := rows.Scan(&p.PaperID, &p.Title, &authorsJSON, &year, &venue, &tagsJSON, &p.ChunkCount); err != nil {
			return nil, fmt.Errorf("failed to scan paper row: %w", err)
		}
		p.Authors = unmarshalList(authorsJSON)
		p.Tags = unmarshalList(tagsJSON)
		if year.Valid {
			y := int(year.Int64)
			p.Year = &y
		}
		if venue.Valid {
			v := venue.String
			p.Venue = &v
		}
		byID[p.PaperID] = &p
		papers = append(papers, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("paper listing failed: %w", err)
	}

	// author filter is a case-insensitive substring post-filter; lists
	// are JSON text so this stays out of the predicate
	if len(params.FilterAuthors) > 0 {
		var kept []*PaperSummary
		for _, p := range papers {
			match := false
			for _, af := range params.FilterAuthors {
				for _, a := range p.Authors {
					if strings.Contains(strings.ToLower(a), strings.ToLower(af)) {
						match = true
						break
					}
				}
				if match {
					break
				}
			}
			if match {
				kept = append(kept, p)
			} else {
				delete(byID, p.PaperID)
			}
		}
		papers = kept
	}

	figRows, err := e.store.db.QueryContext(ctx,
		"SELECT paper_id, COUNT(*) FROM "+figuresTable+" GROUP BY paper_id")
	if err != nil {
		return nil, fmt.Errorf("figure count query failed: %w", err)
	}
	defer figRows.Close()
	for figRows.Next() {
		var pid string
		var n int
		if err := figRows.Scan(&pid, &n); err != nil {
			return nil, fmt.Errorf("failed to scan figure count row: %w", err)
		}
		if p, ok := byID[pid]; ok {
			p.FigureCount = n
		}
	}
	if err := figRows.Err(); err != nil {
		return nil, fmt.Errorf("figure count query failed: %w", err)
	}

	switch params.SortBy {
	case "title":
		sort.Slice(papers, func(i, j int) bool { return papers[i].Title < papers[j].Title })
	default:
		// year descending; papers without a year sort last
		sort.Slice(papers, func(i, j int) bool {
			yi, yj := -1, -1
			if papers[i].Year != nil {
				yi = *papers[i].Year
			}
			if papers[j].Year != nil {
				yj = *papers[j].Year
			}
			return yi > yj
		})
	}

	if params.Limit > 0 && len(papers) > params.Limit {
		papers = papers[:params.Limit]
	}
	out := make([]PaperSummary, len(papers))
	for i, p := range papers {
		out[i] = *p
	}
	return out, nil
}

// ListTags returns (tag, paper_count) sorted by descending count then
// ascending tag.
func (e *Engine) ListTags(ctx context.Context, params ListTagsParams) ([]TagSummary, error) {
	q := "SELECT paper_id, tags FROM " + chunksTable
	if filter := NewFilterBuilder().PaperIDs(params.PaperIDs).Build(); filter != "" {
		q += " WHERE " + filter
	}
	rows, err := e.store.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("tag listing failed: %w", err)
	}
	defer rows.Close()

	tagPapers := map[string]map[string]bool{}
	for rows.Next() {
		var pid, tagsJSON string
		if err := rows.Scan(&pid, &tagsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		for _, tag := range unmarshalList(tagsJSON) {
			if tagPapers[tag] == nil {
				tagPapers[tag] = map[string]bool{}
			}
			tagPapers[tag][pid] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tag listing failed: %w", err)
	}

	result := []TagSummary{}
	for tag, papers := range tagPapers {
		result = append(result, TagSummary{Tag: tag, PaperCount: len(papers)})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PaperCount != result[j].PaperCount {
			return result[i].PaperCount > result[j].PaperCount
		}
		return result[i].Tag < result[j].Tag
	})
	return result, nil
}

// prefixColumns qualifies a comma-separated column list with a table
// alias for use in joins.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
