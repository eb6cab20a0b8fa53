package rag

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"testing"
)

// hashEmbedder is a deterministic stand-in for the real model: each
// text maps to a one-hot vector picked by its hash. The fixture texts
// land in distinct slots, so searching with a chunk's exact text ranks
// that chunk first.
type hashEmbedder struct{}

func (hashEmbedder) Dimension() int { return EmbedDim }

func oneHot(text string) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	v := make([]float32, EmbedDim)
	v[int(h.Sum32())%EmbedDim] = 1
	return v
}

func (hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = oneHot(t)
	}
	return out, nil
}

func (hashEmbedder) EmbedQuery(_ context.Context, query string) ([]float32, error) {
	return oneHot(query), nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), hashEmbedder{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// writeExtraction writes a layout-analysis fixture under
// <root>/<key>/<key>.json and returns the cache dir.
func writeExtraction(t *testing.T, root, key string, blocks []layoutBlock) string {
	t.Helper()
	dir := filepath.Join(root, key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	doc := layoutDocument{Children: []layoutPage{{Children: blocks}}}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, key+".json"), raw, 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func fixtureBlocks() []layoutBlock {
	return []layoutBlock{
		headerBlock("<h1>A Study of Things</h1>"),
		headerBlock("<h2>1 INTRODUCTION</h2>"),
		textBlock("<p>Intro text about GPU rendering.</p>"),
		headerBlock("<h3>1.1 Motivation</h3>"),
		textBlock("<p>First motivation paragraph.</p>"),
		textBlock("<p>Second motivation paragraph.</p>"),
		textBlock("<p>Third motivation paragraph.</p>"),
		{BlockType: "Figure", HTML: `<img src="f1.png" alt="Figure 1: Architecture overview"/>`},
		{BlockType: "Table", HTML: `<img src="t1.png" alt="Table 1: Benchmark results"/>`},
		headerBlock("<h2>2 RELATED WORK</h2>"),
		textBlock("<p>Related work discussion.</p>"),
	}
}

func ingestFixture(t *testing.T, store *Store, paperID string, tags []string) IngestParams {
	t.Helper()
	root := t.TempDir()
	key := "KEY0TEST"
	dir := writeExtraction(t, root, key, fixtureBlocks())
	year := 2021
	venue := "SIGGRAPH"
	params := IngestParams{
		ItemKey:  key,
		PaperID:  paperID,
		Title:    "A Study of Things",
		Authors:  []string{"Ada Lovelace", "Alan Turing"},
		Year:     &year,
		Venue:    &venue,
		Tags:     tags,
		CacheDir: dir,
	}
	ing := NewIngestor(store, root)
	if _, err := ing.IngestPaper(context.Background(), params); err != nil {
		t.Fatalf("IngestPaper failed: %v", err)
	}
	return params
}

func TestIngest_CountsAndIDs(t *testing.T) {
	store := newTestStore(t)
	ingestFixture(t, store, "P", nil)
	engine := NewEngine(store)

	result, err := engine.GetChunk(context.Background(), "P/ch1/s1/p1")
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if result.Chunk.Text != "Second motivation paragraph." {
		t.Errorf("text = %q", result.Chunk.Text)
	}
	if result.Prev == nil || result.Prev.ChunkID != "P/ch1/s1/p0" {
		t.Errorf("prev = %+v", result.Prev)
	}
	if result.Next == nil || result.Next.ChunkID != "P/ch1/s1/p2" {
		t.Errorf("next = %+v", result.Next)
	}
}

func TestIngest_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ingestFixture(t, store, "DEDUP", nil)
	ingestFixture(t, store, "DEDUP", nil)
	engine := NewEngine(store)

	papers, err := engine.ListPapers(context.Background(), ListPapersParams{Limit: 10})
	if err != nil {
		t.Fatalf("ListPapers failed: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("got %d papers, want 1", len(papers))
	}
	if papers[0].ChunkCount != 5 {
		t.Errorf("chunk count after re-ingest = %d, want 5", papers[0].ChunkCount)
	}
	if papers[0].FigureCount != 2 {
		t.Errorf("figure count after re-ingest = %d, want 2", papers[0].FigureCount)
	}
}

func TestIngest_ChunkIndicesContiguous(t *testing.T) {
	store := newTestStore(t)
	ingestFixture(t, store, "P", nil)

	rows, err := store.db.Query(
		"SELECT chapter_idx, section_idx, chunk_idx FROM " + chunksTable + " ORDER BY chapter_idx, section_idx, chunk_idx")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	next := map[[2]int]int{}
	for rows.Next() {
		var ch, sec, idx int
		if err := rows.Scan(&ch, &sec, &idx); err != nil {
			t.Fatal(err)
		}
		key := [2]int{ch, sec}
		if idx != next[key] {
			t.Errorf("section (%d,%d): chunk_idx %d, want %d", ch, sec, idx, next[key])
		}
		next[key]++
	}
}

func TestPositionContext(t *testing.T) {
	store := newTestStore(t)
	ingestFixture(t, store, "P", nil)
	engine := NewEngine(store)

	result, err := engine.GetChunk(context.Background(), "P/ch1/s1/p0")
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	pos := result.Chunk.Position
	if pos.TotalChunksInSection != 3 {
		t.Errorf("total chunks in section = %d, want 3", pos.TotalChunksInSection)
	}
	if pos.TotalSectionsInChapter != 2 {
		t.Errorf("total sections in chapter = %d, want 2", pos.TotalSectionsInChapter)
	}
	if pos.TotalChaptersInPaper != 2 {
		t.Errorf("total chapters in paper = %d, want 2", pos.TotalChaptersInPaper)
	}
	if !pos.IsFirstInSection {
		t.Error("p0 should be first in section")
	}
	if pos.IsLastInSection {
		t.Error("p0 of 3 should not be last in section")
	}
}

func TestPositionContext_SingleChapter(t *testing.T) {
	store := newTestStore(t)
	root := t.TempDir()
	dir := writeExtraction(t, root, "KEY4TEST", []layoutBlock{
		headerBlock("<h2>1 ONLY</h2>"),
		textBlock("<p>s0 chunk.</p>"),
		headerBlock("<h3>1.1 Sub</h3>"),
		textBlock("<p>s1 first.</p>"),
		textBlock("<p>s1 second.</p>"),
		textBlock("<p>s1 third.</p>"),
	})
	params := IngestParams{ItemKey: "KEY4TEST", PaperID: "S", Title: "Single", CacheDir: dir}
	if _, err := NewIngestor(store, root).IngestPaper(context.Background(), params); err != nil {
		t.Fatal(err)
	}

	result, err := NewEngine(store).GetChunk(context.Background(), "S/ch1/s1/p0")
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	pos := result.Chunk.Position
	if pos.TotalChunksInSection != 3 || pos.TotalSectionsInChapter != 2 || pos.TotalChaptersInPaper != 1 {
		t.Errorf("position = %+v", pos)
	}
	if !pos.IsFirstInSection || pos.IsLastInSection {
		t.Errorf("flags = first %v, last %v", pos.IsFirstInSection, pos.IsLastInSection)
	}
}

func TestGetChunk_NotFound(t *testing.T) {
	store := newTestStore(t)
	engine := NewEngine(store)
	_, err := engine.GetChunk(context.Background(), "missing/ch0/s0/p0")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestGetSection(t *testing.T) {
	store := newTestStore(t)
	ingestFixture(t, store, "P", nil)
	engine := NewEngine(store)

	result, err := engine.GetSection(context.Background(), "P", 1, 1)
	if err != nil {
		t.Fatalf("GetSection failed: %v", err)
	}
	if result.TotalChunks != 3 {
		t.Fatalf("got %d chunks, want 3", result.TotalChunks)
	}
	for i, c := range result.Chunks {
		if c.ChunkIdx != i {
			t.Errorf("chunk %d out of reading order: idx %d", i, c.ChunkIdx)
		}
	}
	if result.SectionTitle != "1.1 Motivation" {
		t.Errorf("section title = %q", result.SectionTitle)
	}
}

func TestGetSection_EmptyIsNotAnError(t *testing.T) {
	store := newTestStore(t)
	ingestFixture(t, store, "P", nil)
	engine := NewEngine(store)

	result, err := engine.GetSection(context.Background(), "P", 1, 9)
	if err != nil {
		t.Fatalf("empty section must not error: %v", err)
	}
	if len(result.Chunks) != 0 {
		t.Errorf("got %d chunks, want 0", len(result.Chunks))
	}
}

func TestGetChapter(t *testing.T) {
	store := newTestStore(t)
	ingestFixture(t, store, "P", nil)
	engine := NewEngine(store)

	result, err := engine.GetChapter(context.Background(), "P", 1)
	if err != nil {
		t.Fatalf("GetChapter failed: %v", err)
	}
	if result.ChapterTitle != "1 INTRODUCTION" {
		t.Errorf("chapter title = %q", result.ChapterTitle)
	}
	if len(result.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(result.Sections))
	}
	if result.Sections[0].SectionIdx != 0 || result.Sections[1].SectionIdx != 1 {
		t.Errorf("sections out of order: %d, %d", result.Sections[0].SectionIdx, result.Sections[1].SectionIdx)
	}
	if result.TotalChunks != 4 {
		t.Errorf("total chunks = %d, want 4", result.TotalChunks)
	}
}

func TestGetFigure(t *testing.T) {
	store := newTestStore(t)
	params := ingestFixture(t, store, "P", nil)
	engine := NewEngine(store)

	fig, err := engine.GetFigure(context.Background(), "P/fig1")
	if err != nil {
		t.Fatalf("GetFigure failed: %v", err)
	}
	if fig.FigureType != "figure" || fig.Caption != "Figure 1: Architecture overview" {
		t.Errorf("figure = %+v", fig)
	}
	if fig.Description != fig.Caption {
		t.Errorf("description should mirror caption, got %q", fig.Description)
	}
	if fig.ImagePath == nil || *fig.ImagePath != filepath.Join(params.CacheDir, "images", "f1.png") {
		t.Errorf("image path = %v", fig.ImagePath)
	}

	tbl, err := engine.GetFigure(context.Background(), "P/fig2")
	if err != nil {
		t.Fatalf("GetFigure failed: %v", err)
	}
	if tbl.FigureType != "table" {
		t.Errorf("figure type = %q, want table", tbl.FigureType)
	}

	if _, err := engine.GetFigure(context.Background(), "P/fig99"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestGetPaperOutline(t *testing.T) {
	store := newTestStore(t)
	ingestFixture(t, store, "P", []string{"graphics"})
	engine := NewEngine(store)

	outline, err := engine.GetPaperOutline(context.Background(), "P")
	if err != nil {
		t.Fatalf("GetPaperOutline failed: %v", err)
	}
	if outline.Title != "A Study of Things" {
		t.Errorf("title = %q", outline.Title)
	}
	if outline.TotalChunks != 5 || outline.TotalFigures != 2 {
		t.Errorf("totals = %d chunks, %d figures", outline.TotalChunks, outline.TotalFigures)
	}
	if len(outline.Chapters) != 2 {
		t.Fatalf("got %d chapters, want 2", len(outline.Chapters))
	}
	intro := outline.Chapters[0]
	if intro.ChapterIdx != 1 || len(intro.Sections) != 2 {
		t.Errorf("intro chapter = %+v", intro)
	}
	if intro.FigureCount != 2 {
		t.Errorf("intro figure count = %d, want 2", intro.FigureCount)
	}
	if intro.Sections[1].ChunkCount != 3 {
		t.Errorf("section 1.1 chunk count = %d, want 3", intro.Sections[1].ChunkCount)
	}

	if _, err := engine.GetPaperOutline(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestListPapers_FiltersAndSort(t *testing.T) {
	store := newTestStore(t)
	ingestFixture(t, store, "P", []string{"graphics"})

	// second paper with a different year and author set
	root := t.TempDir()
	key := "KEY1TEST"
	dir := writeExtraction(t, root, key, []layoutBlock{
		headerBlock("<h2>1 OVERVIEW</h2>"),
		textBlock("<p>Overview paragraph.</p>"),
	})
	year := 2018
	params := IngestParams{
		ItemKey: key, PaperID: "Q", Title: "Zebra Methods",
		Authors: []string{"Grace Hopper"}, Year: &year,
		Tags: []string{"systems"}, CacheDir: dir,
	}
	if _, err := NewIngestor(store, root).IngestPaper(context.Background(), params); err != nil {
		t.Fatalf("IngestPaper failed: %v", err)
	}

	engine := NewEngine(store)
	ctx := context.Background()

	all, err := engine.ListPapers(ctx, ListPapersParams{Limit: 10})
	if err != nil {
		t.Fatalf("ListPapers failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d papers, want 2", len(all))
	}
	// default sort: year descending
	if all[0].PaperID != "P" || all[1].PaperID != "Q" {
		t.Errorf("year sort order: %s, %s", all[0].PaperID, all[1].PaperID)
	}

	byTitle, err := engine.ListPapers(ctx, ListPapersParams{SortBy: "title", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if byTitle[0].Title != "A Study of Things" {
		t.Errorf("title sort order: %s first", byTitle[0].Title)
	}

	recent, err := engine.ListPapers(ctx, ListPapersParams{FilterYearMin: intPtr(2020), Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].PaperID != "P" {
		t.Errorf("year filter: %+v", recent)
	}

	byAuthor, err := engine.ListPapers(ctx, ListPapersParams{FilterAuthors: []string{"hopper"}, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(byAuthor) != 1 || byAuthor[0].PaperID != "Q" {
		t.Errorf("author filter: %+v", byAuthor)
	}

	byTag, err := engine.ListPapers(ctx, ListPapersParams{FilterTags: []string{"graphics"}, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(byTag) != 1 || byTag[0].PaperID != "P" {
		t.Errorf("tag filter: %+v", byTag)
	}
}

func TestListTags(t *testing.T) {
	store := newTestStore(t)
	ingestFixture(t, store, "P", []string{"graphics", "shared"})

	root := t.TempDir()
	dir := writeExtraction(t, root, "KEY2TEST", []layoutBlock{
		headerBlock("<h2>1 A</h2>"),
		textBlock("<p>text</p>"),
	})
	params := IngestParams{
		ItemKey: "KEY2TEST", PaperID: "Q", Title: "Other",
		Tags: []string{"shared"}, CacheDir: dir,
	}
	if _, err := NewIngestor(store, root).IngestPaper(context.Background(), params); err != nil {
		t.Fatal(err)
	}

	engine := NewEngine(store)
	tags, err := engine.ListTags(context.Background(), ListTagsParams{})
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("got %d tags, want 2", len(tags))
	}
	if tags[0].Tag != "shared" || tags[0].PaperCount != 2 {
		t.Errorf("first tag = %+v", tags[0])
	}
	if tags[1].Tag != "graphics" || tags[1].PaperCount != 1 {
		t.Errorf("second tag = %+v", tags[1])
	}
}

func TestSearch(t *testing.T) {
	store := newTestStore(t)
	ingestFixture(t, store, "P", nil)
	engine := NewEngine(store)

	results, err := engine.Search(context.Background(), SearchParams{
		Query: "Second motivation paragraph.",
		Limit: 3,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results")
	}
	top := results[0]
	if top.Chunk.ChunkID != "P/ch1/s1/p1" {
		t.Errorf("top hit = %q", top.Chunk.ChunkID)
	}
	if top.Chunk.Position.TotalChunksInSection != 3 {
		t.Errorf("hit not enriched: %+v", top.Chunk.Position)
	}
	if top.Prev == nil || top.Next == nil {
		t.Errorf("neighbors missing: prev=%v next=%v", top.Prev, top.Next)
	}
}

func TestSearch_ScopeValidation(t *testing.T) {
	store := newTestStore(t)
	engine := NewEngine(store)

	_, err := engine.Search(context.Background(), SearchParams{
		Query:      "anything",
		ChapterIdx: intPtr(1),
		Limit:      5,
	})
	if !errors.Is(err, ErrScope) {
		t.Errorf("chapter scope without paper must fail with ErrScope, got %v", err)
	}
}

func TestSearch_PaperScope(t *testing.T) {
	store := newTestStore(t)
	ingestFixture(t, store, "P", nil)

	root := t.TempDir()
	dir := writeExtraction(t, root, "KEY3TEST", []layoutBlock{
		headerBlock("<h2>1 A</h2>"),
		textBlock("<p>Unrelated content entirely.</p>"),
	})
	params := IngestParams{ItemKey: "KEY3TEST", PaperID: "Q", Title: "Other", CacheDir: dir}
	if _, err := NewIngestor(store, root).IngestPaper(context.Background(), params); err != nil {
		t.Fatal(err)
	}

	engine := NewEngine(store)
	results, err := engine.Search(context.Background(), SearchParams{
		Query:    "Intro text about GPU rendering.",
		PaperIDs: []string{"Q"},
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		if r.Chunk.PaperID != "Q" {
			t.Errorf("scoped search leaked paper %q", r.Chunk.PaperID)
		}
	}
}

func TestSearchFigures(t *testing.T) {
	store := newTestStore(t)
	ingestFixture(t, store, "P", nil)
	engine := NewEngine(store)

	results, err := engine.SearchFigures(context.Background(), SearchFiguresParams{
		Query: "Table 1: Benchmark results",
		Limit: 5,
	})
	if err != nil {
		t.Fatalf("SearchFigures failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results")
	}
	if results[0].FigureID != "P/fig2" {
		t.Errorf("top figure = %q", results[0].FigureID)
	}

	tables, err := engine.SearchFigures(context.Background(), SearchFiguresParams{
		Query:            "Benchmark results",
		FilterFigureType: "table",
		Limit:            5,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range tables {
		if f.FigureType != "table" {
			t.Errorf("type filter leaked %q", f.FigureType)
		}
	}
}
