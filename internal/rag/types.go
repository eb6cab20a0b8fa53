package rag

// ChunkSummary is a short preview of a neighboring chunk.
type ChunkSummary struct {
	ChunkID     string `json:"chunk_id"`
	TextPreview string `json:"text_preview"`
	Depth       string `json:"depth"`
}

// ReferencedFigure is a figure projection attached to a chunk result.
type ReferencedFigure struct {
	FigureID    string `json:"figure_id"`
	FigureType  string `json:"figure_type"`
	Caption     string `json:"caption"`
	Description string `json:"description"`
}

// PositionContext reports where a chunk sits in its paper's hierarchy.
// Totals are computed from the chunks table, never cached.
type PositionContext struct {
	TotalChunksInSection   int  `json:"total_chunks_in_section"`
	TotalSectionsInChapter int  `json:"total_sections_in_chapter"`
	TotalChaptersInPaper   int  `json:"total_chapters_in_paper"`
	IsFirstInSection       bool `json:"is_first_in_section"`
	IsLastInSection        bool `json:"is_last_in_section"`
}

// ChunkWithPosition is a fully enriched chunk.
type ChunkWithPosition struct {
	ChunkID           string             `json:"chunk_id"`
	PaperID           string             `json:"paper_id"`
	Title             string             `json:"title"`
	Authors           []string           `json:"authors"`
	Year              *int               `json:"year,omitempty"`
	Venue             *string            `json:"venue,omitempty"`
	Text              string             `json:"text"`
	ChapterTitle      string             `json:"chapter_title"`
	ChapterIdx        int                `json:"chapter_idx"`
	SectionTitle      string             `json:"section_title"`
	SectionIdx        int                `json:"section_idx"`
	ChunkIdx          int                `json:"chunk_idx"`
	Depth             string             `json:"depth"`
	FigureIDs         []string           `json:"figure_ids"`
	ReferencedFigures []ReferencedFigure `json:"referenced_figures"`
	Position          PositionContext    `json:"position"`
}

// SearchResult is one semantic-search hit with reading-order neighbors.
type SearchResult struct {
	Chunk ChunkWithPosition `json:"chunk"`
	Prev  *ChunkSummary     `json:"prev,omitempty"`
	Next  *ChunkSummary     `json:"next,omitempty"`
	Score float64           `json:"score"`
}

// ChunkResult is a direct chunk fetch with neighbors.
type ChunkResult struct {
	Chunk ChunkWithPosition `json:"chunk"`
	Prev  *ChunkSummary     `json:"prev,omitempty"`
	Next  *ChunkSummary     `json:"next,omitempty"`
}

// SectionResult holds all chunks of one section in reading order.
type SectionResult struct {
	PaperID      string              `json:"paper_id"`
	ChapterTitle string              `json:"chapter_title"`
	SectionTitle string              `json:"section_title"`
	Chunks       []ChunkWithPosition `json:"chunks"`
	TotalChunks  int                 `json:"total_chunks"`
}

// ChapterSection is one section group inside a chapter result.
type ChapterSection struct {
	SectionIdx   int                 `json:"section_idx"`
	SectionTitle string              `json:"section_title"`
	Chunks       []ChunkWithPosition `json:"chunks"`
}

// ChapterResult holds a chapter's chunks grouped by section.
type ChapterResult struct {
	PaperID      string           `json:"paper_id"`
	ChapterTitle string           `json:"chapter_title"`
	ChapterIdx   int              `json:"chapter_idx"`
	Sections     []ChapterSection `json:"sections"`
	TotalChunks  int              `json:"total_chunks"`
	FigureIDs    []string         `json:"figure_ids"`
}

// FigureResult is a figure record as returned to callers.
type FigureResult struct {
	FigureID     string   `json:"figure_id"`
	PaperID      string   `json:"paper_id"`
	FigureType   string   `json:"figure_type"`
	Caption      string   `json:"caption"`
	Description  string   `json:"description"`
	ImagePath    *string  `json:"image_path,omitempty"`
	Page         *int     `json:"page,omitempty"`
	ReferencedBy []string `json:"referenced_by"`
}

// OutlineSection is one section entry in a paper outline.
type OutlineSection struct {
	SectionIdx   int    `json:"section_idx"`
	SectionTitle string `json:"section_title"`
	ChunkCount   int    `json:"chunk_count"`
}

// OutlineChapter is one chapter entry in a paper outline.
type OutlineChapter struct {
	ChapterIdx   int              `json:"chapter_idx"`
	ChapterTitle string           `json:"chapter_title"`
	Sections     []OutlineSection `json:"sections"`
	FigureCount  int              `json:"figure_count"`
}

// PaperOutline is the nested chapter/section structure of one paper.
type PaperOutline struct {
	PaperID      string           `json:"paper_id"`
	Title        string           `json:"title"`
	Authors      []string         `json:"authors"`
	Year         *int             `json:"year,omitempty"`
	Venue        *string          `json:"venue,omitempty"`
	Tags         []string         `json:"tags"`
	Chapters     []OutlineChapter `json:"chapters"`
	TotalChunks  int              `json:"total_chunks"`
	TotalFigures int              `json:"total_figures"`
}

// PaperSummary is one row of the corpus listing.
type PaperSummary struct {
	PaperID     string   `json:"paper_id"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Year        *int     `json:"year,omitempty"`
	Venue       *string  `json:"venue,omitempty"`
	Tags        []string `json:"tags"`
	ChunkCount  int      `json:"chunk_count"`
	FigureCount int      `json:"figure_count"`
}

// TagSummary is one row of the tag aggregation.
type TagSummary struct {
	Tag        string `json:"tag"`
	PaperCount int    `json:"paper_count"`
}

// SearchParams are the inputs for semantic search.
type SearchParams struct {
	Query         string
	PaperIDs      []string
	ChapterIdx    *int
	SectionIdx    *int
	FilterYearMin *int
	FilterYearMax *int
	FilterVenue   string
	FilterTags    []string
	FilterDepth   string
	Limit         int
}

// SearchFiguresParams are the inputs for figure search.
type SearchFiguresParams struct {
	Query            string
	PaperIDs         []string
	FilterFigureType string
	Limit            int
}

// ListPapersParams are the inputs for the corpus listing.
type ListPapersParams struct {
	PaperIDs      []string
	FilterYearMin *int
	FilterYearMax *int
	FilterVenue   string
	FilterTags    []string
	FilterAuthors []string
	SortBy        string
	Limit         int
}

// ListTagsParams are the inputs for the tag aggregation.
type ListTagsParams struct {
	PaperIDs []string
}

// IngestStats reports what one ingest wrote.
type IngestStats struct {
	ChunksAdded  int `json:"chunks_added"`
	FiguresAdded int `json:"figures_added"`
}
