package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"papers/internal/rag"
	"papers/internal/selection"
)

// Server exposes the RAG core and the selection subsystem as MCP tools
// over stdio.
type Server struct {
	engine     *rag.Engine
	ingestor   *rag.Ingestor
	selections *selection.Store
	resolver   *selection.Resolver
}

// New creates the tool server. The resolver may have a nil reference-
// manager client; selection_add then resolves scholarly-only.
func New(engine *rag.Engine, ingestor *rag.Ingestor, selections *selection.Store, resolver *selection.Resolver) *Server {
	return &Server{engine: engine, ingestor: ingestor, selections: selections, resolver: resolver}
}

// Run serves tools over stdio until the context ends.
func (s *Server) Run(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{Name: "papers", Version: "0.1.0"}, nil)
	s.register(server)
	return server.Run(ctx, &mcp.StdioTransport{})
}

type searchInput struct {
	Query      string   `json:"query" jsonschema:"the search query"`
	PaperIDs   []string `json:"paper_ids,omitempty" jsonschema:"restrict to these paper ids"`
	ChapterIdx *int     `json:"chapter_idx,omitempty" jsonschema:"restrict to one chapter (requires paper_ids)"`
	SectionIdx *int     `json:"section_idx,omitempty" jsonschema:"restrict to one section (requires chapter_idx)"`
	YearMin    *int     `json:"year_min,omitempty"`
	YearMax    *int     `json:"year_max,omitempty"`
	Venue      string   `json:"venue,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Depth      string   `json:"depth,omitempty"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum results, default 10"`
}

type searchOutput struct {
	Results []rag.SearchResult `json:"results"`
}

type searchFiguresInput struct {
	Query      string   `json:"query"`
	PaperIDs   []string `json:"paper_ids,omitempty"`
	FigureType string   `json:"figure_type,omitempty" jsonschema:"figure or table"`
	Limit      int      `json:"limit,omitempty"`
}

type searchFiguresOutput struct {
	Results []rag.FigureResult `json:"results"`
}

type chunkInput struct {
	ChunkID string `json:"chunk_id"`
}

type sectionInput struct {
	PaperID    string `json:"paper_id"`
	ChapterIdx int    `json:"chapter_idx"`
	SectionIdx int    `json:"section_idx"`
}

type chapterInput struct {
	PaperID    string `json:"paper_id"`
	ChapterIdx int    `json:"chapter_idx"`
}

type figureInput struct {
	FigureID string `json:"figure_id"`
}

type paperInput struct {
	PaperID string `json:"paper_id"`
}

type listPapersInput struct {
	PaperIDs []string `json:"paper_ids,omitempty"`
	YearMin  *int     `json:"year_min,omitempty"`
	YearMax  *int     `json:"year_max,omitempty"`
	Venue    string   `json:"venue,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Authors  []string `json:"authors,omitempty" jsonschema:"case-insensitive author substrings"`
	SortBy   string   `json:"sort_by,omitempty" jsonschema:"year (default) or title"`
	Limit    int      `json:"limit,omitempty"`
}

type listPapersOutput struct {
	Papers []rag.PaperSummary `json:"papers"`
}

type listTagsInput struct {
	PaperIDs []string `json:"paper_ids,omitempty"`
}

type listTagsOutput struct {
	Tags []rag.TagSummary `json:"tags"`
}

type selectionListInput struct{}

type selectionListOutput struct {
	Names  []string `json:"names"`
	Active string   `json:"active,omitempty"`
}

type selectionAddInput struct {
	Selection string `json:"selection,omitempty" jsonschema:"selection name or 1-based index; default active"`
	Input     string `json:"input" jsonschema:"item key, DOI, work id, or free-text title"`
}

type selectionAddOutput struct {
	Entry selection.Entry `json:"entry"`
	Added bool            `json:"added"`
}

type selectionRemoveInput struct {
	Selection string `json:"selection,omitempty"`
	Input     string `json:"input"`
}

type selectionRemoveOutput struct {
	Removed int `json:"removed"`
}

type ingestInput struct {
	ItemKey string `json:"item_key" jsonschema:"cache key of the extracted paper"`
	Force   bool   `json:"force,omitempty" jsonschema:"re-ingest even if already indexed"`
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	return limit
}

func (s *Server) register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_papers",
		Description: "Semantic search across indexed paper chunks with optional hierarchy scope and metadata filters.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, searchOutput, error) {
		results, err := s.engine.Search(ctx, rag.SearchParams{
			Query:         in.Query,
			PaperIDs:      in.PaperIDs,
			ChapterIdx:    in.ChapterIdx,
			SectionIdx:    in.SectionIdx,
			FilterYearMin: in.YearMin,
			FilterYearMax: in.YearMax,
			FilterVenue:   in.Venue,
			FilterTags:    in.Tags,
			FilterDepth:   in.Depth,
			Limit:         defaultLimit(in.Limit),
		})
		if err != nil {
			return nil, searchOutput{}, err
		}
		return nil, searchOutput{Results: results}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_figures",
		Description: "Semantic search over figure and table captions.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in searchFiguresInput) (*mcp.CallToolResult, searchFiguresOutput, error) {
		results, err := s.engine.SearchFigures(ctx, rag.SearchFiguresParams{
			Query:            in.Query,
			PaperIDs:         in.PaperIDs,
			FilterFigureType: in.FigureType,
			Limit:            defaultLimit(in.Limit),
		})
		if err != nil {
			return nil, searchFiguresOutput{}, err
		}
		return nil, searchFiguresOutput{Results: results}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_chunk",
		Description: "Fetch one chunk by id with its prev/next neighbors.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in chunkInput) (*mcp.CallToolResult, *rag.ChunkResult, error) {
		result, err := s.engine.GetChunk(ctx, in.ChunkID)
		return nil, result, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_section",
		Description: "Fetch all chunks of a section in reading order.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in sectionInput) (*mcp.CallToolResult, *rag.SectionResult, error) {
		result, err := s.engine.GetSection(ctx, in.PaperID, in.ChapterIdx, in.SectionIdx)
		return nil, result, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_chapter",
		Description: "Fetch a chapter's chunks grouped by section, with referenced figure ids.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in chapterInput) (*mcp.CallToolResult, *rag.ChapterResult, error) {
		result, err := s.engine.GetChapter(ctx, in.PaperID, in.ChapterIdx)
		return nil, result, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_figure",
		Description: "Fetch one figure or table record by id.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in figureInput) (*mcp.CallToolResult, *rag.FigureResult, error) {
		result, err := s.engine.GetFigure(ctx, in.FigureID)
		return nil, result, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_paper_outline",
		Description: "Fetch the chapter/section outline of a paper with chunk and figure counts.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in paperInput) (*mcp.CallToolResult, *rag.PaperOutline, error) {
		result, err := s.engine.GetPaperOutline(ctx, in.PaperID)
		return nil, result, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_papers",
		Description: "Browse indexed papers with optional filters, sorting, and limit.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in listPapersInput) (*mcp.CallToolResult, listPapersOutput, error) {
		papers, err := s.engine.ListPapers(ctx, rag.ListPapersParams{
			PaperIDs:      in.PaperIDs,
			FilterYearMin: in.YearMin,
			FilterYearMax: in.YearMax,
			FilterVenue:   in.Venue,
			FilterTags:    in.Tags,
			FilterAuthors: in.Authors,
			SortBy:        in.SortBy,
			Limit:         defaultLimit(in.Limit),
		})
		if err != nil {
			return nil, listPapersOutput{}, err
		}
		return nil, listPapersOutput{Papers: papers}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tags",
		Description: "List tags across indexed papers with per-tag paper counts.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in listTagsInput) (*mcp.CallToolResult, listTagsOutput, error) {
		tags, err := s.engine.ListTags(ctx, rag.ListTagsParams{PaperIDs: in.PaperIDs})
		if err != nil {
			return nil, listTagsOutput{}, err
		}
		return nil, listTagsOutput{Tags: tags}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "selection_list",
		Description: "List selection names and the active selection.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in selectionListInput) (*mcp.CallToolResult, selectionListOutput, error) {
		return nil, selectionListOutput{
			Names:  s.selections.ListNames(),
			Active: s.selections.ActiveName(),
		}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "selection_add",
		Description: "Resolve a paper reference and append it to a selection, deduplicating existing entries.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in selectionAddInput) (*mcp.CallToolResult, selectionAddOutput, error) {
		sel, err := s.loadTarget(in.Selection)
		if err != nil {
			return nil, selectionAddOutput{}, err
		}
		entry, err := s.resolver.Resolve(ctx, in.Input)
		if err != nil {
			return nil, selectionAddOutput{}, err
		}
		for i := range sel.Entries {
			if entryDuplicates(&sel.Entries[i], entry) {
				return nil, selectionAddOutput{Entry: sel.Entries[i], Added: false}, nil
			}
		}
		sel.Entries = append(sel.Entries, *entry)
		if err := s.selections.Save(sel); err != nil {
			return nil, selectionAddOutput{}, err
		}
		return nil, selectionAddOutput{Entry: *entry, Added: true}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "selection_remove",
		Description: "Remove entries matching an item key, DOI, work id, or title substring from a selection.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in selectionRemoveInput) (*mcp.CallToolResult, selectionRemoveOutput, error) {
		sel, err := s.loadTarget(in.Selection)
		if err != nil {
			return nil, selectionRemoveOutput{}, err
		}
		kept := sel.Entries[:0]
		removed := 0
		for i := range sel.Entries {
			if selection.EntryMatchesRemoveInput(&sel.Entries[i], in.Input) {
				removed++
				continue
			}
			kept = append(kept, sel.Entries[i])
		}
		if removed == 0 {
			return nil, selectionRemoveOutput{}, selection.ErrItemNotFound
		}
		sel.Entries = kept
		if err := s.selections.Save(sel); err != nil {
			return nil, selectionRemoveOutput{}, err
		}
		return nil, selectionRemoveOutput{Removed: removed}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_paper",
		Description: "Ingest a cached layout extraction into the search index, replacing prior rows for the paper.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in ingestInput) (*mcp.CallToolResult, *rag.IngestStats, error) {
		params, err := s.ingestor.ParamsFromCache(in.ItemKey)
		if err != nil {
			return nil, nil, err
		}
		if !in.Force && s.ingestor.IsIngested(ctx, params.PaperID) {
			return nil, &rag.IngestStats{}, nil
		}
		stats, err := s.ingestor.IngestPaper(ctx, params)
		if err != nil {
			return nil, nil, err
		}
		return nil, &stats, nil
	})
}

// loadTarget loads the named selection, or the active one for an empty
// name.
func (s *Server) loadTarget(nameOrIndex string) (*selection.Selection, error) {
	if nameOrIndex == "" {
		active := s.selections.ActiveName()
		if active == "" {
			return nil, selection.ErrNoActiveSelection
		}
		return s.selections.Load(active)
	}
	name, err := s.selections.Resolve(nameOrIndex)
	if err != nil {
		return nil, err
	}
	return s.selections.Load(name)
}

// entryDuplicates reports whether two entries refer to the same paper
// by any strong identifier.
func entryDuplicates(existing, candidate *selection.Entry) bool {
	if candidate.ZoteroKey != nil && selection.EntryMatchesKey(existing, *candidate.ZoteroKey) {
		return true
	}
	if candidate.OpenAlexID != nil && selection.EntryMatchesOpenAlex(existing, *candidate.OpenAlexID) {
		return true
	}
	if candidate.DOI != nil && selection.EntryMatchesDOI(existing, *candidate.DOI) {
		return true
	}
	return false
}
