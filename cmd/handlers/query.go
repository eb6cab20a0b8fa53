package handlers

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"papers/internal/rag"
	"papers/internal/render"
)

func optInt(set bool, v int) *int {
	if !set {
		return nil
	}
	return &v
}

// NewSearchCmd creates the semantic search command.
func NewSearchCmd() *cobra.Command {
	var (
		paperIDs   []string
		chapterIdx int
		sectionIdx int
		yearMin    int
		yearMax    int
		venue      string
		tags       []string
		depth      string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search across indexed paper chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(true)
			if err != nil {
				return err
			}
			defer app.Close()

			results, err := app.Engine.Search(cmd.Context(), rag.SearchParams{
				Query:         args[0],
				PaperIDs:      paperIDs,
				ChapterIdx:    optInt(cmd.Flags().Changed("chapter"), chapterIdx),
				SectionIdx:    optInt(cmd.Flags().Changed("section"), sectionIdx),
				FilterYearMin: optInt(cmd.Flags().Changed("year-min"), yearMin),
				FilterYearMax: optInt(cmd.Flags().Changed("year-max"), yearMax),
				FilterVenue:   venue,
				FilterTags:    tags,
				FilterDepth:   depth,
				Limit:         limit,
			})
			if err != nil {
				return err
			}
			fmt.Print(render.SearchResults(results))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&paperIDs, "paper", nil, "restrict to these paper ids")
	cmd.Flags().IntVar(&chapterIdx, "chapter", 0, "restrict to one chapter (requires --paper)")
	cmd.Flags().IntVar(&sectionIdx, "section", 0, "restrict to one section (requires --chapter)")
	cmd.Flags().IntVar(&yearMin, "year-min", 0, "minimum publication year")
	cmd.Flags().IntVar(&yearMax, "year-max", 0, "maximum publication year")
	cmd.Flags().StringVar(&venue, "venue", "", "exact venue filter")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "match any of these tags")
	cmd.Flags().StringVar(&depth, "depth", "", "chunk depth filter")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	return cmd
}

// NewFiguresCmd creates the figure search command.
func NewFiguresCmd() *cobra.Command {
	var (
		paperIDs   []string
		figureType string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "figures <query>",
		Short: "Semantic search over figure and table captions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(true)
			if err != nil {
				return err
			}
			defer app.Close()

			results, err := app.Engine.SearchFigures(cmd.Context(), rag.SearchFiguresParams{
				Query:            args[0],
				PaperIDs:         paperIDs,
				FilterFigureType: figureType,
				Limit:            limit,
			})
			if err != nil {
				return err
			}
			fmt.Print(render.Figures(results))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&paperIDs, "paper", nil, "restrict to these paper ids")
	cmd.Flags().StringVar(&figureType, "type", "", "figure or table")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	return cmd
}

// NewChunkCmd creates the chunk fetch command.
func NewChunkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chunk <chunk-id>",
		Short: "Fetch one chunk with its neighbors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(true)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Engine.GetChunk(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Print(render.SearchResults([]rag.SearchResult{{Chunk: result.Chunk, Prev: result.Prev, Next: result.Next}}))
			return nil
		},
	}
}

// NewSectionCmd creates the section fetch command.
func NewSectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "section <paper-id> <chapter-idx> <section-idx>",
		Short: "Fetch all chunks of a section in reading order",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			chapterIdx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("chapter index must be a number: %w", err)
			}
			sectionIdx, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("section index must be a number: %w", err)
			}
			app, err := openApp(true)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Engine.GetSection(cmd.Context(), args[0], chapterIdx, sectionIdx)
			if err != nil {
				return err
			}
			fmt.Printf("%s > %s (%d chunks)\n", result.ChapterTitle, result.SectionTitle, result.TotalChunks)
			for _, c := range result.Chunks {
				fmt.Printf("\n[%s]\n%s\n", c.ChunkID, c.Text)
			}
			return nil
		},
	}
}

// NewChapterCmd creates the chapter fetch command.
func NewChapterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chapter <paper-id> <chapter-idx>",
		Short: "Fetch a chapter grouped by section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chapterIdx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("chapter index must be a number: %w", err)
			}
			app, err := openApp(true)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Engine.GetChapter(cmd.Context(), args[0], chapterIdx)
			if err != nil {
				return err
			}
			fmt.Printf("ch%d %s (%d chunks)\n", result.ChapterIdx, result.ChapterTitle, result.TotalChunks)
			for _, sec := range result.Sections {
				fmt.Printf("\ns%d %s\n", sec.SectionIdx, sec.SectionTitle)
				for _, c := range sec.Chunks {
					fmt.Printf("  [%s] %s\n", c.ChunkID, c.Text)
				}
			}
			if len(result.FigureIDs) > 0 {
				fmt.Printf("\nreferenced figures: %v\n", result.FigureIDs)
			}
			return nil
		},
	}
}

// NewOutlineCmd creates the outline command.
func NewOutlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outline <paper-id>",
		Short: "Show a paper's chapter/section outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(true)
			if err != nil {
				return err
			}
			defer app.Close()

			outline, err := app.Engine.GetPaperOutline(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Print(render.Outline(outline))
			return nil
		},
	}
}

// NewPapersCmd creates the corpus listing command.
func NewPapersCmd() *cobra.Command {
	var (
		yearMin int
		yearMax int
		venue   string
		tags    []string
		authors []string
		sortBy  string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "papers",
		Short: "List indexed papers",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(true)
			if err != nil {
				return err
			}
			defer app.Close()

			papers, err := app.Engine.ListPapers(cmd.Context(), rag.ListPapersParams{
				FilterYearMin: optInt(cmd.Flags().Changed("year-min"), yearMin),
				FilterYearMax: optInt(cmd.Flags().Changed("year-max"), yearMax),
				FilterVenue:   venue,
				FilterTags:    tags,
				FilterAuthors: authors,
				SortBy:        sortBy,
				Limit:         limit,
			})
			if err != nil {
				return err
			}
			fmt.Print(render.Papers(papers))
			return nil
		},
	}
	cmd.Flags().IntVar(&yearMin, "year-min", 0, "minimum publication year")
	cmd.Flags().IntVar(&yearMax, "year-max", 0, "maximum publication year")
	cmd.Flags().StringVar(&venue, "venue", "", "exact venue filter")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "match any of these tags")
	cmd.Flags().StringSliceVar(&authors, "author", nil, "case-insensitive author substrings")
	cmd.Flags().StringVar(&sortBy, "sort", "year", "sort by year (descending) or title (ascending)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

// NewTagsCmd creates the tag aggregation command.
func NewTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List tags with per-tag paper counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(true)
			if err != nil {
				return err
			}
			defer app.Close()

			tags, err := app.Engine.ListTags(cmd.Context(), rag.ListTagsParams{})
			if err != nil {
				return err
			}
			fmt.Print(render.Tags(tags))
			return nil
		},
	}
}
