package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"papers/internal/logger"
)

// NewIngestCmd creates the ingest command.
func NewIngestCmd() *cobra.Command {
	var all bool
	var force bool
	cmd := &cobra.Command{
		Use:   "ingest [item-key]",
		Short: "Index cached layout extractions into the search corpus",
		Long: `Reads layout-analysis extractions from the PDF cache, recovers each
paper's chapter/section structure, embeds its text chunks and figure
captions, and replaces any prior index rows for the same paper.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(true)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if all {
				stats, err := app.Ingestor.IngestAll(ctx, force)
				if err != nil {
					return err
				}
				fmt.Printf("ingested %d chunks and %d figures\n", stats.ChunksAdded, stats.FiguresAdded)
				return nil
			}
			if len(args) == 0 {
				keys := app.Ingestor.ListCachedKeys()
				if len(keys) == 0 {
					fmt.Println("no cached extractions; nothing to ingest")
					return nil
				}
				fmt.Println("cached extractions:")
				for _, key := range keys {
					fmt.Println("  " + key)
				}
				fmt.Println("run: papers ingest <item-key> (or --all)")
				return nil
			}

			params, err := app.Ingestor.ParamsFromCache(args[0])
			if err != nil {
				return err
			}
			if !force && app.Ingestor.IsIngested(ctx, params.PaperID) {
				fmt.Printf("%s is already indexed; use --force to re-ingest\n", params.PaperID)
				return nil
			}
			stats, err := app.Ingestor.IngestPaper(ctx, params)
			if err != nil {
				return err
			}
			logger.Info().Str("paper_id", params.PaperID).
				Int("chunks", stats.ChunksAdded).Int("figures", stats.FiguresAdded).
				Msg("paper indexed")
			fmt.Printf("indexed %s: %d chunks, %d figures\n", params.PaperID, stats.ChunksAdded, stats.FiguresAdded)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "ingest every cached extraction")
	cmd.Flags().BoolVar(&force, "force", false, "re-ingest papers that are already indexed")
	return cmd
}
