package handlers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"papers/internal/datalab"
	"papers/internal/logger"
	"papers/internal/rag"
)

// NewExtractCmd creates the layout-extraction command.
func NewExtractCmd() *cobra.Command {
	var (
		key   string
		title string
		doi   string
	)
	cmd := &cobra.Command{
		Use:   "extract <pdf-path>",
		Short: "Run layout analysis on a PDF and cache the extraction",
		Long: `Submits a PDF to the layout service, waits for the analysis to
finish, and saves the block extraction (plus any images) into the paper
cache, ready for ingest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.Cfg.DataLab.APIKey == "" {
				return fmt.Errorf("datalab api key is not configured (set datalab.api_key)")
			}

			pdfPath := args[0]
			if key == "" {
				base := filepath.Base(pdfPath)
				key = strings.TrimSuffix(base, filepath.Ext(base))
			}

			client := datalab.New(app.Cfg.DataLab.BaseURL, app.Cfg.DataLab.APIKey)
			ctx := cmd.Context()

			submitted, err := client.Submit(ctx, pdfPath)
			if err != nil {
				return err
			}
			logger.Info().Str("request_id", submitted.RequestID).Msg("conversion submitted")

			result, err := client.Poll(ctx, submitted.RequestCheckURL, 5*time.Second)
			if err != nil {
				return err
			}

			cacheRoot := app.Cfg.DataLabCacheDir()
			dir, err := datalab.SaveToCache(cacheRoot, key, result)
			if err != nil {
				return err
			}
			if title != "" || doi != "" {
				meta := rag.ExtractionMeta{Title: title, DOI: doi}
				if err := datalab.WriteMeta(cacheRoot, key, meta); err != nil {
					return err
				}
			}
			fmt.Printf("cached extraction for %s at %s (%d pages)\n", key, dir, result.PageCount)
			fmt.Printf("run: papers ingest %s\n", key)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "cache key (default: pdf file name)")
	cmd.Flags().StringVar(&title, "title", "", "paper title for meta.json")
	cmd.Flags().StringVar(&doi, "doi", "", "paper DOI for meta.json (becomes the paper id)")
	return cmd
}
