package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"papers/cmd/handlers"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "papers",
	Short: "papers is a research assistant for academic papers.",
	Long: `papers resolves academic papers from your reference manager and
scholarly-metadata services, organizes them into named selections, indexes
PDF layout extractions into a structure-preserving search corpus, and
answers hierarchy-aware semantic queries over it.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .papers.yaml)")
	handlers.SetConfigFile(&cfgFile)

	rootCmd.AddCommand(handlers.NewSelectionCmd())
	rootCmd.AddCommand(handlers.NewExtractCmd())
	rootCmd.AddCommand(handlers.NewIngestCmd())
	rootCmd.AddCommand(handlers.NewSearchCmd())
	rootCmd.AddCommand(handlers.NewFiguresCmd())
	rootCmd.AddCommand(handlers.NewChunkCmd())
	rootCmd.AddCommand(handlers.NewSectionCmd())
	rootCmd.AddCommand(handlers.NewChapterCmd())
	rootCmd.AddCommand(handlers.NewOutlineCmd())
	rootCmd.AddCommand(handlers.NewPapersCmd())
	rootCmd.AddCommand(handlers.NewTagsCmd())
	rootCmd.AddCommand(handlers.NewServeCmd())
}
