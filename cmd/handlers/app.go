package handlers

import (
	"fmt"
	"time"

	"papers/internal/config"
	"papers/internal/openalex"
	"papers/internal/rag"
	"papers/internal/selection"
	"papers/internal/zotero"
)

var cfgFile *string

// SetConfigFile wires the root --config flag into handler bootstrap.
func SetConfigFile(p *string) {
	cfgFile = p
}

// App bundles the wired components handlers operate on.
type App struct {
	Cfg        *config.Config
	Store      *rag.Store
	Engine     *rag.Engine
	Ingestor   *rag.Ingestor
	Selections *selection.Store
	Resolver   *selection.Resolver
}

// Close releases the vector store if it was opened.
func (a *App) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

// openApp loads configuration and wires the components. The vector
// store (and the embedding endpoint behind it) is only opened when
// withStore is set; selection commands work without it.
func openApp(withStore bool) (*App, error) {
	var file string
	if cfgFile != nil {
		file = *cfgFile
	}
	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}

	app := &App{
		Cfg:        cfg,
		Selections: selection.NewStore(cfg.DataDir()),
	}

	oa := openalex.New(cfg.OpenAlex.BaseURL, cfg.OpenAlex.Mailto, cfg.OpenAlex.CacheDir)
	var z *zotero.Client
	if cfg.Zotero.APIKey != "" && cfg.Zotero.UserID != "" {
		z = zotero.New(cfg.Zotero.BaseURL, cfg.Zotero.APIKey, cfg.Zotero.UserID)
	}
	app.Resolver = &selection.Resolver{OpenAlex: oa, Zotero: z}

	if withStore {
		timeout, err := time.ParseDuration(cfg.Embedding.Timeout)
		if err != nil {
			timeout = 0
		}
		embedder := rag.NewHTTPEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model, timeout)
		store, err := rag.Open(cfg.RagDBPath(), embedder)
		if err != nil {
			return nil, fmt.Errorf("opening vector store: %w", err)
		}
		app.Store = store
		app.Engine = rag.NewEngine(store)
		app.Ingestor = rag.NewIngestor(store, cfg.DataLabCacheDir())
	}
	return app, nil
}
