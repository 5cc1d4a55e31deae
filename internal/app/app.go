// Package app builds the application context shared by the CLI, the HTTP
// server and the terminal UI.
package app

import (
	"blogsmith/internal/config"
	"blogsmith/internal/core"
	"blogsmith/internal/keywords"
	"blogsmith/internal/ledger"
	"blogsmith/internal/llm"
	"blogsmith/internal/logger"
	"blogsmith/internal/observability"
	"blogsmith/internal/orchestrator"
	"blogsmith/internal/persistence"
	"blogsmith/internal/render"
	"blogsmith/internal/store"
	"blogsmith/internal/visual"
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoBackend is returned by backend operations when no database is configured.
var ErrNoBackend = errors.New("backend database is not configured")

// App owns every long-lived component.
type App struct {
	Config       *config.Config
	Store        store.KVStore
	Policy       *ledger.Policy
	Topics       *ledger.Ledger
	Keywords     *ledger.Ledger
	Credentials  *Credentials
	Writer       *llm.Writer
	Selector     *keywords.Selector
	Orchestrator *orchestrator.Orchestrator
	Analytics    *observability.PostHogClient
	Backend      persistence.Database // nil without backend.database_url

	closers []func() error
}

// Option customizes New.
type Option func(*options)

type options struct {
	kv      store.KVStore
	text    llm.TextGenerator
	backend persistence.Database
}

// WithStore uses kv instead of opening the SQLite store.
func WithStore(kv store.KVStore) Option {
	return func(o *options) { o.kv = kv }
}

// WithTextGenerator uses gen instead of the Gemini client.
func WithTextGenerator(gen llm.TextGenerator) Option {
	return func(o *options) { o.text = gen }
}

// WithBackend uses db instead of connecting to backend.database_url.
func WithBackend(db persistence.Database) Option {
	return func(o *options) { o.backend = db }
}

// New wires the application from cfg. Optional components that fail to
// start (backend, analytics) are logged and left disabled.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg}

	if o.kv != nil {
		a.Store = o.kv
	} else {
		dir := cfg.Storage.Directory
		if dir == "" {
			dir = cfg.App.DataDir
		}
		kv, closeStore := store.Open(dir)
		a.Store = kv
		a.closers = append(a.closers, closeStore)
	}

	gen := cfg.Generation
	a.Policy = ledger.NewPolicy(a.Store, gen.PreventDuplicates)
	ledgerOpts := ledger.Options{Threshold: gen.SimilarityThreshold, Capacity: gen.LedgerCapacity}
	a.Topics = ledger.New(a.Store, store.KeyUsedTopics, a.Policy, ledgerOpts)
	a.Keywords = ledger.New(a.Store, store.KeyUsedKeywords, a.Policy, ledgerOpts)
	a.Policy.Track(a.Topics, a.Keywords)

	a.Credentials = NewCredentials(cfg, a.Store)

	analytics, err := observability.NewPostHogClient(cfg.Analytics.PostHog, cfg.Backend.UserID)
	if err != nil {
		logger.Warn("Analytics disabled", "error", err.Error())
		analytics, _ = observability.NewPostHogClient(config.PostHogConfig{}, cfg.Backend.UserID)
	}
	a.Analytics = analytics
	a.closers = append(a.closers, analytics.Shutdown)

	a.Backend = o.backend
	if a.Backend == nil && cfg.Backend.DatabaseURL != "" {
		db, err := persistence.NewPostgresDB(cfg.Backend.DatabaseURL)
		if err != nil {
			logger.Error("Backend unavailable, continuing without it", err)
		} else {
			a.Backend = db
		}
	}
	if a.Backend != nil {
		a.closers = append(a.closers, a.Backend.Close)
	}

	text := o.text
	if text == nil {
		text = &geminiGenerator{creds: a.Credentials, cfg: cfg.AI.Gemini, tracker: a.Analytics}
	}
	a.Writer = llm.NewWriter(text, llm.WriterOptions{
		Model:      cfg.AI.Gemini.Model,
		TopicCount: gen.TopicCount,
	})

	var usage keywords.UsageStore
	if a.Backend != nil {
		usage = a.Backend.KeywordUsage()
	}
	a.Selector = keywords.NewSelector(a.Writer, a.Keywords, usage, keywords.Options{
		Attempts:       gen.KeywordAttempts,
		DefaultKeyword: gen.DefaultKeyword,
		UserID:         cfg.Backend.UserID,
		RecentWindow:   cfg.RecentKeywordWindow(),
	})

	a.Orchestrator = orchestrator.New(orchestrator.Deps{
		Keywords:        a.Selector,
		Topics:          a.Writer,
		Articles:        a.Writer,
		Images:          imageFetcher(a.ImageProvider),
		TopicLedger:     a.Topics,
		Store:           a.Store,
		Tracker:         a.Analytics,
		Finisher:        render.Finalize,
		CredentialCheck: a.checkTextCredential(o.text != nil),
	}, orchestrator.Config{
		MinTitleLength:  gen.MinTitleLength,
		RequireKeyword:  gen.RequireKeyword,
		FlowRetries:     gen.FlowRetries,
		GenerateImage:   gen.GenerateImage,
		DefaultCategory: gen.DefaultCategory,
	})

	logger.Debug("Application initialized",
		"backend", a.Backend != nil,
		"analytics", a.Analytics.IsEnabled(),
		"prevent_duplicates", a.Policy.PreventDuplicates())
	return a, nil
}

func (a *App) checkTextCredential(injected bool) func() error {
	return func() error {
		if injected {
			return nil
		}
		if a.Credentials.Key(ProviderGemini) == "" {
			return fmt.Errorf("gemini API key is required (set GEMINI_API_KEY or run `blogsmith keys set gemini`)")
		}
		return nil
	}
}

// ImageProvider builds the image provider from the current credentials.
func (a *App) ImageProvider() *visual.Provider {
	images := a.Config.Images

	var pixabay *visual.PixabayClient
	if key := a.Credentials.Key(ProviderPixabay); key != "" {
		pixabay = visual.NewPixabayClient(visual.PixabayOptions{
			APIKey:  key,
			BaseURL: images.Pixabay.BaseURL,
			Defaults: visual.SearchOptions{
				PerPage:     images.Pixabay.PerPage,
				Orientation: images.Pixabay.Orientation,
				Language:    images.Pixabay.Language,
			},
		})
	}

	var generator *visual.GeneratorClient
	if images.Generator.FunctionURL != "" {
		generator = visual.NewGeneratorClient(visual.GeneratorOptions{
			FunctionURL: images.Generator.FunctionURL,
			APIKey:      a.Credentials.Key(ProviderImageGen),
			AnonKey:     images.Generator.AnonKey,
			Timeout:     a.Config.ImageTimeout(),
		})
	}

	return visual.NewProvider(visual.ProviderOptions{
		Mode:      images.Mode,
		Pixabay:   pixabay,
		Generator: generator,
		Prompter:  a.Writer,
		OutputDir: a.Config.App.OutputDir,
	})
}

// imageFetcher resolves the provider per call so keys saved at runtime apply.
type imageFetcher func() *visual.Provider

func (f imageFetcher) FetchImage(ctx context.Context, topic, keyword string) (*core.Image, error) {
	return f().FetchImage(ctx, topic, keyword)
}

// SetPreventDuplicates changes the duplicate policy locally and, when a
// backend is configured, on the user's profile. It returns true when the
// change cleared the ledgers.
func (a *App) SetPreventDuplicates(ctx context.Context, prevent bool) bool {
	cleared := a.Policy.SetPreventDuplicates(prevent)
	if a.Backend != nil && a.Config.Backend.UserID != "" {
		if err := a.Backend.Profiles().SetPreventDuplicates(ctx, a.Config.Backend.UserID, prevent); err != nil {
			logger.Warn("Failed to update profile preference", "error", err.Error())
		}
	}
	return cleared
}

// SyncProfile applies the backend profile's duplicate preference locally.
func (a *App) SyncProfile(ctx context.Context) (*core.Profile, error) {
	if a.Backend == nil || a.Config.Backend.UserID == "" {
		return nil, ErrNoBackend
	}
	profile, err := a.Backend.Profiles().Get(ctx, a.Config.Backend.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	a.Policy.SetPreventDuplicates(profile.PreventDuplicates)
	return profile, nil
}

// ApplyUserChange handles a realtime profile change. Changes for other users
// are ignored.
func (a *App) ApplyUserChange(change persistence.UserChange) bool {
	if change.Profile.ID != a.Config.Backend.UserID {
		return false
	}
	a.Policy.SetPreventDuplicates(change.Profile.PreventDuplicates)
	logger.Info("Profile change applied",
		"op", change.Operation,
		"prevent_duplicates", change.Profile.PreventDuplicates)
	return true
}

// Reset stops any run, clears stored state except credentials and restores
// the default session. It returns the number of removed keys.
func (a *App) Reset() int {
	a.Orchestrator.Reset()
	n := a.Store.Reset()
	logger.Info("Application state reset", "removed_keys", n)
	return n
}

// Stats returns store statistics when the store supports them.
func (a *App) Stats() (*core.StoreStats, error) {
	s, ok := a.Store.(interface {
		Stats() (*core.StoreStats, error)
	})
	if !ok {
		return &core.StoreStats{KeyCount: len(a.Store.Keys(""))}, nil
	}
	return s.Stats()
}

// Close stops any active run and releases resources.
func (a *App) Close() error {
	a.Orchestrator.Stop()
	a.Orchestrator.Wait()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// geminiGenerator creates the Gemini client on first use and again whenever
// the resolved key changes.
type geminiGenerator struct {
	creds   *Credentials
	cfg     config.GeminiConfig
	tracker llm.CallTracker

	mu     sync.Mutex
	key    string
	client llm.TextGenerator
}

func (g *geminiGenerator) GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error) {
	client, err := g.get(ctx)
	if err != nil {
		return "", err
	}
	return client.GenerateText(ctx, prompt, options)
}

func (g *geminiGenerator) get(ctx context.Context) (llm.TextGenerator, error) {
	key := g.creds.Key(ProviderGemini)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil && g.key == key {
		return g.client, nil
	}

	c, err := llm.NewClient(ctx, llm.ClientOptions{
		APIKey:      key,
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}
	g.key = key
	g.client = llm.NewTracedClient(c, c.GetModelName(), "text_generation", g.tracker)
	return g.client, nil
}
