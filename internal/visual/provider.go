package visual

import (
	"blogsmith/internal/core"
	"blogsmith/internal/logger"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotConfigured is returned when neither strategy has credentials.
var ErrNotConfigured = errors.New("no image provider is configured")

// Image strategies.
const (
	ModeSearch   = "search"
	ModeGenerate = "generate"
)

// ImagePrompter turns a blog topic into a diffusion prompt.
type ImagePrompter interface {
	GenerateImagePrompt(ctx context.Context, topic string) (string, error)
}

// Provider fetches the header image for an article.
type Provider struct {
	mode      string
	pixabay   *PixabayClient
	generator *GeneratorClient
	prompter  ImagePrompter
	outputDir string
}

// ProviderOptions configures a Provider. Nil clients disable a strategy.
type ProviderOptions struct {
	Mode      string
	Pixabay   *PixabayClient
	Generator *GeneratorClient
	Prompter  ImagePrompter
	OutputDir string
}

// NewProvider creates an image provider
func NewProvider(opts ProviderOptions) *Provider {
	mode := opts.Mode
	if mode != ModeGenerate {
		mode = ModeSearch
	}
	return &Provider{
		mode:      mode,
		pixabay:   opts.Pixabay,
		generator: opts.Generator,
		prompter:  opts.Prompter,
		outputDir: opts.OutputDir,
	}
}

// Mode returns the configured strategy.
func (p *Provider) Mode() string {
	return p.mode
}

// Available reports whether any strategy can run.
func (p *Provider) Available() bool {
	return p.pixabay.Configured() || (p.mode == ModeGenerate && p.generator.Configured())
}

// FetchImage returns an image for topic. In generate mode a failed
// generation falls back to a Pixabay search when Pixabay is configured.
func (p *Provider) FetchImage(ctx context.Context, topic, keyword string) (*core.Image, error) {
	if !p.Available() {
		return nil, ErrNotConfigured
	}

	if p.mode == ModeGenerate && p.generator.Configured() {
		img, err := p.generate(ctx, topic)
		if err == nil {
			return img, nil
		}
		if ctx.Err() != nil || !p.pixabay.Configured() {
			return nil, err
		}
		logger.Warn("Image generation failed, falling back to search", "error", err.Error())
	}

	return p.search(ctx, topic, keyword)
}

func (p *Provider) generate(ctx context.Context, topic string) (*core.Image, error) {
	prompt := topic
	if p.prompter != nil {
		generated, err := p.prompter.GenerateImagePrompt(ctx, topic)
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("image prompt aborted: %w", ctx.Err())
		case err != nil:
			logger.Warn("Image prompt generation failed, using topic", "error", err.Error())
		default:
			prompt = generated
		}
	}

	result, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	img := &core.Image{
		Source:    core.ImageSourceGenerated,
		Prompt:    prompt,
		CreatedAt: time.Now().UTC(),
	}

	if p.outputDir == "" {
		img.URL = result.DataURL
		return img, nil
	}

	name := "image-" + img.CreatedAt.Format("20060102-150405") + ExtensionFor(result.MediaType)
	path, err := SaveImage(p.outputDir, name, result.Data)
	if err != nil {
		return nil, err
	}
	img.Path = path
	return img, nil
}

func (p *Provider) search(ctx context.Context, topic, keyword string) (*core.Image, error) {
	query := strings.TrimSpace(keyword)
	if query == "" {
		query = topic
	}

	hits, err := p.pixabay.Search(ctx, query, SearchOptions{})
	if err != nil {
		return nil, err
	}
	best, err := BestHit(hits)
	if err != nil {
		return nil, err
	}

	return &core.Image{
		Source:    core.ImageSourceSearch,
		URL:       best.ImageURL(),
		Prompt:    query,
		Tags:      best.Tags,
		Views:     best.Views,
		Downloads: best.Downloads,
		CreatedAt: time.Now().UTC(),
	}, nil
}
