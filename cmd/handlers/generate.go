package handlers

import (
	"blogsmith/internal/app"
	"blogsmith/internal/core"
	"blogsmith/internal/orchestrator"
	"blogsmith/internal/render"
	"blogsmith/internal/tui"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

type generateOptions struct {
	keyword     string
	category    string
	autoKeyword bool
	image       bool
	useTUI      bool
	outDir      string
}

// NewGenerateCmd creates the one-click generation command
func NewGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a complete article in one run",
		Long: `Run the full flow: keyword, topic titles, topic choice, article and an
optional image. Titles that were already used are skipped while duplicate
prevention is on; when every title is a duplicate the first one is used
and a warning is shown.

The article is written to <out>/<slug>.md and <out>/<slug>.html.

Examples:
  blogsmith generate --keyword "겨울철 면역력"
  blogsmith generate --auto-keyword --category finance --image
  blogsmith generate --keyword "홈트레이닝" --tui`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var image *bool
			if cmd.Flags().Changed("image") {
				image = &opts.image
			}
			return runGenerate(cmd, opts, image)
		},
	}

	cmd.Flags().StringVarP(&opts.keyword, "keyword", "k", "", "keyword to write about")
	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "category used to pick keywords (default from config)")
	cmd.Flags().BoolVar(&opts.autoKeyword, "auto-keyword", false, "pick a trending keyword that was not used yet")
	cmd.Flags().BoolVar(&opts.image, "image", false, "attach an image (default from config)")
	cmd.Flags().BoolVar(&opts.useTUI, "tui", false, "show progress in a terminal view")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory (default from config)")

	return cmd
}

func runGenerate(cmd *cobra.Command, opts generateOptions, image *bool) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := orchestrator.Request{
		Keyword:       opts.keyword,
		Category:      opts.category,
		AutoKeyword:   opts.autoKeyword,
		GenerateImage: image,
	}

	out := cmd.OutOrStdout()
	var report core.RunReport
	if opts.useTUI {
		report, err = tui.Run(ctx, a.Orchestrator, req)
	} else {
		a.Orchestrator.Subscribe(noticePrinter(cmd.ErrOrStderr()))
		report, err = a.Orchestrator.Run(ctx, req)
	}
	if err != nil {
		return err
	}

	session := a.Orchestrator.Session()
	if session.Article == nil {
		return fmt.Errorf("run %s ended without an article", report.SessionID)
	}
	return writeArticle(out, a, opts.outDir, session.Article, session.Image)
}

func writeArticle(w io.Writer, a *app.App, outDir string, article *core.Article, image *core.Image) error {
	if outDir == "" {
		outDir = a.Config.App.OutputDir
	}
	mdPath, htmlPath, err := render.WriteArticle(outDir, article, image)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "✅ %s\n", article.Topic)
	fmt.Fprintf(w, "   keyword:  %s\n", article.Keyword)
	fmt.Fprintf(w, "   length:   %d chars, %d headings\n", article.CharCount, len(article.Headings))
	if image != nil {
		fmt.Fprintf(w, "   image:    %s\n", image.Source)
	}
	fmt.Fprintf(w, "   markdown: %s\n", mdPath)
	fmt.Fprintf(w, "   html:     %s\n", htmlPath)
	return nil
}

// noticePrinter prints each new notice once as sessions arrive.
func noticePrinter(w io.Writer) func(core.Session) {
	printed := 0
	session := ""
	return func(s core.Session) {
		if s.ID != session {
			session, printed = s.ID, 0
		}
		for ; printed < len(s.Notices); printed++ {
			n := s.Notices[printed]
			fmt.Fprintf(w, "%s %s\n", noticeIcon(n.Level), n.Message)
		}
	}
}

func noticeIcon(level core.NoticeLevel) string {
	switch level {
	case core.NoticeError:
		return "❌"
	case core.NoticeWarning:
		return "⚠️ "
	default:
		return "•"
	}
}

// NewTopicsCmd creates the manual topic command
func NewTopicsCmd() *cobra.Command {
	var (
		selectIndex int
		image       bool
		outDir      string
	)

	cmd := &cobra.Command{
		Use:   "topics <keyword>",
		Short: "Generate topic titles for a keyword",
		Long: `Generate candidate titles for a keyword and list them. Titles similar to
ones already used are marked. With --select the chosen title is written
into an article right away.

Examples:
  blogsmith topics "재테크"
  blogsmith topics "재테크" --select 2 --image`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopics(cmd, args[0], selectIndex, image, outDir)
		},
	}

	cmd.Flags().IntVarP(&selectIndex, "select", "s", 0, "write the article for this title (1-based)")
	cmd.Flags().BoolVar(&image, "image", false, "attach an image to the selected article")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default from config)")

	return cmd
}

func runTopics(cmd *cobra.Command, keyword string, selectIndex int, image bool, outDir string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	titles, err := a.Orchestrator.GenerateTopics(ctx, keyword)
	if err != nil {
		return err
	}

	duplicates := a.Orchestrator.Session().Duplicates
	for i, title := range titles {
		mark := ""
		if match, score := a.Topics.Match(title); slices.Contains(duplicates, title) {
			mark = fmt.Sprintf("  (used: %q, %s)", match, strconv.FormatFloat(score, 'f', 2, 64))
		}
		fmt.Fprintf(out, "%d. %s%s\n", i+1, title, mark)
	}

	if selectIndex == 0 {
		return nil
	}
	return writeSelected(ctx, cmd, a, selectIndex-1, image, outDir)
}

func writeSelected(ctx context.Context, cmd *cobra.Command, a *app.App, index int, image bool, outDir string) error {
	if _, err := a.Orchestrator.SelectTopic(index); err != nil {
		return err
	}
	article, err := a.Orchestrator.GenerateArticle(ctx)
	if err != nil {
		return err
	}

	var img *core.Image
	if image {
		img, err = a.Orchestrator.GenerateImage(ctx)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  image skipped: %v\n", err)
		}
	}
	return writeArticle(cmd.OutOrStdout(), a, outDir, article, img)
}
