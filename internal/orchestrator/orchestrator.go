// Package orchestrator runs the one-click generation flow: keyword, topics,
// topic choice, article and image, with one retry and user cancellation.
package orchestrator

import (
	"blogsmith/internal/core"
	"blogsmith/internal/keywords"
	"blogsmith/internal/logger"
	"blogsmith/internal/store"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// User-facing notice texts.
const (
	MsgCancelled         = "사용자에 의해 중단되었습니다"
	MsgFailedPrefix      = "생성 실패: "
	MsgCompleted         = "글 생성이 완료되었습니다"
	MsgDuplicateOverride = "모든 주제가 이미 사용된 주제와 비슷합니다. 첫 번째 주제로 진행합니다"
	msgRetry             = "%s 단계에서 오류가 발생해 한 번 더 시도합니다"
	msgKeywordSelected   = "키워드를 선택했습니다: %s"
	msgImageFailed       = "이미지를 가져오지 못했습니다: %v"
	msgNoImageProvider   = "이미지 제공자가 설정되지 않아 이미지를 건너뜁니다"
)

// Config tunes the flow.
type Config struct {
	MinTitleLength  int    // shortest acceptable topic, in runes
	RequireKeyword  bool   // topics must contain the core keyword
	FlowRetries     int    // automatic re-runs from a failed topic/article stage
	GenerateImage   bool   // default for requests that do not say
	DefaultCategory string // category used when a request has none
}

// Deps are the collaborators of the orchestrator. Everything except Topics
// and Articles may be nil.
type Deps struct {
	Keywords        KeywordSelector
	Topics          TopicGenerator
	Articles        ArticleGenerator
	Images          ImageProvider
	TopicLedger     TopicLedger
	Store           store.KV
	Tracker         Tracker
	Finisher        func(*core.Article) error // fills HTML and outline
	CredentialCheck func() error              // fails when the text provider has no key
}

// Request starts a one-click run.
type Request struct {
	Keyword       string `json:"keyword"`
	Category      string `json:"category"`
	AutoKeyword   bool   `json:"auto_keyword"`
	GenerateImage *bool  `json:"generate_image,omitempty"`
}

// Orchestrator owns the generation session.
type Orchestrator struct {
	deps Deps
	cfg  Config

	mu        sync.Mutex
	session   core.Session
	selection keywords.Selection
	cancel    context.CancelFunc
	done      chan struct{}
	listeners []func(core.Session)
	seq       uint64 // bumped with every snapshot taken under mu

	notifyMu  sync.Mutex
	delivered uint64
}

// New creates an orchestrator and restores the persisted session.
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.FlowRetries < 0 {
		cfg.FlowRetries = 0
	}
	if cfg.MinTitleLength < 0 {
		cfg.MinTitleLength = 0
	}
	o := &Orchestrator{deps: deps, cfg: cfg, session: core.NewSession()}
	o.restore()
	return o
}

// Subscribe registers fn to receive a snapshot after every state change.
// Snapshots arrive in the order the changes were made; one superseded before
// it could be delivered is skipped. fn must not block or change the session.
func (o *Orchestrator) Subscribe(fn func(core.Session)) {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

// Session returns a snapshot of the current session.
func (o *Orchestrator) Session() core.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Clone()
}

// Running reports whether a run or manual step is active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Running
}

// Run executes a one-click run and blocks until it ends.
func (o *Orchestrator) Run(ctx context.Context, req Request) (core.RunReport, error) {
	if err := o.validate(req); err != nil {
		return core.RunReport{}, err
	}
	runCtx, err := o.claim(ctx, o.newRun(req))
	if err != nil {
		return core.RunReport{}, err
	}
	return o.execute(runCtx, req)
}

// Start begins a one-click run in the background and returns the initial
// session. The run outlives ctx cancellation; use Stop to cancel it.
func (o *Orchestrator) Start(ctx context.Context, req Request) (core.Session, error) {
	if err := o.validate(req); err != nil {
		return core.Session{}, err
	}
	runCtx, err := o.claim(context.WithoutCancel(ctx), o.newRun(req))
	if err != nil {
		return core.Session{}, err
	}
	go func() { _, _ = o.execute(runCtx, req) }()
	return o.Session(), nil
}

// Stop cancels the active run. Committed session state is kept.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	if !o.session.Running || o.cancel == nil {
		o.mu.Unlock()
		return false
	}
	o.cancel()
	o.session.Cancelled = true
	snap, seq := o.persistLocked()
	o.mu.Unlock()

	logger.Info("Generation stop requested", "session_id", snap.ID)
	o.notify(snap, seq)
	return true
}

// Wait blocks until the active run, if any, has ended.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Reset stops an active run and restores the default session.
func (o *Orchestrator) Reset() {
	o.Stop()
	o.Wait()

	o.mu.Lock()
	o.session = core.NewSession()
	o.selection = keywords.Selection{}
	if o.deps.Store != nil {
		o.deps.Store.Remove(store.KeySession)
	}
	snap, seq := o.snapshotLocked()
	o.mu.Unlock()

	o.notify(snap, seq)
}

func (o *Orchestrator) validate(req Request) error {
	if !req.AutoKeyword && strings.TrimSpace(req.Keyword) == "" {
		return fmt.Errorf("%w: 키워드를 입력하거나 자동 키워드 선택을 켜 주세요", ErrValidation)
	}
	if req.AutoKeyword && o.deps.Keywords == nil {
		return fmt.Errorf("%w: automatic keyword selection is not available", ErrValidation)
	}
	return o.checkCredentials()
}

func (o *Orchestrator) checkCredentials() error {
	if o.deps.CredentialCheck == nil {
		return nil
	}
	if err := o.deps.CredentialCheck(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// newRun returns the session initializer for a one-click run.
func (o *Orchestrator) newRun(req Request) func(*core.Session) {
	return func(s *core.Session) {
		category := req.Category
		if category == "" {
			category = o.cfg.DefaultCategory
		}
		*s = core.NewSession()
		s.ID = uuid.NewString()
		s.Category = category
		s.StartedAt = time.Now().UTC()

		o.selection = keywords.Selection{}
		if !req.AutoKeyword {
			keyword := strings.TrimSpace(req.Keyword)
			s.Keyword = keyword
			o.selection = keywords.Selection{Keyword: keyword, Category: category, Source: keywords.SourceManual}
		}
	}
}

// claim marks the session running and returns the run context. init runs
// under the lock before the session is published.
func (o *Orchestrator) claim(parent context.Context, init func(*core.Session)) (context.Context, error) {
	o.mu.Lock()
	if o.session.Running {
		o.mu.Unlock()
		return nil, ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(parent)
	o.cancel = cancel
	o.done = make(chan struct{})
	if init != nil {
		init(&o.session)
	}
	o.session.Running = true
	o.session.Cancelled = false
	snap, seq := o.persistLocked()
	o.mu.Unlock()

	o.notify(snap, seq)
	return ctx, nil
}

// release ends the active run, applying final to the session first. The
// caller closes the returned channel once it is done reporting, which
// unblocks Wait.
func (o *Orchestrator) release(final func(*core.Session)) (core.Session, chan struct{}) {
	o.mu.Lock()
	if final != nil {
		final(&o.session)
	}
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.session.Running = false
	o.session.Stage = core.StageIdle
	snap, seq := o.persistLocked()
	done := o.done
	o.mu.Unlock()

	o.notify(snap, seq)
	return snap, done
}

// execute drives a claimed one-click run to its end.
func (o *Orchestrator) execute(ctx context.Context, req Request) (core.RunReport, error) {
	started := time.Now()
	wantImage := o.cfg.GenerateImage
	if req.GenerateImage != nil {
		wantImage = *req.GenerateImage
	}

	from := core.StageGeneratingTopics
	if req.AutoKeyword {
		from = core.StageSelectingKeyword
	}

	retries := 0
	err := o.runFrom(ctx, from, wantImage)
	for err != nil && retryable(err) && retries < o.cfg.FlowRetries {
		retries++
		stage := failedStage(err)
		logger.Warn("Stage failed, retrying", "stage", string(stage), "error", err.Error())
		o.update(func(s *core.Session) {
			s.Attempts = retries
			s.Notices = append(s.Notices, notice(core.NoticeWarning, stage, fmt.Sprintf(msgRetry, stage.Label())))
		})
		err = o.runFrom(ctx, stage, wantImage)
	}

	snap, done := o.release(func(s *core.Session) {
		switch {
		case err == nil:
			s.Cancelled = false
			s.Notices = append(s.Notices, notice(core.NoticeInfo, core.StageIdle, MsgCompleted))
		case errors.Is(err, ErrCancelled):
			s.Cancelled = true
			s.Notices = append(s.Notices, notice(core.NoticeInfo, s.Stage, MsgCancelled))
		default:
			s.Notices = append(s.Notices, notice(core.NoticeError, failedStage(err), MsgFailedPrefix+rootMessage(err)))
		}
	})
	defer close(done)

	report := core.RunReport{
		SessionID:         snap.ID,
		Keyword:           snap.Keyword,
		Topic:             snap.Topic,
		Outcome:           core.OutcomeCompleted,
		LastCompleted:     snap.LastCompleted,
		Retries:           retries,
		DuplicateOverride: snap.DuplicateOverride,
		HasImage:          snap.Image != nil,
		Duration:          time.Since(started),
	}
	switch {
	case errors.Is(err, ErrCancelled):
		report.Outcome = core.OutcomeCancelled
		logger.Info("Generation cancelled", "session_id", snap.ID, "last_completed", string(snap.LastCompleted))
	case err != nil:
		report.Outcome = core.OutcomeFailed
		report.FailedStage = failedStage(err)
		report.Error = rootMessage(err)
		logger.Error("Generation failed", err, "session_id", snap.ID, "retries", retries)
	default:
		logger.Info("Generation completed", "session_id", snap.ID, "topic", snap.Topic, "duration", report.Duration.String())
	}

	if o.deps.Tracker != nil {
		o.deps.Tracker.TrackRun(context.WithoutCancel(ctx), report)
	}
	return report, err
}

var flow = []core.Stage{
	core.StageSelectingKeyword,
	core.StageGeneratingTopics,
	core.StageSelectingTopic,
	core.StageGeneratingArticle,
	core.StageGeneratingImage,
}

// runFrom runs the stages from `from` onward.
func (o *Orchestrator) runFrom(ctx context.Context, from core.Stage, wantImage bool) error {
	started := false
	for _, stage := range flow {
		if stage == from {
			started = true
		}
		if !started || (stage == core.StageGeneratingImage && !wantImage) {
			continue
		}
		if ctx.Err() != nil {
			return ErrCancelled
		}

		var err error
		switch stage {
		case core.StageSelectingKeyword:
			err = o.selectKeyword(ctx)
		case core.StageGeneratingTopics:
			err = o.generateTopics(ctx)
		case core.StageSelectingTopic:
			err = o.selectTopic()
		case core.StageGeneratingArticle:
			err = o.generateArticle(ctx)
		case core.StageGeneratingImage:
			err = o.generateImage(ctx, false)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) selectKeyword(ctx context.Context) error {
	snap := o.setStage(core.StageSelectingKeyword)

	sel, err := o.deps.Keywords.Select(ctx, snap.Category)
	if ctx.Err() != nil {
		return ErrCancelled
	}
	if err != nil {
		return &StageError{Stage: core.StageSelectingKeyword, Err: err}
	}

	o.update(func(s *core.Session) {
		o.selection = sel
		s.Keyword = sel.Keyword
		s.LastCompleted = core.StageSelectingKeyword
		s.Notices = append(s.Notices, notice(core.NoticeInfo, core.StageSelectingKeyword, fmt.Sprintf(msgKeywordSelected, sel.Keyword)))
	})
	logger.Info("Keyword selected", "keyword", sel.Keyword, "source", string(sel.Source), "attempts", sel.Attempts)
	return nil
}

func (o *Orchestrator) generateTopics(ctx context.Context) error {
	snap := o.setStage(core.StageGeneratingTopics)

	titles, err := o.deps.Topics.GenerateTopics(ctx, snap.Keyword)
	if ctx.Err() != nil {
		return ErrCancelled
	}
	if err != nil {
		return &StageError{Stage: core.StageGeneratingTopics, Err: err}
	}

	kept := FilterTitles(titles, snap.Keyword, o.cfg.MinTitleLength, o.cfg.RequireKeyword)
	if len(kept) == 0 {
		return &StageError{
			Stage: core.StageGeneratingTopics,
			Err:   fmt.Errorf("%w: %d titles rejected by filters", ErrNoTopics, len(titles)),
		}
	}
	flagged := flaggedTopics(kept, o.deps.TopicLedger)
	logger.Debug("Topics generated", "received", len(titles), "kept", len(kept), "duplicates", len(flagged))

	o.update(func(s *core.Session) {
		s.Candidates = kept
		s.Duplicates = flagged
		s.Topic = ""
		s.Article = nil
		s.Image = nil
		s.DuplicateOverride = false
		s.LastCompleted = core.StageGeneratingTopics
	})
	return nil
}

func (o *Orchestrator) selectTopic() error {
	snap := o.setStage(core.StageSelectingTopic)
	if len(snap.Candidates) == 0 {
		return &StageError{Stage: core.StageSelectingTopic, Err: ErrNoTopics}
	}

	idx, override := pickTopic(snap.Candidates, o.deps.TopicLedger)
	if override {
		logger.Warn("Every topic candidate is a duplicate, using the first", "candidates", len(snap.Candidates))
	}

	o.update(func(s *core.Session) {
		s.Topic = snap.Candidates[idx]
		s.DuplicateOverride = override
		s.LastCompleted = core.StageSelectingTopic
		if override {
			s.Notices = append(s.Notices, notice(core.NoticeWarning, core.StageSelectingTopic, MsgDuplicateOverride))
		}
	})
	return nil
}

func (o *Orchestrator) generateArticle(ctx context.Context) error {
	snap := o.setStage(core.StageGeneratingArticle)

	article, err := o.deps.Articles.GenerateArticle(ctx, snap.Topic, snap.Keyword)
	if ctx.Err() != nil {
		return ErrCancelled
	}
	if err != nil {
		return &StageError{Stage: core.StageGeneratingArticle, Err: err}
	}
	if article == nil || strings.TrimSpace(article.Markdown) == "" {
		return &StageError{Stage: core.StageGeneratingArticle, Err: errors.New("empty article")}
	}

	if o.deps.Finisher != nil {
		if err := o.deps.Finisher(article); err != nil {
			logger.Warn("Failed to render article", "error", err.Error())
		}
	}

	var sel keywords.Selection
	o.update(func(s *core.Session) {
		s.Article = article
		s.Image = nil
		s.LastCompleted = core.StageGeneratingArticle
		sel = o.selection
	})

	if o.deps.TopicLedger != nil {
		o.deps.TopicLedger.Record(snap.Topic)
	}
	if o.deps.Keywords != nil && sel.Keyword != "" {
		o.deps.Keywords.Commit(context.WithoutCancel(ctx), sel)
	}
	return nil
}

// generateImage attaches an image. Unless strict, failures become warnings.
func (o *Orchestrator) generateImage(ctx context.Context, strict bool) error {
	if o.deps.Images == nil {
		if strict {
			return &StageError{Stage: core.StageGeneratingImage, Err: errors.New("no image provider configured")}
		}
		o.update(func(s *core.Session) {
			s.Notices = append(s.Notices, notice(core.NoticeWarning, core.StageGeneratingImage, msgNoImageProvider))
		})
		return nil
	}

	snap := o.setStage(core.StageGeneratingImage)

	img, err := o.deps.Images.FetchImage(ctx, snap.Topic, snap.Keyword)
	if ctx.Err() != nil {
		return ErrCancelled
	}
	if err != nil {
		if strict {
			return &StageError{Stage: core.StageGeneratingImage, Err: err}
		}
		logger.Warn("Image stage failed", "error", err.Error())
		o.update(func(s *core.Session) {
			s.Notices = append(s.Notices, notice(core.NoticeWarning, core.StageGeneratingImage, fmt.Sprintf(msgImageFailed, err)))
		})
		return nil
	}

	o.update(func(s *core.Session) {
		s.Image = img
		s.LastCompleted = core.StageGeneratingImage
	})
	return nil
}

func (o *Orchestrator) setStage(stage core.Stage) core.Session {
	return o.update(func(s *core.Session) { s.Stage = stage })
}

// update mutates the session under the lock, persists it and notifies
// listeners. It returns the new snapshot.
func (o *Orchestrator) update(fn func(*core.Session)) core.Session {
	o.mu.Lock()
	fn(&o.session)
	snap, seq := o.persistLocked()
	o.mu.Unlock()

	o.notify(snap, seq)
	return snap
}

func (o *Orchestrator) persistLocked() (core.Session, uint64) {
	o.session.UpdatedAt = time.Now().UTC()
	if o.deps.Store != nil {
		data, err := json.Marshal(o.session)
		if err != nil {
			logger.Warn("Failed to encode session", "error", err.Error())
		} else {
			o.deps.Store.Set(store.KeySession, string(data))
		}
	}
	return o.snapshotLocked()
}

// snapshotLocked copies the session and stamps it with the next sequence
// number.
func (o *Orchestrator) snapshotLocked() (core.Session, uint64) {
	o.seq++
	return o.session.Clone(), o.seq
}

// notify hands snap to the listeners unless a later snapshot has already
// been delivered. Deliveries never overlap.
func (o *Orchestrator) notify(snap core.Session, seq uint64) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()
	if seq <= o.delivered {
		return
	}
	o.delivered = seq

	o.mu.Lock()
	listeners := append([]func(core.Session){}, o.listeners...)
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// restore loads the persisted session. A session saved mid-run belongs to a
// process that is gone, so it comes back idle.
func (o *Orchestrator) restore() {
	if o.deps.Store == nil {
		return
	}
	raw, ok := o.deps.Store.Get(store.KeySession)
	if !ok {
		return
	}

	s := core.NewSession()
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		logger.Warn("Discarding unreadable session", "error", err.Error())
		return
	}
	if s.Candidates == nil {
		s.Candidates = []string{}
	}
	if s.Duplicates == nil {
		s.Duplicates = []string{}
	}
	if s.Notices == nil {
		s.Notices = []core.Notice{}
	}
	s.Running = false
	s.Stage = core.StageIdle
	o.session = s
	if s.Keyword != "" {
		o.selection = keywords.Selection{Keyword: s.Keyword, Category: s.Category, Source: keywords.SourceManual}
	}
}

func notice(level core.NoticeLevel, stage core.Stage, msg string) core.Notice {
	return core.Notice{Level: level, Stage: stage, Message: msg, Time: time.Now().UTC()}
}

// rootMessage strips the stage prefix for user-facing messages.
func rootMessage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Err.Error()
	}
	return err.Error()
}
