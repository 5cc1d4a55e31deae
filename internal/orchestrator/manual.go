package orchestrator

import (
	"blogsmith/internal/core"
	"blogsmith/internal/keywords"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateTopics runs only the topic stage for keyword and starts a new
// session. Duplicate candidates are kept so the user can pick any of them.
func (o *Orchestrator) GenerateTopics(ctx context.Context, keyword string) ([]string, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: 키워드를 입력해 주세요", ErrValidation)
	}
	if err := o.checkCredentials(); err != nil {
		return nil, err
	}

	runCtx, err := o.claim(ctx, func(s *core.Session) {
		category := s.Category
		*s = core.NewSession()
		s.ID = uuid.NewString()
		s.Keyword = keyword
		s.Category = category
		s.StartedAt = time.Now().UTC()
		o.selection = keywords.Selection{Keyword: keyword, Category: category, Source: keywords.SourceManual}
	})
	if err != nil {
		return nil, err
	}

	err = o.generateTopics(runCtx)
	snap := o.releaseStep(err)
	if err != nil {
		return nil, err
	}
	return snap.Candidates, nil
}

// SelectTopic chooses candidate index as the session topic and clears any
// article or image written for a previous topic.
func (o *Orchestrator) SelectTopic(index int) (string, error) {
	o.mu.Lock()
	if o.session.Running {
		o.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	if index < 0 || index >= len(o.session.Candidates) {
		n := len(o.session.Candidates)
		o.mu.Unlock()
		return "", fmt.Errorf("%w: topic index %d out of range (%d candidates)", ErrValidation, index, n)
	}

	o.session.Topic = o.session.Candidates[index]
	o.session.DuplicateOverride = false
	o.session.Article = nil
	o.session.Image = nil
	o.session.LastCompleted = core.StageSelectingTopic
	snap, seq := o.persistLocked()
	o.mu.Unlock()

	o.notify(snap, seq)
	return snap.Topic, nil
}

// GenerateArticle writes the article for the selected topic.
func (o *Orchestrator) GenerateArticle(ctx context.Context) (*core.Article, error) {
	if o.Session().Topic == "" {
		return nil, fmt.Errorf("%w: 먼저 주제를 선택해 주세요", ErrValidation)
	}
	if err := o.checkCredentials(); err != nil {
		return nil, err
	}

	runCtx, err := o.claim(ctx, nil)
	if err != nil {
		return nil, err
	}

	err = o.generateArticle(runCtx)
	snap := o.releaseStep(err)
	if err != nil {
		return nil, err
	}
	return snap.Article, nil
}

// GenerateImage attaches an image to the written article. Unlike the
// one-click flow, a provider failure is returned to the caller.
func (o *Orchestrator) GenerateImage(ctx context.Context) (*core.Image, error) {
	if o.Session().Article == nil {
		return nil, fmt.Errorf("%w: 먼저 글을 생성해 주세요", ErrValidation)
	}
	if o.deps.Images == nil {
		return nil, fmt.Errorf("%w: no image provider configured", ErrValidation)
	}

	runCtx, err := o.claim(ctx, nil)
	if err != nil {
		return nil, err
	}

	err = o.generateImage(runCtx, true)
	snap := o.releaseStep(err)
	if err != nil {
		return nil, err
	}
	return snap.Image, nil
}

// releaseStep ends a manual step and records a notice for its outcome.
func (o *Orchestrator) releaseStep(err error) core.Session {
	snap, done := o.release(func(s *core.Session) {
		switch {
		case err == nil:
			s.Cancelled = false
		case errors.Is(err, ErrCancelled):
			s.Cancelled = true
			s.Notices = append(s.Notices, notice(core.NoticeInfo, s.Stage, MsgCancelled))
		default:
			s.Notices = append(s.Notices, notice(core.NoticeError, failedStage(err), MsgFailedPrefix+rootMessage(err)))
		}
	})
	close(done)
	return snap
}
