// Package tui shows the progress of a generation run in the terminal.
package tui

import (
	"blogsmith/internal/core"
	"blogsmith/internal/orchestrator"
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Stopper cancels the active run.
type Stopper interface {
	Stop() bool
}

type sessionMsg core.Session

type doneMsg struct {
	report core.RunReport
	err    error
}

var stages = []core.Stage{
	core.StageSelectingKeyword,
	core.StageGeneratingTopics,
	core.StageSelectingTopic,
	core.StageGeneratingArticle,
	core.StageGeneratingImage,
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	activeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// model represents the state of the progress view.
type model struct {
	session  core.Session
	updates  <-chan core.Session
	stopper  Stopper
	report   core.RunReport
	err      error
	done     bool
	stopping bool
	quitting bool
	width    int
}

func newModel(initial core.Session, updates <-chan core.Session, stopper Stopper) model {
	return model{session: initial, updates: updates, stopper: stopper}
}

// Init starts listening for session updates.
func (m model) Init() tea.Cmd {
	return listen(m.updates)
}

func listen(updates <-chan core.Session) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return nil
		}
		return sessionMsg(s)
	}
}

// Update handles messages and updates the model accordingly.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case sessionMsg:
		m.session = core.Session(msg)
		return m, listen(m.updates)

	case doneMsg:
		m.done = true
		m.report = msg.report
		m.err = msg.err
		if m.quitting {
			return m, tea.Quit
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "s":
			if !m.done && !m.stopping && m.stopper != nil {
				m.stopping = m.stopper.Stop()
			}
		case "ctrl+c", "q":
			m.quitting = true
			if m.done {
				return m, tea.Quit
			}
			// wait for the run to unwind before leaving
			if m.stopper != nil {
				m.stopping = m.stopper.Stop()
			}
		case "enter":
			if m.done {
				return m, tea.Quit
			}
		}
	}

	return m, nil
}

// View renders the progress view.
func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("blogsmith"))
	b.WriteString("\n\n")

	if m.session.Keyword != "" {
		fmt.Fprintf(&b, "키워드: %s\n", m.session.Keyword)
	}
	if m.session.Topic != "" {
		topic := m.session.Topic
		if m.session.DuplicateOverride {
			topic += warnStyle.Render(" (중복)")
		}
		fmt.Fprintf(&b, "주제: %s\n", topic)
	}
	b.WriteString("\n")

	for _, st := range stages {
		b.WriteString(m.stageLine(st))
		b.WriteString("\n")
	}

	if notices := m.session.Notices; len(notices) > 0 {
		start := 0
		if len(notices) > 5 {
			start = len(notices) - 5
		}
		var lines []string
		for _, n := range notices[start:] {
			lines = append(lines, renderNotice(n))
		}
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.done:
		b.WriteString(m.summary())
		b.WriteString("\n\n[enter/q] 종료")
	case m.stopping:
		b.WriteString(warnStyle.Render("중단하는 중..."))
	default:
		b.WriteString(pendingStyle.Render("[s] 중단 | [q] 종료"))
	}
	b.WriteString("\n")

	return lipgloss.NewStyle().Margin(1, 2).Render(b.String())
}

func (m model) stageLine(st core.Stage) string {
	switch {
	case m.session.Running && m.session.Stage == st:
		return activeStyle.Render("▶ " + st.Label())
	case stageIndex(st) <= stageIndex(m.session.LastCompleted):
		return doneStyle.Render("✓ " + st.Label())
	default:
		return pendingStyle.Render("· " + st.Label())
	}
}

func (m model) summary() string {
	switch m.report.Outcome {
	case core.OutcomeCompleted:
		s := doneStyle.Render("완료")
		if m.session.Article != nil {
			s += fmt.Sprintf(" · %d자", m.session.Article.CharCount)
		}
		return s + fmt.Sprintf(" · %s", m.report.Duration.Round(100*time.Millisecond))
	case core.OutcomeCancelled:
		return warnStyle.Render(orchestrator.MsgCancelled)
	default:
		msg := "실패"
		if m.err != nil {
			msg = m.err.Error()
		}
		return errorStyle.Render(msg)
	}
}

func renderNotice(n core.Notice) string {
	switch n.Level {
	case core.NoticeError:
		return errorStyle.Render("✗ " + n.Message)
	case core.NoticeWarning:
		return warnStyle.Render("! " + n.Message)
	default:
		return "· " + n.Message
	}
}

// stageIndex orders stages; idle and unknown stages sort first.
func stageIndex(st core.Stage) int {
	for i, s := range stages {
		if s == st {
			return i
		}
	}
	return -1
}

// Run executes req on orch while showing progress. It returns when the run
// has ended and the user has closed the view.
func Run(ctx context.Context, orch *orchestrator.Orchestrator, req orchestrator.Request) (core.RunReport, error) {
	updates := make(chan core.Session, 64)
	orch.Subscribe(func(s core.Session) {
		select {
		case updates <- s:
		default:
		}
	})

	p := tea.NewProgram(newModel(orch.Session(), updates, orch), tea.WithAltScreen())

	result := make(chan doneMsg, 1)
	go func() {
		report, err := orch.Run(ctx, req)
		result <- doneMsg{report: report, err: err}
		p.Send(doneMsg{report: report, err: err})
	}()

	if _, err := p.Run(); err != nil {
		orch.Stop()
		<-result
		return core.RunReport{}, fmt.Errorf("terminal UI failed: %w", err)
	}

	res := <-result
	return res.report, res.err
}
