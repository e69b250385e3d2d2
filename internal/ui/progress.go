package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/fenilsonani/filesearch/internal/engine"
	"github.com/fenilsonani/filesearch/internal/progress"
	"github.com/fenilsonani/filesearch/internal/ui/styles"
)

// eventMsg carries one progress event into the model
type eventMsg progress.Event

// doneMsg is sent once the event channel is closed
type doneMsg struct{}

// ProgressModel renders a session's progress with a spinner
type ProgressModel struct {
	title     string
	spinner   spinner.Model
	events    <-chan progress.Event
	cancel    func()
	start     time.Time
	last      *progress.Event
	done      bool
	cancelled bool
}

// NewProgressModel creates a progress view fed by events. cancel is called
// when the user interrupts.
func NewProgressModel(title string, events <-chan progress.Event, cancel func()) *ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SpinnerStyle

	return &ProgressModel{
		title:   title,
		spinner: s,
		events:  events,
		cancel:  cancel,
		start:   time.Now(),
	}
}

// waitForEvent blocks on the next event
func waitForEvent(events <-chan progress.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(e)
	}
}

// Init initializes the progress view
func (m *ProgressModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForEvent(m.events),
	)
}

// Update handles messages
func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		e := progress.Event(msg)
		m.last = &e
		return m, waitForEvent(m.events)

	case doneMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the progress view
func (m *ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(m.title))
	b.WriteString("\n")

	switch {
	case m.cancelled:
		b.WriteString(styles.ErrorStyle.Render("Cancelled"))
	case m.last == nil:
		b.WriteString(m.spinner.View())
		b.WriteString(" Starting...")
	case m.last.Phase == progress.PhaseError:
		b.WriteString(styles.ErrorStyle.Render(progress.Format(*m.last, m.start)))
	case m.last.Phase == progress.PhaseComplete:
		b.WriteString(styles.SuccessStyle.Render("✓ " + progress.Format(*m.last, m.start)))
	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(styles.PhaseStyle.Render(progress.Format(*m.last, m.start)))
	}
	b.WriteString("\n")

	if !m.done && !m.cancelled {
		b.WriteString(styles.HelpStyle.Render("Press ctrl+c to cancel"))
		b.WriteString("\n")
	}
	return b.String()
}

// Cancelled reports whether the user interrupted the session
func (m *ProgressModel) Cancelled() bool {
	return m.cancelled
}

// Last returns the most recent event, or nil
func (m *ProgressModel) Last() *progress.Event {
	return m.last
}

// IsInteractive reports whether f is a terminal
func IsInteractive(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// RunProgress shows s's progress on out until it finishes or the user
// cancels it.
func RunProgress(title string, s *engine.Session, out io.Writer) error {
	m := NewProgressModel(title, s.Events(), s.Cancel)
	p := tea.NewProgram(m, tea.WithOutput(out))

	if _, err := p.Run(); err != nil {
		s.Cancel()
		return fmt.Errorf("error running progress view: %w", err)
	}
	return nil
}

// LogProgress writes every event of s to log until the session ends.
func LogProgress(s *engine.Session, log *zap.Logger) {
	for e := range s.Events() {
		fields := []zap.Field{
			zap.String("session", s.ID),
			zap.String("phase", string(e.Phase)),
			zap.Int("count", e.Count),
		}
		if e.Detail != "" {
			fields = append(fields, zap.String("detail", e.Detail))
		}
		if e.Phase == progress.PhaseError {
			log.Warn("session failed", append(fields, zap.Error(e.Err))...)
			continue
		}
		log.Info(e.Phase.Label(), fields...)
	}
}

// Follow reports s's progress on out: a live view on a terminal, log lines
// otherwise. It returns once the session is done.
func Follow(title string, s *engine.Session, out *os.File, log *zap.Logger) error {
	if IsInteractive(out) {
		if err := RunProgress(title, s, out); err != nil {
			return err
		}
	} else {
		LogProgress(s, log)
	}
	<-s.Done()
	return nil
}
