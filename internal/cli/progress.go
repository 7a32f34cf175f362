package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/fitplan/internal/client"
	"github.com/raphaelgruber/fitplan/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// snapshot is the display state derived from one event.
type snapshot struct {
	percent  int
	status   string
	detail   string
	warning  string
	terminal bool
	err      error
}

// describe turns a server event into display state.
func describe(ev client.Event) snapshot {
	switch ev.Name {
	case models.EventUploadProgress:
		var d models.UploadProgressEvent
		_ = ev.Decode(&d)
		detail := formatBytes(d.BytesReceived)
		if d.BytesExpected > 0 {
			detail += " / " + formatBytes(d.BytesExpected)
		}
		return snapshot{percent: d.Percent, status: "uploading", detail: detail}
	case models.EventUploadComplete:
		var d models.UploadCompleteEvent
		_ = ev.Decode(&d)
		return snapshot{percent: 100, status: "uploaded", detail: fmt.Sprintf("%d files, %s", len(d.Files), formatBytes(d.TotalBytes)), terminal: true}
	case models.EventUploadError:
		var d models.UploadErrorEvent
		_ = ev.Decode(&d)
		return snapshot{status: "upload failed", terminal: true, err: errors.New(d.Error)}
	case models.EventProcessingStart:
		var d models.ProcessingStartEvent
		_ = ev.Decode(&d)
		return snapshot{status: "processing", detail: fmt.Sprintf("%d files queued", d.TotalFiles)}
	case models.EventProcessingProgress:
		var d models.ProcessingProgressEvent
		_ = ev.Decode(&d)
		detail := fmt.Sprintf("file %d/%d %s", d.FileIndex, d.TotalFiles, d.CurrentFile)
		if d.EmbeddingProgress > 0 && d.EmbeddingProgress < 100 {
			detail += fmt.Sprintf(" (embedding %d%%)", d.EmbeddingProgress)
		}
		return snapshot{percent: d.Percent, status: "processing", detail: strings.TrimSpace(detail)}
	case models.EventProcessingError:
		var d models.ProcessingErrorEvent
		_ = ev.Decode(&d)
		if d.FileID != "" {
			return snapshot{status: "processing", warning: fmt.Sprintf("%s: %s", d.FileName, d.Error)}
		}
		return snapshot{status: "processing failed", terminal: true, err: errors.New(d.Error)}
	case models.EventProcessingComplete:
		var d models.ProcessingCompleteEvent
		_ = ev.Decode(&d)
		return snapshot{
			percent:  100,
			status:   string(d.Status),
			detail:   fmt.Sprintf("%d/%d files, %d chunks", d.ProcessedFiles, d.TotalFiles, d.TotalChunks),
			terminal: true,
		}
	case models.EventGenerationProgress:
		var d models.GenerationProgressEvent
		_ = ev.Decode(&d)
		return snapshot{percent: d.Progress, status: d.Step, detail: d.Message}
	case models.EventGenerationComplete:
		var d models.GenerationCompleteEvent
		_ = ev.Decode(&d)
		return snapshot{percent: 100, status: "completed", detail: d.Message, terminal: true}
	case models.EventGenerationError:
		var d models.GenerationErrorEvent
		_ = ev.Decode(&d)
		return snapshot{status: "failed", terminal: true, err: errors.New(d.Error)}
	}
	return snapshot{}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// eventMsg carries a server event into the UI.
type eventMsg struct{ ev client.Event }

// workDoneMsg reports the end of the background work.
type workDoneMsg struct{ err error }

// progressModel is the bubbletea model for live job progress.
type progressModel struct {
	title    string
	current  snapshot
	warnings []string
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(title string) progressModel {
	return progressModel{
		title:    title,
		progress: progress.New(progress.WithDefaultBlend(), progress.WithWidth(40)),
		theme:    defaultTheme,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case eventMsg:
		snap := describe(msg.ev)
		if snap.warning != "" {
			m.warnings = append(m.warnings, snap.warning)
		}
		if snap.status != "" {
			if snap.percent < m.current.percent && !snap.terminal {
				snap.percent = m.current.percent
			}
			m.current = snap
		}
		return m, nil

	case workDoneMsg:
		m.done = true
		m.err = msg.err
		if m.err == nil {
			m.err = m.current.err
		}
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", orDash(m.current.status)))
	bar := m.progress.ViewAs(float64(m.current.percent) / 100)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n%s %s %3d%%\n", m.title, status, bar, m.current.percent)
	if m.current.detail != "" {
		fmt.Fprintf(&sb, "  %s\n", m.current.detail)
	}
	for _, w := range m.warnings {
		sb.WriteString(m.theme.errorStyle().Render("  ✗ "+w) + "\n")
	}
	sb.WriteString(hint + "\n")
	return sb.String()
}

func (m progressModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nJob continues in background.\n")
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ %s: %s\n", m.title, m.err))
	}

	out := m.theme.completedStyle().Render(fmt.Sprintf("✓ %s: %s", m.title, m.current.status)) + "\n"
	if m.current.detail != "" {
		out += fmt.Sprintf("  %s\n", m.current.detail)
	}
	for _, w := range m.warnings {
		out += m.theme.errorStyle().Render("  ✗ "+w) + "\n"
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// workFunc performs the command's requests and reports events through emit.
// It returns once the awaited terminal event was seen.
type workFunc func(ctx context.Context, emit func(client.Event)) error

// runWithProgress runs work while rendering its events: an interactive
// progress bar on terminals, plain lines otherwise.
func runWithProgress(ctx context.Context, title string, work workFunc) error {
	if noUI || jsonOut || !term.IsTerminal(int(os.Stdout.Fd())) {
		return runPlain(ctx, os.Stderr, title, work)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(title))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := work(gctx, func(ev client.Event) { p.Send(eventMsg{ev: ev}) })
		p.Send(workDoneMsg{err: err})
		return err
	})

	finalModel, uiErr := p.Run()
	cancel()
	workErr := g.Wait()
	if uiErr != nil {
		return fmt.Errorf("progress UI error: %w", uiErr)
	}

	if m, ok := finalModel.(progressModel); ok {
		// Ctrl+C leaves the job running on the server; not an error.
		if m.quitting {
			return nil
		}
		return m.err
	}
	return workErr
}

// runPlain prints one line per event.
func runPlain(ctx context.Context, w io.Writer, title string, work workFunc) error {
	var failed error
	err := work(ctx, func(ev client.Event) {
		snap := describe(ev)
		switch {
		case snap.warning != "":
			fmt.Fprintf(w, "%s: warning: %s\n", title, snap.warning)
		case snap.err != nil:
			failed = snap.err
			fmt.Fprintf(w, "%s: %s: %s\n", title, snap.status, snap.err)
		case snap.status != "":
			fmt.Fprintf(w, "%s: [%s] %3d%% %s\n", title, snap.status, snap.percent, snap.detail)
		}
	})
	if err != nil {
		return err
	}
	return failed
}

// followUntil returns a watcher handler that emits every event and stops
// at the first event for which stop returns true.
func followUntil(emit func(client.Event), stop func(client.Event) bool) func(client.Event) error {
	return func(ev client.Event) error {
		emit(ev)
		if stop(ev) {
			return client.ErrStopWatch
		}
		return nil
	}
}

func isUploadTerminal(ev client.Event) bool {
	return ev.Name == models.EventUploadComplete || ev.Name == models.EventUploadError
}

func isProcessingTerminal(ev client.Event) bool {
	return ev.Name == models.EventUploadError ||
		(ev.Terminal() && (ev.Name == models.EventProcessingComplete || ev.Name == models.EventProcessingError))
}
