package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshInterval = 200 * time.Millisecond

// SnapshotFunc returns the current state to render.
type SnapshotFunc func() UIState

// TUIModel implements the tea.Model interface
type TUIModel struct {
	title       string
	snapshot    SnapshotFunc
	engineState UIState
	interrupted bool

	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model

	width  int
	height int

	// Styles
	titleStyle   lipgloss.Style
	infoStyle    lipgloss.Style
	streamStyle  lipgloss.Style
	helpStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
}

// TUIUpdateMsg carries a fresh snapshot to the model.
type TUIUpdateMsg struct {
	State UIState
}

func NewTUIModel(title string, snapshot SnapshotFunc) TUIModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	prog := progress.New(progress.WithDefaultGradient())

	m := TUIModel{
		title:        title,
		snapshot:     snapshot,
		spinner:      s,
		progress:     prog,
		titleStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1),
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		streamStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		helpStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		successStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	}
	if snapshot != nil {
		m.engineState = snapshot()
	}
	return m
}

// Interrupted reports whether the user quit before the run was done.
func (m TUIModel) Interrupted() bool {
	return m.interrupted
}

// State returns the last rendered snapshot.
func (m TUIModel) State() UIState {
	return m.engineState
}

func (m TUIModel) tick() tea.Cmd {
	if m.snapshot == nil {
		return nil
	}
	snapshot := m.snapshot
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return TUIUpdateMsg{State: snapshot()}
	})
}

func (m TUIModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.tick(),
	)
}

func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.engineState.Done {
				m.interrupted = true
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 14

		headerHeight := 5
		footerHeight := 2
		m.viewport = viewport.New(msg.Width, max(msg.Height-headerHeight-footerHeight, 1))

	case TUIUpdateMsg:
		m.engineState = msg.State
		if m.engineState.Done {
			return m, tea.Quit
		}
		cmds = append(cmds, m.tick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m TUIModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	st := m.engineState
	var sb strings.Builder

	// Header
	header := fmt.Sprintf("%s %s %s", m.spinner.View(), m.title, m.titleStyle.Render(strings.ToUpper(string(st.Phase))))
	sb.WriteString(header + "\n")

	percent := st.Percent()
	opsInfo := fmt.Sprintf("ETA: %s | Workers: %d | Files: %d/%d | %s / %s | %s",
		formatETA(percent, st.Throughput(), st.TotalBytes, st.CompletedBytes),
		st.Workers, st.CompletedFiles, st.TotalFiles,
		formatBytes(st.CompletedBytes), formatBytes(st.TotalBytes),
		formatSpeed(st.Throughput()))
	if st.Retries > 0 {
		opsInfo += fmt.Sprintf(" | Retries: %d", st.Retries)
	}

	sb.WriteString(m.infoStyle.Render(opsInfo) + "\n")
	sb.WriteString(m.progress.ViewAs(percent) + "\n\n")

	sb.WriteString("Active Transfers:\n")
	var streamContent strings.Builder

	if len(st.ActiveStreams) == 0 {
		streamContent.WriteString(m.infoStyle.Render("No active transfers..."))
	} else {
		for _, s := range st.ActiveStreams {
			running := time.Duration(0)
			if !s.Since.IsZero() {
				running = time.Since(s.Since).Round(time.Second)
			}
			streamContent.WriteString(fmt.Sprintf("%-10s | %-8s | %s\n",
				m.streamStyle.Render(formatBytes(uint64(max(s.Size, 0)))), running, truncatePath(s.FilePath, 60)))
		}
	}

	m.viewport.SetContent(streamContent.String())
	sb.WriteString(m.viewport.View())

	// Footer
	help := m.helpStyle.Render("q/ctrl+c: stop after the running transfers")
	switch {
	case st.Err != nil:
		help = m.errorStyle.Render("Failed: " + st.Err.Error())
	case st.Done:
		help = m.successStyle.Render("Staging Complete!")
	}
	sb.WriteString("\n" + help)

	return sb.String()
}

func truncatePath(p string, width int) string {
	if len(p) <= width || width < 4 {
		return p
	}
	return "..." + p[len(p)-width+3:]
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatSpeed(bytesPerSec float64) string {
	if bytesPerSec >= 1024*1024*1024 {
		return fmt.Sprintf("%.2f GB/s", bytesPerSec/(1024*1024*1024))
	} else if bytesPerSec >= 1024*1024 {
		return fmt.Sprintf("%.2f MB/s", bytesPerSec/(1024*1024))
	} else if bytesPerSec >= 1024 {
		return fmt.Sprintf("%.2f KB/s", bytesPerSec/1024)
	}
	return fmt.Sprintf("%.0f B/s", bytesPerSec)
}

func formatETA(progress float64, bytesPerSec float64, totalBytes, completedBytes uint64) string {
	if progress == 0 || bytesPerSec <= 0 || totalBytes == 0 {
		return "Calculating..."
	}
	if completedBytes >= totalBytes {
		return "0s"
	}

	remaining := float64(totalBytes - completedBytes)
	d := time.Duration(remaining / bytesPerSec * float64(time.Second))

	if d.Hours() > 24 {
		return "> 1d"
	}

	return d.Round(time.Second).String()
}
