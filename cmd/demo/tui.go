package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kass/go-geo-cellindex/pkg/bench"
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginTop(1).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))
)

type stage int

const (
	stageLoading stage = iota
	stageComparing
	stageDone
)

type (
	progressMsg      float64
	presetStartedMsg string
	doneMsg          struct{}
	errMsg           struct{ err error }
)

type loadDoneMsg struct {
	points  int
	elapsed time.Duration
}

type presetDoneMsg struct {
	preset bench.Preset
	cmp    bench.Comparison
}

type model struct {
	stage    stage
	spinner  spinner.Model
	progress progress.Model
	percent  float64

	total    int
	loaded   int
	loadTime time.Duration

	current string
	results []presetDoneMsg
	err     error
}

func initialModel(total int) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{
		stage:    stageLoading,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		total:    total,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = max(msg.Width-10, 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		m.percent = float64(msg)
		return m, nil

	case loadDoneMsg:
		m.loaded = msg.points
		m.loadTime = msg.elapsed
		m.stage = stageComparing
		return m, nil

	case presetStartedMsg:
		m.current = string(msg)
		return m, nil

	case presetDoneMsg:
		m.results = append(m.results, msg)
		return m, nil

	case doneMsg:
		m.stage = stageDone
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🌍 Cell-Key Index Demo"))
	b.WriteString("\n\n")

	switch m.stage {
	case stageLoading:
		b.WriteString(subtitleStyle.Render("Loading Points"))
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("%s Loading %d seeded points...\n\n", m.spinner.View(), m.total))
		b.WriteString(m.progress.ViewAs(m.percent))

	case stageComparing:
		b.WriteString(renderLoadStats(m.loaded, m.loadTime))
		b.WriteString("\n")
		b.WriteString(renderResults(m.results))
		b.WriteString(fmt.Sprintf("\n%s Comparing strategies on the %s region...", m.spinner.View(), m.current))

	case stageDone:
		b.WriteString(renderLoadStats(m.loaded, m.loadTime))
		b.WriteString("\n")
		b.WriteString(renderResults(m.results))
		b.WriteString(renderSummary(m.results))
	}

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render("✗ " + m.err.Error()))
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("Press 'q' to quit"))

	return b.String()
}

func renderLoadStats(points int, duration time.Duration) string {
	stats := fmt.Sprintf(
		"✓ Loaded %s points in %s\n"+
			"✓ Points per second: %s",
		statStyle.Render(fmt.Sprintf("%d", points)),
		statStyle.Render(duration.Round(time.Millisecond).String()),
		statStyle.Render(fmt.Sprintf("%.0f", float64(points)/duration.Seconds())),
	)

	return boxStyle.Render(successStyle.Render("Loading Complete!\n\n") + stats)
}

func renderResults(results []presetDoneMsg) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("%-8s %12s %12s %10s %10s %7s %8s %8s",
		"Region", "Keyrange ms", "BBox ms", "Keyrange", "BBox", "Ranges", "False+", "False-")))
	b.WriteString("\n")
	for _, r := range results {
		c := r.cmp
		row := fmt.Sprintf("%-8s %12.3f %12.3f %10d %10d %7d %8d %8d",
			r.preset.Name, c.KeyRangeMs, c.BoundingBoxMs, c.KeyRangeCount,
			c.BoundingBoxCount, c.Ranges, c.FalsePositives, c.FalseNegatives)
		if c.FalsePositives+c.FalseNegatives > 0 {
			b.WriteString(infoStyle.Render(row))
		} else {
			b.WriteString(successStyle.Render(row))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderSummary(results []presetDoneMsg) string {
	var diverged []string
	for _, r := range results {
		if r.cmp.FalsePositives+r.cmp.FalseNegatives > 0 {
			diverged = append(diverged, r.preset.Name)
		}
	}

	if len(diverged) == 0 {
		return boxStyle.Render(successStyle.Render("Both strategies returned the same points on every region."))
	}
	return boxStyle.Render(infoStyle.Render(fmt.Sprintf(
		"Key-range results differ from the bounding box on: %s\n"+
			"A range between two corner keys follows the curve, not the box.",
		strings.Join(diverged, ", "))))
}
