package ui

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/cybre/lumen-companion/internal/routine"
	"github.com/cybre/lumen-companion/internal/utils"
)

// Status is one snapshot of the companion for display.
type Status struct {
	Tick       uint64
	Pixels     [routine.RingSize]routine.Pixel
	Routine    string
	Brightness int
	Mood       string
	Trust      float64
	BPM        float64
	BeatPhase  float64
	Role       string
	Peers      int
}

// Visualizer renders the live companion state in the terminal. Updates are
// throttled so the tick loop never waits on the screen.
type Visualizer struct {
	program   *tea.Program
	mu        sync.Mutex
	lastSend  time.Time
	throttle  time.Duration
	closeOnce sync.Once
}

type statusMsg struct {
	status     Status
	receivedAt time.Time
}

type visualizerModel struct {
	status      Status
	lastUpdated time.Time
	ready       bool
	onExit      func()
	onRoutine   func(routine.ID)
	exitOnce    sync.Once
}

var (
	vizContainerStyle   = lipgloss.NewStyle().Padding(0, 2)
	vizTitleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	vizTimestampStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	vizMetricLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	vizMetricValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	vizLeaderStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	vizFollowerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	vizWaitingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	vizHintStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	vizBarFillStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	vizBarEmptyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
)

const (
	vizBarWidth   = 24
	renderLatency = 45 * time.Millisecond
)

// NewVisualizer starts the display. onRoutine receives routine switch
// requests typed at the keyboard; onExit fires once when the user quits.
func NewVisualizer(onExit func(), onRoutine func(routine.ID)) *Visualizer {
	model := &visualizerModel{onExit: onExit, onRoutine: onRoutine}
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithoutSignalHandler())

	v := &Visualizer{
		program:  program,
		throttle: renderLatency,
	}

	go program.Run()

	return v
}

// Update pushes a fresh status snapshot, dropping it when the last one was
// pushed too recently.
func (v *Visualizer) Update(status Status) {
	v.mu.Lock()
	if time.Since(v.lastSend) < v.throttle {
		v.mu.Unlock()
		return
	}
	v.lastSend = time.Now()
	v.mu.Unlock()

	v.program.Send(statusMsg{
		status:     status,
		receivedAt: time.Now(),
	})
}

func (v *Visualizer) Close() {
	v.closeOnce.Do(func() {
		v.program.Quit()
	})
}

func (m *visualizerModel) Init() tea.Cmd {
	return nil
}

func (m *visualizerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status = msg.status
		m.lastUpdated = msg.receivedAt
		m.ready = true
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.invokeExit()
			return m, tea.Quit
		case "1", "2", "3", "4":
			if m.onRoutine != nil {
				m.onRoutine(routine.ID(msg.String()[0] - '1'))
			}
		}
	case tea.QuitMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *visualizerModel) View() string {
	body := ""
	if !m.ready {
		header := vizTitleStyle.Render("Lumen Companion")
		waiting := vizWaitingStyle.Render("Waiting for the first tick…")
		body = lipgloss.JoinVertical(lipgloss.Left, header, "", waiting)
	} else {
		body = renderStatusView(m.status, m.lastUpdated)
	}
	return vizContainerStyle.Render(body)
}

func renderStatusView(status Status, updatedAt time.Time) string {
	header := lipgloss.JoinHorizontal(lipgloss.Left,
		vizTitleStyle.Render("Lumen Companion"),
		"  ",
		vizTimestampStyle.Render(updatedAt.Format("15:04:05.000")),
	)

	ring := renderRing(status.Pixels)
	metrics := renderMetrics(status)
	bars := lipgloss.JoinVertical(lipgloss.Left,
		renderBar("Trust", status.Trust),
		renderBar("Beat Phase", status.BeatPhase),
	)
	controls := vizHintStyle.Render("1 companion · 2 cruising · 3 meditate · 4 dance · q quit")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		"",
		ring,
		"",
		metrics,
		"",
		bars,
		"",
		controls,
	)
}

func renderRing(pixels [routine.RingSize]routine.Pixel) string {
	blocks := make([]string, len(pixels))
	for i, p := range pixels {
		color := lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", p.R, p.G, p.B))
		blocks[i] = lipgloss.NewStyle().Background(color).Render("  ")
	}
	return lipgloss.JoinHorizontal(lipgloss.Left,
		vizMetricLabelStyle.Render("Ring:"),
		" ",
		strings.Join(blocks, " "),
	)
}

func renderMetrics(status Status) string {
	roleStyle := vizFollowerStyle
	if status.Role == "leader" {
		roleStyle = vizLeaderStyle
	}

	top := lipgloss.JoinHorizontal(lipgloss.Left,
		renderMetric("Mood", status.Mood),
		"   ",
		renderMetric("Routine", status.Routine),
		"   ",
		renderMetric("Brightness", fmt.Sprintf("%d%%", status.Brightness)),
	)

	bpm := "—"
	if status.BPM > 0 {
		bpm = fmt.Sprintf("%.0f", status.BPM)
	}
	bottom := lipgloss.JoinHorizontal(lipgloss.Left,
		renderMetric("BPM", bpm),
		"   ",
		lipgloss.JoinHorizontal(lipgloss.Left,
			vizMetricLabelStyle.Render("Role:"), " ", roleStyle.Render(status.Role)),
		"   ",
		renderMetric("Peers", fmt.Sprintf("%d", status.Peers)),
	)

	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}

func renderMetric(label, value string) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		vizMetricLabelStyle.Render(label+":"),
		" ",
		vizMetricValueStyle.Render(value),
	)
}

func renderBar(label string, value float64) string {
	clamped := utils.Clamp(value, 0.0, 1.0)
	filled := int(math.Round(clamped * vizBarWidth))
	if clamped > 0 && filled == 0 {
		filled = 1
	}
	if filled > vizBarWidth {
		filled = vizBarWidth
	}

	builder := strings.Builder{}
	builder.WriteString(vizMetricLabelStyle.Render(fmt.Sprintf("%-11s", label)))
	builder.WriteString(" [")
	builder.WriteString(vizBarFillStyle.Render(strings.Repeat("█", filled)))
	builder.WriteString(vizBarEmptyStyle.Render(strings.Repeat("░", vizBarWidth-filled)))
	builder.WriteString("] ")
	builder.WriteString(vizMetricValueStyle.Render(fmt.Sprintf("%3.0f%%", clamped*100)))

	return builder.String()
}

func (m *visualizerModel) invokeExit() {
	m.exitOnce.Do(func() {
		if m.onExit != nil {
			m.onExit()
		}
	})
}

// IsInteractiveTerminal reports whether stdin and stdout are attached to a
// TTY, which the visualizer needs.
func IsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
