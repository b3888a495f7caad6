// Package ui provides the terminal user interface using Bubble Tea.
package ui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/ls-skychart/internal/astro"
	"github.com/litescript/ls-skychart/internal/engine"
	"github.com/litescript/ls-skychart/internal/interaction"
	"github.com/litescript/ls-skychart/internal/skyview"
	"github.com/litescript/ls-skychart/internal/state"
	"github.com/litescript/ls-skychart/internal/version"
)

// Fixed chrome around the canvas.
const (
	headerLines = 2
	footerLines = 2
	detailLines = 8
	detailWrap  = 72

	frameRate     = 100 * time.Millisecond
	animFrameRate = 80 * time.Millisecond
)

// Msg types for Bubble Tea
type (
	// MountedMsg carries the result of the engine mount.
	MountedMsg struct {
		Report engine.Report
	}

	// FrameMsg repaints the chart while playback runs.
	FrameMsg time.Time

	// AnimTickMsg drives the spinner while mounting.
	AnimTickMsg time.Time

	// LocatedMsg reports the outcome of the locate action.
	LocatedMsg struct {
		OK bool
	}
)

// overlayKeys maps number keys to overlay toggles.
var overlayKeys = map[string]state.Overlay{
	"1": state.OverlayStars,
	"2": state.OverlayMansions,
	"3": state.OverlayConstellations,
	"4": state.OverlayMilkyWay,
	"5": state.OverlayPlanets,
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx    context.Context
	engine *engine.Engine
	view   *skyview.View

	width   int
	height  int
	ready   bool
	mounted bool
	report  engine.Report

	search    textinput.Model
	searching bool

	// md renders the detail panel; nil falls back to plain lines.
	md *glamour.TermRenderer

	statusMsg string
	animTick  int
}

// New creates the root UI model.
func New(ctx context.Context, e *engine.Engine, view *skyview.View) Model {
	si := textinput.New()
	si.Placeholder = "Search names or ids..."
	si.CharLimit = 40
	si.Width = 30
	si.Prompt = "/ "

	md, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(detailWrap),
	)

	return Model{
		ctx:    ctx,
		engine: e,
		view:   view,
		search: si,
		md:     md,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		mountCmd(m.ctx, m.engine),
		animTickCmd(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case " ":
			if m.engine.TogglePlay() {
				cmds = append(cmds, frameCmd())
			}

		case ">":
			s := m.engine.CycleSpeed()
			m.statusMsg = "Speed " + s.String()

		case "c":
			c := m.engine.CycleCulture()
			m.statusMsg = "Culture " + c.Label()

		case "/":
			m.searching = true
			m.search.Focus()

		case "g":
			m.statusMsg = "Locating..."
			cmds = append(cmds, locateCmd(m.ctx, m.engine))

		case "esc":
			m.engine.Interaction().Escape()

		default:
			if o, ok := overlayKeys[msg.String()]; ok {
				on := m.engine.Toggle(o)
				m.statusMsg = fmt.Sprintf("%s %s", o, onOff(on))
			}
		}

	case tea.MouseMsg:
		m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.view.SetTerminalSize(canvasSize(msg.Width, msg.Height))
		m.engine.Resize()

	case MountedMsg:
		m.mounted = true
		m.report = msg.Report
		m.statusMsg = mountStatus(msg.Report)

	case FrameMsg:
		if m.engine.Playing() {
			cmds = append(cmds, frameCmd())
		}

	case AnimTickMsg:
		m.animTick++
		if !m.mounted {
			cmds = append(cmds, animTickCmd())
		}

	case LocatedMsg:
		if msg.OK {
			loc := m.engine.Location()
			m.statusMsg = fmt.Sprintf("Located %.2f°, %.2f°", loc.Lat, loc.Lon)
		} else {
			m.statusMsg = "Location unavailable, keeping current observer"
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.engine.Search("")
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	// Live filtering on each keystroke.
	m.engine.Search(m.search.Value())
	return m, cmd
}

// handleMouse routes pointer events onto the canvas.
func (m *Model) handleMouse(msg tea.MouseMsg) {
	layer := m.engine.Interaction()
	x, y := float64(msg.X), float64(msg.Y-headerLines)

	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		layer.Click(x, y)
	case msg.Action == tea.MouseActionMotion:
		if layer.Tooltip().Visible {
			layer.Move(x, y)
		} else {
			layer.Hover(x, y)
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	canvas := m.view.Render(tooltipText(m.engine.Interaction().Tooltip())...)
	if canvas == "" {
		canvas = m.renderWaiting()
	}
	b.WriteString(canvas)
	b.WriteString("\n")

	if d := m.engine.Interaction().Detail(); d.Open {
		b.WriteString(m.renderDetail(d))
		b.WriteString("\n")
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9D4EDD")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229"))

	snap := m.engine.Snapshot()
	loc := m.engine.Location()

	play := "❚❚ paused"
	if m.engine.Playing() {
		play = "▶ playing"
	}

	line1 := "  " + titleStyle.Render("ls-skychart") +
		dimStyle.Render(fmt.Sprintf(" v%s | ", version.Version)) +
		accentStyle.Render(snap.Culture.Label()) +
		dimStyle.Render(" | ") + accentStyle.Render(play) +
		dimStyle.Render(" "+m.engine.Speed().String())

	line2 := "  " + dimStyle.Render(fmt.Sprintf("%s | %.2f°, %.2f° | %s",
		formatDate(m.engine.Date(), loc.TimezoneMinutes), loc.Lat, loc.Lon, renderToggles(snap)))
	return line1 + "\n" + line2
}

func renderToggles(snap state.Snapshot) string {
	var parts []string
	for i, o := range state.Overlays() {
		mark := "·"
		if snap.Visible(o) {
			mark = "●"
		}
		parts = append(parts, fmt.Sprintf("%d%s%s", i+1, mark, o))
	}
	return strings.Join(parts, " ")
}

func (m Model) renderWaiting() string {
	spinnerFrames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinner := spinnerFrames[m.animTick%len(spinnerFrames)]
	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#7B2CBF"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))

	if m.mounted {
		return "  " + dimStyle.Render("Chart not visible")
	}
	return "  " + accentStyle.Render(spinner) + dimStyle.Render(" Resolving star data...")
}

func (m Model) renderDetail(d interaction.Detail) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("60")).
		Padding(0, 1)

	lines := d.Lines()
	loc := m.engine.Location()
	if sky, ok := skyLine(d, m.engine.Date(), loc.Lat, loc.Lon); ok && len(lines) >= 2 {
		lines = append(lines[:2], append([]string{sky}, lines[2:]...)...)
	}
	if len(lines) > detailLines-2 {
		lines = lines[:detailLines-2]
	}
	if m.md != nil {
		if out, err := m.md.Render(detailMarkdown(lines)); err == nil {
			return box.Render(strings.TrimSpace(out))
		}
	}
	return box.Render(strings.Join(lines, "\n"))
}

// skyLine places the entry in the observer's sky at the displayed date.
func skyLine(d interaction.Detail, at time.Time, lat, lon float64) (string, bool) {
	c := d.Entry.Coord
	if c == nil {
		return "", false
	}
	hz := astro.ToHorizontal(astro.Equatorial{RAdeg: c.RAdeg, DecDeg: c.DecDeg}, astro.Observer{LatDeg: lat, LonDeg: lon}, at)
	if hz.AltDeg < 0 {
		return fmt.Sprintf("Sky: below horizon (alt %+.1f°)", hz.AltDeg), true
	}
	return fmt.Sprintf("Sky: alt %+.1f°  az %.1f°", hz.AltDeg, hz.AzDeg), true
}

// detailMarkdown turns "Key: value" panel lines into a compact list.
func detailMarkdown(lines []string) string {
	var b strings.Builder
	for _, line := range lines {
		if k, v, ok := strings.Cut(line, ": "); ok {
			fmt.Fprintf(&b, "- **%s** %s\n", k, v)
			continue
		}
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return b.String()
}

func (m Model) renderFooter() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))

	var help string
	if m.searching {
		help = m.search.View() + dimStyle.Render("  enter: keep | esc: clear")
	} else {
		help = dimStyle.Render("space: play | >: speed | c: culture | 1-5: layers | /: search | g: locate | esc: close | q: quit")
	}

	footer := "  " + help
	if m.statusMsg != "" {
		footer += "\n  " + dimStyle.Render(m.statusMsg)
	}
	return footer
}

func mountStatus(rep engine.Report) string {
	switch {
	case rep.HostErr != nil:
		return "Chart host unavailable"
	case !rep.Resolution.Validated:
		return "Star data unavailable, using " + rep.Resolution.Root()
	case !rep.Outcome.Visible:
		return "Chart not visible, continuing degraded"
	}
	msg := fmt.Sprintf("Data from %s | %d stars, %d mansions", rep.Resolution.Candidate.Name, rep.Stars.Drawn, rep.Mansions.Drawn)
	if len(rep.Failed) > 0 {
		msg += fmt.Sprintf(" | %d files failed", len(rep.Failed))
	}
	return msg
}

// canvasSize is the space left for the chart after the fixed chrome.
func canvasSize(width, height int) (int, int) {
	rows := height - headerLines - footerLines - detailLines
	if rows < 0 {
		rows = 0
	}
	return width, rows
}

func tooltipText(t interaction.Tooltip) []skyview.Text {
	if !t.Visible {
		return nil
	}
	return []skyview.Text{{
		X: int(math.Round(t.X)),
		Y: int(math.Round(t.Y)),
		S: t.Text,
	}}
}

// formatDate shows the displayed instant in the observer's fixed zone.
func formatDate(t time.Time, tzMinutes int) string {
	sign := "+"
	if tzMinutes < 0 {
		sign = "-"
	}
	m := abs(tzMinutes)
	zone := time.FixedZone(fmt.Sprintf("UTC%s%02d:%02d", sign, m/60, m%60), tzMinutes*60)
	return t.In(zone).Format("2006-01-02 15:04:05 MST")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func mountCmd(ctx context.Context, e *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		return MountedMsg{Report: e.Mount(ctx)}
	}
}

func locateCmd(ctx context.Context, e *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		return LocatedMsg{OK: e.Locate(ctx)}
	}
}

func frameCmd() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg {
		return FrameMsg(t)
	})
}

func animTickCmd() tea.Cmd {
	return tea.Tick(animFrameRate, func(t time.Time) tea.Msg {
		return AnimTickMsg(t)
	})
}
