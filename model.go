package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/entro314-labs/spacemap/internal/config"
	"github.com/entro314-labs/spacemap/internal/core"
	"github.com/entro314-labs/spacemap/internal/nav"
	"github.com/entro314-labs/spacemap/internal/session"
)

// doubleClickWindow is the longest gap between two presses on the same
// cell that still counts as a double-click.
const doubleClickWindow = 400 * time.Millisecond

// canvasLeft is the container's left padding.
const canvasLeft = 1

type keyMap struct {
	ZoomIn   key.Binding
	ZoomOut  key.Binding
	Top      key.Binding
	Collapse key.Binding
	Rescan   key.Binding
	Stop     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		ZoomIn: key.NewBinding(
			key.WithKeys("enter", "z"),
			key.WithHelp("enter/z", "zoom into selection"),
		),
		ZoomOut: key.NewBinding(
			key.WithKeys("backspace", "u"),
			key.WithHelp("⌫/u", "zoom out"),
		),
		Top: key.NewBinding(
			key.WithKeys("home", "t"),
			key.WithHelp("t", "top"),
		),
		Collapse: key.NewBinding(
			key.WithKeys("c", "esc"),
			key.WithHelp("c", "collapse all"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop scan"),
		),
		Help: key.NewBinding(
			key.WithKeys("?", "h"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ZoomIn, k.ZoomOut, k.Collapse, k.Rescan, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.ZoomIn, k.ZoomOut, k.Top, k.Collapse}, {k.Rescan, k.Stop, k.Help, k.Quit}}
}

// click remembers the last left press for double-click detection and the
// tiles it was aimed at.
type click struct {
	at       time.Time
	col, row int
	tiles    []core.Tile
}

func (c click) doubledBy(col, row int, now time.Time) bool {
	return !c.at.IsZero() && c.col == col && c.row == row && now.Sub(c.at) <= doubleClickWindow
}

type model struct {
	ctx    context.Context
	cancel context.CancelFunc
	root   string
	cfg    config.Config

	sess     *session.Session
	state    nav.State
	tiles    []core.Tile
	progress session.Progress
	zoomed   bool

	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	scanBar  progress.Model
	pulse    float64
	pulseDir float64

	loading   bool
	err       error
	lastEvent string
	scanID    int
	lastClick click

	width, height int
	cols, rows    int
	canvasTop     int
}

type styles struct {
	header    lipgloss.Style
	title     lipgloss.Style
	status    lipgloss.Style
	muted     lipgloss.Style
	accent    lipgloss.Style
	danger    lipgloss.Style
	warning   lipgloss.Style
	chip      lipgloss.Style
	container lipgloss.Style
}

var ui = styles{
	container: lipgloss.NewStyle().Padding(0, canvasLeft),
	header:    lipgloss.NewStyle(),
	title:     lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
	status:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	accent:    lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
	danger:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
	warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	chip:      lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("62")).Padding(0, 1),
}

// terminalConfig fits the geometry to character cells: expanded
// directories get a label row and one-row tiles keep their labels.
func terminalConfig(cfg config.Config) config.Config {
	cfg.Nav.Header = max(cfg.Nav.Header, cellHeight)
	cfg.Nav.MinLabel = min(cfg.Nav.MinLabel, cellHeight-1)
	return cfg
}

func newModel(ctx context.Context, root string, cfg config.Config) model {
	ctx, cancel := context.WithCancel(ctx)
	cfg = terminalConfig(cfg)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	scanBar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(),
	)

	return model{
		ctx:      ctx,
		cancel:   cancel,
		root:     root,
		cfg:      cfg,
		state:    nav.New(core.Rect{}, cfg.Nav.MaxDepth),
		spinner:  sp,
		help:     help.New(),
		keys:     newKeyMap(),
		scanBar:  scanBar,
		pulseDir: 1,
		loading:  true,
		scanID:   1,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, scanStartCmd(m.ctx, m.root, m.cfg, m.scanID), scanPulseCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.updateLayout(msg.Width, msg.Height)
		m.refresh()
	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	case scanPulseMsg:
		if m.loading {
			m.pulse += 0.06 * m.pulseDir
			if m.pulse >= 1 {
				m.pulse = 1
				m.pulseDir = -1
			} else if m.pulse <= 0 {
				m.pulse = 0
				m.pulseDir = 1
			}
			cmds = append(cmds, scanPulseCmd())
		}
	case scanStartedMsg:
		if msg.ID != m.scanID {
			if msg.Session != nil {
				msg.Session.Cancel()
			}
			break
		}
		if msg.Err != nil {
			m.loading = false
			m.err = msg.Err
			m.lastEvent = fmt.Sprintf("Scan failed: %v", msg.Err)
			break
		}
		m.sess = msg.Session
		m.state = m.sess.NewState(m.state.Canvas)
		m.lastEvent = fmt.Sprintf("Scanning %s", m.root)
		cmds = append(cmds, scanTickCmd(m.scanID))
	case scanTickMsg:
		if msg.ID != m.scanID || m.sess == nil {
			break
		}
		if m.poll() {
			cmds = append(cmds, scanTickCmd(m.scanID))
		}
	case tea.MouseMsg:
		m.handleMouse(msg, time.Now())
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.sess != nil {
				m.sess.Cancel()
			}
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.resize()
			m.refresh()
		case key.Matches(msg, m.keys.Rescan):
			var scanCmds []tea.Cmd
			m, scanCmds = m.startScan()
			cmds = append(cmds, scanCmds...)
		case key.Matches(msg, m.keys.Stop):
			if m.sess != nil && m.loading {
				m.sess.Cancel()
				m.lastEvent = "Stopping scan…"
			}
		case key.Matches(msg, m.keys.ZoomIn):
			m.zoomIntoSelection()
		case key.Matches(msg, m.keys.ZoomOut):
			if m.sess != nil {
				m.state = m.sess.ZoomOut(m.state)
				m.refresh()
				m.lastEvent = "Zoomed out to " + m.zoomPath()
			}
		case key.Matches(msg, m.keys.Top):
			m.state = nav.ZoomTo(m.state, core.RootID)
			m.refresh()
			m.lastEvent = "Back at the scan root"
		case key.Matches(msg, m.keys.Collapse):
			m.state = nav.CollapseAll(m.state)
			m.refresh()
			m.lastEvent = "Collapsed all directories"
		}
	}

	return m, tea.Batch(cmds...)
}

// poll reads the crawl counters and redraws. It reports whether the crawl
// is still running.
func (m *model) poll() bool {
	m.progress = m.sess.Progress()
	running := !m.progress.Done && !m.progress.Cancelled
	if !running {
		m.loading = false
		if err := m.sess.Wait(); err != nil {
			m.err = err
		}
		if !m.zoomed && m.progress.Done {
			m.zoomed = true
			if st, ok := m.sess.AutoZoom(m.state); ok {
				m.state = st
			}
		}
		m.lastEvent = fmt.Sprintf("Scan complete: %d entries in %s",
			m.progress.Entries, m.progress.Elapsed.Truncate(10*time.Millisecond))
		if m.progress.Cancelled {
			m.lastEvent = fmt.Sprintf("Scan stopped after %d entries", m.progress.Entries)
		}
	}
	m.refresh()
	return running
}

func (m *model) refresh() {
	if m.sess == nil || m.state.Canvas.Empty() {
		return
	}
	tiles, err := m.sess.CurrentView(m.state)
	if err != nil {
		m.err = err
		return
	}
	m.tiles = tiles
}

func (m *model) handleMouse(msg tea.MouseMsg, now time.Time) {
	if m.sess == nil || msg.Action != tea.MouseActionPress {
		return
	}
	col, row := msg.X-canvasLeft, msg.Y-m.canvasTop
	if col < 0 || row < 0 || col >= m.cols || row >= m.rows {
		return
	}
	ev := nav.Event{Kind: nav.Click, Pos: cellPoint(col, row)}
	tiles := m.tiles

	switch msg.Button {
	case tea.MouseButtonLeft:
		if m.lastClick.doubledBy(col, row, now) {
			ev.Kind = nav.DoubleClick
			tiles = m.lastClick.tiles
			m.lastClick = click{}
		} else {
			m.lastClick = click{at: now, col: col, row: row, tiles: m.tiles}
		}
	case tea.MouseButtonRight:
		ev.Kind = nav.RightClick
	default:
		return
	}

	before := m.state.ZoomRoot
	m.state = m.sess.HandlePointer(m.state, ev, tiles)
	m.refresh()
	if m.state.ZoomRoot != before {
		m.lastEvent = "Zoomed into " + m.zoomPath()
	}
}

func (m *model) zoomIntoSelection() {
	t, ok := m.selected()
	if !ok || !t.IsDir() {
		return
	}
	m.state = nav.ZoomTo(m.state, t.ID)
	m.refresh()
	m.lastEvent = "Zoomed into " + m.zoomPath()
}

func (m model) selected() (core.Tile, bool) {
	for _, t := range m.tiles {
		if t.Selected {
			return t, true
		}
	}
	return core.Tile{}, false
}

func (m model) startScan() (model, []tea.Cmd) {
	if m.sess != nil {
		m.sess.Cancel()
	}
	m.scanID++
	m.sess = nil
	m.tiles = nil
	m.state = nav.New(m.state.Canvas, m.cfg.Nav.MaxDepth)
	m.progress = session.Progress{}
	m.zoomed = false
	m.loading = true
	m.err = nil
	m.lastClick = click{}
	m.pulse = 0
	m.pulseDir = 1
	m.lastEvent = "Scanning…"

	cmds := []tea.Cmd{m.spinner.Tick, scanStartCmd(m.ctx, m.root, m.cfg, m.scanID), scanPulseCmd()}
	return m, cmds
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading…"
	}

	view := lipgloss.JoinVertical(
		lipgloss.Left,
		m.headerView(),
		m.canvasView(),
		m.statusView(),
		m.footerView(),
	)
	return ui.container.Render(view)
}

func (m *model) updateLayout(width, height int) {
	if width == 0 || height == 0 {
		return
	}
	m.width = max(width, 60)
	m.height = max(height, 12)
	m.resize()
}

func (m *model) resize() {
	if m.width == 0 {
		return
	}
	headerHeight := lipgloss.Height(m.headerView())
	statusHeight := lipgloss.Height(m.statusView())
	footerHeight := lipgloss.Height(m.footerView())

	m.canvasTop = headerHeight
	m.cols = m.width - 2*canvasLeft
	m.rows = max(m.height-headerHeight-statusHeight-footerHeight, 3)
	m.state = m.state.WithCanvas(canvasRect(m.cols, m.rows))
	m.scanBar.Width = max(m.width-28, 20)
}

func (m model) headerView() string {
	title := ui.title.Render("spacemap")
	mode := ui.chip.Render(m.cfg.Layout.Mode.String())
	line := lipgloss.JoinHorizontal(lipgloss.Left, title, " ", mode)

	where := ui.muted.Render(fmt.Sprintf("Root: %s", m.root))
	if m.sess != nil && m.state.ZoomRoot != core.RootID {
		where = lipgloss.JoinHorizontal(lipgloss.Left, where, ui.muted.Render(" · "), ui.accent.Render(m.zoomPath()))
	}
	return ui.header.Render(lipgloss.JoinVertical(lipgloss.Left, line, where))
}

func (m model) canvasView() string {
	g := newGrid(m.cols, m.rows)
	paintTiles(g, m.tiles)
	if len(m.tiles) == 0 {
		msg := "Nothing to show"
		if m.loading {
			msg = "Waiting for the first entries…"
		}
		g.text(max((m.cols-len(msg))/2, 0), m.rows/2, m.cols, msg, textColor, false)
	}
	return g.String()
}

func (m model) statusView() string {
	p := m.progress
	if m.loading {
		line := fmt.Sprintf("%s Scanning… %d entries · %s · %d errors · %s",
			m.spinner.View(), p.Entries, core.FormatSize(p.Bytes), p.Errors, p.Elapsed.Truncate(100*time.Millisecond))
		bar := m.scanBar.ViewAs(m.pulse)
		return lipgloss.JoinVertical(lipgloss.Left, ui.status.Render(line), ui.muted.Render(bar))
	}

	var status string
	if m.err != nil {
		status = ui.danger.Render(fmt.Sprintf("Error: %v", m.err))
	} else {
		parts := []string{
			fmt.Sprintf("Files: %d", p.Files),
			fmt.Sprintf("Dirs: %d", p.Dirs),
			fmt.Sprintf("Total: %s", core.FormatSize(p.Bytes)),
			fmt.Sprintf("Scan: %s", p.Elapsed.Truncate(10*time.Millisecond)),
		}
		if p.Errors > 0 {
			parts = append(parts, ui.warning.Render(fmt.Sprintf("Unreadable: %d", p.Errors)))
		}
		if p.Cancelled {
			parts = append(parts, ui.warning.Render("stopped"))
		}
		status = ui.status.Render(strings.Join(parts, " · "))
	}
	return lipgloss.JoinVertical(lipgloss.Left, status, m.selectionView())
}

func (m model) selectionView() string {
	t, ok := m.selected()
	if !ok || m.sess == nil {
		return ui.muted.Render("Click to open a directory, right-click to zoom in")
	}
	path, err := m.sess.Path(t.ID)
	if err != nil {
		return ui.danger.Render(err.Error())
	}
	if rel, err := filepath.Rel(m.root, path); err == nil {
		path = rel
	}
	parts := []string{ui.accent.Render(path), core.FormatSize(t.Size)}
	if cat := categoryOf(t.Name, t.Kind); cat != "" {
		parts = append(parts, ui.chip.Render(cat))
	}
	if e, ok := m.sess.Entry(t.ID); ok {
		if !e.ModTime.IsZero() {
			parts = append(parts, e.ModTime.Format("2006-01-02 15:04"))
		}
		if e.Err != "" {
			parts = append(parts, ui.danger.Render(e.Err))
		}
	}
	return strings.Join(parts, " · ")
}

func (m model) footerView() string {
	return lipgloss.JoinVertical(lipgloss.Left, ui.muted.Render(m.lastEvent), m.help.View(m.keys))
}

// zoomPath is the zoom root relative to the scan root.
func (m model) zoomPath() string {
	if m.sess == nil || m.state.ZoomRoot == core.RootID {
		return "."
	}
	path, err := m.sess.Path(m.state.ZoomRoot)
	if err != nil {
		return "?"
	}
	if rel, err := filepath.Rel(m.root, path); err == nil {
		return rel
	}
	return path
}
