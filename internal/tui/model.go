package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/opensync-io/opensync/internal/g1000"
	"github.com/opensync-io/opensync/internal/models"
)

type panel int

const (
	panelRecords panel = iota
	panelLog
)

// Model is the dashboard state.
type Model struct {
	db      RecordLister
	logPath string

	width  int
	height int
	focus  panel

	records  []*models.ProcessedRecord
	selected int
	offset   int
	loaded   bool

	daemon DaemonStatusMsg

	logView viewport.Model
	follow  bool

	spinner  spinner.Model
	help     help.Model
	showHelp bool
	err      error
}

// NewModel creates the dashboard model.
func NewModel(db RecordLister, logPath string) Model {
	return Model{
		db:      db,
		logPath: logPath,
		logView: viewport.New(80, 10),
		follow:  true,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:    help.New(),
	}
}

// Init starts the first refresh and the poll timer.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tickCmd(), m.spinner.Tick)
}

func (m Model) refresh() tea.Cmd {
	return tea.Batch(loadRecordsCmd(m.db), checkDaemonCmd(), tailLogCmd(m.logPath))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.refresh(), tickCmd())

	case RecordsLoadedMsg:
		m.loaded = true
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.records = msg.Records
		m.clampSelection()
		return m, nil

	case DaemonStatusMsg:
		m.daemon = msg
		return m, nil

	case LogTailMsg:
		m.logView.SetContent(msg.Content)
		if m.follow {
			m.logView.GotoBottom()
		}
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		m.layout()
	case key.Matches(msg, keys.Tab):
		if m.focus == panelRecords {
			m.focus = panelLog
		} else {
			m.focus = panelRecords
		}
	case key.Matches(msg, keys.Refresh):
		m.err = nil
		return m, m.refresh()
	case key.Matches(msg, keys.Power):
		return m, togglePowerCmd()
	case key.Matches(msg, keys.Up):
		if m.focus == panelLog {
			m.logView.LineUp(1)
			m.follow = m.logView.AtBottom()
		} else if m.selected > 0 {
			m.selected--
			m.clampSelection()
		}
	case key.Matches(msg, keys.Down):
		if m.focus == panelLog {
			m.logView.LineDown(1)
			m.follow = m.logView.AtBottom()
		} else if m.selected < len(m.records)-1 {
			m.selected++
			m.clampSelection()
		}
	case key.Matches(msg, keys.PgUp):
		m.logView.HalfViewUp()
		m.follow = m.logView.AtBottom()
	case key.Matches(msg, keys.PgDown):
		m.logView.HalfViewDown()
		m.follow = m.logView.AtBottom()
	}
	return m, nil
}

// Selected returns the highlighted record, or nil.
func (m Model) Selected() *models.ProcessedRecord {
	if m.selected < 0 || m.selected >= len(m.records) {
		return nil
	}
	return m.records[m.selected]
}

func (m *Model) clampSelection() {
	if m.selected >= len(m.records) {
		m.selected = len(m.records) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	rows := m.listHeight()
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if rows > 0 && m.selected >= m.offset+rows {
		m.offset = m.selected - rows + 1
	}
}

// layout sizes the panels: records and detail side by side on top, the
// daemon log below, header and status bar one line each.
func (m *Model) layout() {
	m.logView.Width = max(m.width-2, 10)
	m.logView.Height = max(m.logHeight()-2, 1)
	m.help.Width = m.width
}

func (m Model) bodyHeight() int {
	return max(m.height-2, 6)
}

func (m Model) logHeight() int {
	return max(m.bodyHeight()/3, 4)
}

func (m Model) listHeight() int {
	// Borders and the section title take three lines.
	return max(m.bodyHeight()-m.logHeight()-3, 1)
}

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 {
		return m.spinner.View() + " Loading..."
	}

	topHeight := m.bodyHeight() - m.logHeight()
	listWidth := max(m.width*2/5, 20)
	detailWidth := max(m.width-listWidth, 20)

	list := m.panelStyle(panelRecords).
		Width(listWidth - 2).Height(topHeight - 2).
		Render(m.viewRecords(listWidth - 2))
	detail := unfocusedBorderStyle.
		Width(detailWidth - 2).Height(topHeight - 2).
		Render(m.viewDetail())
	logs := m.panelStyle(panelLog).
		Width(m.width - 2).Height(m.logHeight() - 2).
		Render(m.logView.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		lipgloss.JoinHorizontal(lipgloss.Top, list, detail),
		logs,
		m.viewStatusBar(),
	)
}

func (m Model) panelStyle(p panel) lipgloss.Style {
	if m.focus == p {
		return focusedBorderStyle
	}
	return unfocusedBorderStyle
}

func (m Model) viewHeader() string {
	left := " " + brandStyle.Render("OpenSync")
	right := m.daemonBadge() + " "
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return headerStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) daemonBadge() string {
	switch {
	case m.daemon.Info == nil:
		return badgeStoppedStyle.Render("● Daemon stopped")
	case m.daemon.Err != nil:
		return badgeStoppingStyle.Render(fmt.Sprintf("● PID %d unreachable", m.daemon.Info.PID))
	case m.daemon.Status == healthpb.HealthCheckResponse_SERVING:
		return badgePollingStyle.Render(fmt.Sprintf("● Polling (%s, PID %d)", m.daemon.Info.Mode, m.daemon.Info.PID))
	default:
		return badgeStoppingStyle.Render(fmt.Sprintf("● Shutting down (PID %d)", m.daemon.Info.PID))
	}
}

func (m Model) viewRecords(width int) string {
	title := sectionHeaderStyle.Render(fmt.Sprintf("Flight logs (%d)", len(m.records)))
	if !m.loaded {
		return title + "\n" + m.spinner.View() + dimStyle.Render(" Loading records...")
	}
	if len(m.records) == 0 {
		return title + "\n" + dimStyle.Render("No flight logs processed yet.")
	}

	lines := []string{title}
	end := min(m.offset+m.listHeight(), len(m.records))
	for i := m.offset; i < end; i++ {
		line := formatRecordLine(m.records[i])
		if i == m.selected {
			line = selectedItemStyle.Width(width).Render("> " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatRecordLine(rec *models.ProcessedRecord) string {
	mark := recordOKStyle.Render("●")
	if rec.Error != "" {
		mark = recordErrorStyle.Render("✗")
	}
	return fmt.Sprintf("%s %s %s %4.1fh", mark, rec.ProcessedAt.Local().Format("01-02 15:04"), rec.DisplayName, rec.Summary.Hobbs())
}

func (m Model) viewDetail() string {
	rec := m.Selected()
	if rec == nil {
		return dimStyle.Render("Select a flight log.")
	}

	lines := []string{sectionHeaderStyle.Render(rec.DisplayName)}
	if rec.Error != "" {
		lines = append(lines, recordErrorStyle.Render("Error: "+rec.Error))
	}
	lines = append(lines, labelStyle.Render("Origin")+rec.Origin)
	if rec.Summary != nil {
		for _, row := range g1000.Rows(rec.Summary) {
			lines = append(lines, labelStyle.Render(row[0])+row[1])
		}
	}
	if rec.DataPath != "" {
		lines = append(lines, labelStyle.Render("Raw log")+dimStyle.Render(rec.DataPath))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewStatusBar() string {
	text := m.help.View(keys)
	if m.err != nil {
		text = recordErrorStyle.Render("Error: "+m.err.Error()) + "  " + text
	}
	return statusBarStyle.Width(m.width).Render(text)
}
