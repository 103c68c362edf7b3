package tui

import (
	"fmt"
	"image/color"
	"sort"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	rowStyle    = lipgloss.NewStyle().Padding(0, 1)
	selRowStyle = rowStyle.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("212"))
	statusColor = map[string]color.Color{
		"acquired":  lipgloss.Color("245"),
		"running":   lipgloss.Color("214"),
		"completed": lipgloss.Color("42"),
		"failed":    lipgloss.Color("196"),
	}
)

// Model is the bubbletea program driving the terminal dashboard.
type Model struct {
	client *Client
	rows   map[string]*sessionRow
	order  []string
	sel    int

	spin spinner.Model

	width, height int
	quitting      bool
	err           error
}

// NewModel creates a dashboard model reading events from client.
func NewModel(client *Client) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return &Model{
		client: client,
		rows:   make(map[string]*sessionRow),
		spin:   s,
	}
}

type frameMsg struct {
	eventType string
	sessionID string
	payload   string
}

type frameErrMsg struct{ err error }

func waitForFrame(c *Client) tea.Cmd {
	return func() tea.Msg {
		f, err := c.ReadFrame()
		if err != nil {
			return frameErrMsg{err}
		}
		return frameMsg{eventType: f.Event, sessionID: f.SessionID, payload: string(f.Payload)}
	}
}

// Init starts the spinner and the first frame read.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForFrame(m.client))
}

// Update handles incoming websocket frames and key input.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.sel > 0 {
				m.sel--
			}
		case "down", "j":
			if m.sel < len(m.order)-1 {
				m.sel++
			}
		}
		return m, nil

	case frameMsg:
		m.applyFrame(msg)
		return m, waitForFrame(m.client)

	case frameErrMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) applyFrame(f frameMsg) {
	sessionID := f.sessionID
	if sessionID == "" {
		sessionID = "-"
	}
	row, ok := m.rows[sessionID]
	if !ok {
		row = &sessionRow{SessionID: sessionID, StartedAt: time.Now()}
		m.rows[sessionID] = row
		m.order = append(m.order, sessionID)
		sort.Strings(m.order)
	}
	row.apply(f.eventType, f.payload)
}

// View renders the session table and, for the selected failed session, an
// exception detail pane rendered through glamour.
func (m *Model) View() tea.View {
	return tea.NewView(m.renderView())
}

func (m *Model) renderView() string {
	if m.quitting {
		if m.err != nil {
			return fmt.Sprintf("dashboard connection lost: %v\n", m.err)
		}
		return "bye\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("bridge sessions") + "\n\n")

	if len(m.order) == 0 {
		fmt.Fprintf(&b, "%s waiting for events...\n", m.spin.View())
		return b.String()
	}

	header := fmt.Sprintf("%-36s %-10s %-8s %-10s %s", "session", "partition", "records", "status", "executable")
	b.WriteString(rowStyle.Render(truncateToWidth(header, m.width)) + "\n")

	for i, id := range m.order {
		row := m.rows[id]
		line := fmt.Sprintf("%-36s %-10d %-8d %-10s %s", row.SessionID, row.Partition, row.Records, row.Status, row.Executable)
		line = truncateToWidth(line, m.width)
		style := rowStyle
		if c, ok := statusColor[row.Status]; ok {
			style = style.Foreground(c)
		}
		if i == m.sel {
			style = selRowStyle
		}
		b.WriteString(style.Render(line) + "\n")
	}

	if m.sel < len(m.order) {
		selected := m.rows[m.order[m.sel]]
		if selected.Status == "failed" && selected.FailureMsg != "" {
			b.WriteString("\n" + headerStyle.Render(selected.FailureKind) + "\n")
			rendered, err := glamour.Render(selected.FailureMsg, "dark")
			if err != nil {
				b.WriteString(selected.FailureMsg + "\n")
			} else {
				b.WriteString(rendered)
			}
		}
	}

	return b.String()
}

// truncateToWidth clips a rendered line to the terminal's real width (in
// runes) so a long executable path doesn't wrap the table onto a second
// line. width <= 0 means no terminal size is known yet, so the line is left
// untouched.
func truncateToWidth(line string, width int) string {
	runes := []rune(line)
	if width <= 0 || len(runes) <= width {
		return line
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}
