// Package tui renders the live execution monitor for cascade watch: a
// table of recent executions and the raw event stream, fed over SSE.
package tui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cascadekit/cascade/internal/events"
)

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD"))

	statusOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	statusRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	statusFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	statusQueued  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	maxExecutions = 100
	maxEventLines = 50
)

// execution is one tracked execution row.
type execution struct {
	ID       string
	Command  string
	Target   string
	Origin   string
	Status   string
	Error    string
	Started  time.Time
	Duration string
}

// Model is the bubbletea model behind cascade watch.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	executions []*execution
	byID       map[string]*execution
	eventLog   []events.Event
	incoming   chan events.Event
	lastErr    error

	execTable table.Model

	health struct {
		Status        string
		UptimeSeconds int64
		Commands      int
	}
}

type eventMsg events.Event

type healthMsg struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Commands      int    `json:"commands"`
}

type errMsg struct{ err error }

// NewMonitor creates a monitor pointed at a running cascade API.
func NewMonitor(apiURL, apiKey string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Command", Width: 28},
			{Title: "Target", Width: 14},
			{Title: "Origin", Width: 10},
			{Title: "Duration", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		apiURL:    apiURL,
		apiKey:    apiKey,
		byID:      make(map[string]*execution),
		incoming:  make(chan events.Event, 100),
		execTable: t,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.streamEvents(),
		m.receiveNextEvent(),
		m.pollHealth(),
		tea.EnterAltScreen,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.execTable.SetWidth(m.width - 6)

	case eventMsg:
		m.handleEvent(events.Event(msg))
		m.updateTable()
		return m, m.receiveNextEvent()

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.Commands = msg.Commands
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return m.fetchHealth()
		})

	case errMsg:
		m.lastErr = msg.err
	}

	m.execTable, cmd = m.execTable.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(e events.Event) {
	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > maxEventLines {
		m.eventLog = m.eventLog[:maxEventLines]
	}

	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	switch e.Type {
	case events.TypeExecutionStarted:
		id, _ := data["id"].(string)
		if id == "" {
			return
		}
		ex := &execution{
			ID:      id,
			Status:  "running",
			Started: time.Now(),
		}
		ex.Command, _ = data["command"].(string)
		ex.Target, _ = data["target"].(string)
		ex.Origin, _ = data["origin"].(string)
		m.byID[id] = ex
		m.executions = append([]*execution{ex}, m.executions...)
		if len(m.executions) > maxExecutions {
			drop := m.executions[maxExecutions:]
			m.executions = m.executions[:maxExecutions]
			for _, d := range drop {
				delete(m.byID, d.ID)
			}
		}

	case events.TypeExecutionCompleted:
		id, _ := data["id"].(string)
		ex, ok := m.byID[id]
		if !ok {
			return
		}
		ex.Status, _ = data["status"].(string)
		ex.Error, _ = data["error"].(string)
		ex.Duration, _ = data["duration"].(string)
	}
}

func (m *Model) updateTable() {
	rows := make([]table.Row, 0, len(m.executions))
	for _, ex := range m.executions {
		rows = append(rows, table.Row{
			statusSymbol(ex.Status),
			ex.Command,
			ex.Target,
			ex.Origin,
			durationCell(ex),
		})
	}
	m.execTable.SetRows(rows)
}

func statusSymbol(status string) string {
	switch status {
	case "queued":
		return statusQueued.Render("○")
	case "running":
		return statusRunning.Render("◉")
	case "succeeded":
		return statusOK.Render("●")
	case "failed":
		return statusFailed.Render("∅")
	case "timed_out":
		return statusFailed.Render("◑")
	case "skipped":
		return statusQueued.Render("◌")
	}
	return "○"
}

func durationCell(ex *execution) string {
	if ex.Duration != "" {
		return ex.Duration
	}
	if ex.Started.IsZero() {
		return "-"
	}
	return time.Since(ex.Started).Round(time.Millisecond).String()
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Connecting..."
	}

	executionsView := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Executions"),
			m.execTable.View(),
		),
	)

	eventsView := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Event Stream"),
			m.renderEvents(),
		),
	)

	help := helpStyle.Render(" [q] Quit • [↑/↓] Scroll")

	return docStyle.Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			m.renderHeader(),
			executionsView,
			eventsView,
			help,
		),
	)
}

func (m *Model) renderHeader() string {
	status := statusOK.Render("RUNNING")
	if m.health.Status != "ok" && m.health.Status != "" {
		status = statusFailed.Render("DEGRADED")
	}
	if m.lastErr != nil {
		status = statusFailed.Render("DISCONNECTED")
	}

	uptime := time.Duration(m.health.UptimeSeconds) * time.Second
	items := []string{
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Uptime: %s", uptime.String()),
		fmt.Sprintf("Commands: %d", m.health.Commands),
	}

	cell := lipgloss.NewStyle().Width((m.width - 4) / 3)
	return borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinHorizontal(lipgloss.Top,
			cell.Render(items[0]),
			cell.Render(items[1]),
			cell.Render(items[2]),
		),
	)
}

func (m *Model) renderEvents() string {
	var lines []string
	for i, e := range m.eventLog {
		if i >= 10 {
			break
		}
		ts := e.At.Format("15:04:05")
		lines = append(lines, fmt.Sprintf("%s | %-21s | %s", ts, e.Type, string(e.Data)))
	}
	if len(lines) == 0 {
		return "  No events yet..."
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}

// streamEvents consumes the SSE endpoint and feeds parsed events into
// the incoming channel for the update loop.
func (m *Model) streamEvents() tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodGet, m.apiURL+"/v1/events", nil)
		if err != nil {
			return errMsg{err}
		}
		req.Header.Set("Authorization", "Bearer "+m.apiKey)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return errMsg{err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errMsg{fmt.Errorf("event stream returned %s", resp.Status)}
		}

		for ev := range parseSSE(resp.Body) {
			m.incoming <- ev
		}
		return errMsg{fmt.Errorf("event stream closed")}
	}
}

// parseSSE reads id/event/data frames from an SSE body.
func parseSSE(body interface{ Read([]byte) (int, error) }) <-chan events.Event {
	out := make(chan events.Event)
	go func() {
		defer close(out)
		var cur events.Event
		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "id: "):
				cur.ID, _ = strconv.ParseInt(line[4:], 10, 64)
			case strings.HasPrefix(line, "event: "):
				cur.Type = line[7:]
			case strings.HasPrefix(line, "data: "):
				cur.Data = []byte(line[6:])
			case line == "":
				if cur.Type != "" || len(cur.Data) > 0 {
					cur.At = time.Now()
					out <- cur
				}
				cur = events.Event{}
			}
		}
	}()
	return out
}

func (m *Model) receiveNextEvent() tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-m.incoming)
	}
}

func (m *Model) pollHealth() tea.Cmd {
	return func() tea.Msg {
		return m.fetchHealth()
	}
}

func (m *Model) fetchHealth() tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequest(http.MethodGet, m.apiURL+"/healthz", nil)
	if err != nil {
		return errMsg{err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return errMsg{err}
	}
	defer resp.Body.Close()

	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg{err}
	}
	return h
}
