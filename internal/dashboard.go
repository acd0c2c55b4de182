package anttop

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

// Stopper stops a running load test
type Stopper interface {
	StopLoadTest(ctx context.Context, key string) (*Ack, error)
}

type DashboardOptions struct {
	// Key is fetched as soon as the dashboard starts, when set
	Key string

	// Timeout bounds one fetch cycle
	Timeout time.Duration

	// RefreshInterval is how often the execution list is reloaded
	RefreshInterval time.Duration
}

const (
	VIEW_RESULTS = iota
	VIEW_METRICS
	VIEW_STATISTICS
)

type modalKind int

const (
	modalNone modalKind = iota
	modalNotice
	modalConfirmStop
)

type dashboardModel struct {
	cache   *Cache
	session *Session
	stopper Stopper
	opts    DashboardOptions

	states     []ExecutionState
	selected   int
	view       int
	views      []string
	resultTabs *TabSet
	metricTabs *TabSet

	modal  modalKind
	notice string
	status string

	width  int
	height int
	ready  bool
}

type tickMsg time.Time

type statesMsg struct {
	states []ExecutionState
	err    error
}

type fetchDoneMsg struct {
	outcome Outcome
}

type stopDoneMsg struct {
	key string
	ack *Ack
	err error
}

func (m dashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func NewDashboard(cache *Cache, session *Session, stopper Stopper, opts DashboardOptions) dashboardModel {
	if opts.Timeout <= 0 {
		opts.Timeout = RequestDuration()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = STATE_REFRESH * time.Second
	}
	return dashboardModel{
		cache:      cache,
		session:    session,
		stopper:    stopper,
		opts:       opts,
		views:      []string{"Results", "Metrics", "Statistics"},
		resultTabs: NewTabSet(session.ResultCharts()),
		metricTabs: NewTabSet(session.MetricCharts()),
	}
}

func (m dashboardModel) loadStatesCmd() tea.Cmd {
	lister := m.cache.StateLister
	size := max(m.cache.Size, 1)
	timeout := m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		states, err := lister.ExecutionStates(ctx, 1, size)
		return statesMsg{states: states, err: err}
	}
}

func (m dashboardModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadStatesCmd(), m.tickCmd()}
	if m.opts.Key != "" {
		if err := m.session.Begin(m.opts.Key); err == nil {
			cmds = append(cmds, m.fetchCmd(m.opts.Key))
		}
	}
	return tea.Batch(cmds...)
}

// fetchCmd runs the fetch off the UI goroutine; the outcome comes back as a
// fetchDoneMsg and is rendered in Update
func (m dashboardModel) fetchCmd(key string) tea.Cmd {
	session := m.session
	timeout := m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fetchDoneMsg{outcome: session.Fetch(ctx, key)}
	}
}

func (m dashboardModel) stopCmd(key string) tea.Cmd {
	stopper := m.stopper
	timeout := m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ack, err := stopper.StopLoadTest(ctx, key)
		return stopDoneMsg{key: key, ack: ack, err: err}
	}
}

func (m dashboardModel) beginFetch(key string) (dashboardModel, tea.Cmd) {
	if key == "" {
		return m.notify(ErrNoSelection.Error()), nil
	}
	if err := m.session.Begin(key); err != nil {
		return m.notify(err.Error()), nil
	}
	m.status = "Fetching " + key + "..."
	return m, m.fetchCmd(key)
}

func (m dashboardModel) notify(notice string) dashboardModel {
	m.modal = modalNotice
	m.notice = notice
	return m
}

func (m dashboardModel) selectedKey() string {
	if m.selected < 0 || m.selected >= len(m.states) {
		return ""
	}
	return m.states[m.selected].LoadTestKey
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case tickMsg:
		return m, tea.Batch(m.loadStatesCmd(), m.tickCmd())

	case statesMsg:
		if msg.err != nil {
			log.Printf("Error listing load tests: %v", msg.err)
			m.status = "Error listing load tests: " + msg.err.Error()
			return m, nil
		}
		selected := m.selectedKey()
		m.cache.store(msg.states)
		m.states = groupStates(msg.states)
		m.selected = 0
		for i, s := range m.states {
			if s.LoadTestKey == selected {
				m.selected = i
				break
			}
		}

	case fetchDoneMsg:
		if err := m.session.Complete(msg.outcome); err != nil {
			m.status = "Error: " + err.Error()
		} else {
			m.status = fmt.Sprintf("Load test %s at %s", m.session.Key(), time.Now().Format(TIME_OF_DAY))
		}
		m.resultTabs.SetRegistry(m.session.ResultCharts())
		m.metricTabs.SetRegistry(m.session.MetricCharts())

	case stopDoneMsg:
		if msg.err != nil {
			log.Printf("Error stopping load test %s: %v", msg.key, msg.err)
			m.status = "Error stopping " + msg.key + ": " + msg.err.Error()
		} else {
			if msg.ack != nil {
				log.Printf("Stopped load test %s: %s", msg.key, msg.ack.Message)
			}
			m.status = "Stopped " + msg.key
			m.cache.clear()
			return m, m.loadStatesCmd()
		}
	}

	return m, nil
}

func (m dashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" || key == "q" {
		m.session.Close()
		return m, tea.Quit
	}

	switch m.modal {
	case modalNotice:
		if key == "esc" || key == "enter" {
			m.modal = modalNone
			m.notice = ""
		}
		return m, nil
	case modalConfirmStop:
		switch key {
		case "y":
			m.modal = modalNone
			target := m.selectedKey()
			m.status = "Stopping " + target + "..."
			return m, m.stopCmd(target)
		case "n", "esc":
			m.modal = modalNone
		}
		return m, nil
	}

	switch key {
	case "j", "down":
		if m.selected < len(m.states)-1 {
			m.selected++
		}
	case "k", "up":
		if m.selected > 0 {
			m.selected--
		}
	case "g":
		m.selected = 0
	case "G":
		m.selected = max(len(m.states)-1, 0)
	case "ctrl+d":
		m.selected = max(min(m.selected+5, len(m.states)-1), 0)
	case "ctrl+u":
		m.selected = max(m.selected-5, 0)
	case "enter":
		return m.beginFetch(m.selectedKey())
	case "r":
		return m.beginFetch(m.session.Key())
	case "tab", "l", "right":
		m.view = (m.view + 1) % len(m.views)
	case "shift+tab", "h", "left":
		m.view = (m.view - 1 + len(m.views)) % len(m.views)
	case "[":
		if tabs := m.activeTabs(); tabs != nil {
			tabs.PrevTab()
		}
	case "]":
		if tabs := m.activeTabs(); tabs != nil {
			tabs.NextTab()
		}
	case "s":
		if m.stopper != nil && m.selectedKey() != "" {
			m.modal = modalConfirmStop
		}
	}
	return m, nil
}

func (m dashboardModel) activeTabs() *TabSet {
	switch m.view {
	case VIEW_RESULTS:
		return m.resultTabs
	case VIEW_METRICS:
		return m.metricTabs
	}
	return nil
}

// groupStates orders executions by status, statuses in order of first
// appearance, keeping the backend order within a status
func groupStates(states []ExecutionState) []ExecutionState {
	var order []string
	groups := map[string][]ExecutionState{}
	for _, s := range states {
		if _, ok := groups[s.ExecutionStatus]; !ok {
			order = append(order, s.ExecutionStatus)
		}
		groups[s.ExecutionStatus] = append(groups[s.ExecutionStatus], s)
	}
	grouped := make([]ExecutionState, 0, len(states))
	for _, status := range order {
		grouped = append(grouped, groups[status]...)
	}
	return grouped
}

func (m dashboardModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	// help bar and status line
	availableHeight := m.height - 2
	listWidth := min(max(m.cache.MaxKeyLen()+8, 20), max(m.width/3, 20))
	contentWidth := max(m.width-listWidth-4, 10)
	paneHeight := max(availableHeight-2, 3)

	list := NewPane("Load tests", listWidth, paneHeight).
		SetContent(m.renderKeyList()).
		SetFooter(fmt.Sprintf("%d load tests", m.cache.NumberOfStates())).
		SetFocused(true)

	title := m.session.Key()
	if title == "" {
		title = "No load test selected"
	}
	content := NewPane(title, contentWidth, paneHeight).
		SetFooter(fmt.Sprintf("%s  %d result charts  %d metric charts",
			m.session.State(), m.session.ResultCharts().Len(), m.session.MetricCharts().Len()))
	innerWidth, innerHeight := content.InnerSize()
	// view tab bar is 3 lines
	body := m.renderView(innerWidth, max(innerHeight-3, 1))
	content = content.SetContent(m.renderViewTabs() + "\n" + body)

	statusLine := lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Width(m.width).
		Render(m.status)

	helpBar := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Background(lipgloss.Color("235")).
		Width(m.width).
		Align(lipgloss.Center).
		Render("enter=Fetch  r=Refresh  tab/hl=Switch View  []=Switch Chart  s=Stop  jk/arrows=Navigate  q=Quit")

	baseView := Horizontal(list, content) + "\n" + statusLine + "\n" + helpBar

	if m.modal != modalNone {
		return m.renderModal(baseView)
	}
	return baseView
}

func (m dashboardModel) renderView(width, height int) string {
	switch m.view {
	case VIEW_RESULTS:
		return m.resultTabs.SetSize(width, height).Render()
	case VIEW_METRICS:
		return m.metricTabs.SetSize(width, height).Render()
	default:
		stats := m.session.Aggregate()
		if len(stats) == 0 {
			return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("No statistics available")
		}
		return RenderAggregateTable(stats, height)
	}
}

func (m dashboardModel) renderViewTabs() string {
	activeTabStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("170")).
		Background(lipgloss.Color("235")).
		Bold(true).
		Padding(0, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("170"))

	inactiveTabStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Padding(0, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("236"))

	var renderedTabs []string
	for i, view := range m.views {
		if i == m.view {
			renderedTabs = append(renderedTabs, activeTabStyle.Render(view))
		} else {
			renderedTabs = append(renderedTabs, inactiveTabStyle.Render(view))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, renderedTabs...)
}

// renderKeyList builds one tree per execution status with the load test
// keys as children
func (m dashboardModel) renderKeyList() string {
	if len(m.states) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("No load tests")
	}

	selectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("170")).
		Bold(true)

	statusStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true)

	normalStyle := lipgloss.NewStyle()

	var trees []string
	i := 0
	for i < len(m.states) {
		status := m.states[i].ExecutionStatus
		name := status
		if name == "" {
			name = "unknown"
		}
		t := tree.New().Root(statusStyle.Render(name))
		for i < len(m.states) && m.states[i].ExecutionStatus == status {
			label := m.states[i].LoadTestKey
			if i == m.selected {
				label = selectedStyle.Render("▶ " + label)
			} else {
				label = normalStyle.Render(label)
			}
			t = t.Child(label)
			i++
		}
		trees = append(trees, t.String())
	}
	return strings.Join(trees, "\n")
}

func (m dashboardModel) renderModal(baseView string) string {
	modalWidth := max(m.width/2, 30)
	modalHeight := 4

	var title, body, help string
	switch m.modal {
	case modalConfirmStop:
		title = "Stop load test"
		body = "Stop " + m.selectedKey() + "?"
		help = "y=Stop  n/ESC=Cancel"
	default:
		title = "Notice"
		body = m.notice
		help = "ENTER/ESC=Close"
	}

	modalPane := NewPane(title, modalWidth, modalHeight).
		SetContent(body).
		SetFocused(true)

	helpText := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Render(help)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modalPane.Render()+"\n"+helpText,
		lipgloss.WithWhitespaceChars("░"),
		lipgloss.WithWhitespaceForeground(lipgloss.Color("235")),
	)
}

// Dashboard runs the interactive dashboard until the user quits
func Dashboard(cache *Cache, session *Session, stopper Stopper, opts DashboardOptions) error {
	m := NewDashboard(cache, session, stopper, opts)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		session.Close()
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
