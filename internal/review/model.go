package review

import (
	"context"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ledgermesh/ledgermesh/internal/model"
	"github.com/ledgermesh/ledgermesh/internal/ops"
	"github.com/ledgermesh/ledgermesh/internal/service"
)

// state is the current screen within the review program.
type state int

const (
	stateList state = iota
	stateDetail
	statePrompt
)

// promptKind identifies which single-line prompt is active and what to do
// with its result.
type promptKind int

const (
	promptNone promptKind = iota
	promptMergeTarget
	promptEditNotes
	promptEditCategory
	promptEditCounterparty
)

// Config bundles the dependencies the review program needs.
type Config struct {
	Store     service.Storage
	Ops       *ops.Ops
	Threshold int
}

// Model is the bubbletea root model for the review queue browser.
type Model struct {
	ctx       context.Context
	store     service.Storage
	ops       *ops.Ops
	threshold int
	theme     theme

	state   state
	prompt  promptKind
	input   textinput.Model
	list    table.Model
	detail  table.Model

	aggregates   []model.Aggregate
	observations []model.Observation
	selected     map[string]bool // observation IDs toggled for split

	current  *model.Aggregate
	status   string
	statusOK bool

	width  int
	height int
}

// New builds the review program's root model. ctx bounds every storage call
// issued from key handlers.
func New(ctx context.Context, cfg Config) Model {
	in := textinput.New()
	in.CharLimit = 120

	listTable := table.New(
		table.WithColumns(listColumns(0)),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	detailTable := table.New(
		table.WithColumns(detailColumns(0)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	return Model{
		ctx:       ctx,
		store:     cfg.Store,
		ops:       cfg.Ops,
		threshold: cfg.Threshold,
		theme:     defaultTheme(),
		state:     stateList,
		input:     in,
		list:      listTable,
		detail:    detailTable,
		selected:  map[string]bool{},
	}
}

// Init kicks off the initial review-queue load.
func (m Model) Init() tea.Cmd {
	return m.loadQueue()
}

// Update dispatches messages to the active screen's handler.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetHeight(m.height - 8)
		m.detail.SetHeight(m.height - 10)
		return m, nil

	case queueLoadedMsg:
		m.aggregates = msg.aggregates
		m.list.SetColumns(listColumns(m.width))
		m.list.SetRows(buildListRows(msg.aggregates))
		m.status = ""
		return m, nil

	case detailLoadedMsg:
		m.current = &msg.aggregate
		m.observations = msg.observations
		m.selected = map[string]bool{}
		m.detail.SetColumns(detailColumns(m.width))
		m.detail.SetRows(buildDetailRows(msg.observations))
		m.state = stateDetail
		return m, nil

	case opResultMsg:
		m.statusOK = msg.err == nil
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = msg.message
		}
		if msg.err == nil && msg.backToList {
			m.state = stateList
			return m, m.loadQueue()
		}
		if msg.err == nil && m.current != nil {
			return m, m.loadDetail(m.current.ID)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case statePrompt:
		return m.handlePromptKey(msg)
	case stateDetail:
		return m.handleDetailKey(msg)
	default:
		return m.handleListKey(msg)
	}
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "r":
		return m, m.loadQueue()
	case "enter":
		row := m.list.SelectedRow()
		if len(row) == 0 {
			return m, nil
		}
		return m, m.loadDetail(row[0])
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "b", "esc":
		m.state = stateList
		return m, nil
	case " ":
		row := m.detail.SelectedRow()
		if len(row) > 0 {
			id := row[0]
			m.selected[id] = !m.selected[id]
			m.detail.SetRows(buildDetailRowsSelected(m.observations, m.selected))
		}
		return m, nil
	case "d":
		row := m.detail.SelectedRow()
		if len(row) == 0 || m.current == nil {
			return m, nil
		}
		return m, m.markDuplicate(m.current.ID, row[0])
	case "x":
		if m.current == nil || len(m.selected) == 0 {
			return m, nil
		}
		var ids []string
		for id, on := range m.selected {
			if on {
				ids = append(ids, id)
			}
		}
		return m, m.split(m.current.ID, ids)
	case "m":
		m.prompt = promptMergeTarget
		m.input.Placeholder = "target aggregate id"
		m.input.SetValue("")
		m.input.Focus()
		m.state = statePrompt
		return m, textinput.Blink
	case "n":
		m.prompt = promptEditNotes
		m.input.Placeholder = "notes"
		m.input.SetValue("")
		m.input.Focus()
		m.state = statePrompt
		return m, textinput.Blink
	case "g":
		m.prompt = promptEditCategory
		m.input.Placeholder = "category id"
		m.input.SetValue("")
		m.input.Focus()
		m.state = statePrompt
		return m, textinput.Blink
	case "p":
		m.prompt = promptEditCounterparty
		m.input.Placeholder = "counterparty"
		m.input.SetValue("")
		m.input.Focus()
		m.state = statePrompt
		return m, textinput.Blink
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = stateDetail
		m.prompt = promptNone
		m.input.Blur()
		return m, nil
	case "enter":
		value := m.input.Value()
		m.input.Blur()
		m.state = stateDetail
		kind := m.prompt
		m.prompt = promptNone
		if m.current == nil {
			return m, nil
		}
		switch kind {
		case promptMergeTarget:
			return m, m.forceMerge(m.current.ID, value)
		case promptEditNotes:
			return m, m.editField(m.current.ID, "userNotes", value)
		case promptEditCategory:
			return m, m.editField(m.current.ID, "categoryId", value)
		case promptEditCounterparty:
			return m, m.editField(m.current.ID, "canonicalCounterparty", value)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}
