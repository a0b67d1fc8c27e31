package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/features/actions"
	"github.com/rowkit/rowkit/pkg/features/filter"
	"github.com/rowkit/rowkit/pkg/features/modal"
	"github.com/rowkit/rowkit/pkg/features/paginate"
	"github.com/rowkit/rowkit/pkg/features/selection"
	"github.com/rowkit/rowkit/pkg/features/sortby"
	"github.com/rowkit/rowkit/pkg/state"
)

// stateMsg carries a state change from the engine into the bubbletea loop.
type stateMsg state.State

// browseModel is the bubbletea model for the interactive table host.
type browseModel struct {
	ec      *engine.Context
	stateCh chan state.State

	columns []string
	cursor  int
	width   int

	filtering   bool
	filterInput string
	sortColumn  int

	err error
}

// newBrowseModel builds the model and bridges store updates into messages.
// The subscription cancel is owned by the caller.
func newBrowseModel(ec *engine.Context, store *state.Store) (browseModel, func()) {
	ch := make(chan state.State, 16)
	cancel := store.Subscribe(func(s state.State) {
		select {
		case ch <- s:
		default: // drop when the UI is behind; the next update repaints
		}
	})

	return browseModel{
		ec:      ec,
		stateCh: ch,
		columns: columnsFor(ec),
		width:   80,
	}, cancel
}

// columnsFor derives the table columns: the id key first, then the remaining
// fields of the first row, sorted.
func columnsFor(ec *engine.Context) []string {
	idKey := ec.Meta().RowIDKey
	cols := []string{idKey}

	rows := ec.State().RawRows
	if len(rows) == 0 {
		return cols
	}
	var rest []string
	for k := range rows[0] {
		if k != idKey {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

func (m browseModel) Init() tea.Cmd {
	return m.waitForState()
}

func (m browseModel) waitForState() tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-m.stateCh)
	}
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.clampCursor()
		return m, m.waitForState()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m browseModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// An open modal captures y/n/esc before anything else.
	if active := m.modal(); active != nil {
		switch msg.String() {
		case "y", "enter":
			m.modalAPI().Confirm(active.Token, nil)
		case "n", "esc", "q":
			m.modalAPI().Cancel(active.Token)
		}
		return m, nil
	}

	if m.filtering {
		return m.handleFilterKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		m.cursor++
		m.clampCursor()

	case "left", "h":
		if m.sortColumn > 0 {
			m.sortColumn--
		}
	case "right", "l":
		if m.sortColumn < len(m.columns)-1 {
			m.sortColumn++
		}
	case "s":
		if api, ok := featureOf[*sortby.API](m.ec, sortby.FeatureID); ok {
			api.Toggle(m.columns[m.sortColumn])
		}

	case "/":
		m.filtering = true
		m.filterInput = currentFilter(m.ec)

	case "n":
		if api, ok := featureOf[*paginate.API](m.ec, paginate.FeatureID); ok {
			api.Next()
		}
	case "p":
		if api, ok := featureOf[*paginate.API](m.ec, paginate.FeatureID); ok {
			api.Prev()
		}

	case " ":
		if id := m.cursorRowID(); id != "" {
			if api, ok := featureOf[*selection.API](m.ec, selection.FeatureID); ok {
				api.Toggle(id)
			}
		}
	case "a":
		if api, ok := featureOf[*selection.API](m.ec, selection.FeatureID); ok {
			api.SelectAllVisible()
		}

	case "d":
		if id := m.cursorRowID(); id != "" {
			if api, ok := featureOf[*actions.API](m.ec, actions.RowFeatureID); ok {
				m.err = api.Trigger(context.Background(), "delete", id)
			}
		}
	case "r":
		if api, ok := featureOf[*actions.API](m.ec, actions.GeneralFeatureID); ok {
			m.err = api.Trigger(context.Background(), "reset", "")
		}
	}
	return m, nil
}

func (m browseModel) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		if api, ok := featureOf[*filter.API](m.ec, filter.FeatureID); ok {
			if m.filterInput == "" {
				api.Clear()
			} else {
				api.Set(m.filterInput)
			}
		}
	case "esc":
		m.filtering = false
	case "backspace":
		if len(m.filterInput) > 0 {
			m.filterInput = m.filterInput[:len(m.filterInput)-1]
		}
	default:
		if msg.Type == tea.KeyRunes {
			m.filterInput += string(msg.Runes)
		}
	}
	return m, nil
}

func (m browseModel) View() string {
	var b strings.Builder

	s := m.ec.State()
	rows := s.Rows

	b.WriteString(styleTitle.Render("rowkit"))
	b.WriteString("  ")
	b.WriteString(styleDim.Render(m.statusLine(s)))
	b.WriteString("\n\n")

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	idKey := m.ec.Meta().RowIDKey
	selAPI, hasSel := featureOf[*selection.API](m.ec, selection.FeatureID)
	for i, row := range rows {
		line := m.renderRow(row)
		selected := hasSel && selAPI.IsSelected(row.ID(idKey))
		switch {
		case i == m.cursor:
			line = styleCursor.Render("> " + line)
		case selected:
			line = styleSelected.Render("* " + line)
		default:
			line = styleRow.Render("  " + line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(rows) == 0 {
		b.WriteString(styleDim.Render("  (no rows)"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.filtering {
		b.WriteString(styleHeader.Render("filter: "))
		b.WriteString(m.filterInput)
		b.WriteString(styleDim.Render("▌  ⏎ apply  esc cancel"))
	} else {
		b.WriteString(styleDim.Render("↑/↓ move  ←/→ column  s sort  / filter  n/p page  space select  a all  d delete  r reset  q quit"))
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(styleError.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}

	if active := m.modal(); active != nil {
		b.WriteString("\n")
		b.WriteString(styleModal.Render(active.Title + "\n\ny confirm   n cancel"))
		b.WriteString("\n")
	}

	return b.String()
}

func (m browseModel) statusLine(s state.State) string {
	parts := []string{fmt.Sprintf("%d/%d rows", len(s.Rows), len(s.RawRows)), string(s.Status)}

	if api, ok := featureOf[*paginate.API](m.ec, paginate.FeatureID); ok {
		cur := api.Current()
		if cur.PageSize > 0 {
			parts = append(parts, fmt.Sprintf("page %d of %d", cur.PageIndex+1, cur.TotalPages))
		}
	}
	if q := currentFilter(m.ec); q != "" {
		parts = append(parts, fmt.Sprintf("filter %q", q))
	}
	if api, ok := featureOf[*sortby.API](m.ec, sortby.FeatureID); ok {
		for _, d := range api.Current() {
			parts = append(parts, fmt.Sprintf("sort %s %s", d.Field, d.Direction))
		}
	}
	return strings.Join(parts, " · ")
}

func (m browseModel) renderHeader() string {
	cells := make([]string, len(m.columns))
	for i, col := range m.columns {
		label := col
		if i == m.sortColumn {
			label = "[" + label + "]"
		}
		cells[i] = pad(label, m.columnWidth())
	}
	return styleHeader.Render("  " + strings.Join(cells, " "))
}

func (m browseModel) renderRow(row state.Row) string {
	cells := make([]string, len(m.columns))
	for i, col := range m.columns {
		cells[i] = pad(fmt.Sprint(row[col]), m.columnWidth())
	}
	return strings.Join(cells, " ")
}

func (m browseModel) columnWidth() int {
	w := (m.width - 4) / max(len(m.columns), 1)
	if w < 6 {
		w = 6
	}
	return w
}

func (m *browseModel) clampCursor() {
	n := len(m.ec.State().Rows)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m browseModel) cursorRowID() string {
	rows := m.ec.State().Rows
	if m.cursor < 0 || m.cursor >= len(rows) {
		return ""
	}
	return rows[m.cursor].ID(m.ec.Meta().RowIDKey)
}

func (m browseModel) modal() *modal.Descriptor {
	api, ok := featureOf[*modal.API](m.ec, modal.FeatureID)
	if !ok {
		return nil
	}
	return api.Active()
}

func (m browseModel) modalAPI() *modal.API {
	api, _ := featureOf[*modal.API](m.ec, modal.FeatureID)
	return api
}

func currentFilter(ec *engine.Context) string {
	api, ok := featureOf[*filter.API](ec, filter.FeatureID)
	if !ok {
		return ""
	}
	q, _ := api.Value().(string)
	return q
}

// featureOf looks a typed feature API up in the namespace.
func featureOf[T any](ec *engine.Context, id string) (T, bool) {
	var zero T
	v, ok := ec.Feature(id)
	if !ok {
		return zero, false
	}
	api, ok := v.(T)
	if !ok {
		return zero, false
	}
	return api, true
}

func pad(s string, w int) string {
	if len(s) > w {
		if w <= 1 {
			return s[:w]
		}
		return s[:w-1] + "…"
	}
	return s + strings.Repeat(" ", w-len(s))
}
