package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/VargaBalazsAdam/sqlview/internal/session"
)

type view int

const (
	viewOpen view = iota
	viewBrowse
)

type mode int

const (
	modeNormal mode = iota
	modeEdit
)

type pane int

const (
	paneTables pane = iota
	paneGrid
)

type model struct {
	ctx    context.Context
	sess   *session.Session
	log    log.FieldLogger
	keys   keyMap
	view   view
	dir    string
	width  int
	height int

	// blocking message, dismissed by any key
	alert string
	// one-line feedback in the status bar
	status string

	// open
	dbs        []dbInfo
	pickCursor int
	pickScroll int
	pathInput  textinput.Model

	// browse
	focus       pane
	tableCursor int
	cx, cy      int // cursor x, y (y=0 is first data row)
	scrollX     int
	scrollY     int
	mode        mode
	editBuf     string
	// table awaiting a y/n answer before it is dropped
	confirmDrop string

	// create
	nameInput textinput.Model
	sqlInput  textarea.Model
	sqlFocus  bool
}

// Options configure a new program model.
type Options struct {
	// Dir is listed by the file picker.
	Dir string
	// Path, if set, is opened immediately.
	Path   string
	Logger log.FieldLogger
}

func newModel(ctx context.Context, sess *session.Session, opts Options) model {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}

	path := textinput.New()
	path.Placeholder = "path/to/file.db"
	path.Prompt = " path: "
	path.Focus()

	name := textinput.New()
	name.Placeholder = "table name"
	name.Prompt = " name: "

	sqlText := textarea.New()
	sqlText.Placeholder = "CREATE TABLE ..."
	sqlText.ShowLineNumbers = false

	m := model{
		ctx:       ctx,
		sess:      sess,
		log:       opts.Logger,
		keys:      defaultKeyMap(),
		view:      viewOpen,
		dir:       opts.Dir,
		pathInput: path,
		nameInput: name,
		sqlInput:  sqlText,
	}
	m.refreshPicker()
	if opts.Path != "" {
		m.openPath(opts.Path)
	}
	return m
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	nm := next.(model)
	nm.followCursor()
	return nm, cmd
}

func (m model) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sqlInput.SetWidth(max(20, msg.Width-4))
		m.sqlInput.SetHeight(max(3, msg.Height-8))
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.alert != "" {
			m.alert = ""
			return m, nil
		}
		if m.view == viewOpen {
			return m.updateOpen(msg)
		}
		if m.confirmDrop != "" {
			return m.updateConfirm(msg)
		}
		if m.sess.Mode() == session.ModeCreating {
			return m.updateCreate(msg)
		}
		if m.mode == modeEdit {
			return m.updateEdit(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

// fail turns an error into a blocking message.
func (m *model) fail(err error) {
	m.alert = err.Error()
	m.log.WithError(err).WithField("kind", session.KindOf(err).String()).Debug("action failed")
}

// Layout shared by followCursor and the renderers.
func (m model) pickerRows() int    { return max(1, m.height-6) }
func (m model) contentHeight() int { return max(3, m.height-6) }
func (m model) gridWidth() int     { return max(10, m.width-tablePaneWidth-4) }

// gridRows is the number of data rows below the grid header and separator.
func (m model) gridRows() int { return max(1, m.contentHeight()-2) }

// followCursor scrolls the picker and the grid so their cursors stay on
// screen.
func (m *model) followCursor() {
	rows := m.pickerRows()
	if m.pickCursor < m.pickScroll {
		m.pickScroll = m.pickCursor
	}
	if m.pickCursor >= m.pickScroll+rows {
		m.pickScroll = m.pickCursor - rows + 1
	}

	rs := m.sess.Rows()
	if rs == nil || len(rs.Columns) == 0 {
		m.scrollX, m.scrollY = 0, 0
		return
	}
	rows = m.gridRows()
	if m.cy < m.scrollY {
		m.scrollY = m.cy
	}
	if m.cy >= m.scrollY+rows {
		m.scrollY = m.cy - rows + 1
	}
	m.scrollX, _ = visibleColRange(computeColWidths(rs), m.scrollX, m.cx, m.gridWidth())
}

// --- Open ---

func (m *model) refreshPicker() {
	dbs, err := discoverDatabases(m.dir)
	if err != nil {
		m.status = err.Error()
		return
	}
	m.dbs = dbs
	if m.pickCursor >= len(dbs) {
		m.pickCursor = 0
	}
}

func (m model) updateOpen(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.sess.Path() != "" {
			m.view = viewBrowse
			return m, nil
		}
		return m, tea.Quit
	case "up":
		if m.pickCursor > 0 {
			m.pickCursor--
		}
		return m, nil
	case "down":
		if m.pickCursor < len(m.dbs)-1 {
			m.pickCursor++
		}
		return m, nil
	case "enter":
		path := m.pathInput.Value()
		if path == "" && m.pickCursor < len(m.dbs) {
			path = m.dbs[m.pickCursor].path
		}
		if path == "" {
			return m, nil
		}
		m.openPath(path)
		return m, nil
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m *model) openPath(path string) {
	if err := m.sess.Open(m.ctx, path); err != nil {
		m.fail(err)
		return
	}
	m.view = viewBrowse
	m.focus = paneTables
	m.mode = modeNormal
	m.tableCursor = 0
	m.resetGrid()
	m.pathInput.SetValue(path)
	m.status = fmt.Sprintf("opened %s (%d tables)", path, len(m.sess.Tables()))
}

func (m *model) resetGrid() {
	m.cx, m.cy = 0, 0
	m.scrollX, m.scrollY = 0, 0
}

// --- Browse ---

func (m model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Pane):
		if m.focus == paneTables {
			m.focus = paneGrid
		} else {
			m.focus = paneTables
		}
	case key.Matches(msg, m.keys.Save):
		m.save()
	case key.Matches(msg, m.keys.OpenFile):
		m.view = viewOpen
		m.pathInput.SetValue("")
		m.refreshPicker()
	case key.Matches(msg, m.keys.CreateTable):
		m.sess.StartCreate()
		m.nameInput.Reset()
		m.sqlInput.Reset()
		m.sqlFocus = false
		m.sqlInput.Blur()
		m.nameInput.Focus()
	case key.Matches(msg, m.keys.Reload):
		m.reload()
	case m.focus == paneTables:
		m.updateTables(msg)
	default:
		m.updateGrid(msg)
	}
	return m, nil
}

func (m *model) updateTables(msg tea.KeyMsg) {
	tables := m.sess.Tables()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.tableCursor > 0 {
			m.tableCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.tableCursor < len(tables)-1 {
			m.tableCursor++
		}
	case key.Matches(msg, m.keys.Select), key.Matches(msg, m.keys.Right):
		if m.tableCursor < len(tables) {
			m.selectTable(tables[m.tableCursor])
		}
	case key.Matches(msg, m.keys.DeleteTable):
		if m.tableCursor < len(tables) {
			m.confirmDrop = tables[m.tableCursor]
		}
	}
}

func (m *model) selectTable(name string) {
	rs, err := m.sess.SelectTable(m.ctx, name)
	if err != nil {
		m.fail(err)
		return
	}
	m.focus = paneGrid
	m.resetGrid()
	m.status = fmt.Sprintf("%s: %d rows", name, len(rs.Rows))
}

func (m *model) reload() {
	tables, err := m.sess.ListTables(m.ctx)
	if err != nil {
		m.fail(err)
		return
	}
	m.clampTableCursor(tables)
	if m.sess.Selected() == "" {
		return
	}
	if _, err := m.sess.Reload(m.ctx); err != nil {
		m.fail(err)
		return
	}
	m.clampGrid()
}

func (m *model) clampTableCursor(tables []string) {
	if m.tableCursor >= len(tables) {
		m.tableCursor = max(0, len(tables)-1)
	}
}

func (m *model) clampGrid() {
	rs := m.sess.Rows()
	if rs == nil {
		m.resetGrid()
		return
	}
	if m.cy >= len(rs.Rows) {
		m.cy = max(0, len(rs.Rows)-1)
	}
	if m.cx >= len(rs.Columns) {
		m.cx = max(0, len(rs.Columns)-1)
	}
}

func (m *model) updateGrid(msg tea.KeyMsg) {
	rs := m.sess.Rows()
	if rs == nil {
		return
	}
	switch {
	case key.Matches(msg, m.keys.Left):
		if m.cx > 0 {
			m.cx--
		} else {
			m.focus = paneTables
		}
	case key.Matches(msg, m.keys.Right):
		if m.cx < len(rs.Columns)-1 {
			m.cx++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cy > 0 {
			m.cy--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cy < len(rs.Rows)-1 {
			m.cy++
		}
	case key.Matches(msg, m.keys.Select):
		if m.cy >= len(rs.Rows) || m.cx >= len(rs.Columns) {
			return
		}
		val := rs.Rows[m.cy].Values[m.cx]
		if _, ok := val.([]byte); ok {
			m.status = "blob cells can not be edited"
			return
		}
		m.mode = modeEdit
		m.editBuf = formatCell(val)
	case key.Matches(msg, m.keys.SetNull):
		if m.cy >= len(rs.Rows) || m.cx >= len(rs.Columns) || rs.Rows[m.cy].Values[m.cx] == nil {
			return
		}
		column := rs.Columns[m.cx]
		if err := m.sess.UpdateCell(m.ctx, m.cy, column, nil); err != nil {
			m.fail(err)
			return
		}
		m.status = fmt.Sprintf("%s set to NULL", column)
	case key.Matches(msg, m.keys.InsertRow):
		rs, err := m.sess.InsertRow(m.ctx)
		if err != nil {
			m.fail(err)
			return
		}
		m.cy = len(rs.Rows) - 1
	case key.Matches(msg, m.keys.DeleteRow):
		if m.cy >= len(rs.Rows) {
			return
		}
		if err := m.sess.DeleteRow(m.ctx, m.cy); err != nil {
			m.fail(err)
			return
		}
		m.clampGrid()
	default:
		switch msg.String() {
		case "home":
			m.cx = 0
		case "end":
			m.cx = len(rs.Columns) - 1
		case "ctrl+home":
			m.cx, m.cy = 0, 0
		case "ctrl+end":
			m.cx = len(rs.Columns) - 1
			m.cy = max(0, len(rs.Rows)-1)
		}
	}
}

func (m *model) save() {
	rep, err := m.sess.Save(m.ctx)
	if err != nil {
		m.fail(err)
		return
	}
	m.status = fmt.Sprintf("saved %s (%s)", rep.Path, humanize.Bytes(uint64(rep.Size)))
}

// --- Edit mode ---

func (m model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rs := m.sess.Rows()
	switch msg.String() {
	case "enter":
		m.mode = modeNormal
		if m.commitEdit() && m.cy < len(rs.Rows)-1 {
			m.cy++
		}
	case "esc":
		m.mode = modeNormal
	case "backspace":
		if r := []rune(m.editBuf); len(r) > 0 {
			m.editBuf = string(r[:len(r)-1])
		}
	case "tab":
		m.mode = modeNormal
		if m.commitEdit() {
			m.cx++
			if m.cx >= len(rs.Columns) {
				m.cx = 0
				if m.cy < len(rs.Rows)-1 {
					m.cy++
				}
			}
		}
	default:
		switch msg.Type {
		case tea.KeyRunes:
			m.editBuf += string(msg.Runes)
		case tea.KeySpace:
			m.editBuf += " "
		}
	}
	return m, nil
}

// commitEdit writes the edit buffer through the session. It reports whether
// the cell now holds the buffer; an untouched buffer writes nothing.
func (m *model) commitEdit() bool {
	rs := m.sess.Rows()
	if rs == nil || m.cy >= len(rs.Rows) || m.cx >= len(rs.Columns) {
		return false
	}
	orig := rs.Rows[m.cy].Values[m.cx]
	if m.editBuf == formatCell(orig) {
		return true
	}
	aff := affBlob
	if m.cx < len(rs.Types) {
		aff = columnAffinity(rs.Types[m.cx])
	}
	column := rs.Columns[m.cx]
	if err := m.sess.UpdateCell(m.ctx, m.cy, column, parseCell(m.editBuf, aff, orig)); err != nil {
		m.fail(err)
		return false
	}
	m.status = fmt.Sprintf("updated %s", column)
	return true
}

// --- Confirm drop ---

func (m model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	name := m.confirmDrop
	m.confirmDrop = ""
	yes := msg.String() == "y" || msg.String() == "Y"
	dropped, err := m.sess.DeleteTable(m.ctx, name, session.Answer(yes))
	if err != nil {
		m.fail(err)
		return m, nil
	}
	if dropped {
		m.clampTableCursor(m.sess.Tables())
		m.clampGrid()
		m.status = fmt.Sprintf("dropped %s", name)
	}
	return m, nil
}

// --- Create ---

func (m model) updateCreate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.sess.CancelCreate()
		m.nameInput.Blur()
		m.sqlInput.Blur()
		return m, nil
	case "tab", "shift+tab":
		m.sqlFocus = !m.sqlFocus
		if m.sqlFocus {
			m.nameInput.Blur()
			return m, m.sqlInput.Focus()
		}
		m.sqlInput.Blur()
		return m, m.nameInput.Focus()
	case "ctrl+s":
		name := m.nameInput.Value()
		if err := m.sess.CreateTable(m.ctx, name, m.sqlInput.Value()); err != nil {
			m.fail(err)
			return m, nil
		}
		m.nameInput.Reset()
		m.sqlInput.Reset()
		m.nameInput.Blur()
		m.sqlInput.Blur()
		m.focus = paneTables
		m.status = fmt.Sprintf("table %s created", name)
		return m, nil
	}

	var cmd tea.Cmd
	if m.sqlFocus {
		m.sqlInput, cmd = m.sqlInput.Update(msg)
	} else {
		m.nameInput, cmd = m.nameInput.Update(msg)
	}
	return m, cmd
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, sess *session.Session, opts Options) error {
	p := tea.NewProgram(newModel(ctx, sess, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
