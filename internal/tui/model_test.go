package tui

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VargaBalazsAdam/sqlview/internal/session"
)

func fixtureDB(t *testing.T, dir string, stmts ...string) string {
	t.Helper()
	path := filepath.Join(dir, "fixture.db")
	db, err := sql.Open(session.DriverName, path)
	require.NoError(t, err)
	defer db.Close()
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	return path
}

func newTestModel(t *testing.T, path string) model {
	t.Helper()
	logger, _ := test.NewNullLogger()
	sess := session.New(logger)
	t.Cleanup(func() { sess.Close() })
	m := newModel(context.Background(), sess, Options{Dir: filepath.Dir(path), Path: path, Logger: logger})
	return send(m, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func send(m model, msgs ...tea.Msg) model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(model)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(m model, s string) model {
	for _, r := range s {
		if r == ' ' {
			m = send(m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		m = send(m, runes(string(r)))
	}
	return m
}

var (
	enter     = tea.KeyMsg{Type: tea.KeyEnter}
	esc       = tea.KeyMsg{Type: tea.KeyEsc}
	tab       = tea.KeyMsg{Type: tea.KeyTab}
	ctrlS     = tea.KeyMsg{Type: tea.KeyCtrlS}
	backspace = tea.KeyMsg{Type: tea.KeyBackspace}
)

func usersDB(t *testing.T) string {
	return fixtureDB(t, t.TempDir(),
		`CREATE TABLE users (id INTEGER, name TEXT)`,
		`INSERT INTO users VALUES (1, 'alice'), (2, 'bob')`,
	)
}

func TestOpenOnStart(t *testing.T) {
	m := newTestModel(t, usersDB(t))
	assert.Equal(t, viewBrowse, m.view)
	assert.Equal(t, []string{"users"}, m.sess.Tables())
	assert.Contains(t, m.View(), "users")
}

func TestOpenFailureShowsAlert(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus.db")
	require.NoError(t, os.WriteFile(bogus, []byte("definitely not a database file at all"), 0o644))

	m := newTestModel(t, bogus)
	assert.Equal(t, viewOpen, m.view)
	assert.NotEmpty(t, m.alert)
	assert.Contains(t, m.View(), "press any key")

	m = send(m, runes("x"))
	assert.Empty(t, m.alert)
}

func TestPickerOpensSelectedFile(t *testing.T) {
	dir := t.TempDir()
	fixtureDB(t, dir, `CREATE TABLE t (a)`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	logger, _ := test.NewNullLogger()
	sess := session.New(logger)
	defer sess.Close()
	m := newModel(context.Background(), sess, Options{Dir: dir, Logger: logger})
	m = send(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	require.Len(t, m.dbs, 1)
	assert.Contains(t, m.View(), "fixture.db")

	m = send(m, enter)
	assert.Equal(t, viewBrowse, m.view)
	assert.Equal(t, []string{"t"}, sess.Tables())
}

func TestPickerScrollFollowsCursor(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("db%d.db", i)), nil, 0o644))
	}
	logger, _ := test.NewNullLogger()
	sess := session.New(logger)
	defer sess.Close()
	m := newModel(context.Background(), sess, Options{Dir: dir, Logger: logger})
	m = send(m, tea.WindowSizeMsg{Width: 100, Height: 10})
	require.Len(t, m.dbs, 10)

	rows := m.pickerRows()
	for i := 0; i < 8; i++ {
		m = send(m, tea.KeyMsg{Type: tea.KeyDown})
	}
	assert.Equal(t, 8, m.pickCursor)
	assert.Equal(t, 8-rows+1, m.pickScroll)
	assert.Contains(t, m.View(), m.dbs[8].name)
	assert.NotContains(t, m.View(), m.dbs[0].name)
}

func TestSelectEditAndDelete(t *testing.T) {
	path := usersDB(t)
	m := newTestModel(t, path)

	m = send(m, enter)
	require.Equal(t, "users", m.sess.Selected())
	assert.Equal(t, paneGrid, m.focus)

	// move to name column, replace alice with alicia
	m = send(m, runes("l"), enter)
	require.Equal(t, modeEdit, m.mode)
	assert.Equal(t, "alice", m.editBuf)
	m = send(m, runes("i"), runes("a"), enter)
	assert.Equal(t, modeNormal, m.mode)
	assert.Equal(t, "aliceia", m.sess.Rows().Rows[0].Values[1])
	assert.Equal(t, 1, m.cy, "cursor moves down after commit")

	// delete row 0
	m = send(m, runes("k"), runes("d"))
	rs := m.sess.Rows()
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "bob", rs.Rows[0].Values[1])

	db, err := sql.Open(session.DriverName, path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM users WHERE name = 'aliceia'`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestEditEscapeDiscards(t *testing.T) {
	m := newTestModel(t, usersDB(t))
	m = send(m, enter, runes("l"), enter, runes("x"), esc)
	assert.Equal(t, modeNormal, m.mode)
	assert.Equal(t, "alice", m.sess.Rows().Rows[0].Values[1])
}

func TestRejectedEditShowsAlert(t *testing.T) {
	m := newTestModel(t, fixtureDB(t, t.TempDir(),
		`CREATE TABLE t (v INTEGER CHECK (v > 0))`,
		`INSERT INTO t VALUES (1)`,
	))
	m = send(m, enter, enter, backspace, runes("0"), enter)
	assert.NotEmpty(t, m.alert)
	assert.Equal(t, int64(1), m.sess.Rows().Rows[0].Values[0])
}

// retype replaces the edit buffer with s.
func retype(m model, s string) model {
	for range []rune(m.editBuf) {
		m = send(m, backspace)
	}
	return typeText(m, s)
}

func stored(t *testing.T, path, query string, dest ...any) {
	t.Helper()
	db, err := sql.Open(session.DriverName, path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.QueryRow(query).Scan(dest...))
}

func mixedDB(t *testing.T) string {
	return fixtureDB(t, t.TempDir(),
		`CREATE TABLE t (s TEXT NOT NULL, p TEXT, r REAL, v)`,
		`INSERT INTO t VALUES ('', '  padded', 1.0, 5)`,
	)
}

func TestUnchangedCommitWritesNothing(t *testing.T) {
	path := mixedDB(t)
	m := newTestModel(t, path)

	m = send(m, enter)
	for i := 0; i < 4; i++ {
		m = send(m, enter, enter)
		require.Empty(t, m.alert)
		m = send(m, runes("l"))
	}

	var s, p, rt, vt string
	var r float64
	stored(t, path, `SELECT s, p, r, typeof(r), typeof(v) FROM t`, &s, &p, &r, &rt, &vt)
	assert.Equal(t, "", s)
	assert.Equal(t, "  padded", p)
	assert.Equal(t, 1.0, r)
	assert.Equal(t, "real", rt)
	assert.Equal(t, "integer", vt)
}

func TestEditStoresTextAsTyped(t *testing.T) {
	path := mixedDB(t)
	m := newTestModel(t, path)
	m = send(m, enter)

	// s: non-empty, then back to the empty string
	m = send(m, enter)
	m = retype(m, "abc")
	m = send(m, enter, enter)
	m = retype(m, "")
	m = send(m, enter)
	require.Empty(t, m.alert)

	m = send(m, runes("l"), enter)
	m = retype(m, " spaced  ")
	m = send(m, enter)

	m = send(m, runes("l"), enter)
	m = retype(m, "3,14")
	m = send(m, enter)

	m = send(m, runes("l"), enter)
	m = retype(m, "7")
	m = send(m, enter)
	require.Empty(t, m.alert)

	var s, p, r, st, rt, vt string
	var v int64
	stored(t, path, `SELECT s, typeof(s), p, r, typeof(r), v, typeof(v) FROM t`, &s, &st, &p, &r, &rt, &v, &vt)
	assert.Equal(t, "", s)
	assert.Equal(t, "text", st)
	assert.Equal(t, " spaced  ", p)
	assert.Equal(t, "3,14", r)
	assert.Equal(t, "text", rt)
	assert.Equal(t, int64(7), v)
	assert.Equal(t, "integer", vt)
}

func TestSetNull(t *testing.T) {
	path := mixedDB(t)
	m := newTestModel(t, path)
	m = send(m, enter)

	m = send(m, runes("x"))
	assert.NotEmpty(t, m.alert, "s is NOT NULL")
	m = send(m, runes("x"))
	assert.Empty(t, m.alert)

	m = send(m, runes("l"), runes("x"))
	require.Empty(t, m.alert)
	assert.Nil(t, m.sess.Rows().Rows[0].Values[1])

	var pt string
	stored(t, path, `SELECT typeof(p) FROM t`, &pt)
	assert.Equal(t, "null", pt)
}

func TestBlobCellIsNotEditable(t *testing.T) {
	path := fixtureDB(t, t.TempDir(),
		`CREATE TABLE files (data BLOB)`,
		`INSERT INTO files VALUES (x'0a0b')`,
	)
	m := newTestModel(t, path)
	m = send(m, enter, enter)
	assert.Equal(t, modeNormal, m.mode)
	assert.Contains(t, m.status, "blob")
	assert.Contains(t, m.View(), "<blob 2 bytes>")

	var typ string
	stored(t, path, `SELECT typeof(data) FROM files`, &typ)
	assert.Equal(t, "blob", typ)
}

func TestGridScrollFollowsCursor(t *testing.T) {
	m := newTestModel(t, fixtureDB(t, t.TempDir(),
		`CREATE TABLE t (name TEXT)`,
		`WITH RECURSIVE n(i) AS (SELECT 0 UNION ALL SELECT i+1 FROM n WHERE i < 49)
		 INSERT INTO t SELECT printf('row%02d', i) FROM n`,
	))
	m = send(m, enter)
	require.Less(t, m.gridRows(), 45)
	for i := 0; i < 45; i++ {
		m = send(m, runes("j"))
	}
	assert.Equal(t, 45, m.cy)
	assert.Equal(t, 45-m.gridRows()+1, m.scrollY)
	out := m.View()
	assert.Contains(t, out, "row45")
	assert.NotContains(t, out, "row00")

	for i := 0; i < 45; i++ {
		m = send(m, runes("k"))
	}
	assert.Equal(t, 0, m.scrollY)
}

func TestGridScrollsToCursorColumn(t *testing.T) {
	var cols, vals []string
	for i := 0; i < 10; i++ {
		cols = append(cols, fmt.Sprintf("c%d", i))
		vals = append(vals, "'"+strings.Repeat(strconv.Itoa(i), 30)+"'")
	}
	m := newTestModel(t, fixtureDB(t, t.TempDir(),
		"CREATE TABLE wide ("+strings.Join(cols, ", ")+")",
		"INSERT INTO wide VALUES ("+strings.Join(vals, ", ")+")",
	))
	m = send(m, enter)
	assert.Equal(t, 0, m.scrollX)
	for i := 0; i < 6; i++ {
		m = send(m, runes("l"))
	}
	assert.Equal(t, 6, m.cx)
	assert.Positive(t, m.scrollX)
	assert.LessOrEqual(t, m.scrollX, 6)
	assert.Contains(t, m.View(), strings.Repeat("6", 20))
	assert.NotContains(t, m.View(), strings.Repeat("0", 20))
}

func TestInsertRow(t *testing.T) {
	m := newTestModel(t, usersDB(t))
	m = send(m, enter, runes("a"))
	assert.Len(t, m.sess.Rows().Rows, 3)
	assert.Equal(t, 2, m.cy)
}

func TestDropTableNeedsConfirmation(t *testing.T) {
	m := newTestModel(t, fixtureDB(t, t.TempDir(),
		`CREATE TABLE a (x)`,
		`CREATE TABLE b (x)`,
	))

	m = send(m, runes("D"))
	assert.Equal(t, "a", m.confirmDrop)
	assert.Contains(t, m.View(), `Delete table "a"?`)
	m = send(m, runes("n"))
	assert.Empty(t, m.confirmDrop)
	assert.Equal(t, []string{"a", "b"}, m.sess.Tables())

	m = send(m, runes("j"), runes("D"), runes("y"))
	assert.Equal(t, []string{"a"}, m.sess.Tables())
	assert.Equal(t, 0, m.tableCursor)
}

func TestCreateTableForm(t *testing.T) {
	m := newTestModel(t, usersDB(t))

	m = send(m, runes("n"))
	require.Equal(t, session.ModeCreating, m.sess.Mode())
	assert.Contains(t, m.View(), "create table")

	// empty form is rejected without leaving the form
	m = send(m, ctrlS)
	assert.NotEmpty(t, m.alert)
	m = send(m, runes("x"))
	assert.Equal(t, session.ModeCreating, m.sess.Mode())

	m = typeText(m, "pets")
	m = send(m, tab)
	m = typeText(m, "CREATE TABLE pets (name TEXT)")
	m = send(m, ctrlS)
	assert.Empty(t, m.alert)
	assert.Equal(t, session.ModeViewing, m.sess.Mode())
	assert.Equal(t, []string{"users", "pets"}, m.sess.Tables())
}

func TestCreateTableCancel(t *testing.T) {
	m := newTestModel(t, usersDB(t))
	m = send(m, runes("n"))
	m = typeText(m, "pets")
	m = send(m, esc)
	assert.Equal(t, session.ModeViewing, m.sess.Mode())
	assert.Equal(t, []string{"users"}, m.sess.Tables())
}

func TestSaveReportsSize(t *testing.T) {
	m := newTestModel(t, usersDB(t))
	m = send(m, ctrlS)
	assert.Empty(t, m.alert)
	assert.Contains(t, m.status, "saved")
	assert.Contains(t, m.status, "kB")
}

func TestDiscoverDatabasesNewestFirst(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.db")
	fresh := filepath.Join(dir, "fresh.DB")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.sqlite"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.db"), 0o755))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	dbs, err := discoverDatabases(dir)
	require.NoError(t, err)
	require.Len(t, dbs, 2)
	assert.Equal(t, "fresh.DB", dbs[0].name)
	assert.Equal(t, "old.db", dbs[1].name)

	_, err = discoverDatabases(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read dir")
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}
