package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// DriverName is the database/sql driver used to open database files.
const DriverName = "sqlite"

const listTablesQuery = "SELECT name FROM sqlite_master WHERE type='table'"

// Mode is the editing state of the session.
type Mode int

const (
	ModeViewing Mode = iota
	ModeCreating
)

func (m Mode) String() string {
	if m == ModeCreating {
		return "creating"
	}
	return "viewing"
}

// Confirm is asked before destructive operations; it returns true to proceed.
type Confirm func(prompt string) bool

// Answer returns a Confirm that always gives the same answer.
func Answer(yes bool) Confirm {
	return func(string) bool { return yes }
}

// SaveReport describes the database file after Save.
type SaveReport struct {
	Path string
	Size int64
}

// Session mediates between user actions and one open database. Every
// mutating operation commits immediately. A Session is not safe for
// concurrent use; callers drive it one action at a time.
type Session struct {
	db       *sql.DB
	path     string
	tables   []string
	selected string
	rows     *RowSet
	mode     Mode
	log      log.FieldLogger
}

// New returns a session with no database open.
func New(logger log.FieldLogger) *Session {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Session{log: logger}
}

func (s *Session) Path() string     { return s.path }
func (s *Session) Selected() string { return s.selected }
func (s *Session) Rows() *RowSet    { return s.rows }
func (s *Session) Mode() Mode       { return s.mode }

// Tables returns a copy of the table catalog.
func (s *Session) Tables() []string {
	return append([]string(nil), s.tables...)
}

// DB exposes the open connection, or nil.
func (s *Session) DB() *sql.DB { return s.db }

// Open opens the database at path and replaces the current one. The path is
// not checked beforehand; the engine decides whether it is usable. If the
// new database can not be read the previous one stays open.
func (s *Session) Open(ctx context.Context, path string) error {
	const op = "open"
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return newError(KindOpen, op, errors.Wrapf(err, "open %s", path))
	}
	if err := s.attach(ctx, db, path); err != nil {
		db.Close()
		return err
	}
	return nil
}

// attach validates db by reading its catalog and makes it the session's
// connection, closing the previous one.
func (s *Session) attach(ctx context.Context, db *sql.DB, path string) error {
	const op = "open"
	db.SetMaxOpenConns(1)

	tables, err := listTables(ctx, db)
	if err != nil {
		s.log.WithError(err).WithField("path", path).Warn("open failed")
		return newError(KindOpen, op, errors.Wrapf(err, "read %s", path))
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.WithError(err).WithField("path", s.path).Warn("close previous database")
		}
	}
	s.db = db
	s.path = path
	s.tables = tables
	s.selected = ""
	s.rows = nil
	s.mode = ModeViewing
	s.log.WithFields(log.Fields{"path": path, "tables": len(tables)}).Info("database opened")
	return nil
}

// Close releases the connection. The session can be reopened afterwards.
func (s *Session) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.path = ""
	s.tables = nil
	s.selected = ""
	s.rows = nil
	s.mode = ModeViewing
	return err
}

func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, listTablesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// ListTables re-reads the catalog from the schema registry, in registry
// order. The selection is dropped if its table disappeared.
func (s *Session) ListTables(ctx context.Context) ([]string, error) {
	const op = "list tables"
	if s.db == nil {
		return nil, errorf(KindNoDatabase, op, "no database open")
	}
	tables, err := listTables(ctx, s.db)
	if err != nil {
		return nil, newError(KindQuery, op, err)
	}
	s.tables = tables
	if s.selected != "" && !contains(tables, s.selected) {
		s.selected = ""
		s.rows = nil
	}
	return s.Tables(), nil
}

// SelectTable makes name the target of row operations and loads its rows.
func (s *Session) SelectTable(ctx context.Context, name string) (*RowSet, error) {
	const op = "select table"
	if s.db == nil {
		return nil, errorf(KindNoDatabase, op, "no database open")
	}
	if err := checkIdent(op, name); err != nil {
		return nil, err
	}
	if !contains(s.tables, name) {
		return nil, errorf(KindUnknownTable, op, "table %q is not in the catalog", name)
	}
	rs, err := loadRowSet(ctx, s.db, name)
	if err != nil {
		s.log.WithError(err).WithField("table", name).Warn("load rows failed")
		return nil, newError(KindQuery, op, errors.Wrapf(err, "load %s", name))
	}
	s.selected = name
	s.rows = rs
	s.log.WithFields(log.Fields{"table": name, "rows": len(rs.Rows)}).Debug("rows loaded")
	return rs, nil
}

// Reload re-reads the selected table.
func (s *Session) Reload(ctx context.Context) (*RowSet, error) {
	if s.selected == "" {
		return nil, errorf(KindUnknownTable, "reload", "no table selected")
	}
	return s.SelectTable(ctx, s.selected)
}

func (s *Session) rowAt(op string, row int) (*Row, error) {
	if s.db == nil {
		return nil, errorf(KindNoDatabase, op, "no database open")
	}
	if s.rows == nil {
		return nil, errorf(KindUnknownTable, op, "no table selected")
	}
	if !s.rows.HasRowID() {
		return nil, errorf(KindNoRowID, op, "table %q has no rowid", s.rows.Table)
	}
	if row < 0 || row >= len(s.rows.Rows) {
		return nil, errorf(KindRowRange, op, "row %d of %d", row, len(s.rows.Rows))
	}
	return &s.rows.Rows[row], nil
}

// UpdateCell writes value into column of the displayed row. The value and
// rowid are bound as parameters. The in-memory cell only changes once the
// engine accepted the update.
func (s *Session) UpdateCell(ctx context.Context, row int, column string, value any) error {
	const op = "update cell"
	r, err := s.rowAt(op, row)
	if err != nil {
		return err
	}
	if err := checkIdent(op, column); err != nil {
		return err
	}
	ci := s.rows.ColumnIndex(column)
	if ci < 0 {
		return errorf(KindUnknownColumn, op, "column %q is not in table %q", column, s.rows.Table)
	}

	q := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
		QuoteIdent(s.rows.Table), QuoteIdent(column), s.rows.alias)
	fields := log.Fields{"op": op, "table": s.rows.Table, "column": column, "rowid": r.ID}
	if _, err := s.db.ExecContext(ctx, q, value, r.ID); err != nil {
		s.log.WithError(err).WithFields(fields).Warn("statement failed")
		return newError(KindExec, op, err)
	}
	s.log.WithFields(fields).Debug("cell updated")
	r.Values[ci] = value
	return nil
}

// StartCreate switches to the table creation form.
func (s *Session) StartCreate() { s.mode = ModeCreating }

// CancelCreate leaves the table creation form without creating anything.
func (s *Session) CancelCreate() { s.mode = ModeViewing }

// CreateTable executes sqlText verbatim. name is only used for reporting.
// Nothing is executed unless both are non-empty.
func (s *Session) CreateTable(ctx context.Context, name, sqlText string) error {
	const op = "create table"
	if strings.TrimSpace(name) == "" || strings.TrimSpace(sqlText) == "" {
		return errorf(KindMissingInfo, op, "table name and SQL are required")
	}
	if s.db == nil {
		return errorf(KindNoDatabase, op, "no database open")
	}
	if _, err := s.db.ExecContext(ctx, sqlText); err != nil {
		s.log.WithError(err).WithField("table", name).Warn("create table failed")
		return newError(KindExec, op, err)
	}
	if _, err := s.ListTables(ctx); err != nil {
		return err
	}
	s.mode = ModeViewing
	s.log.WithField("table", name).Info("table created")
	return nil
}

// DeleteTable drops name after confirm agrees. It reports whether the table
// was dropped; declining is not an error.
func (s *Session) DeleteTable(ctx context.Context, name string, confirm Confirm) (bool, error) {
	const op = "delete table"
	if s.db == nil {
		return false, errorf(KindNoDatabase, op, "no database open")
	}
	if err := checkIdent(op, name); err != nil {
		return false, err
	}
	if !contains(s.tables, name) {
		return false, errorf(KindUnknownTable, op, "table %q is not in the catalog", name)
	}
	if confirm == nil || !confirm(fmt.Sprintf("Delete table %q?", name)) {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, "DROP TABLE "+QuoteIdent(name)); err != nil {
		s.log.WithError(err).WithField("table", name).Warn("drop table failed")
		return false, newError(KindExec, op, err)
	}
	s.log.WithField("table", name).Info("table dropped")
	if _, err := s.ListTables(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// InsertRow appends a row of default values to the selected table and
// reloads it.
func (s *Session) InsertRow(ctx context.Context) (*RowSet, error) {
	const op = "insert row"
	if s.db == nil {
		return nil, errorf(KindNoDatabase, op, "no database open")
	}
	if s.selected == "" {
		return nil, errorf(KindUnknownTable, op, "no table selected")
	}
	q := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", QuoteIdent(s.selected))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		s.log.WithError(err).WithField("table", s.selected).Warn("insert row failed")
		return nil, newError(KindExec, op, err)
	}
	return s.Reload(ctx)
}

// DeleteRow deletes the record shown at row and removes it from the row
// set. The other rows keep their rowids.
func (s *Session) DeleteRow(ctx context.Context, row int) error {
	const op = "delete row"
	r, err := s.rowAt(op, row)
	if err != nil {
		return err
	}
	id := r.ID
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", QuoteIdent(s.rows.Table), s.rows.alias)
	fields := log.Fields{"op": op, "table": s.rows.Table, "rowid": id}
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		s.log.WithError(err).WithFields(fields).Warn("statement failed")
		return newError(KindExec, op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.log.WithFields(fields).Warn("row already gone")
	}
	s.rows.Rows = append(s.rows.Rows[:row], s.rows.Rows[row+1:]...)
	s.log.WithFields(fields).Debug("row deleted")
	return nil
}

// Save confirms that everything written so far is on disk. Every other
// operation commits on its own, so Save changes nothing; it checks the
// connection and reports the file.
func (s *Session) Save(ctx context.Context) (SaveReport, error) {
	const op = "save"
	if s.db == nil {
		return SaveReport{}, errorf(KindNoDatabase, op, "no database open")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return SaveReport{}, newError(KindExec, op, err)
	}
	rep := SaveReport{Path: s.path}
	if fi, err := os.Stat(s.path); err == nil {
		rep.Size = fi.Size()
	}
	s.log.WithFields(log.Fields{"path": rep.Path, "size": rep.Size}).Info("saved")
	return rep, nil
}
