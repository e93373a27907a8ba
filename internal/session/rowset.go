package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Row is one displayed table row together with the rowid it was loaded with.
type Row struct {
	ID     int64
	Values []any
}

// RowSet is the in-memory copy of a table as of its last load.
type RowSet struct {
	Table   string
	Columns []string
	// Types holds the declared column types, parallel to Columns.
	Types []string
	Rows  []Row

	// alias is the rowid alias used to address rows; empty for
	// WITHOUT ROWID tables, which load read-only.
	alias string
}

// HasRowID reports whether rows can be addressed for update and delete.
func (rs *RowSet) HasRowID() bool { return rs != nil && rs.alias != "" }

// ColumnIndex returns the position of column, or -1.
func (rs *RowSet) ColumnIndex(column string) int {
	if rs == nil {
		return -1
	}
	for i, c := range rs.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

type tableColumn struct {
	name string
	typ  string
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]tableColumn, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []tableColumn
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, tableColumn{name: name, typ: typ})
	}
	return cols, rows.Err()
}

// loadRowSet reads every row of table. It first tries to fetch the rowid
// alongside the row values and falls back to a plain select for tables
// that have none.
func loadRowSet(ctx context.Context, db *sql.DB, table string) (*RowSet, error) {
	cols, err := tableColumns(ctx, db, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	types := make(map[string]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
		types[c.name] = c.typ
	}

	rs := &RowSet{Table: table}
	if alias := pickRowIDAlias(names); alias != "" {
		q := fmt.Sprintf("SELECT %s, * FROM %s", alias, QuoteIdent(table))
		if rows, err := db.QueryContext(ctx, q); err == nil {
			rs.alias = alias
			err = scanRowSet(rows, rs, true)
			rows.Close()
			if err != nil {
				return nil, err
			}
			rs.fillTypes(types)
			return rs, nil
		} else if !isNoRowIDErr(err) {
			return nil, err
		}
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+QuoteIdent(table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if err := scanRowSet(rows, rs, false); err != nil {
		return nil, err
	}
	rs.fillTypes(types)
	return rs, nil
}

func (rs *RowSet) fillTypes(types map[string]string) {
	rs.Types = make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		rs.Types[i] = types[c]
	}
}

func isNoRowIDErr(err error) bool {
	return strings.Contains(err.Error(), "no such column")
}

func scanRowSet(sqlRows *sql.Rows, rs *RowSet, withID bool) error {
	colNames, err := sqlRows.Columns()
	if err != nil {
		return err
	}
	if withID {
		colNames = colNames[1:]
	}
	rs.Columns = colNames

	width := len(colNames)
	if withID {
		width++
	}
	for sqlRows.Next() {
		ptrs := make([]any, width)
		for i := range ptrs {
			ptrs[i] = new(any)
		}
		if err := sqlRows.Scan(ptrs...); err != nil {
			return err
		}
		// the driver returns int64, float64, string, []byte or nil; []byte
		// is only used for BLOB values and is kept as is
		vals := make([]any, 0, len(colNames))
		for _, p := range ptrs {
			vals = append(vals, *(p.(*any)))
		}
		row := Row{Values: vals}
		if withID {
			id, ok := vals[0].(int64)
			if !ok {
				return errors.Errorf("rowid has type %T", vals[0])
			}
			row.ID = id
			row.Values = vals[1:]
		}
		rs.Rows = append(rs.Rows, row)
	}
	return sqlRows.Err()
}
