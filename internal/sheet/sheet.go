// Package sheet moves tables between a SQLite database and automerge sheet
// documents. A sheet document keeps its table in the "data" list: element 0
// maps column keys ("0", "1", ...) to {name, type, key} definitions and each
// following element is a row map keyed the same way.
package sheet

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/automerge/automerge-go"
	"github.com/pkg/errors"

	"github.com/VargaBalazsAdam/sqlview/internal/session"
)

// Export writes rs as a sheet document into dir.
func Export(rs *session.RowSet, dir string) error {
	if rs == nil {
		return errors.New("sheet: no rows to export")
	}
	doc := automerge.New()
	if err := doc.Path("type").Set("table"); err != nil {
		return errors.Wrap(err, "set type")
	}
	if err := doc.Path("data").Set(automerge.NewList()); err != nil {
		return errors.Wrap(err, "create data list")
	}
	data := doc.Path("data").List()

	if err := data.Append(automerge.NewMap()); err != nil {
		return errors.Wrap(err, "append column row")
	}
	for i, name := range rs.Columns {
		key := strconv.Itoa(i)
		typ := "text"
		if i < len(rs.Types) {
			typ = sheetType(rs.Types[i])
		}
		if err := doc.Path("data", 0, key).Set(automerge.NewMap()); err != nil {
			return errors.Wrapf(err, "column %s", name)
		}
		for field, v := range map[string]string{"name": name, "type": typ, "key": key} {
			if err := doc.Path("data", 0, key, field).Set(v); err != nil {
				return errors.Wrapf(err, "column %s %s", name, field)
			}
		}
	}

	for ri, row := range rs.Rows {
		if err := data.Append(automerge.NewMap()); err != nil {
			return errors.Wrapf(err, "append row %d", ri)
		}
		for ci, v := range row.Values {
			if err := doc.Path("data", ri+1, strconv.Itoa(ci)).Set(v); err != nil {
				return errors.Wrapf(err, "row %d column %d", ri, ci)
			}
		}
	}

	if _, err := doc.Commit("export " + rs.Table); err != nil {
		return errors.Wrap(err, "commit")
	}
	return errors.Wrapf(saveDoc(doc, dir), "save %s", dir)
}

// Import creates table in the session's database from the sheet document in
// dir and refreshes the catalog.
func Import(ctx context.Context, s *session.Session, dir, table string) error {
	db := s.DB()
	if db == nil {
		return errors.New("sheet: no database open")
	}
	if strings.TrimSpace(table) == "" {
		return errors.New("sheet: table name is required")
	}
	for _, t := range s.Tables() {
		if t == table {
			return errors.Errorf("sheet: table %q already exists", table)
		}
	}

	doc, err := loadDoc(dir)
	if err != nil {
		return err
	}
	cols, rows, err := readTable(doc)
	if err != nil {
		return errors.Wrapf(err, "read %s", dir)
	}
	if len(cols) == 0 {
		return errors.Errorf("sheet: %s has no columns", dir)
	}
	if err := loadIntoSQLite(ctx, db, table, cols, rows); err != nil {
		return err
	}
	_, err = s.ListTables(ctx)
	return err
}

// sheetType maps a declared SQLite column type to a sheet column type using
// SQLite's affinity rules.
func sheetType(decl string) string {
	d := strings.ToUpper(decl)
	switch {
	case strings.Contains(d, "INT"):
		return "int"
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"),
		strings.Contains(d, "NUM"), strings.Contains(d, "DEC"):
		return "num"
	case strings.Contains(d, "BOOL"):
		return "bool"
	case strings.Contains(d, "BLOB"):
		return "blob"
	default:
		return "text"
	}
}

func sqlType(typ string) string {
	switch typ {
	case "num", "float", "usd", "percentage":
		return "REAL"
	case "int", "bool":
		return "INTEGER"
	case "blob":
		return "BLOB"
	default:
		return "TEXT"
	}
}

func loadIntoSQLite(ctx context.Context, db *sql.DB, table string, cols []column, rows []map[string]any) error {
	colDefs := make([]string, len(cols))
	for i, c := range cols {
		colDefs[i] = session.QuoteIdent(c.name) + " " + sqlType(c.typ)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	create := fmt.Sprintf("CREATE TABLE %s (%s)", session.QuoteIdent(table), strings.Join(colDefs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return errors.Wrapf(err, "create table %s", table)
	}

	if len(rows) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", session.QuoteIdent(table), placeholders))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, row := range rows {
			vals := make([]any, len(cols))
			for i, c := range cols {
				vals[i] = row[c.key]
			}
			if _, err := stmt.ExecContext(ctx, vals...); err != nil {
				return errors.Wrapf(err, "insert into %s", table)
			}
		}
	}
	return tx.Commit()
}
