package session

import (
	"strings"
)

// rowid aliases in the order SQLite resolves them. A table column with the
// same name shadows the alias.
var rowIDAliases = []string{"rowid", "_rowid_", "oid"}

// checkIdent rejects names that can not be safely quoted.
func checkIdent(op, name string) error {
	if name == "" {
		return errorf(KindBadIdent, op, "empty identifier")
	}
	if strings.IndexByte(name, 0) >= 0 {
		return errorf(KindBadIdent, op, "identifier %q contains NUL", name)
	}
	return nil
}

// QuoteIdent renders name as a double-quoted SQL identifier, doubling any
// embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// pickRowIDAlias returns the first rowid alias not used as a column name.
func pickRowIDAlias(columns []string) string {
	taken := make(map[string]bool, len(columns))
	for _, c := range columns {
		taken[strings.ToLower(c)] = true
	}
	for _, a := range rowIDAliases {
		if !taken[a] {
			return a
		}
	}
	return ""
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
