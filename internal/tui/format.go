package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// affinity is the SQLite type affinity of a declared column type.
type affinity int

const (
	affText affinity = iota
	affInteger
	affReal
	affNumeric
	affBlob
)

func columnAffinity(decl string) affinity {
	d := strings.ToUpper(decl)
	switch {
	case strings.Contains(d, "INT"):
		return affInteger
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return affText
	case d == "" || strings.Contains(d, "BLOB"):
		return affBlob
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return affReal
	default:
		return affNumeric
	}
}

func numeric(a affinity) bool {
	return a == affInteger || a == affReal || a == affNumeric
}

// formatCell renders a stored value for the grid and as the initial edit
// buffer. NULL renders empty.
func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatFloat(v, 'f', 1, 64)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	case []byte:
		return fmt.Sprintf("<blob %d bytes>", len(v))
	default:
		return fmt.Sprintf("%v", val)
	}
}

// fit truncates s to at most width terminal cells.
func fit(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, ".")
}

func alignCell(s string, a affinity, width int) string {
	if width < 1 {
		return ""
	}
	s = fit(s, width)
	if numeric(a) {
		return runewidth.FillLeft(s, width)
	}
	return runewidth.FillRight(s, width)
}

// parseCell converts edited text into the value bound for the update. A
// value that still reads as the type of orig keeps that type. Otherwise
// numeric columns get a number when the text is one; all other text is
// bound exactly as typed, including the empty string.
func parseCell(s string, a affinity, orig any) any {
	t := strings.TrimSpace(s)
	switch orig.(type) {
	case int64:
		if v, err := strconv.ParseInt(t, 10, 64); err == nil {
			return v
		}
	case float64:
		if v, err := strconv.ParseFloat(t, 64); err == nil {
			return v
		}
	}
	switch a {
	case affInteger, affNumeric:
		if v, err := strconv.ParseInt(t, 10, 64); err == nil {
			return v
		}
		if v, err := strconv.ParseFloat(t, 64); err == nil {
			return v
		}
	case affReal:
		if v, err := strconv.ParseFloat(t, 64); err == nil {
			return v
		}
	}
	return s
}
