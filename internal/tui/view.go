package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/VargaBalazsAdam/sqlview/internal/session"
)

// styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	cursorStyle = lipgloss.NewStyle().Background(lipgloss.Color("4")).Foreground(lipgloss.Color("15"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	paneStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))
	focusedPaneStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12"))
	alertStyle       = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("9")).Padding(1, 2)
)

const tablePaneWidth = 22

func (m model) View() string {
	if m.width == 0 {
		return "loading..."
	}
	if m.alert != "" {
		return m.viewAlert()
	}
	switch {
	case m.view == viewOpen:
		return m.viewOpen()
	case m.sess.Mode() == session.ModeCreating:
		return m.viewCreate()
	}
	return m.viewBrowse()
}

func (m model) viewAlert() string {
	body := errorStyle.Render("error") + "\n\n" + m.alert + "\n\n" + dimStyle.Render("press any key")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		alertStyle.Width(min(60, max(20, m.width-4))).Render(body))
}

func (m model) viewOpen() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" sqlview"))
	b.WriteString("\n")
	b.WriteString(m.pathInput.View())
	b.WriteString("\n\n")

	if len(m.dbs) == 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf(" no %s files in %s\n", dbExt, m.dir)))
	}

	visibleRows := m.pickerRows()
	for i := m.pickScroll; i < len(m.dbs) && i < m.pickScroll+visibleRows; i++ {
		d := m.dbs[i]
		cursor := "  "
		if i == m.pickCursor {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%s %9s  %s", cursor, runewidth.FillRight(fit(d.name, 34), 34),
			humanize.Bytes(uint64(d.size)), humanize.Time(d.modTime))
		if i == m.pickCursor {
			b.WriteString(cursorStyle.Render(line))
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(statusStyle.Render(" "+m.status) + "\n")
	}
	b.WriteString(dimStyle.Render(" type a path or ↑/↓ pick  enter open  esc back"))
	return b.String()
}

func (m model) viewBrowse() string {
	var b strings.Builder

	title := " " + m.sess.Path()
	if fi, err := os.Stat(m.sess.Path()); err == nil {
		title += dimStyle.Render(" " + humanize.Bytes(uint64(fi.Size())))
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	tables := m.renderTablePane(tablePaneWidth, m.contentHeight())
	grid := m.renderGridPane(m.gridWidth(), m.contentHeight())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tables, grid))
	b.WriteString("\n")

	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	help := m.keys.gridHelp()
	if m.focus == paneTables {
		help = m.keys.tablesHelp()
	}
	b.WriteString(dimStyle.Render(helpLine(help)))
	return b.String()
}

func (m model) renderTablePane(width, height int) string {
	style := paneStyle
	if m.focus == paneTables {
		style = focusedPaneStyle
	}

	var content strings.Builder
	content.WriteString(headerStyle.Render(fmt.Sprintf(" %-*s", width-1, "tables")))
	content.WriteString("\n")

	tables := m.sess.Tables()
	if len(tables) == 0 {
		content.WriteString(dimStyle.Render(" (no tables)"))
	}
	for i, t := range tables {
		if i >= height-1 {
			break
		}
		name := fit(t, width-3)
		line := "  " + name
		if t == m.sess.Selected() {
			line = "* " + name
		}
		if i == m.tableCursor && m.focus == paneTables {
			line = cursorStyle.Render(runewidth.FillRight(line, width))
		}
		content.WriteString(line)
		content.WriteString("\n")
	}
	return style.Width(width).Height(height).Render(content.String())
}

func (m model) renderGridPane(width, height int) string {
	style := paneStyle
	if m.focus == paneGrid {
		style = focusedPaneStyle
	}
	rs := m.sess.Rows()
	if rs == nil {
		return style.Width(width).Height(height).Render(dimStyle.Render(" select a table"))
	}
	if len(rs.Columns) == 0 {
		return style.Width(width).Height(height).Render(dimStyle.Render(" (empty table)"))
	}
	return style.Width(width).Height(height).Render(m.renderGrid(rs, width, height))
}

func (m model) renderGrid(rs *session.RowSet, width, height int) string {
	var b strings.Builder

	colWidths := computeColWidths(rs)
	affs := make([]affinity, len(rs.Columns))
	for i := range affs {
		if i < len(rs.Types) {
			affs[i] = columnAffinity(rs.Types[i])
		}
	}

	// header + separator take two lines
	dataHeight := max(1, height-2)
	visStart, visEnd := visibleColRange(colWidths, m.scrollX, m.cx, width)

	var hdr, sep strings.Builder
	for ci := visStart; ci < visEnd; ci++ {
		w := colWidths[ci]
		hdr.WriteString(headerStyle.Render(" " + runewidth.FillRight(fit(rs.Columns[ci], w), w) + " "))
		sep.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
		if ci < visEnd-1 {
			hdr.WriteString(dimStyle.Render("│"))
			sep.WriteString(dimStyle.Render("┼"))
		}
	}
	b.WriteString(hdr.String())
	b.WriteString("\n")
	b.WriteString(sep.String())
	b.WriteString("\n")

	if len(rs.Rows) == 0 {
		b.WriteString(dimStyle.Render(" (no rows, press a to add one)"))
		return b.String()
	}

	endRow := min(len(rs.Rows), m.scrollY+dataHeight)
	for ri := m.scrollY; ri < endRow; ri++ {
		row := rs.Rows[ri]
		for ci := visStart; ci < visEnd; ci++ {
			var display string
			if m.mode == modeEdit && ri == m.cy && ci == m.cx {
				display = m.editBuf + "_"
			} else {
				display = strings.ReplaceAll(formatCell(row.Values[ci]), "\n", "⏎")
			}
			cell := " " + alignCell(display, affs[ci], colWidths[ci]) + " "
			if ri == m.cy && ci == m.cx && m.focus == paneGrid {
				b.WriteString(cursorStyle.Render(cell))
			} else {
				b.WriteString(cell)
			}
			if ci < visEnd-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderStatus() string {
	modeStr := "NORMAL"
	if m.mode == modeEdit {
		modeStr = "EDIT"
	}
	status := " " + modeStr
	if rs := m.sess.Rows(); rs != nil {
		status += fmt.Sprintf("  %s [%d,%d] %dx%d", rs.Table, m.cx, m.cy, len(rs.Columns), len(rs.Rows))
		if !rs.HasRowID() {
			status += " read-only"
		}
	}
	if m.confirmDrop != "" {
		return errorStyle.Render(fmt.Sprintf(" Delete table %q? (y/n)", m.confirmDrop))
	}
	if m.status != "" {
		status += "  " + m.status
	}
	return statusStyle.Render(status)
}

func (m model) viewCreate() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" create table"))
	b.WriteString("\n\n")
	b.WriteString(m.nameInput.View())
	b.WriteString("\n\n")
	b.WriteString(m.sqlInput.View())
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render(" tab switch field  ctrl+s create  esc cancel"))
	return b.String()
}

func computeColWidths(rs *session.RowSet) []int {
	widths := make([]int, len(rs.Columns))
	for i, c := range rs.Columns {
		widths[i] = max(4, runewidth.StringWidth(c))
	}
	// sample rows for width
	sampleEnd := min(len(rs.Rows), 100)
	for _, row := range rs.Rows[:sampleEnd] {
		for i, v := range row.Values {
			if w := runewidth.StringWidth(formatCell(v)); w > widths[i] {
				widths[i] = w
			}
		}
	}
	// cap at reasonable max
	for i := range widths {
		if widths[i] > 30 {
			widths[i] = 30
		}
	}
	return widths
}

// visibleColRange picks the columns that fit in avail, starting at scrollX
// and shifting right until the cursor column is shown.
func visibleColRange(widths []int, scrollX, cx, avail int) (int, int) {
	start := scrollX
	if start >= len(widths) {
		start = 0
	}
	used := 0
	end := start
	for end < len(widths) {
		w := widths[end] + 3 // padding + separator
		if used+w > avail && end > start {
			break
		}
		used += w
		end++
	}
	// ensure cursor column is visible
	if cx >= end {
		end = cx + 1
		used = 0
		for i := end - 1; i >= 0; i-- {
			used += widths[i] + 3
			if used > avail {
				start = i + 1
				break
			}
			start = i
		}
	}
	if cx < start {
		start = cx
	}
	return start, end
}
