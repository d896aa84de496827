package markdown

import (
	"regexp"
	"strings"
)

var separatorRowPattern = regexp.MustCompile(`^\|[\s\-|]+\|$`)

// renderTable turns grouped pipe rows into a table. The first row is the
// header; separator rows are dropped wherever they appear.
func renderTable(rows []string) string {
	var b strings.Builder
	b.WriteString("<table>")
	if separatorRowPattern.MatchString(rows[0]) {
		b.WriteString("<tbody>")
	}
	for i, row := range rows {
		if separatorRowPattern.MatchString(row) {
			continue
		}
		if i == 0 {
			writeRow(&b, "th", splitRow(row))
			continue
		}
		writeRow(&b, "td", splitRow(row))
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func writeRow(b *strings.Builder, tag string, cells []string) {
	if tag == "th" {
		b.WriteString("<thead>")
	}
	b.WriteString("<tr>")
	for _, c := range cells {
		b.WriteString("<" + tag + ">" + renderSpan(c) + "</" + tag + ">")
	}
	b.WriteString("</tr>")
	if tag == "th" {
		b.WriteString("</thead><tbody>")
	}
}

func splitRow(row string) []string {
	var cells []string
	for _, c := range strings.Split(row, "|") {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return cells
}
