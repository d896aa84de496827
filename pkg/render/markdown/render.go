package markdown

import "strings"

// Render converts markup source into display markup. It is pure and
// deterministic.
func Render(src string) string {
	var b strings.Builder
	for _, blk := range parseBlocks(src) {
		switch blk.kind {
		case blockTable:
			b.WriteString(renderTable(blk.lines))
		case blockQuote:
			b.WriteString(renderQuote(blk.lines))
		case blockUnordered:
			b.WriteString(renderList("ul", blk.lines))
		case blockOrdered:
			b.WriteString(renderList("ol", blk.lines))
		default:
			b.WriteString(renderText(blk.text))
		}
	}
	return b.String()
}

func renderQuote(lines []string) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = renderSpan(l)
	}
	return "<blockquote>" + strings.Join(parts, "<br>") + "</blockquote>"
}

func renderList(tag string, items []string) string {
	var b strings.Builder
	b.WriteString("<" + tag + ">")
	for _, item := range items {
		b.WriteString("<li>" + renderSpan(item) + "</li>")
	}
	b.WriteString("</" + tag + ">")
	return b.String()
}
