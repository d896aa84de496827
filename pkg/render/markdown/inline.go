package markdown

import (
	"regexp"
	"strings"
)

var (
	annotatedLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)\{:target="_blank"\}`)
	plainLinkPattern     = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	fencedCodePattern    = regexp.MustCompile("(?s)```(.*?)```")
	inlineCodePattern    = regexp.MustCompile("`([^`]+)`")
)

// renderSpan applies the inline passes to the content of a structured block
// (a table cell, a quote line or a list item).
func renderSpan(s string) string {
	return codePass(linkPass(emphasize(s)))
}

// renderText handles a plain text block. Headings, emphasis and links work
// line by line; code fences may span lines; leftover newlines become breaks.
func renderText(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = linkPass(emphasize(heading(l)))
	}
	out := codePass(strings.Join(lines, "\n"))
	return strings.ReplaceAll(out, "\n", "<br>")
}

func heading(line string) string {
	switch {
	case strings.HasPrefix(line, "### "):
		return "<h3>" + line[4:] + "</h3>"
	case strings.HasPrefix(line, "## "):
		return "<h2>" + line[3:] + "</h2>"
	case strings.HasPrefix(line, "# "):
		return "<h1>" + line[2:] + "</h1>"
	}
	return line
}

func linkPass(s string) string {
	s = annotatedLinkPattern.ReplaceAllString(s, `<a href="${2}" target="_blank">${1}</a>`)
	return plainLinkPattern.ReplaceAllString(s, `<a href="${2}">${1}</a>`)
}

func codePass(s string) string {
	s = fencedCodePattern.ReplaceAllString(s, "<pre><code>${1}</code></pre>")
	return inlineCodePattern.ReplaceAllString(s, "<code>${1}</code>")
}

// emphasize resolves ** before * at every position. A closing delimiter is
// only accepted when the enclosed text holds an even number of stars, so
// "**a *b***" nests as strong(a em(b)) instead of overlapping.
func emphasize(s string) string {
	if !strings.Contains(s, "*") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '*' {
			b.WriteByte(s[i])
			i++
			continue
		}
		if strings.HasPrefix(s[i:], "**") {
			if end := closeDouble(s, i+2); end >= 0 {
				b.WriteString("<strong>" + emphasize(s[i+2:end]) + "</strong>")
				i = end + 2
				continue
			}
		}
		if end := closeSingle(s, i+1); end >= 0 {
			b.WriteString("<em>" + emphasize(s[i+1:end]) + "</em>")
			i = end + 1
			continue
		}
		b.WriteByte('*')
		i++
	}
	return b.String()
}

func closeDouble(s string, start int) int {
	for j := start + 1; j+1 < len(s); j++ {
		if s[j] == '*' && s[j+1] == '*' && balanced(s[start:j]) {
			return j
		}
	}
	return -1
}

func closeSingle(s string, start int) int {
	for j := start + 1; j < len(s); j++ {
		if s[j] != '*' {
			continue
		}
		if j+1 < len(s) && s[j+1] == '*' {
			continue
		}
		if balanced(s[start:j]) {
			return j
		}
	}
	return -1
}

func balanced(s string) bool {
	return strings.Count(s, "*")%2 == 0
}
