package markdown

import (
	"regexp"
	"strings"
)

type blockKind int

const (
	blockText blockKind = iota
	blockTable
	blockQuote
	blockUnordered
	blockOrdered
)

// block is a run of consecutive lines of one kind. Structured blocks keep
// their per-line content in lines; text blocks keep the raw text, including
// the newline that separated them from a following structured block.
type block struct {
	kind  blockKind
	lines []string
	text  string
}

var (
	tableRowPattern = regexp.MustCompile(`^(\|[^|]*)+\|$`)
	orderedPattern  = regexp.MustCompile(`^\d+\. (.*)$`)
)

// classify assigns a line to exactly one block kind and returns the content
// the block keeps for it. Precedence follows the pass order: table, quote,
// unordered, ordered.
func classify(line string) (blockKind, string) {
	switch {
	case tableRowPattern.MatchString(line):
		return blockTable, line
	case strings.HasPrefix(line, "> "):
		return blockQuote, line[2:]
	case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
		return blockUnordered, line[2:]
	}
	if m := orderedPattern.FindStringSubmatch(line); m != nil {
		return blockOrdered, m[1]
	}
	return blockText, line
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// parseBlocks splits src into blocks. Blank lines between lines of the same
// structured kind do not break the block, and blank lines after a structured
// block are absorbed by it.
func parseBlocks(src string) []block {
	lines := strings.Split(src, "\n")
	var blocks []block
	var text strings.Builder

	flushText := func() {
		if text.Len() > 0 {
			blocks = append(blocks, block{kind: blockText, text: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(lines); {
		kind, content := classify(lines[i])
		if kind == blockText {
			text.WriteString(lines[i])
			if i < len(lines)-1 {
				text.WriteByte('\n')
			}
			i++
			continue
		}

		flushText()
		blk := block{kind: kind, lines: []string{content}}
		i++
		for i < len(lines) {
			j := i
			for j < len(lines) && isBlank(lines[j]) {
				j++
			}
			if j == len(lines) {
				i = j
				break
			}
			next, nextContent := classify(lines[j])
			if next != kind {
				i = j
				break
			}
			blk.lines = append(blk.lines, nextContent)
			i = j + 1
		}
		blocks = append(blocks, blk)
	}
	flushText()
	return blocks
}
