// Package markdown renders markup cell source into display markup.
//
// Rendering runs in two stages. The block stage classifies every line exactly
// once (table row, quote, unordered item, ordered item or plain text) and
// groups consecutive lines of the same class into a block. The inline stage
// then rewrites the content of each block in a fixed order:
//
//	headings (text blocks only), emphasis (bold before italic),
//	links (annotated before plain), code (fenced before inline),
//	remaining newlines
//
// Nested lists and nested quotes are not supported. Inline content is not
// escaped; callers embedding the result in a live page own that concern.
package markdown
