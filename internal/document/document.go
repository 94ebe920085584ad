package document

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOutOfRange is returned when an offset falls outside the document.
var ErrOutOfRange = errors.New("offset out of range")

// Kind identifies the structural role of a block.
type Kind int

const (
	// Paragraph is a plain text block.
	Paragraph Kind = iota
	// Heading is a section title; Level holds 1-6.
	Heading
	// BulletItem is an unordered list item; Level holds the nesting depth.
	BulletItem
	// OrderedItem is a numbered list item; Level holds the nesting depth.
	OrderedItem
	// Quote is a block quote paragraph.
	Quote
	// CodeBlock is a single line of a fenced code block.
	CodeBlock
	// Rule is a thematic break and carries no text.
	Rule
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case Paragraph:
		return "paragraph"
	case Heading:
		return "heading"
	case BulletItem:
		return "bullet_item"
	case OrderedItem:
		return "ordered_item"
	case Quote:
		return "quote"
	case CodeBlock:
		return "code_block"
	case Rule:
		return "rule"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Block is one structural unit of the document.
type Block struct {
	// Kind is the structural role of the block.
	Kind Kind
	// Level is the heading level or list nesting depth.
	Level int
	// Text is the block content, inline markup included.
	Text string
}

// Range is a half-open span [From, To) in document offsets.
type Range struct {
	// From is the first offset inside the range.
	From int
	// To is the offset just past the range.
	To int
}

// Document is a block-structured text buffer addressed by linear offsets.
//
// Offsets count runes; each boundary between two blocks counts as one
// position, so PlainText() has exactly Len() runes. The cursor, selection
// and highlight decorations are remapped through every edit.
type Document struct {
	blocks     []Block
	cursor     int
	selection  Range
	highlights []Range
}

// New returns an empty document holding a single empty paragraph.
func New() *Document {
	return &Document{blocks: []Block{{Kind: Paragraph}}}
}

// FromBlocks builds a document from explicit blocks.
func FromBlocks(blocks []Block) *Document {
	if len(blocks) == 0 {
		return New()
	}
	copied := make([]Block, len(blocks))
	copy(copied, blocks)
	return &Document{blocks: copied}
}

// Blocks returns a copy of the document blocks.
func (d *Document) Blocks() []Block {
	copied := make([]Block, len(d.blocks))
	copy(copied, d.blocks)
	return copied
}

// Len returns the size of the linear offset space.
func (d *Document) Len() int {
	total := 0
	for i, block := range d.blocks {
		if i > 0 {
			total++
		}
		total += runeLen(block.Text)
	}
	return total
}

// PlainText joins the block texts with newlines.
func (d *Document) PlainText() string {
	parts := make([]string, len(d.blocks))
	for i, block := range d.blocks {
		parts[i] = block.Text
	}
	return strings.Join(parts, "\n")
}

// TextRange returns the plain text between two offsets.
func (d *Document) TextRange(from int, to int) string {
	from = d.clamp(from)
	to = d.clamp(to)
	if to <= from {
		return ""
	}
	runes := []rune(d.PlainText())
	return string(runes[from:to])
}

// Title returns the first heading, or the first non-empty line when there is none.
func (d *Document) Title() string {
	for _, block := range d.blocks {
		if block.Kind == Heading && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text)
		}
	}
	for _, block := range d.blocks {
		trimmed := strings.TrimSpace(block.Text)
		if trimmed == "" {
			continue
		}
		if runeLen(trimmed) > 80 {
			return string([]rune(trimmed)[:80])
		}
		return trimmed
	}
	return ""
}

// Cursor returns the insertion offset.
func (d *Document) Cursor() int {
	return d.cursor
}

// SetCursor moves the insertion offset, clamped to the document.
func (d *Document) SetCursor(offset int) {
	d.cursor = d.clamp(offset)
}

// MoveToEnd places the cursor after the last block.
func (d *Document) MoveToEnd() {
	d.cursor = d.Len()
}

// Selection returns the selected range; an empty selection has From == To.
func (d *Document) Selection() (int, int) {
	return d.selection.From, d.selection.To
}

// Select sets the selection, normalizing reversed bounds.
func (d *Document) Select(from int, to int) {
	from = d.clamp(from)
	to = d.clamp(to)
	if to < from {
		from, to = to, from
	}
	d.selection = Range{From: from, To: to}
}

// SetHighlight decorates a range as pending.
func (d *Document) SetHighlight(from int, to int) {
	if to < from {
		from, to = to, from
	}
	d.highlights = append(d.highlights, Range{From: d.clamp(from), To: d.clamp(to)})
}

// ClearHighlight removes every decoration overlapping the range.
func (d *Document) ClearHighlight(from int, to int) {
	if to < from {
		from, to = to, from
	}
	kept := d.highlights[:0]
	for _, highlight := range d.highlights {
		if highlight.To < from || highlight.From > to {
			kept = append(kept, highlight)
		}
	}
	d.highlights = kept
}

// Highlights returns the active decorations.
func (d *Document) Highlights() []Range {
	copied := make([]Range, len(d.highlights))
	copy(copied, d.highlights)
	return copied
}

// InStructure reports whether the cursor sits inside a list item or quote.
func (d *Document) InStructure() bool {
	index, _ := d.locate(d.cursor)
	switch d.blocks[index].Kind {
	case BulletItem, OrderedItem, Quote:
		return true
	default:
		return false
	}
}

// ExitStructure leaves a list item or quote by opening an empty paragraph
// at the cursor, so later text is not nested in the structure. An empty item
// becomes the paragraph. Otherwise the block is split at the cursor and any
// text after it stays in the structure, after the new paragraph. Blocks after
// the cursor keep their order.
func (d *Document) ExitStructure() {
	index, offset := d.locate(d.cursor)
	current := d.blocks[index]
	if !isContainer(current.Kind) {
		return
	}
	if current.Text == "" {
		d.blocks[index] = Block{Kind: Paragraph}
		return
	}

	at := d.cursor
	runes := []rune(current.Text)
	var replacement []Block
	if offset > 0 {
		head := current
		head.Text = string(runes[:offset])
		replacement = append(replacement, head)
	}
	replacement = append(replacement, Block{Kind: Paragraph})
	if offset < len(runes) {
		tail := current
		tail.Text = string(runes[offset:])
		replacement = append(replacement, tail)
	}
	before := d.Len()
	d.splice(index, index+1, replacement)
	d.shiftMarks(at, d.Len()-before)
	if offset > 0 {
		at++
	}
	d.cursor = at
}

// InsertText inserts literal text at the cursor and advances it.
// Each newline splits the current block.
func (d *Document) InsertText(text string) {
	if text == "" {
		return
	}
	at := d.cursor
	index, offset := d.locate(at)
	current := d.blocks[index]
	runes := []rune(current.Text)
	head := string(runes[:offset])
	tail := string(runes[offset:])

	parts := strings.Split(text, "\n")
	replacement := make([]Block, 0, len(parts))
	if len(parts) == 1 {
		current.Text = head + parts[0] + tail
		replacement = append(replacement, current)
	} else {
		first := current
		first.Text = head + parts[0]
		replacement = append(replacement, first)
		next := continuation(current)
		for _, part := range parts[1 : len(parts)-1] {
			block := next
			block.Text = part
			replacement = append(replacement, block)
		}
		last := next
		last.Text = parts[len(parts)-1] + tail
		replacement = append(replacement, last)
	}

	d.splice(index, index+1, replacement)
	delta := runeLen(text)
	d.shiftMarks(at, delta)
	d.cursor = at + delta
}

// InsertMarkdown parses markdown and inserts the resulting blocks at the cursor.
//
// The block holding the cursor is split; a paragraph at either edge of the
// parsed content merges into the surrounding text unless a line break
// separates them. Markdown ending with a blank line leaves the cursor in a
// new continuation block; text after the cursor keeps its own block. The error return
// satisfies surfaces whose structured insertion can fail; it is always nil here.
func (d *Document) InsertMarkdown(markdown string) error {
	parsed := parseBlocks(markdown)
	trailingBreak := strings.HasSuffix(markdown, "\n\n")
	if len(parsed) == 0 {
		if trailingBreak {
			d.InsertText("\n")
		}
		return nil
	}

	at := d.cursor
	before := d.Len()
	index, offset := d.locate(at)
	current := d.blocks[index]
	runes := []rune(current.Text)
	head := string(runes[:offset])
	tail := string(runes[offset:])

	// Parsing trims paragraph edges; text that joins the surrounding block
	// keeps its spacing.
	leading, trailing := edgeSpace(markdown)
	joinsHead := !strings.HasPrefix(strings.TrimLeft(markdown, " \t"), "\n")
	if parsed[0].Kind == Paragraph && joinsHead {
		parsed[0].Text = leading + parsed[0].Text
	}
	if last := &parsed[len(parsed)-1]; last.Kind == Paragraph && !strings.HasSuffix(markdown, "\n") {
		last.Text += trailing
	}
	// A line break at the end keeps the tail in its own block.
	if !trailingBreak && tail != "" && strings.HasSuffix(markdown, "\n") {
		trailingBreak = true
	}

	out := make([]Block, 0, len(parsed)+2)
	first := parsed[0]
	switch {
	case head != "" && joinsHead && first.Kind == Paragraph && current.Kind != CodeBlock:
		merged := current
		merged.Text = head + first.Text
		out = append(out, merged)
		out = append(out, parsed[1:]...)
	case head != "":
		kept := current
		kept.Text = head
		out = append(out, kept)
		out = append(out, parsed...)
	case first.Kind == Paragraph && isContainer(current.Kind):
		adopted := current
		adopted.Text = first.Text
		out = append(out, adopted)
		out = append(out, parsed[1:]...)
	default:
		out = append(out, parsed...)
	}

	if trailingBreak {
		next := continuation(out[len(out)-1])
		if tail != "" {
			next = Block{Kind: current.Kind, Level: current.Level}
		}
		out = append(out, next)
	}
	last := &out[len(out)-1]
	cursorIndex := index + len(out) - 1
	cursorOffset := runeLen(last.Text)
	last.Text += tail

	d.splice(index, index+1, out)
	d.shiftMarks(at, d.Len()-before)
	d.cursor = d.offsetOf(cursorIndex, cursorOffset)
	return nil
}

// edgeSpace returns the spaces and tabs that open and close markdown.
func edgeSpace(markdown string) (string, string) {
	leading := markdown[:len(markdown)-len(strings.TrimLeft(markdown, " \t"))]
	if leading == markdown {
		return "", ""
	}
	trailing := markdown[len(strings.TrimRight(markdown, " \t")):]
	return leading, trailing
}

// DeleteRange removes [from, to), merging the blocks at both edges.
func (d *Document) DeleteRange(from int, to int) error {
	size := d.Len()
	if from < 0 || to > size || from > to {
		return fmt.Errorf("delete [%d, %d) of %d: %w", from, to, size, ErrOutOfRange)
	}
	if from == to {
		return nil
	}
	startIndex, startOffset := d.locate(from)
	endIndex, endOffset := d.locate(to)
	merged := d.blocks[startIndex]
	merged.Text = string([]rune(merged.Text)[:startOffset]) + string([]rune(d.blocks[endIndex].Text)[endOffset:])
	d.splice(startIndex, endIndex+1, []Block{merged})

	d.cursor = mapDelete(d.cursor, from, to)
	d.selection = Range{From: mapDelete(d.selection.From, from, to), To: mapDelete(d.selection.To, from, to)}
	kept := d.highlights[:0]
	for _, highlight := range d.highlights {
		mapped := Range{From: mapDelete(highlight.From, from, to), To: mapDelete(highlight.To, from, to)}
		if mapped.From < mapped.To {
			kept = append(kept, mapped)
		}
	}
	d.highlights = kept
	return nil
}

// locate maps a linear offset to a block index and a rune offset inside it.
func (d *Document) locate(offset int) (int, int) {
	offset = d.clamp(offset)
	for i, block := range d.blocks {
		size := runeLen(block.Text)
		if offset <= size {
			return i, offset
		}
		offset -= size + 1
	}
	last := len(d.blocks) - 1
	return last, runeLen(d.blocks[last].Text)
}

// offsetOf is the inverse of locate.
func (d *Document) offsetOf(index int, offset int) int {
	total := 0
	for i := 0; i < index && i < len(d.blocks); i++ {
		total += runeLen(d.blocks[i].Text) + 1
	}
	return total + offset
}

func (d *Document) splice(start int, end int, replacement []Block) {
	updated := make([]Block, 0, len(d.blocks)-(end-start)+len(replacement))
	updated = append(updated, d.blocks[:start]...)
	updated = append(updated, replacement...)
	updated = append(updated, d.blocks[end:]...)
	d.blocks = updated
}

// shiftMarks moves selection and highlight bounds that sit after an insertion point.
func (d *Document) shiftMarks(at int, delta int) {
	shift := func(pos int) int {
		if pos > at {
			return pos + delta
		}
		return pos
	}
	d.selection = Range{From: shift(d.selection.From), To: shift(d.selection.To)}
	for i := range d.highlights {
		d.highlights[i] = Range{From: shift(d.highlights[i].From), To: shift(d.highlights[i].To)}
	}
}

func (d *Document) clamp(offset int) int {
	if offset < 0 {
		return 0
	}
	if size := d.Len(); offset > size {
		return size
	}
	return offset
}

func mapDelete(pos int, from int, to int) int {
	switch {
	case pos >= to:
		return pos - (to - from)
	case pos > from:
		return from
	default:
		return pos
	}
}

// continuation returns the empty block opened by a line break after block.
func continuation(block Block) Block {
	switch block.Kind {
	case BulletItem, OrderedItem:
		return Block{Kind: block.Kind, Level: block.Level}
	case Quote, CodeBlock:
		return Block{Kind: block.Kind}
	default:
		return Block{Kind: Paragraph}
	}
}

func isContainer(kind Kind) bool {
	return kind == BulletItem || kind == OrderedItem || kind == Quote
}

func runeLen(text string) int {
	return len([]rune(text))
}
