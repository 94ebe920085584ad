package document

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownParser is shared; goldmark parsers are safe for concurrent use.
var markdownParser = goldmark.New().Parser()

// Parse builds a document from markdown source.
func Parse(markdown string) *Document {
	return FromBlocks(parseBlocks(markdown))
}

// parseBlocks converts markdown into flat document blocks.
// Inline markup is kept verbatim in block text.
func parseBlocks(markdown string) []Block {
	source := []byte(markdown)
	root := markdownParser.Parse(text.NewReader(source))
	collector := &blockCollector{source: source}
	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		collector.visit(node, Paragraph, 0)
	}
	return collector.blocks
}

// blockCollector flattens a goldmark AST into blocks.
type blockCollector struct {
	// source is the parsed markdown input.
	source []byte
	// blocks accumulates the flattened output.
	blocks []Block
}

// visit appends blocks for node; container carries the enclosing list or quote kind.
func (c *blockCollector) visit(node ast.Node, container Kind, depth int) {
	switch typed := node.(type) {
	case *ast.Heading:
		c.blocks = append(c.blocks, Block{Kind: Heading, Level: typed.Level, Text: c.inlineText(node)})
	case *ast.Paragraph, *ast.TextBlock:
		kind := Paragraph
		level := 0
		if container != Paragraph {
			kind = container
			level = depth
		}
		if kind == Quote {
			level = 0
		}
		c.blocks = append(c.blocks, Block{Kind: kind, Level: level, Text: c.inlineText(node)})
	case *ast.List:
		kind := BulletItem
		if typed.IsOrdered() {
			kind = OrderedItem
		}
		nested := depth
		if container == BulletItem || container == OrderedItem {
			nested = depth + 1
		}
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			c.visitItem(item, kind, nested)
		}
	case *ast.Blockquote:
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			c.visit(child, Quote, 0)
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			line := strings.TrimRight(string(segment.Value(c.source)), "\r\n")
			c.blocks = append(c.blocks, Block{Kind: CodeBlock, Text: line})
		}
	case *ast.ThematicBreak:
		c.blocks = append(c.blocks, Block{Kind: Rule})
	case *ast.HTMLBlock:
		c.blocks = append(c.blocks, Block{Kind: Paragraph, Text: c.inlineText(node)})
	default:
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			c.visit(child, container, depth)
		}
	}
}

// visitItem emits one list item; an item with no text still yields an empty block.
func (c *blockCollector) visitItem(item ast.Node, kind Kind, depth int) {
	before := len(c.blocks)
	for child := item.FirstChild(); child != nil; child = child.NextSibling() {
		c.visit(child, kind, depth)
	}
	if len(c.blocks) == before {
		c.blocks = append(c.blocks, Block{Kind: kind, Level: depth})
	}
}

// inlineText joins the raw source lines of a leaf block with spaces.
func (c *blockCollector) inlineText(node ast.Node) string {
	lines := node.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		line := strings.TrimSpace(string(segment.Value(c.source)))
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

// Markdown serializes the document; empty paragraphs are dropped.
func (d *Document) Markdown() string {
	var builder strings.Builder
	ordinal := map[int]int{}
	previous := Kind(-1)
	for i, block := range d.blocks {
		if block.Kind == Paragraph && strings.TrimSpace(block.Text) == "" {
			continue
		}
		if block.Kind != OrderedItem && block.Kind != BulletItem {
			ordinal = map[int]int{}
		}
		if builder.Len() > 0 {
			builder.WriteString(separator(previous, block.Kind))
		}
		switch block.Kind {
		case Heading:
			level := block.Level
			if level < 1 || level > 6 {
				level = 1
			}
			builder.WriteString(strings.Repeat("#", level) + " " + block.Text)
		case BulletItem:
			builder.WriteString(strings.Repeat("  ", block.Level) + "- " + block.Text)
		case OrderedItem:
			ordinal[block.Level]++
			for level := range ordinal {
				if level > block.Level {
					delete(ordinal, level)
				}
			}
			builder.WriteString(fmt.Sprintf("%s%d. %s", strings.Repeat("   ", block.Level), ordinal[block.Level], block.Text))
		case Quote:
			if previous == Quote {
				builder.WriteString(">\n")
			}
			builder.WriteString("> " + block.Text)
		case CodeBlock:
			if previous != CodeBlock {
				builder.WriteString("```\n")
			}
			builder.WriteString(block.Text)
			if i+1 >= len(d.blocks) || d.blocks[i+1].Kind != CodeBlock {
				builder.WriteString("\n```")
			}
		case Rule:
			builder.WriteString("---")
		default:
			builder.WriteString(block.Text)
		}
		previous = block.Kind
	}
	if builder.Len() == 0 {
		return ""
	}
	builder.WriteString("\n")
	return builder.String()
}

// separator returns the text placed between two serialized blocks.
func separator(previous Kind, next Kind) string {
	switch {
	case previous == next && (next == BulletItem || next == OrderedItem || next == Quote || next == CodeBlock):
		return "\n"
	case (previous == BulletItem || previous == OrderedItem) && (next == BulletItem || next == OrderedItem):
		return "\n"
	default:
		return "\n\n"
	}
}
