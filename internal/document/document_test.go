package document

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pulpitwriter/pulpit/internal/testutil"
)

// requireBlocks fails with a diff when the document blocks differ from want.
func requireBlocks(testingHandle *testing.T, doc *Document, want []Block) {
	testingHandle.Helper()
	if diff := cmp.Diff(want, doc.Blocks()); diff != "" {
		testingHandle.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
}

// TestInsertTextSplitsBlocks verifies each newline opens a new block.
func TestInsertTextSplitsBlocks(testingHandle *testing.T) {
	// Arrange
	doc := New()

	// Act
	doc.InsertText("Hello\nworld")

	// Assert
	requireBlocks(testingHandle, doc, []Block{{Kind: Paragraph, Text: "Hello"}, {Kind: Paragraph, Text: "world"}})
	testutil.RequireEqual(testingHandle, doc.Cursor(), 11, "cursor after insert")
	testutil.RequireEqual(testingHandle, doc.PlainText(), "Hello\nworld", "plain text")
	testutil.RequireEqual(testingHandle, doc.Len(), len([]rune(doc.PlainText())), "length matches plain text")
}

// TestInsertTextContinuesList verifies a newline inside a list opens another item.
func TestInsertTextContinuesList(testingHandle *testing.T) {
	// Arrange
	doc := FromBlocks([]Block{{Kind: BulletItem, Text: "one"}})
	doc.SetCursor(3)

	// Act
	doc.InsertText("\ntwo")

	// Assert
	requireBlocks(testingHandle, doc, []Block{{Kind: BulletItem, Text: "one"}, {Kind: BulletItem, Text: "two"}})
	testutil.RequireEqual(testingHandle, doc.Cursor(), 7, "cursor after insert")
	testutil.RequireTrue(testingHandle, doc.InStructure(), "cursor should stay inside the list")
}

// TestInsertTextKeepsTail verifies text after the cursor follows the insertion.
func TestInsertTextKeepsTail(testingHandle *testing.T) {
	// Arrange
	doc := FromBlocks([]Block{{Kind: Paragraph, Text: "Amen"}})
	doc.SetCursor(2)

	// Act
	doc.InsertText("--")

	// Assert
	testutil.RequireEqual(testingHandle, doc.PlainText(), "Am--en", "text spliced at cursor")
	testutil.RequireEqual(testingHandle, doc.Cursor(), 4, "cursor after insert")
}

// TestDeleteRangeMergesEdgeBlocks verifies a cross-block delete joins the surviving edges.
func TestDeleteRangeMergesEdgeBlocks(testingHandle *testing.T) {
	// Arrange
	doc := FromBlocks([]Block{{Kind: Heading, Level: 2, Text: "abc"}, {Kind: Paragraph, Text: "def"}})
	doc.SetCursor(7)

	// Act
	err := doc.DeleteRange(2, 5)

	// Assert
	testutil.RequireNoError(testingHandle, err, "delete range")
	requireBlocks(testingHandle, doc, []Block{{Kind: Heading, Level: 2, Text: "abef"}})
	testutil.RequireEqual(testingHandle, doc.Cursor(), 4, "cursor mapped through delete")
}

// TestDeleteRangeRejectsOutOfRange verifies invalid ranges leave the document alone.
func TestDeleteRangeRejectsOutOfRange(testingHandle *testing.T) {
	// Arrange
	doc := FromBlocks([]Block{{Kind: Paragraph, Text: "short"}})

	// Act
	pastEnd := doc.DeleteRange(0, 100)
	reversed := doc.DeleteRange(3, 1)

	// Assert
	testutil.RequireErrorIs(testingHandle, pastEnd, ErrOutOfRange, "delete past the end")
	testutil.RequireErrorIs(testingHandle, reversed, ErrOutOfRange, "reversed range")
	testutil.RequireEqual(testingHandle, doc.PlainText(), "short", "document untouched")
}

// TestHighlightsFollowEdits verifies decorations are remapped through inserts and deletes.
func TestHighlightsFollowEdits(testingHandle *testing.T) {
	// Arrange
	doc := FromBlocks([]Block{{Kind: Paragraph, Text: "abcdef"}})
	doc.SetHighlight(3, 6)

	// Act
	doc.InsertText("xy")
	afterInsert := doc.Highlights()
	testutil.RequireNoError(testingHandle, doc.DeleteRange(0, 2), "delete prefix")
	afterPrefix := doc.Highlights()
	testutil.RequireNoError(testingHandle, doc.DeleteRange(2, 4), "delete overlapping")
	afterOverlap := doc.Highlights()
	doc.ClearHighlight(2, 4)

	// Assert
	testutil.RequireEqual(testingHandle, afterInsert, []Range{{From: 5, To: 8}}, "highlight shifted by insert")
	testutil.RequireEqual(testingHandle, afterPrefix, []Range{{From: 3, To: 6}}, "highlight shifted back")
	testutil.RequireEqual(testingHandle, afterOverlap, []Range{{From: 2, To: 4}}, "highlight clipped")
	testutil.RequireEqual(testingHandle, len(doc.Highlights()), 0, "highlight cleared")
}

// TestSelectionNormalizesAndClamps verifies reversed and oversized selections are fixed up.
func TestSelectionNormalizesAndClamps(testingHandle *testing.T) {
	// Arrange
	doc := FromBlocks([]Block{{Kind: Paragraph, Text: "grace"}})

	// Act
	doc.Select(9, 2)

	// Assert
	from, to := doc.Selection()
	testutil.RequireEqual(testingHandle, from, 2, "selection start")
	testutil.RequireEqual(testingHandle, to, 5, "selection end clamped")
	testutil.RequireEqual(testingHandle, doc.TextRange(from, to), "ace", "selected text")
}

// TestTitlePrefersHeading verifies the title falls back to the first line and is capped.
func TestTitlePrefersHeading(testingHandle *testing.T) {
	// Arrange
	titled := FromBlocks([]Block{
		{Kind: Paragraph},
		{Kind: Paragraph, Text: "Opening words"},
		{Kind: Heading, Level: 1, Text: "Grace Abounds"},
	})
	untitled := FromBlocks([]Block{{Kind: Paragraph}, {Kind: Paragraph, Text: "  Opening words  "}})
	long := FromBlocks([]Block{{Kind: Paragraph, Text: strings.Repeat("w", 100)}})

	// Act & Assert
	testutil.RequireEqual(testingHandle, titled.Title(), "Grace Abounds", "heading title")
	testutil.RequireEqual(testingHandle, untitled.Title(), "Opening words", "first line title")
	testutil.RequireEqual(testingHandle, len([]rune(long.Title())), 80, "title capped")
}

// TestExitStructureDropsEmptyItem verifies an empty item turns into the paragraph.
func TestExitStructureDropsEmptyItem(testingHandle *testing.T) {
	// Arrange
	doc := FromBlocks([]Block{{Kind: BulletItem, Text: "a"}, {Kind: BulletItem}})
	doc.SetCursor(2)
	testutil.RequireTrue(testingHandle, doc.InStructure(), "cursor starts in list")

	// Act
	doc.ExitStructure()

	// Assert
	requireBlocks(testingHandle, doc, []Block{{Kind: BulletItem, Text: "a"}, {Kind: Paragraph}})
	testutil.RequireEqual(testingHandle, doc.Cursor(), doc.Len(), "cursor at end")
	testutil.RequireTrue(testingHandle, !doc.InStructure(), "cursor left the list")
}

// TestExitStructureOpensParagraphAtCursor verifies the new paragraph sits before later blocks.
func TestExitStructureOpensParagraphAtCursor(testingHandle *testing.T) {
	// Arrange
	doc := FromBlocks([]Block{{Kind: Quote, Text: "q"}, {Kind: Paragraph, Text: "after"}})
	doc.SetCursor(1)

	// Act
	doc.ExitStructure()

	// Assert
	requireBlocks(testingHandle, doc, []Block{{Kind: Quote, Text: "q"}, {Kind: Paragraph}, {Kind: Paragraph, Text: "after"}})
	testutil.RequireEqual(testingHandle, doc.Cursor(), 2, "cursor in fresh paragraph")
	testutil.RequireTrue(testingHandle, !doc.InStructure(), "cursor left the quote")
}

// TestExitStructureSplitsItemAtCursor verifies text after the cursor stays in the structure.
func TestExitStructureSplitsItemAtCursor(testingHandle *testing.T) {
	// Arrange
	doc := FromBlocks([]Block{{Kind: BulletItem, Level: 1, Text: "abcd"}})
	doc.SetCursor(2)
	doc.SetHighlight(3, 4)

	// Act
	doc.ExitStructure()

	// Assert
	requireBlocks(testingHandle, doc, []Block{
		{Kind: BulletItem, Level: 1, Text: "ab"},
		{Kind: Paragraph},
		{Kind: BulletItem, Level: 1, Text: "cd"},
	})
	testutil.RequireEqual(testingHandle, doc.Cursor(), 3, "cursor in fresh paragraph")
	testutil.RequireEqual(testingHandle, doc.Highlights(), []Range{{From: 5, To: 6}}, "highlight follows its text")
	testutil.RequireEqual(testingHandle, doc.TextRange(5, 6), "d", "highlighted text unchanged")
}

// TestExitStructureAtItemStart verifies the paragraph opens before a non-empty item.
func TestExitStructureAtItemStart(testingHandle *testing.T) {
	// Arrange
	doc := FromBlocks([]Block{{Kind: Quote, Text: "q"}})

	// Act
	doc.ExitStructure()

	// Assert
	requireBlocks(testingHandle, doc, []Block{{Kind: Paragraph}, {Kind: Quote, Text: "q"}})
	testutil.RequireEqual(testingHandle, doc.Cursor(), 0, "cursor in fresh paragraph")
}

// TestExitStructureOutsideStructureIsNoop verifies paragraphs are left alone.
func TestExitStructureOutsideStructureIsNoop(testingHandle *testing.T) {
	// Arrange
	doc := FromBlocks([]Block{{Kind: Paragraph, Text: "plain"}, {Kind: Paragraph, Text: "tail"}})
	doc.SetCursor(3)

	// Act
	doc.ExitStructure()

	// Assert
	requireBlocks(testingHandle, doc, []Block{{Kind: Paragraph, Text: "plain"}, {Kind: Paragraph, Text: "tail"}})
	testutil.RequireEqual(testingHandle, doc.Cursor(), 3, "cursor unchanged")
}
