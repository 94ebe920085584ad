package assist_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/pulpitwriter/pulpit/internal/assist"
	"github.com/pulpitwriter/pulpit/internal/document"
	"github.com/pulpitwriter/pulpit/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// spySurface records the edits the engine makes to a real document.
type spySurface struct {
	*document.Document
	deletes  []assist.Range
	texts    []string
	markdown []string
	exits    int
}

func (s *spySurface) DeleteRange(from int, to int) error {
	s.deletes = append(s.deletes, assist.Range{From: from, To: to})
	return s.Document.DeleteRange(from, to)
}

func (s *spySurface) InsertText(text string) {
	s.texts = append(s.texts, text)
	s.Document.InsertText(text)
}

func (s *spySurface) InsertMarkdown(markdown string) error {
	s.markdown = append(s.markdown, markdown)
	return s.Document.InsertMarkdown(markdown)
}

func (s *spySurface) ExitStructure() {
	s.exits++
	s.Document.ExitStructure()
}

type fakeGenerator struct {
	mu       sync.Mutex
	requests []assist.Request
	err      error
}

func (g *fakeGenerator) Generate(_ context.Context, request assist.Request) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, request)
	return g.err
}

func (g *fakeGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type fakeSubscriber struct {
	mu       sync.Mutex
	delivers map[string]func(string)
	closed   int
	err      error
}

func (s *fakeSubscriber) Subscribe(_ context.Context, sessionID string, deliver func(string)) (assist.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.delivers == nil {
		s.delivers = map[string]func(string){}
	}
	s.delivers[sessionID] = deliver
	return &fakeSubscription{subscriber: s}, nil
}

func (s *fakeSubscriber) send(sessionID string, raws ...string) {
	s.mu.Lock()
	deliver := s.delivers[sessionID]
	s.mu.Unlock()
	for _, raw := range raws {
		deliver(raw)
	}
}

func (s *fakeSubscriber) closedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeSubscription struct {
	subscriber *fakeSubscriber
}

func (s *fakeSubscription) Close() error {
	s.subscriber.mu.Lock()
	defer s.subscriber.mu.Unlock()
	s.subscriber.closed++
	return nil
}

type harness struct {
	surface    *spySurface
	generator  *fakeGenerator
	subscriber *fakeSubscriber
	engine     *assist.Engine
	notices    []assist.Notice
}

func newHarness(doc *document.Document) *harness {
	h := &harness{
		surface:    &spySurface{Document: doc},
		generator:  &fakeGenerator{},
		subscriber: &fakeSubscriber{},
	}
	h.engine = assist.NewEngine(h.surface, h.generator, h.subscriber,
		assist.WithNotifier(assist.NotifierFunc(func(notice assist.Notice) {
			h.notices = append(h.notices, notice)
		})),
	)
	return h
}

func (h *harness) start(testingHandle *testing.T, kind assist.PromptKind) string {
	testingHandle.Helper()
	id, err := h.engine.Start(context.Background(), assist.Prompt{Kind: kind})
	testutil.RequireNoError(testingHandle, err, "start session")
	testutil.RequireTrue(testingHandle, id != "", "session id returned")
	return id
}

// introAndTail is a two-paragraph document with the cursor at the end of the first.
func introAndTail() *document.Document {
	doc := document.FromBlocks([]document.Block{
		{Kind: document.Paragraph, Text: "Intro"},
		{Kind: document.Paragraph, Text: "Tail"},
	})
	doc.SetCursor(5)
	return doc
}


// TestCompletionPrefersFullContent verifies declared full content replaces the streamed tokens.
func TestCompletionPrefersFullContent(testingHandle *testing.T) {
	// Arrange
	h := newHarness(document.New())
	id := h.start(testingHandle, assist.KindContinue)

	// Act
	h.subscriber.send(id, "Hello", " world", "[FULL]Hello, world!", "[DONE]")

	// Assert
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "Hello, world!", "full content wins")
	testutil.RequireTrue(testingHandle, h.engine.Dirty(), "completion marks dirty")
	testutil.RequireTrue(testingHandle, !h.engine.Active(), "session cleared")
	testutil.RequireEqual(testingHandle, h.subscriber.closedCount(), 1, "subscription closed")
	testutil.RequireEqual(testingHandle, len(h.notices), 1, "one notice")
	testutil.RequireEqual(testingHandle, h.notices[0].Kind, assist.NoticeCompleted, "completed notice")
}

// TestCompletionFallsBackToLocalTokens verifies the local accumulation is used without full content.
func TestCompletionFallsBackToLocalTokens(testingHandle *testing.T) {
	// Arrange
	h := newHarness(document.New())
	id := h.start(testingHandle, assist.KindContinue)

	// Act
	h.subscriber.send(id, "# Title\n\n", "Body text", "[DONE]")

	// Assert
	want := []document.Block{
		{Kind: document.Heading, Level: 1, Text: "Title"},
		{Kind: document.Paragraph, Text: "Body text"},
	}
	testutil.RequireEqual(testingHandle, h.surface.Blocks(), want, "local tokens rendered structurally")
	testutil.RequireEqual(testingHandle, h.engine.Snapshot(), assist.Snapshot{}, "state fully reset")
}

// TestStartSendsContext verifies the request carries the document context.
func TestStartSendsContext(testingHandle *testing.T) {
	// Arrange
	doc := document.Parse("# Grace\n\nSaved by grace through faith.\n")
	doc.Select(6, 11)
	h := newHarness(doc)

	// Act
	id, err := h.engine.Start(context.Background(), assist.Prompt{Kind: assist.KindCustom, Text: " make it warmer "})

	// Assert
	testutil.RequireNoError(testingHandle, err, "start custom")
	testutil.RequireEqual(testingHandle, h.generator.count(), 1, "one request")
	request := h.generator.requests[0]
	testutil.RequireEqual(testingHandle, request.SessionID, id, "request carries the session id")
	testutil.RequireEqual(testingHandle, request.CustomPromptText, "make it warmer", "prompt text trimmed")
	testutil.RequireEqual(testingHandle, request.DocumentTitle, "Grace", "title")
	testutil.RequireEqual(testingHandle, request.DocumentPlainText, "Grace\nSaved by grace through faith.", "plain text")
	testutil.RequireEqual(testingHandle, request.HighlightedText, "Saved", "highlighted text")
	h.engine.Stop()
}

// TestStartRejectsInvalidPrompts verifies malformed prompts never reach the generator.
func TestStartRejectsInvalidPrompts(testingHandle *testing.T) {
	// Arrange
	h := newHarness(document.New())

	// Act
	_, customErr := h.engine.Start(context.Background(), assist.Prompt{Kind: assist.KindCustom})
	_, inlineErr := h.engine.Start(context.Background(), assist.Prompt{Kind: assist.KindRewrite})
	_, appendErr := h.engine.StartInlineEdit(context.Background(), assist.Prompt{Kind: assist.KindContinue})
	_, selectionErr := h.engine.StartInlineEdit(context.Background(), assist.Prompt{Kind: assist.KindShorten})

	// Assert
	testutil.RequireErrorIs(testingHandle, customErr, assist.ErrPromptTextRequired, "custom without text")
	testutil.RequireErrorIs(testingHandle, inlineErr, assist.ErrInlineKind, "inline kind via Start")
	testutil.RequireErrorIs(testingHandle, appendErr, assist.ErrAppendKind, "append kind via StartInlineEdit")
	testutil.RequireErrorIs(testingHandle, selectionErr, assist.ErrEmptySelection, "inline edit without selection")
	testutil.RequireEqual(testingHandle, h.generator.count(), 0, "no requests issued")
}

// TestStopIsIdempotent verifies a second Stop changes nothing.
func TestStopIsIdempotent(testingHandle *testing.T) {
	// Arrange
	h := newHarness(document.New())
	id := h.start(testingHandle, assist.KindContinue)
	h.subscriber.send(id, "The ", "quick ", "fox")
	h.engine.Stop()
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "The quick fox", "cancel keeps local tokens")
	testutil.RequireTrue(testingHandle, h.engine.Dirty(), "cancel marks dirty")
	deletes := len(h.surface.deletes)
	inserts := len(h.surface.markdown)

	// Act
	h.engine.Stop()

	// Assert
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "The quick fox", "second stop leaves the document")
	testutil.RequireEqual(testingHandle, len(h.surface.deletes), deletes, "no further deletes")
	testutil.RequireEqual(testingHandle, len(h.surface.markdown), inserts, "no further inserts")
	testutil.RequireEqual(testingHandle, h.generator.count(), 1, "one request")
	testutil.RequireEqual(testingHandle, h.subscriber.closedCount(), 1, "subscription closed once")
	testutil.RequireEqual(testingHandle, h.notices[0].Kind, assist.NoticeCancelled, "cancelled notice")
}

// TestStopIgnoresFullContent verifies cancellation reconciles with local tokens only.
func TestStopIgnoresFullContent(testingHandle *testing.T) {
	// Arrange
	h := newHarness(document.New())
	id := h.start(testingHandle, assist.KindContinue)
	h.subscriber.send(id, "Partial", "[FULL]Partial and more")

	// Act
	h.engine.Stop()

	// Assert
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "Partial", "cancel uses local tokens only")
}

// TestConcurrentStartIsIgnored verifies a second Start while streaming is a no-op.
func TestConcurrentStartIsIgnored(testingHandle *testing.T) {
	// Arrange
	h := newHarness(document.New())
	first := h.start(testingHandle, assist.KindContinue)

	// Act
	second, err := h.engine.Start(context.Background(), assist.Prompt{Kind: assist.KindOutline})

	// Assert
	testutil.RequireNoError(testingHandle, err, "second start is not an error")
	testutil.RequireEqual(testingHandle, second, "", "second start returns no id")
	testutil.RequireEqual(testingHandle, h.engine.SessionID(), first, "first session kept")
	testutil.RequireEqual(testingHandle, h.generator.count(), 1, "no second request")
	h.engine.Stop()
}

// TestChunkBufferTracksTokensSinceRender verifies the chunk buffer resets on each paragraph break.
func TestChunkBufferTracksTokensSinceRender(testingHandle *testing.T) {
	// Arrange
	h := newHarness(document.New())
	id := h.start(testingHandle, assist.KindContinue)

	// Act
	h.subscriber.send(id, "Blessed are", " the meek\n")
	pending := h.engine.Snapshot()
	h.subscriber.send(id, "\n")
	rendered := h.engine.Snapshot()
	h.subscriber.send(id, "for they")
	next := h.engine.Snapshot()

	// Assert
	testutil.RequireEqual(testingHandle, pending.Chunk, "Blessed are the meek\n", "chunk holds tokens since last render")
	assertOrdered(testingHandle, pending)
	testutil.RequireEqual(testingHandle, rendered.Chunk, "", "chunk cleared after render")
	testutil.RequireEqual(testingHandle, rendered.Local, "Blessed are the meek\n\n", "local keeps the paragraph")
	assertOrdered(testingHandle, rendered)
	testutil.RequireEqual(testingHandle, next.Chunk, "for they", "next chunk")
	testutil.RequireEqual(testingHandle, next.ChunkStart, rendered.ChunkStart, "chunk starts at the rendered insertion point")
	assertOrdered(testingHandle, next)
	h.engine.Stop()
}

func assertOrdered(testingHandle *testing.T, snapshot assist.Snapshot) {
	testingHandle.Helper()
	testutil.RequireTrue(testingHandle, snapshot.StreamStart <= snapshot.ChunkStart, "stream start precedes chunk start")
	testutil.RequireTrue(testingHandle, snapshot.ChunkStart <= snapshot.StreamEnd, "chunk start precedes stream end")
}

// TestReconcileReplacesTrackedRegionOnly verifies only the streamed span is deleted.
func TestReconcileReplacesTrackedRegionOnly(testingHandle *testing.T) {
	// Arrange
	prefix := strings.Repeat("a", 100)
	doc := document.FromBlocks([]document.Block{
		{Kind: document.Paragraph, Text: prefix},
		{Kind: document.Paragraph, Text: "Tail"},
	})
	doc.SetCursor(100)
	h := newHarness(doc)
	id := h.start(testingHandle, assist.KindContinue)
	h.subscriber.send(id, "Hello", " ", "world")
	snapshot := h.engine.Snapshot()
	testutil.RequireEqual(testingHandle, snapshot.StreamStart, 100, "stream start at insertion point")
	testutil.RequireEqual(testingHandle, snapshot.StreamEnd, 111, "stream end after tokens")

	// Act
	h.subscriber.send(id, "[FULL]Hello, world!", "[DONE]")

	// Assert
	testutil.RequireEqual(testingHandle, h.surface.deletes, []assist.Range{{From: 100, To: 111}}, "deleted exactly the streamed region")
	testutil.RequireEqual(testingHandle, h.surface.markdown, []string{"Hello, world!"}, "full content inserted structurally")
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), prefix+"Hello, world!\nTail", "surrounding text untouched")
}

// TestListChunkKeepsFollowingBlocks verifies a rendered list chunk leaves later blocks in place on completion.
func TestListChunkKeepsFollowingBlocks(testingHandle *testing.T) {
	// Arrange
	h := newHarness(introAndTail())
	id := h.start(testingHandle, assist.KindOutline)
	h.subscriber.send(id, "\n\n- a\n- b\n\n")
	testutil.RequireEqual(testingHandle, h.surface.exits, 1, "left the list after the chunk")
	testutil.RequireEqual(testingHandle, h.surface.Cursor(), 10, "cursor between the list and the tail")

	// Act
	h.subscriber.send(id, "After", "[DONE]")

	// Assert
	want := []document.Block{
		{Kind: document.Paragraph, Text: "Intro"},
		{Kind: document.BulletItem, Text: "a"},
		{Kind: document.BulletItem, Text: "b"},
		{Kind: document.Paragraph, Text: "After"},
		{Kind: document.Paragraph, Text: "Tail"},
	}
	testutil.RequireEqual(testingHandle, h.surface.Blocks(), want, "tail kept after the generated content")
	testutil.RequireEqual(testingHandle, h.surface.deletes, []assist.Range{{From: 5, To: 16}, {From: 5, To: 15}}, "chunk then stream region")
	testutil.RequireEqual(testingHandle, h.surface.Markdown(), "Intro\n\n- a\n- b\n\nAfter\n\nTail\n", "markdown round trip")
}

// TestListChunkKeepsFollowingBlocksOnStop verifies cancellation across a chunk boundary leaves later blocks in place.
func TestListChunkKeepsFollowingBlocksOnStop(testingHandle *testing.T) {
	// Arrange
	h := newHarness(introAndTail())
	id := h.start(testingHandle, assist.KindOutline)
	h.subscriber.send(id, "\n\n- a\n- b\n\n", "After")

	// Act
	h.engine.Stop()

	// Assert
	want := []document.Block{
		{Kind: document.Paragraph, Text: "Intro"},
		{Kind: document.BulletItem, Text: "a"},
		{Kind: document.BulletItem, Text: "b"},
		{Kind: document.Paragraph, Text: "After"},
		{Kind: document.Paragraph, Text: "Tail"},
	}
	testutil.RequireEqual(testingHandle, h.surface.Blocks(), want, "tail kept after cancel")
	testutil.RequireEqual(testingHandle, h.notices[0].Kind, assist.NoticeCancelled, "cancelled notice")
}

// TestQuoteChunkBeforeExistingBlocks verifies a quote chunk rendered mid-document keeps the blocks after it.
func TestQuoteChunkBeforeExistingBlocks(testingHandle *testing.T) {
	// Arrange
	h := newHarness(introAndTail())
	id := h.start(testingHandle, assist.KindContinue)

	// Act
	h.subscriber.send(id, "\n\n> q\n\n")
	afterChunk := h.surface.Blocks()
	h.subscriber.send(id, "After", "[DONE]")

	// Assert
	testutil.RequireEqual(testingHandle, afterChunk, []document.Block{
		{Kind: document.Paragraph, Text: "Intro"},
		{Kind: document.Quote, Text: "q"},
		{Kind: document.Paragraph},
		{Kind: document.Paragraph, Text: "Tail"},
	}, "empty paragraph opened before the tail")
	testutil.RequireEqual(testingHandle, h.surface.Blocks(), []document.Block{
		{Kind: document.Paragraph, Text: "Intro"},
		{Kind: document.Quote, Text: "q"},
		{Kind: document.Paragraph, Text: "After"},
		{Kind: document.Paragraph, Text: "Tail"},
	}, "quote, paragraph, tail")
	testutil.RequireEqual(testingHandle, h.surface.deletes, []assist.Range{{From: 5, To: 12}, {From: 5, To: 13}}, "chunk then stream region")
}

// TestCompletionKeepsSpaceAtJoin verifies spacing at the edges of generated text survives reconciliation.
func TestCompletionKeepsSpaceAtJoin(testingHandle *testing.T) {
	cases := []struct {
		name   string
		blocks []document.Block
		cursor int
		tokens []string
		want   string
	}{
		{
			name:   "leading space after existing text",
			blocks: []document.Block{{Kind: document.Paragraph, Text: "Grace abounds."}},
			cursor: 14,
			tokens: []string{" And more", "[DONE]"},
			want:   "Grace abounds. And more",
		},
		{
			name:   "leading space from full content",
			blocks: []document.Block{{Kind: document.Paragraph, Text: "Grace abounds."}},
			cursor: 14,
			tokens: []string{" And", " more", "[FULL] And more", "[DONE]"},
			want:   "Grace abounds. And more",
		},
		{
			name:   "trailing space before existing text",
			blocks: []document.Block{{Kind: document.Paragraph, Text: "Amen"}},
			cursor: 0,
			tokens: []string{"Grace ", "[DONE]"},
			want:   "Grace Amen",
		},
	}
	for _, tc := range cases {
		testingHandle.Run(tc.name, func(testingHandle *testing.T) {
			// Arrange
			doc := document.FromBlocks(tc.blocks)
			doc.SetCursor(tc.cursor)
			h := newHarness(doc)
			id := h.start(testingHandle, assist.KindContinue)

			// Act
			h.subscriber.send(id, tc.tokens...)

			// Assert
			testutil.RequireEqual(testingHandle, h.surface.PlainText(), tc.want, "joined text")
			testutil.RequireEqual(testingHandle, len(h.surface.Blocks()), 1, "merged into one paragraph")
		})
	}
}

// TestStopKeepsSpaceAtJoin verifies cancellation keeps the spacing of local tokens.
func TestStopKeepsSpaceAtJoin(testingHandle *testing.T) {
	// Arrange
	doc := document.FromBlocks([]document.Block{{Kind: document.Paragraph, Text: "Grace abounds."}})
	doc.SetCursor(14)
	h := newHarness(doc)
	id := h.start(testingHandle, assist.KindContinue)
	h.subscriber.send(id, " And", " more")

	// Act
	h.engine.Stop()

	// Assert
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "Grace abounds. And more", "joined text")
	testutil.RequireEqual(testingHandle, h.surface.deletes, []assist.Range{{From: 14, To: 23}}, "stream region replaced")
}

// TestErrorLeavesPartialContent verifies a failed stream keeps what was shown.
func TestErrorLeavesPartialContent(testingHandle *testing.T) {
	// Arrange
	h := newHarness(document.New())
	id := h.start(testingHandle, assist.KindContinue)

	// Act
	h.subscriber.send(id, "Some partial", "[ERROR]failed")

	// Assert
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "Some partial", "partial text kept")
	testutil.RequireEqual(testingHandle, len(h.surface.deletes), 0, "nothing deleted")
	testutil.RequireTrue(testingHandle, !h.engine.Active(), "session cleared")
	testutil.RequireTrue(testingHandle, !h.engine.Dirty(), "error does not mark dirty")
	testutil.RequireEqual(testingHandle, h.notices, []assist.Notice{{
		Kind:      assist.NoticeError,
		SessionID: id,
		Message:   "Something went wrong generating content: failed",
	}}, "error notice")
}

// TestEmptyGenerationIsNoop verifies an immediate completion leaves the document alone.
func TestEmptyGenerationIsNoop(testingHandle *testing.T) {
	// Arrange
	doc := document.FromBlocks([]document.Block{{Kind: document.Paragraph, Text: "Unchanged"}})
	h := newHarness(doc)
	id := h.start(testingHandle, assist.KindContinue)

	// Act
	h.subscriber.send(id, "[DONE]")

	// Assert
	testutil.RequireEqual(testingHandle, len(h.surface.deletes), 0, "nothing deleted")
	testutil.RequireEqual(testingHandle, len(h.surface.markdown), 0, "nothing inserted")
	testutil.RequireTrue(testingHandle, !h.engine.Dirty(), "not dirty")
	testutil.RequireTrue(testingHandle, !h.engine.Active(), "session cleared")
}

// TestFullContentWithoutTokensInsertsAtCursor verifies full content alone is inserted at the cursor.
func TestFullContentWithoutTokensInsertsAtCursor(testingHandle *testing.T) {
	// Arrange
	doc := document.FromBlocks([]document.Block{{Kind: document.Paragraph, Text: "Start. "}})
	doc.SetCursor(7)
	h := newHarness(doc)
	id := h.start(testingHandle, assist.KindContinue)

	// Act
	h.subscriber.send(id, "[FULL]Finish.", "[DONE]")

	// Assert
	testutil.RequireEqual(testingHandle, h.surface.deletes, []assist.Range{{From: 7, To: 7}}, "empty region at cursor")
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "Start. Finish.", "content inserted at cursor")
}

// TestChunkRenderExitsStructure verifies text after a rendered list is not nested in it.
func TestChunkRenderExitsStructure(testingHandle *testing.T) {
	// Arrange
	h := newHarness(document.New())
	id := h.start(testingHandle, assist.KindOutline)
	h.subscriber.send(id, "- one\n- two\n\n")
	testutil.RequireEqual(testingHandle, h.surface.exits, 1, "left the list after the chunk")
	testutil.RequireTrue(testingHandle, !h.surface.InStructure(), "cursor outside the list")

	// Act
	h.subscriber.send(id, "After", "[DONE]")

	// Assert
	want := []document.Block{
		{Kind: document.BulletItem, Text: "one"},
		{Kind: document.BulletItem, Text: "two"},
		{Kind: document.Paragraph, Text: "After"},
	}
	testutil.RequireEqual(testingHandle, h.surface.Blocks(), want, "list followed by paragraph")
}

// TestInlineEditDoesNotInsertLive verifies inline edits buffer tokens until completion.
func TestInlineEditDoesNotInsertLive(testingHandle *testing.T) {
	// Arrange
	doc := document.FromBlocks([]document.Block{{Kind: document.Paragraph, Text: "Keep this sentence here."}})
	doc.Select(5, 9)
	h := newHarness(doc)
	id, err := h.engine.StartInlineEdit(context.Background(), assist.Prompt{Kind: assist.KindRewrite})
	testutil.RequireNoError(testingHandle, err, "start inline edit")
	testutil.RequireEqual(testingHandle, h.surface.Highlights(), []document.Range{{From: 5, To: 9}}, "target highlighted")
	h.subscriber.send(id, "that", " one")
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "Keep this sentence here.", "tokens not inserted")
	testutil.RequireEqual(testingHandle, len(h.surface.texts), 0, "no literal inserts")
	testutil.RequireEqual(testingHandle, h.engine.Snapshot().Chunk, "that one", "tokens buffered")

	// Act
	h.subscriber.send(id, "[DONE]")

	// Assert
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "Keep that one sentence here.", "target replaced")
	testutil.RequireEqual(testingHandle, h.surface.deletes, []assist.Range{{From: 5, To: 9}}, "only the target deleted")
	testutil.RequireEqual(testingHandle, len(h.surface.Highlights()), 0, "highlight removed")
}

// TestInlineEditPrefersFullContent verifies full content replaces the target on completion.
func TestInlineEditPrefersFullContent(testingHandle *testing.T) {
	// Arrange
	doc := document.FromBlocks([]document.Block{{Kind: document.Paragraph, Text: "Keep this sentence here."}})
	doc.Select(5, 9)
	h := newHarness(doc)
	id, err := h.engine.StartInlineEdit(context.Background(), assist.Prompt{Kind: assist.KindRewrite})
	testutil.RequireNoError(testingHandle, err, "start inline edit")

	// Act
	h.subscriber.send(id, "tha", "[FULL]these", "[DONE]")

	// Assert
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "Keep these sentence here.", "full content replaces target")
}

// TestInlineEditCancelUsesLocalTokens verifies a stopped inline edit applies what arrived.
func TestInlineEditCancelUsesLocalTokens(testingHandle *testing.T) {
	// Arrange
	doc := document.FromBlocks([]document.Block{{Kind: document.Paragraph, Text: "Keep this sentence here."}})
	doc.Select(5, 9)
	h := newHarness(doc)
	id, err := h.engine.StartInlineEdit(context.Background(), assist.Prompt{Kind: assist.KindExpand})
	testutil.RequireNoError(testingHandle, err, "start inline edit")
	h.subscriber.send(id, "that")

	// Act
	h.engine.Stop()

	// Assert
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "Keep that sentence here.", "local tokens replace target")
	testutil.RequireEqual(testingHandle, len(h.surface.Highlights()), 0, "highlight removed")
}

// TestInlineEditErrorOnlyUnhighlights verifies a failed inline edit leaves the target text.
func TestInlineEditErrorOnlyUnhighlights(testingHandle *testing.T) {
	// Arrange
	doc := document.FromBlocks([]document.Block{{Kind: document.Paragraph, Text: "Keep this sentence here."}})
	doc.Select(5, 9)
	h := newHarness(doc)
	id, err := h.engine.StartInlineEdit(context.Background(), assist.Prompt{Kind: assist.KindShorten})
	testutil.RequireNoError(testingHandle, err, "start inline edit")

	// Act
	h.subscriber.send(id, "th", "[ERROR]boom")

	// Assert
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "Keep this sentence here.", "target untouched")
	testutil.RequireEqual(testingHandle, len(h.surface.Highlights()), 0, "highlight removed")
	testutil.RequireEqual(testingHandle, len(h.surface.deletes), 0, "nothing deleted")
}

// TestForeignAndLateTokensAreDropped verifies tokens for other or finished sessions are ignored.
func TestForeignAndLateTokensAreDropped(testingHandle *testing.T) {
	// Arrange
	h := newHarness(document.New())
	id := h.start(testingHandle, assist.KindContinue)

	// Act
	h.engine.Receive("someone-else", "intruder")
	foreign := h.surface.PlainText()
	h.subscriber.send(id, "Grace")
	h.engine.Stop()
	h.engine.Receive(id, " late")
	h.engine.Receive(id, "[DONE]")

	// Assert
	testutil.RequireEqual(testingHandle, foreign, "", "foreign token dropped")
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "Grace", "late tokens dropped")
	testutil.RequireEqual(testingHandle, len(h.notices), 1, "late done ignored")
}

// TestGenerateFailureClearsSession verifies a rejected request rolls the session back.
func TestGenerateFailureClearsSession(testingHandle *testing.T) {
	// Arrange
	doc := document.FromBlocks([]document.Block{{Kind: document.Paragraph, Text: "Keep this."}})
	doc.Select(0, 4)
	h := newHarness(doc)
	h.generator.err = errors.New("connection refused")

	// Act
	id, err := h.engine.StartInlineEdit(context.Background(), assist.Prompt{Kind: assist.KindRewrite})

	// Assert
	testutil.RequireErrorIs(testingHandle, err, assist.ErrInitiation, "initiation error")
	testutil.RequireEqual(testingHandle, id, "", "no session id")
	testutil.RequireTrue(testingHandle, !h.engine.Active(), "session cleared")
	testutil.RequireEqual(testingHandle, h.engine.SessionID(), "", "session id cleared")
	testutil.RequireEqual(testingHandle, h.subscriber.closedCount(), 1, "subscription closed")
	testutil.RequireEqual(testingHandle, len(h.surface.Highlights()), 0, "highlight removed")
	testutil.RequireEqual(testingHandle, h.surface.PlainText(), "Keep this.", "document untouched")
	testutil.RequireEqual(testingHandle, len(h.notices), 0, "no notice for initiation failure")

	h.generator.err = nil
	_, err = h.engine.StartInlineEdit(context.Background(), assist.Prompt{Kind: assist.KindRewrite})
	testutil.RequireNoError(testingHandle, err, "engine usable after failure")
	h.engine.Stop()
}

// TestSubscribeFailureClearsSession verifies no request is sent without a subscription.
func TestSubscribeFailureClearsSession(testingHandle *testing.T) {
	// Arrange
	h := newHarness(document.New())
	h.subscriber.err = errors.New("stream unavailable")

	// Act
	_, err := h.engine.Start(context.Background(), assist.Prompt{Kind: assist.KindContinue})

	// Assert
	testutil.RequireErrorIs(testingHandle, err, assist.ErrInitiation, "initiation error")
	testutil.RequireEqual(testingHandle, h.generator.count(), 0, "no request without a subscription")
	testutil.RequireTrue(testingHandle, !h.engine.Active(), "session cleared")
}

// TestMarkSavedClearsDirty verifies saving resets the dirty flag.
func TestMarkSavedClearsDirty(testingHandle *testing.T) {
	// Arrange
	h := newHarness(document.New())
	id := h.start(testingHandle, assist.KindContinue)
	h.subscriber.send(id, "Amen.", "[DONE]")
	testutil.RequireTrue(testingHandle, h.engine.Dirty(), "dirty after completion")

	// Act
	h.engine.MarkSaved()

	// Assert
	testutil.RequireTrue(testingHandle, !h.engine.Dirty(), "saved")
}

// TestConcurrentDeliveryAndStop verifies concurrent deliveries and Stop leave a consistent document.
func TestConcurrentDeliveryAndStop(testingHandle *testing.T) {
	// Arrange
	h := newHarness(document.New())
	id := h.start(testingHandle, assist.KindContinue)

	// Act
	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				h.engine.Receive(id, "x")
			}
		}()
	}
	h.engine.Stop()
	wg.Wait()

	// Assert
	text := h.surface.PlainText()
	testutil.RequireEqual(testingHandle, strings.Trim(text, "x"), "", "only streamed text in the document")
	testutil.RequireTrue(testingHandle, !h.engine.Active(), "session stopped")
}
