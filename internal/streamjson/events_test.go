package streamjson

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/pulpitwriter/pulpit/internal/testutil"
)

// TestWriterReaderSequence verifies every event type survives a write and read.
func TestWriterReaderSequence(testingHandle *testing.T) {
	// Arrange
	var buffer bytes.Buffer
	writer := NewWriter(&buffer)
	testutil.RequireNoError(testingHandle, writer.Write(NewSessionEvent("s-1", "continue", "lorem", "lorem-1")), "write session")
	testutil.RequireNoError(testingHandle, writer.Write(NewTokenEvent("s-1", 0, "Grace ")), "write token")
	testutil.RequireNoError(testingHandle, writer.Write(NewTokenEvent("s-1", 1, "[DONE]")), "write done")
	testutil.RequireNoError(testingHandle, writer.Write(ResultEvent{Type: TypeResult, Subtype: ResultSuccess, SessionID: "s-1", NumTokens: 1}), "write result")

	// Act
	reader := NewReader(&buffer)
	var events []any
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		testutil.RequireNoError(testingHandle, err, "read event")
		events = append(events, event)
	}

	// Assert
	testutil.RequireEqual(testingHandle, len(events), 4, "event count")
	session, ok := events[0].(SessionEvent)
	testutil.RequireTrue(testingHandle, ok, "first event is a session event")
	testutil.RequireEqual(testingHandle, session.PromptKind, "continue", "prompt kind")
	testutil.RequireTrue(testingHandle, session.UUID != "", "session event has a uuid")
	testutil.RequireEqual(testingHandle, events[1], NewTokenEvent("s-1", 0, "Grace "), "first token")
	testutil.RequireEqual(testingHandle, events[2], NewTokenEvent("s-1", 1, "[DONE]"), "sentinel token kept raw")
	result, ok := events[3].(ResultEvent)
	testutil.RequireTrue(testingHandle, ok, "last event is a result")
	testutil.RequireEqual(testingHandle, result.Subtype, ResultSuccess, "result subtype")
}

// TestReaderSkipsBlankLinesAndReportsUnknown verifies blank lines are skipped and unknown types name their line.
func TestReaderSkipsBlankLinesAndReportsUnknown(testingHandle *testing.T) {
	// Arrange
	input := "\n" + `{"type":"token","session_id":"s","seq":0,"token":"a"}` + "\n\n" + `{"type":"mystery"}` + "\n"
	reader := NewReader(strings.NewReader(input))

	// Act
	first, err := reader.Next()

	// Assert
	testutil.RequireNoError(testingHandle, err, "first event")
	testutil.RequireEqual(testingHandle, first, NewTokenEvent("s", 0, "a"), "token after blank line")

	_, err = reader.Next()
	testutil.RequireErrorIs(testingHandle, err, ErrUnknownEvent, "unknown type")
	testutil.RequireStringContains(testingHandle, err.Error(), "line 4", "error names the line")
}

// TestDecodeRejectsMalformedJSON verifies invalid JSON is reported.
func TestDecodeRejectsMalformedJSON(testingHandle *testing.T) {
	// Act
	_, err := Decode([]byte("{not json"))

	// Assert
	if err == nil {
		testingHandle.Fatalf("expected decode error")
	}
}
