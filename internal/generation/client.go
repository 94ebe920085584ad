package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pulpitwriter/pulpit/internal/assist"
	"github.com/pulpitwriter/pulpit/internal/sse"
	"github.com/pulpitwriter/pulpit/internal/streamjson"
)

// defaultRequestTimeout bounds a generate request.
const defaultRequestTimeout = 30 * time.Second

// APIError represents an HTTP error from the generation server.
type APIError struct {
	// StatusCode is the HTTP status returned by the server.
	StatusCode int
	// Message is the server's error text or the trimmed body.
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("generation api error: status %d: %s", e.StatusCode, e.Message)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for every request.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to a generation Server. It implements assist.Generator and
// assist.Subscriber.
type Client struct {
	// baseURL points to the server root.
	baseURL string
	// httpClient executes requests; streams rely on context cancellation.
	httpClient *http.Client
	// requestTimeout bounds Generate.
	requestTimeout time.Duration
	// logger records stream problems.
	logger *zap.Logger
}

// NewClient constructs a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{},
		requestTimeout: defaultRequestTimeout,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Generate posts request to the server.
func (c *Client) Generate(ctx context.Context, request assist.Request) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal generate request: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+GeneratePath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send generate request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	var accepted GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return fmt.Errorf("decode generate response: %w", err)
	}
	if accepted.SessionID != request.SessionID {
		return fmt.Errorf("generate response: session %q does not match %q", accepted.SessionID, request.SessionID)
	}
	return nil
}

// Subscribe opens the session's event stream. It returns once the server has
// registered the subscription; events are delivered from a reader goroutine.
func (c *Client) Subscribe(ctx context.Context, sessionID string, deliver func(raw string)) (assist.Subscription, error) {
	if sessionID == "" {
		return nil, assist.ErrSessionIDRequired
	}
	streamCtx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+StreamPath+url.PathEscape(sessionID), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	httpReq.Header.Set("Accept", sse.ContentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}

	stream := &clientStream{
		sessionID: sessionID,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    c.logger.With(zap.String("session", sessionID)),
	}
	go stream.read(resp.Body, deliver)
	return stream, nil
}

// clientStream is an open SSE subscription.
type clientStream struct {
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
	closed    atomic.Bool
	logger    *zap.Logger
}

// Close stops delivery and aborts the stream without waiting for the reader.
func (s *clientStream) Close() error {
	s.closed.Store(true)
	s.cancel()
	return nil
}

// Done is closed when the reader goroutine exits.
func (s *clientStream) Done() <-chan struct{} {
	return s.done
}

// streamEndedMessage reports a stream that closed before a terminal token.
const streamEndedMessage = "stream ended unexpectedly"

func (s *clientStream) read(body io.ReadCloser, deliver func(raw string)) {
	defer close(s.done)
	defer s.cancel()
	defer body.Close()

	terminal := false
	defer func() {
		if terminal || s.closed.Load() {
			return
		}
		s.logger.Warn("stream ended without a terminal token")
		deliver(assist.Encode(assist.Failure(streamEndedMessage)))
	}()

	reader := sse.NewReader(body)
	for {
		data, err := reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closed.Load() {
				s.logger.Debug("stream read ended", zap.Error(err))
			}
			return
		}
		if data == "" {
			continue
		}
		event, err := streamjson.Decode([]byte(data))
		if err != nil {
			s.logger.Warn("discarding malformed stream event", zap.Error(err))
			continue
		}
		token, ok := event.(streamjson.TokenEvent)
		if !ok {
			continue
		}
		if token.SessionID != s.sessionID {
			s.logger.Debug("discarding event for another session", zap.String("event_session", token.SessionID))
			continue
		}
		if s.closed.Load() {
			return
		}
		terminal = assist.Decode(token.Token).Terminal()
		deliver(token.Token)
		if terminal {
			return
		}
	}
}

func readAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read error body: %w", err)
	}
	var decoded ErrorResponse
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &decoded) == nil && decoded.Error != "" {
		message = decoded.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}
