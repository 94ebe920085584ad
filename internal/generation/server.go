package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pulpitwriter/pulpit/internal/assist"
	"github.com/pulpitwriter/pulpit/internal/sse"
	"github.com/pulpitwriter/pulpit/internal/streamjson"
)

// Routes served by Server.
const (
	GeneratePath = "/v1/generate"
	StreamPath   = "/v1/stream/"
)

// defaultKeepAlive is the SSE comment interval.
const defaultKeepAlive = 15 * time.Second

// maxRequestBytes bounds a generate request body; it carries the whole draft.
const maxRequestBytes = 8 << 20

// streamBuffer is the per-connection event backlog.
const streamBuffer = 256

// GenerateResponse is the body of an accepted generate request.
type GenerateResponse struct {
	SessionID string `json:"sessionId"`
}

// ErrorResponse is the body of a rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithKeepAlive sets the SSE keep-alive interval.
func WithKeepAlive(interval time.Duration) ServerOption {
	return func(s *Server) {
		if interval > 0 {
			s.keepAlive = interval
		}
	}
}

// WithServerLogger sets the server logger.
func WithServerLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Server exposes a Generator and Subscriber over HTTP and server-sent events.
type Server struct {
	generator  assist.Generator
	subscriber assist.Subscriber
	keepAlive  time.Duration
	logger     *zap.Logger
}

// NewServer creates a server over generator and subscriber.
func NewServer(generator assist.Generator, subscriber assist.Subscriber, opts ...ServerOption) *Server {
	server := &Server{
		generator:  generator,
		subscriber: subscriber,
		keepAlive:  defaultKeepAlive,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	return server
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+GeneratePath, s.handleGenerate)
	mux.HandleFunc("GET "+StreamPath+"{sessionID}", s.handleStream)
	return mux
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var request assist.Request
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := decoder.Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("decode request: %v", err)})
		return
	}
	if err := request.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := s.generator.Generate(r.Context(), request); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Warn("generate rejected", zap.String("session", request.SessionID), zap.Error(err))
		writeJSON(w, status, ErrorResponse{Error: err.Error()})
		return
	}
	s.logger.Info("generation accepted",
		zap.String("session", request.SessionID),
		zap.String("kind", string(request.PromptKind)),
	)
	writeJSON(w, http.StatusAccepted, GenerateResponse{SessionID: request.SessionID})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "streaming unsupported"})
		return
	}
	ctx := r.Context()
	events := make(chan streamjson.TokenEvent, streamBuffer)
	done := make(chan struct{})
	defer close(done)

	seq := 0
	subscription, err := s.subscriber.Subscribe(ctx, sessionID, func(raw string) {
		event := streamjson.NewTokenEvent(sessionID, seq, raw)
		seq++
		select {
		case events <- event:
		case <-done:
		}
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	defer subscription.Close()

	header := w.Header()
	header.Set("Content-Type", sse.ContentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := s.logger.With(zap.String("session", sessionID))
	logger.Debug("stream opened")
	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("stream closed by client")
			return
		case <-ticker.C:
			if err := sse.WriteComment(w, "keep-alive"); err != nil {
				return
			}
			flusher.Flush()
		case event := <-events:
			if err := writeEvent(w, event); err != nil {
				logger.Debug("write stream event", zap.Error(err))
				return
			}
			flusher.Flush()
			if assist.Decode(event.Token).Terminal() {
				logger.Debug("stream finished", zap.Int("events", event.Seq+1))
				return
			}
		}
	}
}

func writeEvent(w io.Writer, event streamjson.TokenEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal token event: %w", err)
	}
	return sse.WriteEvent(w, data)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
