package store

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pulpitwriter/pulpit/internal/streamjson"
)

// documentExt is the file extension for saved sermons.
const documentExt = ".md"

var (
	// ErrNameRequired indicates an empty document name.
	ErrNameRequired = errors.New("document name required")
	// ErrSessionIDRequired indicates an empty transcript session id.
	ErrSessionIDRequired = errors.New("session id required")
	// ErrInvalidName indicates a document name that escapes the store.
	ErrInvalidName = errors.New("invalid document name")
)

// Store manages documents and generation transcripts under ~/.pulpit.
type Store struct {
	// BaseDir is the root for all persisted data.
	BaseDir string
}

// DocumentInfo describes a saved document.
type DocumentInfo struct {
	// Name is the document name without extension.
	Name string
	// ModTime is the last save time.
	ModTime time.Time
}

// NewStore constructs a Store using the default base directory.
func NewStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	return &Store{BaseDir: filepath.Join(home, ".pulpit")}, nil
}

// ProjectHash returns a stable hash for the current workspace path.
func ProjectHash(path string) string {
	clean := filepath.Clean(path)
	sum := sha256.Sum256([]byte(clean))
	return hex.EncodeToString(sum[:8])
}

// DocumentPath returns the markdown path for a document name.
func (s *Store) DocumentPath(name string) (string, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), documentExt)
	if name == "" {
		return "", ErrNameRequired
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.BaseDir, "documents", name+documentExt), nil
}

// TranscriptPath returns the JSONL path for a generation session.
func (s *Store) TranscriptPath(sessionID string) string {
	return filepath.Join(s.BaseDir, "transcripts", sessionID+".jsonl")
}

// SaveDocument writes markdown atomically through a temp file and rename.
func (s *Store) SaveDocument(name string, markdown string) error {
	path, err := s.DocumentPath(name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create documents dir: %w", err)
	}
	temp, err := os.CreateTemp(dir, ".save-*")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tempPath := temp.Name()
	if _, err := temp.WriteString(markdown); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write document: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// LoadDocument reads a saved document's markdown.
func (s *Store) LoadDocument(name string) (string, error) {
	path, err := s.DocumentPath(name)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ListDocuments returns saved documents sorted by modification time desc.
func (s *Store) ListDocuments(limit int) ([]DocumentInfo, error) {
	dir := filepath.Join(s.BaseDir, "documents")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var list []DocumentInfo
	for _, item := range entries {
		if item.IsDir() || filepath.Ext(item.Name()) != documentExt {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue
		}
		list = append(list, DocumentInfo{
			Name:    strings.TrimSuffix(item.Name(), documentExt),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].ModTime.After(list[j].ModTime)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// AppendTranscript writes one stream-json event to a session transcript.
func (s *Store) AppendTranscript(sessionID string, event any) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	path := s.TranscriptPath(sessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer file.Close()

	if err := streamjson.NewWriter(file).Write(event); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

// LoadTranscript reads the events of a session transcript in order.
// Malformed lines are skipped so a partially written transcript still replays.
func (s *Store) LoadTranscript(sessionID string) ([]any, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}
	file, err := os.Open(s.TranscriptPath(sessionID))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var events []any
	scanner := bufio.NewScanner(file)
	// Full-content tokens carry the whole generation on one line.
	const maxEventSize = 10 * 1024 * 1024
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		event, err := streamjson.Decode([]byte(line))
		if err != nil {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return events, nil
}

// TranscriptTokens returns the raw token values of a transcript in sequence order.
func (s *Store) TranscriptTokens(sessionID string) ([]string, error) {
	events, err := s.LoadTranscript(sessionID)
	if err != nil {
		return nil, err
	}
	var tokens []streamjson.TokenEvent
	for _, event := range events {
		if token, ok := event.(streamjson.TokenEvent); ok {
			tokens = append(tokens, token)
		}
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Seq < tokens[j].Seq
	})
	raws := make([]string, 0, len(tokens))
	for _, token := range tokens {
		raws = append(raws, token.Token)
	}
	return raws, nil
}

// SaveLastDocument stores the last opened document name for a project hash.
func (s *Store) SaveLastDocument(projectHash string, name string) error {
	path := filepath.Join(s.BaseDir, "projects", projectHash, "last_document")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(name), 0o600); err != nil {
		return fmt.Errorf("write last document: %w", err)
	}
	return nil
}

// LoadLastDocument returns the last opened document name for a project hash.
func (s *Store) LoadLastDocument(projectHash string) (string, error) {
	path := filepath.Join(s.BaseDir, "projects", projectHash, "last_document")
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
