package transcript

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/websurfer/internal/tracing"
	"github.com/harun/websurfer/pkg/agent"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const fileExt = ".jsonl"

// Entry is one line of a transcript file
type Entry struct {
	Key       string        `json:"key"`
	Timestamp time.Time     `json:"timestamp"`
	Message   agent.Message `json:"message"`
}

// Store reads and writes transcripts under a directory
type Store struct {
	dir        string
	writeLocks map[string]*sync.Mutex
	locksMu    sync.Mutex
	now        func() time.Time
}

// New creates a Store rooted at dir, creating it when missing
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("transcript directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	return &Store{
		dir:        dir,
		writeLocks: make(map[string]*sync.Mutex),
		now:        time.Now,
	}, nil
}

// Dir returns the directory transcripts are stored in
func (s *Store) Dir() string {
	return s.dir
}

// ValidateKey rejects keys that could escape the store directory
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("transcript key cannot be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("transcript key cannot contain '..'")
	}
	if strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("transcript key cannot contain path separators")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("transcript key cannot contain null bytes")
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

func (s *Store) lockFor(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	if lock, ok := s.writeLocks[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.writeLocks[key] = lock
	return lock
}

// Append writes messages to the end of the transcript for key
func (s *Store) Append(ctx context.Context, key string, messages ...agent.Message) error {
	ctx, span := tracing.StartSpan(ctx, "websurfer.transcript", "transcript.append",
		attribute.String("transcript.key", key),
		attribute.Int("transcript.messages", len(messages)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("transcript", key).Logger()

	if err := ValidateKey(key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	var buf []byte
	for _, msg := range messages {
		if msg.Role == "" {
			return fmt.Errorf("message role cannot be empty")
		}
		data, err := json.Marshal(Entry{Key: key, Timestamp: s.now(), Message: msg})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}

	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	file, err := os.OpenFile(s.path(key), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(buf); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := file.Sync(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to sync transcript: %w", err)
	}

	logger.Debug().Int("messages", len(messages)).Msg("Transcript appended")
	return nil
}

// Load returns the messages stored for key in order. A missing transcript is empty.
func (s *Store) Load(ctx context.Context, key string) ([]agent.Message, error) {
	ctx, span := tracing.StartSpan(ctx, "websurfer.transcript", "transcript.load",
		attribute.String("transcript.key", key),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("transcript", key).Logger()

	if err := ValidateKey(key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	file, err := os.Open(s.path(key))
	if os.IsNotExist(err) {
		return []agent.Message{}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()

	messages := []agent.Message{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			logger.Warn().Int("line", lineNum).Err(err).Msg("Failed to parse line, skipping")
			continue
		}
		if entry.Message.Role == "" {
			logger.Warn().Int("line", lineNum).Msg("Invalid entry, skipping")
			continue
		}
		messages = append(messages, entry.Message)
	}
	if err := scanner.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	span.SetAttributes(attribute.Int("transcript.messages", len(messages)))
	return messages, nil
}

// Delete removes the transcript for key. Deleting a missing transcript is not an error.
func (s *Store) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}

	s.locksMu.Lock()
	delete(s.writeLocks, key)
	s.locksMu.Unlock()
	return nil
}

// List returns the stored keys in lexical order
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript directory: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(keys)
	return keys, nil
}
