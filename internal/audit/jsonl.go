package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const maxEntryBytes = 4 * 1024 * 1024

// JSONLLogger appends one JSON object per line to a file.
type JSONLLogger struct {
	path string
	mu   sync.Mutex
}

// NewJSONLLogger creates a logger writing to path, creating parent
// directories as needed.
func NewJSONLLogger(path string) (*JSONLLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	return &JSONLLogger{path: path}, nil
}

func (l *JSONLLogger) LogRequest(_ context.Context, rec RequestRecord) error {
	return l.append(KindRequest, rec.SessionID, rec.Time, rec)
}

func (l *JSONLLogger) LogResponse(_ context.Context, rec ResponseRecord) error {
	return l.append(KindResponse, rec.SessionID, rec.Time, rec)
}

func (l *JSONLLogger) LogCommand(_ context.Context, rec CommandRecord) error {
	return l.append(KindCommand, rec.SessionID, rec.Time, rec)
}

func (l *JSONLLogger) append(kind EntryKind, sessionID string, ts time.Time, rec interface{}) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", kind, err)
	}
	line, err := json.Marshal(Entry{Kind: kind, SessionID: sessionID, Time: ts.UTC(), Payload: string(payload)})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// Entries reads back entries for sessionID, or all entries when it is empty.
func (l *JSONLLogger) Entries(_ context.Context, sessionID string) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxEntryBytes)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		if sessionID == "" || e.SessionID == sessionID {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	return entries, nil
}
