package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"poolScout/internal/model"
)

// MatchRecord is the JSONL shape of one match.
type MatchRecord struct {
	Pool            model.PoolInfo `json:"pool"`
	SubscriptionIDs []string       `json:"subscription_ids"`
	VariableTypes   []string       `json:"variable_types"`
}

func newMatchRecord(m model.MatchResult) MatchRecord {
	types := make([]string, 0, len(m.Subscriptions))
	for _, sub := range m.Subscriptions {
		types = append(types, sub.VariableType)
	}
	return MatchRecord{Pool: m.Pool, SubscriptionIDs: m.SubscriptionIDs(), VariableTypes: types}
}

// JsonlSink appends matches and decode errors to JSONL files.
type JsonlSink struct {
	path       string
	errorsPath string
	mu         sync.Mutex
}

// NewJsonlSink writes matches to path. Decode errors are written to errorsPath
// when it is set.
func NewJsonlSink(path, errorsPath string) *JsonlSink {
	return &JsonlSink{path: path, errorsPath: errorsPath}
}

// PutMatches appends one line per match.
func (s *JsonlSink) PutMatches(_ context.Context, matches []model.MatchResult) error {
	records := make([]MatchRecord, 0, len(matches))
	for _, m := range matches {
		records = append(records, newMatchRecord(m))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLines(s.path, records)
}

// PutDecodeErrors appends decode failures. It is a no-op without an errors path.
func (s *JsonlSink) PutDecodeErrors(errs []model.DecodeError) error {
	if s.errorsPath == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLines(s.errorsPath, errs)
}

func appendLines[T any](path string, records []T) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// ReadCreationEvents loads decoded creation events from a JSONL file. Blank
// lines are skipped.
func ReadCreationEvents(path string) ([]model.CreationEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events file: %w", err)
	}
	defer file.Close()

	var events []model.CreationEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event model.CreationEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return nil, fmt.Errorf("parse event line %d: %w", lineNo, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}
	return events, nil
}
