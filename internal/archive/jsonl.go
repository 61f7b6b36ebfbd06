package archive

// File format, one file per conversation:
//
//	Line 1:  {"_type":"metadata","id":"…","created_at":"…","updated_at":"…","summaries":N}
//	Line 2+: one JSON turn object per line

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/crystaldolphin/chatkeeper/internal/conversation"
)

// JSONLStore keeps each snapshot in <dir>/<id>.jsonl.
type JSONLStore struct {
	dir string
}

type metadataLine struct {
	Type      string    `json:"_type"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Summaries int       `json:"summaries"`
	Turns     int       `json:"turns"`
}

// NewJSONLStore creates dir if necessary.
func NewJSONLStore(dir string) (*JSONLStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &JSONLStore{dir: dir}, nil
}

func (s *JSONLStore) path(id string) string {
	return filepath.Join(s.dir, safeFilename(id)+".jsonl")
}

func (s *JSONLStore) Save(_ context.Context, snap conversation.Snapshot) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	meta := metadataLine{
		Type:      "metadata",
		ID:        snap.ID,
		CreatedAt: snap.CreatedAt.UTC(),
		UpdatedAt: snap.UpdatedAt.UTC(),
		Summaries: snap.Summaries,
		Turns:     len(snap.Turns),
	}
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	for _, t := range snap.Turns {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
	}

	path := s.path(snap.ID)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write archive %s: %w", path, err)
	}
	return nil
}

func (s *JSONLStore) Load(_ context.Context, id string) (conversation.Snapshot, error) {
	f, err := os.Open(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return conversation.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return conversation.Snapshot{}, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var snap conversation.Snapshot
	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if first {
			first = false
			var meta metadataLine
			if err := json.Unmarshal(line, &meta); err != nil || meta.Type != "metadata" {
				return conversation.Snapshot{}, fmt.Errorf("archive %s: bad metadata line", id)
			}
			snap.ID, snap.CreatedAt, snap.UpdatedAt, snap.Summaries = meta.ID, meta.CreatedAt, meta.UpdatedAt, meta.Summaries
			continue
		}
		var t conversation.Turn
		if err := json.Unmarshal(line, &t); err != nil {
			return conversation.Snapshot{}, fmt.Errorf("archive %s: decode turn: %w", id, err)
		}
		snap.Turns = append(snap.Turns, t)
	}
	if err := scanner.Err(); err != nil {
		return conversation.Snapshot{}, fmt.Errorf("read archive %s: %w", id, err)
	}
	if first {
		return conversation.Snapshot{}, fmt.Errorf("archive %s: empty file", id)
	}
	return snap, nil
}

// List returns the archived conversations, most recently updated first.
func (s *JSONLStore) List(_ context.Context) ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}

	out := make([]Entry, 0, len(paths))
	for _, path := range paths {
		meta, ok := readMetadata(path)
		if !ok {
			continue
		}
		id := meta.ID
		if id == "" {
			name := strings.TrimSuffix(filepath.Base(path), ".jsonl")
			if id, err = url.PathUnescape(name); err != nil {
				id = name
			}
		}
		out = append(out, Entry{ID: id, CreatedAt: meta.CreatedAt, UpdatedAt: meta.UpdatedAt, Turns: meta.Turns})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func readMetadata(path string) (metadataLine, bool) {
	f, err := os.Open(path)
	if err != nil {
		return metadataLine{}, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return metadataLine{}, false
	}
	var meta metadataLine
	if json.Unmarshal(scanner.Bytes(), &meta) != nil || meta.Type != "metadata" {
		return metadataLine{}, false
	}
	return meta, true
}

func (s *JSONLStore) Close() error { return nil }

// safeFilename escapes an ID into a single path segment. Distinct IDs get
// distinct names.
func safeFilename(id string) string {
	return strings.ReplaceAll(url.PathEscape(id), ".", "%2E")
}
