// Package archive persists ended conversations.
package archive

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/crystaldolphin/chatkeeper/internal/conversation"
)

var ErrNotFound = errors.New("archived conversation not found")

// Entry is the listing view of an archived conversation.
type Entry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     int       `json:"turns"`
}

// Store saves and loads conversation snapshots. Saving an ID twice replaces
// the earlier snapshot.
type Store interface {
	Save(ctx context.Context, snap conversation.Snapshot) error
	Load(ctx context.Context, id string) (conversation.Snapshot, error)
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// NewStore creates a postgres-backed store when databaseURL is set, otherwise
// JSONL files under dir.
func NewStore(ctx context.Context, dir, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewJSONLStore(dir)
	}
	return NewPostgresStore(ctx, databaseURL)
}
