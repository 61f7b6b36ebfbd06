package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/crystaldolphin/chatkeeper/internal/observability"
)

// ErrClosed is returned for turns recorded after a conversation was ended.
var ErrClosed = errors.New("conversation is closed")

// Options bound a conversation's history.
type Options struct {
	MaxTurns       int // <= 0 disables the turn limit
	MaxChars       int // <= 0 disables the character budget
	SummarizeEvery int // K; <= 0 disables summarization
}

// DefaultOptions returns 20 turns, 4000 characters, a summary every 5 turns.
func DefaultOptions() Options {
	return Options{MaxTurns: 20, MaxChars: 4000, SummarizeEvery: 5}
}

// Conversation is an ordered, bounded history of turns.
//
// Append, truncate and summary replacement are serialized by mu. The LLM call
// made by MaybeSummarize runs outside the lock; at most one is in flight.
type Conversation struct {
	id         string
	opts       Options
	summarizer Summarizer
	metrics    *observability.Metrics

	mu           sync.Mutex
	turns        []Turn
	counter      int // turns appended since the last successful summary
	nextBoundary int // counter value that triggers the next summary attempt
	summarizing  bool
	closed       bool
	summaries    int
	createdAt    time.Time
	lastActive   time.Time
}

// NewConversation returns an empty conversation. summarizer and metrics may be nil.
func NewConversation(id string, opts Options, summarizer Summarizer, metrics *observability.Metrics) *Conversation {
	now := time.Now()
	return &Conversation{
		id:           id,
		opts:         opts,
		summarizer:   summarizer,
		metrics:      metrics,
		nextBoundary: opts.SummarizeEvery,
		createdAt:    now,
		lastActive:   now,
	}
}

func (c *Conversation) ID() string { return c.id }

// AppendTurn records a new turn and advances the summary cadence. It fails
// with ErrClosed once the conversation is being archived.
func (c *Conversation) AppendTurn(speaker Speaker, text string) (Turn, error) {
	t := NewTurn(speaker, text)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Turn{}, ErrClosed
	}
	c.turns = append(c.turns, t)
	c.counter++
	c.lastActive = t.Timestamp
	c.mu.Unlock()

	c.metrics.TurnRecorded(string(speaker))
	return t, nil
}

// VisibleHistory returns a copy of the current view of the conversation.
func (c *Conversation) VisibleHistory() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), c.turns...)
}

// Len returns the number of visible turns.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// LastActive returns the time of the most recent append.
func (c *Conversation) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Truncate applies the count and character bounds and returns how many turns
// were dropped.
func (c *Conversation) Truncate() int {
	c.mu.Lock()
	kept := Truncate(c.turns, c.opts.MaxTurns, c.opts.MaxChars)
	dropped := len(c.turns) - len(kept)
	if dropped > 0 {
		c.turns = append([]Turn(nil), kept...)
	}
	c.mu.Unlock()

	if dropped > 0 {
		slog.Debug("conversation truncated", "conversation", c.id, "dropped", dropped)
		c.metrics.TurnsDropped(dropped)
	}
	return dropped
}

// MaybeSummarize replaces the oldest run of SummarizeEvery visible turns with
// one summary turn once the cadence boundary is reached. It returns false with
// a nil error when nothing was due, another summary is already running, or the
// history changed underneath the call.
//
// On failure the history is left as it was, a *SummarizationError is returned
// and the boundary moves forward by SummarizeEvery so the run is retried later.
func (c *Conversation) MaybeSummarize(ctx context.Context) (bool, error) {
	k := c.opts.SummarizeEvery

	c.mu.Lock()
	if c.summarizer == nil || k <= 0 || c.summarizing || c.counter < c.nextBoundary {
		c.mu.Unlock()
		return false, nil
	}
	n := min(k, len(c.turns))
	if n < 2 {
		c.counter, c.nextBoundary = 0, k
		c.mu.Unlock()
		return false, nil
	}
	run := append([]Turn(nil), c.turns[:n]...)
	c.summarizing = true
	c.mu.Unlock()

	start := time.Now()
	summary, err := c.summarizer.Summarize(ctx, run)
	c.metrics.ObserveSummaryLatency(time.Since(start))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.summarizing = false

	if err != nil {
		var serr *SummarizationError
		if !errors.As(err, &serr) {
			serr = &SummarizationError{Turns: n, Err: err}
		}
		c.nextBoundary += k
		slog.Warn("summarization failed", "conversation", c.id, "turns", n, "retry_at", c.nextBoundary, "err", serr.Err)
		c.metrics.SummaryFailed()
		return false, serr
	}

	if c.closed || !c.startsWith(run) {
		slog.Debug("discarding stale summary", "conversation", c.id)
		return false, nil
	}

	rest := c.turns[n:]
	turns := make([]Turn, 0, len(rest)+1)
	turns = append(turns, summary)
	c.turns = append(turns, rest...)
	c.counter, c.nextBoundary = 0, k
	c.summaries++

	slog.Info("conversation summarized", "conversation", c.id, "replaced", n, "visible", len(c.turns))
	c.metrics.SummaryCreated()
	return true, nil
}

// startsWith reports whether the history still begins with run. Callers hold mu.
func (c *Conversation) startsWith(run []Turn) bool {
	if len(c.turns) < len(run) {
		return false
	}
	for i := range run {
		if c.turns[i].ID != run[i].ID {
			return false
		}
	}
	return true
}

// Record appends a turn, summarizes if due and truncates. ErrClosed means the
// turn was not recorded; any other error is a *SummarizationError and the turn
// was kept.
func (c *Conversation) Record(ctx context.Context, speaker Speaker, text string) (Turn, error) {
	t, err := c.AppendTurn(speaker, text)
	if err != nil {
		return Turn{}, err
	}
	_, err = c.MaybeSummarize(ctx)
	c.Truncate()
	return t, err
}

// RecentExchanges returns the last n user/assistant exchanges (2n turns).
func (c *Conversation) RecentExchanges(n int) []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 {
		return nil
	}
	start := max(len(c.turns)-2*n, 0)
	return append([]Turn(nil), c.turns[start:]...)
}

// WithinChars returns the newest turns whose combined length fits limit,
// always including the latest turn. The history is not modified.
func (c *Conversation) WithinChars(limit int) []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), Truncate(c.turns, 0, limit)...)
}

// Clear drops every turn and resets the summary cadence. It does nothing once
// the conversation is closed.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.turns = nil
	c.counter, c.nextBoundary = 0, c.opts.SummarizeEvery
	c.summaries = 0
}

// Snapshot is a point-in-time copy of a conversation for archiving.
type Snapshot struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Summaries int       `json:"summaries"`
	Turns     []Turn    `json:"turns"`
}

// Snapshot copies the conversation state.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Closed reports whether the conversation stopped accepting turns.
func (c *Conversation) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

var errStillActive = errors.New("conversation active since idle check")

// close stops accepting turns and returns the final snapshot. A non-zero
// idleBefore makes it fail with errStillActive if a turn arrived at or after
// that time.
func (c *Conversation) close(idleBefore time.Time) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Snapshot{}, ErrClosed
	}
	if !idleBefore.IsZero() && !c.lastActive.Before(idleBefore) {
		return Snapshot{}, errStillActive
	}
	c.closed = true
	return c.snapshotLocked(), nil
}

// reopen undoes close after a failed archive write.
func (c *Conversation) reopen() {
	c.mu.Lock()
	c.closed = false
	c.mu.Unlock()
}

func (c *Conversation) snapshotLocked() Snapshot {
	return Snapshot{
		ID:        c.id,
		CreatedAt: c.createdAt,
		UpdatedAt: c.lastActive,
		Summaries: c.summaries,
		Turns:     append([]Turn(nil), c.turns...),
	}
}
