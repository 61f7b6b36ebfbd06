package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	robfigcron "github.com/robfig/cron/v3"

	"github.com/crystaldolphin/chatkeeper/internal/observability"
)

var ErrNotFound = errors.New("conversation not found")

// Archiver persists ended conversations.
type Archiver interface {
	Save(ctx context.Context, snap Snapshot) error
}

// Manager owns the live conversations of a process. It only guards its map;
// each Conversation synchronizes itself.
type Manager struct {
	opts        Options
	summarizer  Summarizer
	archive     Archiver
	metrics     *observability.Metrics
	idleTimeout time.Duration
	now         func() time.Time

	mu    sync.RWMutex
	convs map[string]*Conversation

	cron *robfigcron.Cron
}

// NewManager returns an empty Manager. archive and metrics may be nil; an
// idleTimeout <= 0 disables the idle sweep.
func NewManager(opts Options, summarizer Summarizer, archive Archiver, idleTimeout time.Duration, metrics *observability.Metrics) *Manager {
	return &Manager{
		opts:        opts,
		summarizer:  summarizer,
		archive:     archive,
		metrics:     metrics,
		idleTimeout: idleTimeout,
		now:         time.Now,
		convs:       make(map[string]*Conversation),
	}
}

// Create starts a new conversation with a fresh ID.
func (m *Manager) Create() *Conversation {
	c := NewConversation(uuid.NewString(), m.opts, m.summarizer, m.metrics)

	m.mu.Lock()
	m.convs[c.ID()] = c
	n := len(m.convs)
	m.mu.Unlock()

	m.metrics.SetActiveConversations(n)
	slog.Debug("conversation created", "conversation", c.ID())
	return c
}

func (m *Manager) Get(id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Len returns the number of live conversations.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.convs)
}

// End archives the conversation and forgets it. The conversation refuses new
// turns from the moment its snapshot is taken; if archiving fails it is
// reopened and stays live.
func (m *Manager) End(ctx context.Context, id string) (Snapshot, error) {
	return m.end(ctx, id, time.Time{})
}

func (m *Manager) end(ctx context.Context, id string, idleBefore time.Time) (Snapshot, error) {
	c, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	snap, err := c.close(idleBefore)
	if err != nil {
		return Snapshot{}, err
	}
	if m.archive != nil {
		if err := m.archive.Save(ctx, snap); err != nil {
			c.reopen()
			return Snapshot{}, fmt.Errorf("archive conversation %s: %w", id, err)
		}
	}

	m.mu.Lock()
	delete(m.convs, id)
	n := len(m.convs)
	m.mu.Unlock()

	m.metrics.SetActiveConversations(n)
	slog.Info("conversation ended", "conversation", id, "turns", len(snap.Turns))
	return snap, nil
}

// SweepIdle ends every conversation idle for longer than the idle timeout and
// returns how many were ended. Idleness is checked again when the
// conversation is closed, so one that just received a turn is kept.
func (m *Manager) SweepIdle(ctx context.Context) int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.RLock()
	var idle []string
	for id, c := range m.convs {
		if c.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	ended := 0
	for _, id := range idle {
		if _, err := m.end(ctx, id, cutoff); err != nil {
			if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrClosed) && !errors.Is(err, errStillActive) {
				slog.Warn("idle sweep: archive failed", "conversation", id, "err", err)
			}
			continue
		}
		ended++
	}
	if ended > 0 {
		slog.Info("idle sweep done", "ended", ended)
	}
	return ended
}

// EndAll archives every live conversation, e.g. at shutdown, and returns how
// many were ended. Conversations whose archive write fails stay live.
func (m *Manager) EndAll(ctx context.Context) int {
	m.mu.RLock()
	ids := make([]string, 0, len(m.convs))
	for id := range m.convs {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	ended := 0
	for _, id := range ids {
		if _, err := m.End(ctx, id); err != nil {
			if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrClosed) {
				slog.Warn("archive at shutdown failed", "conversation", id, "err", err)
			}
			continue
		}
		ended++
	}
	return ended
}

// StartSweeper runs SweepIdle on schedule (a robfig/cron spec such as
// "@every 1m") until Stop is called.
func (m *Manager) StartSweeper(ctx context.Context, schedule string) error {
	c := robfigcron.New()
	if _, err := c.AddFunc(schedule, func() { m.SweepIdle(ctx) }); err != nil {
		return fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	m.cron = c
	c.Start()
	slog.Info("idle sweeper started", "schedule", schedule, "idle_timeout", m.idleTimeout)
	return nil
}

// Stop waits for a running sweep to finish and halts the scheduler.
func (m *Manager) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
}
