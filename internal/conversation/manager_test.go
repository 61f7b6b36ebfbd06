package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memArchive struct {
	mu     sync.Mutex
	saved  []Snapshot
	err    error
	onSave func(Snapshot) // runs before the snapshot is stored
}

func (a *memArchive) Save(_ context.Context, snap Snapshot) error {
	if a.onSave != nil {
		a.onSave(snap)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.saved = append(a.saved, snap)
	return nil
}

func TestManager_CreateGetEnd(t *testing.T) {
	arch := &memArchive{}
	m := NewManager(DefaultOptions(), nil, arch, time.Hour, nil)

	c := m.Create()
	c.AppendTurn(SpeakerUser, "hello")

	got, err := m.Get(c.ID())
	if err != nil || got != c {
		t.Fatalf("Get: %v", err)
	}

	snap, err := m.End(context.Background(), c.ID())
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if len(snap.Turns) != 1 || snap.ID != c.ID() {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if len(arch.saved) != 1 {
		t.Errorf("expected 1 archived snapshot, got %d", len(arch.saved))
	}
	if _, err := m.Get(c.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after End, got %v", err)
	}
}

func TestManager_EndKeepsConversationOnArchiveError(t *testing.T) {
	m := NewManager(DefaultOptions(), nil, &memArchive{err: errors.New("disk full")}, time.Hour, nil)
	c := m.Create()

	if _, err := m.End(context.Background(), c.ID()); err == nil {
		t.Fatal("expected archive error")
	}
	if m.Len() != 1 {
		t.Error("conversation should stay live when archiving fails")
	}
}

func TestManager_EndRefusesTurnsWhileArchiving(t *testing.T) {
	arch := &memArchive{}
	m := NewManager(DefaultOptions(), nil, arch, time.Hour, nil)
	c := m.Create()
	c.AppendTurn(SpeakerUser, "first")

	var lateErr error
	arch.onSave = func(Snapshot) {
		_, lateErr = c.Record(context.Background(), SpeakerUser, "second")
	}

	snap, err := m.End(context.Background(), c.ID())
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if !errors.Is(lateErr, ErrClosed) {
		t.Errorf("expected ErrClosed for a turn recorded during archiving, got %v", lateErr)
	}
	if len(snap.Turns) != 1 || len(arch.saved[0].Turns) != 1 {
		t.Errorf("expected 1 archived turn, got %d", len(arch.saved[0].Turns))
	}
	if c.Len() != 1 {
		t.Errorf("closed conversation accepted a turn: %d turns", c.Len())
	}
}

func TestManager_EndReopensOnArchiveError(t *testing.T) {
	m := NewManager(DefaultOptions(), nil, &memArchive{err: errors.New("disk full")}, time.Hour, nil)
	c := m.Create()

	if _, err := m.End(context.Background(), c.ID()); err == nil {
		t.Fatal("expected archive error")
	}
	if c.Closed() {
		t.Fatal("conversation still closed after a failed archive")
	}
	if _, err := c.AppendTurn(SpeakerUser, "retry later"); err != nil {
		t.Errorf("expected turns accepted again, got %v", err)
	}
}

func TestManager_SweepRechecksIdleness(t *testing.T) {
	arch := &memArchive{}
	m := NewManager(DefaultOptions(), nil, arch, 10*time.Minute, nil)
	c := m.Create()
	c.AppendTurn(SpeakerUser, "just arrived")

	cutoff := time.Now().Add(-10 * time.Minute)
	if _, err := m.end(context.Background(), c.ID(), cutoff); !errors.Is(err, errStillActive) {
		t.Fatalf("expected errStillActive, got %v", err)
	}
	if m.Len() != 1 || c.Closed() {
		t.Error("active conversation was closed by the sweep")
	}
	if len(arch.saved) != 0 {
		t.Errorf("expected nothing archived, got %d", len(arch.saved))
	}
}

func TestManager_EndAll(t *testing.T) {
	arch := &memArchive{}
	m := NewManager(DefaultOptions(), nil, arch, time.Hour, nil)
	for range 3 {
		m.Create().AppendTurn(SpeakerUser, "open")
	}

	if n := m.EndAll(context.Background()); n != 3 {
		t.Fatalf("expected 3 ended, got %d", n)
	}
	if m.Len() != 0 || len(arch.saved) != 3 {
		t.Errorf("expected all archived and none live, got live=%d archived=%d", m.Len(), len(arch.saved))
	}
}

func TestManager_SweepIdle(t *testing.T) {
	arch := &memArchive{}
	m := NewManager(DefaultOptions(), nil, arch, 10*time.Minute, nil)

	idle := m.Create()
	fresh := m.Create()
	fresh.AppendTurn(SpeakerUser, "still here")

	now := time.Now()
	m.now = func() time.Time { return now }
	idle.mu.Lock()
	idle.lastActive = now.Add(-11 * time.Minute)
	idle.mu.Unlock()

	if n := m.SweepIdle(context.Background()); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if _, err := m.Get(idle.ID()); !errors.Is(err, ErrNotFound) {
		t.Error("idle conversation still live")
	}
	if _, err := m.Get(fresh.ID()); err != nil {
		t.Error("fresh conversation was swept")
	}
	if len(arch.saved) != 1 || arch.saved[0].ID != idle.ID() {
		t.Errorf("expected the idle conversation archived, got %+v", arch.saved)
	}
}

func TestManager_StartSweeperRejectsBadSchedule(t *testing.T) {
	m := NewManager(DefaultOptions(), nil, nil, time.Minute, nil)
	if err := m.StartSweeper(context.Background(), "not a schedule"); err == nil {
		t.Fatal("expected schedule error")
	}
	if err := m.StartSweeper(context.Background(), "@every 1m"); err != nil {
		t.Fatalf("StartSweeper: %v", err)
	}
	m.Stop()
}
