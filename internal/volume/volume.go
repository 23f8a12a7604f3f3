// Package volume implements the VolumeManager of spec §4.8: the single
// source of truth for the output level. The PlaybackBackend's own
// volume stays pinned at 100; this package is the only thing that
// touches the system mixer sink.
package volume

import (
	"sync"

	"github.com/gritskevich/pi-sat/internal/logging"
)

// Sink is the system-level mixer setter. Implementations must be
// idempotent: setting the same level twice has no additional effect.
type Sink interface {
	SetLevel(level int) error
}

// State is an immutable snapshot of VolumeManager's bookkeeping,
// spec §3's VolumeState.
type State struct {
	Level        int
	Ducked       bool
	PreDuckLevel int
}

// Manager enforces MAX_VOLUME as a hard ceiling on every path: plain
// sets, step adjustments, and duck/restore cycles.
type Manager struct {
	mu        sync.Mutex
	sink      Sink
	maxVolume int
	step      int
	logger    logging.Logger

	level        int
	ducked       bool
	preDuckLevel int
}

// New constructs a Manager at a starting level (clamped to maxVolume).
func New(sink Sink, maxVolume, step, startLevel int, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	m := &Manager{sink: sink, maxVolume: maxVolume, step: step, logger: logger}
	m.level = clamp(startLevel, maxVolume)
	return m
}

func clamp(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

// SetLevel sets the master level, clamped to [0, MAX_VOLUME].
func (m *Manager) SetLevel(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLevelLocked(n)
}

func (m *Manager) setLevelLocked(n int) error {
	level := clamp(n, m.maxVolume)
	if err := m.sink.SetLevel(level); err != nil {
		return err
	}
	m.level = level
	return nil
}

// StepUp raises the level by VOLUME_STEP, clamped to MAX_VOLUME.
func (m *Manager) StepUp() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLevelLocked(m.level + m.step)
}

// StepDown lowers the level by VOLUME_STEP, clamped to 0.
func (m *Manager) StepDown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLevelLocked(m.level - m.step)
}

// Duck saves the current level and drops to toLevel. A second Duck
// call before Restore is a no-op: only the first pre-duck level is
// ever remembered.
func (m *Manager) Duck(toLevel int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ducked {
		return nil
	}
	m.preDuckLevel = m.level
	if err := m.setLevelLocked(toLevel); err != nil {
		return err
	}
	m.ducked = true
	return nil
}

// Restore returns to the pre-duck level, clamped to MAX_VOLUME, and
// clears the ducked flag. Idempotent: calling it twice in a row is
// identical to calling it once.
func (m *Manager) Restore() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ducked {
		return nil
	}
	if err := m.setLevelLocked(m.preDuckLevel); err != nil {
		m.logger.Warn("volume restore failed", "error", err)
		return err
	}
	m.ducked = false
	return nil
}

// State returns a snapshot of the current bookkeeping.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{Level: m.level, Ducked: m.ducked, PreDuckLevel: m.preDuckLevel}
}

// DuckToken is a scoped duck/restore handle (spec §9, "Duck-and-restore
// as a scoped action"): acquiring it ducks the volume, and Release
// restores it. Release is safe to call multiple times and safe to
// defer immediately after a successful DuckScope, so the "volume is
// always restored" invariant holds structurally on every exit path.
type DuckToken struct {
	mgr      *Manager
	released bool
	mu       sync.Mutex
}

// DuckScope ducks the volume to toLevel and returns a token whose
// Release restores it. Callers should `defer token.Release()`
// immediately after a successful call.
func (m *Manager) DuckScope(toLevel int) (*DuckToken, error) {
	if err := m.Duck(toLevel); err != nil {
		return nil, err
	}
	return &DuckToken{mgr: m}, nil
}

// Release restores the volume managed by this token. Calling it more
// than once has no additional effect.
func (t *DuckToken) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return nil
	}
	t.released = true
	return t.mgr.Restore()
}
