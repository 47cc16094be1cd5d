package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Timer windows. The server clock is authoritative; every broadcast carries
// serverTime so clients can compute their offset.
const (
	// GracePeriod is how long a disconnected turn player may be away before
	// AI takes over.
	GracePeriod = 30 * time.Second
	// SelectionDebounce coalesces dice-selection hints into one activity
	// reset.
	SelectionDebounce = 2 * time.Second
)

// timerEntry tracks the live turn timer of one room.
type timerEntry struct {
	playerID       string
	startedAt      time.Time
	lastActivityAt time.Time
	timeout        time.Duration
	expire         *time.Timer
	grace          *time.Timer
	inGrace        bool
	graceStartedAt time.Time
	debounce       *time.Timer
}

func (e *timerEntry) syncPayload(now time.Time, grace time.Duration) map[string]any {
	expiresAt := e.lastActivityAt.Add(e.timeout)
	if e.inGrace {
		expiresAt = e.graceStartedAt.Add(grace)
	}
	return map[string]any{
		"playerId":        e.playerID,
		"turnStartedAt":   e.startedAt.UnixMilli(),
		"lastActivityAt":  e.lastActivityAt.UnixMilli(),
		"expiresAt":       expiresAt.UnixMilli(),
		"serverTime":      now.UnixMilli(),
		"isInGracePeriod": e.inGrace,
	}
}

// stop cancels every scheduled handle without touching the bookkeeping.
func (e *timerEntry) stop() {
	if e.expire != nil {
		e.expire.Stop()
		e.expire = nil
	}
	if e.grace != nil {
		e.grace.Stop()
		e.grace = nil
	}
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
}

// TurnTimerManager bounds human turns across all rooms. A timeout, or an
// expired disconnect grace period, hands the seat to the AI via the timeout
// callback. Timer callbacks race with user actions; the manager re-checks
// "still the same turn player" before acting, and the callback target does
// the same.
type TurnTimerManager struct {
	mu          sync.Mutex
	entries     map[string]*timerEntry
	broadcaster Broadcaster
	// onTimeout is invoked (outside the lock) when a turn times out or a
	// grace period expires. It must not block.
	onTimeout func(roomCode, playerID string)
	now       func() time.Time

	// Overridable in tests.
	gracePeriod time.Duration
	debounce    time.Duration
}

// NewTurnTimerManager creates a manager broadcasting through b and reporting
// timeouts through onTimeout.
func NewTurnTimerManager(b Broadcaster, onTimeout func(roomCode, playerID string)) *TurnTimerManager {
	return &TurnTimerManager{
		entries:     make(map[string]*timerEntry),
		broadcaster: b,
		onTimeout:   onTimeout,
		now:         time.Now,
		gracePeriod: GracePeriod,
		debounce:    SelectionDebounce,
	}
}

// StartTurn begins timing a turn, replacing any previous entry for the room.
func (m *TurnTimerManager) StartTurn(code, playerID string, timeout time.Duration) {
	m.mu.Lock()
	if prev, ok := m.entries[code]; ok {
		prev.stop()
	}
	now := m.now()
	e := &timerEntry{
		playerID:       playerID,
		startedAt:      now,
		lastActivityAt: now,
		timeout:        timeout,
	}
	e.expire = time.AfterFunc(timeout, func() { m.fireExpire(code, playerID) })
	m.entries[code] = e
	payload := e.syncPayload(now, m.gracePeriod)
	m.mu.Unlock()

	m.broadcaster.EmitToRoom(code, EventTimerSync, payload)
}

// RecordActivity resets the deadline after a successful action by the turn
// player, exiting any grace period.
func (m *TurnTimerManager) RecordActivity(code, playerID string) {
	m.mu.Lock()
	e, ok := m.entries[code]
	if !ok || e.playerID != playerID {
		m.mu.Unlock()
		return
	}
	now := m.now()
	e.lastActivityAt = now
	wasInGrace := e.inGrace
	if e.inGrace {
		e.inGrace = false
		if e.grace != nil {
			e.grace.Stop()
			e.grace = nil
		}
	}
	if e.expire != nil {
		e.expire.Stop()
	}
	e.expire = time.AfterFunc(e.timeout, func() { m.fireExpire(code, playerID) })
	payload := e.syncPayload(now, m.gracePeriod)
	m.mu.Unlock()

	if wasInGrace {
		m.broadcaster.EmitToRoom(code, EventGracePeriodEnded, map[string]any{"playerId": playerID})
	}
	m.broadcaster.EmitToRoom(code, EventTimerSync, payload)
	m.broadcaster.EmitToRoom(code, EventTimerReset, map[string]any{"playerId": playerID})
}

// RecordDebouncedActivity notes a dice-selection hint. The reset only lands
// once the hints go quiet for the debounce window.
func (m *TurnTimerManager) RecordDebouncedActivity(code, playerID string) {
	m.mu.Lock()
	e, ok := m.entries[code]
	if !ok || e.playerID != playerID {
		m.mu.Unlock()
		return
	}
	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.debounce = time.AfterFunc(m.debounce, func() {
		m.RecordActivity(code, playerID)
	})
	m.mu.Unlock()
}

// HandleDisconnect swaps the turn deadline for a grace period when the turn
// player drops.
func (m *TurnTimerManager) HandleDisconnect(code, playerID string) {
	m.mu.Lock()
	e, ok := m.entries[code]
	if !ok || e.playerID != playerID || e.inGrace {
		m.mu.Unlock()
		return
	}
	if e.expire != nil {
		e.expire.Stop()
		e.expire = nil
	}
	now := m.now()
	e.inGrace = true
	e.graceStartedAt = now
	e.grace = time.AfterFunc(m.gracePeriod, func() { m.fireGrace(code, playerID) })
	payload := e.syncPayload(now, m.gracePeriod)
	m.mu.Unlock()

	log.Info().Str("roomCode", code).Str("playerId", playerID).Msg("Turn player disconnected, grace period started")
	m.broadcaster.EmitToRoom(code, EventGracePeriodStarted, map[string]any{
		"playerId":       playerID,
		"gracePeriodMs":  m.gracePeriod.Milliseconds(),
		"graceStartedAt": now.UnixMilli(),
		"serverTime":     now.UnixMilli(),
	})
	m.broadcaster.EmitToRoom(code, EventTimerSync, payload)
}

// HandleReconnect cancels the grace period and restarts the deadline with a
// full window. Fairness across flaky networks beats exact resume.
func (m *TurnTimerManager) HandleReconnect(code, playerID string) {
	m.mu.Lock()
	e, ok := m.entries[code]
	if !ok || e.playerID != playerID || !e.inGrace {
		m.mu.Unlock()
		return
	}
	e.inGrace = false
	if e.grace != nil {
		e.grace.Stop()
		e.grace = nil
	}
	now := m.now()
	e.lastActivityAt = now
	e.expire = time.AfterFunc(e.timeout, func() { m.fireExpire(code, playerID) })
	payload := e.syncPayload(now, m.gracePeriod)
	m.mu.Unlock()

	log.Info().Str("roomCode", code).Str("playerId", playerID).Msg("Turn player reconnected during grace period")
	m.broadcaster.EmitToRoom(code, EventGracePeriodEnded, map[string]any{"playerId": playerID})
	m.broadcaster.EmitToRoom(code, EventTimerSync, payload)
}

// PauseTimer cancels scheduled handles without deleting the entry. Used when
// every client has left the room; the orchestrator starts a fresh timer on
// resume.
func (m *TurnTimerManager) PauseTimer(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[code]; ok {
		e.stop()
		e.inGrace = false
	}
}

// StopTurn drops the room's entry entirely (turn over or game over).
func (m *TurnTimerManager) StopTurn(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[code]; ok {
		e.stop()
		delete(m.entries, code)
	}
}

func (m *TurnTimerManager) fireExpire(code, playerID string) {
	m.mu.Lock()
	e, ok := m.entries[code]
	if !ok || e.playerID != playerID || e.inGrace {
		m.mu.Unlock()
		return
	}
	e.stop()
	delete(m.entries, code)
	m.mu.Unlock()

	log.Info().Str("roomCode", code).Str("playerId", playerID).Msg("Turn timer expired")
	m.broadcaster.EmitToRoom(code, EventPlayerTimedOut, map[string]any{
		"playerId":   playerID,
		"aiTakeover": true,
	})
	if m.onTimeout != nil {
		m.onTimeout(code, playerID)
	}
}

func (m *TurnTimerManager) fireGrace(code, playerID string) {
	m.mu.Lock()
	e, ok := m.entries[code]
	if !ok || e.playerID != playerID || !e.inGrace {
		m.mu.Unlock()
		return
	}
	e.stop()
	delete(m.entries, code)
	m.mu.Unlock()

	log.Info().Str("roomCode", code).Str("playerId", playerID).Msg("Grace period expired")
	m.broadcaster.EmitToRoom(code, EventPlayerTimedOut, map[string]any{
		"playerId":   playerID,
		"aiTakeover": true,
	})
	if m.onTimeout != nil {
		m.onTimeout(code, playerID)
	}
}
