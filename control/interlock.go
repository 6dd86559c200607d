package control

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"turretcore/device"
	"turretcore/model"
)

// DefaultUnlockDelay is the hysteresis window a lock reason must remain
// continuously unconfirmed for before it is actually dropped.
const DefaultUnlockDelay = 5 * time.Second

const releasePoll = 10 * time.Millisecond

// reasonState tracks one active lock reason: the last time its holder
// reaffirmed it, and whether a release-delay task is already running
// for it.
type reasonState struct {
	latestActivity time.Time
	resolving      bool
}

// Interlock is the Interlock Manager: the single point all emergency
// locking and unlocking flows through. Its own mutex guards only the
// reason set; fan-out calls into Laser and Aim happen with the mutex
// released, so the documented Aim -> Servo -> Laser lock order is never
// inverted by a caller blocked inside the Interlock Manager.
type Interlock struct {
	log zerolog.Logger

	laser       *Laser
	aim         *Aim
	journal     EventSink
	button      device.Line
	unlockDelay time.Duration

	mu      sync.Mutex
	reasons map[string]*reasonState

	ctx       context.Context
	cancel    context.CancelFunc
	buttonWG  sync.WaitGroup
	releaseWG sync.WaitGroup
}

// NewInterlock constructs the manager. unlockDelay of zero selects
// DefaultUnlockDelay.
func NewInterlock(laser *Laser, aim *Aim, journal EventSink, button device.Line, unlockDelay time.Duration, log zerolog.Logger) *Interlock {
	if unlockDelay <= 0 {
		unlockDelay = DefaultUnlockDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Interlock{
		log:         log.With().Str("component", "interlock").Logger(),
		laser:       laser,
		aim:         aim,
		journal:     journal,
		button:      button,
		unlockDelay: unlockDelay,
		reasons:     make(map[string]*reasonState),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the physical deadman-button watcher. Call once after
// construction.
func (m *Interlock) Start() {
	m.buttonWG.Add(1)
	go m.watchButton()
}

// EmergencyInitiate records caller as holding an active lock reason,
// refreshing its activity timestamp if already present. On the
// transition from no reasons to one or more, the Laser and Aim are
// fanned out to emergency_disable_and_lock before this call returns.
func (m *Interlock) EmergencyInitiate(caller string) error {
	m.mu.Lock()
	wasEmpty := len(m.reasons) == 0
	now := time.Now()
	if r, ok := m.reasons[caller]; ok {
		r.latestActivity = now
	} else {
		m.reasons[caller] = &reasonState{latestActivity: now}
	}
	m.mu.Unlock()

	if !wasEmpty {
		return nil
	}

	m.log.Warn().Str("caller", caller).Msg("emergency lock engaged")
	errL := m.laser.EmergencyDisableAndLock()
	errA := m.aim.EmergencyDisableAndLock()
	if m.journal != nil {
		_ = m.journal.InsertNow(model.EmergencyLock, caller, "", "emergency lock engaged")
	}
	if errL != nil {
		return errL
	}
	return errA
}

// Recover begins releasing caller's lock reason after the configured
// unlock delay, provided no further EmergencyInitiate for the same
// caller arrives in the meantime. A no-op if caller holds no reason or
// a release is already pending for it.
func (m *Interlock) Recover(caller string) {
	m.mu.Lock()
	r, ok := m.reasons[caller]
	if !ok || r.resolving {
		m.mu.Unlock()
		return
	}
	r.resolving = true
	m.mu.Unlock()

	m.releaseWG.Add(1)
	go m.releaseTask(caller)
}

func (m *Interlock) releaseTask(caller string) {
	defer m.releaseWG.Done()
	unlockTime := time.Now()
	deadline := unlockTime.Add(m.unlockDelay)
	ticker := time.NewTicker(releasePoll)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.mu.Lock()
			if r, ok := m.reasons[caller]; ok {
				r.resolving = false
			}
			m.mu.Unlock()
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		r, ok := m.reasons[caller]
		if !ok {
			m.mu.Unlock()
			return
		}
		if r.latestActivity.After(unlockTime) {
			r.resolving = false
			m.mu.Unlock()
			return
		}
		if !time.Now().Before(deadline) {
			delete(m.reasons, caller)
			empty := len(m.reasons) == 0
			m.mu.Unlock()
			m.log.Info().Str("caller", caller).Msg("lock reason released")
			if empty {
				m.fanOutUnlock(caller)
			}
			return
		}
		m.mu.Unlock()
	}
}

func (m *Interlock) fanOutUnlock(lastCaller string) {
	m.log.Info().Str("last_caller", lastCaller).Msg("emergency unlock: all reasons cleared")
	m.laser.Unlock()
	m.aim.Unlock()
	m.aim.RestoreLastState()
	if m.journal != nil {
		_ = m.journal.InsertNow(model.EmergencyUnlock, "InterlockManager", "", "emergency unlock: all reasons cleared")
	}
}

// watchButton polls the deadman button at releasePoll. While the line
// reads pressed, it holds the ReasonDeadLocker reason; on release it
// hands off to Recover, which applies the same unlock-delay hysteresis
// as any other caller.
func (m *Interlock) watchButton() {
	defer m.buttonWG.Done()
	if m.button == nil {
		return
	}
	for {
		if m.ctx.Err() != nil {
			return
		}
		v, err := m.button.Read()
		if err != nil {
			m.log.Error().Err(err).Msg("deadman button read failed")
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(releasePoll):
			}
			continue
		}
		if v != device.Low {
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(releasePoll):
			}
			continue
		}

		if err := m.EmergencyInitiate(ReasonDeadLocker); err != nil {
			m.log.Error().Err(err).Msg("deadman button emergency initiate failed")
		}
		if err := m.button.WaitForValue(m.ctx, device.High); err != nil {
			return
		}
		m.Recover(ReasonDeadLocker)
	}
}

// Dispose cancels the button watcher and every pending release task,
// then joins them. Pending release tasks abort without dropping their
// reason, matching the guard condition they would hit on fresh
// activity.
func (m *Interlock) Dispose() error {
	m.cancel()
	m.mu.Lock()
	now := time.Now()
	for _, r := range m.reasons {
		r.latestActivity = now
	}
	m.mu.Unlock()
	m.buttonWG.Wait()
	m.releaseWG.Wait()
	if m.button != nil {
		return m.button.Release()
	}
	return nil
}

// Reasons returns the currently active lock reasons, sorted for stable
// status reporting.
func (m *Interlock) Reasons() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.reasons))
	for k := range m.reasons {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Locked reports whether any lock reason is currently active.
func (m *Interlock) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reasons) != 0
}

// HasReason reports whether caller currently holds an active lock
// reason.
func (m *Interlock) HasReason(caller string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.reasons[caller]
	return ok
}
