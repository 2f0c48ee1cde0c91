// Package alarm implements the alarm scheduler: alarms are registered
// with an absolute get-up time and fired through a two-phase wake
// sequence, a gentle wake-up loop followed by a more insistent get-up
// loop after the snooze gap.
package alarm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/domain"
)

const (
	maxPoll  = 5 * time.Minute
	idlePoll = 1 * time.Minute
)

// Option configures the scheduler.
type Option func(*Scheduler)

// WithSnoozeDuration sets the gap between the wake-up and get-up phases.
func WithSnoozeDuration(d time.Duration) Option {
	return func(s *Scheduler) { s.snooze = d }
}

// WithWakeUpDuration sets how long the wake-up phase loops.
func WithWakeUpDuration(d time.Duration) Option {
	return func(s *Scheduler) { s.wakeUpDur = d }
}

// WithGetUpDuration sets how long the get-up phase loops.
func WithGetUpDuration(d time.Duration) Option {
	return func(s *Scheduler) { s.getUpDur = d }
}

// WithFadeOut sets the fade applied when a phase loop ends.
func WithFadeOut(d time.Duration) Option {
	return func(s *Scheduler) { s.fade = d }
}

// WithMinPoll sets the shortest monitor poll interval.
func WithMinPoll(d time.Duration) Option {
	return func(s *Scheduler) { s.minPoll = d }
}

// Item is a scheduled alarm. GetUpAt is the moment the get-up phase
// starts; the wake-up phase begins one snooze duration earlier.
type Item struct {
	ID           uint64
	GetUpAt      time.Time
	WakeSoundID  string
	GetUpSoundID string
	Callback     func()
	Triggered    bool
}

// WakeAt returns the start of the wake-up phase.
func (it *Item) WakeAt(snooze time.Duration) time.Time {
	return it.GetUpAt.Add(-snooze)
}

// Scheduler owns the alarm list and the background monitor that fires
// wake sequences. Alarm IDs are assigned from a monotonic counter and
// never reused within a process.
type Scheduler struct {
	player    domain.SoundPlayer
	log       *zap.SugaredLogger
	snooze    time.Duration
	wakeUpDur time.Duration
	getUpDur  time.Duration
	fade      time.Duration
	minPoll   time.Duration

	mu      sync.Mutex
	nextID  uint64
	pending []*Item
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a scheduler playing through the given player.
func New(player domain.SoundPlayer, log *zap.SugaredLogger, opts ...Option) *Scheduler {
	s := &Scheduler{
		player:    player,
		log:       log,
		snooze:    9 * time.Minute,
		wakeUpDur: 60 * time.Second,
		getUpDur:  60 * time.Second,
		fade:      2500 * time.Millisecond,
		minPoll:   time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the background monitor loop. Non-blocking.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn("alarm scheduler already running")
		return
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.done = make(chan struct{})

	go s.monitor(childCtx)

	s.log.Infow("alarm scheduler started", "snooze", s.snooze)
}

// Shutdown stops the monitor and silences any wake sequence in flight.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.log.Warn("alarm monitor did not exit in time")
	}
	s.player.StopLoop()
	s.log.Info("alarm scheduler stopped")
}

// Set schedules an alarm whose get-up phase starts at getUpAt and
// returns its ID. The callback, if any, runs after the get-up phase.
func (s *Scheduler) Set(getUpAt time.Time, wakeSound, getUpSound string, callback func()) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	it := &Item{
		ID:           s.nextID,
		GetUpAt:      getUpAt,
		WakeSoundID:  wakeSound,
		GetUpSoundID: getUpSound,
		Callback:     callback,
	}
	s.pending = append(s.pending, it)
	s.log.Infow("alarm set", "id", it.ID, "get_up", getUpAt.Format(time.Kitchen))
	return it.ID
}

// SetForTime schedules an alarm for the next occurrence of the given
// wall-clock time, rolling to tomorrow when it has already passed today.
func (s *Scheduler) SetForTime(hour, minute int, wakeSound, getUpSound string, callback func()) (uint64, time.Time) {
	now := time.Now()
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.Add(24 * time.Hour)
	}
	return s.Set(at, wakeSound, getUpSound, callback), at
}

// Cancel removes a pending alarm. It fails when the ID is unknown or
// the alarm has already triggered.
func (s *Scheduler) Cancel(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, it := range s.pending {
		if it.ID != id {
			continue
		}
		if it.Triggered {
			return domain.ErrAlarmTriggered
		}
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		s.log.Infow("alarm cancelled", "id", id)
		return nil
	}
	return domain.ErrAlarmNotFound
}

// NextInfo returns the nearest pending alarm's ID and phase times.
// ok is false when no alarm is pending.
func (s *Scheduler) NextInfo() (id uint64, wakeAt, getUpAt time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.nearestLocked()
	if next == nil {
		return 0, time.Time{}, time.Time{}, false
	}
	return next.ID, next.WakeAt(s.snooze), next.GetUpAt, true
}

// Pending returns the number of alarms waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// nearestLocked returns the untriggered alarm with the earliest get-up
// time. Caller holds s.mu.
func (s *Scheduler) nearestLocked() *Item {
	var next *Item
	for _, it := range s.pending {
		if it.Triggered {
			continue
		}
		if next == nil || it.GetUpAt.Before(next.GetUpAt) {
			next = it
		}
	}
	return next
}

// monitor polls for due alarms. The poll interval adapts to the time
// until the next wake so a distant alarm does not keep the process busy.
func (s *Scheduler) monitor(ctx context.Context) {
	defer close(s.done)

	for {
		s.mu.Lock()
		next := s.nearestLocked()
		var wait time.Duration
		if next == nil {
			wait = idlePoll
		} else {
			wait = time.Until(next.WakeAt(s.snooze)) / 2
			if wait < s.minPoll {
				wait = s.minPoll
			}
			if wait > maxPoll {
				wait = maxPoll
			}
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		s.fireDue(ctx)
	}
}

// fireDue triggers every alarm whose wake phase is due.
func (s *Scheduler) fireDue(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	var due []*Item
	for _, it := range s.pending {
		if !it.Triggered && !it.WakeAt(s.snooze).After(now) {
			it.Triggered = true
			due = append(due, it)
		}
	}
	s.mu.Unlock()

	for _, it := range due {
		go s.fire(ctx, it)
	}
}

// fire runs the two-phase wake sequence for one alarm.
func (s *Scheduler) fire(ctx context.Context, it *Item) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("wake sequence panicked", "id", it.ID, "panic", r)
			s.player.StopLoop()
		}
		s.remove(it.ID)
	}()

	s.log.Infow("alarm firing", "id", it.ID)

	// Phase one: the fade at the end eats into the loop window, so the
	// phase as a whole still fits the configured duration.
	s.player.PlayLoop(it.WakeSoundID, s.wakeUpDur-s.fade)
	if !s.sleep(ctx, s.wakeUpDur-s.fade) {
		s.player.StopLoop()
		return
	}
	s.player.StopLoop()

	if !s.sleep(ctx, s.snooze-s.wakeUpDur) {
		return
	}

	// Phase two.
	s.player.PlayLoop(it.GetUpSoundID, s.getUpDur-s.fade)
	if !s.sleep(ctx, s.getUpDur-s.fade) {
		s.player.StopLoop()
		return
	}
	s.player.StopLoop()

	if it.Callback != nil {
		it.Callback()
	}
	s.log.Infow("alarm completed", "id", it.ID)
}

// sleep waits for d, reporting false when the context ends first.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (s *Scheduler) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.pending {
		if it.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}
