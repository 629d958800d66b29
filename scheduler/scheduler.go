package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrAlreadyRunning reports that a requested backup was absorbed because
// one is already in flight. The scheduler treats it as a no-op: nothing
// finished, so the schedule is left for the in-flight run to update.
var ErrAlreadyRunning = errors.New("backup already in progress")

// DefaultTick is the polling period. It only needs to be short relative to
// the shortest supported backup interval.
const DefaultTick = 30 * time.Second

// State is the scheduler's logical state.
type State string

const (
	StateIdle    State = "idle"    // not started, no timer running
	StateWaiting State = "waiting" // timer running, next due in the future
	StateDue     State = "due"     // past due, eligible to run on the next tick
)

// Runner executes backups. Running reports whether one is currently in
// flight; the scheduler never starts a second one alongside it.
type Runner interface {
	CreateBackup(ctx context.Context) error
	Running() bool
}

// Plan computes the next due time after a backup at lastBackup. A due time
// that already passed collapses to now+interval, so coming back after a
// long offline stretch schedules one backup instead of a storm.
func Plan(lastBackup time.Time, interval time.Duration, now time.Time) time.Time {
	due := lastBackup.Add(interval)
	if !due.After(now) {
		due = now.Add(interval)
	}
	return due
}

type Params struct {
	Runner     Runner
	Interval   time.Duration
	LastBackup time.Time     // zero when no backup ever completed
	Tick       time.Duration // defaults to DefaultTick
	Now        func() time.Time
	Logger     zerolog.Logger
}

func New(params Params) *Scheduler {
	if params.Tick <= 0 {
		params.Tick = DefaultTick
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Scheduler{
		runner:     params.Runner,
		interval:   params.Interval,
		lastBackup: params.LastBackup,
		tick:       params.Tick,
		now:        params.Now,
		logger:     params.Logger,
	}
}

type Scheduler struct {
	runner Runner
	tick   time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu         sync.Mutex
	interval   time.Duration
	lastBackup time.Time
	nextDue    time.Time
	stopCh     chan struct{}
}

// Start computes the initial due time and begins polling. The context is
// passed through to backup runs; stopping the scheduler does not cancel a
// run already in progress.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.nextDue = Plan(s.lastBackup, s.interval, s.now())
	nextDue := s.nextDue
	s.mu.Unlock()

	s.logger.Info().Time("next_due", nextDue).Msg("backup schedule started")

	go s.poll(ctx, stopCh)
}

// Stop cancels future ticks. A backup already in progress runs to
// completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.logger.Info().Msg("backup schedule stopped")
}

func (s *Scheduler) poll(ctx context.Context, stopCh chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.onTick(ctx)
		}
	}
}

func (s *Scheduler) onTick(ctx context.Context) {
	s.mu.Lock()
	due := !s.now().Before(s.nextDue)
	s.mu.Unlock()

	if !due || s.runner.Running() {
		return
	}

	_ = s.runAndReschedule(ctx)
}

// ForceNow runs a backup immediately, bypassing the due check. It still
// honors the in-progress guard: forcing while a backup runs is a no-op, so
// a manual request can never overlap a tick-triggered run. Rescheduling
// happens only after the run's outcome is observed.
func (s *Scheduler) ForceNow(ctx context.Context) error {
	if s.runner.Running() {
		s.logger.Info().Msg("backup already in progress, ignoring manual request")
		return nil
	}
	return s.runAndReschedule(ctx)
}

func (s *Scheduler) runAndReschedule(ctx context.Context) error {
	err := s.runner.CreateBackup(ctx)
	if errors.Is(err, ErrAlreadyRunning) {
		s.logger.Info().Msg("backup already in progress, leaving schedule unchanged")
		return nil
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("backup run failed")
	}
	completed := s.now()

	s.mu.Lock()
	if err == nil {
		s.lastBackup = completed
	}
	// Anchor the next run to actual completion, not the old schedule. A
	// failed run keeps the old last-backup time and the overdue rule in
	// Plan pushes the retry one full interval out.
	s.nextDue = Plan(s.lastBackup, s.interval, s.now())
	nextDue := s.nextDue
	s.mu.Unlock()

	s.logger.Info().Time("next_due", nextDue).Msg("next backup scheduled")
	return err
}

// RescheduleFromNow restarts the countdown with a new interval, ignoring
// the last backup time. Called when the interval configuration changes.
func (s *Scheduler) RescheduleFromNow(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
	s.nextDue = s.now().Add(interval)
	s.logger.Info().Time("next_due", s.nextDue).Msg("backup rescheduled")
}

// NextDue returns the current due time. Zero before Start.
func (s *Scheduler) NextDue() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextDue
}

// TimeRemaining returns the countdown until the next due time, clamped to
// zero when overdue.
func (s *Scheduler) TimeRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextDue.IsZero() {
		return 0
	}
	remaining := s.nextDue.Sub(s.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CurrentState reports the scheduler's logical state.
func (s *Scheduler) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.stopCh == nil:
		return StateIdle
	case s.now().Before(s.nextDue):
		return StateWaiting
	default:
		return StateDue
	}
}
