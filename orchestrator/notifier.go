package orchestrator

import (
	"time"

	"github.com/rs/zerolog"
)

// Notifier surfaces backup progress to the user. Implementations are
// host-provided; the orchestrator shields runs from faulty ones.
type Notifier interface {
	// ShowProgress opens a progress notice. Persistent notices stay up
	// until Hide.
	ShowProgress(message string, persistent bool)
	// UpdateProgress replaces the text of the current progress notice.
	UpdateProgress(message string)
	// Hide removes the current progress notice.
	Hide()
	// ShowTransient shows a notice that disappears on its own.
	ShowTransient(message string, duration time.Duration)
}

// NewLogNotifier returns a Notifier that writes notices to the log. Used
// by the CLI, where there is no status bar to draw on.
func NewLogNotifier(logger zerolog.Logger) Notifier {
	return &logNotifier{logger: logger}
}

type logNotifier struct {
	logger zerolog.Logger
}

func (n *logNotifier) ShowProgress(message string, _ bool) {
	n.logger.Info().Msg(message)
}

func (n *logNotifier) UpdateProgress(message string) {
	n.logger.Info().Msg(message)
}

func (n *logNotifier) Hide() {}

func (n *logNotifier) ShowTransient(message string, _ time.Duration) {
	n.logger.Info().Msg(message)
}

// safeNotifier tolerates a nil or panicking Notifier. A notification
// problem must never abort a backup.
type safeNotifier struct {
	n      Notifier
	logger zerolog.Logger
}

func (s *safeNotifier) call(f func(Notifier)) {
	if s.n == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn().Interface("panic", r).Msg("notifier failed")
		}
	}()
	f(s.n)
}

func (s *safeNotifier) ShowProgress(message string, persistent bool) {
	s.call(func(n Notifier) { n.ShowProgress(message, persistent) })
}

func (s *safeNotifier) UpdateProgress(message string) {
	s.call(func(n Notifier) { n.UpdateProgress(message) })
}

func (s *safeNotifier) Hide() {
	s.call(func(n Notifier) { n.Hide() })
}

func (s *safeNotifier) ShowTransient(message string, duration time.Duration) {
	s.call(func(n Notifier) { n.ShowTransient(message, duration) })
}
