package watch

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fakeyudi/codebattle/internal/logging"
)

// Manager keeps at most one subscription alive. Arming a new directory
// always retires the previous subscription first.
type Manager struct {
	Subscriber Subscriber
	// Debounce collapses events that arrive within the window into a single
	// callback. Zero calls back once per event.
	Debounce time.Duration
	Logger   *zap.Logger

	mu      sync.Mutex
	current Subscription
	stop    chan struct{}
	dir     string
}

// NewManager returns a Manager backed by sub.
func NewManager(sub Subscriber, debounce time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{Subscriber: sub, Debounce: debounce, Logger: logger}
}

// Watch subscribes to dir and calls onChange for each change signal until the
// next Watch or Close. onChange runs on the manager's goroutine and must not
// call back into the Manager.
func (m *Manager) Watch(dir string, onChange func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.retireLocked()

	sub, err := m.Subscriber.Subscribe(dir)
	if err != nil {
		return err
	}
	stop := make(chan struct{})
	m.current = sub
	m.stop = stop
	m.dir = dir
	m.logger().Debug("watch armed", logging.String("dir", dir))

	go m.consume(sub, stop, onChange)
	return nil
}

// Dir returns the directory currently watched, or "" when idle.
func (m *Manager) Dir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dir
}

// Close retires the active subscription, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retireLocked()
}

func (m *Manager) retireLocked() {
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	if m.current != nil {
		if err := m.current.Close(); err != nil {
			m.logger().Warn("closing watch", logging.String("dir", m.dir), logging.Err(err))
		}
		m.logger().Debug("watch retired", logging.String("dir", m.dir))
		m.current = nil
	}
	m.dir = ""
}

func (m *Manager) consume(sub Subscription, stop <-chan struct{}, onChange func()) {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	deliver := func() {
		select {
		case <-stop:
			return
		default:
		}
		onChange()
	}

	for {
		select {
		case <-stop:
			return
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
			if m.Debounce <= 0 {
				deliver()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(m.Debounce)
			} else {
				timer.Stop()
				timer.Reset(m.Debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			deliver()
		}
	}
}

func (m *Manager) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}
