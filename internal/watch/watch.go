// Package watch delivers "something changed" signals for a directory.
package watch

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fakeyudi/codebattle/internal/logging"
)

// Subscription is a live registration for change notifications on one
// directory. Events receives one value per filesystem event; the channel is
// closed after Close.
type Subscription interface {
	Events() <-chan struct{}
	Close() error
}

// Subscriber opens subscriptions. FSNotify is the production implementation;
// tests substitute a counting fake.
type Subscriber interface {
	Subscribe(dir string) (Subscription, error)
}

// FSNotify subscribes through fsnotify. The directory itself is watched, not
// its subdirectories.
type FSNotify struct {
	Logger *zap.Logger
}

// Subscribe arms an fsnotify watcher on dir.
func (f FSNotify) Subscribe(dir string) (Subscription, error) {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	s := &fsSubscription{
		w:      w,
		events: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.loop(logger.With(logging.String("dir", dir)))
	return s, nil
}

type fsSubscription struct {
	w         *fsnotify.Watcher
	events    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (s *fsSubscription) Events() <-chan struct{} { return s.events }

// loop forwards every event regardless of its op. The send never blocks: a
// signal already pending covers the new one.
func (s *fsSubscription) loop(logger *zap.Logger) {
	defer close(s.done)
	defer close(s.events)
	for {
		select {
		case ev, ok := <-s.w.Events:
			if !ok {
				return
			}
			logger.Debug("filesystem event", logging.String("path", ev.Name), logging.String("op", ev.Op.String()))
			select {
			case s.events <- struct{}{}:
			default:
			}
		case err, ok := <-s.w.Errors:
			if !ok {
				return
			}
			// Watcher errors are non-fatal; continue watching.
			logger.Warn("watcher error", logging.Err(err))
		}
	}
}

// Close releases the OS handle and waits for the forwarding goroutine.
func (s *fsSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.w.Close()
		<-s.done
	})
	return s.closeErr
}
