// Package watchtest provides a counting Subscriber for tests.
package watchtest

import (
	"sync"

	"github.com/fakeyudi/codebattle/internal/watch"
)

// Subscriber hands out in-memory subscriptions and counts how many are live.
type Subscriber struct {
	mu     sync.Mutex
	opened int
	closed int
	subs   []*Subscription
	// Err, when set, is returned by the next Subscribe call.
	Err error
}

var _ watch.Subscriber = (*Subscriber)(nil)

// Subscribe implements watch.Subscriber.
func (f *Subscriber) Subscribe(dir string) (watch.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		err := f.Err
		f.Err = nil
		return nil, err
	}
	s := &Subscription{Dir: dir, owner: f, events: make(chan struct{}, 16)}
	f.opened++
	f.subs = append(f.subs, s)
	return s, nil
}

// Active returns the number of subscriptions opened and not yet closed.
func (f *Subscriber) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened - f.closed
}

// Opened returns the total number of subscriptions handed out.
func (f *Subscriber) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// Closed returns the number of subscriptions closed so far.
func (f *Subscriber) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Last returns the most recent subscription, or nil.
func (f *Subscriber) Last() *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}

// Subscription is an in-memory watch.Subscription.
type Subscription struct {
	Dir    string
	owner  *Subscriber
	events chan struct{}

	mu     sync.Mutex
	closed bool
}

// Events implements watch.Subscription.
func (s *Subscription) Events() <-chan struct{} { return s.events }

// Fire emits one change signal. It is a no-op once closed.
func (s *Subscription) Fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.events <- struct{}{}
	}
}

// IsClosed reports whether Close has been called.
func (s *Subscription) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close implements watch.Subscription.
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	s.owner.mu.Lock()
	s.owner.closed++
	s.owner.mu.Unlock()
	return nil
}
