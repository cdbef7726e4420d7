package mock

import (
	"context"
	"sync"
)

// scheduler runs tasks one at a time, in the order they were posted, on a
// single goroutine. Everything a Registry owns is only touched from tasks.
type scheduler struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

func newScheduler() *scheduler {
	s := &scheduler{done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

func (s *scheduler) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		task()
	}
}

// post queues task behind everything already queued.
func (s *scheduler) post(task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrRegistryClosed
	}
	s.queue = append(s.queue, task)
	s.cond.Signal()
	return nil
}

// do posts fn and waits for it to run. It must not be called from a task.
func (s *scheduler) do(fn func()) error {
	ran := make(chan struct{})
	if err := s.post(func() {
		fn()
		close(ran)
	}); err != nil {
		return err
	}
	<-ran
	return nil
}

// settle blocks until the queue is empty, including work queued by the
// tasks that ran while waiting.
func (s *scheduler) settle(ctx context.Context) error {
	for {
		idle := make(chan bool, 1)
		err := s.post(func() {
			s.mu.Lock()
			idle <- len(s.queue) == 0
			s.mu.Unlock()
		})
		if err != nil {
			return err
		}
		select {
		case empty := <-idle:
			if empty {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// close stops accepting tasks, runs what is already queued and waits for
// the loop to exit.
func (s *scheduler) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.done
}
