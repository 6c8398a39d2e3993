package utils

import (
	"context"
	"sync"
	"time"
)

// Session scopes background work to a cancellable context. Close cancels
// the context and waits for everything started with Go to return.
type Session struct {
	context   context.Context
	cancel    context.CancelFunc
	startTime time.Time
	workers   sync.WaitGroup
}

func NewSession(ctx context.Context) *Session {
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		context:   ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

func (s *Session) Started() time.Time {
	return s.startTime
}

func (s *Session) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

func (s *Session) Ctx() context.Context {
	return s.context
}

func (s *Session) IsDone() bool {
	return s.context.Err() != nil
}

func (s *Session) Cancel() {
	s.cancel()
}

// Go runs fn in the background with the session's context.
func (s *Session) Go(fn func(ctx context.Context)) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		fn(s.context)
	}()
}

// Wait blocks until every function started with Go has returned.
func (s *Session) Wait() {
	s.workers.Wait()
}

func (s *Session) Close() {
	s.cancel()
	s.workers.Wait()
}
