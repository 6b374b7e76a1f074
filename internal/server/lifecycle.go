// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// StateCreated means Start has not been called.
	StateCreated State = iota
	// StateStarting means the listener is being set up.
	StateStarting
	// StateRunning means requests are being served.
	StateRunning
	// StateStopping means a graceful shutdown is in progress.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal: the server could not start or serving failed.
	StateFailed
)

type (
	// State is the lifecycle state of a Server.
	State int32

	// lifecycle tracks the state of a single-use server and the goroutines
	// it started.
	lifecycle struct {
		state atomic.Int32

		mu      sync.Mutex
		lastErr error

		wg        sync.WaitGroup
		startedCh chan struct{}
		errCh     chan error
	}
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is Stopped or Failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

func newLifecycle() lifecycle {
	return lifecycle{
		startedCh: make(chan struct{}),
		errCh:     make(chan error, 1),
	}
}

// State returns the current state without locking.
func (l *lifecycle) State() State { return State(l.state.Load()) }

// IsRunning reports whether the server is serving.
func (l *lifecycle) IsRunning() bool { return l.State() == StateRunning }

// Err delivers serving failures that happen after Start returned. It is
// closed once the server has stopped.
func (l *lifecycle) Err() <-chan error { return l.errCh }

// LastError returns the error that moved the server to StateFailed.
func (l *lifecycle) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *lifecycle) toStarting(ctx context.Context) error {
	// A context canceled before setup must fail the start even if serving
	// would come up immediately.
	if err := ctx.Err(); err != nil {
		l.toFailed(fmt.Errorf("context canceled before start: %w", err))
		return l.LastError()
	}
	if !l.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", l.State())
	}
	return nil
}

func (l *lifecycle) toRunning() {
	if l.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(l.startedCh)
	}
}

func (l *lifecycle) toFailed(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
	l.state.Store(int32(StateFailed))

	select {
	case l.errCh <- err:
	default:
	}
}

// toStopping reports whether the caller owns the shutdown.
func (l *lifecycle) toStopping() bool {
	for {
		switch cur := l.State(); cur {
		case StateCreated:
			if l.state.CompareAndSwap(int32(cur), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if l.state.CompareAndSwap(int32(cur), int32(StateStopping)) {
				return true
			}
		default:
			return false
		}
	}
}

func (l *lifecycle) toStopped() {
	l.state.Store(int32(StateStopped))
	close(l.errCh)
}
