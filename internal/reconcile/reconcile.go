// Package reconcile runs the long-lived listeners that keep derived
// state in sync with the store: the config-sync reconciler and the
// per-recipient inbox listeners are both instances of the same loop
// with different cycle functions.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/arlobright/signalbox/internal/listen"
)

// Reconciler states, exposed for the dashboard.
const (
	StateDisconnected = "disconnected"
	StateListening    = "listening"
	StateRebuilding   = "rebuilding"
	StateShutdown     = "shutdown"
)

const defaultDebounce = 200 * time.Millisecond

// Reconciler subscribes to a change stream and runs a cycle function on
// startup, after every (re)connect, and after each batch of events. At
// most one cycle runs at a time; events arriving mid-cycle are coalesced
// into one trailing cycle rather than queued or dropped.
type Reconciler struct {
	Name   string
	Stream listen.Stream

	// Cycle performs one rebuild pass. It must be safe to call even when
	// nothing changed: the unconditional startup and post-reconnect calls
	// depend on that.
	Cycle func(ctx context.Context) error

	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Keepalive      time.Duration

	// Debounce is how long to keep draining queued events before running
	// the cycle for a batch. Defaults to 200ms.
	Debounce time.Duration

	Out io.Writer

	mu          sync.Mutex
	state       string
	lastCycleAt time.Time
	cycleCount  uint64
	lastErr     error
}

// Run drives the subscription state machine until ctx is cancelled:
//
//	Disconnected → (connect, catch-up cycle) → Listening
//	Listening → (event) → cycle → Listening
//	Listening → (connection loss) → Disconnected, backoff
//	any → Shutdown on ctx cancellation
//
// An unconditional cycle runs first so a fresh start is correct even if
// no event ever fires, and another runs after every reconnect to cover
// events missed while disconnected.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.Stream == nil {
		return fmt.Errorf("reconcile: %s: stream is required", r.Name)
	}
	if r.Cycle == nil {
		return fmt.Errorf("reconcile: %s: cycle is required", r.Name)
	}
	keepalive := r.Keepalive
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	bo := newBackoff(r.BackoffInitial, r.BackoffMax)

	defer func() {
		r.setState(StateShutdown)
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Stream.Close(closeCtx); err != nil {
			log.Printf("reconcile: %s: close stream: %v", r.Name, err)
		}
	}()

	r.logf("%s: starting, initial rebuild\n", r.Name)
	r.runCycle(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}
		r.setState(StateDisconnected)

		if err := r.Stream.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay := bo.next()
			log.Printf("reconcile: %s: connect failed (retry in %s): %v", r.Name, delay, err)
			if !sleep(ctx, delay) {
				return nil
			}
			continue
		}
		bo.reset()
		r.logf("%s: subscribed, running catch-up rebuild\n", r.Name)

		// Catch-up: anything that changed while we were disconnected
		// produced no event we can ever see again.
		r.runCycle(ctx)

		if err := r.listenLoop(ctx, keepalive); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("reconcile: %s: subscription lost: %v", r.Name, err)
		}
	}
}

// listenLoop waits for events until the connection dies or ctx is
// cancelled. The keepalive probe runs whenever a wait window passes with
// no traffic, catching silently dead connections.
func (r *Reconciler) listenLoop(ctx context.Context, keepalive time.Duration) error {
	for {
		r.setState(StateListening)

		waitCtx, cancel := context.WithTimeout(ctx, keepalive)
		_, err := r.Stream.Wait(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				pingCtx, pcancel := context.WithTimeout(ctx, 5*time.Second)
				pingErr := r.Stream.Ping(pingCtx)
				pcancel()
				if pingErr != nil {
					return fmt.Errorf("keepalive probe: %w", pingErr)
				}
				continue
			}
			return err
		}

		r.drain(ctx)
		r.runCycle(ctx)
	}
}

// drain soaks up events already queued behind the one just received so
// a burst of writes coalesces into a single cycle.
func (r *Reconciler) drain(ctx context.Context) {
	window := r.Debounce
	if window <= 0 {
		window = defaultDebounce
	}
	for {
		drainCtx, cancel := context.WithTimeout(ctx, window)
		_, err := r.Stream.Wait(drainCtx)
		cancel()
		if err != nil {
			return
		}
	}
}

// runCycle executes one cycle, logging failures instead of crashing:
// a momentary store error mid-query costs one rebuild, and the next
// event or keepalive-triggered reconnect retries. The cycle runs on a
// context that survives shutdown so cancellation never aborts an
// in-flight rebuild mid-write.
func (r *Reconciler) runCycle(ctx context.Context) {
	r.setState(StateRebuilding)
	err := r.Cycle(context.WithoutCancel(ctx))

	r.mu.Lock()
	r.lastCycleAt = time.Now()
	r.cycleCount++
	r.lastErr = err
	r.mu.Unlock()

	if err != nil {
		log.Printf("reconcile: %s: cycle: %v", r.Name, err)
	}
}

// Status is a point-in-time view of the reconciler for the dashboard.
type Status struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	LastCycleAt time.Time `json:"last_cycle_at"`
	CycleCount  uint64    `json:"cycle_count"`
	LastError   string    `json:"last_error,omitempty"`
}

// CurrentStatus returns the reconciler's current status.
func (r *Reconciler) CurrentStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Status{
		Name:        r.Name,
		State:       r.state,
		LastCycleAt: r.lastCycleAt,
		CycleCount:  r.cycleCount,
	}
	if r.lastErr != nil {
		s.LastError = r.lastErr.Error()
	}
	return s
}

func (r *Reconciler) setState(s string) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Reconciler) logf(format string, args ...interface{}) {
	if r.Out != nil {
		fmt.Fprintf(r.Out, format, args...)
	}
}

// sleep waits for d or until ctx is done; returns false on cancellation.
// The pending reconnect timer dies with the context.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
