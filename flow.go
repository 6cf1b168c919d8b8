package authgate

import (
	"context"
	"sync"
	"time"
)

// Flow defines a public type used by authgate APIs.
//
// Flow instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Flow struct {
	config   Config
	provider IdentityProvider
	store    ChallengeStore
	audit    *auditDispatcher
	metrics  *Metrics

	mu         sync.RWMutex
	session    Session
	pending    PendingChallenge
	enrollment EnrollmentHandle
	attemptID  string
	identifier string

	timerMu sync.Mutex
	timer   *time.Timer

	subMu sync.Mutex
	subs  []chan Session

	stop    chan struct{}
	started bool
	wg      sync.WaitGroup
}

// Start brings the engine to a settled initial state: it resolves the
// current principal synchronously so the first Session read after Start is
// authoritative, then begins consuming provider events.
//
// Start may return an error when input validation, dependency calls, or security checks fail.
// Start does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) Start(ctx context.Context) error {
	if f == nil {
		return ErrFlowNotReady
	}
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return nil
	}
	f.started = true
	f.mu.Unlock()

	f.Resolve(ctx, false)
	f.setLoading(false)

	if events := f.provider.Events(); events != nil {
		f.wg.Add(1)
		go f.consumeEvents(events)
	}
	return nil
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) Close() {
	if f == nil {
		return
	}
	f.cancelReconcile()
	f.mu.Lock()
	if f.stop != nil {
		select {
		case <-f.stop:
		default:
			close(f.stop)
		}
	}
	f.mu.Unlock()
	f.wg.Wait()

	f.subMu.Lock()
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
	f.subMu.Unlock()

	if f.audit != nil {
		f.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) AuditDropped() uint64 {
	if f == nil || f.audit == nil {
		return 0
	}
	return f.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) MetricsSnapshot() MetricsSnapshot {
	if f == nil || f.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return f.metrics.Snapshot()
}

func (f *Flow) metricInc(id MetricID) {
	if f == nil || f.metrics == nil {
		return
	}
	f.metrics.Inc(id)
}
