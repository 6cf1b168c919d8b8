package authgate

import (
	"context"
	"log"
)

// Session returns a snapshot of the current session state. The returned
// profile is a copy; mutating it does not affect the engine.
//
// Session may return an error when input validation, dependency calls, or security checks fail.
// Session does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) Session() Session {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return cloneSession(f.session)
}

// Subscribe registers a listener for session snapshots. Every state
// transition delivers one snapshot; slow listeners miss intermediate states
// rather than blocking the engine. The returned cancel func releases the
// subscription and closes the channel.
func (f *Flow) Subscribe() (<-chan Session, func()) {
	ch := make(chan Session, 1)

	f.subMu.Lock()
	f.subs = append(f.subs, ch)
	f.subMu.Unlock()

	cancel := func() {
		f.subMu.Lock()
		defer f.subMu.Unlock()
		for i, sub := range f.subs {
			if sub == ch {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (f *Flow) notify() {
	snapshot := f.Session()

	f.subMu.Lock()
	defer f.subMu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- snapshot:
		default:
			// Replace the stale pending snapshot with the latest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// PendingChallenge reports the challenge the current sign-in attempt is
// blocked on. Memory is authoritative; after a restart the durable store is
// consulted so a half-finished sign-in survives reloads. Store content
// failures degrade to no challenge.
//
// PendingChallenge may return an error when input validation, dependency calls, or security checks fail.
// PendingChallenge does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) PendingChallenge(ctx context.Context) PendingChallenge {
	f.mu.RLock()
	pending := f.pending
	authenticated := f.session.Authenticated
	f.mu.RUnlock()

	if pending.Active() || authenticated {
		return pending
	}

	stored, err := f.store.Load(ctx)
	if err != nil {
		log.Print("authgate: pending challenge load failed")
		return PendingChallenge{}
	}
	if !stored.Active() {
		return PendingChallenge{}
	}

	f.mu.Lock()
	if !f.pending.Active() && !f.session.Authenticated {
		f.pending = stored
	}
	pending = f.pending
	f.mu.Unlock()
	return pending
}

func (f *Flow) setLoading(loading bool) {
	f.mu.Lock()
	f.session.Loading = loading
	f.mu.Unlock()
	f.notify()
}

// setAuthenticated installs a profile and retires any pending challenge.
// An authenticated session must never coexist with a stored challenge that
// points at an already-consumed provider session. A standalone enrollment
// flag carries no provider session and so is kept; ConfirmTOTP retires it.
func (f *Flow) setAuthenticated(ctx context.Context, profile *Profile) {
	f.mu.Lock()
	keepEnrollment := f.pending.Kind == ChallengeTOTPSetup && f.pending.ProviderSession == ""
	f.session = Session{
		User:          profile,
		Authenticated: true,
	}
	if !keepEnrollment {
		f.pending = PendingChallenge{}
		f.enrollment = nil
	}
	f.mu.Unlock()

	if !keepEnrollment {
		f.clearStored(ctx)
	}
	f.notify()
}

func (f *Flow) setUnauthenticated(ctx context.Context) {
	f.cancelReconcile()

	f.mu.Lock()
	f.session = Session{}
	f.pending = PendingChallenge{}
	f.enrollment = nil
	f.attemptID = ""
	f.identifier = ""
	f.mu.Unlock()

	f.clearStored(ctx)
	f.notify()
}

// setSignedOut resets the session without retiring a pending challenge.
// The authoritative resolve at startup lands here: mid-challenge the
// provider reports no principal, and clearing the durable challenge then
// would destroy the prompt a reload is meant to resume. Sign-out, cancel
// and challenge resolution go through setUnauthenticated instead.
func (f *Flow) setSignedOut() {
	f.cancelReconcile()

	f.mu.Lock()
	f.session = Session{}
	f.mu.Unlock()

	f.notify()
}

func (f *Flow) setPending(ctx context.Context, pending PendingChallenge, enrollment EnrollmentHandle) {
	f.mu.Lock()
	f.session = Session{}
	f.pending = pending
	f.enrollment = enrollment
	f.mu.Unlock()

	if err := f.store.Save(ctx, pending); err != nil {
		// A challenge that only lives in memory still works for this
		// process; it just will not survive a restart.
		log.Print("authgate: pending challenge save failed")
	}
	f.notify()
}

func (f *Flow) clearChallenge(ctx context.Context) {
	f.mu.Lock()
	f.pending = PendingChallenge{}
	f.enrollment = nil
	f.mu.Unlock()

	f.clearStored(ctx)
}

func (f *Flow) clearStored(ctx context.Context) {
	if err := f.store.Clear(ctx); err != nil {
		log.Print("authgate: pending challenge clear failed")
	}
}

func (f *Flow) consumeEvents(events <-chan Event) {
	defer f.wg.Done()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			f.handleEvent(event)
		case <-f.stop:
			return
		}
	}
}

// handleEvent reacts to provider notifications. Sign-in events are ignored
// on purpose: BeginSignIn already applied the transition synchronously, and
// applying it twice would clobber the provisional profile.
func (f *Flow) handleEvent(event Event) {
	ctx := context.Background()
	switch event.Kind {
	case EventSignOut:
		f.setUnauthenticated(ctx)
		f.emitAudit(ctx, auditEventSignOut, true, "", "", nil, nil)
	case EventSignInFailure:
		f.setUnauthenticated(ctx)
	}
}
