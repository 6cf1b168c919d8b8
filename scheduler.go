package authgate

import (
	"context"
	"time"
)

// scheduleReconcile arms a single delayed enrichment pass. Re-arming replaces
// any pass already pending; sign-out and Close cancel it. The delay gives the
// provider time to settle tokens before the session is read back, and the
// pass itself preserves the provisional profile on failure.
func (f *Flow) scheduleReconcile(delay time.Duration) {
	f.timerMu.Lock()
	defer f.timerMu.Unlock()

	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(delay, func() {
		select {
		case <-f.stop:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), f.config.Reconcile.Timeout)
		defer cancel()
		f.Resolve(ctx, true)
	})
}

func (f *Flow) cancelReconcile() {
	f.timerMu.Lock()
	defer f.timerMu.Unlock()

	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}
