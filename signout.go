package authgate

import (
	"context"
	"log"
)

// SignOut ends the provider session and resets local state. The local reset
// happens even when the provider call fails: a user who asked to sign out is
// signed out from this process's point of view regardless.
//
// SignOut may return an error when input validation, dependency calls, or security checks fail.
// SignOut does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) SignOut(ctx context.Context) error {
	if f == nil || f.provider == nil {
		return ErrFlowNotReady
	}

	err := f.provider.SignOut(ctx)
	if err != nil {
		log.Print("authgate: provider sign out failed")
	}

	f.setUnauthenticated(ctx)
	f.metricInc(MetricSignOut)
	f.emitAudit(ctx, auditEventSignOut, err == nil, "", "", err, nil)
	return err
}
