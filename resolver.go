package authgate

import (
	"context"
	"log"
	"strings"
	"time"
)

// Resolve reconciles local session state against provider truth. With
// preserveExisting the call fails open: any provider failure leaves the
// current session, provisional or not, untouched. Without it the call is
// authoritative, but only a definitive unauthenticated answer resets the
// session to signed out, and even then a pending challenge stays live so a
// half-finished sign-in survives the reset. A transient provider failure
// fails open either way.
//
// Resolve may return an error when input validation, dependency calls, or security checks fail.
// Resolve does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Flow) Resolve(ctx context.Context, preserveExisting bool) {
	if f == nil || f.provider == nil {
		return
	}
	if f.metrics != nil && f.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { f.metrics.Observe(MetricResolveLatency, time.Since(start)) }()
	}

	f.mu.RLock()
	attemptID := f.attemptID
	f.mu.RUnlock()

	principal, err := f.provider.CurrentPrincipal(ctx)
	if err != nil || principal == nil {
		signedOut := err == nil || isUnauthenticated(err)
		if !preserveExisting && signedOut {
			f.setSignedOut()
			return
		}
		f.metricInc(MetricEnrichmentFailure)
		f.emitAudit(ctx, auditEventEnrichmentFailure, false, attemptID, "", ErrEnrichmentFailed, func() map[string]string {
			return map[string]string{
				"stage": "principal",
			}
		})
		log.Print("authgate: profile enrichment skipped, provider principal unavailable")
		return
	}

	attrs, err := f.provider.UserAttributes(ctx)
	if err != nil {
		f.metricInc(MetricEnrichmentFailure)
		f.emitAudit(ctx, auditEventEnrichmentFailure, false, attemptID, principal.ID, ErrEnrichmentFailed, func() map[string]string {
			return map[string]string{
				"stage": "attributes",
			}
		})
		if preserveExisting {
			log.Print("authgate: profile enrichment skipped, provider attributes unavailable")
			return
		}
		// Authoritative resolve still counts a live principal as signed in,
		// even without attributes.
		attrs = Attributes{}
	}

	role := RoleUser
	claims, err := f.provider.SessionClaims(ctx)
	if err != nil {
		// Group claims are an enrichment detail; a signed-in user without
		// readable claims is simply not an admin.
		log.Print("authgate: session claims unavailable, defaulting role")
	} else if claims != nil {
		for _, group := range claims.Groups {
			if group == f.config.Profile.AdminGroup {
				role = RoleAdmin
				break
			}
		}
	}

	profile := buildProfile(principal, attrs, role, f.config.Profile.AssumeMFAEnabled)
	f.setAuthenticated(ctx, profile)
	f.metricInc(MetricProfileResolved)
	f.emitAudit(ctx, auditEventProfileResolved, true, attemptID, profile.ID, nil, func() map[string]string {
		return map[string]string{
			"role": string(role),
		}
	})
}

func buildProfile(principal *Principal, attrs Attributes, role Role, assumeMFA bool) *Profile {
	email := attrs[AttrEmail]
	return &Profile{
		ID:            principal.ID,
		Email:         email,
		Username:      principal.Username,
		DisplayName:   displayName(attrs, email, principal.Username),
		GivenName:     attrs[AttrGivenName],
		FamilyName:    attrs[AttrFamilyName],
		PhoneNumber:   attrs[AttrPhoneNumber],
		Role:          role,
		EmailVerified: attrs[AttrEmailVerified] == "true",
		MFAEnabled:    assumeMFA,
		CreatedAt:     attrs[AttrCreatedAt],
		UpdatedAt:     attrs[AttrUpdatedAt],
	}
}

// displayName picks the first usable name: the full name attribute, the
// given and family names joined, the email local part, then the raw
// username.
func displayName(attrs Attributes, email, username string) string {
	if name := attrs[AttrName]; name != "" {
		return name
	}
	if full := strings.TrimSpace(attrs[AttrGivenName] + " " + attrs[AttrFamilyName]); full != "" {
		return full
	}
	if email != "" {
		return emailLocalPart(email)
	}
	return username
}
