package session

import (
	"context"

	"saedportal.org/internal/gateway"
	"saedportal.org/internal/obs"
	"saedportal.org/internal/portal"
)

// reconcile assembles the unified user record for userID, retrying a
// bounded number of times while the profile row is not yet visible.
// It returns nil when no usable identity was resolved; callers check
// the fault flags to distinguish guest from fault.
func (c *Controller) reconcile(ctx context.Context, userID string) *portal.User {
	c.mu.Lock()
	c.state.Syncing = true
	c.state.ConnectivityFault = false
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.state.Syncing = false
		c.mu.Unlock()
	}()

	var profile *portal.Profile
	for attempt := 0; attempt < c.retry.Attempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.retry.Delay); err != nil {
				return nil
			}
		}
		obs.ReconcileAttempt()
		p, err := c.store.ProfileByID(ctx, userID)
		if err != nil {
			if gateway.IsSchemaFault(err) {
				// Missing relation: retrying cannot help.
				c.markSchemaFault()
				return nil
			}
			if gateway.IsConnectivityFault(err) {
				c.markConnectivityFault()
				return nil
			}
			obs.Warn("session", "profile fetch failed", map[string]any{"user_id": userID, "error": err.Error()})
			continue
		}
		if p != nil {
			profile = p
			break
		}
		// No row, no error: the signup trigger may not have run yet.
	}
	if profile == nil {
		return nil
	}

	user := portal.User{Profile: *profile}
	if profile.Role == portal.RoleInstructor {
		rec, err := c.store.InstructorByID(ctx, userID)
		if err != nil {
			if gateway.IsSchemaFault(err) {
				c.markSchemaFault()
				return nil
			}
			if gateway.IsConnectivityFault(err) {
				c.markConnectivityFault()
				return nil
			}
			obs.Warn("session", "instructor extension fetch failed", map[string]any{"user_id": userID, "error": err.Error()})
		}
		if rec != nil {
			user = portal.MergeInstructor(*profile, *rec)
		}
	}

	c.mu.Lock()
	c.state.CurrentUser = &user
	c.state.Role = profile.Role
	c.mu.Unlock()
	obs.RoleTransition(string(profile.Role))

	// Paired post-effects. Failure of either must not unset the
	// now-resolved role and user.
	c.loadRegistrations(ctx, user.ID, profile.Role)
	c.dir.Refresh(ctx)

	return &user
}

// loadRegistrations fetches the role-scoped enrollment list. Corpers
// see their own enrollments, instructors the ones addressed to them;
// other roles get none from this path.
func (c *Controller) loadRegistrations(ctx context.Context, userID string, role portal.Role) {
	var (
		regs []portal.Registration
		err  error
	)
	switch role {
	case portal.RoleCorper:
		regs, err = c.store.RegistrationsByCorper(ctx, userID)
	case portal.RoleInstructor:
		regs, err = c.store.RegistrationsByInstructor(ctx, userID)
	default:
		return
	}
	if err != nil {
		obs.Warn("session", "registrations fetch failed", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}
	c.mu.Lock()
	c.state.Registrations = regs
	c.mu.Unlock()
}
