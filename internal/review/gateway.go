// Package review applies approval and enrollment status transitions
// through the backend and propagates them via directory refresh rather
// than optimistic local mutation.
package review

import (
	"context"
	"fmt"
	"time"

	"saedportal.org/internal/audit"
	"saedportal.org/internal/directory"
	"saedportal.org/internal/gateway"
	"saedportal.org/internal/ids"
	"saedportal.org/internal/portal"
)

// MutationError reports a write that succeeded partially: an earlier
// write is durable while the named one failed. No automatic rollback is
// attempted.
type MutationError struct {
	Table string
	Err   error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("review: %s update failed after a prior write succeeded: %v", e.Table, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Gateway owns the status mutation paths.
type Gateway struct {
	store  gateway.Store
	dir    *directory.Cache
	demo   func() bool
	notify func(msg string)
}

// Option configures Gateway behavior.
type Option func(*Gateway)

// WithDemoCheck installs the demo-mode probe. When it reports true all
// mutations become no-ops that only emit a confirmation message.
func WithDemoCheck(fn func() bool) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.demo = fn
		}
	}
}

// WithNotifier routes confirmation and failure messages to the user.
func WithNotifier(fn func(msg string)) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.notify = fn
		}
	}
}

// New constructs the gateway.
func New(store gateway.Store, dir *directory.Cache, opts ...Option) *Gateway {
	g := &Gateway{
		store:  store,
		dir:    dir,
		demo:   func() bool { return false },
		notify: func(string) {},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetRegistrationStatus moves an enrollment from its current status to
// the requested one, enforcing transition legality. The write is a
// compare-and-set against the stored status, so a caller holding a
// stale view cannot smuggle in a transition the stored row forbids.
// The write is durable server-side before the dependent refresh runs.
func (g *Gateway) SetRegistrationStatus(ctx context.Context, id string, current, next portal.RegistrationStatus) error {
	if !portal.CanTransition(current, next) {
		return fmt.Errorf("%w: %s -> %s", portal.ErrInvalidTransition, current, next)
	}
	if g.demo() {
		g.notify("Demo Mode: Simulated Update")
		return nil
	}
	if err := g.store.UpdateRegistrationStatus(ctx, id, current, next); err != nil {
		g.notify("Update Failed: " + err.Error())
		return err
	}
	_ = audit.LogEvent(ctx, "registration.status", map[string]any{
		"registration_id": id,
		"from":            string(current),
		"to":              string(next),
	})
	g.notify("Status updated.")
	g.dir.Refresh(ctx)
	return nil
}

// SetUserStatus applies an approval decision to a user record. For
// instructors both the generic profile and the extension row carry the
// status; a failure on the second write after the first succeeded is a
// reportable inconsistency, returned as MutationError.
func (g *Gateway) SetUserStatus(ctx context.Context, role portal.Role, id string, status portal.ApprovalStatus) error {
	if g.demo() {
		g.notify("Demo Mode: Simulated Update")
		return nil
	}
	if err := g.store.UpdateProfileStatus(ctx, id, status); err != nil {
		g.notify("Update Failed: " + err.Error())
		return err
	}
	if role == portal.RoleInstructor {
		if err := g.store.UpdateInstructorStatus(ctx, id, status); err != nil {
			merr := &MutationError{Table: "instructors", Err: err}
			g.notify("Update Failed: " + merr.Error())
			return merr
		}
	}
	_ = audit.LogEvent(ctx, "user.status", map[string]any{
		"user_id": id,
		"role":    string(role),
		"status":  string(status),
	})
	g.notify("Status updated.")
	g.dir.Refresh(ctx)
	return nil
}

// CreateRegistration records a corper's enrollment with an instructor.
func (g *Gateway) CreateRegistration(ctx context.Context, reg *portal.Registration) error {
	if g.demo() {
		g.notify("Demo Mode: Simulated Enrollment")
		return nil
	}
	if reg.ID == "" {
		reg.ID = ids.New()
	}
	if reg.Date.IsZero() {
		reg.Date = time.Now().UTC()
	}
	if reg.Status == "" {
		reg.Status = portal.RegistrationPending
	}
	if err := g.store.CreateRegistration(ctx, reg); err != nil {
		g.notify("Enrollment Failed: " + err.Error())
		return err
	}
	_ = audit.LogEvent(ctx, "registration.created", map[string]any{
		"registration_id": reg.ID,
		"corper_id":       reg.CorperID,
		"instructor_id":   reg.InstructorID,
		"skill":           reg.SkillName,
	})
	g.notify(fmt.Sprintf("Enrolled in %s.", reg.SkillName))
	return nil
}

// SyncProfile upserts the generic profile and, for instructors, the
// extension row. A partial failure leaves the profile write in place
// and reports the extension failure as MutationError.
func (g *Gateway) SyncProfile(ctx context.Context, role portal.Role, u portal.User) error {
	if g.demo() {
		g.notify("Demo Mode: Simulated Update")
		return nil
	}
	p := u.Profile
	p.Role = role
	if p.Status == "" {
		p.Status = portal.DefaultApproval(role)
	}
	if err := g.store.UpsertProfile(ctx, p); err != nil {
		return err
	}
	if role == portal.RoleInstructor {
		rec := portal.InstructorRecord{
			ID:     p.ID,
			Name:   p.Name,
			Email:  p.Email,
			Status: p.Status,
		}
		if u.Instructor != nil {
			rec = *u.Instructor
			rec.ID = p.ID
			if rec.Status == "" {
				rec.Status = p.Status
			}
		}
		if err := g.store.UpsertInstructor(ctx, rec); err != nil {
			return &MutationError{Table: "instructors", Err: err}
		}
	}
	return nil
}
