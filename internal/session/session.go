// Package session owns process-wide identity state: the current role,
// the unified user record, and the fault flags that gate every view.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"saedportal.org/internal/directory"
	"saedportal.org/internal/gateway"
	"saedportal.org/internal/obs"
	"saedportal.org/internal/portal"
)

// State is a snapshot of the session singleton. Invariant: once Syncing
// is false, Role != GUEST implies CurrentUser != nil. SchemaFault and
// ConnectivityFault are mutually exclusive and survive until a full
// reload or a demo-mode override.
type State struct {
	Role              portal.Role
	CurrentUser       *portal.User
	Registrations     []portal.Registration
	Loading           bool
	Syncing           bool
	SchemaFault       bool
	ConnectivityFault bool
	Demo              bool
}

// ErrValidation marks input rejected locally, before any backend call.
var ErrValidation = errors.New("session: validation failed")

// ProfileSyncer persists a role-specific profile (generic row plus, for
// instructors, the extension row).
type ProfileSyncer interface {
	SyncProfile(ctx context.Context, role portal.Role, u portal.User) error
}

// RetryPolicy bounds the reconciler's profile fetch loop.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

var defaultRetry = RetryPolicy{Attempts: 3, Delay: 800 * time.Millisecond}

// Controller drives the session across its three triggers: boot, the
// auth-event stream, and user-initiated auth actions.
type Controller struct {
	mu    sync.Mutex
	state State

	store  gateway.Store
	auth   gateway.Auth
	dir    *directory.Cache
	syncer ProfileSyncer

	retry    RetryPolicy
	sleep    func(ctx context.Context, d time.Duration) error
	notify   func(msg string)
	navigate func(fragment string)
	validate *validator.Validate

	booted       atomic.Bool
	authInFlight atomic.Bool
}

// Option configures Controller behavior.
type Option func(*Controller)

// WithRetryPolicy overrides the reconciler's retry bounds.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Controller) {
		if p.Attempts > 0 {
			c.retry = p
		}
	}
}

// WithSleeper substitutes the inter-attempt pause, letting tests run
// the retry loop against a fake clock.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithNotifier routes user-facing messages (toasts, auth errors).
func WithNotifier(fn func(msg string)) Option {
	return func(c *Controller) {
		if fn != nil {
			c.notify = fn
		}
	}
}

// WithNavigator hooks programmatic navigation into the router.
func WithNavigator(fn func(fragment string)) Option {
	return func(c *Controller) {
		if fn != nil {
			c.navigate = fn
		}
	}
}

// New constructs the controller. The syncer handles profile persistence
// on signup and instructor edits.
func New(store gateway.Store, auth gateway.Auth, dir *directory.Cache, syncer ProfileSyncer, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		auth:   auth,
		dir:    dir,
		syncer: syncer,
		retry:  defaultRetry,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
		notify: func(msg string) {
			obs.LogJSON(map[string]any{"level": "info", "component": "session", "msg": msg})
		},
		navigate: func(string) {},
		validate: validator.New(),
	}
	c.state.Role = portal.RoleGuest
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	if c.state.CurrentUser != nil {
		u := *c.state.CurrentUser
		st.CurrentUser = &u
	}
	st.Registrations = append([]portal.Registration(nil), c.state.Registrations...)
	return st
}

func (c *Controller) setLoading(v bool) {
	c.mu.Lock()
	c.state.Loading = v
	c.mu.Unlock()
}

func (c *Controller) markSchemaFault() {
	c.mu.Lock()
	c.state.SchemaFault = true
	c.state.ConnectivityFault = false
	c.mu.Unlock()
	obs.Fault("schema")
}

func (c *Controller) markConnectivityFault() {
	c.mu.Lock()
	c.state.ConnectivityFault = true
	c.state.SchemaFault = false
	c.mu.Unlock()
	obs.Fault("connectivity")
}

func (c *Controller) resetToGuest() {
	c.mu.Lock()
	c.state.Role = portal.RoleGuest
	c.state.CurrentUser = nil
	c.state.Registrations = nil
	c.state.Demo = false
	c.mu.Unlock()
}
