package session

import (
	"context"
	"fmt"

	"saedportal.org/internal/gateway"
	"saedportal.org/internal/obs"
	"saedportal.org/internal/portal"
)

// Boot establishes identity from any persisted session and populates
// the public directory. It runs exactly once per process lifetime;
// re-entrant calls are ignored.
func (c *Controller) Boot(ctx context.Context) {
	if !c.booted.CompareAndSwap(false, true) {
		return
	}
	c.setLoading(true)
	defer c.setLoading(false)

	if err := c.store.Health(ctx); err != nil {
		obs.Warn("session", "backend unreachable at boot", map[string]any{"error": err.Error()})
		c.markConnectivityFault()
		return
	}

	sess, err := c.auth.Session(ctx)
	if err != nil {
		obs.Warn("session", "persisted session fetch failed", map[string]any{"error": err.Error()})
	}
	if sess != nil {
		u := c.reconcile(ctx, sess.UserID)
		if u == nil && !c.State().SchemaFault {
			// A session exists but identity could not be resolved.
			// Not fatal: fall back to guest.
			c.resetToGuest()
		}
	} else {
		c.resetToGuest()
	}

	// Always attempt the public listing and admin roster, independently
	// of the auth outcome.
	c.dir.PopulatePublic(ctx)
}

// Watch consumes the auth-event stream until ctx ends.
func (c *Controller) Watch(ctx context.Context) {
	for ev := range c.auth.Events().Subscribe(ctx) {
		c.HandleAuthEvent(ctx, ev)
	}
}

// HandleAuthEvent reacts to external sign-in/sign-out notifications.
// A SIGNED_IN arriving while a user-initiated auth action (or another
// reconciliation) is in flight is dropped so two code paths never race
// into duplicate reconciliation.
func (c *Controller) HandleAuthEvent(ctx context.Context, ev gateway.AuthEvent) {
	switch ev.Type {
	case gateway.SignedOut:
		c.resetToGuest()
		c.navigate("#/home")
	case gateway.SignedIn:
		if ev.Session == nil {
			return
		}
		if c.authInFlight.Load() || c.State().Syncing {
			return
		}
		c.reconcile(ctx, ev.Session.UserID)
	}
}

// Login authenticates directly, then reconciles the resulting session.
// Errors are surfaced to the user and returned so calling code does not
// proceed past a failed action.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	creds := struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=6"`
	}{email, password}
	if err := c.validate.Struct(creds); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	c.authInFlight.Store(true)
	defer c.authInFlight.Store(false)

	if _, err := c.auth.SignIn(ctx, email, password); err != nil {
		c.notify("Auth error: " + err.Error())
		return err
	}
	return c.finishAuth(ctx)
}

// SignupRequest carries the signup form for any role. Role-specific
// fields are optional and persisted onto the profile row; instructor
// signups attach the extension record.
type SignupRequest struct {
	Name     string      `json:"name" validate:"required"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=6"`
	Role     portal.Role `json:"role" validate:"required"`

	SecurityKey    string `json:"security_key,omitempty"`
	StateCode      string `json:"state_code,omitempty"`
	Batch          string `json:"batch,omitempty"`
	StateOfService string `json:"state_of_service,omitempty"`
	Department     string `json:"department,omitempty"`

	Instructor *portal.InstructorRecord `json:"instructor,omitempty"`
}

// Signup creates the backend auth identity, persists the role-specific
// profile, and reconciles. When the backend requires email confirmation
// (no session returned) the user is routed home without reconciling.
func (c *Controller) Signup(ctx context.Context, req SignupRequest) error {
	if err := c.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !req.Role.Valid() || req.Role == portal.RoleGuest {
		return fmt.Errorf("%w: role %q not registrable", ErrValidation, req.Role)
	}

	c.authInFlight.Store(true)
	defer c.authInFlight.Store(false)

	sess, err := c.auth.SignUp(ctx, req.Email, req.Password, map[string]string{"name": req.Name})
	if err != nil {
		c.notify("Auth error: " + err.Error())
		return err
	}

	userID := ""
	if sess != nil {
		userID = sess.UserID
	}
	if userID != "" {
		if err := c.syncer.SyncProfile(ctx, req.Role, req.user(userID)); err != nil {
			c.notify("Auth error: " + err.Error())
			return err
		}
	}
	if sess == nil {
		c.notify("Verification email sent. Please confirm your email.")
		c.navigate("#/home")
		return nil
	}
	return c.finishAuth(ctx)
}

func (req SignupRequest) user(id string) portal.User {
	u := portal.User{Profile: portal.Profile{
		ID:             id,
		Name:           req.Name,
		Email:          req.Email,
		Role:           req.Role,
		Status:         portal.DefaultApproval(req.Role),
		SecurityKey:    req.SecurityKey,
		StateCode:      req.StateCode,
		Batch:          req.Batch,
		StateOfService: req.StateOfService,
		Department:     req.Department,
	}}
	if req.Role == portal.RoleInstructor && req.Instructor != nil {
		rec := *req.Instructor
		rec.ID = id
		rec.Name = req.Name
		rec.Email = req.Email
		rec.Status = u.Status
		u.Instructor = &rec
	}
	return u
}

// finishAuth fetches the settled session, reconciles, and lands on the
// dashboard. Shared tail of Login and Signup; the in-flight guard is
// still held by the caller.
func (c *Controller) finishAuth(ctx context.Context) error {
	sess, err := c.auth.Session(ctx)
	if err != nil {
		c.notify("Auth error: " + err.Error())
		return err
	}
	if sess != nil {
		c.reconcile(ctx, sess.UserID)
		c.navigate("#/dashboard")
	}
	return nil
}

// SignOut ends the session. Demo sessions reset locally without
// touching the backend.
func (c *Controller) SignOut(ctx context.Context) error {
	if c.State().Demo {
		c.resetToGuest()
		c.navigate("#/home")
		return nil
	}
	err := c.auth.SignOut(ctx)
	c.resetToGuest()
	c.navigate("#/home")
	return err
}

// EnterDemo synthesizes an offline session with the requested role.
// Nothing touches the backend afterwards; mutations become no-ops.
func (c *Controller) EnterDemo(role portal.Role) {
	u := &portal.User{Profile: portal.Profile{
		ID:     "demo",
		Name:   "Demo " + string(role),
		Role:   role,
		Status: portal.ApprovalApproved,
	}}
	c.mu.Lock()
	c.state.Demo = true
	c.state.Role = role
	c.state.CurrentUser = u
	c.mu.Unlock()
	obs.RoleTransition(string(role))
	c.navigate("#/dashboard")
}

// SetRegistrations replaces the session's registration list, used by
// dashboards after creating an enrollment.
func (c *Controller) SetRegistrations(regs []portal.Registration) {
	c.mu.Lock()
	c.state.Registrations = append([]portal.Registration(nil), regs...)
	c.mu.Unlock()
}
