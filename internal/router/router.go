// Package router maps the location fragment to a view, honoring fault
// precedence and role-gated dashboard dispatch.
package router

import (
	"strings"
	"sync"

	"saedportal.org/internal/directory"
	"saedportal.org/internal/portal"
	"saedportal.org/internal/session"
)

// View enumerates the fixed set of renderable states.
type View string

const (
	ViewHome               View = "home"
	ViewDirectory          View = "directory"
	ViewInstructorDetail   View = "instructor-detail"
	ViewNotFound           View = "not-found"
	ViewRegisterCorper     View = "register-corper"
	ViewRegisterInstructor View = "register-instructor"
	ViewRegisterStaff      View = "register-staff"
	ViewRegisterAdmin      View = "register-admin"
	ViewDashboard          View = "dashboard"
	ViewSyncing            View = "syncing"
	ViewSchemaSetup        View = "schema-setup"
	ViewOffline            View = "offline"
)

// Resolution is the render decision for the current fragment.
type Resolution struct {
	View View

	// Instructor is set for ViewInstructorDetail.
	Instructor *portal.InstructorRecord

	// Role drives dashboard sub-dispatch for ViewDashboard.
	Role portal.Role

	// SkillFilter is the one-shot filter carried into ViewDirectory.
	SkillFilter string

	// AdminExists gates admin self-registration on ViewRegisterAdmin.
	AdminExists bool
}

const defaultFragment = "#/home"

// Router tracks the current fragment and the transient cross-view
// skill filter. Both programmatic navigation and external fragment
// changes funnel through the same listeners.
type Router struct {
	mu          sync.Mutex
	fragment    string
	skillFilter string
	listeners   []func(fragment string)
}

// New starts at the given fragment; empty or bare fragments normalize
// to home.
func New(initial string) *Router {
	return &Router{fragment: normalize(initial)}
}

func normalize(fragment string) string {
	if fragment == "" || fragment == "#" || fragment == "#/" {
		return defaultFragment
	}
	return fragment
}

// OnChange registers a listener fired on every fragment change.
func (r *Router) OnChange(fn func(fragment string)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Navigate sets the fragment programmatically.
func (r *Router) Navigate(fragment string) {
	r.setFragment(fragment)
}

// HandleFragmentChange is invoked for external changes (back/forward
// navigation). It shares the Navigate path.
func (r *Router) HandleFragmentChange(fragment string) {
	r.setFragment(fragment)
}

func (r *Router) setFragment(fragment string) {
	fragment = normalize(fragment)
	r.mu.Lock()
	r.fragment = fragment
	listeners := append(([]func(string))(nil), r.listeners...)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(fragment)
	}
}

// Current returns the active fragment.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fragment
}

// CarrySkillFilter stages a one-shot filter for the next directory
// render, as passed from the corper dashboard.
func (r *Router) CarrySkillFilter(skill string) {
	r.mu.Lock()
	r.skillFilter = skill
	r.mu.Unlock()
}

func (r *Router) takeSkillFilter() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.skillFilter
	r.skillFilter = ""
	return s
}

// Resolve maps the current fragment and session state to a view.
// Precedence: schema fault, then connectivity fault (both ignored in
// demo mode), then the fragment.
func (r *Router) Resolve(st session.State, dir *directory.Cache) Resolution {
	if st.SchemaFault && !st.Demo {
		return Resolution{View: ViewSchemaSetup}
	}
	if st.ConnectivityFault && !st.Demo {
		return Resolution{View: ViewOffline}
	}

	fragment := r.Current()

	if id, ok := strings.CutPrefix(fragment, "#/instructor/"); ok {
		rec := dir.InstructorByID(id)
		if rec == nil {
			return Resolution{View: ViewNotFound}
		}
		return Resolution{View: ViewInstructorDetail, Instructor: rec}
	}

	switch fragment {
	case "#/register-corper":
		return Resolution{View: ViewRegisterCorper}
	case "#/register-instructor":
		return Resolution{View: ViewRegisterInstructor}
	case "#/register-staff":
		return Resolution{View: ViewRegisterStaff}
	case "#/register-admin":
		return Resolution{View: ViewRegisterAdmin, AdminExists: dir.AdminExists()}
	case "#/map", "#/directory":
		return Resolution{View: ViewDirectory, SkillFilter: r.takeSkillFilter()}
	case "#/dashboard":
		if st.Syncing {
			return Resolution{View: ViewSyncing}
		}
		return Resolution{View: ViewDashboard, Role: st.Role}
	default:
		return Resolution{View: ViewHome}
	}
}
