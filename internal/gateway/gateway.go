// Package gateway defines the backend contracts consumed by the portal
// engine: row-level storage for the three record kinds, the auth
// collaborator, and the auth-event notification stream.
package gateway

import (
	"context"
	"time"

	"saedportal.org/internal/portal"
)

// Store describes persistence operations over the portal tables.
// Lookups by id return (nil, nil) when no row exists; "not yet created"
// is a legitimate state distinct from any error.
type Store interface {
	// Health reports backend reachability. A reachable backend with
	// missing relations is still healthy; provisioning is detected later.
	Health(ctx context.Context) error

	ProfileByID(ctx context.Context, id string) (*portal.Profile, error)
	ProfilesByRole(ctx context.Context, role portal.Role) ([]portal.Profile, error)
	UpsertProfile(ctx context.Context, p portal.Profile) error
	UpdateProfileStatus(ctx context.Context, id string, status portal.ApprovalStatus) error

	InstructorByID(ctx context.Context, id string) (*portal.InstructorRecord, error)
	Instructors(ctx context.Context) ([]portal.InstructorRecord, error)
	InstructorsByStatus(ctx context.Context, status portal.ApprovalStatus) ([]portal.InstructorRecord, error)
	UpsertInstructor(ctx context.Context, rec portal.InstructorRecord) error
	UpdateInstructorStatus(ctx context.Context, id string, status portal.ApprovalStatus) error

	RegistrationsByCorper(ctx context.Context, corperID string) ([]portal.Registration, error)
	RegistrationsByInstructor(ctx context.Context, instructorID string) ([]portal.Registration, error)
	CreateRegistration(ctx context.Context, reg *portal.Registration) error
	// UpdateRegistrationStatus is a compare-and-set: the write applies
	// only while the stored status still equals from, otherwise
	// ErrStatusConflict is returned and nothing changes.
	UpdateRegistrationStatus(ctx context.Context, id string, from, to portal.RegistrationStatus) error
}

// Session is the persisted authentication state for one identity.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Auth is the authentication collaborator. SignUp may return (nil, nil)
// when the backend requires email confirmation before a session exists.
// Session returns (nil, nil) when no session is persisted.
type Auth interface {
	Session(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, meta map[string]string) (*Session, error)
	SignOut(ctx context.Context) error
	Events() *Events
}
