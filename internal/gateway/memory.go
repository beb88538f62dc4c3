package gateway

import (
	"context"
	"sort"
	"sync"
	"time"

	"saedportal.org/internal/ids"
	"saedportal.org/internal/portal"
)

// InMemory implements Store and Auth with in-process concurrency safety.
// It backs package tests and the offline demo; nothing is durable.
type InMemory struct {
	mu            sync.RWMutex
	profiles      map[string]portal.Profile
	instructors   map[string]portal.InstructorRecord
	registrations map[string]portal.Registration
	accounts      map[string]memAccount // keyed by email
	session       *Session
	events        *Events
}

type memAccount struct {
	id       string
	password string
	name     string
}

// NewInMemory creates an empty in-memory gateway.
func NewInMemory() *InMemory {
	return &InMemory{
		profiles:      make(map[string]portal.Profile),
		instructors:   make(map[string]portal.InstructorRecord),
		registrations: make(map[string]portal.Registration),
		accounts:      make(map[string]memAccount),
		events:        NewEvents(),
	}
}

var (
	_ Store = (*InMemory)(nil)
	_ Auth  = (*InMemory)(nil)
)

func (m *InMemory) Health(ctx context.Context) error { return nil }

func (m *InMemory) ProfileByID(ctx context.Context, id string) (*portal.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *InMemory) ProfilesByRole(ctx context.Context, role portal.Role) ([]portal.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []portal.Profile
	for _, p := range m.profiles {
		if p.Role == role {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (m *InMemory) UpsertProfile(ctx context.Context, p portal.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = time.Now().UTC()
	m.profiles[p.ID] = p
	return nil
}

func (m *InMemory) UpdateProfileStatus(ctx context.Context, id string, status portal.ApprovalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	m.profiles[id] = p
	return nil
}

func (m *InMemory) InstructorByID(ctx context.Context, id string) (*portal.InstructorRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.instructors[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *InMemory) Instructors(ctx context.Context) ([]portal.InstructorRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]portal.InstructorRecord, 0, len(m.instructors))
	for _, rec := range m.instructors {
		res = append(res, rec)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (m *InMemory) InstructorsByStatus(ctx context.Context, status portal.ApprovalStatus) ([]portal.InstructorRecord, error) {
	all, _ := m.Instructors(ctx)
	var res []portal.InstructorRecord
	for _, rec := range all {
		if rec.Status == status {
			res = append(res, rec)
		}
	}
	return res, nil
}

func (m *InMemory) UpsertInstructor(ctx context.Context, rec portal.InstructorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.instructors[rec.ID] = rec
	return nil
}

func (m *InMemory) UpdateInstructorStatus(ctx context.Context, id string, status portal.ApprovalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.instructors[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	m.instructors[id] = rec
	return nil
}

func (m *InMemory) RegistrationsByCorper(ctx context.Context, corperID string) ([]portal.Registration, error) {
	return m.listRegistrations(func(r portal.Registration) bool { return r.CorperID == corperID })
}

func (m *InMemory) RegistrationsByInstructor(ctx context.Context, instructorID string) ([]portal.Registration, error) {
	return m.listRegistrations(func(r portal.Registration) bool { return r.InstructorID == instructorID })
}

func (m *InMemory) listRegistrations(match func(portal.Registration) bool) ([]portal.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []portal.Registration
	for _, r := range m.registrations {
		if match(r) {
			res = append(res, r)
		}
	}
	// Newest first, matching the backing query's order.
	sort.Slice(res, func(i, j int) bool { return res[i].Date.After(res[j].Date) })
	return res, nil
}

func (m *InMemory) CreateRegistration(ctx context.Context, reg *portal.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reg.ID == "" {
		reg.ID = ids.New()
	}
	if reg.Date.IsZero() {
		reg.Date = time.Now().UTC()
	}
	if reg.Status == "" {
		reg.Status = portal.RegistrationPending
	}
	m.registrations[reg.ID] = *reg
	return nil
}

func (m *InMemory) UpdateRegistrationStatus(ctx context.Context, id string, from, to portal.RegistrationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.registrations[id]
	if !ok {
		return ErrNotFound
	}
	if reg.Status != from {
		return ErrStatusConflict
	}
	reg.Status = to
	m.registrations[id] = reg
	return nil
}

// --- Auth ---

func (m *InMemory) Session(ctx context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *InMemory) SignIn(ctx context.Context, email, password string) (*Session, error) {
	m.mu.Lock()
	acct, ok := m.accounts[email]
	if !ok || acct.password != password {
		m.mu.Unlock()
		return nil, ErrInvalidCredentials
	}
	sess := &Session{
		UserID:    acct.id,
		Email:     email,
		Token:     ids.New(),
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}
	m.session = sess
	m.mu.Unlock()

	m.events.Publish(AuthEvent{Type: SignedIn, Session: sess})
	s := *sess
	return &s, nil
}

func (m *InMemory) SignUp(ctx context.Context, email, password string, meta map[string]string) (*Session, error) {
	m.mu.Lock()
	if _, ok := m.accounts[email]; ok {
		m.mu.Unlock()
		return nil, ErrEmailTaken
	}
	acct := memAccount{id: ids.New(), password: password, name: meta["name"]}
	m.accounts[email] = acct
	sess := &Session{
		UserID:    acct.id,
		Email:     email,
		Token:     ids.New(),
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}
	m.session = sess
	m.mu.Unlock()

	m.events.Publish(AuthEvent{Type: SignedIn, Session: sess})
	s := *sess
	return &s, nil
}

func (m *InMemory) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	m.events.Publish(AuthEvent{Type: SignedOut})
	return nil
}

func (m *InMemory) Events() *Events { return m.events }
