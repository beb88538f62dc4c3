// Package directory maintains the process-wide collections of
// instructors, corpers, staff and admins.
package directory

import (
	"context"
	"sync"

	"saedportal.org/internal/gateway"
	"saedportal.org/internal/obs"
	"saedportal.org/internal/portal"
)

// Cache holds the four directory collections. Refreshes replace a
// collection wholesale, but an empty or failed fetch never overwrites a
// previously non-empty collection.
type Cache struct {
	mu     sync.RWMutex
	store  gateway.Store
	sample func() []portal.InstructorRecord

	instructors []portal.InstructorRecord
	corpers     []portal.Profile
	staff       []portal.Profile
	admins      []portal.Profile

	usingSample bool
}

// Option configures Cache behavior.
type Option func(*Cache)

// WithSampleProvider installs the fallback instructor set used when the
// public directory cannot be fetched at boot.
func WithSampleProvider(fn func() []portal.InstructorRecord) Option {
	return func(c *Cache) {
		if fn != nil {
			c.sample = fn
		}
	}
}

// New constructs an empty cache over the given store.
func New(store gateway.Store, opts ...Option) *Cache {
	c := &Cache{store: store, sample: SampleInstructors}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh re-fetches all four collections concurrently. Best-effort:
// partial failure of one fetch does not block or invalidate the others,
// and errors never propagate to the caller.
func (c *Cache) Refresh(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		list, err := c.store.Instructors(ctx)
		c.applyInstructors("instructors", list, err)
	}()
	go func() {
		defer wg.Done()
		list, err := c.store.ProfilesByRole(ctx, portal.RoleCorper)
		c.applyProfiles("corpers", &c.corpers, list, err)
	}()
	go func() {
		defer wg.Done()
		list, err := c.store.ProfilesByRole(ctx, portal.RoleStaff)
		c.applyProfiles("staff", &c.staff, list, err)
	}()
	go func() {
		defer wg.Done()
		list, err := c.store.ProfilesByRole(ctx, portal.RoleAdmin)
		c.applyProfiles("admins", &c.admins, list, err)
	}()

	wg.Wait()
}

func (c *Cache) applyInstructors(name string, list []portal.InstructorRecord, err error) {
	if err != nil {
		obs.DirectoryRefresh(name, "error")
		obs.Warn("directory", "refresh failed", map[string]any{"collection": name, "error": err.Error()})
		return
	}
	if len(list) == 0 {
		obs.DirectoryRefresh(name, "empty")
		return
	}
	c.mu.Lock()
	c.instructors = list
	c.usingSample = false
	c.mu.Unlock()
	obs.DirectoryRefresh(name, "applied")
}

func (c *Cache) applyProfiles(name string, dst *[]portal.Profile, list []portal.Profile, err error) {
	if err != nil {
		obs.DirectoryRefresh(name, "error")
		obs.Warn("directory", "refresh failed", map[string]any{"collection": name, "error": err.Error()})
		return
	}
	if len(list) == 0 {
		obs.DirectoryRefresh(name, "empty")
		return
	}
	c.mu.Lock()
	*dst = list
	c.mu.Unlock()
	obs.DirectoryRefresh(name, "applied")
}

// PopulatePublic loads the approved-instructor directory and the admin
// list at boot. When the instructor fetch fails entirely the injected
// sample set takes its place, flagged as demo data.
func (c *Cache) PopulatePublic(ctx context.Context) {
	list, err := c.store.InstructorsByStatus(ctx, portal.ApprovalApproved)
	if err != nil || len(list) == 0 {
		if err != nil {
			obs.Warn("directory", "public directory fetch failed", map[string]any{"error": err.Error()})
		}
		c.mu.Lock()
		if len(c.instructors) == 0 {
			c.instructors = c.sample()
			c.usingSample = true
		}
		c.mu.Unlock()
	} else {
		c.mu.Lock()
		c.instructors = list
		c.usingSample = false
		c.mu.Unlock()
	}

	admins, err := c.store.ProfilesByRole(ctx, portal.RoleAdmin)
	if err == nil && len(admins) > 0 {
		c.mu.Lock()
		c.admins = admins
		c.mu.Unlock()
	}
}

// Instructors returns a copy of the instructor collection.
func (c *Cache) Instructors() []portal.InstructorRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]portal.InstructorRecord, len(c.instructors))
	copy(out, c.instructors)
	return out
}

// ApprovedInstructors filters the cached collection to approved listings.
func (c *Cache) ApprovedInstructors() []portal.InstructorRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []portal.InstructorRecord
	for _, rec := range c.instructors {
		if rec.Status == portal.ApprovalApproved {
			out = append(out, rec)
		}
	}
	return out
}

// InstructorByID resolves an id against the cached collection. Returns
// nil when absent; a missing id is a "not found" render, not an error.
func (c *Cache) InstructorByID(id string) *portal.InstructorRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, rec := range c.instructors {
		if rec.ID == id {
			out := rec
			return &out
		}
	}
	return nil
}

// Corpers returns a copy of the corper collection.
func (c *Cache) Corpers() []portal.Profile { return c.copyProfiles(&c.corpers) }

// Staff returns a copy of the staff collection.
func (c *Cache) Staff() []portal.Profile { return c.copyProfiles(&c.staff) }

// Admins returns a copy of the admin collection.
func (c *Cache) Admins() []portal.Profile { return c.copyProfiles(&c.admins) }

// AdminExists reports whether any admin account is known; it gates
// admin self-registration.
func (c *Cache) AdminExists() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.admins) > 0
}

// UsingSampleData reports whether the instructor collection is the
// bundled fallback rather than live data.
func (c *Cache) UsingSampleData() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.usingSample
}

func (c *Cache) copyProfiles(src *[]portal.Profile) []portal.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]portal.Profile, len(*src))
	copy(out, *src)
	return out
}
