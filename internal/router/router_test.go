package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"saedportal.org/internal/directory"
	"saedportal.org/internal/gateway"
	"saedportal.org/internal/portal"
	"saedportal.org/internal/session"
)

func testCache(t *testing.T) *directory.Cache {
	t.Helper()
	ctx := context.Background()
	mem := gateway.NewInMemory()
	if err := mem.UpsertInstructor(ctx, portal.InstructorRecord{ID: "inst-1", Name: "Michael Ade", Status: portal.ApprovalApproved}); err != nil {
		t.Fatal(err)
	}
	c := directory.New(mem)
	c.Refresh(ctx)
	return c
}

func TestNormalizeFragment(t *testing.T) {
	for _, frag := range []string{"", "#", "#/"} {
		r := New(frag)
		assert.Equal(t, "#/home", r.Current())
	}
	r := New("#/dashboard")
	assert.Equal(t, "#/dashboard", r.Current())
}

func TestSchemaFaultOverridesEveryRoute(t *testing.T) {
	dir := testCache(t)
	st := session.State{SchemaFault: true, ConnectivityFault: true}

	for _, frag := range []string{"#/home", "#/dashboard", "#/directory", "#/instructor/inst-1", "#/register-admin"} {
		r := New(frag)
		res := r.Resolve(st, dir)
		assert.Equal(t, ViewSchemaSetup, res.View, "fragment %s", frag)
	}
}

func TestConnectivityFaultOverridesWhenNoSchemaFault(t *testing.T) {
	dir := testCache(t)
	r := New("#/dashboard")
	res := r.Resolve(session.State{ConnectivityFault: true}, dir)
	assert.Equal(t, ViewOffline, res.View)
}

func TestDemoModeIgnoresFaults(t *testing.T) {
	dir := testCache(t)
	r := New("#/dashboard")
	st := session.State{SchemaFault: true, Demo: true, Role: portal.RoleAdmin}
	res := r.Resolve(st, dir)
	assert.Equal(t, ViewDashboard, res.View)
	assert.Equal(t, portal.RoleAdmin, res.Role)
}

func TestInstructorDetailResolution(t *testing.T) {
	dir := testCache(t)

	r := New("#/instructor/inst-1")
	res := r.Resolve(session.State{}, dir)
	assert.Equal(t, ViewInstructorDetail, res.View)
	if assert.NotNil(t, res.Instructor) {
		assert.Equal(t, "Michael Ade", res.Instructor.Name)
	}

	r = New("#/instructor/ghost")
	res = r.Resolve(session.State{}, dir)
	assert.Equal(t, ViewNotFound, res.View)
}

func TestDashboardSubDispatch(t *testing.T) {
	dir := testCache(t)
	r := New("#/dashboard")

	res := r.Resolve(session.State{Syncing: true, Role: portal.RoleCorper}, dir)
	assert.Equal(t, ViewSyncing, res.View)

	res = r.Resolve(session.State{Role: portal.RoleCorper}, dir)
	assert.Equal(t, ViewDashboard, res.View)
	assert.Equal(t, portal.RoleCorper, res.Role)

	res = r.Resolve(session.State{Role: portal.RoleGuest}, dir)
	assert.Equal(t, ViewDashboard, res.View)
	assert.Equal(t, portal.RoleGuest, res.Role)
}

func TestSkillFilterIsOneShot(t *testing.T) {
	dir := testCache(t)
	r := New("#/dashboard")
	r.CarrySkillFilter("Web Design")
	r.Navigate("#/directory")

	res := r.Resolve(session.State{}, dir)
	assert.Equal(t, ViewDirectory, res.View)
	assert.Equal(t, "Web Design", res.SkillFilter)

	// Consumed: a later unrelated navigation must not re-apply it.
	r.Navigate("#/home")
	r.Navigate("#/directory")
	res = r.Resolve(session.State{}, dir)
	assert.Empty(t, res.SkillFilter)
}

func TestListenersFireForBothNavigationPaths(t *testing.T) {
	r := New("#/home")
	var seen []string
	r.OnChange(func(frag string) { seen = append(seen, frag) })

	r.Navigate("#/directory")
	r.HandleFragmentChange("#/dashboard")

	assert.Equal(t, []string{"#/directory", "#/dashboard"}, seen)
}

func TestMapAliasesDirectory(t *testing.T) {
	dir := testCache(t)
	r := New("#/map")
	assert.Equal(t, ViewDirectory, r.Resolve(session.State{}, dir).View)
}

func TestRegisterAdminCarriesAdminExists(t *testing.T) {
	ctx := context.Background()
	mem := gateway.NewInMemory()
	dir := directory.New(mem)
	r := New("#/register-admin")

	res := r.Resolve(session.State{}, dir)
	assert.False(t, res.AdminExists)

	if err := mem.UpsertProfile(ctx, portal.Profile{ID: "a-1", Role: portal.RoleAdmin}); err != nil {
		t.Fatal(err)
	}
	dir.Refresh(ctx)
	res = r.Resolve(session.State{}, dir)
	assert.True(t, res.AdminExists)
}
