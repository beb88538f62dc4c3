package portal

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to RegistrationStatus
		ok       bool
	}{
		{RegistrationPending, RegistrationAccepted, true},
		{RegistrationPending, RegistrationRejected, true},
		{RegistrationAccepted, RegistrationCompleted, true},
		{RegistrationCompleted, RegistrationAccepted, true},
		{RegistrationPending, RegistrationCompleted, false},
		{RegistrationRejected, RegistrationAccepted, false},
		{RegistrationRejected, RegistrationPending, false},
		{RegistrationCompleted, RegistrationPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestMergeInstructorExtensionWins(t *testing.T) {
	p := Profile{
		ID:     "u-1",
		Name:   "Stale Name",
		Email:  "stale@example.com",
		Role:   RoleInstructor,
		Status: ApprovalPending,
	}
	rec := InstructorRecord{
		ID:       "u-1",
		Name:     "Michael Ade",
		Email:    "michael.ade@nysc.gov.ng",
		Headline: "WEB DESIGNER | SOFTWARE DEV.",
		Status:   ApprovalApproved,
	}
	u := MergeInstructor(p, rec)
	if u.Name != "Michael Ade" {
		t.Fatalf("name not overridden: %s", u.Name)
	}
	if u.Email != "michael.ade@nysc.gov.ng" {
		t.Fatalf("email not overridden: %s", u.Email)
	}
	if u.Status != ApprovalApproved {
		t.Fatalf("status not overridden: %s", u.Status)
	}
	if u.Role != RoleInstructor {
		t.Fatalf("role lost in merge: %s", u.Role)
	}
	if u.Instructor == nil || u.Instructor.Headline != rec.Headline {
		t.Fatal("extension record not attached")
	}
}

func TestMergeInstructorKeepsProfileWhenExtensionEmpty(t *testing.T) {
	p := Profile{ID: "u-2", Name: "Ada", Email: "ada@example.com", Status: ApprovalApproved}
	u := MergeInstructor(p, InstructorRecord{ID: "u-2"})
	if u.Name != "Ada" || u.Email != "ada@example.com" || u.Status != ApprovalApproved {
		t.Fatalf("profile fields clobbered by empty extension: %+v", u.Profile)
	}
}

func TestApprovalStatusValid(t *testing.T) {
	for _, s := range []ApprovalStatus{ApprovalPending, ApprovalApproved, ApprovalRejected} {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if ApprovalStatus("SUPERSEDED").Valid() || ApprovalStatus("").Valid() {
		t.Fatal("unknown statuses must not validate")
	}
}

func TestDefaultApproval(t *testing.T) {
	if DefaultApproval(RoleAdmin) != ApprovalApproved {
		t.Fatal("admin should self-approve")
	}
	for _, r := range []Role{RoleInstructor, RoleCorper, RoleStaff} {
		if DefaultApproval(r) != ApprovalPending {
			t.Fatalf("%s should default to pending", r)
		}
	}
}
