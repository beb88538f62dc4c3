package portal

import (
	"errors"
	"time"
)

// Role identifies which dashboard and permissions a user gets.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleInstructor Role = "INSTRUCTOR"
	RoleCorper     Role = "CORPER"
	RoleStaff      Role = "STAFF"
	RoleGuest      Role = "GUEST"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleCorper, RoleStaff, RoleGuest:
		return true
	}
	return false
}

// ApprovalStatus gates whether a non-admin role may access its dashboard.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Valid reports whether the status is one of the known values.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// DefaultApproval returns the status a freshly created profile gets.
// Admins self-approve; every other role waits for review.
func DefaultApproval(role Role) ApprovalStatus {
	if role == RoleAdmin {
		return ApprovalApproved
	}
	return ApprovalPending
}

// RegistrationStatus tracks a corper's enrollment with an instructor.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "PENDING"
	RegistrationAccepted  RegistrationStatus = "ACCEPTED"
	RegistrationRejected  RegistrationStatus = "REJECTED"
	RegistrationCompleted RegistrationStatus = "COMPLETED"
)

// ErrInvalidTransition is returned for enrollment status changes outside
// the action surface (e.g. PENDING directly to COMPLETED).
var ErrInvalidTransition = errors.New("portal: invalid status transition")

// CanTransition reports whether an enrollment may move from one status to
// another. COMPLETED is reversible back to ACCEPTED (the "undo" action);
// REJECTED is terminal.
func CanTransition(from, to RegistrationStatus) bool {
	switch from {
	case RegistrationPending:
		return to == RegistrationAccepted || to == RegistrationRejected
	case RegistrationAccepted:
		return to == RegistrationCompleted
	case RegistrationCompleted:
		return to == RegistrationAccepted
	}
	return false
}

// Location is the geographic point attached to an instructor listing.
// Stored as a single JSONB column, hence the compact field names.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
	State   string  `json:"state"`
	LGA     string  `json:"lga"`
}

// Profile is the generic identity record shared by every role.
type Profile struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Role           Role           `json:"role"`
	Status         ApprovalStatus `json:"status"`
	SecurityKey    string         `json:"security_key,omitempty"`
	StateCode      string         `json:"state_code,omitempty"`
	Batch          string         `json:"batch,omitempty"`
	StateOfService string         `json:"state_of_service,omitempty"`
	Department     string         `json:"department,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// InstructorRecord is the role extension row backing directory listings.
type InstructorRecord struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Headline    string         `json:"headline"`
	About       string         `json:"about"`
	Skills      []string       `json:"skills"`
	PhoneNumber string         `json:"phone_number"`
	ProfilePic  string         `json:"profile_pic"`
	CoverImage  string         `json:"cover_image"`
	Location    Location       `json:"location"`
	Status      ApprovalStatus `json:"status"`
	Rating      float64        `json:"rating"`
	ReviewCount int            `json:"review_count"`
	LinkedInURL string         `json:"linked_in_url"`
	CreatedAt   time.Time      `json:"created_at"`
}

// User is the unified record for the authenticated identity: the generic
// profile merged, for instructors, with their extension row.
type User struct {
	Profile
	Instructor *InstructorRecord `json:"instructor,omitempty"`
}

// MergeInstructor combines a profile with its extension row. Extension
// fields win over profile namesakes when the extension carries a value.
func MergeInstructor(p Profile, rec InstructorRecord) User {
	u := User{Profile: p, Instructor: &rec}
	if rec.Name != "" {
		u.Name = rec.Name
	}
	if rec.Email != "" {
		u.Email = rec.Email
	}
	if rec.Status != "" {
		u.Status = rec.Status
	}
	return u
}

// Registration is a corper's enrollment in an instructor's training path.
type Registration struct {
	ID           string             `json:"id"`
	CorperID     string             `json:"corper_id"`
	CorperName   string             `json:"corper_name"`
	InstructorID string             `json:"instructor_id"`
	SkillName    string             `json:"skill_name"`
	Status       RegistrationStatus `json:"status"`
	Date         time.Time          `json:"date"`
	Gender       string             `json:"gender,omitempty"`
}
