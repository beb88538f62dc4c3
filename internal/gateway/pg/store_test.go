package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"saedportal.org/internal/gateway"
	"saedportal.org/internal/portal"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func profileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "role", "status",
		"security_key", "state_code", "batch",
		"state_of_service", "department", "created_at", "updated_at",
	})
}

func TestProfileByID(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	mock.ExpectQuery("select (.+) from profiles where id=").
		WithArgs("u-1").
		WillReturnRows(profileRows().AddRow(
			"u-1", "Ada", "ada@example.com", "CORPER", "APPROVED",
			"", "LA/23A/1234", "23A", "", "", now, now,
		))

	p, err := s.ProfileByID(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("ProfileByID: %v", err)
	}
	if p == nil || p.Name != "Ada" || p.Role != portal.RoleCorper {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.StateCode != "LA/23A/1234" {
		t.Fatalf("state code not scanned: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileByIDMissingRowIsNotAnError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select (.+) from profiles where id=").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	p, err := s.ProfileByID(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("expected nil error for missing row, got %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil profile, got %+v", p)
	}
}

func TestProfileByIDSchemaFaultClassifiable(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select (.+) from profiles where id=").
		WithArgs("u-1").
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "profiles" does not exist`})

	_, err := s.ProfileByID(context.Background(), "u-1")
	if !gateway.IsSchemaFault(err) {
		t.Fatalf("expected schema fault classification, got %v", err)
	}
}

func TestUpsertProfile(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("insert into profiles").
		WithArgs("u-1", "Ada", "ada@example.com", portal.RoleCorper, portal.ApprovalPending,
			"", "LA/23A/1234", "", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertProfile(context.Background(), portal.Profile{
		ID: "u-1", Name: "Ada", Email: "ada@example.com",
		Role: portal.RoleCorper, Status: portal.ApprovalPending,
		StateCode: "LA/23A/1234",
	})
	if err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateProfileStatusMissingRow(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("update profiles set status=").
		WithArgs("ghost", portal.ApprovalApproved).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateProfileStatus(context.Background(), "ghost", portal.ApprovalApproved)
	if !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func instructorRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "headline", "about",
		"skills", "phone_number", "profile_pic",
		"cover_image", "location", "status", "rating", "review_count",
		"linked_in_url", "created_at",
	})
}

func TestInstructorByIDDecodesJSONColumns(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select (.+) from instructors where id=").
		WithArgs("i-1").
		WillReturnRows(instructorRows().AddRow(
			"i-1", "Michael Ade", "m@example.com", "WEB DESIGNER", "Building sites.",
			[]byte(`["Web Design","UI/UX"]`), "0801", "",
			"", []byte(`{"lat":10.52,"lng":7.43,"address":"Kaduna","state":"Kaduna","lga":"Chikun"}`),
			"APPROVED", 4.8, 12, "", time.Now(),
		))

	rec, err := s.InstructorByID(context.Background(), "i-1")
	if err != nil {
		t.Fatalf("InstructorByID: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record")
	}
	if len(rec.Skills) != 2 || rec.Skills[0] != "Web Design" {
		t.Fatalf("skills not decoded: %v", rec.Skills)
	}
	if rec.Location.LGA != "Chikun" || rec.Location.Lat != 10.52 {
		t.Fatalf("location not decoded: %+v", rec.Location)
	}
}

func TestInstructorsByStatus(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select (.+) from instructors where status=(.+) order by created_at").
		WithArgs(portal.ApprovalApproved).
		WillReturnRows(instructorRows().
			AddRow("i-1", "A", "", "", "", []byte(`[]`), "", "", "", []byte(`{}`), "APPROVED", 0.0, 0, "", time.Now()).
			AddRow("i-2", "B", "", "", "", []byte(`[]`), "", "", "", []byte(`{}`), "APPROVED", 0.0, 0, "", time.Now()))

	recs, err := s.InstructorsByStatus(context.Background(), portal.ApprovalApproved)
	if err != nil {
		t.Fatalf("InstructorsByStatus: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
}

func TestCreateRegistration(t *testing.T) {
	s, mock := newMockStore(t)
	date := time.Now().UTC()
	mock.ExpectExec("insert into registrations").
		WithArgs("r-1", "c-1", "Ada", "i-1", "Web Design", portal.RegistrationPending, date, "Female").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.CreateRegistration(context.Background(), &portal.Registration{
		ID: "r-1", CorperID: "c-1", CorperName: "Ada", InstructorID: "i-1",
		SkillName: "Web Design", Status: portal.RegistrationPending,
		Date: date, Gender: "Female",
	})
	if err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}
}

func TestRegistrationsByInstructor(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select (.+) from registrations where instructor_id=(.+) order by date desc").
		WithArgs("i-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "corper_id", "corper_name", "instructor_id", "skill_name", "status", "date", "gender",
		}).AddRow("r-1", "c-1", "Ada", "i-1", "Web Design", "PENDING", time.Now(), ""))

	regs, err := s.RegistrationsByInstructor(context.Background(), "i-1")
	if err != nil {
		t.Fatalf("RegistrationsByInstructor: %v", err)
	}
	if len(regs) != 1 || regs[0].Status != portal.RegistrationPending {
		t.Fatalf("unexpected registrations: %+v", regs)
	}
}

func TestUpdateRegistrationStatus(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("update registrations set status=(.+) where id=(.+) and status=").
		WithArgs("r-1", portal.RegistrationAccepted, portal.RegistrationPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.UpdateRegistrationStatus(context.Background(), "r-1", portal.RegistrationPending, portal.RegistrationAccepted); err != nil {
		t.Fatalf("UpdateRegistrationStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateRegistrationStatusConflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("update registrations set status=(.+) where id=(.+) and status=").
		WithArgs("r-1", portal.RegistrationCompleted, portal.RegistrationAccepted).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select status from registrations where id=").
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING"))

	err := s.UpdateRegistrationStatus(context.Background(), "r-1", portal.RegistrationAccepted, portal.RegistrationCompleted)
	if !errors.Is(err, gateway.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateRegistrationStatusMissingRow(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("update registrations set status=(.+) where id=(.+) and status=").
		WithArgs("r-404", portal.RegistrationAccepted, portal.RegistrationPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select status from registrations where id=").
		WithArgs("r-404").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	err := s.UpdateRegistrationStatus(context.Background(), "r-404", portal.RegistrationPending, portal.RegistrationAccepted)
	if !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
