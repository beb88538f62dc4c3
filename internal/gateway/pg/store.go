// Package pg implements the backend gateway over PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"saedportal.org/internal/gateway"
	"saedportal.org/internal/portal"
)

// Store implements gateway.Store on database/sql with the pgx driver.
type Store struct {
	db *sql.DB
}

var _ gateway.Store = (*Store)(nil)

// Open connects to the database with pool defaults sized for a single
// portal instance.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection pool, shared with the auth layer.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Health pings the server. Missing relations are a provisioning state,
// not unreachability, so only connection-level failures count.
func (s *Store) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Join(gateway.ErrUnreachable, err)
	}
	return nil
}

// --- profiles ---

const profileColumns = `id, name, email, role, status,
	coalesce(security_key,''), coalesce(state_code,''), coalesce(batch,''),
	coalesce(state_of_service,''), coalesce(department,''), created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*portal.Profile, error) {
	var p portal.Profile
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Role, &p.Status,
		&p.SecurityKey, &p.StateCode, &p.Batch,
		&p.StateOfService, &p.Department, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ProfileByID(ctx context.Context, id string) (*portal.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+profileColumns+` from profiles where id=$1`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *Store) ProfilesByRole(ctx context.Context, role portal.Role) ([]portal.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+profileColumns+` from profiles where role=$1 order by created_at`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []portal.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}
	return res, rows.Err()
}

func (s *Store) UpsertProfile(ctx context.Context, p portal.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		insert into profiles(id, name, email, role, status, security_key, state_code, batch, state_of_service, department)
		values ($1,$2,$3,$4,$5,nullif($6,''),nullif($7,''),nullif($8,''),nullif($9,''),nullif($10,''))
		on conflict (id) do update set
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			status = excluded.status,
			security_key = excluded.security_key,
			state_code = excluded.state_code,
			batch = excluded.batch,
			state_of_service = excluded.state_of_service,
			department = excluded.department,
			updated_at = now()
	`, p.ID, p.Name, p.Email, p.Role, p.Status,
		p.SecurityKey, p.StateCode, p.Batch, p.StateOfService, p.Department)
	return err
}

func (s *Store) UpdateProfileStatus(ctx context.Context, id string, status portal.ApprovalStatus) error {
	res, err := s.db.ExecContext(ctx,
		`update profiles set status=$2, updated_at=now() where id=$1`, id, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- instructors ---

const instructorColumns = `id, name, coalesce(email,''), coalesce(headline,''), coalesce(about,''),
	coalesce(skills,'[]'::jsonb), coalesce(phone_number,''), coalesce(profile_pic,''),
	coalesce(cover_image,''), coalesce(location,'{}'::jsonb), status, rating, review_count,
	coalesce(linked_in_url,''), created_at`

func scanInstructor(row interface{ Scan(...any) error }) (*portal.InstructorRecord, error) {
	var (
		rec      portal.InstructorRecord
		skills   []byte
		location []byte
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Headline, &rec.About,
		&skills, &rec.PhoneNumber, &rec.ProfilePic,
		&rec.CoverImage, &location, &rec.Status, &rec.Rating, &rec.ReviewCount,
		&rec.LinkedInURL, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(skills, &rec.Skills)
	_ = json.Unmarshal(location, &rec.Location)
	return &rec, nil
}

func (s *Store) InstructorByID(ctx context.Context, id string) (*portal.InstructorRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+instructorColumns+` from instructors where id=$1`, id)
	rec, err := scanInstructor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *Store) Instructors(ctx context.Context) ([]portal.InstructorRecord, error) {
	return s.queryInstructors(ctx,
		`select `+instructorColumns+` from instructors order by created_at`)
}

func (s *Store) InstructorsByStatus(ctx context.Context, status portal.ApprovalStatus) ([]portal.InstructorRecord, error) {
	return s.queryInstructors(ctx,
		`select `+instructorColumns+` from instructors where status=$1 order by created_at`, status)
}

func (s *Store) queryInstructors(ctx context.Context, query string, args ...any) ([]portal.InstructorRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []portal.InstructorRecord
	for rows.Next() {
		rec, err := scanInstructor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *rec)
	}
	return res, rows.Err()
}

func (s *Store) UpsertInstructor(ctx context.Context, rec portal.InstructorRecord) error {
	skills, _ := json.Marshal(rec.Skills)
	location, _ := json.Marshal(rec.Location)
	_, err := s.db.ExecContext(ctx, `
		insert into instructors(id, name, email, headline, about, skills, phone_number, profile_pic, cover_image, location, status, rating, review_count, linked_in_url)
		values ($1,$2,nullif($3,''),nullif($4,''),nullif($5,''),$6,nullif($7,''),nullif($8,''),nullif($9,''),$10,$11,$12,$13,nullif($14,''))
		on conflict (id) do update set
			name = excluded.name,
			email = excluded.email,
			headline = excluded.headline,
			about = excluded.about,
			skills = excluded.skills,
			phone_number = excluded.phone_number,
			profile_pic = excluded.profile_pic,
			cover_image = excluded.cover_image,
			location = excluded.location,
			status = excluded.status,
			rating = excluded.rating,
			review_count = excluded.review_count,
			linked_in_url = excluded.linked_in_url
	`, rec.ID, rec.Name, rec.Email, rec.Headline, rec.About, skills,
		rec.PhoneNumber, rec.ProfilePic, rec.CoverImage, location,
		rec.Status, rec.Rating, rec.ReviewCount, rec.LinkedInURL)
	return err
}

func (s *Store) UpdateInstructorStatus(ctx context.Context, id string, status portal.ApprovalStatus) error {
	res, err := s.db.ExecContext(ctx,
		`update instructors set status=$2 where id=$1`, id, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- registrations ---

const registrationColumns = `id, corper_id, coalesce(corper_name,''), instructor_id, skill_name, status, date, coalesce(gender,'')`

func (s *Store) RegistrationsByCorper(ctx context.Context, corperID string) ([]portal.Registration, error) {
	return s.queryRegistrations(ctx,
		`select `+registrationColumns+` from registrations where corper_id=$1 order by date desc`, corperID)
}

func (s *Store) RegistrationsByInstructor(ctx context.Context, instructorID string) ([]portal.Registration, error) {
	return s.queryRegistrations(ctx,
		`select `+registrationColumns+` from registrations where instructor_id=$1 order by date desc`, instructorID)
}

func (s *Store) queryRegistrations(ctx context.Context, query string, args ...any) ([]portal.Registration, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []portal.Registration
	for rows.Next() {
		var reg portal.Registration
		if err := rows.Scan(&reg.ID, &reg.CorperID, &reg.CorperName, &reg.InstructorID,
			&reg.SkillName, &reg.Status, &reg.Date, &reg.Gender); err != nil {
			return nil, err
		}
		res = append(res, reg)
	}
	return res, rows.Err()
}

func (s *Store) CreateRegistration(ctx context.Context, reg *portal.Registration) error {
	_, err := s.db.ExecContext(ctx, `
		insert into registrations(id, corper_id, corper_name, instructor_id, skill_name, status, date, gender)
		values ($1,$2,nullif($3,''),$4,$5,$6,$7,nullif($8,''))
	`, reg.ID, reg.CorperID, reg.CorperName, reg.InstructorID,
		reg.SkillName, reg.Status, reg.Date, reg.Gender)
	return err
}

func (s *Store) UpdateRegistrationStatus(ctx context.Context, id string, from, to portal.RegistrationStatus) error {
	res, err := s.db.ExecContext(ctx,
		`update registrations set status=$2 where id=$1 and status=$3`, id, to, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// Zero rows: either the row is gone or its status moved on.
	var stored string
	err = s.db.QueryRowContext(ctx,
		`select status from registrations where id=$1`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return gateway.ErrNotFound
	}
	if err != nil {
		return err
	}
	return gateway.ErrStatusConflict
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return gateway.ErrNotFound
	}
	return nil
}
