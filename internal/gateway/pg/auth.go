package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"saedportal.org/internal/gateway"
	"saedportal.org/internal/ids"
)

const (
	tokenIssuer     = "saedportal"
	uniqueViolation = "23505"
)

// Auth implements gateway.Auth over the auth_users table. The active
// session is held in memory and re-validated against its token expiry,
// the way a browser client re-reads its stored session on load.
type Auth struct {
	db     *sql.DB
	events *gateway.Events
	secret []byte
	ttl    time.Duration

	// requireConfirm withholds the session from SignUp until the email
	// is confirmed out of band.
	requireConfirm bool

	mu      sync.Mutex
	current *gateway.Session
}

var _ gateway.Auth = (*Auth)(nil)

// AuthOption configures the auth collaborator.
type AuthOption func(*Auth)

// WithSessionTTL overrides the issued token lifetime.
func WithSessionTTL(ttl time.Duration) AuthOption {
	return func(a *Auth) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithEmailConfirmation makes SignUp return no session until the user
// confirms their address.
func WithEmailConfirmation(required bool) AuthOption {
	return func(a *Auth) { a.requireConfirm = required }
}

// NewAuth builds the collaborator on a shared connection pool. The
// secret signs HS256 session tokens.
func NewAuth(db *sql.DB, secret string, opts ...AuthOption) (*Auth, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("pg: auth secret is required")
	}
	a := &Auth{
		db:     db,
		events: gateway.NewEvents(),
		secret: []byte(secret),
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Auth) Events() *gateway.Events { return a.events }

// Session returns the active session, or (nil, nil) once it expired.
func (a *Auth) Session(ctx context.Context) (*gateway.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil, nil
	}
	if time.Now().After(a.current.ExpiresAt) {
		a.current = nil
		return nil, nil
	}
	sess := *a.current
	return &sess, nil
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var (
		id        string
		hash      string
		confirmed bool
	)
	err := a.db.QueryRowContext(ctx,
		`select id, password_hash, confirmed from auth_users where email=$1`, email,
	).Scan(&id, &hash, &confirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gateway.ErrInvalidCredentials
	}
	if err != nil {
		return nil, classify(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, gateway.ErrInvalidCredentials
	}
	if a.requireConfirm && !confirmed {
		return nil, errors.New("pg: email not confirmed")
	}

	sess, err := a.issueSession(id, email)
	if err != nil {
		return nil, err
	}
	a.events.Publish(gateway.AuthEvent{Type: gateway.SignedIn, Session: sess})
	return sess, nil
}

func (a *Auth) SignUp(ctx context.Context, email, password string, meta map[string]string) (*gateway.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	id := ids.New()
	_, err = a.db.ExecContext(ctx, `
		insert into auth_users(id, email, password_hash, name, confirmed)
		values ($1,$2,$3,$4,$5)
	`, id, email, string(hash), meta["name"], !a.requireConfirm)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, gateway.ErrEmailTaken
		}
		return nil, classify(err)
	}

	if a.requireConfirm {
		return nil, nil
	}
	sess, err := a.issueSession(id, email)
	if err != nil {
		return nil, err
	}
	a.events.Publish(gateway.AuthEvent{Type: gateway.SignedIn, Session: sess})
	return sess, nil
}

func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	a.current = nil
	a.mu.Unlock()
	a.events.Publish(gateway.AuthEvent{Type: gateway.SignedOut})
	return nil
}

// ConfirmEmail marks the address confirmed, standing in for the
// verification link flow.
func (a *Auth) ConfirmEmail(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := a.db.ExecContext(ctx,
		`update auth_users set confirmed=true where email=$1`, email)
	if err != nil {
		return classify(err)
	}
	return requireRow(res)
}

func (a *Auth) issueSession(userID, email string) (*gateway.Session, error) {
	now := time.Now().UTC()
	expires := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, err
	}

	sess := &gateway.Session{UserID: userID, Email: email, Token: token, ExpiresAt: expires}
	a.mu.Lock()
	a.current = sess
	a.mu.Unlock()
	out := *sess
	return &out, nil
}

// classify wraps driver errors with the gateway sentinels so callers
// can branch on fault class without importing pgconn.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if gateway.IsSchemaFault(err) {
		return errors.Join(gateway.ErrRelationMissing, err)
	}
	if gateway.IsConnectivityFault(err) {
		return errors.Join(gateway.ErrUnreachable, err)
	}
	return err
}
