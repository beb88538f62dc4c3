package gateway

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrRelationMissing marks the schema-not-provisioned fault class.
	// Not retryable without external intervention.
	ErrRelationMissing = errors.New("gateway: relation missing")

	// ErrUnreachable marks the connectivity fault class.
	ErrUnreachable = errors.New("gateway: backend unreachable")

	// ErrNotFound is returned by mutations targeting a row that does
	// not exist. Lookups return (nil, nil) instead.
	ErrNotFound = errors.New("gateway: not found")

	// ErrStatusConflict is returned by compare-and-set mutations when
	// the stored status no longer matches the caller's expectation.
	ErrStatusConflict = errors.New("gateway: stored status does not match expected")

	ErrInvalidCredentials = errors.New("gateway: invalid credentials")
	ErrEmailTaken         = errors.New("gateway: email already registered")
)

// undefinedTable is the Postgres error code raised when a relation
// does not exist.
const undefinedTable = "42P01"

// IsSchemaFault reports whether err indicates a required table or
// relation is missing, as opposed to a row simply not existing yet.
func IsSchemaFault(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRelationMissing) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == undefinedTable
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")
}

// IsConnectivityFault reports whether err indicates the backend could
// not be reached at all.
func IsConnectivityFault(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnreachable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable") ||
		strings.Contains(msg, "failed to fetch")
}
