// Package guard confirms that every write actually changed the store.
//
// Row-level access policies can filter an UPDATE instead of rejecting it: the
// statement succeeds and reports zero rows. Treating that as success would let
// a caller trust an optimistic local copy that was never persisted, so the
// guard turns it into an explicit failure that forces a resync.
package guard

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// Postgres insufficient_privilege, raised when a policy rejects a write outright.
const pgInsufficientPrivilege = "42501"

// VersionReader reads the current version of a ticket as the caller sees it.
type VersionReader interface {
	CurrentVersion(ctx context.Context, ticketID int64) (version int64, found bool, err error)
}

// Recorder receives guard outcomes for metrics.
type Recorder interface {
	RecordGuardRejection(operation, code string)
}

// Guard wraps mutating store calls.
type Guard struct {
	versions VersionReader
	logger   *zap.Logger
	recorder Recorder
}

// New builds a guard. versions and recorder may be nil.
func New(versions VersionReader, logger *zap.Logger, recorder Recorder) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{versions: versions, logger: logger, recorder: recorder}
}

// Update runs a conditional update guarded by expectedVersion. write returns
// the number of rows affected. Zero rows is a PermissionDenied failure unless
// the version reader shows the ticket moved to another version, which is a Conflict.
func (g *Guard) Update(ctx context.Context, operation string, ticketID, expectedVersion int64, write func(context.Context) (int64, error)) error {
	affected, err := write(ctx)
	if err != nil {
		return g.reject(operation, ticketID, Classify(err))
	}
	if affected > 0 {
		return nil
	}

	if g.versions != nil {
		current, found, lookupErr := g.versions.CurrentVersion(ctx, ticketID)
		switch {
		case lookupErr != nil && !errors.Is(lookupErr, pgx.ErrNoRows):
			return g.reject(operation, ticketID, Classify(lookupErr))
		case found && current != expectedVersion:
			return g.reject(operation, ticketID, staleWrite(expectedVersion, current))
		}
	}
	return g.reject(operation, ticketID, silentlyFiltered())
}

// Insert runs an insert that must hand back its generated row. A policy that
// filters the RETURNING row surfaces as pgx.ErrNoRows and is a PermissionDenied.
func (g *Guard) Insert(ctx context.Context, operation string, ticketID int64, write func(context.Context) error) error {
	err := write(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return g.reject(operation, ticketID, silentlyFiltered())
	}
	return g.reject(operation, ticketID, Classify(err))
}

func (g *Guard) reject(operation string, ticketID int64, err error) error {
	err = apperrors.WithOperation(err, ticketID, operation)
	de := apperrors.ToDomainError(err)
	de.Resync = true
	if g.recorder != nil {
		g.recorder.RecordGuardRejection(operation, de.Code)
	}
	g.logger.Warn("write rejected",
		zap.String("operation", operation),
		zap.Int64("ticket_id", ticketID),
		zap.String("code", de.Code),
		zap.Error(de.Err))
	return de
}

func silentlyFiltered() error {
	return apperrors.NewPermissionDenied("write affected no rows; access policy filtered it", nil)
}

func staleWrite(expected, current int64) error {
	return apperrors.NewConflict("ticket changed since it was read", map[string]any{
		"expected_version": expected,
		"current_version":  current,
	})
}

// Classify maps driver errors onto the error taxonomy.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgInsufficientPrivilege {
			return apperrors.NewPermissionDenied(pgErr.Message, nil)
		}
		// class 08 connection exceptions, 57P0x operator intervention
		if len(pgErr.Code) >= 3 && (pgErr.Code[:2] == "08" || pgErr.Code[:3] == "57P") {
			return apperrors.NewTransientFailure(err)
		}
		return apperrors.NewInternalError(err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", nil)
	}
	if IsTransient(err) {
		return apperrors.NewTransientFailure(err)
	}
	return apperrors.NewInternalError(err)
}

// IsTransient reports network, timeout and connection failures.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
