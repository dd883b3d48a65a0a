package guard

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

type stubVersions struct {
	version int64
	found   bool
	err     error
}

func (p stubVersions) CurrentVersion(context.Context, int64) (int64, bool, error) {
	return p.version, p.found, p.err
}

type countingRecorder struct {
	codes []string
}

func (r *countingRecorder) RecordGuardRejection(_ string, code string) {
	r.codes = append(r.codes, code)
}

func rowsAffected(n int64, err error) func(context.Context) (int64, error) {
	return func(context.Context) (int64, error) { return n, err }
}

func TestGuard_Update(t *testing.T) {
	tests := []struct {
		name     string
		versions VersionReader
		affected int64
		writeErr error
		wantCode string
	}{
		{"one row is success", nil, 1, nil, ""},
		{"zero rows without a version reader is permission denied", nil, 0, nil, apperrors.CodePermissionDenied},
		{"zero rows same version is permission denied", stubVersions{version: 3, found: true}, 0, nil, apperrors.CodePermissionDenied},
		{"zero rows invisible row is permission denied", stubVersions{found: false}, 0, nil, apperrors.CodePermissionDenied},
		{"zero rows moved version is conflict", stubVersions{version: 4, found: true}, 0, nil, apperrors.CodeConflict},
		{"version lookup outage is transient", stubVersions{err: context.DeadlineExceeded}, 0, nil, apperrors.CodeTransient},
		{"explicit policy rejection", nil, 0, &pgconn.PgError{Code: "42501", Message: "new row violates row-level security policy"}, apperrors.CodePermissionDenied},
		{"connection failure", nil, 0, fmt.Errorf("exec: %w", context.DeadlineExceeded), apperrors.CodeTransient},
		{"admin shutdown", nil, 0, &pgconn.PgError{Code: "57P01"}, apperrors.CodeTransient},
		{"other driver error", nil, 0, errors.New("syntax"), apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &countingRecorder{}
			g := New(tt.versions, nil, rec)

			err := g.Update(context.Background(), "pause", 5, 3, rowsAffected(tt.affected, tt.writeErr))
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				if len(rec.codes) != 0 {
					t.Errorf("expected no rejections, got %v", rec.codes)
				}
				return
			}

			if !apperrors.IsCode(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			if !apperrors.NeedsResync(err) {
				t.Error("expected guard failures to demand resync")
			}
			de := apperrors.ToDomainError(err)
			if de.Details["ticket_id"] != int64(5) || de.Details["operation"] != "pause" {
				t.Errorf("expected ticket and operation context, got %v", de.Details)
			}
			if len(rec.codes) != 1 || rec.codes[0] != tt.wantCode {
				t.Errorf("expected recorder to see %s, got %v", tt.wantCode, rec.codes)
			}
		})
	}
}

func TestGuard_ZeroRowsIsNotSuccess(t *testing.T) {
	g := New(nil, nil, nil)
	err := g.Update(context.Background(), "resume", 11, 1, rowsAffected(0, nil))
	if err == nil {
		t.Fatal("expected zero affected rows to fail")
	}
	if apperrors.IsCode(err, apperrors.CodeInternal) {
		t.Error("expected permission denied, not a generic error")
	}
}

func TestGuard_Insert(t *testing.T) {
	g := New(nil, nil, nil)

	if err := g.Insert(context.Background(), "append_event", 1, func(context.Context) error { return nil }); err != nil {
		t.Errorf("expected success, got %v", err)
	}

	err := g.Insert(context.Background(), "append_event", 1, func(context.Context) error { return pgx.ErrNoRows })
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Errorf("expected filtered insert to be permission denied, got %v", err)
	}
}
