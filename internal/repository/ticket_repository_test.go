package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		}
	}
	return nil
}

type fakeDB struct {
	execSQL  string
	execArgs []any
	tag      pgconn.CommandTag
	execErr  error
	row      fakeRow
	querySQL string
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = sql
	f.execArgs = args
	return f.tag, f.execErr
}

func (f *fakeDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	f.querySQL = sql
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	f.querySQL = sql
	return f.row
}

func TestTicketRepository_UpdateReportsRowsAffected(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		want int64
	}{
		{"written", "UPDATE 1", 1},
		{"filtered or stale", "UPDATE 0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{tag: pgconn.NewCommandTag(tt.tag)}
			repo := NewTicketRepository(db)
			ticket := &domain.Ticket{ID: 7, Status: domain.TicketStatusInProgress, SLATotalPausedDuration: 90 * time.Second}

			got, err := repo.Update(context.Background(), ticket, 3)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d rows, got %d", tt.want, got)
			}
			if !strings.Contains(db.execSQL, "WHERE id=$13 AND version=$14") {
				t.Errorf("expected version-conditional update, got %s", db.execSQL)
			}
			if !strings.Contains(db.execSQL, "version=version+1") {
				t.Error("expected update to bump version")
			}
			if db.execArgs[8] != int64(90000) {
				t.Errorf("expected paused duration in ms, got %v", db.execArgs[8])
			}
			if db.execArgs[13] != int64(3) {
				t.Errorf("expected expected version arg 3, got %v", db.execArgs[13])
			}
		})
	}
}

func TestTicketRepository_UpdateDriverError(t *testing.T) {
	db := &fakeDB{execErr: errors.New("conn reset")}
	repo := NewTicketRepository(db)
	if _, err := repo.Update(context.Background(), &domain.Ticket{ID: 1}, 1); err == nil {
		t.Error("expected driver error to propagate")
	}
}

func TestTicketRepository_CurrentVersion(t *testing.T) {
	tests := []struct {
		name      string
		row       fakeRow
		wantVer   int64
		wantFound bool
		wantErr   bool
	}{
		{"visible", fakeRow{values: []any{int64(4)}}, 4, true, false},
		{"not visible", fakeRow{err: pgx.ErrNoRows}, 0, false, false},
		{"driver error", fakeRow{err: errors.New("timeout")}, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewTicketRepository(&fakeDB{row: tt.row})
			ver, found, err := repo.CurrentVersion(context.Background(), 1)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if ver != tt.wantVer || found != tt.wantFound {
				t.Errorf("expected (%d,%v), got (%d,%v)", tt.wantVer, tt.wantFound, ver, found)
			}
		})
	}
}

func TestTicketEventRepository_AppendFilteredReturnsNoRows(t *testing.T) {
	repo := NewTicketEventRepository(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}})
	err := repo.Append(context.Background(), &domain.TicketEvent{TicketID: 1, ActionType: domain.ActionComment})
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("expected pgx.ErrNoRows, got %v", err)
	}
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		limit, offset int
		wantL, wantO  int
	}{
		{0, 0, 20, 0},
		{50, 10, 50, 10},
		{1000, -5, 200, 0},
	}
	for _, tt := range tests {
		l, o := NormalizePage(tt.limit, tt.offset)
		if l != tt.wantL || o != tt.wantO {
			t.Errorf("NormalizePage(%d,%d) expected (%d,%d), got (%d,%d)", tt.limit, tt.offset, tt.wantL, tt.wantO, l, o)
		}
	}
}

type stubAgents struct {
	calls int
}

func (s *stubAgents) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	return &domain.Agent{ID: id}, nil
}

func (s *stubAgents) NamesByIDs(_ context.Context, ids []string) (map[string]string, error) {
	s.calls++
	out := map[string]string{}
	for _, id := range ids {
		out[id] = "name-" + id
	}
	return out, nil
}

func TestCachedAgentDirectory_WithoutRedisPassesThrough(t *testing.T) {
	inner := &stubAgents{}
	dir := NewCachedAgentDirectory(inner, nil, 0, nil)

	names, err := dir.NamesByIDs(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if names["a"] != "name-a" || names["b"] != "name-b" {
		t.Errorf("unexpected names %v", names)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 directory call, got %d", inner.calls)
	}
}
