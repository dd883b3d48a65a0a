package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type recordingExecer struct {
	statements []string
	failOn     int
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	r.statements = append(r.statements, sql)
	if r.failOn > 0 && len(r.statements) == r.failOn {
		return pgconn.CommandTag{}, errors.New("syntax error")
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func TestMigrationNames_Ordered(t *testing.T) {
	names, err := MigrationNames()
	if err != nil {
		t.Fatalf("MigrationNames() error = %v", err)
	}
	if len(names) < 2 {
		t.Fatalf("expected at least 2 migrations, got %d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("expected sorted names, got %v", names)
		}
	}
}

func TestRunMigrations(t *testing.T) {
	db := &recordingExecer{}
	if err := RunMigrations(context.Background(), db, zap.NewNop()); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if !strings.Contains(db.statements[0], "CREATE TABLE IF NOT EXISTS tickets") {
		t.Error("expected first migration to create tickets")
	}
	joined := strings.Join(db.statements, "\n")
	if !strings.Contains(joined, "'Esperando repuesto', TRUE") {
		t.Error("expected freezer catalog seed")
	}
}

func TestRunMigrations_StopsOnError(t *testing.T) {
	db := &recordingExecer{failOn: 1}
	err := RunMigrations(context.Background(), db, zap.NewNop())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(db.statements) != 1 {
		t.Errorf("expected to stop after first failure, got %d statements", len(db.statements))
	}
}
