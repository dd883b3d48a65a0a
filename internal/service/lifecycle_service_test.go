package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

func TestCreate_ComputesDeadline(t *testing.T) {
	tests := []struct {
		name      string
		category  string
		requester *string
		hours     int
	}{
		{"standard catalog category", "Hardware", nil, 24},
		{"vip requester", "Hardware", strPtr("r-vip"), 8},
		{"short category", "Red", strPtr("r-std"), 12},
		{"unknown category falls back", "Impresoras", nil, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ticket, err := f.lifecycle.Create(context.Background(), agentA, CreateInput{
				Type:        domain.TicketTypeRequest,
				Category:    tt.category,
				RequesterID: tt.requester,
				Description: "Necesito acceso",
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := t0.Add(time.Duration(tt.hours) * time.Hour)
			if !ticket.SLAExpectedEndAt.Equal(want) {
				t.Errorf("expected deadline %s, got %s", want, ticket.SLAExpectedEndAt)
			}
			if ticket.Status != domain.TicketStatusPending || ticket.SLAStatus != domain.SLAStatusRunning {
				t.Errorf("expected PENDIENTE/running, got %s/%s", ticket.Status, ticket.SLAStatus)
			}
			if ticket.Code == nil || !strings.HasPrefix(*ticket.Code, "REQ-") || len(*ticket.Code) != 12 {
				t.Errorf("unexpected code %v", ticket.Code)
			}
		})
	}
}

func TestCreate_RecordsEventAndSignal(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t, "Hardware")

	types := f.eventTypes(t, ticket.ID)
	if len(types) != 1 || types[0] != domain.ActionCreated {
		t.Errorf("expected a CREATED event, got %v", types)
	}
	if len(f.signals) != 1 || f.signals[0].Type != events.EventTicketChanged || f.signals[0].Operation != OpCreate {
		t.Errorf("expected one create signal, got %+v", f.signals)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateInput
	}{
		{"bad type", CreateInput{Type: "BUG", Category: "Hardware", Description: "x"}},
		{"missing category", CreateInput{Type: domain.TicketTypeIncident, Description: "x"}},
		{"missing description", CreateInput{Type: domain.TicketTypeIncident, Category: "Hardware", Description: "  "}},
		{"unknown requester", CreateInput{Type: domain.TicketTypeIncident, Category: "Hardware", Description: "x", RequesterID: strPtr("nobody")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.lifecycle.Create(context.Background(), agentA, tt.input)
			if codeOf(err) != apperrors.CodeValidation {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAssign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.create(t, "Hardware")

	got, err := f.lifecycle.Assign(ctx, agentA, ticket.ID, agentA.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got.Status != domain.TicketStatusInProgress || *got.AssignedAgentID != agentA.ID {
		t.Errorf("expected EN_PROGRESO owned by A, got %s %v", got.Status, got.AssignedAgentID)
	}
	if got.Version != 2 {
		t.Errorf("expected version 2, got %d", got.Version)
	}

	types := f.eventTypes(t, ticket.ID)
	want := []domain.ActionType{domain.ActionCreated, domain.ActionAssigned, domain.ActionStatusChange}
	if strings.Join(actionStrings(types), ",") != strings.Join(actionStrings(want), ",") {
		t.Errorf("expected events %v, got %v", want, types)
	}

	// same agent again is a no-op
	again, err := f.lifecycle.Assign(ctx, agentA, ticket.ID, agentA.ID)
	if err != nil {
		t.Fatalf("repeat assign: %v", err)
	}
	if again.Version != 2 || len(f.eventTypes(t, ticket.ID)) != 3 {
		t.Errorf("expected idempotent assign, got version %d", again.Version)
	}

	// reassignment keeps the status
	moved, err := f.lifecycle.Assign(ctx, supervisor, ticket.ID, agentB.ID)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if *moved.AssignedAgentID != agentB.ID || moved.Status != domain.TicketStatusInProgress {
		t.Errorf("expected B owner in progress, got %v %s", moved.AssignedAgentID, moved.Status)
	}
}

func TestAssign_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.create(t, "Hardware")

	tests := []struct {
		name    string
		agentID string
		code    string
	}{
		{"empty agent", "", apperrors.CodeValidation},
		{"unknown agent", "ghost", apperrors.CodeValidation},
		{"inactive agent", "x-9", apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.lifecycle.Assign(ctx, agentA, ticket.ID, tt.agentID)
			if codeOf(err) != tt.code {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}

	if _, err := f.lifecycle.Assign(ctx, agentA, 999, agentA.ID); codeOf(err) != apperrors.CodeNotFound {
		t.Errorf("expected NOT_FOUND for missing ticket, got %v", err)
	}

	_, _ = f.lifecycle.Close(ctx, supervisor, ticket.ID, "duplicado")
	if _, err := f.lifecycle.Assign(ctx, agentA, ticket.ID, agentA.ID); codeOf(err) != apperrors.CodeIllegalTransition {
		t.Errorf("expected ILLEGAL_TRANSITION on closed ticket, got %v", err)
	}
}

func TestResolve_IncompleteSolution(t *testing.T) {
	f := newFixture(t)
	ticket := f.inProgress(t)

	for _, text := range []string{"", "reinicié el equipo", words(19)} {
		_, err := f.lifecycle.Resolve(context.Background(), agentA, ticket.ID, text)
		if codeOf(err) != apperrors.CodeIncompleteSolution {
			t.Fatalf("expected INCOMPLETE_SOLUTION for %q, got %v", text, err)
		}
		de := apperrors.ToDomainError(err)
		if !de.IsValidation() {
			t.Error("expected a validation class error")
		}
		if de.Details["ticket_id"] != ticket.ID || de.Details["operation"] != OpResolve {
			t.Errorf("expected ticket and operation details, got %v", de.Details)
		}
	}

	if got := f.reload(t, ticket.ID); got.Status != domain.TicketStatusInProgress {
		t.Errorf("expected ticket untouched, got %s", got.Status)
	}
}

func TestResolve_LastCloserOwnsTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.inProgress(t) // assigned to A
	f.clock.Advance(2 * time.Hour)

	got, err := f.lifecycle.Resolve(context.Background(), agentB, ticket.ID, words(20))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Status != domain.TicketStatusResolved {
		t.Errorf("expected RESUELTO, got %s", got.Status)
	}
	if got.AssignedAgentID == nil || *got.AssignedAgentID != agentB.ID {
		t.Errorf("expected owner B, got %v", got.AssignedAgentID)
	}
	if got.SLAStatus != domain.SLAStatusCompleted {
		t.Errorf("expected completed clock, got %s", got.SLAStatus)
	}
	if got.Solution == nil || *got.Solution != words(20) {
		t.Errorf("expected solution stored, got %v", got.Solution)
	}
	if got.DescriptionText() != "El equipo no enciende" {
		t.Errorf("expected description untouched without legacy writes, got %q", got.DescriptionText())
	}

	types := f.eventTypes(t, ticket.ID)
	joined := strings.Join(actionStrings(types), ",")
	if !strings.HasSuffix(joined, "STATUS_CHANGE,ASSIGNED,SOLUTION_ADDED") {
		t.Errorf("unexpected events %s", joined)
	}
}

func TestResolve_IllegalFromOtherStates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pending := f.create(t, "Hardware")
	if _, err := f.lifecycle.Resolve(ctx, agentA, pending.ID, words(20)); codeOf(err) != apperrors.CodeIllegalTransition {
		t.Errorf("expected ILLEGAL_TRANSITION from PENDIENTE, got %v", err)
	}

	paused := f.inProgress(t)
	if _, err := f.slaSvc.Pause(ctx, agentA, paused.ID, "Usuario no responde"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := f.lifecycle.Resolve(ctx, agentA, paused.ID, words(20)); codeOf(err) != apperrors.CodeIllegalTransition {
		t.Errorf("expected ILLEGAL_TRANSITION while paused, got %v", err)
	}
}

func TestReturnToQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.inProgress(t)
	_, _ = f.lifecycle.Resolve(ctx, agentA, ticket.ID, words(25))

	got, err := f.lifecycle.ReturnToQueue(ctx, supervisor, ticket.ID, "el usuario reporta que persiste")
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if got.Status != domain.TicketStatusPending || got.AssignedAgentID != nil {
		t.Errorf("expected PENDIENTE unassigned, got %s %v", got.Status, got.AssignedAgentID)
	}
	if got.SLAStatus != domain.SLAStatusRunning {
		t.Errorf("expected reopened clock running, got %s", got.SLAStatus)
	}

	if _, err := f.lifecycle.ReturnToQueue(ctx, agentA, ticket.ID, ""); codeOf(err) != apperrors.CodeIllegalTransition {
		t.Errorf("expected ILLEGAL_TRANSITION from PENDIENTE, got %v", err)
	}
}

func TestAddComment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.create(t, "Hardware")

	if _, err := f.lifecycle.AddComment(ctx, agentB, ticket.ID, "  "); codeOf(err) != apperrors.CodeValidation {
		t.Errorf("expected validation error, got %v", err)
	}

	got, err := f.lifecycle.AddComment(ctx, agentB, ticket.ID, "Se llamó al usuario")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if got.DescriptionText() != "El equipo no enciende" {
		t.Error("expected structured comment only")
	}
	evts, _ := f.store.Events().ListByTicket(ctx, ticket.ID)
	last := evts[len(evts)-1]
	if last.ActionType != domain.ActionComment || *last.Comment != "Se llamó al usuario" || *last.ActorID != agentB.ID {
		t.Errorf("unexpected comment event %+v", last)
	}
}

func TestLegacyDescriptionWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(c *config.SLAConfig) { c.LegacyDescriptionWrites = true })
	ticket := f.inProgress(t)
	f.clock.Advance(2 * time.Hour)

	got, err := f.lifecycle.AddComment(ctx, agentA, ticket.ID, "Se cambió el cable")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	want := "El equipo no enciende\n\n[2024-05-06 10:00:00] SEGUIMIENTO: Se cambió el cable"
	if got.DescriptionText() != want {
		t.Errorf("expected %q, got %q", want, got.DescriptionText())
	}

	_, url, err := f.lifecycle.AttachEvidence(ctx, agentA, ticket.ID, "foto.jpg", "image/jpeg", strings.NewReader("img"), 3)
	if err != nil {
		t.Fatalf("evidence: %v", err)
	}
	got = f.reload(t, ticket.ID)
	if !strings.HasSuffix(got.DescriptionText(), "\n\n[EVIDENCIA]: "+url) {
		t.Errorf("expected evidence marker, got %q", got.DescriptionText())
	}

	// the mirrored copies are not shown twice
	_, entries, err := f.timeline.Timeline(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	comments := 0
	for _, e := range entries {
		if e.Body == "Se cambió el cable" {
			comments++
		}
	}
	if comments != 1 {
		t.Errorf("expected the comment once, got %d", comments)
	}
}

func TestReclassify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.create(t, "Hardware")

	got, err := f.lifecycle.Reclassify(ctx, agentA, ticket.ID, "Red")
	if err != nil {
		t.Fatalf("reclassify: %v", err)
	}
	if got.Category != "Red" {
		t.Errorf("expected Red, got %s", got.Category)
	}
	if !got.SLAExpectedEndAt.Equal(ticket.SLAExpectedEndAt) {
		t.Error("expected deadline unchanged")
	}

	same, err := f.lifecycle.Reclassify(ctx, agentA, ticket.ID, "Red")
	if err != nil || same.Version != got.Version {
		t.Errorf("expected idempotent reclassify, got version %d (%v)", same.Version, err)
	}
	if _, err := f.lifecycle.Reclassify(ctx, agentA, ticket.ID, ""); codeOf(err) != apperrors.CodeValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.inProgress(t)
	if _, err := f.slaSvc.Pause(ctx, agentA, ticket.ID, "Esperando repuesto"); err != nil {
		t.Fatalf("pause: %v", err)
	}

	_, err := f.lifecycle.Close(ctx, agentA, ticket.ID, "")
	if codeOf(err) != apperrors.CodePermissionDenied {
		t.Errorf("expected PERMISSION_DENIED for agent, got %v", err)
	}

	got, err := f.lifecycle.Close(ctx, supervisor, ticket.ID, "cancelado por el usuario")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if got.Status != domain.TicketStatusClosed || got.SLAStatus != domain.SLAStatusCompleted {
		t.Errorf("expected CERRADO/completed, got %s/%s", got.Status, got.SLAStatus)
	}
	if got.HoldReason != nil || got.SLAPauseReason != nil {
		t.Error("expected pause reasons cleared")
	}
	assertPauseInvariant(t, got)

	if _, err := f.lifecycle.Close(ctx, supervisor, ticket.ID, ""); codeOf(err) != apperrors.CodeIllegalTransition {
		t.Errorf("expected ILLEGAL_TRANSITION closing twice, got %v", err)
	}
}

func TestAttachEvidence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.create(t, "Hardware")

	_, url, err := f.lifecycle.AttachEvidence(ctx, agentA, ticket.ID, "log.txt", "text/plain", strings.NewReader("boom"), 4)
	if err != nil {
		t.Fatalf("evidence: %v", err)
	}
	if f.evidence.Len() != 1 {
		t.Errorf("expected uploaded object, got %d", f.evidence.Len())
	}
	evts, _ := f.store.Events().ListByTicket(ctx, ticket.ID)
	last := evts[len(evts)-1]
	if last.ActionType != domain.ActionEvidence || *last.NewValue != url {
		t.Errorf("expected evidence event with url, got %+v", last)
	}

	if _, _, err := f.lifecycle.AttachEvidence(ctx, agentA, 404, "x", "", strings.NewReader(""), 0); codeOf(err) != apperrors.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if f.evidence.Len() != 1 {
		t.Error("expected no upload for a missing ticket")
	}
}

func TestGuard_ZeroRowsIsPermissionDenied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.inProgress(t)
	before := len(f.signals)
	f.store.Deny(ticket.ID)

	_, err := f.slaSvc.Pause(ctx, agentA, ticket.ID, "Esperando repuesto")
	if codeOf(err) != apperrors.CodePermissionDenied {
		t.Fatalf("expected PERMISSION_DENIED, got %v", err)
	}
	if !apperrors.NeedsResync(err) {
		t.Error("expected resync flag")
	}
	de := apperrors.ToDomainError(err)
	if de.Details["operation"] != OpPause || de.Details["ticket_id"] != ticket.ID {
		t.Errorf("expected operation details, got %v", de.Details)
	}

	got := f.reload(t, ticket.ID)
	if got.IsPaused() || got.Version != ticket.Version {
		t.Error("expected stored ticket unchanged")
	}
	if len(f.signals) != before {
		t.Error("expected no change signal for a rejected write")
	}
}

func TestGuard_DriverFailureIsTransient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.inProgress(t)
	f.store.FailNextWrite(context.DeadlineExceeded)

	_, err := f.lifecycle.AddComment(ctx, agentA, ticket.ID, "hola")
	if codeOf(err) != apperrors.CodeTransient || !apperrors.NeedsResync(err) {
		t.Fatalf("expected resync transient failure, got %v", err)
	}
	if n := len(f.eventTypes(t, ticket.ID)); n != 3 {
		t.Errorf("expected no new events, got %d", n)
	}
}

func TestGetAndList_DeriveBreachOnRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.inProgress(t)
	f.clock.Set(t0.Add(30 * time.Hour))

	view, err := f.lifecycle.Get(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !view.SLA.Breached {
		t.Error("expected breached at T0+30h")
	}
	if view.Ticket.SLAStatus != domain.SLAStatusRunning {
		t.Error("expected reads not to write breach status")
	}

	views, err := f.lifecycle.List(ctx, repository.TicketFilter{})
	if err != nil || len(views) != 1 || !views[0].SLA.Breached {
		t.Errorf("expected one breached view, got %+v (%v)", views, err)
	}

	if _, err := f.lifecycle.Get(ctx, 12345); codeOf(err) != apperrors.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func actionStrings(types []domain.ActionType) []string {
	out := make([]string, len(types))
	for i, a := range types {
		out[i] = string(a)
	}
	return out
}
