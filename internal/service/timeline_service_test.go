package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/timeline"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

func TestTimeline_MergesHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.inProgress(t)

	f.clock.Advance(time.Hour)
	if _, err := f.slaSvc.Pause(ctx, agentA, ticket.ID, "Esperando repuesto"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	f.clock.Advance(time.Hour)
	if _, err := f.lifecycle.AddComment(ctx, domain.Actor{ID: "ghost", Role: domain.AgentRoleAgent}, ticket.ID, "revisado por turno noche"); err != nil {
		t.Fatalf("comment: %v", err)
	}

	// a note written by an older client straight into the description
	stored := f.reload(t, ticket.ID)
	desc := stored.DescriptionText() + timeline.FormatFollowUp(t0.Add(30*time.Minute), "llamé al usuario", time.UTC)
	stored.Description = &desc
	if _, err := f.store.Tickets().Update(ctx, stored, stored.Version); err != nil {
		t.Fatalf("seed legacy note: %v", err)
	}

	got, entries, err := f.timeline.Timeline(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if got.ID != ticket.ID {
		t.Errorf("expected ticket %d, got %d", ticket.ID, got.ID)
	}

	for i := 1; i < len(entries); i++ {
		if entries[i-1].Timestamp.Before(entries[i].Timestamp) {
			t.Fatalf("entries not newest first at %d", i)
		}
	}

	newest := entries[0]
	if newest.Source != string(domain.ActionComment) || newest.Actor != "ghost" {
		t.Errorf("expected unknown actor shown by id, got %+v", newest)
	}

	var creation, legacy, paused *timeline.Entry
	for i := range entries {
		switch {
		case entries[i].Kind == timeline.KindCreation:
			creation = &entries[i]
		case entries[i].Kind == timeline.KindLegacy:
			legacy = &entries[i]
		case entries[i].Source == string(domain.ActionPaused):
			paused = &entries[i]
		}
	}
	if creation == nil || creation.Actor != "Ana" || creation.Body != "El equipo no enciende" {
		t.Errorf("unexpected creation entry %+v", creation)
	}
	if legacy == nil || legacy.Body != "llamé al usuario" || !legacy.Timestamp.Equal(t0.Add(30*time.Minute)) {
		t.Errorf("unexpected legacy entry %+v", legacy)
	}
	if paused == nil || paused.Body != "Esperando repuesto (freezer)" || paused.Actor != "Ana" {
		t.Errorf("unexpected pause entry %+v", paused)
	}
}

func TestTimeline_SystemActorAndMissingTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.inProgress(t)
	f.clock.Set(t0.Add(26 * time.Hour))
	if _, err := f.slaSvc.SweepBreaches(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	_, entries, err := f.timeline.Timeline(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if entries[0].Source != string(domain.ActionSLABreached) || entries[0].Actor != timeline.SystemActorName {
		t.Errorf("expected system breach entry first, got %+v", entries[0])
	}

	if _, _, err := f.timeline.Timeline(ctx, 77); codeOf(err) != apperrors.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}
