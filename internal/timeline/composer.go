package timeline

import (
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// SystemActorName is shown for events without an actor.
const SystemActorName = "System"

// EntryKind tells which source produced a timeline entry.
type EntryKind string

const (
	KindCreation EntryKind = "creation"
	KindEvent    EntryKind = "event"
	KindLegacy   EntryKind = "legacy"
)

// Entry is one row of the merged ticket history.
type Entry struct {
	Kind           EntryKind
	Source         string
	Title          string
	Actor          string
	Body           string
	Timestamp      time.Time
	TimestampKnown bool
	RawTimestamp   string
	EventID        int64
}

var actionTitles = map[domain.ActionType]string{
	domain.ActionCreated:      "Ticket created",
	domain.ActionStatusChange: "Status changed",
	domain.ActionPaused:       "SLA paused",
	domain.ActionResumed:      "SLA resumed",
	domain.ActionComment:      "Comment",
	domain.ActionReclassified: "Reclassified",
	domain.ActionAssigned:     "Assigned",
	domain.ActionSolution:     "Solution",
	domain.ActionEvidence:     "Evidence attached",
	domain.ActionSLABreached:  "SLA breached",
}

var legacyTitles = map[LegacyKind]string{
	LegacyFollowUp: "Follow-up note",
	LegacySolution: "Solution note",
	LegacyEvidence: "Evidence link",
}

// Title returns the human readable label for an action type.
func Title(action domain.ActionType) string {
	if title, ok := actionTitles[action]; ok {
		return title
	}
	label := strings.ToLower(strings.ReplaceAll(string(action), "_", " "))
	if label == "" {
		return "Event"
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// Options configures composition.
type Options struct {
	// Location is the zone legacy timestamps were written in.
	Location *time.Location
}

// Compose merges legacy description notes, stored events and one synthesized
// creation entry into a single list sorted newest first. It only reads its
// inputs. names maps actor ids to display names.
func Compose(ticket *domain.Ticket, events []domain.TicketEvent, names map[string]string, opts Options) []Entry {
	statement, notes := ParseLegacyNotes(ticket.DescriptionText(), opts.Location)
	entries := make([]Entry, 0, len(events)+len(notes)+1)

	creation := Entry{
		Kind:           KindCreation,
		Source:         string(domain.ActionCreated),
		Title:          Title(domain.ActionCreated),
		Actor:          SystemActorName,
		Body:           statement,
		Timestamp:      ticket.CreatedAt,
		TimestampKnown: !ticket.CreatedAt.IsZero(),
	}

	for _, ev := range events {
		if ev.ActionType == domain.ActionCreated {
			// folded into the synthesized origin entry
			creation.Actor = actorName(ev.ActorID, names)
			creation.EventID = ev.ID
			if creation.Body == "" {
				creation.Body = deref(ev.Comment)
			}
			continue
		}
		entries = append(entries, Entry{
			Kind:           KindEvent,
			Source:         string(ev.ActionType),
			Title:          Title(ev.ActionType),
			Actor:          actorName(ev.ActorID, names),
			Body:           eventBody(ev),
			Timestamp:      ev.CreatedAt,
			TimestampKnown: !ev.CreatedAt.IsZero(),
			EventID:        ev.ID,
		})
	}

	mirrors := mirroredNotes(events)
	for _, note := range notes {
		if mirrors.covers(note) {
			continue
		}
		entries = append(entries, Entry{
			Kind:           KindLegacy,
			Source:         string(note.Kind),
			Title:          legacyTitles[note.Kind],
			Body:           note.Text,
			Timestamp:      note.Timestamp,
			TimestampKnown: note.TimestampKnown,
			RawTimestamp:   note.RawTimestamp,
		})
	}

	entries = append(entries, creation)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries
}

// mirrorTolerance bounds the gap between an event and its description copy.
const mirrorTolerance = time.Minute

type noteMirrors map[string][]time.Time

// mirroredNotes indexes events that are also written into the description
// when legacy writes are on, so the copy is not rendered twice.
func mirroredNotes(events []domain.TicketEvent) noteMirrors {
	m := noteMirrors{}
	for _, ev := range events {
		switch ev.ActionType {
		case domain.ActionComment:
			m.add(LegacyFollowUp, deref(ev.Comment), ev.CreatedAt)
		case domain.ActionSolution:
			m.add(LegacySolution, deref(ev.Comment), ev.CreatedAt)
		case domain.ActionEvidence:
			m.add(LegacyEvidence, deref(ev.NewValue), ev.CreatedAt)
		}
	}
	return m
}

func (m noteMirrors) add(kind LegacyKind, text string, at time.Time) {
	key := string(kind) + "\x00" + strings.TrimSpace(text)
	m[key] = append(m[key], at)
}

func (m noteMirrors) covers(note LegacyNote) bool {
	times, ok := m[string(note.Kind)+"\x00"+strings.TrimSpace(note.Text)]
	if !ok {
		return false
	}
	// evidence links carry no timestamp
	if note.Kind == LegacyEvidence {
		return true
	}
	if !note.TimestampKnown {
		return false
	}
	for _, at := range times {
		gap := note.Timestamp.Sub(at)
		if gap < 0 {
			gap = -gap
		}
		if gap <= mirrorTolerance {
			return true
		}
	}
	return false
}

// ActorIDs collects the distinct actor ids referenced by events.
func ActorIDs(events []domain.TicketEvent) []string {
	seen := make(map[string]struct{}, len(events))
	ids := make([]string, 0, len(events))
	for i := range events {
		ev := &events[i]
		if ev.IsSystemEvent() {
			continue
		}
		if _, ok := seen[*ev.ActorID]; ok {
			continue
		}
		seen[*ev.ActorID] = struct{}{}
		ids = append(ids, *ev.ActorID)
	}
	return ids
}

func eventBody(ev domain.TicketEvent) string {
	if comment := strings.TrimSpace(deref(ev.Comment)); comment != "" {
		return comment
	}
	if ev.OldValue == nil && ev.NewValue == nil {
		return ""
	}
	return orDash(deref(ev.OldValue)) + " → " + orDash(deref(ev.NewValue))
}

func actorName(id *string, names map[string]string) string {
	if id == nil || *id == "" {
		return SystemActorName
	}
	if name, ok := names[*id]; ok && name != "" {
		return name
	}
	return *id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
