package timeline

import (
	"regexp"
	"strings"
	"time"
)

// LegacyKind identifies which marker introduced a legacy description entry.
type LegacyKind string

const (
	LegacyFollowUp LegacyKind = "SEGUIMIENTO"
	LegacySolution LegacyKind = "SOLUCION"
	LegacyEvidence LegacyKind = "EVIDENCIA"
)

// LegacyNote is one entry recovered from the description field.
type LegacyNote struct {
	Kind           LegacyKind
	RawTimestamp   string
	Timestamp      time.Time
	TimestampKnown bool
	Text           string
}

// Markers look like "\n\n[<timestamp>] SEGUIMIENTO: text", "\n\n[<timestamp>] SOLUCION: text"
// or "\n\n[EVIDENCIA]: url". The timestamp block may be missing or garbled.
var legacyMarker = regexp.MustCompile(`(?:^|\n\n)(?:\[(EVIDENCIA)\]|(?:\[([^\]\n]*)\][ \t]*)?(SEGUIMIENTO|SOLUCI[OÓ]N))[ \t]*:[ \t]*`)

var legacyLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2/1/2006, 15:04:05",
	"2/1/2006 15:04:05",
	"2/1/2006, 15:04",
	"2/1/2006 15:04",
}

// ParseLegacyNotes splits a description into the original problem statement
// and the notes appended after it. It never fails: entries with unparseable
// timestamps are returned with TimestampKnown=false and a zero Timestamp.
func ParseLegacyNotes(description string, loc *time.Location) (string, []LegacyNote) {
	if loc == nil {
		loc = time.UTC
	}
	matches := legacyMarker.FindAllStringSubmatchIndex(description, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(description), nil
	}

	statement := strings.TrimSpace(description[:matches[0][0]])
	notes := make([]LegacyNote, 0, len(matches))
	for i, m := range matches {
		end := len(description)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		note := LegacyNote{Text: strings.TrimSpace(description[m[1]:end])}

		switch {
		case m[2] >= 0:
			note.Kind = LegacyEvidence
		case strings.HasPrefix(description[m[6]:m[7]], "SEGUIMIENTO"):
			note.Kind = LegacyFollowUp
		default:
			note.Kind = LegacySolution
		}
		if m[4] >= 0 {
			note.RawTimestamp = strings.TrimSpace(description[m[4]:m[5]])
			note.Timestamp, note.TimestampKnown = parseLegacyTimestamp(note.RawTimestamp, loc)
		}
		notes = append(notes, note)
	}
	return statement, notes
}

func parseLegacyTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range legacyLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// FormatFollowUp renders a note in the legacy description format.
func FormatFollowUp(at time.Time, text string, loc *time.Location) string {
	return formatMarker(at, string(LegacyFollowUp), text, loc)
}

// FormatSolution renders a solution in the legacy description format.
func FormatSolution(at time.Time, text string, loc *time.Location) string {
	return formatMarker(at, string(LegacySolution), text, loc)
}

// FormatEvidence renders an evidence link in the legacy description format.
func FormatEvidence(url string) string {
	return "\n\n[EVIDENCIA]: " + url
}

func formatMarker(at time.Time, marker, text string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return "\n\n[" + at.In(loc).Format("2006-01-02 15:04:05") + "] " + marker + ": " + strings.TrimSpace(text)
}
