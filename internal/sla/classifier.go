package sla

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

var freezerPattern = regexp.MustCompile(`(?i)repuesto|garantia|proveedor|compra`)

// MatchesFreezerPattern reports whether a free-text reason mentions parts,
// warranty, a supplier or a purchase. Accents are folded before matching.
func MatchesFreezerPattern(reason string) bool {
	return freezerPattern.MatchString(foldAccents(reason))
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U",
)

func foldAccents(s string) string {
	return accentFolder.Replace(s)
}

// Decision is the routing outcome for a pause.
type Decision struct {
	RequiresFreezer bool
	// Matched is the catalog entry the reason resolved to, nil for free text.
	Matched *domain.PauseReason
}

// ResultingStatus is EN_ESPERA for freezer pauses and EN_PROGRESO otherwise.
func (d Decision) ResultingStatus() domain.TicketStatus {
	if d.RequiresFreezer {
		return domain.TicketStatusOnHold
	}
	return domain.TicketStatusInProgress
}

// Route names the decision for event comments and logs.
func (d Decision) Route() string {
	if d.RequiresFreezer {
		return "freezer"
	}
	return "active"
}

// Classifier maps a pause reason to a freezer decision using the tagged
// catalog. Free-text reasons are untagged and stay active unless the legacy
// pattern fallback is enabled.
type Classifier struct {
	byDescription   map[string]domain.PauseReason
	byID            map[string]domain.PauseReason
	patternFallback bool
}

// NewClassifier indexes the active catalog entries.
func NewClassifier(catalog []domain.PauseReason, patternFallback bool) *Classifier {
	c := &Classifier{
		byDescription:   make(map[string]domain.PauseReason, len(catalog)),
		byID:            make(map[string]domain.PauseReason, len(catalog)),
		patternFallback: patternFallback,
	}
	for _, reason := range catalog {
		if !reason.Active {
			continue
		}
		c.byDescription[normalizeReason(reason.Description)] = reason
		c.byID[strconv.FormatInt(reason.ID, 10)] = reason
	}
	return c
}

// Classify resolves the reason against the catalog by id or description.
func (c *Classifier) Classify(reason string) Decision {
	key := normalizeReason(reason)
	if entry, ok := c.byDescription[key]; ok {
		return Decision{RequiresFreezer: entry.RequiresFreezer, Matched: &entry}
	}
	if entry, ok := c.byID[key]; ok {
		return Decision{RequiresFreezer: entry.RequiresFreezer, Matched: &entry}
	}
	if c.patternFallback {
		return Decision{RequiresFreezer: MatchesFreezerPattern(reason)}
	}
	return Decision{}
}

// Canonical returns the catalog description when the reason is a catalog id,
// so stored hold reasons read as text rather than numbers.
func (d Decision) Canonical(reason string) string {
	if d.Matched != nil {
		return d.Matched.Description
	}
	return strings.TrimSpace(reason)
}

func normalizeReason(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(foldAccents(s)), " "))
}
