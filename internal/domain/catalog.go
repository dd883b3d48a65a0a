package domain

// PauseReason is a catalog entry agents pick when pausing the SLA clock.
type PauseReason struct {
	ID              int64
	Description     string
	Active          bool
	RequiresFreezer bool
}

// SLACategory holds per-category resolution targets in hours.
type SLACategory struct {
	Name          string
	StandardHours int
	VIPHours      int
	Active        bool
}
