package domain

// Actor identifies who performs a mutation. It is passed explicitly into every
// lifecycle call; a zero Actor is the system.
type Actor struct {
	ID   string
	Role AgentRole
}

// SystemActor is used by background jobs.
var SystemActor = Actor{}

// IsSystem reports whether the actor is the system.
func (a Actor) IsSystem() bool {
	return a.ID == ""
}

// IDPtr returns the actor id for event attribution, nil for the system.
func (a Actor) IDPtr() *string {
	if a.IsSystem() {
		return nil
	}
	id := a.ID
	return &id
}

// CanAdminister reports whether the actor may perform administrative transitions.
func (a Actor) CanAdminister() bool {
	return a.Role == AgentRoleSupervisor || a.Role == AgentRoleAdmin
}
