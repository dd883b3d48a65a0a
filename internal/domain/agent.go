package domain

import "time"

// AgentRole enumerates help-desk operator roles.
type AgentRole string

const (
	AgentRoleAgent      AgentRole = "AGENT"
	AgentRoleSupervisor AgentRole = "SUPERVISOR"
	AgentRoleAdmin      AgentRole = "ADMIN"
)

// Agent is an operator that can own and work tickets.
type Agent struct {
	ID        string
	Name      string
	Email     string
	Role      AgentRole
	Active    bool
	CreatedAt time.Time
}

// Requester is the end user a ticket is raised for.
type Requester struct {
	ID    string
	Name  string
	Email string
	IsVIP bool
}
