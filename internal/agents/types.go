// Package agents provides the agent data model, roles, bounded interaction
// history and the registry that owns every agent in the economy.
package agents

import (
	"github.com/google/uuid"

	"github.com/talgya/tokensim/internal/world"
)

// AgentID is a unique identifier for an agent, e.g. "traders_7".
type AgentID string

// Role determines which interaction rules an agent takes part in.
// It is fixed at creation.
type Role uint8

const (
	RoleTrader Role = iota
	RoleConsumer
	RoleProducer
	RoleExplorer
	RoleGovernor
)

// NumRoles is the number of distinct roles.
const NumRoles = 5

// Roles lists every role in registry order.
var Roles = [NumRoles]Role{RoleTrader, RoleConsumer, RoleProducer, RoleExplorer, RoleGovernor}

var roleGroups = [NumRoles]string{"traders", "consumers", "producers", "explorers", "governors"}

// Group returns the plural group key used in snapshots.
func (r Role) Group() string {
	if int(r) < len(roleGroups) {
		return roleGroups[r]
	}
	return "unknown"
}

func (r Role) String() string {
	return r.Group()
}

// ParseGroup maps a group key back onto its role.
func ParseGroup(group string) (Role, bool) {
	for i, g := range roleGroups {
		if g == group {
			return Role(i), true
		}
	}
	return 0, false
}

// Agent is one participant of the economy.
type Agent struct {
	ID   AgentID `json:"id"`
	Role Role    `json:"-"`

	// Economic
	Tokens    float64 `json:"swt"` // May go negative; see engine for the clamped paths
	Resources float64 `json:"resources"`

	// Location
	Position world.Point `json:"position"`

	// Social. Only the alliance manager writes AllianceID.
	AllianceID *uuid.UUID    `json:"alliance_id,omitempty"`
	History    []Interaction `json:"history,omitempty"`
	Recorded   uint64        `json:"recorded"` // Total records ever made, including those evicted from History
}

// Allied reports whether the agent belongs to any alliance.
func (a *Agent) Allied() bool {
	return a.AllianceID != nil
}

// SameAlliance reports whether both agents reference the same non-null alliance.
func SameAlliance(a, b *Agent) bool {
	return a.AllianceID != nil && b.AllianceID != nil && *a.AllianceID == *b.AllianceID
}
