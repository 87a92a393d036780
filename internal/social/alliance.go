// Package social provides alliances, groups of mutually trusting agents.
package social

import (
	"github.com/google/uuid"

	"github.com/talgya/tokensim/internal/agents"
)

// AllianceID identifies an alliance. Agents hold only this id; the Manager
// is the single source of truth for membership.
type AllianceID = uuid.UUID

// Alliance is a group of at least two agents receiving preferential rates.
type Alliance struct {
	ID      AllianceID       `json:"id"`
	Members []agents.AgentID `json:"members"`
}

// Has reports whether id is a member.
func (a *Alliance) Has(id agents.AgentID) bool {
	return a.indexOf(id) >= 0
}

func (a *Alliance) indexOf(id agents.AgentID) int {
	for i, m := range a.Members {
		if m == id {
			return i
		}
	}
	return -1
}

func (a *Alliance) remove(id agents.AgentID) {
	if i := a.indexOf(id); i >= 0 {
		a.Members = append(a.Members[:i], a.Members[i+1:]...)
	}
}

// Standing is the alliance relationship between two agents, used to pick a
// trade rate.
type Standing uint8

const (
	StandingNeutral  Standing = iota // Neither allied, or allied to different alliances
	StandingAllied                   // Same alliance
	StandingOutsider                 // Exactly one of the two is allied
)

func (s Standing) String() string {
	switch s {
	case StandingAllied:
		return "allied"
	case StandingOutsider:
		return "outsider"
	default:
		return "neutral"
	}
}

// Change reports what an alliance operation did.
type Change uint8

const (
	ChangeNone      Change = iota
	ChangeFormed           // A new alliance was created
	ChangeJoined           // An unaffiliated agent joined an existing alliance
	ChangeLeft             // Members left; the alliance survives
	ChangeDissolved        // The alliance was deleted
)

func (c Change) String() string {
	switch c {
	case ChangeFormed:
		return "formed"
	case ChangeJoined:
		return "joined"
	case ChangeLeft:
		return "left"
	case ChangeDissolved:
		return "dissolved"
	default:
		return "none"
	}
}
