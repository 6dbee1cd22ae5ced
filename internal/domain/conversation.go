package domain

import "time"

// Persona identifies which AI team member a prompt is addressed to.
type Persona string

const (
	PersonaManager   Persona = "manager"
	PersonaAnalyst   Persona = "analyst"
	PersonaAssociate Persona = "associate"
	// PersonaGeneral is used for prompts that do not belong to a team member.
	PersonaGeneral Persona = "general"
)

// Role is the author of a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleManager   Role = "manager"
	RoleAnalyst   Role = "analyst"
	RoleAssociate Role = "associate"
)

// RoleOf returns the conversation role that records output from p.
func RoleOf(p Persona) Role {
	switch p {
	case PersonaManager:
		return RoleManager
	case PersonaAnalyst:
		return RoleAnalyst
	case PersonaAssociate:
		return RoleAssociate
	default:
		return Role(p)
	}
}

// ConversationEntry is one immutable line of the session audit trail.
type ConversationEntry struct {
	ID      string    `json:"id"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// AnalysisResult pairs an executed task with the analyst's answer.
type AnalysisResult struct {
	Task   string `json:"task"`
	Result string `json:"result"`
}
