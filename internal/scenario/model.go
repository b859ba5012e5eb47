// Package scenario stores attack scenario definitions used to label
// simulated telemetry runs. Scenarios carry no evaluation logic of their
// own; they are plain records referenced by simulations.
package scenario

import (
	"time"

	"github.com/google/uuid"
)

// Scenario describes a simulated attack: a name plus the MITRE ATT&CK
// tactics and techniques it exercises.
type Scenario struct {
	ID          uuid.UUID `json:"id"          db:"id"`
	Name        string    `json:"name"        db:"name"`
	Description string    `json:"description" db:"description"`
	Tactics     []string  `json:"tactics"     db:"tactics"`
	Techniques  []string  `json:"techniques"  db:"techniques"`
	Severity    string    `json:"severity"    db:"severity"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
}

// CreateRequest is the payload for creating a scenario.
type CreateRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Tactics     []string `json:"tactics"`
	Techniques  []string `json:"techniques"`
	Severity    string   `json:"severity"`
}
