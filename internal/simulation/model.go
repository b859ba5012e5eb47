// Package simulation orchestrates one telemetry submission end to end:
// policy resolution, pure evaluation, outcome signature, dedup lookup, the
// alert decision, and persistence into the append-only history store.
package simulation

import (
	"time"

	"github.com/google/uuid"
	"github.com/sentrylab/aegis/internal/analysis"
)

// Result is the immutable outcome of one analysed submission. Once computed
// it is persisted verbatim; feedback labels reference it but never modify it.
type Result struct {
	ID         uuid.UUID  `json:"id"                    db:"id"`
	ScenarioID *uuid.UUID `json:"scenario_id,omitempty" db:"scenario_id"`
	DeviceID   string     `json:"device_id"             db:"device_id"`
	StartedAt  time.Time  `json:"started_at"            db:"started_at"`

	RiskScore       float64                  `json:"risk_score"`
	Indicators      []analysis.Indicator     `json:"indicators"`
	Recommendations []string                 `json:"recommendations"`
	Timeline        []analysis.TimelineEntry `json:"timeline"`
	BlockedActions  []analysis.BlockedAction `json:"blocked_actions"`
	Confidence      float64                  `json:"confidence"`

	Signature  string `json:"signature"`
	Suppressed bool   `json:"suppressed"`
	Alert      bool   `json:"alert"`

	// windowBucket is the dedupe window bucket used by the opt-in atomic
	// insert mode. Derived, not part of the API surface.
	windowBucket int64
}

// SimulateRequest is the payload for POST /simulate.
type SimulateRequest struct {
	ScenarioID uuid.UUID          `json:"scenario_id" binding:"required"`
	Telemetry  analysis.Telemetry `json:"telemetry"   binding:"required"`
}
