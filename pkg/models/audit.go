package models

import (
	"fmt"
	"time"
)

// AuditAction is a lifecycle action recorded in the append-only audit trail.
type AuditAction string

// Audit actions.
const (
	AuditAccept         AuditAction = "accept"
	AuditModify         AuditAction = "modify"
	AuditReject         AuditAction = "reject"
	AuditAutoApprove    AuditAction = "auto_approve"
	AuditDriftTriggered AuditAction = "drift_triggered"
	AuditExpire         AuditAction = "expire"
)

// Valid reports whether a is a known audit action.
func (a AuditAction) Valid() bool {
	switch a {
	case AuditAccept, AuditModify, AuditReject, AuditAutoApprove, AuditDriftTriggered, AuditExpire:
		return true
	}
	return false
}

// AuditEntry is an append-only record of a lifecycle action. Previous and new
// states are value snapshots; entries are never updated or deleted.
type AuditEntry struct {
	ID               string         `json:"id" db:"id"`
	ServiceID        string         `json:"service_id" db:"service_id"`
	RecommendationID string         `json:"recommendation_id,omitempty" db:"recommendation_id"`
	Action           AuditAction    `json:"action" db:"action"`
	Actor            string         `json:"actor" db:"actor"`
	PreviousState    map[string]any `json:"previous_state,omitempty" db:"-"`
	NewState         map[string]any `json:"new_state,omitempty" db:"-"`
	Rationale        string         `json:"rationale,omitempty" db:"rationale"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// Validate checks the entry invariants.
func (e *AuditEntry) Validate() error {
	if e.ServiceID == "" {
		return fmt.Errorf("service_id is required")
	}
	if !e.Action.Valid() {
		return fmt.Errorf("invalid audit action %q", e.Action)
	}
	if e.Actor == "" {
		return fmt.Errorf("actor is required")
	}
	return nil
}

// ActiveSLO is the SLO currently in force for a (service, SLI type) pair,
// produced by accepting or modifying a recommendation.
type ActiveSLO struct {
	ID               string    `json:"id" db:"id"`
	ServiceID        string    `json:"service_id" db:"service_id"`
	SLIType          SLIType   `json:"sli_type" db:"sli_type"`
	RecommendationID string    `json:"recommendation_id" db:"recommendation_id"`
	Tier             TierName  `json:"tier" db:"tier"`
	Target           float64   `json:"target" db:"target"`
	Actor            string    `json:"actor" db:"actor"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}
