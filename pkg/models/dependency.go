package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// CommunicationMode is how a caller talks to a dependency.
type CommunicationMode string

// Communication modes.
const (
	CommunicationSync  CommunicationMode = "sync"
	CommunicationAsync CommunicationMode = "async"
)

// Valid reports whether m is a known communication mode.
func (m CommunicationMode) Valid() bool {
	return m == CommunicationSync || m == CommunicationAsync
}

// EdgeCriticality distinguishes hard dependencies (failure propagates) from
// soft ones (degraded path permitted).
type EdgeCriticality string

// Edge criticalities.
const (
	EdgeHard EdgeCriticality = "hard"
	EdgeSoft EdgeCriticality = "soft"
)

// Valid reports whether c is a known edge criticality.
func (c EdgeCriticality) Valid() bool {
	return c == EdgeHard || c == EdgeSoft
}

// DiscoverySource identifies where an edge observation came from.
type DiscoverySource string

// Discovery sources, highest priority first.
const (
	SourceManual          DiscoverySource = "manual"
	SourceServiceMesh     DiscoverySource = "service_mesh"
	SourceOTelServiceGraph DiscoverySource = "otel_service_graph"
	SourceKubernetes      DiscoverySource = "kubernetes"
)

// Valid reports whether s is a known discovery source.
func (s DiscoverySource) Valid() bool {
	switch s {
	case SourceManual, SourceServiceMesh, SourceOTelServiceGraph, SourceKubernetes:
		return true
	}
	return false
}

// Priority returns the merge rank of the source; higher wins when the same
// (source, target) pair was observed by multiple sources.
func (s DiscoverySource) Priority() int {
	switch s {
	case SourceManual:
		return 4
	case SourceServiceMesh:
		return 3
	case SourceOTelServiceGraph:
		return 2
	case SourceKubernetes:
		return 1
	}
	return 0
}

// DefaultConfidence returns the confidence score assigned at ingest when the
// payload does not carry one.
func (s DiscoverySource) DefaultConfidence() float64 {
	switch s {
	case SourceManual:
		return 1.0
	case SourceServiceMesh:
		return 0.9
	case SourceOTelServiceGraph:
		return 0.7
	case SourceKubernetes:
		return 0.5
	}
	return 0.5
}

// RetryConfig describes the retry behavior configured on an edge.
type RetryConfig struct {
	MaxAttempts int     `json:"max_attempts"`
	BackoffMS   int     `json:"backoff_ms,omitempty"`
	Multiplier  float64 `json:"multiplier,omitempty"`
}

// DependencyEdge is a directed relationship between two services. The tuple
// (SourceID, TargetID, DiscoverySource) is unique; every source keeps its own
// row and priority applies only when rendering a merged view.
type DependencyEdge struct {
	ID                string            `json:"id" db:"id"`
	SourceID          string            `json:"source" db:"source_id"`
	TargetID          string            `json:"target" db:"target_id"`
	CommunicationMode CommunicationMode `json:"communication_mode" db:"communication_mode"`
	Criticality       EdgeCriticality   `json:"criticality" db:"criticality"`
	Protocol          string            `json:"protocol,omitempty" db:"protocol"`
	TimeoutMS         *int              `json:"timeout_ms,omitempty" db:"timeout_ms"`
	RetryConfig       *RetryConfig      `json:"retry_config,omitempty" db:"-"`
	DiscoverySource   DiscoverySource   `json:"discovery_source" db:"discovery_source"`
	ConfidenceScore   float64           `json:"confidence_score" db:"confidence_score"`
	LastObservedAt    time.Time         `json:"last_observed_at" db:"last_observed_at"`
	IsStale           bool              `json:"is_stale" db:"is_stale"`
	RedundancyGroup   string            `json:"redundancy_group,omitempty" db:"redundancy_group"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}

// Validate checks the edge invariants.
func (e *DependencyEdge) Validate() error {
	if e.SourceID == "" || e.TargetID == "" {
		return fmt.Errorf("edge endpoints are required")
	}
	if e.SourceID == e.TargetID {
		return fmt.Errorf("self-loop edge %s -> %s is not allowed", e.SourceID, e.TargetID)
	}
	if !e.CommunicationMode.Valid() {
		return fmt.Errorf("invalid communication_mode %q", e.CommunicationMode)
	}
	if !e.Criticality.Valid() {
		return fmt.Errorf("invalid edge criticality %q", e.Criticality)
	}
	if !e.DiscoverySource.Valid() {
		return fmt.Errorf("invalid discovery_source %q", e.DiscoverySource)
	}
	if e.ConfidenceScore < 0 || e.ConfidenceScore > 1 {
		return fmt.Errorf("confidence_score must be in [0, 1], got %v", e.ConfidenceScore)
	}
	return nil
}

// IsHardSync reports whether the edge participates in the composite
// availability product.
func (e *DependencyEdge) IsHardSync() bool {
	return e.Criticality == EdgeHard && e.CommunicationMode == CommunicationSync
}

// CycleStatus is the lifecycle state of a recorded circular dependency.
type CycleStatus string

// Cycle statuses.
const (
	CycleOpen         CycleStatus = "open"
	CycleAcknowledged CycleStatus = "acknowledged"
	CycleResolved     CycleStatus = "resolved"
)

// Valid reports whether s is a known cycle status.
func (s CycleStatus) Valid() bool {
	return s == CycleOpen || s == CycleAcknowledged || s == CycleResolved
}

// CircularDependency records a strongly connected component with more than one
// member. MemberKey is the canonical identity so re-detection never duplicates.
type CircularDependency struct {
	ID             string      `json:"id" db:"id"`
	MemberKey      string      `json:"member_key" db:"member_key"`
	Members        []string    `json:"members" db:"-"`
	Status         CycleStatus `json:"status" db:"status"`
	DetectedAt     time.Time   `json:"detected_at" db:"detected_at"`
	LastDetectedAt time.Time   `json:"last_detected_at" db:"last_detected_at"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty" db:"resolved_at"`
}

// CycleKey computes the canonical identity of an SCC: the lexicographically
// sorted member list joined with ",".
func CycleKey(members []string) string {
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
