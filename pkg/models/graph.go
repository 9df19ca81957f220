package models

import (
	"fmt"
	"time"
)

// TraversalDirection selects which way edges are followed.
type TraversalDirection string

// Traversal directions.
const (
	DirectionDownstream TraversalDirection = "downstream"
	DirectionUpstream   TraversalDirection = "upstream"
	DirectionBoth       TraversalDirection = "both"
)

// Valid reports whether d is a known traversal direction.
func (d TraversalDirection) Valid() bool {
	return d == DirectionDownstream || d == DirectionUpstream || d == DirectionBoth
}

// Subgraph is the result of a bounded traversal. Nodes always include the
// start service when the subgraph is non-empty.
type Subgraph struct {
	StartServiceID string            `json:"start_service_id"`
	Nodes          []*Service        `json:"nodes"`
	Edges          []*DependencyEdge `json:"edges"`
	ReachedDepth   int               `json:"reached_depth"`
	HasCycle       bool              `json:"has_cycle"`
}

// IngestNode is one service declaration in an ingest payload.
type IngestNode struct {
	ServiceID    string         `json:"service_id" binding:"required"`
	Team         string         `json:"team,omitempty"`
	Criticality  Criticality    `json:"criticality,omitempty"`
	ServiceType  ServiceType    `json:"service_type,omitempty"`
	PublishedSLA *float64       `json:"published_sla,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// IngestEdge is one edge observation in an ingest payload.
type IngestEdge struct {
	Source            string            `json:"source" binding:"required"`
	Target            string            `json:"target" binding:"required"`
	CommunicationMode CommunicationMode `json:"communication_mode,omitempty"`
	Criticality       EdgeCriticality   `json:"criticality,omitempty"`
	Protocol          string            `json:"protocol,omitempty"`
	TimeoutMS         *int              `json:"timeout_ms,omitempty"`
	RetryConfig       *RetryConfig      `json:"retry_config,omitempty"`
	ConfidenceScore   *float64          `json:"confidence_score,omitempty"`
	RedundancyGroup   string            `json:"redundancy_group,omitempty"`
}

// IngestPayload is one discovery snapshot from a single source.
type IngestPayload struct {
	Source DiscoverySource `json:"source" binding:"required"`
	Nodes  []IngestNode    `json:"nodes"`
	Edges  []IngestEdge    `json:"edges"`
}

// Validate checks the payload before any write happens.
func (p *IngestPayload) Validate() error {
	if !p.Source.Valid() {
		return fmt.Errorf("unknown discovery source %q", p.Source)
	}
	if len(p.Nodes) == 0 && len(p.Edges) == 0 {
		return fmt.Errorf("payload contains no nodes and no edges")
	}
	for i, n := range p.Nodes {
		if n.ServiceID == "" {
			return fmt.Errorf("node %d: service_id is required", i)
		}
		if n.Criticality != "" && !n.Criticality.Valid() {
			return fmt.Errorf("node %s: invalid criticality %q", n.ServiceID, n.Criticality)
		}
		if n.ServiceType != "" && !n.ServiceType.Valid() {
			return fmt.Errorf("node %s: invalid service_type %q", n.ServiceID, n.ServiceType)
		}
	}
	for i, e := range p.Edges {
		if e.Source == "" || e.Target == "" {
			return fmt.Errorf("edge %d: source and target are required", i)
		}
		if e.Source == e.Target {
			return fmt.Errorf("edge %d: self-loop %s -> %s is not allowed", i, e.Source, e.Target)
		}
		if e.CommunicationMode != "" && !e.CommunicationMode.Valid() {
			return fmt.Errorf("edge %s->%s: invalid communication_mode %q", e.Source, e.Target, e.CommunicationMode)
		}
		if e.Criticality != "" && !e.Criticality.Valid() {
			return fmt.Errorf("edge %s->%s: invalid criticality %q", e.Source, e.Target, e.Criticality)
		}
		if e.ConfidenceScore != nil && (*e.ConfidenceScore < 0 || *e.ConfidenceScore > 1) {
			return fmt.Errorf("edge %s->%s: confidence_score outside [0, 1]", e.Source, e.Target)
		}
	}
	return nil
}

// IngestReport summarizes one ingest operation.
type IngestReport struct {
	Source             DiscoverySource `json:"source"`
	NodesUpserted      int             `json:"nodes_upserted"`
	EdgesUpserted      int             `json:"edges_upserted"`
	NewlyDetectedCycles [][]string     `json:"newly_detected_cycles,omitempty"`
	Warnings           []string        `json:"warnings,omitempty"`
	Conflicts          []string        `json:"conflicts,omitempty"`
}

// BatchFailure records one isolated per-service batch failure.
type BatchFailure struct {
	ServiceID string `json:"service_id"`
	Error     string `json:"error"`
}

// BatchResult summarizes one batch recomputation run.
type BatchResult struct {
	Total      int            `json:"total"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Duration   time.Duration  `json:"duration"`
	StartedAt  time.Time      `json:"started_at"`
	Failures   []BatchFailure `json:"failures,omitempty"`
}
