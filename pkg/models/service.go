// Package models defines the domain entities and value objects shared by the
// service layer, the stores, and the API.
package models

import (
	"fmt"
	"time"
)

// Criticality classifies how important a service is to the business.
type Criticality string

// Criticality levels.
const (
	CriticalityCritical Criticality = "critical"
	CriticalityHigh     Criticality = "high"
	CriticalityMedium   Criticality = "medium"
	CriticalityLow      Criticality = "low"
)

// Valid reports whether c is a known criticality level.
func (c Criticality) Valid() bool {
	switch c {
	case CriticalityCritical, CriticalityHigh, CriticalityMedium, CriticalityLow:
		return true
	}
	return false
}

// ServiceType distinguishes services we operate from external providers.
type ServiceType string

// Service types.
const (
	ServiceTypeInternal ServiceType = "internal"
	ServiceTypeExternal ServiceType = "external"
)

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	return t == ServiceTypeInternal || t == ServiceTypeExternal
}

// Service is a participant in the dependency graph. ServiceID is the business
// identifier and is unique across the fleet.
type Service struct {
	ServiceID    string         `json:"service_id" db:"service_id"`
	Team         string         `json:"team,omitempty" db:"team"`
	Criticality  Criticality    `json:"criticality" db:"criticality"`
	ServiceType  ServiceType    `json:"service_type" db:"service_type"`
	PublishedSLA *float64       `json:"published_sla,omitempty" db:"published_sla"`
	Discovered   bool           `json:"discovered" db:"discovered"`
	Metadata     map[string]any `json:"metadata,omitempty" db:"-"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// Validate checks the entity invariants.
func (s *Service) Validate() error {
	if s.ServiceID == "" {
		return fmt.Errorf("service_id is required")
	}
	if !s.Criticality.Valid() {
		return fmt.Errorf("invalid criticality %q", s.Criticality)
	}
	if !s.ServiceType.Valid() {
		return fmt.Errorf("invalid service_type %q", s.ServiceType)
	}
	if s.PublishedSLA != nil {
		if s.ServiceType != ServiceTypeExternal {
			return fmt.Errorf("published_sla may only be set on external services")
		}
		if *s.PublishedSLA <= 0 || *s.PublishedSLA > 1 {
			return fmt.Errorf("published_sla must be in (0, 1], got %v", *s.PublishedSLA)
		}
	}
	return nil
}

// Placeholder creates a discovered placeholder service for an edge endpoint
// that was observed before explicit registration.
func Placeholder(serviceID string) *Service {
	return &Service{
		ServiceID:   serviceID,
		Criticality: CriticalityMedium,
		ServiceType: ServiceTypeInternal,
		Discovered:  true,
	}
}

// ServiceFilters narrows List results in the service repository.
type ServiceFilters struct {
	Team        string
	Criticality Criticality
	ServiceType ServiceType
	Discovered  *bool
}
