package model

import (
	"encoding/json"
	"time"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Label returns the display label used by the console.
func (s Severity) Label() string {
	switch s {
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// Alert is a backend-raised notice about suspicious traffic.
type Alert struct {
	ID          ID              `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Severity    Severity        `json:"severity"`
	Timestamp   time.Time       `json:"timestamp"`
	Resolved    bool            `json:"resolved"`
	Details     json.RawMessage `json:"details,omitempty"`
	Suggestion  string          `json:"suggestion,omitempty"`
}

// AlertState is the client-observed lifecycle state of an alert.
type AlertState string

const (
	AlertStateOpen      AlertState = "open"
	AlertStateResolved  AlertState = "resolved"
	AlertStateDismissed AlertState = "dismissed"
)

// State projects the alert onto the open/resolved part of the lifecycle.
// Dismissed alerts are never listed, so they have no projection here.
func (a Alert) State() AlertState {
	if a.Resolved {
		return AlertStateResolved
	}
	return AlertStateOpen
}

// HasDetails reports whether the alert carries a non-null details payload.
func (a Alert) HasDetails() bool {
	return len(a.Details) > 0 && string(a.Details) != "null"
}
