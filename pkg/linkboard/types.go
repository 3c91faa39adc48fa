package linkboard

import (
	"fmt"

	"github.com/google/uuid"
)

// DashboardRecord is the unit of exchange on a link: one dashboard template
// plus the addressing metadata the renderer needs to validate it. Each link
// carries at most one live record at a time; a new submission replaces the
// prior one wholesale.
type DashboardRecord struct {
	LinkID            string `json:"link_id"`            // Identifier of the link this record travels on
	Template          string `json:"template"`           // Codec-encoded template body (see EncodeTemplate)
	TargetIdentifier  string `json:"target_identifier"`  // Key matched against datasource names
	TargetLabel       string `json:"target_label"`       // Display name passed through into the template bindings
	TargetQuery       string `json:"target_query"`       // Selection filter passed through into the template bindings
	Removed           bool   `json:"removed"`            // True when the submitter is retracting the record
	Invalidated       bool   `json:"invalidated"`        // True when the submitter marks its own record invalid
	InvalidatedReason string `json:"invalidated_reason"` // Human-readable reason accompanying Invalidated
	Nonce             string `json:"nonce"`              // Single-use UUID forcing the transport to see a fresh write
}

// Feedback is the renderer's verdict on a link's record, written to the
// reverse slot. Empty Errors with Valid=true announces recovery or success;
// empty Errors with Valid=false carries no news and raises no signal.
type Feedback struct {
	Errors string `json:"errors"`
	Valid  bool   `json:"valid"`
}

// Empty reports whether the feedback carries no signal at all.
func (f Feedback) Empty() bool {
	return f.Errors == "" && !f.Valid
}

// Resource is a single datasource available for matching against a record's
// target identifier. Resource sets are always replaced wholesale; resources
// have no identity across updates.
type Resource struct {
	SourceName string `json:"source_name"`
}

// ReconcileStatus is the lifecycle state of a link on the renderer side.
type ReconcileStatus string

const (
	// StatusPending indicates a record has arrived but has not yet been
	// validated against the resource set.
	StatusPending ReconcileStatus = "pending"

	// StatusInvalid indicates the most recent validation failed; Reason
	// carries the cause.
	StatusInvalid ReconcileStatus = "invalid"

	// StatusActive indicates the record rendered successfully and an
	// artifact is stored.
	StatusActive ReconcileStatus = "active"
)

// ReconcileState is the renderer's durable per-link state. The reconciler
// exclusively owns it; submitters only ever see the Feedback derived from it.
type ReconcileState struct {
	LinkID   string             `json:"link_id"`
	Status   ReconcileStatus    `json:"status"`
	Reason   string             `json:"reason,omitempty"`   // Populated when Status is invalid
	Record   *DashboardRecord   `json:"record,omitempty"`   // Last-seen record, nonce stripped
	Artifact *RenderedArtifact  `json:"artifact,omitempty"` // Populated only when Status is active
}

// RenderedArtifact is the product of a successful reconciliation: the
// rendered dashboard plus the snapshot of the record that produced it. The
// snapshot backs the structural comparison that suppresses redundant
// downstream re-renders.
type RenderedArtifact struct {
	TargetAddress string          `json:"target_address"` // The record's target identifier
	Dashboard     string          `json:"dashboard"`      // Codec-encoded rendered output
	Source        DashboardRecord `json:"source"`         // Record snapshot used to render (nonce stripped)
}

// Validate checks that the record is well-formed enough to act on.
// Records failing validation are protocol violations: the renderer logs and
// drops them without feedback, since even the link id cannot be trusted.
func (r *DashboardRecord) Validate() error {
	if r.LinkID == "" {
		return fmt.Errorf("record link id cannot be empty")
	}

	if r.Nonce != "" {
		if _, err := uuid.Parse(r.Nonce); err != nil {
			return fmt.Errorf("invalid record nonce: not a valid UUID")
		}
	}

	// Retractions carry no payload; everything else must be renderable.
	if r.Removed {
		return nil
	}

	if r.TargetIdentifier == "" {
		return fmt.Errorf("record target identifier cannot be empty")
	}

	if r.Template == "" {
		return fmt.Errorf("record template cannot be empty")
	}

	return nil
}

// StripNonce returns a copy of the record with the nonce cleared. The nonce
// exists only to defeat last-write-wins suppression on the transport and
// must never reach state comparison or storage.
func (r DashboardRecord) StripNonce() DashboardRecord {
	r.Nonce = ""
	return r
}

// Equal reports whether two records are structurally identical. Used by the
// reconciler to decide whether a re-render actually changed anything.
func (r DashboardRecord) Equal(other DashboardRecord) bool {
	return r == other
}

// Validate checks if the ReconcileStatus is a valid enum value.
func (s ReconcileStatus) Validate() error {
	switch s {
	case StatusPending, StatusInvalid, StatusActive:
		return nil
	default:
		return fmt.Errorf("unknown reconcile status: %q", s)
	}
}

// Validate checks the state's internal consistency.
func (s *ReconcileState) Validate() error {
	if s.LinkID == "" {
		return fmt.Errorf("state link id cannot be empty")
	}

	if err := s.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	if s.Status == StatusActive && s.Artifact == nil {
		return fmt.Errorf("active state must carry an artifact")
	}

	if s.Status != StatusActive && s.Artifact != nil {
		return fmt.Errorf("%s state must not carry an artifact", s.Status)
	}

	return nil
}

// Identity describes the monitoring peer a submitter derives its target
// identifier from. Published by the monitoring side into the identity slot.
type Identity struct {
	Environment     string `json:"environment"`
	EnvironmentUUID string `json:"environment_uuid"`
	Application     string `json:"application"`
}

// TargetIdentifier derives the composite key matched against datasource
// names. Datasource names must contain this string entirely for a match.
func (id Identity) TargetIdentifier() string {
	return fmt.Sprintf("%s_%s_%s", id.Environment, id.EnvironmentUUID, id.Application)
}

// Validate checks that all identity components are present.
func (id Identity) Validate() error {
	if id.Environment == "" || id.EnvironmentUUID == "" || id.Application == "" {
		return fmt.Errorf("identity requires environment, environment_uuid and application")
	}
	return nil
}
