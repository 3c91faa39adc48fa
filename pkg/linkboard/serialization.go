package linkboard

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Nested structures
// (record snapshots, artifacts) are JSON-encoded into single hash fields.
// This keeps scalar fields individually readable while allowing the
// reconcile state to carry whole records.

// RecordToHash converts a DashboardRecord to a Redis hash format.
func RecordToHash(r *DashboardRecord) map[string]interface{} {
	return map[string]interface{}{
		"link_id":            r.LinkID,
		"template":           r.Template,
		"target_identifier":  r.TargetIdentifier,
		"target_label":       r.TargetLabel,
		"target_query":       r.TargetQuery,
		"removed":            strconv.FormatBool(r.Removed),
		"invalidated":        strconv.FormatBool(r.Invalidated),
		"invalidated_reason": r.InvalidatedReason,
		"nonce":              r.Nonce,
	}
}

// HashToRecord converts a Redis hash to a DashboardRecord.
func HashToRecord(hash map[string]string) (*DashboardRecord, error) {
	removed, err := parseBoolField(hash, "removed")
	if err != nil {
		return nil, err
	}

	invalidated, err := parseBoolField(hash, "invalidated")
	if err != nil {
		return nil, err
	}

	record := &DashboardRecord{
		LinkID:            hash["link_id"],
		Template:          hash["template"],
		TargetIdentifier:  hash["target_identifier"],
		TargetLabel:       hash["target_label"],
		TargetQuery:       hash["target_query"],
		Removed:           removed,
		Invalidated:       invalidated,
		InvalidatedReason: hash["invalidated_reason"],
		Nonce:             hash["nonce"],
	}

	return record, nil
}

// StateToHash converts a ReconcileState to a Redis hash format.
// The record snapshot and artifact are JSON-encoded into single fields.
func StateToHash(s *ReconcileState) (map[string]interface{}, error) {
	hash := map[string]interface{}{
		"link_id": s.LinkID,
		"status":  string(s.Status),
		"reason":  s.Reason,
	}

	if s.Record != nil {
		recordJSON, err := json.Marshal(s.Record)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal state record: %w", err)
		}
		hash["record"] = string(recordJSON)
	} else {
		hash["record"] = ""
	}

	if s.Artifact != nil {
		artifactJSON, err := json.Marshal(s.Artifact)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal state artifact: %w", err)
		}
		hash["artifact"] = string(artifactJSON)
	} else {
		hash["artifact"] = ""
	}

	return hash, nil
}

// HashToState converts a Redis hash to a ReconcileState.
func HashToState(hash map[string]string) (*ReconcileState, error) {
	state := &ReconcileState{
		LinkID: hash["link_id"],
		Status: ReconcileStatus(hash["status"]),
		Reason: hash["reason"],
	}

	if recordJSON := hash["record"]; recordJSON != "" {
		state.Record = &DashboardRecord{}
		if err := json.Unmarshal([]byte(recordJSON), state.Record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state record: %w", err)
		}
	}

	if artifactJSON := hash["artifact"]; artifactJSON != "" {
		state.Artifact = &RenderedArtifact{}
		if err := json.Unmarshal([]byte(artifactJSON), state.Artifact); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state artifact: %w", err)
		}
	}

	return state, nil
}

func parseBoolField(hash map[string]string, field string) (bool, error) {
	raw, ok := hash[field]
	if !ok || raw == "" {
		return false, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s field: %w", field, err)
	}

	return value, nil
}
