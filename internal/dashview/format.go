package dashview

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/example/dashlink/pkg/linkboard"
)

// FormatTable writes link states as a formatted table to the provided writer.
// The table includes columns: LINK, STATUS, TARGET, and DETAIL (truncated).
// Returns the number of states formatted.
func FormatTable(w io.Writer, states []*linkboard.ReconcileState, instanceName string) int {
	if len(states) == 0 {
		fmt.Fprintf(w, "No dashboards found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Dashboards for instance '%s':\n\n", instanceName)

	fmt.Fprintf(w, "%-20s %-8s %-30s %s\n",
		"LINK", "STATUS", "TARGET", "DETAIL")
	fmt.Fprintf(w, "%-20s %-8s %-30s %s\n",
		"--------------------", "--------", "------------------------------", "----------------------------------------")

	for _, s := range states {
		fmt.Fprintf(w, "%-20s %-8s %-30s %s\n",
			truncate(s.LinkID, 20),
			string(s.Status),
			truncate(formatTarget(s), 30),
			formatDetail(s),
		)
	}

	countMsg := "dashboard"
	if len(states) != 1 {
		countMsg = "dashboards"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(states), countMsg)

	return len(states)
}

// FormatJSONL writes link states as line-delimited JSON (JSONL) to the
// provided writer. Each state is written as a single JSON object on its own
// line, ideal for processing with tools like jq.
func FormatJSONL(w io.Writer, states []*linkboard.ReconcileState) error {
	for _, state := range states {
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to marshal state for link %s: %w", state.LinkID, err)
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

// FormatDashboard writes one link's full detail: its state, and for active
// links the decoded rendered dashboard body.
func FormatDashboard(w io.Writer, state *linkboard.ReconcileState) error {
	fmt.Fprintf(w, "Link:   %s\n", state.LinkID)
	fmt.Fprintf(w, "Status: %s\n", state.Status)

	if state.Status == linkboard.StatusInvalid {
		fmt.Fprintf(w, "Reason: %s\n", state.Reason)
	}

	if state.Record != nil {
		fmt.Fprintf(w, "Target: %s\n", state.Record.TargetIdentifier)
	}

	if state.Artifact == nil {
		return nil
	}

	body, err := linkboard.DecodeTemplate(state.Artifact.Dashboard)
	if err != nil {
		return fmt.Errorf("failed to decode rendered dashboard: %w", err)
	}

	fmt.Fprintf(w, "\n%s\n", body)
	return nil
}

func formatTarget(s *linkboard.ReconcileState) string {
	if s.Record == nil {
		return "-"
	}
	return s.Record.TargetIdentifier
}

func formatDetail(s *linkboard.ReconcileState) string {
	switch s.Status {
	case linkboard.StatusInvalid:
		return s.Reason
	case linkboard.StatusActive:
		if s.Artifact != nil {
			return fmt.Sprintf("rendered %d bytes", len(s.Artifact.Dashboard))
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
