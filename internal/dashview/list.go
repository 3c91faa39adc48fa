// Package dashview implements the read-side of the dashlink CLI: listing
// and inspecting the renderer's per-link state and rendered dashboards.
package dashview

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/dashlink/pkg/linkboard"
)

// OutputFormat specifies how to format the dashboard list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated reasons
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete states as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates and converts a format string.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	case "":
		return OutputFormatDefault, nil
	default:
		return "", fmt.Errorf("unknown output format: %q (expected: default, jsonl)", s)
	}
}

// List retrieves all tracked link states, ordered by link id.
func List(ctx context.Context, client *linkboard.Client) ([]*linkboard.ReconcileState, error) {
	states, err := client.ListStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list link states: %w", err)
	}

	sort.Slice(states, func(i, j int) bool { return states[i].LinkID < states[j].LinkID })
	return states, nil
}

// Get retrieves one link's state.
func Get(ctx context.Context, client *linkboard.Client, linkID string) (*linkboard.ReconcileState, error) {
	state, err := client.GetState(ctx, linkID)
	if err != nil {
		if linkboard.IsNotFound(err) {
			return nil, fmt.Errorf("no dashboard state for link %q", linkID)
		}
		return nil, fmt.Errorf("failed to get link state: %w", err)
	}
	return state, nil
}
