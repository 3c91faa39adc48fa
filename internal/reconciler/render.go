package reconciler

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/example/dashlink/pkg/linkboard"
)

// Bindings is the data a dashboard template is executed against. The label
// and query pass through from the record unrendered; only the datasource is
// resolved by the renderer.
type Bindings struct {
	Datasource string // Matched datasource name
	Target     string // The record's target label
	Query      string // The record's target query
}

// renderDashboard decodes a record's template blob, executes it against the
// matched datasource, and re-encodes the output for storage.
//
// The returned error distinguishes nothing: any decode, parse, or execute
// failure means the template cannot produce a dashboard and the record is
// invalid.
func renderDashboard(record linkboard.DashboardRecord, datasource string) (string, error) {
	body, err := linkboard.DecodeTemplate(record.Template)
	if err != nil {
		return "", fmt.Errorf("failed to decode template: %w", err)
	}

	tmpl, err := template.New(record.LinkID).Option("missingkey=error").Parse(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var out strings.Builder
	bindings := Bindings{
		Datasource: datasource,
		Target:     record.TargetLabel,
		Query:      record.TargetQuery,
	}
	if err := tmpl.Execute(&out, bindings); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	encoded, err := linkboard.EncodeTemplate(out.String())
	if err != nil {
		return "", fmt.Errorf("failed to encode rendered dashboard: %w", err)
	}

	return encoded, nil
}
