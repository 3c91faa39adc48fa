package reconciler

import (
	"strings"

	"github.com/example/dashlink/pkg/linkboard"
)

// MatchResource finds the datasource a record's target identifier resolves
// to. A resource matches when its name contains the target identifier as a
// substring; the identifier is a composite key, so equality would never hit
// decorated names like "staging_abc123_webapp [grafana]".
//
// When several resources match, the first in slice order wins. The resource
// feed is an ordered list, so the choice is deterministic for a given set.
// Returns ok=false when nothing matches or the identifier is empty.
func MatchResource(targetIdentifier string, resources []linkboard.Resource) (linkboard.Resource, bool) {
	if targetIdentifier == "" {
		return linkboard.Resource{}, false
	}

	for _, res := range resources {
		if strings.Contains(res.SourceName, targetIdentifier) {
			return res, true
		}
	}

	return linkboard.Resource{}, false
}
