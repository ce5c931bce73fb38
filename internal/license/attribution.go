package license

import (
	"strings"

	"github.com/MacJediWizard/licenseclient/pkg/models"
)

// IsImportable reports whether material under the copyright's license may be imported:
// any attribution license, CC0 or the Public Domain Mark.
func IsImportable(c models.Copyright) bool {
	code, ok := Normalize(c.License.License)
	if !ok {
		return false
	}
	return code.Has(PartBY) || code == CodeCC0 || code == CodePDM
}

// BuildAttribution renders a human readable attribution line:
// creators, rightsholders, the raw license and an optional source link, joined by ". ".
// An empty backlink omits the source segment.
func BuildAttribution(c models.Copyright, backlink string) string {
	segments := []string{
		joinParties(c.Creators),
		joinParties(c.Rightsholders),
	}
	if c.License.License != "" {
		segments = append(segments, "License: "+c.License.License)
	}
	if backlink != "" {
		segments = append(segments, "Source: "+backlink)
	}

	out := segments[:0]
	for _, s := range segments {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ". ")
}

func joinParties(parties []models.Party) string {
	formatted := make([]string, 0, len(parties))
	for _, p := range parties {
		formatted = append(formatted, p.Type+": "+p.Name)
	}
	return strings.Join(formatted, ", ")
}
