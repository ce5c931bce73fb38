package license

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// longFormPart maps a spelled-out license term to its short form.
type longFormPart struct {
	long  string
	short string
}

// longFormParts is applied in order. Compound and spaced spellings come before the
// words they contain so that each term is replaced exactly once.
var longFormParts = []longFormPart{
	// English
	{"ATTRIBUTION", "BY"},
	{"SHAREALIKE", "SA"},
	{"SHARE ALIKE", "SA"},
	{"SHARE-ALIKE", "SA"},
	{"NODERIVATIVES", "ND"},
	{"NO DERIVATIVES", "ND"},
	{"NO-DERIVATIVES", "ND"},
	{"NONCOMMERCIAL", "NC"},
	{"NON COMMERCIAL", "NC"},
	{"NON-COMMERCIAL", "NC"},
	{"PRIVATE", "C"},
	{"COPYRIGHT", "C"},
	{"ZERO", "CC0"},
	{"PUBLIC DOMAIN MARK", "PDM"},
	{"PUBLIC DOMAIN", "PD"},

	// Norwegian, after Æ/Ø/Å folding
	{"NAVNGIVELSE", "BY"},
	{"DEL PA SAMME VILKAR", "SA"},
	{"DELPASAMMEVILKAR", "SA"},
	{"INGEN BEARBEIDELSE", "ND"},
	{"INGENBEARBEIDELSE", "ND"},
	{"IKKEKOMMERSIELL", "NC"},
	{"IKKE KOMMERSIELL", "NC"},
	{"IKKE-KOMMERSIELL", "NC"},
}

// noiseParts are removed after long form replacement.
var noiseParts = []string{
	"CREATIVE COMMONS",
	"CREATIVE-COMMONS",
	"LICENSE",
	"LISENS",
	"CC-",
	"CC ",
	"-1.0",
	"1.0",
	"-2.0",
	"2.0",
	"-2.5",
	"2.5",
	"-3.0",
	"3.0",
	"-4.0",
	"4.0",
	"INTERNATIONAL",
	"INTERNASJONAL",
}

func foldNordic(r rune) rune {
	switch r {
	case 'Æ', 'æ', 'Å', 'å':
		return 'A'
	case 'Ø', 'ø':
		return 'O'
	}
	return r
}

// fold uppercases s and replaces Norwegian letters with their ASCII equivalents.
// Casers are stateful, so a fresh chain is built per call.
func fold(s string) (string, bool) {
	t := transform.Chain(cases.Upper(language.Und), runes.Map(foldNordic))
	out, _, err := transform.String(t, s)
	if err != nil {
		return "", false
	}
	return out, true
}

// Normalize turns license text such as "Attribution-ShareAlike 4.0 International" or
// "Navngivelse-Ikkekommersiell" into a canonical code. It reports false when the text
// does not describe a supported license; unrecognized terms are never dropped silently.
func Normalize(text string) (Code, bool) {
	s, ok := fold(strings.TrimSpace(text))
	if !ok {
		return "", false
	}

	for _, p := range longFormParts {
		s = strings.ReplaceAll(s, p.long, p.short)
	}
	for _, noise := range noiseParts {
		s = strings.ReplaceAll(s, noise, "")
	}

	s = strings.Join(strings.Fields(s), "-")
	parts := uniqueParts(strings.Split(s, "-"))

	if len(parts) == 1 {
		switch parts[0] {
		case "C":
			parts[0] = string(PartPrivate)
		case "PD":
			parts[0] = string(PartPDM)
		}
	}

	ordered, ok := orderParts(parts)
	if !ok {
		return "", false
	}

	code := Code(strings.Join(ordered, "-"))
	if !code.IsValid() {
		return "", false
	}
	return code, true
}

// uniqueParts drops empty and repeated parts, keeping first occurrences.
func uniqueParts(parts []string) []string {
	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// orderParts sorts parts into canonical precedence. It fails if any part is not a
// recognized term.
func orderParts(parts []string) ([]string, bool) {
	if len(parts) == 0 {
		return nil, false
	}

	present := make(map[string]bool, len(parts))
	for _, p := range parts {
		present[p] = true
	}

	ordered := make([]string, 0, len(parts))
	for _, p := range partOrder {
		if present[string(p)] {
			ordered = append(ordered, string(p))
		}
	}

	if len(ordered) != len(parts) {
		return nil, false
	}
	return ordered, true
}

var externalTaxonomy = map[Code]string{
	CodeCC0:     "CC0 1.0",
	CodeBY:      "CC BY",
	CodeBYSA:    "CC BY-SA",
	CodeBYND:    "CC BY-ND",
	CodeBYNC:    "CC BY-NC",
	CodeBYNCSA:  "CC BY-NC-SA",
	CodeBYNCND:  "CC BY-NC-ND",
	CodePrivate: "C",
	CodePDM:     "CC PDM",
}

// ExternalTaxonomyCode normalizes text and returns the H5P license string for it.
func ExternalTaxonomyCode(text string) (string, bool) {
	code, ok := Normalize(text)
	if !ok {
		return "", false
	}
	return externalTaxonomy[code], true
}
