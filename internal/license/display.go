package license

import "strings"

// Supported display locales.
const (
	LocaleEnglish   = "en-gb"
	LocaleNorwegian = "nb-no"
	LocaleSwedish   = "sv-se"
)

var partNames = map[string]map[Part]string{
	LocaleEnglish: {
		PartCC:        "Creative Commons",
		PartBY:        "Attribution",
		PartSA:        "Share alike",
		PartND:        "No derivatives",
		PartNC:        "Non commercial",
		PartCC0:       "Zero",
		PartPrivate:   "Copyright",
		PartCopyright: "Copyright",
		PartPDM:       "Public Domain Mark",
		PartEdLib:     "EdLib license",
	},
	LocaleNorwegian: {
		PartCC:        "Creative Commons",
		PartBY:        "Navngivelse",
		PartSA:        "Del på samme vilkår",
		PartND:        "Ingen bearbeidelse",
		PartNC:        "Ikkekommersiell",
		PartCC0:       "Zero",
		PartPrivate:   "Copyright",
		PartCopyright: "Copyright",
		PartPDM:       "Public Domain Mark",
		PartEdLib:     "EdLib lisens",
	},
	LocaleSwedish: {
		PartCC:        "Creative Commons",
		PartBY:        "Erkännande",
		PartSA:        "Dela lika",
		PartND:        "Inga bearbetningar",
		PartNC:        "Icke kommersiel",
		PartCC0:       "Zero",
		PartPrivate:   "Copyright",
		PartCopyright: "Copyright",
		PartPDM:       "Public Domain Mark",
		PartEdLib:     "EdLib license",
	},
}

// DisplayName returns the localized name of a license part. Unknown locales fall back
// to en-gb; unknown parts yield "".
func DisplayName(part, locale string) string {
	names, ok := partNames[strings.ToLower(locale)]
	if !ok {
		names = partNames[LocaleEnglish]
	}
	return names[Part(strings.ToUpper(part))]
}

// DisplayNames returns the localized names of every part of a code, in code order.
func DisplayNames(code Code, locale string) []string {
	parts := code.Parts()
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := DisplayName(string(p), locale); name != "" {
			names = append(names, name)
		}
	}
	return names
}

var deedURLs = map[Code]string{
	CodeCC0:    "https://creativecommons.org/publicdomain/zero/1.0/",
	CodeBY:     "https://creativecommons.org/licenses/by/4.0/",
	CodeBYSA:   "https://creativecommons.org/licenses/by-sa/4.0/",
	CodeBYND:   "https://creativecommons.org/licenses/by-nd/4.0/",
	CodeBYNC:   "https://creativecommons.org/licenses/by-nc/4.0/",
	CodeBYNCSA: "https://creativecommons.org/licenses/by-nc-sa/4.0/",
	CodeBYNCND: "https://creativecommons.org/licenses/by-nc-nd/4.0/",
}

const pdmURL = "https://creativecommons.org/share-your-work/public-domain/pdm"

// CreativeCommonsURL returns the deed URL for a code such as "BY-SA" or "CC-BY-SA",
// localized for nb-no and sv-se. Codes without a deed yield "".
func CreativeCommonsURL(code, locale string) string {
	c := Code(strings.TrimPrefix(strings.ToUpper(code), string(PartCC)+"-"))
	if c == CodePDM {
		return pdmURL
	}

	u, ok := deedURLs[c]
	if !ok {
		return ""
	}

	switch strings.ToLower(locale) {
	case LocaleNorwegian:
		return u + "deed.no"
	case LocaleSwedish:
		return u + "deed.sv"
	default:
		return u
	}
}
