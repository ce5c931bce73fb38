package models

// Copyright describes the rights metadata attached to third-party material.
type Copyright struct {
	License       CopyrightLicense `json:"license"`
	Creators      []Party          `json:"creators,omitempty"`
	Rightsholders []Party          `json:"rightsholders,omitempty"`
}

// CopyrightLicense holds the raw, unnormalized license text of a copyright record.
type CopyrightLicense struct {
	License string `json:"license"`
}

// Party is a creator or rightsholder, e.g. {Type: "Photographer", Name: "Kari Nordmann"}.
type Party struct {
	Type string `json:"type"`
	Name string `json:"name"`
}
