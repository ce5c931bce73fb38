package models

// Content is a site's content item as tracked by the license service.
type Content struct {
	ID        string   `json:"id"`
	ContentID string   `json:"content_id,omitempty"`
	Site      string   `json:"site,omitempty"`
	Name      string   `json:"name,omitempty"`
	Licenses  []string `json:"licenses"`
}

// FirstLicense returns the first assigned license, or "" when none is assigned.
func (c *Content) FirstLicense() string {
	if c == nil || len(c.Licenses) == 0 {
		return ""
	}
	return c.Licenses[0]
}

// HasLicense reports whether the license is currently assigned.
func (c *Content) HasLicense(licenseID string) bool {
	if c == nil {
		return false
	}
	for _, l := range c.Licenses {
		if l == licenseID {
			return true
		}
	}
	return false
}

// License is an entry in the license service catalog.
type License struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// CopyableResponse is the body returned by the copyable endpoint.
type CopyableResponse struct {
	Copyable bool `json:"copyable"`
}

// OAuthService is the auth discovery document served by the license service.
type OAuthService struct {
	URL string `json:"url"`
}
