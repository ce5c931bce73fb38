package licenseapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MacJediWizard/licenseclient/internal/cache"
	"github.com/MacJediWizard/licenseclient/pkg/models"
)

// ListLicenses returns the license catalog, cached for the catalog TTL. A catalog the
// service reports as absent is an empty list and is not cached.
func (c *Client) ListLicenses(ctx context.Context) ([]models.License, error) {
	licenses, err := c.licenses.GetOrCompute(ctx, cache.Key(c.cacheKey, "licenses"), c.licensesTTL, c.fetchLicenses)
	if errors.Is(err, ErrNotFound) {
		return []models.License{}, nil
	}
	if err != nil {
		return nil, err
	}
	return licenses, nil
}

func (c *Client) fetchLicenses(ctx context.Context) ([]models.License, error) {
	req := request{
		op:       "list_licenses",
		method:   http.MethodGet,
		endpoint: licensesEndpoint,
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var licenses []models.License
	if err := c.decode(req, resp, &licenses); err != nil {
		return nil, err
	}
	if licenses == nil {
		licenses = []models.License{}
	}
	return licenses, nil
}

// IsLicenseSupported reports whether the catalog contains licenseID, ignoring case.
func (c *Client) IsLicenseSupported(ctx context.Context, licenseID string) (bool, error) {
	licenses, err := c.ListLicenses(ctx)
	if err != nil {
		return false, err
	}
	for _, l := range licenses {
		if strings.EqualFold(l.ID, licenseID) {
			return true, nil
		}
	}
	return false, nil
}

// IsLicenseCopyable reports whether the license allows copying content. An unknown
// license is not copyable.
func (c *Client) IsLicenseCopyable(ctx context.Context, licenseID string) (bool, error) {
	req := request{
		op:       "is_license_copyable",
		method:   http.MethodGet,
		endpoint: fmt.Sprintf(copyableEndpoint, escape(licenseID)),
	}

	resp, err := c.do(ctx, req)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var result models.CopyableResponse
	if err := c.decode(req, resp, &result); err != nil {
		return false, err
	}
	return result.Copyable, nil
}
