package licenseapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MacJediWizard/licenseclient/internal/cache"
	"github.com/MacJediWizard/licenseclient/pkg/models"
)

func (c *Client) contentKey(contentID string) string {
	return cache.Key(c.cacheKey, "content", c.site, contentID)
}

func (c *Client) contentPath(contentID string) string {
	return fmt.Sprintf(contentItemEndpoint, escape(c.site), escape(contentID))
}

// AddContent registers content with the service. It returns nil when the service
// reports the site as absent.
func (c *Client) AddContent(ctx context.Context, contentID, name string) (*models.Content, error) {
	req := request{
		op:       "add_content",
		method:   http.MethodPost,
		endpoint: fmt.Sprintf(contentEndpoint, escape(c.site)),
		form:     url.Values{"content_id": {contentID}, "name": {name}},
	}
	return c.writeContent(ctx, contentID, req)
}

// GetContent returns the content's license assignment, or nil if the service does not
// know the content. Results are cached for the content TTL.
func (c *Client) GetContent(ctx context.Context, contentID string) (*models.Content, error) {
	content, err := c.content.GetOrCompute(ctx, c.contentKey(contentID), c.contentTTL, func(ctx context.Context) (models.Content, error) {
		found, err := c.fetchContent(ctx, contentID)
		if err != nil {
			return models.Content{}, err
		}
		return *found, nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// fetchContent reads content from the service, bypassing the cache.
func (c *Client) fetchContent(ctx context.Context, contentID string) (*models.Content, error) {
	req := request{
		op:       "get_content",
		method:   http.MethodGet,
		endpoint: c.contentPath(contentID),
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var content models.Content
	if err := c.decode(req, resp, &content); err != nil {
		return nil, err
	}
	if content.ID == "" {
		return nil, c.invalid(req, "id")
	}
	return &content, nil
}

// GetContents fetches several content items in one request. It returns nil if the
// service reports the batch as absent.
func (c *Client) GetContents(ctx context.Context, contentIDs []string) ([]models.Content, error) {
	form := url.Values{}
	for i, id := range contentIDs {
		form.Set("content_ids["+strconv.Itoa(i)+"]", id)
	}
	req := request{
		op:       "get_contents",
		method:   http.MethodPost,
		endpoint: fmt.Sprintf(contentByIDEndpoint, escape(c.site)),
		form:     form,
	}

	resp, err := c.do(ctx, req)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	contents, err := c.decodeContents(req, resp)
	if err != nil {
		return nil, err
	}
	for _, content := range contents {
		if content.ID == "" {
			return nil, c.invalid(req, "id")
		}
	}
	return contents, nil
}

// decodeContents accepts a JSON array or an object keyed by content id.
func (c *Client) decodeContents(req request, resp *response) ([]models.Content, error) {
	var list []models.Content
	if err := json.Unmarshal(resp.body, &list); err == nil {
		return list, nil
	}

	var byID map[string]models.Content
	if err := c.decode(req, resp, &byID); err != nil {
		return nil, err
	}
	list = make([]models.Content, 0, len(byID))
	for _, content := range byID {
		list = append(list, content)
	}
	return list, nil
}

// DeleteContent removes content from the service. Deleting absent content succeeds.
func (c *Client) DeleteContent(ctx context.Context, contentID string) error {
	req := request{
		op:       "delete_content",
		method:   http.MethodDelete,
		endpoint: c.contentPath(contentID),
	}

	_, err := c.do(ctx, req)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// AddLicense assigns a license to content and returns the updated content, or nil if
// the content is absent.
func (c *Client) AddLicense(ctx context.Context, contentID, licenseID string) (*models.Content, error) {
	req := request{
		op:       "add_license",
		method:   http.MethodPut,
		endpoint: c.contentPath(contentID),
		form:     url.Values{"license_id": {licenseID}},
	}
	return c.writeContent(ctx, contentID, req)
}

// RemoveLicense removes one license from content and returns the updated content, or
// nil if the content is absent.
func (c *Client) RemoveLicense(ctx context.Context, contentID, licenseID string) (*models.Content, error) {
	req := request{
		op:       "remove_license",
		method:   http.MethodDelete,
		endpoint: c.contentPath(contentID),
		form:     url.Values{"license_id": {licenseID}},
	}
	return c.writeContent(ctx, contentID, req)
}

// writeContent sends a write whose response is the full content record and refreshes
// the cached content with it.
func (c *Client) writeContent(ctx context.Context, contentID string, req request) (*models.Content, error) {
	resp, err := c.do(ctx, req)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var content models.Content
	if err := c.decode(req, resp, &content); err != nil {
		return nil, err
	}
	if content.ID == "" {
		return nil, c.invalid(req, "id")
	}

	if err := c.content.Set(ctx, c.contentKey(contentID), content, c.contentTTL); err != nil {
		c.logger.Warn().Err(err).Str("content_id", contentID).Msg("failed to refresh cached content")
	}
	return &content, nil
}

// SetLicense replaces every license on the content with licenseID and returns the first
// license of the result.
//
// The operation is not atomic. Existing licenses are removed one by one, and a failed
// removal is only logged. If the final add fails the content may be left without a
// license; the returned *SetLicenseError lists what was removed.
func (c *Client) SetLicense(ctx context.Context, contentID, licenseID string) (string, error) {
	current, err := c.fetchContent(ctx, contentID)
	if errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("set license on %s: %w", contentID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("set license on %s: %w", contentID, err)
	}

	var removed []string
	for _, existing := range current.Licenses {
		if _, err := c.RemoveLicense(ctx, contentID, existing); err != nil {
			c.logger.Warn().
				Err(err).
				Str("content_id", contentID).
				Str("license_id", existing).
				Msg("failed to remove license")
			continue
		}
		removed = append(removed, existing)
	}

	updated, err := c.AddLicense(ctx, contentID, licenseID)
	if err == nil && updated == nil {
		err = ErrNotFound
	}
	if err == nil && len(updated.Licenses) == 0 {
		err = c.invalid(request{op: "add_license"}, "licenses")
	}
	if err != nil {
		if len(removed) > 0 {
			c.logger.Error().
				Err(err).
				Str("content_id", contentID).
				Str("license_id", licenseID).
				Strs("removed", removed).
				Msg("content left without its previous licenses")
		}
		return "", &SetLicenseError{
			ContentID: contentID,
			LicenseID: licenseID,
			Removed:   removed,
			Err:       err,
		}
	}

	return updated.FirstLicense(), nil
}

// IsContentCopyable reports whether the content's first license allows copying.
// Absent content, or content without a license, is not copyable.
func (c *Client) IsContentCopyable(ctx context.Context, contentID string) (bool, error) {
	content, err := c.GetContent(ctx, contentID)
	if err != nil {
		return false, err
	}
	license := content.FirstLicense()
	if license == "" {
		return false, nil
	}
	return c.IsLicenseCopyable(ctx, license)
}

func (c *Client) invalid(req request, field string) error {
	c.logger.Error().
		Str("op", req.op).
		Str("endpoint", req.endpoint).
		Str("field", field).
		Msg("license service response missing required field")
	return &ValidationError{Op: req.op, Field: field}
}
