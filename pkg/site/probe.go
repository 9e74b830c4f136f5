package site

import (
	"context"
	"net/http"
)

// Exists performs a lightweight header-only check for a remote resource.
// It never streams the body.
func (c *Client) Exists(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// SiteActive reports whether the site root answers at all. Used only to
// disambiguate a missing resource from a site-wide outage.
func (c *Client) SiteActive(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return false
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}
