package provider

import (
	"context"
	"net/http"
)

// ListPhoneNumbers returns the workspace phone numbers the API key is
// entitled to. The listing changes rarely, so results are cached for the
// client cache's default TTL.
func (c *Client) ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	if cached, found := c.cache.Get(phoneNumberCacheKey); found {
		if numbers, ok := cached.([]PhoneNumber); ok {
			return numbers, nil
		}
	}

	var resp phoneNumberListResponse
	if err := c.request(ctx, http.MethodGet, "/phone-numbers", nil, nil, &resp); err != nil {
		return nil, err
	}

	c.cache.SetDefault(phoneNumberCacheKey, resp.Data)
	logger.Debug("listed phone numbers", "count", len(resp.Data))
	return resp.Data, nil
}

// Ping validates connectivity and credentials with a cheap uncached call.
func (c *Client) Ping(ctx context.Context) error {
	var resp phoneNumberListResponse
	return c.request(ctx, http.MethodGet, "/phone-numbers", nil, nil, &resp)
}
