package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ListCalls fetches calls created at or after the given time, walking the
// paginated listing to completion.
func (c *Client) ListCalls(ctx context.Context, since time.Time, pageSize int) ([]Call, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var all []Call
	page := 1
	for {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("limit", strconv.Itoa(pageSize))
		if !since.IsZero() {
			query.Set("created_after", since.UTC().Format(time.RFC3339))
		}

		var resp callListResponse
		if err := c.request(ctx, http.MethodGet, "/calls", query, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
		if resp.TotalPages == 0 || page >= resp.TotalPages || len(resp.Data) == 0 {
			break
		}
		page++
	}
	logger.Debug("listed calls", "count", len(all), "since", since)
	return all, nil
}

// ListConversations fetches messaging conversations with activity at or after
// the given time, walking the paginated listing to completion.
func (c *Client) ListConversations(ctx context.Context, since time.Time, pageSize int) ([]Conversation, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var all []Conversation
	page := 1
	for {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("limit", strconv.Itoa(pageSize))
		if !since.IsZero() {
			query.Set("active_after", since.UTC().Format(time.RFC3339))
		}

		var resp conversationListResponse
		if err := c.request(ctx, http.MethodGet, "/conversations", query, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
		if resp.TotalPages == 0 || page >= resp.TotalPages || len(resp.Data) == 0 {
			break
		}
		page++
	}
	logger.Debug("listed conversations", "count", len(all), "since", since)
	return all, nil
}
