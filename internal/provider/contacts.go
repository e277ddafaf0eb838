package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/caselink/contactsync/internal/errors"
)

const defaultPageSize = 100

// ListContacts fetches a single page of contacts. An empty pageToken requests
// the first page; the returned token is empty on the last page.
func (c *Client) ListContacts(ctx context.Context, pageToken string, pageSize int) ([]Contact, string, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(pageSize))
	if pageToken != "" {
		query.Set("page_token", pageToken)
	}

	var resp contactListResponse
	if err := c.request(ctx, http.MethodGet, "/contacts", query, nil, &resp); err != nil {
		return nil, "", err
	}
	return resp.Data, resp.NextPageToken, nil
}

// ListAllContacts walks every page of the contact listing.
func (c *Client) ListAllContacts(ctx context.Context) ([]Contact, error) {
	var all []Contact
	pageToken := ""
	for {
		contacts, next, err := c.ListContacts(ctx, pageToken, defaultPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, contacts...)
		if next == "" {
			break
		}
		pageToken = next
	}
	logger.Debug("listed all contacts", "count", len(all))
	return all, nil
}

// GetContact fetches a single contact by its provider ID.
func (c *Client) GetContact(ctx context.Context, id string) (*Contact, error) {
	if id == "" {
		return nil, errors.Newf("contact ID is required").
			Category(errors.CategoryValidation).
			Component("provider").
			Build()
	}
	var contact Contact
	if err := c.request(ctx, http.MethodGet, "/contacts/"+url.PathEscape(id), nil, nil, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// CreateContact creates a new contact at the provider.
func (c *Client) CreateContact(ctx context.Context, req *ContactRequest) (*Contact, error) {
	if req.Name == "" {
		return nil, errors.Newf("contact name is required").
			Category(errors.CategoryValidation).
			Component("provider").
			Build()
	}
	var contact Contact
	if err := c.request(ctx, http.MethodPost, "/contacts", nil, req, &contact); err != nil {
		return nil, err
	}
	logger.Info("created contact", "contact_id", contact.ID, "external_id", req.ExternalID)
	return &contact, nil
}

// UpdateContact replaces the contact with the given provider ID.
func (c *Client) UpdateContact(ctx context.Context, id string, req *ContactRequest) (*Contact, error) {
	if id == "" {
		return nil, errors.Newf("contact ID is required").
			Category(errors.CategoryValidation).
			Component("provider").
			Build()
	}
	var contact Contact
	if err := c.request(ctx, http.MethodPut, "/contacts/"+url.PathEscape(id), nil, req, &contact); err != nil {
		return nil, err
	}
	logger.Info("updated contact", "contact_id", id)
	return &contact, nil
}

// DeleteContact removes the contact with the given provider ID.
func (c *Client) DeleteContact(ctx context.Context, id string) error {
	if id == "" {
		return errors.Newf("contact ID is required").
			Category(errors.CategoryValidation).
			Component("provider").
			Build()
	}
	if err := c.request(ctx, http.MethodDelete, "/contacts/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return err
	}
	logger.Info("deleted contact", "contact_id", id)
	return nil
}

// SearchContacts queries the provider's contact listing with a search term.
// Older API deployments reject the search parameter with a 404; that falls
// back to filtering the full contact listing client-side.
func (c *Client) SearchContacts(ctx context.Context, term string) ([]Contact, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, errors.Newf("search term is required").
			Category(errors.CategoryValidation).
			Component("provider").
			Build()
	}

	query := url.Values{}
	query.Set("search", term)

	var resp contactListResponse
	err := c.request(ctx, http.MethodGet, "/contacts", query, nil, &resp)
	if err == nil {
		return resp.Data, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	logger.Debug("search endpoint unavailable, filtering full listing", "term", term)
	all, err := c.ListAllContacts(ctx)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(term)
	var matched []Contact
	for i := range all {
		if strings.Contains(strings.ToLower(all[i].Name), lower) {
			matched = append(matched, all[i])
		}
	}
	return matched, nil
}

// GetContactByExternalID finds the contact carrying the given external ID.
// Returns a CategoryNotFound error when no contact matches.
func (c *Client) GetContactByExternalID(ctx context.Context, externalID string) (*Contact, error) {
	if externalID == "" {
		return nil, errors.Newf("external ID is required").
			Category(errors.CategoryValidation).
			Component("provider").
			Build()
	}

	query := url.Values{}
	query.Set("externalId", externalID)

	var resp contactListResponse
	if err := c.request(ctx, http.MethodGet, "/contacts", query, nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Data {
		if resp.Data[i].ExternalID == externalID {
			return &resp.Data[i], nil
		}
	}
	return nil, errors.Newf("no contact with external ID %q", externalID).
		Category(errors.CategoryNotFound).
		Context("external_id", externalID).
		Component("provider").
		Build()
}
