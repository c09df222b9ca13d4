package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/snailtrap/client-go/internal/apierrors"
)

// CheckKey validates the API key.
func (c *Client) CheckKey(ctx context.Context) error {
	var result struct {
		OK bool `json:"ok"`
	}
	if err := c.Do(ctx, http.MethodGet, "/check-key", nil, &result); err != nil {
		return err
	}
	if !result.OK {
		return apierrors.ErrUnauthorized
	}
	return nil
}

// GetServerInfo retrieves server configuration.
func (c *Client) GetServerInfo(ctx context.Context) (*ServerInfo, error) {
	var result ServerInfo
	if err := c.Do(ctx, http.MethodGet, "/server-info", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateInbox provisions a new inbox.
func (c *Client) CreateInbox(ctx context.Context, req CreateInboxRequest) (*CreateInboxResponse, error) {
	var result CreateInboxResponse
	if err := c.Do(ctx, http.MethodPost, "/inbox", req, &result); err != nil {
		return nil, apierrors.WithResourceType(err, apierrors.ResourceInbox)
	}
	return &result, nil
}

// DeleteInbox deletes a specific inbox by address.
func (c *Client) DeleteInbox(ctx context.Context, address string) error {
	path := fmt.Sprintf("/inbox/%s", url.PathEscape(address))
	err := c.Do(ctx, http.MethodDelete, path, nil, nil)
	return apierrors.WithResourceType(err, apierrors.ResourceInbox)
}

// DeleteAllInboxes deletes all inboxes for the API key.
func (c *Client) DeleteAllInboxes(ctx context.Context) (int, error) {
	var result struct {
		Deleted int `json:"deleted"`
	}
	if err := c.Do(ctx, http.MethodDelete, "/inbox", nil, &result); err != nil {
		return 0, err
	}
	return result.Deleted, nil
}

// ListMessages lists the message stubs currently in an inbox.
func (c *Client) ListMessages(ctx context.Context, address string) ([]MessageStub, error) {
	path := fmt.Sprintf("/inbox/%s", url.PathEscape(address))
	var result []MessageStub
	if err := c.Do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, apierrors.WithResourceType(err, apierrors.ResourceInbox)
	}
	return result, nil
}

// GetMessage retrieves a full message by ID.
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	path := fmt.Sprintf("/message/%s", url.PathEscape(id))
	var result Message
	if err := c.Do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, apierrors.WithResourceType(err, apierrors.ResourceMessage)
	}
	return &result, nil
}

// GetMessageRaw retrieves the RFC 822 source of a message.
func (c *Client) GetMessageRaw(ctx context.Context, id string) (string, error) {
	path := fmt.Sprintf("/message/%s/raw", url.PathEscape(id))
	var result RawMessage
	if err := c.Do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return "", apierrors.WithResourceType(err, apierrors.ResourceMessage)
	}
	return result.Raw, nil
}

// DeleteMessage deletes a specific message by ID.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	path := fmt.Sprintf("/message/%s", url.PathEscape(id))
	err := c.Do(ctx, http.MethodDelete, path, nil, nil)
	return apierrors.WithResourceType(err, apierrors.ResourceMessage)
}
