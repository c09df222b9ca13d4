package snailtrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/emersion/go-mbox"
)

// Inbox represents a disposable email inbox.
type Inbox struct {
	address   string
	expiresAt time.Time
	client    *Client
}

// Address returns the inbox email address.
func (i *Inbox) Address() string {
	return i.address
}

// ExpiresAt returns when the inbox expires.
func (i *Inbox) ExpiresAt() time.Time {
	return i.expiresAt
}

// IsExpired checks if the inbox has expired.
func (i *Inbox) IsExpired() bool {
	return time.Now().After(i.expiresAt)
}

// ListMessages fetches the inbox listing, oldest first.
func (i *Inbox) ListMessages(ctx context.Context) ([]MessageStub, error) {
	stubs, err := i.client.apiClient.ListMessages(ctx, i.address)
	if err != nil {
		return nil, err
	}

	result := make([]MessageStub, 0, len(stubs))
	for _, s := range stubs {
		result = append(result, newStubFromAPI(s))
	}
	return result, nil
}

// GetMessage fetches a specific message by ID.
func (i *Inbox) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	msg, err := i.client.apiClient.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return newMessageFromAPI(msg), nil
}

// GetMessageRaw fetches the RFC 822 source of a specific message.
func (i *Inbox) GetMessageRaw(ctx context.Context, messageID string) (string, error) {
	raw, err := i.client.apiClient.GetMessageRaw(ctx, messageID)
	if err != nil {
		return "", err
	}
	return raw, nil
}

// DeleteMessage deletes a specific message.
func (i *Inbox) DeleteMessage(ctx context.Context, messageID string) error {
	return i.client.apiClient.DeleteMessage(ctx, messageID)
}

// Delete deletes the inbox.
func (i *Inbox) Delete(ctx context.Context) error {
	return i.client.DeleteInbox(ctx, i.address)
}

// WaitForMessage waits on this inbox for a message matching the
// request. The request's Address field is filled in from the inbox.
func (i *Inbox) WaitForMessage(ctx context.Context, req VerificationRequest) (*VerificationResult, error) {
	req.Address = i.address
	return i.client.WaitForMessage(ctx, req)
}

// ExportMbox writes every message currently in the inbox to w in mbox
// format, oldest first.
func (i *Inbox) ExportMbox(ctx context.Context, w io.Writer) error {
	stubs, err := i.ListMessages(ctx)
	if err != nil {
		return err
	}

	mw := mbox.NewWriter(w)
	for _, stub := range stubs {
		msg, err := i.GetMessage(ctx, stub.ID)
		if err != nil {
			return err
		}
		raw, err := i.GetMessageRaw(ctx, stub.ID)
		if err != nil {
			return err
		}

		mmw, err := mw.CreateMessage(msg.From, msg.ReceivedAt)
		if err != nil {
			return fmt.Errorf("mbox message: %w", err)
		}
		if _, err := io.WriteString(mmw, raw); err != nil {
			return fmt.Errorf("mbox write: %w", err)
		}
	}

	return mw.Close()
}

// ExportMboxToFile writes the inbox to an mbox file at path.
func (i *Inbox) ExportMboxToFile(ctx context.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if err := i.ExportMbox(ctx, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
