package snailtrap

import (
	"fmt"
	"strings"
	"time"
)

// ExportVersion is the current export format version.
const ExportVersion = 1

// ExportedInbox contains all data needed to restore an inbox in
// another process, for example when a test suite hands an inbox from a
// setup script to the workers that poll it.
type ExportedInbox struct {
	// Version is the export format version. MUST be 1.
	Version int `json:"version"`
	// Address is the inbox email address. MUST contain exactly one @.
	Address string `json:"address"`
	// ExpiresAt is the inbox expiration timestamp (ISO 8601).
	ExpiresAt time.Time `json:"expiresAt"`
	// ExportedAt is the export timestamp (ISO 8601). Informational only.
	ExportedAt time.Time `json:"exportedAt"`
}

// Validate checks the exported data before an import is attempted.
// Validation steps run in a fixed order so the first problem reported
// is deterministic.
func (e *ExportedInbox) Validate() error {
	if e.Version != ExportVersion {
		return fmt.Errorf("%w: unsupported version %d, expected %d", ErrInvalidImportData, e.Version, ExportVersion)
	}

	if e.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidImportData)
	}
	if strings.Count(e.Address, "@") != 1 {
		return fmt.Errorf("%w: address must contain exactly one @", ErrInvalidImportData)
	}

	if e.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: expiresAt is required", ErrInvalidImportData)
	}

	return nil
}

// Export returns exportable inbox data.
func (i *Inbox) Export() *ExportedInbox {
	return &ExportedInbox{
		Version:    ExportVersion,
		Address:    i.address,
		ExpiresAt:  i.expiresAt,
		ExportedAt: time.Now().UTC(),
	}
}

// newInboxFromExport reconstructs an inbox from exported data.
func newInboxFromExport(data *ExportedInbox, c *Client) (*Inbox, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	return &Inbox{
		address:   data.Address,
		expiresAt: data.ExpiresAt,
		client:    c,
	}, nil
}
