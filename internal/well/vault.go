package well

import (
	"context"
	"io"
)

// Vault stores encrypted ledger export snapshots, grouped per user.
// All operations stream through io.Reader/io.Writer.
type Vault interface {
	// PutSnapshot stores a named snapshot for a user.
	// size is the number of bytes that will be read from r.
	PutSnapshot(ctx context.Context, userID, name string, r io.Reader, size int64) error

	// GetSnapshot writes the named snapshot to w.
	// Returns an error wrapping ErrNotFound if it does not exist.
	GetSnapshot(ctx context.Context, userID, name string, w io.Writer) error

	// ListSnapshots returns the user's snapshot names in ascending order.
	ListSnapshots(ctx context.Context, userID string) ([]string, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}
