package testutil

import (
	"well-go/internal/vault"
	"well-go/internal/well"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() well.Vault {
	return vault.NewMemoryVault("test-vault")
}
