package testutil

import (
	"well-go/internal/encryption"
	"well-go/internal/well"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() well.Encryptor {
	return encryption.NewTestEncryptor()
}
