package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"well-go/internal/well"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It keeps every snapshot in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name      string
	snapshots map[string]map[string][]byte // userID -> name -> content
	mu        sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:      name,
		snapshots: make(map[string]map[string][]byte),
	}
}

// PutSnapshot stores a named snapshot for a user, replacing any previous
// snapshot with the same name.
func (m *MemoryVault) PutSnapshot(ctx context.Context, userID, name string, r io.Reader, size int64) error {
	if err := validateName(userID, name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.snapshots[userID]
	if !ok {
		user = make(map[string][]byte)
		m.snapshots[userID] = user
	}
	user[name] = data
	return nil
}

// GetSnapshot writes the named snapshot to w.
func (m *MemoryVault) GetSnapshot(ctx context.Context, userID, name string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.snapshots[userID][name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("snapshot %q for user %s: %w", name, userID, well.ErrNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the user's snapshot names in ascending order.
func (m *MemoryVault) ListSnapshots(ctx context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.snapshots[userID]))
	for name := range m.snapshots[userID] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(ctx context.Context) error {
	return nil
}

// Compile-time check that MemoryVault implements well.Vault interface
var _ well.Vault = (*MemoryVault)(nil)
