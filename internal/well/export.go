package well

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// snapshotVersion is the export format version written into every snapshot.
const snapshotVersion = 1

// SnapshotSuffix is appended to every snapshot name.
const SnapshotSuffix = ".json.age"

// snapshotTimeFormat names snapshots by export time. The fixed-width fraction
// keeps names in time order when sorted.
const snapshotTimeFormat = "20060102T150405.000000Z"

// Snapshot is the plaintext form of a user export.
type Snapshot struct {
	Version    int       `json:"version"`
	UserID     string    `json:"user_id"`
	ExportedAt time.Time `json:"exported_at"`
	TotalXP    int64     `json:"total_xp"`
	Records    []*Record `json:"records"`
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported   int   `json:"imported"`
	Skipped    int   `json:"skipped"`
	XPRestored int64 `json:"xp_restored"`
}

// ErrNoVault is returned by export and import when no vault is configured.
var ErrNoVault = errors.New("no vault configured")

// ErrSnapshotExists is returned by ExportUser when a snapshot with the same
// name is already stored. Snapshots are never overwritten.
var ErrSnapshotExists = errors.New("snapshot already exists")

// ExportUser writes the user's full ledger and XP total to the vault as an
// encrypted snapshot and returns the snapshot name.
func (s *WellService) ExportUser(ctx context.Context, userID string) (string, error) {
	if s.vault == nil || s.encryptor == nil {
		return "", ErrNoVault
	}
	records, err := s.QueryRecords(ctx, userID, RecordFilter{})
	if err != nil {
		return "", err
	}
	total, err := s.GetXP(ctx, userID)
	if err != nil {
		return "", err
	}

	now := s.clock.Now().UTC()
	snap := Snapshot{
		Version:    snapshotVersion,
		UserID:     userID,
		ExportedAt: now,
		TotalXP:    total,
		Records:    records,
	}
	plain, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}

	var sealed bytes.Buffer
	if err := s.encryptor.Encrypt(bytes.NewReader(plain), &sealed); err != nil {
		return "", fmt.Errorf("encrypting snapshot: %w", err)
	}

	name := now.Format(snapshotTimeFormat) + SnapshotSuffix
	existing, err := s.vault.ListSnapshots(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("listing snapshots: %w", err)
	}
	if slices.Contains(existing, name) {
		return "", fmt.Errorf("snapshot %s: %w", name, ErrSnapshotExists)
	}
	if err := s.vault.PutSnapshot(ctx, userID, name, &sealed, int64(sealed.Len())); err != nil {
		return "", fmt.Errorf("storing snapshot: %w", err)
	}

	s.logger.Info("snapshot exported", "user", userID, "name", name, "records", len(records), "xp", total)
	return name, nil
}

// ListSnapshots returns the user's snapshot names, oldest first.
func (s *WellService) ListSnapshots(ctx context.Context, userID string) ([]string, error) {
	if s.vault == nil {
		return nil, ErrNoVault
	}
	names, err := s.vault.ListSnapshots(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return names, nil
}

// ImportUser restores a snapshot into the user's ledger. Records whose IDs are
// already present are skipped, so importing twice changes nothing. XP is
// raised to the snapshot total when that is higher and never lowered.
func (s *WellService) ImportUser(ctx context.Context, userID, name, passphrase string) (*ImportResult, error) {
	if s.vault == nil || s.encryptor == nil {
		return nil, ErrNoVault
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalid("user_id", "is required")
	}

	dc, err := s.encryptor.Unlock(passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlocking encryption key: %w", err)
	}

	var sealed bytes.Buffer
	if err := s.vault.GetSnapshot(ctx, userID, name, &sealed); err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var plain bytes.Buffer
	if err := dc.Decrypt(&sealed, &plain); err != nil {
		return nil, fmt.Errorf("decrypting snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(plain.Bytes(), &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, invalid("snapshot", fmt.Sprintf("unsupported version %d", snap.Version))
	}
	if snap.UserID != userID {
		return nil, invalid("snapshot", fmt.Sprintf("belongs to %q", snap.UserID))
	}

	existing, err := s.QueryRecords(ctx, userID, RecordFilter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r.ID] = true
	}

	result := &ImportResult{}
	for _, r := range snap.Records {
		if r == nil || r.ID == "" || seen[r.ID] {
			result.Skipped++
			continue
		}
		rec := *r
		rec.UserID = userID
		if _, err := s.AppendRecord(ctx, &rec); err != nil {
			if errors.Is(err, ErrDuplicateRecord) || IsValidation(err) {
				s.logger.Warn("skipping snapshot record", "user", userID, "id", r.ID, "error", err)
				result.Skipped++
				continue
			}
			return result, err
		}
		seen[r.ID] = true
		result.Imported++
	}

	restored, err := s.restoreXP(ctx, userID, snap.TotalXP, name)
	if err != nil {
		return result, err
	}
	result.XPRestored = restored

	s.logger.Info("snapshot imported", "user", userID, "name", name, "imported", result.Imported, "skipped", result.Skipped, "xp_restored", restored)
	return result, nil
}

// restoreXP credits the difference between target and the current total,
// without any streak bonus, when target is higher.
func (s *WellService) restoreXP(ctx context.Context, userID string, target int64, name string) (int64, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	current, err := s.GetXP(ctx, userID)
	if err != nil {
		return 0, err
	}
	diff := target - current
	if diff <= 0 {
		return 0, nil
	}
	event := &XPEvent{
		ID:         s.idgen.New(),
		UserID:     userID,
		Base:       diff,
		Multiplier: 1,
		Awarded:    diff,
		Label:      "import " + name,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if _, err := s.database.CreditXP(ctx, event); err != nil {
		return 0, fmt.Errorf("restoring xp: %w", err)
	}
	return diff, nil
}
