package vault

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"well-go/internal/well"
)

func TestS3Vault_ObjectKey(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "snapshots/alice/snap.json.age"},
		{prefix: "well", want: "well/snapshots/alice/snap.json.age"},
		{prefix: "/well/prod/", want: "well/prod/snapshots/alice/snap.json.age"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			v, err := NewS3Vault(context.Background(), "test", S3Options{
				Bucket:          "bucket",
				Prefix:          tt.prefix,
				Region:          "us-east-1",
				AccessKeyID:     "key",
				SecretAccessKey: "secret",
			})
			if err != nil {
				t.Fatalf("NewS3Vault() error = %v", err)
			}
			if got := v.objectKey("alice", "snap.json.age"); got != tt.want {
				t.Errorf("objectKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestS3Vault_RejectsPathComponents(t *testing.T) {
	v, err := NewS3Vault(context.Background(), "test", S3Options{
		Bucket: "bucket", Region: "us-east-1", AccessKeyID: "key", SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewS3Vault() error = %v", err)
	}

	if err := v.PutSnapshot(context.Background(), "alice", "../x", strings.NewReader(""), 0); err == nil {
		t.Error("PutSnapshot() expected error for path traversal")
	}
}

// TestS3Vault_Integration runs against a real S3-compatible endpoint (for
// example MinIO) when WELL_TEST_S3_ENDPOINT and WELL_TEST_S3_BUCKET are set.
func TestS3Vault_Integration(t *testing.T) {
	endpoint := os.Getenv("WELL_TEST_S3_ENDPOINT")
	bucket := os.Getenv("WELL_TEST_S3_BUCKET")
	if endpoint == "" || bucket == "" {
		t.Skip("WELL_TEST_S3_ENDPOINT/WELL_TEST_S3_BUCKET not set")
	}

	ctx := context.Background()
	v, err := NewS3Vault(ctx, "it", S3Options{
		Bucket:          bucket,
		Prefix:          "well-test-" + t.Name(),
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     os.Getenv("WELL_TEST_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("WELL_TEST_S3_SECRET_ACCESS_KEY"),
	})
	if err != nil {
		t.Fatalf("NewS3Vault() error = %v", err)
	}
	if err := v.ValidateSetup(ctx); err != nil {
		t.Fatalf("ValidateSetup() error = %v", err)
	}

	data := "sealed snapshot"
	if err := v.PutSnapshot(ctx, "alice", "snap", strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	var buf bytes.Buffer
	if err := v.GetSnapshot(ctx, "alice", "snap", &buf); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if buf.String() != data {
		t.Errorf("GetSnapshot() = %q, want %q", buf.String(), data)
	}

	names, err := v.ListSnapshots(ctx, "alice")
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(names) != 1 || names[0] != "snap" {
		t.Errorf("ListSnapshots() = %v, want [snap]", names)
	}

	err = v.GetSnapshot(ctx, "alice", "missing", &buf)
	if !errors.Is(err, well.ErrNotFound) {
		t.Errorf("GetSnapshot() error = %v, want ErrNotFound", err)
	}
}
