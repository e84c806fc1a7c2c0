package objectstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"leads-backend/internal/config"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		raw     string
		want    Source
		wantErr bool
	}{
		{raw: "dumps/leads.json", want: Source{Key: "dumps/leads.json"}},
		{raw: "s3://imports/2025/march.json", want: Source{Bucket: "imports", Key: "2025/march.json"}},
		{raw: "s3://march.json", want: Source{Bucket: "default-bucket", Key: "march.json"}},
		{raw: "s3://imports/", wantErr: true},
		{raw: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSource(tt.raw, "default-bucket")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOpenLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o600); err != nil {
		t.Fatal(err)
	}

	rc, err := Open(context.Background(), &config.Config{}, Source{Key: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "[]" {
		t.Fatalf("read %q", data)
	}
}
