package storage

import (
	"context"
	"errors"
	"io/fs"
	"testing"
)

func TestFileStoreRoundtrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "http://localhost:8080/")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	url, err := s.Put(ctx, "job_abc/panels/panel_01.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	want := "http://localhost:8080/files/job_abc/panels/panel_01.png"
	if url != want {
		t.Fatalf("Put url = %q, want %q", url, want)
	}

	data, err := s.Get(ctx, "job_abc/panels/panel_01.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("Get = %q", data)
	}
	if !s.Exists("job_abc/panels/panel_01.png") {
		t.Fatal("Exists = false for stored key")
	}
	if s.Exists("job_abc/combined.png") {
		t.Fatal("Exists = true for absent key")
	}
}

func TestFileStoreGetAbsent(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := s.Get(context.Background(), "nope/combined.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "plain", key: "job_a/combined.png", want: "job_a/combined.png"},
		{name: "leading slash", key: "/job_a/combined.png", want: "job_a/combined.png"},
		{name: "traversal", key: "../etc/passwd", wantErr: true},
		{name: "empty", key: "  ", wantErr: true},
		{name: "backslashes", key: "job_a\\panels\\p.png", want: "job_a/panels/p.png"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sanitizeKey(tc.key)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("sanitizeKey(%q) accepted, got %q", tc.key, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("sanitizeKey(%q): %v", tc.key, err)
			}
			if got != tc.want {
				t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.key, got, tc.want)
			}
		})
	}
}
