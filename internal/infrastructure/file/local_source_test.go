package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalSourceOpensRelativeAndAbsolutePaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "members.csv")
	if err := os.WriteFile(path, []byte("name,email\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	source := NewLocalSource(dir)
	for _, p := range []string{"members.csv", path} {
		rc, err := source.Open(context.Background(), p)
		if err != nil {
			t.Fatalf("open %s: %v", p, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		if string(data) != "name,email\n" {
			t.Fatalf("unexpected content: %q", data)
		}
	}
}

func TestLocalSourceRejectsPathsOutsideBaseDir(t *testing.T) {
	t.Parallel()

	source := NewLocalSource(t.TempDir())
	for _, p := range []string{"../secret.csv", "/etc/passwd"} {
		if _, err := source.Open(context.Background(), p); !errors.Is(err, ErrOutsideBaseDir) {
			t.Fatalf("expected ErrOutsideBaseDir for %s, got %v", p, err)
		}
	}
}

func TestLocalSourceMissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewLocalSource(t.TempDir()).Open(context.Background(), "missing.csv")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
}
