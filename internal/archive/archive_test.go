package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()

	files := map[string]string{
		"ledger.csv":          "occurredAt,kind,amount\n",
		"images/20250310.jpg": "fake-jpeg-bytes",
	}
	for name, content := range files {
		path := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	zipPath := filepath.Join(t.TempDir(), "export.zip")
	if err := Pack(ctx, src, zipPath); err != nil {
		t.Fatalf("pack: %v", err)
	}

	dest := t.TempDir()
	if err := Unpack(ctx, zipPath, dest); err != nil {
		t.Fatalf("unpack: %v", err)
	}

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != want {
			t.Errorf("%s content = %q, want %q", name, got, want)
		}
	}
}

func TestUnpackMissingArchive(t *testing.T) {
	err := Unpack(context.Background(), filepath.Join(t.TempDir(), "nope.zip"), t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing archive")
	}
}

func TestUnpackRejectsCorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(path, []byte("this is not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Unpack(context.Background(), path, t.TempDir()); err == nil {
		t.Fatal("expected error for corrupt archive")
	}
}

func TestPackCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Pack(ctx, src, filepath.Join(t.TempDir(), "out.zip")); err == nil {
		t.Fatal("expected cancellation error")
	}
}
