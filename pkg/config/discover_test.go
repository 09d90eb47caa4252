package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, DirName), 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok := Discover(nested)
	if !ok {
		t.Fatal("expected to find project root")
	}
	want, _ := filepath.EvalSymlinks(root)
	if g, _ := filepath.EvalSymlinks(got); g != want {
		t.Errorf("Discover = %q, want %q", got, root)
	}
}

func TestDiscoverIgnoresFile(t *testing.T) {
	root := t.TempDir()
	// A plain file named like the directory does not count.
	if err := os.WriteFile(filepath.Join(root, DirName), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOME", root)
	if got, ok := Discover(root); ok {
		t.Errorf("unexpected project at %q", got)
	}
}

func TestDiscoverStopsAtHome(t *testing.T) {
	outer := t.TempDir()
	if err := os.MkdirAll(filepath.Join(outer, DirName), 0o755); err != nil {
		t.Fatal(err)
	}
	home := filepath.Join(outer, "home")
	work := filepath.Join(home, "work")
	if err := os.MkdirAll(work, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOME", home)

	if got, ok := Discover(work); ok {
		t.Errorf("walk should stop at home, found %q", got)
	}
}
