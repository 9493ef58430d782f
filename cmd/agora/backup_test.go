package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBackupRestoreRoundTrip(t *testing.T) {
	src := t.TempDir()
	t.Chdir(src)
	t.Setenv("AGORA_CONFIG", filepath.Join(src, "no-config.yaml"))

	// Default layout: sqlite and nats both live under data/.
	if err := os.MkdirAll("data/nats/jetstream", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile("data/agora.db", []byte("sqlite-bytes"), 0o644); err != nil {
		t.Fatalf("write db: %v", err)
	}
	if err := os.WriteFile("data/nats/jetstream/stream.dat", []byte("stream-bytes"), 0o644); err != nil {
		t.Fatalf("write stream: %v", err)
	}

	archive := filepath.Join(t.TempDir(), "backup.tar.zst")
	if err := runBackup([]string{"-f", archive}); err != nil {
		t.Fatalf("backup: %v", err)
	}

	dst := t.TempDir()
	t.Chdir(dst)
	if err := runRestore([]string{"-f", archive}); err != nil {
		t.Fatalf("restore: %v", err)
	}

	got, err := os.ReadFile("data/agora.db")
	if err != nil {
		t.Fatalf("read restored db: %v", err)
	}
	if string(got) != "sqlite-bytes" {
		t.Errorf("unexpected restored db content %q", got)
	}

	got, err = os.ReadFile("data/nats/jetstream/stream.dat")
	if err != nil {
		t.Fatalf("read restored stream: %v", err)
	}
	if string(got) != "stream-bytes" {
		t.Errorf("unexpected restored stream content %q", got)
	}
}

func TestRestoreRefusesOverwrite(t *testing.T) {
	src := t.TempDir()
	t.Chdir(src)
	t.Setenv("AGORA_CONFIG", filepath.Join(src, "no-config.yaml"))

	if err := os.MkdirAll("data", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile("data/agora.db", []byte("original"), 0o644); err != nil {
		t.Fatalf("write db: %v", err)
	}

	archive := filepath.Join(t.TempDir(), "backup.tar.zst")
	if err := runBackup([]string{"-f", archive}); err != nil {
		t.Fatalf("backup: %v", err)
	}

	if err := runRestore([]string{"-f", archive}); err == nil {
		t.Fatal("expected restore to refuse overwriting existing files")
	}

	if err := runRestore([]string{"-f", archive, "-overwrite"}); err != nil {
		t.Fatalf("restore with overwrite: %v", err)
	}
}

func TestBackupRequiresOutputFlag(t *testing.T) {
	if err := runBackup(nil); err == nil {
		t.Fatal("expected error without -f")
	}
	if err := runRestore(nil); err == nil {
		t.Fatal("expected error without -f")
	}
}
