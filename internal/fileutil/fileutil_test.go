package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestChecksumFileKnownVector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write file error: %v", err)
	}

	sum, size, err := ChecksumFile(path, 2)
	if err != nil {
		t.Fatalf("checksum error: %v", err)
	}
	if sum != "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d" {
		t.Fatalf("unexpected sha1: %s", sum)
	}
	if size != 5 {
		t.Fatalf("unexpected size: %d", size)
	}
}

func TestChecksumFileMissing(t *testing.T) {
	if _, _, err := ChecksumFile(filepath.Join(t.TempDir(), "missing"), 0); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestChecksumBytesMatchesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.bin")
	data := []byte("stream me")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write file error: %v", err)
	}

	fromFile, _, err := ChecksumFile(path, 3)
	if err != nil {
		t.Fatalf("checksum error: %v", err)
	}
	if fromBytes := ChecksumBytes(data); fromBytes != fromFile {
		t.Fatalf("checksum mismatch: %s vs %s", fromBytes, fromFile)
	}
}

func TestPathToMavenCoordinate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"org/lwjgl/lwjgl/3.3.1/lwjgl-3.3.1.jar", "org.lwjgl:lwjgl:3.3.1"},
		{"com/example/deep/artifact/1.0/artifact-1.0.jar", "com.example.deep:artifact:1.0"},
		{"lwjgl/3.3.0/lwjgl-3.3.0.jar", "lwjgl/3.3.0/lwjgl-3.3.0.jar"},
		{"single.jar", "single.jar"},
	}

	for _, tc := range cases {
		if got := PathToMavenCoordinate(tc.in); got != tc.want {
			t.Fatalf("PathToMavenCoordinate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	if got := NormalizePath(`a\b\c.jar`); got != "a/b/c.jar" {
		t.Fatalf("unexpected normalized path: %s", got)
	}
}

func TestStripNamespacePrefix(t *testing.T) {
	if got := StripNamespacePrefix("s1/mods/x.jar"); got != "mods/x.jar" {
		t.Fatalf("unexpected strip result: %s", got)
	}
	if got := StripNamespacePrefix("noslash"); got != "noslash" {
		t.Fatalf("unexpected strip result: %s", got)
	}
}

func TestEnsureServerStructure(t *testing.T) {
	base := t.TempDir()
	root, err := EnsureServerStructure(base, "survival")
	if err != nil {
		t.Fatalf("ensure structure error: %v", err)
	}

	expected := []string{
		"client", "libraries", "mods", "assets",
		filepath.Join("natives", "windows"),
		filepath.Join("natives", "linux"),
		filepath.Join("natives", "macos"),
	}
	for _, dir := range expected {
		info, statErr := os.Stat(filepath.Join(root, dir))
		if statErr != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, statErr)
		}
	}

	// 幂等。
	if _, err := EnsureServerStructure(base, "survival"); err != nil {
		t.Fatalf("second ensure error: %v", err)
	}
}
