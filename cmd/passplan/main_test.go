package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	tleLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	tleLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func writeTLE(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.tle")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write tle: %v", err)
	}
	return path
}

func TestParseTLEFileThreeLine(t *testing.T) {
	path := writeTLE(t, "ISS (ZARYA)\n"+tleLine1+"\n"+tleLine2+"\n")
	targets, err := parseTLEFile(path)
	if err != nil {
		t.Fatalf("parseTLEFile() error = %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("targets = %d, want 1", len(targets))
	}
	got := targets[0]
	if got.ID != "iss-(zarya)" {
		t.Fatalf("id = %q", got.ID)
	}
	if got.Name != "ISS (ZARYA)" {
		t.Fatalf("name = %q", got.Name)
	}
	if got.NoradID != 25544 {
		t.Fatalf("norad = %d", got.NoradID)
	}
}

func TestParseTLEFileTwoLine(t *testing.T) {
	path := writeTLE(t, tleLine1+"\n"+tleLine2+"\n")
	targets, err := parseTLEFile(path)
	if err != nil {
		t.Fatalf("parseTLEFile() error = %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("targets = %d, want 1", len(targets))
	}
	if targets[0].ID != "25544" || targets[0].Name != "" {
		t.Fatalf("target = %+v", targets[0])
	}
}

func TestParseTLEFileRejectsTruncatedSet(t *testing.T) {
	path := writeTLE(t, "DEBRIS\n"+tleLine1+"\n")
	if _, err := parseTLEFile(path); err == nil || !strings.Contains(err.Error(), "without a line 2") {
		t.Fatalf("parseTLEFile() error = %v, want line 2 complaint", err)
	}
}

func TestParseTLEFileRejectsBadElements(t *testing.T) {
	path := writeTLE(t, "JUNK\n1 short\n2 also short\n")
	if _, err := parseTLEFile(path); err == nil {
		t.Fatalf("parseTLEFile() accepted malformed elements")
	}
}
