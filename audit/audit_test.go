package audit

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAndVerifyClean(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	l, err := Open(path, "test-machine", 1<<20, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	for _, ev := range []string{"request", "decision", "alert"} {
		if err := l.Append(ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	res, err := Verify(path)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.EntriesChecked != 3 || len(res.Errors) != 0 {
		t.Fatalf("expected 3 clean entries, got %+v", res)
	}
}

func TestVerifyDetectsFlippedByte(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	l, _ := Open(path, "m", 1<<20, 0)
	l.Append("one")
	l.Append("two")
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Flip a byte in the middle of the second line.
	lineStart := 0
	for i, b := range data {
		if b == '\n' {
			lineStart = i + 1
			break
		}
	}
	mid := lineStart + (len(data)-lineStart)/2
	data[mid] ^= 0xFF
	if err := os.WriteFile(path, data, 0o640); err != nil {
		t.Fatal(err)
	}

	res, err := Verify(path)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected at least one verification error")
	}
}
