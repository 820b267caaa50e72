package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	origCommit := Commit
	defer func() { Commit = origCommit }()

	Commit = "unknown"
	if Info() != Version {
		t.Errorf("Info() = %q, want %q", Info(), Version)
	}

	Commit = "abcdef1234567890"
	if got := Info(); !strings.Contains(got, "abcdef1") {
		t.Errorf("Info() = %q, want short commit included", got)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.Contains(full, Version) {
		t.Errorf("Full() missing version: %q", full)
	}
	if !strings.Contains(full, "Commit:") {
		t.Errorf("Full() missing commit line: %q", full)
	}
}
