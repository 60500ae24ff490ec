package provision

import (
	"strings"
	"testing"
)

func TestSanitizerRedactsAllSecrets(t *testing.T) {
	s := NewSanitizer()
	s.Add("hunter2hunter2")
	s.Add("wJalrXUtnFEMIEXAMPLEKEY")

	got := s.Clean("password hunter2hunter2 and key wJalrXUtnFEMIEXAMPLEKEY rejected")
	if strings.Contains(got, "hunter2hunter2") || strings.Contains(got, "wJalrXUtnFEMIEXAMPLEKEY") {
		t.Fatalf("secret survived redaction: %q", got)
	}
	if strings.Count(got, "[REDACTED]") != 2 {
		t.Errorf("expected both secrets replaced, got %q", got)
	}
}

func TestSanitizerIgnoresShortSecrets(t *testing.T) {
	s := NewSanitizer()
	s.Add("a")
	s.Add("db")

	got := s.Clean("a database error")
	if got != "a database error" {
		t.Errorf("short values must not be redacted: %q", got)
	}
}

func TestSanitizerTruncatesAfterRedaction(t *testing.T) {
	secret := strings.Repeat("s3cr3t-", 10)
	s := NewSanitizer()
	s.Add(secret)

	// The secret sits across the truncation boundary; redaction first
	// means no fragment of it can survive the cut.
	text := strings.Repeat("x", maxNoteLen-10) + secret + strings.Repeat("y", 100)
	got := s.Clean(text)

	if strings.Contains(got, "s3cr3t") {
		t.Fatalf("secret fragment survived truncation: %q", got[len(got)-60:])
	}
	if !strings.HasSuffix(got, "(truncated)") {
		t.Errorf("expected truncation marker, got tail %q", got[len(got)-30:])
	}
	if len(got) > maxNoteLen+len("\n... (truncated)") {
		t.Errorf("cleaned text too long: %d", len(got))
	}
}

func TestSanitizerCleanWithoutSecrets(t *testing.T) {
	s := NewSanitizer()
	if got := s.Clean("plain text"); got != "plain text" {
		t.Errorf("unexpected rewrite: %q", got)
	}
}
