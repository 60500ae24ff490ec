package provision

import "strings"

// maxNoteLen caps any single text block appended to request notes.
const maxNoteLen = 4000

// Sanitizer redacts secrets from text bound for notes, logs, or API
// payloads. Secrets are registered the moment they are minted, before any
// tool step could echo them back. Not safe for concurrent use; each
// attempt gets its own instance.
type Sanitizer struct {
	secrets []string
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// Add registers a secret for redaction. Values shorter than 4 bytes are
// ignored so trivial substrings cannot blank out whole messages.
func (s *Sanitizer) Add(secret string) {
	if len(secret) < 4 {
		return
	}
	s.secrets = append(s.secrets, secret)
}

// Clean redacts every registered secret, then truncates. Redaction runs
// first so a secret spanning the cut point cannot survive.
func (s *Sanitizer) Clean(text string) string {
	for _, secret := range s.secrets {
		text = strings.ReplaceAll(text, secret, "[REDACTED]")
	}
	if len(text) > maxNoteLen {
		text = text[:maxNoteLen] + "\n... (truncated)"
	}
	return text
}
