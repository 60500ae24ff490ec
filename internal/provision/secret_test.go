package provision

import (
	"strings"
	"testing"
)

func TestNewMasterPassword(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		pw, err := newMasterPassword()
		if err != nil {
			t.Fatalf("mint failed: %s", err)
		}
		if len(pw) != passwordLength {
			t.Fatalf("expected %d chars, got %d", passwordLength, len(pw))
		}
		for _, c := range pw {
			if !strings.ContainsRune(passwordAlphabet, c) {
				t.Fatalf("character %q outside the alphabet", c)
			}
		}
		if seen[pw] {
			t.Fatalf("password repeated after %d mints", i)
		}
		seen[pw] = true
	}
}
