package provision

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const passwordLength = 20

// newMasterPassword mints the master credential for a provisioned
// database. It may only ever be written to terraform.tfvars.json; callers
// must register it with the attempt's sanitizer immediately.
func newMasterPassword() (string, error) {
	out := make([]byte, passwordLength)
	alphabet := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
