package credential

import (
	"crypto/rand"
	"math/big"
)

// tokenAlphabet excludes characters that are easy to misread when keys are
// copied by hand (i, l, o, I, O, 0, 1).
const tokenAlphabet = "abcdefghjklmnpqrstuvwxyz" +
	"ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Default lengths for generated access keys and secrets.
const (
	KeyLength    = 16
	SecretLength = 32
)

// GenerateToken returns a random token of n characters drawn from the
// credential alphabet using crypto/rand.
func GenerateToken(n int) (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = tokenAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// Generate returns a fresh access key and secret pair.
func Generate() (key, secret string, err error) {
	if key, err = GenerateToken(KeyLength); err != nil {
		return "", "", err
	}
	if secret, err = GenerateToken(SecretLength); err != nil {
		return "", "", err
	}
	return key, secret, nil
}
