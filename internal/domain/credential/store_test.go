package credential

import (
	"errors"
	"strings"
	"testing"
)

const sampleCreds = `---
name: example@example.com
key: Nj4jT6JyEgMtDUgU
secret: yPhnQEuB9CkksqXb6RaggqTkNEBEdpJC
---
name: example2@example.com
key: us6LJYaJqag67C9G
secret: ph99WLvGy9jPvvWW6L3ELncfXCNzQlHr
`

func TestParseMultiDocument(t *testing.T) {
	store, err := Parse(strings.NewReader(sampleCreds))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("Len = %d, want 2", store.Len())
	}

	cred, ok := store.ForKey("us6LJYaJqag67C9G")
	if !ok {
		t.Fatal("second credential not found")
	}
	if cred.Name != "example2@example.com" {
		t.Errorf("Name = %q", cred.Name)
	}
	if cred.Secret != "ph99WLvGy9jPvvWW6L3ELncfXCNzQlHr" {
		t.Errorf("Secret = %q", cred.Secret)
	}

	if _, ok := store.ForKey("missing"); ok {
		t.Error("missing key reported as found")
	}
}

func TestParseDuplicateKey(t *testing.T) {
	dup := sampleCreds + `---
name: dupe@example.com
key: Nj4jT6JyEgMtDUgU
secret: anothersecret
`
	if _, err := Parse(strings.NewReader(dup)); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("duplicate key error = %v, want ErrDuplicateKey", err)
	}
}

func TestParseMissingField(t *testing.T) {
	incomplete := `---
name: example@example.com
key: Nj4jT6JyEgMtDUgU
`
	if _, err := Parse(strings.NewReader(incomplete)); err == nil {
		t.Error("credential without secret accepted")
	}
}

func TestParseEmptyStream(t *testing.T) {
	if _, err := Parse(strings.NewReader("")); err == nil {
		t.Error("empty credential stream accepted")
	}
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken(64)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if len(tok) != 64 {
		t.Fatalf("token length = %d, want 64", len(tok))
	}
	for _, c := range tok {
		if !strings.ContainsRune(tokenAlphabet, c) {
			t.Fatalf("token contains %q outside the alphabet", c)
		}
	}
}

func TestGenerate(t *testing.T) {
	key, secret, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(key) != KeyLength {
		t.Errorf("key length = %d, want %d", len(key), KeyLength)
	}
	if len(secret) != SecretLength {
		t.Errorf("secret length = %d, want %d", len(secret), SecretLength)
	}
	if key == secret[:KeyLength] {
		t.Error("key and secret prefix identical; randomness suspect")
	}
}
