// Package credential provides the read-only mapping from access key to
// (secret, entity) that the signature rules consult.
//
// Credential files are multi-document YAML streams; each document holds
// name, key, and secret:
//
//	---
//	name: example@example.com
//	key: Nj4jT6JyEgMtDUgU
//	secret: yPhnQEuB9CkksqXb6RaggqTkNEBEdpJC
package credential

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrDuplicateKey is returned when a credential file defines the same
// access key twice.
var ErrDuplicateKey = errors.New("duplicate access key")

// Credential maps an access key to its secret and the entity it represents.
type Credential struct {
	// Name is the entity this credential belongs to, typically an email.
	Name string `yaml:"name"`
	// Key is the public access key identifier.
	Key string `yaml:"key"`
	// Secret is the shared signing secret. It must stay raw: the HMAC
	// signature computation needs the original bytes.
	Secret string `yaml:"secret"`
}

// Store is an immutable set of credentials indexed by access key.
type Store struct {
	byKey map[string]*Credential
}

// ForKey returns the credential for an access key. The lookup is total:
// a missing key returns ok=false, never an error.
func (s *Store) ForKey(key string) (*Credential, bool) {
	c, ok := s.byKey[key]
	return c, ok
}

// Len returns the number of credentials in the store.
func (s *Store) Len() int { return len(s.byKey) }

// Load reads a credential file from disk.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open credentials file: %w", err)
	}
	defer f.Close()

	store, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse credentials file %s: %w", path, err)
	}
	return store, nil
}

// Parse reads a multi-document YAML credential stream.
func Parse(r io.Reader) (*Store, error) {
	dec := yaml.NewDecoder(r)
	byKey := make(map[string]*Credential)
	for {
		var c Credential
		err := dec.Decode(&c)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode credential document: %w", err)
		}
		if c.Name == "" || c.Key == "" || c.Secret == "" {
			return nil, fmt.Errorf("credential for %q missing name, key, or secret", c.Name)
		}
		if _, exists := byKey[c.Key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, c.Key)
		}
		cred := c
		byKey[c.Key] = &cred
	}
	if len(byKey) == 0 {
		return nil, errors.New("credential stream contains no credentials")
	}
	return &Store{byKey: byKey}, nil
}
