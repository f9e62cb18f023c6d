package config

import (
	"encoding/json"
	"fmt"
)

// Redacted is printed wherever a Secret would otherwise appear.
const Redacted = "***"

// Secret holds a credential. Every formatting path prints Redacted;
// Reveal returns the cleartext for the child process argv only.
type Secret string

// Reveal returns the cleartext value.
func (s Secret) Reveal() string { return string(s) }

// IsZero reports whether no secret is set.
func (s Secret) IsZero() bool { return s == "" }

func (s Secret) String() string { return Redacted }

func (s Secret) GoString() string { return Redacted }

// Format covers %v, %s, %q, %x and friends.
func (s Secret) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(Redacted))
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(Redacted)
}

func (s Secret) MarshalYAML() (any, error) {
	return Redacted, nil
}
