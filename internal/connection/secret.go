package connection

import (
	"crypto/subtle"
	"log/slog"
	"runtime"
)

const redacted = "[REDACTED]"

// Secret is an erasable buffer holding secret material (tokens, passwords).
// The zero value and nil are both empty secrets.
type Secret struct {
	b []byte
}

// Compile-time check that secrets are redacted in structured logs
var _ slog.LogValuer = (*Secret)(nil)

// NewSecret copies value into a new Secret. The backing buffer is zeroed when the
// Secret becomes unreachable, or earlier through Erase.
func NewSecret(value string) *Secret {
	return newSecretBytes([]byte(value))
}

func newSecretBytes(b []byte) *Secret {
	s := &Secret{b: b}
	runtime.AddCleanup(s, func(buf []byte) { clear(buf) }, b)
	return s
}

// Reveal returns the secret as a string. The returned string is a copy and is not erased by Erase.
func (s *Secret) Reveal() string {
	if s == nil {
		return ""
	}
	return string(s.b)
}

// Bytes returns a copy of the secret bytes.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}
	return append([]byte(nil), s.b...)
}

// IsEmpty reports whether the secret holds no bytes.
func (s *Secret) IsEmpty() bool {
	return s == nil || len(s.b) == 0
}

// Clone returns a deep copy; erasing one never affects the other.
func (s *Secret) Clone() *Secret {
	if s == nil {
		return nil
	}
	return newSecretBytes(append([]byte(nil), s.b...))
}

// Equal compares two secrets in constant time.
func (s *Secret) Equal(other *Secret) bool {
	var a, b []byte
	if s != nil {
		a = s.b
	}
	if other != nil {
		b = other.b
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Erase zeroes the buffer and empties the secret.
func (s *Secret) Erase() {
	if s == nil {
		return
	}
	clear(s.b)
	s.b = nil
}

// String never exposes the secret.
func (s *Secret) String() string {
	return redacted
}

// GoString never exposes the secret.
func (s *Secret) GoString() string {
	return redacted
}

// LogValue never exposes the secret.
func (s *Secret) LogValue() slog.Value {
	return slog.StringValue(redacted)
}
