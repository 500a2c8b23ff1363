package address

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

// ValidationError is returned by Parse when a candidate string is not a
// syntactically valid email address.
type ValidationError struct {
	Candidate string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v is not a valid email", e.Candidate)
}

// Address is an email address that has passed Parse. The zero value is
// the empty address, which is never valid.
type Address struct {
	raw string
}

// Parse checks candidate against the addr-spec grammar of RFC 5322 and
// returns it wrapped in an Address. The candidate is kept as is, without
// case folding or other normalization.
func Parse(candidate string) (Address, error) {
	if !valid(candidate) {
		return Address{}, &ValidationError{Candidate: candidate}
	}
	return Address{raw: candidate}, nil
}

// valid reports whether s is a bare addr-spec with a non-empty local part
// and domain.
func valid(s string) bool {
	if s == "" {
		return false
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}

	p, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	// ParseAddress also accepts "Name <addr>" and "<addr>", and it can
	// rewrite the local part. We only want strings that already are the
	// addr-spec.
	return p.Name == "" && p.Address == s
}

// String returns the address exactly as it was passed to Parse.
func (a Address) String() string {
	return a.raw
}

// IsZero reports whether a was never produced by Parse.
func (a Address) IsZero() bool {
	return a.raw == ""
}

// Domain returns everything after the last "@". Logged alongside sends so
// failures can be grouped by receiving provider.
func (a Address) Domain() string {
	at := strings.LastIndexByte(a.raw, '@')
	if at < 0 {
		return ""
	}
	return a.raw[at+1:]
}

// UnmarshalYAML implements the yaml.Unmarshaler interface. The scalar is
// validated with Parse, so a config file can't smuggle in a bad address.
func (a *Address) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("can't read the email address as a string: %v", err)
	}

	p, err := Parse(s)
	if err != nil {
		return err
	}
	*a = p
	return nil
}

