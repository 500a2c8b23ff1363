package email

import (
	"bytes"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/ptgott/onemail/contact"
)

// ContentType is the only body type we send.
const ContentType = "text/plain; charset=utf-8"

// ErrMalformedContact means a contact couldn't be turned into an address
// header that parses back to the same address. Contacts are built from
// validated addresses, so this points to a bug rather than bad input.
var ErrMalformedContact = errors.New("contact does not render to a valid address header")

// Message is a single outgoing email. It's built for one Send call and
// discarded afterwards.
type Message struct {
	From    contact.Contact
	ReplyTo contact.Contact
	To      contact.Contact
	Subject string
	Body    string
}

// HeaderField is one "Key: Value" line of a message header.
type HeaderField struct {
	Key   string
	Value string
}

// Header returns the header fields of m in the order they are written,
// minus the Date, which the transport adds when it submits the message.
func (m Message) Header() ([]HeaderField, error) {
	h := make([]HeaderField, 0, 5)
	for _, f := range []struct {
		key string
		c   contact.Contact
	}{
		{"From", m.From},
		{"Reply-To", m.ReplyTo},
		{"To", m.To},
	} {
		v, err := addressHeader(f.c)
		if err != nil {
			return nil, errors.Wrapf(err, "%v header", f.key)
		}
		h = append(h, HeaderField{Key: f.key, Value: v})
	}

	h = append(h,
		HeaderField{Key: "Subject", Value: encodeSubject(m.Subject)},
		HeaderField{Key: "Content-Type", Value: ContentType},
	)
	return h, nil
}

// Format renders m as it goes over the wire, with date as the Date header.
// Body line endings are normalized to CRLF.
func (m Message) Format(date time.Time) ([]byte, error) {
	h, err := m.Header()
	if err != nil {
		return nil, err
	}
	h = append(h, HeaderField{Key: "Date", Value: date.Format(time.RFC1123Z)})

	var buf bytes.Buffer
	for _, f := range h {
		buf.WriteString(f.Key)
		buf.WriteString(": ")
		buf.WriteString(f.Value)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	buf.WriteString(crlf(m.Body))
	return buf.Bytes(), nil
}

// crlf turns bare LF line endings into CRLF, the way the SMTP DATA writer
// does, so every transport emits the same bytes.
func crlf(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}

// addressHeader renders c for an address header and makes sure the result
// parses back to c's address. Ordinary names are written exactly as
// c.String() renders them. Names that would break the "name <address>"
// grammar are quoted, and non-ASCII names are RFC 2047 encoded.
func addressHeader(c contact.Contact) (string, error) {
	if c.Address.IsZero() {
		return "", ErrMalformedContact
	}

	var v string
	switch {
	case strings.TrimSpace(c.Name) == "":
		v = (&mail.Address{Address: c.Address.String()}).String()
	case isPlainPhrase(c.Name):
		v = c.String()
	default:
		v = (&mail.Address{Name: c.Name, Address: c.Address.String()}).String()
	}

	p, err := mail.ParseAddress(v)
	if err != nil {
		return "", errors.Wrapf(ErrMalformedContact, "%q: %v", v, err)
	}
	if p.Address != c.Address.String() {
		return "", errors.Wrapf(ErrMalformedContact, "%q parses as %v", v, p.Address)
	}
	return v, nil
}

// isPlainPhrase reports whether s can be used as a display name without
// quoting: printable ASCII atext, dots and spaces only.
func isPlainPhrase(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("!#$%&'*+-/=?^_`{|}~. ", r):
		default:
			return false
		}
	}
	return true
}

// encodeSubject keeps the subject on one line and encodes it only if it
// contains non-ASCII text.
func encodeSubject(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, s)
	return mime.QEncoding.Encode("utf-8", s)
}
