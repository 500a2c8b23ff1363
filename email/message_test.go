package email

import (
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/ptgott/onemail/address"
	"github.com/ptgott/onemail/contact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContact(t *testing.T, name, addr string) contact.Contact {
	t.Helper()
	a, err := address.Parse(addr)
	require.NoError(t, err)
	return contact.New(name, a)
}

func TestMessageFormat(t *testing.T) {
	m := Message{
		From:    testContact(t, "Alice", "alice@example.com"),
		ReplyTo: testContact(t, "Bob", "bob@example.com"),
		To:      testContact(t, "Carol", "carol@example.com"),
		Subject: "Hello",
		Body:    "Hi there",
	}
	date := time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)

	b, err := m.Format(date)
	require.NoError(t, err)

	want := "From: Alice <alice@example.com>\r\n" +
		"Reply-To: Bob <bob@example.com>\r\n" +
		"To: Carol <carol@example.com>\r\n" +
		"Subject: Hello\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Date: Fri, 01 Mar 2024 09:30:00 +0000\r\n" +
		"\r\n" +
		"Hi there"
	assert.Equal(t, want, string(b))
}

func TestMessageFormatLineEndings(t *testing.T) {
	tests := []struct {
		description string
		body        string
		want        string
	}{
		{
			description: "bare LF",
			body:        "one\ntwo\n",
			want:        "one\r\ntwo\r\n",
		},
		{
			description: "already CRLF",
			body:        "one\r\ntwo",
			want:        "one\r\ntwo",
		},
		{
			description: "mixed",
			body:        "one\r\ntwo\nthree",
			want:        "one\r\ntwo\r\nthree",
		},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			m := Message{
				From:    testContact(t, "Alice", "alice@example.com"),
				ReplyTo: testContact(t, "Bob", "bob@example.com"),
				To:      testContact(t, "Carol", "carol@example.com"),
				Subject: "Hello",
				Body:    tt.body,
			}
			b, err := m.Format(time.Now())
			require.NoError(t, err)
			_, body, ok := strings.Cut(string(b), "\r\n\r\n")
			require.True(t, ok)
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestAddressHeader(t *testing.T) {
	tests := []struct {
		name    string
		contact contact.Contact
		want    string
	}{
		{
			name:    "plain name is written as rendered",
			contact: testContact(t, "Your name", "you@example.com"),
			want:    "Your name <you@example.com>",
		},
		{
			name:    "initials with dots",
			contact: testContact(t, "J. R. Smith", "jrs@example.com"),
			want:    "J. R. Smith <jrs@example.com>",
		},
		{
			name:    "comma and quotes get quoted",
			contact: testContact(t, `Doe, "Jane"`, "jane@example.com"),
			want:    `"Doe, \"Jane\"" <jane@example.com>`,
		},
		{
			name:    "angle bracket in the name gets quoted",
			contact: testContact(t, "Mallory <evil@example.net>", "mallory@example.com"),
			want:    `"Mallory <evil@example.net>" <mallory@example.com>`,
		},
		{
			name:    "non-ASCII name is encoded",
			contact: testContact(t, "Zoé", "zoe@example.com"),
			want:    "=?utf-8?q?Zo=C3=A9?= <zoe@example.com>",
		},
		{
			name:    "no name",
			contact: testContact(t, "", "anon@example.com"),
			want:    "<anon@example.com>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := addressHeader(tt.contact)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			p, err := mail.ParseAddress(got)
			require.NoError(t, err)
			assert.Equal(t, tt.contact.Address.String(), p.Address)
		})
	}
}

func TestHeaderRejectsUnvalidatedContact(t *testing.T) {
	m := Message{
		From:    testContact(t, "Alice", "alice@example.com"),
		ReplyTo: testContact(t, "Bob", "bob@example.com"),
		To:      contact.Contact{Name: "Nobody"},
	}

	_, err := m.Header()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedContact))
	assert.Contains(t, err.Error(), "To header")
}

func TestEncodeSubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{
			name:    "ASCII is untouched",
			subject: "Your weekly report (draft #2)",
			want:    "Your weekly report (draft #2)",
		},
		{
			name:    "line breaks can't start a new header",
			subject: "Hello\r\nBcc: victim@example.com",
			want:    "Hello  Bcc: victim@example.com",
		},
		{
			name:    "non-ASCII is Q-encoded",
			subject: "Café",
			want:    "=?utf-8?q?Caf=C3=A9?=",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encodeSubject(tt.subject)
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.ContainsAny(got, "\r\n"))
		})
	}
}
