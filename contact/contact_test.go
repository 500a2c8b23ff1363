package contact

import (
	"bytes"
	"testing"
	"testing/quick"

	"github.com/ptgott/onemail/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func mustParse(t *testing.T, s string) address.Address {
	t.Helper()
	a, err := address.Parse(s)
	require.NoError(t, err)
	return a
}

func TestString(t *testing.T) {
	tests := []struct {
		name    string
		contact Contact
		want    string
	}{
		{
			name:    "plain name",
			contact: New("Alice", mustParse(t, "alice@example.com")),
			want:    "Alice <alice@example.com>",
		},
		{
			name:    "name with spaces",
			contact: New("Your name", mustParse(t, "youremail@hotmail.com")),
			want:    "Your name <youremail@hotmail.com>",
		},
		{
			name:    "special characters are left alone",
			contact: New(`Doe, "Jane"`, mustParse(t, "jane@example.com")),
			want:    `Doe, "Jane" <jane@example.com>`,
		},
		{
			name:    "empty name",
			contact: New("", mustParse(t, "anon@example.com")),
			want:    " <anon@example.com>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.contact.String())
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	a := mustParse(t, "carol@example.com")
	if err := quick.Check(func(name string) bool {
		return New(name, a).String() == name+" <carol@example.com>"
	}, &quick.Config{
		MaxCount: 2000,
	}); err != nil {
		t.Error(err)
	}
}

func TestContactIsAValue(t *testing.T) {
	c := New("Bob", mustParse(t, "bob@example.com"))
	d := c
	d.Name = "Robert"

	assert.Equal(t, "Bob", c.Name)
	assert.Equal(t, "Robert <bob@example.com>", d.String())
}

func TestUnmarshalYAML(t *testing.T) {
	testCases := []struct {
		description   string
		input         string
		shouldBeError bool
		want          string
	}{
		{
			description: "valid case",
			input: `name: Alice
address: alice@example.com`,
			want: "Alice <alice@example.com>",
		},
		{
			description: "no name",
			input:       `address: alice@example.com`,
			want:        " <alice@example.com>",
		},
		{
			description:   "no address",
			input:         `name: Alice`,
			shouldBeError: true,
		},
		{
			description: "invalid address",
			input: `name: Alice
address: alice@`,
			shouldBeError: true,
		},
		{
			description:   "not a map",
			input:         `[]`,
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			var c Contact
			dec := yaml.NewDecoder(bytes.NewBuffer([]byte(tc.input)))
			err := dec.Decode(&c)
			if (err != nil) != tc.shouldBeError {
				t.Fatalf(
					"%v: unexpected error status--wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}
			if !tc.shouldBeError {
				assert.Equal(t, tc.want, c.String())
			}
		})
	}
}
