package email

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ptgott/onemail/contact"
)

// DefaultTimeout bounds the dial and every SMTP command when the config
// doesn't set a timeout.
const DefaultTimeout = time.Duration(10) * time.Second

// TLSMode determines how the transport protects the connection to the relay.
type TLSMode int

const (
	// TLSRequired upgrades the connection with STARTTLS and fails if the
	// server doesn't offer it.
	TLSRequired TLSMode = iota
	// TLSOpportunistic upgrades with STARTTLS only if the server offers it.
	TLSOpportunistic
	// TLSNone never upgrades the connection.
	TLSNone
	// TLSWrapper connects over TLS from the start, usually on port 465.
	TLSWrapper
)

var tlsModeNames = map[TLSMode]string{
	TLSRequired:      "required",
	TLSOpportunistic: "opportunistic",
	TLSNone:          "none",
	TLSWrapper:       "wrapper",
}

func (m TLSMode) String() string {
	if s, ok := tlsModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("TLSMode(%d)", int(m))
}

// ParseTLSMode reads a TLS mode as written in the config file. The empty
// string means TLSRequired.
func ParseTLSMode(s string) (TLSMode, error) {
	if s == "" {
		return TLSRequired, nil
	}
	for m, n := range tlsModeNames {
		if strings.EqualFold(s, n) {
			return m, nil
		}
	}
	return 0, fmt.Errorf(
		"%q is not a TLS mode--use \"none\", \"opportunistic\", \"required\", or \"wrapper\"",
		s,
	)
}

// Credentials are used for SMTP AUTH. An empty Username disables AUTH.
type Credentials struct {
	Username string
	Password string
}

// SMTPServerSettings describes the relay endpoint. Nothing here is checked
// until the transport dials the server.
type SMTPServerSettings struct {
	Host        string
	Port        uint16
	TLS         TLSMode
	Credentials Credentials
	// Timeout for the dial and for each SMTP command. Zero means
	// DefaultTimeout.
	Timeout time.Duration
	// TLSConfig is used for STARTTLS and TLSWrapper connections. When nil,
	// the server certificate is verified against the system roots for
	// Host.
	TLSConfig *tls.Config
}

// Address returns the host:port of the relay.
func (s SMTPServerSettings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

// Settings are the contacts used for every message a Client sends.
type Settings struct {
	From    contact.Contact
	ReplyTo contact.Contact
}
