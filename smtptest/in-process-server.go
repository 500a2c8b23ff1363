package smtptest

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-smtp"
)

// Message is an email as received by an InProcessServer, including its
// SMTP envelope.
type Message struct {
	Created time.Time
	// MAIL FROM address
	From string
	// RCPT TO addresses
	To []string
	// Everything sent after DATA, with CRLF line endings
	Body string
}

// ServerConfig controls how an InProcessServer treats its clients.
type ServerConfig struct {
	// PEM files for STARTTLS. Leave both empty to run without TLS, in
	// which case AUTH is allowed over plain text.
	KeyPath  string
	CertPath string
	// If set, AUTH only succeeds with these credentials. Otherwise any
	// non-empty username and password are fine, since we don't want to
	// couple this with specific test configurations.
	Username string
	Password string
	// Accept MAIL without AUTH.
	AllowAnonymous bool
	// RCPT TO for these addresses gets a permanent failure (550).
	RejectRecipients []string
	// Serve TLS from the first byte, as on port 465, instead of offering
	// STARTTLS. Needs KeyPath and CertPath.
	ImplicitTLS bool
}

// Backend implements smtp.Backend. It's a thin authentication wrapper
// for an InMemoryEmailStore.
type Backend struct {
	*InMemoryEmailStore
	conf ServerConfig
}

// Login implements smtp.Backend.
func (be *Backend) Login(_ *smtp.ConnectionState, username string, password string) (smtp.Session, error) {
	if username == "" || password == "" {
		return nil, errors.New("no username or password provided")
	}
	if be.conf.Username != "" && (username != be.conf.Username || password != be.conf.Password) {
		return nil, &smtp.SMTPError{
			Code:         535,
			EnhancedCode: smtp.EnhancedCode{5, 7, 8},
			Message:      "Authentication credentials invalid",
		}
	}
	return be.newSession(), nil
}

// AnonymousLogin implements smtp.Backend. Only supported when
// ServerConfig.AllowAnonymous is set, since we want to enforce AUTH
// otherwise.
func (be *Backend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	if be.conf.AllowAnonymous {
		return be.newSession(), nil
	}
	return nil, smtp.ErrAuthRequired
}

func (be *Backend) newSession() *session {
	return &session{
		store:  be.InMemoryEmailStore,
		reject: be.conf.RejectRecipients,
	}
}

// session implements smtp.Session and collects the envelope of a single
// message before handing it to the store.
type session struct {
	store  *InMemoryEmailStore
	reject []string
	from   string
	to     []string
}

// Reset implements smtp.Session.
func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

// Logout implements smtp.Session. No-op here.
func (s *session) Logout() error { return nil }

// Mail implements smtp.Session.
func (s *session) Mail(from string, _ smtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt implements smtp.Session.
func (s *session) Rcpt(to string) error {
	for _, r := range s.reject {
		if strings.EqualFold(r, to) {
			return &smtp.SMTPError{
				Code:         550,
				EnhancedCode: smtp.EnhancedCode{5, 1, 1},
				Message:      "No such user here",
			}
		}
	}
	s.to = append(s.to, to)
	return nil
}

// Data implements smtp.Session. Stores the email data in memory for
// retrieval at the end of the test.
func (s *session) Data(r io.Reader) error {
	// doubtful we'll get an email this big, but we need a limit
	var maxEmailSize int64 = 100 * units.MiB
	buf, err := io.ReadAll(io.LimitReader(r, maxEmailSize))
	if err != nil {
		return err
	}

	s.store.saveEmail(Message{
		From: s.from,
		To:   append([]string(nil), s.to...),
		Body: string(buf),
	})
	return nil
}

// InMemoryEmailStore retains email bodies in memory for comparison against
// a test's expected output.
// Designed to be goroutine safe since we don't know how many goroutines will
// be hitting the server at once.
type InMemoryEmailStore struct {
	mu       sync.Mutex
	messages []Message
}

// saveEmail stores the message along with a timestamp created just prior
// to saving
func (es *InMemoryEmailStore) saveEmail(m Message) {
	es.mu.Lock()
	defer es.mu.Unlock()

	m.Created = time.Now()
	es.messages = append(es.messages, m)
}

// RetrieveEmails returns a slice of all message bodies (as strings)
// sent after epoch nanoseconds t
// Satisfies smtptest.Server but isn't expected to return an error.
func (es *InMemoryEmailStore) RetrieveEmails(t int64) ([]string, error) {
	es.mu.Lock()
	defer es.mu.Unlock()

	r := make([]string, 0, len(es.messages))
	for _, m := range es.messages {
		if m.Created.UnixNano() >= t {
			r = append(r, m.Body)
		}
	}
	return r, nil
}

// Messages returns every message received so far, envelopes included.
func (es *InMemoryEmailStore) Messages() []Message {
	es.mu.Lock()
	defer es.mu.Unlock()

	return append([]Message(nil), es.messages...)
}

// InProcessServer is an SMTP server that runs in the same process as the
// test suite, letting us inspect sent emails. You must initialize this
// via NewInProcessServer
type InProcessServer struct {
	*smtp.Server
	*InMemoryEmailStore
	listener net.Listener
}

// NewInProcessServer creates an InProcessServer listening on a random local
// port, including configuring its SMTP server to store incoming messages in
// memory. If conf includes a key and cert, the server offers STARTTLS and
// only allows AUTH after it, or speaks TLS from the start with ImplicitTLS.
// The cert must be a root cert.
func NewInProcessServer(conf ServerConfig) (*InProcessServer, error) {
	is := &InMemoryEmailStore{
		messages: []Message{},
	}

	srv := smtp.NewServer(&Backend{
		InMemoryEmailStore: is,
		conf:               conf,
	})

	srv.Domain = "localhost"
	srv.AuthDisabled = false // need AUTH here
	// Strict enforces <address> syntax in MAIL and RCPT:
	// https://github.com/emersion/go-smtp/blob/f92bf7f1a25777bcdaa28a142b1cd1a54b74c8f4/conn.go#L321-L325
	srv.Strict = true
	srv.ReadTimeout = time.Duration(10) * time.Second
	srv.WriteTimeout = time.Duration(10) * time.Second

	if conf.KeyPath != "" || conf.CertPath != "" {
		cert, err := tls.LoadX509KeyPair(conf.CertPath, conf.KeyPath)
		if err != nil {
			return nil, err
		}
		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
		}
	} else {
		srv.AllowInsecureAuth = true
	}

	if conf.ImplicitTLS && srv.TLSConfig == nil {
		return nil, errors.New("implicit TLS needs a key and a certificate")
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	if conf.ImplicitTLS {
		l = tls.NewListener(l, srv.TLSConfig)
	}
	srv.Addr = l.Addr().String()

	return &InProcessServer{
		Server:             srv,
		InMemoryEmailStore: is,
		listener:           l,
	}, nil
}

// Start starts the test server. Blocking.
func (is *InProcessServer) Start() error {
	// Not serving TLS from the start--the client should upgrade the
	// connection to TLS
	return is.Server.Serve(is.listener)
}

// Close shuts down the test server daemon. You must initialize a new
// InProcessServer instead of restarting this one.
func (is *InProcessServer) Close() {
	is.Server.Close()
	// Serve might not have registered the listener yet
	is.listener.Close()
}

// Address returns the host:port of the test SMTP server.
func (is *InProcessServer) Address() string {
	return is.listener.Addr().String()
}
