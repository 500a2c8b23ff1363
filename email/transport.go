package email

import (
	"crypto/tls"
	"io"
	"net"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MaxMessageSize is the largest message we'll hand to a relay. Plain-text
// notifications are nowhere near this, so anything bigger is a mistake on
// the caller's side.
const MaxMessageSize int64 = 10 * units.MiB

// Transport delivers a composed Message. Implementations own the connection
// details, so a Message carries no routing information beyond its contacts.
type Transport interface {
	Submit(m Message) error
}

// SMTPTransport submits messages to an SMTP relay. Each Submit opens a new
// connection, negotiates TLS and AUTH according to its settings, and quits
// after the message is accepted. Submit calls are serialized.
type SMTPTransport struct {
	mu       sync.Mutex
	settings SMTPServerSettings
	// stamps the Date header
	now func() time.Time
}

// NewSMTPTransport returns a transport for the relay described by s. The
// relay isn't contacted until the first Submit.
func NewSMTPTransport(s SMTPServerSettings) *SMTPTransport {
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
	return &SMTPTransport{
		settings: s,
		now:      time.Now,
	}
}

// Submit delivers m to the relay. A nil error means the relay accepted the
// message for delivery. Errors returned by the relay unwrap to
// *smtp.SMTPError.
func (st *SMTPTransport) Submit(m Message) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := m.Format(st.now())
	if err != nil {
		return err
	}
	if int64(len(data)) > MaxMessageSize {
		return errors.Errorf(
			"the message is %v, which is over the %v limit",
			units.BytesSize(float64(len(data))),
			units.BytesSize(float64(MaxMessageSize)),
		)
	}

	conn, c, err := st.dial()
	if err != nil {
		return errors.Wrapf(err, "can't connect to the SMTP server at %v", st.settings.Address())
	}
	defer c.Close()

	if err := st.negotiateTLS(c); err != nil {
		return err
	}

	if err := st.authenticate(c); err != nil {
		return err
	}

	if err := c.Mail(m.From.Address.String(), &smtp.MailOptions{Size: len(data)}); err != nil {
		return errors.Wrap(err, "the SMTP server rejected the sender")
	}
	if err := c.Rcpt(m.To.Address.String()); err != nil {
		return errors.Wrap(err, "the SMTP server rejected the recipient")
	}

	w, err := c.Data()
	if err != nil {
		return errors.Wrap(err, "the SMTP server refused the message data")
	}
	// go-smtp only puts deadlines around commands, not around writing the
	// message itself.
	conn.SetDeadline(time.Now().Add(st.settings.Timeout))
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "can't write the message")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "the SMTP server did not accept the message")
	}

	// The message is already queued by now, so a failed QUIT isn't worth
	// reporting as a failed send.
	if err := c.Quit(); err != nil {
		log.Debug().Err(err).Msg("can't close the SMTP session cleanly")
	}
	return nil
}

// dial connects to the relay and reads its greeting. It also returns the
// underlying connection so we can set deadlines that go-smtp doesn't.
func (st *SMTPTransport) dial() (net.Conn, *smtp.Client, error) {
	d := net.Dialer{
		Timeout: st.settings.Timeout,
	}

	var conn net.Conn
	var err error
	if st.settings.TLS == TLSWrapper {
		conn, err = tls.DialWithDialer(&d, "tcp", st.settings.Address(), st.tlsConfig())
	} else {
		conn, err = d.Dial("tcp", st.settings.Address())
	}
	if err != nil {
		return nil, nil, err
	}

	// NewClient waits for the 220 greeting without a deadline of its own.
	conn.SetDeadline(time.Now().Add(st.settings.Timeout))
	c, err := smtp.NewClient(conn, st.settings.Host)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	conn.SetDeadline(time.Time{})

	c.CommandTimeout = st.settings.Timeout
	c.SubmissionTimeout = st.settings.Timeout
	return conn, c, nil
}

func (st *SMTPTransport) negotiateTLS(c *smtp.Client) error {
	switch st.settings.TLS {
	case TLSNone, TLSWrapper:
		return nil
	}

	ok, _ := c.Extension("STARTTLS")
	if !ok {
		if st.settings.TLS == TLSRequired {
			return errors.Errorf("the SMTP server at %v does not support STARTTLS", st.settings.Address())
		}
		log.Warn().
			Str("server", st.settings.Address()).
			Msg("the SMTP server does not support STARTTLS, sending in plain text")
		return nil
	}

	if err := c.StartTLS(st.tlsConfig()); err != nil {
		return errors.Wrap(err, "STARTTLS failed")
	}
	return nil
}

func (st *SMTPTransport) authenticate(c *smtp.Client) error {
	cr := st.settings.Credentials
	if cr.Username == "" {
		return nil
	}

	if ok, _ := c.Extension("AUTH"); !ok {
		return errors.Errorf("the SMTP server at %v does not support AUTH", st.settings.Address())
	}
	if err := c.Auth(sasl.NewPlainClient("", cr.Username, cr.Password)); err != nil {
		return errors.Wrap(err, "the SMTP server rejected the credentials")
	}
	return nil
}

func (st *SMTPTransport) tlsConfig() *tls.Config {
	if st.settings.TLSConfig != nil {
		return st.settings.TLSConfig
	}
	return &tls.Config{
		ServerName: st.settings.Host,
	}
}

// WriterTransport writes the formatted message to an io.Writer instead of
// sending it. It's meant for checking a configuration before pointing it at
// a real relay.
type WriterTransport struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewWriterTransport returns a transport that writes every message to w.
func NewWriterTransport(w io.Writer) *WriterTransport {
	return &WriterTransport{
		w:   w,
		now: time.Now,
	}
}

// Submit writes m to the underlying writer.
func (wt *WriterTransport) Submit(m Message) error {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	data, err := m.Format(wt.now())
	if err != nil {
		return err
	}
	if _, err := wt.w.Write(data); err != nil {
		return errors.Wrap(err, "can't write the message")
	}
	return nil
}
