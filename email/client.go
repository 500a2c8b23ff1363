package email

import (
	"fmt"

	"github.com/emersion/go-smtp"
	"github.com/pkg/errors"
	"github.com/ptgott/onemail/contact"
	"github.com/rs/zerolog/log"
)

// SendError is returned by Client.Send when the transport couldn't deliver a
// message. It carries the transport's diagnostic and unwraps to the
// transport's error.
type SendError struct {
	// Diagnostic is the transport's description of the failure.
	Diagnostic string
	// Code is the SMTP reply code if the relay answered with an error, or
	// zero for connection, TLS and timeout failures.
	Code int
	err  error
}

func newSendError(err error) *SendError {
	se := &SendError{
		Diagnostic: err.Error(),
		err:        err,
	}
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		se.Code = smtpErr.Code
	}
	return se
}

func (e *SendError) Error() string {
	return fmt.Sprintf("could not send email: %v", e.Diagnostic)
}

func (e *SendError) Unwrap() error {
	return e.err
}

// Temporary reports whether the relay answered with a 4xx code, i.e., the
// same message might go through later.
func (e *SendError) Temporary() bool {
	return e.Code/100 == 4
}

// Client sends plain-text messages from a fixed sender through a Transport.
// It keeps no state between sends, but it isn't meant to be shared between
// goroutines unless the Transport is.
type Client struct {
	transport Transport
	settings  Settings
}

// NewClient binds a transport and the sender contacts together.
func NewClient(t Transport, s Settings) *Client {
	return &Client{
		transport: t,
		settings:  s,
	}
}

// Send delivers a single message to recipient. It blocks until the
// transport accepts or rejects the message, or until the transport's
// timeout. Send doesn't retry.
func (c *Client) Send(recipient contact.Contact, subject string, body string) error {
	m := Message{
		From:    c.settings.From,
		ReplyTo: c.settings.ReplyTo,
		To:      recipient,
		Subject: subject,
		Body:    body,
	}

	// Contacts are built from validated addresses, so this only fails if
	// something upstream is broken. Catch it before talking to the relay.
	if _, err := m.Header(); err != nil {
		log.Error().
			Err(err).
			Str("to", recipient.Address.String()).
			Msg("can't build the message headers")
		return err
	}

	log.Debug().
		Str("from", m.From.String()).
		Str("replyTo", m.ReplyTo.String()).
		Str("to", m.To.String()).
		Str("subject", m.Subject).
		Msg("submitting an email")

	if err := c.transport.Submit(m); err != nil {
		se := newSendError(err)
		log.Error().
			Err(err).
			Int("code", se.Code).
			Str("to", recipient.Address.String()).
			Str("domain", recipient.Address.Domain()).
			Msg("could not send email")
		return se
	}

	log.Info().
		Str("to", recipient.Address.String()).
		Str("domain", recipient.Address.Domain()).
		Str("subject", subject).
		Msg("email sent successfully")
	return nil
}
