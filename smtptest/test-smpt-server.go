package smtptest

// Server is an SMTP server that a test starts, sends email to, and stops.
// The server should be able to return the payloads of messages sent to it
// during the test. Both InProcessServer and SilentServer implement it.
type Server interface {
	// Start serves connections until Close is called. Blocking, so run
	// it in its own goroutine.
	Start() error

	// Close stops the server and releases its listener. While this is
	// designed not to return an error so it's easier to use with defer,
	// implementations should make sure nothing keeps listening afterwards.
	Close()

	// RetrieveEmails returns the payloads of all email messages sent to the
	// server after time t in Unix epoch nanoseconds.
	RetrieveEmails(t int64) ([]string, error)

	// Address returns the host:port of the server.
	Address() string
}

var (
	_ Server = (*InProcessServer)(nil)
	_ Server = (*SilentServer)(nil)
)
