package e2e

// e2e contains integration tests and utility code required to set up
// dependencies. The tests go from a config file on disk to a message
// received by an in-process SMTP relay, the same way main does. Test
// dependencies that unit tests also use live in smtptest instead.
