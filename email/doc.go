package email

// email is responsible for sending email to an SMTP relay, including
// connecting to the server, negotiating TLS and authentication, and building
// a plain-text message from the configured sender and reply-to contacts. It
// is not designed to represent the user-facing content of an email, and
// includes the subject and body as given.
