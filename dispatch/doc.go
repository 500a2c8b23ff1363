package dispatch

// dispatch runs one send: it validates the recipient, builds the SMTP
// transport and email client from the user config, sends the message and
// records the outcome in the delivery journal.
