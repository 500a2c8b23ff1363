package address

// address validates email address syntax. An Address can only be obtained
// through Parse, so holding one means the string inside has already been
// checked and is safe to place in a message header or an SMTP envelope.
