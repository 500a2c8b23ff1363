package smtptest

// smtptest provides SMTP servers that run inside the test process, so tests
// can send real email over the loopback interface and inspect what arrived.
