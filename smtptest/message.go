package smtptest

import "strings"

// SplitMessage separates a received message into its header lines and its
// body. Header lines keep their order and lose their CRLF. A trailing CRLF
// that the SMTP client appended to the body is dropped.
func SplitMessage(raw string) (header []string, body string) {
	parts := strings.SplitN(raw, "\r\n\r\n", 2)
	if parts[0] != "" {
		header = strings.Split(parts[0], "\r\n")
	}
	if len(parts) == 2 {
		body = strings.TrimSuffix(parts[1], "\r\n")
	}
	return header, body
}

// HeaderValue returns the value of the first header line named key, or
// the empty string.
func HeaderValue(header []string, key string) string {
	prefix := key + ": "
	for _, h := range header {
		if strings.HasPrefix(h, prefix) {
			return strings.TrimPrefix(h, prefix)
		}
	}
	return ""
}
