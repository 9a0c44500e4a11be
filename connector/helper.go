package connector

// maxMessageBytes bounds how much untrusted backend output is carried into an
// outcome message.
const maxMessageBytes = 300

// TruncateMessage bounds a backend error body or exception text before it is
// stored in an outcome, so an adversarial backend cannot inflate responses.
func TruncateMessage(s string) string {
	if len(s) <= maxMessageBytes {
		return s
	}
	return s[:maxMessageBytes]
}

// IsSuccess reports whether an HTTP status code is in the 2xx range.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
