package logger

import "strings"

// RedactEmail masks a subscriber or customer address before it reaches
// request and error logs, keeping the first two characters of the local
// part and the whole domain ("buyer@example.com" becomes
// "bu***@example.com"). Local parts of two characters or fewer are masked
// entirely. Anything without exactly one "@" becomes "***@***".
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}
