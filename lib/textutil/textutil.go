package textutil

import "strings"

// RedactEmail hides the local part of an email address so logs can
// still show which identity provider domain was involved.
func RedactEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return "***"
	}
	return "***" + email[at:]
}
