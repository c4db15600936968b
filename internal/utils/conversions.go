package utils

import "strings"

// IsEmailLike is a cheap shape check used before any network call is made.
func IsEmailLike(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 {
		return false
	}
	return strings.Contains(email[at+1:], ".")
}
