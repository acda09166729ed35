package viewmodel

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// AvatarURL is the Gravatar image of email. Unknown addresses get a
// generated identicon.
func AvatarURL(email string, size int) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	if size <= 0 {
		size = 64
	}
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=%d&d=identicon", md5.Sum([]byte(email)), size)
}
