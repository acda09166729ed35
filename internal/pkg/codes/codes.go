// Package codes generates human-facing identifiers for members and providers.
package codes

import (
	"crypto/rand"
	"fmt"
	"strings"
	"unicode"
)

// Uppercase alphanumerics without I and O, which read like 1 and 0.
const alphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	MemberCodePrefix = "MBR"
	memberCodeLength = 7
	providerSuffix   = 5
	maxProviderStem  = 6
)

// Random returns a cryptographically random string over the code alphabet.
func Random(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length: %d", length)
	}

	// Rejection sampling avoids modulo bias; 238 is the largest multiple of 34 below 256.
	const maxRandomByte = 238

	out := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			out[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(out), nil
}

// GenerateMemberCode returns a member unique id such as MBR7K2QXPA.
func GenerateMemberCode() (string, error) {
	s, err := Random(memberCodeLength)
	if err != nil {
		return "", err
	}
	return MemberCodePrefix + s, nil
}

// GenerateProviderCode derives a readable code from the provider name,
// e.g. "Sunrise Academy" becomes SUNRIS-4F7QZ.
func GenerateProviderCode(name string) (string, error) {
	stem := make([]rune, 0, maxProviderStem)
	for _, r := range strings.ToUpper(name) {
		if len(stem) == maxProviderStem {
			break
		}
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			stem = append(stem, r)
		}
	}
	if len(stem) == 0 {
		stem = []rune("PRV")
	}
	s, err := Random(providerSuffix)
	if err != nil {
		return "", err
	}
	return string(stem) + "-" + s, nil
}
