// Package util provides small helpers shared across TastingFlow components.
package util

import (
	"math/rand/v2"
	"strings"
)

// joinCodeChars leaves out 0/O and 1/I/L so codes survive being read aloud.
const joinCodeChars = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// DefaultJoinCodeLength is the length of codes handed to tasting hosts.
const DefaultJoinCodeLength = 6

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
func GenerateRandomHex(length int) string {
	return randomString("0123456789abcdef", length)
}

// GenerateJoinCode returns an upper-case code participants type to join a tasting.
func GenerateJoinCode(length int) string {
	return randomString(joinCodeChars, length)
}

// NormalizeJoinCode folds user input onto the form produced by GenerateJoinCode.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

func randomString(alphabet string, length int) string {
	if length <= 0 {
		return ""
	}
	var builder strings.Builder
	builder.Grow(length)
	for i := 0; i < length; i++ {
		builder.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return builder.String()
}
