package validation

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode"
)

var (
	// EmailRegex validates email format
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// Manufacturer serials: letters, digits and a few separators
	serialRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/\-]{0,63}$`)
)

// IsValidEmail checks if the string is a valid email format
func IsValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// IsValidSerialNumber checks an equipment serial number. Empty is allowed.
func IsValidSerialNumber(serial string) bool {
	if serial == "" {
		return true
	}
	return serialRegex.MatchString(serial)
}

// IsValidJSONObject reports whether s is a JSON object. Empty is allowed.
func IsValidJSONObject(s string) bool {
	if strings.TrimSpace(s) == "" {
		return true
	}
	var obj map[string]interface{}
	return json.Unmarshal([]byte(s), &obj) == nil && obj != nil
}

// IsValidTimestamp accepts unix seconds from 1970 up to a day in the future,
// which leaves room for clock skew on field devices.
func IsValidTimestamp(ts int64) bool {
	return ts > 0 && ts <= time.Now().Add(24*time.Hour).Unix()
}

// SanitizeString removes potentially dangerous characters for display
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Remove control characters except newlines and tabs
	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// TruncateString truncates a string to maxLen characters
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
