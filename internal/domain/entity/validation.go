package entity

import (
	"fmt"
	"strings"
)

// MaxInterests is the maximum number of interests a profile may carry.
// Profiles exceeding it are trimmed rather than rejected.
const MaxInterests = 20

// MaxArticlesCap is the hard upper bound on articles per newsletter.
const MaxArticlesCap = 50

// ValidateEmail performs a minimal structural check on an email address.
func ValidateEmail(email string) error {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return &ValidationError{Field: "email", Message: "must contain a local part and a domain"}
	}
	if !strings.Contains(email[at+1:], ".") {
		return &ValidationError{Field: "email", Message: "domain must contain a dot"}
	}
	return nil
}

// ValidateScheduleTime checks that a schedule time is in HH:MM form.
func ValidateScheduleTime(v string) error {
	var h, m int
	if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err != nil {
		return &ValidationError{Field: "schedule_time", Message: "must be in HH:MM format"}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return &ValidationError{Field: "schedule_time", Message: "hour must be 0-23 and minute 0-59"}
	}
	return nil
}

// NormalizeInterests trims whitespace, lowercases, and drops empty entries.
// The returned slice preserves the input order.
func NormalizeInterests(interests []string) []string {
	out := make([]string, 0, len(interests))
	for _, v := range interests {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ValidURL reports whether the URL is an absolute http(s) URL.
func ValidURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
