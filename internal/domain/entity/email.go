package entity

import "time"

// EmailContent is a rendered newsletter ready for delivery.
type EmailContent struct {
	Subject     string
	HTMLBody    string
	TextBody    string
	Headers     map[string]string
	GeneratedAt time.Time
}

// EstimatedSizeKB returns the approximate payload size in kilobytes.
func (e *EmailContent) EstimatedSizeKB() float64 {
	return float64(len(e.HTMLBody)+len(e.TextBody)) / 1024
}
