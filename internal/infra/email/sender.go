// Package email delivers rendered newsletters to recipients. It defines the
// Sender interface and a Resend API implementation with rate limiting,
// retries, and a circuit breaker.
package email

import (
	"context"

	"digestly/internal/domain/entity"
)

// Sender is an interface for delivering a rendered newsletter email.
// Implementations handle rate limiting, retries, and error logging
// internally.
type Sender interface {
	// Send delivers the rendered email to one recipient address.
	// The returned result carries the provider's delivery ID on success.
	Send(ctx context.Context, to string, content *entity.EmailContent) (*entity.DeliveryResult, error)
}
