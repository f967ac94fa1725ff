// Package deliver renders a curated newsletter into an email and hands it to
// the delivery provider. Dry runs short-circuit before any external call.
package deliver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"digestly/internal/domain/entity"
)

// Renderer renders a curated newsletter into email bodies. Fallback builds a
// minimal notice when rendering fails and must not fail itself.
type Renderer interface {
	Render(newsletter *entity.CuratedNewsletter, profile *entity.UserProfile, generationID string) (*entity.EmailContent, error)
	Fallback(profile *entity.UserProfile, generationID string) *entity.EmailContent
}

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, to string, content *entity.EmailContent) (*entity.DeliveryResult, error)
}

// Service implements the generation and delivery stages.
type Service struct {
	Renderer Renderer
	Sender   Sender
	Logger   *slog.Logger
}

// NewService creates a delivery service.
func NewService(renderer Renderer, sender Sender, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Renderer: renderer, Sender: sender, Logger: logger}
}

// Generate renders the newsletter into email content.
func (s *Service) Generate(newsletter *entity.CuratedNewsletter, profile *entity.UserProfile, generationID string) (*entity.EmailContent, error) {
	if newsletter == nil {
		return nil, fmt.Errorf("Generate: no curated newsletter")
	}
	content, err := s.Renderer.Render(newsletter, profile, generationID)
	if err != nil {
		return nil, fmt.Errorf("Generate: %w", err)
	}
	s.Logger.Info("Email content generated",
		slog.String("generation_id", generationID),
		slog.String("subject", content.Subject),
		slog.Float64("size_kb", content.EstimatedSizeKB()))
	return content, nil
}

// GenerateFallback renders the minimal service notice. It never fails.
func (s *Service) GenerateFallback(profile *entity.UserProfile, generationID string) *entity.EmailContent {
	return s.Renderer.Fallback(profile, generationID)
}

// Deliver sends the rendered email. In dry-run mode it records a successful
// synthetic delivery without touching the provider. On a real send failure
// the failed result is returned alongside the error so the caller can still
// record the attempt.
func (s *Service) Deliver(ctx context.Context, profile *entity.UserProfile, content *entity.EmailContent, generationID string, dryRun bool) (*entity.DeliveryResult, error) {
	if content == nil {
		return nil, fmt.Errorf("Deliver: no email content")
	}

	if dryRun {
		s.Logger.Info("Dry run, skipping email delivery",
			slog.String("generation_id", generationID),
			slog.String("recipient", profile.Email),
			slog.String("subject", content.Subject))
		return &entity.DeliveryResult{
			Success:    true,
			DeliveryID: "dry-run-" + generationID,
			Status:     entity.DeliverySent,
			SentAt:     time.Now().UTC(),
			Metadata:   map[string]any{"dry_run": true},
		}, nil
	}

	result, err := s.Sender.Send(ctx, profile.Email, content)
	if err != nil {
		return result, fmt.Errorf("Deliver: %w", err)
	}
	s.Logger.Info("Newsletter delivered",
		slog.String("generation_id", generationID),
		slog.String("recipient", profile.Email),
		slog.String("delivery_id", result.DeliveryID))
	return result, nil
}
