package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"digestly/internal/app"
	"digestly/internal/domain/entity"
)

var feedbackFlags struct {
	email       string
	url         string
	title       string
	kind        string
	readSeconds float64
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record a recipient's engagement with a delivered item",
	Long: `Feedback stores one engagement signal (click, read, like, skip, share,
save, open_email) for a recipient. Signals accumulate into interest weights
that bias future ranking toward what the recipient actually reads.`,
	RunE: runFeedback,
}

func init() {
	feedbackCmd.Flags().StringVar(&feedbackFlags.email, "email", "", "recipient email (required)")
	feedbackCmd.Flags().StringVar(&feedbackFlags.url, "url", "", "item URL (required)")
	feedbackCmd.Flags().StringVar(&feedbackFlags.title, "title", "", "item title")
	feedbackCmd.Flags().StringVar(&feedbackFlags.kind, "type", "click", "interaction type")
	feedbackCmd.Flags().Float64Var(&feedbackFlags.readSeconds, "read-seconds", 0, "reading time for read interactions")
}

var validInteractionTypes = map[entity.InteractionType]bool{
	entity.InteractionClick:     true,
	entity.InteractionRead:      true,
	entity.InteractionSkip:      true,
	entity.InteractionLike:      true,
	entity.InteractionShare:     true,
	entity.InteractionSave:      true,
	entity.InteractionOpenEmail: true,
}

func runFeedback(cmd *cobra.Command, args []string) error {
	if feedbackFlags.email == "" || feedbackFlags.url == "" {
		return fmt.Errorf("--email and --url are required")
	}
	kind := entity.InteractionType(feedbackFlags.kind)
	if !validInteractionTypes[kind] {
		return fmt.Errorf("unknown interaction type %q", feedbackFlags.kind)
	}

	a, err := app.Build()
	if err != nil {
		return fmt.Errorf("wiring failed: %w", err)
	}
	defer a.Close()

	if a.Users == nil || a.Interactions == nil {
		return fmt.Errorf("DATABASE_URL is required for feedback")
	}

	ctx := cmd.Context()
	profile, err := a.Users.FindByEmail(ctx, feedbackFlags.email)
	if err != nil {
		return fmt.Errorf("unknown recipient %s: %w", feedbackFlags.email, err)
	}

	interaction := &entity.UserInteraction{
		UserID:    profile.UserID,
		ContentID: uuid.NewString(),
		Type:      kind,
		Value:     feedbackFlags.readSeconds,
		Title:     feedbackFlags.title,
		URL:       feedbackFlags.url,
		Timestamp: time.Now().UTC(),
	}
	if err := a.Interactions.Record(ctx, interaction); err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "recorded %s for %s\n", kind, feedbackFlags.email)
	return nil
}
