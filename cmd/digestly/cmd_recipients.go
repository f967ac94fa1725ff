package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"digestly/internal/app"
	pkgconfig "digestly/internal/pkg/config"
)

var recipientsCmd = &cobra.Command{
	Use:   "recipients",
	Short: "Manage newsletter recipients",
}

var recipientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recipients from the recipients file",
	RunE:  runRecipientsList,
}

var recipientsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upsert recipients from the recipients file into the database",
	RunE:  runRecipientsSync,
}

func init() {
	recipientsCmd.AddCommand(recipientsListCmd)
	recipientsCmd.AddCommand(recipientsSyncCmd)
}

func runRecipientsList(cmd *cobra.Command, args []string) error {
	path := pkgconfig.LoadEnvString("RECIPIENTS_FILE", "recipients.yaml")
	file, err := pkgconfig.LoadRecipientsFile(path)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tNAME\tINTERESTS\tSCHEDULE\tGITHUB")
	for _, entry := range file.Recipients {
		schedule := entry.ScheduleTime
		if len(entry.DeliveryDays) > 0 {
			schedule += " " + strings.Join(entry.DeliveryDays, ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			entry.Email, entry.Name, strings.Join(entry.Interests, ","),
			schedule, entry.GitHubUsername)
	}
	return w.Flush()
}

func runRecipientsSync(cmd *cobra.Command, args []string) error {
	a, err := app.Build()
	if err != nil {
		return fmt.Errorf("wiring failed: %w", err)
	}
	defer a.Close()

	if a.Users == nil {
		return fmt.Errorf("DATABASE_URL is required for recipients sync")
	}

	file, err := pkgconfig.LoadRecipientsFile(a.Cfg.RecipientsFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, entry := range file.Recipients {
		profile := app.ProfileFromEntry(entry)

		// Keep the existing ID and history when the recipient is already
		// known; Upsert is keyed by email.
		if existing, err := a.Users.FindByEmail(ctx, entry.Email); err == nil {
			profile.UserID = existing.UserID
			profile.LastNewsletterSent = existing.LastNewsletterSent
			profile.TotalNewslettersSent = existing.TotalNewslettersSent
			profile.CreatedAt = existing.CreatedAt
		}
		if err := a.Users.Upsert(ctx, profile); err != nil {
			return fmt.Errorf("upsert %s: %w", entry.Email, err)
		}
		fmt.Fprintf(os.Stdout, "synced %s\n", entry.Email)
	}
	fmt.Fprintf(os.Stdout, "%d recipients synced\n", len(file.Recipients))
	return nil
}
