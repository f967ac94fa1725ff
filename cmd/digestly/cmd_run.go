package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"digestly/internal/app"
	"digestly/internal/domain/entity"
	"digestly/internal/pipeline"
	pkgconfig "digestly/internal/pkg/config"
)

var runFlags struct {
	email       string
	all         bool
	dryRun      bool
	testMode    bool
	maxArticles int
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate and deliver newsletters",
	Long: `Run one newsletter generation.

Usage:
  digestly run --email dev@example.com        # One recipient
  digestly run --all                          # Every configured recipient
  digestly run --email dev@example.com --dry-run

Recipients come from the database when DATABASE_URL is set, falling back
to the YAML recipients file (RECIPIENTS_FILE, default recipients.yaml).`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.email, "email", "", "Recipient email address")
	f.BoolVar(&runFlags.all, "all", false, "Run for every configured recipient")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "Generate without delivering")
	f.BoolVar(&runFlags.testMode, "test-mode", false, "Relax validation warnings for test profiles")
	f.IntVar(&runFlags.maxArticles, "max-articles", 0, "Override the recipient's article budget")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runFlags.email == "" && !runFlags.all {
		return fmt.Errorf("either --email or --all is required")
	}

	a, err := app.Build()
	if err != nil {
		return fmt.Errorf("wiring failed: %w", err)
	}
	defer a.Close()

	profiles, err := resolveProfiles(a)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		return fmt.Errorf("no recipients matched")
	}

	req := pipeline.Request{
		DryRun:      runFlags.dryRun || a.Cfg.DryRun,
		TestMode:    runFlags.testMode,
		MaxArticles: runFlags.maxArticles,
	}

	failed := 0
	for _, profile := range profiles {
		st := a.RunOnce(cmd.Context(), profile, req)
		printRunSummary(st)
		if st.FinalStatus() == "failed" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(profiles))
	}
	return nil
}

// resolveProfiles returns the profiles to run for, database first, YAML
// recipients file second.
func resolveProfiles(a *app.App) ([]*entity.UserProfile, error) {
	if a.Users != nil {
		if runFlags.all {
			profiles, err := a.Users.List(context.Background())
			if err != nil {
				return nil, fmt.Errorf("list recipients: %w", err)
			}
			if len(profiles) > 0 {
				return profiles, nil
			}
		} else {
			profile, err := a.Users.FindByEmail(context.Background(), runFlags.email)
			if err == nil {
				return []*entity.UserProfile{profile}, nil
			}
			a.Logger.Info("Recipient not in database, trying recipients file")
		}
	}

	file, err := pkgconfig.LoadRecipientsFile(a.Cfg.RecipientsFile)
	if err != nil {
		return nil, err
	}
	if runFlags.all {
		profiles := make([]*entity.UserProfile, 0, len(file.Recipients))
		for _, entry := range file.Recipients {
			profiles = append(profiles, app.ProfileFromEntry(entry))
		}
		return profiles, nil
	}
	entry := file.FindRecipient(runFlags.email)
	if entry == nil {
		return nil, fmt.Errorf("recipient %s not found", runFlags.email)
	}
	return []*entity.UserProfile{app.ProfileFromEntry(*entry)}, nil
}

func printRunSummary(st *pipeline.State) {
	fmt.Fprintf(os.Stdout, "%s  %s  stage=%s  articles=%d  duration=%s\n",
		st.Profile.Email, st.FinalStatus(), st.CurrentStage,
		newsletterArticles(st), st.Duration().Round(time.Millisecond))
	for _, w := range st.Warnings {
		fmt.Fprintf(os.Stdout, "  warning: %s\n", w)
	}
	for _, e := range st.Errors {
		fmt.Fprintf(os.Stdout, "  %s [%s/%s]: %s\n", e.Code, e.Stage, e.Severity, e.Message)
	}
}

func newsletterArticles(st *pipeline.State) int {
	if st.Newsletter == nil {
		return 0
	}
	return st.Newsletter.TotalArticles()
}
