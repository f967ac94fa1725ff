package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	pkgconfig "digestly/internal/pkg/config"
)

var setupFlags struct {
	file string
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively add a recipient to the recipients file",
	Long: `Setup walks through the recipient settings (email, interests, schedule)
and writes the result to the YAML recipients file, creating it if needed.
An existing entry with the same email is replaced.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().StringVar(&setupFlags.file, "file", "", "recipients file to write (default: RECIPIENTS_FILE or recipients.yaml)")
}

func runSetup(cmd *cobra.Command, args []string) error {
	path := setupFlags.file
	if path == "" {
		path = pkgconfig.LoadEnvString("RECIPIENTS_FILE", "recipients.yaml")
	}

	entry, err := promptRecipient(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	file := &pkgconfig.RecipientsFile{}
	if existing, err := pkgconfig.LoadRecipientsFile(path); err == nil {
		file = existing
	}

	replaced := false
	for i := range file.Recipients {
		if file.Recipients[i].Email == entry.Email {
			file.Recipients[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		file.Recipients = append(file.Recipients, entry)
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode recipients file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write recipients file: %w", err)
	}

	verb := "added to"
	if replaced {
		verb = "updated in"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", entry.Email, verb, path)
	return nil
}

func promptRecipient(in io.Reader, out io.Writer) (pkgconfig.RecipientEntry, error) {
	reader := bufio.NewReader(in)
	ask := func(label, def string) (string, error) {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return def, nil
		}
		return line, nil
	}

	var entry pkgconfig.RecipientEntry

	email, err := ask("Email", "")
	if err != nil {
		return entry, err
	}
	if email == "" || !strings.Contains(email, "@") {
		return entry, fmt.Errorf("a valid email address is required")
	}
	entry.Email = email

	if entry.Name, err = ask("Name", ""); err != nil {
		return entry, err
	}

	interests, err := ask("Interests (comma separated)", "technology, programming")
	if err != nil {
		return entry, err
	}
	entry.Interests = splitList(interests)

	maxArticles, err := ask("Max articles per newsletter", "10")
	if err != nil {
		return entry, err
	}
	if n, convErr := strconv.Atoi(maxArticles); convErr == nil && n > 0 {
		entry.MaxArticles = n
	}

	if entry.ScheduleTime, err = ask("Delivery time (HH:MM)", "07:00"); err != nil {
		return entry, err
	}
	if entry.Timezone, err = ask("Timezone", "UTC"); err != nil {
		return entry, err
	}

	days, err := ask("Delivery days (comma separated)", "monday, wednesday, friday")
	if err != nil {
		return entry, err
	}
	entry.DeliveryDays = splitList(days)

	if entry.GitHubUsername, err = ask("GitHub username (optional)", ""); err != nil {
		return entry, err
	}

	return entry, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
