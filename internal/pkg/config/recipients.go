package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RecipientsFile is the YAML file describing newsletter recipients.
//
// Example:
//
//	recipients:
//	  - email: dev@example.com
//	    name: Dev
//	    interests: [golang, distributed systems]
//	    max_articles: 10
//	    schedule_time: "07:00"
//	    timezone: Europe/Berlin
//	    delivery_days: [monday, wednesday, friday]
//	    github_username: devhandle
type RecipientsFile struct {
	Recipients []RecipientEntry `yaml:"recipients"`
}

// RecipientEntry is one recipient in the recipients file. Zero values are
// filled with profile defaults when converted to a user profile.
type RecipientEntry struct {
	Email          string   `yaml:"email"`
	Name           string   `yaml:"name"`
	Interests      []string `yaml:"interests"`
	MaxArticles    int      `yaml:"max_articles"`
	ScheduleTime   string   `yaml:"schedule_time"`
	Timezone       string   `yaml:"timezone"`
	DeliveryDays   []string `yaml:"delivery_days"`
	ContentTypes   []string `yaml:"content_types"`
	GitHubUsername string   `yaml:"github_username"`
}

// LoadRecipientsFile reads and parses the recipients YAML file.
func LoadRecipientsFile(path string) (*RecipientsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipients file: %w", err)
	}

	var file RecipientsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse recipients file %s: %w", path, err)
	}

	return &file, nil
}

// FindRecipient returns the entry with the given email, or nil.
func (f *RecipientsFile) FindRecipient(email string) *RecipientEntry {
	for i := range f.Recipients {
		if f.Recipients[i].Email == email {
			return &f.Recipients[i]
		}
	}
	return nil
}
