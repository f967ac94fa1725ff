package entity

import (
	"time"

	"github.com/google/uuid"
)

// InteractionType classifies how a recipient engaged with delivered content.
type InteractionType string

const (
	InteractionClick     InteractionType = "click"
	InteractionRead      InteractionType = "read"
	InteractionSkip      InteractionType = "skip"
	InteractionLike      InteractionType = "like"
	InteractionShare     InteractionType = "share"
	InteractionSave      InteractionType = "save"
	InteractionOpenEmail InteractionType = "open_email"
)

// DeliveryStatus tracks the lifecycle of an email delivery attempt.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryBounced   DeliveryStatus = "bounced"
	DeliveryFailed    DeliveryStatus = "failed"
)

// UserProfile holds a newsletter recipient's preferences and history.
type UserProfile struct {
	UserID         string
	Email          string
	Name           string
	Timezone       string
	GitHubUsername string

	Interests       []string
	InterestWeights map[string]float64

	ScheduleTime string // HH:MM, recipient-local
	ScheduleDays []time.Weekday

	MaxArticles            int
	IncludeGitHubActivity  bool
	IncludeTrendingRepos   bool
	ContentTypePreferences []string // articles, videos, papers, discussions, github

	LastNewsletterSent   time.Time
	TotalNewslettersSent int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserProfile creates a profile with a fresh ID and standard defaults:
// weekday delivery at 07:00 UTC, ten articles, all content types enabled.
func NewUserProfile(email, name string, interests []string) *UserProfile {
	now := time.Now().UTC()
	return &UserProfile{
		UserID:          uuid.New().String(),
		Email:           email,
		Name:            name,
		Timezone:        "UTC",
		Interests:       interests,
		InterestWeights: make(map[string]float64),
		ScheduleTime:    "07:00",
		ScheduleDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		MaxArticles:            10,
		IncludeGitHubActivity:  true,
		IncludeTrendingRepos:   true,
		ContentTypePreferences: []string{"articles", "videos", "papers", "discussions", "github"},
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

// InterestWeight returns the weight for an interest, defaulting to 1.0.
func (u *UserProfile) InterestWeight(interest string) float64 {
	if w, ok := u.InterestWeights[interest]; ok {
		return w
	}
	return 1.0
}

// WantsContentType reports whether the given preference category is enabled.
func (u *UserProfile) WantsContentType(category string) bool {
	for _, c := range u.ContentTypePreferences {
		if c == category {
			return true
		}
	}
	return false
}

// scheduleWindow is how far from the scheduled time a send is still due.
const scheduleWindow = 30 * time.Minute

// IsNewsletterDue reports whether a newsletter should be sent to this
// recipient at the given instant: the weekday must be scheduled, the local
// time must fall within the schedule window, and nothing may have been sent
// today already.
func (u *UserProfile) IsNewsletterDue(now time.Time) bool {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)

	scheduled := false
	for _, d := range u.ScheduleDays {
		if local.Weekday() == d {
			scheduled = true
			break
		}
	}
	if !scheduled {
		return false
	}

	target, err := time.ParseInLocation("15:04", u.ScheduleTime, loc)
	if err != nil {
		return false
	}
	target = time.Date(local.Year(), local.Month(), local.Day(),
		target.Hour(), target.Minute(), 0, 0, loc)
	diff := local.Sub(target)
	if diff < -scheduleWindow || diff > scheduleWindow {
		return false
	}

	if !u.LastNewsletterSent.IsZero() {
		last := u.LastNewsletterSent.In(loc)
		if last.Year() == local.Year() && last.YearDay() == local.YearDay() {
			return false
		}
	}
	return true
}

// UserInteraction records a recipient's engagement with a content item.
type UserInteraction struct {
	UserID    string
	ContentID string
	Type      InteractionType
	Value     float64 // reading time in seconds for read interactions
	Title     string
	URL       string
	Source    string
	Timestamp time.Time
}

// EngagementScore converts the interaction into a signed engagement signal.
// Read interactions scale with reading time (five minutes = neutral weight).
func (i *UserInteraction) EngagementScore() float64 {
	base := map[InteractionType]float64{
		InteractionSkip:      -0.2,
		InteractionClick:     0.5,
		InteractionRead:      1.0,
		InteractionLike:      1.5,
		InteractionShare:     2.0,
		InteractionSave:      1.8,
		InteractionOpenEmail: 0.3,
	}[i.Type]

	if i.Type == InteractionRead && i.Value > 0 {
		multiplier := i.Value / 300
		if multiplier > 2.0 {
			multiplier = 2.0
		}
		base *= multiplier
	}
	return base
}

// DeliveryResult records the outcome of one email delivery attempt.
type DeliveryResult struct {
	Success      bool
	DeliveryID   string
	Status       DeliveryStatus
	ErrorMessage string
	SentAt       time.Time
	Metadata     map[string]any
}
