package pipeline

import (
	"fmt"

	"digestly/internal/domain/entity"
)

// defaultMaxArticles applies when a request carries an unusable override.
const defaultMaxArticles = 10

// validate checks the profile and request before any external work. It
// repairs what it can (trimming interests, capping article budgets) and
// records what it cannot.
func validate(st *State) {
	profile := st.Profile
	if profile == nil {
		st.AddError(StageValidation, "No user profile supplied", SeverityCritical, "MISSING_PROFILE")
		return
	}

	if profile.Email == "" {
		st.AddError(StageValidation, "User email is required", SeverityCritical, "MISSING_EMAIL")
	}

	// No interests is deliberately non-critical: collection degrades to
	// default topics so the recipient still gets a general newsletter.
	if len(profile.Interests) == 0 {
		st.AddError(StageValidation, "User has no interests configured", SeverityHigh, "NO_INTERESTS")
	}

	if len(profile.Interests) > entity.MaxInterests {
		st.AddError(StageValidation,
			fmt.Sprintf("Too many interests (max %d)", entity.MaxInterests),
			SeverityMedium, "TOO_MANY_INTERESTS")
		profile.Interests = profile.Interests[:entity.MaxInterests]
		st.AddWarning(fmt.Sprintf("Trimmed interests to %d items", entity.MaxInterests))
	}

	if st.Request.MaxArticles < 0 {
		st.AddError(StageValidation, "max articles must be at least 1", SeverityMedium, "INVALID_MAX_ARTICLES")
		st.Request.MaxArticles = defaultMaxArticles
	}
	if st.Request.MaxArticles > entity.MaxArticlesCap {
		st.AddWarning(fmt.Sprintf("max articles capped at %d", entity.MaxArticlesCap))
		st.Request.MaxArticles = entity.MaxArticlesCap
	}
	if st.Request.MaxArticles > 0 {
		profile.MaxArticles = st.Request.MaxArticles
	}
	if profile.MaxArticles <= 0 {
		profile.MaxArticles = defaultMaxArticles
	}

	if profile.IncludeGitHubActivity && profile.GitHubUsername == "" && !st.Request.TestMode {
		st.AddWarning("GitHub activity requested but no username provided")
	}
}
