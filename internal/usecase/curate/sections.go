package curate

import (
	"sort"
	"strings"
	"unicode"

	"digestly/internal/domain/entity"
)

// sectionEmojis decorates section headers for well-known topics.
var sectionEmojis = map[string]string{
	"ai":                      "🤖",
	"artificial intelligence": "🤖",
	"machine learning":        "🧠",
	"golang":                  "🐹",
	"python":                  "🐍",
	"programming":             "💻",
	"startup":                 "🚀",
	"technology":              "⚡",
	"science":                 "🔬",
	"data":                    "📊",
	"security":                "🔐",
}

func emojiFor(interest string) string {
	key := strings.ToLower(interest)
	if emoji, ok := sectionEmojis[key]; ok {
		return emoji
	}
	for candidate, emoji := range sectionEmojis {
		if strings.Contains(key, candidate) {
			return emoji
		}
	}
	return ""
}

// categorize groups analyzed items under the interest they matched. An item
// may appear in multiple sections when it matched several interests; each
// section keeps its top items by composite score.
func categorize(analyzed []*entity.AnalyzedContent, interests []string, maxPerSection int) map[string][]*entity.AnalyzedContent {
	categorized := make(map[string][]*entity.AnalyzedContent, len(interests))
	for _, interest := range interests {
		needle := strings.ToLower(interest)
		var matched []*entity.AnalyzedContent
		for _, a := range analyzed {
			for _, m := range a.InterestMatches {
				match := strings.ToLower(m)
				if strings.Contains(match, needle) || strings.Contains(needle, match) {
					matched = append(matched, a)
					break
				}
			}
		}
		sortByComposite(matched)
		if len(matched) > maxPerSection {
			matched = matched[:maxPerSection]
		}
		categorized[interest] = matched
	}
	return categorized
}

// buildSections renders the categorized map into ordered sections, keeping
// the profile's interest order and skipping empty categories.
func buildSections(interests []string, categorized map[string][]*entity.AnalyzedContent) []*entity.ContentSection {
	var sections []*entity.ContentSection
	for _, interest := range interests {
		articles := categorized[interest]
		if len(articles) == 0 {
			continue
		}
		sections = append(sections, &entity.ContentSection{
			Title:       titleCase(interest),
			Description: "Latest developments in " + interest,
			Emoji:       emojiFor(interest),
			Articles:    articles,
			Order:       len(sections),
		})
	}
	return sections
}

// topArticles flattens the categorized map into the overall best items.
func topArticles(categorized map[string][]*entity.AnalyzedContent, limit int) []*entity.AnalyzedContent {
	seen := make(map[*entity.AnalyzedContent]struct{})
	var all []*entity.AnalyzedContent
	for _, items := range categorized {
		for _, a := range items {
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			all = append(all, a)
		}
	}
	sortByComposite(all)
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

func countArticles(categorized map[string][]*entity.AnalyzedContent) int {
	total := 0
	for _, items := range categorized {
		total += len(items)
	}
	return total
}

func sortByComposite(items []*entity.AnalyzedContent) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CompositeScore() > items[j].CompositeScore()
	})
}

// titleCase uppercases the first letter of each word. The interests are
// user-supplied lower-case topic names, not prose, so simple word casing is
// enough here.
func titleCase(s string) string {
	var b strings.Builder
	startOfWord := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			startOfWord = true
			b.WriteRune(r)
			continue
		}
		if startOfWord {
			b.WriteRune(unicode.ToUpper(r))
			startOfWord = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
