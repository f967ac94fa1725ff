package collect

import (
	"fmt"
	"strings"

	"digestly/internal/domain/entity"
)

// fallbackSourceNames are the sources the remediation pass synthesizes
// content for.
var fallbackSourceNames = []string{"github", "hacker_news"}

type fallbackRepo struct {
	fullName    string
	description string
	stars       int
}

type fallbackArticle struct {
	title  string
	url    string
	author string
}

// Curated sample content keyed by interest. The sets are deliberately small
// and stable so a degraded run still reads like a real newsletter.
var (
	fallbackRepos = map[string][]fallbackRepo{
		"artificial intelligence": {
			{"huggingface/transformers", "State-of-the-art Machine Learning for PyTorch, TensorFlow, and JAX.", 132000},
			{"pytorch/pytorch", "Tensors and Dynamic neural networks in Python with strong GPU acceleration", 82000},
			{"tensorflow/tensorflow", "An Open Source Machine Learning Framework for Everyone", 185000},
		},
		"machine learning": {
			{"scikit-learn/scikit-learn", "Machine learning library for Python", 59000},
			{"pandas-dev/pandas", "Flexible and powerful data analysis / manipulation library", 43000},
			{"numpy/numpy", "The fundamental package for scientific computing with Python", 27000},
		},
		"golang": {
			{"golang/go", "The Go programming language", 123000},
			{"gin-gonic/gin", "HTTP web framework written in Go", 78000},
			{"kubernetes/kubernetes", "Production-Grade Container Scheduling and Management", 110000},
		},
		"python": {
			{"python/cpython", "The Python programming language", 62000},
			{"psf/requests", "A simple, yet elegant, HTTP library.", 52000},
			{"pallets/flask", "The Python micro framework for building web applications.", 67000},
		},
		"programming": {
			{"microsoft/vscode", "Visual Studio Code", 163000},
			{"facebook/react", "The library for web and native user interfaces.", 228000},
			{"vuejs/vue", "Progressive, incrementally-adoptable JavaScript framework", 207000},
		},
	}

	fallbackArticles = map[string][]fallbackArticle{
		"artificial intelligence": {
			{"Understanding Large Language Models in Production", "https://example.com/llm-guide", "airesearcher"},
			{"AI Ethics in Production Systems", "https://example.com/ai-ethics", "ethicsexpert"},
			{"The State of Open Model Releases", "https://example.com/open-models", "techwriter"},
		},
		"machine learning": {
			{"MLOps Practices That Actually Scale", "https://example.com/mlops-scale", "mlengineer"},
			{"Building Robust ML Pipelines", "https://example.com/ml-pipelines", "dataengineer"},
			{"Feature Engineering at Scale", "https://example.com/feature-eng", "datascientist"},
		},
		"golang": {
			{"Profiling Go Services in Production", "https://example.com/go-profiling", "gopher"},
			{"Structured Logging Patterns for Go", "https://example.com/go-slog", "backenddev"},
			{"Error Handling in Large Go Codebases", "https://example.com/go-errors", "maintainer"},
		},
		"python": {
			{"Python 3.12 Performance Improvements", "https://example.com/python312", "pythondev"},
			{"Async Python Best Practices", "https://example.com/async-python", "pythonista"},
			{"Building Microservices with FastAPI", "https://example.com/fastapi", "webdev"},
		},
		"programming": {
			{"The Evolution of Software Architecture", "https://example.com/software-arch", "architect"},
			{"Clean Code Principles Revisited", "https://example.com/clean-code", "coder"},
			{"Developer Productivity Tools Worth Knowing", "https://example.com/dev-tools", "productivity"},
		},
	}
)

// pickFallback resolves an interest to a sample set: exact match first, then
// a word-level partial match, then the general programming set.
func pickFallback[T any](samples map[string][]T, interest string) []T {
	key := strings.ToLower(strings.TrimSpace(interest))
	if set, ok := samples[key]; ok {
		return set
	}
	for candidate, set := range samples {
		for _, word := range strings.Fields(candidate) {
			if strings.Contains(key, word) {
				return set
			}
		}
	}
	return samples["programming"]
}

// SyntheticFallback returns deterministic sample items for an interest and
// source when the live source is unavailable. Items are tagged so downstream
// stages and analytics can tell them apart from real content.
func SyntheticFallback(sourceName, interest string, limit int) []*entity.ContentItem {
	switch sourceName {
	case "github":
		return fallbackGitHub(interest, limit)
	default:
		return fallbackNews(interest, limit)
	}
}

func fallbackGitHub(interest string, limit int) []*entity.ContentItem {
	repos := pickFallback(fallbackRepos, interest)
	items := make([]*entity.ContentItem, 0, len(repos))
	for _, repo := range repos {
		if len(items) >= limit && limit > 0 {
			break
		}
		item := entity.NewContentItem(
			"Trending Repository: "+repo.fullName,
			"https://github.com/"+repo.fullName,
			entity.SourceFallback,
			entity.ContentTypeRepository,
		)
		item.Summary = repo.description
		item.Metadata["fallback"] = true
		item.Metadata["interest"] = interest
		item.Metadata["stars"] = repo.stars
		items = append(items, item)
	}
	return items
}

func fallbackNews(interest string, limit int) []*entity.ContentItem {
	articles := pickFallback(fallbackArticles, interest)
	items := make([]*entity.ContentItem, 0, len(articles))
	for _, article := range articles {
		if len(items) >= limit && limit > 0 {
			break
		}
		item := entity.NewContentItem(
			article.title,
			article.url,
			entity.SourceFallback,
			entity.ContentTypeArticle,
		)
		item.Author = article.author
		item.RefreshHash()
		item.Summary = fmt.Sprintf("A widely shared piece about %s.", interest)
		item.Metadata["fallback"] = true
		item.Metadata["interest"] = interest
		items = append(items, item)
	}
	return items
}

// FallbackUserActivity synthesizes a small personal-activity section when the
// recipient's activity feed cannot be reached.
func FallbackUserActivity(username string) []*entity.ContentItem {
	repos := []struct {
		name        string
		description string
	}{
		{"my-awesome-project", "A project you have been working on recently"},
		{"portfolio-website", "Personal portfolio and blog"},
	}

	items := make([]*entity.ContentItem, 0, len(repos))
	for i, repo := range repos {
		item := entity.NewContentItem(
			"Your Repository: "+repo.name,
			fmt.Sprintf("https://github.com/%s/%s", username, repo.name),
			entity.SourceFallback,
			entity.ContentTypeRepository,
		)
		item.Author = username
		item.RefreshHash()
		item.Summary = repo.description
		item.Metadata["fallback"] = true
		item.Metadata["user_owned"] = true
		item.Metadata["stars"] = i + 1
		items = append(items, item)
	}
	return items
}
