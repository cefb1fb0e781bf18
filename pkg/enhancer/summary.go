package enhancer

import (
	"time"

	"github.com/lepinkainen/rss-enhancer/pkg/rss"
)

// Status is the outcome of processing one feed item
type Status string

// Item outcomes
const (
	StatusEnhanced Status = "enhanced"
	StatusCached   Status = "cached"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// ItemResult describes what happened to one feed item
type ItemResult struct {
	Index         int       `yaml:"index"`
	Slug          string    `yaml:"slug,omitempty"`
	Title         string    `yaml:"title"`
	Link          string    `yaml:"link"`
	Status        Status    `yaml:"status"`
	Error         string    `yaml:"error,omitempty"`
	Modified      time.Time `yaml:"modified,omitempty"`
	ContentLength int       `yaml:"content_length"`
	Page          string    `yaml:"page,omitempty"`

	// Item points at the processed feed item
	Item *rss.Item `yaml:"-"`
}

// Summary aggregates a run
type Summary struct {
	FeedPath      string        `yaml:"feed"`
	BuildTime     time.Time     `yaml:"build_time"`
	PreviousBuild time.Time     `yaml:"previous_build,omitempty"`
	Duration      time.Duration `yaml:"duration"`
	DryRun        bool          `yaml:"dry_run"`

	Total    int `yaml:"total"`
	Enhanced int `yaml:"enhanced"`
	Cached   int `yaml:"cached"`
	Skipped  int `yaml:"skipped"`
	Failed   int `yaml:"failed"`

	Items []ItemResult `yaml:"items"`

	// Document is the rewritten feed
	Document *rss.Document `yaml:"-"`
}

func (s *Summary) add(res ItemResult) {
	s.Total++
	switch res.Status {
	case StatusEnhanced:
		s.Enhanced++
	case StatusCached:
		s.Cached++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
	s.Items = append(s.Items, res)
}
