package crawler

import (
	"context"
	"time"
)

// UnknownOrganization is used when a listing exposes no organization
const UnknownOrganization = "unknown organization"

// Category is the relevance bucket assigned by the classification gateway
type Category string

const (
	CategoryRelevant            Category = "relevant"
	CategoryPotentiallyRelevant Category = "potentiallyRelevant"
	CategoryNeedsHumanReview    Category = "needsHumanReview"
	CategoryNotRelevant         Category = "notRelevant"
)

// Known reports whether c is one of the four gateway categories
func (c Category) Known() bool {
	switch c {
	case CategoryRelevant, CategoryPotentiallyRelevant, CategoryNeedsHumanReview, CategoryNotRelevant:
		return true
	}
	return false
}

// Job represents one normalized listing. The identity is serialized as
// "uuid" so snapshot files stay readable across versions.
type Job struct {
	Identity     string     `json:"uuid"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	Organization string     `json:"organization,omitempty"`
	Description  string     `json:"description,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	Category     Category   `json:"category,omitempty"`
	Reasoning    string     `json:"reasoning,omitempty"`
}

// Page is one page of results from a source.
// An empty Next means the source is exhausted.
type Page struct {
	Jobs []Job
	Next string
}

// Source extracts listings from one job site, one page at a time
type Source interface {
	// Name returns the source name for logging
	Name() string

	// Prefix returns the identity prefix of every job this source produces
	Prefix() string

	// MaxPages returns the page ceiling for one crawl
	MaxPages() int

	// FetchPage fetches the page at cursor; "" is the first page
	FetchPage(ctx context.Context, cursor string) (Page, error)
}
