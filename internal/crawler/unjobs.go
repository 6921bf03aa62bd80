package crawler

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"sjsage522/unjobsworker/helpers"
	"sjsage522/unjobsworker/logger"
)

// UNJobsSource follows the "Next" links of the general UN jobs listing and
// keeps only listings whose title names a configured region.
type UNJobsSource struct {
	BaseSource
	regions *RegionMatcher
}

// NewUNJobsSource creates the listing source with its own region list
func NewUNJobsSource(base BaseSource, regions []string) *UNJobsSource {
	if base.SourceName == "" {
		base.SourceName = "unjobs"
	}
	return &UNJobsSource{
		BaseSource: base,
		regions:    NewRegionMatcher(regions),
	}
}

// FetchPage fetches the listing page at cursor, or the start URL when cursor is empty
func (s *UNJobsSource) FetchPage(ctx context.Context, cursor string) (Page, error) {
	pageURL := cursor
	if pageURL == "" {
		pageURL = s.URL
	}

	body, err := s.fetch(ctx, helpers.Get(pageURL))
	if err != nil {
		return Page{}, err
	}
	doc, err := s.document(body)
	if err != nil {
		return Page{}, err
	}

	var jobs []Job
	dropped := 0
	doc.Find(".job").Each(func(_ int, sel *goquery.Selection) {
		job, ok := s.toJob(pageURL, sel)
		if !ok {
			return
		}
		if !s.regions.Match(job.Title) {
			dropped++
			return
		}
		jobs = append(jobs, job)
	})

	logger.ForSource(s.Name()).Debug().
		Str("url", pageURL).
		Int("kept", len(jobs)).
		Int("out_of_region", dropped).
		Msg("Parsed listing page")

	next := ""
	if href, ok := doc.Find(`table td.nv a:contains("Next")`).First().Attr("href"); ok {
		next = helpers.ResolveURL(pageURL, href)
	}

	return Page{Jobs: jobs, Next: next}, nil
}

func (s *UNJobsSource) toJob(pageURL string, sel *goquery.Selection) (Job, bool) {
	anchor := sel.Find("a").First()
	title := helpers.CleanText(anchor.Text())
	link := helpers.ResolveURL(pageURL, anchor.AttrOr("href", ""))
	id := strings.TrimSpace(sel.AttrOr("id", ""))

	if title == "" || link == "" || id == "" {
		return Job{}, false
	}

	job := Job{
		Identity:     Identity(s.Prefix(), id),
		Title:        title,
		URL:          link,
		Organization: orUnknown(organizationAfter(anchor)),
	}
	if ts, ok := sel.Find("time.upd").Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			job.UpdatedAt = &t
		}
	}
	return job, true
}

// organizationAfter returns the text line that follows the title anchor:
// the first text node after the anchor's line break.
func organizationAfter(anchor *goquery.Selection) string {
	if anchor.Length() == 0 {
		return ""
	}
	passedBreak := false
	for n := anchor.Get(0).NextSibling; n != nil; n = n.NextSibling {
		switch n.Type {
		case html.TextNode:
			text := helpers.CleanText(n.Data)
			if text == "" {
				continue
			}
			if !passedBreak {
				return ""
			}
			return text
		case html.ElementNode:
			if n.Data == "br" && !passedBreak {
				passedBreak = true
				continue
			}
			return ""
		}
	}
	return ""
}
