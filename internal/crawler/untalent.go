package crawler

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/unjobsworker/helpers"
	"sjsage522/unjobsworker/logger"
	"sjsage522/unjobsworker/pkg/errors"
)

// untalentLastPageSentinel marks the point after which only expired jobs are listed
const untalentLastPageSentinel = "After this post, you will find only expired jobs."

// UNTalentSource crawls the talent board. Its pages sometimes render before
// the job cards are in place, so each page is refetched until cards appear
// or the retry policy gives up.
type UNTalentSource struct {
	BaseSource
	regions *RegionMatcher
	retry   RetryPolicy
}

// NewUNTalentSource creates the talent board source
func NewUNTalentSource(base BaseSource, regions []string, retry RetryPolicy) *UNTalentSource {
	if base.SourceName == "" {
		base.SourceName = "untalent"
	}
	return &UNTalentSource{
		BaseSource: base,
		regions:    NewRegionMatcher(regions),
		retry:      retry,
	}
}

// FetchPage fetches the board page at cursor, or the start URL when cursor is empty
func (s *UNTalentSource) FetchPage(ctx context.Context, cursor string) (Page, error) {
	pageURL := cursor
	if pageURL == "" {
		pageURL = s.URL
	}
	log := logger.ForSource(s.Name())

	var doc *goquery.Document
	attempts, err := s.retry.Do(ctx, func(ctx context.Context) (bool, error) {
		body, err := s.fetch(ctx, helpers.Get(pageURL))
		if err != nil {
			return false, err
		}
		d, err := s.document(body)
		if err != nil {
			return false, err
		}
		doc = d
		populated := d.Find(".job-card.card").Length() > 0
		if !populated {
			log.Debug().Str("url", pageURL).Msg("Page rendered without job cards")
		}
		return populated, nil
	})
	if err != nil {
		if _, ok := errors.AsCrawlerError(err); ok {
			return Page{}, err
		}
		return Page{}, errors.NewNetwork(s.Name(), "retry wait aborted", err)
	}
	if attempts > 1 {
		log.Info().Int("attempts", attempts).Str("url", pageURL).Msg("Page needed retries")
	}

	var jobs []Job
	doc.Find(".job-card.card").Each(func(_ int, sel *goquery.Selection) {
		if sel.Find(".deadline .expired").Length() > 0 {
			return
		}
		job, ok := s.toJob(pageURL, sel)
		if !ok || !s.regions.Match(job.Title) {
			return
		}
		jobs = append(jobs, job)
	})

	next := ""
	if !strings.Contains(doc.Find("body").Text(), untalentLastPageSentinel) {
		if href, ok := doc.Find("main .card:last-child a").Attr("href"); ok {
			next = helpers.ResolveURL(pageURL, href)
		}
	}

	return Page{Jobs: jobs, Next: next}, nil
}

func (s *UNTalentSource) toJob(pageURL string, sel *goquery.Selection) (Job, bool) {
	titleEl := sel.Find(".job-title h1 a")
	link := helpers.ResolveURL(pageURL, titleEl.AttrOr("href", ""))
	name := strings.TrimSpace(titleEl.Text())
	if name == "" || link == "" {
		return Job{}, false
	}

	location := helpers.CleanText(sel.Find(".locations .locations").Text())
	if location == "" {
		location = "No location"
	}

	var tags []string
	sel.Find(".tag").Each(func(_ int, tag *goquery.Selection) {
		tags = append(tags, tag.Text())
	})
	description := strings.Join(tags, ", ")
	if len(tags) > 0 {
		description += "\n\n"
	}
	description += helpers.CleanText(sel.Find(".job-summary").Text())

	return Job{
		Identity:     HashIdentity(s.Prefix(), link),
		Title:        name + " - " + location,
		URL:          link,
		Organization: orUnknown(helpers.CleanText(sel.Find(".organisation").Text())),
		Description:  description,
	}, true
}
