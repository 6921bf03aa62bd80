package crawler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sjsage522/unjobsworker/helpers"
	"sjsage522/unjobsworker/pkg/errors"
)

const (
	careersUNItemsPerPage = 50
	careersUNJobURL       = "https://careers.un.org/jobSearchDescription/"
)

var careersUNHeaders = map[string]string{
	"Content-Type":    "application/json",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "en-US,en;q=0.5",
	"Origin":          "https://careers.un.org",
	"Referer":         "https://careers.un.org/jobopening?language=en",
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:141.0) Gecko/20100101 Firefox/141.0",
	"Sec-Fetch-Dest":  "empty",
	"Sec-Fetch-Mode":  "cors",
	"Sec-Fetch-Site":  "same-origin",
}

type careersUNRequest struct {
	FilterConfig struct {
		DS []string `json:"ds"`
	} `json:"filterConfig"`
	Pagination careersUNPagination `json:"pagination"`
}

type careersUNPagination struct {
	Page          int    `json:"page"`
	ItemPerPage   int    `json:"itemPerPage"`
	SortBy        string `json:"sortBy"`
	SortDirection int    `json:"sortDirection"`
}

type careersUNResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		List  []careersUNJob `json:"list"`
		Count int            `json:"count"`
	} `json:"data"`
}

type careersUNJob struct {
	JobID          int64  `json:"jobId"`
	JobTitle       string `json:"jobTitle"`
	JobDescription string `json:"jobDescription"`
	StartDate      string `json:"startDate"`
	DutyStation    []struct {
		Description string `json:"description"`
	} `json:"dutyStation"`
	JC *struct {
		Name string `json:"name"`
	} `json:"jc"`
	Dept *struct {
		Name string `json:"name"`
	} `json:"dept"`
}

// CareersUNSource pages through the careers portal JSON API by offset.
// The duty-station filter in the payload scopes it, so no region filter applies.
type CareersUNSource struct {
	BaseSource
	dutyStations []string
}

// NewCareersUNSource creates the careers portal source filtering on the given duty-station codes
func NewCareersUNSource(base BaseSource, dutyStations []string) *CareersUNSource {
	if base.SourceName == "" {
		base.SourceName = "careersun"
	}
	return &CareersUNSource{
		BaseSource:   base,
		dutyStations: dutyStations,
	}
}

// FetchPage fetches one page; the cursor is the zero-based page number
func (s *CareersUNSource) FetchPage(ctx context.Context, cursor string) (Page, error) {
	page := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return Page{}, errors.NewValidation(s.Name(), "invalid page cursor "+cursor)
		}
		page = n
	}

	var payload careersUNRequest
	payload.FilterConfig.DS = s.dutyStations
	if payload.FilterConfig.DS == nil {
		payload.FilterConfig.DS = []string{}
	}
	payload.Pagination = careersUNPagination{
		Page:          page,
		ItemPerPage:   careersUNItemsPerPage,
		SortBy:        "startDate",
		SortDirection: -1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Page{}, errors.NewParsing(s.Name(), "failed to encode request", err)
	}

	raw, err := s.fetch(ctx, helpers.Request{
		Method:  http.MethodPost,
		URL:     s.URL,
		Headers: careersUNHeaders,
		Body:    body,
	})
	if err != nil {
		return Page{}, err
	}

	var res careersUNResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return Page{}, errors.NewStructure(s.Name(), "response body is not the expected JSON", err)
	}
	if res.Data == nil {
		// No data block means no matching records
		return Page{}, nil
	}

	jobs := make([]Job, 0, len(res.Data.List))
	for _, item := range res.Data.List {
		jobs = append(jobs, s.toJob(item))
	}

	result := Page{Jobs: jobs}
	if res.Data.Count > (page+1)*careersUNItemsPerPage {
		result.Next = strconv.Itoa(page + 1)
	}
	return result, nil
}

func (s *CareersUNSource) toJob(item careersUNJob) Job {
	stations := make([]string, 0, len(item.DutyStation))
	for _, ds := range item.DutyStation {
		stations = append(stations, ds.Description)
	}
	station := strings.Join(stations, ", ")
	if station == "" {
		station = "NO_DUTY_STATION"
	}

	category := "NO_JC"
	if item.JC != nil && item.JC.Name != "" {
		category = item.JC.Name
	}

	org := "NO_DEPT"
	if item.Dept != nil && item.Dept.Name != "" {
		org = item.Dept.Name
	}

	id := strconv.FormatInt(item.JobID, 10)
	job := Job{
		Identity:     Identity(s.Prefix(), id),
		Title:        item.JobTitle + " - " + station + " - " + category,
		URL:          careersUNJobURL + id,
		Organization: org,
		Description:  helpers.SanitizeHTML(item.JobDescription),
	}
	if t, err := time.Parse(time.RFC3339, item.StartDate); err == nil {
		job.UpdatedAt = &t
	}
	return job
}
