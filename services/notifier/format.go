package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"

	"sjsage522/unjobsworker/internal/crawler"
)

// Section is one category group of a notification
type Section struct {
	Title string
	Jobs  []crawler.Job
}

var sectionOrder = []struct {
	category crawler.Category
	title    string
}{
	{crawler.CategoryRelevant, "Relevant"},
	{crawler.CategoryPotentiallyRelevant, "Potentially Relevant"},
	{crawler.CategoryNeedsHumanReview, "Needs Human Review"},
	{crawler.CategoryNotRelevant, "Not Relevant"},
}

// GroupByCategory splits jobs into the fixed section order. Jobs without a
// known category land in "Other". Empty sections are left out.
func GroupByCategory(jobs []crawler.Job) []Section {
	byCategory := make(map[crawler.Category][]crawler.Job)
	var other []crawler.Job
	for _, job := range jobs {
		if job.Category.Known() {
			byCategory[job.Category] = append(byCategory[job.Category], job)
		} else {
			other = append(other, job)
		}
	}

	var sections []Section
	for _, s := range sectionOrder {
		if len(byCategory[s.category]) > 0 {
			sections = append(sections, Section{Title: s.title, Jobs: byCategory[s.category]})
		}
	}
	if len(other) > 0 {
		sections = append(sections, Section{Title: "Other", Jobs: other})
	}
	return sections
}

// Subject returns the email subject line
func Subject(n int) string {
	return fmt.Sprintf("🆕 %d New UN Jobs Found", n)
}

var htmlBody = template.Must(template.New("email").Funcs(template.FuncMap{
	"org": organizationOrUN,
}).Parse(`<h2>Found {{len .Jobs}} new job(s):</h2>
<div>
{{- range .Sections}}
<h3>{{.Title}} ({{len .Jobs}})</h3>
{{- range .Jobs}}
<div>
<h4><a href="{{.URL}}">{{.Title}}</a></h4>
<span>{{org .Organization}}</span>
{{- if .Reasoning}}
<small>{{.Reasoning}}</small>
{{- end}}
</div>
{{- end}}
{{- end}}
</div>
`))

// HTMLBody renders the HTML email body
func HTMLBody(jobs []crawler.Job) (string, error) {
	var buf bytes.Buffer
	err := htmlBody.Execute(&buf, struct {
		Jobs     []crawler.Job
		Sections []Section
	}{jobs, GroupByCategory(jobs)})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// TextBody renders the plain text email body: a header and the jobs as indented JSON
func TextBody(jobs []crawler.Job) (string, error) {
	if jobs == nil {
		jobs = []crawler.Job{}
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("New UN Jobs Found\n\nFound %d new job(s):\n\n%s", len(jobs), data), nil
}

func organizationOrUN(org string) string {
	if org == "" {
		return "UN"
	}
	return org
}
