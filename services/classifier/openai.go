package classifier

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"sjsage522/unjobsworker/pkg/errors"
)

const defaultOpenAIModel = "gpt-4o-mini"

const defaultInstructions = `You triage United Nations job listings for one candidate.
The input is a JSON array of jobs with uuid, title, url, organization and updatedAt.
For every job choose exactly one category:
- relevant: a clear match worth applying to
- potentiallyRelevant: could fit, needs a closer read
- needsHumanReview: not enough information in the listing to decide
- notRelevant: clearly out of scope
Reply with JSON only, shaped as {"evaluations":[{"job_id":"<uuid>","category":"<category>","reasoning":"<one sentence>"}]}.`

// OpenAIConfig configures the Responses API gateway
type OpenAIConfig struct {
	APIKey string
	Model  string

	// PromptID selects a stored prompt; when empty Model and the built-in instructions are used
	PromptID      string
	PromptVersion string

	BaseURL string
	Timeout time.Duration
}

// OpenAI implements Gateway on the OpenAI Responses API
type OpenAI struct {
	cfg    OpenAIConfig
	client openai.Client
}

// NewOpenAI creates an OpenAI gateway. The client never retries on its own;
// Classify decides what to resend.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Model == "" && cfg.PromptID == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		cfg:    cfg,
		client: openai.NewClient(opts...),
	}
}

type evaluations struct {
	Evaluations []Result `json:"evaluations"`
}

func (o *OpenAI) buildParams(batch []Input) (responses.ResponseNewParams, error) {
	jobsJSON, err := json.Marshal(batch)
	if err != nil {
		return responses.ResponseNewParams{}, err
	}

	var params responses.ResponseNewParams
	if o.cfg.Model != "" {
		params.Model = shared.ResponsesModel(o.cfg.Model)
	}
	if o.cfg.PromptID != "" {
		params.Prompt = responses.ResponsePromptParam{
			ID: o.cfg.PromptID,
			Variables: map[string]responses.ResponsePromptVariableUnionParam{
				"list_of_jobs": {OfString: openai.String(string(jobsJSON))},
			},
		}
		if o.cfg.PromptVersion != "" {
			params.Prompt.Version = openai.String(o.cfg.PromptVersion)
		}
		return params, nil
	}

	params.Instructions = openai.String(defaultInstructions)
	params.Input = responses.ResponseNewParamsInputUnion{OfString: openai.String(string(jobsJSON))}
	params.Text = responses.ResponseTextConfigParam{
		Format: responses.ResponseFormatTextConfigUnionParam{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	return params, nil
}

// Classify sends one batch and parses the evaluations out of the response text
func (o *OpenAI) Classify(ctx context.Context, batch []Input) ([]Result, error) {
	params, err := o.buildParams(batch)
	if err != nil {
		return nil, errors.NewClassification("openai", "failed to encode request", err)
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return nil, apiError(err)
	}

	text := resp.OutputText()
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewClassification("openai", "empty response", nil)
	}

	var evals evaluations
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &evals); err != nil {
		return nil, errors.NewClassification("openai", "response text is not an evaluations object", err)
	}
	return evals.Evaluations, nil
}

// apiError maps a client error onto the pipeline taxonomy. A 429 becomes a
// rate limit error carrying the Retry-After header.
func apiError(err error) error {
	var apiErr *openai.Error
	if !stderrors.As(err, &apiErr) {
		return errors.NewClassification("openai", "request failed", err)
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		retryAfter := ""
		if apiErr.Response != nil {
			retryAfter = apiErr.Response.Header.Get("Retry-After")
		}
		return errors.NewRateLimit("openai", retryAfter)
	}
	return errors.NewClassification("openai", fmt.Sprintf("unexpected status code: %d", apiErr.StatusCode), err)
}

// stripCodeFence removes a ```json fence some models wrap their answer in
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
